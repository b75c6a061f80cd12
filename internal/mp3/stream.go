package mp3

import (
	"encoding/binary"
	"fmt"

	binutil "github.com/simonhull/attachmeta/internal/binary"
)

// syncSearchWindow bounds how far past the tag the first frame is looked for.
const syncSearchWindow = 64 << 10

// MPEG audio sample rate table (MPEG1) in Hz.
var sampleRateTable = []int{
	44100, 48000, 32000, 0,
}

// mpegFrame is the decoded header of the first audio frame.
type mpegFrame struct {
	Codec      string // "mp1", "mp2" or "mp3"
	SampleRate int
	Channels   int
}

// findFirstFrame searches for a valid MPEG audio frame header at or after
// start.
func findFirstFrame(sr *binutil.SafeReader, start int64) (mpegFrame, error) {
	n := min(sr.Size()-start, syncSearchWindow)
	if n < 4 {
		return mpegFrame{}, fmt.Errorf("no audio data after tag")
	}

	buf, err := sr.Bytes(start, n, "MPEG frame search")
	if err != nil {
		return mpegFrame{}, err
	}

	for i := 0; i+4 <= len(buf); i++ {
		if buf[i] != 0xFF {
			continue
		}
		header := binary.BigEndian.Uint32(buf[i:])
		if frame, ok := parseFrameHeader(header); ok {
			return frame, nil
		}
	}
	return mpegFrame{}, fmt.Errorf("no MPEG frame sync in the first %d bytes after the tag", n)
}

// parseFrameHeader validates a 4-byte MPEG audio frame header.
func parseFrameHeader(header uint32) (mpegFrame, bool) {
	// Check frame sync (11 bits set: 0xFFE00000)
	if header&0xFFE00000 != 0xFFE00000 {
		return mpegFrame{}, false
	}

	version := (header >> 19) & 0x3 // 00 MPEG2.5, 01 reserved, 10 MPEG2, 11 MPEG1
	layer := (header >> 17) & 0x3   // 01 Layer III, 10 Layer II, 11 Layer I
	bitrateIdx := (header >> 12) & 0xF
	sampleRateIdx := (header >> 10) & 0x3

	if version == 1 || layer == 0 || bitrateIdx == 0xF || sampleRateIdx == 3 {
		return mpegFrame{}, false
	}

	frame := mpegFrame{Channels: 2}
	switch layer {
	case 1:
		frame.Codec = "mp3"
	case 2:
		frame.Codec = "mp2"
	case 3:
		frame.Codec = "mp1"
	}

	frame.SampleRate = sampleRateTable[sampleRateIdx]
	switch version {
	case 2:
		frame.SampleRate /= 2
	case 0:
		frame.SampleRate /= 4
	}

	// Channel mode (2 bits)
	if (header>>6)&0x3 == 3 {
		frame.Channels = 1 // Mono
	}

	return frame, true
}
