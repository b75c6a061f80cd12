// Package mp3 walks MPEG audio files and their ID3v2 tags for attached
// pictures and encapsulated objects.
package mp3

import (
	"fmt"
	"strconv"

	binutil "github.com/simonhull/attachmeta/internal/binary"
	"github.com/simonhull/attachmeta/internal/registry"
	"github.com/simonhull/attachmeta/internal/types"
)

// parser implements registry.TrackScanner for MP3 files
type parser struct{}

// Scan reports the audio stream first, then one track per APIC, PIC, GEOB
// or GEO frame in tag order.
func (p *parser) Scan(sr *binutil.SafeReader) (*types.Container, error) {
	c := &types.Container{
		Path:   sr.Path(),
		Format: types.FormatMP3,
		Size:   sr.Size(),
	}

	magic := make([]byte, 3)
	if err := sr.ReadAt(magic, 0, "file magic"); err != nil {
		return nil, err
	}

	var (
		tagEnd      int64
		attachments []types.Track
	)
	if string(magic) == "ID3" {
		header, err := readID3v2Header(sr)
		if err != nil {
			return nil, fmt.Errorf("read ID3v2 header: %w", err)
		}
		tagEnd = header.TotalSize()

		err = readFrames(sr, header, c, func(f ID3v2Frame) error {
			if !isAttachmentFrame(f.ID) {
				return nil
			}
			t, err := parseAttachmentFrame(f, header.Version)
			if err != nil {
				if binutil.IsContextErr(err) {
					return err
				}
				c.Warn("tags", f.Offset, "skipping %s frame: %v", f.ID, err)
				return nil
			}
			attachments = append(attachments, t)
			return nil
		})
		if err != nil {
			if binutil.IsContextErr(err) {
				return nil, err
			}
			c.Warn("tags", 10, "ID3v2 frames: %v", err)
		}
	}

	if tagEnd < sr.Size() {
		frame, err := findFirstFrame(sr, tagEnd)
		switch {
		case err == nil:
			audio := types.Track{Kind: types.KindAudio, Codec: frame.Codec}
			audio.Tags.Set(types.TagSampleRate, strconv.Itoa(frame.SampleRate))
			audio.Tags.Set(types.TagChannels, strconv.Itoa(frame.Channels))
			c.AddTrack(audio)
		case binutil.IsContextErr(err):
			return nil, err
		default:
			c.Warn("header", tagEnd, "no audio stream: %v", err)
		}
	}

	for _, t := range attachments {
		c.AddTrack(t)
	}
	return c, nil
}

// init registers the MP3 parser
func init() {
	registry.Register(types.FormatMP3, &parser{})
}
