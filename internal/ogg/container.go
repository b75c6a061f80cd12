package ogg

import (
	"errors"
	"fmt"

	"github.com/simonhull/attachmeta/internal/binary"
)

// Page header flags
const (
	flagContinued = 0x01
	flagBOS       = 0x02
	flagEOS       = 0x04
)

// pageHeaderSize is the fixed part of a page header, before the segment
// table.
const pageHeaderSize = 27

// maxPacketSize bounds a reassembled header packet. Comment packets carry
// base64 pictures, so this is generous.
const maxPacketSize = 16 << 20

var errPacketTooLarge = errors.New("header packet exceeds size limit")

// Page represents an Ogg page.
//
// An Ogg page is the fundamental unit of the Ogg container format.
// Each page contains a header, a segment table and payload data.
type Page struct {
	Offset         int64
	HeaderType     byte   // Bit flags: 0x01=continued, 0x02=BOS, 0x04=EOS
	SerialNumber   uint32 // Logical bitstream identifier
	SequenceNumber uint32
	Segments       []byte // Lacing values, one per segment
	Data           []byte // Page payload (one or more packet fragments)
}

// BOS reports whether the page opens a logical stream.
func (p *Page) BOS() bool {
	return p.HeaderType&flagBOS != 0
}

// Continued reports whether the page's first segment continues a packet
// from an earlier page.
func (p *Page) Continued() bool {
	return p.HeaderType&flagContinued != 0
}

// readPage reads an Ogg page at the given offset.
//
// Returns the page, next offset, and any error encountered.
func readPage(sr *binary.SafeReader, offset int64) (*Page, int64, error) {
	header := make([]byte, pageHeaderSize)
	if err := sr.ReadAt(header, offset, "Ogg page header"); err != nil {
		return nil, 0, err
	}

	// Verify "OggS" capture pattern
	if string(header[0:4]) != "OggS" {
		return nil, 0, fmt.Errorf("missing OggS capture pattern at offset %d", offset)
	}
	if header[4] != 0 {
		return nil, 0, fmt.Errorf("unsupported Ogg version: %d", header[4])
	}

	page := &Page{
		Offset:         offset,
		HeaderType:     header[5],
		SerialNumber:   binary.Decode[uint32](header[14:18], binary.LittleEndian),
		SequenceNumber: binary.Decode[uint32](header[18:22], binary.LittleEndian),
	}

	// Read segment table (each byte is size of a segment, 0-255)
	page.Segments = make([]byte, header[26])
	if err := sr.ReadAt(page.Segments, offset+pageHeaderSize, "segment table"); err != nil {
		return nil, 0, err
	}

	dataSize := 0
	for _, seg := range page.Segments {
		dataSize += int(seg)
	}

	dataOffset := offset + pageHeaderSize + int64(len(page.Segments))
	page.Data = make([]byte, dataSize)
	if dataSize > 0 {
		if err := sr.ReadAt(page.Data, dataOffset, "page data"); err != nil {
			return nil, 0, err
		}
	}

	return page, dataOffset + int64(dataSize), nil
}

// packetizer reassembles the packets of one logical stream from its pages.
//
// A packet ends at the first segment shorter than 255 bytes, so packets
// can span pages and a page can hold several packets.
type packetizer struct {
	partial  []byte
	inPacket bool
}

// push feeds one page and calls emit for every packet it completes. It
// returns true when a partial packet had to be dropped because the page
// did not continue it.
func (pk *packetizer) push(p *Page, emit func([]byte) error) (bool, error) {
	dropped := false
	skip := false

	switch {
	case p.Continued() && !pk.inPacket:
		// The start of this packet was never seen.
		skip = true
	case !p.Continued() && pk.inPacket:
		pk.partial, pk.inPacket = nil, false
		dropped = true
	}

	pos := 0
	for _, seg := range p.Segments {
		chunk := p.Data[pos : pos+int(seg)]
		pos += int(seg)

		if !skip {
			if len(pk.partial)+len(chunk) > maxPacketSize {
				pk.partial, pk.inPacket = nil, false
				return dropped, errPacketTooLarge
			}
			pk.partial = append(pk.partial, chunk...)
			pk.inPacket = true
		}

		if seg < 255 {
			if !skip {
				packet := pk.partial
				pk.partial, pk.inPacket = nil, false
				if err := emit(packet); err != nil {
					return dropped, err
				}
			}
			skip = false
		}
	}
	return dropped, nil
}
