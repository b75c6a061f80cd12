// Package ogg walks Ogg logical streams and their comment headers.
//
// Streams are enumerated from their BOS pages. Header packets are
// reassembled per stream until each stream has delivered its comment
// header, and METADATA_BLOCK_PICTURE comments become attached pictures.
package ogg

import (
	"bytes"
	"fmt"

	binutil "github.com/simonhull/attachmeta/internal/binary"
	"github.com/simonhull/attachmeta/internal/registry"
	"github.com/simonhull/attachmeta/internal/types"
	"github.com/simonhull/attachmeta/internal/vorbis"
)

// maxPages bounds the header walk.
const maxPages = 4096

// parser implements registry.TrackScanner for Ogg files.
type parser struct{}

// stream is the header state of one logical stream.
type stream struct {
	serial   uint32
	codec    *codec
	track    types.Track
	pictures []types.Track
	packets  int
	done     bool
	pk       packetizer
}

// walk holds the state of one header walk.
type walk struct {
	sr        *binutil.SafeReader
	container *types.Container
	streams   map[uint32]*stream
	order     []*stream
}

// Scan reports one track per logical stream in BOS order, then one
// attached picture per picture comment, grouped by stream.
func (p *parser) Scan(sr *binutil.SafeReader) (*types.Container, error) {
	first, _, err := readPage(sr, 0)
	if err != nil {
		if binutil.IsContextErr(err) {
			return nil, err
		}
		return nil, &types.CorruptedFileError{
			Path:   sr.Path(),
			Offset: 0,
			Reason: fmt.Sprintf("read first Ogg page: %v", err),
		}
	}
	if !first.BOS() {
		return nil, &types.CorruptedFileError{
			Path:   sr.Path(),
			Offset: 0,
			Reason: "first Ogg page does not begin a stream",
		}
	}

	w := &walk{
		sr: sr,
		container: &types.Container{
			Path:   sr.Path(),
			Format: types.FormatOgg,
			Size:   sr.Size(),
		},
		streams: make(map[uint32]*stream),
	}

	if err := w.run(); err != nil {
		return nil, err
	}

	c := w.container
	for _, s := range w.order {
		c.AddTrack(s.track)
	}
	for _, s := range w.order {
		for _, t := range s.pictures {
			c.AddTrack(t)
		}
	}
	return c, nil
}

// run reads pages until every stream is done, the page budget is spent or
// the file ends.
func (w *walk) run() error {
	offset := int64(0)
	for n := 0; offset < w.sr.Size(); n++ {
		if n == maxPages {
			w.container.Warn("pages", offset, "stopped after %d pages", maxPages)
			return nil
		}

		page, next, err := readPage(w.sr, offset)
		if err != nil {
			if binutil.IsContextErr(err) {
				return err
			}
			w.container.Warn("pages", offset, "Ogg page: %v", err)
			return nil
		}
		offset = next

		s, ok := w.streams[page.SerialNumber]
		if page.BOS() {
			if ok {
				w.container.Warn("pages", page.Offset, "duplicate BOS page for stream %08x", page.SerialNumber)
				continue
			}
			s = &stream{serial: page.SerialNumber}
			w.streams[page.SerialNumber] = s
			w.order = append(w.order, s)
		} else if !ok {
			w.container.Warn("pages", page.Offset, "page for unknown stream %08x", page.SerialNumber)
			continue
		}

		if !s.done {
			if err := w.feed(s, page); err != nil {
				return err
			}
		}

		if !page.BOS() && w.allDone() {
			return nil
		}
	}
	return nil
}

// feed passes one page to a stream's packetizer.
func (w *walk) feed(s *stream, page *Page) error {
	dropped, err := s.pk.push(page, func(packet []byte) error {
		if s.done {
			return nil
		}
		return w.handlePacket(s, packet)
	})
	if dropped {
		w.container.Warn("packets", page.Offset, "stream %08x: incomplete packet dropped", s.serial)
	}
	if err != nil {
		if binutil.IsContextErr(err) {
			return err
		}
		w.container.Warn("packets", page.Offset, "stream %08x: %v", s.serial, err)
		s.done = true
	}

	if page.HeaderType&flagEOS != 0 && !s.done {
		w.container.Warn("packets", page.Offset, "stream %08x ended before its comment header", s.serial)
		s.done = true
	}
	return nil
}

// handlePacket interprets the next header packet of s.
func (w *walk) handlePacket(s *stream, packet []byte) error {
	s.packets++
	if s.packets == 1 {
		s.codec = identify(packet)
		if s.codec == nil {
			s.track = types.Track{Kind: types.KindOther}
			s.done = true
			return nil
		}
		s.track = types.Track{Kind: s.codec.kind, Codec: s.codec.name}
		s.done = !s.codec.hasComments()
		return nil
	}

	if s.codec.flac {
		return w.handleFLACBlock(s, packet)
	}

	s.done = true
	off := s.codec.commentOffset(packet)
	if off < 0 {
		w.container.Warn("comments", 0, "stream %08x: second %s packet is not a comment header", s.serial, s.codec.name)
		return nil
	}
	return w.readComments(s, packet, off)
}

// handleFLACBlock interprets one FLAC metadata block carried as an Ogg
// header packet.
func (w *walk) handleFLACBlock(s *stream, packet []byte) error {
	if len(packet) < flacBlockHeaderSize {
		s.done = true
		w.container.Warn("comments", 0, "stream %08x: short FLAC header packet", s.serial)
		return nil
	}
	if packet[0]&flacLastBlock != 0 {
		s.done = true
	}

	switch packet[0] &^ flacLastBlock {
	case flacBlockVorbisComment:
		return w.readComments(s, packet, flacBlockHeaderSize)

	case flacBlockPicture:
		psr := w.packetReader(packet)
		pic, err := vorbis.ReadPicture(psr, flacBlockHeaderSize, int64(len(packet)-flacBlockHeaderSize))
		if err != nil {
			if binutil.IsContextErr(err) {
				return err
			}
			w.container.Warn("comments", 0, "stream %08x: skipping PICTURE block: %v", s.serial, err)
			return nil
		}
		data := packet[pic.DataOffset : pic.DataOffset+pic.DataLength]
		s.pictures = append(s.pictures, pic.Track(types.InlinePayload(data)))
	}
	return nil
}

// readComments parses the comment body that starts at off in packet,
// setting the stream's tags and collecting picture comments.
func (w *walk) readComments(s *stream, packet []byte, off int) error {
	psr := w.packetReader(packet)
	_, comments, err := vorbis.ReadComments(psr, int64(off), int64(len(packet)-off), func(msg string) {
		w.container.Warn("comments", 0, "stream %08x: invalid comment: %s", s.serial, msg)
	})
	if err != nil {
		if binutil.IsContextErr(err) {
			return err
		}
		w.container.Warn("comments", 0, "stream %08x: comment header: %v", s.serial, err)
	}

	s.track.Tags = vorbis.StreamTags(comments)
	for _, cm := range comments {
		if cm.Key != vorbis.PictureKey {
			continue
		}
		pic, data, err := vorbis.DecodePictureComment(cm.Value)
		if err != nil {
			w.container.Warn("comments", 0, "stream %08x: skipping %s: %v", s.serial, vorbis.PictureKey, err)
			continue
		}
		s.pictures = append(s.pictures, pic.Track(types.InlinePayload(data)))
	}
	return nil
}

// packetReader wraps a reassembled packet, keeping the source's context.
func (w *walk) packetReader(packet []byte) *binutil.SafeReader {
	return binutil.NewSafeReader(bytes.NewReader(packet), int64(len(packet)), w.sr.Path()).
		WithContext(w.sr.Context())
}

func (w *walk) allDone() bool {
	for _, s := range w.order {
		if !s.done {
			return false
		}
	}
	return true
}

// init registers the Ogg parser
func init() {
	registry.Register(types.FormatOgg, &parser{})
}
