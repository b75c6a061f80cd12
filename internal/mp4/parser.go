package mp4

import (
	"fmt"

	"github.com/simonhull/attachmeta/internal/binary"
	"github.com/simonhull/attachmeta/internal/registry"
	"github.com/simonhull/attachmeta/internal/sniff"
	"github.com/simonhull/attachmeta/internal/types"
)

// Well-known data atom type codes for cover art.
const (
	dataTypeJPEG = 13
	dataTypePNG  = 14
	dataTypeBMP  = 27
)

// parser implements registry.TrackScanner for MP4 and QuickTime files
type parser struct{}

// Scan walks moov in file order. Each trak becomes one track and each covr
// data atom becomes one attached-picture track.
func (p *parser) Scan(sr *binary.SafeReader) (*types.Container, error) {
	size := sr.Size()

	moov, err := findAtom(sr, 0, size, "moov")
	if err != nil {
		return nil, fmt.Errorf("find moov: %w", err)
	}
	if moov == nil {
		return nil, &types.CorruptedFileError{
			Path:   sr.Path(),
			Offset: 0,
			Reason: "no moov atom",
		}
	}

	c := &types.Container{
		Path:   sr.Path(),
		Format: types.FormatMP4,
		Size:   size,
	}

	err = forEachAtom(sr, moov.DataOffset(), moov.End(), func(a *Atom) error {
		switch a.Type {
		case "trak":
			t, err := parseTrak(sr, a)
			if err != nil {
				if binary.IsContextErr(err) {
					return err
				}
				c.Warn("tracks", a.Offset, "skipping damaged trak: %v", err)
				return nil
			}
			c.AddTrack(t)

		case "udta":
			return forEachAtom(sr, a.DataOffset(), a.End(), func(child *Atom) error {
				if child.Type == "meta" {
					return parseMeta(sr, child, c)
				}
				return nil
			})

		case "meta":
			return parseMeta(sr, a, c)
		}
		return nil
	})
	if err != nil {
		if binary.IsContextErr(err) {
			return nil, err
		}
		c.Warn("tracks", moov.Offset, "moov walk stopped: %v", err)
	}

	return c, nil
}

// parseTrak reads the handler type and sample description of one trak.
func parseTrak(sr *binary.SafeReader, trak *Atom) (types.Track, error) {
	var t types.Track

	mdia, err := findAtom(sr, trak.DataOffset(), trak.End(), "mdia")
	if err != nil {
		return t, err
	}
	if mdia == nil {
		t.Kind = types.KindOther
		return t, nil
	}

	var handler string
	err = forEachAtom(sr, mdia.DataOffset(), mdia.End(), func(a *Atom) error {
		switch a.Type {
		case "hdlr":
			// [4 version/flags] [4 pre_defined] [4 handler_type]
			buf, err := sr.Bytes(a.DataOffset()+8, 4, "handler type")
			if err != nil {
				return err
			}
			handler = string(buf)

		case "mdhd":
			lang, err := readLanguage(sr, a)
			if err != nil {
				return err
			}
			if lang != "" && lang != "und" {
				t.Tags.Set(types.TagLanguage, lang)
			}

		case "minf":
			codec, err := readSampleEntry(sr, a)
			if err != nil {
				return err
			}
			t.Codec = codec
		}
		return nil
	})
	if err != nil {
		return t, err
	}

	t.Kind = handlerKind(handler)
	return t, nil
}

// handlerKind maps an hdlr handler type to a media kind.
func handlerKind(handler string) types.MediaKind {
	switch handler {
	case "vide":
		return types.KindVideo
	case "soun":
		return types.KindAudio
	default:
		// text, sbtl, subt, clcp, tmcd, hint and friends
		return types.KindOther
	}
}

// readLanguage decodes the packed ISO-639-2/T code from mdhd.
func readLanguage(sr *binary.SafeReader, mdhd *Atom) (string, error) {
	version, err := binary.Read[uint8](sr, mdhd.DataOffset(), "mdhd version")
	if err != nil {
		return "", err
	}

	// version/flags, creation, modification, timescale, duration
	off := mdhd.DataOffset() + 4 + 4 + 4 + 4 + 4
	if version == 1 {
		off = mdhd.DataOffset() + 4 + 8 + 8 + 4 + 8
	}

	packed, err := binary.Read[uint16](sr, off, "mdhd language")
	if err != nil {
		return "", err
	}
	if packed == 0 {
		return "", nil
	}

	lang := []byte{
		byte(packed>>10&0x1F) + 0x60,
		byte(packed>>5&0x1F) + 0x60,
		byte(packed&0x1F) + 0x60,
	}
	return string(lang), nil
}

// readSampleEntry returns the fourcc of the first stsd entry.
func readSampleEntry(sr *binary.SafeReader, minf *Atom) (string, error) {
	stbl, err := findAtom(sr, minf.DataOffset(), minf.End(), "stbl")
	if err != nil || stbl == nil {
		return "", err
	}
	stsd, err := findAtom(sr, stbl.DataOffset(), stbl.End(), "stsd")
	if err != nil || stsd == nil {
		return "", err
	}

	// [4 version/flags] [4 entry_count] then entries as atoms
	count, err := binary.Read[uint32](sr, stsd.DataOffset()+4, "stsd entry count")
	if err != nil || count == 0 {
		return "", err
	}
	entry, err := readAtomHeader(sr, stsd.DataOffset()+8, stsd.End())
	if err != nil {
		return "", err
	}
	return entry.Type, nil
}

// parseMeta walks meta/ilst and adds a track per covr data atom.
// Damage inside meta is recorded as a warning.
func parseMeta(sr *binary.SafeReader, meta *Atom, c *types.Container) error {
	start, err := metaChildrenOffset(sr, meta)
	if err != nil {
		return err
	}

	ilst, err := findAtom(sr, start, meta.End(), "ilst")
	if err != nil {
		if binary.IsContextErr(err) {
			return err
		}
		c.Warn("attachments", meta.Offset, "meta: %v", err)
		return nil
	}
	if ilst == nil {
		return nil
	}

	err = forEachAtom(sr, ilst.DataOffset(), ilst.End(), func(item *Atom) error {
		if item.Type != "covr" {
			return nil
		}
		return forEachAtom(sr, item.DataOffset(), item.End(), func(data *Atom) error {
			if data.Type != "data" {
				return nil
			}
			t, err := parseCovrData(sr, data)
			if err != nil {
				return err
			}
			c.AddTrack(t)
			return nil
		})
	})
	if err != nil {
		if binary.IsContextErr(err) {
			return err
		}
		c.Warn("attachments", ilst.Offset, "cover art truncated: %v", err)
	}
	return nil
}

// metaChildrenOffset returns where meta's children start. ISO meta is a
// full box with 4 bytes of version/flags; QuickTime meta is not.
func metaChildrenOffset(sr *binary.SafeReader, meta *Atom) (int64, error) {
	if meta.DataSize() < 8 {
		return meta.DataOffset(), nil
	}
	buf, err := sr.Bytes(meta.DataOffset()+4, 4, "meta child type")
	if err != nil {
		return 0, err
	}
	if string(buf) == "hdlr" {
		return meta.DataOffset(), nil
	}
	return meta.DataOffset() + 4, nil
}

// parseCovrData builds an attached-picture track for one covr data atom.
func parseCovrData(sr *binary.SafeReader, dataAtom *Atom) (types.Track, error) {
	// data atom structure:
	// [1 byte] version
	// [3 bytes] type code (13 JPEG, 14 PNG, 27 BMP)
	// [4 bytes] locale
	// [remaining] image data
	typeCode, err := binary.Read[uint32](sr, dataAtom.DataOffset(), "data type code")
	if err != nil {
		return types.Track{}, err
	}

	t := types.Track{
		Kind:            types.KindVideo,
		AttachedPicture: true,
	}

	imageSize := int64(dataAtom.DataSize()) - 8
	if imageSize <= 0 {
		return t, nil
	}
	t.Payload = types.RangePayload(dataAtom.DataOffset()+8, imageSize)

	mime := typeCodeToMIMEType(typeCode & 0x00FFFFFF)
	if mime == "" {
		head, err := sr.Bytes(t.Payload.Offset, min(imageSize, 16), "cover image signature")
		if err != nil {
			return types.Track{}, err
		}
		mime = sniff.MIMEType(head)
	}
	if mime != "" {
		t.Tags.Set(types.TagMIMEType, mime)
		t.Codec = mime
	}
	return t, nil
}

// typeCodeToMIMEType converts a data atom type code to MIME type.
func typeCodeToMIMEType(code uint32) string {
	switch code {
	case dataTypeJPEG:
		return "image/jpeg"
	case dataTypePNG:
		return "image/png"
	case dataTypeBMP:
		return "image/bmp"
	default:
		return ""
	}
}

func init() {
	registry.Register(types.FormatMP4, &parser{})
}
