package mp3

import (
	"bytes"
	"errors"
	"strconv"
	"strings"

	binutil "github.com/simonhull/attachmeta/internal/binary"
	"github.com/simonhull/attachmeta/internal/sniff"
	"github.com/simonhull/attachmeta/internal/types"
)

// maxFieldPrefix bounds how much of a frame is read to find the text
// fields that precede the binary data.
const maxFieldPrefix = 64 << 10

// linkedImage is the APIC MIME type of a picture stored as a URL.
const linkedImage = "-->"

var (
	errFrameTooShort    = errors.New("frame too short")
	errNoMIMETerm       = errors.New("MIME type not null-terminated")
	errFieldsTooLong    = errors.New("text fields exceed prefix limit")
	errFrameUnsupported = errors.New("compressed or encrypted frame")
)

// ID3v2.3 and ID3v2.4 frame format flags (low byte).
const (
	v3FlagCompression = 0x80
	v3FlagEncryption  = 0x40
	v3FlagGrouping    = 0x20

	v4FlagGrouping          = 0x40
	v4FlagCompression       = 0x08
	v4FlagEncryption        = 0x04
	v4FlagUnsynchronisation = 0x02
	v4FlagDataLength        = 0x01
)

// frameKinds lists the frames that carry attachments, by ID.
var frameKinds = map[string]struct {
	kind    types.MediaKind
	picture bool
}{
	"APIC": {types.KindVideo, true},
	"PIC":  {types.KindVideo, true},
	"GEOB": {types.KindAttachment, false},
	"GEO":  {types.KindAttachment, false},
}

// isAttachmentFrame reports whether the frame ID carries binary data.
func isAttachmentFrame(id string) bool {
	_, ok := frameKinds[id]
	return ok
}

// frameBody resolves the per-frame flags and returns where the frame's
// content starts.
func frameBody(f ID3v2Frame, version byte) (src *binutil.SafeReader, off, size int64, inline bool, err error) {
	src, off, size, inline = f.src, f.Offset, f.Size, f.inline
	flags := byte(f.Flags)

	switch version {
	case 3:
		if flags&(v3FlagCompression|v3FlagEncryption) != 0 {
			return nil, 0, 0, false, errFrameUnsupported
		}
		if flags&v3FlagGrouping != 0 {
			off, size = off+1, size-1
		}

	case 4:
		if flags&(v4FlagCompression|v4FlagEncryption) != 0 {
			return nil, 0, 0, false, errFrameUnsupported
		}
		if flags&v4FlagGrouping != 0 {
			off, size = off+1, size-1
		}
		if flags&v4FlagDataLength != 0 {
			off, size = off+4, size-4
		}
		if flags&v4FlagUnsynchronisation != 0 && size > 0 {
			raw, err := src.Bytes(off, size, "unsynchronised frame")
			if err != nil {
				return nil, 0, 0, false, err
			}
			decoded := removeUnsynchronisation(raw)
			src = binutil.NewSafeReader(bytes.NewReader(decoded), int64(len(decoded)), src.Path()).WithContext(src.Context())
			off, size, inline = 0, int64(len(decoded)), true
		}
	}

	if size < 0 {
		return nil, 0, 0, false, errFrameTooShort
	}
	return src, off, size, inline, nil
}

// parseAttachmentFrame builds a track from an APIC, PIC, GEOB or GEO frame.
//
// Layouts:
//
//	APIC      [enc] [MIME\0] [picture type] [description] [data]
//	PIC       [enc] [format(3)] [picture type] [description] [data]
//	GEOB/GEO  [enc] [MIME\0] [filename] [description] [data]
func parseAttachmentFrame(f ID3v2Frame, version byte) (types.Track, error) {
	src, off, size, inline, err := frameBody(f, version)
	if err != nil {
		return types.Track{}, err
	}
	if size < 2 {
		return types.Track{}, errFrameTooShort
	}

	prefix, err := src.Bytes(off, min(size, maxFieldPrefix), "frame fields")
	if err != nil {
		return types.Track{}, err
	}

	fk := frameKinds[f.ID]
	t := types.Track{Kind: fk.kind, AttachedPicture: fk.picture}

	enc := prefix[0]
	pos := 1

	var mime string
	if f.ID == "PIC" {
		if len(prefix) < pos+3 {
			return types.Track{}, errFrameTooShort
		}
		mime = imageFormatToMIME(string(prefix[pos : pos+3]))
		pos += 3
	} else {
		end := bytes.IndexByte(prefix[pos:], 0)
		if end < 0 {
			return types.Track{}, errNoMIMETerm
		}
		mime = string(prefix[pos : pos+end])
		pos += end + 1
	}

	if fk.picture {
		if pos >= len(prefix) {
			return types.Track{}, errFrameTooShort
		}
		t.Tags.Set(types.TagPictureType, strconv.Itoa(int(prefix[pos])))
		pos++
	} else {
		name, n, err := readTerminated(prefix[pos:], enc, size > int64(len(prefix)))
		if err != nil {
			return types.Track{}, err
		}
		if name != "" {
			t.Tags.Set(types.TagFilename, name)
		}
		pos += n
	}

	desc, n, err := readTerminated(prefix[pos:], enc, size > int64(len(prefix)))
	if err != nil {
		return types.Track{}, err
	}
	if desc != "" {
		t.Tags.Set(types.TagTitle, desc)
	}
	pos += n

	dataOff := off + int64(pos)
	dataLen := size - int64(pos)

	if mime == linkedImage {
		// The data is a URL, not a picture.
		return t, nil
	}
	if dataLen <= 0 {
		if mime = normalizeMIME(mime); mime != "" {
			t.Tags.Set(types.TagMIMEType, mime)
		}
		return t, nil
	}

	if inline {
		data, err := src.Bytes(dataOff, dataLen, "frame data")
		if err != nil {
			return types.Track{}, err
		}
		t.Payload = types.InlinePayload(data)
	} else {
		t.Payload = types.RangePayload(dataOff, dataLen)
	}

	mime = normalizeMIME(mime)
	if mime == "" && fk.picture {
		head, err := src.Bytes(dataOff, min(dataLen, 16), "picture signature")
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

// readTerminated decodes a terminated string and returns the bytes
// consumed. Without a terminator the string is empty and the remaining
// bytes are data, unless the prefix was cut short.
func readTerminated(data []byte, enc byte, truncated bool) (string, int, error) {
	end := findNullTerminator(data, enc)
	if end < 0 {
		if truncated {
			return "", 0, errFieldsTooLong
		}
		return "", 0, nil
	}
	return decodeText(data[:end], enc), end + terminatorSize(enc), nil
}

// imageFormatToMIME converts an ID3v2.2 PIC image format to a MIME type.
func imageFormatToMIME(format string) string {
	switch strings.ToUpper(format) {
	case "JPG":
		return "image/jpeg"
	case "PNG":
		return "image/png"
	case "GIF":
		return "image/gif"
	case "BMP":
		return "image/bmp"
	case linkedImage:
		return linkedImage
	default:
		return ""
	}
}

// normalizeMIME fixes legacy MIME markers written by old taggers.
func normalizeMIME(mime string) string {
	switch strings.ToLower(mime) {
	case "jpg", "jpeg", "image/jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	default:
		return mime
	}
}
