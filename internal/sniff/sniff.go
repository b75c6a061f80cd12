// Package sniff identifies common attachment payloads from their leading bytes.
package sniff

import (
	"bytes"
	"encoding/binary"
)

// signature maps a magic prefix at a fixed offset to a MIME type.
type signature struct {
	mime   string
	magic  []byte
	offset int
}

var signatures = []signature{
	{mime: "image/jpeg", magic: []byte{0xFF, 0xD8, 0xFF}},
	{mime: "image/png", magic: []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}},
	{mime: "image/gif", magic: []byte("GIF8")},
	{mime: "image/bmp", magic: []byte("BM")},
	{mime: "image/webp", magic: []byte("WEBP"), offset: 8},
	{mime: "font/otf", magic: []byte("OTTO")},
	{mime: "font/ttf", magic: []byte{0x00, 0x01, 0x00, 0x00}},
	{mime: "font/collection", magic: []byte("ttcf")},
	{mime: "font/woff", magic: []byte("wOFF")},
	{mime: "font/woff2", magic: []byte("wOF2")},
}

// MIMEType returns the MIME type detected from data, or "" if unknown.
func MIMEType(data []byte) string {
	for _, sig := range signatures {
		end := sig.offset + len(sig.magic)
		if len(data) < end {
			continue
		}
		if bytes.Equal(data[sig.offset:end], sig.magic) {
			if sig.mime == "image/webp" && string(data[:4]) != "RIFF" {
				continue
			}
			return sig.mime
		}
	}
	return ""
}

// ImageDimensions extracts width and height from JPEG or PNG data.
// Returns 0, 0 for other formats or truncated headers.
func ImageDimensions(data []byte) (int, int) {
	switch MIMEType(data) {
	case "image/jpeg":
		return jpegDimensions(data)
	case "image/png":
		return pngDimensions(data)
	default:
		return 0, 0
	}
}

// jpegDimensions walks JPEG segments until a start-of-frame marker.
func jpegDimensions(data []byte) (int, int) {
	i := 2
	for i+4 <= len(data) {
		if data[i] != 0xFF {
			return 0, 0
		}
		marker := data[i+1]
		if marker == 0xFF {
			i++
			continue
		}
		// SOF0..SOF15 except DHT (C4), JPG (C8) and DAC (CC).
		if marker >= 0xC0 && marker <= 0xCF && marker != 0xC4 && marker != 0xC8 && marker != 0xCC {
			// FF Cn [2 length] [1 precision] [2 height] [2 width]
			if i+9 > len(data) {
				return 0, 0
			}
			height := int(binary.BigEndian.Uint16(data[i+5:]))
			width := int(binary.BigEndian.Uint16(data[i+7:]))
			return width, height
		}
		segLen := int(binary.BigEndian.Uint16(data[i+2:]))
		if segLen < 2 {
			return 0, 0
		}
		i += 2 + segLen
	}
	return 0, 0
}

// pngDimensions reads the IHDR chunk that follows the signature.
func pngDimensions(data []byte) (int, int) {
	// [8 signature] [4 len] [4 "IHDR"] [4 width] [4 height]
	if len(data) < 24 || string(data[12:16]) != "IHDR" {
		return 0, 0
	}
	width := int(binary.BigEndian.Uint32(data[16:20]))
	height := int(binary.BigEndian.Uint32(data[20:24]))
	return width, height
}
