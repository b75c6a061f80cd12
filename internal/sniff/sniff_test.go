package sniff

import "testing"

// 1x1 PNG header through IHDR.
var pngHeader = []byte{
	0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A,
	0x00, 0x00, 0x00, 0x0D, 0x49, 0x48, 0x44, 0x52,
	0x00, 0x00, 0x00, 0x02, // width = 2
	0x00, 0x00, 0x00, 0x03, // height = 3
	0x08, 0x02, 0x00, 0x00, 0x00,
}

// JPEG with an APP0 segment followed by SOF0 (height 480, width 640).
var jpegHeader = []byte{
	0xFF, 0xD8,
	0xFF, 0xE0, 0x00, 0x04, 0x4A, 0x46,
	0xFF, 0xC0, 0x00, 0x11, 0x08, 0x01, 0xE0, 0x02, 0x80, 0x03,
}

func TestMIMEType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
	}{
		{name: "jpeg", data: jpegHeader, want: "image/jpeg"},
		{name: "png", data: pngHeader, want: "image/png"},
		{name: "gif", data: []byte("GIF89a...."), want: "image/gif"},
		{name: "webp", data: []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), want: "image/webp"},
		{name: "riff but not webp", data: []byte("RIFF\x00\x00\x00\x00WAVEfmt "), want: ""},
		{name: "truetype", data: []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x10}, want: "font/ttf"},
		{name: "opentype", data: []byte("OTTO\x00\x0A"), want: "font/otf"},
		{name: "woff2", data: []byte("wOF2\x00\x01"), want: "font/woff2"},
		{name: "unknown", data: []byte("plain text"), want: ""},
		{name: "empty", data: nil, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MIMEType(tt.data); got != tt.want {
				t.Errorf("MIMEType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestImageDimensions(t *testing.T) {
	if w, h := ImageDimensions(pngHeader); w != 2 || h != 3 {
		t.Errorf("PNG dimensions = %dx%d, want 2x3", w, h)
	}
	if w, h := ImageDimensions(jpegHeader); w != 640 || h != 480 {
		t.Errorf("JPEG dimensions = %dx%d, want 640x480", w, h)
	}
	if w, h := ImageDimensions(jpegHeader[:10]); w != 0 || h != 0 {
		t.Errorf("truncated JPEG dimensions = %dx%d, want 0x0", w, h)
	}
	if w, h := ImageDimensions([]byte("GIF89a")); w != 0 || h != 0 {
		t.Errorf("GIF dimensions = %dx%d, want 0x0", w, h)
	}
}
