package types

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestDetectFormat(t *testing.T) {
	id3FLAC := append([]byte("ID3\x04\x00\x00\x00\x00\x00\x02\x00\x00"), []byte("fLaC\x00\x00\x00\x22")...)

	tests := []struct {
		name string
		data []byte
		want Format
	}{
		{name: "matroska", data: []byte{0x1A, 0x45, 0xDF, 0xA3, 0x9F, 0x42, 0x86, 0x81}, want: FormatMatroska},
		{name: "flac", data: []byte("fLaC\x00\x00\x00\x00"), want: FormatFLAC},
		{name: "id3 prefixed flac", data: id3FLAC, want: FormatFLAC},
		{name: "ogg", data: createMinimalOggPage("OpusHead"), want: FormatOgg},
		{name: "id3v2", data: []byte("ID3\x04\x00\x00\x00\x00\x00\x00"), want: FormatMP3},
		{name: "mpeg frame sync", data: []byte{0xFF, 0xFB, 0x90, 0x00, 0x00, 0x00, 0x00, 0x00}, want: FormatMP3},
		{name: "mp4 ftyp", data: []byte("\x00\x00\x00\x10ftypM4A \x00\x00\x00\x00"), want: FormatMP4},
		{name: "quicktime moov first", data: []byte("\x00\x00\x00\x08moov"), want: FormatMP4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat(bytes.NewReader(tt.data), int64(len(tt.data)), "test")
			if err != nil {
				t.Fatalf("DetectFormat() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("DetectFormat() = %v, want %v", got, tt.want)
			}
		})
	}
}

// canceledReader fails every read with context.Canceled.
type canceledReader struct{}

func (canceledReader) ReadAt([]byte, int64) (int, error) { return 0, context.Canceled }

func TestDetectFormat_ContextError(t *testing.T) {
	_, err := DetectFormat(canceledReader{}, 64, "test")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	var unsupported *UnsupportedFormatError
	if errors.As(err, &unsupported) {
		t.Errorf("context error reported as %v", unsupported)
	}
}

func TestDetectFormat_Unsupported(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{name: "too small", data: []byte("abc")},
		{name: "plain text", data: []byte("just some notes about a movie\n")},
		{name: "wav", data: []byte("RIFF\x00\x00\x00\x00WAVE")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DetectFormat(bytes.NewReader(tt.data), int64(len(tt.data)), "test.bin")
			var ufe *UnsupportedFormatError
			if !errors.As(err, &ufe) {
				t.Fatalf("expected UnsupportedFormatError, got %T (%v)", err, err)
			}
		})
	}
}

func TestFormat_StringAndExtensions(t *testing.T) {
	tests := []struct {
		format  Format
		name    string
		someExt string
	}{
		{FormatMatroska, "Matroska", ".mkv"},
		{FormatWebM, "WebM", ".webm"},
		{FormatMP4, "MP4", ".m4a"},
		{FormatMP3, "MP3", ".mp3"},
		{FormatFLAC, "FLAC", ".flac"},
		{FormatOgg, "Ogg", ".opus"},
	}

	for _, tc := range tests {
		if got := tc.format.String(); got != tc.name {
			t.Errorf("String() = %q, want %q", got, tc.name)
		}
		found := false
		for _, ext := range tc.format.Extensions() {
			if ext == tc.someExt {
				found = true
			}
		}
		if !found {
			t.Errorf("%v.Extensions() = %v, missing %q", tc.format, tc.format.Extensions(), tc.someExt)
		}
	}

	if FormatUnknown.Extensions() != nil {
		t.Error("unknown format should have no extensions")
	}
}

func TestDecodeSynchsafe(t *testing.T) {
	if got := DecodeSynchsafe([]byte{0x00, 0x00, 0x02, 0x01}); got != 257 {
		t.Errorf("DecodeSynchsafe() = %d, want 257", got)
	}
	if got := DecodeSynchsafe([]byte{0x7F, 0x7F, 0x7F, 0x7F}); got != 0x0FFFFFFF {
		t.Errorf("DecodeSynchsafe() = 0x%x, want 0x0fffffff", got)
	}
	if got := DecodeSynchsafe([]byte{0x01}); got != 0 {
		t.Errorf("DecodeSynchsafe(short) = %d, want 0", got)
	}
}

// createMinimalOggPage creates a minimal BOS Ogg page with one packet.
func createMinimalOggPage(packetContent string) []byte {
	header := make([]byte, 27)
	copy(header[0:4], "OggS")
	header[5] = 0x02 // BOS
	header[14] = 0x01
	header[26] = 1

	result := append(header, byte(len(packetContent)))
	return append(result, packetContent...)
}
