package vorbis

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"testing"

	binutil "github.com/simonhull/attachmeta/internal/binary"
	"github.com/simonhull/attachmeta/internal/types"
)

// CreateCommentBlock builds a Vorbis comment header body.
func createCommentBlock(vendor string, comments ...string) []byte {
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.LittleEndian, uint32(len(vendor)))
	buf.WriteString(vendor)
	binary.Write(buf, binary.LittleEndian, uint32(len(comments)))
	for _, c := range comments {
		binary.Write(buf, binary.LittleEndian, uint32(len(c)))
		buf.WriteString(c)
	}
	return buf.Bytes()
}

// createPictureBlock builds a FLAC PICTURE block body.
func createPictureBlock(picType uint32, mime, desc string, width, height uint32, data []byte) []byte {
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.BigEndian, picType)
	binary.Write(buf, binary.BigEndian, uint32(len(mime)))
	buf.WriteString(mime)
	binary.Write(buf, binary.BigEndian, uint32(len(desc)))
	buf.WriteString(desc)
	binary.Write(buf, binary.BigEndian, width)
	binary.Write(buf, binary.BigEndian, height)
	binary.Write(buf, binary.BigEndian, uint32(24))
	binary.Write(buf, binary.BigEndian, uint32(0))
	binary.Write(buf, binary.BigEndian, uint32(len(data)))
	buf.Write(data)
	return buf.Bytes()
}

func newReader(data []byte) *binutil.SafeReader {
	return binutil.NewSafeReader(bytes.NewReader(data), int64(len(data)), "test")
}

func TestParseComment(t *testing.T) {
	tests := []struct {
		comment string
		want    Comment
		wantErr bool
	}{
		{comment: "TITLE=Test Song", want: Comment{Key: "TITLE", Value: "Test Song"}},
		{comment: "title=lower", want: Comment{Key: "TITLE", Value: "lower"}},
		{comment: "EMPTY=", want: Comment{Key: "EMPTY", Value: ""}},
		{comment: "EQ=a=b", want: Comment{Key: "EQ", Value: "a=b"}},
		{comment: "no separator", wantErr: true},
		{comment: "=value", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.comment, func(t *testing.T) {
			got, err := ParseComment(tt.comment)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseComment() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseComment() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestReadComments(t *testing.T) {
	block := createCommentBlock("libvorbis", "TITLE=Song", "garbage", "LANGUAGE=eng")
	var warnings []string

	vendor, comments, err := ReadComments(newReader(block), 0, int64(len(block)), func(s string) {
		warnings = append(warnings, s)
	})
	if err != nil {
		t.Fatalf("ReadComments() error = %v", err)
	}
	if vendor != "libvorbis" {
		t.Errorf("vendor = %q", vendor)
	}
	if len(comments) != 2 || len(warnings) != 1 {
		t.Fatalf("comments = %v, warnings = %v", comments, warnings)
	}

	tags := StreamTags(comments)
	if tags.Value(types.TagTitle) != "Song" || tags.Value(types.TagLanguage) != "eng" {
		t.Errorf("StreamTags() keys = %v", tags.Keys())
	}
}

func TestReadComments_Truncated(t *testing.T) {
	block := createCommentBlock("v", "A=1", "B=2")
	// Cut into the second comment.
	_, comments, err := ReadComments(newReader(block), 0, int64(len(block)-1), nil)
	if err == nil {
		t.Fatal("expected error for truncated block")
	}
	if len(comments) != 1 || comments[0].Key != "A" {
		t.Errorf("comments before truncation = %v", comments)
	}
}

func TestReadPicture(t *testing.T) {
	image := []byte{0xFF, 0xD8, 0xFF, 0xE0, 1, 2, 3}
	block := append([]byte("pad!"), createPictureBlock(3, "image/jpeg", "Front", 500, 400, image)...)
	sr := newReader(block)

	p, err := ReadPicture(sr, 4, int64(len(block)-4))
	if err != nil {
		t.Fatalf("ReadPicture() error = %v", err)
	}
	if p.Type != 3 || p.MIMEType != "image/jpeg" || p.Description != "Front" || p.Width != 500 || p.Height != 400 {
		t.Errorf("unexpected picture header: %+v", p)
	}

	got, err := sr.Bytes(p.DataOffset, p.DataLength, "image")
	if err != nil || !bytes.Equal(got, image) {
		t.Errorf("picture data = %x, %v", got, err)
	}

	tr := p.Track(types.RangePayload(p.DataOffset, p.DataLength))
	if !tr.Qualifies() || tr.Tags.Value(types.TagMIMEType) != "image/jpeg" || tr.Tags.Value(types.TagPictureType) != "3" {
		t.Errorf("Track() = %v %v", tr, tr.Tags.Keys())
	}
}

func TestReadPicture_Errors(t *testing.T) {
	good := createPictureBlock(3, "image/png", "", 1, 1, []byte{1, 2, 3, 4})

	tests := []struct {
		name   string
		data   []byte
		length int64
	}{
		{name: "data exceeds block", data: good, length: int64(len(good) - 2)},
		{name: "mime exceeds block", data: good[:10], length: 10},
		{name: "truncated header", data: good[:6], length: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadPicture(newReader(tt.data), 0, tt.length); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestDecodePictureComment(t *testing.T) {
	image := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	value := base64.StdEncoding.EncodeToString(createPictureBlock(3, "image/png", "", 1, 1, image))

	p, data, err := DecodePictureComment(value)
	if err != nil {
		t.Fatalf("DecodePictureComment() error = %v", err)
	}
	if p.MIMEType != "image/png" || !bytes.Equal(data, image) {
		t.Errorf("picture = %+v, data = %x", p, data)
	}

	if _, _, err := DecodePictureComment("not base64!"); err == nil {
		t.Error("expected error for invalid base64")
	}
}

func TestPicture_LinkHasNoPayload(t *testing.T) {
	p := Picture{MIMEType: "-->", Type: 3}
	if tr := p.Track(types.InlinePayload([]byte("http://x"))); tr.Qualifies() {
		t.Error("linked picture must not qualify")
	}
}
