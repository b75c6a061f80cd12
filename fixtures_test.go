package attachmeta_test

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"io/fs"
	"sync"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

var (
	jpegData = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01, 0xFF, 0xD9}
	pngData  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D}
	fontData = []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x0A, 'f', 'o', 'n', 't'}
)

// EBML

func ebmlID(id uint32) []byte {
	switch {
	case id <= 0xFF:
		return []byte{byte(id)}
	case id <= 0xFFFF:
		return []byte{byte(id >> 8), byte(id)}
	case id <= 0xFFFFFF:
		return []byte{byte(id >> 16), byte(id >> 8), byte(id)}
	default:
		return []byte{byte(id >> 24), byte(id >> 16), byte(id >> 8), byte(id)}
	}
}

// ebml writes one element with an 8-byte size field.
func ebml(id uint32, children ...[]byte) []byte {
	body := bytes.Join(children, nil)
	size := make([]byte, 8)
	binary.BigEndian.PutUint64(size, uint64(len(body)))
	size[0] = 0x01
	return bytes.Join([][]byte{ebmlID(id), size, body}, nil)
}

func ebmlString(id uint32, s string) []byte { return ebml(id, []byte(s)) }

func ebmlUint(id uint32, v byte) []byte { return ebml(id, []byte{v}) }

type mkvFile struct {
	name, mime string
	data       []byte
}

// createMKV builds a Matroska file with one video track, one audio track
// and the given attachments.
func createMKV(docType string, files ...mkvFile) []byte {
	var attached [][]byte
	for _, f := range files {
		attached = append(attached, ebml(0x61A7,
			ebmlString(0x466E, f.name),
			ebmlString(0x4660, f.mime),
			ebml(0x465C, f.data),
		))
	}

	segment := [][]byte{
		ebml(0x1654AE6B,
			ebml(0xAE, ebmlUint(0xD7, 1), ebmlUint(0x83, 1), ebmlString(0x86, "V_VP9")),
			ebml(0xAE, ebmlUint(0xD7, 2), ebmlUint(0x83, 2), ebmlString(0x86, "A_OPUS")),
		),
	}
	if len(attached) > 0 {
		segment = append(segment, ebml(0x1941A469, attached...))
	}

	return bytes.Join([][]byte{
		ebml(0x1A45DFA3, ebmlString(0x4282, docType)),
		ebml(0x18538067, segment...),
	}, nil)
}

// ISO BMFF

func atom(kind string, children ...[]byte) []byte {
	body := bytes.Join(children, nil)
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.BigEndian, uint32(8+len(body)))
	buf.WriteString(kind)
	buf.Write(body)
	return buf.Bytes()
}

// createMP4 builds an MP4 file whose moov/udta/meta/ilst/covr holds one
// data atom per image (type code 13 for JPEG, 14 for PNG).
func createMP4(images ...[]byte) []byte {
	var covr [][]byte
	for _, img := range images {
		code := byte(13)
		if bytes.HasPrefix(img, pngData[:4]) {
			code = 14
		}
		covr = append(covr, atom("data", []byte{0, 0, 0, code, 0, 0, 0, 0}, img))
	}

	hdlr := atom("hdlr", make([]byte, 8), []byte("mdir"), make([]byte, 13))
	meta := atom("meta", make([]byte, 4), hdlr, atom("ilst", atom("covr", covr...)))

	return bytes.Join([][]byte{
		atom("ftyp", []byte("M4A \x00\x00\x00\x00M4A ")),
		atom("moov", atom("mvhd", make([]byte, 100)), atom("udta", meta)),
		atom("mdat", make([]byte, 16)),
	}, nil)
}

// ID3v2

// createMP3 builds an ID3v2.3 tag with one APIC frame per image, followed
// by one MPEG audio frame.
func createMP3(images ...[]byte) []byte {
	frames := &bytes.Buffer{}
	for _, img := range images {
		mime := "image/jpeg"
		if bytes.HasPrefix(img, pngData[:4]) {
			mime = "image/png"
		}
		body := bytes.Join([][]byte{{0x00}, []byte(mime), {0x00, 0x03}, []byte("cover\x00"), img}, nil)
		frames.WriteString("APIC")
		binary.Write(frames, binary.BigEndian, uint32(len(body)))
		frames.Write([]byte{0, 0})
		frames.Write(body)
	}

	n := frames.Len()
	header := []byte{'I', 'D', '3', 3, 0, 0, byte(n>>21) & 0x7F, byte(n>>14) & 0x7F, byte(n>>7) & 0x7F, byte(n) & 0x7F}
	audio := append([]byte{0xFF, 0xFB, 0x90, 0x64}, make([]byte, 413)...)
	return bytes.Join([][]byte{header, frames.Bytes(), audio}, nil)
}

// FLAC and Ogg pictures

func pictureBlock(mime string, data []byte) []byte {
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.BigEndian, uint32(3))
	binary.Write(buf, binary.BigEndian, uint32(len(mime)))
	buf.WriteString(mime)
	binary.Write(buf, binary.BigEndian, [6]uint32{0, 1, 1, 24, 0, uint32(len(data))})
	buf.Write(data)
	return buf.Bytes()
}

func flacBlock(blockType byte, body []byte) []byte {
	n := len(body)
	return append([]byte{blockType, byte(n >> 16), byte(n >> 8), byte(n)}, body...)
}

// createFLAC builds a FLAC file with STREAMINFO and one PICTURE block.
func createFLAC(mime string, image []byte) []byte {
	return bytes.Join([][]byte{
		[]byte("fLaC"),
		flacBlock(0, make([]byte, 34)),
		flacBlock(0x80|6, pictureBlock(mime, image)),
	}, nil)
}

func oggPage(flags byte, seq uint32, packet []byte) []byte {
	buf := &bytes.Buffer{}
	buf.WriteString("OggS\x00")
	buf.WriteByte(flags)
	binary.Write(buf, binary.LittleEndian, uint64(0))
	binary.Write(buf, binary.LittleEndian, uint32(0x1234))
	binary.Write(buf, binary.LittleEndian, seq)
	binary.Write(buf, binary.LittleEndian, uint32(0))

	segments := bytes.Repeat([]byte{255}, len(packet)/255)
	segments = append(segments, byte(len(packet)%255))
	buf.WriteByte(byte(len(segments)))
	buf.Write(segments)
	buf.Write(packet)
	return buf.Bytes()
}

// createOpus builds an Ogg Opus stream whose OpusTags carry one picture.
func createOpus(mime string, image []byte) []byte {
	picture := "METADATA_BLOCK_PICTURE=" + base64.StdEncoding.EncodeToString(pictureBlock(mime, image))

	tags := &bytes.Buffer{}
	tags.WriteString("OpusTags")
	binary.Write(tags, binary.LittleEndian, uint32(4))
	tags.WriteString("test")
	binary.Write(tags, binary.LittleEndian, uint32(1))
	binary.Write(tags, binary.LittleEndian, uint32(len(picture)))
	tags.WriteString(picture)

	return bytes.Join([][]byte{
		oggPage(0x02, 0, append([]byte("OpusHead\x01\x02"), make([]byte, 9)...)),
		oggPage(0x00, 1, tags.Bytes()),
	}, nil)
}

// trackingFs counts handles that were opened and not yet closed.
type trackingFs struct {
	afero.Fs

	mu     sync.Mutex
	open   int
	opened int
}

func newTrackingFs() *trackingFs {
	return &trackingFs{Fs: afero.NewMemMapFs()}
}

func (t *trackingFs) Open(name string) (afero.File, error) {
	f, err := t.Fs.Open(name)
	if err != nil {
		return nil, err
	}
	t.mu.Lock()
	t.open++
	t.opened++
	t.mu.Unlock()
	return &trackedFile{File: f, fs: t}, nil
}

// Leaked returns the number of handles still open.
func (t *trackingFs) Leaked() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

type trackedFile struct {
	afero.File
	fs   *trackingFs
	once sync.Once
}

func (f *trackedFile) Close() error {
	f.once.Do(func() {
		f.fs.mu.Lock()
		f.fs.open--
		f.fs.mu.Unlock()
	})
	return f.File.Close()
}

func writeFile(t testing.TB, fsys afero.Fs, name string, data []byte) string {
	t.Helper()
	require.NoError(t, afero.WriteFile(fsys, name, data, fs.FileMode(0o644)))
	return name
}
