package binary

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

// mockReader implements io.ReaderAt for testing.
type mockReader struct {
	data  []byte
	reads int
}

func (m *mockReader) ReadAt(p []byte, off int64) (n int, err error) {
	m.reads++
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n = copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func TestSafeReader_ReadAt_Success(t *testing.T) {
	data := []byte{0x1A, 0x45, 0xDF, 0xA3}
	sr := NewSafeReader(&mockReader{data: data}, int64(len(data)), "test.mkv")

	buf := make([]byte, 2)
	if err := sr.ReadAt(buf, 0, "test read"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if buf[0] != 0x1A || buf[1] != 0x45 {
		t.Errorf("expected [0x1a, 0x45], got [0x%02x, 0x%02x]", buf[0], buf[1])
	}
}

func TestSafeReader_ReadAt_OutOfBounds(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04}
	sr := NewSafeReader(&mockReader{data: data}, int64(len(data)), "test.mkv")

	tests := []struct {
		name string
		off  int64
		n    int
	}{
		{name: "offset past end", off: 10, n: 2},
		{name: "read straddles end", off: 3, n: 2},
		{name: "negative offset", off: -1, n: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sr.ReadAt(make([]byte, tt.n), tt.off, "element header")
			var oob *OutOfBoundsError
			if !errors.As(err, &oob) {
				t.Fatalf("expected OutOfBoundsError, got %T (%v)", err, err)
			}
			if !strings.Contains(err.Error(), "test.mkv") {
				t.Errorf("error should contain filename: %v", err)
			}
			if !strings.Contains(err.Error(), "element header") {
				t.Errorf("error should contain context: %v", err)
			}
		})
	}
}

func TestSafeReader_CancelledContext(t *testing.T) {
	mock := &mockReader{data: make([]byte, 16)}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sr := NewSafeReader(mock, 16, "test.mp4").WithContext(ctx)

	err := sr.ReadAt(make([]byte, 4), 0, "atom header")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if mock.reads != 0 {
		t.Errorf("cancelled reader must not touch the source, got %d reads", mock.reads)
	}
}

func TestIsContextErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "canceled", err: context.Canceled, want: true},
		{name: "deadline", err: context.DeadlineExceeded, want: true},
		{name: "wrapped", err: fmt.Errorf("find moov: %w", context.Canceled), want: true},
		{name: "out of bounds", err: &OutOfBoundsError{Path: "x", What: "atom"}, want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsContextErr(tt.err); got != tt.want {
				t.Errorf("IsContextErr(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestSafeReader_WithContext_LeavesOriginalUntouched(t *testing.T) {
	sr := NewSafeReader(&mockReader{data: make([]byte, 4)}, 4, "test.mp4")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_ = sr.WithContext(ctx)

	if err := sr.ReadAt(make([]byte, 4), 0, "atom header"); err != nil {
		t.Fatalf("original reader should still read: %v", err)
	}
}

func TestSafeReader_Bytes(t *testing.T) {
	data := []byte("attachment")
	sr := NewSafeReader(&mockReader{data: data}, int64(len(data)), "test.mkv")

	got, err := sr.Bytes(3, 4, "payload")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(got) != "achm" {
		t.Errorf("expected %q, got %q", "achm", got)
	}

	empty, err := sr.Bytes(int64(len(data)), 0, "empty payload")
	if err != nil {
		t.Fatalf("zero-length read should succeed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty slice, got %d bytes", len(empty))
	}

	if _, err := sr.Bytes(0, 1<<40, "huge payload"); err == nil {
		t.Error("expected error for length beyond source size")
	}
}

func TestRead_Widths(t *testing.T) {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, 0x123456789ABCDEF0)
	sr := NewSafeReader(&mockReader{data: data}, int64(len(data)), "test.flac")

	if v, err := Read[uint8](sr, 0, "u8"); err != nil || v != 0x12 {
		t.Errorf("uint8: got 0x%02x, %v", v, err)
	}
	if v, err := Read[uint16](sr, 0, "u16"); err != nil || v != 0x1234 {
		t.Errorf("uint16: got 0x%04x, %v", v, err)
	}
	if v, err := Read[uint32](sr, 0, "u32"); err != nil || v != 0x12345678 {
		t.Errorf("uint32: got 0x%08x, %v", v, err)
	}
	if v, err := Read[uint64](sr, 0, "u64"); err != nil || v != 0x123456789ABCDEF0 {
		t.Errorf("uint64: got 0x%016x, %v", v, err)
	}
}

func TestReader_Sequential(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08}
	sr := NewSafeReader(&mockReader{data: data}, int64(len(data)), "test.flac")
	r := NewReader(sr, 0)

	val1, err := ReadValue[uint8](r, "first byte")
	if err != nil {
		t.Fatalf("read 1 failed: %v", err)
	}
	if val1 != 0x01 {
		t.Errorf("expected 0x01, got 0x%02x", val1)
	}

	val2, err := ReadValue[uint16](r, "second word")
	if err != nil {
		t.Fatalf("read 2 failed: %v", err)
	}
	if val2 != 0x0203 {
		t.Errorf("expected 0x0203, got 0x%04x", val2)
	}

	b, err := r.ReadBytes(2, "two bytes")
	if err != nil {
		t.Fatalf("read 3 failed: %v", err)
	}
	if b[0] != 0x04 || b[1] != 0x05 {
		t.Errorf("unexpected bytes % x", b)
	}

	if r.Offset() != 5 {
		t.Errorf("expected offset 5, got %d", r.Offset())
	}

	r.Skip(2)
	if r.Offset() != 7 {
		t.Errorf("expected offset 7 after skip, got %d", r.Offset())
	}
}

func TestReader_ReadString(t *testing.T) {
	data := []byte("image/jpeg")
	sr := NewSafeReader(&mockReader{data: data}, int64(len(data)), "test.flac")
	r := NewReader(sr, 0)

	str, err := r.ReadString(5, "MIME type")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if str != "image" {
		t.Errorf("expected 'image', got '%s'", str)
	}
}

func TestChainReader_Success(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03, 0x04}
	sr := NewSafeReader(&mockReader{data: data}, int64(len(data)), "test.flac")
	cr := NewChainReader(NewReader(sr, 0))

	v1 := ReadChained[uint8](cr, "first")
	v2 := ReadChained[uint8](cr, "second")
	v3 := ReadChained[uint16](cr, "third")

	if err := cr.Error(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if v1 != 0x01 || v2 != 0x02 || v3 != 0x0304 {
		t.Errorf("unexpected values: %02x %02x %04x", v1, v2, v3)
	}
}

func TestChainReader_ErrorAccumulation(t *testing.T) {
	data := []byte{0x01, 0x02}
	mock := &mockReader{data: data}
	sr := NewSafeReader(mock, int64(len(data)), "test.flac")
	cr := NewChainReader(NewReader(sr, 0))

	_ = ReadChained[uint8](cr, "first")
	_ = ReadChained[uint8](cr, "second")
	_ = ReadChained[uint8](cr, "third") // out of bounds

	if cr.Error() == nil {
		t.Fatal("expected error, got nil")
	}

	reads := mock.reads
	_ = ReadChained[uint8](cr, "fourth")
	if s := cr.String(1, "fifth"); s != "" {
		t.Errorf("expected empty string after error, got %q", s)
	}
	if mock.reads != reads {
		t.Error("reads after an error must be skipped")
	}
}

func BenchmarkRead_Uint32(b *testing.B) {
	data := make([]byte, 1024*1024)
	for i := 0; i < len(data); i += 4 {
		binary.BigEndian.PutUint32(data[i:], uint32(i))
	}
	sr := NewSafeReader(&mockReader{data: data}, int64(len(data)), "bench.mp4")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		offset := int64((i % (len(data) / 4)) * 4)
		_, _ = Read[uint32](sr, offset, "benchmark")
	}
}
