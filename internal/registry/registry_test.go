package registry

import (
	"slices"
	"testing"

	"github.com/simonhull/attachmeta/internal/binary"
	"github.com/simonhull/attachmeta/internal/types"
)

// mockScanner implements TrackScanner for testing.
type mockScanner struct {
	name string
}

func (m *mockScanner) Scan(sr *binary.SafeReader) (*types.Container, error) {
	return &types.Container{Path: m.name}, nil
}

func TestRegisterAndGet(t *testing.T) {
	// Use a format that's unlikely to conflict with real registrations
	format := types.Format(999)
	Register(format, &mockScanner{name: "test"})

	got := Get(format)
	if got == nil {
		t.Fatal("Get() returned nil for registered format")
	}

	c, err := got.Scan(nil)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if c.Path != "test" {
		t.Errorf("Scan() path = %q, want %q", c.Path, "test")
	}
	if !slices.Contains(Formats(), format) {
		t.Errorf("Formats() = %v, missing %v", Formats(), format)
	}
}

func TestGet_Unregistered(t *testing.T) {
	if got := Get(types.Format(998)); got != nil {
		t.Errorf("Get() = %v for unregistered format, want nil", got)
	}
}

func TestRegister_Overwrites(t *testing.T) {
	format := types.Format(997)
	Register(format, &mockScanner{name: "first"})
	Register(format, &mockScanner{name: "second"})

	ms, ok := Get(format).(*mockScanner)
	if !ok {
		t.Fatal("Get() returned wrong scanner type")
	}
	if ms.name != "second" {
		t.Errorf("scanner name = %q, want %q (should be overwritten)", ms.name, "second")
	}
}
