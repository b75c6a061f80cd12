package types

import (
	"iter"
	"slices"
	"strings"
)

// Canonical tag keys written by the walkers.
const (
	TagFilename    = "filename"
	TagMIMEType    = "mimetype"
	TagTitle       = "title"
	TagComment     = "comment"
	TagLanguage    = "language"
	TagPictureType = "picturetype"

	// Stream properties, recorded where the header is read anyway.
	TagSampleRate = "samplerate"
	TagChannels   = "channels"
)

// Tags is a per-track string mapping with case-insensitive keys.
//
// Each key holds one value; setting a key again replaces the value
// (last write wins). Iteration follows first insertion order.
type Tags struct {
	values map[string]string
	order  []string
}

// Set stores value under key, replacing any earlier value.
func (t *Tags) Set(key, value string) {
	k := strings.ToLower(key)
	if t.values == nil {
		t.values = make(map[string]string)
	}
	if _, ok := t.values[k]; !ok {
		t.order = append(t.order, k)
	}
	t.values[k] = value
}

// Get returns the value stored under key.
func (t Tags) Get(key string) (string, bool) {
	v, ok := t.values[strings.ToLower(key)]
	return v, ok
}

// Value returns the value stored under key, or "" when absent.
func (t Tags) Value(key string) string {
	v, _ := t.Get(key)
	return v
}

// Len returns the number of distinct keys.
func (t Tags) Len() int {
	return len(t.values)
}

// All returns an iterator over key/value pairs in insertion order.
//
//	for key, value := range track.Tags.All() {
//		fmt.Printf("%s=%s\n", key, value)
//	}
func (t Tags) All() iter.Seq2[string, string] {
	return func(yield func(string, string) bool) {
		for _, k := range t.order {
			if !yield(k, t.values[k]) {
				return
			}
		}
	}
}

// Keys returns the keys in insertion order.
func (t Tags) Keys() []string {
	return slices.Clone(t.order)
}
