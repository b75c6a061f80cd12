// Package vorbis provides shared Vorbis comment and picture block parsing.
//
// Vorbis comments are used by both FLAC and Ogg streams (Vorbis, Opus,
// FLAC-in-Ogg). The layout is identical: little-endian lengths followed by
// UTF-8 strings in "KEY=VALUE" format. Pictures use the FLAC PICTURE block
// layout, embedded directly in FLAC and base64-encoded in Ogg comments.
package vorbis

import (
	"fmt"
	"strings"

	"github.com/simonhull/attachmeta/internal/binary"
	"github.com/simonhull/attachmeta/internal/types"
)

// PictureKey is the comment that carries a base64 FLAC picture block.
const PictureKey = "METADATA_BLOCK_PICTURE"

// Comment is one "KEY=VALUE" entry. Keys are compared case-insensitively.
type Comment struct {
	Key   string
	Value string
}

// ParseComment parses a single Vorbis comment in "KEY=VALUE" format.
//
// Returns an error if the comment is not in valid "KEY=VALUE" format.
func ParseComment(comment string) (Comment, error) {
	key, value, ok := strings.Cut(comment, "=")
	if !ok || key == "" {
		return Comment{}, fmt.Errorf("missing '=' in comment: %.40s", comment)
	}
	return Comment{Key: strings.ToUpper(key), Value: value}, nil
}

// ReadComments reads a comment header that starts at off and must end by
// off+length: vendor string, comment count, then each comment.
//
// Malformed entries are skipped and reported through warn. Comments read
// before a truncation are returned along with the error.
func ReadComments(sr *binary.SafeReader, off, length int64, warn func(string)) (string, []Comment, error) {
	end := off + length
	r := binary.NewReader(sr, off)

	vendor, err := readString(r, end, "vendor string")
	if err != nil {
		return "", nil, err
	}

	count, err := readUint32LE(r, "number of comments")
	if err != nil {
		return vendor, nil, err
	}

	var comments []Comment
	for i := range count {
		s, err := readString(r, end, fmt.Sprintf("comment %d", i))
		if err != nil {
			return vendor, comments, err
		}
		c, err := ParseComment(s)
		if err != nil {
			if warn != nil {
				warn(err.Error())
			}
			continue
		}
		comments = append(comments, c)
	}
	return vendor, comments, nil
}

// readUint32LE reads a little-endian uint32 and advances r.
func readUint32LE(r *binary.Reader, what string) (uint32, error) {
	v, err := binary.ReadLE[uint32](r.SafeReader, r.Offset(), what)
	if err != nil {
		return 0, err
	}
	r.Skip(4)
	return v, nil
}

// readString reads a little-endian length-prefixed string.
func readString(r *binary.Reader, end int64, what string) (string, error) {
	n, err := readUint32LE(r, what+" length")
	if err != nil {
		return "", err
	}

	if r.Offset()+int64(n) > end {
		return "", fmt.Errorf("%s length %d exceeds comment block", what, n)
	}
	return r.ReadString(int(n), what)
}

// StreamTags maps the descriptive comments of a stream to track tags.
func StreamTags(comments []Comment) types.Tags {
	var tags types.Tags
	for _, c := range comments {
		switch c.Key {
		case "TITLE":
			tags.Set(types.TagTitle, c.Value)
		case "LANGUAGE":
			tags.Set(types.TagLanguage, c.Value)
		case "COMMENT", "DESCRIPTION":
			tags.Set(types.TagComment, c.Value)
		}
	}
	return tags
}
