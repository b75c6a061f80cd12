package matroska

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/simonhull/attachmeta/internal/binary"
	"github.com/simonhull/attachmeta/internal/registry"
	"github.com/simonhull/attachmeta/internal/types"
)

// Matroska TrackType values.
// Subtitle (0x11), logo, buttons, control and metadata tracks map to
// KindOther.
const (
	trackTypeVideo = 1
	trackTypeAudio = 2
)

// parser implements registry.TrackScanner for Matroska and WebM.
type parser struct{}

// walk holds the state of one Segment walk.
type walk struct {
	sr        *binary.SafeReader
	container *types.Container

	media       []types.Track
	attachments []types.Track

	segmentData int64
	seeks       map[uint32]int64
	visited     map[uint32]bool
}

// Scan walks the EBML header and the Segment's level-1 elements.
func (p *parser) Scan(sr *binary.SafeReader) (*types.Container, error) {
	header, err := readElement(sr, 0)
	if err != nil {
		return nil, fmt.Errorf("read EBML header: %w", err)
	}
	if header.ID != idEBML {
		return nil, &types.CorruptedFileError{
			Path:   sr.Path(),
			Offset: 0,
			Reason: "missing EBML header",
		}
	}

	format, err := readDocType(sr, header)
	if err != nil {
		return nil, err
	}

	c := &types.Container{
		Path:   sr.Path(),
		Format: format,
		Size:   sr.Size(),
	}

	segment, err := findSegment(sr, header.End())
	if err != nil {
		return nil, err
	}

	w := &walk{
		sr:          sr,
		container:   c,
		segmentData: segment.DataOffset,
		seeks:       make(map[uint32]int64),
		visited:     make(map[uint32]bool),
	}

	end := segment.End()
	if segment.UnknownSize || end > sr.Size() {
		if !segment.UnknownSize {
			c.Warn("header", segment.Offset, "segment claims %d bytes, file ends at %d", segment.Size, sr.Size())
		}
		end = sr.Size()
	}

	if err := w.walkSegment(segment.DataOffset, end); err != nil {
		return nil, err
	}
	if err := w.followSeeks(); err != nil {
		return nil, err
	}

	for _, t := range w.media {
		c.AddTrack(t)
	}
	for _, t := range w.attachments {
		c.AddTrack(t)
	}
	return c, nil
}

// readDocType returns FormatWebM or FormatMatroska from the EBML header.
func readDocType(sr *binary.SafeReader, header element) (types.Format, error) {
	docType := "matroska"
	err := forEachChild(sr, header, func(child element) error {
		if child.ID != idDocType {
			return nil
		}
		s, err := readString(sr, child)
		if err != nil {
			return err
		}
		docType = s
		return nil
	})
	if err != nil {
		return types.FormatUnknown, fmt.Errorf("read EBML header: %w", err)
	}

	switch docType {
	case "matroska":
		return types.FormatMatroska, nil
	case "webm":
		return types.FormatWebM, nil
	default:
		return types.FormatUnknown, &types.UnsupportedFormatError{
			Path:   sr.Path(),
			Reason: fmt.Sprintf("EBML DocType %q", docType),
		}
	}
}

// findSegment locates the Segment element, skipping Void padding.
func findSegment(sr *binary.SafeReader, off int64) (element, error) {
	for {
		el, err := readElement(sr, off)
		if err != nil {
			return element{}, fmt.Errorf("read segment header: %w", err)
		}
		switch el.ID {
		case idSegment:
			return el, nil
		case idVoid, idCRC32:
			off = el.End()
		default:
			return element{}, &types.CorruptedFileError{
				Path:   sr.Path(),
				Offset: el.Offset,
				Reason: fmt.Sprintf("expected Segment, found element 0x%X", el.ID),
			}
		}
	}
}

// walkSegment visits level-1 elements linearly until end or an element of
// unknown size.
func (w *walk) walkSegment(off, end int64) error {
	for off < end {
		el, err := readElement(w.sr, off)
		if err != nil {
			if binary.IsContextErr(err) {
				return err
			}
			w.container.Warn("header", off, "stopped at unreadable element: %v", err)
			return nil
		}

		if el.UnknownSize {
			// Only the Cluster is allowed here; its end can only be found by
			// parsing blocks, which the seek index makes unnecessary.
			if el.ID != idCluster {
				w.container.Warn("header", el.Offset, "element 0x%X has unknown size", el.ID)
			}
			return nil
		}

		if el.End() > end {
			w.container.Warn("header", el.Offset, "element 0x%X truncated", el.ID)
		}

		if err := w.visit(el); err != nil {
			return err
		}
		off = el.End()
	}
	return nil
}

// visit dispatches one level-1 element.
func (w *walk) visit(el element) error {
	switch el.ID {
	case idSeekHead:
		if err := w.readSeekHead(el); err != nil {
			if binary.IsContextErr(err) {
				return err
			}
			w.container.Warn("header", el.Offset, "seek head: %v", err)
		}

	case idTracks:
		if w.visited[idTracks] {
			return nil
		}
		w.visited[idTracks] = true
		tracks, err := w.readTracks(el)
		if err != nil {
			return fmt.Errorf("read tracks: %w", err)
		}
		w.media = tracks

	case idAttachments:
		if w.visited[idAttachments] {
			return nil
		}
		w.visited[idAttachments] = true
		files, err := w.readAttachments(el)
		w.attachments = files
		if err != nil {
			if binary.IsContextErr(err) {
				return err
			}
			w.container.Warn("attachments", el.Offset, "attachments truncated after %d files: %v", len(files), err)
		}
	}
	return nil
}

// readSeekHead records the positions of level-1 elements.
func (w *walk) readSeekHead(el element) error {
	return forEachChild(w.sr, el, func(seek element) error {
		if seek.ID != idSeek {
			return nil
		}
		var (
			id  uint32
			pos int64 = -1
		)
		err := forEachChild(w.sr, seek, func(child element) error {
			switch child.ID {
			case idSeekID:
				v, err := readUint(w.sr, child)
				if err != nil {
					return err
				}
				id = uint32(v)
			case idSeekPosition:
				v, err := readUint(w.sr, child)
				if err != nil {
					return err
				}
				pos = int64(v)
			}
			return nil
		})
		if err != nil {
			return err
		}
		if id != 0 && pos >= 0 {
			if _, ok := w.seeks[id]; !ok {
				w.seeks[id] = pos
			}
		}
		return nil
	})
}

// followSeeks visits Tracks and Attachments the linear walk did not reach.
func (w *walk) followSeeks() error {
	for _, id := range []uint32{idTracks, idAttachments} {
		if w.visited[id] {
			continue
		}
		pos, ok := w.seeks[id]
		if !ok {
			continue
		}

		off := w.segmentData + pos
		el, err := readElement(w.sr, off)
		if err != nil {
			if binary.IsContextErr(err) {
				return err
			}
			w.container.Warn("header", off, "seek target 0x%X unreadable: %v", id, err)
			continue
		}
		if el.ID != id {
			w.container.Warn("header", off, "seek target is 0x%X, expected 0x%X", el.ID, id)
			continue
		}
		if err := w.visit(el); err != nil {
			return err
		}
	}
	return nil
}

// readTracks builds one Track per TrackEntry.
func (w *walk) readTracks(el element) ([]types.Track, error) {
	var tracks []types.Track
	err := forEachChild(w.sr, el, func(entry element) error {
		if entry.ID != idTrackEntry {
			return nil
		}
		t, err := w.readTrackEntry(entry)
		if err != nil {
			return err
		}
		tracks = append(tracks, t)
		return nil
	})
	return tracks, err
}

func (w *walk) readTrackEntry(entry element) (types.Track, error) {
	var (
		t        types.Track
		lang     string
		bcp47    string
		number   uint64
		kindCode uint64
	)
	err := forEachChild(w.sr, entry, func(child element) error {
		var err error
		switch child.ID {
		case idTrackNumber:
			number, err = readUint(w.sr, child)
		case idTrackType:
			kindCode, err = readUint(w.sr, child)
		case idCodecID:
			t.Codec, err = readString(w.sr, child)
		case idName:
			var name string
			if name, err = readString(w.sr, child); err == nil {
				t.Tags.Set(types.TagTitle, name)
			}
		case idLanguage:
			lang, err = readString(w.sr, child)
		case idLanguageBCP47:
			bcp47, err = readString(w.sr, child)
		}
		return err
	})
	if err != nil {
		return types.Track{}, err
	}

	switch {
	case bcp47 != "":
		t.Tags.Set(types.TagLanguage, bcp47)
	case lang != "":
		t.Tags.Set(types.TagLanguage, lang)
	}
	if number != 0 {
		t.Tags.Set("number", strconv.FormatUint(number, 10))
	}
	t.Kind = trackKind(kindCode)
	return t, nil
}

// trackKind maps a TrackType to a media kind.
func trackKind(code uint64) types.MediaKind {
	switch code {
	case trackTypeVideo:
		return types.KindVideo
	case trackTypeAudio:
		return types.KindAudio
	default:
		return types.KindOther
	}
}

// readAttachments builds one Track per AttachedFile. On error it returns
// the files read before the damaged one.
func (w *walk) readAttachments(el element) ([]types.Track, error) {
	var files []types.Track
	err := forEachChild(w.sr, el, func(file element) error {
		if file.ID != idAttachedFile {
			return nil
		}
		t, err := w.readAttachedFile(file)
		if err != nil {
			return err
		}
		files = append(files, t)
		return nil
	})
	return files, err
}

func (w *walk) readAttachedFile(file element) (types.Track, error) {
	var t types.Track
	err := forEachChild(w.sr, file, func(child element) error {
		var (
			s   string
			err error
		)
		switch child.ID {
		case idFileName:
			if s, err = readString(w.sr, child); err == nil {
				t.Tags.Set(types.TagFilename, s)
			}
		case idFileMimeType:
			if s, err = readString(w.sr, child); err == nil {
				t.Tags.Set(types.TagMIMEType, s)
			}
		case idFileDescription:
			if s, err = readString(w.sr, child); err == nil {
				t.Tags.Set(types.TagTitle, s)
			}
		case idFileUID:
			var uid uint64
			if uid, err = readUint(w.sr, child); err == nil {
				t.Tags.Set("uid", strconv.FormatUint(uid, 10))
			}
		case idFileData:
			t.Payload = types.RangePayload(child.DataOffset, child.Size)
		}
		return err
	})
	if err != nil {
		return types.Track{}, err
	}

	mime := t.Tags.Value(types.TagMIMEType)
	t.Codec = mime
	if strings.HasPrefix(strings.ToLower(mime), "image/") {
		t.Kind = types.KindVideo
		t.AttachedPicture = true
	} else {
		t.Kind = types.KindAttachment
	}
	return t, nil
}

func init() {
	p := &parser{}
	registry.Register(types.FormatMatroska, p)
	registry.Register(types.FormatWebM, p)
}
