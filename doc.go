// Package attachmeta finds embedded attachments in media containers.
//
// An attachment is any file a container carries next to its streams:
// cover art, subtitle fonts, attached documents. attachmeta parses the
// container directly, without a demuxing engine, and returns the bytes
// together with the filename and MIME type the container records.
//
// # Quick Start
//
//	a, err := attachmeta.FindFirstAttachment(ctx, "movie.mkv")
//	if err != nil {
//		log.Fatal(err)
//	}
//	if a == nil {
//		fmt.Println("no attachment")
//		return
//	}
//	fmt.Println(a) // cover.jpg (600x600 JPEG, 48KB)
//
// # Supported Formats
//
//   - Matroska and WebM: Attachments/AttachedFile elements
//   - MP4, M4A and QuickTime: covr cover art in the iTunes metadata list
//   - MP3: ID3v2.2 to 2.4 APIC/PIC pictures and GEOB/GEO objects
//   - FLAC: PICTURE metadata blocks
//   - Ogg (Vorbis, Opus, Theora, FLAC, Speex): METADATA_BLOCK_PICTURE comments
//
// # How a Scan Works
//
// Every format is reduced to a list of tracks in the order the container
// declares them. A track qualifies when the container marks it as an
// attached picture or an attachment and it carries at least one byte. The
// first qualifying track wins; its filename and mimetype tags fill the
// result, and are left empty when the container does not record them.
//
// Only the structural index is read. Payload bytes are copied out of the
// source for the winning track alone, and the returned Data never aliases
// internal buffers.
//
// # Outcomes
//
//   - (*Attachment, nil): an attachment was found
//   - (nil, nil): the container has no qualifying track
//   - *OpenError: the path is missing, unreadable, a directory or empty
//   - *ParseError: the container is unrecognised or its header is damaged
//
// Damage past the structural index does not fail a scan. Tracks found
// before the damage are kept and the damage is recorded as a Warning on the
// Container returned by Probe. WithStrictParsing turns warnings into errors.
//
// # Concurrency
//
// A Scanner is safe for concurrent use. FindMany scans many paths with a
// bounded number of open files:
//
//	s := attachmeta.New(attachmeta.WithConcurrency(8))
//	results, err := s.FindMany(ctx, paths...)
//
// Cancellation is checked before every read, so a cancelled context stops
// a scan at the next read and closes the file.
package attachmeta
