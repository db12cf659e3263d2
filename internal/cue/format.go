package cue

import (
	"fmt"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// Remark keys written into regenerated sheets so a split can restore exact
// sample boundaries even when track lengths are not frame aligned.
const (
	RemarkSampleRate   = "SAMPLE_RATE"
	RemarkSampleOffset = "SAMPLE_OFFSET"
)

// Boundary places one track inside a joined master.
type Boundary struct {
	Number    int
	Title     string
	Performer string
	// Offset is the first sample of the track within the master.
	Offset int64
}

// Meta carries disc-level fields for a regenerated sheet.
type Meta struct {
	Title     string
	Performer string
	Remarks   []Remark
}

// Regenerate builds a single-FILE document for a joined master with
// cumulative INDEX 01 positions.
func Regenerate(meta Meta, masterName, fileType string, sampleRate int, boundaries []Boundary) *Document {
	doc := &Document{
		Title:     meta.Title,
		Performer: meta.Performer,
		Files:     []FileRef{{Name: masterName, Type: fileType}},
		Remarks:   slices.Clone(meta.Remarks),
	}
	if sampleRate > 0 {
		doc.Remarks = append(doc.Remarks, Remark{Key: RemarkSampleRate, Value: strconv.Itoa(sampleRate)})
	}
	for _, b := range boundaries {
		track := Track{
			Number:    b.Number,
			Title:     b.Title,
			Performer: b.Performer,
			Indexes:   map[int]Timestamp{1: TimestampFromSamples(b.Offset, sampleRate)},
			File:      0,
		}
		if sampleRate > 0 {
			track.Remarks = []Remark{{Key: RemarkSampleOffset, Value: strconv.FormatInt(b.Offset, 10)}}
		}
		doc.Tracks = append(doc.Tracks, track)
	}
	return doc
}

// ToCueText renders the regenerated sheet for a joined master.
func ToCueText(meta Meta, masterName, fileType string, sampleRate int, boundaries []Boundary) string {
	return Format(Regenerate(meta, masterName, fileType, sampleRate, boundaries))
}

// Format renders a document as cue sheet text.
func Format(doc *Document) string {
	if doc == nil {
		return ""
	}
	var b strings.Builder
	for _, remark := range doc.Remarks {
		writeRemark(&b, "", remark)
	}
	if doc.Performer != "" {
		fmt.Fprintf(&b, "PERFORMER %s\n", quote(doc.Performer))
	}
	if doc.Title != "" {
		fmt.Fprintf(&b, "TITLE %s\n", quote(doc.Title))
	}
	currentFile := -1
	for _, track := range doc.Tracks {
		if track.File >= 0 && track.File < len(doc.Files) && track.File != currentFile {
			ref := doc.Files[track.File]
			kind := ref.Type
			if kind == "" {
				kind = FileTypeFor(ref.Name)
			}
			fmt.Fprintf(&b, "FILE %s %s\n", quote(ref.Name), kind)
			currentFile = track.File
		}
		fmt.Fprintf(&b, "  TRACK %02d AUDIO\n", track.Number)
		if track.Title != "" {
			fmt.Fprintf(&b, "    TITLE %s\n", quote(track.Title))
		}
		if track.Performer != "" {
			fmt.Fprintf(&b, "    PERFORMER %s\n", quote(track.Performer))
		}
		for _, remark := range track.Remarks {
			writeRemark(&b, "    ", remark)
		}
		numbers := make([]int, 0, len(track.Indexes))
		for n := range track.Indexes {
			numbers = append(numbers, n)
		}
		slices.Sort(numbers)
		for _, n := range numbers {
			fmt.Fprintf(&b, "    INDEX %02d %s\n", n, track.Indexes[n])
		}
	}
	return b.String()
}

// FileTypeFor returns the FILE type keyword for a media filename.
func FileTypeFor(name string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "mp3":
		return "MP3"
	case "aif", "aiff":
		return "AIFF"
	case "bin", "raw":
		return "BINARY"
	default:
		return "WAVE"
	}
}

func writeRemark(b *strings.Builder, indent string, remark Remark) {
	value := remark.Value
	if strings.ContainsAny(value, " \t") {
		value = quote(value)
	}
	fmt.Fprintf(b, "%sREM %s %s\n", indent, remark.Key, value)
}

func quote(value string) string {
	return `"` + value + `"`
}
