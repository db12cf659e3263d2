package cue

import "strings"

// FileRef is a FILE directive: the referenced name and its declared type.
type FileRef struct {
	Name string
	Type string
}

// Remark is a REM directive split into key and value.
type Remark struct {
	Key   string
	Value string
}

// Track is one TRACK entry.
type Track struct {
	Number    int
	Title     string
	Performer string
	// Indexes maps index number to position within the track's file.
	Indexes map[int]Timestamp
	// File is the position in Document.Files that INDEX 01 refers to, or -1.
	File    int
	Remarks []Remark
}

// Start returns the INDEX 01 position.
func (t Track) Start() Timestamp {
	return t.Indexes[1]
}

// Pregap returns the INDEX 00 position when present.
func (t Track) Pregap() (Timestamp, bool) {
	ts, ok := t.Indexes[0]
	return ts, ok
}

// Remark returns the first REM value recorded under key.
func (t Track) Remark(key string) (string, bool) {
	return lookupRemark(t.Remarks, key)
}

// Document is a parsed cue sheet.
type Document struct {
	Title     string
	Performer string
	Files     []FileRef
	Tracks    []Track
	Remarks   []Remark
}

// Remark returns the first disc-level REM value recorded under key.
func (d *Document) Remark(key string) (string, bool) {
	if d == nil {
		return "", false
	}
	return lookupRemark(d.Remarks, key)
}

// FileFor returns the FILE entry the track's INDEX 01 refers to.
func (d *Document) FileFor(track Track) (FileRef, bool) {
	if d == nil || track.File < 0 || track.File >= len(d.Files) {
		return FileRef{}, false
	}
	return d.Files[track.File], true
}

// TrackPerformer returns the track performer, falling back to the disc performer.
func (d *Document) TrackPerformer(track Track) string {
	if track.Performer != "" || d == nil {
		return track.Performer
	}
	return d.Performer
}

func lookupRemark(remarks []Remark, key string) (string, bool) {
	for _, remark := range remarks {
		if strings.EqualFold(remark.Key, key) {
			return remark.Value, true
		}
	}
	return "", false
}
