// Package session discovers disc session directories and the track files and
// cue sheet inside them.
package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"splice/internal/audio"
	"splice/internal/cue"
	"splice/internal/services"
)

var (
	idPattern      = regexp.MustCompile(`^[0-9]{6}$`)
	ordinalPattern = regexp.MustCompile(`[0-9]+`)
)

// Prober reads track metadata. audio.Toolkit satisfies it.
type Prober interface {
	Probe(ctx context.Context, path string) (audio.TrackFile, error)
}

// DiscSession is one disc's extraction output.
type DiscSession struct {
	id      string
	Root    string
	Tracks  []audio.TrackFile
	CuePath string
	Cue     *cue.Document
	// CueErr records why a present cue sheet could not be used.
	CueErr error
	// ExtraCues lists additional cue sheets that were ignored.
	ExtraCues []string
	// Artifacts lists every regular file found in Root, tracks and cue included.
	Artifacts []string
}

// ID returns the six-digit session identifier.
func (s *DiscSession) ID() string { return s.id }

// HasCue reports whether a usable cue document was loaded.
func (s *DiscSession) HasCue() bool { return s.Cue != nil }

// ValidID reports whether name is a six-digit session identifier.
func ValidID(name string) bool {
	return idPattern.MatchString(name)
}

// New builds a session for an already-known directory without scanning it.
func New(root string) (*DiscSession, error) {
	id := filepath.Base(filepath.Clean(root))
	if !ValidID(id) {
		return nil, services.Wrap(services.ErrConfiguration, "discover", "session id",
			fmt.Sprintf("%q is not a six-digit session directory", id), nil)
	}
	return &DiscSession{id: id, Root: root}, nil
}

// Discover scans root for track files and at most one cue sheet. Track files
// are probed so later stages know their format and length. A missing or
// unreadable cue sheet is not an error; CueErr carries the reason instead.
func Discover(ctx context.Context, root string, prober Prober) (*DiscSession, error) {
	s, err := New(root)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, services.Wrap(services.ErrIOFailure, "discover", "read dir", root, err)
	}

	var cues []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(root, name)
		s.Artifacts = append(s.Artifacts, path)
		switch {
		case strings.EqualFold(filepath.Ext(name), ".cue"):
			cues = append(cues, path)
		case audio.IsTrackFile(name):
			if err := ctx.Err(); err != nil {
				return nil, services.Wrap(services.ErrAborted, "discover", "probe", s.id, err)
			}
			track, err := prober.Probe(ctx, path)
			if err != nil {
				return nil, err
			}
			track.Path = path
			track.Ordinal = InferOrdinal(name)
			s.Tracks = append(s.Tracks, track)
		}
	}
	slices.SortFunc(s.Tracks, func(a, b audio.TrackFile) int {
		return strings.Compare(a.Name(), b.Name())
	})

	if len(cues) > 0 {
		slices.Sort(cues)
		s.CuePath = cues[0]
		s.ExtraCues = cues[1:]
		doc, err := cue.ReadFile(s.CuePath)
		if err != nil {
			s.CueErr = err
		} else {
			s.Cue = doc
		}
	}
	return s, nil
}

// InferOrdinal returns the first number in a filename, or 0 when none exists.
func InferOrdinal(name string) int {
	match := ordinalPattern.FindString(filepath.Base(name))
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return n
}

// ListDirs returns the six-digit session directories under inputRoot, sorted,
// and the names of entries that were skipped.
func ListDirs(inputRoot string) (sessions []string, skipped []string, err error) {
	entries, err := os.ReadDir(inputRoot)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, services.Wrap(services.ErrConfiguration, "discover", "input root", inputRoot+" does not exist", err)
		}
		return nil, nil, services.Wrap(services.ErrIOFailure, "discover", "read input root", inputRoot, err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if entry.IsDir() && ValidID(name) {
			sessions = append(sessions, filepath.Join(inputRoot, name))
			continue
		}
		skipped = append(skipped, name)
	}
	slices.Sort(sessions)
	return sessions, skipped, nil
}
