package matcher

import (
	"cmp"
	"path/filepath"
	"slices"
	"strings"

	"splice/internal/audio"
	"splice/internal/cue"
	"splice/internal/textutil"
)

// AcceptThreshold is the minimum similarity for a similarity match.
const AcceptThreshold = 0.6

// Strategy tags how a track number was resolved.
type Strategy string

const (
	StrategySimilarity Strategy = "similarity"
	StrategyFallback   Strategy = "fallback"
	StrategyUnmatched  Strategy = "unmatched"
)

// MatchResult is one resolved track number. Entry is nil for files numbered
// without a cue entry; File is nil for unmatched entries.
type MatchResult struct {
	Number   int
	Entry    *cue.Track
	File     *audio.TrackFile
	Strategy Strategy
	Score    float64
}

// Result is the outcome of matching one session.
type Result struct {
	// Matches holds every outcome ordered by track number.
	Matches          []MatchResult
	UnmatchedEntries []cue.Track
	// UnmatchedFiles lists files that had no cue entry left and were appended
	// with synthetic numbers.
	UnmatchedFiles []audio.TrackFile
	UsedFallback   bool
}

// Ordered returns the matched files in track order, each carrying its assigned
// number as Ordinal and the cue title/performer when the entry has them.
func (r Result) Ordered(doc *cue.Document) []audio.TrackFile {
	files := make([]audio.TrackFile, 0, len(r.Matches))
	for _, m := range r.Matches {
		if m.File == nil {
			continue
		}
		file := *m.File
		file.Ordinal = m.Number
		if m.Entry != nil {
			if m.Entry.Title != "" {
				file.Title = m.Entry.Title
			}
			if performer := doc.TrackPerformer(*m.Entry); performer != "" {
				file.Performer = performer
			}
		}
		files = append(files, file)
	}
	return files
}

// FallbackCount returns how many files were placed by fallback.
func (r Result) FallbackCount() int {
	count := 0
	for _, m := range r.Matches {
		if m.Strategy == StrategyFallback {
			count++
		}
	}
	return count
}

type candidate struct {
	entry int
	file  int
	score float64
}

// Match pairs doc's entries with files. A nil doc numbers every file by
// filename order.
func Match(doc *cue.Document, files []audio.TrackFile) Result {
	sorted := slices.Clone(files)
	slices.SortStableFunc(sorted, compareFiles)

	if doc == nil || len(doc.Tracks) == 0 {
		return fallbackAll(sorted)
	}

	entries := doc.Tracks
	fileTaken := make([]bool, len(sorted))
	entryFile := make([]int, len(entries))
	entryScore := make([]float64, len(entries))
	for i := range entryFile {
		entryFile[i] = -1
	}

	for _, c := range rankCandidates(doc, sorted) {
		if entryFile[c.entry] >= 0 || fileTaken[c.file] {
			continue
		}
		entryFile[c.entry] = c.file
		entryScore[c.entry] = c.score
		fileTaken[c.file] = true
	}

	var result Result
	var remaining []int
	for i, taken := range fileTaken {
		if !taken {
			remaining = append(remaining, i)
		}
	}

	for i := range entries {
		entry := &entries[i]
		if idx := entryFile[i]; idx >= 0 {
			result.Matches = append(result.Matches, MatchResult{
				Number: entry.Number, Entry: entry, File: &sorted[idx],
				Strategy: StrategySimilarity, Score: entryScore[i],
			})
			continue
		}
		if len(remaining) > 0 {
			idx := remaining[0]
			remaining = remaining[1:]
			result.Matches = append(result.Matches, MatchResult{
				Number: entry.Number, Entry: entry, File: &sorted[idx], Strategy: StrategyFallback,
			})
			result.UsedFallback = true
			continue
		}
		result.Matches = append(result.Matches, MatchResult{Number: entry.Number, Entry: entry, Strategy: StrategyUnmatched})
		result.UnmatchedEntries = append(result.UnmatchedEntries, *entry)
	}

	next := entries[len(entries)-1].Number + 1
	for _, idx := range remaining {
		result.Matches = append(result.Matches, MatchResult{Number: next, File: &sorted[idx], Strategy: StrategyFallback})
		result.UnmatchedFiles = append(result.UnmatchedFiles, sorted[idx])
		result.UsedFallback = true
		next++
	}
	return result
}

func fallbackAll(sorted []audio.TrackFile) Result {
	result := Result{UsedFallback: len(sorted) > 0}
	for i := range sorted {
		result.Matches = append(result.Matches, MatchResult{Number: i + 1, File: &sorted[i], Strategy: StrategyFallback})
	}
	return result
}

// rankCandidates scores every pair and orders acceptable ones by score
// descending, then track number, then filename.
func rankCandidates(doc *cue.Document, files []audio.TrackFile) []candidate {
	fileKeys := make([]fileKey, len(files))
	for i, f := range files {
		fileKeys[i] = newFileKey(f)
	}
	var ranked []candidate
	for ei, entry := range doc.Tracks {
		ek := newEntryKey(doc, entry)
		for fi := range files {
			score := pairScore(ek, fileKeys[fi])
			if score >= AcceptThreshold {
				ranked = append(ranked, candidate{entry: ei, file: fi, score: score})
			}
		}
	}
	slices.SortStableFunc(ranked, func(a, b candidate) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		if c := cmp.Compare(doc.Tracks[a.entry].Number, doc.Tracks[b.entry].Number); c != 0 {
			return c
		}
		return compareFiles(files[a.file], files[b.file])
	})
	return ranked
}

type entryKey struct {
	title          string
	performerTitle string
	fileRef        string
}

func newEntryKey(doc *cue.Document, entry cue.Track) entryKey {
	key := entryKey{title: textutil.Normalize(entry.Title)}
	if performer := doc.TrackPerformer(entry); performer != "" && entry.Title != "" {
		key.performerTitle = textutil.Normalize(performer + " " + entry.Title)
	}
	// Per-track FILE references only identify a file when each track has its own.
	if ref, ok := doc.FileFor(entry); ok && len(doc.Files) > 1 {
		key.fileRef = strings.ToLower(filepath.Base(ref.Name))
	}
	return key
}

type fileKey struct {
	name         string
	base         string
	tagTitle     string
	tagPerformer string
}

func newFileKey(f audio.TrackFile) fileKey {
	key := fileKey{
		name:     textutil.NormalizeFileName(f.Path),
		base:     strings.ToLower(f.Name()),
		tagTitle: textutil.Normalize(f.Title),
	}
	if f.Performer != "" && f.Title != "" {
		key.tagPerformer = textutil.Normalize(f.Performer + " " + f.Title)
	}
	return key
}

func pairScore(e entryKey, f fileKey) float64 {
	if e.fileRef != "" && e.fileRef == f.base {
		return 1
	}
	return max(
		textutil.KeySimilarity(f.name, e.title),
		textutil.KeySimilarity(f.name, e.performerTitle),
		textutil.KeySimilarity(f.tagTitle, e.title),
		textutil.KeySimilarity(f.tagPerformer, e.performerTitle),
	)
}

func compareFiles(a, b audio.TrackFile) int {
	if c := strings.Compare(a.Name(), b.Name()); c != 0 {
		return c
	}
	return strings.Compare(a.Path, b.Path)
}
