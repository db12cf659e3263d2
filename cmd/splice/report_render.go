package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"splice/internal/report"
)

// renderRunReport prints the per-session table followed by the run summary.
func renderRunReport(w io.Writer, rep *report.RunReport, colorize bool) {
	entries := rep.Entries()
	if len(entries) > 0 {
		rows := make([][]string, 0, len(entries))
		for _, o := range entries {
			rows = append(rows, []string{
				o.SessionID,
				string(o.Status),
				strconv.Itoa(o.Tracks),
				cueLabel(o),
				masterLabel(o),
				outcomeNotes(o),
			})
		}
		fmt.Fprintln(w, renderTable([]column{
			textCol("Session"), textCol("Status"), numCol("Tracks"),
			textCol("Cue"), textCol("Preservation Master"), textCol("Notes"),
		}, rows))
	}

	summary := rep.Summary()
	for _, line := range renderSectionHeader("Run "+rep.RunID, colorize) {
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w, renderStatusLine("Sessions", statusInfo, strconv.Itoa(summary.Total), colorize))
	fmt.Fprintln(w, renderStatusLine("Succeeded", countKind(summary.Succeeded, statusOK), strconv.Itoa(summary.Succeeded), colorize))
	fmt.Fprintln(w, renderStatusLine("Succeeded with fallback", countKind(summary.Fallback, statusWarn), strconv.Itoa(summary.Fallback), colorize))
	fmt.Fprintln(w, renderStatusLine("Partial", countKind(summary.Partial, statusWarn), strconv.Itoa(summary.Partial), colorize))
	fmt.Fprintln(w, renderStatusLine("Failed", countKind(summary.Failed, statusError), strconv.Itoa(summary.Failed), colorize))
	if len(summary.MissingCue) > 0 {
		fmt.Fprintln(w, renderStatusLine("Missing cue", statusWarn, strings.Join(summary.MissingCue, ", "), colorize))
	}
	if len(summary.Skipped) > 0 {
		fmt.Fprintln(w, renderStatusLine("Skipped", statusInfo, strings.Join(summary.Skipped, ", "), colorize))
	}

	if lines := unmatchedLines(entries, colorize); len(lines) > 0 {
		for _, line := range renderSectionHeader("Unmatched", colorize) {
			fmt.Fprintln(w, line)
		}
		for _, line := range lines {
			fmt.Fprintln(w, line)
		}
	}
}

// unmatchedLines lists, per session, the cue entries that found no file and
// the files that found no entry.
func unmatchedLines(entries []report.Outcome, colorize bool) []string {
	var lines []string
	for _, o := range entries {
		if len(o.UnmatchedEntries) > 0 {
			lines = append(lines, renderStatusLine(o.SessionID+" cue entries", statusWarn, strings.Join(o.UnmatchedEntries, ", "), colorize))
		}
		if len(o.UnmatchedFiles) > 0 {
			lines = append(lines, renderStatusLine(o.SessionID+" files", statusWarn, strings.Join(o.UnmatchedFiles, ", "), colorize))
		}
	}
	return lines
}

func countKind(n int, kind statusKind) statusKind {
	if n == 0 {
		return statusInfo
	}
	return kind
}

func cueLabel(o report.Outcome) string {
	switch {
	case o.MissingCue:
		return "missing"
	case o.CueWarning != "":
		return "malformed"
	case o.UsedFallback:
		return "positional"
	default:
		return "matched"
	}
}

func masterLabel(o report.Outcome) string {
	if o.PreservationPath == "" {
		return "-"
	}
	return filepath.Base(o.PreservationPath)
}

func outcomeNotes(o report.Outcome) string {
	var notes []string
	if o.ErrorKind != "" {
		notes = append(notes, o.ErrorKind)
	}
	if o.Error != "" && o.Status == report.StatusFailed {
		notes = append(notes, o.Error)
	}
	if n := len(o.UnmatchedEntries); n > 0 {
		notes = append(notes, fmt.Sprintf("%d unmatched cue entries", n))
	}
	if n := len(o.UnmatchedFiles); n > 0 {
		notes = append(notes, fmt.Sprintf("%d unmatched files", n))
	}
	if o.Loudness != nil {
		if o.Loudness.Copied {
			notes = append(notes, fmt.Sprintf("edit copied at %.1f LUFS", o.Loudness.MeasuredLUFS))
		} else {
			notes = append(notes, fmt.Sprintf("edit %+.1f dB to %.1f LUFS", o.Loudness.GainDB, o.Loudness.PostLUFS))
		}
	}
	return strings.Join(notes, "; ")
}
