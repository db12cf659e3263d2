package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"splice/internal/history"
	"splice/internal/report"
)

func buildRunRows(runs []history.Run) [][]string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		exit := "-"
		duration := "running"
		if run.Finished {
			exit = strconv.Itoa(run.ExitCode)
			duration = formatDuration(run.FinishedAt.Sub(run.StartedAt))
		}
		rows = append(rows, []string{
			formatRunID(run.ID),
			formatDisplayTime(run.StartedAt),
			duration,
			strconv.Itoa(run.Summary.Total),
			strconv.Itoa(run.Summary.Succeeded),
			strconv.Itoa(run.Summary.Fallback),
			strconv.Itoa(run.Summary.Partial),
			strconv.Itoa(run.Summary.Failed),
			exit,
		})
	}
	return rows
}

func buildSessionRows(records []history.SessionRecord, withRun bool) [][]string {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		row := []string{rec.SessionID}
		if withRun {
			row = append(row, formatRunID(rec.RunID))
		}
		notes := rec.ErrorKind
		if rec.Error != "" && rec.Status == report.StatusFailed {
			notes = strings.TrimSpace(notes + " " + rec.Error)
		}
		if rec.MissingCue {
			notes = strings.TrimSpace(notes + " missing cue")
		}
		row = append(row,
			string(rec.Status),
			formatDisplayTime(rec.StartedAt),
			formatLUFS(rec.MeasuredLUFS),
			formatGain(rec.GainDB),
			notes,
		)
		rows = append(rows, row)
	}
	return rows
}

func formatRunID(id string) string {
	id = strings.TrimSpace(id)
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatDisplayTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04")
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "0s"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(time.Second).String()
}

func formatLUFS(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *v)
}

func formatGain(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%+.2f dB", *v)
}
