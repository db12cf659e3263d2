package report

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestConcurrentAddAndSortedEntries(t *testing.T) {
	r := New("run-1", "/in", time.Now())
	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.Add(Outcome{SessionID: fmt.Sprintf("%06d", 999999-i), Status: StatusSucceeded})
		}()
	}
	wg.Wait()

	entries := r.Entries()
	if len(entries) != 50 {
		t.Fatalf("expected 50 entries, got %d", len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if entries[i-1].SessionID >= entries[i].SessionID {
			t.Fatalf("entries not sorted at %d: %s >= %s", i, entries[i-1].SessionID, entries[i].SessionID)
		}
	}
}

func TestAddCopiesSlices(t *testing.T) {
	r := New("run", "/in", time.Now())
	unmatched := []string{"03 Coda"}
	r.Add(Outcome{SessionID: "123456", Status: StatusSucceeded, UnmatchedEntries: unmatched})
	unmatched[0] = "changed"
	if got := r.Entries()[0].UnmatchedEntries[0]; got != "03 Coda" {
		t.Fatalf("entry mutated after insertion: %q", got)
	}
}

func TestSummaryAndExitCode(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		want     int
	}{
		{"empty", nil, ExitSuccess},
		{"all ok", []Status{StatusSucceeded, StatusSucceededWithFallback}, ExitSuccess},
		{"partial", []Status{StatusSucceeded, StatusPartial}, ExitPartial},
		{"failed wins", []Status{StatusPartial, StatusFailed, StatusSucceeded}, ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New("run", "/in", time.Now())
			for i, s := range tt.statuses {
				r.Add(Outcome{SessionID: fmt.Sprintf("10000%d", i), Status: s})
			}
			if got := r.ExitCode(); got != tt.want {
				t.Fatalf("ExitCode = %d, want %d", got, tt.want)
			}
			if r.Summary().Total != len(tt.statuses) {
				t.Fatalf("unexpected total %d", r.Summary().Total)
			}
		})
	}
}

func TestSnapshotJSON(t *testing.T) {
	r := New("run-7", "/in", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	r.Add(Outcome{SessionID: "654321", Status: StatusSucceededWithFallback, MissingCue: true, UsedFallback: true, Tracks: 3})
	r.Skip("notes")

	data, err := json.Marshal(r.Snapshot())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		RunID    string `json:"run_id"`
		ExitCode int    `json:"exit_code"`
		Summary  struct {
			Fallback   int      `json:"succeeded_with_fallback"`
			MissingCue []string `json:"missing_cue"`
			Skipped    []string `json:"skipped"`
		} `json:"summary"`
		Sessions []struct {
			Status string `json:"status"`
		} `json:"sessions"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.RunID != "run-7" || decoded.ExitCode != 0 {
		t.Fatalf("unexpected header %+v", decoded)
	}
	if decoded.Summary.Fallback != 1 || len(decoded.Summary.MissingCue) != 1 || decoded.Summary.Skipped[0] != "notes" {
		t.Fatalf("unexpected summary %+v", decoded.Summary)
	}
	if decoded.Sessions[0].Status != "succeeded-with-fallback" {
		t.Fatalf("unexpected status %q", decoded.Sessions[0].Status)
	}
}
