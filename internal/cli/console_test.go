package cli

import (
	"testing"
	"time"

	"github.com/grantcarthew/webctl/internal/telemetry"
)

func sampleConsole() []telemetry.ConsoleMessage {
	base := time.Now()
	return []telemetry.ConsoleMessage{
		{Level: telemetry.LevelLog, Text: "starting up", Timestamp: base},
		{Level: telemetry.LevelError, Text: "undefined is not a function", Timestamp: base.Add(time.Second)},
		{Level: telemetry.LevelWarning, Text: "deprecated API", Timestamp: base.Add(2 * time.Second)},
		{Level: telemetry.LevelError, Text: "fetch failed", Timestamp: base.Add(3 * time.Second)},
	}
}

func TestFilterConsoleByLevel(t *testing.T) {
	entries := sampleConsole()

	got := filterConsoleByLevel(entries, []string{"error"})
	if len(got) != 2 {
		t.Fatalf("expected 2 error entries, got %d", len(got))
	}

	got = filterConsoleByLevel(entries, []string{"ERROR", "Warning"})
	if len(got) != 3 {
		t.Fatalf("expected 3 entries for error+warning, got %d", len(got))
	}

	got = filterConsoleByLevel(entries, []string{"debug"})
	if len(got) != 0 {
		t.Fatalf("expected 0 debug entries, got %d", len(got))
	}
}

func TestFilterConsoleByText(t *testing.T) {
	entries := sampleConsole()

	got := filterConsoleByText(entries, "undefined")
	if len(got) != 1 || got[0].Text != "undefined is not a function" {
		t.Fatalf("expected single match, got %v", got)
	}

	got = filterConsoleByText(entries, "UNDEFINED")
	if len(got) != 1 {
		t.Fatalf("expected case-insensitive match, got %d", len(got))
	}

	got = filterConsoleByText(entries, "nonexistent")
	if len(got) != 0 {
		t.Fatalf("expected no matches, got %d", len(got))
	}
}

func TestApplyConsoleLimiting(t *testing.T) {
	entries := sampleConsole()

	head, err := applyConsoleLimiting(entries, 2, 0, "")
	if err != nil || len(head) != 2 || head[0].Text != entries[0].Text {
		t.Fatalf("head: got %v, err %v", head, err)
	}

	tail, err := applyConsoleLimiting(entries, 0, 2, "")
	if err != nil || len(tail) != 2 || tail[len(tail)-1].Text != entries[len(entries)-1].Text {
		t.Fatalf("tail: got %v, err %v", tail, err)
	}

	rng, err := applyConsoleLimiting(entries, 0, 0, "2-3")
	if err != nil || len(rng) != 2 {
		t.Fatalf("range: got %v, err %v", rng, err)
	}
	if rng[0].Text != entries[1].Text || rng[1].Text != entries[2].Text {
		t.Fatalf("range picked wrong entries: %v", rng)
	}

	headOverflow, err := applyConsoleLimiting(entries, 100, 0, "")
	if err != nil || len(headOverflow) != len(entries) {
		t.Fatalf("head overflow should clamp to length, got %v", headOverflow)
	}
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		name      string
		rangeStr  string
		length    int
		wantStart int
		wantEnd   int
		wantErr   bool
	}{
		{name: "simple", rangeStr: "1-3", length: 10, wantStart: 0, wantEnd: 3},
		{name: "clamped end", rangeStr: "5-100", length: 10, wantStart: 4, wantEnd: 10},
		{name: "negative start", rangeStr: "-2-5", length: 10, wantErr: true},
		{name: "malformed", rangeStr: "abc", length: 10, wantErr: true},
		{name: "missing dash", rangeStr: "5", length: 10, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			start, end, err := parseRange(tc.rangeStr, tc.length)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got start=%d end=%d", start, end)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if start != tc.wantStart || end != tc.wantEnd {
				t.Fatalf("got start=%d end=%d, want start=%d end=%d", start, end, tc.wantStart, tc.wantEnd)
			}
		})
	}
}

func TestCountNonZero(t *testing.T) {
	if n := countNonZero(false, false, false); n != 0 {
		t.Fatalf("expected 0, got %d", n)
	}
	if n := countNonZero(true, false, true); n != 2 {
		t.Fatalf("expected 2, got %d", n)
	}
}
