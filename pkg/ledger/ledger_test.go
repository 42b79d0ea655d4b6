package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"sentinelgate/pkg/guard"
)

func TestQueryMissingFile(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "absent.jsonl"))
	records, err := l.Query()
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty result set, got %d records", len(records))
	}
}

func TestAppendAndQueryNewestFirst(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "log.jsonl"))
	prompts := []string{"first", "second", "third"}
	for _, p := range prompts {
		err := l.Append(p, guard.Decision{
			Action:       guard.ActionAllowed,
			ThreatType:   guard.ThreatNone,
			Reason:       "ok",
			AnomalyScore: 0.05,
			Coords:       [2]float64{1.25, -2.5},
		})
		if err != nil {
			t.Fatalf("append %q: %v", p, err)
		}
	}

	records, err := l.Query()
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(records) != len(prompts) {
		t.Fatalf("expected %d records, got %d", len(prompts), len(records))
	}
	for i := 1; i < len(records); i++ {
		if records[i].Timestamp.After(records[i-1].Timestamp) {
			t.Error("records not sorted newest-first")
		}
	}
	for _, rec := range records {
		if rec.ID == "" {
			t.Error("record missing assigned id")
		}
		if rec.X != 1.25 || rec.Y != -2.5 {
			t.Errorf("coordinates did not round-trip: %f,%f", rec.X, rec.Y)
		}
	}
}

func TestAppendDefensiveDefault(t *testing.T) {
	l := New(filepath.Join(t.TempDir(), "log.jsonl"))
	// A decision with no action is a malformed pipeline result.
	if err := l.Append("prompt", guard.Decision{}); err != nil {
		t.Fatalf("append: %v", err)
	}
	records, err := l.Query()
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Action != guard.ActionError {
		t.Errorf("expected defensive error action, got %q", records[0].Action)
	}
	if records[0].ThreatScore != 0 {
		t.Errorf("expected zero score, got %f", records[0].ThreatScore)
	}
}

func TestQueryToleratesLegacyAndMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "log.jsonl")
	legacy := `{"ts":"2024-01-02T03:04:05Z","prompt":"old","action":"allowed"}` + "\n" +
		"not json at all\n" +
		`{"id":"abc","ts":"2025-06-07T08:09:10Z","prompt":"new","action":"blocked","threat_type":"hacking","threat_score":-0.2,"reason":"r","x":0.1,"y":0.2}` + "\n"
	if err := os.WriteFile(path, []byte(legacy), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	records, err := New(path).Query()
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records (malformed skipped), got %d", len(records))
	}
	if records[0].Prompt != "new" {
		t.Errorf("expected newest record first, got %q", records[0].Prompt)
	}
	old := records[1]
	if old.ID != "" || old.ThreatType != "" || old.ThreatScore != 0 || old.X != 0 {
		t.Errorf("legacy fields must default to zero values, got %+v", old)
	}
}
