// Package ledger is the append-only audit log of gateway decisions.
package ledger

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"sentinelgate/pkg/guard"
	"sentinelgate/shared/logging"
)

// Record is one logged interaction. Legacy lines missing newer fields decode
// with zero values, so old logs stay readable.
type Record struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"ts"`
	Prompt      string    `json:"prompt"`
	Action      string    `json:"action"`
	ThreatType  string    `json:"threat_type"`
	ThreatScore float64   `json:"threat_score"`
	Reason      string    `json:"reason"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
}

// Ledger appends one JSON line per interaction and reads them back
// newest-first. Appends never fail the request path: a malformed decision is
// replaced by a defensive default before writing.
type Ledger struct {
	path string
	mu   sync.Mutex
}

func New(path string) *Ledger {
	return &Ledger{path: path}
}

// Append logs one prompt and its decision with a server-assigned timestamp.
func (l *Ledger) Append(prompt string, d guard.Decision) error {
	if d.Action == "" {
		// Defensive default for a malformed pipeline result.
		d = guard.Decision{
			Action:     guard.ActionError,
			ThreatType: "invalid_response",
			Reason:     "Pipeline produced an invalid decision record.",
		}
	}
	rec := Record{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		Prompt:      prompt,
		Action:      d.Action,
		ThreatType:  d.ThreatType,
		ThreatScore: d.AnomalyScore,
		Reason:      d.Reason,
		X:           d.Coords[0],
		Y:           d.Coords[1],
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	return nil
}

// Query returns all records, most recent first. A missing or empty log yields
// an empty result set; malformed lines are skipped.
func (l *Ledger) Query() ([]Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("open audit log: %w", err)
	}
	defer f.Close()

	records := []Record{}
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			logging.Warnf("skipping malformed audit line: %v", err)
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	return records, nil
}
