package anomaly

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound covers every unusable-artifact condition: missing, empty,
// checksum mismatch, undecodable, or partially populated. All of them resolve
// the same way, by retraining.
var ErrNotFound = errors.New("model state artifact not found or unusable")

// Store persists one ModelState as a single file: a sha256 checksum line
// followed by the JSON payload. Writes go through a temp file and rename so a
// crash never leaves a half-written artifact at the final path.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (s *Store) Path() string { return s.path }

// Save serializes the state and atomically replaces the artifact.
func (s *Store) Save(state *ModelState) error {
	if !state.Valid() {
		return fmt.Errorf("refusing to persist partial model state")
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal model state: %w", err)
	}
	sum := sha256.Sum256(payload)

	var buf bytes.Buffer
	buf.WriteString(hex.EncodeToString(sum[:]))
	buf.WriteByte('\n')
	buf.Write(payload)

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write model state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace model state: %w", err)
	}
	return nil
}

// Load reads the artifact back. Any corruption is reported as ErrNotFound; the
// caller clears the artifact and retrains. This path is recoverable, never
// fatal.
func (s *Store) Load() (*ModelState, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read model state: %w", err)
	}
	if len(raw) == 0 {
		return nil, ErrNotFound
	}
	idx := bytes.IndexByte(raw, '\n')
	if idx != sha256.Size*2 {
		return nil, ErrNotFound
	}
	payload := raw[idx+1:]
	sum := sha256.Sum256(payload)
	if hex.EncodeToString(sum[:]) != string(raw[:idx]) {
		return nil, ErrNotFound
	}
	var state ModelState
	if err := json.Unmarshal(payload, &state); err != nil {
		return nil, ErrNotFound
	}
	if !state.Valid() {
		return nil, ErrNotFound
	}
	return &state, nil
}

// Clear removes the artifact, tolerating its absence.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove model state: %w", err)
	}
	return nil
}
