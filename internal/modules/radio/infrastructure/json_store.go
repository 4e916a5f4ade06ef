package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/disgoorg/snowflake/v2"
	"github.com/sglre6355/sgrradio/internal/modules/radio/application/ports"
	"github.com/sglre6355/sgrradio/internal/modules/radio/domain"
)

// JSONStateStore persists playback intent as a single JSON object keyed by guild ID.
type JSONStateStore struct {
	mu   sync.Mutex
	path string
}

// NewJSONStateStore creates a new JSONStateStore writing to path.
func NewJSONStateStore(path string) *JSONStateStore {
	return &JSONStateStore{path: path}
}

// Load reads all records. A missing file yields an empty map.
func (s *JSONStateStore) Load(_ context.Context) (map[snowflake.ID]domain.PersistedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records := make(map[snowflake.ID]domain.PersistedRecord)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return records, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	if len(data) == 0 {
		return records, nil
	}

	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode state file: %w", err)
	}
	return records, nil
}

// Save replaces the file contents with records.
// The data is written to a temporary file first so a crash never leaves a partial file.
func (s *JSONStateStore) Save(
	_ context.Context,
	records map[snowflake.ID]domain.PersistedRecord,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if records == nil {
		records = map[snowflake.ID]domain.PersistedRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary state file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// Ensure JSONStateStore implements ports.StateStore.
var _ ports.StateStore = (*JSONStateStore)(nil)
