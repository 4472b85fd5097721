package progressmodule

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/hashicorp/go-hclog"

	"github.com/mantonx/playra/internal/storage"
)

// Store reads and writes the progress record through the storage provider.
type Store struct {
	provider storage.Provider
	fileName string
	logger   hclog.Logger
}

// NewStore creates a store bound to one session root.
func NewStore(provider storage.Provider, fileName string, logger hclog.Logger) *Store {
	return &Store{
		provider: provider,
		fileName: fileName,
		logger:   logger.Named("progress-store"),
	}
}

// Load reads the persisted record. A missing or unparsable file is an
// expected outcome and yields (nil, nil); only genuine I/O trouble beyond
// "not there" is logged, and even that never fails the caller.
func (s *Store) Load() *PersistedProgress {
	f, err := s.provider.Open(s.fileName)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Debug("progress file unreadable, starting fresh", "error", err)
		}
		return nil
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		s.logger.Warn("failed to read progress file, starting fresh", "error", err)
		return nil
	}

	var record PersistedProgress
	if err := json.Unmarshal(data, &record); err != nil {
		s.logger.Warn("malformed progress file, starting fresh", "error", err)
		return nil
	}
	return &record
}

// Save serializes the record and atomically replaces the progress file.
func (s *Store) Save(record PersistedProgress) error {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode progress record: %w", err)
	}
	if err := s.provider.WriteFileAtomic(s.fileName, data); err != nil {
		return fmt.Errorf("failed to write progress record: %w", err)
	}
	return nil
}

// Clear removes the progress file. Used when the user starts over in a new
// folder.
func (s *Store) Clear() error {
	return s.provider.Remove(s.fileName)
}
