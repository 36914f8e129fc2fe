package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/mesohops/internal/atomicio"
)

// FileStore writes one JSON file per run under a directory
type FileStore struct {
	dir string
}

// NewFileStore creates the directory if needed
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create run dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("invalid run id %q", id)
	}
	return filepath.Join(s.dir, id+".json"), nil
}

func (s *FileStore) Save(ctx context.Context, rec RunRecord) error {
	path, err := s.path(rec.ID)
	if err != nil {
		return err
	}
	err = atomicio.WriteJSONExclusive(path, rec)
	if errors.Is(err, os.ErrExist) {
		return ErrDuplicateRun
	}
	if err != nil {
		return fmt.Errorf("failed to write run %s: %w", rec.ID, err)
	}
	return nil
}

func (s *FileStore) Get(ctx context.Context, id string) (RunRecord, error) {
	path, err := s.path(id)
	if err != nil {
		return RunRecord{}, err
	}
	return readRecord(path)
}

func (s *FileStore) List(ctx context.Context, limit int) ([]RunRecord, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	recs := make([]RunRecord, 0, len(matches))
	for _, path := range matches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := readRecord(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("Skipping unreadable run file")
			continue
		}
		recs = append(recs, rec)
	}

	sortNewestFirst(recs)
	return truncate(recs, limit), nil
}

func (s *FileStore) Close() error { return nil }

func readRecord(path string) (RunRecord, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return RunRecord{}, ErrRunNotFound
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("failed to read run: %w", err)
	}

	var rec RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return RunRecord{}, fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return rec, nil
}
