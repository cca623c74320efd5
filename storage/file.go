// Package storage provides JSON trace file storage.
//
// Information Hiding:
// - File naming scheme and atomic writes hidden behind interface
// - One human-readable JSON document per session

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/richinex/reasonloop/session"
)

const (
	tracePrefix     = "trace_"
	traceExt        = ".json"
	traceTimeLayout = "20060102_150405"
)

// FileStorage implements RecordStorage with one trace file per session:
// <dir>/trace_<YYYYMMDD_HHMMSS>_<id>.json, timestamped with the record's
// creation time in UTC.
type FileStorage struct {
	dir string
	mu  sync.Mutex
}

// NewFileStorage creates a file storage rooted at dir. The directory is
// created on first save.
func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{dir: dir}
}

// Dir returns the directory the traces are written to.
func (s *FileStorage) Dir() string {
	return s.dir
}

// TraceName returns the file name used for rec.
func TraceName(rec session.Record) string {
	return tracePrefix + rec.CreatedAt.UTC().Format(traceTimeLayout) + "_" + rec.ID + traceExt
}

// Save writes the trace file for rec, replacing any earlier trace of the
// same session.
func (s *FileStorage) Save(ctx context.Context, rec session.Record) error {
	if err := validateFileID(rec.ID); err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create trace directory: %w", err)
	}
	path := filepath.Join(s.dir, TraceName(rec))

	tmp, err := os.CreateTemp(s.dir, ".trace-*")
	if err != nil {
		return fmt.Errorf("failed to create trace file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write trace file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write trace file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write trace file: %w", err)
	}

	stale, err := s.paths(rec.ID)
	if err != nil {
		return err
	}
	for _, p := range stale {
		if p != path {
			_ = os.Remove(p)
		}
	}
	return nil
}

// Load reads the trace of session id.
func (s *FileStorage) Load(ctx context.Context, id string) (session.Record, error) {
	if err := validateFileID(id); err != nil {
		return session.Record{}, err
	}
	paths, err := s.paths(id)
	if err != nil {
		return session.Record{}, err
	}
	if len(paths) == 0 {
		return session.Record{}, ErrNotFound
	}
	return readTrace(paths[len(paths)-1])
}

// ReadTrace reads a trace file by path.
func ReadTrace(path string) (session.Record, error) {
	return readTrace(path)
}

func readTrace(path string) (session.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return session.Record{}, fmt.Errorf("failed to read trace file: %w", err)
	}
	rec, err := decodeRecord(data)
	if err != nil {
		return session.Record{}, fmt.Errorf("%s: %w", path, err)
	}
	return rec, nil
}

// Delete removes every trace of session id.
func (s *FileStorage) Delete(ctx context.Context, id string) error {
	if err := validateFileID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	paths, err := s.paths(id)
	if err != nil {
		return err
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to delete trace file: %w", err)
		}
	}
	return nil
}

// List returns summaries of all traces in the directory, newest first.
// Files that are not valid traces are skipped.
func (s *FileStorage) List(ctx context.Context) ([]Summary, error) {
	paths, err := filepath.Glob(filepath.Join(s.dir, tracePrefix+"*"+traceExt))
	if err != nil {
		return nil, fmt.Errorf("failed to list traces: %w", err)
	}

	summaries := make([]Summary, 0, len(paths))
	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := readTrace(p)
		if err != nil {
			continue
		}
		summaries = append(summaries, Summarize(rec))
	}
	sortNewestFirst(summaries)
	return summaries, nil
}

// Exists checks if a trace of session id exists.
func (s *FileStorage) Exists(ctx context.Context, id string) (bool, error) {
	if err := validateFileID(id); err != nil {
		return false, err
	}
	paths, err := s.paths(id)
	if err != nil {
		return false, err
	}
	return len(paths) > 0, nil
}

// paths returns the trace files of session id in name order.
func (s *FileStorage) paths(id string) ([]string, error) {
	pattern := filepath.Join(s.dir, tracePrefix+strings.Repeat("?", len(traceTimeLayout))+"_"+id+traceExt)
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to find trace: %w", err)
	}
	return paths, nil
}

func validateFileID(id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if strings.ContainsAny(id, `/\*?[]`) || id == "." || id == ".." {
		return fmt.Errorf("invalid record id %q", id)
	}
	return nil
}

// Verify FileStorage implements RecordStorage
var _ RecordStorage = (*FileStorage)(nil)
