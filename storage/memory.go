// Package storage provides in-memory record storage.
//
// Information Hiding:
// - Map storage structure hidden from users
// - Thread-safe access via RWMutex hidden behind interface
// - Suitable for testing and ephemeral sessions

package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/richinex/reasonloop/session"
)

// InMemoryStorage implements RecordStorage using an in-memory map.
// Records are kept encoded so callers never share slices with the store.
// Data is lost when process terminates.
type InMemoryStorage struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewInMemoryStorage creates a new in-memory storage.
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{
		records: make(map[string][]byte),
	}
}

// Save stores a record.
func (s *InMemoryStorage) Save(ctx context.Context, rec session.Record) error {
	if err := validateID(rec.ID); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = data
	return nil
}

// Load loads a record by id.
func (s *InMemoryStorage) Load(ctx context.Context, id string) (session.Record, error) {
	s.mu.RLock()
	data, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return session.Record{}, ErrNotFound
	}
	return decodeRecord(data)
}

// Delete deletes a record.
func (s *InMemoryStorage) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, id)
	return nil
}

// List returns summaries of all records, newest first.
func (s *InMemoryStorage) List(ctx context.Context) ([]Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]Summary, 0, len(s.records))
	for _, data := range s.records {
		rec, err := decodeRecord(data)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, Summarize(rec))
	}
	sortNewestFirst(summaries)
	return summaries, nil
}

// Exists checks if a record exists.
func (s *InMemoryStorage) Exists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.records[id]
	return ok, nil
}

func decodeRecord(data []byte) (session.Record, error) {
	var rec session.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return session.Record{}, fmt.Errorf("failed to decode record: %w", err)
	}
	return rec, nil
}

// Verify InMemoryStorage implements RecordStorage
var _ RecordStorage = (*InMemoryStorage)(nil)
