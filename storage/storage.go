// Package storage persists session records.
//
// Information Hiding:
// - Storage backend implementation details hidden behind interface
// - Allows swapping between memory, trace files, SQLite without API changes
// - Each storage implementation encapsulates its own data structures and protocols

package storage

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/richinex/reasonloop/session"
)

// ErrNotFound is returned by Load for an unknown record id.
var ErrNotFound = errors.New("record not found")

// RecordStorage defines the interface for storing session records.
// Saving a record with an existing id replaces it.
type RecordStorage interface {
	// Save stores a record.
	Save(ctx context.Context, rec session.Record) error

	// Load loads a record by session id. Returns ErrNotFound if it doesn't exist.
	Load(ctx context.Context, id string) (session.Record, error)

	// Delete deletes a record. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error

	// List returns summaries of all records, newest first.
	List(ctx context.Context) ([]Summary, error)

	// Exists checks if a record exists.
	Exists(ctx context.Context, id string) (bool, error)
}

// Summary is the listing form of a record.
type Summary struct {
	ID        string         `json:"id" db:"id"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	Task      string         `json:"task" db:"task"`
	Provider  string         `json:"provider" db:"provider"`
	Model     string         `json:"model" db:"model"`
	Steps     int            `json:"steps" db:"steps"`
	Status    session.Status `json:"status" db:"status"`
	CostUSD   float64        `json:"cost_usd" db:"cost_usd"`
}

// Summarize builds the summary of rec.
func Summarize(rec session.Record) Summary {
	return Summary{
		ID:        rec.ID,
		CreatedAt: rec.CreatedAt,
		Task:      rec.Task,
		Provider:  rec.Provider.Name,
		Model:     rec.Provider.Model,
		Steps:     len(rec.Steps),
		Status:    rec.Status,
		CostUSD:   rec.Totals.CostUSD,
	}
}

func sortNewestFirst(summaries []Summary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].CreatedAt.Equal(summaries[j].CreatedAt) {
			return summaries[i].ID < summaries[j].ID
		}
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
}

func validateID(id string) error {
	if id == "" {
		return errors.New("record id is required")
	}
	return nil
}
