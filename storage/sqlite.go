// Package storage provides SQLite record storage.
//
// Information Hiding:
// - SQLite connection management hidden behind interface
// - Schema details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/richinex/reasonloop/session"
)

// SqliteStorage implements RecordStorage using SQLite.
// The summary columns are denormalized from the record document so that
// listing never decodes full records.
type SqliteStorage struct {
	db *sqlx.DB
}

// OpenSqlite opens or creates a SQLite database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteStorage, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite3", path+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}
	return newSqlite(db)
}

// NewSqliteInMemory creates an in-memory database (useful for testing).
func NewSqliteInMemory() (*SqliteStorage, error) {
	db, err := sqlx.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}
	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	return newSqlite(db)
}

func newSqlite(db *sqlx.DB) (*SqliteStorage, error) {
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	storage := &SqliteStorage{db: db}
	if err := storage.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return storage, nil
}

// Close closes the database connection.
func (s *SqliteStorage) Close() error {
	return s.db.Close()
}

func (s *SqliteStorage) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			task TEXT NOT NULL,
			provider TEXT NOT NULL,
			model TEXT NOT NULL,
			steps INTEGER NOT NULL,
			status TEXT NOT NULL,
			cost_usd REAL NOT NULL,
			data TEXT NOT NULL,
			updated_at TEXT NOT NULL DEFAULT (datetime('now'))
		);

		CREATE INDEX IF NOT EXISTS idx_records_created
		ON records(created_at DESC);
	`

	_, err := s.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// recordRow is the row shape of the records table.
type recordRow struct {
	ID        string  `db:"id"`
	CreatedAt string  `db:"created_at"`
	Task      string  `db:"task"`
	Provider  string  `db:"provider"`
	Model     string  `db:"model"`
	Steps     int     `db:"steps"`
	Status    string  `db:"status"`
	CostUSD   float64 `db:"cost_usd"`
	Data      string  `db:"data"`
}

func (r recordRow) summary() (Summary, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
	if err != nil {
		return Summary{}, fmt.Errorf("record %s: bad created_at %q: %w", r.ID, r.CreatedAt, err)
	}
	return Summary{
		ID:        r.ID,
		CreatedAt: createdAt,
		Task:      r.Task,
		Provider:  r.Provider,
		Model:     r.Model,
		Steps:     r.Steps,
		Status:    session.Status(r.Status),
		CostUSD:   r.CostUSD,
	}, nil
}

// Save stores a record, replacing any earlier version.
func (s *SqliteStorage) Save(ctx context.Context, rec session.Record) error {
	if err := validateID(rec.ID); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	sum := Summarize(rec)
	row := recordRow{
		ID:        sum.ID,
		CreatedAt: sum.CreatedAt.UTC().Format(time.RFC3339Nano),
		Task:      sum.Task,
		Provider:  sum.Provider,
		Model:     sum.Model,
		Steps:     sum.Steps,
		Status:    string(sum.Status),
		CostUSD:   sum.CostUSD,
		Data:      string(data),
	}

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO records (id, created_at, task, provider, model, steps, status, cost_usd, data)
		VALUES (:id, :created_at, :task, :provider, :model, :steps, :status, :cost_usd, :data)
		ON CONFLICT(id) DO UPDATE SET
			created_at = excluded.created_at,
			task = excluded.task,
			provider = excluded.provider,
			model = excluded.model,
			steps = excluded.steps,
			status = excluded.status,
			cost_usd = excluded.cost_usd,
			data = excluded.data,
			updated_at = datetime('now')`, row)
	if err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

// Load loads a record by id.
func (s *SqliteStorage) Load(ctx context.Context, id string) (session.Record, error) {
	var data string
	err := s.db.GetContext(ctx, &data, "SELECT data FROM records WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Record{}, ErrNotFound
	}
	if err != nil {
		return session.Record{}, fmt.Errorf("failed to load record: %w", err)
	}
	return decodeRecord([]byte(data))
}

// Delete deletes a record.
func (s *SqliteStorage) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// List returns summaries of all records, newest first.
func (s *SqliteStorage) List(ctx context.Context) ([]Summary, error) {
	var rows []recordRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, created_at, task, provider, model, steps, status, cost_usd, '' AS data
		FROM records`)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	summaries := make([]Summary, 0, len(rows))
	for _, r := range rows {
		sum, err := r.summary()
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, sum)
	}
	sortNewestFirst(summaries)
	return summaries, nil
}

// Exists checks if a record exists.
func (s *SqliteStorage) Exists(ctx context.Context, id string) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM records WHERE id = ?", id); err != nil {
		return false, fmt.Errorf("failed to check record: %w", err)
	}
	return count > 0, nil
}

// Verify SqliteStorage implements RecordStorage
var _ RecordStorage = (*SqliteStorage)(nil)
