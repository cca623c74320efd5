package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/richinex/reasonloop/model"
	"github.com/richinex/reasonloop/session"
)

func testRecord(id string, created time.Time, cost float64) session.Record {
	step := model.Step{
		StepID:            1,
		ConfidenceLevel:   4,
		ReasoningLanguage: "English",
		HiddenMetadata:    model.HiddenMetadata{TrueConfidence: 3, PathQuality: model.PathOptimal, EmbeddedIssues: []string{}},
		StepTitle:         "Answer",
		StepText:          "2 + 2 = 4",
		IsFinalResult:     true,
		Solution:          model.Solution{Type: model.SolutionFinal, Content: "4", Completeness: 100},
	}
	return session.Record{
		ID:              id,
		CreatedAt:       created,
		Task:            "Add 2 and 2",
		InitialMode:     model.ModeExploreOptimal,
		InitialLanguage: "English",
		MaxSteps:        10,
		ModeHistory:     []model.Mode{model.ModeExploreOptimal},
		Steps: []session.Entry{{
			Step:              step,
			Directive:         model.Continue(),
			Mode:              model.ModeExploreOptimal,
			ReasoningLanguage: "English",
			Usage:             &model.Usage{InputTokens: 100, CachedTokens: 0, OutputTokens: 20},
			TurnCost:          cost,
		}},
		Commands:          []model.Directive{model.Continue()},
		Issued: []session.IssuedDirective{
			{Directive: model.Continue(), StepID: 1, Outcome: session.OutcomeFailed, Attempts: 2, Error: "step 1: provider call failed: timeout"},
			{Directive: model.Continue(), StepID: 1, Outcome: session.OutcomeAccepted, Attempts: 1},
		},
		Totals:            model.Totals{InputTokens: 100, OutputTokens: 20, CostUSD: cost},
		Pricing:           model.Pricing{InputTokens: 2.5, CachedTokens: 1.25, OutputTokens: 10},
		Provider:          session.ProviderInfo{Name: "deepseek", Model: "deepseek-chat"},
		Status:            session.StatusTerminated,
		TerminationReason: session.ReasonFinalResult,
	}
}

type backend struct {
	name string
	open func(t *testing.T) RecordStorage
}

func backends() []backend {
	return []backend{
		{"memory", func(t *testing.T) RecordStorage { return NewInMemoryStorage() }},
		{"file", func(t *testing.T) RecordStorage { return NewFileStorage(filepath.Join(t.TempDir(), "traces")) }},
		{"sqlite", func(t *testing.T) RecordStorage {
			s, err := NewSqliteInMemory()
			if err != nil {
				t.Fatalf("Failed to create storage: %v", err)
			}
			t.Cleanup(func() { s.Close() })
			return s
		}},
	}
}

func TestSaveAndLoad(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)
			ctx := context.Background()
			rec := testRecord("s1", time.Date(2025, 3, 1, 10, 30, 0, 123456789, time.UTC), 0.1234567891234)

			if err := store.Save(ctx, rec); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			loaded, err := store.Load(ctx, "s1")
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if !reflect.DeepEqual(loaded, rec) {
				t.Errorf("record changed in storage:\n got %+v\nwant %+v", loaded, rec)
			}
			if loaded.Totals.CostUSD != rec.Totals.CostUSD {
				t.Errorf("expected exact cost %v, got %v", rec.Totals.CostUSD, loaded.Totals.CostUSD)
			}

			if _, err := session.Restore(loaded); err != nil {
				t.Errorf("stored record does not restore: %v", err)
			}
		})
	}
}

func TestLoadMissing(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)
			_, err := store.Load(context.Background(), "nonexistent")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("expected ErrNotFound, got %v", err)
			}
			ok, err := store.Exists(context.Background(), "nonexistent")
			if err != nil || ok {
				t.Errorf("expected not to exist, got %v, %v", ok, err)
			}
		})
	}
}

func TestSaveReplaces(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)
			ctx := context.Background()
			rec := testRecord("s1", time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), 0.5)
			rec.Status = session.StatusRunning
			rec.TerminationReason = ""
			if err := store.Save(ctx, rec); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			rec.Status = session.StatusTerminated
			rec.TerminationReason = session.ReasonFinished
			if err := store.Save(ctx, rec); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			summaries, err := store.List(ctx)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			if len(summaries) != 1 {
				t.Fatalf("expected 1 record, got %d", len(summaries))
			}
			if summaries[0].Status != session.StatusTerminated {
				t.Errorf("expected updated status, got %s", summaries[0].Status)
			}
		})
	}
}

func TestListNewestFirst(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)
			ctx := context.Background()
			base := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
			for i, id := range []string{"a", "b", "c"} {
				if err := store.Save(ctx, testRecord(id, base.Add(time.Duration(i)*time.Hour), float64(i))); err != nil {
					t.Fatalf("Save failed: %v", err)
				}
			}

			summaries, err := store.List(ctx)
			if err != nil {
				t.Fatalf("List failed: %v", err)
			}
			var ids []string
			for _, s := range summaries {
				ids = append(ids, s.ID)
			}
			if !reflect.DeepEqual(ids, []string{"c", "b", "a"}) {
				t.Errorf("expected newest first, got %v", ids)
			}

			want := Summary{
				ID:        "c",
				CreatedAt: base.Add(2 * time.Hour),
				Task:      "Add 2 and 2",
				Provider:  "deepseek",
				Model:     "deepseek-chat",
				Steps:     1,
				Status:    session.StatusTerminated,
				CostUSD:   2,
			}
			if !summaries[0].CreatedAt.Equal(want.CreatedAt) {
				t.Errorf("created_at = %v, want %v", summaries[0].CreatedAt, want.CreatedAt)
			}
			summaries[0].CreatedAt = want.CreatedAt
			if summaries[0] != want {
				t.Errorf("summary = %+v, want %+v", summaries[0], want)
			}
		})
	}
}

func TestDelete(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			store := b.open(t)
			ctx := context.Background()
			if err := store.Save(ctx, testRecord("s1", time.Now(), 1)); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			if ok, _ := store.Exists(ctx, "s1"); !ok {
				t.Fatal("expected record to exist")
			}

			if err := store.Delete(ctx, "s1"); err != nil {
				t.Fatalf("Delete failed: %v", err)
			}
			if ok, _ := store.Exists(ctx, "s1"); ok {
				t.Error("expected record to be deleted")
			}
			if err := store.Delete(ctx, "s1"); err != nil {
				t.Errorf("deleting twice should not fail: %v", err)
			}
		})
	}
}

func TestSaveRequiresID(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			if err := b.open(t).Save(context.Background(), testRecord("", time.Now(), 0)); err == nil {
				t.Error("expected error for empty id")
			}
		})
	}
}

func TestFileStorageNaming(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStorage(dir)
	rec := testRecord("abc-123", time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), 0)

	if err := store.Save(context.Background(), rec); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	path := filepath.Join(dir, "trace_20250102_030405_abc-123.json")
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected trace file at %s: %v", path, err)
	}

	loaded, err := ReadTrace(path)
	if err != nil {
		t.Fatalf("ReadTrace failed: %v", err)
	}
	if loaded.ID != "abc-123" {
		t.Errorf("expected abc-123, got %s", loaded.ID)
	}

	if err := store.Save(context.Background(), testRecord("../x", time.Now(), 0)); err == nil {
		t.Error("expected error for path-like id")
	}
}

func TestFileStorageSkipsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStorage(dir)
	if err := os.WriteFile(filepath.Join(dir, "trace_broken.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(context.Background(), testRecord("ok", time.Now(), 0)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	summaries, err := store.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(summaries) != 1 || summaries[0].ID != "ok" {
		t.Errorf("expected only the valid trace, got %+v", summaries)
	}
}

func TestOpenSqliteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "records.db")
	store, err := OpenSqlite(path)
	if err != nil {
		t.Fatalf("OpenSqlite failed: %v", err)
	}
	if err := store.Save(context.Background(), testRecord("s1", time.Now(), 0)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	store.Close()

	reopened, err := OpenSqlite(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()
	if ok, err := reopened.Exists(context.Background(), "s1"); err != nil || !ok {
		t.Errorf("expected record to persist, got %v, %v", ok, err)
	}
}
