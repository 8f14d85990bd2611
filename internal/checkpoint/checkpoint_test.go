package checkpoint

import (
	"errors"
	"testing"
	"time"

	"github.com/albapepper/racesync/internal/raceerr"
)

func TestLoadMissingReturnsZeroRecord(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rec, err := store.Load("backfill_races")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.LastCompletedChunk != -1 {
		t.Errorf("expected -1 for a never-started job, got %d", rec.LastCompletedChunk)
	}
}

func TestAdvancePersistsAndReloads(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := store.Advance("backfill_races", 11, 130, "2015-11-30", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rec, err := store.Load("backfill_races")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.LastCompletedChunk != 11 || rec.TotalChunks != 130 || rec.LastChunkEndDate != "2015-11-30" {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if !rec.Timestamp.Equal(now) {
		t.Errorf("expected timestamp %v, got %v", now, rec.Timestamp)
	}
}

func TestAdvanceRejectsRegression(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	now := time.Now()
	if err := store.Advance("backfill_races", 11, 130, "2015-11-30", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = store.Advance("backfill_races", 5, 130, "2015-06-30", now)
	if err == nil {
		t.Fatal("expected an error when moving a checkpoint backwards")
	}
	if !errors.Is(err, raceerr.InvariantViolation) {
		t.Errorf("expected InvariantViolation, got %v", err)
	}

	rec, _ := store.Load("backfill_races")
	if rec.LastCompletedChunk != 11 {
		t.Errorf("expected the rejected write to leave the prior record untouched, got %d", rec.LastCompletedChunk)
	}
}

func TestAdvanceSameChunkIsIdempotent(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	now := time.Now()
	if err := store.Advance("backfill_races", 11, 130, "2015-11-30", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Advance("backfill_races", 11, 130, "2015-11-30", now); err != nil {
		t.Fatalf("re-advancing the same chunk should not be rejected: %v", err)
	}
}

func TestJobsAreIndependent(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	now := time.Now()
	if err := store.Advance("backfill_races", 3, 10, "2020-03-31", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Advance("backfill_results", 1, 10, "2020-01-31", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	races, _ := store.Load("backfill_races")
	results, _ := store.Load("backfill_results")
	if races.LastCompletedChunk != 3 || results.LastCompletedChunk != 1 {
		t.Fatalf("expected independent progress, got races=%+v results=%+v", races, results)
	}
}

func TestListReturnsAllJobsSorted(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	now := time.Now()
	if err := store.Advance("backfill_results", 1, 10, "2020-01-31", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.Advance("backfill_races", 3, 10, "2020-03-31", now); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	records, err := store.List()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Job != "backfill_races" || records[1].Job != "backfill_results" {
		t.Fatalf("expected jobs sorted alphabetically, got %+v", records)
	}
}

func TestListEmptyDir(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	records, err := store.List()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected no records, got %d", len(records))
	}
}
