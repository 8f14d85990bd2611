package controller

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/albapepper/racesync/internal/checkpoint"
	"github.com/albapepper/racesync/internal/fetch"
	"github.com/albapepper/racesync/internal/raceerr"
)

type fakeFetcher struct {
	calls []string
	err   error
}

func (f *fakeFetcher) Fetch(ctx context.Context, dateFrom, dateTo string) (fetch.Summary, error) {
	f.calls = append(f.calls, dateFrom+".."+dateTo)
	return fetch.Summary{RacesFetched: 1}, f.err
}

type fakeMasters struct {
	calls map[string]int
}

func newFakeMasters() *fakeMasters { return &fakeMasters{calls: map[string]int{}} }

func (m *fakeMasters) FetchCourses(ctx context.Context) (int, error)    { m.calls["courses"]++; return 1, nil }
func (m *fakeMasters) FetchBookmakers(ctx context.Context) (int, error) { m.calls["bookmakers"]++; return 1, nil }
func (m *fakeMasters) FetchJockeys(ctx context.Context) (int, error)    { m.calls["jockeys"]++; return 1, nil }
func (m *fakeMasters) FetchTrainers(ctx context.Context) (int, error)   { m.calls["trainers"]++; return 1, nil }
func (m *fakeMasters) FetchOwners(ctx context.Context) (int, error)     { m.calls["owners"]++; return 1, nil }

type fakeStats struct {
	ran      bool
	ranDaily bool
	err      error
}

func (s *fakeStats) RunAll(ctx context.Context) error {
	s.ran = true
	return s.err
}

func (s *fakeStats) RunDaily(ctx context.Context) error {
	s.ranDaily = true
	return s.err
}

func newController(t *testing.T, races, results *fakeFetcher, masters *fakeMasters, stats *fakeStats) *Controller {
	store, err := checkpoint.New(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return New(races, results, masters, stats, store, nil)
}

func TestManualRunsOnlyNamedFetcher(t *testing.T) {
	races := &fakeFetcher{}
	results := &fakeFetcher{}
	c := newController(t, races, results, newFakeMasters(), &fakeStats{})

	report, err := c.Manual(context.Background(), "races", "2026-01-01", "2026-01-31")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(races.calls) != 1 || len(results.calls) != 0 {
		t.Fatalf("expected only races fetcher called, got races=%v results=%v", races.calls, results.calls)
	}
	if report.Failed() {
		t.Errorf("expected a clean report, got %+v", report)
	}
}

func TestManualUnknownTableErrors(t *testing.T) {
	c := newController(t, &fakeFetcher{}, &fakeFetcher{}, newFakeMasters(), &fakeStats{})
	if _, err := c.Manual(context.Background(), "nonsense", "", ""); err == nil {
		t.Fatal("expected an error for an unknown table")
	}
}

func TestDailyRunsRacesThenResultsOverLookbackWindow(t *testing.T) {
	races := &fakeFetcher{}
	results := &fakeFetcher{}
	c := newController(t, races, results, newFakeMasters(), &fakeStats{})
	c.Now = func() time.Time { return time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC) }

	report, err := c.Daily(context.Background(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if races.calls[0] != "2026-06-07..2026-06-10" {
		t.Errorf("expected a 3-day lookback window, got %v", races.calls)
	}
	if results.calls[0] != "2026-06-07..2026-06-10" {
		t.Errorf("expected results fetched over the same window, got %v", results.calls)
	}
	if report.Failed() {
		t.Errorf("expected no failures, got %+v", report)
	}
}

func TestDailyTestModeWidensWindow(t *testing.T) {
	races := &fakeFetcher{}
	c := newController(t, races, &fakeFetcher{}, newFakeMasters(), &fakeStats{})
	c.Now = func() time.Time { return time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC) }

	if _, err := c.Daily(context.Background(), true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if races.calls[0] != "2026-06-03..2026-06-10" {
		t.Errorf("expected a 7-day lookback window under --test, got %v", races.calls)
	}
}

func TestDailyAbortsOnFatalRaceError(t *testing.T) {
	races := &fakeFetcher{err: fmt.Errorf("login: %w", raceerr.AuthenticationError)}
	results := &fakeFetcher{}
	c := newController(t, races, results, newFakeMasters(), &fakeStats{})
	c.Now = func() time.Time { return time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC) }

	_, err := c.Daily(context.Background(), false)
	if err == nil {
		t.Fatal("expected a fatal error to propagate")
	}
	if len(results.calls) != 0 {
		t.Error("expected ResultsFetcher not to run after a fatal RaceFetcher error")
	}
}

func TestScheduledRunsMastersOnlyWhenDue(t *testing.T) {
	masters := newFakeMasters()
	c := newController(t, &fakeFetcher{}, &fakeFetcher{}, masters, &fakeStats{})
	// Sunday 2026-06-07 at 13:00 — weekly people pass due, not the 1st.
	c.Now = func() time.Time { return time.Date(2026, 6, 7, 13, 0, 0, 0, time.UTC) }

	if _, err := c.Scheduled(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if masters.calls["jockeys"] != 1 || masters.calls["trainers"] != 1 || masters.calls["owners"] != 1 {
		t.Errorf("expected weekly people masters to run, got %+v", masters.calls)
	}
	if masters.calls["courses"] != 0 {
		t.Errorf("expected monthly masters not to run on a non-1st day, got %+v", masters.calls)
	}
}

func TestScheduledRunsRaceResultsOnFourHourSlot(t *testing.T) {
	races := &fakeFetcher{}
	results := &fakeFetcher{}
	c := newController(t, races, results, newFakeMasters(), &fakeStats{})
	c.Now = func() time.Time { return time.Date(2026, 6, 3, 14, 0, 0, 0, time.UTC) }

	if _, err := c.Scheduled(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(races.calls) != 1 || len(results.calls) != 1 {
		t.Errorf("expected race+results pass on a 4h slot, got races=%v results=%v", races.calls, results.calls)
	}
}

func TestScheduledSkipsRaceResultsOffSlot(t *testing.T) {
	races := &fakeFetcher{}
	c := newController(t, races, &fakeFetcher{}, newFakeMasters(), &fakeStats{})
	c.Now = func() time.Time { return time.Date(2026, 6, 3, 9, 0, 0, 0, time.UTC) }

	if _, err := c.Scheduled(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(races.calls) != 0 {
		t.Errorf("expected no race fetch off the 4h slot, got %v", races.calls)
	}
}

func TestScheduledRunsStatsAt0230(t *testing.T) {
	stats := &fakeStats{}
	c := newController(t, &fakeFetcher{}, &fakeFetcher{}, newFakeMasters(), stats)
	c.Now = func() time.Time { return time.Date(2026, 6, 3, 2, 30, 0, 0, time.UTC) }

	if _, err := c.Scheduled(context.Background(), false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stats.ranDaily {
		t.Error("expected the incremental daily stats pass to run at the 02:30 slot")
	}
	if stats.ran {
		t.Error("expected the scheduled 02:30 slot to use the incremental pass, not the full backfill pass")
	}
}

func TestBackfillSplitsIntoMonthChunksAndAdvancesCheckpoint(t *testing.T) {
	races := &fakeFetcher{}
	results := &fakeFetcher{}
	c := newController(t, races, results, newFakeMasters(), &fakeStats{})

	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	report, err := c.Backfill(context.Background(), start, end)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(races.calls) != 3 || len(results.calls) != 3 {
		t.Fatalf("expected 3 month chunks, got races=%v results=%v", races.calls, results.calls)
	}
	if report.Failed() {
		t.Errorf("expected a clean report, got %+v", report)
	}

	rec, err := c.Checkpoints.Load(backfillJob)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.LastCompletedChunk != 2 {
		t.Errorf("expected checkpoint to advance through all 3 chunks (index 2), got %d", rec.LastCompletedChunk)
	}
}

func TestBackfillResumesFromCheckpoint(t *testing.T) {
	races := &fakeFetcher{}
	results := &fakeFetcher{}
	c := newController(t, races, results, newFakeMasters(), &fakeStats{})

	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	if err := c.Checkpoints.Advance(backfillJob, 0, 3, "2026-01-31", time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	races.calls = nil
	results.calls = nil
	if _, err := c.Backfill(context.Background(), start, end); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(races.calls) != 2 {
		t.Errorf("expected only the remaining 2 chunks to run, got %v", races.calls)
	}
}

func TestBackfillStopsOnFatalErrorWithoutAdvancing(t *testing.T) {
	races := &fakeFetcher{err: errors.New("boom")}
	results := &fakeFetcher{}
	races.err = fmt.Errorf("fetch: %w", raceerr.InvariantViolation)
	c := newController(t, races, results, newFakeMasters(), &fakeStats{})

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC)

	_, err := c.Backfill(context.Background(), start, end)
	if err == nil {
		t.Fatal("expected the fatal error to propagate")
	}
	rec, _ := c.Checkpoints.Load(backfillJob)
	if rec.LastCompletedChunk != -1 {
		t.Errorf("expected checkpoint untouched after a fatal failure, got %d", rec.LastCompletedChunk)
	}
}

func TestMonthChunksCoversPartialMonths(t *testing.T) {
	start := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	chunks := MonthChunks(start, end)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if !chunks[0].Start.Equal(start) {
		t.Errorf("expected first chunk to start at the range start, got %v", chunks[0].Start)
	}
	if !chunks[len(chunks)-1].End.Equal(end) {
		t.Errorf("expected last chunk to end at the range end, got %v", chunks[len(chunks)-1].End)
	}
}
