// Package controller implements the Controller (spec §4.H): it chooses
// a plan of fetchers and date windows, drives them in dependency order,
// and for backfill jobs advances a CheckpointStore one month-chunk at a
// time. Grounded on the teacher's top-level seeding orchestration
// (internal/seed package, which sequences SeedNBA/SeedFootball phases
// and accumulates a run report) generalized here to the racing domain's
// four modes and its checkpointed backfill.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/albapepper/racesync/internal/checkpoint"
	"github.com/albapepper/racesync/internal/fetch"
	"github.com/albapepper/racesync/internal/raceerr"
)

const (
	dateLayout = "2006-01-02"

	// DefaultDailyLookbackDays is the window width for daily()'s
	// RaceFetcher/ResultsFetcher pass (spec §4.H: "last 3 days").
	DefaultDailyLookbackDays = 3

	// TestDailyLookbackDays replaces DefaultDailyLookbackDays under
	// --test; at 7 days it is wider than the default window.
	TestDailyLookbackDays = 7

	// TestMasterPageLimit caps MasterFetchers pagination under --test
	// (spec §6: "5 pages").
	TestMasterPageLimit = 5

	backfillJob = "backfill"
)

// RaceFetcher is the subset of fetch.RaceFetcher the Controller depends
// on.
type RaceFetcher interface {
	Fetch(ctx context.Context, dateFrom, dateTo string) (fetch.Summary, error)
}

// ResultsFetcher is the subset of fetch.ResultsFetcher the Controller
// depends on.
type ResultsFetcher interface {
	Fetch(ctx context.Context, dateFrom, dateTo string) (fetch.Summary, error)
}

// Masters is the subset of fetch.MasterFetchers the Controller depends
// on; one method per reference table so Manual() and the schedule table
// can name them individually.
type Masters interface {
	FetchCourses(ctx context.Context) (int, error)
	FetchBookmakers(ctx context.Context) (int, error)
	FetchJockeys(ctx context.Context) (int, error)
	FetchTrainers(ctx context.Context) (int, error)
	FetchOwners(ctx context.Context) (int, error)
}

// StatisticsRunner is the subset of internal/stats the Controller
// depends on — StatisticsCalculators run as a separate phase, after any
// transactional pass, and read exclusively from Repository (spec §2).
// RunAll is the full-backfill pass (weekly qualifying thresholds, every
// runner recomputed); RunDaily is the incremental pass the schedule's
// 02:30 slot drives (lower qualifying thresholds, only recently-run
// runners recomputed — spec §4.J).
type StatisticsRunner interface {
	RunAll(ctx context.Context) error
	RunDaily(ctx context.Context) error
}

// Controller drives fetchers by mode (spec §4.H).
type Controller struct {
	Races   RaceFetcher
	Results ResultsFetcher
	Masters Masters
	Stats   StatisticsRunner

	Checkpoints *checkpoint.Store
	Logger      *slog.Logger

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

// New wires a Controller from its component dependencies.
func New(races RaceFetcher, results ResultsFetcher, masters Masters, stats StatisticsRunner, checkpoints *checkpoint.Store, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		Races: races, Results: results, Masters: masters, Stats: stats,
		Checkpoints: checkpoints, Logger: logger, Now: time.Now,
	}
}

// JobResult is one fetcher invocation's outcome within a Report.
type JobResult struct {
	Name    string
	Summary fetch.Summary
	Count   int
	Err     error
}

// Report aggregates every job run during one Controller invocation.
type Report struct {
	Jobs []JobResult
}

func (r *Report) record(name string, summary fetch.Summary, count int, err error) {
	r.Jobs = append(r.Jobs, JobResult{Name: name, Summary: summary, Count: count, Err: err})
}

// Failed reports whether any job in the report returned an error.
func (r Report) Failed() bool {
	for _, j := range r.Jobs {
		if j.Err != nil {
			return true
		}
	}
	return false
}

// Fatal reports whether any job's error is fatal per the raceerr
// taxonomy (invariant violation or authentication failure).
func (r Report) Fatal() bool {
	for _, j := range r.Jobs {
		if j.Err != nil && raceerr.Fatal(j.Err) {
			return true
		}
	}
	return false
}

func (c *Controller) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Manual runs a single named fetcher over [dateFrom, dateTo] (spec
// §4.H "manual(table, dateFrom, dateTo)"). table selects which fetcher;
// master-data tables ignore the date window.
func (c *Controller) Manual(ctx context.Context, table, dateFrom, dateTo string) (Report, error) {
	var report Report
	switch table {
	case "races":
		summary, err := c.Races.Fetch(ctx, dateFrom, dateTo)
		report.record("races", summary, 0, err)
	case "results":
		summary, err := c.Results.Fetch(ctx, dateFrom, dateTo)
		report.record("results", summary, 0, err)
	case "courses":
		n, err := c.Masters.FetchCourses(ctx)
		report.record("courses", fetch.Summary{}, n, err)
	case "bookmakers":
		n, err := c.Masters.FetchBookmakers(ctx)
		report.record("bookmakers", fetch.Summary{}, n, err)
	case "jockeys":
		n, err := c.Masters.FetchJockeys(ctx)
		report.record("jockeys", fetch.Summary{}, n, err)
	case "trainers":
		n, err := c.Masters.FetchTrainers(ctx)
		report.record("trainers", fetch.Summary{}, n, err)
	case "owners":
		n, err := c.Masters.FetchOwners(ctx)
		report.record("owners", fetch.Summary{}, n, err)
	case "stats":
		err := c.Stats.RunAll(ctx)
		report.record("stats", fetch.Summary{}, 0, err)
	default:
		return report, fmt.Errorf("manual: unknown table %q", table)
	}
	return report, nil
}

// Daily runs the MasterFetchers whose cadence says they're due today,
// then RaceFetcher and ResultsFetcher for the trailing lookback window
// (spec §4.H "daily()").
func (c *Controller) Daily(ctx context.Context, testMode bool) (Report, error) {
	var report Report
	today := c.now()

	due := DueToday(today)
	c.runDue(ctx, &report, due)

	lookback := DefaultDailyLookbackDays
	if testMode {
		lookback = TestDailyLookbackDays
	}
	from := today.AddDate(0, 0, -lookback).Format(dateLayout)
	to := today.Format(dateLayout)

	raceSummary, err := c.Races.Fetch(ctx, from, to)
	report.record("races", raceSummary, 0, err)
	if err != nil && raceerr.Fatal(err) {
		return report, err
	}

	resultsSummary, err := c.Results.Fetch(ctx, from, to)
	report.record("results", resultsSummary, 0, err)
	if err != nil && raceerr.Fatal(err) {
		return report, err
	}

	return report, nil
}

// Scheduled consults the schedule table (spec §4.H/§6) and runs only
// what's due for the given instant.
func (c *Controller) Scheduled(ctx context.Context, testMode bool) (Report, error) {
	var report Report
	now := c.now()

	if RaceResultsDue(now) {
		lookback := DefaultDailyLookbackDays
		if testMode {
			lookback = TestDailyLookbackDays
		}
		from := now.AddDate(0, 0, -lookback).Format(dateLayout)
		to := now.Format(dateLayout)

		raceSummary, err := c.Races.Fetch(ctx, from, to)
		report.record("races", raceSummary, 0, err)
		if err != nil && raceerr.Fatal(err) {
			return report, err
		}
		resultsSummary, err := c.Results.Fetch(ctx, from, to)
		report.record("results", resultsSummary, 0, err)
		if err != nil && raceerr.Fatal(err) {
			return report, err
		}
	}

	c.runDue(ctx, &report, DueAt(now))

	if StatsDue(now) {
		err := c.Stats.RunDaily(ctx)
		report.record("stats", fetch.Summary{}, 0, err)
	}

	return report, nil
}

// runDue invokes exactly the MasterFetchers named in due.
func (c *Controller) runDue(ctx context.Context, report *Report, due []string) {
	for _, name := range due {
		switch name {
		case "courses":
			n, err := c.Masters.FetchCourses(ctx)
			report.record("courses", fetch.Summary{}, n, err)
		case "bookmakers":
			n, err := c.Masters.FetchBookmakers(ctx)
			report.record("bookmakers", fetch.Summary{}, n, err)
		case "jockeys":
			n, err := c.Masters.FetchJockeys(ctx)
			report.record("jockeys", fetch.Summary{}, n, err)
		case "trainers":
			n, err := c.Masters.FetchTrainers(ctx)
			report.record("trainers", fetch.Summary{}, n, err)
		case "owners":
			n, err := c.Masters.FetchOwners(ctx)
			report.record("owners", fetch.Summary{}, n, err)
		}
	}
}

// Backfill splits [startDate, endDate] into month-sized chunks, reads
// the checkpoint, and for every chunk not yet complete runs RaceFetcher
// then ResultsFetcher before advancing the checkpoint (spec §4.H
// "backfill(startDate, endDate)"). A fatal error aborts without
// advancing past the failing chunk, so the next run retries it in full.
// A non-fatal error from either fetcher also leaves that chunk's
// checkpoint unadvanced and ends the pass there; it is recorded in the
// report and the next run resumes from that chunk.
func (c *Controller) Backfill(ctx context.Context, startDate, endDate time.Time) (Report, error) {
	var report Report

	chunks := MonthChunks(startDate, endDate)
	rec, err := c.Checkpoints.Load(backfillJob)
	if err != nil {
		return report, err
	}

	for i, chunk := range chunks {
		if i <= rec.LastCompletedChunk {
			continue
		}

		from := chunk.Start.Format(dateLayout)
		to := chunk.End.Format(dateLayout)

		raceSummary, raceErr := c.Races.Fetch(ctx, from, to)
		report.record(fmt.Sprintf("races[%d]", i), raceSummary, 0, raceErr)
		if raceErr != nil && raceerr.Fatal(raceErr) {
			return report, raceErr
		}

		resultsSummary, resultsErr := c.Results.Fetch(ctx, from, to)
		report.record(fmt.Sprintf("results[%d]", i), resultsSummary, 0, resultsErr)
		if resultsErr != nil && raceerr.Fatal(resultsErr) {
			return report, resultsErr
		}

		if raceErr != nil || resultsErr != nil {
			return report, nil
		}

		if err := c.Checkpoints.Advance(backfillJob, i, len(chunks), to, c.now()); err != nil {
			return report, err
		}
	}

	return report, nil
}
