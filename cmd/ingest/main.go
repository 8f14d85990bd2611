// Command racesync-ingest is the horse-racing warehouse sync CLI (spec
// §6: "single entry point with a `mode` selector").
//
// Usage:
//
//	racesync-ingest backfill --start-date 2015-01-01 --end-date 2025-01-01
//	racesync-ingest daily
//	racesync-ingest manual --table races --start-date 2025-06-01 --end-date 2025-06-07
//	racesync-ingest scheduled
//	racesync-ingest list
//	racesync-ingest show-schedule
//	racesync-ingest check
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/albapepper/racesync/internal/checkpoint"
	"github.com/albapepper/racesync/internal/config"
	"github.com/albapepper/racesync/internal/controller"
	"github.com/albapepper/racesync/internal/db"
	"github.com/albapepper/racesync/internal/entity"
	"github.com/albapepper/racesync/internal/fetch"
	"github.com/albapepper/racesync/internal/raceerr"
	"github.com/albapepper/racesync/internal/racingapi"
	"github.com/albapepper/racesync/internal/ratelimit"
	"github.com/albapepper/racesync/internal/repository"
	"github.com/albapepper/racesync/internal/runlog"
	"github.com/albapepper/racesync/internal/stats"
)

// Exit codes (spec §6).
const (
	exitSuccess        = 0
	exitPartialFailure = 1
	exitConfigError    = 2
	exitAuthError      = 3
)

const dateLayout = "2006-01-02"

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "racesync-ingest",
		Short: "Horse-racing warehouse sync CLI",
	}

	root.AddCommand(backfillCmd())
	root.AddCommand(dailyCmd())
	root.AddCommand(manualCmd())
	root.AddCommand(scheduledCmd())
	root.AddCommand(listCmd())
	root.AddCommand(showScheduleCmd())
	root.AddCommand(checkCmd())

	if err := root.Execute(); err != nil {
		os.Exit(exitConfigError)
	}
}

// --------------------------------------------------------------------------
// backfill
// --------------------------------------------------------------------------

func backfillCmd() *cobra.Command {
	var startDate, endDate string
	var test bool
	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Run the checkpointed historical backfill (spec §4.H)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode("backfill", test, func(ctx context.Context, env *environment) (controller.Report, error) {
				start, err := time.Parse(dateLayout, startDate)
				if err != nil {
					return controller.Report{}, fmt.Errorf("parse --start-date: %w", err)
				}
				end := time.Now()
				if endDate != "" {
					end, err = time.Parse(dateLayout, endDate)
					if err != nil {
						return controller.Report{}, fmt.Errorf("parse --end-date: %w", err)
					}
				}
				return env.controller.Backfill(ctx, start, end)
			})
		},
	}
	cmd.Flags().StringVar(&startDate, "start-date", "", "Backfill start date (YYYY-MM-DD, required)")
	cmd.Flags().StringVar(&endDate, "end-date", "", "Backfill end date (YYYY-MM-DD, default: today)")
	cmd.Flags().BoolVar(&test, "test", false, "Test mode (caps master-table pagination at 5 pages); the backfill date window is not reduced")
	cmd.MarkFlagRequired("start-date")
	return cmd
}

// --------------------------------------------------------------------------
// daily
// --------------------------------------------------------------------------

func dailyCmd() *cobra.Command {
	var test bool
	cmd := &cobra.Command{
		Use:   "daily",
		Short: "Run due MasterFetchers plus the trailing 3-day race/results window (spec §4.H)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode("daily", test, func(ctx context.Context, env *environment) (controller.Report, error) {
				return env.controller.Daily(ctx, test)
			})
		},
	}
	cmd.Flags().BoolVar(&test, "test", false, "Use a 7-day race/results window and cap master-table pagination at 5 pages")
	return cmd
}

// --------------------------------------------------------------------------
// manual
// --------------------------------------------------------------------------

func manualCmd() *cobra.Command {
	var table, startDate, endDate string
	var daysBack int
	var test bool
	cmd := &cobra.Command{
		Use:   "manual",
		Short: "Run a single named fetcher (spec §4.H \"manual(table, dateFrom, dateTo)\")",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode("manual", test, func(ctx context.Context, env *environment) (controller.Report, error) {
				from, to := resolveWindow(startDate, endDate, daysBack, test)
				return env.controller.Manual(ctx, table, from, to)
			})
		},
	}
	cmd.Flags().StringVar(&table, "table", "", "Fetcher to run: races, results, courses, bookmakers, jockeys, trainers, owners, stats (required)")
	cmd.Flags().StringVar(&startDate, "start-date", "", "Window start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "end-date", "", "Window end date (YYYY-MM-DD, default: today)")
	cmd.Flags().IntVar(&daysBack, "days-back", 0, "Window width in days ending today, alternative to --start-date")
	cmd.Flags().BoolVar(&test, "test", false, "Default the window to 7 days and cap master-table pagination at 5 pages")
	cmd.MarkFlagRequired("table")
	return cmd
}

// resolveWindow turns the manual command's three mutually-exclusive ways
// of specifying a date window into a concrete [from, to] pair.
func resolveWindow(startDate, endDate string, daysBack int, test bool) (from, to string) {
	now := time.Now()
	toTime := now
	if endDate != "" {
		if parsed, err := time.Parse(dateLayout, endDate); err == nil {
			toTime = parsed
		}
	}

	switch {
	case startDate != "":
		return startDate, toTime.Format(dateLayout)
	case daysBack > 0:
		return now.AddDate(0, 0, -daysBack).Format(dateLayout), toTime.Format(dateLayout)
	case test:
		return now.AddDate(0, 0, -controller.TestDailyLookbackDays).Format(dateLayout), toTime.Format(dateLayout)
	default:
		return now.AddDate(0, 0, -controller.DefaultDailyLookbackDays).Format(dateLayout), toTime.Format(dateLayout)
	}
}

// --------------------------------------------------------------------------
// scheduled
// --------------------------------------------------------------------------

func scheduledCmd() *cobra.Command {
	var test bool
	cmd := &cobra.Command{
		Use:   "scheduled",
		Short: "Consult the schedule table and run only what's due now (spec §4.H)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMode("scheduled", test, func(ctx context.Context, env *environment) (controller.Report, error) {
				return env.controller.Scheduled(ctx, test)
			})
		},
	}
	cmd.Flags().BoolVar(&test, "test", false, "Use a 7-day race/results window and cap master-table pagination at 5 pages")
	return cmd
}

// --------------------------------------------------------------------------
// list
// --------------------------------------------------------------------------

func listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every job's checkpoint record",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				logger.Error("failed to load configuration", "error", err)
				os.Exit(exitConfigError)
			}
			store, err := checkpoint.New(cfg.CheckpointDir)
			if err != nil {
				return err
			}
			records, err := store.List()
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("no checkpoints recorded yet")
				return nil
			}
			for _, rec := range records {
				fmt.Printf("%-20s chunk %d/%d  through %s  (as of %s)\n",
					rec.Job, rec.LastCompletedChunk+1, rec.TotalChunks, rec.LastChunkEndDate,
					rec.Timestamp.Format(time.RFC3339))
			}
			return nil
		},
	}
}

// --------------------------------------------------------------------------
// show-schedule
// --------------------------------------------------------------------------

func showScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show-schedule",
		Short: "Print the declared cadence table (spec §4.H)",
		RunE: func(cmd *cobra.Command, args []string) error {
			rows := [][2]string{
				{"Every 4h (06,10,14,18,22)", "RaceFetcher+ResultsFetcher, last-3-days window"},
				{"Daily 13:00", "Horses-via-racecard (part of RaceFetcher)"},
				{"Daily 02:30", "StatisticsCalculators"},
				{"Weekly Sunday 13:00", "Jockeys/Trainers/Owners MasterFetchers"},
				{"Monthly 1st 13:00", "Courses/Bookmakers/Regions MasterFetchers"},
			}
			for _, row := range rows {
				fmt.Printf("%-30s %s\n", row[0], row[1])
			}
			return nil
		},
	}
}

// --------------------------------------------------------------------------
// check
// --------------------------------------------------------------------------

func checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify database and API connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				logger.Error("failed to load configuration", "error", err)
				os.Exit(exitConfigError)
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			pool, err := db.New(ctx, cfg)
			if err != nil {
				logger.Error("database connection failed", "error", err)
				os.Exit(exitConfigError)
			}
			defer pool.Close()

			if err := pool.HealthCheck(ctx); err != nil {
				logger.Error("database health check failed", "error", err)
				os.Exit(exitConfigError)
			}
			logger.Info("database reachable")

			limiter := ratelimit.New(ratelimit.DefaultCapacity, ratelimit.DefaultRefillPerSecond)
			apiClient := racingapi.NewHTTPClient(cfg.APIBaseURL, cfg.APIUser, cfg.APIPass, limiter, logger)
			if _, err := apiClient.GetBookmakers(ctx); err != nil {
				if errors.Is(err, raceerr.AuthenticationError) {
					logger.Error("racing API authentication failed", "error", err)
					os.Exit(exitAuthError)
				}
				logger.Error("racing API connectivity check failed", "error", err)
				os.Exit(exitConfigError)
			}
			logger.Info("racing API reachable")
			return nil
		},
	}
}

// --------------------------------------------------------------------------
// Shared wiring
// --------------------------------------------------------------------------

// environment holds every dependency a mode's RunE needs after config
// load and DB connect, assembled once per invocation (spec §9 "construct
// once at Controller boot").
type environment struct {
	pool       *db.Pool
	controller *controller.Controller
}

// runMode handles config loading, DB connection, dependency wiring,
// context cancellation, running fn, and writing the run's JSON summary
// (spec §6/§7), translating the outcome into the documented exit codes.
func runMode(mode string, test bool, fn func(ctx context.Context, env *environment) (controller.Report, error)) error {
	started := time.Now()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(exitConfigError)
	}
	if test {
		cfg.TestMode = true
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	env, pool, err := wire(ctx, cfg)
	if err != nil {
		logger.Error("failed to wire dependencies", "error", err)
		os.Exit(exitConfigError)
	}
	defer pool.Close()

	report, runErr := fn(ctx, env)
	summary := runlog.FromReport(mode, started, report, fatalOnly(runErr))

	if path, writeErr := runlog.Write(cfg.LogDir, summary); writeErr != nil {
		logger.Error("failed to write run summary", "error", writeErr)
	} else {
		logger.Info("run summary written", "path", path, "status", summary.Status)
	}

	switch {
	case runErr != nil && errors.Is(runErr, raceerr.AuthenticationError):
		logger.Error(mode+" aborted", "error", runErr)
		os.Exit(exitAuthError)
	case runErr != nil && raceerr.Fatal(runErr):
		logger.Error(mode+" aborted", "error", runErr)
		os.Exit(exitPartialFailure)
	case runErr != nil:
		logger.Error(mode+" failed", "error", runErr)
		os.Exit(exitPartialFailure)
	case report.Failed():
		logger.Warn(mode + " completed with partial failures")
		os.Exit(exitPartialFailure)
	}
	return nil
}

// fatalOnly passes runErr through only when it's classified fatal, so
// non-fatal per-job errors (already recorded in the report) don't also
// populate the summary's top-level FatalError.
func fatalOnly(err error) error {
	if err != nil && raceerr.Fatal(err) {
		return err
	}
	return nil
}

// wire constructs every component and assembles the Controller (spec §9
// "construct them once at Controller boot").
func wire(ctx context.Context, cfg *config.Config) (*environment, *db.Pool, error) {
	pool, err := db.New(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	repo := repository.New(pool.Pool, logger, cfg.RepositoryMaxConcurrentTx)
	limiter := ratelimit.New(ratelimit.DefaultCapacity, ratelimit.DefaultRefillPerSecond)
	apiClient := racingapi.NewHTTPClient(cfg.APIBaseURL, cfg.APIUser, cfg.APIPass, limiter, logger)
	extractor := entity.New(repo, apiClient, logger)

	raceFetcher := fetch.NewRaceFetcher(apiClient, repo, extractor, cfg.Regions, logger)
	resultsFetcher := fetch.NewResultsFetcher(apiClient, repo, cfg.Regions, logger)
	masters := fetch.NewMasterFetchers(apiClient, repo, cfg.Regions, logger)
	if cfg.TestMode {
		masters.SetMaxPages(controller.TestMasterPageLimit)
	}
	calculators := stats.New(repo, logger)

	checkpoints, err := checkpoint.New(cfg.CheckpointDir)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("open checkpoint store: %w", err)
	}

	ctrl := controller.New(raceFetcher, resultsFetcher, masters, calculators, checkpoints, logger)
	return &environment{pool: pool, controller: ctrl}, pool, nil
}
