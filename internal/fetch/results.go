package fetch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/albapepper/racesync/internal/model"
	"github.com/albapepper/racesync/internal/parse"
	"github.com/albapepper/racesync/internal/raceerr"
	"github.com/albapepper/racesync/internal/racingapi"
)

// ResultsFetcher implements spec §4.F: pull results for a date window and
// patch post-race columns onto the existing Race/Runner rows without
// overwriting pre-race fields absent from the results response.
type ResultsFetcher struct {
	api     racingapi.APIClient
	repo    Repository
	regions []string
	logger  *slog.Logger
}

func NewResultsFetcher(api racingapi.APIClient, repo Repository, regions []string, logger *slog.Logger) *ResultsFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &ResultsFetcher{api: api, repo: repo, regions: regions, logger: logger}
}

// Fetch runs the algorithm in spec §4.F for the [dateFrom, dateTo] window.
func (f *ResultsFetcher) Fetch(ctx context.Context, dateFrom, dateTo string) (Summary, error) {
	var summary Summary

	docs, err := f.api.GetResults(ctx, dateFrom, dateTo, f.regions)
	if err != nil {
		return summary, err
	}

	var races []model.Race
	var runners []model.Runner
	var results []model.RaceResult

	for _, doc := range docs {
		exists, _, err := f.repo.RaceByID(ctx, doc.RaceID)
		if err != nil {
			f.logger.Error("results fetch: race lookup failed", "race_id", doc.RaceID, "error", err)
			summary.FailedBatches++
			continue
		}
		if !exists {
			// A result for a race we never saw via racecards would orphan
			// the Runner/RaceResult rows this document implies — skip and
			// record it, never write the child rows (spec §3 invariant).
			f.logger.Error("results fetch: race not found, skipping to avoid orphaned runners",
				"race_id", doc.RaceID, "error", raceerr.InvariantViolation)
			summary.FailedBatches++
			continue
		}

		races = append(races, normalizeResultRace(doc))
		for _, rr := range doc.Runners {
			runners = append(runners, normalizeResultRunner(doc.RaceID, rr))
			results = append(results, normalizeRaceResult(doc.RaceID, rr))
		}
	}

	summary.RacesFetched = len(races)
	summary.RunnersFetched = len(runners)

	if len(races) > 0 {
		if _, err := f.repo.UpsertRaces(ctx, races); err != nil {
			summary.FailedBatches++
			return summary, fmt.Errorf("patch races with results: %w", err)
		}
	}
	if len(runners) > 0 {
		if _, err := f.repo.UpsertRunners(ctx, runners); err != nil {
			summary.FailedBatches++
			return summary, fmt.Errorf("patch runners with results: %w", err)
		}
	}
	if len(results) > 0 {
		if _, err := f.repo.UpsertRaceResults(ctx, results); err != nil {
			summary.FailedBatches++
			return summary, fmt.Errorf("upsert race results: %w", err)
		}
	}

	return summary, nil
}

func normalizeResultRace(doc racingapi.RaceResultDoc) model.Race {
	race := model.Race{
		ID:          doc.RaceID,
		HasResult:   true,
		WinningTime: doc.WinningTime,
		Comments:    doc.Comments,
	}
	if len(doc.Tote) > 0 {
		dividends := make(map[string]float64, len(doc.Tote))
		for k, v := range doc.Tote {
			if amount, _, ok := parse.Currency(v); ok {
				dividends[k] = amount
			}
		}
		race.ToteDividends = dividends
		if win, ok := dividends["win"]; ok {
			race.ToteWin = &win
		}
	}
	return race
}

func normalizeResultRunner(raceID string, rr racingapi.RunnerResultDoc) model.Runner {
	runner := model.Runner{
		RaceID:         raceID,
		HorseID:        rr.HorseID,
		JockeyID:       rr.JockeyID,
		TrainerID:      rr.TrainerID,
		Position:       parse.Position(rr.Position),
		DistanceBeaten: rr.OvrBtn,
		FinishingTime:  rr.Time,
		Comment:        rr.Comment,
		StartingPriceFractional: rr.SP,
	}
	if amount, _, ok := parse.Currency(rr.Prize); ok {
		runner.PrizeWon = &amount
	}
	if dec, ok := parseDecimal(rr.SPDec); ok {
		runner.StartingPriceDecimal = &dec
	}
	return runner
}

func normalizeRaceResult(raceID string, rr racingapi.RunnerResultDoc) model.RaceResult {
	result := model.RaceResult{
		RaceID:         raceID,
		HorseID:        rr.HorseID,
		JockeyID:       rr.JockeyID,
		TrainerID:      rr.TrainerID,
		Position:       parse.Position(rr.Position),
		DistanceBeaten: rr.OvrBtn,
		FinishingTime:  rr.Time,
		Comment:        rr.Comment,
	}
	if amount, _, ok := parse.Currency(rr.Prize); ok {
		result.PrizeWon = &amount
	}
	if dec, ok := parseDecimal(rr.SPDec); ok {
		result.StartingPriceDecimal = &dec
	}
	return result
}

func parseDecimal(text string) (float64, bool) {
	if text == "" {
		return 0, false
	}
	var f float64
	_, err := fmt.Sscanf(text, "%g", &f)
	if err != nil {
		return 0, false
	}
	return f, true
}
