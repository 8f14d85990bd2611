package fetch

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/albapepper/racesync/internal/model"
	"github.com/albapepper/racesync/internal/parse"
	"github.com/albapepper/racesync/internal/raceerr"
	"github.com/albapepper/racesync/internal/racingapi"
)

// RaceFetcher implements spec §4.E: pull racecards for a date window,
// extract reference entities, and upsert everything in dependency order
// so a failure mid-stream never leaves a Runner without its Race or
// Horse.
type RaceFetcher struct {
	api    racingapi.APIClient
	repo   Repository
	extract Extractor
	regions []string
	logger *slog.Logger
}

func NewRaceFetcher(api racingapi.APIClient, repo Repository, extract Extractor, regions []string, logger *slog.Logger) *RaceFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &RaceFetcher{api: api, repo: repo, extract: extract, regions: regions, logger: logger}
}

// Fetch runs the algorithm in spec §4.E for the [dateFrom, dateTo] window
// (both "2006-01-02").
func (f *RaceFetcher) Fetch(ctx context.Context, dateFrom, dateTo string) (Summary, error) {
	var summary Summary

	docs, err := f.api.GetRacecardsPro(ctx, dateFrom, dateTo, f.regions)
	if err != nil {
		return summary, err
	}

	extracted, err := f.extract.Extract(ctx, docs)
	if err != nil {
		return summary, err
	}
	summary.HorsesDiscovered = extracted.HorsesDiscovered
	summary.HorsesEnriched = extracted.HorsesEnriched

	// Dependency order: people before horses, horses before pedigree,
	// pedigree/ancestors before races, races before runners.
	writes := []struct {
		label string
		run   func() (int, error)
	}{
		{"jockeys", func() (int, error) { return f.repo.UpsertJockeys(ctx, extracted.Jockeys) }},
		{"trainers", func() (int, error) { return f.repo.UpsertTrainers(ctx, extracted.Trainers) }},
		{"owners", func() (int, error) { return f.repo.UpsertOwners(ctx, extracted.Owners) }},
		{"horses", func() (int, error) { return f.repo.UpsertHorses(ctx, extracted.Horses) }},
		{"sires", func() (int, error) { return f.repo.UpsertSires(ctx, extracted.Sires) }},
		{"dams", func() (int, error) { return f.repo.UpsertDams(ctx, extracted.Dams) }},
		{"damsires", func() (int, error) { return f.repo.UpsertDamsires(ctx, extracted.Damsires) }},
		{"pedigrees", func() (int, error) { return f.repo.UpsertPedigrees(ctx, extracted.Pedigrees) }},
	}
	horsesFailed := false
	for _, w := range writes {
		if _, err := w.run(); err != nil {
			f.logger.Error("race fetch: entity upsert failed", "op", w.label, "error", err)
			summary.FailedBatches++
			if w.label == "horses" {
				horsesFailed = true
			}
		}
	}

	races, runners := normalizeRaces(docs)
	summary.RacesFetched = len(races)
	summary.RunnersFetched = len(runners)

	if _, err := f.repo.UpsertRaces(ctx, races); err != nil {
		f.logger.Error("race fetch: upsert races failed", "error", err)
		summary.FailedBatches++
		return summary, raceerr.WriteError
	}
	if horsesFailed {
		// Runners are not written while their Horse rows may be missing.
		return summary, raceerr.WriteError
	}
	if _, err := f.repo.UpsertRunners(ctx, runners); err != nil {
		f.logger.Error("race fetch: upsert runners failed", "error", err)
		summary.FailedBatches++
		return summary, raceerr.WriteError
	}
	if summary.FailedBatches > 0 {
		return summary, raceerr.WriteError
	}

	return summary, nil
}

// normalizeRaces maps RaceDoc/RunnerDoc into the Race/Runner column set,
// parsing weight, distance, and prize text along the way (spec §4.E
// "numeric conventions").
func normalizeRaces(docs []racingapi.RaceDoc) ([]model.Race, []model.Runner) {
	races := make([]model.Race, 0, len(docs))
	var runners []model.Runner

	for _, doc := range docs {
		races = append(races, normalizeRace(doc))
		for _, rd := range doc.Runners {
			runners = append(runners, normalizeRunner(doc.RaceID, rd))
		}
	}
	return races, runners
}

func normalizeRace(doc racingapi.RaceDoc) model.Race {
	race := model.Race{
		ID:           doc.RaceID,
		CourseID:     doc.CourseID,
		Class:        doc.Class,
		Pattern:      doc.Pattern,
		Type:         raceTypeFrom(doc.Type),
		DistanceText: doc.Distance,
		Going:        doc.Going,
		Restrictions: doc.Restrictions,
	}
	if date, ok := parseDate(doc.Date); ok {
		race.Date = *date
	}
	if off, ok := parseDateTime(doc.OffDT); ok {
		race.OffTime = *off
	}
	if metres, ok := parse.Distance(doc.Distance); ok {
		race.DistanceM = &metres
	} else if metres, ok := parse.Distance(doc.DistanceF); ok {
		race.DistanceM = &metres
	}
	if amount, code, ok := parse.Currency(doc.Prize); ok {
		race.PrizeAmount = &amount
		race.PrizeCurrency = code
	}
	return race
}

func normalizeRunner(raceID string, rd racingapi.RunnerDoc) model.Runner {
	runner := model.Runner{
		RaceID:      raceID,
		HorseID:     rd.HorseID,
		FormFigures: rd.Form,
		Headgear:    rd.Headgear,
		SilkURL:     rd.SilkURL,
		JockeyID:    rd.JockeyID,
		JockeyName:  rd.Jockey,
		TrainerID:   rd.TrainerID,
		TrainerName: rd.Trainer,
		OwnerID:     rd.OwnerID,
		OwnerName:   rd.Owner,
		SireName:    rd.Pedigree.Sire,
		DamName:     rd.Pedigree.Dam,
		DamsireName: rd.Pedigree.Damsire,
		WeightText:  rd.Weight,
	}
	if lbs, ok := parse.Weight(rd.Weight); ok {
		runner.WeightLbs = &lbs
	}
	if draw, err := strconv.Atoi(rd.Draw); err == nil {
		runner.Draw = &draw
	}
	if age, err := strconv.Atoi(rd.Age); err == nil {
		runner.Age = &age
	}
	if or, err := strconv.Atoi(rd.OR); err == nil {
		runner.OfficialRating = &or
	}
	if claim, err := strconv.Atoi(rd.JockeyClaim); err == nil {
		runner.JockeyClaim = &claim
	}
	if n, ok := saddleClothNumber(rd.Number); ok {
		runner.SaddleClothNumber = &n
	}
	return runner
}

// saddleClothNumber parses the cloth number, which may carry a trailing
// letter for a divided race ("1a") — the letter is dropped, the Go column
// only tracks the numeric stall/cloth grouping.
func saddleClothNumber(text string) (int, bool) {
	for i, r := range text {
		if r < '0' || r > '9' {
			text = text[:i]
			break
		}
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, false
	}
	return n, true
}

func raceTypeFrom(text string) model.RaceType {
	switch text {
	case "Hurdle":
		return model.RaceHurdle
	case "Chase":
		return model.RaceChase
	case "NH Flat":
		return model.RaceNHFlat
	default:
		return model.RaceFlat
	}
}

func parseDate(text string) (*time.Time, bool) {
	t, err := time.Parse("2006-01-02", text)
	if err != nil {
		return nil, false
	}
	return &t, true
}

func parseDateTime(text string) (*time.Time, bool) {
	t, err := time.Parse("2006-01-02 15:04:05", text)
	if err != nil {
		return nil, false
	}
	return &t, true
}
