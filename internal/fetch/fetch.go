// Package fetch implements RaceFetcher, ResultsFetcher, and
// MasterFetchers (spec §4.E, §4.F, §4.G) — the components that pull
// documents from the APIClient, normalize them via internal/parse and
// internal/entity, and write them through the Repository in the fixed
// dependency order spec §4.E requires (reference entities before
// transactional, Races before Runners). Grounded on the teacher's
// SeedNBA/SeedFootball orchestration shape (internal/seed/nba.go,
// internal/seed/football.go): fetch documents, extract entities, upsert
// in phases, and accumulate a summary as you go.
package fetch

import (
	"context"

	"github.com/albapepper/racesync/internal/entity"
	"github.com/albapepper/racesync/internal/model"
	"github.com/albapepper/racesync/internal/racingapi"
)

// Summary is the per-call result every fetcher returns (spec §4.E).
type Summary struct {
	RacesFetched     int
	RunnersFetched   int
	HorsesDiscovered int
	HorsesEnriched   int
	FailedBatches    int
}

// Extractor is the subset of entity.Extractor RaceFetcher depends on.
type Extractor interface {
	Extract(ctx context.Context, races []racingapi.RaceDoc) (entity.Extracted, error)
}

// Repository is the subset of repository.Repository the fetchers depend
// on — every upsert operation spec §4.C lists plus the race existence
// lookup ResultsFetcher needs.
type Repository interface {
	UpsertRegions(ctx context.Context, rows []model.Region) (int, error)
	UpsertCourses(ctx context.Context, rows []model.Course) (int, error)
	UpsertBookmakers(ctx context.Context, rows []model.Bookmaker) (int, error)

	UpsertJockeys(ctx context.Context, rows []model.Jockey) (int, error)
	UpsertTrainers(ctx context.Context, rows []model.Trainer) (int, error)
	UpsertOwners(ctx context.Context, rows []model.Owner) (int, error)

	UpsertHorses(ctx context.Context, rows []model.Horse) (int, error)
	UpsertPedigrees(ctx context.Context, rows []model.HorsePedigree) (int, error)
	UpsertSires(ctx context.Context, rows []model.Ancestor) (int, error)
	UpsertDams(ctx context.Context, rows []model.Ancestor) (int, error)
	UpsertDamsires(ctx context.Context, rows []model.Ancestor) (int, error)

	UpsertRaces(ctx context.Context, rows []model.Race) (int, error)
	UpsertRunners(ctx context.Context, rows []model.Runner) (int, error)
	UpsertRaceResults(ctx context.Context, rows []model.RaceResult) (int, error)

	RaceByID(ctx context.Context, id string) (exists bool, hasResult bool, err error)
}
