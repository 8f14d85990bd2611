package fetch

import (
	"context"
	"errors"
	"testing"

	"github.com/albapepper/racesync/internal/entity"
	"github.com/albapepper/racesync/internal/model"
	"github.com/albapepper/racesync/internal/racingapi"
)

// fakeRepo is a minimal in-memory stand-in satisfying the Repository
// interface for fetch package tests.
type fakeRepo struct {
	races       map[string]model.Race
	runnerCount int
	resultCount int

	failUpsertRaces   bool
	failUpsertRunners bool
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{races: map[string]model.Race{}}
}

func (r *fakeRepo) UpsertRegions(ctx context.Context, rows []model.Region) (int, error)     { return len(rows), nil }
func (r *fakeRepo) UpsertCourses(ctx context.Context, rows []model.Course) (int, error)     { return len(rows), nil }
func (r *fakeRepo) UpsertBookmakers(ctx context.Context, rows []model.Bookmaker) (int, error) {
	return len(rows), nil
}
func (r *fakeRepo) UpsertJockeys(ctx context.Context, rows []model.Jockey) (int, error)   { return len(rows), nil }
func (r *fakeRepo) UpsertTrainers(ctx context.Context, rows []model.Trainer) (int, error) { return len(rows), nil }
func (r *fakeRepo) UpsertOwners(ctx context.Context, rows []model.Owner) (int, error)     { return len(rows), nil }

func (r *fakeRepo) UpsertHorses(ctx context.Context, rows []model.Horse) (int, error) { return len(rows), nil }
func (r *fakeRepo) UpsertPedigrees(ctx context.Context, rows []model.HorsePedigree) (int, error) {
	return len(rows), nil
}
func (r *fakeRepo) UpsertSires(ctx context.Context, rows []model.Ancestor) (int, error)    { return len(rows), nil }
func (r *fakeRepo) UpsertDams(ctx context.Context, rows []model.Ancestor) (int, error)     { return len(rows), nil }
func (r *fakeRepo) UpsertDamsires(ctx context.Context, rows []model.Ancestor) (int, error) { return len(rows), nil }

func (r *fakeRepo) UpsertRaces(ctx context.Context, rows []model.Race) (int, error) {
	if r.failUpsertRaces {
		return 0, errors.New("boom")
	}
	for _, row := range rows {
		r.races[row.ID] = row
	}
	return len(rows), nil
}

func (r *fakeRepo) UpsertRunners(ctx context.Context, rows []model.Runner) (int, error) {
	if r.failUpsertRunners {
		return 0, errors.New("boom")
	}
	r.runnerCount += len(rows)
	return len(rows), nil
}

func (r *fakeRepo) UpsertRaceResults(ctx context.Context, rows []model.RaceResult) (int, error) {
	r.resultCount += len(rows)
	return len(rows), nil
}

func (r *fakeRepo) RaceByID(ctx context.Context, id string) (bool, bool, error) {
	row, ok := r.races[id]
	return ok, row.HasResult, nil
}

// fakeExtractor returns a fixed Extracted value regardless of input.
type fakeExtractor struct {
	result entity.Extracted
}

func (f fakeExtractor) Extract(ctx context.Context, races []racingapi.RaceDoc) (entity.Extracted, error) {
	return f.result, nil
}

// fakeAPI implements only the methods each test exercises.
type fakeAPI struct {
	racingapi.APIClient
	racecards []racingapi.RaceDoc
	results   []racingapi.RaceResultDoc
	courses   []racingapi.CourseDoc
	jockeyPages [][]racingapi.PersonDoc
}

func (f *fakeAPI) GetRacecardsPro(ctx context.Context, dateFrom, dateTo string, regions []string) ([]racingapi.RaceDoc, error) {
	return f.racecards, nil
}

func (f *fakeAPI) GetResults(ctx context.Context, dateFrom, dateTo string, regions []string) ([]racingapi.RaceResultDoc, error) {
	return f.results, nil
}

func (f *fakeAPI) GetCourses(ctx context.Context, regions []string) ([]racingapi.CourseDoc, error) {
	return f.courses, nil
}

func (f *fakeAPI) GetJockeys(ctx context.Context, regions []string, page int) ([]racingapi.PersonDoc, bool, error) {
	idx := page - 1
	if idx < 0 || idx >= len(f.jockeyPages) {
		return nil, false, nil
	}
	return f.jockeyPages[idx], idx < len(f.jockeyPages)-1, nil
}

func sampleRaceDoc() racingapi.RaceDoc {
	return racingapi.RaceDoc{
		RaceID: "rac_1",
		Date:   "2026-06-01",
		OffDT:  "2026-06-01 14:30:00",
		Distance: "2m4f",
		Prize:    "£5,900",
		Runners: []racingapi.RunnerDoc{
			{HorseID: "hrs_1", Number: "1a", Weight: "8-13", Draw: "3", Age: "5"},
		},
	}
}

func TestRaceFetcherWritesRacesAndRunners(t *testing.T) {
	repo := newFakeRepo()
	api := &fakeAPI{racecards: []racingapi.RaceDoc{sampleRaceDoc()}}
	ex := fakeExtractor{result: entity.Extracted{HorsesDiscovered: 1, HorsesEnriched: 1}}
	f := NewRaceFetcher(api, repo, ex, []string{"gb"}, nil)

	summary, err := f.Fetch(context.Background(), "2026-06-01", "2026-06-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.RacesFetched != 1 || summary.RunnersFetched != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	race, ok := repo.races["rac_1"]
	if !ok {
		t.Fatal("expected race rac_1 to be written")
	}
	if race.DistanceM == nil || *race.DistanceM == 0 {
		t.Errorf("expected distance parsed, got %+v", race.DistanceM)
	}
	if repo.runnerCount != 1 {
		t.Errorf("expected 1 runner written, got %d", repo.runnerCount)
	}
}

func TestRaceFetcherReturnsErrorOnRaceWriteFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.failUpsertRaces = true
	api := &fakeAPI{racecards: []racingapi.RaceDoc{sampleRaceDoc()}}
	f := NewRaceFetcher(api, repo, fakeExtractor{}, nil, nil)

	_, err := f.Fetch(context.Background(), "2026-06-01", "2026-06-01")
	if err == nil {
		t.Fatal("expected error when race upsert fails")
	}
}

func TestResultsFetcherSkipsUnknownRace(t *testing.T) {
	repo := newFakeRepo() // no races known
	api := &fakeAPI{results: []racingapi.RaceResultDoc{
		{RaceID: "rac_unknown", Runners: []racingapi.RunnerResultDoc{{HorseID: "hrs_1", Position: "1"}}},
	}}
	f := NewResultsFetcher(api, repo, nil, nil)

	summary, err := f.Fetch(context.Background(), "2026-06-01", "2026-06-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.FailedBatches != 1 {
		t.Errorf("expected the unknown race to count as a failed batch, got %+v", summary)
	}
	if repo.resultCount != 0 {
		t.Errorf("expected no result rows written for an unknown race, got %d", repo.resultCount)
	}
}

func TestResultsFetcherPatchesKnownRace(t *testing.T) {
	repo := newFakeRepo()
	repo.races["rac_1"] = model.Race{ID: "rac_1"}
	api := &fakeAPI{results: []racingapi.RaceResultDoc{
		{RaceID: "rac_1", WinningTime: "4:12.5", Runners: []racingapi.RunnerResultDoc{
			{HorseID: "hrs_1", Position: "1", Prize: "£5,900"},
			{HorseID: "hrs_2", Position: "PU"},
		}},
	}}
	f := NewResultsFetcher(api, repo, nil, nil)

	summary, err := f.Fetch(context.Background(), "2026-06-01", "2026-06-01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.RunnersFetched != 2 {
		t.Errorf("expected 2 runners, got %d", summary.RunnersFetched)
	}
	race := repo.races["rac_1"]
	if !race.HasResult {
		t.Error("expected has_result to be set true on patch")
	}
	if repo.resultCount != 2 {
		t.Errorf("expected 2 race_results rows, got %d", repo.resultCount)
	}
}

func TestMasterFetchersFetchCoursesDerivesRegions(t *testing.T) {
	repo := newFakeRepo()
	api := &fakeAPI{courses: []racingapi.CourseDoc{
		{ID: "crs_1", Course: "Ascot", RegionCode: "GB", Region: "Great Britain"},
		{ID: "crs_2", Course: "Longchamp", RegionCode: "FR", Region: "France"},
	}}
	mf := NewMasterFetchers(api, repo, nil, nil)

	n, err := mf.FetchCourses(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 courses, got %d", n)
	}
}

func TestMasterFetchersPaginatesJockeys(t *testing.T) {
	repo := newFakeRepo()
	api := &fakeAPI{jockeyPages: [][]racingapi.PersonDoc{
		{{ID: "jky_1", Name: "A Jockey"}},
		{{ID: "jky_2", Name: "B Jockey"}},
	}}
	mf := NewMasterFetchers(api, repo, nil, nil)

	n, err := mf.FetchJockeys(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Errorf("expected both pages collected, got %d", n)
	}
}
