package entity

import (
	"context"
	"testing"

	"github.com/albapepper/racesync/internal/racingapi"
)

type fakeRepo struct {
	existing map[string]bool
	nameToID map[string]string
}

func (f *fakeRepo) ExistingHorseIds(ctx context.Context, candidateIDs []string) (map[string]bool, error) {
	return f.existing, nil
}

func (f *fakeRepo) LookupHorseIdByName(ctx context.Context, name, region string) (string, bool, error) {
	id, ok := f.nameToID[name]
	return id, ok, nil
}

type fakeAPIClient struct {
	racingapi.APIClient
	horses map[string]racingapi.HorseDetailDoc
}

func (f *fakeAPIClient) GetHorsePro(ctx context.Context, id string) (racingapi.HorseDetailDoc, error) {
	d, ok := f.horses[id]
	if !ok {
		return racingapi.HorseDetailDoc{}, errNotFound
	}
	return d, nil
}

var errNotFound = &notFoundErr{}

type notFoundErr struct{}

func (e *notFoundErr) Error() string { return "horse not found" }

func sampleRace() racingapi.RaceDoc {
	return racingapi.RaceDoc{
		RaceID: "rac_1",
		Runners: []racingapi.RunnerDoc{
			{
				HorseID: "hrs_1", Horse: "Thunder Run",
				JockeyID: "jky_1", Jockey: "A Jockey",
				TrainerID: "trn_1", Trainer: "A Trainer", TrainerLoc: "Lambourn",
				OwnerID: "own_1", Owner: "An Owner",
				Pedigree: racingapi.PedigreeDoc{
					SireID: "sir_1", Sire: "Galileo",
					DamID: "dam_1", Dam: "Urban Sea",
				},
			},
			{
				HorseID: "hrs_1", Horse: "", // second occurrence, empty name
				JockeyID: "jky_1", Jockey: "",
				TrainerID: "trn_1", Trainer: "",
			},
		},
	}
}

func TestExtractDeduplicatesAndKeepsFirstNonEmpty(t *testing.T) {
	repo := &fakeRepo{existing: map[string]bool{"hrs_1": true}}
	api := &fakeAPIClient{horses: map[string]racingapi.HorseDetailDoc{}}
	ex := New(repo, api, nil)

	result, err := ex.Extract(context.Background(), []racingapi.RaceDoc{sampleRace()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Horses) != 1 {
		t.Fatalf("expected 1 deduplicated horse, got %d", len(result.Horses))
	}
	if result.Horses[0].Name != "Thunder Run" {
		t.Errorf("expected first non-empty name kept, got %q", result.Horses[0].Name)
	}
	if len(result.Jockeys) != 1 || result.Jockeys[0].Name != "A Jockey" {
		t.Errorf("unexpected jockeys: %+v", result.Jockeys)
	}
	if result.HorsesDiscovered != 0 {
		t.Errorf("horse was marked existing, should not count as discovered")
	}
	if len(result.Pedigrees) != 1 || result.Pedigrees[0].SireName != "Galileo" {
		t.Errorf("unexpected pedigrees: %+v", result.Pedigrees)
	}
}

func TestExtractEnrichesNewHorse(t *testing.T) {
	repo := &fakeRepo{existing: map[string]bool{}} // hrs_1 not yet known
	api := &fakeAPIClient{horses: map[string]racingapi.HorseDetailDoc{
		"hrs_1": {ID: "hrs_1", Name: "Thunder Run", Colour: "bay", SireID: "sir_1", Sire: "Galileo"},
	}}
	ex := New(repo, api, nil)

	result, err := ex.Extract(context.Background(), []racingapi.RaceDoc{sampleRace()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.HorsesDiscovered != 1 || result.HorsesEnriched != 1 {
		t.Fatalf("expected 1 discovered and 1 enriched, got %+v", result)
	}
	if result.Horses[0].Colour != "bay" {
		t.Errorf("expected enrichment to fill colour, got %q", result.Horses[0].Colour)
	}
}

func TestExtractSurvivesEnrichmentFailure(t *testing.T) {
	repo := &fakeRepo{existing: map[string]bool{}}
	api := &fakeAPIClient{horses: map[string]racingapi.HorseDetailDoc{}} // GetHorsePro always fails
	ex := New(repo, api, nil)

	result, err := ex.Extract(context.Background(), []racingapi.RaceDoc{sampleRace()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Horses) != 1 || result.Horses[0].Name != "Thunder Run" {
		t.Fatalf("expected base row preserved on enrichment failure, got %+v", result.Horses)
	}
	if result.HorsesEnriched != 0 {
		t.Errorf("expected no successful enrichments, got %d", result.HorsesEnriched)
	}
}

func TestExtractBackfillsAncestorHorseRef(t *testing.T) {
	repo := &fakeRepo{
		existing: map[string]bool{"hrs_1": true},
		nameToID: map[string]string{"Galileo": "hrs_sire_1"},
	}
	api := &fakeAPIClient{horses: map[string]racingapi.HorseDetailDoc{}}
	ex := New(repo, api, nil)

	result, err := ex.Extract(context.Background(), []racingapi.RaceDoc{sampleRace()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Sires) != 1 || result.Sires[0].HorseID != "hrs_sire_1" {
		t.Fatalf("expected sire back-reference resolved, got %+v", result.Sires)
	}
}
