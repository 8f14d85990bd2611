// Package entity implements EntityExtractor (spec §4.D): given a batch of
// race documents, it produces the deduplicated reference-entity rows
// (jockeys, trainers, owners, horses, sires/dams/damsires, pedigrees)
// those documents imply, enriching newly discovered horses via
// APIClient.GetHorsePro. Grounded on the teacher's seed-time upsert
// shape (go/internal/seed/upsert.go nilEmpty/nonNilMap helpers) pushed
// one layer earlier: here we build deduplicated in-memory rows before a
// single batched Repository write, rather than upserting row by row.
package entity

import (
	"context"
	"log/slog"
	"time"

	"github.com/albapepper/racesync/internal/model"
	"github.com/albapepper/racesync/internal/racingapi"
)

// Repository is the subset of repository.Repository EntityExtractor
// depends on, so tests can substitute a fake without a database.
type Repository interface {
	ExistingHorseIds(ctx context.Context, candidateIDs []string) (map[string]bool, error)
	LookupHorseIdByName(ctx context.Context, name, region string) (string, bool, error)
}

// Extracted is the deduplicated output of one extraction pass.
type Extracted struct {
	Jockeys  []model.Jockey
	Trainers []model.Trainer
	Owners   []model.Owner
	Horses   []model.Horse
	Sires    []model.Ancestor
	Dams     []model.Ancestor
	Damsires []model.Ancestor
	Pedigrees []model.HorsePedigree

	HorsesDiscovered int
	HorsesEnriched   int
}

// Extractor runs the extraction algorithm described in spec §4.D.
type Extractor struct {
	repo   Repository
	api    racingapi.APIClient
	logger *slog.Logger
}

func New(repo Repository, api racingapi.APIClient, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{repo: repo, api: api, logger: logger}
}

// dedup accumulates rows keyed by ID, applying the tie-break policy: keep
// the first non-empty value per field, never overwrite a non-empty value
// with an empty one (spec §4.D).
type dedup struct {
	jockeys  map[string]model.Jockey
	jockeyOrder []string
	trainers map[string]model.Trainer
	trainerOrder []string
	owners   map[string]model.Owner
	ownerOrder []string
	horses   map[string]model.Horse
	horseOrder []string
	sires    map[string]model.Ancestor
	sireOrder []string
	dams     map[string]model.Ancestor
	damOrder []string
	damsires map[string]model.Ancestor
	damsireOrder []string
	pedigrees map[string]model.HorsePedigree
	pedigreeOrder []string
}

func newDedup() *dedup {
	return &dedup{
		jockeys:  map[string]model.Jockey{},
		trainers: map[string]model.Trainer{},
		owners:   map[string]model.Owner{},
		horses:   map[string]model.Horse{},
		sires:    map[string]model.Ancestor{},
		dams:     map[string]model.Ancestor{},
		damsires: map[string]model.Ancestor{},
		pedigrees: map[string]model.HorsePedigree{},
	}
}

// Extract runs the full algorithm over one batch of race documents.
func (e *Extractor) Extract(ctx context.Context, races []racingapi.RaceDoc) (Extracted, error) {
	d := newDedup()

	for _, race := range races {
		for _, runner := range race.Runners {
			d.addJockey(runner.JockeyID, runner.Jockey)
			d.addTrainer(runner.TrainerID, runner.Trainer, runner.TrainerLoc)
			d.addOwner(runner.OwnerID, runner.Owner)
			d.addHorseFromRunner(runner)
			d.addAncestors(runner.Pedigree)
			d.addPedigree(runner)
		}
	}

	candidateIDs := append([]string{}, d.horseOrder...)
	existing, err := e.repo.ExistingHorseIds(ctx, candidateIDs)
	if err != nil {
		return Extracted{}, err
	}

	result := Extracted{}
	for _, id := range d.horseOrder {
		if !existing[id] {
			result.HorsesDiscovered++
			e.enrich(ctx, d, id, &result)
		}
	}

	for _, anc := range allAncestors(d) {
		e.backfillHorseRef(ctx, d, anc)
	}

	result.Jockeys = jockeyValues(d)
	result.Trainers = trainerValues(d)
	result.Owners = ownerValues(d)
	result.Horses = horseValues(d)
	result.Sires = ancestorValues(d.sires, d.sireOrder)
	result.Dams = ancestorValues(d.dams, d.damOrder)
	result.Damsires = ancestorValues(d.damsires, d.damsireOrder)
	result.Pedigrees = pedigreeValues(d)

	return result, nil
}

// enrich calls APIClient.GetHorsePro for a newly discovered horse and
// merges the returned fields into its row. Failure is non-fatal: the
// base row from the race document is still kept (spec §4.D "failure
// semantics").
func (e *Extractor) enrich(ctx context.Context, d *dedup, horseID string, result *Extracted) {
	detail, err := e.api.GetHorsePro(ctx, horseID)
	if err != nil {
		e.logger.Warn("horse enrichment failed, keeping base row", "horse_id", horseID, "error", err)
		return
	}
	result.HorsesEnriched++

	h := d.horses[horseID]
	h.Name = firstNonEmpty(h.Name, detail.Name)
	h.SexCode = firstNonEmpty(h.SexCode, detail.SexCode)
	h.Colour = firstNonEmpty(h.Colour, detail.Colour)
	h.Region = firstNonEmpty(h.Region, detail.Region)
	h.SireID = firstNonEmpty(h.SireID, detail.SireID)
	h.DamID = firstNonEmpty(h.DamID, detail.DamID)
	h.DamsireID = firstNonEmpty(h.DamsireID, detail.DamsireID)
	if dob, ok := parseDOB(detail.DOB); ok {
		h.DOB = dob
	}
	d.horses[horseID] = h

	if detail.SireID != "" || detail.DamID != "" || detail.DamsireID != "" {
		ped := d.pedigrees[horseID]
		ped.HorseID = horseID
		ped.SireID = firstNonEmpty(ped.SireID, detail.SireID)
		ped.SireName = firstNonEmpty(ped.SireName, detail.Sire)
		ped.DamID = firstNonEmpty(ped.DamID, detail.DamID)
		ped.DamName = firstNonEmpty(ped.DamName, detail.Dam)
		ped.DamsireID = firstNonEmpty(ped.DamsireID, detail.DamsireID)
		ped.DamsireName = firstNonEmpty(ped.DamsireName, detail.Damsire)
		ped.Breeder = firstNonEmpty(ped.Breeder, detail.Breeder)
		ped.Region = firstNonEmpty(ped.Region, detail.Region)
		if _, seen := d.pedigrees[horseID]; !seen {
			d.pedigreeOrder = append(d.pedigreeOrder, horseID)
		}
		d.pedigrees[horseID] = ped

		d.addAncestors(racingapi.PedigreeDoc{
			SireID: detail.SireID, Sire: detail.Sire,
			DamID: detail.DamID, Dam: detail.Dam,
			DamsireID: detail.DamsireID, Damsire: detail.Damsire,
		})
	}
}

// backfillHorseRef attempts to resolve an ancestor's back-reference to a
// Horse row (spec §4.D step 3). A missing match is expected and ignored —
// many ancestors are foreign stallions that never raced in a covered
// region.
func (e *Extractor) backfillHorseRef(ctx context.Context, d *dedup, key ancestorKey) {
	var m map[string]model.Ancestor
	switch key.kind {
	case "sire":
		m = d.sires
	case "dam":
		m = d.dams
	case "damsire":
		m = d.damsires
	default:
		return
	}

	anc := m[key.id]
	if anc.HorseID != "" || anc.Name == "" {
		return
	}
	id, found, err := e.repo.LookupHorseIdByName(ctx, anc.Name, anc.Region)
	if err != nil {
		e.logger.Warn("ancestor horse lookup failed", "name", anc.Name, "error", err)
		return
	}
	if found {
		anc.HorseID = id
		m[key.id] = anc
	}
}

// --------------------------------------------------------------------------
// dedup helpers
// --------------------------------------------------------------------------

func (d *dedup) addJockey(id, name string) {
	if id == "" {
		return
	}
	existing, seen := d.jockeys[id]
	if !seen {
		d.jockeyOrder = append(d.jockeyOrder, id)
	}
	existing.ID = id
	existing.Name = firstNonEmpty(existing.Name, name)
	d.jockeys[id] = existing
}

func (d *dedup) addTrainer(id, name, location string) {
	if id == "" {
		return
	}
	existing, seen := d.trainers[id]
	if !seen {
		d.trainerOrder = append(d.trainerOrder, id)
	}
	existing.ID = id
	existing.Name = firstNonEmpty(existing.Name, name)
	existing.Location = firstNonEmpty(existing.Location, location)
	d.trainers[id] = existing
}

func (d *dedup) addOwner(id, name string) {
	if id == "" {
		return
	}
	existing, seen := d.owners[id]
	if !seen {
		d.ownerOrder = append(d.ownerOrder, id)
	}
	existing.ID = id
	existing.Name = firstNonEmpty(existing.Name, name)
	d.owners[id] = existing
}

func (d *dedup) addHorseFromRunner(runner racingapi.RunnerDoc) {
	if runner.HorseID == "" {
		return
	}
	existing, seen := d.horses[runner.HorseID]
	if !seen {
		d.horseOrder = append(d.horseOrder, runner.HorseID)
	}
	existing.ID = runner.HorseID
	existing.Name = firstNonEmpty(existing.Name, runner.Horse)
	existing.Sex = firstNonEmpty(existing.Sex, runner.Sex)
	existing.SexCode = firstNonEmpty(existing.SexCode, runner.SexCode)
	existing.Colour = firstNonEmpty(existing.Colour, runner.Colour)
	existing.Region = firstNonEmpty(existing.Region, runner.Region)
	existing.SireID = firstNonEmpty(existing.SireID, runner.Pedigree.SireID)
	existing.DamID = firstNonEmpty(existing.DamID, runner.Pedigree.DamID)
	existing.DamsireID = firstNonEmpty(existing.DamsireID, runner.Pedigree.DamsireID)
	if dob, ok := parseDOB(runner.DOB); ok && existing.DOB == nil {
		existing.DOB = dob
	}
	d.horses[runner.HorseID] = existing
}

type ancestorKey struct {
	kind string
	id   string
}

func (d *dedup) addAncestors(ped racingapi.PedigreeDoc) {
	d.addAncestor(&d.sires, &d.sireOrder, ped.SireID, ped.Sire)
	d.addAncestor(&d.dams, &d.damOrder, ped.DamID, ped.Dam)
	d.addAncestor(&d.damsires, &d.damsireOrder, ped.DamsireID, ped.Damsire)
}

func (d *dedup) addAncestor(m *map[string]model.Ancestor, order *[]string, id, name string) {
	if id == "" {
		return
	}
	existing, seen := (*m)[id]
	if !seen {
		*order = append(*order, id)
	}
	existing.ID = id
	existing.Name = firstNonEmpty(existing.Name, name)
	(*m)[id] = existing
}

func (d *dedup) addPedigree(runner racingapi.RunnerDoc) {
	ped := runner.Pedigree
	if ped.SireID == "" && ped.DamID == "" && ped.DamsireID == "" {
		return
	}
	horseID := runner.HorseID
	if horseID == "" {
		return
	}
	existing, seen := d.pedigrees[horseID]
	if !seen {
		d.pedigreeOrder = append(d.pedigreeOrder, horseID)
	}
	existing.HorseID = horseID
	existing.SireID = firstNonEmpty(existing.SireID, ped.SireID)
	existing.SireName = firstNonEmpty(existing.SireName, ped.Sire)
	existing.DamID = firstNonEmpty(existing.DamID, ped.DamID)
	existing.DamName = firstNonEmpty(existing.DamName, ped.Dam)
	existing.DamsireID = firstNonEmpty(existing.DamsireID, ped.DamsireID)
	existing.DamsireName = firstNonEmpty(existing.DamsireName, ped.Damsire)
	existing.Region = firstNonEmpty(existing.Region, runner.Region)
	d.pedigrees[horseID] = existing
}

func allAncestors(d *dedup) []ancestorKey {
	keys := make([]ancestorKey, 0, len(d.sireOrder)+len(d.damOrder)+len(d.damsireOrder))
	for _, id := range d.sireOrder {
		keys = append(keys, ancestorKey{"sire", id})
	}
	for _, id := range d.damOrder {
		keys = append(keys, ancestorKey{"dam", id})
	}
	for _, id := range d.damsireOrder {
		keys = append(keys, ancestorKey{"damsire", id})
	}
	return keys
}

func jockeyValues(d *dedup) []model.Jockey {
	out := make([]model.Jockey, 0, len(d.jockeyOrder))
	for _, id := range d.jockeyOrder {
		out = append(out, d.jockeys[id])
	}
	return out
}

func trainerValues(d *dedup) []model.Trainer {
	out := make([]model.Trainer, 0, len(d.trainerOrder))
	for _, id := range d.trainerOrder {
		out = append(out, d.trainers[id])
	}
	return out
}

func ownerValues(d *dedup) []model.Owner {
	out := make([]model.Owner, 0, len(d.ownerOrder))
	for _, id := range d.ownerOrder {
		out = append(out, d.owners[id])
	}
	return out
}

func horseValues(d *dedup) []model.Horse {
	out := make([]model.Horse, 0, len(d.horseOrder))
	for _, id := range d.horseOrder {
		out = append(out, d.horses[id])
	}
	return out
}

func ancestorValues(m map[string]model.Ancestor, order []string) []model.Ancestor {
	out := make([]model.Ancestor, 0, len(order))
	for _, id := range order {
		out = append(out, m[id])
	}
	return out
}

func pedigreeValues(d *dedup) []model.HorsePedigree {
	out := make([]model.HorsePedigree, 0, len(d.pedigreeOrder))
	for _, id := range d.pedigreeOrder {
		if ped, ok := d.pedigrees[id]; ok {
			out = append(out, ped)
		}
	}
	return out
}

func firstNonEmpty(current, incoming string) string {
	if current != "" {
		return current
	}
	return incoming
}

// parseDOB accepts the API's plain "2006-01-02" date-of-birth format.
func parseDOB(text string) (*time.Time, bool) {
	if text == "" {
		return nil, false
	}
	t, err := time.Parse("2006-01-02", text)
	if err != nil {
		return nil, false
	}
	return &t, true
}
