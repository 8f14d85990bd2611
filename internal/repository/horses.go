package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/albapepper/racesync/internal/config"
	"github.com/albapepper/racesync/internal/model"
)

// UpsertHorses writes horse entities. Nullable FKs (sire/dam/damsire)
// patch in with COALESCE so an enrichment pass filling those in later
// never loses ground to a bare racecard row written first.
func (r *Repository) UpsertHorses(ctx context.Context, rows []model.Horse) (int, error) {
	return upsertInBatches(ctx, r, "upsert horses", rows, func(b *pgx.Batch, row model.Horse) {
		b.Queue(`
			INSERT INTO `+config.HorsesTable+` (
				id, name, sex, sex_code, dob, colour, region, sire_id, dam_id, damsire_id
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
			ON CONFLICT (id) DO UPDATE SET
				name       = COALESCE(EXCLUDED.name, `+config.HorsesTable+`.name),
				sex        = COALESCE(EXCLUDED.sex, `+config.HorsesTable+`.sex),
				sex_code   = COALESCE(EXCLUDED.sex_code, `+config.HorsesTable+`.sex_code),
				dob        = COALESCE(EXCLUDED.dob, `+config.HorsesTable+`.dob),
				colour     = COALESCE(EXCLUDED.colour, `+config.HorsesTable+`.colour),
				region     = COALESCE(EXCLUDED.region, `+config.HorsesTable+`.region),
				sire_id    = COALESCE(EXCLUDED.sire_id, `+config.HorsesTable+`.sire_id),
				dam_id     = COALESCE(EXCLUDED.dam_id, `+config.HorsesTable+`.dam_id),
				damsire_id = COALESCE(EXCLUDED.damsire_id, `+config.HorsesTable+`.damsire_id)`,
			row.ID, nilEmpty(row.Name), nilEmpty(row.Sex), nilEmpty(row.SexCode), row.DOB,
			nilEmpty(row.Colour), nilEmpty(row.Region), nilEmpty(row.SireID), nilEmpty(row.DamID), nilEmpty(row.DamsireID))
	})
}

// UpsertPedigrees writes the canonical (sire, dam, damsire) tuple per
// horse — the single source of truth HorsePedigree rows (spec §9).
func (r *Repository) UpsertPedigrees(ctx context.Context, rows []model.HorsePedigree) (int, error) {
	return upsertInBatches(ctx, r, "upsert pedigrees", rows, func(b *pgx.Batch, row model.HorsePedigree) {
		b.Queue(`
			INSERT INTO `+config.PedigreesTable+` (
				horse_id, sire_id, sire_name, dam_id, dam_name,
				damsire_id, damsire_name, breeder, region
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
			ON CONFLICT (horse_id) DO UPDATE SET
				sire_id      = COALESCE(EXCLUDED.sire_id, `+config.PedigreesTable+`.sire_id),
				sire_name    = COALESCE(EXCLUDED.sire_name, `+config.PedigreesTable+`.sire_name),
				dam_id       = COALESCE(EXCLUDED.dam_id, `+config.PedigreesTable+`.dam_id),
				dam_name     = COALESCE(EXCLUDED.dam_name, `+config.PedigreesTable+`.dam_name),
				damsire_id   = COALESCE(EXCLUDED.damsire_id, `+config.PedigreesTable+`.damsire_id),
				damsire_name = COALESCE(EXCLUDED.damsire_name, `+config.PedigreesTable+`.damsire_name),
				breeder      = COALESCE(EXCLUDED.breeder, `+config.PedigreesTable+`.breeder),
				region       = COALESCE(EXCLUDED.region, `+config.PedigreesTable+`.region)`,
			row.HorseID, nilEmpty(row.SireID), nilEmpty(row.SireName), nilEmpty(row.DamID), nilEmpty(row.DamName),
			nilEmpty(row.DamsireID), nilEmpty(row.DamsireName), nilEmpty(row.Breeder), nilEmpty(row.Region))
	})
}

// UpsertSires, UpsertDams, and UpsertDamsires write name-only ancestor
// rows (spec §4.D); HorseID is the optional back-reference to a Horse
// row for an ancestor that itself raced in a covered region.
func (r *Repository) UpsertSires(ctx context.Context, rows []model.Ancestor) (int, error) {
	return r.upsertAncestors(ctx, config.SiresTable, "upsert sires", rows)
}

func (r *Repository) UpsertDams(ctx context.Context, rows []model.Ancestor) (int, error) {
	return r.upsertAncestors(ctx, config.DamsTable, "upsert dams", rows)
}

func (r *Repository) UpsertDamsires(ctx context.Context, rows []model.Ancestor) (int, error) {
	return r.upsertAncestors(ctx, config.DamsiresTable, "upsert damsires", rows)
}

func (r *Repository) upsertAncestors(ctx context.Context, table, label string, rows []model.Ancestor) (int, error) {
	return upsertInBatches(ctx, r, label, rows, func(b *pgx.Batch, row model.Ancestor) {
		b.Queue(`
			INSERT INTO `+table+` (id, name, region, horse_id)
			VALUES ($1,$2,$3,$4)
			ON CONFLICT (id) DO UPDATE SET
				name     = COALESCE(EXCLUDED.name, `+table+`.name),
				region   = COALESCE(EXCLUDED.region, `+table+`.region),
				horse_id = COALESCE(EXCLUDED.horse_id, `+table+`.horse_id)`,
			row.ID, nilEmpty(row.Name), nilEmpty(row.Region), nilEmpty(row.HorseID))
	})
}

// ExistingHorseIds returns the subset of candidateIDs already present in
// the horses table, for EntityExtractor's new-horse detection (spec §4.D
// step 1).
func (r *Repository) ExistingHorseIds(ctx context.Context, candidateIDs []string) (map[string]bool, error) {
	if len(candidateIDs) == 0 {
		return map[string]bool{}, nil
	}
	rows, err := r.pool.Query(ctx, "existing_horse_ids", candidateIDs)
	if err != nil {
		return nil, fmt.Errorf("existing horse ids: %w", err)
	}
	defer rows.Close()

	found := make(map[string]bool, len(candidateIDs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan horse id: %w", err)
		}
		found[id] = true
	}
	return found, rows.Err()
}

// LookupHorseIdByName resolves a sire/dam/damsire name to a Horse row id
// when that ancestor itself raced in a covered region (spec §4.D step 3).
// region is optional — pass "" to search across all regions. A missing
// match is not an error: many ancestors are foreign stallions who never
// raced here.
func (r *Repository) LookupHorseIdByName(ctx context.Context, name, region string) (string, bool, error) {
	if name == "" {
		return "", false, nil
	}
	var id string
	err := r.pool.QueryRow(ctx, "lookup_horse_by_name", name, region).Scan(&id)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", false, nil
		}
		return "", false, fmt.Errorf("lookup horse by name %q: %w", name, err)
	}
	return id, true, nil
}
