package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/albapepper/racesync/internal/config"
	"github.com/albapepper/racesync/internal/model"
)

// UpsertJockeys writes jockey reference rows.
func (r *Repository) UpsertJockeys(ctx context.Context, rows []model.Jockey) (int, error) {
	return upsertInBatches(ctx, r, "upsert jockeys", rows, func(b *pgx.Batch, row model.Jockey) {
		b.Queue(`
			INSERT INTO `+config.JockeysTable+` (id, name)
			VALUES ($1,$2)
			ON CONFLICT (id) DO UPDATE SET
				name = COALESCE(EXCLUDED.name, `+config.JockeysTable+`.name)`,
			row.ID, nilEmpty(row.Name))
	})
}

// UpsertTrainers writes trainer reference rows. Location is only ever
// populated from racecard embeddings — a later upsert with an empty
// location never blanks out a previously known one.
func (r *Repository) UpsertTrainers(ctx context.Context, rows []model.Trainer) (int, error) {
	return upsertInBatches(ctx, r, "upsert trainers", rows, func(b *pgx.Batch, row model.Trainer) {
		b.Queue(`
			INSERT INTO `+config.TrainersTable+` (id, name, location)
			VALUES ($1,$2,$3)
			ON CONFLICT (id) DO UPDATE SET
				name     = COALESCE(EXCLUDED.name, `+config.TrainersTable+`.name),
				location = COALESCE(EXCLUDED.location, `+config.TrainersTable+`.location)`,
			row.ID, nilEmpty(row.Name), nilEmpty(row.Location))
	})
}

// UpsertOwners writes owner reference rows.
func (r *Repository) UpsertOwners(ctx context.Context, rows []model.Owner) (int, error) {
	return upsertInBatches(ctx, r, "upsert owners", rows, func(b *pgx.Batch, row model.Owner) {
		b.Queue(`
			INSERT INTO `+config.OwnersTable+` (id, name)
			VALUES ($1,$2)
			ON CONFLICT (id) DO UPDATE SET
				name = COALESCE(EXCLUDED.name, `+config.OwnersTable+`.name)`,
			row.ID, nilEmpty(row.Name))
	})
}
