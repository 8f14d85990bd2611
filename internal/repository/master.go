package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/albapepper/racesync/internal/config"
	"github.com/albapepper/racesync/internal/model"
)

// UpsertRegions writes the covered-region reference rows.
func (r *Repository) UpsertRegions(ctx context.Context, rows []model.Region) (int, error) {
	return upsertInBatches(ctx, r, "upsert regions", rows, func(b *pgx.Batch, row model.Region) {
		b.Queue(`
			INSERT INTO `+config.RegionsTable+` (code, name)
			VALUES ($1,$2)
			ON CONFLICT (code) DO UPDATE SET
				name = COALESCE(EXCLUDED.name, `+config.RegionsTable+`.name)`,
			row.Code, nilEmpty(row.Name))
	})
}

// UpsertCourses writes racecourse reference rows.
func (r *Repository) UpsertCourses(ctx context.Context, rows []model.Course) (int, error) {
	return upsertInBatches(ctx, r, "upsert courses", rows, func(b *pgx.Batch, row model.Course) {
		b.Queue(`
			INSERT INTO `+config.CoursesTable+` (id, name, region_code, region_name, latitude, longitude)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT (id) DO UPDATE SET
				name        = COALESCE(EXCLUDED.name, `+config.CoursesTable+`.name),
				region_code = COALESCE(EXCLUDED.region_code, `+config.CoursesTable+`.region_code),
				region_name = COALESCE(EXCLUDED.region_name, `+config.CoursesTable+`.region_name),
				latitude    = COALESCE(EXCLUDED.latitude, `+config.CoursesTable+`.latitude),
				longitude   = COALESCE(EXCLUDED.longitude, `+config.CoursesTable+`.longitude)`,
			row.ID, nilEmpty(row.Name), nilEmpty(row.RegionCode), nilEmpty(row.RegionName), row.Latitude, row.Longitude)
	})
}

// UpsertBookmakers writes bookmaker reference rows.
func (r *Repository) UpsertBookmakers(ctx context.Context, rows []model.Bookmaker) (int, error) {
	return upsertInBatches(ctx, r, "upsert bookmakers", rows, func(b *pgx.Batch, row model.Bookmaker) {
		b.Queue(`
			INSERT INTO `+config.BookmakersTable+` (id, name, code, type, active)
			VALUES ($1,$2,$3,$4,$5)
			ON CONFLICT (id) DO UPDATE SET
				name   = COALESCE(EXCLUDED.name, `+config.BookmakersTable+`.name),
				code   = COALESCE(EXCLUDED.code, `+config.BookmakersTable+`.code),
				type   = COALESCE(EXCLUDED.type, `+config.BookmakersTable+`.type),
				active = EXCLUDED.active`,
			row.ID, nilEmpty(row.Name), nilEmpty(row.Code), nilEmpty(row.Type), row.Active)
	})
}
