package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/racesync/internal/config"
	"github.com/albapepper/racesync/internal/model"
)

// Pool exposes the underlying connection pool to the stats package's
// read-side aggregation queries. Every write still goes through this
// package's Upsert* methods — StatisticsCalculators recomputes wholesale
// (spec §4.J "idempotent... deletes/overwrites"), so it only ever needs
// read access beyond that.
func (r *Repository) Pool() *pgxpool.Pool { return r.pool }

// UpsertPeopleStatistics replaces a jockey/trainer/owner's derived row.
func (r *Repository) UpsertPeopleStatistics(ctx context.Context, rows []model.PeopleStatistics) (int, error) {
	return upsertInBatches(ctx, r, "upsert people statistics", rows, func(b *pgx.Batch, row model.PeopleStatistics) {
		b.Queue(`
			INSERT INTO `+config.PeopleStatisticsTable+` (
				entity_type, entity_id, career_rides, career_wins, career_places,
				career_seconds, career_thirds, last_14d_rides, last_14d_wins,
				last_30d_rides, last_30d_wins, last_activity_date, last_win_date,
				days_since_activity, days_since_win, win_rate, last_14d_win_rate, last_30d_win_rate
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
			ON CONFLICT (entity_type, entity_id) DO UPDATE SET
				career_rides        = EXCLUDED.career_rides,
				career_wins         = EXCLUDED.career_wins,
				career_places       = EXCLUDED.career_places,
				career_seconds      = EXCLUDED.career_seconds,
				career_thirds       = EXCLUDED.career_thirds,
				last_14d_rides      = EXCLUDED.last_14d_rides,
				last_14d_wins       = EXCLUDED.last_14d_wins,
				last_30d_rides      = EXCLUDED.last_30d_rides,
				last_30d_wins       = EXCLUDED.last_30d_wins,
				last_activity_date  = EXCLUDED.last_activity_date,
				last_win_date       = EXCLUDED.last_win_date,
				days_since_activity = EXCLUDED.days_since_activity,
				days_since_win      = EXCLUDED.days_since_win,
				win_rate            = EXCLUDED.win_rate,
				last_14d_win_rate   = EXCLUDED.last_14d_win_rate,
				last_30d_win_rate   = EXCLUDED.last_30d_win_rate`,
			row.EntityType, row.EntityID, row.CareerRides, row.CareerWins, row.CareerPlaces,
			row.CareerSeconds, row.CareerThirds, row.Last14dRides, row.Last14dWins,
			row.Last30dRides, row.Last30dWins, row.LastActivityDate, row.LastWinDate,
			row.DaysSinceActivity, row.DaysSinceWin, row.WinRate, row.Last14dWinRate, row.Last30dWinRate)
	})
}

// UpsertPedigreeStatistics replaces a sire/dam/damsire's derived row.
func (r *Repository) UpsertPedigreeStatistics(ctx context.Context, rows []model.PedigreeStatistics) (int, error) {
	return upsertInBatches(ctx, r, "upsert pedigree statistics", rows, func(b *pgx.Batch, row model.PedigreeStatistics) {
		classBreakdown, _ := json.Marshal(row.ClassBreakdowns)
		distanceBreakdown, _ := json.Marshal(row.DistanceBreakdowns)
		b.Queue(`
			INSERT INTO `+config.PedigreeStatisticsTable+` (
				ancestor_type, ancestor_id, progeny_count, progeny_runs, progeny_wins,
				progeny_places, progeny_earnings, best_class, best_distance,
				class_breakdowns, distance_breakdowns, data_quality_score
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
			ON CONFLICT (ancestor_type, ancestor_id) DO UPDATE SET
				progeny_count       = EXCLUDED.progeny_count,
				progeny_runs        = EXCLUDED.progeny_runs,
				progeny_wins        = EXCLUDED.progeny_wins,
				progeny_places      = EXCLUDED.progeny_places,
				progeny_earnings    = EXCLUDED.progeny_earnings,
				best_class          = EXCLUDED.best_class,
				best_distance       = EXCLUDED.best_distance,
				class_breakdowns    = EXCLUDED.class_breakdowns,
				distance_breakdowns = EXCLUDED.distance_breakdowns,
				data_quality_score  = EXCLUDED.data_quality_score`,
			row.AncestorType, row.AncestorID, row.ProgenyCount, row.ProgenyRuns, row.ProgenyWins,
			row.ProgenyPlaces, row.ProgenyEarnings, nilEmpty(row.BestClass), nilEmpty(row.BestDistance),
			classBreakdown, distanceBreakdown, row.DataQualityScore)
	})
}

// UpsertRunnerStatistics replaces a (race, horse) pair's prior-form row.
func (r *Repository) UpsertRunnerStatistics(ctx context.Context, rows []model.RunnerStatistics) (int, error) {
	return upsertInBatches(ctx, r, "upsert runner statistics", rows, func(b *pgx.Batch, row model.RunnerStatistics) {
		b.Queue(`
			INSERT INTO `+config.RunnerStatisticsTable+` (
				race_id, horse_id, prior_runs, prior_wins, prior_places,
				recent_form, days_since_last_run, avg_finish_position_last5
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
			ON CONFLICT (race_id, horse_id) DO UPDATE SET
				prior_runs                = EXCLUDED.prior_runs,
				prior_wins                = EXCLUDED.prior_wins,
				prior_places              = EXCLUDED.prior_places,
				recent_form               = EXCLUDED.recent_form,
				days_since_last_run       = EXCLUDED.days_since_last_run,
				avg_finish_position_last5 = EXCLUDED.avg_finish_position_last5`,
			row.RaceID, row.HorseID, row.PriorRuns, row.PriorWins, row.PriorPlaces,
			nilEmpty(row.RecentForm), row.DaysSinceLastRun, row.AvgFinishPositionLast5)
	})
}

// UpsertEntityCombinations replaces the jockey-trainer pairing rows that
// meet the qualifying-runs threshold (spec §4.J). Each call carries the
// complete current qualifying set, so the table is cleared first — a
// pairing that has dropped below threshold since the last run is not
// left behind as a stale row.
func (r *Repository) UpsertEntityCombinations(ctx context.Context, rows []model.EntityCombination) (int, error) {
	if _, err := r.pool.Exec(ctx, `DELETE FROM `+config.EntityCombinationTable); err != nil {
		return 0, fmt.Errorf("clear entity combinations: %w", err)
	}
	return upsertInBatches(ctx, r, "upsert entity combinations", rows, func(b *pgx.Batch, row model.EntityCombination) {
		b.Queue(`
			INSERT INTO `+config.EntityCombinationTable+` (jockey_id, trainer_id, runs, wins, places, win_percent)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT (jockey_id, trainer_id) DO UPDATE SET
				runs        = EXCLUDED.runs,
				wins        = EXCLUDED.wins,
				places      = EXCLUDED.places,
				win_percent = EXCLUDED.win_percent`,
			row.JockeyID, row.TrainerID, row.Runs, row.Wins, row.Places, row.WinPercent)
	})
}

// UpsertPerformanceByDistance replaces distance-band specialist rows. As
// with UpsertEntityCombinations, each call carries the complete current
// qualifying set, so the table is cleared first.
func (r *Repository) UpsertPerformanceByDistance(ctx context.Context, rows []model.PerformanceByDistance) (int, error) {
	if _, err := r.pool.Exec(ctx, `DELETE FROM `+config.PerformanceByDistanceTable); err != nil {
		return 0, fmt.Errorf("clear performance by distance: %w", err)
	}
	return upsertInBatches(ctx, r, "upsert performance by distance", rows, func(b *pgx.Batch, row model.PerformanceByDistance) {
		b.Queue(`
			INSERT INTO `+config.PerformanceByDistanceTable+` (entity_type, entity_id, distance_band, runs, wins, places, win_percent)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (entity_type, entity_id, distance_band) DO UPDATE SET
				runs        = EXCLUDED.runs,
				wins        = EXCLUDED.wins,
				places      = EXCLUDED.places,
				win_percent = EXCLUDED.win_percent`,
			row.EntityType, row.EntityID, row.DistanceBand, row.Runs, row.Wins, row.Places, row.WinPercent)
	})
}

// UpsertPerformanceByVenue replaces course specialist rows. As with
// UpsertEntityCombinations, each call carries the complete current
// qualifying set, so the table is cleared first.
func (r *Repository) UpsertPerformanceByVenue(ctx context.Context, rows []model.PerformanceByVenue) (int, error) {
	if _, err := r.pool.Exec(ctx, `DELETE FROM `+config.PerformanceByVenueTable); err != nil {
		return 0, fmt.Errorf("clear performance by venue: %w", err)
	}
	return upsertInBatches(ctx, r, "upsert performance by venue", rows, func(b *pgx.Batch, row model.PerformanceByVenue) {
		b.Queue(`
			INSERT INTO `+config.PerformanceByVenueTable+` (entity_type, entity_id, course_id, runs, wins, places, win_percent)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (entity_type, entity_id, course_id) DO UPDATE SET
				runs        = EXCLUDED.runs,
				wins        = EXCLUDED.wins,
				places      = EXCLUDED.places,
				win_percent = EXCLUDED.win_percent`,
			row.EntityType, row.EntityID, row.CourseID, row.Runs, row.Wins, row.Places, row.WinPercent)
	})
}
