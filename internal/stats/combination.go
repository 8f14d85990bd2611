package stats

import (
	"context"
	"fmt"

	"github.com/albapepper/racesync/internal/config"
	"github.com/albapepper/racesync/internal/model"
)

// distanceBandSuffix is appended to PerformanceByDistance band labels;
// the bands use distanceBandWidth from stats/pedigree.go.
const distanceBandSuffix = "m"

// RunEntityCombinations recomputes jockey-trainer pairing rows that meet
// the qualifying-runs threshold (spec §4.J: weekly pass requires >=10
// joint runs, daily recompute requires >=5).
func (c *Calculators) RunEntityCombinations(ctx context.Context) error {
	threshold := c.qualifyingRuns()

	sql := `
		SELECT r.jockey_id, r.trainer_id,
			count(*) AS runs,
			count(*) FILTER (WHERE r.position = 1) AS wins,
			count(*) FILTER (WHERE r.position <= 3) AS places
		FROM ` + config.RunnersTable + ` r
		WHERE r.jockey_id IS NOT NULL AND r.jockey_id <> ''
			AND r.trainer_id IS NOT NULL AND r.trainer_id <> ''
		GROUP BY r.jockey_id, r.trainer_id
		HAVING count(*) >= $1`

	rows, err := c.repo.Pool().Query(ctx, sql, threshold)
	if err != nil {
		return fmt.Errorf("aggregate entity combinations: %w", err)
	}
	defer rows.Close()

	var out []model.EntityCombination
	for rows.Next() {
		var row model.EntityCombination
		if err := rows.Scan(&row.JockeyID, &row.TrainerID, &row.Runs, &row.Wins, &row.Places); err != nil {
			return fmt.Errorf("scan entity combination: %w", err)
		}
		row.WinPercent = winPercent(row.Wins, row.Runs)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	// Upsert runs even when out is empty: it clears the table first, so a
	// run where nothing qualifies still removes every pairing that no
	// longer meets the threshold (spec §4.J "deletes... wholesale").
	if _, err := c.repo.UpsertEntityCombinations(ctx, out); err != nil {
		return fmt.Errorf("write entity combinations: %w", err)
	}
	return nil
}

// performanceEntityColumns maps spec §4.J's specialist entity types onto
// the ra_runners column identifying them. "horse" uses horse_id directly.
var performanceEntityColumns = map[string]string{
	"jockey":  "jockey_id",
	"trainer": "trainer_id",
	"owner":   "owner_id",
	"horse":   "horse_id",
}

// RunPerformanceByDistance recomputes per-entity distance-band specialist
// rows (spec §4.J), qualifying on the same weekly/daily threshold as
// EntityCombination.
func (c *Calculators) RunPerformanceByDistance(ctx context.Context) error {
	threshold := c.qualifyingRuns()
	var all []model.PerformanceByDistance
	for entityType, column := range performanceEntityColumns {
		sql := fmt.Sprintf(`
			SELECT r.%[1]s AS entity_id,
				((ra.distance_m / %[2]d) * %[2]d)::text AS distance_band,
				count(*) AS runs,
				count(*) FILTER (WHERE r.position = 1) AS wins,
				count(*) FILTER (WHERE r.position <= 3) AS places
			FROM `+config.RunnersTable+` r
			JOIN `+config.RacesTable+` ra ON ra.id = r.race_id
			WHERE r.%[1]s IS NOT NULL AND r.%[1]s <> '' AND ra.distance_m IS NOT NULL
			GROUP BY r.%[1]s, distance_band
			HAVING count(*) >= $1`, column, distanceBandWidth)

		rows, err := c.repo.Pool().Query(ctx, sql, threshold)
		if err != nil {
			return fmt.Errorf("aggregate %s performance by distance: %w", entityType, err)
		}
		for rows.Next() {
			var row model.PerformanceByDistance
			if err := rows.Scan(&row.EntityID, &row.DistanceBand, &row.Runs, &row.Wins, &row.Places); err != nil {
				rows.Close()
				return fmt.Errorf("scan %s performance by distance: %w", entityType, err)
			}
			row.EntityType = entityType
			row.DistanceBand += distanceBandSuffix
			row.WinPercent = winPercent(row.Wins, row.Runs)
			all = append(all, row)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return err
		}
	}
	// Upsert runs even when all is empty: it clears the table first, so
	// entities that no longer qualify in any distance band are removed.
	if _, err := c.repo.UpsertPerformanceByDistance(ctx, all); err != nil {
		return fmt.Errorf("write performance by distance: %w", err)
	}
	return nil
}

// RunPerformanceByVenue recomputes per-entity course specialist rows
// (spec §4.J), qualifying on the same weekly/daily threshold.
func (c *Calculators) RunPerformanceByVenue(ctx context.Context) error {
	threshold := c.qualifyingRuns()
	var all []model.PerformanceByVenue
	for entityType, column := range performanceEntityColumns {
		sql := fmt.Sprintf(`
			SELECT r.%[1]s AS entity_id, ra.course_id,
				count(*) AS runs,
				count(*) FILTER (WHERE r.position = 1) AS wins,
				count(*) FILTER (WHERE r.position <= 3) AS places
			FROM `+config.RunnersTable+` r
			JOIN `+config.RacesTable+` ra ON ra.id = r.race_id
			WHERE r.%[1]s IS NOT NULL AND r.%[1]s <> '' AND ra.course_id <> ''
			GROUP BY r.%[1]s, ra.course_id
			HAVING count(*) >= $1`, column)

		rows, err := c.repo.Pool().Query(ctx, sql, threshold)
		if err != nil {
			return fmt.Errorf("aggregate %s performance by venue: %w", entityType, err)
		}
		for rows.Next() {
			var row model.PerformanceByVenue
			if err := rows.Scan(&row.EntityID, &row.CourseID, &row.Runs, &row.Wins, &row.Places); err != nil {
				rows.Close()
				return fmt.Errorf("scan %s performance by venue: %w", entityType, err)
			}
			row.EntityType = entityType
			row.WinPercent = winPercent(row.Wins, row.Runs)
			all = append(all, row)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return err
		}
	}
	// Upsert runs even when all is empty: it clears the table first, so
	// entities that no longer qualify at any venue are removed.
	if _, err := c.repo.UpsertPerformanceByVenue(ctx, all); err != nil {
		return fmt.Errorf("write performance by venue: %w", err)
	}
	return nil
}
