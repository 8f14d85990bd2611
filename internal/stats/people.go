package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/albapepper/racesync/internal/config"
	"github.com/albapepper/racesync/internal/model"
)

// peopleAggregate is one entity's raw career/window counters before
// win-rate and days-since derivation.
type peopleAggregate struct {
	EntityID          string
	CareerRides       int
	CareerWins        int
	CareerPlaces      int
	CareerSeconds     int
	CareerThirds      int
	Last14dRides      int
	Last14dWins       int
	Last30dRides      int
	Last30dWins       int
	LastActivityDate  *time.Time
	LastWinDate       *time.Time
}

// peopleIDColumns maps spec §4.J's three person entity types onto the
// ra_runners column that identifies them.
var peopleIDColumns = map[string]string{
	"jockey":  "jockey_id",
	"trainer": "trainer_id",
	"owner":   "owner_id",
}

// RunPeopleStatistics recomputes career/rolling-window rows for every
// jockey, trainer, and owner with at least one run (spec §4.J "People
// statistics").
func (c *Calculators) RunPeopleStatistics(ctx context.Context) error {
	now := time.Now()
	for _, entityType := range []string{"jockey", "trainer", "owner"} {
		aggregates, err := c.fetchPeopleAggregates(ctx, entityType, now)
		if err != nil {
			return fmt.Errorf("aggregate %s statistics: %w", entityType, err)
		}
		rows := make([]model.PeopleStatistics, 0, len(aggregates))
		for _, agg := range aggregates {
			rows = append(rows, computePeopleStatistics(entityType, agg, now))
		}
		if len(rows) == 0 {
			continue
		}
		if _, err := c.repo.UpsertPeopleStatistics(ctx, rows); err != nil {
			return fmt.Errorf("write %s statistics: %w", entityType, err)
		}
	}
	return nil
}

func (c *Calculators) fetchPeopleAggregates(ctx context.Context, entityType string, now time.Time) ([]peopleAggregate, error) {
	idColumn := peopleIDColumns[entityType]
	sql := fmt.Sprintf(`
		SELECT r.%[1]s AS entity_id,
			count(*) AS career_rides,
			count(*) FILTER (WHERE r.position = 1) AS career_wins,
			count(*) FILTER (WHERE r.position <= 3) AS career_places,
			count(*) FILTER (WHERE r.position = 2) AS career_seconds,
			count(*) FILTER (WHERE r.position = 3) AS career_thirds,
			count(*) FILTER (WHERE ra.date >= $1) AS last_14d_rides,
			count(*) FILTER (WHERE ra.date >= $1 AND r.position = 1) AS last_14d_wins,
			count(*) FILTER (WHERE ra.date >= $2) AS last_30d_rides,
			count(*) FILTER (WHERE ra.date >= $2 AND r.position = 1) AS last_30d_wins,
			max(ra.date) AS last_activity_date,
			max(ra.date) FILTER (WHERE r.position = 1) AS last_win_date
		FROM `+config.RunnersTable+` r
		JOIN `+config.RacesTable+` ra ON ra.id = r.race_id
		WHERE r.%[1]s IS NOT NULL AND r.%[1]s <> ''
		GROUP BY r.%[1]s`, idColumn)

	rows, err := c.repo.Pool().Query(ctx, sql, now.AddDate(0, 0, -14), now.AddDate(0, 0, -30))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []peopleAggregate
	for rows.Next() {
		var agg peopleAggregate
		if err := rows.Scan(
			&agg.EntityID, &agg.CareerRides, &agg.CareerWins, &agg.CareerPlaces,
			&agg.CareerSeconds, &agg.CareerThirds, &agg.Last14dRides, &agg.Last14dWins,
			&agg.Last30dRides, &agg.Last30dWins, &agg.LastActivityDate, &agg.LastWinDate,
		); err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	return out, rows.Err()
}

// computePeopleStatistics derives win rates and days-since deltas from
// a raw aggregate (spec §4.J: win_rate rounded to 2 decimals, NULL when
// total=0).
func computePeopleStatistics(entityType string, agg peopleAggregate, now time.Time) model.PeopleStatistics {
	stats := model.PeopleStatistics{
		EntityType:    entityType,
		EntityID:      agg.EntityID,
		CareerRides:   agg.CareerRides,
		CareerWins:    agg.CareerWins,
		CareerPlaces:  agg.CareerPlaces,
		CareerSeconds: agg.CareerSeconds,
		CareerThirds:  agg.CareerThirds,
		Last14dRides:  agg.Last14dRides,
		Last14dWins:   agg.Last14dWins,
		Last30dRides:  agg.Last30dRides,
		Last30dWins:   agg.Last30dWins,

		LastActivityDate: agg.LastActivityDate,
		LastWinDate:       agg.LastWinDate,

		WinRate:        roundWinRate(agg.CareerWins, agg.CareerRides),
		Last14dWinRate: roundWinRate(agg.Last14dWins, agg.Last14dRides),
		Last30dWinRate: roundWinRate(agg.Last30dWins, agg.Last30dRides),
	}
	if agg.LastActivityDate != nil {
		days := daysBetween(*agg.LastActivityDate, now)
		stats.DaysSinceActivity = &days
	}
	if agg.LastWinDate != nil {
		days := daysBetween(*agg.LastWinDate, now)
		stats.DaysSinceWin = &days
	}
	return stats
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
