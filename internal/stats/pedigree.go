package stats

import (
	"context"
	"fmt"
	"sort"

	"github.com/albapepper/racesync/internal/config"
	"github.com/albapepper/racesync/internal/model"
)

// minBreakdownRuns is N in spec §4.J "best class and best distance by
// win rate among the top three classes/distances with at least N=3
// runs".
const minBreakdownRuns = 3

// topBreakdownCount is spec §4.J's "top 3 kept" for the stored
// per-class/per-distance breakdown arrays.
const topBreakdownCount = 3

// distanceBandWidth buckets distance_m into 200m bands for the
// per-distance breakdown, e.g. 1800m and 1950m both land in "1800m".
const distanceBandWidth = 200

// pedigreeIDColumns maps spec §4.J's three ancestor types onto the
// horse_pedigrees column that identifies them.
var pedigreeIDColumns = map[string]string{
	"sire":    "sire_id",
	"dam":     "dam_id",
	"damsire": "damsire_id",
}

type progenyAggregate struct {
	AncestorID      string
	ProgenyCount    int
	ProgenyRuns     int
	ProgenyWins     int
	ProgenyPlaces   int
	ProgenyEarnings float64
}

type breakdownAggregate struct {
	AncestorID string
	Label      string // class name, or distance band
	Runners    int
	Wins       int
}

// RunPedigreeStatistics recomputes progeny performance rows for every
// sire, dam, and damsire with at least one runner (spec §4.J "Pedigree
// statistics"), implementing the PedigreeCalculator component.
func (c *Calculators) RunPedigreeStatistics(ctx context.Context) error {
	for _, ancestorType := range []string{"sire", "dam", "damsire"} {
		progeny, err := c.fetchProgenyAggregates(ctx, ancestorType)
		if err != nil {
			return fmt.Errorf("aggregate %s progeny: %w", ancestorType, err)
		}
		classBreakdowns, err := c.fetchBreakdownAggregates(ctx, ancestorType, "class")
		if err != nil {
			return fmt.Errorf("aggregate %s class breakdowns: %w", ancestorType, err)
		}
		distanceBreakdowns, err := c.fetchBreakdownAggregates(ctx, ancestorType, "distance")
		if err != nil {
			return fmt.Errorf("aggregate %s distance breakdowns: %w", ancestorType, err)
		}

		classByAncestor := groupBreakdowns(classBreakdowns)
		distanceByAncestor := groupBreakdowns(distanceBreakdowns)

		rows := make([]model.PedigreeStatistics, 0, len(progeny))
		for _, agg := range progeny {
			rows = append(rows, computePedigreeStatistics(ancestorType, agg,
				classByAncestor[agg.AncestorID], distanceByAncestor[agg.AncestorID]))
		}
		if len(rows) == 0 {
			continue
		}
		if _, err := c.repo.UpsertPedigreeStatistics(ctx, rows); err != nil {
			return fmt.Errorf("write %s statistics: %w", ancestorType, err)
		}
	}
	return nil
}

func (c *Calculators) fetchProgenyAggregates(ctx context.Context, ancestorType string) ([]progenyAggregate, error) {
	idColumn := pedigreeIDColumns[ancestorType]
	sql := fmt.Sprintf(`
		SELECT hp.%[1]s AS ancestor_id,
			count(DISTINCT r.horse_id) AS progeny_count,
			count(*) AS progeny_runs,
			count(*) FILTER (WHERE r.position = 1) AS progeny_wins,
			count(*) FILTER (WHERE r.position <= 3) AS progeny_places,
			coalesce(sum(r.prize_won), 0) AS progeny_earnings
		FROM `+config.RunnersTable+` r
		JOIN `+config.PedigreesTable+` hp ON hp.horse_id = r.horse_id
		WHERE hp.%[1]s IS NOT NULL AND hp.%[1]s <> ''
		GROUP BY hp.%[1]s`, idColumn)

	rows, err := c.repo.Pool().Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []progenyAggregate
	for rows.Next() {
		var agg progenyAggregate
		if err := rows.Scan(&agg.AncestorID, &agg.ProgenyCount, &agg.ProgenyRuns,
			&agg.ProgenyWins, &agg.ProgenyPlaces, &agg.ProgenyEarnings); err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	return out, rows.Err()
}

// fetchBreakdownAggregates pulls per-(ancestor, class-or-distance-band)
// runner/win counts. kind is "class" (grouped by ra_races.class) or
// "distance" (grouped by a 200m distance band).
func (c *Calculators) fetchBreakdownAggregates(ctx context.Context, ancestorType, kind string) ([]breakdownAggregate, error) {
	idColumn := pedigreeIDColumns[ancestorType]

	var labelExpr, whereExtra string
	switch kind {
	case "class":
		labelExpr = "ra.class"
		whereExtra = "AND ra.class <> ''"
	case "distance":
		labelExpr = fmt.Sprintf("((ra.distance_m / %d) * %d)::text", distanceBandWidth, distanceBandWidth)
		whereExtra = "AND ra.distance_m IS NOT NULL"
	default:
		return nil, fmt.Errorf("fetchBreakdownAggregates: unknown kind %q", kind)
	}

	sql := fmt.Sprintf(`
		SELECT hp.%[1]s AS ancestor_id, %[2]s AS label,
			count(*) AS runners,
			count(*) FILTER (WHERE r.position = 1) AS wins
		FROM `+config.RunnersTable+` r
		JOIN `+config.PedigreesTable+` hp ON hp.horse_id = r.horse_id
		JOIN `+config.RacesTable+` ra ON ra.id = r.race_id
		WHERE hp.%[1]s IS NOT NULL AND hp.%[1]s <> '' %[3]s
		GROUP BY hp.%[1]s, %[2]s`, idColumn, labelExpr, whereExtra)

	rows, err := c.repo.Pool().Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []breakdownAggregate
	for rows.Next() {
		var agg breakdownAggregate
		if err := rows.Scan(&agg.AncestorID, &agg.Label, &agg.Runners, &agg.Wins); err != nil {
			return nil, err
		}
		out = append(out, agg)
	}
	return out, rows.Err()
}

func groupBreakdowns(rows []breakdownAggregate) map[string][]breakdownAggregate {
	grouped := make(map[string][]breakdownAggregate)
	for _, row := range rows {
		grouped[row.AncestorID] = append(grouped[row.AncestorID], row)
	}
	return grouped
}

// computePedigreeStatistics assembles one ancestor's derived row,
// selecting its best class/distance and top-3 breakdowns, and scoring
// data quality from progeny_runs (spec §4.J).
func computePedigreeStatistics(ancestorType string, agg progenyAggregate, classRows, distanceRows []breakdownAggregate) model.PedigreeStatistics {
	bestClass, classTop3 := bestBreakdown(classRows)
	bestDistance, distanceTop3 := bestBreakdown(distanceRows)

	stats := model.PedigreeStatistics{
		AncestorType:     ancestorType,
		AncestorID:       agg.AncestorID,
		ProgenyCount:     agg.ProgenyCount,
		ProgenyRuns:      agg.ProgenyRuns,
		ProgenyWins:      agg.ProgenyWins,
		ProgenyPlaces:    agg.ProgenyPlaces,
		ProgenyEarnings:  agg.ProgenyEarnings,
		BestClass:        bestClass,
		BestDistance:      bestDistance,
		DataQualityScore: dataQualityScore(agg.ProgenyRuns),
	}
	for _, b := range classTop3 {
		stats.ClassBreakdowns = append(stats.ClassBreakdowns, model.ClassBreakdown{
			Class: b.Label, Runners: b.Runners, Wins: b.Wins, WinPercent: winPercent(b.Wins, b.Runners),
		})
	}
	for _, b := range distanceTop3 {
		stats.DistanceBreakdowns = append(stats.DistanceBreakdowns, model.DistanceBreakdown{
			DistanceBand: b.Label + "m", Runners: b.Runners, Wins: b.Wins, WinPercent: winPercent(b.Wins, b.Runners),
		})
	}
	return stats
}

// bestBreakdown ranks entries with at least minBreakdownRuns runs by
// win percent descending, tie-breaking on absolute win count then
// alphabetically on label (spec §4.J), and returns the winner's label
// plus the top topBreakdownCount entries.
func bestBreakdown(rows []breakdownAggregate) (best string, top []breakdownAggregate) {
	var eligible []breakdownAggregate
	for _, r := range rows {
		if r.Runners >= minBreakdownRuns {
			eligible = append(eligible, r)
		}
	}
	sort.Slice(eligible, func(i, j int) bool {
		wi, wj := winPercent(eligible[i].Wins, eligible[i].Runners), winPercent(eligible[j].Wins, eligible[j].Runners)
		if wi != wj {
			return wi > wj
		}
		if eligible[i].Wins != eligible[j].Wins {
			return eligible[i].Wins > eligible[j].Wins
		}
		return eligible[i].Label < eligible[j].Label
	})

	if len(eligible) > topBreakdownCount {
		top = eligible[:topBreakdownCount]
	} else {
		top = eligible
	}
	if len(eligible) > 0 {
		best = eligible[0].Label
	}
	return best, top
}
