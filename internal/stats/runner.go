package stats

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/albapepper/racesync/internal/config"
	"github.com/albapepper/racesync/internal/model"
)

// recomputeRunnerWindowDays bounds incremental RunnerStatistics recompute
// to runners whose race_date falls in the trailing window (spec §4.J
// "incremental runs recompute only the runners whose race_date is within
// the last N days").
const recomputeRunnerWindowDays = 14

// runnerRow is one runner's own race_date plus its horse_id, scoped to
// whichever set RunRunnerStatistics is recomputing this pass.
type runnerRow struct {
	RaceID   string
	HorseID  string
	RaceDate time.Time
}

// priorRun is one of a horse's completed runs strictly before the runner
// row being derived, ordered most recent first.
type priorRun struct {
	RaceDate time.Time
	Position *int
}

// RunRunnerStatistics recomputes each runner's prior-form row from that
// horse's race history strictly before this runner's race_date (spec
// §4.J "RunnerStatistics"). A full backfill pass (c.Daily == false)
// processes every runner; an incremental pass recomputes only runners
// whose race_date falls within RecomputeWindowDays of now.
func (c *Calculators) RunRunnerStatistics(ctx context.Context) error {
	targets, err := c.fetchRunnerTargets(ctx)
	if err != nil {
		return fmt.Errorf("list runner targets: %w", err)
	}
	if len(targets) == 0 {
		return nil
	}

	history, err := c.fetchHorseHistories(ctx, horseIDs(targets))
	if err != nil {
		return fmt.Errorf("load horse histories: %w", err)
	}

	rows := make([]model.RunnerStatistics, 0, len(targets))
	for _, t := range targets {
		rows = append(rows, computeRunnerStatistics(t, history[t.HorseID]))
	}
	if _, err := c.repo.UpsertRunnerStatistics(ctx, rows); err != nil {
		return fmt.Errorf("write runner statistics: %w", err)
	}
	return nil
}

func (c *Calculators) fetchRunnerTargets(ctx context.Context) ([]runnerRow, error) {
	sql := `
		SELECT r.race_id, r.horse_id, ra.date
		FROM ` + config.RunnersTable + ` r
		JOIN ` + config.RacesTable + ` ra ON ra.id = r.race_id
		WHERE r.horse_id IS NOT NULL AND r.horse_id <> ''`
	var args []interface{}
	if c.Daily {
		sql += ` AND ra.date >= $1`
		args = append(args, time.Now().AddDate(0, 0, -c.RecomputeWindowDays))
	}

	rows, err := c.repo.Pool().Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []runnerRow
	for rows.Next() {
		var row runnerRow
		if err := rows.Scan(&row.RaceID, &row.HorseID, &row.RaceDate); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// fetchHorseHistories pulls every (race_date, position) pair for the
// given horses, grouped and sorted most-recent-first, so
// computeRunnerStatistics only needs to filter by date and truncate.
func (c *Calculators) fetchHorseHistories(ctx context.Context, ids []string) (map[string][]priorRun, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	sql := `
		SELECT r.horse_id, ra.date, r.position
		FROM ` + config.RunnersTable + ` r
		JOIN ` + config.RacesTable + ` ra ON ra.id = r.race_id
		WHERE r.horse_id = ANY($1)
		ORDER BY r.horse_id, ra.date DESC`

	rows, err := c.repo.Pool().Query(ctx, sql, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string][]priorRun, len(ids))
	for rows.Next() {
		var horseID string
		var run priorRun
		if err := rows.Scan(&horseID, &run.RaceDate, &run.Position); err != nil {
			return nil, err
		}
		out[horseID] = append(out[horseID], run)
	}
	return out, rows.Err()
}

// computeRunnerStatistics derives a runner's prior-form row from its
// horse's full history, counting only runs strictly before target's
// race_date (spec §4.J "race_date strictly less than this runner's
// race_date").
func computeRunnerStatistics(target runnerRow, history []priorRun) model.RunnerStatistics {
	stats := model.RunnerStatistics{RaceID: target.RaceID, HorseID: target.HorseID}

	var prior []priorRun
	for _, run := range history {
		if run.RaceDate.Before(target.RaceDate) {
			prior = append(prior, run)
		}
	}
	if len(prior) == 0 {
		return stats
	}

	stats.PriorRuns = len(prior)
	var formDigits []string
	var last5Sum, last5Count int
	for i, run := range prior {
		if run.Position != nil {
			if *run.Position == 1 {
				stats.PriorWins++
			}
			if *run.Position <= 3 {
				stats.PriorPlaces++
			}
			if i < 5 {
				last5Sum += *run.Position
				last5Count++
			}
			if len(formDigits) < 6 {
				formDigits = append(formDigits, formDigit(*run.Position))
			}
		} else if len(formDigits) < 6 {
			formDigits = append(formDigits, "P")
		}
	}
	stats.RecentForm = strings.Join(formDigits, "")

	days := int(target.RaceDate.Sub(prior[0].RaceDate).Hours() / 24)
	stats.DaysSinceLastRun = &days

	if last5Count > 0 {
		avg := float64(last5Sum) / float64(last5Count)
		stats.AvgFinishPositionLast5 = &avg
	}
	return stats
}

// formDigit renders a finishing position as the single form-figures
// character the racing press uses: 1-9 as-is, 10+ collapses to "0".
func formDigit(position int) string {
	if position >= 1 && position <= 9 {
		return strconv.Itoa(position)
	}
	return "0"
}

func horseIDs(targets []runnerRow) []string {
	seen := make(map[string]struct{}, len(targets))
	out := make([]string, 0, len(targets))
	for _, t := range targets {
		if _, ok := seen[t.HorseID]; ok {
			continue
		}
		seen[t.HorseID] = struct{}{}
		out = append(out, t.HorseID)
	}
	return out
}
