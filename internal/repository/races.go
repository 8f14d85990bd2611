package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/albapepper/racesync/internal/config"
	"github.com/albapepper/racesync/internal/model"
)

// UpsertRaces writes Race rows. Post-race columns (WinningTime, ToteWin,
// ...) only ever arrive non-empty from the results fetcher, so the
// COALESCE pattern here is what lets a racecard-only write and a later
// results write both hit the same row without clobbering each other
// (spec §4.F).
func (r *Repository) UpsertRaces(ctx context.Context, rows []model.Race) (int, error) {
	return upsertInBatches(ctx, r, "upsert races", rows, func(b *pgx.Batch, row model.Race) {
		// Zero dates and an empty dividend map are sent as NULL so the
		// COALESCE below keeps whatever the row already holds.
		var date, offTime, tote interface{}
		if !row.Date.IsZero() {
			date = row.Date
		}
		if !row.OffTime.IsZero() {
			offTime = row.OffTime
		}
		if len(row.ToteDividends) > 0 {
			tote, _ = json.Marshal(row.ToteDividends)
		}
		b.Queue(`
			INSERT INTO `+config.RacesTable+` (
				id, date, off_time, course_id, class, pattern, type,
				distance_text, distance_m, going, prize_currency, prize_amount,
				restrictions, has_result, winning_time, tote_win, tote_dividends, comments
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
			ON CONFLICT (id) DO UPDATE SET
				date            = COALESCE(EXCLUDED.date, `+config.RacesTable+`.date),
				off_time        = COALESCE(EXCLUDED.off_time, `+config.RacesTable+`.off_time),
				course_id       = COALESCE(EXCLUDED.course_id, `+config.RacesTable+`.course_id),
				class           = COALESCE(EXCLUDED.class, `+config.RacesTable+`.class),
				pattern         = COALESCE(EXCLUDED.pattern, `+config.RacesTable+`.pattern),
				type            = COALESCE(EXCLUDED.type, `+config.RacesTable+`.type),
				distance_text   = COALESCE(EXCLUDED.distance_text, `+config.RacesTable+`.distance_text),
				distance_m      = COALESCE(EXCLUDED.distance_m, `+config.RacesTable+`.distance_m),
				going           = COALESCE(EXCLUDED.going, `+config.RacesTable+`.going),
				prize_currency  = COALESCE(EXCLUDED.prize_currency, `+config.RacesTable+`.prize_currency),
				prize_amount    = COALESCE(EXCLUDED.prize_amount, `+config.RacesTable+`.prize_amount),
				restrictions    = COALESCE(EXCLUDED.restrictions, `+config.RacesTable+`.restrictions),
				has_result      = `+config.RacesTable+`.has_result OR EXCLUDED.has_result,
				winning_time    = COALESCE(EXCLUDED.winning_time, `+config.RacesTable+`.winning_time),
				tote_win        = COALESCE(EXCLUDED.tote_win, `+config.RacesTable+`.tote_win),
				tote_dividends  = COALESCE(EXCLUDED.tote_dividends, `+config.RacesTable+`.tote_dividends),
				comments        = COALESCE(EXCLUDED.comments, `+config.RacesTable+`.comments)`,
			row.ID, date, offTime, nilEmpty(row.CourseID), nilEmpty(row.Class), nilEmpty(row.Pattern),
			nilEmpty(string(row.Type)), nilEmpty(row.DistanceText), row.DistanceM, nilEmpty(row.Going),
			nilEmpty(row.PrizeCurrency), row.PrizeAmount, nilEmpty(row.Restrictions), row.HasResult,
			nilEmpty(row.WinningTime), row.ToteWin, tote, nilEmpty(row.Comments))
	})
}

// UpsertRunners writes Runner rows. Pre-race and post-race columns are
// both nullable so a results-only patch (missing pre-race fields) and a
// racecard-only write (missing post-race fields) compose via COALESCE
// into one row without either overwriting the other with NULL (spec
// §4.C "constraints on nullability", §4.F "column-level partial update").
func (r *Repository) UpsertRunners(ctx context.Context, rows []model.Runner) (int, error) {
	return upsertInBatches(ctx, r, "upsert runners", rows, func(b *pgx.Batch, row model.Runner) {
		position, posKind, posRaw := row.Position.DBColumns()
		b.Queue(`
			INSERT INTO `+config.RunnersTable+` (
				race_id, horse_id, draw, weight_lbs, weight_text, age, form_figures,
				official_rating, jockey_claim, headgear, silk_url,
				jockey_id, jockey_name, trainer_id, trainer_name, owner_id, owner_name,
				sire_name, dam_name, damsire_name, saddle_cloth_number,
				position, position_kind, position_raw_code, distance_beaten, prize_won,
				sp_fractional, sp_decimal, finishing_time, comment
			) VALUES (
				$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,
				$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30
			)
			ON CONFLICT (race_id, horse_id) DO UPDATE SET
				draw                = COALESCE(EXCLUDED.draw, `+config.RunnersTable+`.draw),
				weight_lbs          = COALESCE(EXCLUDED.weight_lbs, `+config.RunnersTable+`.weight_lbs),
				weight_text         = COALESCE(EXCLUDED.weight_text, `+config.RunnersTable+`.weight_text),
				age                 = COALESCE(EXCLUDED.age, `+config.RunnersTable+`.age),
				form_figures        = COALESCE(EXCLUDED.form_figures, `+config.RunnersTable+`.form_figures),
				official_rating     = COALESCE(EXCLUDED.official_rating, `+config.RunnersTable+`.official_rating),
				jockey_claim        = COALESCE(EXCLUDED.jockey_claim, `+config.RunnersTable+`.jockey_claim),
				headgear            = COALESCE(EXCLUDED.headgear, `+config.RunnersTable+`.headgear),
				silk_url            = COALESCE(EXCLUDED.silk_url, `+config.RunnersTable+`.silk_url),
				jockey_id           = COALESCE(EXCLUDED.jockey_id, `+config.RunnersTable+`.jockey_id),
				jockey_name         = COALESCE(EXCLUDED.jockey_name, `+config.RunnersTable+`.jockey_name),
				trainer_id          = COALESCE(EXCLUDED.trainer_id, `+config.RunnersTable+`.trainer_id),
				trainer_name        = COALESCE(EXCLUDED.trainer_name, `+config.RunnersTable+`.trainer_name),
				owner_id            = COALESCE(EXCLUDED.owner_id, `+config.RunnersTable+`.owner_id),
				owner_name          = COALESCE(EXCLUDED.owner_name, `+config.RunnersTable+`.owner_name),
				sire_name           = COALESCE(EXCLUDED.sire_name, `+config.RunnersTable+`.sire_name),
				dam_name            = COALESCE(EXCLUDED.dam_name, `+config.RunnersTable+`.dam_name),
				damsire_name        = COALESCE(EXCLUDED.damsire_name, `+config.RunnersTable+`.damsire_name),
				saddle_cloth_number = COALESCE(EXCLUDED.saddle_cloth_number, `+config.RunnersTable+`.saddle_cloth_number),
				position            = COALESCE(EXCLUDED.position, `+config.RunnersTable+`.position),
				position_kind       = COALESCE(EXCLUDED.position_kind, `+config.RunnersTable+`.position_kind),
				position_raw_code   = COALESCE(EXCLUDED.position_raw_code, `+config.RunnersTable+`.position_raw_code),
				distance_beaten     = COALESCE(EXCLUDED.distance_beaten, `+config.RunnersTable+`.distance_beaten),
				prize_won           = COALESCE(EXCLUDED.prize_won, `+config.RunnersTable+`.prize_won),
				sp_fractional       = COALESCE(EXCLUDED.sp_fractional, `+config.RunnersTable+`.sp_fractional),
				sp_decimal          = COALESCE(EXCLUDED.sp_decimal, `+config.RunnersTable+`.sp_decimal),
				finishing_time      = COALESCE(EXCLUDED.finishing_time, `+config.RunnersTable+`.finishing_time),
				comment             = COALESCE(EXCLUDED.comment, `+config.RunnersTable+`.comment)`,
			row.RaceID, row.HorseID, row.Draw, row.WeightLbs, nilEmpty(row.WeightText), row.Age,
			nilEmpty(row.FormFigures), row.OfficialRating, row.JockeyClaim, nilEmpty(row.Headgear), nilEmpty(row.SilkURL),
			nilEmpty(row.JockeyID), nilEmpty(row.JockeyName), nilEmpty(row.TrainerID), nilEmpty(row.TrainerName),
			nilEmpty(row.OwnerID), nilEmpty(row.OwnerName), nilEmpty(row.SireName), nilEmpty(row.DamName), nilEmpty(row.DamsireName),
			row.SaddleClothNumber, position, posKind, posRaw, nilEmpty(row.DistanceBeaten), row.PrizeWon,
			nilEmpty(row.StartingPriceFractional), row.StartingPriceDecimal, nilEmpty(row.FinishingTime), nilEmpty(row.Comment))
	})
}

// UpsertRaceResults writes the canonical per-runner outcome rows.
func (r *Repository) UpsertRaceResults(ctx context.Context, rows []model.RaceResult) (int, error) {
	return upsertInBatches(ctx, r, "upsert race results", rows, func(b *pgx.Batch, row model.RaceResult) {
		position, posKind, posRaw := row.Position.DBColumns()
		b.Queue(`
			INSERT INTO `+config.RaceResultsTable+` (
				race_id, horse_id, jockey_id, trainer_id, position, position_kind,
				position_raw_code, distance_beaten, prize_won, sp_decimal, finishing_time, comment
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
			ON CONFLICT (race_id, horse_id) DO UPDATE SET
				jockey_id         = COALESCE(EXCLUDED.jockey_id, `+config.RaceResultsTable+`.jockey_id),
				trainer_id        = COALESCE(EXCLUDED.trainer_id, `+config.RaceResultsTable+`.trainer_id),
				position          = EXCLUDED.position,
				position_kind     = EXCLUDED.position_kind,
				position_raw_code = EXCLUDED.position_raw_code,
				distance_beaten   = COALESCE(EXCLUDED.distance_beaten, `+config.RaceResultsTable+`.distance_beaten),
				prize_won         = COALESCE(EXCLUDED.prize_won, `+config.RaceResultsTable+`.prize_won),
				sp_decimal        = COALESCE(EXCLUDED.sp_decimal, `+config.RaceResultsTable+`.sp_decimal),
				finishing_time    = COALESCE(EXCLUDED.finishing_time, `+config.RaceResultsTable+`.finishing_time),
				comment           = COALESCE(EXCLUDED.comment, `+config.RaceResultsTable+`.comment)`,
			row.RaceID, row.HorseID, nilEmpty(row.JockeyID), nilEmpty(row.TrainerID), position, posKind, posRaw,
			nilEmpty(row.DistanceBeaten), row.PrizeWon, row.StartingPriceDecimal, nilEmpty(row.FinishingTime), nilEmpty(row.Comment))
	})
}

// RaceByID looks up a race's existence and result status (used by
// ResultsFetcher to confirm a parent Race row exists before patching it,
// spec §3 invariant against orphan Runners).
func (r *Repository) RaceByID(ctx context.Context, id string) (exists bool, hasResult bool, err error) {
	err = r.pool.QueryRow(ctx, "race_by_id", id).Scan(&id, &hasResult)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, false, nil
		}
		return false, false, fmt.Errorf("race by id %q: %w", id, err)
	}
	return true, hasResult, nil
}

func nonNilFloatMap(m map[string]float64) map[string]float64 {
	if m == nil {
		return map[string]float64{}
	}
	return m
}
