package stats

import (
	"math"
	"testing"
	"time"
)

func TestRoundWinRate(t *testing.T) {
	cases := []struct {
		wins, total int
		want        *float64
	}{
		{0, 0, nil},
		{1, 3, floatPtr(33.33)},
		{2, 4, floatPtr(50)},
	}
	for _, tc := range cases {
		got := roundWinRate(tc.wins, tc.total)
		if (got == nil) != (tc.want == nil) {
			t.Fatalf("roundWinRate(%d,%d) = %v, want %v", tc.wins, tc.total, got, tc.want)
		}
		if got != nil && *got != *tc.want {
			t.Fatalf("roundWinRate(%d,%d) = %v, want %v", tc.wins, tc.total, *got, *tc.want)
		}
	}
}

func TestDataQualityScore(t *testing.T) {
	// spec §8 S6: sire with 3 total runs -> min(1, log10(4)/3).
	want := math.Log10(4) / 3
	got := dataQualityScore(3)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("dataQualityScore(3) = %v, want %v", got, want)
	}
	if dataQualityScore(999999) != 1 {
		t.Fatalf("dataQualityScore should cap at 1 for large samples")
	}
}

func TestBestBreakdownThresholdAndTieBreak(t *testing.T) {
	rows := []breakdownAggregate{
		{Label: "class-2-runs", Runners: 2, Wins: 2}, // below threshold, excluded
		{Label: "b", Runners: 4, Wins: 2},            // 50%
		{Label: "a", Runners: 4, Wins: 2},            // 50%, alphabetically first
		{Label: "c", Runners: 5, Wins: 1},             // 20%
	}
	best, top := bestBreakdown(rows)
	if best != "a" {
		t.Fatalf("best = %q, want %q (tie on win pct broken alphabetically)", best, "a")
	}
	if len(top) != 3 {
		t.Fatalf("top has %d entries, want 3 (threshold excludes the 2-run row)", len(top))
	}
}

func TestComputeRunnerStatisticsOnlyCountsStrictlyEarlierRuns(t *testing.T) {
	raceDate := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	target := runnerRow{RaceID: "ra_1", HorseID: "hrs_1", RaceDate: raceDate}

	win := 1
	second := 2
	history := []priorRun{
		{RaceDate: raceDate.AddDate(0, 0, 10), Position: &second}, // future run, excluded
		{RaceDate: raceDate.AddDate(0, 0, -5), Position: &win},
		{RaceDate: raceDate.AddDate(0, 0, -20), Position: &second},
	}

	got := computeRunnerStatistics(target, history)
	if got.PriorRuns != 2 {
		t.Fatalf("PriorRuns = %d, want 2", got.PriorRuns)
	}
	if got.PriorWins != 1 {
		t.Fatalf("PriorWins = %d, want 1", got.PriorWins)
	}
	if got.PriorPlaces != 2 {
		t.Fatalf("PriorPlaces = %d, want 2", got.PriorPlaces)
	}
	if got.DaysSinceLastRun == nil || *got.DaysSinceLastRun != 5 {
		t.Fatalf("DaysSinceLastRun = %v, want 5", got.DaysSinceLastRun)
	}
	if got.RecentForm != "12" {
		t.Fatalf("RecentForm = %q, want %q", got.RecentForm, "12")
	}
}

func TestComputeRunnerStatisticsNoHistory(t *testing.T) {
	target := runnerRow{RaceID: "ra_1", HorseID: "hrs_2", RaceDate: time.Now()}
	got := computeRunnerStatistics(target, nil)
	if got.PriorRuns != 0 || got.DaysSinceLastRun != nil {
		t.Fatalf("expected zero-value statistics for a horse with no prior runs, got %+v", got)
	}
}

func TestQualifyingRunsSwitchesOnDaily(t *testing.T) {
	c := &Calculators{QualifyingRunsWeekly: 10, QualifyingRunsDaily: 5}
	if got := c.qualifyingRuns(); got != 10 {
		t.Fatalf("qualifyingRuns() = %d, want the weekly threshold 10 when Daily is false", got)
	}
	c.Daily = true
	if got := c.qualifyingRuns(); got != 5 {
		t.Fatalf("qualifyingRuns() = %d, want the daily threshold 5 when Daily is true", got)
	}
}

func floatPtr(f float64) *float64 { return &f }
