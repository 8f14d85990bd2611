package controller

import "time"

// Chunk is one month-sized slice of a backfill date range (spec §4.H,
// §4.I). End is inclusive and clipped to the overall range's endDate
// for the final chunk.
type Chunk struct {
	Start time.Time
	End   time.Time
}

// MonthChunks splits [start, end] into calendar-month chunks. The first
// chunk begins at start; every chunk after that begins on the 1st of
// its month. The final chunk's End is clipped to end.
func MonthChunks(start, end time.Time) []Chunk {
	start = start.UTC()
	end = end.UTC()
	if !end.After(start) {
		return []Chunk{{Start: start, End: end}}
	}

	var chunks []Chunk
	cursor := start
	for !cursor.After(end) {
		monthEnd := endOfMonth(cursor)
		if monthEnd.After(end) {
			monthEnd = end
		}
		chunks = append(chunks, Chunk{Start: cursor, End: monthEnd})
		cursor = monthEnd.AddDate(0, 0, 1)
	}
	return chunks
}

func endOfMonth(t time.Time) time.Time {
	firstOfNextMonth := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, 1, 0)
	return firstOfNextMonth.AddDate(0, 0, -1)
}

// RaceResultsDue reports whether the every-4-hours RaceFetcher/
// ResultsFetcher slot (06, 10, 14, 18, 22 local) is due at now (spec
// §4.H schedule table).
func RaceResultsDue(now time.Time) bool {
	hour := now.Hour()
	switch hour {
	case 6, 10, 14, 18, 22:
		return true
	default:
		return false
	}
}

// StatsDue reports whether the daily 02:30 StatisticsCalculators slot
// is due at now.
func StatsDue(now time.Time) bool {
	return now.Hour() == 2 && now.Minute() < 30+scheduleToleranceMinutes && now.Minute() >= 30-scheduleToleranceMinutes
}

// scheduleToleranceMinutes absorbs the gap between a scheduler's actual
// firing time and the nominal slot it's meant to cover.
const scheduleToleranceMinutes = 15

// DueAt returns the weekly and monthly MasterFetchers due at now — the
// weekly Sunday 13:00 people pass and the monthly 1st-of-month 13:00
// reference pass (spec §4.H schedule table).
func DueAt(now time.Time) []string {
	var due []string
	if !at13(now) {
		return due
	}
	if now.Day() == 1 {
		due = append(due, "courses", "bookmakers")
	}
	if now.Weekday() == time.Sunday {
		due = append(due, "jockeys", "trainers", "owners")
	}
	return due
}

// DueToday is daily()'s date-only cadence check (spec §4.H: "those
// whose configured cadence says they are due today"). Unlike DueAt,
// which also gates on the 13:00 slot for scheduled(), daily() runs once
// per calendar day regardless of the hour it happens to fire at.
func DueToday(now time.Time) []string {
	var due []string
	if now.Day() == 1 {
		due = append(due, "courses", "bookmakers")
	}
	if now.Weekday() == time.Sunday {
		due = append(due, "jockeys", "trainers", "owners")
	}
	return due
}

func at13(now time.Time) bool {
	return now.Hour() == 13
}
