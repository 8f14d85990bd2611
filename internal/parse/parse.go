// Package parse normalizes the racing API's free-text fields (weights,
// distances, prize money, finishing positions) into numeric and
// canonical-string forms for storage, the same role provider.ExtractValue
// plays for the teacher's mixed-shape stat values
// (internal/provider/extract.go) — generalized here to several distinct
// text formats instead of one value-shape switch.
package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Weight parses a stones-pounds weight string such as "8-13" (8 stone 13
// pounds) into total pounds. Returns ok=false if the text doesn't match
// the expected format.
func Weight(text string) (lbs int, ok bool) {
	text = strings.TrimSpace(text)
	parts := strings.SplitN(text, "-", 2)
	if len(parts) != 2 {
		return 0, false
	}
	stones, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	pounds, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, false
	}
	return stones*14 + pounds, true
}

var (
	// "7f", "1m2f", "2m3f110y", "3m" — miles/furlongs/yards text.
	distancePattern = regexp.MustCompile(`^(?:(\d+)m)?(?:(\d+)f)?(?:(\d+)y)?$`)
	// An explicit metres value, e.g. "3218m" is ambiguous with the miles
	// pattern above only when it's a bare number followed by "metres"/"m"
	// used as a unit rather than a mile count; the racing API sends those
	// as a distinct "<n>m" form with no f/y suffix and values far above
	// any plausible mile count, so a threshold disambiguates them.
	metresPattern = regexp.MustCompile(`^(\d+)\s*(?:m|metres?)$`)
)

const (
	yardsPerMile    = 1760
	yardsPerFurlong = 220
	metresPerYard   = 0.9144
	// Below this, a bare "<n>m" is read as n miles; at or above it, the
	// value is already in metres (no race runs 100+ miles).
	metresDisambiguationThreshold = 100
)

// Distance parses a racing distance string into whole metres. Accepted
// forms are "Nf" (furlongs only), "NmNf" (miles plus furlongs, optionally
// with trailing yards), and an explicit metres value ("3218m"). Returns
// ok=false if the text matches none of these.
func Distance(text string) (metres int, ok bool) {
	text = strings.ToLower(strings.TrimSpace(text))
	text = strings.ReplaceAll(text, " ", "")

	if mm := metresPattern.FindStringSubmatch(text); mm != nil {
		if n, err := strconv.Atoi(mm[1]); err == nil && n >= metresDisambiguationThreshold {
			return n, true
		}
	}

	m := distancePattern.FindStringSubmatch(text)
	if m == nil || (m[1] == "" && m[2] == "" && m[3] == "") {
		return 0, false
	}

	var totalYards float64
	if m[1] != "" {
		miles, _ := strconv.Atoi(m[1])
		totalYards += float64(miles * yardsPerMile)
	}
	if m[2] != "" {
		furlongs, _ := strconv.Atoi(m[2])
		totalYards += float64(furlongs * yardsPerFurlong)
	}
	if m[3] != "" {
		yards, _ := strconv.Atoi(m[3])
		totalYards += float64(yards)
	}
	return int(totalYards * metresPerYard), true
}

var currencySymbols = map[rune]string{
	'£': "GBP",
	'€': "EUR",
	'$': "USD",
}

// Currency parses a prize string such as "£5,900" into (amount, ISO
// currency code). Returns ok=false if no recognized currency symbol is
// present or the remaining text isn't numeric.
func Currency(text string) (amount float64, code string, ok bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, "", false
	}

	runes := []rune(text)
	symbol := string(runes[0])
	code, known := currencyCodeFor(symbol)
	if !known {
		return 0, "", false
	}

	digits := strings.ReplaceAll(string(runes[1:]), ",", "")
	digits = strings.TrimSpace(digits)
	f, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0, "", false
	}
	return f, code, true
}

func currencyCodeFor(symbol string) (string, bool) {
	switch symbol {
	case "£":
		return "GBP", true
	case "€":
		return "EUR", true
	case "$":
		return "USD", true
	default:
		return "", false
	}
}

// PositionKind is the variant a finishing position parses into. The
// source API treats position as a bare string throughout; this type
// replaces that with the explicit int | non-finisher | disqualified |
// null shape so downstream counters (career rides/wins/places) can fold
// over it without re-parsing strings.
type PositionKind int

const (
	// PositionUnknown is an empty or unrecognized position string —
	// the null case.
	PositionUnknown PositionKind = iota
	// PositionFinished means the horse completed the race; Value holds
	// its finishing place (1..N).
	PositionFinished
	// PositionNonFinisher covers fell/pulled-up/unseated-rider/etc —
	// the horse ran but did not finish in order.
	PositionNonFinisher
	// PositionDisqualified is DSQ specifically, kept distinct from the
	// other non-finisher codes per the source's own taxonomy.
	PositionDisqualified
)

// ParsedPosition is the normalized result of parsing a position string.
type ParsedPosition struct {
	Kind PositionKind
	// Value is the finishing place; only meaningful when Kind ==
	// PositionFinished.
	Value int
	// Raw preserves the original code (e.g. "PU", "F") for non-finisher
	// and unrecognized cases, so a code the API introduces later is
	// still visible rather than silently collapsed.
	Raw string
}

// disqualifiedCode is kept separate from nonFinisherCodes: it is the one
// non-finisher variant the spec calls out by name.
const disqualifiedCode = "DSQ"

// nonFinisherCodes are position strings meaning the horse did not
// complete the race in finishing order, excluding disqualification.
var nonFinisherCodes = map[string]bool{
	"PU":  true, // pulled up
	"F":   true, // fell
	"UR":  true, // unseated rider
	"U":   true, // unseated rider (alt code)
	"RR":  true, // refused to race
	"RO":  true, // ran out
	"BD":  true, // brought down
	"SU":  true, // slipped up
	"LFT": true, // left at start
	"VOI": true, // void
}

// Position canonicalizes a finishing-position string into its
// int | non-finisher | disqualified | null variant. "WON" (a dead-heat
// winner indicator some feeds use) canonicalizes to a finished position
// of 1.
func Position(text string) ParsedPosition {
	text = strings.ToUpper(strings.TrimSpace(text))
	if text == "" {
		return ParsedPosition{Kind: PositionUnknown}
	}
	if text == "WON" {
		return ParsedPosition{Kind: PositionFinished, Value: 1}
	}
	if text == disqualifiedCode {
		return ParsedPosition{Kind: PositionDisqualified, Raw: text}
	}
	if nonFinisherCodes[text] {
		return ParsedPosition{Kind: PositionNonFinisher, Raw: text}
	}
	if n, err := strconv.Atoi(text); err == nil && n > 0 {
		return ParsedPosition{Kind: PositionFinished, Value: n}
	}
	// Ordinal forms ("1ST", "2ND", "3RD", "14TH") from feeds that don't
	// send bare integers.
	if ordinal := strings.TrimRight(text, "STNDRDTH"); ordinal != text {
		if n, err := strconv.Atoi(ordinal); err == nil && n > 0 {
			return ParsedPosition{Kind: PositionFinished, Value: n}
		}
	}
	// Unrecognized code: keep it visible rather than silently dropping it.
	return ParsedPosition{Kind: PositionUnknown, Raw: text}
}

// CountsAsRun reports whether this position counts toward a runs
// denominator: finishers, non-finishers, and disqualifications all ran;
// only an unknown/null position is excluded.
func (p ParsedPosition) CountsAsRun() bool {
	return p.Kind != PositionUnknown
}

// IsWin reports a finishing position of exactly 1.
func (p ParsedPosition) IsWin() bool {
	return p.Kind == PositionFinished && p.Value == 1
}

// IsPlace reports a finishing position of 3 or better.
func (p ParsedPosition) IsPlace() bool {
	return p.Kind == PositionFinished && p.Value <= 3
}

// DBColumns renders the variant into the three nullable columns the
// Repository stores it as: a numeric position (finishers only), a kind
// string ("non-finisher" / "disqualified", non-finishers only), and the
// original source code for audit. All three are nil for PositionUnknown.
func (p ParsedPosition) DBColumns() (position *int, kind *string, raw *string) {
	switch p.Kind {
	case PositionFinished:
		v := p.Value
		return &v, nil, nil
	case PositionNonFinisher:
		k := "non-finisher"
		r := p.Raw
		return nil, &k, &r
	case PositionDisqualified:
		k := "disqualified"
		r := p.Raw
		return nil, &k, &r
	default:
		return nil, nil, nil
	}
}

// WeightText renders total pounds back into racing's stones-pounds text,
// the inverse of Weight, used when a display form is needed from a value
// already normalized to pounds.
func WeightText(lbs int) string {
	return fmt.Sprintf("%d-%d", lbs/14, lbs%14)
}
