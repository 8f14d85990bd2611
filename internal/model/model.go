// Package model defines the canonical domain types written to and read from
// the Repository. These structs are the contract between the fetchers and
// the entity extractor on one side and the Repository on the other — the
// same role provider.Team/provider.Player play for the teacher's sports
// seeders, generalized to the racing domain's richer entity graph.
package model

import (
	"time"

	"github.com/albapepper/racesync/internal/parse"
)

// Region is a two-letter region code with a display name.
type Region struct {
	Code string
	Name string
}

// Course is a racecourse reference entity.
type Course struct {
	ID         string
	Name       string
	RegionCode string
	RegionName string
	Latitude   *float64
	Longitude  *float64
}

// Bookmaker is a reference entity for odds providers.
type Bookmaker struct {
	ID     string
	Name   string
	Code   string
	Type   string
	Active bool
}

// Jockey identifies a race rider.
type Jockey struct {
	ID   string
	Name string
}

// Trainer identifies a horse trainer. Location is only available from the
// racecard endpoint, never from the standalone /trainers listing.
type Trainer struct {
	ID       string
	Name     string
	Location string
}

// Owner identifies a horse's registered owner.
type Owner struct {
	ID   string
	Name string
}

// Horse is a horse-graph entity. SireID/DamID/DamsireID are nullable
// foreign keys into the Sire/Dam/Damsire tables (invariant 3, spec §3).
type Horse struct {
	ID       string
	Name     string
	Sex      string
	SexCode  string
	DOB      *time.Time
	Colour   string
	Region   string
	SireID   string
	DamID    string
	DamsireID string
}

// HorsePedigree is the canonical (sire, dam, damsire) tuple for a horse.
// At most one row per horse (invariant 4). Runner rows copy these names
// at write time and are never updated in place — HorsePedigree is the
// single source of truth for pedigree names (§9 "cross-table denorm").
type HorsePedigree struct {
	HorseID      string
	SireID       string
	SireName     string
	DamID        string
	DamName      string
	DamsireID    string
	DamsireName  string
	Breeder      string
	Region       string
}

// Ancestor is the shared shape for Sire, Dam, and Damsire rows: an opaque
// ID, a name, an optional region, and an optional back-reference to the
// Horse row for the same animal if it raced in a covered region. The
// large block of derived statistical columns lives in
// PedigreeStatistics (internal/model/stats.go), keyed by the same ID.
type Ancestor struct {
	ID      string
	Name    string
	Region  string
	HorseID string // empty if the ancestor never raced in a covered region
}

// RaceType enumerates the disciplines a Race can be run under.
type RaceType string

const (
	RaceFlat    RaceType = "flat"
	RaceHurdle  RaceType = "hurdle"
	RaceChase   RaceType = "chase"
	RaceNHFlat  RaceType = "nh_flat"
)

// Race is a single race. Pre-race fields come from the racecard endpoint;
// post-race fields (WinningTime, ToteWin, ..., Comments) are populated by
// the results fetcher and are only non-null once HasResult is true
// (invariant 6, spec §3).
type Race struct {
	ID            string
	Date          time.Time
	OffTime       time.Time
	CourseID      string
	Class         string
	Pattern       string
	Type          RaceType
	DistanceText  string
	DistanceM     *int
	Going         string
	PrizeCurrency string
	PrizeAmount   *float64
	Restrictions  string

	HasResult   bool
	WinningTime string
	ToteWin     *float64
	ToteDividends map[string]float64
	Comments    string
}

// Runner is a horse entered in a specific race; composite identity
// (RaceID, HorseID). Pre-race fields arrive from the racecard endpoint;
// post-race fields arrive (possibly partially) from the results endpoint
// and are applied as a column-level patch, never a full row overwrite
// (§4.F — preserves pre-race fields absent from the results response).
type Runner struct {
	RaceID string
	HorseID string

	// Pre-race
	Draw          *int
	WeightLbs     *int
	WeightText    string
	Age           *int
	FormFigures   string
	OfficialRating *int
	JockeyClaim   *int
	Headgear      string
	SilkURL       string

	JockeyID   string
	JockeyName string
	TrainerID   string
	TrainerName string
	OwnerID     string
	OwnerName   string

	SireName    string
	DamName     string
	DamsireName string

	SaddleClothNumber *int

	// Post-race
	Position        parse.ParsedPosition
	DistanceBeaten  string
	PrizeWon        *float64
	StartingPriceFractional string
	StartingPriceDecimal    *float64
	FinishingTime   string
	Comment         string
}

// RaceResult is the canonical per-runner outcome record, one row per
// (RaceID, HorseID).
type RaceResult struct {
	RaceID  string
	HorseID string

	JockeyID  string
	TrainerID string

	Position        parse.ParsedPosition
	DistanceBeaten  string
	PrizeWon        *float64
	StartingPriceDecimal *float64
	FinishingTime   string
	Comment         string
}
