package racingapi

import "encoding/json"

// The *Doc types mirror the third-party API's JSON shapes verbatim (field
// names, nesting, optional keys) before normalisation. They are the input
// to internal/entity and internal/fetch's document-to-model mapping —
// playing the same role the teacher's bdlTeamRaw/bdlPlayerRaw structs play
// for BallDontLie responses (internal/provider/bdl), generalized to the
// racing API's richer nested racecard/result documents.

// CourseDoc is one row from GET /v1/courses.
type CourseDoc struct {
	ID         string `json:"id"`
	Course     string `json:"course"`
	RegionCode string `json:"region_code"`
	Region     string `json:"region"`
	Lat        *float64 `json:"lat,omitempty"`
	Lng        *float64 `json:"lng,omitempty"`
}

// BookmakerDoc is one row from GET /v1/bookmakers.
type BookmakerDoc struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Code     string `json:"code"`
	Type     string `json:"type"`
	IsActive bool   `json:"is_active"`
}

// PersonDoc is the common shape for jockeys, trainers, and owners. Location
// is only ever populated when embedded in a racecard — the standalone
// /trainers listing never sends it.
type PersonDoc struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
}

// PedigreeDoc is the (sire, dam, damsire) block embedded in a racecard
// runner or a horse detail document.
type PedigreeDoc struct {
	SireID      string `json:"sire_id,omitempty"`
	Sire        string `json:"sire,omitempty"`
	DamID       string `json:"dam_id,omitempty"`
	Dam         string `json:"dam,omitempty"`
	DamsireID   string `json:"damsire_id,omitempty"`
	Damsire     string `json:"damsire,omitempty"`
}

// RaceDoc is one race from GET /v1/racecards/pro.
type RaceDoc struct {
	RaceID        string       `json:"race_id"`
	Date          string       `json:"date"`   // "2025-06-01"
	OffDT         string       `json:"off_dt"` // "2025-06-01 14:30:00"
	Course        string       `json:"course"`
	CourseID      string       `json:"course_id"`
	RegionCode    string       `json:"region"`
	Class         string       `json:"race_class,omitempty"`
	Pattern       string       `json:"pattern,omitempty"`
	Type          string       `json:"type,omitempty"` // Flat, Hurdle, Chase, NH Flat
	Distance      string       `json:"distance,omitempty"`
	DistanceF     string       `json:"distance_f,omitempty"`
	Going         string       `json:"going,omitempty"`
	Prize         string       `json:"prize,omitempty"` // "£5,900"
	Restrictions  string       `json:"age_band,omitempty"`
	Runners       []RunnerDoc  `json:"runners"`
}

// RunnerDoc is one runner nested in a RaceDoc (pre-race fields).
type RunnerDoc struct {
	HorseID     string      `json:"horse_id"`
	Horse       string      `json:"horse"`
	Sex         string      `json:"sex,omitempty"`
	SexCode     string      `json:"sex_code,omitempty"`
	Colour      string      `json:"colour,omitempty"`
	Region      string      `json:"region,omitempty"`
	DOB         string      `json:"dob,omitempty"`

	JockeyID   string `json:"jockey_id,omitempty"`
	Jockey     string `json:"jockey,omitempty"`
	TrainerID  string `json:"trainer_id,omitempty"`
	Trainer    string `json:"trainer,omitempty"`
	TrainerLoc string `json:"trainer_location,omitempty"`
	OwnerID    string `json:"owner_id,omitempty"`
	Owner      string `json:"owner,omitempty"`

	Number   string `json:"number,omitempty"` // saddlecloth number, may be "1" or "1a"
	Draw     string `json:"draw,omitempty"`
	Weight   string `json:"lbs,omitempty"` // stones-pounds text, e.g. "8-13"
	Age      string `json:"age,omitempty"`
	Form     string `json:"form,omitempty"`
	OR       string `json:"ofr,omitempty"` // official rating
	JockeyClaim string `json:"jockey_claim,omitempty"`
	Headgear string `json:"headgear,omitempty"`
	SilkURL  string `json:"silk_url,omitempty"`

	Pedigree PedigreeDoc `json:"pedigree"`
}

// RaceResultDoc is one race from GET /v1/results.
type RaceResultDoc struct {
	RaceID  string            `json:"race_id"`
	Runners []RunnerResultDoc `json:"runners"`

	WinningTime string             `json:"winning_time,omitempty"`
	Tote        map[string]string  `json:"tote,omitempty"`
	Comments    string             `json:"comments,omitempty"`
}

// RunnerResultDoc is one runner's outcome within a RaceResultDoc.
type RunnerResultDoc struct {
	HorseID  string `json:"horse_id"`
	JockeyID string `json:"jockey_id,omitempty"`
	TrainerID string `json:"trainer_id,omitempty"`

	Position string `json:"position,omitempty"` // "1", "2", "PU", "F", "WON", ...
	OvrBtn   string `json:"ovr_btn,omitempty"`   // distance beaten
	Prize    string `json:"prize,omitempty"`
	SP       string `json:"sp,omitempty"`     // fractional starting price
	SPDec    string `json:"sp_dec,omitempty"` // decimal starting price
	Time     string `json:"time,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

// HorseDetailDoc is the response from GET /v1/horses/{id}/pro, used for
// on-demand enrichment of newly discovered horses (§4.D).
type HorseDetailDoc struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	DOB     string `json:"dob,omitempty"`
	SexCode string `json:"sex_code,omitempty"`
	Colour  string `json:"colour,omitempty"`
	Region  string `json:"region,omitempty"`
	Breeder string `json:"breeder,omitempty"`

	SireID    string `json:"sire_id,omitempty"`
	Sire      string `json:"sire,omitempty"`
	DamID     string `json:"dam_id,omitempty"`
	Dam       string `json:"dam,omitempty"`
	DamsireID string `json:"damsire_id,omitempty"`
	Damsire   string `json:"damsire,omitempty"`
}

// page is the common envelope for paginated listing endpoints
// (jockeys/trainers/owners). Racecards and results are not paginated —
// the API returns every matching document for the requested date window
// in a single response (spec §4.B).
type page struct {
	Data    json.RawMessage `json:"data"`
	HasMore bool            `json:"has_more"`
}
