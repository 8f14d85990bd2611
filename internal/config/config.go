// Package config provides centralized configuration loaded from environment
// variables. Shared by the ingestion CLI and every internal package that
// needs a connection string, region filter, or API credential.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Region registry
// --------------------------------------------------------------------------

// RegionConfig describes a covered racing region.
type RegionConfig struct {
	Code string
	Name string
}

// RegionRegistry lists the regions synced by default. Every transactional
// query is filtered to this set unless overridden by RACE_REGIONS.
var RegionRegistry = map[string]RegionConfig{
	"gb":  {Code: "gb", Name: "Great Britain"},
	"ire": {Code: "ire", Name: "Ireland"},
}

// --------------------------------------------------------------------------
// Table names — single source of truth for the Repository layer
// --------------------------------------------------------------------------

const (
	CoursesTable    = "ra_mst_courses"
	BookmakersTable = "ra_mst_bookmakers"
	RegionsTable    = "ra_mst_regions"
	JockeysTable    = "ra_mst_jockeys"
	TrainersTable   = "ra_mst_trainers"
	OwnersTable     = "ra_mst_owners"

	HorsesTable    = "ra_mst_horses"
	PedigreesTable = "ra_mst_horse_pedigrees"
	SiresTable     = "ra_mst_sires"
	DamsTable      = "ra_mst_dams"
	DamsiresTable  = "ra_mst_damsires"

	RacesTable       = "ra_races"
	RunnersTable     = "ra_runners"
	RaceResultsTable = "ra_race_results"

	EntityCombinationTable     = "ra_entity_combinations"
	PerformanceByDistanceTable = "ra_performance_by_distance"
	PerformanceByVenueTable    = "ra_performance_by_venue"
	RunnerStatisticsTable      = "ra_runner_statistics"
	PeopleStatisticsTable      = "ra_people_statistics"
	PedigreeStatisticsTable    = "ra_pedigree_statistics"
)

// --------------------------------------------------------------------------
// Config struct — populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// Third-party racing API
	APIBaseURL string
	APIUser    string
	APIPass    string

	// Region filter, e.g. "gb,ire"
	Regions []string

	// Operational
	Environment   string // development, staging, production
	Debug         bool
	LogDir        string
	CheckpointDir string

	// Concurrency
	RepositoryMaxConcurrentTx int

	// Test mode (§6 --test flag default): 7-day windows, 5-page caps.
	TestMode bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("RACING_DATABASE_URL", envOr("DATABASE_URL", ""))
	if dbURL == "" {
		return nil, fmt.Errorf("RACING_DATABASE_URL or DATABASE_URL must be set")
	}

	apiUser := envOr("RACING_API_USERNAME", "")
	apiPass := envOr("RACING_API_PASSWORD", "")
	if apiUser == "" || apiPass == "" {
		return nil, fmt.Errorf("RACING_API_USERNAME and RACING_API_PASSWORD must be set")
	}

	return &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIBaseURL: envOr("RACING_API_BASE_URL", "https://api.theracingapi.com"),
		APIUser:    apiUser,
		APIPass:    apiPass,

		Regions: envList("RACE_REGIONS", []string{"gb", "ire"}),

		Environment:   envOr("ENVIRONMENT", "development"),
		Debug:         envBool("DEBUG", false),
		LogDir:        envOr("RACING_LOG_DIR", "logs"),
		CheckpointDir: envOr("RACING_CHECKPOINT_DIR", "checkpoints"),

		RepositoryMaxConcurrentTx: envInt("REPOSITORY_MAX_CONCURRENT_TX", 4),

		TestMode: envBool("RACING_TEST_MODE", false),
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
