// Package racingapi is the abstract contract every fetcher consumes
// (spec §4.B), plus the one concrete HTTP implementation of it. Callers
// depend on the APIClient interface, never on *HTTPClient directly, so
// tests substitute a fake — the same shape as the teacher's pattern of
// passing *bdl.NBAHandler / *sportmonks.FootballHandler into seed
// functions, generalized into an interface since this spec has exactly
// one upstream API rather than one handler type per provider.
package racingapi

import "context"

// APIClient is the contract every fetcher is built against.
type APIClient interface {
	GetCourses(ctx context.Context, regions []string) ([]CourseDoc, error)
	GetBookmakers(ctx context.Context) ([]BookmakerDoc, error)

	GetJockeys(ctx context.Context, regions []string, page int) (items []PersonDoc, hasMore bool, err error)
	GetTrainers(ctx context.Context, regions []string, page int) (items []PersonDoc, hasMore bool, err error)
	GetOwners(ctx context.Context, regions []string, page int) (items []PersonDoc, hasMore bool, err error)

	GetRacecardsPro(ctx context.Context, dateFrom, dateTo string, regions []string) ([]RaceDoc, error)
	GetResults(ctx context.Context, dateFrom, dateTo string, regions []string) ([]RaceResultDoc, error)

	GetHorsePro(ctx context.Context, id string) (HorseDetailDoc, error)
}
