package fetch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/albapepper/racesync/internal/model"
	"github.com/albapepper/racesync/internal/racingapi"
)

// MasterFetchers implements spec §4.G: bulk pulls of slow-changing
// reference data. Each fetch walks every page (if the endpoint is
// paginated), writes the result through Repository, and returns a row
// count.
type MasterFetchers struct {
	api      racingapi.APIClient
	repo     Repository
	regions  []string
	logger   *slog.Logger
	maxPages int // 0 means unlimited; set by --test mode (spec §6, "5 pages")
}

func NewMasterFetchers(api racingapi.APIClient, repo Repository, regions []string, logger *slog.Logger) *MasterFetchers {
	if logger == nil {
		logger = slog.Default()
	}
	return &MasterFetchers{api: api, repo: repo, regions: regions, logger: logger}
}

// SetMaxPages caps how many pages a paginated fetch walks. 0 (the
// default) means no cap.
func (m *MasterFetchers) SetMaxPages(n int) {
	m.maxPages = n
}

// FetchCourses walks GET /v1/courses and upserts Region + Course rows;
// courses imply the regions they're drawn from, so regions are derived
// rather than pulled separately.
func (m *MasterFetchers) FetchCourses(ctx context.Context) (int, error) {
	docs, err := m.api.GetCourses(ctx, m.regions)
	if err != nil {
		return 0, err
	}

	seenRegions := make(map[string]bool)
	var regions []model.Region
	courses := make([]model.Course, 0, len(docs))
	for _, d := range docs {
		if d.RegionCode != "" && !seenRegions[d.RegionCode] {
			seenRegions[d.RegionCode] = true
			regions = append(regions, model.Region{Code: d.RegionCode, Name: d.Region})
		}
		courses = append(courses, model.Course{
			ID:         d.ID,
			Name:       d.Course,
			RegionCode: d.RegionCode,
			RegionName: d.Region,
			Latitude:   d.Lat,
			Longitude:  d.Lng,
		})
	}

	if len(regions) > 0 {
		if _, err := m.repo.UpsertRegions(ctx, regions); err != nil {
			return 0, fmt.Errorf("upsert regions: %w", err)
		}
	}
	return m.repo.UpsertCourses(ctx, courses)
}

// FetchBookmakers walks GET /v1/bookmakers (not paginated) and upserts.
func (m *MasterFetchers) FetchBookmakers(ctx context.Context) (int, error) {
	docs, err := m.api.GetBookmakers(ctx)
	if err != nil {
		return 0, err
	}
	rows := make([]model.Bookmaker, 0, len(docs))
	for _, d := range docs {
		rows = append(rows, model.Bookmaker{ID: d.ID, Name: d.Name, Code: d.Code, Type: d.Type, Active: d.IsActive})
	}
	return m.repo.UpsertBookmakers(ctx, rows)
}

// FetchJockeys walks every page of GET /v1/jockeys and upserts.
func (m *MasterFetchers) FetchJockeys(ctx context.Context) (int, error) {
	var rows []model.Jockey
	err := m.paginate(ctx, m.api.GetJockeys, func(items []racingapi.PersonDoc) {
		for _, d := range items {
			rows = append(rows, model.Jockey{ID: d.ID, Name: d.Name})
		}
	})
	if err != nil {
		return 0, err
	}
	return m.repo.UpsertJockeys(ctx, rows)
}

// FetchTrainers walks every page of GET /v1/trainers and upserts.
func (m *MasterFetchers) FetchTrainers(ctx context.Context) (int, error) {
	var rows []model.Trainer
	err := m.paginate(ctx, m.api.GetTrainers, func(items []racingapi.PersonDoc) {
		for _, d := range items {
			rows = append(rows, model.Trainer{ID: d.ID, Name: d.Name, Location: d.Location})
		}
	})
	if err != nil {
		return 0, err
	}
	return m.repo.UpsertTrainers(ctx, rows)
}

// FetchOwners walks every page of GET /v1/owners and upserts.
func (m *MasterFetchers) FetchOwners(ctx context.Context) (int, error) {
	var rows []model.Owner
	err := m.paginate(ctx, m.api.GetOwners, func(items []racingapi.PersonDoc) {
		for _, d := range items {
			rows = append(rows, model.Owner{ID: d.ID, Name: d.Name})
		}
	})
	if err != nil {
		return 0, err
	}
	return m.repo.UpsertOwners(ctx, rows)
}

type personPage func(ctx context.Context, regions []string, page int) ([]racingapi.PersonDoc, bool, error)

// paginate walks a person-listing endpoint page by page until hasMore is
// false, feeding every page's items to collect.
func (m *MasterFetchers) paginate(ctx context.Context, fetch personPage, collect func([]racingapi.PersonDoc)) error {
	page := 1
	for {
		items, hasMore, err := fetch(ctx, m.regions, page)
		if err != nil {
			return err
		}
		collect(items)
		if !hasMore {
			return nil
		}
		if m.maxPages > 0 && page >= m.maxPages {
			return nil
		}
		page++
	}
}
