package racingapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/albapepper/racesync/internal/raceerr"
	"github.com/albapepper/racesync/internal/ratelimit"
)

func newTestClient(t *testing.T, server *httptest.Server) *HTTPClient {
	t.Helper()
	c := NewHTTPClient(server.URL, "user", "pass", ratelimit.New(100, 100), nil)
	c.sleep = func(time.Duration) {} // don't actually wait in tests
	return c
}

func TestGetCoursesSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "user" || pass != "pass" {
			t.Errorf("missing or wrong basic auth")
		}
		json.NewEncoder(w).Encode([]CourseDoc{{ID: "crs_1", Course: "Ascot", RegionCode: "gb", Region: "GB"}})
	}))
	defer server.Close()

	c := newTestClient(t, server)
	courses, err := c.GetCourses(context.Background(), []string{"gb", "ire"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(courses) != 1 || courses[0].Course != "Ascot" {
		t.Fatalf("unexpected courses: %+v", courses)
	}
}

func TestGetRetriesOn429ThenSucceeds(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode([]BookmakerDoc{{ID: "bk_1", Name: "Example Bookmaker"}})
	}))
	defer server.Close()

	c := newTestClient(t, server)
	books, err := c.GetBookmakers(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if len(books) != 1 {
		t.Fatalf("unexpected bookmakers: %+v", books)
	}
}

func TestGetFailsImmediatelyOn404(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("not found"))
	}))
	defer server.Close()

	c := newTestClient(t, server)
	_, err := c.GetBookmakers(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !errorIsFetchError(err) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected exactly 1 attempt for non-retryable 4xx, got %d", attempts)
	}
}

func TestGetFailsFastOnAuthError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	c := newTestClient(t, server)
	_, err := c.GetCourses(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errorIsAuthError(err) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected exactly 1 attempt on auth failure, got %d", attempts)
	}
}

func TestGetExhaustsRetriesOn5xx(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(t, server)
	_, err := c.GetBookmakers(context.Background())
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != maxAttempts {
		t.Fatalf("expected %d attempts, got %d", maxAttempts, attempts)
	}
}

func TestGetBackoffEscalatesPerAttempt(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := newTestClient(t, server)
	var waits []time.Duration
	c.sleep = func(d time.Duration) { waits = append(waits, d) }

	if _, err := c.GetBookmakers(context.Background()); err == nil {
		t.Fatal("expected error after exhausting retries")
	}

	want := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second, 40 * time.Second, 80 * time.Second}
	if len(waits) != len(want) {
		t.Fatalf("expected %d waits, got %v", len(want), waits)
	}
	for i, w := range want {
		if waits[i] != w {
			t.Errorf("wait %d = %v, want %v", i, waits[i], w)
		}
	}
}

func TestGetHonorsRetryAfterWhenLargerThanSchedule(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode([]BookmakerDoc{{ID: "bk_1", Name: "Example Bookmaker"}})
	}))
	defer server.Close()

	c := newTestClient(t, server)
	var waits []time.Duration
	c.sleep = func(d time.Duration) { waits = append(waits, d) }

	if _, err := c.GetBookmakers(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(waits) != 1 || waits[0] != 30*time.Second {
		t.Fatalf("expected a single 30s wait honoring Retry-After, got %v", waits)
	}
}

func TestGetJockeysPaginates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		hasMore := page == "1"
		body := []PersonDoc{{ID: "jky_1", Name: "A Jockey"}}
		raw, _ := json.Marshal(body)
		json.NewEncoder(w).Encode(map[string]any{
			"data":     json.RawMessage(raw),
			"has_more": hasMore,
		})
	}))
	defer server.Close()

	c := newTestClient(t, server)
	items, hasMore, err := c.GetJockeys(context.Background(), []string{"gb"}, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !hasMore {
		t.Fatal("expected hasMore true on page 1")
	}
	if len(items) != 1 {
		t.Fatalf("unexpected items: %+v", items)
	}

	items, hasMore, err = c.GetJockeys(context.Background(), []string{"gb"}, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hasMore {
		t.Fatal("expected hasMore false on page 2")
	}
}

func errorIsFetchError(err error) bool {
	return errors.Is(err, raceerr.FetchError)
}

func errorIsAuthError(err error) bool {
	return errors.Is(err, raceerr.AuthenticationError)
}
