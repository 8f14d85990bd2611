package raceerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestFatalClassification(t *testing.T) {
	cases := []struct {
		err   error
		fatal bool
	}{
		{fmt.Errorf("upsert runner: %w", InvariantViolation), true},
		{fmt.Errorf("login: %w", AuthenticationError), true},
		{fmt.Errorf("fetch racecards: %w", FetchError), false},
		{fmt.Errorf("decode horse: %w", ParseError), false},
		{fmt.Errorf("write batch: %w", WriteError), false},
		{fmt.Errorf("get: %w", TransientNetworkError), false},
		{fmt.Errorf("get: %w", RateLimited), false},
	}
	for _, c := range cases {
		if got := Fatal(c.err); got != c.fatal {
			t.Errorf("Fatal(%v) = %v, want %v", c.err, got, c.fatal)
		}
	}
}

func TestErrorsIsUnwraps(t *testing.T) {
	err := fmt.Errorf("batch 3: %w", WriteError)
	if !errors.Is(err, WriteError) {
		t.Fatal("expected errors.Is to find WriteError through wrapping")
	}
}
