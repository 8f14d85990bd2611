// Package raceerr defines the error taxonomy from spec §7. Every fetcher,
// the Repository, and the Controller classify failures into these
// sentinel-wrapped kinds so callers can use errors.Is to decide whether a
// failure is retryable, skippable, or fatal — the same plain-stdlib
// approach the teacher uses for its own errors (fmt.Errorf + %w
// throughout internal/db, internal/seed), just with named sentinels
// layered on top since this spec requires callers to branch on error kind.
package raceerr

import "errors"

// Sentinel kinds. Wrap with fmt.Errorf("...: %w", KindX) and unwrap with
// errors.Is.
var (
	// TransientNetworkError covers connection failures and timeouts that
	// the APIClient retries internally before ever surfacing to a caller.
	TransientNetworkError = errors.New("transient network error")

	// RateLimited is a 429 response. Retried internally with the
	// provider-advised (or exponential-backoff) wait.
	RateLimited = errors.New("rate limited")

	// FetchError is a non-429 4xx response, or a request that exhausted
	// all retries. The surrounding fetcher records it and continues.
	FetchError = errors.New("fetch error")

	// ParseError is a response body that failed to decode into the
	// expected documents. The whole API call fails with it; single
	// documents are not skipped and nothing is added to failedBatches.
	ParseError = errors.New("parse error")

	// WriteError is a Repository batch that failed after one retry.
	WriteError = errors.New("write error")

	// InvariantViolation is an orphan Runner, a missing Race, or a
	// checkpoint monotonicity violation. Fatal: the Controller aborts.
	InvariantViolation = errors.New("invariant violation")

	// AuthenticationError comes from the APIClient. Fatal.
	AuthenticationError = errors.New("authentication error")
)

// Fatal reports whether err should abort the surrounding job rather than
// being recorded and skipped.
func Fatal(err error) bool {
	return errors.Is(err, InvariantViolation) || errors.Is(err, AuthenticationError)
}
