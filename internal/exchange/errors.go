package exchange

import (
	"fmt"
	"net/http"
	"strings"
)

// RequestError is returned for any non-2xx exchange response, so
// callers can distinguish auth failures (401/403, likely bad key
// material or clock skew) from rate limiting (429) from server errors.
type RequestError struct {
	Status int
	Body   string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("exchange request failed: status %d: %s", e.Status, e.Body)
}

// IsAuthError reports whether the request was rejected as unauthorized.
func (e *RequestError) IsAuthError() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

// IsRateLimited reports whether the request was rate limited.
func (e *RequestError) IsRateLimited() bool {
	return e.Status == http.StatusTooManyRequests
}

// IsServerError reports whether the exchange failed server-side.
func (e *RequestError) IsServerError() bool {
	return e.Status >= 500
}

// ChunkError records the failure of one chunk of a batched lookup.
type ChunkError struct {
	Chunk int // zero-based chunk index
	IDs   []string
	Err   error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d (%d order ids): %v", e.Chunk, len(e.IDs), e.Err)
}

func (e *ChunkError) Unwrap() error {
	return e.Err
}

// PartialError is returned when some chunks of a batched lookup failed
// while others succeeded. The accumulated results from successful
// chunks are still returned alongside it; callers decide whether a
// partial answer is acceptable.
type PartialError struct {
	Failed []*ChunkError
	Total  int // total number of chunks issued
}

func (e *PartialError) Error() string {
	msgs := make([]string, len(e.Failed))
	for i, c := range e.Failed {
		msgs[i] = c.Error()
	}
	return fmt.Sprintf("%d of %d fill chunks failed: %s", len(e.Failed), e.Total, strings.Join(msgs, "; "))
}

// Unwrap exposes the per-chunk errors for errors.Is/As inspection.
func (e *PartialError) Unwrap() []error {
	errs := make([]error, len(e.Failed))
	for i, c := range e.Failed {
		errs[i] = c
	}
	return errs
}
