package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

var (
	ErrAPIRequest        = goerr.New("API request failed", goerr.ID("api_request"))
	ErrMalformedResponse = goerr.New("malformed API response", goerr.ID("malformed_response"))
	ErrConfiguration     = goerr.New("configuration error", goerr.ID("configuration"))
	ErrRepository        = goerr.New("repository error", goerr.ID("repository"))
	ErrStore             = goerr.New("report store error", goerr.ID("store"))
	ErrReportNotFound    = goerr.New("report not found", goerr.ID("report_not_found"))
)

// HTTPError is returned when the CI provider answers with a non-2xx status.
type HTTPError struct {
	Status     int
	StatusText string
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("failed to fetch from %s: %d: %s", e.URL, e.Status, e.StatusText)
}

// RateLimitError is an HTTPError with status 403 from the provider. ResetAt is
// zero when the provider did not report a reset time.
type RateLimitError struct {
	HTTPError
	ResetAt time.Time
}

func (e *RateLimitError) Error() string {
	if e.ResetAt.IsZero() {
		return "rate limit exceeded: " + e.HTTPError.Error()
	}
	return fmt.Sprintf("rate limit exceeded (resets at %s): %s", e.ResetAt.Format(time.RFC3339), e.HTTPError.Error())
}

func (e *RateLimitError) Unwrap() error {
	return &e.HTTPError
}

// MalformedResponseError reports a response body that does not have the expected shape.
type MalformedResponseError struct {
	URL    string
	Reason string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response from %s: %s", e.URL, e.Reason)
}

func IsRateLimit(err error) bool {
	var rle *RateLimitError
	return errors.As(err, &rle)
}

func IsMalformedResponse(err error) bool {
	var mre *MalformedResponseError
	return errors.As(err, &mre)
}

// HTTPStatus returns the provider status carried by err, or 0.
func HTTPStatus(err error) int {
	var he *HTTPError
	if errors.As(err, &he) {
		return he.Status
	}
	return 0
}
