package integrations

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrRateLimited marks a failure that is worth retrying after a delay.
var ErrRateLimited = errors.New("rate limited")

// Error is returned by live clients in production instead of a simulated response.
type Error struct {
	System string
	Op     string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.System, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Is lets errors.Is(err, ErrRateLimited) match throttled responses.
func (e *APIError) Is(target error) bool {
	if target != ErrRateLimited {
		return false
	}
	switch e.StatusCode {
	case http.StatusTooManyRequests:
		return true
	case http.StatusForbidden:
		return strings.Contains(strings.ToLower(e.Body), "rate limit")
	}
	return false
}
