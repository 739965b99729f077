package b2b

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoCredential is returned when neither the vault nor the static fallback
// can supply an API key.
var ErrNoCredential = errors.New("no_credential")

const bodyTruncateLen = 200

// HTTPError is any non-2xx upstream response that is not a 403.
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned %d for %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("upstream returned %d for %s: %s", e.StatusCode, e.URL, e.Body)
}

// ForbiddenError is a 403 from the upstream. The message carries only the
// masked key and a truncated, HTML-elided body.
type ForbiddenError struct {
	URL           string
	MaskedKey     string
	HadAuthHeader bool
	Body          string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("upstream forbade %s (key=%s, auth_header=%t): %s",
		e.URL, e.MaskedKey, e.HadAuthHeader, e.Body)
}

// ConnectionError covers refused connections and DNS failures.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("upstream unreachable at %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TimeoutError is an exceeded per-request deadline.
type TimeoutError struct {
	URL string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("upstream timed out at %s: %v", e.URL, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// IsTransient reports whether err may succeed on retry.
func IsTransient(err error) bool {
	var timeoutErr *TimeoutError
	var connErr *ConnectionError
	return errors.As(err, &timeoutErr) || errors.As(err, &connErr)
}

func truncateBody(body string) string {
	body = strings.TrimSpace(body)
	if strings.HasPrefix(strings.ToLower(body), "<!doctype") || strings.HasPrefix(body, "<html") || strings.HasPrefix(body, "<HTML") {
		return "(HTML body elided)"
	}
	if len(body) > bodyTruncateLen {
		return body[:bodyTruncateLen]
	}
	return body
}
