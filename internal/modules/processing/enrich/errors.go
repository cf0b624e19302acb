package enrich

import (
	"errors"
	"fmt"
)

var (
	ErrNotConfigured = errors.New("provider is not configured")
	ErrNoResults     = errors.New("no results")
)

// UpstreamError is a non-2xx answer from a third-party API.
type UpstreamError struct {
	Service string
	Status  int
	Body    string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Service, e.Status)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.Status, e.Body)
}
