package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("not found")
	ErrJobNotFound          = errors.New("job not found")
	ErrNoAdaptersConfigured = errors.New("no provider adapters configured")
	ErrTooManyJobs          = errors.New("too many jobs running")
	ErrLocationNotIndexed   = errors.New("location not indexed")
)

// ConfigurationError means an adapter was invoked without credentials.
type ConfigurationError struct {
	Source string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s: adapter not configured", e.Source)
}

// APIError carries a non-success upstream response.
type APIError struct {
	Source string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: upstream status %d", e.Source, e.Status)
	}
	return fmt.Sprintf("%s: upstream status %d: %s", e.Source, e.Status, e.Body)
}

// RateLimitError is returned once a provider's request quota is spent.
type RateLimitError struct {
	Source string
	Count  int64
	Limit  int64
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s: request quota exceeded (%d/%d)", e.Source, e.Count, e.Limit)
}
