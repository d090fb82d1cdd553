package httpserver

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"restaurant_catalog/internal/domain"
	"restaurant_catalog/internal/jobs"
)

type envelope struct {
	Data any  `json:"data"`
	Meta meta `json:"meta"`
}

type meta struct {
	RequestID string `json:"request_id,omitempty"`
	Count     *int   `json:"count,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

func writeData(w http.ResponseWriter, r *http.Request, status int, data any) {
	writeJSON(w, status, envelope{Data: data, Meta: meta{RequestID: chimw.GetReqID(r.Context())}})
}

func writeList[T any](w http.ResponseWriter, r *http.Request, items []T) {
	if items == nil {
		items = []T{}
	}
	n := len(items)
	writeJSON(w, http.StatusOK, envelope{Data: items, Meta: meta{RequestID: chimw.GetReqID(r.Context()), Count: &n}})
}

func writeErr(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: msg}})
}

// writeError maps a service error onto the API error taxonomy.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status >= 500 {
		log.Error().Err(err).Str("request_id", chimw.GetReqID(r.Context())).Str("code", code).Msg("request failed")
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeErr(w, status, code, msg)
}

func classify(err error) (int, string) {
	var (
		cfgErr  *domain.ConfigurationError
		rateErr *domain.RateLimitError
		apiErr  *domain.APIError
	)
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, domain.ErrJobNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrLocationNotIndexed):
		return http.StatusNotFound, "location_not_indexed"
	case errors.Is(err, domain.ErrTooManyJobs):
		return http.StatusTooManyRequests, "too_many_jobs"
	case errors.Is(err, domain.ErrNoAdaptersConfigured):
		return http.StatusServiceUnavailable, "no_adapters_configured"
	case errors.Is(err, jobs.ErrShuttingDown):
		return http.StatusServiceUnavailable, "shutting_down"
	case errors.Is(err, jobs.ErrLocationRequired):
		return http.StatusBadRequest, "invalid_request"
	case errors.As(err, &cfgErr):
		return http.StatusBadRequest, "adapter_not_configured"
	case errors.As(err, &rateErr):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.As(err, &apiErr):
		if apiErr.Status == http.StatusNotFound {
			return http.StatusNotFound, "not_found"
		}
		return http.StatusBadGateway, "upstream_error"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCacheable serves data with an ETag and answers 304 on a match.
// The request id is left out of meta so the tag only tracks the data.
func writeCacheable(w http.ResponseWriter, r *http.Request, data any) {
	etag, body := calcETagAndBody(envelope{Data: data})
	if etag == "" {
		writeErr(w, http.StatusInternalServerError, "internal", "internal error")
		return
	}
	w.Header().Set("ETag", etag)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Msg("failed to write cacheable body")
	}
}
