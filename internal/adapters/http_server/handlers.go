package httpserver

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"restaurant_catalog/internal/app"
	"restaurant_catalog/internal/domain"
	"restaurant_catalog/internal/jobs"
)

const maxBodyBytes = 1 << 16

type Handlers struct {
	Q    *app.QueryService
	Idx  *app.IndexingService
	Jobs *jobs.Supervisor
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/v1", func(r chi.Router) {
		r.Post("/index-jobs", h.submitJob)
		r.Get("/index-jobs", h.listJobs)
		r.Get("/index-jobs/{id}", h.getJob)

		r.Post("/restaurants", h.indexRestaurant)
		r.Get("/restaurants", h.listRestaurants)
		r.Get("/restaurants/{id}", h.getRestaurant)
		r.Get("/restaurants/{id}/reviews", h.listReviews)
		r.Post("/restaurants/{id}/reindex", h.reindex)

		r.Get("/search", h.search)
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_request", "malformed JSON body: "+err.Error())
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeErr(w, http.StatusBadRequest, "invalid_request", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func queryLimit(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	ls := r.URL.Query().Get("limit")
	if ls == "" {
		return def, true
	}
	l, err := strconv.Atoi(ls)
	if err != nil || l <= 0 || l > 200 {
		writeErr(w, http.StatusBadRequest, "invalid_request", "limit must be an integer between 1 and 200")
		return 0, false
	}
	return l, true
}

// ---- index jobs ----

type submitJobRequest struct {
	Location string `json:"location"`
	Category string `json:"category"`
}

func (h *Handlers) submitJob(w http.ResponseWriter, r *http.Request) {
	var req submitJobRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Location) == "" {
		writeErr(w, http.StatusBadRequest, "invalid_request", "location is required")
		return
	}
	job, err := h.Jobs.Submit(req.Location, strings.TrimSpace(req.Category))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/index-jobs/"+job.ID)
	writeData(w, r, http.StatusAccepted, job)
}

func (h *Handlers) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.Jobs.Registry().Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, job)
}

func (h *Handlers) listJobs(w http.ResponseWriter, r *http.Request) {
	writeList(w, r, h.Jobs.Registry().List())
}

// ---- restaurants ----

type indexRestaurantRequest struct {
	Source     string `json:"source"`
	ProviderID string `json:"provider_id"`
	Location   string `json:"location"`
}

func (h *Handlers) indexRestaurant(w http.ResponseWriter, r *http.Request) {
	var req indexRestaurantRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Source == "" || req.ProviderID == "" {
		writeErr(w, http.StatusBadRequest, "invalid_request", "source and provider_id are required")
		return
	}
	res, err := h.Idx.IndexByProviderID(r.Context(), req.Source, req.ProviderID, strings.TrimSpace(req.Location))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusCreated, res)
}

func (h *Handlers) getRestaurant(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rv, err := h.Q.GetRestaurant(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCacheable(w, r, rv)
}

func (h *Handlers) listRestaurants(w http.ResponseWriter, r *http.Request) {
	location := strings.TrimSpace(r.URL.Query().Get("location"))
	if location == "" {
		writeErr(w, http.StatusBadRequest, "invalid_request", "location is required")
		return
	}
	limit, ok := queryLimit(w, r, 50)
	if !ok {
		return
	}
	out, err := h.Q.ListByLocation(r.Context(), location, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, r, out)
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	limit, ok := queryLimit(w, r, 50)
	if !ok {
		return
	}
	out, err := h.Q.ListReviews(r.Context(), id, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, r, out)
}

func (h *Handlers) reindex(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	res, err := h.Idx.Reindex(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, r, http.StatusOK, res)
}

// ---- live search ----

type searchHit struct {
	Source     string         `json:"source"`
	ProviderID string         `json:"provider_id"`
	Name       string         `json:"name"`
	Address    string         `json:"address,omitempty"`
	Phone      string         `json:"phone,omitempty"`
	Coords     *domain.Coords `json:"coords,omitempty"`
	Rating     *float64       `json:"rating,omitempty"`
	URL        string         `json:"url,omitempty"`
}

// search queries one provider directly; nothing is written.
func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	source, term, location := q.Get("source"), strings.TrimSpace(q.Get("q")), strings.TrimSpace(q.Get("location"))
	if source == "" || location == "" {
		writeErr(w, http.StatusBadRequest, "invalid_request", "source and location are required")
		return
	}
	limit, ok := queryLimit(w, r, 20)
	if !ok {
		return
	}
	a, found := h.Idx.Adapter(source)
	if !found || !a.Configured() {
		writeError(w, r, &domain.ConfigurationError{Source: source})
		return
	}

	var (
		ls  []domain.Listing
		err error
	)
	if term == "" {
		ls, err = a.SearchArea(r.Context(), location, "", limit, 0)
	} else {
		ls, err = a.SearchByName(r.Context(), term, location, limit)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	hits := make([]searchHit, 0, len(ls))
	for _, l := range ls {
		hit := searchHit{
			Source:     source,
			ProviderID: l.ProviderID,
			Name:       l.Name,
			Address:    l.Address,
			Phone:      l.Phone,
			Rating:     l.Rating,
			URL:        l.URL,
		}
		if l.HasCoords() {
			hit.Coords = &domain.Coords{Lat: *l.Lat, Lon: *l.Lon}
		}
		hits = append(hits, hit)
	}
	writeList(w, r, hits)
}
