package httpserver_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	server "restaurant_catalog/internal/adapters/http_server"
)

func lastLogLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var out map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &out); err != nil {
		t.Fatalf("log line %q: %v", lines[len(lines)-1], err)
	}
	return out
}

func TestObserve_LogsRoutePatternAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(server.Observe(zerolog.New(&buf)))
	r.Get("/v1/restaurants/{id}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("hello"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/restaurants/7", nil))

	line := lastLogLine(t, &buf)
	if line["route"] != "/v1/restaurants/{id}" || line["status"] != float64(200) || line["bytes"] != float64(5) {
		t.Fatalf("log line = %v", line)
	}
	if id, _ := line["request_id"].(string); id == "" {
		t.Fatalf("missing request_id: %v", line)
	}
	if line["level"] != "info" {
		t.Fatalf("level = %v", line["level"])
	}
}

func TestTimeout_WritesEnvelope(t *testing.T) {
	r := chi.NewRouter()
	r.Use(server.Timeout(20 * time.Millisecond))
	r.Get("/slow", func(w http.ResponseWriter, req *http.Request) {
		<-req.Context().Done()
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slow", nil))

	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), `"code":"timeout"`) {
		t.Fatalf("response = %d %s", rec.Code, rec.Body.String())
	}
}

func TestObserve_ServerErrorsLogAtErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	r := chi.NewRouter()
	r.Use(server.Observe(zerolog.New(&buf)))
	r.Get("/boom", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	r.Get("/busy", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	for path, want := range map[string]string{"/boom": "error", "/busy": "warn"} {
		buf.Reset()
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
		if line := lastLogLine(t, &buf); line["level"] != want {
			t.Fatalf("%s logged at %v, want %s", path, line["level"], want)
		}
	}
}
