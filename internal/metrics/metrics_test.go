package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()

	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/v1/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"1", "2", "3"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/items/"+id, nil))
	}

	got := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/v1/items/{id}", "418"))
	if got != 3 {
		t.Errorf("expected 3 requests on the route pattern, got %v", got)
	}
}

func TestObserveSnapshot(t *testing.T) {
	m := New()
	m.ObserveSnapshot(time.Now(), 6400)
	m.ObserveSnapshot(time.Now(), 100)

	if got := testutil.ToFloat64(m.SurfaceCells); got != 6500 {
		t.Errorf("expected 6500 cells, got %v", got)
	}

	// nil receiver is a no-op
	var nilMetrics *Metrics
	nilMetrics.ObserveSnapshot(time.Now(), 1)
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.WSClients.Set(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"bsdash_ws_clients 2", "go_goroutines"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in exposition", want)
		}
	}
}
