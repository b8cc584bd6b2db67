package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/bsdash/internal/dashboard"
	"github.com/dgnsrekt/bsdash/internal/pricing"
	"github.com/dgnsrekt/bsdash/internal/request"
)

func testOption() request.OptionRequest {
	maturity := 1.0
	return request.OptionRequest{
		Spot:       100,
		Strike:     100,
		Maturity:   &maturity,
		Volatility: 0.2,
		Rate:       0.03,
		Kind:       "call",
	}
}

func TestPrice_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/price" {
			t.Errorf("expected path /v1/price, got %s", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("spot") != "100" || q.Get("maturity") != "1" || q.Get("kind") != "call" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		if q.Has("expiry") {
			t.Error("expected no expiry param")
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(PriceResult{Price: 9.41, Intrinsic: 0, TimeValue: 9.41})
	}))
	defer server.Close()

	logger, _ := zap.NewDevelopment()
	client := NewClient(server.URL, 10, 30*time.Second, time.Second, 3, logger)

	res, err := client.Price(context.Background(), testOption())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Price != 9.41 {
		t.Errorf("expected price 9.41, got %v", res.Price)
	}
}

func TestGreeks_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(pricing.Greeks{Delta: 0.6, Gamma: 0.02, Theta: -0.02, Vega: 0.38})
	}))
	defer server.Close()

	logger, _ := zap.NewDevelopment()
	client := NewClient(server.URL+"/", 10, 30*time.Second, time.Second, 0, logger)

	g, err := client.Greeks(context.Background(), testOption())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if g.Delta != 0.6 || g.Vega != 0.38 {
		t.Errorf("unexpected greeks: %+v", g)
	}
}

func TestSensitivity_Query(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("greek") != "theta" {
			t.Errorf("expected greek theta, got %s", q.Get("greek"))
		}
		if q.Get("points") != "25" {
			t.Errorf("expected points 25, got %s", q.Get("points"))
		}
		json.NewEncoder(w).Encode(dashboard.SensitivityView{Greek: "theta", Parameter: "maturity"})
	}))
	defer server.Close()

	logger, _ := zap.NewDevelopment()
	client := NewClient(server.URL, 10, 30*time.Second, time.Second, 0, logger)

	view, err := client.Sensitivity(context.Background(), request.SensitivityRequest{
		OptionRequest: testOption(),
		Greek:         "theta",
		Points:        25,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if view.Parameter != "maturity" {
		t.Errorf("expected parameter maturity, got %s", view.Parameter)
	}
}

func TestSurface_PostsJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		var req request.SurfaceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding body: %v", err)
		}
		if req.SpotRange == nil || req.SpotRange.Points != 5 {
			t.Errorf("expected spot_range with 5 points, got %+v", req.SpotRange)
		}
		json.NewEncoder(w).Encode(map[string]any{"spots": []float64{50, 100, 150}})
	}))
	defer server.Close()

	logger, _ := zap.NewDevelopment()
	client := NewClient(server.URL, 10, 30*time.Second, time.Second, 0, logger)

	view, err := client.Surface(context.Background(), request.SurfaceRequest{
		OptionRequest: testOption(),
		SpotRange:     &request.RangeRequest{Min: 50, Max: 150, Points: 5},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(view.Spots) != 3 {
		t.Errorf("expected 3 spots, got %d", len(view.Spots))
	}
}

func TestBadRequest_Details(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   "validation failed",
			"details": []request.FieldError{{Field: "spot", Message: "must be greater than 0"}},
		})
	}))
	defer server.Close()

	logger, _ := zap.NewDevelopment()
	client := NewClient(server.URL, 10, 30*time.Second, 10*time.Millisecond, 3, logger)

	_, err := client.Quote(context.Background(), testOption())
	if !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if len(apiErr.Details) != 1 || apiErr.Details[0].Field != "spot" {
		t.Errorf("unexpected details: %+v", apiErr.Details)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt for 400, got %d", attempts)
	}
}

func TestNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	logger, _ := zap.NewDevelopment()
	client := NewClient(server.URL, 10, 30*time.Second, time.Second, 0, logger)

	_, err := client.Price(context.Background(), testOption())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRateLimited_Retries(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	logger, _ := zap.NewDevelopment()
	client := NewClient(server.URL, 10, 30*time.Second, 10*time.Millisecond, 2, logger)

	_, err := client.Price(context.Background(), testOption())
	if !errors.Is(err, ErrRateLimited) {
		t.Errorf("expected ErrRateLimited, got %v", err)
	}

	// Should have retried
	if got := attempts.Load(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestServerError_RecoversOnRetry(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode(PriceResult{Price: 5})
	}))
	defer server.Close()

	logger, _ := zap.NewDevelopment()
	client := NewClient(server.URL, 10, 30*time.Second, 10*time.Millisecond, 2, logger)

	res, err := client.Price(context.Background(), testOption())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Price != 5 {
		t.Errorf("expected price 5, got %v", res.Price)
	}
	if got := attempts.Load(); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
}

func TestContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	logger, _ := zap.NewDevelopment()
	client := NewClient(server.URL, 10, 30*time.Second, 5*time.Second, 3, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Price(ctx, testOption())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context deadline exceeded, got %v", err)
	}
}
