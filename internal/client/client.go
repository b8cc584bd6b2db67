// Package client talks to a running bsdash HTTP service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/bsdash/internal/dashboard"
	"github.com/dgnsrekt/bsdash/internal/pricing"
	"github.com/dgnsrekt/bsdash/internal/request"
)

// Client interface for testability
type Client interface {
	Price(ctx context.Context, opt request.OptionRequest) (*PriceResult, error)
	Greeks(ctx context.Context, opt request.OptionRequest) (*pricing.Greeks, error)
	Quote(ctx context.Context, opt request.OptionRequest) (*dashboard.Quote, error)
	Payoff(ctx context.Context, req request.PayoffRequest) (*dashboard.PayoffView, error)
	Sensitivity(ctx context.Context, req request.SensitivityRequest) (*dashboard.SensitivityView, error)
	Surface(ctx context.Context, req request.SurfaceRequest) (*dashboard.SurfaceView, error)
	Dashboard(ctx context.Context, req request.DashboardRequest) (*dashboard.Snapshot, error)
}

type PriceResult struct {
	Price     float64 `json:"price"`
	Intrinsic float64 `json:"intrinsic"`
	TimeValue float64 `json:"time_value"`
}

type HTTPClient struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	retryCount int
	retryDelay time.Duration
	logger     *zap.Logger
}

var _ Client = (*HTTPClient)(nil)

func NewClient(baseURL string, ratePerSec int, timeout, retryDelay time.Duration, retryCount int, logger *zap.Logger) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:       100,
		MaxConnsPerHost:    10,
		IdleConnTimeout:    90 * time.Second,
		DisableCompression: false,
	}

	return &HTTPClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		baseURL:    strings.TrimRight(baseURL, "/"),
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec*2),
		retryCount: retryCount,
		retryDelay: retryDelay,
		logger:     logger,
	}
}

func (c *HTTPClient) Price(ctx context.Context, opt request.OptionRequest) (*PriceResult, error) {
	var out PriceResult
	if err := c.do(ctx, http.MethodGet, "/v1/price", optionQuery(opt), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Greeks(ctx context.Context, opt request.OptionRequest) (*pricing.Greeks, error) {
	var out pricing.Greeks
	if err := c.do(ctx, http.MethodGet, "/v1/greeks", optionQuery(opt), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Quote(ctx context.Context, opt request.OptionRequest) (*dashboard.Quote, error) {
	var out dashboard.Quote
	if err := c.do(ctx, http.MethodGet, "/v1/quote", optionQuery(opt), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Payoff(ctx context.Context, req request.PayoffRequest) (*dashboard.PayoffView, error) {
	q := optionQuery(req.OptionRequest)
	if req.Premium != nil {
		q.Set("premium", ftoa(*req.Premium))
	}
	if req.Points > 0 {
		q.Set("points", strconv.Itoa(req.Points))
	}
	var out dashboard.PayoffView
	if err := c.do(ctx, http.MethodGet, "/v1/payoff", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Sensitivity(ctx context.Context, req request.SensitivityRequest) (*dashboard.SensitivityView, error) {
	q := optionQuery(req.OptionRequest)
	q.Set("greek", req.Greek)
	if req.Points > 0 {
		q.Set("points", strconv.Itoa(req.Points))
	}
	var out dashboard.SensitivityView
	if err := c.do(ctx, http.MethodGet, "/v1/sensitivity", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Surface(ctx context.Context, req request.SurfaceRequest) (*dashboard.SurfaceView, error) {
	var out dashboard.SurfaceView
	if err := c.do(ctx, http.MethodPost, "/v1/surface", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Dashboard(ctx context.Context, req request.DashboardRequest) (*dashboard.Snapshot, error) {
	var out dashboard.Snapshot
	if err := c.do(ctx, http.MethodPost, "/v1/dashboard", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do sends one API call, retrying transport errors, 429 and 5xx responses
// with exponential backoff.
func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	// Wait for rate limiter
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
	}

	c.logger.Debug("requesting", zap.String("method", method), zap.String("url", target))

	var lastErr error
	for attempt := 0; attempt <= c.retryCount; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1)) // Exponential backoff
			c.logger.Debug("retrying request", zap.Int("attempt", attempt), zap.Duration("delay", delay))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		// Read body before closing for error messages
		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()

		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastErr = apiError(resp.StatusCode, respBody)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return apiError(resp.StatusCode, respBody)
		}

		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

func apiError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status}
	var payload struct {
		Error   string               `json:"error"`
		Details []request.FieldError `json:"details"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		e.Message = payload.Error
		e.Details = payload.Details
	} else {
		e.Message = strings.TrimSpace(string(body))
	}
	return e
}

func optionQuery(opt request.OptionRequest) url.Values {
	q := url.Values{}
	q.Set("spot", ftoa(opt.Spot))
	q.Set("strike", ftoa(opt.Strike))
	if opt.Maturity != nil {
		q.Set("maturity", ftoa(*opt.Maturity))
	}
	if opt.Expiry != "" {
		q.Set("expiry", opt.Expiry)
	}
	if opt.Basis != "" {
		q.Set("basis", opt.Basis)
	}
	q.Set("volatility", ftoa(opt.Volatility))
	q.Set("rate", ftoa(opt.Rate))
	q.Set("kind", opt.Kind)
	return q
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
