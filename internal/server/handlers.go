package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/oapi-codegen/runtime"
	"go.uber.org/zap"

	"github.com/dgnsrekt/bsdash/internal/dashboard"
	"github.com/dgnsrekt/bsdash/internal/maturity"
	"github.com/dgnsrekt/bsdash/internal/metrics"
	"github.com/dgnsrekt/bsdash/internal/pricing"
	"github.com/dgnsrekt/bsdash/internal/request"
)

type Server struct {
	settings *ReloadManager
	conv     *maturity.Converter
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

func NewServer(settings *ReloadManager, m *metrics.Metrics, logger *zap.Logger) *Server {
	return &Server{
		settings: settings,
		conv:     maturity.NewConverter(),
		metrics:  m,
		logger:   logger,
		now:      time.Now,
	}
}

type priceResponse struct {
	Price     float64 `json:"price"`
	Intrinsic float64 `json:"intrinsic"`
	TimeValue float64 `json:"time_value"`
}

type healthResponse struct {
	Status           string    `json:"status"`
	SettingsLoadedAt time.Time `json:"settings_loaded_at"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:           "ok",
		SettingsLoadedAt: s.settings.LoadedAt(),
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	result, err := s.settings.Reload(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrReloadInProgress) {
			status = http.StatusConflict
		}
		s.logger.Warn("settings reload failed", zap.Error(err))
		writeJSON(w, status, errorResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	p, ok := s.optionFromQuery(w, r)
	if !ok {
		return
	}
	price := pricing.Price(p)
	intrinsic := pricing.Intrinsic(p.Spot, p.Strike, p.Kind)
	writeJSON(w, http.StatusOK, priceResponse{
		Price:     price,
		Intrinsic: intrinsic,
		TimeValue: price - intrinsic,
	})
}

func (s *Server) handleGreeks(w http.ResponseWriter, r *http.Request) {
	p, ok := s.optionFromQuery(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, pricing.ComputeGreeks(p))
}

func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	p, ok := s.optionFromQuery(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, dashboard.NewQuote(p))
}

func (s *Server) handlePayoff(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var req request.PayoffRequest
	if err := bindOption(q, &req.OptionRequest); err != nil {
		s.badRequest(w, err)
		return
	}
	var points *int
	if err := bindParams(q, optional("premium", &req.Premium), optional("points", &points)); err != nil {
		s.badRequest(w, err)
		return
	}
	req.Points = deref(points)

	settings := s.settings.Settings()
	if err := req.Validate(settings.Limits); err != nil {
		s.badRequest(w, err)
		return
	}
	p, err := req.Resolve(s.conv, s.now())
	if err != nil {
		s.badRequest(w, err)
		return
	}

	opts := settings.Options
	if req.Points > 0 {
		opts.PayoffPoints = req.Points
	}
	writeJSON(w, http.StatusOK, opts.Payoff(p, req.Premium, req.Range))
}

func (s *Server) handleSensitivity(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var req request.SensitivityRequest
	if err := bindOption(q, &req.OptionRequest); err != nil {
		s.badRequest(w, err)
		return
	}
	var points *int
	if err := bindParams(q, required("greek", &req.Greek), optional("points", &points)); err != nil {
		s.badRequest(w, err)
		return
	}
	req.Points = deref(points)

	settings := s.settings.Settings()
	if err := req.Validate(settings.Limits); err != nil {
		s.badRequest(w, err)
		return
	}
	p, err := req.Resolve(s.conv, s.now())
	if err != nil {
		s.badRequest(w, err)
		return
	}

	view, err := settings.Options.Sensitivity(p, pricing.Metric(req.Greek), req.SpotRange, req.VolRange, req.Points)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleSurface(w http.ResponseWriter, r *http.Request) {
	var req request.SurfaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, fmt.Errorf("decoding request body: %w", err))
		return
	}

	settings := s.settings.Settings()
	if err := req.Validate(settings.Limits); err != nil {
		s.badRequest(w, err)
		return
	}
	p, err := req.Resolve(s.conv, s.now())
	if err != nil {
		s.badRequest(w, err)
		return
	}

	view := settings.Options.Surface(p, req.SpotRange, req.VolRange)
	if s.metrics != nil {
		s.metrics.SurfaceCells.Add(float64(view.Cells()))
	}
	s.logger.Debug("surface generated",
		zap.Int("spots", len(view.Spots)),
		zap.Int("vols", len(view.Volatilities)),
	)
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	var req request.DashboardRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, fmt.Errorf("decoding request body: %w", err))
		return
	}

	start := time.Now()
	snap, err := s.Compute(&req)
	if err != nil {
		s.badRequest(w, err)
		return
	}
	s.metrics.ObserveSnapshot(start, snap.Surface.Cells())

	writeJSON(w, http.StatusOK, snap)
}

// Compute validates req and builds the full dashboard snapshot with the
// current settings. Every error it returns is caused by the input.
func (s *Server) Compute(req *request.DashboardRequest) (dashboard.Snapshot, error) {
	settings := s.settings.Settings()
	if err := req.Validate(settings.Limits); err != nil {
		return dashboard.Snapshot{}, err
	}
	p, err := req.Resolve(s.conv, s.now())
	if err != nil {
		return dashboard.Snapshot{}, err
	}
	return settings.Options.Build(p, req)
}

// optionFromQuery binds, validates and resolves the option parameters shared
// by the GET endpoints. It writes the error response itself and reports
// whether the caller should continue.
func (s *Server) optionFromQuery(w http.ResponseWriter, r *http.Request) (pricing.Params, bool) {
	var req request.OptionRequest
	if err := bindOption(r.URL.Query(), &req); err != nil {
		s.badRequest(w, err)
		return pricing.Params{}, false
	}
	if err := req.Validate(); err != nil {
		s.badRequest(w, err)
		return pricing.Params{}, false
	}
	p, err := req.Resolve(s.conv, s.now())
	if err != nil {
		s.badRequest(w, err)
		return pricing.Params{}, false
	}
	return p, true
}

func (s *Server) badRequest(w http.ResponseWriter, err error) {
	var verrs *request.ValidationErrors
	if errors.As(err, &verrs) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "validation failed", Details: verrs.Fields})
		return
	}
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
}

type queryParam struct {
	name     string
	required bool
	dest     any
}

func required(name string, dest any) queryParam { return queryParam{name: name, required: true, dest: dest} }
func optional(name string, dest any) queryParam { return queryParam{name: name, dest: dest} }

func bindParams(q url.Values, params ...queryParam) error {
	for _, p := range params {
		if err := runtime.BindQueryParameter("form", true, p.required, p.name, q, p.dest); err != nil {
			return fmt.Errorf("invalid format for parameter %s: %w", p.name, err)
		}
	}
	return nil
}

// bindOption binds the option query parameters. Optional parameters bind
// through pointers, as the runtime binder requires.
func bindOption(q url.Values, req *request.OptionRequest) error {
	var (
		expiry, basis *string
		rate          *float64
	)
	err := bindParams(q,
		required("spot", &req.Spot),
		required("strike", &req.Strike),
		optional("maturity", &req.Maturity),
		optional("expiry", &expiry),
		optional("basis", &basis),
		required("volatility", &req.Volatility),
		optional("rate", &rate),
		required("kind", &req.Kind),
	)
	if err != nil {
		return err
	}
	req.Expiry = deref(expiry)
	req.Basis = deref(basis)
	req.Rate = deref(rate)
	return nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
