// Package request holds the inbound request shapes shared by the HTTP API,
// the WebSocket stream and the batch runner, and enforces the input contract
// of the pricing core before any evaluation happens.
package request

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dgnsrekt/bsdash/internal/maturity"
	"github.com/dgnsrekt/bsdash/internal/pricing"
)

// Limits bounds the resolution of sampled axes.
type Limits struct {
	MinPoints int
	MaxPoints int
}

// DefaultLimits mirrors the configuration defaults.
var DefaultLimits = Limits{MinPoints: 2, MaxPoints: 200}

// OptionRequest describes the option at the current point. Maturity wins
// over Expiry when both are set.
type OptionRequest struct {
	Spot       float64  `json:"spot" validate:"finite,gt=0"`
	Strike     float64  `json:"strike" validate:"finite,gt=0"`
	Maturity   *float64 `json:"maturity,omitempty" validate:"required_without=Expiry,omitempty,finite,gte=0"`
	Expiry     string   `json:"expiry,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Basis      string   `json:"basis,omitempty" validate:"omitempty,oneof=calendar trading"`
	Volatility float64  `json:"volatility" validate:"finite,gte=0"`
	Rate       float64  `json:"rate" validate:"finite"`
	Kind       string   `json:"kind" validate:"required,optionkind"`
}

// RangeRequest is an evenly sampled closed interval. Zero Points means the
// configured default. Spot axes additionally need Min > 0.
type RangeRequest struct {
	Min    float64 `json:"min" validate:"finite,gte=0"`
	Max    float64 `json:"max" validate:"finite,gtfield=Min"`
	Points int     `json:"points,omitempty" validate:"gte=0"`
}

type SurfaceRequest struct {
	OptionRequest
	SpotRange *RangeRequest `json:"spot_range,omitempty"`
	VolRange  *RangeRequest `json:"vol_range,omitempty"`
}

type PayoffRequest struct {
	OptionRequest
	Premium *float64      `json:"premium,omitempty" validate:"omitempty,finite,gte=0"`
	Range   *RangeRequest `json:"range,omitempty"`
	Points  int           `json:"points,omitempty" validate:"gte=0"`
}

type SensitivityRequest struct {
	OptionRequest
	Greek     string        `json:"greek" validate:"required,oneof=delta gamma theta vega"`
	SpotRange *RangeRequest `json:"spot_range,omitempty"`
	VolRange  *RangeRequest `json:"vol_range,omitempty"`
	Points    int           `json:"points,omitempty" validate:"gte=0"`
}

// DashboardRequest asks for the full dashboard snapshot.
type DashboardRequest struct {
	OptionRequest
	SpotRange *RangeRequest `json:"spot_range,omitempty"`
	VolRange  *RangeRequest `json:"vol_range,omitempty"`
	Premium   *float64      `json:"premium,omitempty" validate:"omitempty,finite,gte=0"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("finite", func(fl validator.FieldLevel) bool {
		f := fl.Field().Float()
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	})
	_ = v.RegisterValidation("optionkind", func(fl validator.FieldLevel) bool {
		_, err := pricing.ParseKind(fl.Field().String())
		return err == nil
	})
	return v
}

func (r *OptionRequest) Validate() error {
	return check(r, nil)
}

func (r *SurfaceRequest) Validate(limits Limits) error {
	return check(r, func(errs *ValidationErrors) {
		checkSpotRange(errs, "spot_range", r.SpotRange)
		checkPoints(errs, "spot_range.points", pointsOf(r.SpotRange), limits)
		checkPoints(errs, "vol_range.points", pointsOf(r.VolRange), limits)
	})
}

func (r *PayoffRequest) Validate(limits Limits) error {
	return check(r, func(errs *ValidationErrors) {
		checkSpotRange(errs, "range", r.Range)
		checkPoints(errs, "points", r.Points, limits)
		checkPoints(errs, "range.points", pointsOf(r.Range), limits)
	})
}

func (r *SensitivityRequest) Validate(limits Limits) error {
	return check(r, func(errs *ValidationErrors) {
		checkSpotRange(errs, "spot_range", r.SpotRange)
		checkPoints(errs, "points", r.Points, limits)
		checkPoints(errs, "spot_range.points", pointsOf(r.SpotRange), limits)
		checkPoints(errs, "vol_range.points", pointsOf(r.VolRange), limits)
	})
}

func (r *DashboardRequest) Validate(limits Limits) error {
	return check(r, func(errs *ValidationErrors) {
		checkSpotRange(errs, "spot_range", r.SpotRange)
		checkPoints(errs, "spot_range.points", pointsOf(r.SpotRange), limits)
		checkPoints(errs, "vol_range.points", pointsOf(r.VolRange), limits)
	})
}

// Resolve turns the request into pricing parameters. When Maturity is
// absent the expiry date is converted with conv relative to now.
func (r *OptionRequest) Resolve(conv *maturity.Converter, now time.Time) (pricing.Params, error) {
	kind, err := pricing.ParseKind(r.Kind)
	if err != nil {
		return pricing.Params{}, err
	}

	var t float64
	switch {
	case r.Maturity != nil:
		t = *r.Maturity
	case r.Expiry != "":
		basis, err := maturity.ParseBasis(r.Basis)
		if err != nil {
			return pricing.Params{}, fieldError("basis", err)
		}
		expiry, err := conv.ParseExpiry(r.Expiry)
		if err != nil {
			return pricing.Params{}, fieldError("expiry", err)
		}
		if t, err = conv.YearFraction(now, expiry, basis); err != nil {
			return pricing.Params{}, fieldError("expiry", err)
		}
	default:
		return pricing.Params{}, errors.New("either maturity or expiry is required")
	}

	return pricing.Params{
		Spot:       r.Spot,
		Strike:     r.Strike,
		Maturity:   t,
		Volatility: r.Volatility,
		Rate:       r.Rate,
		Kind:       kind,
	}, nil
}

func check(req any, extra func(*ValidationErrors)) error {
	errs := &ValidationErrors{}
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validating request: %w", err)
		}
		for _, fe := range verrs {
			errs.Add(fieldPath(fe), "%s", describe(fe))
		}
	}
	if extra != nil {
		extra(errs)
	}
	return errs.orNil()
}

// fieldError reports a resolution failure the same way as a rejected field.
func fieldError(field string, err error) error {
	errs := &ValidationErrors{}
	errs.Add(field, "%v", err)
	return errs
}

// checkSpotRange rejects a spot axis starting at zero. Negative bounds are
// already rejected by the struct tags.
func checkSpotRange(errs *ValidationErrors, field string, r *RangeRequest) {
	if r != nil && r.Min == 0 {
		errs.Add(field+".min", "must be greater than 0")
	}
}

func checkPoints(errs *ValidationErrors, field string, n int, limits Limits) {
	if n == 0 {
		return
	}
	if n < limits.MinPoints || n > limits.MaxPoints {
		errs.Add(field, "must be between %d and %d (got %d)", limits.MinPoints, limits.MaxPoints, n)
	}
}

func pointsOf(r *RangeRequest) int {
	if r == nil {
		return 0
	}
	return r.Points
}

// fieldPath strips the root type and embedded struct names from the
// validator namespace, leaving the JSON path.
func fieldPath(fe validator.FieldError) string {
	parts := strings.Split(fe.Namespace(), ".")
	out := parts[:0]
	for _, p := range parts[1:] {
		if p == "OptionRequest" {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, ".")
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "gtfield":
		return fmt.Sprintf("must be greater than %s", strings.ToLower(fe.Param()))
	case "required":
		return "is required"
	case "required_without":
		return "is required when expiry is not set"
	case "datetime":
		return "must be a date in YYYY-MM-DD format"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "finite":
		return "must be a finite number"
	case "optionkind":
		return "must be 'call' or 'put'"
	default:
		return fmt.Sprintf("failed '%s' check", fe.Tag())
	}
}
