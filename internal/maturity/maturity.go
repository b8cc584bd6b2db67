// Package maturity converts an expiration date into the year fraction used
// by the pricing core.
package maturity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/scmhub/calendar"
)

// Basis is the day-count convention for time to maturity.
type Basis string

const (
	// BasisCalendar counts calendar days over 365.
	BasisCalendar Basis = "calendar"
	// BasisTrading counts NYSE business days over 252.
	BasisTrading Basis = "trading"
)

const (
	DaysPerYear        = 365.0
	TradingDaysPerYear = 252.0

	dateLayout = "2006-01-02"
	// Expiries are taken at the 16:00 New York close.
	closeHour = 16
)

// ErrOutsideCalendar is returned when a trading-basis date falls outside the
// years covered by the exchange calendar.
var ErrOutsideCalendar = errors.New("date outside the trading calendar")

// ParseBasis parses a basis name; empty means calendar.
func ParseBasis(s string) (Basis, error) {
	switch Basis(strings.ToLower(strings.TrimSpace(s))) {
	case "", BasisCalendar:
		return BasisCalendar, nil
	case BasisTrading:
		return BasisTrading, nil
	default:
		return "", fmt.Errorf("invalid maturity basis %q (must be 'calendar' or 'trading')", s)
	}
}

// Converter turns dates into year fractions. It is safe for concurrent use.
type Converter struct {
	location *time.Location
	nyse     *calendar.Calendar
}

// NewConverter creates a Converter using the NYSE calendar in New York time.
func NewConverter() *Converter {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	return &Converter{
		location: loc,
		nyse:     calendar.XNYS(),
	}
}

// ParseExpiry parses a YYYY-MM-DD expiration date at the market close.
func (c *Converter) ParseExpiry(date string) (time.Time, error) {
	d, err := time.ParseInLocation(dateLayout, date, c.location)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid expiry date format (use YYYY-MM-DD): %w", err)
	}
	y, m, day := d.Date()
	return time.Date(y, m, day, closeHour, 0, 0, 0, c.location), nil
}

// YearFraction returns the time from `from` to `to` in years under basis.
// Dates in the past yield zero, which the pricing core treats as expired.
// The trading basis fails with ErrOutsideCalendar beyond the calendar years.
func (c *Converter) YearFraction(from, to time.Time, basis Basis) (float64, error) {
	if !to.After(from) {
		return 0, nil
	}

	if basis == BasisTrading {
		days, err := c.BusinessDays(from, to)
		if err != nil {
			return 0, err
		}
		return float64(days) / TradingDaysPerYear, nil
	}
	return to.Sub(from).Hours() / 24 / DaysPerYear, nil
}

// CalendarYears returns the first and last year the trading basis covers.
func (c *Converter) CalendarYears() (start, end int) {
	return c.nyse.Years()
}

// BusinessDays counts NYSE trading days in the half-open date range (from, to].
func (c *Converter) BusinessDays(from, to time.Time) (int, error) {
	start := noon(from.In(c.location))
	end := noon(to.In(c.location))

	first, last := c.nyse.Years()
	for _, t := range []time.Time{start, end} {
		if t.Year() < first || t.Year() > last {
			return 0, fmt.Errorf("%w: %s is not within %d-%d", ErrOutsideCalendar, t.Format(dateLayout), first, last)
		}
	}

	count := 0
	for d := start.AddDate(0, 0, 1); !d.After(end); d = d.AddDate(0, 0, 1) {
		if c.nyse.IsBusinessDay(d) {
			count++
		}
	}
	return count, nil
}

// noon normalises t to midday so date arithmetic is immune to DST shifts.
func noon(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 12, 0, 0, 0, t.Location())
}
