package main

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgnsrekt/bsdash/internal/export"
	"github.com/dgnsrekt/bsdash/internal/request"
)

// optionFlags are the option inputs shared by every pricing command. Flags
// left unset fall back to the defaults section of the config.
type optionFlags struct {
	spot       float64
	strike     float64
	maturity   float64
	expiry     string
	basis      string
	volatility float64
	rate       float64
	kind       string
}

func (o *optionFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64Var(&o.spot, "spot", 0, "current underlying price (default from config)")
	f.Float64Var(&o.strike, "strike", 0, "strike price (default from config)")
	f.Float64Var(&o.maturity, "maturity", 0, "time to maturity in years (default from config)")
	f.StringVar(&o.expiry, "expiry", "", "expiry date YYYY-MM-DD, used instead of --maturity")
	f.StringVar(&o.basis, "basis", "calendar", "year fraction basis for --expiry: calendar or trading")
	f.Float64Var(&o.volatility, "volatility", 0, "annualized volatility, 0.2 = 20% (default from config)")
	f.Float64Var(&o.rate, "rate", 0, "risk-free rate, 0.03 = 3% (default from config)")
	f.StringVar(&o.kind, "kind", "", "option kind: call or put (default from config)")
}

// request merges the flags with the configured defaults.
func (o *optionFlags) request(cmd *cobra.Command) request.OptionRequest {
	f := cmd.Flags()
	d := cfg.Defaults

	pick := func(name string, v, def float64) float64 {
		if f.Changed(name) {
			return v
		}
		return def
	}

	req := request.OptionRequest{
		Spot:       pick("spot", o.spot, d.Spot),
		Strike:     pick("strike", o.strike, d.Strike),
		Volatility: pick("volatility", o.volatility, d.Volatility),
		Rate:       pick("rate", o.rate, d.Rate),
		Kind:       strings.ToLower(d.Kind),
	}
	if f.Changed("kind") {
		req.Kind = o.kind
	}

	switch {
	case f.Changed("maturity"):
		m := o.maturity
		req.Maturity = &m
	case o.expiry != "":
		req.Expiry = o.expiry
		req.Basis = o.basis
	default:
		m := d.Maturity
		req.Maturity = &m
	}
	return req
}

// exportFlags write a view to a file instead of the terminal.
type exportFlags struct {
	out    string
	format string
}

func (e *exportFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&e.out, "out", "o", "", "write the result to this file")
	cmd.Flags().StringVar(&e.format, "format", "csv", "export format: csv or jsonl")
}

// write exports with csvFn or as a single JSON line. It reports whether an
// export happened.
func (e *exportFlags) write(v any, csvFn func(io.Writer) error) (bool, error) {
	if e.out == "" {
		return false, nil
	}
	format, err := export.ParseFormat(e.format)
	if err != nil {
		return true, err
	}

	write := csvFn
	if format == export.FormatJSONL {
		write = func(w io.Writer) error { return export.JSONL(w, []any{v}) }
	}

	size, err := export.WriteFile(e.out, write)
	if err != nil {
		return true, err
	}
	logger.Info("exported", zap.String("path", e.out), zap.String("format", string(format)), zap.Int64("bytes", size))
	fmt.Printf("Wrote %s (%d bytes)\n", e.out, size)
	return true, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// num formats a float for tables with a fixed number of decimals.
func num(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

// money formats a price with two decimals and a dollar sign.
func money(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return num(v, 2)
	}
	d := decimal.NewFromFloat(v).Round(2)
	if d.IsNegative() {
		return "-$" + d.Abs().StringFixed(2)
	}
	return "$" + d.StringFixed(2)
}
