package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/bsdash/internal/dashboard"
	"github.com/dgnsrekt/bsdash/internal/export"
	"github.com/dgnsrekt/bsdash/internal/payoff"
	"github.com/dgnsrekt/bsdash/internal/request"
)

// rangeFlags binds --<name>-min, --<name>-max and --<name>-points.
type rangeFlags struct {
	name   string
	min    float64
	max    float64
	points int
}

func (r *rangeFlags) register(cmd *cobra.Command, what string) {
	cmd.Flags().Float64Var(&r.min, r.name+"-min", 0, "lower bound of the "+what+" axis")
	cmd.Flags().Float64Var(&r.max, r.name+"-max", 0, "upper bound of the "+what+" axis")
	cmd.Flags().IntVar(&r.points, r.name+"-points", 0, "number of "+what+" samples")
}

// value returns nil unless one of the range flags was set. Bounds that were
// not given come from defaults.
func (r *rangeFlags) value(cmd *cobra.Command, defaults func() (lo, hi float64)) *request.RangeRequest {
	f := cmd.Flags()
	minSet, maxSet := f.Changed(r.name+"-min"), f.Changed(r.name+"-max")
	if !minSet && !maxSet && !f.Changed(r.name+"-points") {
		return nil
	}

	rng := &request.RangeRequest{Min: r.min, Max: r.max, Points: r.points}
	if !minSet || !maxSet {
		lo, hi := defaults()
		if !minSet {
			rng.Min = lo
		}
		if !maxSet {
			rng.Max = hi
		}
	}
	return rng
}

func spotDefaults(spot float64) func() (float64, float64) {
	return func() (float64, float64) {
		return bounds(dashboard.OptionsFromConfig(cfg).SpotAxis(spot, nil))
	}
}

func volDefaults() (float64, float64) {
	return bounds(dashboard.OptionsFromConfig(cfg).VolAxis(nil))
}

func payoffDefaults(strike float64) func() (float64, float64) {
	return func() (float64, float64) {
		p := cfg.Payoff
		return payoff.SpotRange(strike, p.LowFactor, p.HighFactor, p.Floor)
	}
}

func bounds(axis []float64) (float64, float64) {
	if len(axis) == 0 {
		return 0, 0
	}
	return axis[0], axis[len(axis)-1]
}

func payoffCmd() *cobra.Command {
	var (
		opt     optionFlags
		exp     exportFlags
		premium float64
		points  int
		spots   = rangeFlags{name: "spot"}
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "payoff",
		Short: "Long and short payoff at expiry",
		Long: `Compute the expiry payoff diagram for the long and short position.

The premium defaults to the model price of the option.

Examples:
  bsdash payoff --strike 100 --premium 5
  bsdash payoff --spot-min 50 --spot-max 150 --points 101 -o payoff.csv`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			option := opt.request(cmd)
			req := request.PayoffRequest{
				OptionRequest: option,
				Range:         spots.value(cmd, payoffDefaults(option.Strike)),
				Points:        points,
			}
			if cmd.Flags().Changed("premium") {
				req.Premium = &premium
			}

			view, err := backend().Payoff(cmd.Context(), req)
			if err != nil {
				return err
			}

			done, err := exp.write(view, func(w io.Writer) error { return export.PayoffCSV(w, view.Points) })
			if done || err != nil {
				return err
			}
			if jsonOut {
				return printJSON(view)
			}

			s := view.Summary
			maxProfit := "unlimited"
			if s.MaxProfit != nil {
				maxProfit = money(*s.MaxProfit)
			}
			fmt.Printf("Premium:     %s\n", money(s.Premium))
			fmt.Printf("Breakeven:   %s\n", money(s.Breakeven))
			fmt.Printf("Max profit:  %s (sampled %s)\n", maxProfit, money(s.SampledMaxProfit))
			fmt.Printf("Max loss:    %s (sampled %s)\n", money(s.MaxLoss), money(s.SampledMaxLoss))
			fmt.Println()

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintln(w, "SPOT\tLONG\tSHORT\tINTRINSIC\t")
			for _, p := range sample(len(view.Points), 11) {
				pt := view.Points[p]
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n", num(pt.Spot, 2), num(pt.Long, 2), num(pt.Short, 2), num(pt.Intrinsic, 2))
			}
			return w.Flush()
		},
	}

	opt.register(cmd)
	exp.register(cmd)
	spots.register(cmd, "spot")
	cmd.Flags().Float64Var(&premium, "premium", 0, "premium paid (default: model price)")
	cmd.Flags().IntVar(&points, "points", 0, "number of payoff samples")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON instead of a table")
	return cmd
}

func surfaceCmd() *cobra.Command {
	var (
		opt     optionFlags
		exp     exportFlags
		spots   = rangeFlags{name: "spot"}
		vols    = rangeFlags{name: "vol"}
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "surface",
		Short: "Option price over a spot x volatility grid",
		Long: `Compute the price surface over spot and volatility.

Examples:
  bsdash surface --spot-points 40 --vol-points 40 -o surface.csv
  bsdash surface --vol-min 0.1 --vol-max 0.5 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			option := opt.request(cmd)
			req := request.SurfaceRequest{
				OptionRequest: option,
				SpotRange:     spots.value(cmd, spotDefaults(option.Spot)),
				VolRange:      vols.value(cmd, volDefaults),
			}

			view, err := backend().Surface(cmd.Context(), req)
			if err != nil {
				return err
			}

			done, err := exp.write(view, func(w io.Writer) error { return export.SurfaceCSV(w, view.Grid) })
			if done || err != nil {
				return err
			}
			if jsonOut {
				return printJSON(view)
			}

			fmt.Printf("%d spots x %d volatilities, current %s at S=%s sigma=%s\n\n",
				len(view.Spots), len(view.Volatilities),
				money(view.Current.Price), num(view.Current.Spot, 2), num(view.Current.Volatility, 4))

			cols := sample(len(view.Spots), 8)
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprint(w, "VOL \\ SPOT\t")
			for _, j := range cols {
				fmt.Fprintf(w, "%s\t", num(view.Spots[j], 2))
			}
			fmt.Fprintln(w)
			for _, i := range sample(len(view.Volatilities), 8) {
				fmt.Fprintf(w, "%s\t", num(view.Volatilities[i], 4))
				for _, j := range cols {
					fmt.Fprintf(w, "%s\t", num(view.Prices[i][j], 2))
				}
				fmt.Fprintln(w)
			}
			return w.Flush()
		},
	}

	opt.register(cmd)
	exp.register(cmd)
	spots.register(cmd, "spot")
	vols.register(cmd, "volatility")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON instead of a table")
	return cmd
}

func sensitivityCmd() *cobra.Command {
	var (
		opt     optionFlags
		exp     exportFlags
		points  int
		spots   = rangeFlags{name: "spot"}
		vols    = rangeFlags{name: "vol"}
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "sensitivity delta|gamma|theta|vega",
		Short: "Plot one Greek against its driving parameter",
		Long: `Sweep one Greek over the parameter it is most sensitive to:
delta and gamma over spot, theta over maturity, vega over volatility.

Examples:
  bsdash sensitivity delta
  bsdash sensitivity theta --points 50 -o theta.csv`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"delta", "gamma", "theta", "vega"},
		RunE: func(cmd *cobra.Command, args []string) error {
			option := opt.request(cmd)
			req := request.SensitivityRequest{
				OptionRequest: option,
				Greek:         args[0],
				SpotRange:     spots.value(cmd, spotDefaults(option.Spot)),
				VolRange:      vols.value(cmd, volDefaults),
				Points:        points,
			}

			view, err := backend().Sensitivity(cmd.Context(), req)
			if err != nil {
				return err
			}

			done, err := exp.write(view, func(w io.Writer) error { return export.SensitivityCSV(w, *view) })
			if done || err != nil {
				return err
			}
			if jsonOut {
				return printJSON(view)
			}

			fmt.Printf("%s vs %s, current %s\n\n", view.Greek, view.Parameter, num(view.Current, 4))
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight)
			fmt.Fprintf(w, "%s\t%s\t\n", view.Parameter, view.Greek)
			for _, i := range sample(len(view.X), 11) {
				fmt.Fprintf(w, "%s\t%s\t\n", num(view.X[i], 4), num(view.Y[i], 4))
			}
			return w.Flush()
		},
	}

	opt.register(cmd)
	exp.register(cmd)
	spots.register(cmd, "spot")
	vols.register(cmd, "volatility")
	cmd.Flags().IntVar(&points, "points", 0, "number of samples")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON instead of a table")
	return cmd
}

func dashboardCmd() *cobra.Command {
	var (
		opt     optionFlags
		premium float64
		spots   = rangeFlags{name: "spot"}
		vols    = rangeFlags{name: "vol"}
	)

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Print the full dashboard snapshot as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			option := opt.request(cmd)
			req := request.DashboardRequest{
				OptionRequest: option,
				SpotRange:     spots.value(cmd, spotDefaults(option.Spot)),
				VolRange:      vols.value(cmd, volDefaults),
			}
			if cmd.Flags().Changed("premium") {
				req.Premium = &premium
			}

			snap, err := backend().Dashboard(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(snap)
		},
	}

	opt.register(cmd)
	spots.register(cmd, "spot")
	vols.register(cmd, "volatility")
	cmd.Flags().Float64Var(&premium, "premium", 0, "premium paid (default: model price)")
	return cmd
}

// sample picks at most k evenly spaced indexes out of n, always including
// the first and last.
func sample(n, k int) []int {
	if n <= k {
		idx := make([]int, n)
		for i := range idx {
			idx[i] = i
		}
		return idx
	}
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i * (n - 1) / (k - 1)
	}
	return idx
}
