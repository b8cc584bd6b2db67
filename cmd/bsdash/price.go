package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/bsdash/internal/pricing"
)

func priceCmd() *cobra.Command {
	var (
		opt     optionFlags
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "price",
		Short: "Price a European option",
		Long: `Price a European call or put with the Black-Scholes model.

Examples:
  # At-the-money call, one year out
  bsdash price --spot 100 --strike 100 --maturity 1 --volatility 0.2 --rate 0.03

  # Put expiring on a date, trading-day basis
  bsdash price --kind put --expiry 2026-12-18 --basis trading`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := backend().Price(cmd.Context(), opt.request(cmd))
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(res)
			}
			fmt.Printf("Price:      %s\n", money(res.Price))
			fmt.Printf("Intrinsic:  %s\n", money(res.Intrinsic))
			fmt.Printf("Time value: %s\n", money(res.TimeValue))
			return nil
		},
	}

	opt.register(cmd)
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON instead of a table")
	return cmd
}

func greeksCmd() *cobra.Command {
	var (
		opt     optionFlags
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "greeks",
		Short: "Compute Delta, Gamma, Theta and Vega",
		Long: `Compute the option Greeks. Theta is per calendar day and Vega per
one percentage point of volatility.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := backend().Greeks(cmd.Context(), opt.request(cmd))
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(g)
			}
			printGreeks(*g)
			return nil
		},
	}

	opt.register(cmd)
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON instead of a table")
	return cmd
}

func quoteCmd() *cobra.Command {
	var (
		opt     optionFlags
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Show the current option metrics panel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := backend().Quote(cmd.Context(), opt.request(cmd))
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(q)
			}

			fmt.Printf("%s  S=%s  K=%s  T=%s  sigma=%s  r=%s\n",
				q.Params.Kind.Title(),
				num(q.Params.Spot, 2), num(q.Params.Strike, 2),
				num(q.Params.Maturity, 4), num(q.Params.Volatility, 4), num(q.Params.Rate, 4))
			fmt.Printf("Price:      %s\n", money(q.Price))
			fmt.Printf("Intrinsic:  %s\n", money(q.Intrinsic))
			fmt.Printf("Time value: %s\n", money(q.TimeValue))
			if q.D1 != nil && q.D2 != nil {
				fmt.Printf("d1 / d2:    %s / %s\n", num(*q.D1, 4), num(*q.D2, 4))
			}
			fmt.Println()
			printGreeks(q.Greeks)
			return nil
		},
	}

	opt.register(cmd)
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print JSON instead of a table")
	return cmd
}

func printGreeks(g pricing.Greeks) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "GREEK\tVALUE\tUNIT")
	fmt.Fprintf(w, "Delta\t%s\tper $1 spot\n", num(g.Delta, 4))
	fmt.Fprintf(w, "Gamma\t%s\tper $1 spot\n", num(g.Gamma, 4))
	fmt.Fprintf(w, "Theta\t%s\tper day\n", num(g.Theta, 4))
	fmt.Fprintf(w, "Vega\t%s\tper vol point\n", num(g.Vega, 4))
	w.Flush()
}
