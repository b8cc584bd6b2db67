package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgnsrekt/bsdash/internal/batch"
)

func batchCmd() *cobra.Command {
	var (
		out     string
		workers int
	)

	cmd := &cobra.Command{
		Use:   "batch [FILE]",
		Short: "Price many scenarios from a JSON Lines file",
		Long: `Evaluate one option per input line and write price and Greeks as
JSON Lines. Reads stdin when FILE is omitted or "-".

Each line holds the option fields plus an optional "id":
  {"id":"atm","spot":100,"strike":100,"maturity":1,"volatility":0.2,"rate":0.03,"kind":"call"}

Examples:
  bsdash batch scenarios.jsonl -o results.jsonl
  cat scenarios.jsonl | bsdash batch -o results.jsonl --workers 8`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = os.Stdin
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("opening scenarios: %w", err)
				}
				defer f.Close()
				in = f
			}

			n := cfg.Batch.Workers
			if workers > 0 {
				n = workers
			}

			mgr := batch.NewManager(n, nil, logger)
			result, err := mgr.Run(cmd.Context(), in, out)
			if err != nil {
				return err
			}

			fmt.Printf("\nBatch complete: %d total, %d success, %d failed\n",
				result.Total, result.Success, result.Failed)
			for _, e := range result.Errors {
				logger.Warn("scenario failed", zap.String("error", e))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "results.jsonl", "output file")
	cmd.Flags().IntVar(&workers, "workers", 0, "number of parallel workers (default from config)")
	return cmd
}
