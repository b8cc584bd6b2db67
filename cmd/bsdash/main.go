package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgnsrekt/bsdash/internal/client"
	"github.com/dgnsrekt/bsdash/internal/config"
	"github.com/dgnsrekt/bsdash/internal/logging"
)

var (
	cfgFile   string
	verbose   bool
	serverURL string
	logger    *zap.Logger
	cfg       *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "bsdash",
		Short:         "Black-Scholes option pricing, Greeks and dashboard views",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip config loading for help commands
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				var err error
				logger, err = logging.New("bsdash", verbose, nil)
				return err
			}

			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return err
			}

			logger, err = logging.New("bsdash", verbose, &cfg.Logging)
			return err
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", os.Getenv("BSDASH_CONFIG"), "config file path (or set BSDASH_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "evaluate on a running bsdash server instead of locally (defaults to client.base_url)")

	rootCmd.AddCommand(priceCmd())
	rootCmd.AddCommand(greeksCmd())
	rootCmd.AddCommand(quoteCmd())
	rootCmd.AddCommand(payoffCmd())
	rootCmd.AddCommand(surfaceCmd())
	rootCmd.AddCommand(sensitivityCmd())
	rootCmd.AddCommand(dashboardCmd())
	rootCmd.AddCommand(batchCmd())

	// Setup signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// backend picks the remote client when a server is configured and the
// in-process engine otherwise.
func backend() client.Client {
	base := serverURL
	if base == "" {
		base = cfg.Client.BaseURL
	}
	if base == "" {
		return newLocal(cfg, time.Now)
	}

	logger.Debug("using remote server", zap.String("url", base))
	return client.NewClient(
		base,
		cfg.Client.RatePerSec,
		cfg.Client.Timeout,
		cfg.Client.RetryDelay,
		cfg.Client.RetryCount,
		logger,
	)
}
