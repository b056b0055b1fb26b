package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgnsrekt/tastygex/internal/app"
	"github.com/dgnsrekt/tastygex/internal/config"
)

var (
	cfgFile string
	verbose bool
	logger  *zap.Logger
	cfg     *config.Config
)

// Commands that work without a configuration file or credentials.
var standalone = map[string]bool{"help": true, "completion": true, "parse": true, "inspect": true}

func main() {
	rootCmd := &cobra.Command{
		Use:           "gexcache",
		Short:         "Stream option snapshots from tastytrade and cache gamma exposure",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if standalone[cmd.Name()] {
				var err error
				logger, err = app.NewLogger("gexcache", verbose, nil)
				return err
			}

			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return err
			}

			logger, err = app.NewLogger("gexcache", verbose, &cfg.Logging)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", os.Getenv("TASTYGEX_CONFIG"), "config file path (or set TASTYGEX_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(parseCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(inspectCmd())

	// Setup signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
