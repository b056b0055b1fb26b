package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgnsrekt/tastygex/internal/server"
)

func serveCmd() *cobra.Command {
	var (
		port     string
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the cached GEX files over HTTP",
		Long: `Serve the latest committed files of the output directory as JSON.

Routes:
  GET /healthz
  GET /v1/tickers
  GET /v1/events              server-sent events on each new commit
  GET /v1/{ticker}/gex
  GET /v1/{ticker}/summary
  GET /v1/{ticker}/candle`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if !cmd.Flags().Changed("port") {
				port = cfg.Server.Port
			}

			srv := server.NewServer(cfg.Output.Directory, logger)
			events := server.NewBroadcaster(cfg.Output.Directory, interval, logger)
			go events.Run(ctx)

			// No write timeout: event streams stay open.
			httpServer := &http.Server{
				Addr:        ":" + port,
				Handler:     server.NewRouter(srv, events, cfg.Server.AllowedOrigin, logger),
				ReadTimeout: 30 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("Starting server",
					zap.String("addr", httpServer.Addr),
					zap.String("dir", cfg.Output.Directory),
				)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			logger.Info("Shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				return err
			}
			logger.Info("Server stopped")
			return nil
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "8080", "listen port (default from config)")
	cmd.Flags().DurationVar(&interval, "scan-interval", 5*time.Second, "how often to check for new commits")

	return cmd
}
