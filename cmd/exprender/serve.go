package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/goliatone/go-exprender/internal/server"
	"github.com/goliatone/go-exprender/pkg/dialect"
	"github.com/goliatone/go-exprender/pkg/metrics"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP render server",
		Long:  `Starts an HTTP server exposing POST /render, GET /dialects, GET /health and GET /metrics.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr := a.cfg.HTTP.Addr
			if cmd.Flags().Changed("addr") {
				addr, _ = cmd.Flags().GetString("addr")
			}

			reg := prometheus.NewRegistry()
			collector := metrics.New("exprender")
			if err := collector.Register(reg); err != nil {
				return err
			}

			handler := server.NewHandler(server.Options{
				DefaultDialect: a.cfg.Dialect,
				DialectOptions: append(a.dialectOptions(), dialect.WithMetrics(collector)),
				Logger:         a.logger,
				Gatherer:       reg,
			})

			srv := &http.Server{
				Addr:              addr,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			}

			serverErrors := make(chan error, 1)
			go func() {
				a.logger.Info("starting render server", "addr", srv.Addr, "dialect", a.cfg.Dialect)
				serverErrors <- srv.ListenAndServe()
			}()

			shutdown := make(chan os.Signal, 1)
			signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
			defer signal.Stop(shutdown)

			select {
			case err := <-serverErrors:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case sig := <-shutdown:
				a.logger.Info("shutting down", "signal", sig.String())
				ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := srv.Shutdown(ctx); err != nil {
					a.logger.Error("graceful shutdown failed", "error", err)
					return srv.Close()
				}
				return nil
			}
		},
	}
	cmd.Flags().String("addr", ":8080", "Address to listen on (default from config)")
	return cmd
}
