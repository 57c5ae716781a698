package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-exprender/internal/config"
	"github.com/goliatone/go-exprender/internal/logging"
	"github.com/goliatone/go-exprender/pkg/dialect"
)

// app carries state resolved by the root command for its children.
type app struct {
	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:   "exprender",
		Short: "Render boolean expressions as Go, SQL, text or HTML",
		Long: `exprender parses infix expressions (or YAML/JSON term trees) and renders them
through a dialect. Variables can be substituted from --set flags or a redis hash.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			path, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Log.Level, _ = cmd.Flags().GetString("log-level")
			}
			level, err := logging.ParseLevel(cfg.Log.Level)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logging.NewWithWriter(cmd.ErrOrStderr(), level)
			return nil
		},
	}

	cmd.PersistentFlags().String("config", "", "Path to a YAML config file (default $EXPRENDER_CONFIG or ~/.config/exprender/config.yaml)")
	cmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn, error")

	cmd.AddCommand(newRenderCmd(a), newDialectsCmd(), newServeCmd(a))
	return cmd
}

// dialectOptions maps configuration onto dialect options.
func (a *app) dialectOptions() []dialect.Option {
	opts := []dialect.Option{
		dialect.WithLogger(a.logger),
		dialect.WithExpressionKey(a.cfg.ExpressionKey),
	}
	if a.cfg.Values {
		opts = append(opts, dialect.WithValues())
	}
	if len(a.cfg.Glue) > 0 {
		opts = append(opts, dialect.WithGlueOverrides(a.cfg.Glue))
	}
	return opts
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
