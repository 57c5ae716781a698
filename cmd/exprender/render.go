package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-exprender/internal/prompt"
	"github.com/goliatone/go-exprender/pkg/dialect"
	"github.com/goliatone/go-exprender/pkg/exprctx"
	"github.com/goliatone/go-exprender/pkg/exprctx/redisctx"
	"github.com/goliatone/go-exprender/pkg/parse"
	"github.com/goliatone/go-exprender/pkg/term"
)

// newPromptDriver is swapped in tests.
var newPromptDriver = func() prompt.Driver { return prompt.NewSurveyDriver() }

type renderFlags struct {
	file        string
	dialect     string
	set         []string
	values      bool
	interactive bool
	redisAddr   string
	redisKey    string
}

func newRenderCmd(a *app) *cobra.Command {
	f := &renderFlags{}
	cmd := &cobra.Command{
		Use:   "render [expression]",
		Short: "Render an expression through a dialect",
		Example: `  exprender render 'status == "open" && !archived' --dialect sql
  exprender render --file tree.yaml --set owner=ada
  exprender render --redis-addr localhost:6379 --redis-key report`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runRender(cmd, f, args)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&f.file, "file", "f", "", "Read a YAML or JSON term tree from a file (- for stdin)")
	flags.StringVarP(&f.dialect, "dialect", "d", "", "Dialect to render with (default from config)")
	flags.StringArrayVar(&f.set, "set", nil, "Variable value as key=value (repeatable, values are YAML scalars)")
	flags.BoolVar(&f.values, "values", false, "Substitute variables with their values")
	flags.BoolVarP(&f.interactive, "interactive", "i", false, "Prompt for the expression, dialect and missing values")
	flags.StringVar(&f.redisAddr, "redis-addr", "", "Redis address holding the render context")
	flags.StringVar(&f.redisKey, "redis-key", "", "Name of the redis hash holding the render context")
	return cmd
}

func (a *app) runRender(cmd *cobra.Command, f *renderFlags, args []string) error {
	ctx := cmd.Context()

	values, err := parseAssignments(f.set)
	if err != nil {
		return err
	}

	name := a.cfg.Dialect
	if cmd.Flags().Changed("dialect") {
		name = f.dialect
	}

	var session *prompt.Session
	if f.interactive {
		session = prompt.NewSession(newPromptDriver())
		if !cmd.Flags().Changed("dialect") {
			if name, err = session.Dialect(ctx, dialect.Names(), name); err != nil {
				return err
			}
		}
	}

	opts := a.dialectOptions()
	if f.values || len(values) > 0 || f.interactive {
		opts = append(opts, dialect.WithValues())
	}
	engine, err := dialect.New(name, opts...)
	if err != nil {
		return err
	}
	key := engine.ExpressionKey()

	var base exprctx.Reader = exprctx.Map{}
	fromRedis := false
	addr := firstNonEmpty(f.redisAddr, a.cfg.Redis.Addr)
	hash := firstNonEmpty(f.redisKey, a.cfg.Redis.Key)
	if addr != "" && hash != "" {
		client := backend.NewClient(&backend.Options{Addr: addr})
		defer client.Close()
		base = redisctx.New(ctx, client, hash, redisctx.WithDecoder(key, redisctx.DecodeTree))
		fromRedis = true
		a.logger.Debug("reading render context from redis", "addr", addr, "hash", hash)
	}

	tree, err := readTree(cmd, f, args, session)
	if err != nil {
		return err
	}
	if tree == nil && !fromRedis {
		return errors.New("nothing to render: pass an expression, --file, --interactive or a redis hash")
	}

	rctx := base
	if tree != nil {
		rctx = exprctx.With(rctx, key, tree)
		if session != nil {
			if values, err = session.Values(ctx, tree, values); err != nil {
				return err
			}
		}
	}
	if len(values) > 0 {
		rctx = exprctx.With(rctx, exprctx.KeyValues, values)
	}

	out, err := engine.Render(rctx)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
	return err
}

func readTree(cmd *cobra.Command, f *renderFlags, args []string, session *prompt.Session) (*term.Node, error) {
	switch {
	case len(args) == 1:
		return parse.Parse(args[0])
	case f.file == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return term.Parse(data)
	case f.file != "":
		data, err := os.ReadFile(f.file)
		if err != nil {
			return nil, fmt.Errorf("read tree: %w", err)
		}
		return term.Parse(data)
	case session != nil:
		return session.Expression(cmd.Context(), "")
	default:
		return nil, nil
	}
}

// parseAssignments turns key=value pairs into a values map. Values are
// decoded as YAML scalars so numbers and booleans keep their type.
func parseAssignments(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q: expected key=value", pair)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("invalid --set %q: %w", pair, err)
		}
		out[key] = value
	}
	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
