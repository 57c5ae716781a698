package render

import (
	"log/slog"
	"strings"

	"github.com/goliatone/go-exprender/pkg/delegate"
)

// Option customises the engine configuration.
type Option func(*Engine)

// WithResolver injects the delegate resolver used for leaf terms.
func WithResolver(resolver delegate.Resolver) Option {
	return func(e *Engine) {
		e.resolver = resolver
	}
}

// WithStore resolves leaf terms by type against store.
func WithStore(store delegate.Store) Option {
	return func(e *Engine) {
		if store == nil {
			return
		}
		e.resolver = delegate.NewStoreResolver(store)
	}
}

// WithCompiler overrides how child fragments are combined.
func WithCompiler(compiler Compiler) Option {
	return func(e *Engine) {
		e.compiler = compiler
	}
}

// WithGlue combines child fragments by joining them with the selected glue.
func WithGlue(glue GlueSelector) Option {
	return func(e *Engine) {
		e.compiler = Join(glue)
	}
}

// WithLogger attaches a structured logger. Rendering logs at debug level and
// reports delegate lookup failures at warn level.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithExpressionKey overrides the context key that points at the expression
// being rendered.
func WithExpressionKey(key string) Option {
	return func(e *Engine) {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			e.key = trimmed
		}
	}
}

// WithDelegatedTypes marks composite term types that must be handed to their
// delegate renderer as a whole instead of being expanded by the engine.
// Function calls are the typical case: their delegate decides how arguments
// are laid out and calls back into the engine for each one.
func WithDelegatedTypes(types ...string) Option {
	return func(e *Engine) {
		for _, t := range types {
			if trimmed := strings.TrimSpace(t); trimmed != "" {
				e.delegated[trimmed] = struct{}{}
			}
		}
	}
}
