// Package metrics instruments delegate resolution and rendering with
// prometheus collectors.
package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/goliatone/go-exprender/pkg/delegate"
	"github.com/goliatone/go-exprender/pkg/exprctx"
	"github.com/goliatone/go-exprender/pkg/term"
)

const (
	outcomeOK       = "ok"
	outcomeError    = "error"
	outcomeNotFound = "not_found"
)

// Collector holds the counters and histograms shared by instrumented
// resolvers and stores.
type Collector struct {
	renders  *prometheus.CounterVec
	lookups  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New builds a Collector whose metric names are prefixed with namespace.
func New(namespace string) *Collector {
	return &Collector{
		renders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "delegate_renders_total",
				Help:      "Delegate render calls by term type and outcome.",
			},
			[]string{"type", "outcome"},
		),
		lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "delegate_lookups_total",
				Help:      "Delegate resolutions by term type and outcome.",
			},
			[]string{"type", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "delegate_render_duration_seconds",
				Help:      "Duration of delegate render calls.",
				Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
			},
			[]string{"type"},
		),
	}
}

// Collectors returns the underlying collectors, for custom registration.
func (c *Collector) Collectors() []prometheus.Collector {
	return []prometheus.Collector{c.renders, c.lookups, c.duration}
}

// Register adds the collectors to reg. Collectors that are already
// registered are tolerated so several engines can share one Collector.
func (c *Collector) Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, collector := range c.Collectors() {
		if err := reg.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}

// Resolver wraps inner so every resolution and delegate render is counted.
func (c *Collector) Resolver(inner delegate.Resolver) delegate.Resolver {
	return delegate.ResolverFunc(func(t term.Term, ctx exprctx.Reader) (delegate.Renderer, error) {
		termType := t.Type()
		renderer, err := inner.Resolve(t, ctx)
		if err != nil {
			c.lookups.WithLabelValues(termType, lookupOutcome(err)).Inc()
			return nil, err
		}
		c.lookups.WithLabelValues(termType, outcomeOK).Inc()
		return c.wrap(termType, renderer), nil
	})
}

// Store wraps inner so renderers it returns are timed and counted under the
// lookup key.
func (c *Collector) Store(inner delegate.Store) delegate.Store {
	return delegate.StoreFunc(func(key string) (delegate.Renderer, error) {
		renderer, err := inner.Get(key)
		if err != nil {
			c.lookups.WithLabelValues(key, lookupOutcome(err)).Inc()
			return nil, err
		}
		c.lookups.WithLabelValues(key, outcomeOK).Inc()
		return c.wrap(key, renderer), nil
	})
}

func (c *Collector) wrap(termType string, renderer delegate.Renderer) delegate.Renderer {
	if renderer == nil {
		return nil
	}
	return delegate.RendererFunc(func(ctx exprctx.Reader) (string, error) {
		start := time.Now()
		out, err := renderer.Render(ctx)
		c.duration.WithLabelValues(termType).Observe(time.Since(start).Seconds())
		outcome := outcomeOK
		if err != nil {
			outcome = outcomeError
		}
		c.renders.WithLabelValues(termType, outcome).Inc()
		return out, err
	})
}

func lookupOutcome(err error) string {
	var notFound *delegate.NotFoundError
	if errors.As(err, &notFound) || errors.Is(err, delegate.ErrNotFound) {
		return outcomeNotFound
	}
	return outcomeError
}
