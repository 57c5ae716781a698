// Package server exposes rendering over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"unicode"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/goliatone/go-exprender/internal/logging"
	"github.com/goliatone/go-exprender/pkg/dialect"
	"github.com/goliatone/go-exprender/pkg/exprctx"
	"github.com/goliatone/go-exprender/pkg/parse"
	"github.com/goliatone/go-exprender/pkg/render"
	"github.com/goliatone/go-exprender/pkg/renderers/html"
	"github.com/goliatone/go-exprender/pkg/term"
)

// maxBodyBytes bounds render request bodies.
const maxBodyBytes = 1 << 20

// RenderRequest is the body of POST /render. Exactly one of Expression or
// Tree must be set.
type RenderRequest struct {
	Expression string            `json:"expression,omitempty"`
	Tree       json.RawMessage   `json:"tree,omitempty"`
	Dialect    string            `json:"dialect,omitempty"`
	Values     map[string]any    `json:"values,omitempty"`
	Glue       map[string]string `json:"glue,omitempty"`
}

// RenderResponse is the success body of POST /render.
type RenderResponse struct {
	Output  string `json:"output"`
	Dialect string `json:"dialect"`
}

// ErrorResponse is returned for failed requests.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// Options configures the handler.
type Options struct {
	DefaultDialect string
	DialectOptions []dialect.Option
	Logger         *slog.Logger
	// Gatherer backs GET /metrics. Nil uses the default prometheus registry.
	Gatherer prometheus.Gatherer
}

// Server renders requests with lazily built, cached dialect engines.
type Server struct {
	opts    Options
	logger  *slog.Logger
	mu      sync.Mutex
	engines map[string]*render.Engine
}

// New builds a Server.
func New(opts Options) *Server {
	if strings.TrimSpace(opts.DefaultDialect) == "" {
		opts.DefaultDialect = dialect.Go
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Server{
		opts:    opts,
		logger:  logger,
		engines: make(map[string]*render.Engine),
	}
}

// NewHandler creates the HTTP handler.
func NewHandler(opts Options) http.Handler {
	return New(opts).Routes()
}

// Routes mounts the server endpoints on a chi router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.Health)
	r.Get("/dialects", s.Dialects)
	r.Post("/render", s.Render)

	gatherer := s.opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}

// Health handles GET /health.
func (s *Server) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

// Dialects handles GET /dialects.
func (s *Server) Dialects(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"dialects": dialect.Names(),
		"default":  s.opts.DefaultDialect,
	}, s.logger)
}

// Render handles POST /render.
func (s *Server) Render(w http.ResponseWriter, r *http.Request) {
	var body RenderRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err), "")
		return
	}

	tree, err := body.tree()
	if err != nil {
		s.fail(w, http.StatusBadRequest, err, "invalid_request")
		return
	}

	name := strings.TrimSpace(body.Dialect)
	if name == "" {
		name = s.opts.DefaultDialect
	}
	engine, err := s.engine(name)
	if err != nil {
		s.fail(w, http.StatusBadRequest, err, "unknown_dialect")
		return
	}

	ctx := exprctx.Map{engine.ExpressionKey(): tree}
	if body.Values != nil {
		ctx[exprctx.KeyValues] = body.Values
	}
	markup := strings.EqualFold(name, dialect.HTML)
	for termType, glue := range body.Glue {
		if markup {
			glue = sanitizeGlue(glue)
		}
		ctx[render.DefaultGluePrefix+termType] = glue
	}

	out, err := engine.Render(ctx)
	if err != nil {
		kind, _ := render.KindOf(err)
		s.fail(w, http.StatusUnprocessableEntity, err, string(kind))
		return
	}

	s.logger.Debug("rendered expression", "dialect", name, "bytes", len(out))
	writeJSON(w, http.StatusOK, RenderResponse{Output: out, Dialect: name}, s.logger)
}

// sanitizeGlue applies the inline policy to caller supplied html glue while
// keeping the surrounding whitespace that separates fragments.
func sanitizeGlue(glue string) string {
	core := strings.TrimSpace(glue)
	if core == "" {
		return glue
	}
	lead := glue[:len(glue)-len(strings.TrimLeftFunc(glue, unicode.IsSpace))]
	trail := glue[len(strings.TrimRightFunc(glue, unicode.IsSpace)):]
	return lead + html.SanitizeString(core, html.Inline()) + trail
}

func (b RenderRequest) tree() (*term.Node, error) {
	hasExpr := strings.TrimSpace(b.Expression) != ""
	hasTree := len(b.Tree) > 0 && string(b.Tree) != "null"
	switch {
	case hasExpr && hasTree:
		return nil, errors.New("set either expression or tree, not both")
	case hasExpr:
		return parse.Parse(b.Expression)
	case hasTree:
		return term.ParseJSON(b.Tree)
	default:
		return nil, errors.New("expression or tree is required")
	}
}

func (s *Server) engine(name string) (*render.Engine, error) {
	key := strings.ToLower(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if engine, ok := s.engines[key]; ok {
		return engine, nil
	}
	opts := append([]dialect.Option{dialect.WithLogger(s.logger)}, s.opts.DialectOptions...)
	engine, err := dialect.New(key, opts...)
	if err != nil {
		return nil, err
	}
	s.engines[key] = engine
	return engine, nil
}

func (s *Server) fail(w http.ResponseWriter, status int, err error, kind string) {
	s.logger.Warn("render request failed", "status", status, "kind", kind, "error", err)
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: kind}, s.logger)
}

func writeJSON(w http.ResponseWriter, status int, payload any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("response encode failed", "error", err)
	}
}
