// Package pongo builds delegate renderers from pongo2 (Django syntax)
// templates, so leaf terms can be rendered from configuration rather than
// code. Templates see the current term as `term`, its `type` and `value`, and
// the caller supplied values map as `values`.
package pongo

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"

	"github.com/goliatone/go-exprender/pkg/delegate"
	"github.com/goliatone/go-exprender/pkg/exprctx"
	"github.com/goliatone/go-exprender/pkg/term"
)

// Option configures a Set before construction.
type Option func(*config)

type config struct {
	baseDir    string
	templates  fs.FS
	extension  string
	globalData map[string]any
}

// WithBaseDir loads named templates from a directory on disk.
func WithBaseDir(dir string) Option {
	return func(cfg *config) {
		cfg.baseDir = strings.TrimSpace(dir)
	}
}

// WithFS loads named templates from an fs.FS.
func WithFS(files fs.FS) Option {
	return func(cfg *config) {
		cfg.templates = files
	}
}

// WithExtension overrides the extension appended to template names.
func WithExtension(ext string) Option {
	return func(cfg *config) {
		trimmed := strings.TrimSpace(ext)
		if trimmed == "" {
			return
		}
		if !strings.HasPrefix(trimmed, ".") {
			trimmed = "." + trimmed
		}
		cfg.extension = trimmed
	}
}

// WithGlobalData seeds values available to every template.
func WithGlobalData(data map[string]any) Option {
	return func(cfg *config) {
		if len(data) == 0 {
			return
		}
		if cfg.globalData == nil {
			cfg.globalData = make(map[string]any, len(data))
		}
		for key, value := range data {
			cfg.globalData[strings.TrimSpace(key)] = value
		}
	}
}

// Set compiles and caches templates and hands out delegate renderers bound to
// them.
type Set struct {
	mu          sync.RWMutex
	templateSet *pongo2.TemplateSet
	templates   map[string]*pongo2.Template
	tplExt      string
}

// New constructs a Set. String templates work without any loader; named
// templates need WithBaseDir or WithFS.
func New(options ...Option) (*Set, error) {
	cfg := &config{
		extension: ".tpl",
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(cfg)
	}

	var loaders []pongo2.TemplateLoader
	if cfg.baseDir != "" {
		loader, err := pongo2.NewLocalFileSystemLoader(cfg.baseDir)
		if err != nil {
			return nil, fmt.Errorf("pongo: create local loader: %w", err)
		}
		loaders = append(loaders, loader)
	}
	if cfg.templates != nil {
		loaders = append(loaders, pongo2.NewFSLoader(cfg.templates))
	}
	if len(loaders) == 0 {
		loaders = append(loaders, pongo2.MustNewLocalFileSystemLoader(""))
	}

	set := &Set{
		templateSet: pongo2.NewSet("exprender", loaders...),
		templates:   make(map[string]*pongo2.Template),
		tplExt:      cfg.extension,
	}
	registerDefaultFilters()
	if len(cfg.globalData) > 0 {
		set.templateSet.Globals.Update(pongo2.Context(cfg.globalData))
	}
	return set, nil
}

// FromString compiles source into a delegate renderer.
func (s *Set) FromString(source string) (delegate.Renderer, error) {
	if s == nil || s.templateSet == nil {
		return nil, errors.New("pongo: set is nil")
	}
	tmpl, err := s.templateSet.FromString(source)
	if err != nil {
		return nil, fmt.Errorf("pongo: parse template string: %w", err)
	}
	return &templateRenderer{set: s, tmpl: tmpl, name: "string"}, nil
}

// FromFile returns a delegate renderer for a named template, loading it
// through the configured loaders on first use.
func (s *Set) FromFile(name string) (delegate.Renderer, error) {
	if s == nil || s.templateSet == nil {
		return nil, errors.New("pongo: set is nil")
	}
	path := name
	if !strings.HasSuffix(path, s.tplExt) {
		path += s.tplExt
	}
	tmpl, err := s.getTemplate(path)
	if err != nil {
		return nil, err
	}
	return &templateRenderer{set: s, tmpl: tmpl, name: path}, nil
}

func (s *Set) getTemplate(path string) (*pongo2.Template, error) {
	s.mu.RLock()
	if tmpl, ok := s.templates[path]; ok {
		s.mu.RUnlock()
		return tmpl, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if tmpl, ok := s.templates[path]; ok {
		return tmpl, nil
	}

	tmpl, err := s.templateSet.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("pongo: load template %q: %w", path, err)
	}

	s.templates[path] = tmpl
	return tmpl, nil
}

// Globals merges data into the values every template sees.
func (s *Set) Globals(data map[string]any) {
	if s == nil || len(data) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.templateSet.Globals == nil {
		s.templateSet.Globals = make(pongo2.Context)
	}
	s.templateSet.Globals.Update(pongo2.Context(data))
}

// RegisterFilter registers a process wide pongo2 filter. Registering a name
// twice is an error.
func RegisterFilter(name string, fn func(input any, param any) (any, error)) error {
	if strings.TrimSpace(name) == "" || fn == nil {
		return errors.New("pongo: filter name and function required")
	}
	if pongo2.FilterExists(name) {
		return fmt.Errorf("pongo: filter %q already exists", name)
	}
	return pongo2.RegisterFilter(name, func(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
		var paramVal any
		if param != nil {
			paramVal = param.Interface()
		}
		result, err := fn(in.Interface(), paramVal)
		if err != nil {
			return nil, &pongo2.Error{Sender: "filter:" + name, OrigError: err}
		}
		return pongo2.AsValue(result), nil
	})
}

func registerDefaultFilters() {
	if !pongo2.FilterExists("sqlquote") {
		_ = pongo2.RegisterFilter("sqlquote", filterSQLQuote)
	}
}

// filterSQLQuote renders a value as a single quoted SQL literal.
func filterSQLQuote(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
	if in.IsNil() {
		return pongo2.AsValue("NULL"), nil
	}
	return pongo2.AsSafeValue("'" + strings.ReplaceAll(in.String(), "'", "''") + "'"), nil
}

type templateRenderer struct {
	set  *Set
	tmpl *pongo2.Template
	name string
}

func (r *templateRenderer) Render(ctx exprctx.Reader) (string, error) {
	current, err := delegate.CurrentTerm(ctx)
	if err != nil {
		return "", err
	}

	data := pongo2.Context{
		"term":  current,
		"type":  current.Type(),
		"value": term.ValueOf(current),
	}
	values, err := ctx.Get(exprctx.KeyValues)
	switch {
	case err == nil:
		data["values"] = values
	case !exprctx.IsNotFound(err):
		return "", err
	}

	var buf bytes.Buffer
	r.set.mu.RLock()
	err = r.tmpl.ExecuteWriter(data, &buf)
	r.set.mu.RUnlock()
	if err != nil {
		return "", fmt.Errorf("pongo: execute template %q: %w", r.name, err)
	}
	return buf.String(), nil
}
