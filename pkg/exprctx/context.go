// Package exprctx provides the key-value carrier threaded through a render
// call. Readers only expose lookups; narrowing a context for a child term is
// done by layering an overlay on top of the parent, never by mutating it.
package exprctx

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// KeyExpression identifies the expression currently being rendered.
const KeyExpression = "expression"

// KeyValues is the conventional key holding caller supplied values that leaf
// renderers may substitute for variables.
const KeyValues = "values"

// ErrKeyNotFound reports that a key is absent from a context. Readers wrap it
// so callers can tell a missing key apart from a failing store.
var ErrKeyNotFound = errors.New("exprctx: key not found")

// Reader is the minimal capability a render context must offer.
type Reader interface {
	Get(key string) (any, error)
}

// Func adapts a function into a Reader.
type Func func(key string) (any, error)

// Get delegates to the underlying function.
func (fn Func) Get(key string) (any, error) {
	return fn(key)
}

// NotFound builds the error returned for a missing key.
func NotFound(key string) error {
	return fmt.Errorf("%w: %q", ErrKeyNotFound, key)
}

// IsNotFound reports whether err signals a missing key.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrKeyNotFound)
}

// Map is a map backed Reader.
type Map map[string]any

// Get returns the value stored under key.
func (m Map) Get(key string) (any, error) {
	value, ok := m[key]
	if !ok {
		return nil, NotFound(key)
	}
	return value, nil
}

type overlay struct {
	parent Reader
	key    string
	value  any
}

// With returns a Reader that answers key with value and forwards every other
// lookup to parent. The parent is left untouched, so sibling overlays built
// from the same parent never observe each other.
func With(parent Reader, key string, value any) Reader {
	return &overlay{parent: parent, key: key, value: value}
}

func (o *overlay) Get(key string) (any, error) {
	if key == o.key {
		return o.value, nil
	}
	if o.parent == nil {
		return nil, NotFound(key)
	}
	return o.parent.Get(key)
}

// FromStruct exposes the fields of a struct (or a map) as a Reader. Keys follow
// the `mapstructure` tags, falling back to field names.
func FromStruct(source any) (Reader, error) {
	if source == nil {
		return nil, errors.New("exprctx: struct source is nil")
	}
	values := make(map[string]any)
	if err := mapstructure.Decode(source, &values); err != nil {
		return nil, fmt.Errorf("exprctx: decode struct: %w", err)
	}
	return Map(values), nil
}

// Lookup resolves a dotted path against the map stored under root, preferring
// an exact match for flattened keys such as "cta.headline".
func Lookup(r Reader, root, path string) (any, error) {
	raw, err := r.Get(root)
	if err != nil {
		return nil, err
	}
	values, ok := raw.(map[string]any)
	if !ok {
		if m, isMap := raw.(Map); isMap {
			values = m
		} else {
			return nil, fmt.Errorf("exprctx: %q holds %T, not a map", root, raw)
		}
	}
	path = strings.TrimSpace(path)
	if value, ok := values[path]; ok {
		return value, nil
	}

	var current any = values
	for _, part := range strings.Split(path, ".") {
		part = strings.TrimSpace(part)
		next, ok := current.(map[string]any)
		if !ok || part == "" {
			return nil, NotFound(root + "." + path)
		}
		current, ok = next[part]
		if !ok {
			return nil, NotFound(root + "." + path)
		}
	}
	return current, nil
}
