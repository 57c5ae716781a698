// Package prompt collects an expression, a dialect and variable values from
// an interactive terminal.
package prompt

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-exprender/pkg/parse"
	"github.com/goliatone/go-exprender/pkg/term"
)

// Session drives the interactive render flow.
type Session struct {
	driver Driver
}

// NewSession wraps driver. A nil driver uses survey.
func NewSession(driver Driver) *Session {
	if driver == nil {
		driver = NewSurveyDriver()
	}
	return &Session{driver: driver}
}

// Expression asks for an expression until one parses, returning the tree.
func (s *Session) Expression(ctx context.Context, initial string) (*term.Node, error) {
	raw, err := s.driver.Input(ctx, InputConfig{
		Message: "Expression",
		Default: initial,
		Help:    "Boolean expression, e.g. status == \"active\" && !archived",
		Validator: func(value string) error {
			_, err := parse.Parse(value)
			return err
		},
	})
	if err != nil {
		return nil, err
	}
	return parse.Parse(raw)
}

// Dialect asks the user to pick one of names, preselecting current.
func (s *Session) Dialect(ctx context.Context, names []string, current string) (string, error) {
	if len(names) == 0 {
		return "", fmt.Errorf("prompt: no dialects to choose from")
	}
	idx, err := s.driver.Select(ctx, SelectConfig{
		Message:      "Dialect",
		Options:      names,
		DefaultIndex: indexOf(names, current),
	})
	if err != nil {
		return "", err
	}
	if idx < 0 || idx >= len(names) {
		return "", fmt.Errorf("prompt: invalid dialect selection %d", idx)
	}
	return names[idx], nil
}

// Values asks for a value for every variable in tree. Blank answers leave the
// variable unset. Keys already present in known are not asked again.
func (s *Session) Values(ctx context.Context, tree term.Term, known map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(known))
	for k, v := range known {
		out[k] = v
	}
	for _, name := range Variables(tree) {
		if _, ok := out[name]; ok {
			continue
		}
		answer, err := s.driver.Input(ctx, InputConfig{
			Message: fmt.Sprintf("Value for %s", name),
			Help:    "Leave blank to keep the variable name",
		})
		if err != nil {
			return nil, err
		}
		if trimmed := strings.TrimSpace(answer); trimmed != "" {
			out[name] = trimmed
		}
	}
	return out, nil
}

// Variables lists the distinct variable names referenced by tree, sorted.
func Variables(tree term.Term) []string {
	seen := map[string]struct{}{}
	term.Walk(tree, func(t term.Term, _ int) bool {
		if t.Type() != term.TypeVar {
			return true
		}
		if name, ok := term.ValueOf(t).(string); ok && name != "" {
			seen[name] = struct{}{}
		}
		return true
	})
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
