// Package html wraps delegates whose output ends up in markup, stripping or
// restricting tags with bluemonday before the fragment is compiled.
package html

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"

	"github.com/goliatone/go-exprender/pkg/delegate"
	"github.com/goliatone/go-exprender/pkg/exprctx"
)

var (
	strictOnce   sync.Once
	strictPolicy *bluemonday.Policy

	inlineOnce   sync.Once
	inlinePolicy *bluemonday.Policy
)

// Strict removes every element, leaving escaped text.
func Strict() *bluemonday.Policy {
	strictOnce.Do(func() {
		strictPolicy = bluemonday.StrictPolicy()
	})
	return strictPolicy
}

// Inline keeps a small set of inline formatting elements so highlighted
// operands survive sanitising.
func Inline() *bluemonday.Policy {
	inlineOnce.Do(func() {
		policy := bluemonday.StrictPolicy()
		policy.AllowElements("b", "strong", "i", "em", "code", "mark", "span")
		policy.AllowAttrs("class").OnElements("code", "mark", "span")
		inlinePolicy = policy
	})
	return inlinePolicy
}

// Sanitize runs inner's output through policy. A nil policy means Strict.
func Sanitize(inner delegate.Renderer, policy *bluemonday.Policy) delegate.Renderer {
	if policy == nil {
		policy = Strict()
	}
	return delegate.RendererFunc(func(ctx exprctx.Reader) (string, error) {
		out, err := inner.Render(ctx)
		if err != nil {
			return "", err
		}
		return SanitizeString(out, policy), nil
	})
}

// SanitizeString applies policy to raw and trims the result.
func SanitizeString(raw string, policy *bluemonday.Policy) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}
	if policy == nil {
		policy = Strict()
	}
	return strings.TrimSpace(policy.Sanitize(trimmed))
}
