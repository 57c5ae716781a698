// Package basic provides the stock leaf renderers used by the dialect
// presets: literals, identifiers, constants, variable substitution and
// function calls. Each renderer reads the term it was asked to render from
// the context under exprctx.KeyExpression.
package basic
