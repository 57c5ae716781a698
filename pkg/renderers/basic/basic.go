package basic

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/goliatone/go-exprender/pkg/delegate"
	"github.com/goliatone/go-exprender/pkg/exprctx"
	"github.com/goliatone/go-exprender/pkg/term"
)

// Formatter turns a literal payload into text.
type Formatter func(value any) (string, error)

// TermRenderer is the slice of the render engine that call renderers need to
// recurse into their arguments.
type TermRenderer interface {
	RenderTerm(t term.Term, ctx exprctx.Reader) (string, error)
}

// Literal renders the payload of the current term with format.
func Literal(format Formatter) delegate.Renderer {
	if format == nil {
		format = Raw
	}
	return delegate.RendererFunc(func(ctx exprctx.Reader) (string, error) {
		current, err := delegate.CurrentTerm(ctx)
		if err != nil {
			return "", err
		}
		return format(term.ValueOf(current))
	})
}

// Identifier renders the payload of the current term verbatim. Names that are
// not plain or dotted identifiers (see term.ValidName) are rejected so tree
// input cannot smuggle operators or statements into the output.
func Identifier() delegate.Renderer {
	return delegate.RendererFunc(func(ctx exprctx.Reader) (string, error) {
		current, err := delegate.CurrentTerm(ctx)
		if err != nil {
			return "", err
		}
		name := strings.TrimSpace(coerceString(term.ValueOf(current)))
		if name == "" {
			return "", fmt.Errorf("basic: %s term has no name", current.Type())
		}
		if !term.ValidName(name) {
			return "", fmt.Errorf("basic: invalid %s name %q", current.Type(), name)
		}
		return name, nil
	})
}

// Const always renders text.
func Const(text string) delegate.Renderer {
	return delegate.RendererFunc(func(exprctx.Reader) (string, error) {
		return text, nil
	})
}

// Lookup substitutes variables with the value found under
// exprctx.KeyValues in the context, formatted with format. Variables without a
// value are rendered by fallback.
func Lookup(format Formatter, fallback delegate.Renderer) delegate.Renderer {
	if format == nil {
		format = Raw
	}
	return delegate.RendererFunc(func(ctx exprctx.Reader) (string, error) {
		current, err := delegate.CurrentTerm(ctx)
		if err != nil {
			return "", err
		}
		name := strings.TrimSpace(coerceString(term.ValueOf(current)))
		value, err := exprctx.Lookup(ctx, exprctx.KeyValues, name)
		switch {
		case err == nil:
			return format(value)
		case exprctx.IsNotFound(err) && fallback != nil:
			return fallback.Render(ctx)
		default:
			return "", err
		}
	})
}

// Call renders a function call term as name(arg, arg). The call's children are
// rendered through engine, so arguments may be arbitrary expressions.
func Call(engine TermRenderer, separator string) delegate.Renderer {
	return delegate.RendererFunc(func(ctx exprctx.Reader) (string, error) {
		current, err := delegate.CurrentTerm(ctx)
		if err != nil {
			return "", err
		}
		name := strings.TrimSpace(coerceString(term.ValueOf(current)))
		if name == "" {
			return "", fmt.Errorf("basic: call term has no function name")
		}
		if !term.ValidName(name) {
			return "", fmt.Errorf("basic: invalid function name %q", name)
		}
		children := term.Children(current)
		args := make([]string, 0, len(children))
		for _, child := range children {
			out, err := engine.RenderTerm(child, ctx)
			if err != nil {
				return "", err
			}
			args = append(args, out)
		}
		return name + "(" + strings.Join(args, separator) + ")", nil
	})
}

// Raw formats values with their natural textual form.
func Raw(value any) (string, error) {
	return coerceString(value), nil
}

// GoQuote formats strings as Go string literals and leaves other values raw.
func GoQuote(value any) (string, error) {
	if s, ok := value.(string); ok {
		return strconv.Quote(s), nil
	}
	return Raw(value)
}

// SQLQuote formats strings as single quoted SQL literals, doubling embedded
// quotes. Booleans are upper-cased and nil becomes NULL.
func SQLQuote(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "NULL", nil
	case string:
		return "'" + strings.ReplaceAll(v, "'", "''") + "'", nil
	case bool:
		return strings.ToUpper(strconv.FormatBool(v)), nil
	default:
		return Raw(value)
	}
}

// DoubleQuote wraps strings in plain double quotes without escaping.
func DoubleQuote(value any) (string, error) {
	if s, ok := value.(string); ok {
		return `"` + s + `"`, nil
	}
	return Raw(value)
}

// Upper formats values raw and upper-cases the result.
func Upper(value any) (string, error) {
	out, err := Raw(value)
	return strings.ToUpper(out), err
}

func coerceString(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(value)
	}
}
