package dialect

import (
	"embed"
	"fmt"
	stdhtml "html"
	"io/fs"

	"github.com/goliatone/go-exprender/pkg/delegate"
	"github.com/goliatone/go-exprender/pkg/render"
	"github.com/goliatone/go-exprender/pkg/renderers/basic"
	"github.com/goliatone/go-exprender/pkg/renderers/html"
	"github.com/goliatone/go-exprender/pkg/renderers/pongo"
	"github.com/goliatone/go-exprender/pkg/term"
)

// HTML renders expressions as inline markup for display.
const HTML = "html"

//go:embed templates/html/*.tpl
var embeddedTemplates embed.FS

// TemplatesFS exposes the leaf templates used by the html dialect.
func TemplatesFS() fs.FS {
	sub, err := fs.Sub(embeddedTemplates, "templates/html")
	if err != nil {
		return embeddedTemplates
	}
	return sub
}

func init() {
	definitions[HTML] = Definition{
		Name: HTML,
		Operators: map[string]string{
			term.TypeAnd: " <b>and</b> ",
			term.TypeOr:  " <b>or</b> ",
			term.TypeEq:  " = ",
			term.TypeNeq: " != ",
		},
		NotPrefix: "<b>not</b> ",
		Strings:   escapedValue,
		Literals:  escapedValue,
		Null:      `<span class="lit">null</span>`,
		Leaves:    htmlLeaves,
	}
}

func escapedValue(value any) (string, error) {
	raw, err := basic.Raw(value)
	if err != nil {
		return "", err
	}
	return `<span class="val">` + stdhtml.EscapeString(raw) + `</span>`, nil
}

// htmlLeaves renders leaves from the embedded pongo templates and passes all
// output through the inline sanitising policy.
func htmlLeaves(def Definition, engine *render.Engine, values bool) (map[string]delegate.Renderer, error) {
	set, err := pongo.New(pongo.WithFS(TemplatesFS()))
	if err != nil {
		return nil, fmt.Errorf("dialect: html: %w", err)
	}

	load := func(name string) (delegate.Renderer, error) {
		r, err := set.FromFile(name)
		if err != nil {
			return nil, fmt.Errorf("dialect: html: %w", err)
		}
		return html.Sanitize(r, html.Inline()), nil
	}

	variable, err := load("var")
	if err != nil {
		return nil, err
	}
	str, err := load("string")
	if err != nil {
		return nil, err
	}
	literal, err := load("literal")
	if err != nil {
		return nil, err
	}
	null, err := load("null")
	if err != nil {
		return nil, err
	}

	if values {
		variable = html.Sanitize(basic.Lookup(valueFormatter(def), variable), html.Inline())
	}

	return map[string]delegate.Renderer{
		term.TypeVar:    variable,
		term.TypeString: str,
		term.TypeNumber: literal,
		term.TypeBool:   literal,
		term.TypeNull:   null,
		term.TypeCall:   html.Sanitize(basic.Call(engine, ", "), html.Inline()),
	}, nil
}
