// Package term defines the expression tree consumed by the renderer. A Term
// only carries a type tag; an Expression additionally owns an ordered list of
// child terms whose order drives the left-to-right layout of the rendered
// output. Node is the concrete value type used by the parser, the YAML/JSON
// decoders and the dialect presets, but the renderer itself only depends on
// the two interfaces so callers can supply their own tree types.
package term
