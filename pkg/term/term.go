package term

import (
	"strings"
	"unicode"
)

// Well-known term types produced by the parser and understood by the dialect
// presets. Custom trees are free to use any other tag.
const (
	TypeExpr   = "expr"
	TypeAnd    = "and"
	TypeOr     = "or"
	TypeNot    = "not"
	TypeEq     = "eq"
	TypeNeq    = "neq"
	TypeGroup  = "group"
	TypeCall   = "call"
	TypeVar    = "var"
	TypeString = "string"
	TypeNumber = "number"
	TypeBool   = "bool"
	TypeNull   = "null"
)

// Term is the smallest unit of an expression tree.
type Term interface {
	Type() string
}

// Expression is a Term that owns an ordered sequence of child terms.
type Expression interface {
	Term
	Terms() []Term
}

// Valuer is implemented by leaf terms that carry a literal payload, such as an
// identifier name or a constant.
type Valuer interface {
	Value() any
}

// Node is a concrete, immutable-by-convention tree node. A Node always
// satisfies Expression; nodes without children are treated as leaves by the
// renderer.
type Node struct {
	Kind     string  `json:"type" yaml:"type"`
	Payload  any     `json:"value,omitempty" yaml:"value,omitempty"`
	Children []*Node `json:"terms,omitempty" yaml:"terms,omitempty"`
}

var (
	_ Expression = (*Node)(nil)
	_ Valuer     = (*Node)(nil)
)

// New builds a composite node of the given type.
func New(kind string, children ...*Node) *Node {
	return &Node{Kind: strings.TrimSpace(kind), Children: children}
}

// Leaf builds a leaf node carrying value.
func Leaf(kind string, value any) *Node {
	return &Node{Kind: strings.TrimSpace(kind), Payload: value}
}

// Var is shorthand for a variable reference leaf.
func Var(name string) *Node { return Leaf(TypeVar, name) }

// String is shorthand for a string literal leaf.
func String(value string) *Node { return Leaf(TypeString, value) }

// Type returns the node's type tag.
func (n *Node) Type() string {
	if n == nil {
		return ""
	}
	return n.Kind
}

// Value returns the literal payload of a leaf node.
func (n *Node) Value() any {
	if n == nil {
		return nil
	}
	return n.Payload
}

// Terms returns the children as Terms. The returned slice is freshly
// allocated so callers cannot reorder the node's own children.
func (n *Node) Terms() []Term {
	if n == nil || len(n.Children) == 0 {
		return nil
	}
	out := make([]Term, 0, len(n.Children))
	for _, child := range n.Children {
		if child == nil {
			continue
		}
		out = append(out, child)
	}
	return out
}

// IsLeaf reports whether the node has no children.
func (n *Node) IsLeaf() bool {
	return n == nil || len(n.Children) == 0
}

// Children returns the ordered children of t when it is an Expression, or nil
// for plain terms.
func Children(t Term) []Term {
	expr, ok := t.(Expression)
	if !ok {
		return nil
	}
	return expr.Terms()
}

// IsComposite reports whether t is an Expression with at least one child.
func IsComposite(t Term) bool {
	return len(Children(t)) > 0
}

// ValueOf returns the payload of a Valuer term, or nil.
func ValueOf(t Term) any {
	if v, ok := t.(Valuer); ok {
		return v.Value()
	}
	return nil
}

// Walk visits t and its descendants depth first, in child order. Returning
// false from fn stops the descent into that term's children.
func Walk(t Term, fn func(t Term, depth int) bool) {
	walk(t, 0, fn)
}

func walk(t Term, depth int, fn func(Term, int) bool) {
	if t == nil || fn == nil {
		return
	}
	if !fn(t, depth) {
		return
	}
	for _, child := range Children(t) {
		walk(child, depth+1, fn)
	}
}

// ValidName reports whether name is a plain or dotted identifier such as
// "owner" or "user.address.city". Each segment starts with a letter or
// underscore followed by letters, digits or underscores.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for _, segment := range strings.Split(name, ".") {
		if segment == "" {
			return false
		}
		for i, r := range segment {
			switch {
			case r == '_' || unicode.IsLetter(r):
			case i > 0 && unicode.IsDigit(r):
			default:
				return false
			}
		}
	}
	return true
}
