package term

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrEmptyDocument is returned when a decoder is handed no tree at all.
var ErrEmptyDocument = errors.New("term: empty document")

// DecodeYAML reads a single YAML (or JSON, which is valid YAML) document
// describing a Node tree:
//
//	type: and
//	terms:
//	  - type: var
//	    value: enabled
//	  - type: bool
//	    value: true
func DecodeYAML(r io.Reader) (*Node, error) {
	var node Node
	if err := yaml.NewDecoder(r).Decode(&node); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyDocument
		}
		return nil, fmt.Errorf("term: decode yaml: %w", err)
	}
	if err := validate(&node, "$"); err != nil {
		return nil, err
	}
	return &node, nil
}

// ParseYAML decodes a tree from raw YAML bytes.
func ParseYAML(data []byte) (*Node, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyDocument
	}
	return DecodeYAML(bytes.NewReader(data))
}

// ParseJSON decodes a tree from raw JSON bytes. Numbers are kept as
// json.Number so their textual form survives rendering untouched.
func ParseJSON(data []byte) (*Node, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyDocument
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var node Node
	if err := dec.Decode(&node); err != nil {
		return nil, fmt.Errorf("term: decode json: %w", err)
	}
	if err := validate(&node, "$"); err != nil {
		return nil, err
	}
	return &node, nil
}

// Parse sniffs the payload and decodes JSON when it looks like a JSON object,
// YAML otherwise.
func Parse(data []byte) (*Node, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		return ParseJSON(trimmed)
	}
	return ParseYAML(trimmed)
}

func validate(node *Node, path string) error {
	node.Kind = strings.TrimSpace(node.Kind)
	if node.Kind == "" {
		return fmt.Errorf("term: node %s has no type", path)
	}
	for idx, child := range node.Children {
		childPath := fmt.Sprintf("%s.terms[%d]", path, idx)
		if child == nil {
			return fmt.Errorf("term: node %s is empty", childPath)
		}
		if err := validate(child, childPath); err != nil {
			return err
		}
	}
	return nil
}
