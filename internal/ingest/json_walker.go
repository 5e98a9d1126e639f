package ingest

import (
	"fmt"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// JsonWalker implements Walker with JSONPath selectors.
type JsonWalker struct{}

func NewJsonWalker() *JsonWalker {
	return &JsonWalker{}
}

// Query implements Walker.
func (w *JsonWalker) Query(root any, selector string) ([]Match, error) {
	x, err := jp.ParseString(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid jsonpath '%s': %w", selector, err)
	}

	results := x.Get(root)

	matches := make([]Match, len(results))
	for i, r := range results {
		matches[i] = &jsonMatch{value: r}
	}
	return matches, nil
}

// QueryDocument parses raw JSON and runs selector against it.
func (w *JsonWalker) QueryDocument(raw []byte, selector string) ([]Match, error) {
	doc, err := oj.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return w.Query(doc, selector)
}

// Strings runs selector against root and keeps the string results.
func (w *JsonWalker) Strings(root any, selector string) ([]string, error) {
	matches, err := w.Query(root, selector)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, m := range matches {
		if s, ok := m.Context().(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

type jsonMatch struct {
	value any
}

// Values implements Match.
func (m *jsonMatch) Values() map[string]any {
	switch v := m.value.(type) {
	case map[string]any:
		return v
	default:
		return map[string]any{"value": v}
	}
}

// Context implements Match.
func (m *jsonMatch) Context() any {
	return m.value
}
