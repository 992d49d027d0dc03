// Package ordered provides an insertion-order-preserving string-keyed map,
// used wherever the manifest format and spec require key order to survive
// decoding — Items/Table JSON-object literals (spec §4.3) and Vars
// insertion order (spec §3) both depend on seeing keys in the order the
// manifest author wrote them, which plain map[string]any does not
// guarantee.
package ordered

import "gopkg.in/yaml.v3"

// Map is an ordered string-keyed map. The zero value is not usable; call
// NewMap.
type Map struct {
	keys   []string
	values map[string]any
}

// NewMap returns an empty ordered map.
func NewMap() *Map {
	return &Map{values: map[string]any{}}
}

// Set inserts or overrides key's value, preserving key's original
// position on override.
func (m *Map) Set(key string, value any) {
	if _, exists := m.values[key]; !exists {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get looks up key's value.
func (m *Map) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string { return m.keys }

// Len reports the number of entries.
func (m *Map) Len() int { return len(m.keys) }

// DecodeYAMLNode decodes a YAML mapping node into an ordered Map,
// preserving document key order (yaml.Node's Content alternates
// key-node, value-node for a mapping). Nested mappings decode
// recursively into *Map; sequences decode into []any; scalars decode via
// their natural Go type.
func DecodeYAMLNode(node *yaml.Node) (*Map, error) {
	if node.Kind != yaml.MappingNode {
		return nil, &NotAMappingError{Line: node.Line}
	}

	m := NewMap()
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valNode := node.Content[i+1]

		var key string
		if err := keyNode.Decode(&key); err != nil {
			return nil, err
		}

		val, err := decodeYAMLValue(valNode)
		if err != nil {
			return nil, err
		}
		m.Set(key, val)
	}
	return m, nil
}

func decodeYAMLValue(node *yaml.Node) (any, error) {
	switch node.Kind {
	case yaml.MappingNode:
		return DecodeYAMLNode(node)
	case yaml.SequenceNode:
		out := make([]any, 0, len(node.Content))
		for _, c := range node.Content {
			v, err := decodeYAMLValue(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	default:
		var v any
		if err := node.Decode(&v); err != nil {
			return nil, err
		}
		return v, nil
	}
}

// NotAMappingError reports that DecodeYAMLNode was handed a non-mapping
// node.
type NotAMappingError struct{ Line int }

func (e *NotAMappingError) Error() string {
	return "expected a mapping node"
}

// ToPlainMap converts m (recursively) into a plain map[string]any, for
// callers (e.g. text/template contexts) that don't need order.
func ToPlainMap(m *Map) map[string]any {
	out := make(map[string]any, m.Len())
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		if nested, ok := v.(*Map); ok {
			out[k] = ToPlainMap(nested)
		} else {
			out[k] = v
		}
	}
	return out
}
