package valuetree

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// FromYAML parses YAML bytes into a Value tree. Anchors and aliases are
// dereferenced and "<<" merge keys are expanded so that the resulting tree
// matches the "parser already applied anchor/alias/merge-key expansion"
// assumption the resolution algebra depends on.
func FromYAML(data []byte) (*Value, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("valuetree: parse yaml: %w", err)
	}
	if len(doc.Content) == 0 {
		return Null(), nil
	}
	return nodeToValue(doc.Content[0])
}

func nodeToValue(n *yaml.Node) (*Value, error) {
	if n == nil {
		return Null(), nil
	}
	switch n.Kind {
	case yaml.AliasNode:
		return nodeToValue(n.Alias)
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return Null(), nil
		}
		return nodeToValue(n.Content[0])
	case yaml.ScalarNode:
		return scalarToValue(n)
	case yaml.SequenceNode:
		seq := make([]*Value, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := nodeToValue(c)
			if err != nil {
				return nil, err
			}
			seq = append(seq, v)
		}
		return &Value{Kind: KindSequence, Sequence: seq}, nil
	case yaml.MappingNode:
		m, err := mappingNodeToMapping(n)
		if err != nil {
			return nil, err
		}
		return &Value{Kind: KindMapping, Mapping: m}, nil
	default:
		return nil, fmt.Errorf("valuetree: unsupported node kind %v", n.Kind)
	}
}

// mappingNodeToMapping builds an ordered Mapping from a YAML mapping node,
// expanding "<<" merge keys. Explicit keys always win over merged ones,
// regardless of the relative order in which they appear.
func mappingNodeToMapping(n *yaml.Node) (*Mapping, error) {
	out := NewMapping()
	explicit := map[string]bool{}
	type pendingMerge struct{ at int }
	var mergeSources []*yaml.Node

	for i := 0; i+1 < len(n.Content); i += 2 {
		keyNode := n.Content[i]
		valNode := n.Content[i+1]
		if keyNode.Value == "<<" && keyNode.Tag == "!!merge" || keyNode.Value == "<<" {
			switch valNode.Kind {
			case yaml.MappingNode:
				mergeSources = append(mergeSources, valNode)
			case yaml.SequenceNode:
				mergeSources = append(mergeSources, valNode.Content...)
			case yaml.AliasNode:
				mergeSources = append(mergeSources, valNode.Alias)
			}
			continue
		}
		key, err := scalarKey(keyNode)
		if err != nil {
			return nil, err
		}
		v, err := nodeToValue(valNode)
		if err != nil {
			return nil, err
		}
		out.Set(key, v)
		explicit[key] = true
	}
	_ = pendingMerge{}

	for _, src := range mergeSources {
		srcMap, err := mappingNodeToMapping(src)
		if err != nil {
			return nil, err
		}
		for _, k := range srcMap.Keys() {
			if explicit[k] {
				continue
			}
			out.SetDefault(k, srcMap.vals[k])
		}
	}
	return out, nil
}

func scalarKey(n *yaml.Node) (string, error) {
	if n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	if n.Kind != yaml.ScalarNode {
		return "", fmt.Errorf("valuetree: mapping key must be scalar, got %v", n.Kind)
	}
	return n.Value, nil
}

func scalarToValue(n *yaml.Node) (*Value, error) {
	switch n.Tag {
	case "!!null":
		return Null(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, err
		}
		return Bool(b), nil
	case "!!int":
		i, err := strconv.ParseInt(n.Value, 0, 64)
		if err != nil {
			var f float64
			if err2 := n.Decode(&f); err2 == nil {
				return &Value{Kind: KindFloat, Float: f}, nil
			}
			return nil, fmt.Errorf("valuetree: parse int %q: %w", n.Value, err)
		}
		return Int(i), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, err
		}
		return &Value{Kind: KindFloat, Float: f}, nil
	default:
		return String(n.Value), nil
	}
}

// ToYAML renders v back into a YAML document, used to persist the resolved
// configuration. Deferred markers render as a "$deferred" mapping so the
// on-disk resolved document preserves them (§4.4).
func ToYAML(v *Value) ([]byte, error) {
	node, err := valueToNode(v)
	if err != nil {
		return nil, err
	}
	return yaml.Marshal(node)
}

func valueToNode(v *Value) (*yaml.Node, error) {
	if v == nil || v.Kind == KindNull {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	}
	switch v.Kind {
	case KindBool:
		val := "false"
		if v.Bool {
			val = "true"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: val}, nil
	case KindInt:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(v.Int, 10)}, nil
	case KindFloat:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: strconv.FormatFloat(v.Float, 'g', -1, 64)}, nil
	case KindString:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.Str}, nil
	case KindSequence:
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, e := range v.Sequence {
			n, err := valueToNode(e)
			if err != nil {
				return nil, err
			}
			seq.Content = append(seq.Content, n)
		}
		return seq, nil
	case KindMapping:
		m := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, k := range v.Mapping.Keys() {
			val, _ := v.Mapping.Get(k)
			kn := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
			vn, err := valueToNode(val)
			if err != nil {
				return nil, err
			}
			m.Content = append(m.Content, kn, vn)
		}
		return m, nil
	default:
		return nil, fmt.Errorf("valuetree: cannot encode kind %v", v.Kind)
	}
}
