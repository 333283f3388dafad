// Package valuetree is the generic value representation the rest of
// PayloadStash operates on: null, bool, int, float, string, ordered
// mapping, and sequence, decoded straight from a YAML node tree so that
// mapping key order survives (merge order is observable, per the
// configuration resolution algebra).
package valuetree

import "fmt"

// Kind identifies which field of a Value is meaningful.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindMapping
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindMapping:
		return "mapping"
	case KindSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// Value is a single node in the generic value tree.
type Value struct {
	Kind     Kind
	Bool     bool
	Int      int64
	Float    float64
	Str      string
	Mapping  *Mapping
	Sequence []*Value
}

// Null returns a new null value.
func Null() *Value { return &Value{Kind: KindNull} }

// String returns a new string value.
func String(s string) *Value { return &Value{Kind: KindString, Str: s} }

// Bool returns a new bool value.
func Bool(b bool) *Value { return &Value{Kind: KindBool, Bool: b} }

// Int returns a new int value.
func Int(n int64) *Value { return &Value{Kind: KindInt, Int: n} }

// IsNull reports whether v is nil or a null node.
func (v *Value) IsNull() bool { return v == nil || v.Kind == KindNull }

// AsString returns the string contents if v is a string node.
func (v *Value) AsString() (string, bool) {
	if v == nil || v.Kind != KindString {
		return "", false
	}
	return v.Str, true
}

// AsInt returns the integer value, converting from float if needed.
func (v *Value) AsInt() (int64, bool) {
	if v == nil {
		return 0, false
	}
	switch v.Kind {
	case KindInt:
		return v.Int, true
	case KindFloat:
		return int64(v.Float), true
	default:
		return 0, false
	}
}

// AsFloat returns the numeric value as a float64.
func (v *Value) AsFloat() (float64, bool) {
	if v == nil {
		return 0, false
	}
	switch v.Kind {
	case KindInt:
		return float64(v.Int), true
	case KindFloat:
		return v.Float, true
	default:
		return 0, false
	}
}

// AsBool returns the boolean value.
func (v *Value) AsBool() (bool, bool) {
	if v == nil || v.Kind != KindBool {
		return false, false
	}
	return v.Bool, true
}

// AsMapping returns the mapping if v is a mapping node.
func (v *Value) AsMapping() (*Mapping, bool) {
	if v == nil || v.Kind != KindMapping {
		return nil, false
	}
	return v.Mapping, true
}

// AsSequence returns the sequence elements if v is a sequence node.
func (v *Value) AsSequence() ([]*Value, bool) {
	if v == nil || v.Kind != KindSequence {
		return nil, false
	}
	return v.Sequence, true
}

// Clone returns a deep copy of v so that a caller can mutate the copy
// (e.g. late deferred-value substitution) without affecting the original.
func (v *Value) Clone() *Value {
	if v == nil {
		return nil
	}
	out := &Value{Kind: v.Kind, Bool: v.Bool, Int: v.Int, Float: v.Float, Str: v.Str}
	if v.Mapping != nil {
		out.Mapping = v.Mapping.Clone()
	}
	if v.Sequence != nil {
		out.Sequence = make([]*Value, len(v.Sequence))
		for i, e := range v.Sequence {
			out.Sequence[i] = e.Clone()
		}
	}
	return out
}

func (v *Value) String() string {
	if v == nil {
		return "<nil>"
	}
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindInt:
		return fmt.Sprintf("%d", v.Int)
	case KindFloat:
		return fmt.Sprintf("%g", v.Float)
	case KindString:
		return v.Str
	case KindMapping:
		return fmt.Sprintf("mapping[%d]", v.Mapping.Len())
	case KindSequence:
		return fmt.Sprintf("sequence[%d]", len(v.Sequence))
	default:
		return "?"
	}
}

// Mapping is an insertion-ordered string-keyed map of *Value.
type Mapping struct {
	keys []string
	vals map[string]*Value
}

// NewMapping returns an empty ordered mapping.
func NewMapping() *Mapping {
	return &Mapping{vals: make(map[string]*Value)}
}

// Len returns the number of keys.
func (m *Mapping) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}

// Keys returns the keys in insertion order. The caller must not mutate it.
func (m *Mapping) Keys() []string {
	if m == nil {
		return nil
	}
	return m.keys
}

// Get returns the value for key and whether it was present.
func (m *Mapping) Get(key string) (*Value, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.vals[key]
	return v, ok
}

// Has reports whether key is present (distinguishes "absent" from "present and null").
func (m *Mapping) Has(key string) bool {
	if m == nil {
		return false
	}
	_, ok := m.vals[key]
	return ok
}

// Set inserts or overwrites key. If key is new, it is appended to Keys();
// if key already exists, its position is kept and only the value changes.
func (m *Mapping) Set(key string, v *Value) {
	if _, ok := m.vals[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.vals[key] = v
}

// SetDefault inserts key only if not already present.
func (m *Mapping) SetDefault(key string, v *Value) {
	if m.Has(key) {
		return
	}
	m.Set(key, v)
}

// Delete removes key if present.
func (m *Mapping) Delete(key string) {
	if !m.Has(key) {
		return
	}
	delete(m.vals, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Clone returns a deep copy.
func (m *Mapping) Clone() *Mapping {
	if m == nil {
		return nil
	}
	out := NewMapping()
	for _, k := range m.keys {
		out.Set(k, m.vals[k].Clone())
	}
	return out
}

// reservedKeys are the operator-node discriminator keys (§3 "Operator node").
var reservedKeys = map[string]bool{
	"$dynamic":  true,
	"$secrets":  true,
	"$func":     true,
	"$timestamp": true,
	"$deferred": true,
}

// IsReservedKey reports whether key is one of the reserved operator keys.
func IsReservedKey(key string) bool { return reservedKeys[key] }

// OperatorKey returns the single reserved key present in m, or "" if none.
// A mapping is an operator node iff it contains exactly one reserved key
// (other keys alongside it, like "when"/"format", are operator parameters).
func (m *Mapping) OperatorKey() string {
	if m == nil {
		return ""
	}
	found := ""
	for _, k := range m.keys {
		if IsReservedKey(k) {
			if found != "" {
				return "" // more than one reserved key: not a valid operator node
			}
			found = k
		}
	}
	return found
}
