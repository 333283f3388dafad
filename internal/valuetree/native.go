package valuetree

import "strconv"

func fmtInt(n int64) string     { return strconv.FormatInt(n, 10) }
func fmtFloat(f float64) string { return strconv.FormatFloat(f, 'g', -1, 64) }

// ToNative converts v into plain Go values (map[string]interface{},
// []interface{}, string, int64, float64, bool, nil) suitable for JSON
// marshaling or url.Values construction by the Request Executor. Mapping
// key order is not preserved by map[string]interface{} — JSON object key
// order has no wire significance, so this is only used at the send
// boundary, never for the resolved document (ToYAML preserves order there).
func ToNative(v *Value) interface{} {
	if v == nil {
		return nil
	}
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.Bool
	case KindInt:
		return v.Int
	case KindFloat:
		return v.Float
	case KindString:
		return v.Str
	case KindSequence:
		out := make([]interface{}, len(v.Sequence))
		for i, e := range v.Sequence {
			out[i] = ToNative(e)
		}
		return out
	case KindMapping:
		out := make(map[string]interface{}, v.Mapping.Len())
		for _, k := range v.Mapping.Keys() {
			val, _ := v.Mapping.Get(k)
			out[k] = ToNative(val)
		}
		return out
	default:
		return nil
	}
}

// StringOf returns v's string representation for use as a header or query
// value: scalars render via fmt-like coercion; null, mapping and sequence
// values report ok=false, and the caller skips them.
func StringOf(v *Value) (string, bool) {
	if v == nil {
		return "", false
	}
	switch v.Kind {
	case KindString:
		return v.Str, true
	case KindBool:
		if v.Bool {
			return "true", true
		}
		return "false", true
	case KindInt:
		return fmtInt(v.Int), true
	case KindFloat:
		return fmtFloat(v.Float), true
	default:
		return "", false
	}
}
