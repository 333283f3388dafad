package artifact

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"sort"
)

// FormatResponse re-renders body per the request's Response block (§4.8
// "Response formatting"), applied after the extension lookup and before the
// write. JSON bodies are re-marshaled with indentation; object keys come out
// sorted whether or not sort is set, because the body is decoded into Go
// maps and encoding/json writes map keys in sorted order. XML bodies are re-encoded element-by-element,
// sorted lexically by attribute name and child element name when sort is
// set. Any content-type other than JSON or XML, or a body that fails to
// parse as its declared type, is returned unchanged — formatting is a
// presentation nicety, never a reason to lose a response.
func FormatResponse(body []byte, contentType string, prettyPrint, sortKeys bool) []byte {
	if !prettyPrint && !sortKeys {
		return body
	}
	ext := ExtensionFor(contentType, 200)
	switch ext {
	case ".json":
		if out, ok := formatJSON(body, sortKeys); ok {
			return out
		}
	case ".xml":
		if out, ok := formatXML(body, sortKeys); ok {
			return out
		}
	}
	return body
}

func formatJSON(body []byte, sortKeys bool) ([]byte, bool) {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, false
	}
	if sortKeys {
		v = sortJSONValue(v)
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, false
	}
	return out, true
}

// sortJSONValue recursively rebuilds object keys in sorted order. Go's
// json.Marshal already sorts map[string]any keys, so this exists only to
// make the sort explicit and to recurse into nested arrays/objects.
func sortJSONValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out[k] = sortJSONValue(t[k])
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = sortJSONValue(e)
		}
		return out
	default:
		return v
	}
}

// xmlNode is a generic XML tree that round-trips attributes and children in
// document order, letting formatXML re-serialize with indentation and an
// optional sort pass.
type xmlNode struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Content  string     `xml:",chardata"`
	Children []xmlNode  `xml:",any"`
}

func formatXML(body []byte, sortNodes bool) ([]byte, bool) {
	var root xmlNode
	if err := xml.Unmarshal(body, &root); err != nil {
		return nil, false
	}
	if sortNodes {
		sortXMLNode(&root)
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(root); err != nil {
		return nil, false
	}
	if err := enc.Flush(); err != nil {
		return nil, false
	}
	return buf.Bytes(), true
}

func sortXMLNode(n *xmlNode) {
	sort.Slice(n.Attrs, func(i, j int) bool { return n.Attrs[i].Name.Local < n.Attrs[j].Name.Local })
	sort.Slice(n.Children, func(i, j int) bool { return n.Children[i].XMLName.Local < n.Children[j].XMLName.Local })
	for i := range n.Children {
		sortXMLNode(&n.Children[i])
	}
}
