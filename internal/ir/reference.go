package ir

import "strings"

// RefScheme prefixes a property value that points at another
// resource's output attribute instead of a literal.
const RefScheme = "ref://"

// Ref is a parsed reference of the form ref://<type>/<name>/<attribute>.
type Ref struct {
	Type      string
	Name      string
	Attribute string
}

// Addr returns the address of the referenced resource.
func (r Ref) Addr() string {
	return r.Type + "." + r.Name
}

func (r Ref) String() string {
	return RefScheme + r.Type + "/" + r.Name + "/" + r.Attribute
}

// ParseRef parses a reference string. The second return is false when
// the value is not a reference or is malformed.
func ParseRef(v string) (Ref, bool) {
	if !strings.HasPrefix(v, RefScheme) {
		return Ref{}, false
	}
	parts := strings.SplitN(strings.TrimPrefix(v, RefScheme), "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Ref{}, false
	}
	return Ref{Type: parts[0], Name: parts[1], Attribute: parts[2]}, true
}

// WalkStrings visits every string inside a property value, recursing
// through maps and slices, and replaces each with the visitor's return
// value.
func WalkStrings(v any, visit func(string) any) any {
	switch val := v.(type) {
	case string:
		return visit(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = WalkStrings(item, visit)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = visit(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = WalkStrings(item, visit)
		}
		return out
	default:
		return v
	}
}

// CollectRefs gathers every well-formed reference embedded in a
// property value.
func CollectRefs(v any) []Ref {
	var refs []Ref
	WalkStrings(v, func(s string) any {
		if ref, ok := ParseRef(s); ok {
			refs = append(refs, ref)
		}
		return s
	})
	return refs
}
