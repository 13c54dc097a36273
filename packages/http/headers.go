package http

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// HeaderEntry is one header name with all of its values, in arrival order.
type HeaderEntry struct {
	Name   string
	Values []string
}

// Headers is an ordered multimap of header fields. Names are stored
// lower-cased and compared case-insensitively; values keep insertion order.
type Headers struct {
	entries []HeaderEntry
	index   map[string]int
}

// NewHeaders returns an empty multimap.
func NewHeaders() *Headers {
	return &Headers{index: make(map[string]int)}
}

func canonicalName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// NormalizeHeaders converts the supported header shapes into a multimap:
// ordered pairs ([][2]string, []HeaderEntry), mappings (map[string]string,
// map[string][]string, map[string]any) and native sets (http.Header,
// *Headers). Mappings are walked in sorted key order. Nil values in a
// map[string]any are treated as absent and dropped.
func NormalizeHeaders(input any) (*Headers, error) {
	h := NewHeaders()
	var err error
	switch in := input.(type) {
	case nil:
	case *Headers:
		if in != nil {
			for _, e := range in.entries {
				err = h.addAll(e.Name, e.Values)
				if err != nil {
					break
				}
			}
		}
	case Headers:
		return NormalizeHeaders(&in)
	case [][2]string:
		for _, p := range in {
			if err = h.addAll(p[0], []string{p[1]}); err != nil {
				break
			}
		}
	case []HeaderEntry:
		for _, e := range in {
			if err = h.addAll(e.Name, e.Values); err != nil {
				break
			}
		}
	case map[string]string:
		for _, k := range sortedKeys(in) {
			if err = h.addAll(k, []string{in[k]}); err != nil {
				break
			}
		}
	case map[string][]string:
		for _, k := range sortedKeys(in) {
			if err = h.addAll(k, in[k]); err != nil {
				break
			}
		}
	case http.Header:
		return NormalizeHeaders(map[string][]string(in))
	case map[string]any:
		for _, k := range sortedKeys(in) {
			values, ok := flattenValue(in[k])
			if !ok {
				return nil, errorf(KindInvalidArgument, "normalize headers", "unsupported value for %q: %T", k, in[k])
			}
			if err = h.addAll(k, values); err != nil {
				break
			}
		}
	default:
		return nil, errorf(KindInvalidArgument, "normalize headers", "unsupported header input %T", input)
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func flattenValue(v any) ([]string, bool) {
	switch val := v.(type) {
	case nil:
		return nil, true
	case string:
		return []string{val}, true
	case []string:
		return val, true
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			if item == nil {
				continue
			}
			s, ok := flattenValue(item)
			if !ok || len(s) != 1 {
				return nil, false
			}
			out = append(out, s[0])
		}
		return out, true
	case fmt.Stringer:
		return []string{val.String()}, true
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return []string{fmt.Sprint(val)}, true
	}
	return nil, false
}

func (h *Headers) addAll(name string, values []string) error {
	for _, v := range values {
		if err := h.Add(name, v); err != nil {
			return err
		}
	}
	return nil
}

// Add appends value to the entry for name, creating it if needed.
func (h *Headers) Add(name, value string) error {
	key := canonicalName(name)
	if !httpguts.ValidHeaderFieldName(key) {
		return errorf(KindInvalidArgument, "add header", "invalid header name %q", name)
	}
	if !httpguts.ValidHeaderFieldValue(value) {
		return errorf(KindInvalidArgument, "add header", "invalid value for header %q", key)
	}
	if h.index == nil {
		h.index = make(map[string]int)
	}
	if i, ok := h.index[key]; ok {
		h.entries[i].Values = append(h.entries[i].Values, value)
		return nil
	}
	h.index[key] = len(h.entries)
	h.entries = append(h.entries, HeaderEntry{Name: key, Values: []string{value}})
	return nil
}

// Set replaces every value of name with value. A new name keeps its
// position at the end; an existing name keeps its original position.
func (h *Headers) Set(name, value string) error {
	key := canonicalName(name)
	if i, ok := h.index[key]; ok {
		if !httpguts.ValidHeaderFieldValue(value) {
			return errorf(KindInvalidArgument, "set header", "invalid value for header %q", key)
		}
		h.entries[i].Values = []string{value}
		return nil
	}
	return h.Add(name, value)
}

// Del removes name.
func (h *Headers) Del(name string) {
	key := canonicalName(name)
	i, ok := h.index[key]
	if !ok {
		return
	}
	h.entries = append(h.entries[:i], h.entries[i+1:]...)
	delete(h.index, key)
	for j := i; j < len(h.entries); j++ {
		h.index[h.entries[j].Name] = j
	}
}

// Get returns the first value of name, or "".
func (h *Headers) Get(name string) string {
	if h == nil {
		return ""
	}
	if i, ok := h.index[canonicalName(name)]; ok {
		return h.entries[i].Values[0]
	}
	return ""
}

// Values returns a copy of all values of name.
func (h *Headers) Values(name string) []string {
	if h == nil {
		return nil
	}
	if i, ok := h.index[canonicalName(name)]; ok {
		return append([]string(nil), h.entries[i].Values...)
	}
	return nil
}

// Has reports whether name is present.
func (h *Headers) Has(name string) bool {
	if h == nil {
		return false
	}
	_, ok := h.index[canonicalName(name)]
	return ok
}

// Len returns the number of distinct names.
func (h *Headers) Len() int {
	if h == nil {
		return 0
	}
	return len(h.entries)
}

// Entries returns a deep copy of the entries in order.
func (h *Headers) Entries() []HeaderEntry {
	if h == nil {
		return nil
	}
	out := make([]HeaderEntry, len(h.entries))
	for i, e := range h.entries {
		out[i] = HeaderEntry{Name: e.Name, Values: append([]string(nil), e.Values...)}
	}
	return out
}

// Pairs flattens the multimap into (name, value) pairs.
func (h *Headers) Pairs() [][2]string {
	if h == nil {
		return nil
	}
	var out [][2]string
	for _, e := range h.entries {
		for _, v := range e.Values {
			out = append(out, [2]string{e.Name, v})
		}
	}
	return out
}

// Clone returns a deep copy.
func (h *Headers) Clone() *Headers {
	c := NewHeaders()
	if h == nil {
		return c
	}
	c.entries = h.Entries()
	for i, e := range c.entries {
		c.index[e.Name] = i
	}
	return c
}

// Equal reports whether both multimaps hold the same names in the same
// order with the same values.
func (h *Headers) Equal(other *Headers) bool {
	if h.Len() != other.Len() {
		return false
	}
	if h.Len() == 0 {
		return true
	}
	for i := range h.entries {
		a, b := h.entries[i], other.entries[i]
		if a.Name != b.Name || len(a.Values) != len(b.Values) {
			return false
		}
		for j := range a.Values {
			if a.Values[j] != b.Values[j] {
				return false
			}
		}
	}
	return true
}

// HTTPHeader converts the multimap into a native header set.
func (h *Headers) HTTPHeader() http.Header {
	out := make(http.Header, h.Len())
	if h == nil {
		return out
	}
	for _, e := range h.entries {
		for _, v := range e.Values {
			out.Add(e.Name, v)
		}
	}
	return out
}

// merge adds every entry of other that is not already present in h.
func (h *Headers) merge(other *Headers) {
	if other == nil {
		return
	}
	for _, e := range other.entries {
		if h.Has(e.Name) {
			continue
		}
		_ = h.addAll(e.Name, e.Values)
	}
}
