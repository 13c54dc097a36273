// Package jsonx contains forgiving JSON helpers used for diagnostics.
//
// Parse never panics and reports failures through a result value. Stringify
// is best effort: it returns an empty string instead of an error.
package jsonx

import (
	"encoding/json"
	"fmt"

	"github.com/abdul-hamid-achik/hitreq/packages/result"
	"github.com/tidwall/gjson"
)

// Parse decodes data into a generic value.
func Parse(data []byte) result.Value[any] {
	if !gjson.ValidBytes(data) {
		return result.Err[any](fmt.Errorf("jsonx: invalid JSON document"))
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return result.Err[any](err)
	}
	return result.Ok(v)
}

// Stringify encodes v, returning "" when encoding fails.
func Stringify(v any) (s string) {
	defer func() {
		if recover() != nil {
			s = ""
		}
	}()
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// Valid reports whether data is a well-formed JSON document.
func Valid(data []byte) bool {
	return gjson.ValidBytes(data)
}

// Query extracts the value at a gjson path. The second return value is false
// when the path does not exist.
func Query(data []byte, path string) (string, bool) {
	res := gjson.GetBytes(data, path)
	if !res.Exists() {
		return "", false
	}
	if res.Type == gjson.String {
		return res.Str, true
	}
	return res.Raw, true
}
