package env

import (
	"os"
	"strings"
)

// Source returns the process environment in KEY=value form.
type Source func() []string

// System reads the real process environment.
var System Source = os.Environ

// FromMap builds a Source from a map, for tests and .env overlays.
func FromMap(vars map[string]string) Source {
	return func() []string {
		out := make([]string, 0, len(vars))
		for k, v := range vars {
			out = append(out, k+"="+v)
		}
		return out
	}
}

// LookupFold finds key ignoring case. An exact match wins, then the
// all-uppercase spelling, then the all-lowercase one, then any other
// spelling. Empty values count as unset.
func LookupFold(src Source, key string) (string, bool) {
	if src == nil {
		src = System
	}
	vars := split(src())
	for _, candidate := range []string{key, strings.ToUpper(key), strings.ToLower(key)} {
		if v, ok := vars[candidate]; ok && v != "" {
			return v, true
		}
	}
	for k, v := range vars {
		if strings.EqualFold(k, key) && v != "" {
			return v, true
		}
	}
	return "", false
}

// FirstFold returns the first of keys that is set, ignoring case.
func FirstFold(src Source, keys ...string) string {
	for _, k := range keys {
		if v, ok := LookupFold(src, k); ok {
			return v
		}
	}
	return ""
}

// LoadSystemEnv returns the variables starting with prefix, prefix removed.
func LoadSystemEnv(src Source, prefix string) map[string]string {
	result := make(map[string]string)
	for k, v := range split(src()) {
		if prefix == "" {
			result[k] = v
		} else if len(k) > len(prefix) && strings.HasPrefix(k, prefix) {
			result[k[len(prefix):]] = v
		}
	}
	return result
}

func split(environ []string) map[string]string {
	vars := make(map[string]string, len(environ))
	for _, e := range environ {
		if key, value, ok := strings.Cut(e, "="); ok && key != "" {
			vars[key] = value
		}
	}
	return vars
}
