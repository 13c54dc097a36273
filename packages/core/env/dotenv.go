package env

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// LoadDotEnv reads a .env file. It understands KEY=value, KEY="quoted",
// KEY='quoted', an optional leading "export " and # comment lines.
func LoadDotEnv(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open env file: %w", err)
	}
	defer file.Close()
	return ParseDotEnv(file)
}

// ParseDotEnv is LoadDotEnv over an arbitrary reader.
func ParseDotEnv(r io.Reader) (map[string]string, error) {
	result := make(map[string]string)
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}
		result[key] = value
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading env file: %w", err)
	}
	return result, nil
}

// Overlay layers vars under src: variables already set in src win. The
// process environment is never modified.
func Overlay(src Source, vars map[string]string) Source {
	if src == nil {
		src = System
	}
	return func() []string {
		base := src()
		seen := split(base)
		out := append([]string(nil), base...)
		for k, v := range vars {
			if seen[k] == "" {
				out = append(out, k+"="+v)
			}
		}
		return out
	}
}
