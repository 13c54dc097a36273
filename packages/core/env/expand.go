package env

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var variablePattern = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// Expander replaces {{name}} placeholders. {{$NAME}} reads the environment
// and {{uuid}} yields a fresh random UUID. Unknown names are left in place
// and reported through Missing.
type Expander struct {
	Vars    map[string]string
	Env     Source
	Missing func(name string)
}

func (e *Expander) Expand(input string) string {
	return variablePattern.ReplaceAllStringFunc(input, func(match string) string {
		expr := strings.TrimSpace(match[2 : len(match)-2])

		switch {
		case strings.HasPrefix(expr, "$"):
			if v, ok := LookupFold(e.Env, expr[1:]); ok {
				return v
			}
		case expr == "uuid" || expr == "uuid()":
			return uuid.NewString()
		default:
			if v, ok := e.Vars[expr]; ok {
				return v
			}
		}

		if e.Missing != nil {
			e.Missing(expr)
		}
		return match
	})
}
