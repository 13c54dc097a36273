package env

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestExpander(t *testing.T) {
	var missing []string
	e := &Expander{
		Vars:    map[string]string{"host": "api.example.com"},
		Env:     FromMap(map[string]string{"API_TOKEN": "s3cret"}),
		Missing: func(name string) { missing = append(missing, name) },
	}

	assert.Equal(t, "https://api.example.com/v1", e.Expand("https://{{host}}/v1"))
	assert.Equal(t, "Bearer s3cret", e.Expand("Bearer {{ $API_TOKEN }}"))
	assert.Equal(t, "{{nope}}", e.Expand("{{nope}}"))
	assert.Equal(t, []string{"nope"}, missing)

	_, err := uuid.Parse(e.Expand("{{uuid}}"))
	assert.NoError(t, err)
}
