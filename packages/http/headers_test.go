package http

import (
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeHeaders_EquivalentInputs(t *testing.T) {
	want := []HeaderEntry{
		{Name: "accept", Values: []string{"text/html", "application/json"}},
		{Name: "x-trace", Values: []string{"abc"}},
	}

	inputs := map[string]any{
		"pairs": [][2]string{
			{"Accept", "text/html"},
			{"X-Trace", "abc"},
			{"ACCEPT", "application/json"},
		},
		"entries": []HeaderEntry{
			{Name: " Accept ", Values: []string{"text/html", "application/json"}},
			{Name: "x-trace", Values: []string{"abc"}},
		},
		"mapping of lists": map[string][]string{
			"Accept":  {"text/html", "application/json"},
			"X-Trace": {"abc"},
		},
		"native set": http.Header{
			"Accept":  {"text/html", "application/json"},
			"X-Trace": {"abc"},
		},
		"mapping of any": map[string]any{
			"Accept":  []any{"text/html", nil, "application/json"},
			"X-Trace": "abc",
			"X-Unset": nil,
		},
	}

	for name, input := range inputs {
		t.Run(name, func(t *testing.T) {
			h, err := NormalizeHeaders(input)
			require.NoError(t, err)
			if diff := cmp.Diff(want, h.Entries()); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestNormalizeHeaders_Idempotent(t *testing.T) {
	h, err := NormalizeHeaders(map[string]string{"Content-Type": "text/plain", "X-A": "1"})
	require.NoError(t, err)

	again, err := NormalizeHeaders(h)
	require.NoError(t, err)
	assert.True(t, h.Equal(again))

	byValue, err := NormalizeHeaders(*h)
	require.NoError(t, err)
	assert.True(t, h.Equal(byValue))
}

func TestNormalizeHeaders_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{"unsupported type", 42},
		{"bad name", map[string]string{"bad name": "x"}},
		{"bad value", map[string]string{"x-a": "line\nbreak"}},
		{"unsupported value", map[string]any{"x-a": struct{}{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NormalizeHeaders(tt.input)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestNormalizeHeaders_Nil(t *testing.T) {
	h, err := NormalizeHeaders(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, h.Len())
}

func TestHeaders_CaseInsensitiveLookup(t *testing.T) {
	h := NewHeaders()
	require.NoError(t, h.Add("Content-Encoding", "gzip"))
	require.NoError(t, h.Add("set-cookie", "a=1"))
	require.NoError(t, h.Add("Set-Cookie", "b=2"))

	assert.Equal(t, "gzip", h.Get("CONTENT-ENCODING"))
	assert.Equal(t, []string{"a=1", "b=2"}, h.Values("SET-COOKIE"))
	assert.True(t, h.Has("content-encoding"))
	assert.False(t, h.Has("x-missing"))
	assert.Equal(t, "", h.Get("x-missing"))
	assert.Equal(t, [][2]string{
		{"content-encoding", "gzip"},
		{"set-cookie", "a=1"},
		{"set-cookie", "b=2"},
	}, h.Pairs())
}

func TestHeaders_SetAndDel(t *testing.T) {
	h := NewHeaders()
	require.NoError(t, h.Add("a", "1"))
	require.NoError(t, h.Add("b", "2"))
	require.NoError(t, h.Add("c", "3"))

	require.NoError(t, h.Set("A", "one"))
	assert.Equal(t, []string{"one"}, h.Values("a"))

	h.Del("B")
	assert.Equal(t, [][2]string{{"a", "one"}, {"c", "3"}}, h.Pairs())
	assert.Equal(t, "3", h.Get("c"))
}

func TestHeaders_CloneIsDeep(t *testing.T) {
	h := NewHeaders()
	require.NoError(t, h.Add("a", "1"))
	c := h.Clone()
	require.NoError(t, c.Add("a", "2"))

	assert.Equal(t, []string{"1"}, h.Values("a"))
	assert.Equal(t, []string{"1", "2"}, c.Values("a"))
	assert.False(t, h.Equal(c))
}

func TestHeaders_HTTPHeader(t *testing.T) {
	h := NewHeaders()
	require.NoError(t, h.Add("x-multi", "1"))
	require.NoError(t, h.Add("x-multi", "2"))

	native := h.HTTPHeader()
	assert.Equal(t, []string{"1", "2"}, native.Values("X-Multi"))
}
