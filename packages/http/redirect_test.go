package http

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLocation(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		location string
		want     string
	}{
		{"root relative", "https://host/a/b", "/c", "https://host/c"},
		{"root relative keeps port", "http://host:8080/a?q=1", "/c?d=2", "http://host:8080/c?d=2"},
		{"absolute is verbatim", "https://host/a", "http://other.example/x#frag", "http://other.example/x#frag"},
		{"path relative", "https://host/a/b", "c", "https://host/a/c"},
		{"parent relative", "https://host/a/b/c", "../d", "https://host/a/d"},
		{"scheme relative", "https://host/a", "//cdn.example/x", "https://cdn.example/x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveLocation(tt.base, tt.location)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextHop(t *testing.T) {
	req := NewRequest("GET", "https://host/a")

	t.Run("non redirect ends the chain", func(t *testing.T) {
		next, err := nextHop(req, 200, "/b")
		require.NoError(t, err)
		assert.Nil(t, next)
	})

	t.Run("missing location ends the chain", func(t *testing.T) {
		next, err := nextHop(req, 302, "")
		require.NoError(t, err)
		assert.Nil(t, next)
	})

	t.Run("exhausted budget ends the chain", func(t *testing.T) {
		next, err := nextHop(NewRequest("GET", "https://host/a").SetMaxRedirects(0), 302, "/b")
		require.NoError(t, err)
		assert.Nil(t, next)
	})

	t.Run("redirect decrements the budget", func(t *testing.T) {
		next, err := nextHop(req, 301, "/b")
		require.NoError(t, err)
		require.NotNil(t, next)
		assert.Equal(t, "https://host/b", next.URL)
		assert.Equal(t, DefaultMaxRedirects-1, next.MaxRedirects)
		assert.True(t, next.Redirected())
		assert.False(t, req.Redirected())
		assert.Equal(t, DefaultMaxRedirects, req.MaxRedirects)
	})

	t.Run("unsupported target scheme", func(t *testing.T) {
		_, err := nextHop(req, 302, "ftp://host/file")
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestDerive(t *testing.T) {
	req := NewRequest("POST", "https://host/a").
		SetHeader("Authorization", "Bearer t").
		SetHeader("Cookie", "a=1").
		SetHeader("X-Keep", "yes").
		SetDelay(10)

	t.Run("same host keeps credentials", func(t *testing.T) {
		next := req.derive("https://host/b")
		assert.Equal(t, "Bearer t", next.Headers.Get("authorization"))
		assert.Equal(t, "a=1", next.Headers.Get("cookie"))
		assert.Zero(t, next.Delay)
	})

	t.Run("cross host drops credentials", func(t *testing.T) {
		next := req.derive("https://elsewhere.example/b")
		assert.False(t, next.Headers.Has("authorization"))
		assert.False(t, next.Headers.Has("cookie"))
		assert.Equal(t, "yes", next.Headers.Get("x-keep"))
		assert.True(t, req.Headers.Has("authorization"))
	})

	t.Run("stream body is not replayed", func(t *testing.T) {
		r := NewRequest("POST", "https://host/a").SetBody(StreamPayload(strings.NewReader("abc"), "text/plain"))
		_ = r.Headers.Set("content-length", "3")
		next := r.derive("https://host/b")
		assert.Nil(t, next.Body)
		assert.False(t, next.Headers.Has("content-length"))
	})

	t.Run("bytes body is replayed", func(t *testing.T) {
		r := NewRequest("POST", "https://host/a").SetBody(StringPayload("abc", "text/plain"))
		next := r.derive("https://host/b")
		assert.Same(t, r.Body, next.Body)
	})
}
