package http

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func deflateBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, fw.Close())
	return buf.Bytes()
}

func TestDecode_RoundTrip(t *testing.T) {
	payload := []byte(strings.Repeat("hitreq compresses well. ", 512))

	tests := []struct {
		encoding string
		wire     []byte
	}{
		{"gzip", gzipBytes(t, payload)},
		{"x-gzip", gzipBytes(t, payload)},
		{" GZIP ", gzipBytes(t, payload)},
		{"deflate", deflateBytes(t, payload)},
		{"", payload},
		{"br", payload},
	}
	for _, tt := range tests {
		t.Run(tt.encoding, func(t *testing.T) {
			body := &closeTracker{Reader: bytes.NewReader(tt.wire)}
			rc := decode(tt.encoding, body)
			got, err := io.ReadAll(rc)
			require.NoError(t, err)
			assert.Equal(t, payload, got)

			require.NoError(t, rc.Close())
			assert.True(t, body.closed.Load())
		})
	}
}

func TestDecode_IsLazy(t *testing.T) {
	body := &closeTracker{Reader: bytes.NewReader(gzipBytes(t, []byte("x")))}
	rc := decode("gzip", body)
	assert.Zero(t, body.reads.Load())

	require.NoError(t, rc.Close())
	assert.True(t, body.closed.Load())
}

func TestDecode_CorruptGzip(t *testing.T) {
	rc := decode("gzip", io.NopCloser(strings.NewReader("not gzip")))
	_, err := io.ReadAll(rc)
	assert.Error(t, err)
}
