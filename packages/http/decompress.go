package http

import (
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

// decode wraps body with the inflate transform named by contentEncoding.
// Unknown or empty encodings pass through untouched.
func decode(contentEncoding string, body io.ReadCloser) io.ReadCloser {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "gzip", "x-gzip":
		return &gzipReader{body: body}
	case "deflate":
		return &flateReader{body: body}
	}
	return body
}

// gzipReader defers gzip.NewReader until the first Read, since the
// constructor consumes the gzip header from the wire. Close only closes the
// wire body: it may run while a Read is in flight, and the inflater holds
// no resource of its own.
type gzipReader struct {
	body io.ReadCloser
	zr   *gzip.Reader
	zerr error
}

func (gz *gzipReader) Read(p []byte) (int, error) {
	if gz.zerr != nil {
		return 0, gz.zerr
	}
	if gz.zr == nil {
		gz.zr, gz.zerr = gzip.NewReader(gz.body)
		if gz.zerr != nil {
			return 0, gz.zerr
		}
	}
	return gz.zr.Read(p)
}

func (gz *gzipReader) Close() error {
	return gz.body.Close()
}

// flateReader inflates a raw deflate stream. Like gzipReader it leaves the
// inflater to the reading goroutine.
type flateReader struct {
	body io.ReadCloser
	once sync.Once
	fr   io.ReadCloser
}

func (f *flateReader) Read(p []byte) (int, error) {
	f.once.Do(func() { f.fr = flate.NewReader(f.body) })
	return f.fr.Read(p)
}

func (f *flateReader) Close() error {
	return f.body.Close()
}
