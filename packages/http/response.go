package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/abdul-hamid-achik/hitreq/packages/optional"
)

// Platform tags the transport that produced a Response.
type Platform string

const (
	PlatformSocket Platform = "socket"
	PlatformFetch  Platform = "fetch"
)

// maxFormMemory bounds the in-memory size of a parsed multipart form
const maxFormMemory = 32 << 20

// ProgressEvent reports body download progress. Total is 0 when the server
// did not declare a length.
type ProgressEvent struct {
	Loaded     int64
	Total      int64
	Computable bool
}

// Blob is a body together with its media type.
type Blob struct {
	Type string
	Data []byte
}

// FormFile is a file part of a multipart form body.
type FormFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Form is a decoded form body.
type Form struct {
	Values url.Values
	Files  map[string][]FormFile
}

// Response is a terminal reply from either transport. Its body can be read
// by exactly one accessor, exactly once.
type Response struct {
	Status     int
	StatusText string
	Redirected bool
	URL        string
	Header     *Headers

	platform Platform
	method   string
	bodyless bool
	body     io.ReadCloser
	// ctx aborts pending body reads; release tears down what the dispatch
	// attempt still holds.
	ctx     context.Context
	release func()

	used      atomic.Bool
	disposed  atomic.Bool
	closeOnce sync.Once

	mu          sync.Mutex
	published   bool
	scheduled   bool
	publishOnce sync.Once
	headers     *Emitter[*Headers]
	progress    *Emitter[ProgressEvent]
}

// IsBodyless reports whether a reply to method with status never carries an
// entity body, whatever its headers claim.
func IsBodyless(method string, status int) bool {
	return strings.EqualFold(method, http.MethodHead) ||
		(status >= 100 && status < 200) ||
		status == http.StatusNoContent ||
		status == http.StatusNotModified
}

func newResponse(platform Platform, req *Request, resp *http.Response, ctx context.Context, release func()) *Response {
	r := &Response{
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		Redirected: req.redirected,
		URL:        req.URL,
		Header:     headersFromHTTP(resp.Header),
		platform:   platform,
		method:     req.Method,
		bodyless:   IsBodyless(req.Method, resp.StatusCode),
		body:       resp.Body,
		ctx:        ctx,
		release:    release,
		headers:    NewEmitter[*Headers](DefaultMaxListeners),
		progress:   NewEmitter[ProgressEvent](DefaultMaxListeners),
	}
	if resp.Request != nil && resp.Request.URL != nil {
		r.URL = resp.Request.URL.String()
	}
	if r.body == nil {
		r.body = http.NoBody
	}

	if platform == PlatformSocket {
		if !r.bodyless {
			total := resp.ContentLength
			if total < 0 {
				total = 0
			}
			counted := &progressReader{body: r.body, total: total, emit: r.progress.Emit}
			r.body = decode(r.Header.Get("content-encoding"), counted)
		}
		r.publishHeaders()
	}
	return r
}

// headersFromHTTP copies a native header set, skipping values the
// normalizer would reject.
func headersFromHTTP(h http.Header) *Headers {
	out := NewHeaders()
	for _, k := range sortedKeys(h) {
		for _, v := range h[k] {
			_ = out.Add(k, v)
		}
	}
	return out
}

// Type returns the platform tag of the transport that produced r.
func (r *Response) Type() Platform {
	return r.platform
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// BodyUsed reports whether a body accessor has been called.
func (r *Response) BodyUsed() bool {
	return r.used.Load()
}

// Bodyless reports whether the response was classified as carrying no body.
func (r *Response) Bodyless() bool {
	return r.bodyless
}

// RawHeaders returns the headers as flattened (name, value) pairs.
func (r *Response) RawHeaders() [][2]string {
	return r.Header.Pairs()
}

// OnHeaders calls fn once with the response headers. Socket responses have
// already published their headers, so fn runs before OnHeaders returns.
// Fetch responses publish one scheduling tick after the first subscriber
// attaches.
func (r *Response) OnHeaders(fn func(*Headers)) (Disposer, error) {
	if fn == nil {
		return nil, errorf(KindInvalidArgument, "on headers", "nil listener")
	}
	r.mu.Lock()
	if r.published {
		r.mu.Unlock()
		if r.platform == PlatformSocket {
			fn(r.Header)
		} else {
			go fn(r.Header)
		}
		return func() {}, nil
	}
	dispose, err := r.headers.Once(fn)
	if err == nil && !r.scheduled {
		r.scheduled = true
		go r.publishHeaders()
	}
	r.mu.Unlock()
	return dispose, err
}

// publishHeaders emits the headers event exactly once. Concurrent callers
// block until the listeners have run, so a body accessor never resolves
// ahead of them.
func (r *Response) publishHeaders() {
	r.publishOnce.Do(func() {
		r.mu.Lock()
		r.published = true
		r.mu.Unlock()
		r.headers.Emit(r.Header)
	})
}

// OnProgress subscribes fn to download progress. Only socket responses
// emit progress; on fetch responses fn is never called.
func (r *Response) OnProgress(fn func(ProgressEvent)) (Disposer, error) {
	if fn == nil {
		return nil, errorf(KindInvalidArgument, "on progress", "nil listener")
	}
	if r.platform != PlatformSocket {
		return func() {}, nil
	}
	return r.progress.On(fn)
}

// Dispose releases the transport resources held by r. It is safe to call
// any number of times, whether or not the body was read.
func (r *Response) Dispose() {
	r.closeOnce.Do(func() {
		r.disposed.Store(true)
		_ = r.body.Close()
		if r.release != nil {
			r.release()
		}
		r.progress.Clear()
	})
}

// Clone returns an independent copy of an unread fetch response. Socket
// responses cannot be cloned.
func (r *Response) Clone(ctx context.Context) (*Response, error) {
	if r.platform == PlatformSocket {
		return nil, errorf(KindUnsupported, "clone", "socket responses cannot be cloned")
	}
	if r.used.Load() {
		return nil, newError(KindAlreadyConsumed, "clone", nil)
	}
	if r.disposed.Load() {
		return nil, newError(KindDisposed, "clone", nil)
	}
	var data []byte
	if !r.bodyless {
		var err error
		if data, err = r.readAll(ctx, "clone"); err != nil {
			return nil, err
		}
		r.body = io.NopCloser(bytes.NewReader(data))
	}
	c := &Response{
		Status:     r.Status,
		StatusText: r.StatusText,
		Redirected: r.Redirected,
		URL:        r.URL,
		Header:     r.Header.Clone(),
		platform:   r.platform,
		method:     r.method,
		bodyless:   r.bodyless,
		body:       io.NopCloser(bytes.NewReader(data)),
		ctx:        context.Background(),
		headers:    NewEmitter[*Headers](DefaultMaxListeners),
		progress:   NewEmitter[ProgressEvent](DefaultMaxListeners),
	}
	return c, nil
}

// consume enforces the single-use contract and buffers the body. The bool
// result is true when the response is body-less.
func (r *Response) consume(ctx context.Context, op string) ([]byte, bool, error) {
	if !r.used.CompareAndSwap(false, true) {
		return nil, false, newError(KindAlreadyConsumed, op, nil)
	}
	if r.disposed.Load() {
		return nil, false, newError(KindDisposed, op, nil)
	}
	r.publishHeaders()
	defer r.Dispose()
	if r.bodyless {
		return nil, true, nil
	}
	data, err := r.readAll(ctx, op)
	if err != nil {
		return nil, false, err
	}
	return data, false, nil
}

// readAll buffers the body while watching both the caller's context and the
// dispatch's abort signal. When either fires the body is closed, which
// tears down the underlying connection and unblocks the reader.
func (r *Response) readAll(ctx context.Context, op string) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	type outcome struct {
		data []byte
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		data, err := io.ReadAll(r.body)
		done <- outcome{data, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return nil, r.readError(op, out.err)
		}
		return out.data, nil
	case <-ctx.Done():
		_ = r.body.Close()
		return nil, classify(op, ctx, ctx.Err())
	case <-r.ctx.Done():
		_ = r.body.Close()
		return nil, classify(op, r.ctx, r.ctx.Err())
	}
}

func (r *Response) readError(op string, err error) error {
	if r.ctx.Err() != nil {
		return classify(op, r.ctx, err)
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return newError(KindEndOfStream, op, err)
	}
	return newError(KindTransport, op, err)
}

// Bytes returns the raw body.
func (r *Response) Bytes(ctx context.Context) (optional.Value[[]byte], error) {
	data, absent, err := r.consume(ctx, "bytes")
	if err != nil || absent {
		return optional.None[[]byte](), err
	}
	return optional.Some(data), nil
}

// Text returns the body as a string.
func (r *Response) Text(ctx context.Context) (optional.Value[string], error) {
	data, absent, err := r.consume(ctx, "text")
	if err != nil || absent {
		return optional.None[string](), err
	}
	return optional.Some(string(data)), nil
}

// JSON decodes the body. A malformed document fails the call.
func (r *Response) JSON(ctx context.Context) (optional.Value[any], error) {
	data, absent, err := r.consume(ctx, "json")
	if err != nil || absent {
		return optional.None[any](), err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return optional.None[any](), newError(KindUnknown, "json", err)
	}
	return optional.Some(v), nil
}

// Blob returns the body together with its content type.
func (r *Response) Blob(ctx context.Context) (optional.Value[*Blob], error) {
	data, absent, err := r.consume(ctx, "blob")
	if err != nil || absent {
		return optional.None[*Blob](), err
	}
	return optional.Some(&Blob{Type: r.Header.Get("content-type"), Data: data}), nil
}

// Buffer returns the body in a bytes.Buffer.
func (r *Response) Buffer(ctx context.Context) (optional.Value[*bytes.Buffer], error) {
	data, absent, err := r.consume(ctx, "buffer")
	if err != nil || absent {
		return optional.None[*bytes.Buffer](), err
	}
	return optional.Some(bytes.NewBuffer(data)), nil
}

// Stream returns a reader over the fully buffered body.
func (r *Response) Stream(ctx context.Context) (optional.Value[io.ReadCloser], error) {
	data, absent, err := r.consume(ctx, "stream")
	if err != nil || absent {
		return optional.None[io.ReadCloser](), err
	}
	return optional.Some[io.ReadCloser](io.NopCloser(bytes.NewReader(data))), nil
}

// FormData decodes an urlencoded or multipart/form-data body.
func (r *Response) FormData(ctx context.Context) (optional.Value[*Form], error) {
	data, absent, err := r.consume(ctx, "form data")
	if err != nil || absent {
		return optional.None[*Form](), err
	}
	form, err := parseForm(r.Header.Get("content-type"), data)
	if err != nil {
		return optional.None[*Form](), err
	}
	return optional.Some(form), nil
}

func parseForm(contentType string, data []byte) (*Form, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, newError(KindUnsupported, "form data", err)
	}
	switch mediaType {
	case "application/x-www-form-urlencoded":
		values, err := url.ParseQuery(string(data))
		if err != nil {
			return nil, newError(KindUnknown, "form data", err)
		}
		return &Form{Values: values, Files: map[string][]FormFile{}}, nil
	case "multipart/form-data":
		mf, err := multipart.NewReader(bytes.NewReader(data), params["boundary"]).ReadForm(maxFormMemory)
		if err != nil {
			return nil, newError(KindUnknown, "form data", err)
		}
		defer mf.RemoveAll()
		form := &Form{Values: url.Values(mf.Value), Files: map[string][]FormFile{}}
		for name, headers := range mf.File {
			for _, fh := range headers {
				f, err := fh.Open()
				if err != nil {
					return nil, newError(KindUnknown, "form data", err)
				}
				content, err := io.ReadAll(f)
				f.Close()
				if err != nil {
					return nil, newError(KindUnknown, "form data", err)
				}
				form.Files[name] = append(form.Files[name], FormFile{
					Filename:    fh.Filename,
					ContentType: fh.Header.Get("Content-Type"),
					Data:        content,
				})
			}
		}
		return form, nil
	}
	return nil, errorf(KindUnsupported, "form data", "cannot decode %q as a form", mediaType)
}

// progressReader counts raw body bytes as they arrive from the wire.
type progressReader struct {
	body   io.ReadCloser
	loaded int64
	total  int64
	emit   func(ProgressEvent)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.body.Read(b)
	if n > 0 {
		p.loaded += int64(n)
		p.emit(ProgressEvent{Loaded: p.loaded, Total: p.total, Computable: true})
	}
	return n, err
}

func (p *progressReader) Close() error {
	return p.body.Close()
}
