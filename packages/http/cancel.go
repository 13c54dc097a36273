package http

import (
	"context"
	"sync"
)

// Token carries a cancellation request from the caller into every dispatch
// attempt and pending body read. A nil *Token is never cancelled; the zero
// value is ready to use.
type Token struct {
	initOnce  sync.Once
	mu        sync.Mutex
	requested bool
	done      chan struct{}
	listeners *Emitter[struct{}]
}

// NewToken returns a token that has not been cancelled.
func NewToken() *Token {
	t := &Token{}
	t.init()
	return t
}

func (t *Token) init() {
	t.initOnce.Do(func() {
		t.done = make(chan struct{})
		t.listeners = NewEmitter[struct{}](0)
	})
}

// Cancel requests cancellation and notifies each subscriber once. Further
// calls do nothing.
func (t *Token) Cancel() {
	if t == nil {
		return
	}
	t.init()
	t.mu.Lock()
	if t.requested {
		t.mu.Unlock()
		return
	}
	t.requested = true
	close(t.done)
	t.mu.Unlock()
	t.listeners.Emit(struct{}{})
}

// IsCancellationRequested reports whether Cancel was called.
func (t *Token) IsCancellationRequested() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.requested
}

// Done is closed once cancellation is requested. It is nil for a nil token.
func (t *Token) Done() <-chan struct{} {
	if t == nil {
		return nil
	}
	t.init()
	return t.done
}

// OnCancel runs fn once when the token is cancelled. If cancellation was
// already requested fn runs immediately on the calling goroutine.
func (t *Token) OnCancel(fn func()) Disposer {
	if t == nil {
		return func() {}
	}
	t.init()
	t.mu.Lock()
	if t.requested {
		t.mu.Unlock()
		fn()
		return func() {}
	}
	dispose, _ := t.listeners.Once(func(struct{}) { fn() })
	t.mu.Unlock()
	return dispose
}

// Context derives a context that is cancelled when either parent is done or
// the token is cancelled.
func (t *Token) Context(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	dispose := t.OnCancel(func() { cancel(ErrCancelled) })
	return ctx, func() {
		dispose()
		cancel(context.Canceled)
	}
}

// bridge couples a token to one dispatch attempt. It fails synchronously if
// cancellation was already requested, before any transport resource exists.
// Otherwise the returned context is aborted with ErrCancelled as its cause
// when the token fires; release drops the subscription.
func bridge(ctx context.Context, token *Token, op string) (context.Context, func(), error) {
	if token.IsCancellationRequested() {
		return nil, nil, newError(KindCancelled, op, nil)
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, classify(op, ctx, err)
	}
	actx, cancel := context.WithCancelCause(ctx)
	dispose := token.OnCancel(func() { cancel(ErrCancelled) })
	var once sync.Once
	release := func() {
		once.Do(func() {
			dispose()
			cancel(context.Canceled)
		})
	}
	return actx, release, nil
}

// classify turns an error observed while ctx was active into a categorized
// error, preferring the reason ctx was aborted.
func classify(op string, ctx context.Context, err error) error {
	if e, ok := err.(*Error); ok {
		return e
	}
	if ctx != nil && ctx.Err() != nil {
		switch cause := context.Cause(ctx); {
		case cause == ErrCancelled:
			return newError(KindCancelled, op, nil)
		case cause == ErrTimeout:
			return newError(KindTimeout, op, nil)
		case ctx.Err() == context.DeadlineExceeded:
			return newError(KindTimeout, op, err)
		default:
			return newError(KindCancelled, op, err)
		}
	}
	return newError(KindTransport, op, err)
}
