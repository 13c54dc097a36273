package poll

import (
	"context"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/hitreq/packages/http"
	"github.com/apex/log"
)

// Outcome is the result of one polled request. Status is 0 when the
// dispatch failed before a response arrived.
type Outcome struct {
	Seq        int
	StartedAt  time.Time
	URL        string
	Transport  string
	Status     int
	Redirected bool
	Bytes      int64
	Latency    time.Duration
	ErrKind    string
	Err        error
}

// RequestFunc builds the request of one iteration. It is called once per
// iteration so that expanded values such as {{uuid}} differ every time.
type RequestFunc func(seq int) (*http.Request, error)

// Poller repeats one request through an http.Client.
type Poller struct {
	client    *http.Client
	build     RequestFunc
	config    *Config
	metrics   *Metrics
	logger    log.Interface
	observers []func(Outcome)
	sem       chan struct{} // semaphore for max concurrency
}

// Option configures the poller
type Option func(*Poller)

// WithLogger sets the logger
func WithLogger(logger log.Interface) Option {
	return func(p *Poller) {
		p.logger = logger
	}
}

// WithObserver registers fn to receive every outcome. Observers may be
// called concurrently when Concurrency is above one.
func WithObserver(fn func(Outcome)) Option {
	return func(p *Poller) {
		p.observers = append(p.observers, fn)
	}
}

// New creates a poller. The config is validated here so Run cannot fail on
// bad limits.
func New(client *http.Client, build RequestFunc, config *Config, opts ...Option) (*Poller, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	p := &Poller{
		client:  client,
		build:   build,
		config:  config,
		metrics: NewMetrics(),
		logger:  log.Log,
		sem:     make(chan struct{}, config.Concurrency),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Metrics returns the live metrics of the run
func (p *Poller) Metrics() *Metrics {
	return p.metrics
}

// Run polls until Count requests completed, Duration elapsed or ctx is
// done. Requests already in flight when the duration elapses are allowed
// to finish; those aborted by ctx are not counted.
func (p *Poller) Run(ctx context.Context) *Summary {
	p.metrics.Start()

	schedule := ctx
	if p.config.Duration > 0 {
		var cancel context.CancelFunc
		schedule, cancel = context.WithTimeout(ctx, p.config.Duration)
		defer cancel()
	}

	var wg sync.WaitGroup
	for seq := 1; p.config.Count == 0 || seq <= p.config.Count; seq++ {
		if !p.acquire(schedule) {
			break
		}

		wg.Add(1)
		go func(seq int) {
			defer wg.Done()
			defer func() { <-p.sem }()

			o := p.once(ctx, seq)
			if ctx.Err() != nil && o.Err != nil {
				return
			}
			p.metrics.Record(o)
			for _, fn := range p.observers {
				fn(o)
			}
		}(seq)
	}
	wg.Wait()

	p.metrics.Stop()
	return p.metrics.GetSummary()
}

// acquire takes a concurrency slot, or reports false once ctx is done.
func (p *Poller) acquire(ctx context.Context) bool {
	select {
	case p.sem <- struct{}{}:
		if ctx.Err() != nil {
			<-p.sem
			return false
		}
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *Poller) once(ctx context.Context, seq int) Outcome {
	o := Outcome{Seq: seq, StartedAt: time.Now(), Transport: string(p.client.Platform())}

	req, err := p.build(seq)
	if err != nil {
		o.Err = err
		o.ErrKind = http.KindOf(err).String()
		return o
	}
	o.URL = req.URL

	resp, err := p.client.Do(ctx, req)
	if err != nil {
		o.Latency = time.Since(o.StartedAt)
		o.Err = err
		o.ErrKind = http.KindOf(err).String()
		p.logger.WithError(err).WithField("seq", seq).Debug("poll failed")
		return o
	}
	defer resp.Dispose()

	o.Status = resp.Status
	o.Redirected = resp.Redirected
	body, err := resp.Bytes(ctx)
	o.Latency = time.Since(o.StartedAt)
	if err != nil {
		o.Err = err
		o.ErrKind = http.KindOf(err).String()
		return o
	}
	o.Bytes = int64(len(body.UnwrapOr(nil)))

	p.logger.WithFields(log.Fields{
		"seq":     seq,
		"status":  o.Status,
		"latency": o.Latency.String(),
	}).Debug("poll")
	return o
}
