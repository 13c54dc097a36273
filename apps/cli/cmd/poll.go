package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/abdul-hamid-achik/hitreq/packages/core/config"
	"github.com/abdul-hamid-achik/hitreq/packages/db"
	"github.com/abdul-hamid-achik/hitreq/packages/http"
	"github.com/abdul-hamid-achik/hitreq/packages/poll"
	"github.com/apex/log"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

type pollOptions struct {
	requestFlags
	count       int
	duration    time.Duration
	concurrency int
	thresholds  string
	record      string
	prometheus  string
	jsonOut     bool
	watch       bool
}

func newPollCmd(root *rootOptions) *cobra.Command {
	opts := &pollOptions{}
	cmd := &cobra.Command{
		Use:   "poll <url>",
		Short: "Send a request repeatedly and summarize the outcomes",
		Long: `Send the same request repeatedly and report status counts and
latency percentiles.

Examples:
  # Ten requests, one at a time
  hitreq poll https://api.example.com/health

  # Poll for a minute with four requests in flight, at most 20 per second
  hitreq poll https://api.example.com/health --duration 1m -c 4 --rate 20

  # Fail CI when latency or errors regress
  hitreq poll https://api.example.com/health -n 200 --threshold "p95<200ms,errors<1%"

  # Record every outcome to SQLite and pick up config edits while running
  hitreq poll https://api.example.com/health --duration 10m --record polls.db --watch`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPoll(cmd, root, opts, args[0])
		},
	}

	opts.register(cmd.Flags())
	cmd.Flags().IntVarP(&opts.count, "count", "n", poll.DefaultConfig().Count, "Number of requests, 0 for no limit")
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "Stop starting requests after this long")
	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "c", 1, "Requests in flight at once")
	cmd.Flags().StringVar(&opts.thresholds, "threshold", "", "Pass/fail thresholds (e.g., \"p95<200ms,errors<1%\")")
	cmd.Flags().StringVar(&opts.record, "record", "", "Record every outcome to a SQLite database")
	cmd.Flags().StringVar(&opts.prometheus, "prometheus", "", "Write the summary to a file in Prometheus text format")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Output the summary as JSON")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Reload transport settings when the config file changes")
	return cmd
}

func runPoll(cmd *cobra.Command, root *rootOptions, opts *pollOptions, url string) error {
	s, err := newSession(root, &opts.requestFlags, cmd.Flags())
	if err != nil {
		return err
	}

	cfg := &poll.Config{Count: opts.count, Duration: opts.duration, Concurrency: opts.concurrency}
	if cmd.Flags().Changed("duration") && !cmd.Flags().Changed("count") {
		cfg.Count = 0
	}
	if cfg.Thresholds, err = poll.ParseThresholds(opts.thresholds); err != nil {
		return withExitCode(ExitUsageError, err)
	}
	if err := cfg.Validate(); err != nil {
		return withExitCode(ExitUsageError, err)
	}

	build := func(int) (*http.Request, error) {
		o, err := s.options(&opts.requestFlags, url, nil)
		if err != nil {
			return nil, err
		}
		return http.NewRequestFromOptions(o)
	}
	if _, err := build(0); err != nil {
		return withExitCode(ExitUsageError, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reporter := poll.NewReporter(
		poll.WithWriter(cmd.OutOrStdout()),
		poll.WithNoColor(root.noColor || s.cfg.GetNoColor()),
		poll.WithVerbose((root.verbose || s.cfg.GetVerbose()) && !opts.jsonOut),
	)
	pollerOpts := []poll.Option{
		poll.WithLogger(s.logger),
		poll.WithObserver(reporter.Outcome),
	}

	var runID string
	if opts.record != "" {
		rec, err := db.Open(opts.record)
		if err != nil {
			return withExitCode(ExitConfigError, err)
		}
		defer rec.Close()
		runID = uuid.NewString()
		pollerOpts = append(pollerOpts, poll.WithObserver(func(o poll.Outcome) {
			if err := rec.Record(context.Background(), sampleFrom(runID, o)); err != nil {
				s.logger.WithError(err).Warn("failed to record sample")
			}
		}))
	}

	p, err := poll.New(s.client, build, cfg, pollerOpts...)
	if err != nil {
		return withExitCode(ExitUsageError, err)
	}

	if opts.watch {
		if s.cfgPath == "" {
			return withExitCode(ExitUsageError, fmt.Errorf("--watch needs a config file"))
		}
		go watchConfig(ctx, s)
	}

	if !opts.jsonOut {
		reporter.Header(version, url, string(s.client.Platform()), cfg)
	}
	summary := p.Run(ctx)
	results := p.Metrics().EvaluateThresholds(cfg.Thresholds)

	if opts.jsonOut {
		if err := reporter.JSONSummary(summary, results); err != nil {
			return err
		}
	} else {
		reporter.Summary(summary, results)
	}
	if opts.prometheus != "" {
		if err := poll.WritePrometheus(opts.prometheus, summary); err != nil {
			return fmt.Errorf("cannot write metrics: %w", err)
		}
	}
	if runID != "" {
		s.logger.WithFields(log.Fields{
			"run":      runID,
			"database": opts.record,
		}).Info("recorded run")
	}

	for _, r := range results {
		if !r.Passed {
			return withExitCode(ExitFailure, nil)
		}
	}
	return nil
}

// watchConfig rebinds the client's transport settings whenever the config
// file changes. Flags given on the command line keep precedence.
func watchConfig(ctx context.Context, s *session) {
	err := config.Watch(ctx, s.cfgPath, func(c *config.Config, err error) {
		if err != nil {
			s.logger.WithError(err).Warn("config reload failed")
			return
		}
		settings := c.Merge(s.overlay).ToSettings(s.env)
		s.client.Configure(settings)
		s.logger.WithField("path", s.cfgPath).Info("config reloaded")
	})
	if err != nil {
		s.logger.WithError(err).Warn("config watch stopped")
	}
}

func sampleFrom(runID string, o poll.Outcome) db.Sample {
	sample := db.Sample{
		RunID:      runID,
		Seq:        o.Seq,
		StartedAt:  o.StartedAt,
		URL:        o.URL,
		Transport:  o.Transport,
		Status:     o.Status,
		Redirected: o.Redirected,
		Bytes:      o.Bytes,
		Latency:    o.Latency,
		ErrorKind:  o.ErrKind,
	}
	if o.Err != nil {
		sample.Error = o.Err.Error()
	}
	return sample
}
