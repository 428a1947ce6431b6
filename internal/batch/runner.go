// Package batch runs the bounce processor over every message of a source and keeps
// the output in source order.
package batch

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.io/infrasutra/bouncecsv/internal/bounce"
	"github.io/infrasutra/bouncecsv/internal/mailsource"
	"github.io/infrasutra/bouncecsv/internal/metrics"
)

// Failure is a message that could not be loaded.
type Failure struct {
	Name string
	Err  error
}

// Result holds one record per loaded message, in source order.
type Result struct {
	Records  []bounce.Record
	Failures []Failure
}

type Runner struct {
	processor *bounce.Processor
	logger    *slog.Logger
	workers   int
}

// New returns a runner; workers <= 1 processes messages sequentially.
func New(processor *bounce.Processor, logger *slog.Logger, workers int) *Runner {
	if workers < 1 {
		workers = 1
	}
	return &Runner{processor: processor, logger: logger, workers: workers}
}

func (r *Runner) ParseFile(ctx context.Context, path string) (Result, error) {
	return r.Run(ctx, mailsource.File(path))
}

func (r *Runner) ParseDirectory(ctx context.Context, path string) (Result, error) {
	return r.Run(ctx, mailsource.Directory(path))
}

// Run loads src and processes every message. Only a failure to load the source as
// a whole is returned; unreadable messages are reported in Result.Failures.
func (r *Runner) Run(ctx context.Context, src mailsource.Source) (Result, error) {
	start := time.Now()
	entries, err := src.Load(ctx)
	if err != nil {
		return Result{}, err
	}

	results := make([]*bounce.Result, len(entries))
	var failures []Failure

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, entry := range entries {
		if entry.Err != nil {
			r.logger.Warn("skip message", "source", src.Name(), "message", entry.Message.Name, "error", entry.Err)
			metrics.MessagesFailed.WithLabelValues(src.Kind()).Inc()
			failures = append(failures, Failure{Name: entry.Message.Name, Err: entry.Err})
			continue
		}
		i, entry := i, entry
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res := r.processor.Analyze(entry.Message.RawMessage())
			results[i] = &res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	out := Result{Records: make([]bounce.Record, 0, len(entries)), Failures: failures}
	for _, res := range results {
		if res == nil {
			continue
		}
		metrics.Observe(metrics.Outcome{
			Code:       res.Record.Code,
			Diagnostic: res.Diagnostic,
			Matched:    res.Matched,
			Resolved:   res.Resolved,
		})
		out.Records = append(out.Records, res.Record)
	}

	metrics.BatchDuration.WithLabelValues(src.Kind()).Observe(time.Since(start).Seconds())
	r.logger.Info("batch processed",
		"source", src.Name(),
		"records", len(out.Records),
		"failed", len(out.Failures),
		"duration", time.Since(start),
	)
	return out, nil
}
