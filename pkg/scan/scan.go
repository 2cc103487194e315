// Package scan runs the file analyzer over many files with a bounded worker
// pool and reduces the per-worker results.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/locfang/pkg/analyzer"
	"github.com/Sumatoshi-tech/locfang/pkg/counts"
)

const tracerName = "github.com/Sumatoshi-tech/locfang/pkg/scan"

// Options configures a Scanner.
type Options struct {
	// Workers is the pool size; zero or less uses runtime.NumCPU.
	Workers int
	Walk    WalkOptions
	Logger  *slog.Logger
	Tracer  trace.Tracer
}

// Scanner counts lines over file sets. It is safe for concurrent use.
type Scanner struct {
	analyzer *analyzer.Analyzer
	workers  int
	walk     WalkOptions
	logger   *slog.Logger
	tracer   trace.Tracer
}

// New creates a scanner backed by a.
func New(a *analyzer.Analyzer, opts Options) *Scanner {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Scanner{
		analyzer: a,
		workers:  workers,
		walk:     opts.Walk,
		logger:   logger,
		tracer:   tracer,
	}
}

// Workers returns the pool size.
func (s *Scanner) Workers() int {
	return s.workers
}

// CountTree walks roots with the scanner's walk options and counts every
// collected file.
func (s *Scanner) CountTree(ctx context.Context, roots []string) (counts.AnalyzeResult, error) {
	ctx, span := s.tracer.Start(ctx, "locfang.scan.walk")

	files, err := Walk(ctx, roots, s.walk)

	span.SetAttributes(attribute.Int("locfang.files", len(files)))
	span.End()

	if err != nil {
		return counts.NewAnalyzeResult(), err
	}

	return s.Count(ctx, files)
}

// Count analyzes paths. Unreadable files are recorded in the result's
// failures and never stop the batch; the error is non-nil only when ctx is
// cancelled.
func (s *Scanner) Count(ctx context.Context, paths []string) (counts.AnalyzeResult, error) {
	ctx, span := s.tracer.Start(ctx, "locfang.scan.count",
		trace.WithAttributes(attribute.Int("locfang.files", len(paths)), attribute.Int("locfang.workers", s.workers)))
	defer span.End()

	workers := max(min(s.workers, len(paths)), 1)
	partials := make([]counts.AnalyzeResult, workers)
	jobs := make(chan string)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)

		for _, p := range paths {
			select {
			case jobs <- p:
			case <-gctx.Done():
				return gctx.Err()
			}
		}

		return nil
	})

	for w := range workers {
		g.Go(func() error {
			part := counts.NewAnalyzeResult()

			for p := range jobs {
				s.countOne(&part, p)
			}

			partials[w] = part

			return nil
		})
	}

	err := g.Wait()

	result := counts.NewAnalyzeResult()
	for _, part := range partials {
		result.Merge(part)
	}

	s.logger.Debug("scan finished",
		"files", len(paths), "workers", workers,
		"analyzed", result.FilesAnalyzed, "failed", len(result.Failed))

	if err != nil {
		span.RecordError(err)

		return result, fmt.Errorf("count: %w", err)
	}

	return result, nil
}

func (s *Scanner) countOne(part *counts.AnalyzeResult, path string) {
	res, err := s.analyzer.AnalyzePath(path)
	if err != nil {
		s.logger.Debug("file failed", "path", path, "error", err)
		part.AddFailure(path, err)

		return
	}

	switch res.Outcome {
	case analyzer.Counted:
		part.AddFile(res.Language, res.Counts)
	case analyzer.Binary:
		part.Skipped.Binary++
	case analyzer.Unresolved:
		part.Skipped.Unresolved++
	}
}
