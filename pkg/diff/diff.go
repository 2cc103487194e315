// Package diff computes per-language line deltas between two snapshots of a
// tree and checks them against configured ceilings.
package diff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/locfang/pkg/analyzer"
	"github.com/Sumatoshi-tech/locfang/pkg/counts"
	"github.com/Sumatoshi-tech/locfang/pkg/languages"
	"github.com/Sumatoshi-tech/locfang/pkg/vcs"
)

const tracerName = "github.com/Sumatoshi-tech/locfang/pkg/diff"

// ErrUnknownAttribution is returned by ParseAttribution.
var ErrUnknownAttribution = errors.New("diff: unknown attribution policy")

// Attribution selects which side of a modified or renamed path decides its
// language. Added paths always use the head and deleted paths the base.
type Attribution string

// Attribution policies.
const (
	AttributeHead Attribution = "head"
	AttributeBase Attribution = "base"
)

// ParseAttribution parses "head" or "base".
func ParseAttribution(s string) (Attribution, error) {
	switch Attribution(s) {
	case AttributeHead, "":
		return AttributeHead, nil
	case AttributeBase:
		return AttributeBase, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAttribution, s)
	}
}

// Options configures an Engine.
type Options struct {
	// Workers is the pool size; zero or less uses runtime.NumCPU.
	Workers     int
	Attribution Attribution
	// ByFile keeps every FileDelta in the result.
	ByFile bool
	Logger *slog.Logger
	Tracer trace.Tracer
}

// Engine turns a change list into a DiffResult.
type Engine struct {
	analyzer    *analyzer.Analyzer
	workers     int
	attribution Attribution
	byFile      bool
	logger      *slog.Logger
	tracer      trace.Tracer
}

// New creates an engine that classifies both sides with a.
func New(a *analyzer.Analyzer, opts Options) *Engine {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	attribution := opts.Attribution
	if attribution == "" {
		attribution = AttributeHead
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Engine{
		analyzer:    a,
		workers:     workers,
		attribution: attribution,
		byFile:      opts.ByFile,
		logger:      logger,
		tracer:      tracer,
	}
}

// Run processes changes against src. Content failures are recorded per path
// in the result; the error is non-nil only when ctx is cancelled.
func (e *Engine) Run(ctx context.Context, changes []vcs.Change, src vcs.ContentSource) (counts.DiffResult, error) {
	ctx, span := e.tracer.Start(ctx, "locfang.diff.run",
		trace.WithAttributes(attribute.Int("locfang.changes", len(changes)), attribute.Int("locfang.workers", e.workers)))
	defer span.End()

	workers := max(min(e.workers, len(changes)), 1)
	partials := make([]counts.DiffResult, workers)
	jobs := make(chan vcs.Change)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)

		for _, c := range changes {
			select {
			case jobs <- c:
			case <-gctx.Done():
				return gctx.Err()
			}
		}

		return nil
	})

	for w := range workers {
		g.Go(func() error {
			part := counts.NewDiffResult()

			for c := range jobs {
				e.process(gctx, &part, c, src)
			}

			partials[w] = part

			return nil
		})
	}

	err := g.Wait()

	result := counts.NewDiffResult()
	for _, part := range partials {
		result.Merge(part)
	}

	e.logger.Debug("diff finished",
		"changes", len(changes), "workers", workers,
		"files", result.Total.Files, "failed", len(result.Failed))

	if err != nil {
		span.RecordError(err)

		return result, fmt.Errorf("diff: %w", err)
	}

	return result, nil
}

// side is the content of one side of a change.
type side struct {
	data    []byte
	present bool
}

func (e *Engine) process(ctx context.Context, part *counts.DiffResult, c vcs.Change, src vcs.ContentSource) {
	var base, head side

	if c.Status != vcs.StatusAdded {
		data, ok, err := src.Content(ctx, vcs.Base, c.BasePath())
		if err != nil {
			e.fail(part, c, err)

			return
		}

		base = side{data: data, present: ok}
	}

	if c.Status != vcs.StatusDeleted {
		data, ok, err := src.Content(ctx, vcs.Head, c.Path)
		if err != nil {
			e.fail(part, c, err)

			return
		}

		head = side{data: data, present: ok}
	}

	spec, language, ok := e.resolve(c, base, head)

	part.Status.Record(c.Status)

	if !ok {
		e.logger.Debug("skipping unresolved path", "path", c.Path)
		part.Skipped.Unresolved++

		return
	}

	baseCounts, baseBinary := e.count(base, spec)
	headCounts, headBinary := e.count(head, spec)

	if (base.present || head.present) && (!base.present || baseBinary) && (!head.present || headBinary) {
		e.logger.Debug("skipping binary path", "path", c.Path)
		part.Skipped.Binary++

		return
	}

	part.AddDelta(counts.NewFileDelta(c, language, baseCounts, headCounts), e.byFile)
}

// resolve picks the language for the whole change from the attributed side,
// falling back to the other side when the attributed one is absent.
func (e *Engine) resolve(c vcs.Change, base, head side) (*languages.LanguageSpec, string, bool) {
	useBase := c.Status == vcs.StatusDeleted ||
		(c.Status != vcs.StatusAdded && e.attribution == AttributeBase)

	if useBase && !base.present && head.present {
		useBase = false
	}

	if !useBase && !head.present && base.present {
		useBase = true
	}

	if useBase {
		return e.analyzer.Resolve(base.data, c.BasePath())
	}

	return e.analyzer.Resolve(head.data, c.Path)
}

func (e *Engine) count(s side, spec *languages.LanguageSpec) (counts.FileCounts, bool) {
	if !s.present {
		return counts.FileCounts{}, false
	}

	res := e.analyzer.AnalyzeContentAs(s.data, spec)
	if res.Outcome == analyzer.Binary {
		return counts.FileCounts{}, true
	}

	return res.Counts, false
}

func (e *Engine) fail(part *counts.DiffResult, c vcs.Change, err error) {
	e.logger.Debug("content lookup failed", "path", c.Path, "error", err)
	part.AddFailure(c.Path, err)
}
