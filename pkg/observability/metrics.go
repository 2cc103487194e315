package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/Sumatoshi-tech/locfang/pkg/counts"
)

const (
	metricFilesTotal      = "locfang.files.total"
	metricLinesTotal      = "locfang.lines.total"
	metricChangesTotal    = "locfang.changes.total"
	metricViolationsTotal = "locfang.threshold.violations.total"
	metricRunDuration     = "locfang.run.duration.seconds"

	attrOp        = "op"
	attrOutcome   = "outcome"
	attrKind      = "kind"
	attrDirection = "direction"
	attrStatus    = "status"

	// OpCount and OpDiff label the two kinds of runs.
	OpCount = "count"
	OpDiff  = "diff"
)

// durationBucketBoundaries covers 10ms to 600s, from a single file to a
// large monorepo.
var durationBucketBoundaries = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600}

// RunMetrics holds the instruments recorded once per count or diff run.
type RunMetrics struct {
	filesTotal      metric.Int64Counter
	linesTotal      metric.Int64Counter
	changesTotal    metric.Int64Counter
	violationsTotal metric.Int64Counter
	runDuration     metric.Float64Histogram
}

// NewRunMetrics creates the run instruments from mt.
func NewRunMetrics(mt metric.Meter) (*RunMetrics, error) {
	files, err := mt.Int64Counter(metricFilesTotal,
		metric.WithDescription("Files processed by outcome"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFilesTotal, err)
	}

	lines, err := mt.Int64Counter(metricLinesTotal,
		metric.WithDescription("Classified lines by kind"),
		metric.WithUnit("{line}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricLinesTotal, err)
	}

	changes, err := mt.Int64Counter(metricChangesTotal,
		metric.WithDescription("Changed paths by status"),
		metric.WithUnit("{path}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricChangesTotal, err)
	}

	violations, err := mt.Int64Counter(metricViolationsTotal,
		metric.WithDescription("Threshold violations"),
		metric.WithUnit("{violation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricViolationsTotal, err)
	}

	duration, err := mt.Float64Histogram(metricRunDuration,
		metric.WithDescription("Run duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRunDuration, err)
	}

	return &RunMetrics{
		filesTotal:      files,
		linesTotal:      lines,
		changesTotal:    changes,
		violationsTotal: violations,
		runDuration:     duration,
	}, nil
}

// RecordCount records a finished count run. Safe to call on a nil receiver.
func (rm *RunMetrics) RecordCount(ctx context.Context, res counts.AnalyzeResult, elapsed time.Duration) {
	if rm == nil {
		return
	}

	rm.recordFiles(ctx, OpCount, res.FilesAnalyzed, res.Skipped, int64(len(res.Failed)))

	rm.recordLines(ctx, OpCount, "", map[string]int64{
		"code":    res.Total.Code,
		"comment": res.Total.Comment,
		"blank":   res.Total.Blank,
	})

	rm.runDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String(attrOp, OpCount)))
}

// RecordDiff records a finished diff run. Safe to call on a nil receiver.
func (rm *RunMetrics) RecordDiff(ctx context.Context, res counts.DiffResult, violations int, elapsed time.Duration) {
	if rm == nil {
		return
	}

	rm.recordFiles(ctx, OpDiff, res.Total.Files, res.Skipped, int64(len(res.Failed)))

	rm.recordLines(ctx, OpDiff, "added", map[string]int64{
		"code":    res.Total.CodeAdded,
		"comment": res.Total.CommentAdded,
		"blank":   res.Total.BlankAdded,
	})
	rm.recordLines(ctx, OpDiff, "removed", map[string]int64{
		"code":    res.Total.CodeRemoved,
		"comment": res.Total.CommentRemoved,
		"blank":   res.Total.BlankRemoved,
	})

	for status, n := range map[string]int64{
		"added":    res.Status.Added,
		"deleted":  res.Status.Deleted,
		"modified": res.Status.Modified,
		"renamed":  res.Status.Renamed,
	} {
		rm.changesTotal.Add(ctx, n, metric.WithAttributes(attribute.String(attrStatus, status)))
	}

	rm.violationsTotal.Add(ctx, int64(violations))
	rm.runDuration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String(attrOp, OpDiff)))
}

func (rm *RunMetrics) recordFiles(ctx context.Context, op string, counted int64, skipped counts.Skipped, failed int64) {
	for outcome, n := range map[string]int64{
		"counted":    counted,
		"binary":     skipped.Binary,
		"unresolved": skipped.Unresolved,
		"failed":     failed,
	} {
		rm.filesTotal.Add(ctx, n, metric.WithAttributes(
			attribute.String(attrOp, op),
			attribute.String(attrOutcome, outcome),
		))
	}
}

func (rm *RunMetrics) recordLines(ctx context.Context, op, direction string, byKind map[string]int64) {
	for kind, n := range byKind {
		attrs := []attribute.KeyValue{attribute.String(attrOp, op), attribute.String(attrKind, kind)}
		if direction != "" {
			attrs = append(attrs, attribute.String(attrDirection, direction))
		}

		rm.linesTotal.Add(ctx, n, metric.WithAttributes(attrs...))
	}
}
