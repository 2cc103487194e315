package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Sumatoshi-tech/locfang/pkg/config"
	"github.com/Sumatoshi-tech/locfang/pkg/report"
	"github.com/Sumatoshi-tech/locfang/pkg/scan"
)

// CountCommand holds the flags for the count command.
type CountCommand struct {
	global *globalOptions

	workers        int
	ultra          bool
	extensions     []string
	minSize        string
	maxSize        string
	skipVendor     bool
	skipEmpty      bool
	followSymlinks bool
	unresolved     string
	linguist       bool
	noMmap         bool
	format         string
	failOnError    bool
}

func newCountCommand(g *globalOptions) *cobra.Command {
	cc := &CountCommand{global: g}

	cmd := &cobra.Command{
		Use:   "count [paths...]",
		Short: "Count lines in files and directories",
		Long: `Count code, comment and blank lines per language.

Directories are walked recursively; version-control metadata directories
are always skipped. Without arguments the current directory is counted.`,
		RunE: cc.run,
	}

	cmd.Flags().IntVarP(&cc.workers, "workers", "j", 0, "Number of parallel workers (0 = use CPU count)")
	cmd.Flags().BoolVar(&cc.ultra, "ultra", false, "Skip comment detection and count non-blank lines as code")
	cmd.Flags().StringSliceVar(&cc.extensions, "ext", nil, "Only count files with these extensions (example: go,rs,py)")
	cmd.Flags().StringVar(&cc.minSize, "min-size", "", "Skip files smaller than this size (e.g., '1KiB')")
	cmd.Flags().StringVar(&cc.maxSize, "max-size", "", "Skip files larger than this size (e.g., '10MiB')")
	cmd.Flags().BoolVar(&cc.skipVendor, "skip-vendor", false, "Skip vendored and generated directories")
	cmd.Flags().BoolVar(&cc.skipEmpty, "skip-empty", false, "Skip empty files")
	cmd.Flags().BoolVar(&cc.followSymlinks, "follow-symlinks", false, "Follow symbolic links")
	cmd.Flags().StringVar(&cc.unresolved, "unresolved", "", "Files with unknown language: skip or count")
	cmd.Flags().BoolVar(&cc.linguist, "linguist", false, "Fall back to linguist detection for unknown files")
	cmd.Flags().BoolVar(&cc.noMmap, "no-mmap", false, "Always read files into memory")
	cmd.Flags().StringVarP(&cc.format, "format", "f", string(report.FormatTable), "Output format: table, json, csv, markdown")
	cmd.Flags().BoolVar(&cc.failOnError, "fail-on-error", false, "Exit non-zero when a file cannot be read")

	return cmd
}

// apply overrides config values with explicitly set flags.
func (cc *CountCommand) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("workers") {
		cfg.Analysis.Workers = cc.workers
	}

	if flags.Changed("ultra") {
		cfg.Analysis.Ultra = cc.ultra
	}

	if flags.Changed("no-mmap") {
		cfg.Analysis.Mmap = !cc.noMmap
	}

	if flags.Changed("unresolved") {
		cfg.Analysis.Unresolved = cc.unresolved
	}

	if flags.Changed("linguist") {
		cfg.Analysis.LinguistFallback = cc.linguist
	}

	if flags.Changed("ext") {
		cfg.Walk.Extensions = cc.extensions
	}

	if flags.Changed("min-size") {
		cfg.Walk.MinSize = cc.minSize
	}

	if flags.Changed("max-size") {
		cfg.Walk.MaxSize = cc.maxSize
	}

	if flags.Changed("skip-vendor") {
		cfg.Walk.SkipVendor = cc.skipVendor
	}

	if flags.Changed("skip-empty") {
		cfg.Walk.SkipEmpty = cc.skipEmpty
	}

	if flags.Changed("follow-symlinks") {
		cfg.Walk.FollowSymlinks = cc.followSymlinks
	}

	return cfg.Validate()
}

func (cc *CountCommand) run(cmd *cobra.Command, args []string) error {
	sess, err := cc.global.open(cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	err = cc.apply(cmd, sess.cfg)
	if err != nil {
		return err
	}

	writer, err := sess.writer(cmd, cc.format)
	if err != nil {
		return err
	}

	a, err := sess.analyzer()
	if err != nil {
		return err
	}

	walkOpts, err := sess.cfg.Walk.WalkOptions()
	if err != nil {
		return err
	}

	roots := args
	if len(roots) == 0 {
		roots = []string{"."}
	}

	scanner := scan.New(a, scan.Options{
		Workers: sess.cfg.Analysis.Workers,
		Walk:    walkOpts,
		Logger:  sess.logger,
		Tracer:  sess.providers.Tracer,
	})

	ctx, span := sess.providers.Tracer.Start(cmd.Context(), "locfang.count")
	defer span.End()

	start := time.Now()

	res, err := scanner.CountTree(ctx, roots)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count failed")

		return fmt.Errorf("count: %w", err)
	}

	elapsed := time.Since(start)

	span.SetAttributes(
		attribute.Int64("locfang.files", res.FilesAnalyzed),
		attribute.Int64("locfang.lines", res.Total.Total),
	)
	sess.providers.Metrics.RecordCount(ctx, res, elapsed)

	sess.logger.InfoContext(ctx, "count finished",
		"files", res.FilesAnalyzed,
		"lines", res.Total.Total,
		"skipped_binary", res.Skipped.Binary,
		"skipped_unresolved", res.Skipped.Unresolved,
		"failed", len(res.Failed),
		"workers", scanner.Workers(),
		"elapsed", elapsed)

	err = writer.Count(report.Count{Result: res, Elapsed: elapsed})
	if err != nil {
		return err
	}

	if cc.failOnError && len(res.Failed) > 0 {
		return fmt.Errorf("%w: %d file(s)", ErrFailures, len(res.Failed))
	}

	return nil
}
