package commands

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/locfang/pkg/config"
	"github.com/Sumatoshi-tech/locfang/pkg/diff"
	"github.com/Sumatoshi-tech/locfang/pkg/gitlib"
	"github.com/Sumatoshi-tech/locfang/pkg/report"
)

// DiffCommand holds the flags for the diff command.
type DiffCommand struct {
	global *globalOptions

	repo        string
	base        string
	head        string
	mergeBase   string
	staged      bool
	workingTree bool
	root        bool

	workers          int
	ultra            bool
	extensions       []string
	unresolved       string
	linguist         bool
	attribution      string
	byFile           bool
	noRenames        bool
	renameThreshold  int
	includeUntracked bool

	maxCodeAdded     int64
	maxCodeAddedLang []string
	maxTotalChanged  int64
	maxFiles         int64
	failOnThreshold  bool
	failOnError      bool

	format string
}

func newDiffCommand(g *globalOptions) *cobra.Command {
	dc := &DiffCommand{global: g}

	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Count line changes between two git snapshots",
		Long: `Count the code, comment and blank line delta per language between two
snapshots of a git repository.

By default HEAD~1 is compared with HEAD. Use --staged for HEAD against the
index, --working-tree for the index against the working tree, or --root to
compare HEAD against the empty tree.`,
		Args: cobra.NoArgs,
		RunE: dc.run,
	}

	cmd.Flags().StringVar(&dc.repo, "repo", ".", "Path inside the git repository")
	cmd.Flags().StringVar(&dc.base, "base", "", "Base revision (default: HEAD~1)")
	cmd.Flags().StringVar(&dc.head, "head", "", "Head revision (default: HEAD)")
	cmd.Flags().StringVar(&dc.mergeBase, "merge-base", "", "Use the merge base of this revision and the head as base")
	cmd.Flags().BoolVar(&dc.staged, "staged", false, "Compare HEAD with the index")
	cmd.Flags().BoolVar(&dc.workingTree, "working-tree", false, "Compare the index with the working tree")
	cmd.Flags().BoolVar(&dc.root, "root", false, "Compare the head against the empty tree")

	cmd.Flags().IntVarP(&dc.workers, "workers", "j", 0, "Number of parallel workers (0 = use CPU count)")
	cmd.Flags().BoolVar(&dc.ultra, "ultra", false, "Skip comment detection and count non-blank lines as code")
	cmd.Flags().StringSliceVar(&dc.extensions, "ext", nil, "Only count paths with these extensions (example: go,rs,py)")
	cmd.Flags().StringVar(&dc.unresolved, "unresolved", "", "Paths with unknown language: skip or count")
	cmd.Flags().BoolVar(&dc.linguist, "linguist", false, "Fall back to linguist detection for unknown files")
	cmd.Flags().StringVar(&dc.attribution, "attribution", "", "Side whose language a modified path is counted under: head or base")
	cmd.Flags().BoolVar(&dc.byFile, "by-file", false, "Include a per-file breakdown")
	cmd.Flags().BoolVar(&dc.noRenames, "no-renames", false, "Disable rename detection")
	cmd.Flags().IntVar(&dc.renameThreshold, "rename-threshold", config.DefaultRenameThreshold, "Similarity percentage for rename detection")
	cmd.Flags().BoolVar(&dc.includeUntracked, "include-untracked", false, "Count untracked files in --working-tree mode")

	cmd.Flags().Int64Var(&dc.maxCodeAdded, "max-code-added", 0, "Ceiling for code lines added (0 = disabled)")
	cmd.Flags().StringArrayVar(&dc.maxCodeAddedLang, "max-code-added-lang", nil, "Per-language ceiling for code lines added, as Language:N (repeatable)")
	cmd.Flags().Int64Var(&dc.maxTotalChanged, "max-total-changed", 0, "Ceiling for the absolute net line change (0 = disabled)")
	cmd.Flags().Int64Var(&dc.maxFiles, "max-files", 0, "Ceiling for counted paths (0 = disabled)")
	cmd.Flags().BoolVar(&dc.failOnThreshold, "fail-on-threshold", false, "Exit non-zero when a threshold is exceeded")
	cmd.Flags().BoolVar(&dc.failOnError, "fail-on-error", false, "Exit non-zero when a path's content cannot be read")

	cmd.Flags().StringVarP(&dc.format, "format", "f", string(report.FormatTable), "Output format: table, json, csv, markdown")

	return cmd
}

// target builds the snapshot selection from the mode flags.
func (dc *DiffCommand) target() (gitlib.Target, error) {
	if dc.staged && dc.workingTree {
		return gitlib.Target{}, fmt.Errorf("%w: --staged and --working-tree", ErrExclusiveFlags)
	}

	if dc.mergeBase != "" && dc.base != "" {
		return gitlib.Target{}, fmt.Errorf("%w: --merge-base and --base", ErrExclusiveFlags)
	}

	t := gitlib.Target{Mode: gitlib.ModeRange, Base: dc.base, Head: dc.head, EmptyBase: dc.root}

	if dc.mergeBase != "" {
		t.Base = dc.mergeBase
		t.MergeBase = true
	}

	switch {
	case dc.staged:
		t.Mode = gitlib.ModeStaged
	case dc.workingTree:
		t.Mode = gitlib.ModeWorktree
	}

	return t, t.Validate()
}

// apply overrides config values with explicitly set flags.
func (dc *DiffCommand) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()

	if flags.Changed("workers") {
		cfg.Analysis.Workers = dc.workers
	}

	if flags.Changed("ultra") {
		cfg.Analysis.Ultra = dc.ultra
	}

	if flags.Changed("unresolved") {
		cfg.Analysis.Unresolved = dc.unresolved
	}

	if flags.Changed("linguist") {
		cfg.Analysis.LinguistFallback = dc.linguist
	}

	if flags.Changed("ext") {
		cfg.Walk.Extensions = dc.extensions
	}

	if flags.Changed("attribution") {
		cfg.Diff.Attribution = dc.attribution
	}

	if flags.Changed("by-file") {
		cfg.Diff.ByFile = dc.byFile
	}

	if flags.Changed("no-renames") {
		cfg.Diff.DetectRenames = !dc.noRenames
	}

	if flags.Changed("rename-threshold") {
		cfg.Diff.RenameThreshold = dc.renameThreshold
	}

	if flags.Changed("include-untracked") {
		cfg.Diff.IncludeUntracked = dc.includeUntracked
	}

	if flags.Changed("fail-on-threshold") {
		cfg.Diff.FailOnThreshold = dc.failOnThreshold
	}

	if flags.Changed("fail-on-error") {
		cfg.Diff.FailOnError = dc.failOnError
	}

	if flags.Changed("max-code-added") {
		cfg.Thresholds.MaxCodeAdded = dc.maxCodeAdded
	}

	if flags.Changed("max-total-changed") {
		cfg.Thresholds.MaxTotalChanged = dc.maxTotalChanged
	}

	if flags.Changed("max-files") {
		cfg.Thresholds.MaxFiles = dc.maxFiles
	}

	if len(dc.maxCodeAddedLang) > 0 {
		limits, err := diff.ParseLanguageLimits(dc.maxCodeAddedLang)
		if err != nil {
			return err
		}

		merged := maps.Clone(cfg.Thresholds.Languages)
		if merged == nil {
			merged = make(map[string]int64, len(limits))
		}

		for name, limit := range limits {
			merged[strings.ToLower(name)] = limit
		}

		cfg.Thresholds.Languages = merged
	}

	return cfg.Validate()
}

func (dc *DiffCommand) run(cmd *cobra.Command, _ []string) error {
	target, err := dc.target()
	if err != nil {
		return err
	}

	sess, err := dc.global.open(cmd)
	if err != nil {
		return err
	}
	defer sess.close()

	err = dc.apply(cmd, sess.cfg)
	if err != nil {
		return err
	}

	writer, err := sess.writer(cmd, dc.format)
	if err != nil {
		return err
	}

	a, err := sess.analyzer()
	if err != nil {
		return err
	}

	attribution, err := diff.ParseAttribution(sess.cfg.Diff.Attribution)
	if err != nil {
		return err
	}

	repo, err := gitlib.DiscoverRepository(dc.repo)
	if err != nil {
		return err
	}
	defer repo.Free()

	thresholds := sess.cfg.Thresholds.Thresholds()

	ctx, span := sess.providers.Tracer.Start(cmd.Context(), "locfang.diff",
		trace.WithAttributes(
			attribute.String("locfang.mode", target.Mode.String()),
			attribute.Bool("locfang.thresholds", thresholds.Enabled()),
		))
	defer span.End()

	start := time.Now()

	plan, err := repo.Prepare(target, sess.cfg.Diff.DiffOptions())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "prepare failed")

		return fmt.Errorf("diff: %w", err)
	}
	defer plan.Free()

	changes := diff.FilterExtensions(plan.Changes, sess.cfg.Walk.Extensions)

	sess.logger.DebugContext(ctx, "diff planned",
		"repo", repo.Path(), "base", plan.Base, "head", plan.Head, "changes", len(plan.Changes), "selected", len(changes))

	engine := diff.New(a, diff.Options{
		Workers:     sess.cfg.Analysis.Workers,
		Attribution: attribution,
		ByFile:      sess.cfg.Diff.ByFile,
		Logger:      sess.logger,
		Tracer:      sess.providers.Tracer,
	})

	res, err := engine.Run(ctx, changes, plan.Source)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "diff failed")

		return err
	}

	var violations []diff.Violation
	if thresholds.Enabled() {
		violations = thresholds.Evaluate(res)
	}

	failing := sess.cfg.Diff.FailOnThreshold && len(violations) > 0
	elapsed := time.Since(start)

	span.SetAttributes(
		attribute.Int64("locfang.code_added", res.Total.CodeAdded),
		attribute.Int64("locfang.code_removed", res.Total.CodeRemoved),
		attribute.Int("locfang.violations", len(violations)),
	)
	sess.providers.Metrics.RecordDiff(ctx, res, len(violations), elapsed)

	sess.logger.InfoContext(ctx, "diff finished",
		"base", plan.Base,
		"head", plan.Head,
		"paths", res.Status.Sum(),
		"code_added", res.Total.CodeAdded,
		"code_removed", res.Total.CodeRemoved,
		"net", res.Total.Total,
		"failed", len(res.Failed),
		"elapsed", elapsed)

	if !failing {
		for _, v := range violations {
			sess.logger.WarnContext(ctx, "threshold exceeded", "violation", v.String())
		}
	}

	err = writer.Diff(report.Diff{
		Base:       plan.Base,
		Head:       plan.Head,
		Result:     res,
		Violations: violations,
		Failing:    failing,
		Elapsed:    elapsed,
	})
	if err != nil {
		return err
	}

	if failing {
		span.SetStatus(codes.Error, "thresholds exceeded")

		return fmt.Errorf("%w: %d violation(s)", ErrThresholdExceeded, len(violations))
	}

	if sess.cfg.Diff.FailOnError && len(res.Failed) > 0 {
		span.SetStatus(codes.Error, "unreadable paths")

		return fmt.Errorf("%w: %d path(s)", ErrFailures, len(res.Failed))
	}

	return nil
}
