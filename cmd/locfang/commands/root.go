// Package commands implements the locfang cobra commands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/locfang/pkg/analyzer"
	"github.com/Sumatoshi-tech/locfang/pkg/config"
	"github.com/Sumatoshi-tech/locfang/pkg/languages"
	"github.com/Sumatoshi-tech/locfang/pkg/observability"
	"github.com/Sumatoshi-tech/locfang/pkg/report"
	"github.com/Sumatoshi-tech/locfang/pkg/version"
)

// Sentinel errors returned by commands.
var (
	ErrThresholdExceeded = errors.New("diff thresholds exceeded")
	ErrFailures          = errors.New("some files could not be read")
	ErrExclusiveFlags    = errors.New("mutually exclusive flags")
)

// Process exit codes.
const (
	exitError     = 1
	exitThreshold = 2
)

// ExitCode maps a command error to the process exit status.
func ExitCode(err error) int {
	if errors.Is(err, ErrThresholdExceeded) {
		return exitThreshold
	}

	return exitError
}

type globalOptions struct {
	configPath  string
	verbose     bool
	quiet       bool
	logJSON     bool
	noColor     bool
	metricsFile string
}

// NewRootCommand builds the locfang command tree.
func NewRootCommand() *cobra.Command {
	g := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "locfang",
		Short: "Count lines of code and measure line deltas between git revisions",
		Long: `locfang classifies source lines as code, comment or blank.

Commands:
  count      Count lines in files and directories
  diff       Count line changes between two git snapshots
  languages  List the supported languages
  version    Show version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", "", "config file (default: .locfang.yaml in . or $HOME)")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVarP(&g.quiet, "quiet", "q", false, "suppress output")
	rootCmd.PersistentFlags().BoolVar(&g.logJSON, "log-json", false, "emit logs as JSON")
	rootCmd.PersistentFlags().BoolVar(&g.noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&g.metricsFile, "metrics-file", "", "write run metrics to this file in Prometheus text format")

	rootCmd.AddCommand(newCountCommand(g))
	rootCmd.AddCommand(newDiffCommand(g))
	rootCmd.AddCommand(newLanguagesCommand(g))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// session is the per-invocation state shared by the commands.
type session struct {
	cfg       *config.Config
	providers observability.Providers
	logger    *slog.Logger
	noColor   bool
}

func (g *globalOptions) open(cmd *cobra.Command) (*session, error) {
	if g.verbose && g.quiet {
		return nil, fmt.Errorf("%w: --verbose and --quiet", ErrExclusiveFlags)
	}

	cfg, err := config.LoadConfig(g.configPath)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("log-json") {
		cfg.Logging.JSON = g.logJSON
	}

	if cmd.Flags().Changed("metrics-file") {
		cfg.Telemetry.MetricsFile = g.metricsFile
	}

	obsCfg, err := cfg.Observability(version.Version)
	if err != nil {
		return nil, err
	}

	switch {
	case g.verbose:
		obsCfg.LogLevel = slog.LevelDebug
		obsCfg.DebugTrace = true
	case g.quiet:
		obsCfg.LogLevel = slog.LevelError
	}

	if os.Getenv("CI") != "" {
		obsCfg.Mode = observability.ModeCI
	}

	obsCfg.LogOutput = cmd.ErrOrStderr()

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	return &session{
		cfg:       cfg,
		providers: providers,
		logger:    providers.Logger,
		noColor:   g.noColor,
	}, nil
}

func (s *session) close() {
	err := s.providers.Shutdown(context.Background())
	if err != nil {
		s.logger.Warn("observability shutdown failed", "error", err)
	}
}

func (s *session) analyzer() (*analyzer.Analyzer, error) {
	opts, err := s.cfg.Analysis.AnalyzerOptions()
	if err != nil {
		return nil, err
	}

	opts.Logger = s.logger

	return analyzer.New(languages.Default(), opts), nil
}

func (s *session) writer(cmd *cobra.Command, format string) (*report.Writer, error) {
	f, err := report.ParseFormat(format)
	if err != nil {
		return nil, err
	}

	return report.New(cmd.OutOrStdout(), report.Options{Format: f, NoColor: s.noColor}), nil
}
