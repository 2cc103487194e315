// Package config loads locfang settings from defaults, an optional YAML
// file and LOCFANG_* environment variables.
package config

import (
	"errors"
	"fmt"
	"maps"
	"strings"

	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/locfang/pkg/analyzer"
	"github.com/Sumatoshi-tech/locfang/pkg/classify"
	"github.com/Sumatoshi-tech/locfang/pkg/diff"
	"github.com/Sumatoshi-tech/locfang/pkg/gitlib"
	"github.com/Sumatoshi-tech/locfang/pkg/observability"
	"github.com/Sumatoshi-tech/locfang/pkg/scan"
	"github.com/Sumatoshi-tech/locfang/pkg/units"
)

// Sentinel validation errors.
var (
	ErrInvalidWorkers         = errors.New("workers must not be negative")
	ErrInvalidUnresolved      = errors.New("unresolved policy must be skip or count")
	ErrInvalidThreshold       = errors.New("thresholds must not be negative")
	ErrInvalidRenameThreshold = errors.New("rename threshold must be between 0 and 100")
	ErrInvalidSizeRange       = errors.New("min size exceeds max size")
)

// Default configuration values.
const (
	DefaultConfigName      = ".locfang"
	DefaultMmapThreshold   = "8MiB"
	DefaultBinarySample    = "8KiB"
	DefaultRenameThreshold = gitlib.DefaultRenameThreshold
	envPrefix              = "LOCFANG"
	maxRenameThreshold     = 100
)

// Config holds all locfang configuration.
type Config struct {
	Analysis   AnalysisConfig   `mapstructure:"analysis"`
	Walk       WalkConfig       `mapstructure:"walk"`
	Diff       DiffConfig       `mapstructure:"diff"`
	Thresholds ThresholdsConfig `mapstructure:"thresholds"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// AnalysisConfig controls file classification.
type AnalysisConfig struct {
	Workers          int    `mapstructure:"workers"`
	Ultra            bool   `mapstructure:"ultra"`
	Mmap             bool   `mapstructure:"mmap"`
	MmapThreshold    string `mapstructure:"mmap_threshold"`
	BinarySample     string `mapstructure:"binary_sample"`
	Unresolved       string `mapstructure:"unresolved"`
	LinguistFallback bool   `mapstructure:"linguist_fallback"`
}

// WalkConfig filters the files collected by the count command.
type WalkConfig struct {
	Extensions     []string `mapstructure:"extensions"`
	MinSize        string   `mapstructure:"min_size"`
	MaxSize        string   `mapstructure:"max_size"`
	SkipVendor     bool     `mapstructure:"skip_vendor"`
	SkipEmpty      bool     `mapstructure:"skip_empty"`
	FollowSymlinks bool     `mapstructure:"follow_symlinks"`
}

// DiffConfig controls the diff command.
type DiffConfig struct {
	Attribution      string `mapstructure:"attribution"`
	ByFile           bool   `mapstructure:"by_file"`
	FailOnThreshold  bool   `mapstructure:"fail_on_threshold"`
	FailOnError      bool   `mapstructure:"fail_on_error"`
	DetectRenames    bool   `mapstructure:"detect_renames"`
	RenameThreshold  int    `mapstructure:"rename_threshold"`
	IncludeUntracked bool   `mapstructure:"include_untracked"`
}

// ThresholdsConfig holds diff ceilings; zero disables a ceiling. Language
// keys are lowercased by the loader and matched case-insensitively.
type ThresholdsConfig struct {
	MaxCodeAdded    int64            `mapstructure:"max_code_added"`
	MaxTotalChanged int64            `mapstructure:"max_total_changed"`
	MaxFiles        int64            `mapstructure:"max_files"`
	Languages       map[string]int64 `mapstructure:"languages"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
	OTLPHeaders  string  `mapstructure:"otlp_headers"`
	Environment  string  `mapstructure:"environment"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	MetricsFile  string  `mapstructure:"metrics_file"`
}

// LoadConfig loads configuration. An empty configPath searches for
// .locfang.yaml in the working directory and then $HOME; a missing file is
// not an error. An explicit path must exist.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(DefaultConfigName)
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("$HOME")
	}

	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viperCfg.AutomaticEnv()

	// The standard OTLP variable applies when the prefixed one is unset.
	bindErr := viperCfg.BindEnv("telemetry.otlp_endpoint",
		envPrefix+"_TELEMETRY_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	if bindErr != nil {
		return nil, fmt.Errorf("bind otlp endpoint env: %w", bindErr)
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := config.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// Default returns the configuration used when nothing is configured.
func Default() *Config {
	viperCfg := viper.New()
	setDefaults(viperCfg)

	var config Config

	// Defaults always decode.
	_ = viperCfg.Unmarshal(&config)

	return &config
}

func setDefaults(viperCfg *viper.Viper) {
	// Analysis defaults.
	viperCfg.SetDefault("analysis.workers", 0)
	viperCfg.SetDefault("analysis.ultra", false)
	viperCfg.SetDefault("analysis.mmap", true)
	viperCfg.SetDefault("analysis.mmap_threshold", DefaultMmapThreshold)
	viperCfg.SetDefault("analysis.binary_sample", DefaultBinarySample)
	viperCfg.SetDefault("analysis.unresolved", string(analyzer.UnresolvedSkip))
	viperCfg.SetDefault("analysis.linguist_fallback", false)

	// Walk defaults.
	viperCfg.SetDefault("walk.extensions", []string{})
	viperCfg.SetDefault("walk.min_size", "0")
	viperCfg.SetDefault("walk.max_size", "0")
	viperCfg.SetDefault("walk.skip_vendor", false)
	viperCfg.SetDefault("walk.skip_empty", false)
	viperCfg.SetDefault("walk.follow_symlinks", false)

	// Diff defaults.
	viperCfg.SetDefault("diff.attribution", string(diff.AttributeHead))
	viperCfg.SetDefault("diff.by_file", false)
	viperCfg.SetDefault("diff.fail_on_threshold", false)
	viperCfg.SetDefault("diff.fail_on_error", false)
	viperCfg.SetDefault("diff.detect_renames", true)
	viperCfg.SetDefault("diff.rename_threshold", DefaultRenameThreshold)
	viperCfg.SetDefault("diff.include_untracked", false)

	// Threshold defaults.
	viperCfg.SetDefault("thresholds.max_code_added", 0)
	viperCfg.SetDefault("thresholds.max_total_changed", 0)
	viperCfg.SetDefault("thresholds.max_files", 0)
	viperCfg.SetDefault("thresholds.languages", map[string]int64{})

	// Logging defaults.
	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.json", false)

	// Telemetry defaults.
	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.environment", "")
	viperCfg.SetDefault("telemetry.sample_ratio", 0.0)
	viperCfg.SetDefault("telemetry.metrics_file", "")
}

// Validate checks every section.
func (c *Config) Validate() error {
	_, err := c.Analysis.AnalyzerOptions()
	if err != nil {
		return err
	}

	if c.Analysis.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Analysis.Workers)
	}

	_, err = c.Walk.WalkOptions()
	if err != nil {
		return err
	}

	_, err = diff.ParseAttribution(c.Diff.Attribution)
	if err != nil {
		return err
	}

	if c.Diff.RenameThreshold < 0 || c.Diff.RenameThreshold > maxRenameThreshold {
		return fmt.Errorf("%w: %d", ErrInvalidRenameThreshold, c.Diff.RenameThreshold)
	}

	err = c.Thresholds.validate()
	if err != nil {
		return err
	}

	_, err = observability.ParseLogLevel(c.Logging.Level)

	return err
}

// AnalyzerOptions converts the analysis section.
func (c AnalysisConfig) AnalyzerOptions() (analyzer.Options, error) {
	opts := analyzer.DefaultOptions()

	if c.Ultra {
		opts.Mode = classify.ModeUltra
	}

	opts.DisableMmap = !c.Mmap
	opts.LinguistFallback = c.LinguistFallback

	switch analyzer.UnresolvedPolicy(c.Unresolved) {
	case analyzer.UnresolvedSkip, "":
		opts.Unresolved = analyzer.UnresolvedSkip
	case analyzer.UnresolvedCount:
		opts.Unresolved = analyzer.UnresolvedCount
	default:
		return opts, fmt.Errorf("%w: %q", ErrInvalidUnresolved, c.Unresolved)
	}

	threshold, err := units.ParseSize(c.MmapThreshold)
	if err != nil {
		return opts, fmt.Errorf("analysis.mmap_threshold: %w", err)
	}

	if threshold > 0 {
		opts.MmapThreshold = threshold
	}

	sample, err := units.ParseSize(c.BinarySample)
	if err != nil {
		return opts, fmt.Errorf("analysis.binary_sample: %w", err)
	}

	if sample > 0 {
		opts.BinarySample = int(min(sample, int64(units.GiB)))
	}

	return opts, nil
}

// WalkOptions converts the walk section.
func (c WalkConfig) WalkOptions() (scan.WalkOptions, error) {
	minSize, err := units.ParseSize(c.MinSize)
	if err != nil {
		return scan.WalkOptions{}, fmt.Errorf("walk.min_size: %w", err)
	}

	maxSize, err := units.ParseSize(c.MaxSize)
	if err != nil {
		return scan.WalkOptions{}, fmt.Errorf("walk.max_size: %w", err)
	}

	if maxSize > 0 && minSize > maxSize {
		return scan.WalkOptions{}, fmt.Errorf("%w: %d > %d", ErrInvalidSizeRange, minSize, maxSize)
	}

	return scan.WalkOptions{
		Extensions:     scan.NormalizeExtensions(c.Extensions),
		MinSize:        minSize,
		MaxSize:        maxSize,
		SkipVendor:     c.SkipVendor,
		SkipEmpty:      c.SkipEmpty,
		FollowSymlinks: c.FollowSymlinks,
	}, nil
}

// DiffOptions converts the rename settings of the diff section.
func (c DiffConfig) DiffOptions() gitlib.DiffOptions {
	return gitlib.DiffOptions{
		DetectRenames:    c.DetectRenames,
		RenameThreshold:  c.RenameThreshold,
		IncludeUntracked: c.IncludeUntracked,
	}
}

// Thresholds converts the thresholds section.
func (c ThresholdsConfig) Thresholds() diff.Thresholds {
	return diff.Thresholds{
		MaxCodeAdded:    c.MaxCodeAdded,
		MaxTotalChanged: c.MaxTotalChanged,
		MaxFiles:        c.MaxFiles,
		Languages:       maps.Clone(c.Languages),
	}
}

func (c ThresholdsConfig) validate() error {
	if c.MaxCodeAdded < 0 || c.MaxTotalChanged < 0 || c.MaxFiles < 0 {
		return ErrInvalidThreshold
	}

	for name, limit := range c.Languages {
		if limit < 0 {
			return fmt.Errorf("%w: %s", ErrInvalidThreshold, name)
		}
	}

	return nil
}

// Observability builds the telemetry and logging configuration.
func (c *Config) Observability(serviceVersion string) (observability.Config, error) {
	cfg := observability.DefaultConfig()

	level, err := observability.ParseLogLevel(c.Logging.Level)
	if err != nil {
		return cfg, err
	}

	cfg.ServiceVersion = serviceVersion
	cfg.LogLevel = level
	cfg.LogJSON = c.Logging.JSON
	cfg.OTLPEndpoint = c.Telemetry.OTLPEndpoint
	cfg.OTLPInsecure = c.Telemetry.OTLPInsecure
	cfg.OTLPHeaders = observability.ParseOTLPHeaders(c.Telemetry.OTLPHeaders)
	cfg.Environment = c.Telemetry.Environment
	cfg.SampleRatio = c.Telemetry.SampleRatio
	cfg.MetricsFile = c.Telemetry.MetricsFile

	return cfg, nil
}
