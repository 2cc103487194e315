// Package analyzer resolves the language of a file, loads its content and
// produces its line counts.
package analyzer

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/src-d/enry/v2"

	"github.com/Sumatoshi-tech/locfang/pkg/classify"
	"github.com/Sumatoshi-tech/locfang/pkg/counts"
	"github.com/Sumatoshi-tech/locfang/pkg/languages"
	"github.com/Sumatoshi-tech/locfang/pkg/units"
)

// ErrRead wraps failures to open or read a file.
var ErrRead = errors.New("analyzer: read file")

// UnknownLanguage is the language name used for unresolved files counted
// under UnresolvedCount.
const UnknownLanguage = "Unknown"

// Defaults.
const (
	DefaultBinarySample  = 8 * units.KiB
	DefaultMmapThreshold = 8 * units.MiB
)

// Outcome describes what happened to a file.
type Outcome int

// Outcomes.
const (
	Counted Outcome = iota
	Binary
	Unresolved
)

func (o Outcome) String() string {
	switch o {
	case Counted:
		return "counted"
	case Binary:
		return "binary"
	case Unresolved:
		return "unresolved"
	default:
		return "unknown"
	}
}

// UnresolvedPolicy decides what happens to files without a known language.
type UnresolvedPolicy string

// Unresolved policies.
const (
	UnresolvedSkip  UnresolvedPolicy = "skip"
	UnresolvedCount UnresolvedPolicy = "count"
)

// Options configures an Analyzer.
type Options struct {
	Mode             classify.Mode
	MmapThreshold    int64
	DisableMmap      bool
	BinarySample     int
	Unresolved       UnresolvedPolicy
	LinguistFallback bool
	Logger           *slog.Logger
}

// DefaultOptions returns the default analyzer options.
func DefaultOptions() Options {
	return Options{
		Mode:          classify.ModeFull,
		MmapThreshold: DefaultMmapThreshold,
		BinarySample:  DefaultBinarySample,
		Unresolved:    UnresolvedSkip,
	}
}

// FileResult is the analysis of a single file.
type FileResult struct {
	Path     string
	Language string
	Counts   counts.FileCounts
	Outcome  Outcome
}

type mapFunc func(f *os.File, size int64) ([]byte, func() error, error)

// Analyzer classifies files. It is safe for concurrent use.
type Analyzer struct {
	registry *languages.Registry
	opts     Options
	logger   *slog.Logger
	mapFile  mapFunc
}

// New creates an analyzer. A nil registry uses languages.Default.
func New(registry *languages.Registry, opts Options) *Analyzer {
	if registry == nil {
		registry = languages.Default()
	}

	if opts.BinarySample <= 0 {
		opts.BinarySample = DefaultBinarySample
	}

	if opts.Unresolved == "" {
		opts.Unresolved = UnresolvedSkip
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Analyzer{
		registry: registry,
		opts:     opts,
		logger:   logger,
		mapFile:  mmapFile,
	}
}

// Registry returns the registry used for language resolution.
func (a *Analyzer) Registry() *languages.Registry {
	return a.registry
}

// AnalyzePath reads the file at path and analyzes it. Files at or above the
// mmap threshold are memory-mapped when possible.
func (a *Analyzer) AnalyzePath(path string) (FileResult, error) {
	content, release, err := a.load(path)
	if err != nil {
		return FileResult{Path: path}, err
	}

	defer release()

	return a.AnalyzeContent(content, path), nil
}

// AnalyzeContent analyzes content as if it were stored at pathHint.
func (a *Analyzer) AnalyzeContent(content []byte, pathHint string) FileResult {
	spec, name, ok := a.Resolve(content, pathHint)
	if !ok {
		return FileResult{Path: pathHint, Outcome: Unresolved}
	}

	res := a.AnalyzeContentAs(content, spec)
	res.Path = pathHint
	res.Language = name

	return res
}

// AnalyzeContentAs classifies content under a known spec. A nil spec counts
// every non-blank line as code.
func (a *Analyzer) AnalyzeContentAs(content []byte, spec *languages.LanguageSpec) FileResult {
	res := FileResult{Language: UnknownLanguage}
	if spec != nil {
		res.Language = spec.Name
	}

	if IsBinary(content, a.opts.BinarySample) {
		res.Outcome = Binary

		return res
	}

	res.Counts = classify.Classify(content, spec, a.opts.Mode)
	res.Outcome = Counted

	return res
}

// Resolve finds the language for content stored at pathHint. The returned
// spec is nil for unresolved files accepted by UnresolvedCount.
func (a *Analyzer) Resolve(content []byte, pathHint string) (*languages.LanguageSpec, string, bool) {
	if spec, ok := a.registry.Resolve(pathHint, languages.FirstLine(content)); ok {
		return spec, spec.Name, true
	}

	if a.opts.LinguistFallback {
		if spec, ok := a.linguist(content, pathHint); ok {
			return spec, spec.Name, true
		}
	}

	if a.opts.Unresolved == UnresolvedCount {
		return nil, UnknownLanguage, true
	}

	return nil, "", false
}

func (a *Analyzer) linguist(content []byte, pathHint string) (*languages.LanguageSpec, bool) {
	sample := content
	if len(sample) > a.opts.BinarySample {
		sample = sample[:a.opts.BinarySample]
	}

	name := enry.GetLanguage(filepath.Base(pathHint), sample)
	if name == "" {
		return nil, false
	}

	spec, ok := a.registry.Lookup(name)
	if ok {
		a.logger.Debug("language resolved by linguist", "path", pathHint, "language", name)
	}

	return spec, ok
}

func (a *Analyzer) load(path string) ([]byte, func(), error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w %s: %w", ErrRead, path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, nil, fmt.Errorf("%w %s: %w", ErrRead, path, err)
	}

	size := info.Size()

	if !a.opts.DisableMmap && a.opts.MmapThreshold > 0 && size >= a.opts.MmapThreshold {
		data, unmap, mapErr := a.mapFile(f, size)
		if mapErr == nil {
			return data, func() {
				if unmapErr := unmap(); unmapErr != nil {
					a.logger.Debug("munmap failed", "path", path, "error", unmapErr)
				}
			}, nil
		}

		a.logger.Debug("mmap failed, using buffered read", "path", path, "size", units.FormatSize(size), "error", mapErr)
	}

	var buf bytes.Buffer

	buf.Grow(int(min(size, int64(maxPrealloc))) + bytes.MinRead)

	_, err = buf.ReadFrom(f)
	if err != nil {
		return nil, nil, fmt.Errorf("%w %s: %w", ErrRead, path, err)
	}

	return buf.Bytes(), func() {}, nil
}

const maxPrealloc = 256 * units.MiB

// IsBinary reports whether the first sampleSize bytes of content contain a
// NUL byte or invalid UTF-8. A rune cut off by the sample boundary is not
// treated as invalid.
func IsBinary(content []byte, sampleSize int) bool {
	sample := content
	truncated := false

	if sampleSize > 0 && len(sample) > sampleSize {
		sample = sample[:sampleSize]
		truncated = true
	}

	if bytes.IndexByte(sample, 0) >= 0 {
		return true
	}

	if utf8.Valid(sample) {
		return false
	}

	if !truncated {
		return true
	}

	start := len(sample) - 1
	for start > 0 && len(sample)-start < utf8.UTFMax && !utf8.RuneStart(sample[start]) {
		start--
	}

	return utf8.FullRune(sample[start:]) || !utf8.Valid(sample[:start])
}
