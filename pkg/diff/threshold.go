package diff

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/locfang/pkg/counts"
)

// ErrInvalidLimit is returned for malformed per-language limits.
var ErrInvalidLimit = errors.New("diff: invalid language limit")

// Scope says whether a violation concerns the whole diff or one language.
type Scope string

// Violation scopes.
const (
	ScopeGlobal   Scope = "global"
	ScopeLanguage Scope = "language"
)

// Metric names the measured quantity of a violation.
type Metric string

// Threshold metrics.
const (
	// MetricCodeAdded sums the positive part of every file's code delta.
	MetricCodeAdded Metric = "code_added"
	// MetricTotalChanged is the absolute net total delta.
	MetricTotalChanged Metric = "total_changed"
	// MetricFiles counts files with a computed delta.
	MetricFiles Metric = "files"
)

// Thresholds are ceilings on a DiffResult. A zero or negative ceiling is
// disabled, so the zero value checks nothing.
type Thresholds struct {
	MaxCodeAdded    int64
	MaxTotalChanged int64
	MaxFiles        int64
	// Languages maps a language name, matched case-insensitively, to its
	// code_added ceiling.
	Languages map[string]int64
}

// Violation describes one exceeded ceiling.
type Violation struct {
	Scope    Scope  `json:"scope"`
	Language string `json:"language,omitempty"`
	Metric   Metric `json:"metric"`
	Limit    int64  `json:"limit"`
	Actual   int64  `json:"actual"`
}

func (v Violation) String() string {
	if v.Scope == ScopeLanguage {
		return fmt.Sprintf("%s %s %d exceeds threshold %d", v.Language, v.Metric, v.Actual, v.Limit)
	}

	return fmt.Sprintf("%s %d exceeds threshold %d", v.Metric, v.Actual, v.Limit)
}

// Enabled reports whether any ceiling is set.
func (t Thresholds) Enabled() bool {
	if t.MaxCodeAdded > 0 || t.MaxTotalChanged > 0 || t.MaxFiles > 0 {
		return true
	}

	for _, limit := range t.Languages {
		if limit > 0 {
			return true
		}
	}

	return false
}

// Evaluate returns the violated ceilings of r: global ones first, then
// per-language ones ordered by language name.
func (t Thresholds) Evaluate(r counts.DiffResult) []Violation {
	var out []Violation

	check := func(metric Metric, limit, actual int64) {
		if limit > 0 && actual > limit {
			out = append(out, Violation{Scope: ScopeGlobal, Metric: metric, Limit: limit, Actual: actual})
		}
	}

	check(MetricCodeAdded, t.MaxCodeAdded, r.Total.CodeAdded)
	check(MetricTotalChanged, t.MaxTotalChanged, abs(r.Total.Total))
	check(MetricFiles, t.MaxFiles, r.Total.Files)

	if len(t.Languages) == 0 {
		return out
	}

	limits := make(map[string]int64, len(t.Languages))
	for name, limit := range t.Languages {
		limits[strings.ToLower(name)] = limit
	}

	for _, name := range slices.Sorted(maps.Keys(r.Languages)) {
		limit := limits[strings.ToLower(name)]
		actual := r.Languages[name].CodeAdded

		if limit > 0 && actual > limit {
			out = append(out, Violation{
				Scope:    ScopeLanguage,
				Language: name,
				Metric:   MetricCodeAdded,
				Limit:    limit,
				Actual:   actual,
			})
		}
	}

	return out
}

// ParseLanguageLimit parses "Language:N" with N a positive integer.
func ParseLanguageLimit(s string) (string, int64, error) {
	name, value, ok := strings.Cut(s, ":")
	name = strings.TrimSpace(name)

	if !ok || name == "" {
		return "", 0, fmt.Errorf("%w: %q, want Language:N", ErrInvalidLimit, s)
	}

	limit, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q: %w", ErrInvalidLimit, s, err)
	}

	if limit <= 0 {
		return "", 0, fmt.Errorf("%w: %q: limit must be positive", ErrInvalidLimit, s)
	}

	return name, limit, nil
}

// ParseLanguageLimits parses a list of "Language:N" entries. A repeated
// language keeps the last value.
func ParseLanguageLimits(entries []string) (map[string]int64, error) {
	limits := make(map[string]int64, len(entries))

	for _, entry := range entries {
		name, limit, err := ParseLanguageLimit(entry)
		if err != nil {
			return nil, err
		}

		limits[name] = limit
	}

	return limits, nil
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}

	return v
}
