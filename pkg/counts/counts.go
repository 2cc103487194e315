// Package counts holds line-count values and the associative reductions used
// to aggregate them across files, workers and languages.
package counts

import (
	"cmp"
	"maps"
	"slices"
)

// FileCounts is the line breakdown of one file, or a sum over many files.
type FileCounts struct {
	Files   int64 `json:"files"`
	Total   int64 `json:"total"`
	Code    int64 `json:"code"`
	Comment int64 `json:"comment"`
	Blank   int64 `json:"blank"`
}

// Add returns the elementwise sum of c and o.
func (c FileCounts) Add(o FileCounts) FileCounts {
	return FileCounts{
		Files:   c.Files + o.Files,
		Total:   c.Total + o.Total,
		Code:    c.Code + o.Code,
		Comment: c.Comment + o.Comment,
		Blank:   c.Blank + o.Blank,
	}
}

// Consistent reports whether Total equals Code + Comment + Blank.
func (c FileCounts) Consistent() bool {
	return c.Total == c.Code+c.Comment+c.Blank
}

// Skipped counts files that were visited but not classified.
type Skipped struct {
	Binary     int64 `json:"binary"`
	Unresolved int64 `json:"unresolved"`
}

// Add returns the elementwise sum of s and o.
func (s Skipped) Add(o Skipped) Skipped {
	return Skipped{Binary: s.Binary + o.Binary, Unresolved: s.Unresolved + o.Unresolved}
}

// FileError records a per-file failure without aborting the batch.
type FileError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// AnalyzeResult aggregates the counts of a set of files by language.
type AnalyzeResult struct {
	Languages     map[string]FileCounts `json:"languages"`
	Total         FileCounts            `json:"total"`
	FilesAnalyzed int64                 `json:"files_analyzed"`
	Skipped       Skipped               `json:"skipped"`
	Failed        []FileError           `json:"failed,omitempty"`
}

// NewAnalyzeResult returns the identity element of Combine.
func NewAnalyzeResult() AnalyzeResult {
	return AnalyzeResult{Languages: make(map[string]FileCounts)}
}

// AddFile records one classified file under language.
func (r *AnalyzeResult) AddFile(language string, c FileCounts) {
	if r.Languages == nil {
		r.Languages = make(map[string]FileCounts)
	}

	r.Languages[language] = r.Languages[language].Add(c)
	r.Total = r.Total.Add(c)
	r.FilesAnalyzed += c.Files
}

// AddFailure records a file that could not be read.
func (r *AnalyzeResult) AddFailure(path string, err error) {
	r.Failed = insertFailure(r.Failed, FileError{Path: path, Error: err.Error()})
}

// Merge folds o into r.
func (r *AnalyzeResult) Merge(o AnalyzeResult) {
	if r.Languages == nil {
		r.Languages = make(map[string]FileCounts, len(o.Languages))
	}

	for lang, c := range o.Languages {
		r.Languages[lang] = r.Languages[lang].Add(c)
	}

	r.Total = r.Total.Add(o.Total)
	r.FilesAnalyzed += o.FilesAnalyzed
	r.Skipped = r.Skipped.Add(o.Skipped)
	r.Failed = mergeFailures(r.Failed, o.Failed)
}

// Combine returns the sum of a and b without modifying either. It is
// commutative and associative, with NewAnalyzeResult as identity.
func Combine(a, b AnalyzeResult) AnalyzeResult {
	out := NewAnalyzeResult()
	out.Merge(a)
	out.Merge(b)

	return out
}

// SortedLanguages returns language names by descending code, then total,
// then name.
func (r AnalyzeResult) SortedLanguages() []string {
	names := slices.Collect(maps.Keys(r.Languages))

	slices.SortFunc(names, func(a, b string) int {
		ca, cb := r.Languages[a], r.Languages[b]

		return cmp.Or(
			cmp.Compare(cb.Code, ca.Code),
			cmp.Compare(cb.Total, ca.Total),
			cmp.Compare(a, b),
		)
	})

	return names
}

func compareFailures(a, b FileError) int {
	return cmp.Or(cmp.Compare(a.Path, b.Path), cmp.Compare(a.Error, b.Error))
}

func insertFailure(list []FileError, fe FileError) []FileError {
	i, _ := slices.BinarySearchFunc(list, fe, compareFailures)

	return slices.Insert(list, i, fe)
}

func mergeFailures(a, b []FileError) []FileError {
	if len(b) == 0 {
		return a
	}

	out := make([]FileError, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	slices.SortFunc(out, compareFailures)

	return out
}
