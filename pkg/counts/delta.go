package counts

import (
	"cmp"
	"maps"
	"slices"

	"github.com/Sumatoshi-tech/locfang/pkg/vcs"
)

// FileDelta is the signed line change of one path between two snapshots.
type FileDelta struct {
	Path       string     `json:"path"`
	OldPath    string     `json:"old_path,omitempty"`
	Status     vcs.Status `json:"status"`
	Similarity int        `json:"similarity,omitempty"`
	Language   string     `json:"language"`
	Code       int64      `json:"code"`
	Comment    int64      `json:"comment"`
	Blank      int64      `json:"blank"`
	Total      int64      `json:"total"`
}

// NewFileDelta computes head minus base for one change.
func NewFileDelta(change vcs.Change, language string, base, head FileCounts) FileDelta {
	fd := FileDelta{
		Path:       change.Path,
		Status:     change.Status,
		Similarity: change.Similarity,
		Language:   language,
		Code:       head.Code - base.Code,
		Comment:    head.Comment - base.Comment,
		Blank:      head.Blank - base.Blank,
		Total:      head.Total - base.Total,
	}

	if change.Status == vcs.StatusRenamed {
		fd.OldPath = change.OldPath
	}

	return fd
}

// LanguageDelta aggregates file deltas. Code, Comment, Blank and Total are
// signed nets; the Added and Removed fields sum the positive and negative
// parts of each file's delta separately.
type LanguageDelta struct {
	Files          int64 `json:"files"`
	Code           int64 `json:"code"`
	Comment        int64 `json:"comment"`
	Blank          int64 `json:"blank"`
	Total          int64 `json:"total"`
	CodeAdded      int64 `json:"code_added"`
	CodeRemoved    int64 `json:"code_removed"`
	CommentAdded   int64 `json:"comment_added"`
	CommentRemoved int64 `json:"comment_removed"`
	BlankAdded     int64 `json:"blank_added"`
	BlankRemoved   int64 `json:"blank_removed"`
}

// DeltaOf lifts a single file delta into an aggregate.
func DeltaOf(fd FileDelta) LanguageDelta {
	return LanguageDelta{
		Files:          1,
		Code:           fd.Code,
		Comment:        fd.Comment,
		Blank:          fd.Blank,
		Total:          fd.Total,
		CodeAdded:      max(fd.Code, 0),
		CodeRemoved:    max(-fd.Code, 0),
		CommentAdded:   max(fd.Comment, 0),
		CommentRemoved: max(-fd.Comment, 0),
		BlankAdded:     max(fd.Blank, 0),
		BlankRemoved:   max(-fd.Blank, 0),
	}
}

// Add returns the elementwise sum of d and o.
func (d LanguageDelta) Add(o LanguageDelta) LanguageDelta {
	return LanguageDelta{
		Files:          d.Files + o.Files,
		Code:           d.Code + o.Code,
		Comment:        d.Comment + o.Comment,
		Blank:          d.Blank + o.Blank,
		Total:          d.Total + o.Total,
		CodeAdded:      d.CodeAdded + o.CodeAdded,
		CodeRemoved:    d.CodeRemoved + o.CodeRemoved,
		CommentAdded:   d.CommentAdded + o.CommentAdded,
		CommentRemoved: d.CommentRemoved + o.CommentRemoved,
		BlankAdded:     d.BlankAdded + o.BlankAdded,
		BlankRemoved:   d.BlankRemoved + o.BlankRemoved,
	}
}

// StatusCounts counts processed paths by change status.
type StatusCounts struct {
	Added    int64 `json:"added"`
	Deleted  int64 `json:"deleted"`
	Modified int64 `json:"modified"`
	Renamed  int64 `json:"renamed"`
}

// Record increments the counter for st.
func (s *StatusCounts) Record(st vcs.Status) {
	switch st {
	case vcs.StatusAdded:
		s.Added++
	case vcs.StatusDeleted:
		s.Deleted++
	case vcs.StatusModified:
		s.Modified++
	case vcs.StatusRenamed:
		s.Renamed++
	}
}

// Add returns the elementwise sum of s and o.
func (s StatusCounts) Add(o StatusCounts) StatusCounts {
	return StatusCounts{
		Added:    s.Added + o.Added,
		Deleted:  s.Deleted + o.Deleted,
		Modified: s.Modified + o.Modified,
		Renamed:  s.Renamed + o.Renamed,
	}
}

// Sum is the number of paths counted.
func (s StatusCounts) Sum() int64 {
	return s.Added + s.Deleted + s.Modified + s.Renamed
}

// DiffResult aggregates file deltas by language.
type DiffResult struct {
	Languages map[string]LanguageDelta `json:"languages"`
	Total     LanguageDelta            `json:"total"`
	Files     []FileDelta              `json:"files,omitempty"`
	Status    StatusCounts             `json:"status"`
	Skipped   Skipped                  `json:"skipped"`
	Failed    []FileError              `json:"failed,omitempty"`
}

// NewDiffResult returns the identity element of CombineDiff.
func NewDiffResult() DiffResult {
	return DiffResult{Languages: make(map[string]LanguageDelta)}
}

// AddDelta folds one file delta in. When keepFile is set the delta is also
// retained in Files.
func (r *DiffResult) AddDelta(fd FileDelta, keepFile bool) {
	if r.Languages == nil {
		r.Languages = make(map[string]LanguageDelta)
	}

	d := DeltaOf(fd)
	r.Languages[fd.Language] = r.Languages[fd.Language].Add(d)
	r.Total = r.Total.Add(d)

	if keepFile {
		i, _ := slices.BinarySearchFunc(r.Files, fd, compareFileDeltas)
		r.Files = slices.Insert(r.Files, i, fd)
	}
}

// AddFailure records a path whose content could not be read.
func (r *DiffResult) AddFailure(path string, err error) {
	r.Failed = insertFailure(r.Failed, FileError{Path: path, Error: err.Error()})
}

// Merge folds o into r.
func (r *DiffResult) Merge(o DiffResult) {
	if r.Languages == nil {
		r.Languages = make(map[string]LanguageDelta, len(o.Languages))
	}

	for lang, d := range o.Languages {
		r.Languages[lang] = r.Languages[lang].Add(d)
	}

	r.Total = r.Total.Add(o.Total)
	r.Status = r.Status.Add(o.Status)
	r.Skipped = r.Skipped.Add(o.Skipped)
	r.Failed = mergeFailures(r.Failed, o.Failed)

	if len(o.Files) > 0 {
		files := make([]FileDelta, 0, len(r.Files)+len(o.Files))
		files = append(files, r.Files...)
		files = append(files, o.Files...)
		slices.SortFunc(files, compareFileDeltas)
		r.Files = files
	}
}

// CombineDiff returns the sum of a and b without modifying either.
func CombineDiff(a, b DiffResult) DiffResult {
	out := NewDiffResult()
	out.Merge(a)
	out.Merge(b)

	return out
}

// SortedLanguages returns language names by descending absolute net total,
// then descending code added, then name.
func (r DiffResult) SortedLanguages() []string {
	names := slices.Collect(maps.Keys(r.Languages))

	slices.SortFunc(names, func(a, b string) int {
		da, db := r.Languages[a], r.Languages[b]

		return cmp.Or(
			cmp.Compare(abs(db.Total), abs(da.Total)),
			cmp.Compare(db.CodeAdded, da.CodeAdded),
			cmp.Compare(a, b),
		)
	})

	return names
}

func compareFileDeltas(a, b FileDelta) int {
	return cmp.Or(
		cmp.Compare(a.Path, b.Path),
		cmp.Compare(a.OldPath, b.OldPath),
		cmp.Compare(a.Status, b.Status),
	)
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}

	return v
}
