package gitlib

import (
	"errors"
	"fmt"

	git2go "github.com/libgit2/git2go/v34"

	"github.com/Sumatoshi-tech/locfang/pkg/safeconv"
	"github.com/Sumatoshi-tech/locfang/pkg/vcs"
)

// DefaultRenameThreshold is the similarity percentage above which an
// add/delete pair is reported as a rename.
const DefaultRenameThreshold = 50

// DiffOptions configures change enumeration.
type DiffOptions struct {
	// DetectRenames pairs deletes and adds of similar content.
	DetectRenames bool
	// RenameThreshold is the similarity percentage for renames; zero uses
	// DefaultRenameThreshold.
	RenameThreshold int
	// IncludeUntracked reports untracked files as added in working-tree diffs.
	IncludeUntracked bool
}

// DefaultDiffOptions enables rename detection.
func DefaultDiffOptions() DiffOptions {
	return DiffOptions{DetectRenames: true, RenameThreshold: DefaultRenameThreshold}
}

// DiffCommits lists the changes from base to head. A zero base diffs
// against the empty tree.
func (r *Repository) DiffCommits(base, head Hash, opts DiffOptions) ([]vcs.Change, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		return nil, ErrClosed
	}

	if base == head && !base.IsZero() {
		return nil, nil
	}

	baseTree, err := r.commitTreeLocked(base)
	if err != nil {
		return nil, err
	}

	if baseTree != nil {
		defer baseTree.Free()
	}

	headTree, err := r.commitTreeLocked(head)
	if err != nil {
		return nil, err
	}

	if headTree != nil {
		defer headTree.Free()
	}

	diffOpts, err := nativeDiffOptions()
	if err != nil {
		return nil, err
	}

	diff, err := r.repo.DiffTreeToTree(baseTree, headTree, &diffOpts)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}
	defer freeDiff(diff)

	return collectChanges(diff, opts)
}

// DiffHeadToIndex lists staged changes. An unborn HEAD diffs the index
// against the empty tree.
func (r *Repository) DiffHeadToIndex(opts DiffOptions) ([]vcs.Change, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		return nil, ErrClosed
	}

	head, err := r.headLocked()
	if err != nil && !errors.Is(err, ErrUnbornHead) {
		return nil, err
	}

	headTree, err := r.commitTreeLocked(head)
	if err != nil {
		return nil, err
	}

	if headTree != nil {
		defer headTree.Free()
	}

	index, err := r.repo.Index()
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer index.Free()

	diffOpts, err := nativeDiffOptions()
	if err != nil {
		return nil, err
	}

	diff, err := r.repo.DiffTreeToIndex(headTree, index, &diffOpts)
	if err != nil {
		return nil, fmt.Errorf("diff HEAD to index: %w", err)
	}
	defer freeDiff(diff)

	return collectChanges(diff, opts)
}

// DiffIndexToWorkdir lists unstaged changes in the working tree.
func (r *Repository) DiffIndexToWorkdir(opts DiffOptions) ([]vcs.Change, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		return nil, ErrClosed
	}

	if r.repo.IsBare() {
		return nil, ErrBareRepository
	}

	index, err := r.repo.Index()
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer index.Free()

	diffOpts, err := nativeDiffOptions()
	if err != nil {
		return nil, err
	}

	if opts.IncludeUntracked {
		diffOpts.Flags |= git2go.DiffIncludeUntracked | git2go.DiffRecurseUntracked
	}

	diff, err := r.repo.DiffIndexToWorkdir(index, &diffOpts)
	if err != nil {
		return nil, fmt.Errorf("diff index to workdir: %w", err)
	}
	defer freeDiff(diff)

	return collectChanges(diff, opts)
}

func nativeDiffOptions() (git2go.DiffOptions, error) {
	diffOpts, err := git2go.DefaultDiffOptions()
	if err != nil {
		return diffOpts, fmt.Errorf("get diff options: %w", err)
	}

	diffOpts.Flags |= git2go.DiffIgnoreSubmodules | git2go.DiffIncludeTypeChange

	return diffOpts, nil
}

func freeDiff(diff *git2go.Diff) {
	_ = diff.Free()
}

func collectChanges(diff *git2go.Diff, opts DiffOptions) ([]vcs.Change, error) {
	if opts.DetectRenames {
		findOpts, err := git2go.DefaultDiffFindOptions()
		if err != nil {
			return nil, fmt.Errorf("get find options: %w", err)
		}

		findOpts.Flags = git2go.DiffFindRenames | git2go.DiffFindRenamesFromRewrites

		threshold := opts.RenameThreshold
		if threshold <= 0 {
			threshold = DefaultRenameThreshold
		}

		findOpts.RenameThreshold = safeconv.ClampIntToUint16(min(threshold, 100))

		err = diff.FindSimilar(&findOpts)
		if err != nil {
			return nil, fmt.Errorf("find renames: %w", err)
		}
	}

	n, err := diff.NumDeltas()
	if err != nil {
		return nil, fmt.Errorf("get num deltas: %w", err)
	}

	changes := make([]vcs.Change, 0, n)

	for i := range n {
		delta, deltaErr := diff.Delta(i)
		if deltaErr != nil {
			return nil, fmt.Errorf("get delta %d: %w", i, deltaErr)
		}

		change, ok := changeFromDelta(delta)
		if ok {
			changes = append(changes, change)
		}
	}

	return changes, nil
}

func changeFromDelta(delta git2go.DiffDelta) (vcs.Change, bool) {
	switch delta.Status {
	case git2go.DeltaAdded, git2go.DeltaUntracked, git2go.DeltaCopied:
		return vcs.Change{Status: vcs.StatusAdded, Path: delta.NewFile.Path}, true
	case git2go.DeltaDeleted:
		return vcs.Change{Status: vcs.StatusDeleted, Path: delta.OldFile.Path}, true
	case git2go.DeltaModified, git2go.DeltaTypeChange:
		return vcs.Change{Status: vcs.StatusModified, Path: delta.NewFile.Path}, true
	case git2go.DeltaRenamed:
		return vcs.Change{
			Status:     vcs.StatusRenamed,
			Path:       delta.NewFile.Path,
			OldPath:    delta.OldFile.Path,
			Similarity: int(delta.Similarity),
		}, true
	default:
		return vcs.Change{}, false
	}
}
