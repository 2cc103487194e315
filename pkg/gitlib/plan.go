package gitlib

import (
	"cmp"
	"errors"
	"fmt"

	"github.com/Sumatoshi-tech/locfang/pkg/vcs"
)

// Default revisions for range diffs.
const (
	DefaultBaseRev = "HEAD~1"
	DefaultHeadRev = "HEAD"
)

// ErrInvalidTarget is returned for contradictory diff targets.
var ErrInvalidTarget = errors.New("gitlib: invalid diff target")

// Mode selects which two snapshots a diff compares.
type Mode int

// Diff modes.
const (
	// ModeRange compares two commits.
	ModeRange Mode = iota
	// ModeStaged compares HEAD with the index.
	ModeStaged
	// ModeWorktree compares the index with the working tree.
	ModeWorktree
)

func (m Mode) String() string {
	switch m {
	case ModeRange:
		return "range"
	case ModeStaged:
		return "staged"
	case ModeWorktree:
		return "worktree"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Target describes what to diff.
type Target struct {
	Mode Mode
	// Base and Head are revisions for ModeRange; empty values use
	// DefaultBaseRev and DefaultHeadRev.
	Base string
	Head string
	// MergeBase replaces the base with the merge base of Base and Head.
	MergeBase bool
	// EmptyBase compares Head against the empty tree.
	EmptyBase bool
}

// Validate checks the target for contradictions.
func (t Target) Validate() error {
	if t.Mode != ModeRange && (t.Base != "" || t.Head != "" || t.MergeBase || t.EmptyBase) {
		return fmt.Errorf("%w: revisions only apply to range diffs, not %s", ErrInvalidTarget, t.Mode)
	}

	if t.MergeBase && t.EmptyBase {
		return fmt.Errorf("%w: merge-base and empty base are exclusive", ErrInvalidTarget)
	}

	return nil
}

// Plan is a resolved diff: the changes and a content source for both
// sides. Call Free when done.
type Plan struct {
	Changes []vcs.Change
	Source  *Pair
	Base    string
	Head    string
}

// Free releases the snapshots held by the plan.
func (p *Plan) Free() {
	if p.Source != nil {
		p.Source.Free()
	}
}

// Prepare resolves t into a Plan.
func (r *Repository) Prepare(t Target, opts DiffOptions) (*Plan, error) {
	err := t.Validate()
	if err != nil {
		return nil, err
	}

	switch t.Mode {
	case ModeRange:
		return r.prepareRange(t, opts)
	case ModeStaged:
		return r.prepareSnapshots(r.DiffHeadToIndex, r.HeadSnapshot, r.IndexSnapshot, opts)
	case ModeWorktree:
		return r.prepareSnapshots(r.DiffIndexToWorkdir, r.IndexSnapshot, r.WorkdirSnapshot, opts)
	default:
		return nil, fmt.Errorf("%w: unknown mode %s", ErrInvalidTarget, t.Mode)
	}
}

func (r *Repository) prepareRange(t Target, opts DiffOptions) (*Plan, error) {
	headRev := cmp.Or(t.Head, DefaultHeadRev)

	head, err := r.ResolveRevision(headRev)
	if err != nil {
		return nil, err
	}

	var (
		base      Hash
		baseLabel = "(empty)"
	)

	if !t.EmptyBase {
		baseRev := cmp.Or(t.Base, DefaultBaseRev)

		base, err = r.ResolveRevision(baseRev)
		if err != nil {
			return nil, err
		}

		baseLabel = fmt.Sprintf("%s (%s)", baseRev, base.Short())

		if t.MergeBase {
			base, err = r.MergeBase(base, head)
			if err != nil {
				return nil, err
			}

			baseLabel = fmt.Sprintf("merge-base(%s, %s) (%s)", baseRev, headRev, base.Short())
		}
	}

	changes, err := r.DiffCommits(base, head, opts)
	if err != nil {
		return nil, err
	}

	baseSnap, err := r.CommitSnapshot(base)
	if err != nil {
		return nil, err
	}

	headSnap, err := r.CommitSnapshot(head)
	if err != nil {
		r.freeSnapshot(baseSnap)

		return nil, err
	}

	return &Plan{
		Changes: changes,
		Source:  r.NewPair(baseSnap, headSnap),
		Base:    baseLabel,
		Head:    fmt.Sprintf("%s (%s)", headRev, head.Short()),
	}, nil
}

func (r *Repository) prepareSnapshots(
	list func(DiffOptions) ([]vcs.Change, error),
	baseFn, headFn func() (Snapshot, error),
	opts DiffOptions,
) (*Plan, error) {
	changes, err := list(opts)
	if err != nil {
		return nil, err
	}

	baseSnap, err := baseFn()
	if err != nil {
		return nil, err
	}

	headSnap, err := headFn()
	if err != nil {
		r.freeSnapshot(baseSnap)

		return nil, err
	}

	return &Plan{
		Changes: changes,
		Source:  r.NewPair(baseSnap, headSnap),
		Base:    baseSnap.Label(),
		Head:    headSnap.Label(),
	}, nil
}

func (r *Repository) freeSnapshot(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s.free()
}
