package gitlib

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	git2go "github.com/libgit2/git2go/v34"

	"github.com/Sumatoshi-tech/locfang/pkg/vcs"
)

// Snapshot is one readable state of the file tree.
type Snapshot interface {
	// Label names the snapshot in reports.
	Label() string

	read(repo *git2go.Repository, path string) ([]byte, bool, error)
	free()
}

type emptySnapshot struct{}

// EmptySnapshot is a snapshot with no files.
func EmptySnapshot() Snapshot { return emptySnapshot{} }

func (emptySnapshot) Label() string { return "(empty)" }

func (emptySnapshot) read(*git2go.Repository, string) ([]byte, bool, error) { return nil, false, nil }

func (emptySnapshot) free() {}

type treeSnapshot struct {
	tree  *git2go.Tree
	label string
}

func (s *treeSnapshot) Label() string { return s.label }

func (s *treeSnapshot) read(repo *git2go.Repository, path string) ([]byte, bool, error) {
	entry, err := s.tree.EntryByPath(path)
	if err != nil {
		if git2go.IsErrorCode(err, git2go.ErrorCodeNotFound) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("tree entry %s: %w", path, err)
	}

	if entry.Type != git2go.ObjectBlob {
		return nil, false, nil
	}

	return readBlob(repo, entry.Id, path)
}

func (s *treeSnapshot) free() {
	s.tree.Free()
}

type indexSnapshot struct {
	index *git2go.Index
}

func (s *indexSnapshot) Label() string { return "(index)" }

func (s *indexSnapshot) read(repo *git2go.Repository, path string) ([]byte, bool, error) {
	entry, err := s.index.EntryByPath(path, 0)
	if err != nil {
		if git2go.IsErrorCode(err, git2go.ErrorCodeNotFound) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("index entry %s: %w", path, err)
	}

	return readBlob(repo, entry.Id, path)
}

func (s *indexSnapshot) free() {
	s.index.Free()
}

type workdirSnapshot struct {
	root string
}

func (s *workdirSnapshot) Label() string { return "(working tree)" }

func (s *workdirSnapshot) read(_ *git2go.Repository, path string) ([]byte, bool, error) {
	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(path)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}

	return data, true, nil
}

func (s *workdirSnapshot) free() {}

func readBlob(repo *git2go.Repository, oid *git2go.Oid, path string) ([]byte, bool, error) {
	blob, err := repo.LookupBlob(oid)
	if err != nil {
		return nil, false, fmt.Errorf("lookup blob for %s: %w", path, err)
	}
	defer blob.Free()

	return blob.Contents(), true, nil
}

// CommitSnapshot returns the tree of a commit. A zero hash yields the
// empty snapshot.
func (r *Repository) CommitSnapshot(hash Hash) (Snapshot, error) {
	if hash.IsZero() {
		return EmptySnapshot(), nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		return nil, ErrClosed
	}

	tree, err := r.commitTreeLocked(hash)
	if err != nil {
		return nil, err
	}

	return &treeSnapshot{tree: tree, label: hash.Short()}, nil
}

// HeadSnapshot returns the tree of HEAD, or the empty snapshot when HEAD
// is unborn.
func (r *Repository) HeadSnapshot() (Snapshot, error) {
	head, err := r.Head()
	if errors.Is(err, ErrUnbornHead) {
		return EmptySnapshot(), nil
	}

	if err != nil {
		return nil, err
	}

	return r.CommitSnapshot(head)
}

// IndexSnapshot returns the staged state.
func (r *Repository) IndexSnapshot() (Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		return nil, ErrClosed
	}

	index, err := r.repo.Index()
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	return &indexSnapshot{index: index}, nil
}

// WorkdirSnapshot returns the working tree.
func (r *Repository) WorkdirSnapshot() (Snapshot, error) {
	root := r.Workdir()
	if root == "" {
		return nil, ErrBareRepository
	}

	return &workdirSnapshot{root: root}, nil
}

// Pair reads content from a base and a head snapshot. It implements
// vcs.ContentSource.
type Pair struct {
	repo *Repository
	base Snapshot
	head Snapshot
}

var _ vcs.ContentSource = (*Pair)(nil)

// NewPair combines two snapshots of r. The pair owns them; call Free when
// done.
func (r *Repository) NewPair(base, head Snapshot) *Pair {
	return &Pair{repo: r, base: base, head: head}
}

// Labels returns the base and head labels.
func (p *Pair) Labels() (base, head string) {
	return p.base.Label(), p.head.Label()
}

// Content implements vcs.ContentSource.
func (p *Pair) Content(ctx context.Context, side vcs.Side, path string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	p.repo.mu.Lock()
	defer p.repo.mu.Unlock()

	if p.repo.repo == nil {
		return nil, false, ErrClosed
	}

	snap := p.head
	if side == vcs.Base {
		snap = p.base
	}

	return snap.read(p.repo.repo, path)
}

// Free releases both snapshots. Later reads see empty snapshots.
func (p *Pair) Free() {
	p.repo.mu.Lock()
	defer p.repo.mu.Unlock()

	p.base.free()
	p.head.free()
	p.base, p.head = emptySnapshot{}, emptySnapshot{}
}
