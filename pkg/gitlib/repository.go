package gitlib

import (
	"errors"
	"fmt"
	"sync"

	git2go "github.com/libgit2/git2go/v34"
)

// Sentinel errors.
var (
	ErrBareRepository = errors.New("gitlib: repository has no working tree")
	ErrUnbornHead     = errors.New("gitlib: HEAD has no commits")
	ErrClosed         = errors.New("gitlib: repository is closed")
)

// Repository wraps a libgit2 repository. libgit2 objects of one repository
// are not safe for concurrent use, so every call goes through mu.
type Repository struct {
	mu   sync.Mutex
	repo *git2go.Repository
	path string
}

// OpenRepository opens a git repository at the given path.
func OpenRepository(path string) (*Repository, error) {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}

	return &Repository{repo: repo, path: path}, nil
}

// DiscoverRepository opens the repository containing start, searching
// parent directories.
func DiscoverRepository(start string) (*Repository, error) {
	found, err := git2go.Discover(start, false, nil)
	if err != nil {
		return nil, fmt.Errorf("discover repository from %s: %w", start, err)
	}

	return OpenRepository(found)
}

// Path returns the path the repository was opened with.
func (r *Repository) Path() string {
	return r.path
}

// Workdir returns the working tree root, or an empty string for bare
// repositories.
func (r *Repository) Workdir() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		return ""
	}

	return r.repo.Workdir()
}

// Free releases the repository resources. It is safe to call twice.
func (r *Repository) Free() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// Head returns the commit HEAD points to.
func (r *Repository) Head() (Hash, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.headLocked()
}

func (r *Repository) headLocked() (Hash, error) {
	if r.repo == nil {
		return Hash{}, ErrClosed
	}

	ref, err := r.repo.Head()
	if err != nil {
		if git2go.IsErrorCode(err, git2go.ErrorCodeUnbornBranch) || git2go.IsErrorCode(err, git2go.ErrorCodeNotFound) {
			return Hash{}, ErrUnbornHead
		}

		return Hash{}, fmt.Errorf("get HEAD: %w", err)
	}
	defer ref.Free()

	return HashFromOid(ref.Target()), nil
}

// ResolveRevision resolves a revision expression such as "HEAD~1",
// a branch, a tag or an abbreviated id to a commit.
func (r *Repository) ResolveRevision(rev string) (Hash, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		return Hash{}, ErrClosed
	}

	obj, err := r.repo.RevparseSingle(rev)
	if err != nil {
		return Hash{}, fmt.Errorf("resolve %s: %w", rev, err)
	}
	defer obj.Free()

	commit, err := obj.Peel(git2go.ObjectCommit)
	if err != nil {
		return Hash{}, fmt.Errorf("resolve %s to commit: %w", rev, err)
	}
	defer commit.Free()

	return HashFromOid(commit.Id()), nil
}

// MergeBase returns the best common ancestor of two commits.
func (r *Repository) MergeBase(one, two Hash) (Hash, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		return Hash{}, ErrClosed
	}

	oid, err := r.repo.MergeBase(one.ToOid(), two.ToOid())
	if err != nil {
		return Hash{}, fmt.Errorf("merge-base %s %s: %w", one.Short(), two.Short(), err)
	}

	return HashFromOid(oid), nil
}

// commitTreeLocked returns the tree of commit; a zero hash yields nil, the
// empty tree. Callers must hold mu.
func (r *Repository) commitTreeLocked(hash Hash) (*git2go.Tree, error) {
	if hash.IsZero() {
		return nil, nil
	}

	commit, err := r.repo.LookupCommit(hash.ToOid())
	if err != nil {
		return nil, fmt.Errorf("lookup commit %s: %w", hash.Short(), err)
	}
	defer commit.Free()

	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("tree of %s: %w", hash.Short(), err)
	}

	return tree, nil
}
