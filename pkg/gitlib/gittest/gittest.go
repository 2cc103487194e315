// Package gittest builds throwaway git repositories for tests.
package gittest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git2go "github.com/libgit2/git2go/v34"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/locfang/pkg/gitlib"
)

// Repo is a scratch repository in a temporary directory.
type Repo struct {
	t      testing.TB
	Path   string
	native *git2go.Repository
}

// New initializes an empty repository with a working tree. It is freed
// when the test finishes.
func New(t testing.TB) *Repo {
	t.Helper()

	dir := t.TempDir()

	repo, err := git2go.InitRepository(dir, false)
	require.NoError(t, err)

	t.Cleanup(repo.Free)

	return &Repo{t: t, Path: dir, native: repo}
}

// Open opens the repository through gitlib.
func (r *Repo) Open() *gitlib.Repository {
	r.t.Helper()

	repo, err := gitlib.OpenRepository(r.Path)
	require.NoError(r.t, err)

	r.t.Cleanup(repo.Free)

	return repo
}

// Write creates or replaces a file in the working tree.
func (r *Repo) Write(name, content string) *Repo {
	r.t.Helper()

	path := filepath.Join(r.Path, filepath.FromSlash(name))

	err := os.MkdirAll(filepath.Dir(path), 0o755)
	require.NoError(r.t, err)

	err = os.WriteFile(path, []byte(content), 0o644)
	require.NoError(r.t, err)

	return r
}

// Remove deletes a file from the working tree.
func (r *Repo) Remove(name string) *Repo {
	r.t.Helper()

	err := os.Remove(filepath.Join(r.Path, filepath.FromSlash(name)))
	require.NoError(r.t, err)

	return r
}

// Move renames a file in the working tree.
func (r *Repo) Move(from, to string) *Repo {
	r.t.Helper()

	dst := filepath.Join(r.Path, filepath.FromSlash(to))

	err := os.MkdirAll(filepath.Dir(dst), 0o755)
	require.NoError(r.t, err)

	err = os.Rename(filepath.Join(r.Path, filepath.FromSlash(from)), dst)
	require.NoError(r.t, err)

	return r
}

// Stage records the working tree in the index, including deletions.
func (r *Repo) Stage() *git2go.Oid {
	r.t.Helper()

	index, err := r.native.Index()
	require.NoError(r.t, err)

	defer index.Free()

	err = index.AddAll([]string{"*"}, git2go.IndexAddDefault, nil)
	require.NoError(r.t, err)

	err = index.UpdateAll([]string{"*"}, nil)
	require.NoError(r.t, err)

	err = index.Write()
	require.NoError(r.t, err)

	treeID, err := index.WriteTree()
	require.NoError(r.t, err)

	return treeID
}

// Commit stages everything and commits it on HEAD.
func (r *Repo) Commit(message string) gitlib.Hash {
	r.t.Helper()

	treeID := r.Stage()

	tree, err := r.native.LookupTree(treeID)
	require.NoError(r.t, err)

	defer tree.Free()

	sig := &git2go.Signature{
		Name:  "Test User",
		Email: "test@example.com",
		When:  time.Now(),
	}

	var parents []*git2go.Commit

	head, err := r.native.Head()
	if err == nil {
		headCommit, lookupErr := r.native.LookupCommit(head.Target())
		require.NoError(r.t, lookupErr)

		parents = append(parents, headCommit)

		head.Free()
	}

	oid, err := r.native.CreateCommit("HEAD", sig, sig, message, tree, parents...)
	require.NoError(r.t, err)

	for _, parent := range parents {
		parent.Free()
	}

	return gitlib.HashFromOid(oid)
}
