package scan_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/locfang/pkg/scan"
)

func relAll(t *testing.T, root string, paths []string) []string {
	t.Helper()

	out := make([]string, 0, len(paths))

	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		require.NoError(t, err)

		out = append(out, filepath.ToSlash(rel))
	}

	return out
}

func TestWalkFilters(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"a.go":                  "package a\n",
		"b.RS":                  "fn main() {}\n",
		"c.py":                  "x = 1\n",
		"empty.go":              "",
		"big.go":                "package big\n// padding padding padding padding\n",
		"vendor/v.go":           "package v\n",
		".git/HEAD":             "ref: refs/heads/main\n",
		"sub/node_modules/m.js": "1\n",
	})

	tests := []struct {
		name string
		opts scan.WalkOptions
		want []string
	}{
		{
			name: "defaults skip vcs dirs only",
			opts: scan.WalkOptions{},
			want: []string{"a.go", "b.RS", "big.go", "c.py", "empty.go", "sub/node_modules/m.js", "vendor/v.go"},
		},
		{
			name: "extension filter case insensitive",
			opts: scan.WalkOptions{Extensions: []string{".go,rs"}},
			want: []string{"a.go", "b.RS", "big.go", "empty.go", "vendor/v.go"},
		},
		{
			name: "skip vendor and empty",
			opts: scan.WalkOptions{SkipVendor: true, SkipEmpty: true},
			want: []string{"a.go", "b.RS", "big.go", "c.py"},
		},
		{
			name: "size bounds",
			opts: scan.WalkOptions{MinSize: 1, MaxSize: 20, SkipVendor: true},
			want: []string{"a.go", "b.RS", "c.py"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			files, err := scan.Walk(context.Background(), []string{root}, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, relAll(t, root, files))
		})
	}
}

func TestWalkFileRoot(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{"only.go": "package only\n"})
	path := filepath.Join(root, "only.go")

	files, err := scan.Walk(context.Background(), []string{path}, scan.WalkOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{path}, files)

	files, err = scan.Walk(context.Background(), []string{path}, scan.WalkOptions{Extensions: []string{"py"}})
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestWalkSymlinks(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{"real.go": "package real\n"})
	require.NoError(t, os.Symlink(filepath.Join(root, "real.go"), filepath.Join(root, "link.go")))

	files, err := scan.Walk(context.Background(), []string{root}, scan.WalkOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"real.go"}, relAll(t, root, files))

	files, err = scan.Walk(context.Background(), []string{root}, scan.WalkOptions{FollowSymlinks: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"link.go", "real.go"}, relAll(t, root, files))
}

func TestWalkFollowsLinkedDirectories(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{"real.go": "package real\n"})
	other := writeTree(t, map[string]string{"inner.go": "package inner\n"})

	require.NoError(t, os.Symlink(other, filepath.Join(root, "linked")))
	require.NoError(t, os.Symlink(other, filepath.Join(other, "loop")))
	require.NoError(t, os.Symlink(root, filepath.Join(root, "self")))

	files, err := scan.Walk(context.Background(), []string{root}, scan.WalkOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"real.go"}, relAll(t, root, files))

	files, err = scan.Walk(context.Background(), []string{root}, scan.WalkOptions{FollowSymlinks: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"linked/inner.go", "real.go"}, relAll(t, root, files))

	linkRoot := filepath.Join(t.TempDir(), "tree")
	require.NoError(t, os.Symlink(other, linkRoot))

	files, err = scan.Walk(context.Background(), []string{linkRoot}, scan.WalkOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"inner.go"}, relAll(t, linkRoot, files))
}

func TestWalkErrors(t *testing.T) {
	t.Parallel()

	_, err := scan.Walk(context.Background(), nil, scan.WalkOptions{})
	require.ErrorIs(t, err, scan.ErrNoRoots)

	_, err = scan.Walk(context.Background(), []string{filepath.Join(t.TempDir(), "absent")}, scan.WalkOptions{})
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestNormalizeExtensions(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"go", "rs", "py"}, scan.NormalizeExtensions([]string{".Go, rs", "", "py", "GO"}))
	assert.Nil(t, scan.NormalizeExtensions(nil))
}
