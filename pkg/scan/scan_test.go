package scan_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/locfang/pkg/analyzer"
	"github.com/Sumatoshi-tech/locfang/pkg/counts"
	"github.com/Sumatoshi-tech/locfang/pkg/scan"
)

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()

	root := t.TempDir()

	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}

	return root
}

func sampleTree(t *testing.T) string {
	t.Helper()

	files := map[string]string{
		"README.md":            "# Title\n\ntext\n",
		"cmd/main.go":          "package main\n\n// entry\nfunc main() {}\n",
		"pkg/a.py":             "# c\nx = 1\n",
		"pkg/b.rs":             "/* doc */\nfn main() {}\n",
		"pkg/data.bin.c":       "\x00\x01\x02",
		"pkg/notes.zzz":        "opaque\n",
		"pkg/empty.go":         "",
		"vendor/lib/lib.go":    "package lib\n",
		"node_modules/x/i.js":  "module.exports = 1;\n",
		".git/config":          "[core]\n",
		"scripts/run":          "#!/bin/sh\necho hi\n",
		"deep/nested/more.yml": "a: 1\n# c\n",
	}

	for i := range 40 {
		files[fmt.Sprintf("gen/f%02d.go", i)] = "package gen\n\n// x\nvar X = 1\n"
	}

	return writeTree(t, files)
}

func TestCountIsIndependentOfWorkerCount(t *testing.T) {
	t.Parallel()

	root := sampleTree(t)
	a := analyzer.New(nil, analyzer.DefaultOptions())

	files, err := scan.Walk(context.Background(), []string{root}, scan.WalkOptions{})
	require.NoError(t, err)

	want, err := scan.New(a, scan.Options{Workers: 1}).Count(context.Background(), files)
	require.NoError(t, err)

	for _, workers := range []int{2, 3, 8, 64} {
		got, err := scan.New(a, scan.Options{Workers: workers}).Count(context.Background(), files)
		require.NoError(t, err)
		assert.Equal(t, want, got, "workers=%d", workers)
	}
}

func TestCountTree(t *testing.T) {
	t.Parallel()

	root := sampleTree(t)
	a := analyzer.New(nil, analyzer.DefaultOptions())

	s := scan.New(a, scan.Options{Workers: 4, Walk: scan.WalkOptions{SkipVendor: true}})

	got, err := s.CountTree(context.Background(), []string{root})
	require.NoError(t, err)

	assert.Equal(t, int64(1), got.Skipped.Binary)
	assert.Equal(t, int64(1), got.Skipped.Unresolved)
	assert.Empty(t, got.Failed)

	assert.Equal(t, counts.FileCounts{Files: 42, Total: 164, Code: 82, Comment: 41, Blank: 41}, got.Languages["Go"])
	assert.Equal(t, counts.FileCounts{Files: 1, Total: 2, Code: 1, Comment: 1}, got.Languages["Shell"])
	assert.NotContains(t, got.Languages, "JavaScript")
	assert.Equal(t, got.Total.Files, got.FilesAnalyzed)

	var sum counts.FileCounts
	for _, c := range got.Languages {
		sum = sum.Add(c)
	}

	assert.Equal(t, got.Total, sum)
}

func TestCountCollectsFailures(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{"ok.go": "package ok\n"})
	missing := filepath.Join(root, "missing.go")
	a := analyzer.New(nil, analyzer.DefaultOptions())

	got, err := scan.New(a, scan.Options{Workers: 2}).Count(context.Background(),
		[]string{filepath.Join(root, "ok.go"), missing})
	require.NoError(t, err)

	require.Len(t, got.Failed, 1)
	assert.Equal(t, missing, got.Failed[0].Path)
	assert.Equal(t, int64(1), got.FilesAnalyzed)
}

func TestCountCancelled(t *testing.T) {
	t.Parallel()

	root := sampleTree(t)
	files, err := scan.Walk(context.Background(), []string{root}, scan.WalkOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = scan.New(analyzer.New(nil, analyzer.DefaultOptions()), scan.Options{Workers: 1}).Count(ctx, files)
	require.ErrorIs(t, err, context.Canceled)
}

func TestCountEmpty(t *testing.T) {
	t.Parallel()

	got, err := scan.New(analyzer.New(nil, analyzer.DefaultOptions()), scan.Options{}).Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, counts.NewAnalyzeResult(), got)
}
