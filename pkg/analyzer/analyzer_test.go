package analyzer_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/locfang/pkg/analyzer"
	"github.com/Sumatoshi-tech/locfang/pkg/counts"
)

var fixtures = map[string]string{
	"main.go":      "package main\n\n// main runs.\nfunc main() {\n\t/* inline */\n}\n",
	"script":       "#!/usr/bin/env python3\n# comment\nprint('hi')\n",
	"Makefile":     "all:\n\t# recipe comment\n\tgo build\n",
	"notes.md":     "# Title\n\n<!-- hidden -->\ntext\n",
	"crlf.c":       "/* a\r\n b */\r\nint x;\r\n",
	"empty.rs":     "",
	"unknown.zzz":  "whatever\n",
	"multibyte.py": "# été\nx = 'ü'\n",
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestAnalyzePathMatchesAnalyzeContent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	for _, opts := range []analyzer.Options{
		analyzer.DefaultOptions(),
		{MmapThreshold: 1},
		{DisableMmap: true, Unresolved: analyzer.UnresolvedCount},
	} {
		a := analyzer.New(nil, opts)

		for name, content := range fixtures {
			path := writeFile(t, dir, name, content)

			fromPath, err := a.AnalyzePath(path)
			require.NoError(t, err, name)

			fromContent := a.AnalyzeContent([]byte(content), path)
			assert.Equal(t, fromContent, fromPath, name)
			assert.True(t, fromPath.Counts.Consistent(), name)
		}
	}
}

func TestAnalyzeContent(t *testing.T) {
	t.Parallel()

	a := analyzer.New(nil, analyzer.DefaultOptions())

	tests := []struct {
		name     string
		want     counts.FileCounts
		language string
		outcome  analyzer.Outcome
	}{
		{"main.go", counts.FileCounts{Files: 1, Total: 6, Code: 3, Comment: 2, Blank: 1}, "Go", analyzer.Counted},
		{"script", counts.FileCounts{Files: 1, Total: 3, Code: 1, Comment: 2}, "Python", analyzer.Counted},
		{"Makefile", counts.FileCounts{Files: 1, Total: 3, Code: 2, Comment: 1}, "Make", analyzer.Counted},
		{"crlf.c", counts.FileCounts{Files: 1, Total: 3, Code: 1, Comment: 2}, "C", analyzer.Counted},
		{"empty.rs", counts.FileCounts{Files: 1}, "Rust", analyzer.Counted},
		{"unknown.zzz", counts.FileCounts{}, "", analyzer.Unresolved},
		{"multibyte.py", counts.FileCounts{Files: 1, Total: 2, Code: 1, Comment: 1}, "Python", analyzer.Counted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := a.AnalyzeContent([]byte(fixtures[tt.name]), tt.name)
			assert.Equal(t, tt.want, got.Counts)
			assert.Equal(t, tt.language, got.Language)
			assert.Equal(t, tt.outcome, got.Outcome)
			assert.Equal(t, tt.name, got.Path)
		})
	}
}

func TestUnresolvedCountPolicy(t *testing.T) {
	t.Parallel()

	a := analyzer.New(nil, analyzer.Options{Unresolved: analyzer.UnresolvedCount})

	got := a.AnalyzeContent([]byte("# not a comment here\n\nx\n"), "data.zzz")
	assert.Equal(t, analyzer.Counted, got.Outcome)
	assert.Equal(t, analyzer.UnknownLanguage, got.Language)
	assert.Equal(t, counts.FileCounts{Files: 1, Total: 3, Code: 2, Blank: 1}, got.Counts)
}

func TestLinguistFallback(t *testing.T) {
	t.Parallel()

	content := []byte("package main\n\nfunc main() {}\n")

	without := analyzer.New(nil, analyzer.DefaultOptions())
	assert.Equal(t, analyzer.Unresolved, without.AnalyzeContent(content, "main.go.tmpl_unknown").Outcome)

	opts := analyzer.DefaultOptions()
	opts.LinguistFallback = true
	with := analyzer.New(nil, opts)

	// Known extensions never reach the fallback.
	got := with.AnalyzeContent(content, "main.go")
	assert.Equal(t, "Go", got.Language)
}

func TestBinaryContentIsSkipped(t *testing.T) {
	t.Parallel()

	a := analyzer.New(nil, analyzer.DefaultOptions())

	got := a.AnalyzeContent([]byte("int x;\x00\x01\x02"), "blob.c")
	assert.Equal(t, analyzer.Binary, got.Outcome)
	assert.Equal(t, "C", got.Language)
	assert.Equal(t, counts.FileCounts{}, got.Counts)

	got = a.AnalyzeContent([]byte{0xff, 0xfe, 'a', '\n'}, "latin.c")
	assert.Equal(t, analyzer.Binary, got.Outcome)
}

func TestIsBinary(t *testing.T) {
	t.Parallel()

	assert.False(t, analyzer.IsBinary([]byte("plain text\n"), 8))
	assert.True(t, analyzer.IsBinary([]byte("a\x00b"), 8))
	assert.False(t, analyzer.IsBinary([]byte("abc\x00"), 3), "NUL outside sample")

	// "é" is two bytes; a sample boundary splitting it is still text.
	content := []byte("abécd")
	assert.False(t, analyzer.IsBinary(content, 3))
	assert.True(t, analyzer.IsBinary([]byte{'a', 0xc3}, 0), "truncated rune at end of whole content")
	assert.True(t, analyzer.IsBinary([]byte{0x80, 'a', 'b', 'c'}, 3))
}

func TestMmapFailureFallsBackToRead(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	content := strings.Repeat("x := 1 // c\n", 100)
	path := writeFile(t, dir, "big.go", content)

	a := analyzer.New(nil, analyzer.Options{MmapThreshold: 16})

	var calls atomic.Int32

	analyzer.SetMapper(a, func(_ *os.File, _ int64) ([]byte, func() error, error) {
		calls.Add(1)

		return nil, nil, errors.New("mapping refused")
	})

	got, err := a.AnalyzePath(path)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, a.AnalyzeContent([]byte(content), path), got)
	assert.Equal(t, int64(100), got.Counts.Code)
}

func TestMmapBelowThresholdNotUsed(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := writeFile(t, dir, "small.go", "x := 1\n")

	a := analyzer.New(nil, analyzer.Options{MmapThreshold: 1 << 20})

	analyzer.SetMapper(a, func(_ *os.File, _ int64) ([]byte, func() error, error) {
		t.Fatal("mapper must not be called below threshold")

		return nil, nil, nil
	})

	got, err := a.AnalyzePath(path)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Counts.Code)
}

func TestAnalyzePathMissingFile(t *testing.T) {
	t.Parallel()

	a := analyzer.New(nil, analyzer.DefaultOptions())

	_, err := a.AnalyzePath(filepath.Join(t.TempDir(), "nope.go"))
	require.ErrorIs(t, err, analyzer.ErrRead)
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestOutcomeString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "counted", analyzer.Counted.String())
	assert.Equal(t, "binary", analyzer.Binary.String())
	assert.Equal(t, "unresolved", analyzer.Unresolved.String())
}
