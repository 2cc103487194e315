package commands_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/locfang/cmd/locfang/commands"
	"github.com/Sumatoshi-tech/locfang/pkg/gitlib/gittest"
	"github.com/Sumatoshi-tech/locfang/pkg/report"
)

const goSource = `package main

// main prints.
func main() {}
`

const pySource = `# tool
import os

print(os.name)
`

// execute runs the root command with a quiet config file and returns
// stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cfgPath := filepath.Join(t.TempDir(), "locfang.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("logging:\n  level: error\n"), 0o600))

	var stdout, stderr bytes.Buffer

	root := commands.NewRootCommand()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--config", cfgPath, "--no-color"}, args...))

	err := root.Execute()

	return stdout.String(), err
}

type languageRow struct {
	Language string `json:"language"`
	Files    int64  `json:"files"`
	Code     int64  `json:"code"`
	Comment  int64  `json:"comment"`
	Blank    int64  `json:"blank"`
	Total    int64  `json:"total"`
}

func sourceTree(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte(goSource), 0o600))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tools"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tools", "tool.py"), []byte(pySource), 0o600))

	return dir
}

func TestVersionCommand(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "version")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "locfang "), out)
	assert.Contains(t, out, "commit:")
}

func TestLanguagesCommand(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "languages", "--format", "json")
	require.NoError(t, err)

	var doc []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.NotEmpty(t, doc)
}

func TestCountCommandJSON(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "count", "--format", "json", "--workers", "2", sourceTree(t))
	require.NoError(t, err)

	var doc struct {
		Languages     []languageRow `json:"languages"`
		FilesAnalyzed int64         `json:"files_analyzed"`
	}

	require.NoError(t, json.Unmarshal([]byte(out), &doc))

	assert.Equal(t, int64(2), doc.FilesAnalyzed)
	assert.Contains(t, doc.Languages, languageRow{Language: "Go", Files: 1, Code: 2, Comment: 1, Blank: 1, Total: 4})
	assert.Contains(t, doc.Languages, languageRow{Language: "Python", Files: 1, Code: 2, Comment: 1, Blank: 1, Total: 4})
}

func TestCountCommandExtensionFilter(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "count", "--format", "csv", "--ext", "py", sourceTree(t))
	require.NoError(t, err)

	lower := strings.ToLower(out)
	assert.Contains(t, lower, "python")
	assert.NotContains(t, lower, "go,")
}

func TestCountCommandTable(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "count", sourceTree(t))
	require.NoError(t, err)

	assert.Contains(t, out, "Python")
	assert.Contains(t, out, "Files analyzed: 2")
}

func TestCountCommandWritesMetricsFile(t *testing.T) {
	t.Parallel()

	metricsPath := filepath.Join(t.TempDir(), "locfang.prom")

	_, err := execute(t, "--metrics-file", metricsPath, "count", "--format", "json", sourceTree(t))
	require.NoError(t, err)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "locfang_files")
}

func TestCountCommandRejectsUnknownFormat(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "count", "--format", "xml", sourceTree(t))
	require.ErrorIs(t, err, report.ErrUnknownFormat)
}

func TestCountCommandRejectsInvalidFlagValue(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "count", "--unresolved", "maybe", sourceTree(t))
	require.Error(t, err)
}

func gitRepo(t *testing.T) string {
	t.Helper()

	tr := gittest.New(t)
	tr.Write("main.go", goSource).Commit("root")
	tr.Write("tools/tool.py", pySource).Commit("add tool")

	return tr.Path
}

type diffDoc struct {
	Base      string `json:"base"`
	Languages []struct {
		Language  string `json:"language"`
		CodeAdded int64  `json:"code_added"`
	} `json:"languages"`
	Status struct {
		Added int64 `json:"added"`
	} `json:"status"`
	Violations []struct {
		Scope    string `json:"scope"`
		Language string `json:"language"`
	} `json:"violations"`
}

func TestDiffCommandDefaultRange(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "diff", "--repo", gitRepo(t), "--format", "json")
	require.NoError(t, err)

	var doc diffDoc
	require.NoError(t, json.Unmarshal([]byte(out), &doc))

	assert.True(t, strings.HasPrefix(doc.Base, "HEAD~1 ("), doc.Base)
	assert.Equal(t, int64(1), doc.Status.Added)
	require.Len(t, doc.Languages, 1)
	assert.Equal(t, "Python", doc.Languages[0].Language)
	assert.Equal(t, int64(2), doc.Languages[0].CodeAdded)
	assert.Empty(t, doc.Violations)
}

func TestDiffCommandRoot(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "diff", "--repo", gitRepo(t), "--root", "--format", "json")
	require.NoError(t, err)

	var doc diffDoc
	require.NoError(t, json.Unmarshal([]byte(out), &doc))

	assert.Equal(t, "(empty)", doc.Base)
	assert.Equal(t, int64(2), doc.Status.Added)
}

func TestDiffCommandThresholdWarning(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "diff", "--repo", gitRepo(t), "--max-code-added", "1")
	require.NoError(t, err)

	assert.Contains(t, out, "Threshold warnings:")
	assert.Contains(t, out, "code_added 2 exceeds threshold 1")
}

func TestDiffCommandThresholdFailure(t *testing.T) {
	t.Parallel()

	out, err := execute(t, "diff", "--repo", gitRepo(t), "--format", "json",
		"--max-code-added-lang", "python:1", "--fail-on-threshold")
	require.ErrorIs(t, err, commands.ErrThresholdExceeded)
	assert.Equal(t, 2, commands.ExitCode(err))

	var doc diffDoc
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Violations, 1)
	assert.Equal(t, "language", doc.Violations[0].Scope)
	assert.Equal(t, "Python", doc.Violations[0].Language)
}

func TestDiffCommandExclusiveModes(t *testing.T) {
	t.Parallel()

	_, err := execute(t, "diff", "--repo", gitRepo(t), "--staged", "--working-tree")
	require.ErrorIs(t, err, commands.ErrExclusiveFlags)
	assert.Equal(t, 1, commands.ExitCode(err))
}

func TestDiffCommandFailOnError(t *testing.T) {
	t.Parallel()

	tr := gittest.New(t)
	tr.Write("main.go", goSource).Commit("root")
	tr.Remove("main.go")
	require.NoError(t, os.Symlink("main.go", filepath.Join(tr.Path, "main.go")))

	out, err := execute(t, "diff", "--repo", tr.Path, "--working-tree", "--format", "json")
	require.NoError(t, err)

	var doc struct {
		Failed []struct {
			Path string `json:"path"`
		} `json:"failed"`
	}

	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Failed, 1)
	assert.Equal(t, "main.go", doc.Failed[0].Path)

	_, err = execute(t, "diff", "--repo", tr.Path, "--working-tree", "--format", "json", "--fail-on-error")
	require.ErrorIs(t, err, commands.ErrFailures)
	assert.Equal(t, 1, commands.ExitCode(err))
}

func TestDiffCommandWorkingTree(t *testing.T) {
	t.Parallel()

	tr := gittest.New(t)
	tr.Write("main.go", goSource).Commit("root")
	tr.Write("main.go", goSource+"\nfunc extra() {}\n")

	out, err := execute(t, "diff", "--repo", tr.Path, "--working-tree", "--by-file", "--format", "json")
	require.NoError(t, err)

	var doc struct {
		Head  string `json:"head"`
		Files []struct {
			Path string `json:"path"`
			Code int64  `json:"code"`
		} `json:"files"`
	}

	require.NoError(t, json.Unmarshal([]byte(out), &doc))

	assert.Equal(t, "(working tree)", doc.Head)
	require.Len(t, doc.Files, 1)
	assert.Equal(t, "main.go", doc.Files[0].Path)
	assert.Equal(t, int64(1), doc.Files[0].Code)
}
