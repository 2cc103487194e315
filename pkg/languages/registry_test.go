package languages_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/locfang/pkg/languages"
)

func TestDefaultRegistryBuilds(t *testing.T) {
	t.Parallel()

	reg := languages.Default()
	require.NotNil(t, reg)
	assert.Greater(t, reg.Len(), 50)

	names := make([]string, 0, reg.Len())
	for _, spec := range reg.Languages() {
		names = append(names, spec.Name)
	}

	assert.IsNonDecreasing(t, lowerAll(names))
}

func TestResolve(t *testing.T) {
	t.Parallel()

	reg := languages.Default()

	tests := []struct {
		name      string
		path      string
		firstLine string
		want      string
		found     bool
	}{
		{"extension", "src/main.go", "", "Go", true},
		{"extension case insensitive", "LIB.RS", "", "Rust", true},
		{"multi dot uses final extension", "archive.tar.py", "", "Python", true},
		{"special filename", "build/Makefile", "", "Make", true},
		{"special filename case insensitive", "DOCKERFILE", "", "Dockerfile", true},
		{"filename beats extension", "CMakeLists.txt", "", "CMake", true},
		{"plain txt", "notes.txt", "", "Text", true},
		{"jsx maps to javascript", "App.jsx", "", "JavaScript", true},
		{"tsx maps to typescript", "App.tsx", "", "TypeScript", true},
		{"shebang direct", "bin/tool", "#!/bin/bash", "Shell", true},
		{"shebang env", "bin/tool", "#!/usr/bin/env python3", "Python", true},
		{"shebang env with options", "bin/tool", "#!/usr/bin/env -S node --harmony", "JavaScript", true},
		{"extension beats shebang", "script.rb", "#!/usr/bin/env python3", "Ruby", true},
		{"shebang no version stripping", "bin/tool", "#!/usr/bin/python3.12", "", false},
		{"unknown extension", "data.unknownext", "", "", false},
		{"no extension no shebang", "bin/tool", "echo hi", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			spec, ok := reg.Resolve(tt.path, tt.firstLine)
			assert.Equal(t, tt.found, ok)

			if tt.found {
				require.NotNil(t, spec)
				assert.Equal(t, tt.want, spec.Name)
			} else {
				assert.Nil(t, spec)
			}
		})
	}
}

func TestNewRegistryRejectsDuplicateClaims(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		specs []languages.LanguageSpec
	}{
		{
			name: "extension",
			specs: []languages.LanguageSpec{
				{Name: "A", Extensions: []string{"x"}},
				{Name: "B", Extensions: []string{"X"}},
			},
		},
		{
			name: "filename",
			specs: []languages.LanguageSpec{
				{Name: "A", Filenames: []string{"Build"}},
				{Name: "B", Filenames: []string{"build"}},
			},
		},
		{
			name: "shebang",
			specs: []languages.LanguageSpec{
				{Name: "A", Shebangs: []string{"tool"}},
				{Name: "B", Shebangs: []string{"tool"}},
			},
		},
		{
			name: "name",
			specs: []languages.LanguageSpec{
				{Name: "Same"},
				{Name: "same"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := languages.NewRegistry(tt.specs)
			require.ErrorIs(t, err, languages.ErrDuplicateClaim)
		})
	}
}

func TestNewRegistryRejectsInvalidSpecs(t *testing.T) {
	t.Parallel()

	_, err := languages.NewRegistry([]languages.LanguageSpec{{Name: " "}})
	require.ErrorIs(t, err, languages.ErrInvalidSpec)

	_, err = languages.NewRegistry([]languages.LanguageSpec{
		{Name: "Half", Block: &languages.BlockComment{Start: "/*"}},
	})
	require.ErrorIs(t, err, languages.ErrInvalidSpec)
}

func TestNewRegistryCopiesInput(t *testing.T) {
	t.Parallel()

	specs := []languages.LanguageSpec{{Name: "Toy", Extensions: []string{"toy"}, LineComments: []string{"#"}}}

	reg, err := languages.NewRegistry(specs)
	require.NoError(t, err)

	specs[0].LineComments[0] = "//"

	spec, ok := reg.Resolve("a.toy", "")
	require.True(t, ok)
	assert.Equal(t, []string{"#"}, spec.LineComments)
}

func TestParseTable(t *testing.T) {
	t.Parallel()

	specs, err := languages.ParseTable([]byte(`
- name: Toy
  extensions: [toy]
  line_comments: ["#"]
  block_comment: ["<<", ">>"]
`))
	require.NoError(t, err)
	require.Len(t, specs, 1)
	require.NotNil(t, specs[0].Block)
	assert.Equal(t, "<<", specs[0].Block.Start)
	assert.True(t, specs[0].HasBlock())

	_, err = languages.ParseTable([]byte(`
- name: Broken
  block_comment: ["<<"]
`))
	require.ErrorIs(t, err, languages.ErrInvalidSpec)

	_, err = languages.ParseTable([]byte("not: [valid"))
	require.Error(t, err)
}

func TestLookup(t *testing.T) {
	t.Parallel()

	spec, ok := languages.Default().Lookup("python")
	require.True(t, ok)
	assert.Equal(t, "Python", spec.Name)

	_, ok = languages.Default().Lookup("Klingon")
	assert.False(t, ok)
}

func TestShebangInterpreter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		line string
		want string
		ok   bool
	}{
		{"#!/bin/sh", "sh", true},
		{"#! /usr/bin/perl -w", "perl", true},
		{"#!/usr/bin/env ruby", "ruby", true},
		{"#!/usr/bin/env -i FOO=1 node", "node", true},
		{"#!/usr/bin/env", "", false},
		{"#!", "", false},
		{"# not a shebang", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := languages.ShebangInterpreter(tt.line)
		assert.Equal(t, tt.ok, ok, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}
}

func TestFirstLine(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "#!/bin/sh", languages.FirstLine([]byte("#!/bin/sh\r\necho hi\n")))
	assert.Empty(t, languages.FirstLine([]byte("package main\n")))
	assert.Equal(t, "#!/usr/bin/env python3", languages.FirstLine([]byte("#!/usr/bin/env python3")))
}

func TestExtension(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "go", languages.Extension("main.GO"))
	assert.Empty(t, languages.Extension("Makefile"))
	assert.Empty(t, languages.Extension("trailing."))
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}

	return out
}
