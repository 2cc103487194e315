// Package languages maps file names, extensions and shebang interpreters to
// language definitions describing their comment syntax.
package languages

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed languages.yaml
var defaultTable []byte

// Sentinel errors returned while building a registry.
var (
	ErrDuplicateClaim = errors.New("languages: key claimed by more than one language")
	ErrInvalidSpec    = errors.New("languages: invalid language spec")
)

// maxShebangLine bounds how much of a file's first line is inspected.
const maxShebangLine = 512

// BlockComment is a single-level block comment delimiter pair.
type BlockComment struct {
	Start string
	End   string
}

// LanguageSpec describes one language. Values handed out by a Registry must
// be treated as read-only.
type LanguageSpec struct {
	Name         string
	Extensions   []string
	Filenames    []string
	Shebangs     []string
	LineComments []string
	Block        *BlockComment
}

// HasBlock reports whether the language defines block comments.
func (s *LanguageSpec) HasBlock() bool {
	return s != nil && s.Block != nil && s.Block.Start != "" && s.Block.End != ""
}

type tableEntry struct {
	Name         string   `yaml:"name"`
	Extensions   []string `yaml:"extensions"`
	Filenames    []string `yaml:"filenames"`
	Shebangs     []string `yaml:"shebangs"`
	LineComments []string `yaml:"line_comments"`
	BlockComment []string `yaml:"block_comment"`
}

// ParseTable decodes a YAML language table.
func ParseTable(data []byte) ([]LanguageSpec, error) {
	var entries []tableEntry

	err := yaml.Unmarshal(data, &entries)
	if err != nil {
		return nil, fmt.Errorf("parse language table: %w", err)
	}

	specs := make([]LanguageSpec, 0, len(entries))

	for _, e := range entries {
		spec := LanguageSpec{
			Name:         e.Name,
			Extensions:   e.Extensions,
			Filenames:    e.Filenames,
			Shebangs:     e.Shebangs,
			LineComments: e.LineComments,
		}

		switch len(e.BlockComment) {
		case 0:
		case 2:
			spec.Block = &BlockComment{Start: e.BlockComment[0], End: e.BlockComment[1]}
		default:
			return nil, fmt.Errorf("%w: %s: block_comment needs a start and an end", ErrInvalidSpec, e.Name)
		}

		specs = append(specs, spec)
	}

	return specs, nil
}

// Registry resolves paths to language specs. It is immutable once built and
// safe for concurrent use.
type Registry struct {
	specs       []*LanguageSpec
	byName      map[string]*LanguageSpec
	byFilename  map[string]*LanguageSpec
	byExtension map[string]*LanguageSpec
	byShebang   map[string]*LanguageSpec
}

// NewRegistry builds a registry, failing if any filename, extension or
// shebang token is claimed twice.
func NewRegistry(specs []LanguageSpec) (*Registry, error) {
	r := &Registry{
		specs:       make([]*LanguageSpec, 0, len(specs)),
		byName:      make(map[string]*LanguageSpec, len(specs)),
		byFilename:  make(map[string]*LanguageSpec),
		byExtension: make(map[string]*LanguageSpec),
		byShebang:   make(map[string]*LanguageSpec),
	}

	for i := range specs {
		spec := cloneSpec(specs[i])

		if strings.TrimSpace(spec.Name) == "" {
			return nil, fmt.Errorf("%w: empty name at index %d", ErrInvalidSpec, i)
		}

		if spec.Block != nil && (spec.Block.Start == "" || spec.Block.End == "") {
			return nil, fmt.Errorf("%w: %s: incomplete block comment", ErrInvalidSpec, spec.Name)
		}

		err := claim(r.byName, "name", strings.ToLower(spec.Name), spec)
		if err != nil {
			return nil, err
		}

		for _, name := range spec.Filenames {
			err = claim(r.byFilename, "filename", strings.ToLower(name), spec)
			if err != nil {
				return nil, err
			}
		}

		for _, ext := range spec.Extensions {
			err = claim(r.byExtension, "extension", strings.ToLower(strings.TrimPrefix(ext, ".")), spec)
			if err != nil {
				return nil, err
			}
		}

		for _, tok := range spec.Shebangs {
			err = claim(r.byShebang, "shebang", tok, spec)
			if err != nil {
				return nil, err
			}
		}

		r.specs = append(r.specs, spec)
	}

	slices.SortFunc(r.specs, func(a, b *LanguageSpec) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})

	return r, nil
}

func claim(m map[string]*LanguageSpec, kind, key string, spec *LanguageSpec) error {
	if key == "" {
		return fmt.Errorf("%w: %s: empty %s", ErrInvalidSpec, spec.Name, kind)
	}

	if prev, ok := m[key]; ok {
		return fmt.Errorf("%w: %s %q (%s, %s)", ErrDuplicateClaim, kind, key, prev.Name, spec.Name)
	}

	m[key] = spec

	return nil
}

func cloneSpec(s LanguageSpec) *LanguageSpec {
	c := &LanguageSpec{
		Name:         s.Name,
		Extensions:   slices.Clone(s.Extensions),
		Filenames:    slices.Clone(s.Filenames),
		Shebangs:     slices.Clone(s.Shebangs),
		LineComments: slices.Clone(s.LineComments),
	}

	if s.Block != nil {
		b := *s.Block
		c.Block = &b
	}

	return c
}

var defaultRegistry = sync.OnceValues(func() (*Registry, error) {
	specs, err := ParseTable(defaultTable)
	if err != nil {
		return nil, err
	}

	return NewRegistry(specs)
})

// Default returns the registry built from the embedded language table.
func Default() *Registry {
	r, err := defaultRegistry()
	if err != nil {
		panic(fmt.Sprintf("languages: embedded table: %v", err))
	}

	return r
}

// Resolve finds the language for path. Special filenames win over
// extensions, which win over the shebang interpreter named in firstLine.
func (r *Registry) Resolve(filePath, firstLine string) (*LanguageSpec, bool) {
	base := filepath.Base(filePath)

	if spec, ok := r.byFilename[strings.ToLower(base)]; ok {
		return spec, true
	}

	if ext := Extension(base); ext != "" {
		if spec, ok := r.byExtension[ext]; ok {
			return spec, true
		}
	}

	if tok, ok := ShebangInterpreter(firstLine); ok {
		if spec, found := r.byShebang[tok]; found {
			return spec, true
		}
	}

	return nil, false
}

// Lookup returns the language with the given canonical name, ignoring case.
func (r *Registry) Lookup(name string) (*LanguageSpec, bool) {
	spec, ok := r.byName[strings.ToLower(name)]

	return spec, ok
}

// Languages returns all registered languages sorted by name.
func (r *Registry) Languages() []*LanguageSpec {
	return slices.Clone(r.specs)
}

// Len returns the number of registered languages.
func (r *Registry) Len() int {
	return len(r.specs)
}

// Extension returns the lowercased final extension of name without the dot.
func Extension(name string) string {
	ext := filepath.Ext(name)
	if len(ext) < 2 {
		return ""
	}

	return strings.ToLower(ext[1:])
}

// ShebangInterpreter extracts the interpreter token from a "#!" line. For
// "/usr/bin/env" the first non-option argument is used.
func ShebangInterpreter(line string) (string, bool) {
	rest, ok := strings.CutPrefix(line, "#!")
	if !ok {
		return "", false
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", false
	}

	tok := path.Base(fields[0])
	if tok == "env" {
		tok = ""

		for _, f := range fields[1:] {
			if strings.HasPrefix(f, "-") || strings.Contains(f, "=") {
				continue
			}

			tok = path.Base(f)

			break
		}
	}

	if tok == "" || tok == "." || tok == "/" {
		return "", false
	}

	return tok, true
}

// FirstLine returns the first line of content when it starts with "#!",
// or an empty string otherwise.
func FirstLine(content []byte) string {
	if !bytes.HasPrefix(content, []byte("#!")) {
		return ""
	}

	line := content
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}

	if len(line) > maxShebangLine {
		line = line[:maxShebangLine]
	}

	return strings.TrimRight(string(line), "\r")
}
