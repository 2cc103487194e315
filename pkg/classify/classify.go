// Package classify splits content into lines and classifies each one as
// blank, comment or code for a given language.
package classify

import (
	"bytes"

	"github.com/Sumatoshi-tech/locfang/pkg/counts"
	"github.com/Sumatoshi-tech/locfang/pkg/languages"
)

// Mode selects the classification strategy.
type Mode int

const (
	// ModeFull tracks line and block comments.
	ModeFull Mode = iota
	// ModeUltra counts every non-blank line as code.
	ModeUltra
)

// String returns the mode name.
func (m Mode) String() string {
	if m == ModeUltra {
		return "ultra"
	}

	return "full"
}

// Kind is the class of a single line.
type Kind int

// Line kinds.
const (
	Blank Kind = iota
	Comment
	Code
)

// Classifier carries the block-comment state across the lines of one file.
// The zero value is not usable; create one with New.
type Classifier struct {
	spec      *languages.LanguageSpec
	lineMarks [][]byte
	start     []byte
	end       []byte
	mode      Mode
	inBlock   bool
}

// New creates a classifier for spec. A nil spec has no comment syntax.
func New(spec *languages.LanguageSpec, mode Mode) *Classifier {
	c := &Classifier{spec: spec, mode: mode}

	if spec == nil || mode == ModeUltra {
		return c
	}

	for _, m := range spec.LineComments {
		if m != "" {
			c.lineMarks = append(c.lineMarks, []byte(m))
		}
	}

	if spec.HasBlock() {
		c.start = []byte(spec.Block.Start)
		c.end = []byte(spec.Block.End)
	}

	return c
}

// InBlock reports whether the previous line left a block comment open.
func (c *Classifier) InBlock() bool {
	return c.inBlock
}

// Next classifies one line without its terminator.
func (c *Classifier) Next(line []byte) Kind {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 {
		return Blank
	}

	if c.mode == ModeUltra {
		return Code
	}

	if c.inBlock {
		return c.insideBlock(trimmed)
	}

	return c.outsideBlock(trimmed)
}

func (c *Classifier) insideBlock(line []byte) Kind {
	i := bytes.Index(line, c.end)
	if i < 0 {
		return Comment
	}

	c.inBlock = false

	rest := line[i+len(c.end):]
	if isBlank(rest) {
		return Comment
	}

	// Single level: a start in the remainder without a later end reopens.
	if j := bytes.Index(rest, c.start); j >= 0 && !bytes.Contains(rest[j+len(c.start):], c.end) {
		c.inBlock = true
	}

	return Code
}

func (c *Classifier) outsideBlock(line []byte) Kind {
	for _, m := range c.lineMarks {
		if bytes.HasPrefix(line, m) {
			return Comment
		}
	}

	if c.start == nil {
		return Code
	}

	i := bytes.Index(line, c.start)
	if i < 0 {
		return Code
	}

	before := line[:i]
	after := line[i+len(c.start):]

	if j := bytes.Index(after, c.end); j >= 0 {
		if isBlank(before) && isBlank(after[j+len(c.end):]) {
			return Comment
		}

		return Code
	}

	c.inBlock = true

	if isBlank(before) {
		return Comment
	}

	return Code
}

// Classify counts the lines of content. Lines end at '\n' with an optional
// preceding '\r'; a trailing terminator does not start another line.
func Classify(content []byte, spec *languages.LanguageSpec, mode Mode) counts.FileCounts {
	fc := counts.FileCounts{Files: 1}
	c := New(spec, mode)

	for len(content) > 0 {
		var line []byte

		if i := bytes.IndexByte(content, '\n'); i >= 0 {
			line, content = content[:i], content[i+1:]
		} else {
			line, content = content, nil
		}

		line = bytes.TrimSuffix(line, []byte{'\r'})

		switch c.Next(line) {
		case Blank:
			fc.Blank++
		case Comment:
			fc.Comment++
		case Code:
			fc.Code++
		}

		fc.Total++
	}

	return fc
}

func isBlank(b []byte) bool {
	return len(bytes.TrimSpace(b)) == 0
}
