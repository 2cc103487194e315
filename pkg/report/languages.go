package report

import (
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/locfang/pkg/languages"
)

type languageJSON struct {
	Name         string   `json:"name"`
	Extensions   []string `json:"extensions"`
	Filenames    []string `json:"filenames,omitempty"`
	Shebangs     []string `json:"shebangs,omitempty"`
	LineComments []string `json:"line_comments,omitempty"`
	BlockComment []string `json:"block_comment,omitempty"`
}

// Languages renders the registry contents.
func (w *Writer) Languages(specs []*languages.LanguageSpec) error {
	if w.format == FormatJSON {
		doc := make([]languageJSON, 0, len(specs))

		for _, s := range specs {
			entry := languageJSON{
				Name:         s.Name,
				Extensions:   s.Extensions,
				Filenames:    s.Filenames,
				Shebangs:     s.Shebangs,
				LineComments: s.LineComments,
			}

			if s.HasBlock() {
				entry.BlockComment = []string{s.Block.Start, s.Block.End}
			}

			doc = append(doc, entry)
		}

		return w.writeJSON(doc)
	}

	tbl := w.newTable()
	tbl.AppendHeader(table.Row{"Language", "Extensions", "Line comments", "Block comment"})

	for _, s := range specs {
		block := ""
		if s.HasBlock() {
			block = s.Block.Start + " " + s.Block.End
		}

		tbl.AppendRow(table.Row{s.Name, strings.Join(s.Extensions, " "), strings.Join(s.LineComments, " "), block})
	}

	tbl.AppendFooter(table.Row{"Total", len(specs)})

	return w.render(tbl)
}
