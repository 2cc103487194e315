package report

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/locfang/pkg/counts"
	"github.com/Sumatoshi-tech/locfang/pkg/diff"
)

// Diff is a rendered diff run.
type Diff struct {
	Base       string
	Head       string
	Result     counts.DiffResult
	Violations []diff.Violation
	// Failing marks violations as fatal; they are rendered as errors rather
	// than warnings.
	Failing bool
	Elapsed time.Duration
}

type diffLanguage struct {
	Language string `json:"language"`
	counts.LanguageDelta
}

type diffJSON struct {
	Base       string               `json:"base"`
	Head       string               `json:"head"`
	Languages  []diffLanguage       `json:"languages"`
	Total      counts.LanguageDelta `json:"total"`
	Status     counts.StatusCounts  `json:"status"`
	Skipped    counts.Skipped       `json:"skipped"`
	Files      []counts.FileDelta   `json:"files,omitempty"`
	Failed     []counts.FileError   `json:"failed,omitempty"`
	Violations []diff.Violation     `json:"violations"`
	ElapsedMS  int64                `json:"elapsed_ms"`
}

// Diff renders a diff run: the per-language table, the optional per-file
// table, and threshold violations.
func (w *Writer) Diff(d Diff) error {
	res := d.Result
	names := res.SortedLanguages()

	if w.format == FormatJSON {
		doc := diffJSON{
			Base:       d.Base,
			Head:       d.Head,
			Languages:  make([]diffLanguage, 0, len(names)),
			Total:      res.Total,
			Status:     res.Status,
			Skipped:    res.Skipped,
			Files:      res.Files,
			Failed:     res.Failed,
			Violations: d.Violations,
			ElapsedMS:  elapsedMillis(d.Elapsed),
		}

		if doc.Violations == nil {
			doc.Violations = []diff.Violation{}
		}

		for _, name := range names {
			doc.Languages = append(doc.Languages, diffLanguage{Language: name, LanguageDelta: res.Languages[name]})
		}

		return w.writeJSON(doc)
	}

	if w.format == FormatTable {
		_, err := fmt.Fprintf(w.out, "Diff %s..%s\n\n", d.Base, d.Head)
		if err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	err := w.render(w.languageDeltas(res, names))
	if err != nil {
		return err
	}

	if len(res.Files) > 0 && w.format != FormatCSV {
		err = w.render(w.fileDeltas(res.Files))
		if err != nil {
			return err
		}
	}

	switch w.format {
	case FormatTable:
		err = w.diffSummary(d)
		if err != nil {
			return err
		}

		return w.Violations(d.Violations, d.Failing)
	case FormatMarkdown:
		return w.markdownViolations(d.Violations)
	default:
		return nil
	}
}

func (w *Writer) languageDeltas(res counts.DiffResult, names []string) table.Writer {
	tbl := w.newTable()
	tbl.AppendHeader(table.Row{"Language", "Files", "Code", "Comments", "Blanks", "Total", "+Code", "-Code"})
	rightAlign(tbl, 2, 8)

	row := func(label string, d counts.LanguageDelta) table.Row {
		return table.Row{
			label, w.number(d.Files), w.signed(d.Code), w.signed(d.Comment), w.signed(d.Blank),
			w.signed(d.Total), w.number(d.CodeAdded), w.number(d.CodeRemoved),
		}
	}

	for _, name := range names {
		tbl.AppendRow(row(name, res.Languages[name]))
	}

	tbl.AppendFooter(row("Total", res.Total))

	return tbl
}

func (w *Writer) fileDeltas(files []counts.FileDelta) table.Writer {
	tbl := w.newTable()
	tbl.AppendHeader(table.Row{"Status", "Path", "Language", "Code", "Comments", "Blanks", "Total"})
	rightAlign(tbl, 4, 7)

	for _, fd := range files {
		path := fd.Path
		if fd.OldPath != "" {
			path = fd.OldPath + " -> " + fd.Path
		}

		tbl.AppendRow(table.Row{
			fd.Status.Code(), path, fd.Language,
			w.signed(fd.Code), w.signed(fd.Comment), w.signed(fd.Blank), w.signed(fd.Total),
		})
	}

	return tbl
}

func (w *Writer) diffSummary(d Diff) error {
	res := d.Result

	_, err := fmt.Fprintf(w.out, "\nChanged paths: %s added, %s modified, %s deleted, %s renamed  skipped: %s binary, %s unresolved  failed: %s  elapsed: %s\n",
		w.number(res.Status.Added), w.number(res.Status.Modified), w.number(res.Status.Deleted), w.number(res.Status.Renamed),
		w.number(res.Skipped.Binary), w.number(res.Skipped.Unresolved), w.number(int64(len(res.Failed))),
		formatElapsed(d.Elapsed))
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return w.failures(res.Failed)
}

// Violations prints threshold violations, in red when failing and in
// yellow otherwise. Nothing is printed for an empty list.
func (w *Writer) Violations(vs []diff.Violation, failing bool) error {
	if len(vs) == 0 {
		return nil
	}

	c, heading := w.paint(color.FgYellow), "Threshold warnings:"
	if failing {
		c, heading = w.paint(color.FgRed), "Threshold violations:"
	}

	_, err := c.Fprintf(w.out, "\n%s\n", heading)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	for _, v := range vs {
		_, err = c.Fprintf(w.out, "  - %s\n", v)
		if err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	return nil
}

func (w *Writer) markdownViolations(vs []diff.Violation) error {
	if len(vs) == 0 {
		return nil
	}

	_, err := fmt.Fprintln(w.out, "\n**Threshold violations**")
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	for _, v := range vs {
		_, err = fmt.Fprintf(w.out, "- %s\n", v)
		if err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	return nil
}
