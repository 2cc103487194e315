package report

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/Sumatoshi-tech/locfang/pkg/counts"
)

// Count is a rendered line count run.
type Count struct {
	Result  counts.AnalyzeResult
	Elapsed time.Duration
}

type countLanguage struct {
	Language string `json:"language"`
	counts.FileCounts
}

type countJSON struct {
	Languages     []countLanguage    `json:"languages"`
	Total         counts.FileCounts  `json:"total"`
	FilesAnalyzed int64              `json:"files_analyzed"`
	Skipped       counts.Skipped     `json:"skipped"`
	Failed        []counts.FileError `json:"failed,omitempty"`
	ElapsedMS     int64              `json:"elapsed_ms"`
}

// Count renders a count run. Languages are ordered by descending code,
// then total, then name.
func (w *Writer) Count(c Count) error {
	res := c.Result
	names := res.SortedLanguages()

	if w.format == FormatJSON {
		doc := countJSON{
			Languages:     make([]countLanguage, 0, len(names)),
			Total:         res.Total,
			FilesAnalyzed: res.FilesAnalyzed,
			Skipped:       res.Skipped,
			Failed:        res.Failed,
			ElapsedMS:     elapsedMillis(c.Elapsed),
		}

		for _, name := range names {
			doc.Languages = append(doc.Languages, countLanguage{Language: name, FileCounts: res.Languages[name]})
		}

		return w.writeJSON(doc)
	}

	tbl := w.newTable()
	tbl.AppendHeader(table.Row{"Language", "Files", "Lines", "Code", "Comments", "Blanks"})
	rightAlign(tbl, 2, 6)

	for _, name := range names {
		fc := res.Languages[name]
		tbl.AppendRow(table.Row{name, w.number(fc.Files), w.number(fc.Total), w.number(fc.Code), w.number(fc.Comment), w.number(fc.Blank)})
	}

	tbl.AppendFooter(table.Row{
		"Total", w.number(res.Total.Files), w.number(res.Total.Total),
		w.number(res.Total.Code), w.number(res.Total.Comment), w.number(res.Total.Blank),
	})

	err := w.render(tbl)
	if err != nil {
		return err
	}

	if w.format != FormatTable {
		return nil
	}

	return w.countSummary(c)
}

func (w *Writer) countSummary(c Count) error {
	res := c.Result

	_, err := fmt.Fprintf(w.out, "\nFiles analyzed: %s  skipped: %s binary, %s unresolved  failed: %s  elapsed: %s\n",
		w.number(res.FilesAnalyzed), w.number(res.Skipped.Binary), w.number(res.Skipped.Unresolved),
		w.number(int64(len(res.Failed))), formatElapsed(c.Elapsed))
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return w.failures(res.Failed)
}

func (w *Writer) failures(failed []counts.FileError) error {
	if len(failed) == 0 {
		return nil
	}

	red := w.paint(color.FgRed)

	for _, fe := range failed {
		_, err := red.Fprintf(w.out, "  failed %s: %s\n", fe.Path, fe.Error)
		if err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}

	return nil
}
