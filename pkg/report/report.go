// Package report renders count and diff results as terminal tables, CSV,
// Markdown or JSON.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// ErrUnknownFormat is returned by ParseFormat.
var ErrUnknownFormat = errors.New("report: unknown format")

// Format selects the output encoding.
type Format string

// Output formats.
const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// Formats lists the accepted format names.
func Formats() []string {
	return []string{string(FormatTable), string(FormatJSON), string(FormatCSV), string(FormatMarkdown)}
}

// ParseFormat accepts a format name; empty selects the table format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatTable, "", "text":
		return FormatTable, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: %q (want one of %s)", ErrUnknownFormat, s, strings.Join(Formats(), ", "))
	}
}

// Options configures a Writer.
type Options struct {
	Format Format
	// NoColor disables ANSI colors in table output.
	NoColor bool
}

// Writer renders results to an io.Writer.
type Writer struct {
	out     io.Writer
	format  Format
	noColor bool
}

// New creates a writer. An empty format renders tables.
func New(out io.Writer, opts Options) *Writer {
	format := opts.Format
	if format == "" {
		format = FormatTable
	}

	return &Writer{out: out, format: format, noColor: opts.NoColor || color.NoColor}
}

// Format returns the writer's output format.
func (w *Writer) Format() Format {
	return w.format
}

func (w *Writer) newTable() table.Writer {
	tbl := table.NewWriter()
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Options.DrawBorder = false

	return tbl
}

// rightAlign aligns columns from..to (1-based, inclusive) to the right.
func rightAlign(tbl table.Writer, from, to int) {
	configs := make([]table.ColumnConfig, 0, to-from+1)

	for n := from; n <= to; n++ {
		configs = append(configs, table.ColumnConfig{
			Number:      n,
			Align:       text.AlignRight,
			AlignFooter: text.AlignRight,
			AlignHeader: text.AlignRight,
		})
	}

	tbl.SetColumnConfigs(configs)
}

func (w *Writer) render(tbl table.Writer) error {
	var out string

	switch w.format {
	case FormatCSV:
		out = tbl.RenderCSV()
	case FormatMarkdown:
		out = tbl.RenderMarkdown()
	default:
		out = tbl.Render()
	}

	_, err := fmt.Fprintln(w.out, out)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}

func (w *Writer) writeJSON(v any) error {
	encoder := json.NewEncoder(w.out)
	encoder.SetIndent("", "  ")

	err := encoder.Encode(v)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	return nil
}

// number formats an unsigned count; table output groups digits.
func (w *Writer) number(n int64) string {
	if w.format == FormatTable {
		return humanize.Comma(n)
	}

	return strconv.FormatInt(n, 10)
}

// signed formats a delta with an explicit plus sign for positive values.
func (w *Writer) signed(n int64) string {
	if n > 0 {
		return "+" + w.number(n)
	}

	return w.number(n)
}

func (w *Writer) paint(attr color.Attribute) *color.Color {
	c := color.New(attr)
	if w.noColor {
		c.DisableColor()
	}

	return c
}

func elapsedMillis(d time.Duration) int64 {
	return d.Milliseconds()
}

func formatElapsed(d time.Duration) string {
	return d.Round(time.Millisecond).String()
}
