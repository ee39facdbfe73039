// Package report accumulates comparison rows and writes them as an XLSX
// workbook whose file name carries the generation time.
package report

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/hazyhaar/migcheck/compare"
)

const sheet = "Sheet1"

// Headers are the report columns, in order.
var Headers = []string{
	"File Name",
	"Exists (DB1)",
	"Exists (DB2)",
	"Target",
	"Expected",
	"Got",
	"Status",
	"Reason",
}

var colWidths = []float64{40, 14, 14, 28, 28, 28, 10, 34}

// Option configures a Builder.
type Option func(*Builder)

// WithLabels sets the text written for true and false cells.
func WithLabels(yes, no string) Option {
	return func(b *Builder) { b.yes, b.no = yes, no }
}

// WithPrefix sets the file name prefix. Default: "report".
func WithPrefix(prefix string) Option {
	return func(b *Builder) { b.prefix = prefix }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// WithClock overrides the time source used for file names.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// Builder stores rows column-wise, one slice per header.
type Builder struct {
	cols    [][]any
	summary compare.Summary

	yes, no string
	prefix  string
	logger  *slog.Logger
	now     func() time.Time
}

// NewBuilder returns an empty Builder.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		cols:   make([][]any, len(Headers)),
		yes:    "Yes",
		no:     "No",
		prefix: "report",
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Push appends one row.
func (b *Builder) Push(r compare.Row) {
	vals := []any{r.ID, b.label(r.InSource), b.label(r.InTarget), r.Target, r.Expected, r.Got, string(r.Status), r.Reason}
	for i, v := range vals {
		b.cols[i] = append(b.cols[i], v)
	}
	b.summary.Total++
	if r.Passed() {
		b.summary.Passed++
	} else {
		b.summary.Failed++
	}
}

// PushAll appends rows in order.
func (b *Builder) PushAll(rows []compare.Row) {
	for _, r := range rows {
		b.Push(r)
	}
}

func (b *Builder) label(v bool) string {
	if v {
		return b.yes
	}
	return b.no
}

// Len returns the number of rows pushed.
func (b *Builder) Len() int { return len(b.cols[0]) }

// Summary returns the pass/fail tally of the rows pushed.
func (b *Builder) Summary() compare.Summary { return b.summary }

// FileName returns the report file name for t.
func (b *Builder) FileName(t time.Time) string {
	return fmt.Sprintf("%s_%s.xlsx", b.prefix, t.Format("01-02-2006_1504"))
}

// Write renders the workbook into dir and returns its path. An existing
// file is never overwritten: a numeric suffix is added instead.
func (b *Builder) Write(dir string) (string, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return "", fmt.Errorf("report: style: %w", err)
	}
	for i, h := range Headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return "", fmt.Errorf("report: header: %w", err)
		}
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(sheet, col, col, colWidths[i])
	}
	last, _ := excelize.CoordinatesToCellName(len(Headers), 1)
	if err := f.SetCellStyle(sheet, "A1", last, bold); err != nil {
		return "", fmt.Errorf("report: style header: %w", err)
	}

	for c, col := range b.cols {
		for r, v := range col {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return "", fmt.Errorf("report: cell %s: %w", cell, err)
			}
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("report: %w", err)
	}
	out, path, err := b.create(dir)
	if err != nil {
		return "", err
	}
	if _, err := f.WriteTo(out); err != nil {
		out.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("report: write %s: %w", path, err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("report: close %s: %w", path, err)
	}

	b.logger.Info("report: written", "path", path, "rows", b.Len(),
		"passed", b.summary.Passed, "failed", b.summary.Failed)
	return path, nil
}

// create opens a new file named after the current time, adding _2, _3, ...
// while the name is taken.
func (b *Builder) create(dir string) (*os.File, string, error) {
	name := b.FileName(b.now())
	ext := filepath.Ext(name)
	stem := name[:len(name)-len(ext)]

	path := filepath.Join(dir, name)
	for n := 2; ; n++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, fs.ErrExist) || n > 1000 {
			return nil, "", fmt.Errorf("report: create %s: %w", path, err)
		}
		path = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, n, ext))
	}
}
