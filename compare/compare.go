// Package compare matches documents extracted from the source and target
// collections by identifier and compares one field between each pair.
package compare

import (
	"errors"
	"log/slog"

	"github.com/hazyhaar/migcheck/xmldoc"
)

// Status is the verdict of one row.
type Status string

const (
	Passed Status = "Passed"
	Failed Status = "Failed"
)

// Failure reasons written to the report.
const (
	ReasonNotInTarget     = "File Not found on second DB"
	ReasonValueDiffers    = "Different value in both files"
	ReasonNoFieldInSource = "Target not found in first file"
	ReasonNoFieldInTarget = "Target not found in second file"
)

// Row is the comparison outcome for one source document.
type Row struct {
	ID       string
	InSource bool
	InTarget bool
	Target   string // field path, empty when the document has no counterpart
	Expected string
	Got      string
	Status   Status
	Reason   string
}

// Passed reports whether the row passed.
func (r Row) Passed() bool { return r.Status == Passed }

// Comparator compares one compiled field across document pairs.
type Comparator struct {
	field  xmldoc.Field
	logger *slog.Logger
}

// New returns a Comparator for field. A nil logger uses slog.Default().
func New(field xmldoc.Field, logger *slog.Logger) *Comparator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Comparator{field: field, logger: logger}
}

// Compare returns one row per source document, in source order. Target
// documents without a source counterpart are ignored.
func (c *Comparator) Compare(source, target []xmldoc.Document) []Row {
	rows := make([]Row, 0, len(source))
	for _, src := range source {
		rows = append(rows, c.row(src, target))
	}
	return rows
}

func (c *Comparator) row(src xmldoc.Document, target []xmldoc.Document) Row {
	dst, ok := find(target, src.ID)
	if !ok {
		c.logger.Warn("compare: file not found on second db", "id", src.ID)
		return Row{ID: src.ID, InSource: true, Status: Failed, Reason: ReasonNotInTarget}
	}

	r := Row{ID: src.ID, InSource: true, InTarget: true, Target: c.field.Path()}

	expected, err := c.field.Value(src)
	if err != nil {
		return c.missing(r, ReasonNoFieldInSource, err)
	}
	got, err := c.field.Value(dst)
	if err != nil {
		r.Expected = expected
		return c.missing(r, ReasonNoFieldInTarget, err)
	}

	r.Expected, r.Got = expected, got
	if expected == got {
		r.Status = Passed
		c.logger.Info("compare: test passed", "id", src.ID, "value", expected)
		return r
	}
	r.Status, r.Reason = Failed, ReasonValueDiffers
	c.logger.Warn("compare: test failed", "id", src.ID, "expected", expected, "got", got)
	return r
}

func (c *Comparator) missing(r Row, reason string, err error) Row {
	r.Status, r.Reason = Failed, reason
	if !errors.Is(err, xmldoc.ErrNoMatch) {
		c.logger.Error("compare: evaluate field", "id", r.ID, "path", r.Target, "error", err)
	} else {
		c.logger.Warn("compare: "+reason, "id", r.ID, "path", r.Target)
	}
	return r
}

// find returns the first document with identifier id.
func find(docs []xmldoc.Document, id string) (xmldoc.Document, bool) {
	for _, d := range docs {
		if d.ID == id {
			return d, true
		}
	}
	return xmldoc.Document{}, false
}

// Summary counts rows by status.
type Summary struct {
	Total  int
	Passed int
	Failed int
}

// Summarize tallies rows.
func Summarize(rows []Row) Summary {
	s := Summary{Total: len(rows)}
	for _, r := range rows {
		if r.Passed() {
			s.Passed++
		} else {
			s.Failed++
		}
	}
	return s
}
