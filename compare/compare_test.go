package compare

import (
	"io"
	"log/slog"
	"testing"

	"github.com/hazyhaar/migcheck/xmldoc"
)

const claimNS = "http://example.com/claim"

var field = xmldoc.MustCompileField(".//claim:PublicId", "claim", claimNS)

func parse(t *testing.T, id, raw string) xmldoc.Document {
	t.Helper()
	d, err := xmldoc.Parse(id, raw)
	if err != nil {
		t.Fatalf("parse %s: %v", id, err)
	}
	return d
}

func doc(t *testing.T, id, publicID string) xmldoc.Document {
	t.Helper()
	return parse(t, id, `<claim:Claim xmlns:claim="`+claimNS+`"><claim:PublicId>`+publicID+`</claim:PublicId></claim:Claim>`)
}

func newComparator() *Comparator {
	return New(field, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestCompare_EqualValuesPass(t *testing.T) {
	rows := newComparator().Compare(
		[]xmldoc.Document{doc(t, "/claim1.xml", "X1")},
		[]xmldoc.Document{doc(t, "/claim1.xml", "X1")},
	)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	want := Row{
		ID: "/claim1.xml", InSource: true, InTarget: true,
		Target: ".//claim:PublicId", Expected: "X1", Got: "X1",
		Status: Passed,
	}
	if rows[0] != want {
		t.Errorf("row = %+v\nwant %+v", rows[0], want)
	}
}

func TestCompare_EmptyTarget(t *testing.T) {
	rows := newComparator().Compare([]xmldoc.Document{doc(t, "/claim1.xml", "X1")}, nil)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	want := Row{ID: "/claim1.xml", InSource: true, Status: Failed, Reason: ReasonNotInTarget}
	if rows[0] != want {
		t.Errorf("row = %+v\nwant %+v", rows[0], want)
	}
	if rows[0].Reason != "File Not found on second DB" {
		t.Errorf("reason = %q", rows[0].Reason)
	}
}

func TestCompare_MixedScenario(t *testing.T) {
	source := []xmldoc.Document{doc(t, "/a.xml", "X1"), doc(t, "/b.xml", "X2")}
	target := []xmldoc.Document{doc(t, "/b.xml", "X2"), doc(t, "/a.xml", "X9"), doc(t, "/c.xml", "X3")}

	rows := newComparator().Compare(source, target)
	if len(rows) != len(source) {
		t.Fatalf("got %d rows, want %d", len(rows), len(source))
	}

	a := rows[0]
	if a.ID != "/a.xml" || a.Status != Failed || a.Reason != "Different value in both files" {
		t.Errorf("row a = %+v", a)
	}
	if a.Expected != "X1" || a.Got != "X9" {
		t.Errorf("row a values = %q/%q, want X1/X9", a.Expected, a.Got)
	}

	b := rows[1]
	if b.ID != "/b.xml" || !b.Passed() || b.Reason != "" {
		t.Errorf("row b = %+v", b)
	}

	if got, want := Summarize(rows), (Summary{Total: 2, Passed: 1, Failed: 1}); got != want {
		t.Errorf("summary = %+v, want %+v", got, want)
	}
}

func TestCompare_EmptySource(t *testing.T) {
	rows := newComparator().Compare(nil, []xmldoc.Document{doc(t, "/a.xml", "X1")})
	if len(rows) != 0 {
		t.Errorf("got %d rows, want 0", len(rows))
	}
	if got := Summarize(rows); got != (Summary{}) {
		t.Errorf("summary = %+v, want zero", got)
	}
}

func TestCompare_ValuesVerbatim(t *testing.T) {
	rows := newComparator().Compare(
		[]xmldoc.Document{doc(t, "/a.xml", " X1 ")},
		[]xmldoc.Document{doc(t, "/a.xml", "X1")},
	)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if rows[0].Status != Failed {
		t.Errorf("status = %s, want %s", rows[0].Status, Failed)
	}
	if rows[0].Expected != " X1 " {
		t.Errorf("expected = %q, want %q", rows[0].Expected, " X1 ")
	}
}

func TestCompare_FieldMissing(t *testing.T) {
	bare := func(id string) xmldoc.Document {
		return parse(t, id, `<claim:Claim xmlns:claim="`+claimNS+`"/>`)
	}

	rows := newComparator().Compare(
		[]xmldoc.Document{bare("/a.xml"), doc(t, "/b.xml", "X2")},
		[]xmldoc.Document{doc(t, "/a.xml", "X1"), bare("/b.xml")},
	)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Reason != ReasonNoFieldInSource || rows[0].Status != Failed {
		t.Errorf("row a = %+v", rows[0])
	}
	if rows[1].Reason != ReasonNoFieldInTarget || rows[1].Expected != "X2" || rows[1].Got != "" {
		t.Errorf("row b = %+v", rows[1])
	}
}

func TestCompare_DuplicateTargetFirstWins(t *testing.T) {
	rows := newComparator().Compare(
		[]xmldoc.Document{doc(t, "/a.xml", "X1")},
		[]xmldoc.Document{doc(t, "/a.xml", "X1"), doc(t, "/a.xml", "X2")},
	)
	if len(rows) != 1 {
		t.Fatalf("got %d rows, want 1", len(rows))
	}
	if !rows[0].Passed() {
		t.Errorf("row = %+v, want passed", rows[0])
	}
}
