package console

import (
	"errors"
	"fmt"

	"github.com/hazyhaar/migcheck/console/internal/browser"
)

// Kind classifies a console failure.
type Kind int

const (
	KindTimeout Kind = iota + 1
	KindNotAuthenticated
	KindElementMissing
	KindCollectionUnavailable
	KindDocumentUnextractable
	KindParseFailure
)

func (k Kind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindNotAuthenticated:
		return "not authenticated"
	case KindElementMissing:
		return "element missing"
	case KindCollectionUnavailable:
		return "collection unavailable"
	case KindDocumentUnextractable:
		return "document unextractable"
	case KindParseFailure:
		return "parse failure"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Sentinels for errors.Is matching against an *Error of the same kind.
var (
	ErrTimeout               = &Error{Kind: KindTimeout}
	ErrNotAuthenticated      = &Error{Kind: KindNotAuthenticated}
	ErrElementMissing        = &Error{Kind: KindElementMissing}
	ErrCollectionUnavailable = &Error{Kind: KindCollectionUnavailable}
	ErrDocumentUnextractable = &Error{Kind: KindDocumentUnextractable}
	ErrParseFailure          = &Error{Kind: KindParseFailure}
)

// Error is a classified console failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	msg := "console: " + e.Kind.String()
	if e.Op != "" {
		msg = "console: " + e.Op + ": " + e.Kind.String()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// classify wraps err into an *Error. Driver timeouts and missing elements
// keep their own kind; everything else gets fallback.
func classify(op string, fallback Kind, err error) *Error {
	var ce *Error
	if errors.As(err, &ce) {
		return ce
	}
	kind := fallback
	var te *browser.TimeoutError
	switch {
	case errors.As(err, &te):
		kind = KindTimeout
	case errors.Is(err, browser.ErrElementMissing):
		kind = KindElementMissing
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the Kind of err, or 0 when err is not a console error.
func KindOf(err error) Kind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}
