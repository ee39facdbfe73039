// Package browser is the UI session driver of the console client. It owns
// the Chrome (or Edge) process through Rod, exposes locator-based element
// primitives and polls page conditions with explicit timeouts.
package browser

import (
	"errors"
	"fmt"
)

// By selects how a Locator value is interpreted.
type By int

const (
	ByID By = iota
	ByXPath
	ByCSS
)

func (b By) String() string {
	switch b {
	case ByID:
		return "id"
	case ByXPath:
		return "xpath"
	case ByCSS:
		return "css"
	}
	return fmt.Sprintf("by(%d)", int(b))
}

// Locator addresses one or more elements on the current page.
type Locator struct {
	By    By
	Value string
}

// ID locates an element by its id attribute.
func ID(id string) Locator { return Locator{By: ByID, Value: id} }

// XPath locates elements with an XPath expression.
func XPath(expr string) Locator { return Locator{By: ByXPath, Value: expr} }

// CSS locates elements with a CSS selector.
func CSS(sel string) Locator { return Locator{By: ByCSS, Value: sel} }

func (l Locator) String() string {
	return l.By.String() + "=" + l.Value
}

// ErrElementMissing is returned when a lookup matches no element.
var ErrElementMissing = errors.New("browser: element missing")

// MissingError wraps ErrElementMissing with the locator that failed.
func MissingError(loc Locator) error {
	return fmt.Errorf("%w: %s", ErrElementMissing, loc)
}
