package browser

import (
	"context"
	"time"

	"github.com/atotto/clipboard"
	"github.com/go-rod/rod/lib/input"
)

// Driver is the page-level capability the console client consumes.
// *Session is the Rod implementation.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	WaitUntil(ctx context.Context, cond Condition, timeout time.Duration) error
	Element(ctx context.Context, loc Locator) (Element, error)
	Elements(ctx context.Context, loc Locator) ([]Element, error)
	// HTML returns the outer HTML of the first element matched by loc.
	HTML(ctx context.Context, loc Locator) (string, error)
	Press(ctx context.Context, s Shortcut) error
	Pause(ctx context.Context, d time.Duration) error
	Close() error
}

// Element is a handle on one DOM element.
type Element interface {
	Text(ctx context.Context) (string, error)
	Click(ctx context.Context) error
	Type(ctx context.Context, text string) error
	// Submit presses Enter in the element.
	Submit(ctx context.Context) error
	// Select picks the option whose value attribute equals value.
	Select(ctx context.Context, value string) error
	// SelectText picks the option whose trimmed text equals text.
	SelectText(ctx context.Context, text string) error
}

// Shortcut is a keyboard chord sent to the focused element.
type Shortcut int

const (
	SelectAll Shortcut = iota
	Copy
)

func (s Shortcut) String() string {
	switch s {
	case SelectAll:
		return "ctrl+a"
	case Copy:
		return "ctrl+c"
	}
	return "unknown"
}

func (s Shortcut) key() input.Key {
	if s == Copy {
		return input.KeyC
	}
	return input.KeyA
}

// Clipboard reads and clears the clipboard the browser copies into.
type Clipboard interface {
	Read() (string, error)
	Clear() error
}

// SystemClipboard is the OS clipboard. It is shared by every process on the
// host; concurrent copy workflows corrupt each other.
type SystemClipboard struct{}

func (SystemClipboard) Read() (string, error) { return clipboard.ReadAll() }

func (SystemClipboard) Clear() error { return clipboard.WriteAll("") }
