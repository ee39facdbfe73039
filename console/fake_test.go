package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/hazyhaar/migcheck/config"
	"github.com/hazyhaar/migcheck/console/internal/browser"
)

// fakeDriver is an in-memory page. Elements and HTML snapshots are keyed by
// Locator.String(); every call is recorded in calls.
type fakeDriver struct {
	calls    []string
	elements map[string][]*fakeElement
	html     map[string]string
	waitErr  map[string]error
	navErr   error
	closeErr error
	closes   int
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		elements: map[string][]*fakeElement{},
		html:     map[string]string{},
		waitErr:  map[string]error{},
	}
}

func (d *fakeDriver) record(format string, args ...any) {
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
}

// put registers elements under loc and returns the first one.
func (d *fakeDriver) put(loc browser.Locator, texts ...string) *fakeElement {
	if len(texts) == 0 {
		texts = []string{""}
	}
	for _, t := range texts {
		d.elements[loc.String()] = append(d.elements[loc.String()], &fakeElement{d: d, name: loc.String(), text: t})
	}
	return d.elements[loc.String()][0]
}

// timeoutOn makes every wait on loc time out.
func (d *fakeDriver) timeoutOn(loc browser.Locator, kind browser.ConditionKind) {
	d.waitErr[loc.String()] = &browser.TimeoutError{
		Condition: browser.Condition{Kind: kind, Locator: loc},
		Elapsed:   time.Second,
	}
}

func (d *fakeDriver) Navigate(_ context.Context, url string) error {
	d.record("navigate %s", url)
	return d.navErr
}

func (d *fakeDriver) WaitUntil(_ context.Context, cond browser.Condition, _ time.Duration) error {
	d.record("wait %s", cond)
	return d.waitErr[cond.Locator.String()]
}

func (d *fakeDriver) Element(_ context.Context, loc browser.Locator) (browser.Element, error) {
	d.record("element %s", loc)
	els := d.elements[loc.String()]
	if len(els) == 0 {
		return nil, browser.MissingError(loc)
	}
	return els[0], nil
}

func (d *fakeDriver) Elements(_ context.Context, loc browser.Locator) ([]browser.Element, error) {
	d.record("elements %s", loc)
	var out []browser.Element
	for _, e := range d.elements[loc.String()] {
		out = append(out, e)
	}
	return out, nil
}

func (d *fakeDriver) HTML(_ context.Context, loc browser.Locator) (string, error) {
	d.record("html %s", loc)
	h, ok := d.html[loc.String()]
	if !ok {
		return "", browser.MissingError(loc)
	}
	return h, nil
}

func (d *fakeDriver) Press(_ context.Context, s browser.Shortcut) error {
	d.record("press %s", s)
	return nil
}

func (d *fakeDriver) Pause(ctx context.Context, _ time.Duration) error {
	d.record("pause")
	return ctx.Err()
}

func (d *fakeDriver) Close() error {
	d.closes++
	return d.closeErr
}

type fakeElement struct {
	d    *fakeDriver
	name string
	text string

	clicks    int
	typed     string
	submitted bool
	selected  string

	clickErr  error
	selectErr error
}

func (e *fakeElement) Text(context.Context) (string, error) { return e.text, nil }

func (e *fakeElement) Click(context.Context) error {
	e.d.record("click %s", e.name)
	if e.clickErr != nil {
		return e.clickErr
	}
	e.clicks++
	return nil
}

func (e *fakeElement) Type(_ context.Context, text string) error {
	e.d.record("type %s", e.name)
	e.typed = text
	return nil
}

func (e *fakeElement) Submit(context.Context) error {
	e.d.record("submit %s", e.name)
	e.submitted = true
	return nil
}

func (e *fakeElement) Select(_ context.Context, value string) error {
	e.d.record("select %s %s", e.name, value)
	if e.selectErr != nil {
		return e.selectErr
	}
	e.selected = value
	return nil
}

func (e *fakeElement) SelectText(_ context.Context, text string) error {
	e.d.record("select text %s %s", e.name, text)
	if e.selectErr != nil {
		return e.selectErr
	}
	e.selected = text
	return nil
}

type fakeClipboard struct {
	content string
	readErr error
	cleared int
}

func (c *fakeClipboard) Read() (string, error) { return c.content, c.readErr }

func (c *fakeClipboard) Clear() error {
	c.cleared++
	c.content = ""
	return nil
}

var errBoom = errors.New("boom")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Console.URL = "http://console.test:8000"
	cfg.Console.Username = "admin"
	cfg.Console.Password = "s3cret"
	return cfg
}

func newTestClient(d *fakeDriver, clip *fakeClipboard) *Client {
	if clip == nil {
		clip = &fakeClipboard{}
	}
	return newClient(d, clip, testConfig(), discardLogger())
}

// exploring returns a client already positioned on a result list.
func exploring(d *fakeDriver, clip *fakeClipboard) *Client {
	c := newTestClient(d, clip)
	c.state = StateExploring
	c.collection = "SubDB"
	return c
}
