// Package console drives the document store's query console through a
// browser: login, collection selection, URI search and document extraction.
//
// A Client is a small state machine. Once login fails every later call
// short-circuits to a NotAuthenticated failure without touching the page,
// so a run can still fall through to an (empty) report.
package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"

	"github.com/hazyhaar/migcheck/config"
	"github.com/hazyhaar/migcheck/console/internal/browser"
	"github.com/hazyhaar/migcheck/xmldoc"
)

// State is the client's position in the console workflow.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticated
	StateCollectionSelected
	StateExploring
	StateLoginFailed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticated:
		return "authenticated"
	case StateCollectionSelected:
		return "collection selected"
	case StateExploring:
		return "exploring"
	case StateLoginFailed:
		return "login failed"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Client is a console session. It owns its browser exclusively and is not
// safe for concurrent use.
type Client struct {
	drv      browser.Driver
	clip     browser.Clipboard
	console  config.ConsoleConfig
	timeouts config.Timeouts
	logger   *slog.Logger

	state      State
	collection string

	closeOnce sync.Once
	closeErr  error
}

// Open starts a browser per cfg.Browser and returns an unauthenticated
// client bound to it.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	b := cfg.Browser
	drv, err := browser.Open(ctx, browser.Config{
		Kind:             browser.Kind(b.Kind),
		DriverPath:       b.DriverPath,
		RemoteURL:        b.RemoteURL,
		Headless:         b.Headless,
		SimulateLatency:  b.SimulateLatency,
		UserAgent:        b.UserAgent,
		ResourceBlocking: b.ResourceBlocking,
		PollInterval:     b.PollInterval,
		ActionTimeout:    b.ActionTimeout,
		Logger:           logger,
	})
	if err != nil {
		return nil, fmt.Errorf("console: open browser: %w", err)
	}
	return newClient(drv, browser.SystemClipboard{}, cfg, logger), nil
}

func newClient(drv browser.Driver, clip browser.Clipboard, cfg config.Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		drv:      drv,
		clip:     clip,
		console:  cfg.Console,
		timeouts: cfg.Timeouts,
		logger:   logger,
	}
}

// State returns the current workflow state.
func (c *Client) State() State { return c.state }

// Collection returns the selected collection, empty before selection.
func (c *Client) Collection() string { return c.collection }

// Authenticate logs into the console. Credentials travel in the URL; the
// console answers with its main page once they are accepted. Not seeing the
// username rendered moves the client to StateLoginFailed for good.
func (c *Client) Authenticate(ctx context.Context) Result[string] {
	const op = "authenticate"
	switch c.state {
	case StateUnauthenticated:
	case StateLoginFailed, StateClosed:
		return failure[string](&Error{Kind: KindNotAuthenticated, Op: op, Err: fmt.Errorf("session is %s", c.state)})
	default:
		return success(c.console.Username)
	}

	target, err := credentialURL(c.console.URL, c.console.Username, c.console.Password)
	if err != nil {
		return c.loginFailed(op, err)
	}
	if err := c.drv.Navigate(ctx, target); err != nil {
		return c.loginFailed(op, err)
	}
	// Options of a collapsed <select> have no layout box, so presence is the
	// only usable signal that the collection list has loaded.
	if err := c.drv.WaitUntil(ctx, browser.Present(locCollectionOptions), c.timeouts.InitialLoad); err != nil {
		return c.loginFailed(op, err)
	}
	if err := c.drv.WaitUntil(ctx, browser.TextPresent(locUsername, c.console.Username), c.timeouts.Login); err != nil {
		return c.loginFailed(op, err)
	}
	users, err := c.drv.Elements(ctx, locUsername)
	if err != nil {
		return c.loginFailed(op, err)
	}
	if len(users) == 0 {
		return c.loginFailed(op, browser.MissingError(locUsername))
	}

	c.state = StateAuthenticated
	c.logger.Info("console: login successful", "user", c.console.Username)
	return success(c.console.Username)
}

func (c *Client) loginFailed(op string, err error) Result[string] {
	c.state = StateLoginFailed
	c.logger.Error("console: login failed", "user", c.console.Username, "error", err)
	return failure[string](&Error{Kind: KindNotAuthenticated, Op: op, Err: err})
}

func credentialURL(raw, username, password string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse console url: %w", err)
	}
	if username != "" {
		u.User = url.UserPassword(username, password)
	}
	return u.String(), nil
}

// require gates every operation but Authenticate. It never touches the page.
func (c *Client) require(op string, min State) *Error {
	switch {
	case c.state == StateClosed:
		c.logger.Error("console: not allowed, session closed", "op", op)
		return &Error{Kind: KindNotAuthenticated, Op: op, Err: errors.New("session closed")}
	case c.state == StateLoginFailed || c.state < StateAuthenticated:
		c.logger.Error("console: not allowed, not logged in", "op", op)
		return &Error{Kind: KindNotAuthenticated, Op: op}
	case c.state >= min:
		return nil
	case min == StateCollectionSelected:
		c.logger.Error("console: not allowed, no collection selected", "op", op)
		return &Error{Kind: KindCollectionUnavailable, Op: op, Err: errors.New("no collection selected")}
	default:
		c.logger.Error("console: not allowed, no result list", "op", op)
		return &Error{Kind: KindElementMissing, Op: op, Err: errors.New("no result list, search first")}
	}
}

// SelectCollection picks the option named name in the collection selector,
// matching its text exactly. An unavailable
// collection is a failure result and leaves the state unchanged.
func (c *Client) SelectCollection(ctx context.Context, name string) Result[string] {
	const op = "select collection"
	if e := c.require(op, StateAuthenticated); e != nil {
		return failure[string](e)
	}

	loc := collectionOption(name)
	unavailable := func(err error) Result[string] {
		c.logger.Error("console: collection is not available", "collection", name, "error", err)
		return failure[string](&Error{Kind: KindCollectionUnavailable, Op: op, Err: err})
	}
	if err := c.drv.WaitUntil(ctx, browser.Present(loc), c.timeouts.Select); err != nil {
		return unavailable(err)
	}
	sel, err := c.drv.Element(ctx, locCollectionSelect)
	if err != nil {
		return unavailable(err)
	}
	if err := sel.SelectText(ctx, name); err != nil {
		return unavailable(err)
	}

	c.collection = name
	c.state = StateCollectionSelected
	c.logger.Info("console: collection selected", "collection", name)
	return success(name)
}

// Search runs query in the explore view of the selected collection and
// returns the matching document identifiers in page order. No match is a
// success with an empty list.
func (c *Client) Search(ctx context.Context, query string) Result[[]string] {
	const op = "search"
	if e := c.require(op, StateCollectionSelected); e != nil {
		return failure[[]string](e)
	}

	c.explore(ctx)
	if err := c.drv.Pause(ctx, c.timeouts.Settle); err != nil {
		return failure[[]string](classify(op, KindTimeout, err))
	}

	filter, err := c.drv.Element(ctx, locURIFilter)
	if err != nil {
		c.logger.Error("console: uri filter missing", "error", err)
		return failure[[]string](classify(op, KindElementMissing, err))
	}
	if err := filter.Type(ctx, query); err != nil {
		return failure[[]string](classify(op, KindElementMissing, err))
	}
	if err := filter.Submit(ctx); err != nil {
		return failure[[]string](classify(op, KindElementMissing, err))
	}
	if err := c.waitIdle(ctx); err != nil {
		c.logger.Error("console: search did not finish", "query", query, "error", err)
		return failure[[]string](classify(op, KindTimeout, err))
	}
	if err := c.drv.Pause(ctx, c.timeouts.Settle); err != nil {
		return failure[[]string](classify(op, KindTimeout, err))
	}

	ids, err := c.resultIDs(ctx)
	if err != nil {
		c.logger.Error("console: read result list", "error", err)
		return failure[[]string](classify(op, KindElementMissing, err))
	}

	c.state = StateExploring
	if len(ids) == 0 {
		c.logger.Warn("console: no match found for search", "collection", c.collection, "query", query)
		return success([]string{})
	}
	c.logger.Info("console: search complete", "collection", c.collection, "query", query, "matches", len(ids))
	return success(ids)
}

// explore opens the explore view. A missing trigger means the view is
// already open.
func (c *Client) explore(ctx context.Context) {
	btn, err := c.drv.Element(ctx, locExplore)
	if err != nil {
		c.logger.Debug("console: explore trigger absent", "error", err)
		return
	}
	if err := btn.Click(ctx); err != nil {
		c.logger.Debug("console: explore click failed", "error", err)
		return
	}
	if err := c.waitIdle(ctx); err != nil {
		c.logger.Warn("console: explore still busy", "error", err)
	}
}

// waitIdle settles, then waits for the server-side spinner to disappear.
func (c *Client) waitIdle(ctx context.Context) error {
	if err := c.drv.Pause(ctx, c.timeouts.Settle); err != nil {
		return err
	}
	return c.drv.WaitUntil(ctx, browser.Invisible(locSpinner), c.timeouts.Busy)
}

// Extract opens document id from the current result list with strategy s,
// then returns to the list whatever happened. A document missing from the
// list is NotFound; anything that goes wrong after opening it is a Failure,
// classified Timeout when a wait elapsed.
func (c *Client) Extract(ctx context.Context, id string, s Strategy) Result[xmldoc.Document] {
	const op = "extract"
	if e := c.require(op, StateExploring); e != nil {
		return failure[xmldoc.Document](e)
	}

	entry, err := c.findEntry(ctx, id)
	if err != nil {
		c.logger.Error("console: read result list", "id", id, "error", err)
		return failure[xmldoc.Document](classify(op, KindElementMissing, err))
	}
	if entry == nil {
		c.logger.Error("console: document not found", "id", id)
		return notFound[xmldoc.Document](&Error{Kind: KindElementMissing, Op: op, Err: fmt.Errorf("document %q not in result list", id)})
	}
	c.logger.Info("console: document found", "id", id, "strategy", s.Name())

	if err := entry.Click(ctx); err != nil {
		c.logger.Error("console: open document", "id", id, "error", err)
		return failure[xmldoc.Document](&Error{Kind: KindDocumentUnextractable, Op: op, Err: err})
	}

	v := &View{drv: c.drv, clip: c.clip, timeouts: c.timeouts, logger: c.logger}
	raw, ferr := s.Fetch(ctx, v)
	if lerr := s.Leave(ctx, v); lerr != nil {
		c.logger.Warn("console: could not return to result list", "id", id, "error", lerr)
	}
	if ferr != nil {
		c.logger.Error("console: document unextractable", "id", id, "strategy", s.Name(), "error", ferr)
		return failure[xmldoc.Document](classify(op, KindDocumentUnextractable, ferr))
	}

	doc, err := xmldoc.Parse(id, raw)
	if err != nil {
		c.logger.Error("console: document is not well-formed", "id", id, "error", err)
		return failure[xmldoc.Document](&Error{Kind: KindParseFailure, Op: op, Err: err})
	}
	c.logger.Info("console: document extracted", "id", id, "size", humanize.Bytes(uint64(doc.Size())))
	return success(doc)
}

// findEntry scans the result anchors for an exact identifier match. First
// match wins; nil without error means no match.
func (c *Client) findEntry(ctx context.Context, id string) (browser.Element, error) {
	entries, err := c.drv.Elements(ctx, locResultAnchors)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		text, err := e.Text(ctx)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) == id {
			return e, nil
		}
	}
	return nil, nil
}

// Close releases the browser. It runs once; later calls return the first
// result. Safe from any state.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.drv.Close()
		c.state = StateClosed
		if c.closeErr != nil {
			c.logger.Warn("console: close browser", "error", c.closeErr)
			return
		}
		c.logger.Info("console: session closed")
	})
	return c.closeErr
}
