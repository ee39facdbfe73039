package browser

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Session is one browser with one page. It implements Driver.
type Session struct {
	cfg  Config
	mgr  *manager
	page *rod.Page

	closeOnce sync.Once
	closeErr  error
}

// Open starts the browser described by cfg and opens the working page.
func Open(ctx context.Context, cfg Config) (*Session, error) {
	cfg.defaults()
	mgr := newManager(cfg)

	b, err := mgr.start(ctx)
	if err != nil {
		return nil, err
	}

	var page *rod.Page
	if cfg.Headless {
		page, err = stealth.Page(b)
	} else {
		page, err = b.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		mgr.close()
		return nil, fmt.Errorf("browser: create page: %w", err)
	}

	if cfg.Headless {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: cfg.userAgent()}); err != nil {
			cfg.Logger.Warn("browser: set user agent failed", "error", err)
		}
	}

	if len(cfg.ResourceBlocking) > 0 {
		if err := applyResourceBlocking(page, cfg.ResourceBlocking); err != nil {
			cfg.Logger.Warn("browser: resource blocking failed", "error", err)
		}
	}

	if cfg.SimulateLatency {
		if err := throttle(page); err != nil {
			mgr.close()
			return nil, fmt.Errorf("browser: simulate latency: %w", err)
		}
		cfg.Logger.Info("browser: network throttled", "latency_ms", 100, "throughput_kib", 500)
	}

	return &Session{cfg: cfg, mgr: mgr, page: page}, nil
}

func throttle(page *rod.Page) error {
	if err := (proto.NetworkEnable{}).Call(page); err != nil {
		return err
	}
	return proto.NetworkEmulateNetworkConditions{
		Offline:            false,
		Latency:            100,
		DownloadThroughput: 500 * 1024,
		UploadThroughput:   500 * 1024,
	}.Call(page)
}

// Navigate loads url and waits for the load event. A slow load event is
// logged, not returned: the console keeps polling XHRs long after its shell
// is usable.
func (s *Session) Navigate(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := s.page.Context(navCtx).Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", redactURL(url), err)
	}
	if err := s.page.Context(navCtx).WaitLoad(); err != nil {
		s.cfg.Logger.Warn("browser: wait load timeout", "url", redactURL(url), "error", err)
	}
	return nil
}

// WaitUntil blocks until cond holds, timeout elapses (*TimeoutError) or ctx ends.
func (s *Session) WaitUntil(ctx context.Context, cond Condition, timeout time.Duration) error {
	wctx, cancel := context.WithTimeout(ctx, timeout+time.Second)
	defer cancel()
	return poll(ctx, cond, timeout, s.cfg.PollInterval, func() (bool, error) {
		return s.check(wctx, cond)
	})
}

func (s *Session) check(ctx context.Context, cond Condition) (bool, error) {
	els, err := s.find(ctx, cond.Locator)
	if err != nil {
		return false, err
	}

	switch cond.Kind {
	case CondPresent:
		return len(els) > 0, nil
	case CondInvisible:
		for _, el := range els {
			if v, err := el.Visible(); err == nil && v {
				return false, nil
			}
		}
		return true, nil
	case CondVisible:
		for _, el := range els {
			if v, err := el.Visible(); err == nil && v {
				return true, nil
			}
		}
	case CondClickable:
		for _, el := range els {
			v, err := el.Visible()
			if err != nil || !v {
				continue
			}
			if d, err := el.Disabled(); err == nil && !d {
				return true, nil
			}
		}
	case CondTextPresent:
		for _, el := range els {
			if t, err := el.Text(); err == nil && strings.Contains(t, cond.Text) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *Session) find(ctx context.Context, loc Locator) (rod.Elements, error) {
	p := s.page.Context(ctx)
	switch loc.By {
	case ByXPath:
		return p.ElementsX(loc.Value)
	case ByCSS:
		return p.Elements(loc.Value)
	default:
		return p.Elements(fmt.Sprintf("[id=%q]", loc.Value))
	}
}

func (s *Session) Element(ctx context.Context, loc Locator) (Element, error) {
	els, err := s.find(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("browser: find %s: %w", loc, err)
	}
	if len(els) == 0 {
		return nil, MissingError(loc)
	}
	return s.wrap(els[0]), nil
}

func (s *Session) Elements(ctx context.Context, loc Locator) ([]Element, error) {
	els, err := s.find(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("browser: find %s: %w", loc, err)
	}
	out := make([]Element, len(els))
	for i, el := range els {
		out[i] = s.wrap(el)
	}
	return out, nil
}

func (s *Session) HTML(ctx context.Context, loc Locator) (string, error) {
	els, err := s.find(ctx, loc)
	if err != nil {
		return "", fmt.Errorf("browser: find %s: %w", loc, err)
	}
	if len(els) == 0 {
		return "", MissingError(loc)
	}
	return els[0].Context(ctx).HTML()
}

// Press sends a ctrl chord to the page.
func (s *Session) Press(ctx context.Context, sc Shortcut) error {
	err := s.page.Context(ctx).KeyActions().
		Press(input.ControlLeft).
		Type(sc.key()).
		Release(input.ControlLeft).
		Do()
	if err != nil {
		return fmt.Errorf("browser: press %s: %w", sc, err)
	}
	return nil
}

func (s *Session) Pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Close closes the page and the browser exactly once; later calls return
// the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.page != nil {
			closeWarn(s.cfg.Logger, "page", s.page.Close)
		}
		s.closeErr = s.mgr.close()
	})
	return s.closeErr
}

// closeWarn runs closeFn and logs its error; the caller carries on.
func closeWarn(logger *slog.Logger, what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.Warn("browser: close "+what, "error", err)
	}
}

func (s *Session) wrap(el *rod.Element) *rodElement {
	return &rodElement{el: el, timeout: s.cfg.ActionTimeout}
}

type rodElement struct {
	el      *rod.Element
	timeout time.Duration
}

func (e *rodElement) do(ctx context.Context, fn func(el *rod.Element) error) error {
	actx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return fn(e.el.Context(actx))
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	var text string
	err := e.do(ctx, func(el *rod.Element) error {
		var err error
		text, err = el.Text()
		return err
	})
	return text, err
}

func (e *rodElement) Click(ctx context.Context) error {
	return e.do(ctx, func(el *rod.Element) error {
		return el.Click(proto.InputMouseButtonLeft, 1)
	})
}

// Type replaces the element's content with text.
func (e *rodElement) Type(ctx context.Context, text string) error {
	return e.do(ctx, func(el *rod.Element) error {
		if err := el.SelectAllText(); err != nil {
			return err
		}
		return el.Input(text)
	})
}

func (e *rodElement) Submit(ctx context.Context) error {
	return e.do(ctx, func(el *rod.Element) error {
		return el.Type(input.Enter)
	})
}

func (e *rodElement) Select(ctx context.Context, value string) error {
	return e.do(ctx, func(el *rod.Element) error {
		return el.Select([]string{fmt.Sprintf("[value=%q]", value)}, true, rod.SelectorTypeCSSSector)
	})
}

// SelectText matches on the whole option text. rod's text selector is a
// substring match, so "SubDB" would also pick "SubDB2".
func (e *rodElement) SelectText(ctx context.Context, text string) error {
	return e.do(ctx, func(el *rod.Element) error {
		return el.Select([]string{optionTextPattern(text)}, true, rod.SelectorTypeRegex)
	})
}

func optionTextPattern(text string) string {
	return `^\s*` + regexp.QuoteMeta(text) + `\s*$`
}

// redactURL masks the password of a URL carrying credentials.
func redactURL(raw string) string {
	scheme := strings.Index(raw, "//")
	at := strings.LastIndex(raw, "@")
	if scheme < 0 || at < scheme {
		return raw
	}
	userinfo := raw[scheme+2 : at]
	if i := strings.Index(userinfo, ":"); i >= 0 {
		userinfo = userinfo[:i] + ":xxxxx"
	}
	return raw[:scheme+2] + userinfo + raw[at:]
}
