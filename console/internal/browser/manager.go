package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/85.0.4183.83 Safari/537.36"

// Config configures the browser session.
type Config struct {
	// Kind selects the registered builder. Default: CHROME.
	Kind Kind

	// DriverPath is the browser binary. Empty = look it up.
	DriverPath string

	// RemoteURL is the DevTools WebSocket URL for KindRemote.
	RemoteURL string

	Headless bool

	// SimulateLatency throttles the network to 100ms latency and 500KiB/s.
	SimulateLatency bool

	// UserAgent overrides the headless user agent.
	UserAgent string

	// ResourceBlocking lists resource types to block (images, fonts, media, stylesheets).
	ResourceBlocking []string

	// PollInterval is the WaitUntil polling period. Default: 100ms.
	PollInterval time.Duration

	// ActionTimeout bounds each element action (click, type, select). Rod
	// waits for an element to become interactable before acting on it.
	// Default: 10s.
	ActionTimeout time.Duration

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Kind == "" {
		c.Kind = KindChrome
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = 10 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

func (c Config) userAgent() string {
	if c.UserAgent != "" {
		return c.UserAgent
	}
	return defaultUserAgent
}

// manager owns the browser process: launch or connect, then tear down.
type manager struct {
	cfg     Config
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	startAt time.Time
	closed  bool
}

func newManager(cfg Config) *manager {
	return &manager{cfg: cfg}
}

// start launches the configured browser kind and connects Rod to it.
func (m *manager) start(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("browser: manager is closed")
	}

	build, err := lookupKind(m.cfg.Kind)
	if err != nil {
		return nil, err
	}

	log := m.cfg.Logger
	wsURL, l, err := build(m.cfg)
	if err != nil {
		return nil, err
	}
	m.lnch = l
	if l != nil {
		log.Info("browser: launched local browser", "kind", m.cfg.Kind, "headless", m.cfg.Headless)
	} else {
		log.Info("browser: connecting to remote", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL).Context(ctx)
	if err := b.Connect(); err != nil {
		m.cleanupLocked()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}

	if err := b.IgnoreCertErrors(true); err != nil {
		log.Warn("browser: ignore cert errors failed", "error", err)
	}

	m.browser = b
	m.startAt = time.Now()
	return b, nil
}

// close shuts the browser down. Safe to call more than once.
func (m *manager) close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	if !m.startAt.IsZero() {
		m.cfg.Logger.Info("browser: closing", "uptime", time.Since(m.startAt).Round(time.Second))
	}
	return m.cleanupLocked()
}

func (m *manager) cleanupLocked() error {
	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	return err
}
