package browser

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
)

// Kind names a browser family.
type Kind string

const (
	KindChrome  Kind = "CHROME"
	KindEdge    Kind = "EDGE"
	KindFirefox Kind = "FIREFOX"
	KindRemote  Kind = "REMOTE"
)

// ErrUnsupportedKind is returned for browser kinds that have no registered
// builder. Firefox and Internet Explorer do not speak the DevTools protocol.
var ErrUnsupportedKind = errors.New("browser: unsupported browser kind")

// Builder turns a Config into a DevTools control URL. The returned launcher
// is nil when no local process was started.
type Builder func(cfg Config) (controlURL string, l *launcher.Launcher, err error)

var (
	kindsMu sync.RWMutex
	kinds   = map[Kind]Builder{
		KindChrome: localChromium(nil),
		KindEdge:   localChromium(edgeCandidates),
		KindRemote: remote,
	}
)

// Register installs or replaces the builder for kind.
func Register(kind Kind, b Builder) {
	kindsMu.Lock()
	kinds[normalizeKind(kind)] = b
	kindsMu.Unlock()
}

func lookupKind(kind Kind) (Builder, error) {
	kindsMu.RLock()
	defer kindsMu.RUnlock()
	b, ok := kinds[normalizeKind(kind)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
	return b, nil
}

func normalizeKind(k Kind) Kind {
	return Kind(strings.ToUpper(strings.TrimSpace(string(k))))
}

var edgeCandidates = []string{
	"/usr/bin/microsoft-edge",
	"/usr/bin/microsoft-edge-stable",
	"/Applications/Microsoft Edge.app/Contents/MacOS/Microsoft Edge",
	`C:\Program Files (x86)\Microsoft\Edge\Application\msedge.exe`,
	`C:\Program Files\Microsoft\Edge\Application\msedge.exe`,
}

// localChromium launches a Chromium-family binary. DriverPath wins; then the
// first existing candidate; then whatever launcher finds on its own.
func localChromium(candidates []string) Builder {
	return func(cfg Config) (string, *launcher.Launcher, error) {
		l := launcher.New()

		bin := cfg.DriverPath
		if bin == "" {
			for _, c := range candidates {
				if _, err := os.Stat(c); err == nil {
					bin = c
					break
				}
			}
		}
		if bin == "" && candidates != nil {
			return "", nil, fmt.Errorf("browser: no %s binary found, set driver_path", cfg.Kind)
		}
		if bin == "" {
			if p, ok := launcher.LookPath(); ok {
				bin = p
			}
		}
		if bin != "" {
			l = l.Bin(bin)
		}

		l = l.Headless(cfg.Headless)
		for _, f := range launchFlags(cfg) {
			l = l.Set(flags.Flag(f.name), f.values...)
		}

		u, err := l.Launch()
		if err != nil {
			return "", nil, fmt.Errorf("browser: launch %s: %w", cfg.Kind, err)
		}
		return u, l, nil
	}
}

func remote(cfg Config) (string, *launcher.Launcher, error) {
	if cfg.RemoteURL == "" {
		return "", nil, errors.New("browser: remote kind requires a remote url")
	}
	return cfg.RemoteURL, nil, nil
}

type launchFlag struct {
	name   string
	values []string
}

// launchFlags returns the Chromium switches for cfg. Headless runs carry a
// desktop user agent and a fixed window so the console lays out as it does
// on a workstation.
func launchFlags(cfg Config) []launchFlag {
	fl := []launchFlag{
		{name: "disable-blink-features", values: []string{"AutomationControlled"}},
		{name: "start-maximized"},
	}
	if !cfg.Headless {
		return fl
	}
	return append(fl,
		launchFlag{name: "user-agent", values: []string{cfg.userAgent()}},
		launchFlag{name: "window-size", values: []string{"1920,1080"}},
		launchFlag{name: "ignore-certificate-errors"},
		launchFlag{name: "allow-running-insecure-content"},
		launchFlag{name: "disable-extensions"},
		launchFlag{name: "proxy-server", values: []string{"direct://"}},
		launchFlag{name: "proxy-bypass-list", values: []string{"*"}},
		launchFlag{name: "disable-gpu"},
		launchFlag{name: "disable-dev-shm-usage"},
		launchFlag{name: "no-sandbox"},
	)
}
