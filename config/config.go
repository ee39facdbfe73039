// Package config holds the migcheck configuration: console endpoint and
// credentials, browser settings, comparison target, wait timeouts and report
// output. Values are layered defaults -> YAML file -> environment -> flags.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the top-level configuration. It is passed by value and not
// mutated once validated.
type Config struct {
	Console  ConsoleConfig `yaml:"console"`
	Browser  BrowserConfig `yaml:"browser"`
	Compare  CompareConfig `yaml:"compare"`
	Timeouts Timeouts      `yaml:"timeouts"`
	Report   ReportConfig  `yaml:"report"`
}

// ConsoleConfig is the query console endpoint and login.
type ConsoleConfig struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// BrowserConfig controls the browser session.
type BrowserConfig struct {
	Kind             string        `yaml:"kind"` // CHROME | EDGE | REMOTE
	Headless         bool          `yaml:"headless"`
	DriverPath       string        `yaml:"driver_path"`
	SimulateLatency  bool          `yaml:"simulate_latency"`
	RemoteURL        string        `yaml:"remote_url"`
	UserAgent        string        `yaml:"user_agent"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	PollInterval     time.Duration `yaml:"poll_interval"`
	ActionTimeout    time.Duration `yaml:"action_timeout"`
}

// CompareConfig names the two collections, the query selecting documents
// and the field compared between them.
type CompareConfig struct {
	Source          string `yaml:"source"`
	Target          string `yaml:"target"`
	Query           string `yaml:"query"`
	FieldPath       string `yaml:"field_path"`
	NamespacePrefix string `yaml:"namespace_prefix"`
	NamespaceURI    string `yaml:"namespace_uri"`
	Strategy        string `yaml:"strategy"` // text | clipboard
}

// Timeouts bounds every wait on the console UI.
type Timeouts struct {
	InitialLoad  time.Duration `yaml:"initial_load"`
	Login        time.Duration `yaml:"login"`
	Select       time.Duration `yaml:"select"`
	Busy         time.Duration `yaml:"busy"`
	Settle       time.Duration `yaml:"settle"`
	RenderMode   time.Duration `yaml:"render_mode"`
	RenderSettle time.Duration `yaml:"render_settle"` // 0 = read right after switching
	EditButton   time.Duration `yaml:"edit_button"`
	Editor       time.Duration `yaml:"editor"`
	Back         time.Duration `yaml:"back"`
}

// ReportConfig controls report output.
type ReportConfig struct {
	Dir       string `yaml:"dir"`
	Prefix    string `yaml:"prefix"`
	YesLabel  string `yaml:"yes_label"`
	NoLabel   string `yaml:"no_label"`
	HistoryDB string `yaml:"history_db"` // empty = no history
}

const (
	StrategyText      = "text"
	StrategyClipboard = "clipboard"
)

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Console: ConsoleConfig{
			URL: "http://localhost:8000",
		},
		Browser: BrowserConfig{
			Kind:          "CHROME",
			PollInterval:  100 * time.Millisecond,
			ActionTimeout: 10 * time.Second,
		},
		Compare: CompareConfig{
			Source:    "SubDB",
			Target:    "FinalDB",
			Query:     "/claim*",
			FieldPath: ".//claim:PublicId",
			Strategy:  StrategyText,
		},
		Timeouts: DefaultTimeouts(),
		Report: ReportConfig{
			Dir:      ".",
			Prefix:   "report",
			YesLabel: "Yes",
			NoLabel:  "No",
		},
	}
}

// DefaultTimeouts returns the wait bounds tuned for the query console.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		InitialLoad: 100 * time.Second,
		Login:       10 * time.Second,
		Select:      5 * time.Second,
		Busy:        100 * time.Second,
		Settle:      time.Second,
		RenderMode:  10 * time.Second,
		EditButton:  5 * time.Second,
		Editor:      10 * time.Second,
		Back:        10 * time.Second,
	}
}

// applyDefaults fills zero values left by a partial file.
func (c *Config) applyDefaults() {
	d := Default()
	if c.Console.URL == "" {
		c.Console.URL = d.Console.URL
	}
	if c.Browser.Kind == "" {
		c.Browser.Kind = d.Browser.Kind
	}
	if c.Browser.PollInterval == 0 {
		c.Browser.PollInterval = d.Browser.PollInterval
	}
	if c.Browser.ActionTimeout == 0 {
		c.Browser.ActionTimeout = d.Browser.ActionTimeout
	}
	if c.Compare.Strategy == "" {
		c.Compare.Strategy = d.Compare.Strategy
	}
	if c.Compare.FieldPath == "" {
		c.Compare.FieldPath = d.Compare.FieldPath
	}
	for _, w := range c.waits() {
		if *w.v == 0 {
			*w.v = w.def
		}
	}
	if c.Report.Dir == "" {
		c.Report.Dir = d.Report.Dir
	}
	if c.Report.Prefix == "" {
		c.Report.Prefix = d.Report.Prefix
	}
	if c.Report.YesLabel == "" {
		c.Report.YesLabel = d.Report.YesLabel
	}
	if c.Report.NoLabel == "" {
		c.Report.NoLabel = d.Report.NoLabel
	}
}

type wait struct {
	name string
	v    *time.Duration
	def  time.Duration
}

// waits lists every duration bound that must stay positive. A zero value
// means unset and takes def.
func (c *Config) waits() []wait {
	t, d := &c.Timeouts, DefaultTimeouts()
	b := Default().Browser
	return []wait{
		{"browser.poll_interval", &c.Browser.PollInterval, b.PollInterval},
		{"browser.action_timeout", &c.Browser.ActionTimeout, b.ActionTimeout},
		{"timeouts.initial_load", &t.InitialLoad, d.InitialLoad},
		{"timeouts.login", &t.Login, d.Login},
		{"timeouts.select", &t.Select, d.Select},
		{"timeouts.busy", &t.Busy, d.Busy},
		{"timeouts.settle", &t.Settle, d.Settle},
		{"timeouts.render_mode", &t.RenderMode, d.RenderMode},
		{"timeouts.edit_button", &t.EditButton, d.EditButton},
		{"timeouts.editor", &t.Editor, d.Editor},
		{"timeouts.back", &t.Back, d.Back},
	}
}

// Validate checks the configuration and fills defaults left empty.
func (c *Config) Validate() error {
	c.applyDefaults()

	var errs []error
	u, err := url.Parse(c.Console.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("console.url %q is not an absolute URL", c.Console.URL))
	}
	if c.Compare.Source == "" {
		errs = append(errs, errors.New("compare.source is required"))
	}
	if c.Compare.Target == "" {
		errs = append(errs, errors.New("compare.target is required"))
	}
	if c.Compare.Query == "" {
		errs = append(errs, errors.New("compare.query is required"))
	}
	switch c.Compare.Strategy {
	case StrategyText, StrategyClipboard:
	default:
		errs = append(errs, fmt.Errorf("compare.strategy %q: want %s or %s", c.Compare.Strategy, StrategyText, StrategyClipboard))
	}
	if prefix, ok := pathPrefix(c.Compare.FieldPath); ok {
		if c.Compare.NamespacePrefix == "" {
			c.Compare.NamespacePrefix = prefix
		}
		if c.Compare.NamespaceURI == "" {
			errs = append(errs, fmt.Errorf("compare.namespace_uri is required: field path %q uses prefix %q", c.Compare.FieldPath, prefix))
		}
	}
	if strings.EqualFold(c.Browser.Kind, "REMOTE") && c.Browser.RemoteURL == "" {
		errs = append(errs, errors.New("browser.remote_url is required for kind REMOTE"))
	}
	for _, w := range c.waits() {
		if *w.v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", w.name, *w.v))
		}
	}
	if c.Timeouts.RenderSettle < 0 {
		errs = append(errs, errors.New("timeouts.render_settle must not be negative"))
	}
	return errors.Join(errs...)
}

// pathPrefix returns the first namespace prefix used in an XPath step.
func pathPrefix(path string) (string, bool) {
	for _, step := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == '[' || r == ']' }) {
		step = strings.TrimPrefix(step, "@")
		if i := strings.Index(step, ":"); i > 0 && !strings.Contains(step[:i], "(") && !strings.HasPrefix(step[i:], "::") {
			return step[:i], true
		}
	}
	return "", false
}

// Redacted returns a copy with the password masked, for logging.
func (c Config) Redacted() Config {
	if c.Console.Password != "" {
		c.Console.Password = "*****"
	}
	return c
}
