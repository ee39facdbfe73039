package config

import (
	"fmt"
	"strconv"
	"strings"
)

type envVar struct {
	name string
	set  func(c *Config, v string) error
}

func str(dst func(c *Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*dst(c) = v
		return nil
	}
}

func boolean(dst func(c *Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return err
		}
		*dst(c) = b
		return nil
	}
}

// envVars lists the recognised environment variables. The unprefixed names
// are the ones deployments of the console tooling already export.
var envVars = []envVar{
	{"ML_CONSOLE_URL", str(func(c *Config) *string { return &c.Console.URL })},
	{"DB_USERNAME", str(func(c *Config) *string { return &c.Console.Username })},
	{"DB_PASSWORD", str(func(c *Config) *string { return &c.Console.Password })},
	{"BROWSER", str(func(c *Config) *string { return &c.Browser.Kind })},
	{"WEBDRIVER", str(func(c *Config) *string { return &c.Browser.DriverPath })},
	{"HEADLESS", boolean(func(c *Config) *bool { return &c.Browser.Headless })},
	{"SIMULATE_SLOWNESS", boolean(func(c *Config) *bool { return &c.Browser.SimulateLatency })},
	{"NS_KEY", str(func(c *Config) *string { return &c.Compare.NamespacePrefix })},
	{"NS", str(func(c *Config) *string { return &c.Compare.NamespaceURI })},
	{"MIGCHECK_REMOTE_URL", str(func(c *Config) *string { return &c.Browser.RemoteURL })},
	{"MIGCHECK_SOURCE", str(func(c *Config) *string { return &c.Compare.Source })},
	{"MIGCHECK_TARGET", str(func(c *Config) *string { return &c.Compare.Target })},
	{"MIGCHECK_QUERY", str(func(c *Config) *string { return &c.Compare.Query })},
	{"MIGCHECK_FIELD_PATH", str(func(c *Config) *string { return &c.Compare.FieldPath })},
	{"MIGCHECK_STRATEGY", str(func(c *Config) *string { return &c.Compare.Strategy })},
	{"MIGCHECK_REPORT_DIR", str(func(c *Config) *string { return &c.Report.Dir })},
	{"MIGCHECK_HISTORY_DB", str(func(c *Config) *string { return &c.Report.HistoryDB })},
}

func lookupEnvVar(name string) (envVar, bool) {
	for _, ev := range envVars {
		if ev.name == name {
			return ev, true
		}
	}
	return envVar{}, false
}

// ApplyEnv overlays set environment variables onto cfg.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	for _, ev := range envVars {
		v, ok := lookup(ev.name)
		if !ok {
			continue
		}
		if err := ev.set(cfg, v); err != nil {
			return fmt.Errorf("config: env %s=%q: %w", ev.name, v, err)
		}
	}
	return nil
}

// EnvNames returns the recognised environment variable names.
func EnvNames() []string {
	out := make([]string, len(envVars))
	for i, ev := range envVars {
		out[i] = ev.name
	}
	return out
}
