package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultFile is read when no --config is given and it exists.
const DefaultFile = "env.yaml"

// LoadFile reads a YAML configuration file over the defaults. Two layouts
// are accepted: the nested sections of Config, where unknown keys are
// rejected, and the flat upper-case keys of a legacy env.yaml (see
// EnvNames), where keys outside that set are ignored.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := decode(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	var top map[string]yaml.Node
	if err := yaml.Unmarshal(data, &top); err != nil {
		return err
	}
	if isFlat(top) {
		return decodeFlat(top, cfg)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

var sections = map[string]bool{"console": true, "browser": true, "compare": true, "timeouts": true, "report": true}

// isFlat reports whether top uses the legacy layout: no section key and at
// least one recognised variable name.
func isFlat(top map[string]yaml.Node) bool {
	flat := false
	for k := range top {
		if sections[k] {
			return false
		}
		if _, ok := lookupEnvVar(k); ok {
			flat = true
		}
	}
	return flat
}

// decodeFlat applies legacy keys through the environment variable table.
// A null value keeps the default.
func decodeFlat(top map[string]yaml.Node, cfg *Config) error {
	for _, ev := range envVars {
		n, ok := top[ev.name]
		if !ok || n.Tag == "!!null" {
			continue
		}
		if n.Kind != yaml.ScalarNode {
			return fmt.Errorf("line %d: %s must be a scalar", n.Line, ev.name)
		}
		if err := ev.set(cfg, n.Value); err != nil {
			return fmt.Errorf("line %d: %s=%q: %w", n.Line, ev.name, n.Value, err)
		}
	}
	return nil
}

// FileExists reports whether path names a regular file.
func FileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

// Load builds the configuration from defaults, then path (skipped when
// empty and DefaultFile is absent), then the environment.
func Load(path string, lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	if path == "" && FileExists(DefaultFile) {
		path = DefaultFile
	}
	if path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return cfg, err
		}
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := ApplyEnv(&cfg, lookup); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Marshal renders cfg as YAML with the password masked.
func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg.Redacted())
}
