package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "migcheck.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, "http://localhost:8000", c.Console.URL)
	assert.Equal(t, "CHROME", c.Browser.Kind)
	assert.Equal(t, ".//claim:PublicId", c.Compare.FieldPath)
	assert.Equal(t, StrategyText, c.Compare.Strategy)
	assert.Equal(t, 100*time.Second, c.Timeouts.InitialLoad)
	assert.Equal(t, 10*time.Second, c.Timeouts.Login)
	assert.Zero(t, c.Timeouts.RenderSettle)
}

func TestLoadFile_OverlaysDefaults(t *testing.T) {
	p := writeFile(t, `
console:
  url: https://qc.internal:8000
  username: admin
browser:
  headless: true
compare:
  namespace_uri: http://example.com/claim
timeouts:
  login: 3s
  render_settle: 250ms
report:
  history_db: runs.db
`)
	c, err := LoadFile(p)
	require.NoError(t, err)
	assert.Equal(t, "https://qc.internal:8000", c.Console.URL)
	assert.Equal(t, "admin", c.Console.Username)
	assert.True(t, c.Browser.Headless)
	assert.Equal(t, 3*time.Second, c.Timeouts.Login)
	assert.Equal(t, 250*time.Millisecond, c.Timeouts.RenderSettle)
	assert.Equal(t, 5*time.Second, c.Timeouts.Select, "untouched timeout keeps its default")
	assert.Equal(t, "SubDB", c.Compare.Source)
	assert.Equal(t, "runs.db", c.Report.HistoryDB)
}

func TestLoadFile_UnknownKey(t *testing.T) {
	p := writeFile(t, "console:\n  uri: http://x\n")
	_, err := LoadFile(p)
	assert.Error(t, err)
}

func TestLoadFile_Empty(t *testing.T) {
	c, err := LoadFile(writeFile(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

const legacyEnvYAML = `
ML_CONSOLE_URL: http://ml.internal:8000
DB_USERNAME: admin
DB_PASSWORD: s3cret
BROWSER: EDGE
WEBDRIVER:
HEADLESS: True
SIMULATE_SLOWNESS: false
NS_KEY: claim
NS: http://example.com/claim
UNRELATED_SETTING: kept by other tools
`

func TestLoadFile_LegacyFlatKeys(t *testing.T) {
	c, err := LoadFile(writeFile(t, legacyEnvYAML))
	require.NoError(t, err)
	assert.Equal(t, "http://ml.internal:8000", c.Console.URL)
	assert.Equal(t, "admin", c.Console.Username)
	assert.Equal(t, "s3cret", c.Console.Password)
	assert.Equal(t, "EDGE", c.Browser.Kind)
	assert.Empty(t, c.Browser.DriverPath, "null keeps the default")
	assert.True(t, c.Browser.Headless)
	assert.False(t, c.Browser.SimulateLatency)
	assert.Equal(t, "claim", c.Compare.NamespacePrefix)
	assert.Equal(t, "http://example.com/claim", c.Compare.NamespaceURI)
	assert.Equal(t, "SubDB", c.Compare.Source)
	assert.NoError(t, c.Validate())
}

func TestLoadFile_LegacyBadValue(t *testing.T) {
	_, err := LoadFile(writeFile(t, "DB_USERNAME: admin\nHEADLESS: maybe\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HEADLESS")

	_, err = LoadFile(writeFile(t, "NS:\n  - a\n  - b\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NS must be a scalar")
}

func TestLoadFile_MixedLayoutIsStrict(t *testing.T) {
	_, err := LoadFile(writeFile(t, "console:\n  username: admin\nNS: http://example.com/claim\n"))
	assert.Error(t, err)
}

func TestLoad_PicksUpLegacyDefaultFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFile), []byte(legacyEnvYAML), 0o600))
	t.Chdir(dir)

	c, err := Load("", env(nil))
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/claim", c.Compare.NamespaceURI)
	assert.Equal(t, "admin", c.Console.Username)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	p := writeFile(t, "console:\n  username: fromfile\n")
	c, err := Load(p, env(map[string]string{
		"DB_USERNAME":       "fromenv",
		"DB_PASSWORD":       "pw",
		"HEADLESS":          "true",
		"SIMULATE_SLOWNESS": "1",
		"NS_KEY":            "claim",
		"NS":                "http://example.com/claim",
		"MIGCHECK_STRATEGY": "clipboard",
	}))
	require.NoError(t, err)
	assert.Equal(t, "fromenv", c.Console.Username)
	assert.Equal(t, "pw", c.Console.Password)
	assert.True(t, c.Browser.Headless)
	assert.True(t, c.Browser.SimulateLatency)
	assert.Equal(t, "claim", c.Compare.NamespacePrefix)
	assert.Equal(t, StrategyClipboard, c.Compare.Strategy)
}

func TestLoad_BadEnvBool(t *testing.T) {
	_, err := Load("", env(map[string]string{"HEADLESS": "maybe"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HEADLESS")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), env(nil))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	c := Default()
	c.Compare.NamespaceURI = "http://example.com/claim"
	require.NoError(t, c.Validate())
	assert.Equal(t, "claim", c.Compare.NamespacePrefix, "prefix inferred from the field path")

	bad := Default()
	bad.Console.URL = "localhost"
	bad.Compare.Strategy = "ocr"
	bad.Browser.Kind = "remote"
	err := bad.Validate()
	require.Error(t, err)
	for _, want := range []string{"console.url", "compare.strategy", "namespace_uri", "remote_url"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidate_NonPositiveTimeouts(t *testing.T) {
	c := Default()
	c.Compare.NamespaceURI = "http://example.com/claim"
	c.Timeouts.Busy = -time.Second
	c.Browser.PollInterval = -time.Millisecond
	c.Timeouts.Login = 0
	err := c.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeouts.busy must be positive")
	assert.Contains(t, err.Error(), "browser.poll_interval must be positive")
	assert.NotContains(t, err.Error(), "timeouts.login")
	assert.Equal(t, 10*time.Second, c.Timeouts.Login, "zero means unset")
}

func TestValidate_UnprefixedPathNeedsNoNamespace(t *testing.T) {
	c := Default()
	c.Compare.FieldPath = "//PublicId"
	assert.NoError(t, c.Validate())
}

func TestPathPrefix(t *testing.T) {
	cases := map[string]string{
		".//claim:PublicId":         "claim",
		"/a/b:c":                    "b",
		"//x[@ns:attr='1']":         "ns",
		"child::item":               "",
		"//PublicId":                "",
		"//a[contains(text(),'x')]": "",
	}
	for path, want := range cases {
		got, ok := pathPrefix(path)
		assert.Equal(t, want, got, path)
		assert.Equal(t, want != "", ok, path)
	}
}

func TestRedactedAndMarshal(t *testing.T) {
	c := Default()
	c.Console.Password = "hunter2"
	assert.Equal(t, "*****", c.Redacted().Console.Password)
	assert.Equal(t, "hunter2", c.Console.Password)

	out, err := Marshal(c)
	require.NoError(t, err)
	assert.NotContains(t, string(out), "hunter2")
	assert.Contains(t, string(out), "initial_load: 1m40s")
}

func TestEnvNames(t *testing.T) {
	names := EnvNames()
	assert.Contains(t, names, "ML_CONSOLE_URL")
	assert.Contains(t, names, "MIGCHECK_HISTORY_DB")
}
