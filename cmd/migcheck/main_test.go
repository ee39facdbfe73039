package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hazyhaar/migcheck/compare"
	"github.com/hazyhaar/migcheck/config"
	"github.com/hazyhaar/migcheck/drift"
	"github.com/hazyhaar/migcheck/history"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd(&stdout, &stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "migcheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const validYAML = `
console:
  url: http://console.test:8000
  username: admin
  password: s3cret
compare:
  namespace_uri: http://example.com/claim
`

func TestApplyFlags_OnlyChanged(t *testing.T) {
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	f := &runFlags{}
	bindRunFlags(fs, f)
	require.NoError(t, fs.Parse([]string{"--source", "A", "--headless", "--out", "/tmp/r", "--target", ""}))

	cfg := config.Default()
	cfg.Compare.Query = "/from-file*"
	applyFlags(&cfg, fs, f)

	assert.Equal(t, "A", cfg.Compare.Source)
	assert.Equal(t, "", cfg.Compare.Target)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "/tmp/r", cfg.Report.Dir)
	assert.Equal(t, "/from-file*", cfg.Compare.Query)
	assert.Equal(t, config.StrategyText, cfg.Compare.Strategy)
}

func TestLoadConfig_FlagsOverrideEnvAndFile(t *testing.T) {
	t.Setenv("MIGCHECK_SOURCE", "EnvDB")
	t.Setenv("MIGCHECK_TARGET", "EnvTarget")
	path := writeConfig(t, validYAML+"  source: FileDB\n")

	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	f := &runFlags{}
	bindRunFlags(fs, f)
	require.NoError(t, fs.Parse([]string{"--target", "FlagTarget"}))

	cfg, err := loadConfig(path, fs, f)
	require.NoError(t, err)
	assert.Equal(t, "EnvDB", cfg.Compare.Source)
	assert.Equal(t, "FlagTarget", cfg.Compare.Target)
	assert.Equal(t, "claim", cfg.Compare.NamespacePrefix)
}

func TestLoadConfig_Invalid(t *testing.T) {
	path := writeConfig(t, "compare:\n  strategy: ocr\n  namespace_uri: urn:x\n")
	fs := pflag.NewFlagSet("run", pflag.ContinueOnError)
	f := &runFlags{}
	bindRunFlags(fs, f)

	_, err := loadConfig(path, fs, f)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compare.strategy")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := newLogger(&buf, "warn", "json")
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("console: shown", "collection", "SubDB")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"collection":"SubDB"`)

	_, err = newLogger(&buf, "loud", "text")
	assert.Error(t, err)
	_, err = newLogger(&buf, "info", "xml")
	assert.Error(t, err)
}

func TestConfigCmd_MasksPassword(t *testing.T) {
	path := writeConfig(t, validYAML)
	out, _, err := execute(t, "config", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "url: http://console.test:8000")
	assert.Contains(t, out, "password: '*****'")
	assert.NotContains(t, out, "s3cret")
}

func TestConfigCmd_ReportsInvalid(t *testing.T) {
	path := writeConfig(t, "console:\n  url: not a url\n")
	out, _, err := execute(t, "config", "--config", path)
	require.Error(t, err)
	assert.Contains(t, out, "console:")
	assert.Contains(t, err.Error(), "console.url")
}

func TestHistoryCmd(t *testing.T) {
	db := filepath.Join(t.TempDir(), "history.db")
	store, err := history.Open(db)
	require.NoError(t, err)
	start := time.Now().Add(-time.Hour)
	id, err := store.Record(context.Background(), history.Run{
		StartedAt: start, FinishedAt: start.Add(time.Minute),
		Source: "SubDB", Target: "FinalDB", Query: "/claim*", Strategy: "text",
		ReportPath: "report.xlsx",
	}, []compare.Row{
		{ID: "/a.xml", InSource: true, InTarget: true, Expected: "X1", Got: "X2", Status: compare.Failed, Reason: compare.ReasonValueDiffers},
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	out, _, err := execute(t, "history", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "SubDB")
	assert.Contains(t, out, "1 hour ago")

	out, _, err = execute(t, "history", "--db", db, "--run", id)
	require.NoError(t, err)
	assert.Contains(t, out, "/a.xml")
	assert.Contains(t, out, compare.ReasonValueDiffers)
}

func TestRunCmd_RejectsInvalidConfig(t *testing.T) {
	path := writeConfig(t, "compare:\n  namespace_uri: ''\n")
	_, _, err := execute(t, "run", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "namespace_uri")
}

func TestRunCmd_BadSettingsNeverOpenBrowser(t *testing.T) {
	opened := 0
	orig := openConsole
	openConsole = func(context.Context, config.Config, *slog.Logger) (drift.Console, error) {
		opened++
		return nil, errors.New("unexpected browser start")
	}
	t.Cleanup(func() { openConsole = orig })

	path := writeConfig(t, validYAML)
	_, _, err := execute(t, "run", "--config", path, "--field", ".//claim:[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "xmldoc")
	assert.Zero(t, opened)

	_, _, err = execute(t, "run", "--config", path, "--field", ".//claim:PublicId", "--strategy", "text")
	require.Error(t, err)
	assert.Equal(t, 1, opened, "valid settings reach the browser")
}
