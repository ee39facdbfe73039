package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/hazyhaar/migcheck/config"
	"github.com/hazyhaar/migcheck/console"
	"github.com/hazyhaar/migcheck/drift"
	"github.com/hazyhaar/migcheck/history"
)

// openConsole starts the browser session a run drives.
var openConsole = func(ctx context.Context, cfg config.Config, logger *slog.Logger) (drift.Console, error) {
	return console.Open(ctx, cfg, logger)
}

// runFlags are the per-run overrides. They win over file and environment
// only when set on the command line.
type runFlags struct {
	source   string
	target   string
	query    string
	field    string
	strategy string
	browser  string
	headless bool
	out      string
	history  string
}

func newRunCmd(g *globalFlags) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Extract, compare and write the report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), g.logLevel, g.logFormat)
			if err != nil {
				return err
			}
			cfg, err := loadConfig(g.configPath, cmd.Flags(), f)
			if err != nil {
				return err
			}
			logger.Debug("migcheck: configuration", "config", cfg.Redacted())

			if err := drift.Check(cfg); err != nil {
				return err
			}

			ctx := cmd.Context()
			client, err := openConsole(ctx, cfg, logger)
			if err != nil {
				return err
			}

			opts := []drift.Option{drift.WithLogger(logger)}
			if cfg.Report.HistoryDB != "" {
				store, err := history.Open(cfg.Report.HistoryDB)
				if err != nil {
					logger.Warn("migcheck: history disabled", "error", err)
				} else {
					defer store.Close()
					opts = append(opts, drift.WithHistory(store))
				}
			}

			runner, err := drift.New(cfg, client, opts...)
			if err != nil {
				client.Close()
				return err
			}
			out, err := runner.Run(ctx)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "report: %s\n", out.ReportPath)
			fmt.Fprintf(w, "extracted: %d source, %d target\n", out.Extracted.Source, out.Extracted.Target)
			fmt.Fprintf(w, "total: %d  passed: %d  failed: %d\n", out.Summary.Total, out.Summary.Passed, out.Summary.Failed)
			if out.RunID != "" {
				fmt.Fprintf(w, "run: %s\n", out.RunID)
			}
			return nil
		},
	}

	bindRunFlags(cmd.Flags(), f)
	return cmd
}

func bindRunFlags(fl *pflag.FlagSet, f *runFlags) {
	fl.StringVar(&f.source, "source", "", "source collection")
	fl.StringVar(&f.target, "target", "", "target collection")
	fl.StringVar(&f.query, "query", "", "URI filter selecting documents")
	fl.StringVar(&f.field, "field", "", "field path compared between documents")
	fl.StringVar(&f.strategy, "strategy", "", "extraction strategy: text, clipboard")
	fl.StringVar(&f.browser, "browser", "", "browser kind: CHROME, EDGE, REMOTE")
	fl.BoolVar(&f.headless, "headless", false, "run the browser headless")
	fl.StringVar(&f.out, "out", "", "report directory")
	fl.StringVar(&f.history, "history", "", "SQLite run history file")
}

// loadConfig layers defaults, file, environment, then changed flags, and
// validates the result.
func loadConfig(path string, fs *pflag.FlagSet, f *runFlags) (config.Config, error) {
	cfg, err := config.Load(path, os.LookupEnv)
	if err != nil {
		return cfg, err
	}
	applyFlags(&cfg, fs, f)
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration:\n%w", err)
	}
	return cfg, nil
}

func applyFlags(cfg *config.Config, fs *pflag.FlagSet, f *runFlags) {
	changed := map[string]bool{}
	fs.Visit(func(fl *pflag.Flag) { changed[fl.Name] = true })

	set := func(name, value string, dst *string) {
		if changed[name] {
			*dst = value
		}
	}
	set("source", f.source, &cfg.Compare.Source)
	set("target", f.target, &cfg.Compare.Target)
	set("query", f.query, &cfg.Compare.Query)
	set("field", f.field, &cfg.Compare.FieldPath)
	set("strategy", f.strategy, &cfg.Compare.Strategy)
	set("browser", f.browser, &cfg.Browser.Kind)
	set("out", f.out, &cfg.Report.Dir)
	set("history", f.history, &cfg.Report.HistoryDB)
	if changed["headless"] {
		cfg.Browser.Headless = f.headless
	}
}
