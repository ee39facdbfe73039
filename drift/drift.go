// Package drift runs one migration check end to end: log in, extract the
// matching documents from the source then the target collection, close the
// browser, compare, write the report and record the run.
package drift

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hazyhaar/migcheck/compare"
	"github.com/hazyhaar/migcheck/config"
	"github.com/hazyhaar/migcheck/console"
	"github.com/hazyhaar/migcheck/history"
	"github.com/hazyhaar/migcheck/report"
	"github.com/hazyhaar/migcheck/xmldoc"
)

// Console is the console session a run drives. *console.Client
// implements it.
type Console interface {
	Authenticate(ctx context.Context) console.Result[string]
	SelectCollection(ctx context.Context, name string) console.Result[string]
	Search(ctx context.Context, query string) console.Result[[]string]
	Extract(ctx context.Context, id string, s console.Strategy) console.Result[xmldoc.Document]
	Close() error
}

// Recorder persists a finished run. *history.Store implements it.
type Recorder interface {
	Record(ctx context.Context, run history.Run, rows []compare.Row) (string, error)
}

// Outcome is what a run produced.
type Outcome struct {
	RunID      string // empty when no history is kept
	ReportPath string
	Rows       []compare.Row
	Summary    compare.Summary
	Extracted  Counts
}

// Counts is the number of documents extracted per side.
type Counts struct {
	Source int
	Target int
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option { return func(r *Runner) { r.logger = l } }

// WithHistory records every run in rec.
func WithHistory(rec Recorder) Option { return func(r *Runner) { r.history = rec } }

// WithClock overrides the time source for run timestamps and report names.
func WithClock(now func() time.Time) Option { return func(r *Runner) { r.now = now } }

// Runner executes a check against one console session.
type Runner struct {
	cfg      config.Config
	console  Console
	strategy console.Strategy
	field    xmldoc.Field

	history Recorder
	logger  *slog.Logger
	now     func() time.Time

	closeOnce sync.Once
}

// Check compiles the field path and resolves the extraction strategy of cfg
// without touching a console, so bad settings surface before any browser
// is started.
func Check(cfg config.Config) error {
	_, _, err := settings(cfg)
	return err
}

func settings(cfg config.Config) (xmldoc.Field, console.Strategy, error) {
	field, err := xmldoc.CompileField(cfg.Compare.FieldPath, cfg.Compare.NamespacePrefix, cfg.Compare.NamespaceURI)
	if err != nil {
		return xmldoc.Field{}, nil, fmt.Errorf("drift: %w", err)
	}
	strategy, err := console.StrategyByName(cfg.Compare.Strategy)
	if err != nil {
		return xmldoc.Field{}, nil, fmt.Errorf("drift: %w", err)
	}
	return field, strategy, nil
}

// New validates the comparison settings of cfg, as Check does, and returns
// a Runner driving c.
func New(cfg config.Config, c Console, opts ...Option) (*Runner, error) {
	field, strategy, err := settings(cfg)
	if err != nil {
		return nil, err
	}
	r := &Runner{
		cfg:      cfg,
		console:  c,
		strategy: strategy,
		field:    field,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// Run performs the check. Console failures never abort it: a failed login
// or an unavailable collection yields an empty side and the report is still
// written. Errors are returned only when ctx is cancelled or the report
// cannot be written. The console session is closed in every case.
func (r *Runner) Run(ctx context.Context) (Outcome, error) {
	defer r.closeConsole()
	started := r.now()
	cc := r.cfg.Compare

	r.logger.Info("drift: run starting",
		"source", cc.Source, "target", cc.Target, "query", cc.Query,
		"field", cc.FieldPath, "strategy", r.strategy.Name())

	if res := r.console.Authenticate(ctx); !res.OK() {
		r.logger.Error("drift: login failed, continuing with empty result sets", "error", res.Err)
	}

	source := r.collect(ctx, cc.Source)
	target := r.collect(ctx, cc.Target)
	r.closeConsole()

	if err := ctx.Err(); err != nil {
		return Outcome{}, fmt.Errorf("drift: run interrupted: %w", err)
	}

	rows := compare.New(r.field, r.logger).Compare(source, target)

	b := report.NewBuilder(
		report.WithLabels(r.cfg.Report.YesLabel, r.cfg.Report.NoLabel),
		report.WithPrefix(r.cfg.Report.Prefix),
		report.WithLogger(r.logger),
		report.WithClock(r.now),
	)
	b.PushAll(rows)
	path, err := b.Write(r.cfg.Report.Dir)
	if err != nil {
		return Outcome{}, fmt.Errorf("drift: %w", err)
	}

	out := Outcome{
		ReportPath: path,
		Rows:       rows,
		Summary:    b.Summary(),
		Extracted:  Counts{Source: len(source), Target: len(target)},
	}
	out.RunID = r.record(ctx, started, path, rows)

	r.logger.Info("drift: run complete", "report", path,
		"total", out.Summary.Total, "passed", out.Summary.Passed, "failed", out.Summary.Failed,
		"elapsed", r.now().Sub(started).Round(time.Millisecond))
	return out, nil
}

// collect extracts every document matching the query in collection. Only
// successfully extracted documents are returned.
func (r *Runner) collect(ctx context.Context, collection string) []xmldoc.Document {
	if ctx.Err() != nil {
		return nil
	}
	if res := r.console.SelectCollection(ctx, collection); !res.OK() {
		r.logger.Error("drift: collection skipped", "collection", collection, "error", res.Err)
		return nil
	}
	found := r.console.Search(ctx, r.cfg.Compare.Query)
	if !found.OK() {
		r.logger.Error("drift: search failed", "collection", collection, "error", found.Err)
		return nil
	}

	docs := make([]xmldoc.Document, 0, len(found.Value))
	for _, id := range found.Value {
		if ctx.Err() != nil {
			break
		}
		res := r.console.Extract(ctx, id, r.strategy)
		if !res.OK() {
			r.logger.Warn("drift: document excluded", "collection", collection, "id", id,
				"status", res.Status, "error", res.Err)
			continue
		}
		docs = append(docs, res.Value)
	}
	r.logger.Info("drift: collection extracted", "collection", collection,
		"listed", len(found.Value), "extracted", len(docs))
	return docs
}

func (r *Runner) record(ctx context.Context, started time.Time, path string, rows []compare.Row) string {
	if r.history == nil {
		return ""
	}
	cc := r.cfg.Compare
	id, err := r.history.Record(ctx, history.Run{
		StartedAt:  started,
		FinishedAt: r.now(),
		Source:     cc.Source,
		Target:     cc.Target,
		Query:      cc.Query,
		Strategy:   r.strategy.Name(),
		ReportPath: path,
	}, rows)
	if err != nil {
		r.logger.Warn("drift: history not recorded", "error", err)
		return ""
	}
	return id
}

func (r *Runner) closeConsole() {
	r.closeOnce.Do(func() {
		if err := r.console.Close(); err != nil {
			r.logger.Warn("drift: close console", "error", err)
		}
	})
}
