// Package ingest drives ingestion runs: it locates each year's file, streams
// its records through normalization, dimension resolution and the fact
// writer, and reports what happened.
//
// Row-level problems are recovered from and counted. Store failures and
// dimension integrity faults abort the run and roll back its transaction.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/23atomist/electrion-PA/internal/metrics"
	"github.com/23atomist/electrion-PA/internal/model"
	"github.com/23atomist/electrion-PA/internal/resolve"
	"github.com/23atomist/electrion-PA/internal/source"
	"github.com/23atomist/electrion-PA/internal/store"
)

// Kind is a family of source files and the fact table it feeds.
type Kind string

const (
	KindResults      Kind = "results"
	KindRegistration Kind = "registration"
)

// ErrUnknownKind is returned by ParseKind.
var ErrUnknownKind = errors.New("ingest: unknown kind")

// ParseKind parses "results" or "registration".
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindResults, KindRegistration:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// FactTable returns the table a kind writes to.
func (k Kind) FactTable() string {
	if k == KindRegistration {
		return store.RegistrationTable
	}
	return store.ResultsTable
}

// DefaultYears are the general elections the state publishes precinct files
// for.
var DefaultYears = []int{2000, 2004, 2008, 2012, 2016, 2020, 2024}

// Options configure an Engine.
type Options struct {
	DataDir      string
	Years        []int
	ElectionType string // defaults to "G"
	StateCode    string // defaults to "PA"
	StateName    string // defaults to "Pennsylvania"

	// CommitPerFile commits after every file instead of once per run.
	CommitPerFile bool
}

func (o Options) withDefaults() Options {
	if len(o.Years) == 0 {
		o.Years = DefaultYears
	}
	if o.ElectionType == "" {
		o.ElectionType = "G"
	}
	if o.StateCode == "" {
		o.StateCode = "PA"
	}
	if o.StateName == "" {
		o.StateName = "Pennsylvania"
	}
	return o
}

// Engine runs ingestion passes against a store. Runs must not overlap.
type Engine struct {
	store    store.Store
	opts     Options
	log      *slog.Logger
	progress func(Event)
}

// NewEngine creates an Engine. A nil logger uses slog.Default().
func NewEngine(st store.Store, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: st, opts: opts.withDefaults(), log: logger}
}

// OnProgress registers a callback for run events. It is called
// synchronously from the run.
func (e *Engine) OnProgress(fn func(Event)) {
	e.progress = fn
}

// RunAll runs results then registration. It stops at the first fatal
// error.
func (e *Engine) RunAll(ctx context.Context) ([]*Report, error) {
	var reports []*Report
	for _, kind := range []Kind{KindResults, KindRegistration} {
		rep, err := e.Run(ctx, kind)
		reports = append(reports, rep)
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}

// run is the state carried across the files of one pass.
type run struct {
	report   *Report
	log      *slog.Logger
	tx       store.Tx
	resolver *resolve.Resolver
	facts    *FactWriter
	stateID  int64
}

// Run ingests every configured year of one kind. The returned report is
// non-nil even when err is non-nil.
func (e *Engine) Run(ctx context.Context, kind Kind) (rep *Report, err error) {
	rep = &Report{RunID: uuid.NewString(), Kind: kind, Started: time.Now().UTC()}
	r := &run{report: rep, log: e.log.With("run_id", rep.RunID, "kind", string(kind))}

	defer func() {
		rep.Finished = time.Now().UTC()
		metrics.RunDuration.WithLabelValues(string(kind)).Observe(rep.Finished.Sub(rep.Started).Seconds())
		if err != nil {
			if r.tx != nil {
				if rbErr := r.tx.Rollback(ctx); rbErr != nil {
					r.log.Error("rollback failed", "err", rbErr)
				}
			}
			rep.Error = err.Error()
			r.log.Error("ingestion run failed", "err", err)
			e.emit(Event{Type: EventRunFailed, RunID: rep.RunID, Kind: kind, Error: err.Error()})
		}
	}()

	r.log.Info("ingestion run started", "data_dir", e.opts.DataDir, "years", e.opts.Years)
	e.emit(Event{Type: EventRunStarted, RunID: rep.RunID, Kind: kind})

	if err := e.begin(ctx, r); err != nil {
		return rep, err
	}

	for _, year := range e.opts.Years {
		path, ok := Locate(e.opts.DataDir, Candidates(kind, year))
		if !ok {
			rep.Skipped = append(rep.Skipped, year)
			metrics.FilesTotal.WithLabelValues(string(kind), "missing").Inc()
			r.log.Warn("no file found, skipping year", "year", year, "candidates", Candidates(kind, year))
			e.emit(Event{Type: EventYearSkipped, RunID: rep.RunID, Kind: kind, Year: year})
			continue
		}

		if r.tx == nil {
			if err := e.begin(ctx, r); err != nil {
				return rep, err
			}
		}

		e.emit(Event{Type: EventFileStarted, RunID: rep.RunID, Kind: kind, Year: year, File: path})
		yr, err := e.ingestFile(ctx, r, kind, year, path)
		rep.Years = append(rep.Years, yr)
		if err != nil {
			return rep, err
		}
		e.emit(Event{Type: EventFileFinished, RunID: rep.RunID, Kind: kind, Year: year, File: path, Stats: &yr})

		if e.opts.CommitPerFile {
			if err := e.commit(ctx, r); err != nil {
				return rep, err
			}
		}
	}

	if r.tx != nil {
		if err := e.commit(ctx, r); err != nil {
			return rep, err
		}
	}
	rep.Committed = true

	n, err := e.store.Count(ctx, kind.FactTable())
	if err != nil {
		return rep, fmt.Errorf("count %s: %w", kind.FactTable(), err)
	}
	rep.FactCount = n
	rep.checkAnomalies()
	for _, a := range rep.Anomalies {
		r.log.Warn("ingestion anomaly", "anomaly", a)
	}

	totals := rep.Totals()
	r.log.Info("ingestion run committed",
		"files", len(rep.Years), "skipped", len(rep.Skipped),
		"rows", totals.Rows, "facts_inserted", totals.FactsInserted,
		"rejected", totals.Rejected, "fact_count", n)
	e.emit(Event{Type: EventRunCommitted, RunID: rep.RunID, Kind: kind, FactCount: n})
	return rep, nil
}

func (e *Engine) begin(ctx context.Context, r *run) error {
	tx, err := e.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	r.tx = tx
	r.resolver = resolve.New(tx)
	r.facts = NewFactWriter(tx)

	r.stateID, err = r.resolver.State(ctx,
		model.StateKey{Abbreviation: e.opts.StateCode},
		model.StateAttrs{Name: e.opts.StateName})
	return err
}

func (e *Engine) commit(ctx context.Context, r *run) error {
	r.report.Dimensions.Add(r.resolver.Stats())
	tx := r.tx
	r.tx = nil
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// ingestFile streams one file. Problems confined to the file are recorded
// on the year report; the error return is reserved for fatal faults.
func (e *Engine) ingestFile(ctx context.Context, r *run, kind Kind, year int, path string) (YearReport, error) {
	yr := YearReport{Year: year, File: path, Status: StatusIngested}
	log := r.log.With("year", year, "file", path)

	format, fields := source.FormatFor(path, true), source.ResultsRequiredFields
	if kind == KindRegistration {
		format, fields = source.FormatFor(path, false), source.RegistrationFields
	}
	yr.Format = format.String()

	src, err := source.Open(path, format, fields)
	if err != nil {
		yr.Status, yr.Error = StatusFailed, err.Error()
		metrics.FilesTotal.WithLabelValues(string(kind), StatusFailed).Inc()
		log.Error("cannot read file, skipping year", "err", err)
		return yr, nil
	}
	defer src.Close()

	electionID, err := r.resolver.Election(ctx, model.ElectionKey{
		StateID: r.stateID, Year: year, Type: e.opts.ElectionType,
	})
	if err != nil {
		return yr, err
	}

	log.Info("processing file", "format", yr.Format)
	for {
		rec, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			yr.Status, yr.Error = StatusFailed, err.Error()
			log.Error("read failed, abandoning rest of file", "line", src.Line(), "err", err)
			break
		}
		yr.Rows++

		var res rowResult
		if kind == KindRegistration {
			res, err = e.registrationRow(ctx, r, electionID, rec)
		} else {
			res, err = e.resultRow(ctx, r, electionID, rec)
		}
		if err != nil {
			log.Error("fatal error processing row", "line", src.Line(), "row", map[string]string(rec), "err", err)
			return yr, fmt.Errorf("%d %s line %d: %w", year, kind, src.Line(), err)
		}

		yr.record(res)
		metrics.RowsTotal.WithLabelValues(string(kind), res.outcome.String()).Inc()
		for _, w := range res.warnings {
			log.Warn("row warning", "line", src.Line(), "warning", w)
		}
		if res.outcome == rowRejected {
			log.Error("row rejected", "line", src.Line(), "row", map[string]string(rec), "err", res.cause)
		}
	}

	metrics.FilesTotal.WithLabelValues(string(kind), yr.Status).Inc()
	log.Info("file processed",
		"rows", yr.Rows, "facts_inserted", yr.FactsInserted, "duplicates", yr.Duplicates,
		"blank", yr.Blank, "rejected", yr.Rejected, "warnings", yr.Warnings)
	return yr, nil
}

func (e *Engine) emit(ev Event) {
	if e.progress == nil {
		return
	}
	ev.Time = time.Now().UTC()
	e.progress(ev)
}
