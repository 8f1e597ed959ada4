// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package export runs a bulk export: connect to the repository, run the
// saved query that lists the objects, export each listed object to its own
// file, and remove the object list.
//
// A failed object export is recorded and the loop moves on. Connect and
// query failures end the run before anything is exported.
package export

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/pdiddy/informatica-export/internal/classify"
	"github.com/pdiddy/informatica-export/internal/manifest"
	"github.com/pdiddy/informatica-export/internal/normalize"
	"github.com/pdiddy/informatica-export/internal/pmrep"
	"github.com/pdiddy/informatica-export/internal/transcript"
	"github.com/pdiddy/informatica-export/pkg/types"
)

// Runner executes pmrep commands.
type Runner interface {
	Run(ctx context.Context, c pmrep.Command) (pmrep.Result, error)

	// Path returns the executable path written to the transcript.
	Path() string
}

// Step names a run phase that aborts the run when pmrep fails.
type Step string

const (
	StepConnect Step = pmrep.OpConnect
	StepQuery   Step = pmrep.OpExecuteQuery
)

var (
	ErrConnectFailed = errors.New("connection failed")
	ErrQueryFailed   = errors.New("executequery failed")
)

// StepError reports a nonzero pmrep exit code from connect or executequery.
type StepError struct {
	Step     Step
	ExitCode int
	LogFile  string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("pmrep %s failed with exit code %d, see log %s", e.Step, e.ExitCode, e.LogFile)
}

func (e *StepError) Is(target error) bool {
	switch e.Step {
	case StepConnect:
		return target == ErrConnectFailed
	case StepQuery:
		return target == ErrQueryFailed
	}
	return false
}

// Exporter runs one export session.
type Exporter struct {
	cfg    types.SessionConfig
	fs     afero.Fs
	runner Runner
	log    *zap.Logger
	now    func() time.Time
}

// Option customizes an Exporter.
type Option func(*Exporter)

// WithFs sets the filesystem used for output, manifest, and log files.
func WithFs(fs afero.Fs) Option {
	return func(e *Exporter) { e.fs = fs }
}

// WithRunner replaces the pmrep invoker.
func WithRunner(r Runner) Option {
	return func(e *Exporter) { e.runner = r }
}

// WithLogger sets the console logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Exporter) { e.log = l }
}

// WithClock sets the time source used for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) { e.now = now }
}

// New returns an Exporter for cfg that runs pmrep from cfg.CommandsDir on
// the OS filesystem.
func New(cfg types.SessionConfig, opts ...Option) *Exporter {
	e := &Exporter{
		cfg:    cfg,
		fs:     afero.NewOsFs(),
		runner: pmrep.NewInvoker(cfg.CommandsDir),
		log:    zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run performs the export. The returned summary lists every object the
// export loop attempted; it is empty when connect or query failed. The log
// file is closed on every return path.
func (e *Exporter) Run(ctx context.Context) (summary types.RunSummary, err error) {
	summary = types.RunSummary{
		Repository: e.cfg.Repository,
		Query:      e.cfg.Query,
		StartedAt:  e.now(),
	}

	if err := e.fs.MkdirAll(e.cfg.OutputDir, 0o755); err != nil {
		return summary, fmt.Errorf("creating output directory %s: %w", e.cfg.OutputDir, err)
	}
	if err := e.fs.MkdirAll(filepath.Dir(e.cfg.LogFile), 0o755); err != nil {
		return summary, fmt.Errorf("creating log directory: %w", err)
	}

	tr, err := transcript.Open(e.fs, e.cfg.LogFile)
	if err != nil {
		return summary, err
	}
	defer func() {
		if cerr := tr.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	e.log.Info("Connecting to Repository.")
	if err := e.runStep(ctx, tr, StepConnect, pmrep.Connect(e.cfg)); err != nil {
		return summary, err
	}
	e.log.Info("Connection successful.")

	e.log.Info("Getting the list of objects to export.")
	if err := e.runStep(ctx, tr, StepQuery, pmrep.ExecuteQuery(e.cfg)); err != nil {
		return summary, err
	}
	e.log.Info("List of objects received.")

	defer func() {
		if rerr := e.removeManifest(); rerr != nil && err == nil {
			err = rerr
		}
	}()

	acc, err := e.exportAll(ctx, tr)
	summary.Outcomes = acc.outcomes
	summary.FinishedAt = e.now()
	if err != nil {
		return summary, err
	}

	e.log.Info(fmt.Sprintf("Export finished: %d exported, %d failed (total: %d)",
		summary.Succeeded(), summary.Failed(), summary.Total()))
	return summary, nil
}

// runStep runs a command whose failure aborts the run.
func (e *Exporter) runStep(ctx context.Context, tr *transcript.Transcript, step Step, cmd pmrep.Command) error {
	res, err := e.invoke(ctx, tr, cmd)
	if err != nil {
		return err
	}
	if res.Success() {
		return nil
	}

	stepErr := &StepError{Step: step, ExitCode: res.ExitCode, LogFile: tr.Path()}
	switch step {
	case StepConnect:
		e.log.Error(fmt.Sprintf("Connection failed. Exit code: %d. Please check log: %s", res.ExitCode, tr.Path()))
	default:
		e.log.Error(fmt.Sprintf("Executequery command failed. Exit code: %d. Please check log: %s", res.ExitCode, tr.Path()))
	}
	return stepErr
}

// invoke runs cmd and records it in the transcript.
func (e *Exporter) invoke(ctx context.Context, tr *transcript.Transcript, cmd pmrep.Command) (pmrep.Result, error) {
	e.log.Debug("running pmrep", zap.Strings("args", cmd.Redacted()))
	res, err := e.runner.Run(ctx, cmd)
	if err != nil {
		return res, err
	}
	if err := tr.Record(e.runner.Path(), cmd, res); err != nil {
		return res, err
	}
	return res, nil
}

// tally accumulates outcomes across the export loop. next is the 1-based
// number of the object about to be exported.
type tally struct {
	next     int
	outcomes []types.ObjectOutcome
}

func (t tally) record(o types.ObjectOutcome) tally {
	return tally{next: t.next + 1, outcomes: append(t.outcomes, o)}
}

// exportAll exports every manifest row in file order. Only manifest,
// filesystem, and infrastructure errors stop the loop.
func (e *Exporter) exportAll(ctx context.Context, tr *transcript.Transcript) (tally, error) {
	acc := tally{next: 1}

	r, err := manifest.Open(e.fs, e.cfg.ManifestPath())
	if err != nil {
		return acc, err
	}
	defer r.Close()

	for {
		row, err := r.Next()
		if errors.Is(err, io.EOF) {
			return acc, nil
		}
		if err != nil {
			return acc, err
		}

		outcome, err := e.exportObject(ctx, tr, acc.next, row)
		if err != nil {
			return acc, err
		}
		acc = acc.record(outcome)
	}
}

func (e *Exporter) exportObject(ctx context.Context, tr *transcript.Transcript, n int, row types.ManifestRow) (types.ObjectOutcome, error) {
	target := classify.Classify(e.cfg.OutputDir, row)
	outcome := types.ObjectOutcome{Number: n, Target: target}

	if err := e.fs.MkdirAll(target.Dir, 0o755); err != nil {
		return outcome, fmt.Errorf("creating directory %s: %w", target.Dir, err)
	}

	res, err := e.invoke(ctx, tr, pmrep.ObjectExport(target))
	if err != nil {
		return outcome, err
	}
	outcome.ExitCode = res.ExitCode
	outcome.Status = types.ExportSucceeded
	if !res.Success() {
		outcome.Status = types.ExportFailed
	}

	if e.cfg.Normalize {
		// A failed export usually leaves no file behind; that is not a
		// second error.
		err := normalize.File(e.fs, target.Path)
		if err != nil && !(errors.Is(err, os.ErrNotExist) && !res.Success()) {
			outcome.Status = types.ExportFailed
			outcome.Error = err.Error()
		}
	}

	e.logOutcome(outcome)
	return outcome, nil
}

func (e *Exporter) logOutcome(o types.ObjectOutcome) {
	t := o.Target
	msg := fmt.Sprintf("Exporting object %d: %s, %s, %s, %s.", o.Number, t.Folder, t.Type, t.Subtype, t.Name)
	if o.Status == types.ExportSucceeded {
		e.log.Info(msg + " SUCCESS")
		return
	}

	fields := []zap.Field{zap.Int("exit_code", o.ExitCode)}
	if o.Error != "" {
		fields = append(fields, zap.String("error", o.Error))
	}
	e.log.Warn(msg+" FAILED", fields...)
}

func (e *Exporter) removeManifest() error {
	err := e.fs.Remove(e.cfg.ManifestPath())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing manifest: %w", err)
	}
	return nil
}
