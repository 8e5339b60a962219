// Package extract turns a flaky, asynchronously populated password table
// into an ordered list of entries.
//
// An extraction moves Idle -> Stabilizing -> Extracting -> Done or Aborted
// and never returns to Stabilizing once rows are being read. Everything
// runs on the caller's goroutine: the source's selection and detail view
// are a single shared resource, so rows are visited strictly one at a time.
package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pwexport/internal/logging"
	"pwexport/internal/models"
	"pwexport/internal/source"
)

// State is the phase an Engine is in.
type State int

const (
	StateIdle State = iota
	StateStabilizing
	StateExtracting
	StateDone
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStabilizing:
		return "stabilizing"
	case StateExtracting:
		return "extracting"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config controls an extraction.
type Config struct {
	// MaxAttempts bounds the row count samples taken while stabilizing.
	MaxAttempts int
	// Timeout bounds the whole extraction. Zero disables it.
	Timeout time.Duration
	// ForcedRowCount, when larger than the stable count, visits that many
	// rows cycling over the table. Used for volume testing; zero disables it.
	ForcedRowCount int
	// PollInterval is the pause between row count samples.
	PollInterval time.Duration
}

// Engine orchestrates stabilization and per-row collection.
type Engine struct {
	cfg        Config
	stabilizer *Stabilizer
	collector  *Collector
	log        *zap.Logger
	trace      *logging.Timestamped

	state     State
	abortKind models.Kind
}

// New creates an Engine. log and trace may be nil.
func New(cfg Config, log *zap.Logger, trace *logging.Timestamped) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.PollInterval < 0 {
		cfg.PollInterval = 0
	}
	return &Engine{
		cfg:        cfg,
		stabilizer: NewStabilizer(cfg.PollInterval, log, trace),
		collector:  NewCollector(log, trace),
		log:        log,
		trace:      trace,
	}
}

// State returns the phase of the last (or running) extraction.
func (e *Engine) State() State { return e.state }

// AbortKind returns why the last extraction aborted, or "".
func (e *Engine) AbortKind() models.Kind { return e.abortKind }

// Extract runs a full extraction against src. Rows whose detail view cannot
// be opened are counted and skipped; any other failure aborts and no
// partial result is returned.
func (e *Engine) Extract(ctx context.Context, src source.Source) (*models.ExtractionResult, error) {
	started := time.Now()
	e.abortKind = ""
	e.setState(StateIdle)

	runCtx := ctx
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	e.setState(StateStabilizing)
	st, err := e.stabilizer.Stabilize(runCtx, src, e.cfg.MaxAttempts)
	if err != nil {
		return nil, e.abort(runCtx, err)
	}

	e.setState(StateExtracting)
	plan := Plan(st.Count, e.cfg.ForcedRowCount)
	if len(plan) != st.Count {
		e.log.Info("forced row count active", zap.Int("stable", st.Count), zap.Int("visits", len(plan)))
		_ = e.trace.Logf("forced row count %d over %d rows", len(plan), st.Count)
	}

	result := &models.ExtractionResult{
		Entries:     make([]models.Entry, 0, len(plan)),
		StableCount: st.Count,
	}

	for n, row := range plan {
		if err := runCtx.Err(); err != nil {
			return nil, e.abort(runCtx, err)
		}
		if !src.IsSourceRunning() {
			return nil, e.abort(runCtx, models.NewRowError(models.KindExternalAbort, row,
				"source is no longer running", nil))
		}

		result.Visited++
		entry, err := e.collector.Collect(runCtx, src, row)
		if err != nil {
			if models.KindOf(err) != models.KindRowOpenFailure {
				return nil, e.abort(runCtx, err)
			}
			if !src.IsSourceRunning() {
				return nil, e.abort(runCtx, models.NewRowError(models.KindExternalAbort, row,
					"source stopped while opening row", err))
			}
			result.FailedRowCount++
			e.log.Warn("row skipped", zap.Int("row", row), zap.Int("visit", n+1), zap.Error(err))
			_ = e.trace.Logf("row %d skipped: %v", row, err)
			continue
		}
		result.Entries = append(result.Entries, entry)
		e.log.Debug("row collected", zap.Int("row", row), zap.Int("visit", n+1))
	}

	result.Duration = time.Since(started)
	e.setState(StateDone)
	e.log.Info("extraction finished",
		zap.Int("entries", len(result.Entries)),
		zap.Int("failedRows", result.FailedRowCount),
		zap.Duration("took", result.Duration),
	)
	_ = e.trace.Logf("done: %d entries, %d failed rows", len(result.Entries), result.FailedRowCount)
	return result, nil
}

// Plan returns the 1-based row indices to visit, in order. Normally every
// row once in ascending order; when forced exceeds stable, forced visits
// cycling 1..stable.
func Plan(stable, forced int) []int {
	if stable <= 0 {
		return nil
	}
	total := stable
	if forced > stable {
		total = forced
	}
	plan := make([]int, total)
	for n := 1; n <= total; n++ {
		plan[n-1] = ((n - 1) % stable) + 1
	}
	return plan
}

func (e *Engine) setState(s State) {
	if e.state != s {
		e.log.Debug("extraction state", zap.Stringer("from", e.state), zap.Stringer("to", s))
		_ = e.trace.Logf("state %s -> %s", e.state, s)
	}
	e.state = s
}

// abort moves to StateAborted and classifies err.
func (e *Engine) abort(runCtx context.Context, err error) error {
	switch {
	case models.KindOf(err) != "":
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(runCtx.Err(), context.DeadlineExceeded):
		err = models.NewError(models.KindGlobalTimeout,
			fmt.Sprintf("extraction exceeded %s", e.cfg.Timeout), err)
	case errors.Is(err, context.Canceled):
		err = models.NewError(models.KindInterrupted, "extraction cancelled", err)
	}
	e.abortKind = models.KindOf(err)
	e.setState(StateAborted)
	e.log.Error("extraction aborted", zap.String("kind", string(e.abortKind)), zap.Error(err))
	_ = e.trace.Logf("aborted: %v", err)
	return err
}
