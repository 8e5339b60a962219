package extract

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"pwexport/internal/logging"
	"pwexport/internal/models"
	"pwexport/internal/source"
)

// DefaultPollInterval is the pause between two row count samples.
const DefaultPollInterval = time.Second

// Stabilization is the outcome of a successful Stabilize call.
type Stabilization struct {
	Count    int
	Attempts int
	Samples  []models.RowSample
}

// Stabilizer polls a source's row count until it stops changing. The table
// is populated asynchronously and may under-report for a while after it
// first appears.
type Stabilizer struct {
	interval time.Duration
	log      *zap.Logger
	trace    *logging.Timestamped
}

// NewStabilizer creates a Stabilizer sampling once per interval.
func NewStabilizer(interval time.Duration, log *zap.Logger, trace *logging.Timestamped) *Stabilizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Stabilizer{interval: interval, log: log, trace: trace}
}

// Stabilize samples src.RowCount() at most maxAttempts times. It succeeds as
// soon as a non-zero sample equals the previous non-zero sample. Zero
// samples are retried and never become the previous value. If every sample
// is zero it fails with KindEmptySource, otherwise with KindUnstableSource.
// A cancelled or expired ctx is returned as-is.
func (s *Stabilizer) Stabilize(ctx context.Context, src source.Source, maxAttempts int) (Stabilization, error) {
	var st Stabilization
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	pace := rate.NewLimiter(rate.Every(s.interval), 1)
	prev := 0
	sawRows := false

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := wait(ctx, pace); err != nil {
			return st, err
		}

		n, err := src.RowCount()
		if err != nil {
			s.log.Debug("row count sample failed", zap.Int("attempt", attempt), zap.Error(err))
			n = 0
		}
		if n < 0 {
			n = 0
		}
		st.Attempts = attempt
		st.Samples = append(st.Samples, models.RowSample{Attempt: attempt, Count: n})

		if n == 0 {
			_ = s.trace.Logf("attempt %d: table reports no rows yet", attempt)
			s.log.Debug("table empty, retrying", zap.Int("attempt", attempt))
			continue
		}
		sawRows = true

		_ = s.trace.Logf("attempt %d: %d rows", attempt, n)
		if n == prev {
			st.Count = n
			s.log.Info("row count stable", zap.Int("rows", n), zap.Int("attempts", attempt))
			return st, nil
		}
		prev = n
	}

	if !sawRows {
		_ = s.trace.Logf("no rows after %d attempts", maxAttempts)
		return st, models.NewError(models.KindEmptySource,
			fmt.Sprintf("no rows observed in %d samples", maxAttempts), nil)
	}
	_ = s.trace.Logf("row count did not settle after %d attempts", maxAttempts)
	return st, models.NewError(models.KindUnstableSource,
		fmt.Sprintf("row count did not settle in %d samples (last %d)", maxAttempts, prev), nil)
}

// wait blocks until the limiter grants the next sample or ctx is done.
// The reservation is waited out in full, so an expiring deadline is only
// reported once it has actually passed.
func wait(ctx context.Context, pace *rate.Limiter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r := pace.Reserve()
	d := r.Delay()
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}
