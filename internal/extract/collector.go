package extract

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"pwexport/internal/logging"
	"pwexport/internal/models"
	"pwexport/internal/source"
)

// openAttempts is how many times a detail view is requested before the row
// is given up. Some malformed rows reject the first open.
const openAttempts = 2

// Collector reads one row's detail view into an Entry.
type Collector struct {
	log   *zap.Logger
	trace *logging.Timestamped
}

// NewCollector creates a Collector.
func NewCollector(log *zap.Logger, trace *logging.Timestamped) *Collector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Collector{log: log, trace: trace}
}

// Collect selects row, opens its detail view and reads it. The detail view
// is closed before Collect returns, whatever the outcome. Username and
// password are best effort and default to "".
func (c *Collector) Collect(ctx context.Context, src source.Source, row int) (models.Entry, error) {
	h, err := c.open(ctx, src, row)
	if err != nil {
		return models.Entry{}, err
	}
	defer func() {
		if err := src.CloseDetail(h); err != nil {
			c.log.Warn("closing detail view failed", zap.Int("row", row), zap.Error(err))
			_ = c.trace.Logf("row %d: close failed: %v", row, err)
		}
	}()

	var entry models.Entry

	urls, err := src.ReadDetailURLs(h)
	if err != nil {
		c.log.Debug("reading urls failed", zap.Int("row", row), zap.Error(err))
	}
	primary := true
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if primary {
			entry.Title = u
			entry.SiteURL = u
			primary = false
			continue
		}
		entry.AdditionalURLs = append(entry.AdditionalURLs, u)
	}

	if entry.Username, err = src.ReadUsername(h); err != nil {
		c.log.Debug("no username", zap.Int("row", row), zap.Error(err))
		entry.Username = ""
	}
	if entry.Password, err = src.ReadPassword(h); err != nil {
		c.log.Debug("no password", zap.Int("row", row), zap.Error(err))
		entry.Password = ""
	}

	_ = c.trace.Logf("row %d: collected %q (%d additional urls)", row, entry.Title, len(entry.AdditionalURLs))
	return entry, nil
}

func (c *Collector) open(ctx context.Context, src source.Source, row int) (source.DetailHandle, error) {
	var lastErr error
	for attempt := 1; attempt <= openAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := src.SelectRow(row); err != nil {
			lastErr = err
			c.log.Debug("select row failed", zap.Int("row", row), zap.Int("attempt", attempt), zap.Error(err))
			_ = c.trace.Logf("row %d: select failed (attempt %d): %v", row, attempt, err)
			continue
		}
		h, err := src.OpenDetail(row)
		if err == nil && h != nil {
			return h, nil
		}
		if err == nil {
			err = source.ErrOpenFailure
		}
		lastErr = err
		c.log.Debug("open detail failed", zap.Int("row", row), zap.Int("attempt", attempt), zap.Error(err))
		_ = c.trace.Logf("row %d: open failed (attempt %d): %v", row, attempt, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return nil, models.NewRowError(models.KindRowOpenFailure, row, "detail view did not open", lastErr)
}
