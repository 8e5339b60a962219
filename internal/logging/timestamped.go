package logging

import (
	"fmt"
	"os"
	"sync"
	"time"
)

const secondsPerDay = 24 * 60 * 60

// Timestamped appends "<elapsed>: <message>" lines to a diagnostic log file.
// Every call opens, writes and closes the file, so a crash loses at most
// the line being written. A nil *Timestamped is a disabled logger.
type Timestamped struct {
	path    string
	enabled bool
	start   time.Time
	now     func() time.Time

	mu sync.Mutex
}

// NewTimestamped creates a diagnostic logger writing to path. Elapsed time
// is measured from start.
func NewTimestamped(path string, enabled bool, start time.Time) *Timestamped {
	return &Timestamped{
		path:    path,
		enabled: enabled,
		start:   start,
		now:     time.Now,
	}
}

// WithClock replaces the clock used for elapsed time.
func (l *Timestamped) WithClock(now func() time.Time) *Timestamped {
	l.now = now
	return l
}

// Enabled reports whether Log writes anything.
func (l *Timestamped) Enabled() bool {
	return l != nil && l.enabled && l.path != ""
}

// Log appends one line. Errors writing the sink are returned but callers
// usually ignore them: diagnostics must never fail an extraction.
func (l *Timestamped) Log(message string) error {
	if !l.Enabled() {
		return nil
	}
	line := fmt.Sprintf("%04d: %s\n", Elapsed(l.start, l.now()), message)

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log %s: %w", l.path, err)
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("write log %s: %w", l.path, err)
	}
	return f.Close()
}

// Logf formats and appends one line.
func (l *Timestamped) Logf(format string, args ...any) error {
	if !l.Enabled() {
		return nil
	}
	return l.Log(fmt.Sprintf(format, args...))
}

// Elapsed returns the seconds between start and now as shown in the log:
// the difference of the two seconds-of-day values, wrapped into a single
// day and cut to its last four digits.
// Runs longer than 9999s, or crossing midnight, print wrapped values.
func Elapsed(start, now time.Time) int {
	d := secondOfDay(now) - secondOfDay(start)
	d = ((d % secondsPerDay) + secondsPerDay) % secondsPerDay
	return d % 10000
}

func secondOfDay(t time.Time) int {
	h, m, s := t.Clock()
	return h*3600 + m*60 + s
}
