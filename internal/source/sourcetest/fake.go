// Package sourcetest provides a scripted Source for tests.
package sourcetest

import (
	"errors"
	"fmt"
	"time"

	"pwexport/internal/source"
)

// ErrProtocol is returned when OpenDetail/CloseDetail do not alternate.
var ErrProtocol = errors.New("detail open/close protocol violation")

// Row scripts the detail view of one row.
type Row struct {
	URLs     []string
	Username string
	Password string

	// OpenFailures is how many OpenDetail calls fail before one succeeds.
	// A negative value fails every attempt.
	OpenFailures int
	UsernameErr  error
	PasswordErr  error
	URLsErr      error
}

type handle struct{ row int }

func (h handle) Row() int { return h.row }

// Fake is a scripted Source. The zero value has no rows and is running.
type Fake struct {
	// Counts is the sequence RowCount returns; the last value repeats.
	Counts []int
	Rows   map[int]*Row

	// StopAfter makes IsSourceRunning report false once this many rows have
	// been selected. Zero disables it.
	StopAfter int
	// OpenDelay is slept inside every OpenDetail call.
	OpenDelay time.Duration

	Samples    int
	Selected   []int
	OpenCalls  []int
	Opened     []int
	Closed     []int
	Violations []string

	open *handle
}

// New returns a Fake whose RowCount yields counts in order.
func New(counts ...int) *Fake {
	return &Fake{Counts: counts, Rows: map[int]*Row{}}
}

// WithRow scripts row i.
func (f *Fake) WithRow(i int, r Row) *Fake {
	if f.Rows == nil {
		f.Rows = map[int]*Row{}
	}
	f.Rows[i] = &r
	return f
}

// WithSites scripts rows 1..n each with a single URL and credentials.
func (f *Fake) WithSites(n int) *Fake {
	for i := 1; i <= n; i++ {
		f.WithRow(i, Row{
			URLs:     []string{fmt.Sprintf("https://site%d.example", i)},
			Username: fmt.Sprintf("user%d", i),
			Password: fmt.Sprintf("pass%d", i),
		})
	}
	return f
}

func (f *Fake) RowCount() (int, error) {
	f.Samples++
	if len(f.Counts) == 0 {
		return 0, nil
	}
	i := f.Samples - 1
	if i >= len(f.Counts) {
		i = len(f.Counts) - 1
	}
	return f.Counts[i], nil
}

func (f *Fake) SelectRow(index int) error {
	if f.open != nil {
		f.violate("SelectRow(%d) while row %d detail is open", index, f.open.row)
	}
	f.Selected = append(f.Selected, index)
	return nil
}

func (f *Fake) OpenDetail(index int) (source.DetailHandle, error) {
	f.OpenCalls = append(f.OpenCalls, index)
	if f.OpenDelay > 0 {
		time.Sleep(f.OpenDelay)
	}
	if f.open != nil {
		f.violate("OpenDetail(%d) before CloseDetail of row %d", index, f.open.row)
		return nil, ErrProtocol
	}
	r, ok := f.Rows[index]
	if !ok {
		return nil, fmt.Errorf("row %d: %w", index, source.ErrOpenFailure)
	}
	if r.OpenFailures != 0 {
		if r.OpenFailures > 0 {
			r.OpenFailures--
		}
		return nil, fmt.Errorf("row %d: %w", index, source.ErrOpenFailure)
	}
	f.open = &handle{row: index}
	f.Opened = append(f.Opened, index)
	return *f.open, nil
}

func (f *Fake) ReadDetailURLs(h source.DetailHandle) ([]string, error) {
	r, err := f.current(h)
	if err != nil {
		return nil, err
	}
	if r.URLsErr != nil {
		return nil, r.URLsErr
	}
	return append([]string(nil), r.URLs...), nil
}

func (f *Fake) ReadUsername(h source.DetailHandle) (string, error) {
	r, err := f.current(h)
	if err != nil {
		return "", err
	}
	return r.Username, r.UsernameErr
}

func (f *Fake) ReadPassword(h source.DetailHandle) (string, error) {
	r, err := f.current(h)
	if err != nil {
		return "", err
	}
	return r.Password, r.PasswordErr
}

func (f *Fake) CloseDetail(h source.DetailHandle) error {
	if f.open == nil || h == nil || h.Row() != f.open.row {
		f.violate("CloseDetail without matching OpenDetail")
		return ErrProtocol
	}
	f.Closed = append(f.Closed, h.Row())
	f.open = nil
	return nil
}

func (f *Fake) IsSourceRunning() bool {
	return f.StopAfter == 0 || len(f.Selected) < f.StopAfter
}

// IsOpen reports whether a detail view is currently open.
func (f *Fake) IsOpen() bool { return f.open != nil }

func (f *Fake) current(h source.DetailHandle) (*Row, error) {
	if f.open == nil || h == nil || h.Row() != f.open.row {
		f.violate("read from a detail view that is not open")
		return nil, ErrProtocol
	}
	return f.Rows[h.Row()], nil
}

func (f *Fake) violate(format string, args ...any) {
	f.Violations = append(f.Violations, fmt.Sprintf(format, args...))
}
