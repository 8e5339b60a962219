// Package snapshot replays a vault page saved to disk. Detail views are
// recorded inline as elements matching the detail selector carrying a
// data-detail attribute equal to the row's data-row value.
//
// Two optional attributes replay recorded flakiness: data-row-samples on
// the table element lists the row counts observed while the table was
// filling (e.g. "0,2,3"), and data-open-failures on a detail element makes
// that many opens fail before one succeeds.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"pwexport/internal/source"
)

func init() {
	source.Register(&Provider{})
}

// Provider opens saved HTML pages.
type Provider struct{}

func (p *Provider) Name() string { return "snapshot" }

func (p *Provider) Open(_ context.Context, opts source.Options) (source.Session, error) {
	if opts.SnapshotPath == "" {
		return nil, fmt.Errorf("--snapshot is required for the snapshot source")
	}
	f, err := os.Open(opts.SnapshotPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot: %w", err)
	}
	return newSession(opts.SnapshotPath, doc, opts.Selectors.WithDefaults()), nil
}

type handle struct{ row int }

func (h handle) Row() int { return h.row }

// Session replays one parsed snapshot.
type Session struct {
	path     string
	sel      source.Selectors
	rows     []*goquery.Selection
	details  map[string]*goquery.Selection
	failures map[int]int
	samples  []int
	sampled  int
	selected int
	open     *handle
}

func newSession(path string, doc *goquery.Document, sel source.Selectors) *Session {
	s := &Session{
		path:     path,
		sel:      sel,
		details:  map[string]*goquery.Selection{},
		failures: map[int]int{},
	}

	doc.Find(sel.Row).Each(func(i int, row *goquery.Selection) {
		s.rows = append(s.rows, row)
	})
	doc.Find(sel.Detail).Each(func(i int, d *goquery.Selection) {
		if key, ok := d.Attr("data-detail"); ok {
			s.details[strings.TrimSpace(key)] = d
		}
	})

	if raw, ok := doc.Find("[data-row-samples]").First().Attr("data-row-samples"); ok {
		for _, part := range strings.Split(raw, ",") {
			if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
				s.samples = append(s.samples, n)
			}
		}
	}
	return s
}

// RowCount replays the recorded samples, then reports the real row count.
func (s *Session) RowCount() (int, error) {
	if s.sampled < len(s.samples) {
		n := s.samples[s.sampled]
		s.sampled++
		return n, nil
	}
	return len(s.rows), nil
}

func (s *Session) SelectRow(index int) error {
	if index < 1 || index > len(s.rows) {
		return fmt.Errorf("row %d out of range (%d rows)", index, len(s.rows))
	}
	s.selected = index
	return nil
}

func (s *Session) OpenDetail(index int) (source.DetailHandle, error) {
	if s.open != nil {
		return nil, fmt.Errorf("row %d detail is still open", s.open.row)
	}
	if index != s.selected {
		return nil, fmt.Errorf("%w: row %d is not selected", source.ErrOpenFailure, index)
	}
	d := s.detailFor(index)
	if d == nil {
		return nil, fmt.Errorf("%w: row %d has no recorded detail view", source.ErrOpenFailure, index)
	}

	left, seen := s.failures[index]
	if !seen {
		left, _ = strconv.Atoi(d.AttrOr("data-open-failures", "0"))
	}
	if left > 0 {
		s.failures[index] = left - 1
		return nil, fmt.Errorf("%w: row %d rejected the open", source.ErrOpenFailure, index)
	}
	s.failures[index] = 0

	s.open = &handle{row: index}
	return *s.open, nil
}

func (s *Session) ReadDetailURLs(h source.DetailHandle) ([]string, error) {
	d, err := s.current(h)
	if err != nil {
		return nil, err
	}
	var urls []string
	d.Find(s.sel.DetailURL).Each(func(i int, f *goquery.Selection) {
		urls = append(urls, fieldValue(f, true))
	})
	return urls, nil
}

func (s *Session) ReadUsername(h source.DetailHandle) (string, error) {
	return s.readField(h, s.sel.Username)
}

func (s *Session) ReadPassword(h source.DetailHandle) (string, error) {
	return s.readField(h, s.sel.Password)
}

func (s *Session) CloseDetail(h source.DetailHandle) error {
	if _, err := s.current(h); err != nil {
		return err
	}
	s.open = nil
	return nil
}

// IsSourceRunning reports whether the snapshot file is still present.
func (s *Session) IsSourceRunning() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

func (s *Session) Close() error { return nil }

func (s *Session) detailFor(index int) *goquery.Selection {
	key := strconv.Itoa(index)
	if v, ok := s.rows[index-1].Attr("data-row"); ok && strings.TrimSpace(v) != "" {
		key = strings.TrimSpace(v)
	}
	return s.details[key]
}

func (s *Session) readField(h source.DetailHandle, sel string) (string, error) {
	d, err := s.current(h)
	if err != nil {
		return "", err
	}
	f := d.Find(sel).First()
	if f.Length() == 0 {
		return "", fmt.Errorf("row %d has no %s field", h.Row(), sel)
	}
	return fieldValue(f, false), nil
}

func (s *Session) current(h source.DetailHandle) (*goquery.Selection, error) {
	if s.open == nil || h == nil || h.Row() != s.open.row {
		return nil, errors.New("detail view is not open")
	}
	return s.detailFor(h.Row()), nil
}

// fieldValue reads an input's value attribute, an anchor's href when link
// is set, or the element's text. Only links are trimmed; credentials are
// returned exactly as stored.
func fieldValue(f *goquery.Selection, link bool) string {
	clean := func(v string) string {
		if link {
			return strings.TrimSpace(v)
		}
		return v
	}
	switch goquery.NodeName(f) {
	case "input", "textarea":
		if v, ok := f.Attr("value"); ok {
			return clean(v)
		}
	}
	if link {
		if href, ok := f.Attr("href"); ok {
			return clean(href)
		}
		if href, ok := f.Find("a[href]").First().Attr("href"); ok {
			return clean(href)
		}
	}
	return clean(f.Text())
}
