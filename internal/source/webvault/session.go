package webvault

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/proto"

	"pwexport/internal/browser"
	"pwexport/internal/source"
)

const (
	evalTimeout  = 5 * time.Second
	clickTimeout = 3 * time.Second
	probeTimeout = 2 * time.Second
	pollStep     = 100 * time.Millisecond
)

var errDetailBusy = errors.New("another detail view is still open")

type detail struct {
	row int
	el  *rod.Element
}

func (d *detail) Row() int { return d.row }

// Session drives one vault tab. It is not safe for concurrent use.
type Session struct {
	browser    *browser.Browser
	page       *rod.Page
	sel        source.Selectors
	detailWait time.Duration
	open       *detail
}

func (s *Session) RowCount() (int, error) {
	rows, err := s.page.Timeout(evalTimeout).Elements(s.sel.Row)
	if err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return len(rows), nil
}

func (s *Session) SelectRow(index int) error {
	target, err := s.rowTarget(index)
	if err != nil {
		return err
	}
	if err := target.Timeout(clickTimeout).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("select row %d: %w", index, err)
	}
	return nil
}

// OpenDetail double-clicks the row and waits up to the configured detail
// wait for the detail view to become visible.
func (s *Session) OpenDetail(index int) (source.DetailHandle, error) {
	if s.open != nil {
		return nil, errDetailBusy
	}
	target, err := s.rowTarget(index)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", source.ErrOpenFailure, err)
	}
	if err := target.Timeout(clickTimeout).Click(proto.InputMouseButtonLeft, 2); err != nil {
		return nil, fmt.Errorf("%w: row %d: %v", source.ErrOpenFailure, index, err)
	}

	if !s.waitDetail(true) {
		// A view that opened late must not stay open behind our back.
		s.dismiss()
		return nil, fmt.Errorf("%w: row %d: not visible after %s", source.ErrOpenFailure, index, s.detailWait)
	}
	el, err := s.page.Timeout(evalTimeout).Element(s.sel.Detail)
	if err != nil {
		s.dismiss()
		return nil, fmt.Errorf("%w: row %d: %v", source.ErrOpenFailure, index, err)
	}

	s.open = &detail{row: index, el: el.Context(s.page.GetContext())}
	return s.open, nil
}

func (s *Session) ReadDetailURLs(h source.DetailHandle) ([]string, error) {
	d, err := s.current(h)
	if err != nil {
		return nil, err
	}
	res, err := d.el.Timeout(evalTimeout).Eval(`function(sel) {
		return Array.from(this.querySelectorAll(sel)).map(f => {
			const v = (f.tagName === 'INPUT' || f.tagName === 'TEXTAREA') ? f.value : (f.getAttribute('href') || f.textContent);
			return (v || '').trim();
		});
	}`, s.sel.DetailURL)
	if err != nil {
		return nil, fmt.Errorf("read urls of row %d: %w", d.row, err)
	}

	var urls []string
	for _, v := range res.Value.Arr() {
		urls = append(urls, v.Str())
	}
	return urls, nil
}

func (s *Session) ReadUsername(h source.DetailHandle) (string, error) {
	return s.readField(h, s.sel.Username)
}

func (s *Session) ReadPassword(h source.DetailHandle) (string, error) {
	return s.readField(h, s.sel.Password)
}

// CloseDetail clicks the close button, falling back to Escape, and waits
// for the view to disappear. If it stays visible the handle remains open,
// so further opens fail until a later CloseDetail succeeds.
func (s *Session) CloseDetail(h source.DetailHandle) error {
	d, err := s.current(h)
	if err != nil {
		return err
	}

	if btns, err := d.el.Elements(s.sel.CloseButton); err == nil && len(btns) > 0 {
		_ = btns.First().Timeout(clickTimeout).Click(proto.InputMouseButtonLeft, 1)
	}
	if !s.waitDetail(false) {
		s.dismiss()
		if !s.waitDetail(false) {
			return fmt.Errorf("detail view of row %d did not close", d.row)
		}
	}
	s.open = nil
	return nil
}

// IsSourceRunning probes the tab; a crashed tab or closed browser fails.
func (s *Session) IsSourceRunning() bool {
	_, err := s.page.Timeout(probeTimeout).Eval(`() => document.readyState`)
	return err == nil
}

// Close closes the tab and the browser.
func (s *Session) Close() error {
	if s.page != nil {
		_ = s.page.Close()
	}
	if s.browser != nil {
		return s.browser.Close()
	}
	return nil
}

func (s *Session) rowTarget(index int) (*rod.Element, error) {
	rows, err := s.page.Timeout(evalTimeout).Elements(s.sel.Row)
	if err != nil {
		return nil, fmt.Errorf("list rows: %w", err)
	}
	if index < 1 || index > len(rows) {
		return nil, fmt.Errorf("row %d out of range (%d rows)", index, len(rows))
	}
	row := rows[index-1].Context(s.page.GetContext())
	if s.sel.RowTarget != "" {
		if cells, err := row.Elements(s.sel.RowTarget); err == nil && len(cells) > 0 {
			return cells.First(), nil
		}
	}
	return row, nil
}

func (s *Session) readField(h source.DetailHandle, sel string) (string, error) {
	d, err := s.current(h)
	if err != nil {
		return "", err
	}
	res, err := d.el.Timeout(evalTimeout).Eval(`function(sel) {
		const f = this.querySelector(sel);
		if (!f) return null;
		const v = (f.tagName === 'INPUT' || f.tagName === 'TEXTAREA') ? f.value : f.textContent;
		return v || '';
	}`, sel)
	if err != nil {
		return "", fmt.Errorf("read %s of row %d: %w", sel, d.row, err)
	}

	if res.Value.Nil() {
		return "", fmt.Errorf("row %d has no %s field", d.row, sel)
	}
	return res.Value.Str(), nil
}

func (s *Session) current(h source.DetailHandle) (*detail, error) {
	d, ok := h.(*detail)
	if !ok || d == nil || s.open != d {
		return nil, errors.New("detail view is not open")
	}
	return d, nil
}

// waitDetail polls until the detail view's visibility equals visible or
// the detail wait elapses.
func (s *Session) waitDetail(visible bool) bool {
	deadline := time.Now().Add(s.detailWait)
	for {
		if s.detailVisible() == visible {
			return true
		}
		if !time.Now().Before(deadline) {
			return false
		}
		time.Sleep(pollStep)
	}
}

func (s *Session) detailVisible() bool {
	res, err := s.page.Timeout(probeTimeout).Eval(`(sel) => {
		const d = document.querySelector(sel);
		return !!d && d.offsetParent !== null;
	}`, s.sel.Detail)
	if err != nil {
		return false
	}
	return res.Value.Bool()
}

func (s *Session) dismiss() {
	_ = s.page.Keyboard.Type(input.Escape)
}
