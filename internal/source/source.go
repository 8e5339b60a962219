// Package source defines the capability surface an extraction runs against.
//
// A Source hides how rows and detail views are reached: a browser-driven
// vault, a recorded HTML snapshot or a scripted test double all satisfy it.
// Row indices are 1-based.
//
// The detail view is a single shared resource. OpenDetail and CloseDetail
// are not reentrant and must strictly alternate: a second OpenDetail before
// the matching CloseDetail is a protocol violation. An OpenDetail that fails
// must leave no detail view open.
package source

import (
	"context"
	"errors"
	"time"
)

// ErrOpenFailure is returned (possibly wrapped) by OpenDetail when a row's
// detail view cannot be opened.
var ErrOpenFailure = errors.New("detail view did not open")

// DetailHandle identifies an open detail view.
type DetailHandle interface {
	Row() int
}

// Source is the surface the extraction engine depends on.
type Source interface {
	RowCount() (int, error)
	SelectRow(index int) error
	OpenDetail(index int) (DetailHandle, error)
	ReadDetailURLs(h DetailHandle) ([]string, error)
	ReadUsername(h DetailHandle) (string, error)
	ReadPassword(h DetailHandle) (string, error)
	CloseDetail(h DetailHandle) error
	IsSourceRunning() bool
}

// Session is a Source holding resources that must be released.
type Session interface {
	Source
	Close() error
}

// Provider opens sessions of one kind of source.
type Provider interface {
	Name() string
	Open(ctx context.Context, opts Options) (Session, error)
}

// Options carries everything a provider may need to open a session.
type Options struct {
	URL          string // page of the vault for browser-driven sources
	SnapshotPath string // saved page for offline sources
	DetailWait   time.Duration
	Headless     bool
	ProxyURL     string
	BrowserBin   string
	Selectors    Selectors
}

// Selectors are the CSS selectors locating the table and the detail view.
// Empty fields fall back to DefaultSelectors.
type Selectors struct {
	Row         string `mapstructure:"row"`
	RowTarget   string `mapstructure:"row_target"`
	Detail      string `mapstructure:"detail"`
	DetailURL   string `mapstructure:"detail_url"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	CloseButton string `mapstructure:"close_button"`
}

// DefaultSelectors match the data-attribute markup of the bundled vault UI.
func DefaultSelectors() Selectors {
	return Selectors{
		Row:         "table.logins tbody tr[data-row]",
		RowTarget:   "td",
		Detail:      ".detail-view",
		DetailURL:   ".detail-url",
		Username:    ".detail-username",
		Password:    ".detail-password",
		CloseButton: ".detail-close",
	}
}

// WithDefaults fills empty selectors from DefaultSelectors.
func (s Selectors) WithDefaults() Selectors {
	d := DefaultSelectors()
	fill := func(v *string, def string) {
		if *v == "" {
			*v = def
		}
	}
	fill(&s.Row, d.Row)
	fill(&s.RowTarget, d.RowTarget)
	fill(&s.Detail, d.Detail)
	fill(&s.DetailURL, d.DetailURL)
	fill(&s.Username, d.Username)
	fill(&s.Password, d.Password)
	fill(&s.CloseButton, d.CloseButton)
	return s
}
