// Package webvault reads a password table from a vault web UI through a
// Chromium instance driven by rod.
package webvault

import (
	"context"
	"fmt"
	"time"

	"pwexport/internal/browser"
	"pwexport/internal/source"
)

const navigateTimeout = 30 * time.Second

func init() {
	source.Register(&Provider{})
}

// Provider opens vault pages in a fresh browser.
type Provider struct{}

func (p *Provider) Name() string { return "webvault" }

func (p *Provider) Open(ctx context.Context, opts source.Options) (source.Session, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("--url is required for the webvault source")
	}

	b, err := browser.New(browser.Config{
		Headless: opts.Headless,
		ProxyURL: opts.ProxyURL,
		Bin:      opts.BrowserBin,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create browser: %w", err)
	}

	page, err := b.NewPage()
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	page = page.Context(ctx)

	if err := page.Timeout(navigateTimeout).Navigate(opts.URL); err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to navigate: %w", err)
	}
	if err := page.Timeout(navigateTimeout).WaitLoad(); err != nil {
		b.Close()
		return nil, fmt.Errorf("failed to wait for page load: %w", err)
	}

	wait := opts.DetailWait
	if wait <= 0 {
		wait = 5 * time.Second
	}

	return &Session{
		browser:    b,
		page:       page,
		sel:        opts.Selectors.WithDefaults(),
		detailWait: wait,
	}, nil
}
