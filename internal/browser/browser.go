package browser

import (
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Config controls how the browser is launched.
type Config struct {
	Headless bool
	ProxyURL string
	Bin      string // overrides the Chromium binary; empty downloads/uses rod's default
}

// Browser wraps a rod.Browser together with the launcher that started it.
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
}

// New launches a browser according to cfg and connects to it.
func New(cfg Config) (*Browser, error) {
	l := launcher.New().Headless(cfg.Headless)

	if cfg.ProxyURL != "" {
		l = l.Proxy(cfg.ProxyURL)
	}
	if cfg.Bin != "" {
		l = l.Bin(cfg.Bin)
	}

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	return &Browser{
		browser:  browser,
		launcher: l,
	}, nil
}

// NewPage opens a blank tab.
func (b *Browser) NewPage() (*rod.Page, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	return page, nil
}

// Close closes the browser and kills the launched process.
func (b *Browser) Close() error {
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			return err
		}
	}
	if b.launcher != nil {
		b.launcher.Kill()
	}
	return nil
}
