package browser

import (
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Config controls how the Chrome instance is launched.
type Config struct {
	ProxyURL string
	Headless bool
	// Stealth creates pages with go-rod/stealth evasions applied.
	Stealth bool
	// NoSandbox is needed when running as root inside containers.
	NoSandbox bool
	// Bin overrides the browser binary; empty lets rod download or find one.
	Bin string
}

// Browser wraps a rod.Browser instance
type Browser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	cfg      Config
}

// New launches a browser according to cfg.
func New(cfg Config) (*Browser, error) {
	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox).
		Set("disable-dev-shm-usage").
		Set("window-size", "1920,1080")

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
		cfg:      cfg,
	}, nil
}

// ProxyURL returns the proxy the browser was launched with.
func (b *Browser) ProxyURL() string {
	return b.cfg.ProxyURL
}

// NewPage creates a new blank tab.
func (b *Browser) NewPage() (*rod.Page, error) {
	if b.cfg.Stealth {
		return stealth.Page(b.browser)
	}
	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, err
	}
	_ = page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: defaultUserAgent})
	_, _ = page.EvalOnNewDocument(`Object.defineProperty(navigator, 'webdriver', {get: () => undefined});`)
	return page, nil
}

// Close closes the browser and releases the launcher process.
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
