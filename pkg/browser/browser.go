// Package browser drives headless Chromium sessions through Playwright and
// executes workflow steps against live pages. It is the capture side of the
// pipeline; everything it produces (HTML, screenshots) flows to the
// collector as opaque bytes.
package browser

import (
	"fmt"
	"io"
	"sync"

	"github.com/playwright-community/playwright-go"
)

// Defaults for new sessions.
const (
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
	DefaultTimeoutMS      = 30000
)

// SessionConfig configures a browser session.
type SessionConfig struct {
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	// TimeoutMS is the default timeout applied to page operations.
	TimeoutMS float64
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.ViewportWidth <= 0 {
		c.ViewportWidth = DefaultViewportWidth
	}
	if c.ViewportHeight <= 0 {
		c.ViewportHeight = DefaultViewportHeight
	}
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = DefaultTimeoutMS
	}
	return c
}

// Manager owns the Playwright runtime and creates browser sessions from it.
type Manager struct {
	mu          sync.Mutex
	pw          *playwright.Playwright
	initialized bool
}

// NewManager creates an uninitialized browser manager. Call Initialize
// before opening sessions.
func NewManager() *Manager {
	return &Manager{}
}

// Initialize installs (if needed) and starts the Playwright runtime.
// Safe to call more than once.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.initialized {
		return nil
	}

	opts := &playwright.RunOptions{
		Verbose: false,
		Stdout:  io.Discard,
		Stderr:  io.Discard,
	}
	if err := playwright.Install(opts); err != nil {
		return fmt.Errorf("install playwright: %w", err)
	}
	pw, err := playwright.Run(opts)
	if err != nil {
		return fmt.Errorf("start playwright: %w", err)
	}

	m.pw = pw
	m.initialized = true
	return nil
}

// NewSession launches a Chromium browser with its own context and page.
func (m *Manager) NewSession(cfg SessionConfig) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return nil, fmt.Errorf("browser manager not initialized")
	}
	cfg = cfg.withDefaults()

	browser, err := m.pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: &cfg.Headless,
	})
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browserCtx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  cfg.ViewportWidth,
			Height: cfg.ViewportHeight,
		},
	})
	if err != nil {
		_ = browser.Close()
		return nil, fmt.Errorf("create browser context: %w", err)
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		_ = browserCtx.Close()
		_ = browser.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}
	page.SetDefaultTimeout(cfg.TimeoutMS)

	return &Session{
		browser: browser,
		context: browserCtx,
		page:    page,
	}, nil
}

// Close stops the Playwright runtime. Sessions must be closed first.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.initialized {
		return nil
	}
	m.initialized = false
	return m.pw.Stop()
}
