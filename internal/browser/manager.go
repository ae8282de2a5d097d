// Package browser runs the live page: it launches or connects to a browser
// through rod and attaches a page agent to a tab, re-creating the agent on
// every main-frame navigation.
package browser

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/hpungsan/elclones/internal/logging"
)

// Config configures the browser manager.
type Config struct {
	// RemoteURL is the DevTools WebSocket URL of a running browser.
	// Empty launches a local one.
	RemoteURL string

	// Headless applies to a launched browser only.
	Headless bool

	Logger *zap.Logger
}

// Manager owns the browser connection.
type Manager struct {
	cfg Config
	log *zap.Logger

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewManager creates a Manager. Call Start to connect.
func NewManager(cfg Config) *Manager {
	return &Manager{cfg: cfg, log: logging.OrNop(cfg.Logger).Named("browser")}
}

// Start launches the browser (or connects to the remote one).
func (m *Manager) Start(ctx context.Context) (*rod.Browser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, fmt.Errorf("browser: manager is closed")
	}
	if m.browser != nil {
		return m.browser, nil
	}

	wsURL := m.cfg.RemoteURL
	if wsURL != "" {
		m.log.Info("connecting to remote browser", zap.String("url", wsURL))
	} else {
		l := launcher.New().Context(ctx).Headless(m.cfg.Headless)
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		m.log.Info("launched local browser", zap.String("url", wsURL), zap.Bool("headless", m.cfg.Headless))
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		m.cleanupLocked()
		return nil, fmt.Errorf("browser: connect: %w", err)
	}
	m.browser = b
	return b, nil
}

// Open creates a tab at url and waits for it to load.
func (m *Manager) Open(ctx context.Context, url string) (*rod.Page, error) {
	b, err := m.Start(ctx)
	if err != nil {
		return nil, err
	}
	page, err := b.Context(ctx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return nil, fmt.Errorf("browser: open %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		m.log.Warn("page did not finish loading", zap.String("url", url), zap.Error(err))
	}
	return page, nil
}

// Close disconnects and, for a launched browser, kills it.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.cleanupLocked()
}

func (m *Manager) cleanupLocked() error {
	var err error
	if m.browser != nil {
		err = m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	return err
}
