package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/kuroweb/crawlflare/internal/core/port"
)

// RodConfig configures the headless Chromium driver.
type RodConfig struct {
	// ControlURL attaches to a running browser instead of launching one.
	ControlURL string
	// BinPath is the browser binary; empty downloads the default revision.
	BinPath  string
	Headless bool
	ProxyURL string

	NavigationTimeout time.Duration
	UserAgent         string

	// After load the page is left to settle, then scrolled in small wheel
	// steps so lazily rendered cards get attached.
	SettleDelay time.Duration
	ScrollSteps int
	ScrollDelta float64
	ScrollPause time.Duration
}

// DefaultRodConfig matches what the marketplace needs to render a full grid.
func DefaultRodConfig() RodConfig {
	return RodConfig{
		Headless:          true,
		NavigationTimeout: 30 * time.Second,
		SettleDelay:       2 * time.Second,
		ScrollSteps:       31,
		ScrollDelta:       200,
		ScrollPause:       5 * time.Millisecond,
	}
}

// RodBrowser drives a real browser over CDP. Every session runs in its own
// incognito context with stealth patches applied.
type RodBrowser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	cfg      RodConfig
	logger   port.LoggerPort
}

var _ port.BrowserPort = (*RodBrowser)(nil)

func NewRodBrowser(cfg RodConfig, logger port.LoggerPort) (*RodBrowser, error) {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = DefaultRodConfig().NavigationTimeout
	}
	b := &RodBrowser{cfg: cfg, logger: logger.WithFields(port.Fields{"component": "RodBrowser"})}

	controlURL := cfg.ControlURL
	if controlURL == "" {
		bin := cfg.BinPath
		if bin == "" {
			b.logger.Info("No browser binary configured, downloading default", nil)
			path, err := launcher.NewBrowser().Get()
			if err != nil {
				return nil, fmt.Errorf("download browser: %w", err)
			}
			bin = path
		}

		l := launcher.New().
			Headless(cfg.Headless).
			Bin(bin).
			NoSandbox(true).
			Set("remote-allow-origins", "*")
		if cfg.ProxyURL != "" {
			l = l.Proxy(cfg.ProxyURL)
		}

		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		b.launcher = l
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		b.cleanupLauncher()
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	b.browser = browser

	b.logger.Info("Browser connected", port.Fields{"headless": cfg.Headless})
	return b, nil
}

func (b *RodBrowser) NewSession(ctx context.Context) (port.BrowserSessionPort, error) {
	incognito, err := b.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("open incognito context: %w", err)
	}

	page, err := stealth.Page(incognito)
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("open stealth page: %w", err)
	}

	if b.cfg.UserAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.cfg.UserAgent}); err != nil {
			_ = page.Close()
			_ = incognito.Close()
			return nil, fmt.Errorf("set user agent: %w", err)
		}
	}

	return &rodSession{browser: incognito, page: page, cfg: b.cfg}, nil
}

func (b *RodBrowser) Close() error {
	var err error
	if b.browser != nil {
		err = b.browser.Close()
	}
	b.cleanupLauncher()
	return err
}

func (b *RodBrowser) cleanupLauncher() {
	if b.launcher != nil {
		b.launcher.Kill()
		b.launcher.Cleanup()
	}
}

type rodSession struct {
	browser *rod.Browser
	page    *rod.Page
	cfg     RodConfig
}

// Navigate loads url, scrolls it and snapshots the resulting DOM. Any failure
// before the snapshot, including the navigation timeout, is an error.
func (s *rodSession) Navigate(ctx context.Context, url string) (port.PagePort, error) {
	page := s.page.Context(ctx).Timeout(s.cfg.NavigationTimeout)
	defer page.CancelTimeout()

	status := 0
	waitDocument := page.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type != proto.NetworkResourceTypeDocument {
			return false
		}
		status = e.Response.Status
		return true
	})

	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load %s: %w", url, err)
	}
	// the document response precedes the load event, so this returns at once
	waitDocument()

	if err := s.scroll(ctx, page); err != nil {
		return nil, err
	}

	html, err := page.HTML()
	if err != nil {
		return nil, fmt.Errorf("read html %s: %w", url, err)
	}
	return NewDocument(status, strings.NewReader(html))
}

func (s *rodSession) scroll(ctx context.Context, page *rod.Page) error {
	if err := sleepCtx(ctx, s.cfg.SettleDelay); err != nil {
		return err
	}
	for i := 0; i < s.cfg.ScrollSteps; i++ {
		if err := page.Mouse.Scroll(0, s.cfg.ScrollDelta, 1); err != nil {
			return fmt.Errorf("scroll: %w", err)
		}
		if err := sleepCtx(ctx, s.cfg.ScrollPause); err != nil {
			return err
		}
	}
	return nil
}

func (s *rodSession) Close() error {
	pageErr := s.page.Close()
	if err := s.browser.Close(); err != nil {
		return fmt.Errorf("close incognito context: %w", err)
	}
	return pageErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
