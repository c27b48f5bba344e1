// Package headless renders pages in headless Chrome and observes their traffic.
package headless

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/JakeFAU/gazette-watch/internal/gazette"
)

// ErrNoCapture is returned when no matching request was observed in time.
var ErrNoCapture = gazette.ErrNoCapture

const (
	defaultNavigationTimeout = 90 * time.Second
	defaultCaptureWait       = 20 * time.Second
)

// Config controls the behavior of the interceptor.
type Config struct {
	UserAgent         string
	NavigationTimeout time.Duration
	// CaptureWait bounds how long to wait for a matching request after navigation.
	CaptureWait time.Duration
	ExecPath    string
	NoSandbox   bool
}

// Interceptor implements gazette.Interceptor with chromedp. Every call starts
// and tears down its own browser.
type Interceptor struct {
	cfg    Config
	logger *zap.Logger
}

// NewChromedp creates an Interceptor backed by chromedp.
func NewChromedp(cfg Config, logger *zap.Logger) (*Interceptor, error) {
	if cfg.NavigationTimeout < 0 || cfg.CaptureWait < 0 {
		return nil, fmt.Errorf("timeouts must be >= 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interceptor{cfg: cfg, logger: logger}, nil
}

// Intercept navigates to pageURL and returns the first outgoing request URL
// accepted by match. The browser is closed before returning.
func (i *Interceptor) Intercept(ctx context.Context, pageURL string, match func(string) bool) (string, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, i.allocatorOptions()...)
	defer allocCancel()
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)
	defer tabCancel()

	cell := newCaptureCell()
	chromedp.ListenTarget(tabCtx, func(ev any) {
		req, ok := ev.(*network.EventRequestWillBeSent)
		if !ok || req.Request == nil {
			return
		}
		if cell.offer(req.Request.URL, match) {
			i.logger.Debug("request captured", zap.String("url", req.Request.URL))
		}
	})

	// The first Run allocates the browser; it must not carry the navigation timeout.
	if err := chromedp.Run(tabCtx); err != nil {
		return "", fmt.Errorf("start browser: %w", err)
	}

	navCtx, navCancel := context.WithTimeout(tabCtx, i.navTimeout())
	defer navCancel()
	if err := chromedp.Run(navCtx, i.navigateAction(pageURL)...); err != nil {
		if captured, ok := cell.get(); ok {
			return captured, nil
		}
		return "", fmt.Errorf("navigate %s: %w", pageURL, err)
	}
	return cell.wait(ctx, i.captureWait())
}

func (i *Interceptor) navigateAction(pageURL string) []chromedp.Action {
	actions := []chromedp.Action{network.Enable()}
	if i.cfg.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(i.cfg.UserAgent))
	}
	return append(actions, chromedp.Navigate(pageURL))
}

func (i *Interceptor) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	if i.cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if i.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(i.cfg.ExecPath))
	}
	return opts
}

func (i *Interceptor) navTimeout() time.Duration {
	if i.cfg.NavigationTimeout > 0 {
		return i.cfg.NavigationTimeout
	}
	return defaultNavigationTimeout
}

func (i *Interceptor) captureWait() time.Duration {
	if i.cfg.CaptureWait > 0 {
		return i.cfg.CaptureWait
	}
	return defaultCaptureWait
}

// captureCell is a single-assignment slot written from the event goroutine and
// read once the wait completes.
type captureCell struct {
	mu   sync.Mutex
	done chan struct{}
	url  string
}

func newCaptureCell() *captureCell {
	return &captureCell{done: make(chan struct{})}
}

// offer stores raw if it is the first URL accepted by match.
func (c *captureCell) offer(raw string, match func(string) bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
		return false
	default:
	}
	if match == nil || !match(raw) {
		return false
	}
	c.url = raw
	close(c.done)
	return true
}

func (c *captureCell) get() (string, bool) {
	select {
	case <-c.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.url, true
	default:
		return "", false
	}
}

func (c *captureCell) wait(ctx context.Context, timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-c.done:
		url, _ := c.get()
		return url, nil
	case <-timer.C:
		return "", ErrNoCapture
	case <-ctx.Done():
		return "", fmt.Errorf("capture wait canceled: %w", ctx.Err())
	}
}
