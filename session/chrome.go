package session

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/fetchpix/fetchpix/config"
)

// ChromeFactory launches headless-Chrome sessions.
type ChromeFactory struct {
	cfg *config.Config
}

// NewSession starts a dedicated browser process. Launch failures surface
// here so the scheduler can degrade the owning slice without touching other
// contexts.
func (f *ChromeFactory) NewSession(ctx context.Context) (PageSession, error) {
	fetch, err := newFetcher(f.cfg)
	if err != nil {
		return nil, err
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(f.cfg.UserAgent),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser eagerly; a blank Run fails fast when the chrome
	// binary is missing or cannot spawn.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &ChromeSession{
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		allocCancel:   allocCancel,
		navTimeout:    f.cfg.NavigationTimeout,
		fetcher:       fetch,
	}, nil
}

// ChromeSession drives one headless-Chrome process. Each Open runs in a
// fresh tab that is closed before Open returns, bounding memory and keeping
// page state from leaking between products.
type ChromeSession struct {
	browserCtx    context.Context
	browserCancel context.CancelFunc
	allocCancel   context.CancelFunc
	navTimeout    time.Duration
	fetcher       *fetcher

	html string
}

// Open navigates a fresh tab to pageURL, waits for readiness, and captures
// the rendered document.
func (s *ChromeSession) Open(ctx context.Context, pageURL string) error {
	s.html = ""

	tabCtx, closeTab := chromedp.NewContext(s.browserCtx)
	defer closeTab()

	runCtx, cancel := context.WithTimeout(tabCtx, s.navTimeout)
	defer cancel()

	if err := ctx.Err(); err != nil {
		return err
	}

	var html string
	err := chromedp.Run(runCtx,
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", pageURL, classifyError(err))
	}

	s.html = html
	return nil
}

// QueryMatching reports matching image sources on the page captured by the
// last Open.
func (s *ChromeSession) QueryMatching(fingerprint string) ([]string, error) {
	return querySources(s.html, fingerprint)
}

// FetchBytes downloads image bytes over HTTP; image assets need no JS
// rendering, so the browser is bypassed.
func (s *ChromeSession) FetchBytes(ctx context.Context, imageURL string) ([]byte, error) {
	return s.fetcher.FetchBytes(ctx, imageURL)
}

// Close shuts down the browser process.
func (s *ChromeSession) Close() error {
	s.browserCancel()
	s.allocCancel()
	return nil
}
