package session

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/fetchpix/fetchpix/config"
)

// StaticFactory launches plain-HTTP sessions for pages that render their
// image markup server-side.
type StaticFactory struct {
	cfg *config.Config
}

// NewSession builds a session around a synchronous colly collector.
func (f *StaticFactory) NewSession(ctx context.Context) (PageSession, error) {
	fetch, err := newFetcher(f.cfg)
	if err != nil {
		return nil, err
	}

	collector := colly.NewCollector(
		colly.UserAgent(f.cfg.UserAgent),
		colly.AllowURLRevisit(),
	)
	collector.SetRequestTimeout(f.cfg.NavigationTimeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   f.cfg.NavigationTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	s := &StaticSession{
		collector: collector,
		fetcher:   fetch,
	}
	collector.OnResponse(func(r *colly.Response) {
		s.html = string(r.Body)
	})
	collector.OnError(func(r *colly.Response, err error) {
		s.visitErr = classifyError(err)
	})
	return s, nil
}

// StaticSession fetches pages with a colly collector and retains the last
// response body for QueryMatching. Not safe for concurrent use; each
// execution context owns its own session.
type StaticSession struct {
	collector *colly.Collector
	fetcher   *fetcher

	html     string
	visitErr error
}

// Open fetches pageURL synchronously.
func (s *StaticSession) Open(ctx context.Context, pageURL string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.html = ""
	s.visitErr = nil

	if err := s.collector.Visit(pageURL); err != nil {
		return fmt.Errorf("visit %s: %w", pageURL, classifyError(err))
	}
	s.collector.Wait()

	if s.visitErr != nil {
		return fmt.Errorf("visit %s: %w", pageURL, s.visitErr)
	}
	return nil
}

// QueryMatching reports matching image sources on the last fetched page.
func (s *StaticSession) QueryMatching(fingerprint string) ([]string, error) {
	return querySources(s.html, fingerprint)
}

// FetchBytes downloads image bytes over HTTP.
func (s *StaticSession) FetchBytes(ctx context.Context, imageURL string) ([]byte, error) {
	return s.fetcher.FetchBytes(ctx, imageURL)
}

// Close releases the session. The collector holds no external processes.
func (s *StaticSession) Close() error {
	return nil
}

// WithTransport replaces the collector and fetcher transports. Used by tests
// to inject mock round trippers.
func (s *StaticSession) WithTransport(rt http.RoundTripper) {
	s.collector.WithTransport(rt)
	s.fetcher.client.Transport = rt
}
