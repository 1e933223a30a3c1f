package session

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/fetchpix/fetchpix/config"
	"golang.org/x/time/rate"
)

// fetcher downloads image bytes over plain HTTP with a cookie jar and a
// per-host rate limiter. It is shared by both page engines and is safe for
// concurrent use.
type fetcher struct {
	client    *http.Client
	userAgent string
	interval  time.Duration

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newFetcher(cfg *config.Config) (*fetcher, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	return &fetcher{
		client: &http.Client{
			Jar:     jar,
			Timeout: cfg.FetchTimeout,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   cfg.FetchTimeout,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent: cfg.UserAgent,
		interval:  cfg.HostInterval,
		limiters:  make(map[string]*rate.Limiter),
	}, nil
}

// FetchBytes downloads the body of imageURL, waiting on the host's rate
// limiter first.
func (f *fetcher) FetchBytes(ctx context.Context, imageURL string) ([]byte, error) {
	parsed, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("parse image URL %q: %w", imageURL, err)
	}

	if limiter := f.limiterForHost(parsed.Hostname()); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %q: %w", imageURL, err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, ErrHTTPStatus{Code: resp.StatusCode, URL: imageURL}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body of %q: %w", imageURL, classifyError(err))
	}
	return body, nil
}

func (f *fetcher) limiterForHost(host string) *rate.Limiter {
	if f.interval <= 0 {
		return nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if limiter, ok := f.limiters[host]; ok {
		return limiter
	}
	limiter := rate.NewLimiter(rate.Every(f.interval), 1)
	f.limiters[host] = limiter
	return limiter
}
