// Package session abstracts the page engine used to visit product pages and
// fetch image bytes. Two implementations are provided: a headless-Chrome
// engine for JS-rendered pages and a plain-HTTP engine for static pages.
package session

import (
	"context"
	"fmt"

	"github.com/fetchpix/fetchpix/config"
)

// PageSession is one isolated browsing session. A session is owned by a
// single execution context for the duration of a batch and is not safe for
// concurrent use.
type PageSession interface {
	// Open navigates to pageURL and waits for page readiness, bounded by
	// the configured navigation timeout. The rendered document is retained
	// for QueryMatching until the next Open.
	Open(ctx context.Context, pageURL string) error

	// QueryMatching returns the src of every image element on the current
	// page whose value contains fingerprint, in document order. An empty
	// fingerprint matches every image.
	QueryMatching(fingerprint string) ([]string, error)

	// FetchBytes downloads the body of imageURL.
	FetchBytes(ctx context.Context, imageURL string) ([]byte, error)

	// Close releases the session and any external processes it owns.
	Close() error
}

// Factory launches sessions. One session is launched per execution context.
type Factory interface {
	NewSession(ctx context.Context) (PageSession, error)
}

// NewFactory selects a factory for the configured engine.
func NewFactory(cfg *config.Config) (Factory, error) {
	switch cfg.Engine {
	case config.EngineChrome:
		return &ChromeFactory{cfg: cfg}, nil
	case config.EngineStatic:
		return &StaticFactory{cfg: cfg}, nil
	default:
		return nil, fmt.Errorf("unknown engine %q", cfg.Engine)
	}
}
