// Package download persists resolved images with collision-safe naming and
// cooperative cancellation.
package download

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fetchpix/fetchpix/models"
	"github.com/fetchpix/fetchpix/session"
)

// Canceller reports whether the caller asked the run to stop. Checked at
// defined checkpoints only; in-flight network calls are not aborted.
type Canceller interface {
	Cancelled() bool
}

// Destination ensures {root}/{domain} exists and returns it.
func Destination(root, domain string) (string, error) {
	path := filepath.Join(root, domain)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", fmt.Errorf("create destination folder %q: %w", path, err)
	}
	return path, nil
}

// Run downloads one descriptor into folder. Every failure mode degrades to
// an unsuccessful outcome; nothing propagates past the worker boundary.
// Cancellation is checked before folder creation, before the network fetch,
// and before the final write.
func Run(ctx context.Context, sess session.PageSession, namer *Namer, cancel Canceller, desc models.ImageDescriptor, folder string, perIdentifierDirs bool) models.DownloadOutcome {
	fail := func(msg string) models.DownloadOutcome {
		return models.DownloadOutcome{
			Identifier: desc.Identifier,
			Suffix:     desc.Suffix,
			Success:    false,
			Error:      msg,
		}
	}

	if cancel != nil && cancel.Cancelled() {
		return fail("cancelled before start")
	}

	target := folder
	if perIdentifierDirs {
		target = filepath.Join(folder, desc.Identifier)
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fail(fmt.Sprintf("create folder: %v", err))
	}

	path := namer.Claim(target, desc.Identifier, desc.Suffix)

	if cancel != nil && cancel.Cancelled() {
		return fail("cancelled before fetch")
	}

	data, err := sess.FetchBytes(ctx, desc.SourceURL)
	if err != nil {
		return fail(fmt.Sprintf("fetch: %v", err))
	}
	if len(data) == 0 {
		return fail("empty response body")
	}

	if cancel != nil && cancel.Cancelled() {
		return fail("cancelled before write")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fail(fmt.Sprintf("write file: %v", err))
	}

	slog.Debug("image saved",
		slog.String("identifier", desc.Identifier),
		slog.String("path", path),
	)
	return models.DownloadOutcome{
		Identifier: desc.Identifier,
		Suffix:     desc.Suffix,
		Success:    true,
		SavedPath:  path,
	}
}
