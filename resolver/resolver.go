// Package resolver locates downloadable product images on a detail page.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/fetchpix/fetchpix/models"
	"github.com/fetchpix/fetchpix/session"
)

// Resolve opens the work item's page in sess and returns a descriptor for
// every image whose src matches fingerprint and contains the item's
// identifier. An empty result is a valid outcome, not an error. Navigation
// failures propagate so the scheduler can record a per-item failure; query
// failures degrade to an empty list with a logged warning.
func Resolve(ctx context.Context, sess session.PageSession, item models.WorkItem, fingerprint string) ([]models.ImageDescriptor, error) {
	if err := sess.Open(ctx, item.SourceURL); err != nil {
		return nil, fmt.Errorf("open %s: %w", item.SourceURL, err)
	}

	sources, err := sess.QueryMatching(fingerprint)
	if err != nil {
		slog.Warn("image query failed",
			slog.String("url", item.SourceURL),
			slog.String("identifier", item.Identifier),
			slog.Any("error", err),
		)
		return nil, nil
	}

	var descriptors []models.ImageDescriptor
	for i, src := range sources {
		// Unrelated images on the same page never carry the identifier.
		if !strings.Contains(src, item.Identifier) {
			continue
		}
		descriptors = append(descriptors, models.ImageDescriptor{
			SourceURL:  src,
			Identifier: item.Identifier,
			Suffix:     Suffix(src, item.Identifier, i),
		})
	}

	slog.Debug("page resolved",
		slog.String("identifier", item.Identifier),
		slog.Int("images", len(descriptors)),
	)
	return descriptors, nil
}

// Suffix derives the disambiguating suffix for an image URL: the token
// between the identifier and the .jpg extension, or the element's positional
// index when no token matches. Suffix collisions within one page are left to
// the download path manager.
func Suffix(src, identifier string, index int) string {
	pattern, err := regexp.Compile(regexp.QuoteMeta(identifier) + `_?([A-Za-z0-9-]+)\.jpe?g`)
	if err != nil {
		return strconv.Itoa(index)
	}
	match := pattern.FindStringSubmatch(src)
	if match == nil {
		return strconv.Itoa(index)
	}
	return match[1]
}
