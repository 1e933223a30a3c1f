package session

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// querySources extracts the src attribute of every img element in html whose
// value contains fingerprint, preserving document order. The match is a
// permissive substring check against the known CDN host, not a URL grammar.
func querySources(html, fingerprint string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	var sources []string
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		src, ok := sel.Attr("src")
		if !ok || src == "" {
			return
		}
		if fingerprint != "" && !strings.Contains(src, fingerprint) {
			return
		}
		sources = append(sources, src)
	})
	return sources, nil
}
