// Package normalize turns raw spreadsheet cells into canonical identifiers
// and per-product page URLs derived from a sample URL.
package normalize

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/fetchpix/fetchpix/models"
)

// IdentifierWidth is the fixed width of a normalized product identifier.
const IdentifierWidth = 12

const placeholder = "{identifier}"

var identifierRun = regexp.MustCompile(`\d{12}`)

// FieldNotFoundError reports a configured identifier field missing from the
// row header set.
type FieldNotFoundError struct {
	Field string
}

func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("field %q not found in input rows", e.Field)
}

// Identifier strips quote characters from a raw cell value and left-pads the
// remainder with zeros to the fixed identifier width. Normalizing an
// already-normalized identifier returns it unchanged.
func Identifier(raw string) string {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.Trim(cleaned, `"'`)
	if len(cleaned) >= IdentifierWidth {
		return cleaned
	}
	return strings.Repeat("0", IdentifierWidth-len(cleaned)) + cleaned
}

// Template replaces the first 12-digit run in sampleURL with a placeholder
// token. It fails when the sample URL carries no such run.
func Template(sampleURL string) (string, error) {
	loc := identifierRun.FindStringIndex(sampleURL)
	if loc == nil {
		return "", fmt.Errorf("sample URL %q contains no %d-digit identifier", sampleURL, IdentifierWidth)
	}
	return sampleURL[:loc[0]] + placeholder + sampleURL[loc[1]:], nil
}

// Expand substitutes a normalized identifier into a URL template.
func Expand(template, identifier string) string {
	return strings.Replace(template, placeholder, identifier, 1)
}

// DomainName extracts the host of the sample URL, used to scope the
// destination folder.
func DomainName(sampleURL string) (string, error) {
	parsed, err := url.Parse(sampleURL)
	if err != nil {
		return "", fmt.Errorf("parse sample URL: %w", err)
	}
	if parsed.Hostname() == "" {
		return "", fmt.Errorf("sample URL %q has no host", sampleURL)
	}
	return parsed.Hostname(), nil
}

// WorkItems builds the work list from input rows. Rows with an empty
// identifier cell are skipped; a field name absent from the header set is an
// input error that aborts before any network activity.
func WorkItems(rows []map[string]string, field, sampleURL string) ([]models.WorkItem, error) {
	template, err := Template(sampleURL)
	if err != nil {
		return nil, err
	}

	if len(rows) > 0 {
		if _, ok := rows[0][field]; !ok {
			return nil, &FieldNotFoundError{Field: field}
		}
	}

	items := make([]models.WorkItem, 0, len(rows))
	for _, row := range rows {
		raw := strings.TrimSpace(row[field])
		if raw == "" {
			continue
		}
		id := Identifier(raw)
		items = append(items, models.WorkItem{
			SourceURL:  Expand(template, id),
			Identifier: id,
		})
	}
	return items, nil
}
