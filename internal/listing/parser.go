// Package listing turns the community listing and detail pages into Request records.
package listing

import (
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"request-radar/internal/models"
)

// DefaultOrigin is prefixed to relative row links.
const DefaultOrigin = "https://khamsat.com"

// Selectors used against the listing markup.
const (
	rowSelector    = "tr.forum_post"
	rowIDPrefix    = "forum_post-"
	titleSelector  = "td.details-td h3.details-head a"
	authorSelector = "ul.details-list li a.user"
	dateSelector   = "li.d-lg-inline-block.d-none span"
	detailSelector = "article.replace_urls"
)

// dateLayouts are tried in order against the row's title attribute.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"01/02/2006 15:04:05",
	"2006-01-02",
}

// Parser extracts candidate requests from listing markup.
type Parser struct {
	origin string
}

// NewParser returns a parser resolving relative links against origin.
func NewParser(origin string) *Parser {
	origin = strings.TrimRight(strings.TrimSpace(origin), "/")
	if origin == "" {
		origin = DefaultOrigin
	}
	return &Parser{origin: origin}
}

// ParseListing parses markup with the default origin.
func ParseListing(markup string) []models.Request {
	return NewParser(DefaultOrigin).ParseListing(markup)
}

// ParseListing returns the candidate requests in document order.
// It never fails: unreadable or truncated markup yields an empty slice and
// missing sub-elements yield empty fields.
func (p *Parser) ParseListing(markup string) []models.Request {
	requests := []models.Request{}
	if strings.TrimSpace(markup) == "" || !rowsTerminated(markup) {
		return requests
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return requests
	}

	doc.Find(rowSelector).Each(func(_ int, row *goquery.Selection) {
		id, ok := parseRowID(attr(row, "id"))
		if !ok {
			return
		}
		requests = append(requests, p.parseRow(id, row))
	})
	return requests
}

// rowsTerminated reports whether the last listing row in markup is closed.
// The HTML parser closes a cut-off row on its own, so a truncated page is
// caught on the raw text.
func rowsTerminated(markup string) bool {
	lower := strings.ToLower(markup)
	last := -1
	for i := 0; ; {
		j := strings.Index(lower[i:], "<tr")
		if j < 0 {
			break
		}
		start := i + j
		end := strings.IndexByte(lower[start:], '>')
		if end < 0 {
			return false
		}
		if strings.Contains(lower[start:start+end], "forum_post") {
			last = start + end
		}
		i = start + end + 1
	}
	if last < 0 {
		return true
	}
	return strings.Contains(lower[last:], "</tr")
}

func (p *Parser) parseRow(id int64, row *goquery.Selection) models.Request {
	titleLink := selectFirst(row, titleSelector)
	dateEl := selectFirst(row, dateSelector)
	rawDate := attr(dateEl, "title")

	return models.Request{
		ID:          id,
		Title:       text(titleLink),
		Link:        p.resolve(attr(titleLink, "href")),
		Author:      text(selectFirst(row, authorSelector)),
		PostedAt:    parsePostedAt(rawDate),
		PostedAtRaw: rawDate,
	}
}

func (p *Parser) resolve(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return p.origin + href
}

// parseRowID accepts "forum_post-123" (or a bare "123") and requires a positive id.
func parseRowID(raw string) (int64, bool) {
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(raw, rowIDPrefix), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parsePostedAt returns the zero time when raw matches no known layout.
func parsePostedAt(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
