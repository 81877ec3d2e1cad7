package listing

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ExtractDescription returns the trimmed text of the detail page's article
// body, or "" when the container is missing.
func ExtractDescription(markup string) string {
	if strings.TrimSpace(markup) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return ""
	}
	return text(selectFirst(doc.Selection, detailSelector))
}
