package listing

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// selectFirst returns the first element under root matching selector, or nil.
func selectFirst(root *goquery.Selection, selector string) *goquery.Selection {
	if root == nil {
		return nil
	}
	sel := root.Find(selector).First()
	if sel.Length() == 0 {
		return nil
	}
	return sel
}

// text returns the trimmed text of sel; a missing element yields "".
func text(sel *goquery.Selection) string {
	if sel == nil {
		return ""
	}
	return strings.TrimSpace(sel.Text())
}

// attr returns the trimmed attribute value; a missing element or attribute yields "".
func attr(sel *goquery.Selection, name string) string {
	if sel == nil {
		return ""
	}
	value, _ := sel.Attr(name)
	return strings.TrimSpace(value)
}
