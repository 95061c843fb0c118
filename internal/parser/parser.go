// Package parser provides pure HTML-cleaning and extraction helpers shared
// by spiders. All functions operate on strings and never panic on bad
// markup.
package parser

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
)

// nonContentSelectors lists elements stripped before extracting text.
const nonContentSelectors = "script, style"

// CleanText parses HTML, removes script and style subtrees, and returns
// the document text with whitespace runs collapsed to single spaces. Plain
// text passes through with the same normalization, making the function
// idempotent.
func CleanText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return collapseWhitespace(html)
	}

	doc.Find(nonContentSelectors).Remove()
	return collapseWhitespace(doc.Text())
}

// collapseWhitespace reduces whitespace runs to single spaces and trims
// the ends.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ExtractFirst returns the trimmed text of the first node matching the CSS
// selector, or "" when nothing matches.
func ExtractFirst(html, selector string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	return strings.TrimSpace(doc.Find(selector).First().Text())
}

// ExtractAll returns the trimmed, non-empty text of every node matching
// the CSS selector.
func ExtractAll(html, selector string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var out []string
	doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			out = append(out, text)
		}
	})

	return out
}

// ExtractXPathFirst returns the trimmed text of the first node matching
// the XPath expression, or "" on no match or an invalid expression.
func ExtractXPathFirst(html, expr string) string {
	doc, err := htmlquery.Parse(strings.NewReader(html))
	if err != nil {
		return ""
	}

	node, queryErr := htmlquery.Query(doc, expr)
	if queryErr != nil || node == nil {
		return ""
	}

	return strings.TrimSpace(htmlquery.InnerText(node))
}

// ExtractXPathAll returns the trimmed, non-empty text of every node
// matching the XPath expression.
func ExtractXPathAll(html, expr string) []string {
	doc, err := htmlquery.Parse(strings.NewReader(html))
	if err != nil {
		return nil
	}

	nodes, queryErr := htmlquery.QueryAll(doc, expr)
	if queryErr != nil {
		return nil
	}

	var out []string
	for _, node := range nodes {
		if text := strings.TrimSpace(htmlquery.InnerText(node)); text != "" {
			out = append(out, text)
		}
	}

	return out
}
