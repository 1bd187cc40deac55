package utils

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// alertSelectors match the message banners worth surfacing in diagnostics
var alertSelectors = []string{
	".alert",
	".alert-danger",
	".error",
	".error-message",
	".field-error",
	".invalid-feedback",
	"[role=alert]",
}

// DOMSummary is the human-readable digest of a page snapshot
type DOMSummary struct {
	Title  string
	Alerts []string
}

// SummarizeDOM extracts the page title and any visible alert messages
func SummarizeDOM(html string) (DOMSummary, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return DOMSummary{}, err
	}

	summary := DOMSummary{Title: strings.TrimSpace(doc.Find("title").First().Text())}
	seen := make(map[string]bool)
	doc.Find(strings.Join(alertSelectors, ", ")).Each(func(_ int, s *goquery.Selection) {
		text := strings.Join(strings.Fields(s.Text()), " ")
		if text == "" || seen[text] {
			return
		}
		seen[text] = true
		summary.Alerts = append(summary.Alerts, text)
	})
	return summary, nil
}

// Control is one interactive element found on a page
type Control struct {
	Tag      string
	Selector string
	Type     string
	Label    string
	Options  []string
}

// Link is an anchor with its target
type Link struct {
	Href string
	Text string
}

// PageOutline lists the controls and links of a page, used to maintain
// supplier selectors when a site changes.
type PageOutline struct {
	Title    string
	Controls []Control
	Links    []Link
}

// OutlinePage collects inputs, selects, buttons and links. Links are
// limited to maxLinks when it is positive.
func OutlinePage(html string, maxLinks int) (PageOutline, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return PageOutline{}, err
	}

	outline := PageOutline{Title: strings.TrimSpace(doc.Find("title").First().Text())}
	doc.Find("input, select, textarea, button").Each(func(_ int, s *goquery.Selection) {
		c := Control{Tag: goquery.NodeName(s), Selector: selectorFor(s)}
		c.Type, _ = s.Attr("type")
		c.Label = strings.Join(strings.Fields(s.Text()), " ")
		if c.Label == "" {
			c.Label, _ = s.Attr("placeholder")
		}
		if c.Tag == "select" {
			s.Find("option").Each(func(_ int, o *goquery.Selection) {
				c.Options = append(c.Options, strings.TrimSpace(o.Text()))
			})
			c.Label = ""
		}
		outline.Controls = append(outline.Controls, c)
	})

	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if maxLinks > 0 && len(outline.Links) >= maxLinks {
			return false
		}
		href, _ := s.Attr("href")
		outline.Links = append(outline.Links, Link{Href: href, Text: strings.Join(strings.Fields(s.Text()), " ")})
		return true
	})
	return outline, nil
}

// selectorFor prefers id, then name, then data attributes, then classes
func selectorFor(s *goquery.Selection) string {
	tag := goquery.NodeName(s)
	if id, ok := s.Attr("id"); ok && id != "" {
		return "#" + id
	}
	if name, ok := s.Attr("name"); ok && name != "" {
		return tag + "[name=" + name + "]"
	}
	for _, attr := range []string{"data-field", "data-color", "data-type", "value"} {
		if v, ok := s.Attr(attr); ok && v != "" && tag != "select" {
			return tag + "[" + attr + "='" + v + "']"
		}
	}
	if class, ok := s.Attr("class"); ok && class != "" {
		return tag + "." + strings.Join(strings.Fields(class), ".")
	}
	return tag
}
