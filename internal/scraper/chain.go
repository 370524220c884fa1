package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// Matcher extracts a text value from a selection. ok is false when nothing usable was
// found, which lets a Chain fall through to the next strategy.
type Matcher func(s *goquery.Selection) (value string, ok bool)

// Chain is an ordered list of strategies; the first success wins.
type Chain []Matcher

// First runs the strategies in order and returns the first successful value.
func (c Chain) First(s *goquery.Selection) (string, bool) {
	for _, m := range c {
		if v, ok := m(s); ok {
			return v, true
		}
	}
	return "", false
}

// TextOf matches the text of the first descendant matching selector, if non-empty.
func TextOf(selector string) Matcher {
	return func(s *goquery.Selection) (string, bool) {
		found := s.Find(selector).First()
		if found.Length() == 0 {
			return "", false
		}
		text := nodeText(found)
		return text, text != ""
	}
}

// OwnText matches the full text of the selection itself, if non-empty.
func OwnText() Matcher {
	return func(s *goquery.Selection) (string, bool) {
		text := nodeText(s)
		return text, text != ""
	}
}

// Within narrows the selection to the first descendant matching selector and runs
// chain there. It fails when no such descendant exists.
func Within(selector string, chain Chain) Matcher {
	return func(s *goquery.Selection) (string, bool) {
		scope := s.Find(selector).First()
		if scope.Length() == 0 {
			return "", false
		}
		return chain.First(scope)
	}
}

// nodeText collects every text node under s, trims each one, drops the empty ones
// and joins the rest with single spaces.
func nodeText(s *goquery.Selection) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}
