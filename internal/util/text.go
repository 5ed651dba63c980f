// Package util provides text helpers shared by indexing and presentation.
package util

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	// Matches runs of whitespace.
	whitespaceRe = regexp.MustCompile(`\s+`)
	// Matches any tag, used when the parser gives up.
	htmlTagRe = regexp.MustCompile(`<[^>]*>`)
	// Detects markup worth converting.
	htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|u|strong|em|a|ul|ol|li|h[1-6]|blockquote|table|tr|td|img|pre|code)[\s>/]`)
)

// PlainText strips markup from an HTML fragment and collapses whitespace.
// Block elements become word boundaries so "<p>a</p><p>b</p>" reads "a b".
func PlainText(s string) string {
	if s == "" {
		return ""
	}

	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return collapse(html.UnescapeString(htmlTagRe.ReplaceAllString(s, " ")))
	}

	var b strings.Builder
	writeText(doc, &b)
	return collapse(b.String())
}

func writeText(n *html.Node, b *strings.Builder) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
	case html.ElementNode:
		switch n.Data {
		case "script", "style":
			return
		case "br", "p", "div", "li", "tr", "td", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "pre":
			b.WriteByte(' ')
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(c, b)
	}
	if n.Type == html.ElementNode {
		b.WriteByte(' ')
	}
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// ContainsHTML reports whether s appears to contain HTML markup.
func ContainsHTML(s string) bool {
	return htmlTagPattern.MatchString(strings.ToLower(s))
}

// Markdown converts an HTML fragment to Markdown. Input without markup, or
// input the converter rejects, is returned unchanged.
func Markdown(s string) string {
	if s == "" || !ContainsHTML(s) {
		return s
	}
	md, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(md)
}

// Fold lowercases s and strips combining marks, so "Résumé" and "resume"
// compare equal. Used on both indexed text and queries.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(folded)
}

// Excerpt returns the first max runes of the plain text of s, cut at a word
// boundary when one is near, with an ellipsis when truncated.
func Excerpt(s string, max int) string {
	text := PlainText(s)
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}

	r := []rune(text)[:max]
	cut := len(r)
	for i := len(r) - 1; i > max*3/4; i-- {
		if unicode.IsSpace(r[i]) {
			cut = i
			break
		}
	}
	return strings.TrimRightFunc(string(r[:cut]), unicode.IsSpace) + "…"
}
