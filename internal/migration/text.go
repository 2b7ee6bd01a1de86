package migration

import (
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
)

// htmlTagPattern detects the tags the old editor produced.
var htmlTagPattern = regexp.MustCompile(`<(p|br|div|span|b|i|u|strong|em|a|ul|ol|li|h[1-6]|blockquote)[\s>/]`)

var whitespacePattern = regexp.MustCompile(`\s+`)

func containsHTML(s string) bool {
	return htmlTagPattern.MatchString(strings.ToLower(s))
}

// noteContent converts rich-text note bodies to Markdown. Plain text is kept as is.
func noteContent(s string) string {
	if s == "" || !containsHTML(s) {
		return s
	}
	md, err := htmltomarkdown.ConvertString(s)
	if err != nil {
		return s
	}
	return strings.TrimSpace(md)
}

// plainName strips markup and entities that scraped names sometimes carry,
// e.g. "Jane Doe<span class=\"badge\">2nd</span>" or "Jane &amp; Co".
func plainName(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
	}

	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}

	var buf strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style" || n.Data == "span" && hasClass(n, "visually-hidden")) {
			return
		}
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && (n.Data == "br" || n.Data == "p" || n.Data == "div") {
			buf.WriteByte(' ')
		}
	}
	walk(doc)

	return strings.TrimSpace(whitespacePattern.ReplaceAllString(buf.String(), " "))
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key == "class" && strings.Contains(" "+a.Val+" ", " "+class+" ") {
			return true
		}
	}
	return false
}
