package extract

import (
	"strings"

	"golang.org/x/net/html"
)

// blockTags are elements that terminate a line of readable text.
var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true,
	"h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "tr": true, "blockquote": true,
	"pre": true, "table": true, "ul": true, "ol": true,
}

// skipTags are elements whose subtrees carry no readable text.
var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true,
	"iframe": true, "head": true, "meta": true, "link": true,
	"title": true,
}

// HTMLToText renders markup as readable plain text: text nodes joined
// with spaces, block elements becoming line breaks, script/style
// subtrees dropped, and blank lines collapsed. Unparseable input
// degrades to an empty string rather than failing.
func HTMLToText(markup string) string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return ""
	}

	var sb strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			if skipTags[strings.ToLower(n.Data)] {
				return
			}
		case html.TextNode:
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
					sb.WriteString(" ")
				}
				sb.WriteString(text)
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}

		if n.Type == html.ElementNode && blockTags[strings.ToLower(n.Data)] {
			if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
				sb.WriteString("\n")
			}
		}
	}
	walk(doc)

	return collapseBlankLines(sb.String())
}

// collapseBlankLines trims each line and drops empty ones.
func collapseBlankLines(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return strings.Join(lines, "\n")
}
