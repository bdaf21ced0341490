package extract

import "github.com/microcosm-cc/bluemonday"

// sanitizePolicy is the conservative allow-list applied to every HTML
// body before it leaves the extractor. Script, style, and event-handler
// content is stripped; only structural and basic formatting tags with a
// small attribute set survive.
var sanitizePolicy = newSanitizePolicy()

func newSanitizePolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"a", "b", "i", "strong", "em", "p", "br",
		"ul", "ol", "li", "blockquote", "code", "pre",
		"h1", "h2", "h3", "h4",
		"table", "thead", "tbody", "tr", "td", "th", "img",
	)

	p.AllowAttrs("href", "title", "rel", "target").OnElements("a")
	p.AllowAttrs("src", "alt", "title", "width", "height").OnElements("img")
	p.AllowStandardURLs()

	return p
}

// SanitizeHTML reduces html to the allow-listed subset. Disallowed
// content is dropped silently; sanitization is not an error path.
func SanitizeHTML(html string) string {
	if html == "" {
		return ""
	}
	return sanitizePolicy.Sanitize(html)
}
