// Package extract turns a raw provider message into sanitized body
// content and the canonical Message entity. Extraction is total: it
// degrades on malformed input but never fails.
package extract

import (
	"encoding/base64"
	"io"
	"mime/quotedprintable"
	"strings"

	"golang.org/x/text/encoding/ianaindex"

	"github.com/nhle/mailtriage/internal/source"
)

// Extract walks raw's part tree and returns the best plain-text body
// plus a sanitized HTML body when the message carried an HTML part.
//
// The walk is depth-first. The first text/plain and first text/html
// parts win and are never overwritten; providers return parts in a
// stable, meaningful order. When only HTML exists, the plain text is
// derived by stripping the sanitized HTML. When neither exists, the
// text body is "".
func Extract(raw source.RawMessage) (bodyText, bodyHTML string) {
	var plain, html *source.RawPart
	findCandidates(&raw.Payload, &plain, &html)

	if html != nil {
		bodyHTML = SanitizeHTML(decodePart(html))
	}

	switch {
	case plain != nil:
		bodyText = decodePart(plain)
	case bodyHTML != "":
		bodyText = HTMLToText(bodyHTML)
	}

	return bodyText, bodyHTML
}

// findCandidates records the first text/plain and text/html leaves
// encountered in a depth-first walk of the part tree.
func findCandidates(part *source.RawPart, plain, html **source.RawPart) {
	mimeType := strings.ToLower(part.MIMEType)

	switch {
	case mimeType == "text/plain" && len(part.Data) > 0 && *plain == nil:
		*plain = part
	case mimeType == "text/html" && len(part.Data) > 0 && *html == nil:
		*html = part
	}

	for i := range part.Parts {
		if *plain != nil && *html != nil {
			return
		}
		findCandidates(&part.Parts[i], plain, html)
	}
}

// decodePart applies the part's declared transfer encoding and charset,
// falling back to a lossy interpretation of the raw bytes on any decode
// failure. It never returns an error.
func decodePart(part *source.RawPart) string {
	data := part.Data

	switch strings.ToLower(part.Encoding) {
	case "base64":
		if decoded, err := decodeBase64(data); err == nil {
			data = decoded
		}
	case "base64url":
		if decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).
			DecodeString(strings.TrimRight(string(data), "=")); err == nil {
			data = decoded
		}
	case "quoted-printable":
		if decoded, err := io.ReadAll(
			quotedprintable.NewReader(strings.NewReader(string(data))),
		); err == nil {
			data = decoded
		}
		// quotedprintable returns partial output alongside its error;
		// the fallback below handles the undecoded remainder.
	}

	return decodeCharset(data, part.Charset)
}

// decodeBase64 tries standard base64 first and the URL-safe alphabet
// second, since providers differ on which they emit.
func decodeBase64(data []byte) ([]byte, error) {
	s := strings.TrimSpace(string(data))
	if decoded, err := base64.StdEncoding.DecodeString(s); err == nil {
		return decoded, nil
	}
	return base64.URLEncoding.WithPadding(base64.NoPadding).
		DecodeString(strings.TrimRight(s, "="))
}

// decodeCharset converts data from its declared character set to UTF-8.
// Unknown charsets and conversion failures degrade to the raw bytes with
// invalid sequences discarded rather than raising.
func decodeCharset(data []byte, charset string) string {
	cs := strings.ToLower(strings.TrimSpace(charset))
	if cs == "" || cs == "utf-8" || cs == "utf8" || cs == "us-ascii" || cs == "ascii" {
		return strings.ToValidUTF8(string(data), "")
	}

	enc, err := ianaindex.MIME.Encoding(cs)
	if err != nil || enc == nil {
		return strings.ToValidUTF8(string(data), "")
	}

	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return strings.ToValidUTF8(string(data), "")
	}

	return strings.ToValidUTF8(string(decoded), "")
}
