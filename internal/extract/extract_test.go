package extract

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/nhle/mailtriage/internal/source"
)

func plainPart(text string) source.RawPart {
	return source.RawPart{MIMEType: "text/plain", Data: []byte(text)}
}

func htmlPart(markup string) source.RawPart {
	return source.RawPart{MIMEType: "text/html", Data: []byte(markup)}
}

func TestExtractPlainOnly(t *testing.T) {
	raw := source.RawMessage{ID: "m1", Payload: plainPart("Hello")}

	bodyText, bodyHTML := Extract(raw)
	if bodyText != "Hello" {
		t.Fatalf("expected body text %q, got %q", "Hello", bodyText)
	}
	if bodyHTML != "" {
		t.Fatalf("expected no html body, got %q", bodyHTML)
	}
}

func TestExtractHTMLOnly(t *testing.T) {
	raw := source.RawMessage{
		ID:      "m2",
		Payload: htmlPart("<p>Hi</p><script>evil()</script>"),
	}

	bodyText, bodyHTML := Extract(raw)

	if !strings.Contains(bodyHTML, "<p>Hi</p>") {
		t.Errorf("sanitized html should retain the paragraph, got %q", bodyHTML)
	}
	if strings.Contains(bodyHTML, "script") || strings.Contains(bodyHTML, "evil") {
		t.Errorf("sanitized html should drop script content, got %q", bodyHTML)
	}
	if bodyText != "Hi" {
		t.Errorf("expected derived body text %q, got %q", "Hi", bodyText)
	}
}

func TestExtractEmptyMessage(t *testing.T) {
	raw := source.RawMessage{
		ID:      "m3",
		Payload: source.RawPart{MIMEType: "multipart/mixed"},
	}

	bodyText, bodyHTML := Extract(raw)
	if bodyText != "" || bodyHTML != "" {
		t.Fatalf("expected empty bodies, got text=%q html=%q", bodyText, bodyHTML)
	}
}

func TestExtractFirstMatchWins(t *testing.T) {
	raw := source.RawMessage{
		ID: "m4",
		Payload: source.RawPart{
			MIMEType: "multipart/alternative",
			Parts: []source.RawPart{
				plainPart("first"),
				plainPart("second"),
			},
		},
	}

	bodyText, _ := Extract(raw)
	if bodyText != "first" {
		t.Fatalf("expected first plain part to win, got %q", bodyText)
	}
}

func TestExtractNestedMultipart(t *testing.T) {
	raw := source.RawMessage{
		ID: "m5",
		Payload: source.RawPart{
			MIMEType: "multipart/mixed",
			Parts: []source.RawPart{
				{
					MIMEType: "multipart/alternative",
					Parts: []source.RawPart{
						plainPart("nested text"),
						htmlPart("<p>nested html</p>"),
					},
				},
				{MIMEType: "application/pdf", Data: []byte{0x25, 0x50}},
			},
		},
	}

	bodyText, bodyHTML := Extract(raw)
	if bodyText != "nested text" {
		t.Errorf("expected nested plain part, got %q", bodyText)
	}
	if !strings.Contains(bodyHTML, "nested html") {
		t.Errorf("expected nested html part, got %q", bodyHTML)
	}
}

func TestDecodePartEncodings(t *testing.T) {
	tests := []struct {
		name string
		part source.RawPart
		want string
	}{
		{
			name: "base64 standard",
			part: source.RawPart{
				MIMEType: "text/plain",
				Encoding: "base64",
				Data:     []byte(base64.StdEncoding.EncodeToString([]byte("Hello"))),
			},
			want: "Hello",
		},
		{
			name: "base64 url-safe",
			part: source.RawPart{
				MIMEType: "text/plain",
				Encoding: "base64url",
				Data:     []byte(base64.URLEncoding.EncodeToString([]byte("a+b/c?"))),
			},
			want: "a+b/c?",
		},
		{
			name: "quoted-printable",
			part: source.RawPart{
				MIMEType: "text/plain",
				Encoding: "quoted-printable",
				Data:     []byte("caf=C3=A9"),
			},
			want: "café",
		},
		{
			name: "malformed base64 degrades to raw bytes",
			part: source.RawPart{
				MIMEType: "text/plain",
				Encoding: "base64",
				Data:     []byte("not!!base64"),
			},
			want: "not!!base64",
		},
		{
			name: "latin1 charset",
			part: source.RawPart{
				MIMEType: "text/plain",
				Charset:  "iso-8859-1",
				Data:     []byte{0x63, 0x61, 0x66, 0xe9},
			},
			want: "café",
		},
		{
			name: "unknown charset discards invalid bytes",
			part: source.RawPart{
				MIMEType: "text/plain",
				Charset:  "x-no-such-charset",
				Data:     []byte{0x48, 0x69, 0xff},
			},
			want: "Hi",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := decodePart(&tc.part)
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name   string
		markup string
		want   string
	}{
		{
			name:   "paragraphs become lines",
			markup: "<p>one</p><p>two</p>",
			want:   "one\ntwo",
		},
		{
			name:   "style dropped",
			markup: "<style>p{color:red}</style><p>body</p>",
			want:   "body",
		},
		{
			name:   "inline tags joined",
			markup: "<p>Hello <b>world</b></p>",
			want:   "Hello world",
		},
		{
			name:   "empty input",
			markup: "",
			want:   "",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := HTMLToText(tc.markup)
			if got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestNormalizeDefaults(t *testing.T) {
	raw := source.RawMessage{ID: "msg-9"}

	msg := Normalize(raw, "", "", nil)

	if msg.ID != "msg-9" {
		t.Errorf("expected provider id carried over, got %q", msg.ID)
	}
	if msg.Subject != "" || msg.Sender != "" || msg.BodyText != "" {
		t.Errorf("expected empty-string defaults, got %+v", msg)
	}
	if msg.Recipients == nil {
		t.Errorf("recipients must never be nil")
	}
	if !msg.Timestamp.IsZero() {
		t.Errorf("expected zero timestamp, got %v", msg.Timestamp)
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	raw := source.RawMessage{
		ID:      "stable-1",
		Subject: "Weekly report",
		From:    "alice@example.com",
		To:      []string{"bob@example.com"},
		Date:    time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		Payload: plainPart("See attached."),
	}

	text, html := Extract(raw)
	first := Normalize(raw, text, html, nil)
	second := Normalize(raw, text, html, nil)

	if first.ID != second.ID {
		t.Errorf("ids differ across normalizations: %q vs %q", first.ID, second.ID)
	}
	if first.Subject != second.Subject || first.BodyText != second.BodyText {
		t.Errorf("normalization is not stable: %+v vs %+v", first, second)
	}
}

func TestNormalizeLocalIDPolicies(t *testing.T) {
	raw := source.RawMessage{
		Subject: "No id here",
		From:    "carol@example.com",
		Payload: plainPart("hi"),
	}

	hashed1 := Normalize(raw, "hi", "", source.ContentHashID)
	hashed2 := Normalize(raw, "hi", "", source.ContentHashID)
	if hashed1.ID == "" || hashed1.ID != hashed2.ID {
		t.Errorf("content-hash ids must be stable, got %q and %q", hashed1.ID, hashed2.ID)
	}

	random1 := Normalize(raw, "hi", "", source.RandomID)
	random2 := Normalize(raw, "hi", "", source.RandomID)
	if random1.ID == random2.ID {
		t.Errorf("random ids should differ, got %q twice", random1.ID)
	}
}
