package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AuthError indicates that authentication has failed or expired for a
// source. It is returned by source clients when credentials are rejected.
type AuthError struct {
	SourceType SourceType
	Message    string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.SourceType, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// SourceType identifies the kind of message source.
type SourceType string

const (
	SourceTypeGmail SourceType = "gmail"
	SourceTypeIMAP  SourceType = "imap"
	SourceTypeMock  SourceType = "mock"
)

// RawPart is one node of a raw message's MIME part tree: either a leaf
// carrying inline body bytes, or a container with nested parts.
type RawPart struct {
	// MIMEType is the declared media type, e.g. "text/plain",
	// "text/html", "multipart/alternative".
	MIMEType string `json:"mime_type"`

	// Encoding is the declared content transfer encoding of the body
	// data ("base64", "base64url", "quoted-printable", or "" for none).
	Encoding string `json:"encoding,omitempty"`

	// Charset is the declared character set of the body data, if any.
	Charset string `json:"charset,omitempty"`

	// Data holds the still-encoded inline body bytes for leaf parts.
	Data []byte `json:"data,omitempty"`

	// Parts holds nested parts for multipart containers.
	Parts []RawPart `json:"parts,omitempty"`
}

// RawMessage is a provider-neutral rendering of one message as fetched:
// header scalars plus the untouched part tree. It is immutable once
// fetched and owned by the body extractor only for the duration of
// extraction.
type RawMessage struct {
	// ID is the provider's message identifier, stable across fetches.
	// Empty for local sources that carry no id; the id policy fills it.
	ID string `json:"id"`

	// ThreadID is the provider's conversation identifier, if any.
	ThreadID string `json:"thread_id,omitempty"`

	Subject string    `json:"subject"`
	From    string    `json:"from"`
	To      []string  `json:"to,omitempty"`
	Date    time.Time `json:"date"`
	Payload RawPart   `json:"payload"`
}

// FetchOptions controls one fetch against a source.
type FetchOptions struct {
	// Query is the provider search query. Consumed opaquely; the
	// pipeline never interprets it.
	Query string

	// Max caps how many messages are returned. <=0 means the source
	// default.
	Max int
}

// Source is the contract every message source implements. Live
// providers and the mock snapshot source return the same RawMessage
// shape so the extractor and normalizer stay source-agnostic.
type Source interface {
	// Type returns the source type identifier.
	Type() SourceType

	// ValidateConnection verifies credentials and connectivity.
	// Returns a human-readable status message on success.
	ValidateConnection(ctx context.Context) (string, error)

	// Fetch retrieves raw messages matching the options, in the
	// provider's order.
	Fetch(ctx context.Context, opts FetchOptions) ([]RawMessage, error)

	// MarkProcessed labels or flags a message at the provider so later
	// queries can exclude it. Sources without such a facility return nil.
	MarkProcessed(ctx context.Context, id string) error
}

// IDPolicy generates a locally-unique id for a raw message that carries
// none. It is a configuration point on sources, not a backend choice.
type IDPolicy func(raw *RawMessage) string

// ContentHashID derives an id from the message's stable header fields,
// so re-reading the same snapshot yields the same id.
func ContentHashID(raw *RawMessage) string {
	h := sha256.New()
	h.Write([]byte(raw.Subject))
	h.Write([]byte{0})
	h.Write([]byte(raw.From))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(raw.To, ",")))
	h.Write([]byte{0})
	h.Write([]byte(raw.Date.UTC().Format(time.RFC3339)))
	h.Write(raw.Payload.Data)
	return "local-" + hex.EncodeToString(h.Sum(nil)[:12])
}

// RandomID assigns an opaque UUID. Ids are unique per fetch but not
// stable across re-reads of the same snapshot.
func RandomID(_ *RawMessage) string {
	return "local-" + uuid.New().String()
}
