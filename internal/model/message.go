package model

import "time"

// Message is the canonical, sanitized representation of one email.
// It is created once by the normalizer and never mutated afterwards;
// every downstream component (backends, orchestrator, stores) operates
// on this shape regardless of which source produced it.
type Message struct {
	// ID is the unique identifier for this message. For provider-backed
	// sources it is the provider's message id and is stable across
	// fetches; for local sources it comes from the configured id policy.
	ID string `json:"id"`

	// Subject is the message subject, or "" if the source omitted it.
	Subject string `json:"subject"`

	// Sender is the From header value, or "" if absent.
	Sender string `json:"sender"`

	// Recipients holds the To addresses. Never nil; empty when absent.
	Recipients []string `json:"recipients"`

	// Timestamp is the message date. Zero time when the source carried
	// no parseable date.
	Timestamp time.Time `json:"timestamp"`

	// BodyText is the sanitized plain-text body. Always non-nil; ""
	// when no text could be extracted.
	BodyText string `json:"body_text"`

	// BodyHTML is the sanitized HTML body, retained only when the
	// original message carried an HTML part. "" otherwise.
	BodyHTML string `json:"body_html,omitempty"`

	// ThreadID is the provider's conversation identifier, if any.
	ThreadID string `json:"thread_id,omitempty"`

	// RawRef is a weak back-reference (identifier only) to the original
	// raw payload, for debugging and reprocessing.
	RawRef string `json:"raw_ref,omitempty"`
}
