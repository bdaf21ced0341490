package model

import "time"

// BackendKind identifies which processing backend produced a result.
type BackendKind string

const (
	BackendCapable   BackendKind = "capable"
	BackendHeuristic BackendKind = "heuristic"
	BackendNoOp      BackendKind = "noop"
)

// CategoryUncategorized is the default category label. Backends must
// never emit an empty category; consumers never branch on absence.
const CategoryUncategorized = "uncategorized"

// ProcessingResult is the structured output of processing one Message.
// It is created once per message per run and never mutated afterwards.
type ProcessingResult struct {
	// MessageID references the Message this result belongs to.
	MessageID string `json:"message_id"`

	// Category is a single label. Defaults to "uncategorized".
	Category string `json:"category"`

	// CategoryReason is the backend's short justification for the
	// chosen category, when it offered one.
	CategoryReason string `json:"category_reason,omitempty"`

	// ActionItems is the ordered list of extracted action items.
	// Never nil; empty when none were found.
	ActionItems []string `json:"action_items"`

	// DraftReply is the suggested reply text. "" when drafting was not
	// requested or failed.
	DraftReply string `json:"draft_reply,omitempty"`

	// BackendUsed records which backend produced this result.
	BackendUsed BackendKind `json:"backend_used"`

	// Error describes a per-message processing failure. "" on success.
	// A set Error never aborts the batch; the result still counts
	// toward the one-result-per-message contract.
	Error string `json:"error,omitempty"`

	// ProcessedAt is when this result was produced.
	ProcessedAt time.Time `json:"processed_at"`
}

// NewResult returns a ProcessingResult with the defaults every consumer
// can rely on: the uncategorized label and a non-nil empty item list.
func NewResult(messageID string, backend BackendKind) ProcessingResult {
	return ProcessingResult{
		MessageID:   messageID,
		Category:    CategoryUncategorized,
		ActionItems: []string{},
		BackendUsed: backend,
		ProcessedAt: time.Now(),
	}
}
