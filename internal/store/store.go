package store

import (
	"context"
	"time"

	"github.com/nhle/mailtriage/internal/model"
)

// Draft is a locally persisted reply draft. Drafts are never sent;
// they only live in the store for the user to review.
type Draft struct {
	// ID is the draft's unique identifier (UUID).
	ID string `json:"id"`

	// MessageID references the message the draft replies to.
	MessageID string `json:"message_id"`

	// Subject is the proposed reply subject.
	Subject string `json:"subject"`

	// Body is the proposed reply text.
	Body string `json:"body"`

	// CreatedAt is when the draft was produced.
	CreatedAt time.Time `json:"created_at"`
}

// PromptStore is the read/write mapping from task name to prompt
// template. The processing backends only ever read it.
type PromptStore interface {
	// GetPrompts returns all stored templates. Missing tasks are
	// absent from the map; backends substitute built-in defaults.
	GetPrompts(ctx context.Context) (model.PromptConfig, error)

	// SetPrompt stores or replaces the template for one task.
	SetPrompt(ctx context.Context, task model.Task, template string) error
}

// DraftStore persists reply drafts locally.
type DraftStore interface {
	SaveDraft(ctx context.Context, draft Draft) error
	GetDrafts(ctx context.Context) ([]Draft, error)
}

// SnapshotStore persists fetched messages and their latest processing
// results, keyed by message id so re-fetching upserts rather than
// duplicates.
type SnapshotStore interface {
	UpsertMessages(ctx context.Context, msgs []model.Message) error
	GetMessages(ctx context.Context, limit int) ([]model.Message, error)
	SaveResults(ctx context.Context, results []model.ProcessingResult) error
	GetResult(ctx context.Context, messageID string) (*model.ProcessingResult, error)
}

// Store is the combined persistence interface backed by one SQLite
// database.
type Store interface {
	PromptStore
	DraftStore
	SnapshotStore

	Close() error
}
