package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/mailtriage/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// GetPrompts returns every stored prompt template.
func (s *SQLiteStore) GetPrompts(ctx context.Context) (model.PromptConfig, error) {
	rows, err := s.db.QueryxContext(ctx, "SELECT task, template FROM prompts")
	if err != nil {
		return nil, fmt.Errorf("querying prompts: %w", err)
	}
	defer rows.Close()

	prompts := make(model.PromptConfig)
	for rows.Next() {
		var task, template string
		if err := rows.Scan(&task, &template); err != nil {
			return nil, fmt.Errorf("scanning prompt row: %w", err)
		}
		prompts[model.Task(task)] = template
	}

	return prompts, rows.Err()
}

// SetPrompt stores or replaces the template for one task.
func (s *SQLiteStore) SetPrompt(
	ctx context.Context,
	task model.Task,
	template string,
) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO prompts (task, template, updated_at)
		VALUES (?, ?, ?)`,
		string(task), template, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("storing prompt %s: %w", task, err)
	}
	return nil
}

// SaveDraft persists a reply draft. If the draft has no ID, a new UUID
// is generated.
func (s *SQLiteStore) SaveDraft(ctx context.Context, draft Draft) error {
	if draft.ID == "" {
		draft.ID = uuid.New().String()
	}
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO drafts (id, message_id, subject, body, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		draft.ID, draft.MessageID, draft.Subject, draft.Body,
		draft.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving draft for message %s: %w", draft.MessageID, err)
	}
	return nil
}

// GetDrafts retrieves all drafts, newest first.
func (s *SQLiteStore) GetDrafts(ctx context.Context) ([]Draft, error) {
	rows, err := s.db.QueryxContext(ctx,
		"SELECT id, message_id, subject, body, created_at FROM drafts ORDER BY created_at DESC",
	)
	if err != nil {
		return nil, fmt.Errorf("querying drafts: %w", err)
	}
	defer rows.Close()

	var drafts []Draft
	for rows.Next() {
		var d Draft
		if err := rows.Scan(&d.ID, &d.MessageID, &d.Subject, &d.Body, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning draft row: %w", err)
		}
		drafts = append(drafts, d)
	}

	return drafts, rows.Err()
}

// UpsertMessages inserts or replaces a batch of canonical messages,
// keyed by message id.
func (s *SQLiteStore) UpsertMessages(
	ctx context.Context,
	msgs []model.Message,
) error {
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT OR REPLACE INTO messages (
			id, subject, sender, recipients, timestamp,
			body_text, body_html, thread_id, raw_ref, fetched_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, m := range msgs {
		recipients, err := json.Marshal(m.Recipients)
		if err != nil {
			return fmt.Errorf("marshaling recipients for message %s: %w", m.ID, err)
		}

		_, err = stmt.ExecContext(ctx,
			m.ID, m.Subject, m.Sender, string(recipients), m.Timestamp.UTC(),
			m.BodyText, m.BodyHTML, m.ThreadID, m.RawRef, now,
		)
		if err != nil {
			return fmt.Errorf("upserting message %s: %w", m.ID, err)
		}
	}

	return tx.Commit()
}

// GetMessages retrieves stored messages, most recently fetched first.
func (s *SQLiteStore) GetMessages(
	ctx context.Context,
	limit int,
) ([]model.Message, error) {
	query := "SELECT id, subject, sender, recipients, timestamp, " +
		"body_text, body_html, thread_id, raw_ref FROM messages " +
		"ORDER BY fetched_at DESC, id"
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		var (
			m          model.Message
			recipients string
			timestamp  sql.NullTime
		)
		err := rows.Scan(
			&m.ID, &m.Subject, &m.Sender, &recipients, &timestamp,
			&m.BodyText, &m.BodyHTML, &m.ThreadID, &m.RawRef,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning message row: %w", err)
		}

		if timestamp.Valid {
			m.Timestamp = timestamp.Time
		}
		if err := json.Unmarshal([]byte(recipients), &m.Recipients); err != nil {
			return nil, fmt.Errorf("unmarshaling recipients: %w", err)
		}
		if m.Recipients == nil {
			m.Recipients = []string{}
		}

		msgs = append(msgs, m)
	}

	return msgs, rows.Err()
}

// SaveResults inserts or replaces processing results, keyed by message
// id so re-processing overwrites the previous annotation.
func (s *SQLiteStore) SaveResults(
	ctx context.Context,
	results []model.ProcessingResult,
) error {
	if len(results) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT OR REPLACE INTO results (
			message_id, category, category_reason, action_items,
			draft_reply, backend_used, error, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	stmt, err := tx.PreparexContext(ctx, query)
	if err != nil {
		return fmt.Errorf("preparing upsert statement: %w", err)
	}
	defer stmt.Close()

	for _, r := range results {
		items, err := json.Marshal(r.ActionItems)
		if err != nil {
			return fmt.Errorf("marshaling action items for %s: %w", r.MessageID, err)
		}

		_, err = stmt.ExecContext(ctx,
			r.MessageID, r.Category, r.CategoryReason, string(items),
			r.DraftReply, string(r.BackendUsed), r.Error, r.ProcessedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("upserting result for %s: %w", r.MessageID, err)
		}
	}

	return tx.Commit()
}

// GetResult retrieves the latest processing result for a message, or
// nil when the message has not been processed.
func (s *SQLiteStore) GetResult(
	ctx context.Context,
	messageID string,
) (*model.ProcessingResult, error) {
	row := s.db.QueryRowxContext(ctx,
		"SELECT message_id, category, category_reason, action_items, "+
			"draft_reply, backend_used, error, processed_at "+
			"FROM results WHERE message_id = ?",
		messageID,
	)

	var (
		r       model.ProcessingResult
		items   string
		backend string
	)
	err := row.Scan(
		&r.MessageID, &r.Category, &r.CategoryReason, &items,
		&r.DraftReply, &backend, &r.Error, &r.ProcessedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting result for %s: %w", messageID, err)
	}

	r.BackendUsed = model.BackendKind(backend)
	if err := json.Unmarshal([]byte(items), &r.ActionItems); err != nil {
		return nil, fmt.Errorf("unmarshaling action items: %w", err)
	}
	if r.ActionItems == nil {
		r.ActionItems = []string{}
	}

	return &r, nil
}
