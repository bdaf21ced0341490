package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS prompts (
	task       TEXT PRIMARY KEY,
	template   TEXT NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS drafts (
	id         TEXT PRIMARY KEY,
	message_id TEXT NOT NULL,
	subject    TEXT NOT NULL DEFAULT '',
	body       TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id         TEXT PRIMARY KEY,
	subject    TEXT NOT NULL DEFAULT '',
	sender     TEXT NOT NULL DEFAULT '',
	recipients TEXT NOT NULL DEFAULT '[]',
	timestamp  DATETIME,
	body_text  TEXT NOT NULL DEFAULT '',
	body_html  TEXT NOT NULL DEFAULT '',
	thread_id  TEXT NOT NULL DEFAULT '',
	raw_ref    TEXT NOT NULL DEFAULT '',
	fetched_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS results (
	message_id      TEXT PRIMARY KEY,
	category        TEXT NOT NULL DEFAULT 'uncategorized',
	category_reason TEXT NOT NULL DEFAULT '',
	action_items    TEXT NOT NULL DEFAULT '[]',
	draft_reply     TEXT NOT NULL DEFAULT '',
	backend_used    TEXT NOT NULL,
	error           TEXT NOT NULL DEFAULT '',
	processed_at    DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_drafts_message_id ON drafts(message_id);
CREATE INDEX IF NOT EXISTS idx_messages_fetched_at ON messages(fetched_at);
CREATE INDEX IF NOT EXISTS idx_results_category ON results(category);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
}
