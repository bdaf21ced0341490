package mock

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/nhle/mailtriage/internal/source"
)

const snapshot = `[
	{
		"id": "m1",
		"subject": "Slides",
		"from": "bob@example.com",
		"to": ["alice@example.com"],
		"date": "2025-06-01T10:00:00Z",
		"payload": {
			"mime_type": "text/plain",
			"data": "UGxlYXNlIHNlbmQgdGhlIHNsaWRlcy4="
		}
	},
	{
		"subject": "No id here",
		"from": "carol@example.com",
		"date": "2025-06-02T09:00:00Z",
		"payload": {"mime_type": "text/plain", "data": "SGV5"}
	},
	{
		"subject": "Third",
		"from": "dan@example.com",
		"date": "2025-06-03T09:00:00Z",
		"payload": {"mime_type": "text/plain", "data": "SGk="}
	}
]`

func writeSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "snapshot.json")
	if err := os.WriteFile(path, []byte(snapshot), 0600); err != nil {
		t.Fatalf("writing snapshot: %v", err)
	}
	return path
}

func TestFetchAssignsMissingIDs(t *testing.T) {
	src := New(writeSnapshot(t), nil)

	msgs, err := src.Fetch(context.Background(), source.FetchOptions{})
	if err != nil {
		t.Fatalf("fetching: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}

	if msgs[0].ID != "m1" {
		t.Errorf("existing id must survive, got %q", msgs[0].ID)
	}
	if msgs[1].ID == "" {
		t.Errorf("missing id must be filled")
	}

	// Content hashing keeps ids stable across re-reads.
	again, err := src.Fetch(context.Background(), source.FetchOptions{})
	if err != nil {
		t.Fatalf("re-fetching: %v", err)
	}
	if again[1].ID != msgs[1].ID {
		t.Errorf("content-hash ids must be stable: %q vs %q", again[1].ID, msgs[1].ID)
	}
}

func TestFetchRandomIDPolicy(t *testing.T) {
	src := New(writeSnapshot(t), source.RandomID)

	first, err := src.Fetch(context.Background(), source.FetchOptions{})
	if err != nil {
		t.Fatalf("fetching: %v", err)
	}
	second, err := src.Fetch(context.Background(), source.FetchOptions{})
	if err != nil {
		t.Fatalf("re-fetching: %v", err)
	}

	if first[1].ID == second[1].ID {
		t.Errorf("random ids must differ across fetches")
	}
	if first[0].ID != "m1" {
		t.Errorf("existing id must survive regardless of policy, got %q", first[0].ID)
	}
}

func TestFetchMaxCap(t *testing.T) {
	src := New(writeSnapshot(t), nil)

	msgs, err := src.Fetch(context.Background(), source.FetchOptions{Max: 2})
	if err != nil {
		t.Fatalf("fetching: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected max to cap the batch, got %d", len(msgs))
	}
	if msgs[0].Subject != "Slides" || msgs[1].Subject != "No id here" {
		t.Errorf("file order must be preserved: %q, %q", msgs[0].Subject, msgs[1].Subject)
	}
}

func TestValidateConnection(t *testing.T) {
	src := New(writeSnapshot(t), nil)
	if _, err := src.ValidateConnection(context.Background()); err != nil {
		t.Fatalf("expected valid snapshot, got %v", err)
	}

	missing := New(filepath.Join(t.TempDir(), "absent.json"), nil)
	if _, err := missing.ValidateConnection(context.Background()); err == nil {
		t.Fatalf("expected error for missing snapshot")
	}
}

func TestMarkProcessedNoOp(t *testing.T) {
	src := New(writeSnapshot(t), nil)
	if err := src.MarkProcessed(context.Background(), "m1"); err != nil {
		t.Fatalf("mark processed must be a no-op, got %v", err)
	}
}
