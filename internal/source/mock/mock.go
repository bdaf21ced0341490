package mock

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/nhle/mailtriage/internal/source"
)

// Source serves raw messages from a local JSON snapshot file, so the
// pipeline can run end to end without provider credentials.
type Source struct {
	path string
	ids  source.IDPolicy
}

// New creates a mock source reading from the snapshot at path. A nil
// id policy defaults to content hashing, which keeps ids stable across
// re-reads of the same snapshot.
func New(path string, ids source.IDPolicy) *Source {
	if ids == nil {
		ids = source.ContentHashID
	}
	return &Source{path: path, ids: ids}
}

// Type returns the source type identifier.
func (s *Source) Type() source.SourceType {
	return source.SourceTypeMock
}

// ValidateConnection checks that the snapshot file exists and parses.
func (s *Source) ValidateConnection(ctx context.Context) (string, error) {
	msgs, err := s.load()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("snapshot %s holds %d messages", s.path, len(msgs)), nil
}

// Fetch returns the snapshot's messages in file order, assigning ids
// where the snapshot carries none. The query is ignored; mock
// snapshots are small enough to triage whole.
func (s *Source) Fetch(
	_ context.Context,
	opts source.FetchOptions,
) ([]source.RawMessage, error) {
	msgs, err := s.load()
	if err != nil {
		return nil, err
	}

	for i := range msgs {
		if msgs[i].ID == "" {
			msgs[i].ID = s.ids(&msgs[i])
		}
	}

	if opts.Max > 0 && len(msgs) > opts.Max {
		msgs = msgs[:opts.Max]
	}

	return msgs, nil
}

// MarkProcessed is a no-op; snapshots have no provider-side state.
func (s *Source) MarkProcessed(_ context.Context, _ string) error {
	return nil
}

func (s *Source) load() ([]source.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot %s: %w", s.path, err)
	}

	var msgs []source.RawMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", s.path, err)
	}

	return msgs, nil
}
