package extract

import (
	"github.com/nhle/mailtriage/internal/model"
	"github.com/nhle/mailtriage/internal/source"
)

// Normalize maps a raw message plus its extracted bodies into the
// canonical Message. The mapping is pure: missing header fields become
// typed defaults, never errors. The provider id is carried verbatim;
// when the source supplied none, ids generates one (content hash when
// ids is nil, so re-normalizing the same raw message yields the same id).
func Normalize(
	raw source.RawMessage,
	bodyText, bodyHTML string,
	ids source.IDPolicy,
) model.Message {
	id := raw.ID
	if id == "" {
		if ids == nil {
			ids = source.ContentHashID
		}
		id = ids(&raw)
	}

	recipients := make([]string, len(raw.To))
	copy(recipients, raw.To)

	return model.Message{
		ID:         id,
		Subject:    raw.Subject,
		Sender:     raw.From,
		Recipients: recipients,
		Timestamp:  raw.Date,
		BodyText:   bodyText,
		BodyHTML:   bodyHTML,
		ThreadID:   raw.ThreadID,
		RawRef:     raw.ID,
	}
}
