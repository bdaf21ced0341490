package imap

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	goimap "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/nhle/mailtriage/internal/source"
)

const defaultMax = 20

// Source fetches messages from an IMAP server using go-imap v2.
// Each operation opens a fresh connection; IMAP sessions are cheap
// enough for the batch sizes involved and this avoids idle timeouts.
type Source struct {
	host     string
	port     string
	username string
	password string
	tls      bool
}

// New creates an IMAP source configuration. No connection is made
// until the first operation.
func New(host, port, username, password string, tls bool) *Source {
	return &Source{
		host:     host,
		port:     port,
		username: username,
		password: password,
		tls:      tls,
	}
}

// Type returns the source type identifier.
func (s *Source) Type() source.SourceType {
	return source.SourceTypeIMAP
}

// connect dials the server, authenticates, and selects INBOX. The
// caller must Logout the returned client.
func (s *Source) connect(_ context.Context) (*imapclient.Client, error) {
	addr := s.host + ":" + s.port

	var client *imapclient.Client
	var err error

	if s.tls {
		client, err = imapclient.DialTLS(addr, nil)
	} else {
		client, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	if err := client.Login(s.username, s.password).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, &source.AuthError{
			SourceType: source.SourceTypeIMAP,
			Message: fmt.Sprintf(
				"authentication failed for %s: %v", s.username, err,
			),
		}
	}

	if _, err := client.Select("INBOX", nil).Wait(); err != nil {
		_ = client.Logout().Wait()
		return nil, fmt.Errorf("selecting INBOX: %w", err)
	}

	return client, nil
}

// ValidateConnection verifies credentials by logging in and selecting
// the inbox.
func (s *Source) ValidateConnection(ctx context.Context) (string, error) {
	client, err := s.connect(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = client.Logout().Wait() }()

	return fmt.Sprintf("connected to %s:%s as %s", s.host, s.port, s.username), nil
}

// Fetch searches the inbox and returns the most recent matching
// messages as raw part trees. The query, when set, is used as an IMAP
// TEXT search term.
func (s *Source) Fetch(
	ctx context.Context,
	opts source.FetchOptions,
) ([]source.RawMessage, error) {
	client, err := s.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = client.Logout().Wait() }()

	criteria := &goimap.SearchCriteria{}
	if opts.Query != "" {
		criteria.Text = []string{opts.Query}
	}

	searchData, err := client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching messages: %w", err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	max := opts.Max
	if max <= 0 {
		max = defaultMax
	}
	if len(uids) > max {
		uids = uids[len(uids)-max:]
	}

	uidSet := goimap.UIDSetNum(uids...)
	bodySection := &goimap.FetchItemBodySection{Peek: true}

	fetchCmd := client.Fetch(uidSet, &goimap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*goimap.FetchItemBodySection{bodySection},
	})
	defer fetchCmd.Close()

	var msgs []source.RawMessage
	for {
		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		raw := rawFromBuffer(buf, bodySection)
		msgs = append(msgs, raw)
	}

	if err := fetchCmd.Close(); err != nil {
		return msgs, fmt.Errorf("fetching messages: %w", err)
	}

	return msgs, nil
}

// MarkProcessed flags the message so later runs can skip it. The id is
// the UID assigned at fetch time.
func (s *Source) MarkProcessed(ctx context.Context, id string) error {
	uid, err := strconv.ParseUint(id, 10, 32)
	if err != nil {
		return fmt.Errorf("invalid IMAP message id %q: %w", id, err)
	}

	client, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = client.Logout().Wait() }()

	storeCmd := client.Store(goimap.UIDSetNum(goimap.UID(uid)), &goimap.StoreFlags{
		Op:     goimap.StoreFlagsAdd,
		Silent: true,
		Flags:  []goimap.Flag{goimap.FlagFlagged},
	}, nil)

	return storeCmd.Close()
}

// rawFromBuffer maps a fetched message buffer onto the
// provider-neutral raw form. The MIME body is parsed with go-message;
// part bodies arrive already transfer-decoded, so Encoding stays
// empty on the resulting parts.
func rawFromBuffer(
	buf *imapclient.FetchMessageBuffer,
	section *goimap.FetchItemBodySection,
) source.RawMessage {
	raw := source.RawMessage{
		ID: strconv.FormatUint(uint64(buf.UID), 10),
	}

	if buf.Envelope != nil {
		raw.Subject = buf.Envelope.Subject
		raw.Date = buf.Envelope.Date

		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			if from.Name != "" {
				raw.From = fmt.Sprintf("%s <%s>", from.Name, from.Addr())
			} else {
				raw.From = from.Addr()
			}
		}
		for _, to := range buf.Envelope.To {
			raw.To = append(raw.To, to.Addr())
		}
	}

	if body := buf.FindBodySection(section); body != nil {
		raw.Payload = parseBody(body)
	}

	return raw
}

// parseBody converts an RFC 5322 message body into a part tree. On a
// parse failure the whole body is treated as plain text.
func parseBody(raw []byte) source.RawPart {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		return source.RawPart{MIMEType: "text/plain", Data: raw}
	}
	defer mr.Close()

	root := source.RawPart{MIMEType: "multipart/mixed"}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			break
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			// Attachments are out of scope for body extraction.
			continue
		}

		contentType, _, _ := header.ContentType()
		if !strings.HasPrefix(contentType, "text/") {
			continue
		}

		data, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		// go-message already applied the transfer encoding and charset,
		// so the part carries plain UTF-8 bytes.
		root.Parts = append(root.Parts, source.RawPart{
			MIMEType: contentType,
			Data:     data,
		})
	}

	if len(root.Parts) == 1 {
		return root.Parts[0]
	}
	return root
}
