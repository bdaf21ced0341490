package gmail

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/nhle/mailtriage/internal/source"
)

const (
	user         = "me"
	defaultMax   = 20
	defaultQuery = "in:inbox -in:draft"

	// processedLabel is applied by MarkProcessed so later queries can
	// exclude already-handled messages with -label:Processed.
	processedLabel = "Processed"
)

// Source fetches messages from the Gmail REST API.
type Source struct {
	srv *gmailapi.Service

	// processedLabelID caches the label id once resolved or created.
	processedLabelID string
}

// New creates a Gmail source from an OAuth client secret file and a
// stored token file. The token must already exist; interactive consent
// is handled by the authorize command.
func New(ctx context.Context, credentialsPath, tokenPath string) (*Source, error) {
	b, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("reading client secret file: %w", err)
	}

	oauthConfig, err := google.ConfigFromJSON(b, gmailapi.GmailModifyScope)
	if err != nil {
		return nil, fmt.Errorf("parsing client secret file: %w", err)
	}

	tok, err := tokenFromFile(tokenPath)
	if err != nil {
		return nil, &source.AuthError{
			SourceType: source.SourceTypeGmail,
			Message: fmt.Sprintf(
				"no stored token at %s; run 'mailtriage authorize gmail' first", tokenPath,
			),
		}
	}

	srv, err := gmailapi.NewService(ctx,
		option.WithHTTPClient(oauthConfig.Client(ctx, tok)))
	if err != nil {
		return nil, fmt.Errorf("creating Gmail service: %w", err)
	}

	return &Source{srv: srv}, nil
}

// Authorize runs the interactive OAuth consent flow and saves the
// resulting token to tokenPath for later runs.
func Authorize(ctx context.Context, credentialsPath, tokenPath string) error {
	b, err := os.ReadFile(credentialsPath)
	if err != nil {
		return fmt.Errorf("reading client secret file: %w", err)
	}

	oauthConfig, err := google.ConfigFromJSON(b, gmailapi.GmailModifyScope)
	if err != nil {
		return fmt.Errorf("parsing client secret file: %w", err)
	}

	authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Open the following link in your browser, then paste the authorization code:\n%v\n", authURL)

	var authCode string
	if _, err := fmt.Scan(&authCode); err != nil {
		return fmt.Errorf("reading authorization code: %w", err)
	}

	tok, err := oauthConfig.Exchange(ctx, authCode)
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}

	return saveToken(tokenPath, tok)
}

func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tok := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(tok); err != nil {
		return nil, fmt.Errorf("decoding token file: %w", err)
	}
	return tok, nil
}

func saveToken(path string, token *oauth2.Token) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("creating token file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}

// Type returns the source type identifier.
func (s *Source) Type() source.SourceType {
	return source.SourceTypeGmail
}

// ValidateConnection verifies credentials by fetching the user profile.
func (s *Source) ValidateConnection(ctx context.Context) (string, error) {
	profile, err := s.srv.Users.GetProfile(user).Context(ctx).Do()
	if err != nil {
		return "", wrapAPIError(err)
	}
	return fmt.Sprintf("connected to Gmail as %s", profile.EmailAddress), nil
}

// Fetch lists matching message ids and retrieves each one in full,
// converting the payload into the provider-neutral part tree.
func (s *Source) Fetch(
	ctx context.Context,
	opts source.FetchOptions,
) ([]source.RawMessage, error) {
	query := opts.Query
	if query == "" {
		query = defaultQuery
	}
	max := opts.Max
	if max <= 0 {
		max = defaultMax
	}

	list, err := s.srv.Users.Messages.List(user).
		MaxResults(int64(max)).
		Q(query).
		Context(ctx).
		Do()
	if err != nil {
		return nil, wrapAPIError(err)
	}

	msgs := make([]source.RawMessage, 0, len(list.Messages))
	for _, ref := range list.Messages {
		full, err := s.srv.Users.Messages.Get(user, ref.Id).
			Format("full").
			Context(ctx).
			Do()
		if err != nil {
			return nil, fmt.Errorf("fetching message %s: %w", ref.Id, wrapAPIError(err))
		}
		msgs = append(msgs, convertMessage(full))
	}

	return msgs, nil
}

// MarkProcessed applies the Processed label, creating it on first use.
func (s *Source) MarkProcessed(ctx context.Context, id string) error {
	labelID, err := s.ensureProcessedLabel(ctx)
	if err != nil {
		return err
	}

	_, err = s.srv.Users.Messages.Modify(user, id, &gmailapi.ModifyMessageRequest{
		AddLabelIds: []string{labelID},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("labeling message %s: %w", id, wrapAPIError(err))
	}
	return nil
}

// ensureProcessedLabel resolves the Processed label id, creating the
// label when it does not exist yet.
func (s *Source) ensureProcessedLabel(ctx context.Context) (string, error) {
	if s.processedLabelID != "" {
		return s.processedLabelID, nil
	}

	labels, err := s.srv.Users.Labels.List(user).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("listing labels: %w", wrapAPIError(err))
	}
	for _, l := range labels.Labels {
		if l.Name == processedLabel {
			s.processedLabelID = l.Id
			return l.Id, nil
		}
	}

	created, err := s.srv.Users.Labels.Create(user, &gmailapi.Label{
		Name:                  processedLabel,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("creating %s label: %w", processedLabel, wrapAPIError(err))
	}

	s.processedLabelID = created.Id
	return created.Id, nil
}

// convertMessage maps a Gmail API message onto the provider-neutral
// raw form. Body data stays base64url-encoded; decoding is the
// extractor's job.
func convertMessage(msg *gmailapi.Message) source.RawMessage {
	raw := source.RawMessage{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
	}

	if msg.Payload != nil {
		for _, header := range msg.Payload.Headers {
			switch header.Name {
			case "Subject":
				raw.Subject = header.Value
			case "From":
				raw.From = header.Value
			case "To":
				for _, addr := range strings.Split(header.Value, ",") {
					if trimmed := strings.TrimSpace(addr); trimmed != "" {
						raw.To = append(raw.To, trimmed)
					}
				}
			case "Date":
				raw.Date = parseDate(header.Value)
			}
		}
		raw.Payload = convertPart(msg.Payload)
	}

	if raw.Date.IsZero() && msg.InternalDate > 0 {
		raw.Date = time.UnixMilli(msg.InternalDate)
	}

	return raw
}

func convertPart(part *gmailapi.MessagePart) source.RawPart {
	p := source.RawPart{
		MIMEType: part.MimeType,
	}

	if part.Body != nil && part.Body.Data != "" {
		p.Data = []byte(part.Body.Data)
		p.Encoding = "base64url"
	}

	for _, h := range part.Headers {
		if strings.EqualFold(h.Name, "Content-Type") {
			if cs := charsetParam(h.Value); cs != "" {
				p.Charset = cs
			}
		}
	}

	for _, child := range part.Parts {
		p.Parts = append(p.Parts, convertPart(child))
	}

	return p
}

// charsetParam pulls the charset parameter out of a Content-Type
// header value, e.g. `text/plain; charset="UTF-8"`.
func charsetParam(contentType string) string {
	for _, param := range strings.Split(contentType, ";") {
		param = strings.TrimSpace(param)
		if strings.HasPrefix(strings.ToLower(param), "charset=") {
			return strings.Trim(param[len("charset="):], `"'`)
		}
	}
	return ""
}

// dateLayouts covers the Date header formats seen in the wild, tried
// in order.
var dateLayouts = []string{
	time.RFC1123Z,
	"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
	time.RFC1123,
	time.RFC822,
}

func parseDate(value string) time.Time {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}

	// Strip a trailing parenthesized zone name and retry.
	if open := strings.LastIndex(value, " ("); open != -1 {
		if end := strings.LastIndex(value, ")"); end > open {
			stripped := strings.TrimSpace(value[:open] + value[end+1:])
			for _, layout := range dateLayouts {
				if t, err := time.Parse(layout, stripped); err == nil {
					return t
				}
			}
		}
	}

	return time.Time{}
}

// wrapAPIError converts Gmail API auth failures into AuthError so the
// caller can distinguish expired credentials from transient errors.
func wrapAPIError(err error) error {
	if apiErr, ok := err.(*googleapi.Error); ok {
		if apiErr.Code == 401 || apiErr.Code == 403 {
			return &source.AuthError{
				SourceType: source.SourceTypeGmail,
				Message:    apiErr.Message,
			}
		}
	}
	return err
}
