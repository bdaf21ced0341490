package backend

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/nhle/mailtriage/internal/model"
)

// maxActionItems caps heuristic extraction so a pathological message
// cannot produce unbounded output.
const maxActionItems = 10

// categoryRule matches a category label against keyword substrings in
// the subject and body. First matching rule wins.
type categoryRule struct {
	label    string
	keywords []string
}

// categoryRules is the offline categorization table. The labels and
// keywords are tunable; matching is case-insensitive substring.
var categoryRules = []categoryRule{
	{"newsletter", []string{"unsubscribe", "newsletter", "subscribe", "weekly digest"}},
	{"spam", []string{"congratulations", "you have won", "free offer", "claim your prize", "winner"}},
	{"todo", []string{"please", "could you", "can you", "action required", "deadline", "todo"}},
	{"important", []string{"urgent", "asap", "important", "reminder"}},
}

// actionMarkers flag a body line as a probable action item.
var actionMarkers = []string{
	"please", "could you", "can you", "action:", "todo", "due ", "deadline",
}

// listLinePattern matches bullet or numbered list lines.
var listLinePattern = regexp.MustCompile(`^\s*([-*•]|\d+[.)])\s+`)

// Heuristic is the offline deterministic backend: keyword
// categorization, marker-based action extraction, and a templated
// acknowledgment draft. It never calls an external service and is
// unconditionally failure-free.
type Heuristic struct{}

// NewHeuristic creates the heuristic backend.
func NewHeuristic() *Heuristic {
	return &Heuristic{}
}

// Kind returns the heuristic backend identifier.
func (h *Heuristic) Kind() model.BackendKind {
	return model.BackendHeuristic
}

// Process categorizes, extracts action items, and drafts a reply using
// only local rules.
func (h *Heuristic) Process(
	_ context.Context,
	msg model.Message,
	_ model.PromptConfig,
	tasks []model.Task,
) model.ProcessingResult {
	result := model.NewResult(msg.ID, model.BackendHeuristic)

	if requested(tasks, model.TaskCategorize) {
		result.Category, result.CategoryReason = categorize(msg)
	}
	if requested(tasks, model.TaskExtractActions) {
		result.ActionItems = extractActions(msg.BodyText)
	}
	if requested(tasks, model.TaskDraftReply) {
		result.DraftReply = draftAcknowledgment(msg)
	}

	return result
}

// categorize returns the first rule whose keywords appear in the
// subject or body, or the uncategorized default.
func categorize(msg model.Message) (label, reason string) {
	haystack := strings.ToLower(msg.Subject + "\n" + msg.BodyText)

	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(haystack, kw) {
				return rule.label, fmt.Sprintf("matched keyword %q", kw)
			}
		}
	}

	return model.CategoryUncategorized, ""
}

// extractActions scans body lines for imperative markers, list lines,
// and recipient-directed questions, returning them verbatim up to the
// cap. The returned slice is never nil.
func extractActions(body string) []string {
	items := []string{}

	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !isActionLine(trimmed) {
			continue
		}

		items = append(items, trimmed)
		if len(items) >= maxActionItems {
			break
		}
	}

	return items
}

func isActionLine(line string) bool {
	lower := strings.ToLower(line)

	for _, marker := range actionMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	if listLinePattern.MatchString(line) {
		return true
	}
	// Questions aimed at the recipient read as requests.
	if strings.HasSuffix(lower, "?") && strings.Contains(lower, "you") {
		return true
	}

	return false
}

// draftAcknowledgment produces a short templated reply referencing the
// subject and sender. Nothing is ever sent; the draft only goes to the
// draft store.
func draftAcknowledgment(msg model.Message) string {
	subject := msg.Subject
	if subject == "" {
		subject = "your email"
	}

	sender := senderName(msg.Sender)

	return fmt.Sprintf(
		"Hi %s,\n\nThanks for your message regarding %q. "+
			"I have received it and will follow up shortly.\n\nBest regards",
		sender, subject,
	)
}

// senderName extracts a display name from a From value like
// "Alice <alice@example.com>", falling back to the mailbox name.
func senderName(from string) string {
	if from == "" {
		return "there"
	}
	if idx := strings.Index(from, "<"); idx > 0 {
		if name := strings.TrimSpace(from[:idx]); name != "" {
			return strings.Trim(name, `"`)
		}
	}
	if idx := strings.Index(from, "@"); idx > 0 {
		return from[:idx]
	}
	return from
}
