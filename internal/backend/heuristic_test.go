package backend

import (
	"context"
	"strings"
	"testing"

	"github.com/nhle/mailtriage/internal/model"
)

func TestHeuristicCategorize(t *testing.T) {
	tests := []struct {
		name    string
		subject string
		body    string
		want    string
	}{
		{
			name:    "newsletter keywords",
			subject: "Weekly digest",
			body:    "Click here to unsubscribe.",
			want:    "newsletter",
		},
		{
			name:    "spam keywords",
			subject: "You have won!",
			body:    "Claim your prize now.",
			want:    "spam",
		},
		{
			name:    "request language",
			subject: "Report",
			body:    "Please send the report by Friday.",
			want:    "todo",
		},
		{
			name:    "no match",
			subject: "Lunch",
			body:    "See you at noon.",
			want:    model.CategoryUncategorized,
		},
	}

	h := NewHeuristic()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg := model.Message{ID: "m", Subject: tc.subject, BodyText: tc.body}
			result := h.Process(
				context.Background(), msg, nil,
				[]model.Task{model.TaskCategorize},
			)
			if result.Category != tc.want {
				t.Fatalf("expected category %q, got %q", tc.want, result.Category)
			}
			if result.BackendUsed != model.BackendHeuristic {
				t.Fatalf("expected heuristic provenance, got %q", result.BackendUsed)
			}
			if result.Error != "" {
				t.Fatalf("heuristic backend must be failure-free, got %q", result.Error)
			}
		})
	}
}

func TestHeuristicExtractActions(t *testing.T) {
	msg := model.Message{
		ID: "m",
		BodyText: "Hi team,\n" +
			"Please send the report by Friday.\n" +
			"- review the budget draft\n" +
			"Nothing else for now.\n" +
			"Could you also confirm the venue?\n",
	}

	result := NewHeuristic().Process(
		context.Background(), msg, nil,
		[]model.Task{model.TaskExtractActions},
	)

	if len(result.ActionItems) != 3 {
		t.Fatalf("expected 3 action items, got %v", result.ActionItems)
	}
	if !strings.Contains(result.ActionItems[0], "Please send the report by Friday.") {
		t.Errorf("expected verbatim request line, got %q", result.ActionItems[0])
	}
}

func TestHeuristicActionItemCap(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 25; i++ {
		sb.WriteString("please do thing\n")
	}

	result := NewHeuristic().Process(
		context.Background(),
		model.Message{ID: "m", BodyText: sb.String()},
		nil,
		[]model.Task{model.TaskExtractActions},
	)

	if len(result.ActionItems) != maxActionItems {
		t.Fatalf("expected cap of %d items, got %d", maxActionItems, len(result.ActionItems))
	}
}

func TestHeuristicDraftReply(t *testing.T) {
	msg := model.Message{
		ID:      "m",
		Subject: "Quarterly numbers",
		Sender:  "Alice <alice@example.com>",
	}

	result := NewHeuristic().Process(
		context.Background(), msg, nil,
		[]model.Task{model.TaskDraftReply},
	)

	if !strings.Contains(result.DraftReply, "Quarterly numbers") {
		t.Errorf("draft should reference the subject, got %q", result.DraftReply)
	}
	if !strings.Contains(result.DraftReply, "Alice") {
		t.Errorf("draft should reference the sender, got %q", result.DraftReply)
	}
}

func TestNoOpDefaults(t *testing.T) {
	msg := model.Message{ID: "m", Subject: "anything", BodyText: "please do x"}

	result := NewNoOp().Process(
		context.Background(), msg, nil, model.AllTasks(),
	)

	if result.Category != model.CategoryUncategorized {
		t.Errorf("expected %q, got %q", model.CategoryUncategorized, result.Category)
	}
	if result.ActionItems == nil || len(result.ActionItems) != 0 {
		t.Errorf("expected empty non-nil action items, got %#v", result.ActionItems)
	}
	if result.DraftReply != "" {
		t.Errorf("expected no draft, got %q", result.DraftReply)
	}
	if result.Error != "" {
		t.Errorf("expected no error, got %q", result.Error)
	}
	if result.BackendUsed != model.BackendNoOp {
		t.Errorf("expected noop provenance, got %q", result.BackendUsed)
	}
}
