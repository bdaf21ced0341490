package backend

import (
	"reflect"
	"testing"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		name       string
		response   string
		wantLabel  string
		wantReason string
		wantOK     bool
	}{
		{
			name:       "label on first line",
			response:   "todo\ncontains a direct request",
			wantLabel:  "todo",
			wantReason: "contains a direct request",
			wantOK:     true,
		},
		{
			name:      "label with trailing period",
			response:  "Newsletter.",
			wantLabel: "newsletter",
			wantOK:    true,
		},
		{
			name:       "json object",
			response:   `{"category": "spam", "reason": "lottery language"}`,
			wantLabel:  "spam",
			wantReason: "lottery language",
			wantOK:     true,
		},
		{
			name:       "json wrapped in prose",
			response:   "Here you go:\n{\"category\": \"important\", \"reason\": \"from the CEO\"}",
			wantLabel:  "important",
			wantReason: "from the CEO",
			wantOK:     true,
		},
		{
			name:      "unstructured prose falls back to first line",
			response:  "This looks like spam to me\nbecause of the wording",
			wantLabel: "this looks like spam to me",
			wantOK:    true,
		},
		{
			name:   "empty response",
			wantOK: false,
		},
		{
			name:   "whitespace only",
			response: "  \n\t ",
			wantOK: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			label, reason, ok := ParseCategory(tc.response)
			if ok != tc.wantOK {
				t.Fatalf("expected ok=%v, got %v", tc.wantOK, ok)
			}
			if !ok {
				return
			}
			if label != tc.wantLabel {
				t.Errorf("expected label %q, got %q", tc.wantLabel, label)
			}
			if tc.wantReason != "" && reason != tc.wantReason {
				t.Errorf("expected reason %q, got %q", tc.wantReason, reason)
			}
		})
	}
}

func TestParseActionItems(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     []string
	}{
		{
			name:     "one per line",
			response: "send the report\nbook the room",
			want:     []string{"send the report", "book the room"},
		},
		{
			name:     "bullets stripped",
			response: "- send the report\n* book the room\n1. call Bob",
			want:     []string{"send the report", "book the room", "call Bob"},
		},
		{
			name:     "json string array",
			response: `["send the report", "book the room"]`,
			want:     []string{"send the report", "book the room"},
		},
		{
			name:     "json task objects",
			response: `[{"task": "send the report", "deadline": "2025-06-06"}]`,
			want:     []string{"send the report"},
		},
		{
			name:     "none marker yields empty",
			response: "None.",
			want:     []string{},
		},
		{
			name:     "empty response yields empty",
			response: "",
			want:     []string{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := ParseActionItems(tc.response)
			if got == nil {
				t.Fatalf("result must never be nil")
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
		})
	}
}
