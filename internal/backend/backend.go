// Package backend provides the three interchangeable processing
// backends that turn a canonical message plus a prompt configuration
// into a ProcessingResult: capable (language-model-backed), heuristic
// (offline deterministic), and no-op.
package backend

import (
	"context"

	"github.com/nhle/mailtriage/internal/model"
)

// Backend processes one message at a time. A backend is selected once
// per run, never per message; the orchestrator depends only on this
// interface and never on concrete variant identity.
type Backend interface {
	// Kind identifies the backend variant for provenance recording.
	Kind() model.BackendKind

	// Process runs the requested tasks for msg and returns one result.
	// Implementations never panic and never fail the whole message for
	// a single task: per-task failures are recorded in the result's
	// Error field with the other fields still populated.
	Process(
		ctx context.Context,
		msg model.Message,
		prompts model.PromptConfig,
		tasks []model.Task,
	) model.ProcessingResult
}

// requested reports whether task is in the requested set.
func requested(tasks []model.Task, task model.Task) bool {
	for _, t := range tasks {
		if t == task {
			return true
		}
	}
	return false
}
