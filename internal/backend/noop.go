package backend

import (
	"context"

	"github.com/nhle/mailtriage/internal/model"
)

// NoOp is the fetch-only backend. It performs no work but still
// populates the default category and an empty action list so
// downstream consumers never branch on absence.
type NoOp struct{}

// NewNoOp creates the no-op backend.
func NewNoOp() *NoOp {
	return &NoOp{}
}

// Kind returns the no-op backend identifier.
func (n *NoOp) Kind() model.BackendKind {
	return model.BackendNoOp
}

// Process returns a default result regardless of the requested tasks.
func (n *NoOp) Process(
	_ context.Context,
	msg model.Message,
	_ model.PromptConfig,
	_ []model.Task,
) model.ProcessingResult {
	return model.NewResult(msg.ID, model.BackendNoOp)
}
