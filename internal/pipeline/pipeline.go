package pipeline

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/nhle/mailtriage/internal/backend"
	"github.com/nhle/mailtriage/internal/model"
	"github.com/nhle/mailtriage/internal/store"
)

// Options configures a pipeline run.
type Options struct {
	// Tasks is the set of processing tasks to run per message. Empty
	// means all tasks.
	Tasks []model.Task

	// Fallback, when non-nil, processes a message again whenever the
	// primary backend records an error. The fallback's result replaces
	// the failed one and carries the fallback's provenance.
	Fallback backend.Backend

	// Drafts, when non-nil, persists every non-empty draft reply.
	Drafts store.DraftStore

	// Results, when non-nil, persists each result as soon as its
	// message finishes, so a crash mid-batch loses at most one.
	Results store.SnapshotStore

	// Logger receives per-message progress. Nil discards output.
	Logger *log.Logger
}

// Pipeline runs a batch of messages through a processing backend,
// isolating failures so one bad message never aborts the batch.
type Pipeline struct {
	primary backend.Backend
	prompts model.PromptConfig
	opts    Options
}

// New creates a pipeline around the given primary backend and prompt
// configuration.
func New(primary backend.Backend, prompts model.PromptConfig, opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard)
	}
	if len(opts.Tasks) == 0 {
		opts.Tasks = model.AllTasks()
	}
	return &Pipeline{primary: primary, prompts: prompts, opts: opts}
}

// Run processes every message in order and returns exactly one result
// per input message, in input order. A message that fails yields an
// error result in its slot; the batch always completes.
func (p *Pipeline) Run(ctx context.Context, msgs []model.Message) []model.ProcessingResult {
	results := make([]model.ProcessingResult, len(msgs))

	for i, msg := range msgs {
		p.opts.Logger.Debug("processing message",
			"id", msg.ID, "subject", msg.Subject, "backend", p.primary.Kind())

		result := p.processOne(ctx, p.primary, msg)

		if result.Error != "" && p.opts.Fallback != nil {
			p.opts.Logger.Warn("backend failed, retrying with fallback",
				"id", msg.ID, "error", result.Error,
				"fallback", p.opts.Fallback.Kind())
			result = p.processOne(ctx, p.opts.Fallback, msg)
		}

		if result.Error != "" {
			p.opts.Logger.Error("message processing failed",
				"id", msg.ID, "error", result.Error)
		}

		if p.opts.Drafts != nil && result.DraftReply != "" {
			draft := store.Draft{
				MessageID: msg.ID,
				Subject:   replySubject(msg.Subject),
				Body:      result.DraftReply,
			}
			if err := p.opts.Drafts.SaveDraft(ctx, draft); err != nil {
				p.opts.Logger.Error("saving draft failed",
					"id", msg.ID, "error", err)
			}
		}

		if p.opts.Results != nil {
			if err := p.opts.Results.SaveResults(ctx, []model.ProcessingResult{result}); err != nil {
				p.opts.Logger.Error("saving result failed",
					"id", msg.ID, "error", err)
			}
		}

		results[i] = result
	}

	return results
}

// processOne runs a single message through one backend, converting a
// panic into an error result so the batch survives.
func (p *Pipeline) processOne(
	ctx context.Context,
	b backend.Backend,
	msg model.Message,
) (result model.ProcessingResult) {
	defer func() {
		if r := recover(); r != nil {
			result = model.NewResult(msg.ID, b.Kind())
			result.Error = fmt.Sprintf("backend panic: %v", r)
		}
	}()

	result = b.Process(ctx, msg, p.prompts, p.opts.Tasks)
	result.MessageID = msg.ID
	if result.ActionItems == nil {
		result.ActionItems = []string{}
	}
	if result.Category == "" {
		result.Category = model.CategoryUncategorized
	}
	return result
}

// replySubject prefixes the subject for a reply draft, avoiding
// stacked "Re:" prefixes.
func replySubject(subject string) string {
	if subject == "" {
		return "Re: (no subject)"
	}
	if len(subject) >= 3 && (subject[:3] == "Re:" || subject[:3] == "RE:") {
		return subject
	}
	return "Re: " + subject
}
