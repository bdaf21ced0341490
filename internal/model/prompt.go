package model

// Task names the independent operations a backend can be asked to
// perform for a message. Each task maps to its own prompt template and,
// for the capable backend, its own service call.
type Task string

const (
	TaskCategorize     Task = "categorize"
	TaskExtractActions Task = "extract_actions"
	TaskDraftReply     Task = "draft_reply"
)

// AllTasks lists every known task in execution order.
func AllTasks() []Task {
	return []Task{TaskCategorize, TaskExtractActions, TaskDraftReply}
}

// PromptConfig maps task names to prompt template strings. It is
// supplied externally (prompt store or config) and read-only to the
// backends.
type PromptConfig map[Task]string

// defaultPrompts are substituted whenever a requested task has no
// template, so a backend can always render something sensible.
var defaultPrompts = PromptConfig{
	TaskCategorize: "Categorize the following email into one of: " +
		"important, newsletter, spam, todo. Reply with the category " +
		"label on the first line and a one-line reason on the second.\n\n" +
		"Subject: {{.Subject}}\nFrom: {{.Sender}}\n\n{{.BodyText}}",
	TaskExtractActions: "Extract action items from the following email. " +
		"Reply with one item per line, nothing else. Reply with an " +
		"empty line if there are none.\n\n" +
		"Subject: {{.Subject}}\n\n{{.BodyText}}",
	TaskDraftReply: "Draft a short, professional reply to the following " +
		"email. Reply with the body text only.\n\n" +
		"Subject: {{.Subject}}\nFrom: {{.Sender}}\n\n{{.BodyText}}",
}

// Template returns the template for task, falling back to the built-in
// default when the config has no non-empty entry.
func (p PromptConfig) Template(task Task) string {
	if p != nil {
		if tmpl, ok := p[task]; ok && tmpl != "" {
			return tmpl
		}
	}
	return defaultPrompts[task]
}

// DefaultPrompts returns a copy of the built-in prompt templates,
// used to seed a fresh prompt store.
func DefaultPrompts() PromptConfig {
	cfg := make(PromptConfig, len(defaultPrompts))
	for task, tmpl := range defaultPrompts {
		cfg[task] = tmpl
	}
	return cfg
}
