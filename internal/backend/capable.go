package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/template"

	"github.com/nhle/mailtriage/internal/model"
)

// Service is the language-model collaborator: one rendered prompt in,
// one free-text response out. No structured output is guaranteed.
type Service interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Capable delegates processing to a language-model service, one call
// per requested task. A failure in one task never aborts the others;
// it is recorded in the result's Error field and the corresponding
// field is left at its default rather than silently substituting
// heuristic output.
type Capable struct {
	svc Service
}

// NewCapable creates the capable backend on top of svc.
func NewCapable(svc Service) *Capable {
	return &Capable{svc: svc}
}

// Kind returns the capable backend identifier.
func (c *Capable) Kind() model.BackendKind {
	return model.BackendCapable
}

// Process renders each requested task's prompt template, issues the
// service call, and parses the response leniently.
func (c *Capable) Process(
	ctx context.Context,
	msg model.Message,
	prompts model.PromptConfig,
	tasks []model.Task,
) model.ProcessingResult {
	result := model.NewResult(msg.ID, model.BackendCapable)

	var taskErrs []string
	fail := func(task model.Task, err error) {
		taskErrs = append(taskErrs, fmt.Sprintf("%s: %v", task, err))
	}

	for _, task := range tasks {
		response, err := c.runTask(ctx, msg, prompts, task)
		if err != nil {
			fail(task, err)
			continue
		}

		switch task {
		case model.TaskCategorize:
			label, reason, ok := ParseCategory(response)
			if !ok {
				fail(task, fmt.Errorf("empty response"))
				continue
			}
			result.Category = label
			result.CategoryReason = reason

		case model.TaskExtractActions:
			result.ActionItems = ParseActionItems(response)

		case model.TaskDraftReply:
			draft := strings.TrimSpace(response)
			if draft == "" {
				fail(task, fmt.Errorf("empty response"))
				continue
			}
			result.DraftReply = draft

		default:
			fail(task, fmt.Errorf("unknown task"))
		}
	}

	result.Error = strings.Join(taskErrs, "; ")
	return result
}

// runTask renders the task's template with the message fields and
// issues a single service call.
func (c *Capable) runTask(
	ctx context.Context,
	msg model.Message,
	prompts model.PromptConfig,
	task model.Task,
) (string, error) {
	prompt, err := renderPrompt(prompts.Template(task), task, msg)
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return c.svc.Complete(ctx, prompt)
}

// renderPrompt executes tmpl with the message as its data. Templates
// reference fields of the canonical Message (.Subject, .Sender,
// .BodyText, ...).
func renderPrompt(tmpl string, task model.Task, msg model.Message) (string, error) {
	t, err := template.New(string(task)).Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, msg); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// --- Messages API client ---

const (
	defaultAPIURL = "https://api.anthropic.com/v1/messages"
	apiVersion    = "2023-06-01"
)

// AnthropicClient implements Service against the Claude Messages API.
type AnthropicClient struct {
	apiKey    string
	model     string
	maxTokens int
	apiURL    string
	client    *http.Client
}

// NewAnthropicClient creates a Messages API client. An empty apiURL
// selects the production endpoint; tests point it at a local server.
func NewAnthropicClient(
	apiKey string,
	modelName string,
	maxTokens int,
	apiURL string,
) *AnthropicClient {
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &AnthropicClient{
		apiKey:    apiKey,
		model:     modelName,
		maxTokens: maxTokens,
		apiURL:    apiURL,
		client:    &http.Client{},
	}
}

// Complete sends one user message and returns the concatenated text
// content of the response.
func (a *AnthropicClient) Complete(
	ctx context.Context,
	prompt string,
) (string, error) {
	reqBody := apiRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages: []apiMessage{
			{Role: "user", Content: prompt},
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, a.apiURL, bytes.NewReader(bodyBytes),
	)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling model service: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr apiErrorResponse
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, apiErr.Error.Message)
		}
		return "", fmt.Errorf("API error (%d): %s", resp.StatusCode, string(respBody))
	}

	var result apiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}

	var parts []string
	for _, block := range result.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}

	return strings.Join(parts, ""), nil
}

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type apiResponse struct {
	ID         string            `json:"id"`
	Role       string            `json:"role"`
	Content    []apiContentBlock `json:"content"`
	Model      string            `json:"model"`
	StopReason string            `json:"stop_reason"`
}

type apiErrorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}
