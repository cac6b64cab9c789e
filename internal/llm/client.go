// Package llm adapts a remote chat-completion backend to the agent's
// "given the trajectory so far, produce the next tool decision" contract.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ksadov/backcast/internal/config"
	"github.com/ksadov/backcast/internal/models"
)

// ErrMalformedOutput marks a response the backend produced successfully but
// that does not contain a usable tool decision. Not retried: the fault is in
// the reasoning output, not the transport.
var ErrMalformedOutput = errors.New("malformed completion output")

// ToolDef describes one callable tool to the backend.
type ToolDef struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON schema for the arguments object
}

// Request carries everything the backend needs to pick the next action.
type Request struct {
	Example models.Example
	Steps   []models.Step
	Tools   []ToolDef
}

// Decision is the backend's next action: reasoning text plus a tool choice.
type Decision struct {
	Thought string
	Tool    string
	Args    map[string]any
}

// Client produces the next reasoning/tool decision for a trajectory.
// Implementations must be safe for concurrent use by many workers.
type Client interface {
	Decide(ctx context.Context, req Request) (Decision, error)
}

// apiError is a non-2xx response from the completion backend.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("completion backend returned %d: %s", e.Status, e.Body)
}

// Transient reports whether err is worth retrying: rate limits, server-side
// errors, and transport failures. Malformed output is never transient.
func Transient(err error) bool {
	if err == nil || errors.Is(err, ErrMalformedOutput) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *apiError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= 500
	}
	// Anything else from the transport layer (connection reset, DNS, ...)
	return true
}

// OpenAIClient talks to an OpenAI-compatible /chat/completions endpoint
// using function calling.
type OpenAIClient struct {
	model  string
	apiKey string
	params config.PromptParams
	client *resty.Client
}

// NewOpenAIClient creates a client for the configured backend. Retry is
// handled by RetryClient, so the underlying HTTP client does not retry.
func NewOpenAIClient(cfg config.ModelConfig, apiKey string) *OpenAIClient {
	client := resty.New()
	client.SetBaseURL(cfg.BaseURL)
	client.SetTimeout(120 * time.Second)

	return &OpenAIClient{
		model:  cfg.Model,
		apiKey: apiKey,
		params: cfg.Prompt,
		client: client,
	}
}

type chatMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []toolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

type toolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function functionCall `json:"function"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type toolSpec struct {
	Type     string       `json:"type"`
	Function functionSpec `json:"function"`
}

type functionSpec struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

// Decide renders the trajectory into a chat request and parses the returned
// tool call.
func (c *OpenAIClient) Decide(ctx context.Context, req Request) (Decision, error) {
	tools := make([]toolSpec, 0, len(req.Tools))
	for _, t := range req.Tools {
		tools = append(tools, toolSpec{
			Type: "function",
			Function: functionSpec{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	body := map[string]any{
		"model":       c.model,
		"messages":    renderMessages(req),
		"tools":       tools,
		"tool_choice": "required",
		"temperature": c.params.Temperature,
		"max_tokens":  c.params.MaxTokens,
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetBody(body).
		Post("/chat/completions")
	if err != nil {
		return Decision{}, fmt.Errorf("calling completion backend: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return Decision{}, &apiError{Status: resp.StatusCode(), Body: strings.TrimSpace(resp.String())}
	}

	var parsed struct {
		Choices []struct {
			Message chatMessage `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return Decision{}, fmt.Errorf("decoding completion response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Decision{}, fmt.Errorf("%w: no choices returned", ErrMalformedOutput)
	}

	msg := parsed.Choices[0].Message

	if len(msg.ToolCalls) > 0 {
		call := msg.ToolCalls[0]
		args := map[string]any{}
		if raw := strings.TrimSpace(call.Function.Arguments); raw != "" {
			if err := json.Unmarshal([]byte(raw), &args); err != nil {
				return Decision{}, fmt.Errorf("%w: tool arguments are not a JSON object: %v", ErrMalformedOutput, err)
			}
		}
		return Decision{
			Thought: msg.Content,
			Tool:    call.Function.Name,
			Args:    args,
		}, nil
	}

	// Some backends answer directly instead of calling finish. Accept a bare
	// number as a finish decision; anything else is malformed.
	if p, err := strconv.ParseFloat(strings.TrimSpace(msg.Content), 64); err == nil {
		return Decision{
			Thought: msg.Content,
			Tool:    "finish",
			Args:    map[string]any{"answer": p},
		}, nil
	}

	return Decision{}, fmt.Errorf("%w: response contains neither a tool call nor a numeric answer", ErrMalformedOutput)
}
