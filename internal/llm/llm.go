// Package llm talks to an OpenRouter-compatible chat-completions endpoint,
// including the function-calling tools array.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ledgerchat/ledgerchat/internal/config"
	"github.com/ledgerchat/ledgerchat/internal/registry"
)

const defaultRequestTimeout = 90 * time.Second

// Message is one chat-completions message.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a function call the model requested.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall carries the tool name and its JSON-encoded arguments.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Completion is the model's turn: either plain text or tool calls.
type Completion struct {
	Content   string
	ToolCalls []ToolCall
}

// CreditsError means the account is out of credits (HTTP 402).
type CreditsError struct{ Message string }

func (e *CreditsError) Error() string {
	return fmt.Sprintf("model provider is out of credits: %s", e.Message)
}

// RateLimitError means the provider is throttling us (HTTP 429).
type RateLimitError struct{ Message string }

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("model provider rate limit: %s", e.Message)
}

// APIError covers other non-2xx responses.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("model request failed with status %d: %s", e.Status, e.Message)
}

// Client calls one configured model.
type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	log     *slog.Logger
}

func New(cfg config.ModelConfig, log *slog.Logger) (*Client, error) {
	timeout := defaultRequestTimeout
	if cfg.RequestTimeout != "" {
		d, err := time.ParseDuration(cfg.RequestTimeout)
		if err != nil {
			return nil, fmt.Errorf("model request timeout: %w", err)
		}
		timeout = d
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.ID,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}, nil
}

type chatRequest struct {
	Model    string                  `json:"model"`
	Messages []Message               `json:"messages"`
	Tools    []registry.FunctionSpec `json:"tools,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends one chat-completions request and returns the model's turn.
func (c *Client) Complete(ctx context.Context, messages []Message, tools []registry.FunctionSpec) (*Completion, error) {
	body, err := json.Marshal(chatRequest{Model: c.model, Messages: messages, Tools: tools})
	if err != nil {
		return nil, fmt.Errorf("encoding model request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building model request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, fmt.Errorf("reading model response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := apiErrorMessage(data)
		switch resp.StatusCode {
		case http.StatusPaymentRequired:
			return nil, &CreditsError{Message: msg}
		case http.StatusTooManyRequests:
			return nil, &RateLimitError{Message: msg}
		default:
			return nil, &APIError{Status: resp.StatusCode, Message: msg}
		}
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("decoding model response: %w", err)
	}
	if parsed.Error != nil {
		return nil, &APIError{Status: resp.StatusCode, Message: parsed.Error.Message}
	}
	if len(parsed.Choices) == 0 {
		return nil, &APIError{Status: resp.StatusCode, Message: "no choices in response"}
	}

	msg := parsed.Choices[0].Message
	return &Completion{Content: msg.Content, ToolCalls: msg.ToolCalls}, nil
}

func apiErrorMessage(data []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	msg := strings.TrimSpace(string(data))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
