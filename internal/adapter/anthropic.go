// Package adapter implements the outbound integration with the Anthropic
// Messages API.
package adapter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tnphuc/claude-relay/internal/domain"
)

const (
	// DefaultBaseURL is the default Anthropic API endpoint.
	DefaultBaseURL = "https://api.anthropic.com"

	// DefaultTimeout is the default HTTP client timeout.
	DefaultTimeout = 60 * time.Second

	// apiVersion is the anthropic-version header value.
	apiVersion = "2023-06-01"

	messagesPath = "/v1/messages"
)

// AnthropicAdapter implements CompletionProvider against the Anthropic
// Messages API. API keys are drawn from a KeyRing per request; a key that
// fails authentication is retired from the rotation.
type AnthropicAdapter struct {
	keys       *domain.KeyRing
	baseURL    string
	httpClient *http.Client
}

// AnthropicAdapterOption is a functional option for configuring AnthropicAdapter.
type AnthropicAdapterOption func(*AnthropicAdapter)

// WithBaseURL sets a custom base URL for the Anthropic API.
func WithBaseURL(url string) AnthropicAdapterOption {
	return func(a *AnthropicAdapter) {
		a.baseURL = strings.TrimSuffix(url, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) AnthropicAdapterOption {
	return func(a *AnthropicAdapter) {
		a.httpClient = client
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) AnthropicAdapterOption {
	return func(a *AnthropicAdapter) {
		a.httpClient.Timeout = timeout
	}
}

// NewAnthropicAdapter creates a new AnthropicAdapter drawing keys from the
// given ring.
func NewAnthropicAdapter(keys *domain.KeyRing, opts ...AnthropicAdapterOption) *AnthropicAdapter {
	a := &AnthropicAdapter{
		keys:    keys,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// Complete performs a single blocking Messages API call.
func (a *AnthropicAdapter) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	httpResp, key, err := a.post(ctx, req, false)
	if err != nil {
		return CompletionResponse{}, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return CompletionResponse{}, fmt.Errorf("anthropic: read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return CompletionResponse{}, a.classifyError(httpResp.StatusCode, respBody, key)
	}

	var apiResp anthropicResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return CompletionResponse{}, fmt.Errorf("anthropic: unmarshal response: %w", err)
	}
	if apiResp.Type == "error" && apiResp.Error != nil {
		return CompletionResponse{}, a.classifyError(httpResp.StatusCode, respBody, key)
	}

	var answer strings.Builder
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			answer.WriteString(block.Text)
		}
	}

	return CompletionResponse{
		Answer:       answer.String(),
		InputTokens:  apiResp.Usage.InputTokens,
		OutputTokens: apiResp.Usage.OutputTokens,
	}, nil
}

// post builds and executes the Messages API request. It returns the raw
// response and the API key used, so callers can retire it on auth failures.
func (a *AnthropicAdapter) post(ctx context.Context, req CompletionRequest, stream bool) (*http.Response, string, error) {
	key, err := a.keys.Next()
	if err != nil {
		return nil, "", fmt.Errorf("anthropic: %w", err)
	}

	apiReq := anthropicRequest{
		Model:       req.Model,
		System:      req.System,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      stream,
	}

	body, err := json.Marshal(apiReq)
	if err != nil {
		return nil, "", fmt.Errorf("anthropic: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return nil, "", fmt.Errorf("anthropic: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", key)
	httpReq.Header.Set("anthropic-version", apiVersion)

	httpResp, err := a.httpClient.Do(httpReq)
	if err != nil {
		return nil, "", fmt.Errorf("anthropic: request failed: %w", err)
	}
	return httpResp, key, nil
}

// classifyError maps a non-200 provider response onto the domain error
// taxonomy. Both the HTTP status and the provider error type string are
// consulted, since the numeric codes are not guaranteed stable across
// provider versions.
func (a *AnthropicAdapter) classifyError(status int, body []byte, key string) error {
	var errResp anthropicErrorResponse
	_ = json.Unmarshal(body, &errResp)

	errType := errResp.Error.Type
	message := errResp.Error.Message
	if message == "" {
		message = string(body)
	}

	switch {
	case status == http.StatusRequestEntityTooLarge || errType == "request_too_large":
		return &domain.ContextTooLargeError{
			StatusCode:   status,
			ProviderType: errType,
			Message:      message,
		}
	case status == http.StatusTooManyRequests || errType == "rate_limit_error":
		return &domain.RateLimitedError{
			StatusCode: status,
			Message:    message,
		}
	case status == http.StatusUnauthorized || errType == "authentication_error":
		a.keys.Retire(key)
		return fmt.Errorf("anthropic: authentication failed [%d %s]: %s", status, errType, message)
	default:
		return fmt.Errorf("anthropic: API error [%d %s]: %s", status, errType, message)
	}
}

// Anthropic API wire types.

type anthropicRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	TopP        float64   `json:"top_p,omitempty"`
	Stream      bool      `json:"stream,omitempty"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicResponse struct {
	ID         string             `json:"id"`
	Type       string             `json:"type"`
	Role       string             `json:"role"`
	Model      string             `json:"model"`
	Content    []anthropicContent `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      anthropicUsage     `json:"usage"`
	Error      *anthropicError    `json:"error,omitempty"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type anthropicErrorResponse struct {
	Type  string         `json:"type"`
	Error anthropicError `json:"error"`
}
