// Package handler provides the HTTP surface of the relay.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tnphuc/claude-relay/internal/domain"
)

// Completer is the completion client the handlers delegate to.
// *chat.Client satisfies this.
type Completer interface {
	Send(ctx context.Context, message string, history []domain.Turn, mode string) (*domain.CompletionResult, error)
	Stream(ctx context.Context, message string, history []domain.Turn, mode string) (<-chan domain.StreamEvent, error)
	Model() string
}

// ModeCatalog lists the configured chat modes.
// *config.Configuration satisfies this.
type ModeCatalog interface {
	ModeKeys() []string
}

// DefaultMode is used when a request does not name a chat mode.
const DefaultMode = "assistant"

// ChatHandler exposes the completion client over HTTP.
type ChatHandler struct {
	completer Completer
	modes     ModeCatalog
	keys      *domain.KeyRing
	logger    *slog.Logger
}

// ChatHandlerOption is a functional option for configuring ChatHandler.
type ChatHandlerOption func(*ChatHandler)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) ChatHandlerOption {
	return func(h *ChatHandler) {
		h.logger = logger
	}
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(completer Completer, modes ModeCatalog, keys *domain.KeyRing, opts ...ChatHandlerOption) *ChatHandler {
	h := &ChatHandler{
		completer: completer,
		modes:     modes,
		keys:      keys,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// chatRequest is the request body for both chat endpoints.
type chatRequest struct {
	Message string        `json:"message"`
	History []domain.Turn `json:"history"`
	Mode    string        `json:"mode"`
}

// chatResponse is the response body for POST /v1/chat.
type chatResponse struct {
	Model          string `json:"model"`
	Answer         string `json:"answer"`
	InputTokens    int    `json:"input_tokens"`
	OutputTokens   int    `json:"output_tokens"`
	DiscardedTurns int    `json:"discarded_turns"`
}

// HandleChat handles POST /v1/chat.
// It runs a blocking completion and returns the final answer with token usage.
func (h *ChatHandler) HandleChat(c *gin.Context) {
	req, ok := h.bindChatRequest(c)
	if !ok {
		return
	}

	result, err := h.completer.Send(c.Request.Context(), req.Message, req.History, req.Mode)
	if err != nil {
		status, errType := classifyHandlerError(err)
		h.logger.Error("completion failed",
			slog.String("mode", req.Mode),
			slog.String("error_type", errType),
			slog.String("error", err.Error()),
		)
		h.sendError(c, status, errType, err.Error())
		return
	}

	c.Set("mode", req.Mode)
	c.Set("discarded_turns", result.DiscardedTurns)

	c.JSON(http.StatusOK, chatResponse{
		Model:          h.completer.Model(),
		Answer:         result.Answer,
		InputTokens:    result.InputTokens,
		OutputTokens:   result.OutputTokens,
		DiscardedTurns: result.DiscardedTurns,
	})
}

// HandleChatStream handles POST /v1/chat/stream.
// The response is a server-sent event stream: each event's data is one
// JSON-encoded progress snapshot, the last one with status "finished". A
// failure after the stream has opened arrives as a final event with status
// "error", since the 200 header is already on the wire.
func (h *ChatHandler) HandleChatStream(c *gin.Context) {
	req, ok := h.bindChatRequest(c)
	if !ok {
		return
	}

	events, err := h.completer.Stream(c.Request.Context(), req.Message, req.History, req.Mode)
	if err != nil {
		status, errType := classifyHandlerError(err)
		h.sendError(c, status, errType, err.Error())
		return
	}

	c.Set("mode", req.Mode)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)

	for ev := range events {
		if ev.Err != nil {
			_, errType := classifyHandlerError(ev.Err)
			h.logger.Error("stream failed",
				slog.String("mode", req.Mode),
				slog.String("error_type", errType),
				slog.String("error", ev.Err.Error()),
			)
			h.writeSSE(c, gin.H{
				"status": "error",
				"error": gin.H{
					"message": ev.Err.Error(),
					"type":    errType,
				},
			})
			c.Writer.Flush()
			return
		}

		h.writeSSE(c, ev)
		c.Writer.Flush()
	}
}

// writeSSE writes one server-sent event with a JSON data payload.
func (h *ChatHandler) writeSSE(c *gin.Context, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Error("failed to encode stream event", slog.String("error", err.Error()))
		return
	}
	c.Writer.WriteString("data: ")
	c.Writer.Write(data)
	c.Writer.WriteString("\n\n")
}

// bindChatRequest parses and validates the shared chat request body.
func (h *ChatHandler) bindChatRequest(c *gin.Context) (chatRequest, bool) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.sendError(c, http.StatusBadRequest, "invalid_request_error", "Invalid request body: "+err.Error())
		return chatRequest{}, false
	}

	if req.Message == "" {
		h.sendError(c, http.StatusBadRequest, "invalid_request_error", "message is required")
		return chatRequest{}, false
	}
	if req.Mode == "" {
		req.Mode = DefaultMode
	}

	return req, true
}

// classifyHandlerError maps a completion error to an HTTP status and a wire
// error type.
func classifyHandlerError(err error) (int, string) {
	var unsupported *domain.UnsupportedModeError
	if errors.As(err, &unsupported) {
		return http.StatusBadRequest, "unsupported_mode"
	}

	var exhausted *domain.HistoryExhaustedError
	if errors.As(err, &exhausted) {
		return http.StatusRequestEntityTooLarge, "history_exhausted"
	}

	var limited *domain.RateLimitedError
	if errors.As(err, &limited) {
		return http.StatusTooManyRequests, "rate_limited"
	}

	var unknown *domain.UnknownModelError
	if errors.As(err, &unknown) {
		return http.StatusInternalServerError, "unknown_model"
	}

	return http.StatusInternalServerError, "server_error"
}

// sendError sends an error response in the relay's wire format.
func (h *ChatHandler) sendError(c *gin.Context, status int, errType, message string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"message": message,
			"type":    errType,
		},
	})
}

// HandleModes handles GET /v1/modes.
// Returns the configured chat modes in sorted order.
func (h *ChatHandler) HandleModes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"modes":   h.modes.ModeKeys(),
		"default": DefaultMode,
	})
}

// HandleHealth handles GET /health.
// Reports key ring state alongside the configured model.
func (h *ChatHandler) HandleHealth(c *gin.Context) {
	active := h.keys.ActiveCount()

	status := "healthy"
	if active == 0 {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       status,
		"model":        h.completer.Model(),
		"active_keys":  active,
		"retired_keys": h.keys.RetiredCount(),
		"total_keys":   h.keys.Size(),
	})
}
