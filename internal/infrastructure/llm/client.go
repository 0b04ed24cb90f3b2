// Package llm talks to the meal-sketch language model over its chat API.
// The model is an unreliable collaborator: everything it sends is treated
// as untrusted input and parsed into typed structures before use.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/macrocart/v2/internal/infrastructure/config"
	"github.com/macrocart/v2/internal/infrastructure/monitoring"
	apperrors "github.com/macrocart/v2/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string                 `json:"model"`
	Messages []chatMessage          `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type chatResponse struct {
	Model        string      `json:"model"`
	Message      chatMessage `json:"message"`
	Done         bool        `json:"done"`
	EvalCount    int         `json:"eval_count,omitempty"`
	EvalDuration int64       `json:"eval_duration,omitempty"`
}

// chat is the shared transport for both model clients. Each client owns its
// own wall-clock budget; the sketch call is allowed far longer than a
// per-meal description.
type chat struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	timeout     time.Duration
	httpClient  *http.Client
	logger      *zap.Logger
}

func newChat(cfg *config.LLMConfig, timeout time.Duration, metrics *monitoring.MetricsCollector, logger *zap.Logger) chat {
	return chat{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		timeout:     timeout,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(monitoring.InstrumentTransport(metrics, "llm", nil)),
		},
		logger: logger,
	}
}

// complete sends one system+user exchange and returns the assistant text.
func (c *chat) complete(ctx context.Context, system, user string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Stream: false,
		Options: map[string]interface{}{
			"temperature": c.temperature,
			"num_predict": c.maxTokens,
		},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", apperrors.NewBadRequestError(err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", apperrors.NewBadRequestError(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return "", apperrors.NewUpstreamTimeoutError("llm", err)
		}
		return "", apperrors.NewNetworkError("llm", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.NewNetworkError("llm", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", apperrors.NewRateLimitedError("llm", retryAfterMS(resp))
	case resp.StatusCode >= 500:
		return "", apperrors.NewUpstreamError("llm", resp.StatusCode, nil)
	default:
		return "", apperrors.NewAppError(apperrors.CodeBadRequest,
			"Upstream rejected the request",
			fmt.Sprintf("llm returned status %d", resp.StatusCode),
		).WithMetadata("status", resp.StatusCode)
	}

	var decoded chatResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", apperrors.NewAppError(apperrors.CodeUpstream5xx,
			"Upstream service error",
			"llm returned an unparseable payload",
		).WithCause(err)
	}
	if !decoded.Done {
		return "", apperrors.NewAppError(apperrors.CodeUpstream5xx,
			"Upstream service error",
			"llm response truncated before completion")
	}

	c.logger.Debug("Chat completion finished",
		zap.String("model", decoded.Model),
		zap.Int("eval_count", decoded.EvalCount),
		zap.Int64("eval_duration", decoded.EvalDuration))

	return decoded.Message.Content, nil
}

// extractJSON cuts the JSON object out of model output that may be wrapped
// in prose or markdown fences, taking everything between the first opening
// and the last closing brace.
func extractJSON(response string) (string, bool) {
	response = strings.TrimSpace(response)
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return response[start : end+1], true
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func retryAfterMS(resp *http.Response) int64 {
	seconds, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || seconds < 0 {
		return 0
	}
	return int64(seconds) * 1000
}
