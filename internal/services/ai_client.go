package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/yungbote/videonotes-backend/internal/apperr"
	"github.com/yungbote/videonotes-backend/internal/logger"
	"github.com/yungbote/videonotes-backend/internal/repos"
	"github.com/yungbote/videonotes-backend/internal/types"
	"github.com/yungbote/videonotes-backend/internal/utils"
)

// AIClient is the generative backend boundary. Its output is untrusted free
// text; callers parse and validate before using it as structured data.
type AIClient interface {
	Chat(ctx context.Context, messages []AIMessage, opts *AIOptions) (*AICompletion, error)
}

type AIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type AIOptions struct {
	Temperature float32
	MaxTokens   int

	// Audit fields for the AI call log.
	Purpose string
	VideoID string
}

type AICompletion struct {
	Content string
}

type aiClient struct {
	httpClient *http.Client
	log        *logger.Logger
	apiKey     string
	baseURL    string
	chatModel  string

	// One retry with backoff on timeout/quota/5xx, per unit of work.
	maxRetries int
	backoff    time.Duration

	callLog repos.AICallLogRepo // optional
}

func NewAIClient(log *logger.Logger, callLog repos.AICallLogRepo) (AIClient, error) {
	serviceLog := log.With("service", "AIClient")
	apiKey := utils.GetEnv("OPENAI_API_KEY", "", log)
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	baseURL := utils.GetEnv("OPENAI_BASE_URL", "https://api.openai.com/v1", log)
	chatModel := utils.GetEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini", log)
	timeoutSec := utils.GetEnvAsInt("OPENAI_TIMEOUT_SECONDS", 120, log)

	return &aiClient{
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		log:        serviceLog,
		apiKey:     apiKey,
		baseURL:    baseURL,
		chatModel:  chatModel,
		maxRetries: 1,
		backoff:    2 * time.Second,
		callLog:    callLog,
	}, nil
}

type chatCompletionRequest struct {
	Model       string      `json:"model"`
	Messages    []AIMessage `json:"messages"`
	Temperature float32     `json:"temperature,omitempty"`
	MaxTokens   int         `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func (c *aiClient) Chat(ctx context.Context, messages []AIMessage, opts *AIOptions) (*AICompletion, error) {
	if opts == nil {
		opts = &AIOptions{}
	}
	started := time.Now()

	var completion *AICompletion
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.log.Warn("Retrying backend call", "purpose", opts.Purpose, "attempt", attempt, "error", lastErr)
			timer := time.NewTimer(c.backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				lastErr = apperr.NewBackendError(apperr.BackendTimeout, opts.Purpose, ctx.Err())
				c.record(ctx, messages, nil, opts, time.Since(started), lastErr)
				return nil, lastErr
			case <-timer.C:
			}
		}
		completion, lastErr = c.chatOnce(ctx, messages, opts)
		if lastErr == nil || !apperr.IsRetryableBackend(lastErr) {
			break
		}
	}

	c.record(ctx, messages, completion, opts, time.Since(started), lastErr)
	if lastErr != nil {
		return nil, lastErr
	}
	return completion, nil
}

func (c *aiClient) chatOnce(ctx context.Context, messages []AIMessage, opts *AIOptions) (*AICompletion, error) {
	body := chatCompletionRequest{
		Model:       c.chatModel,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportErr(opts.Purpose, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, apperr.NewBackendError(apperr.BackendUnavailable, opts.Purpose, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, apperr.NewBackendError(apperr.BackendQuotaExceeded, opts.Purpose, fmt.Errorf("http 429: %s", truncate(string(raw), 512)))
	case resp.StatusCode == http.StatusRequestTimeout:
		return nil, apperr.NewBackendError(apperr.BackendTimeout, opts.Purpose, fmt.Errorf("http 408"))
	case resp.StatusCode >= 500:
		return nil, apperr.NewBackendError(apperr.BackendUnavailable, opts.Purpose, fmt.Errorf("http %d: %s", resp.StatusCode, truncate(string(raw), 512)))
	case resp.StatusCode != http.StatusOK:
		return nil, apperr.NewBackendError(apperr.BackendMalformedOutput, opts.Purpose, fmt.Errorf("http %d: %s", resp.StatusCode, truncate(string(raw), 512)))
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, apperr.NewBackendError(apperr.BackendMalformedOutput, opts.Purpose, fmt.Errorf("decode response: %w", err))
	}
	if parsed.Error != nil {
		return nil, apperr.NewBackendError(apperr.BackendUnavailable, opts.Purpose, fmt.Errorf("%s: %s", parsed.Error.Type, parsed.Error.Message))
	}
	if len(parsed.Choices) == 0 {
		return nil, apperr.NewBackendError(apperr.BackendMalformedOutput, opts.Purpose, errors.New("no choices in response"))
	}

	return &AICompletion{Content: parsed.Choices[0].Message.Content}, nil
}

func classifyTransportErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.NewBackendError(apperr.BackendTimeout, op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperr.NewBackendError(apperr.BackendTimeout, op, err)
	}
	return apperr.NewBackendError(apperr.BackendUnavailable, op, err)
}

func (c *aiClient) record(ctx context.Context, messages []AIMessage, completion *AICompletion, opts *AIOptions, elapsed time.Duration, callErr error) {
	if c.callLog == nil {
		return
	}
	promptChars := 0
	for _, m := range messages {
		promptChars += len(m.Content)
	}
	completionChars := 0
	if completion != nil {
		completionChars = len(completion.Content)
	}
	errorKind := ""
	if kind, ok := apperr.BackendKind(callErr); ok {
		errorKind = string(kind)
	} else if callErr != nil {
		errorKind = "unknown"
	}
	row := &types.AICallLog{
		Purpose:         opts.Purpose,
		Model:           c.chatModel,
		VideoID:         opts.VideoID,
		PromptChars:     promptChars,
		CompletionChars: completionChars,
		LatencyMs:       elapsed.Milliseconds(),
		ErrorKind:       errorKind,
	}
	if err := c.callLog.Create(ctx, nil, row); err != nil {
		c.log.Warn("Failed to write AI call log", "error", err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
