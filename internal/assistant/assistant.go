// Package assistant answers free-form questions through the OpenAI chat
// completions API.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/teemow/officebot/internal/instrumentation"
	"github.com/teemow/officebot/internal/logging"
)

const (
	DefaultModel        = openai.GPT3Dot5Turbo
	DefaultSystemPrompt = "You are a helpful assistant."
)

// ErrEmptyQuestion is returned for a blank question.
var ErrEmptyQuestion = errors.New("question must not be empty")

// UpstreamError is a non-success response from the completion API.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("openai API returned status %d: %s", e.StatusCode, e.Body)
}

// Config holds the completion API settings.
type Config struct {
	APIKey string

	// Model defaults to gpt-3.5-turbo.
	Model string

	// BaseURL overrides the API base, e.g. for an OpenAI compatible gateway.
	BaseURL string

	// SystemPrompt defaults to DefaultSystemPrompt.
	SystemPrompt string
}

// Client answers questions with a single chat completion.
type Client struct {
	api          *openai.Client
	model        string
	systemPrompt string
	logger       *slog.Logger
	metrics      *instrumentation.Metrics
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a Client. httpClient may be nil.
func NewClient(cfg Config, httpClient *http.Client, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("assistant: API key is required")
	}

	occ := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		occ.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if httpClient != nil {
		occ.HTTPClient = httpClient
	}

	c := &Client{
		api:          openai.NewClientWithConfig(occ),
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,
		logger:       slog.Default(),
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.systemPrompt == "" {
		c.systemPrompt = DefaultSystemPrompt
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logging.WithProvider(c.logger, instrumentation.ProviderOpenAI)
	return c, nil
}

// Ask returns the first completion choice for question, trimmed.
func (c *Client) Ask(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrEmptyQuestion
	}

	ctx, span := instrumentation.StartProviderSpan(ctx, instrumentation.ProviderOpenAI, instrumentation.OperationChatCompletion)
	defer span.End()

	start := time.Now()
	answer, err := c.complete(ctx, question)
	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
		c.logger.Warn("chat completion failed", logging.Err(err))
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	c.metrics.RecordProviderOperation(ctx, instrumentation.ProviderOpenAI, instrumentation.OperationChatCompletion, status, time.Since(start))
	return answer, err
}

func (c *Client) complete(ctx context.Context, question string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: question},
		},
	})
	if err != nil {
		return "", mapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func mapError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &UpstreamError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		body := string(reqErr.Body)
		if body == "" && reqErr.Err != nil {
			body = reqErr.Err.Error()
		}
		return &UpstreamError{StatusCode: reqErr.HTTPStatusCode, Body: body}
	}
	return fmt.Errorf("chat completion request failed: %w", err)
}
