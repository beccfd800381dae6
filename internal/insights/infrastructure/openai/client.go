package openai

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	insights "greengauge/internal/insights/domain"
)

const (
	// DefaultURL is the API base; requests go to DefaultURL + "/chat/completions".
	DefaultURL       = "https://api.openai.com/v1"
	DefaultModel     = goopenai.GPT3Dot5Turbo
	DefaultMaxTokens = 1500
	SystemPrompt     = "You are an energy efficiency analyst."

	chatCompletionsPath = "/chat/completions"
)

var errEmptyChoices = errors.New("openai: empty choices")

// Client is a chat completions client for OpenAI compatible endpoints.
type Client struct {
	config    goopenai.ClientConfig
	model     string
	maxTokens int
	api       *goopenai.Client
}

var _ insights.Generator = (*Client)(nil)

// Option customizes a Client.
type Option func(*Client)

// WithModel overrides DefaultModel.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithMaxTokens overrides DefaultMaxTokens.
func WithMaxTokens(maxTokens int) Option {
	return func(c *Client) {
		if maxTokens > 0 {
			c.maxTokens = maxTokens
		}
	}
}

// WithHTTPClient overrides the default 60 second client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.config.HTTPClient = client
		}
	}
}

// NewClient constructs a chat client. baseURL may be the API base or the full
// chat completions endpoint; empty selects DefaultURL.
func NewClient(baseURL, apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openai: empty api key")
	}
	config := goopenai.DefaultConfig(apiKey)
	config.BaseURL = normalizeBaseURL(baseURL)
	config.HTTPClient = &http.Client{Timeout: 60 * time.Second}

	c := &Client{
		config:    config,
		model:     DefaultModel,
		maxTokens: DefaultMaxTokens,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.api = goopenai.NewClientWithConfig(c.config)
	return c, nil
}

func normalizeBaseURL(baseURL string) string {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return DefaultURL
	}
	return strings.TrimSuffix(baseURL, chatCompletionsPath)
}

// Complete sends prompt as the user turn after the analyst system prompt.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: c.model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: SystemPrompt},
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errEmptyChoices
	}
	return resp.Choices[0].Message.Content, nil
}
