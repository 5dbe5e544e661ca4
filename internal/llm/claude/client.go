// Package claude implements classifier.Provider on the Anthropic messages API.
package claude

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/linnemanlabs/supportdesk/internal/classifier"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-20250514"

const providerName = "claude"

// Client implements classifier.Provider for the Claude API.
type Client struct {
	client anthropic.Client
	model  string
}

// New creates a new Claude API client with the given API key and model name.
// baseURL is only set in tests. SDK retries are disabled; a failed call
// surfaces immediately.
func New(apiKey, model, baseURL string) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: 120 * time.Second}),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

func (c *Client) Name() string { return providerName }

// Complete sends a single user turn with the system prompt and returns the
// concatenated text blocks of the reply.
func (c *Client) Complete(ctx context.Context, req *classifier.Request) (*classifier.Response, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(req.MaxTokens),
		System:    []anthropic.TextBlockParam{{Text: req.System}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.User)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return nil, &classifier.StatusError{
				Provider:   providerName,
				StatusCode: apiErr.StatusCode,
				Message:    apiErr.Error(),
			}
		}
		return nil, err
	}

	return fromSDKMessage(msg), nil
}

func fromSDKMessage(msg *anthropic.Message) *classifier.Response {
	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return &classifier.Response{
		Content: sb.String(),
		Model:   string(msg.Model),
		Usage: classifier.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}
}
