// Package openai implements classifier.Provider on the OpenAI chat
// completions API.
package openai

import (
	"context"
	"errors"
	"net/http"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/linnemanlabs/supportdesk/internal/classifier"
)

const (
	// DefaultModel is the model the webhook was tuned against.
	DefaultModel = "gpt-4o-mini"

	// DefaultBaseURL is the public OpenAI API.
	DefaultBaseURL = "https://api.openai.com/v1"

	providerName = "openai"
)

// Client implements classifier.Provider using the go-openai SDK.
type Client struct {
	client *goopenai.Client
	model  string
}

// New creates a new OpenAI client. An empty baseURL selects DefaultBaseURL.
// The underlying http.Client is reused across requests; per-call deadlines
// come from the caller's context.
func New(apiKey, model, baseURL string) *Client {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{
		Timeout: 120 * time.Second,
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		client: goopenai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (c *Client) Name() string { return providerName }

// Complete sends a system + user message pair in JSON mode and returns the
// first choice's content.
func (c *Client) Complete(ctx context.Context, req *classifier.Request) (*classifier.Response, error) {
	resp, err := c.client.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: req.MaxTokens,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: req.System},
			{Role: goopenai.ChatMessageRoleUser, Content: req.User},
		},
		ResponseFormat: &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, mapError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, &classifier.ClassificationError{
			Kind: classifier.KindMalformed,
			Err:  errors.New("openai response has no choices"),
		}
	}

	return &classifier.Response{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage: classifier.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
	}, nil
}

// mapError turns SDK status failures into classifier.StatusError and leaves
// everything else (dial errors, context deadline) untouched.
func mapError(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &classifier.StatusError{
			Provider:   providerName,
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
		}
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &classifier.StatusError{
			Provider:   providerName,
			StatusCode: reqErr.HTTPStatusCode,
			Message:    reqErr.Error(),
		}
	}
	return err
}
