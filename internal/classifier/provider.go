package classifier

import (
	"context"
	"fmt"
)

// Provider is the interface for any LLM backend.
type Provider interface {
	// Name is a short stable identifier used in metrics and spans, e.g. "openai".
	Name() string
	Complete(ctx context.Context, req *Request) (*Response, error)
}

// Request is a single-turn completion request.
type Request struct {
	MaxTokens int
	System    string
	User      string
}

// Response carries the text of the first choice plus accounting.
type Response struct {
	Content string
	Model   string
	Usage   Usage
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// StatusError is returned by providers when the API answers with a
// non-success HTTP status.
type StatusError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s api error %d: %s", e.Provider, e.StatusCode, e.Message)
}
