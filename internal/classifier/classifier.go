package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"
	"github.com/linnemanlabs/supportdesk/internal/intent"
)

const (
	tracerName = "github.com/linnemanlabs/supportdesk/internal/classifier"

	// DefaultTimeout bounds a single provider call.
	DefaultTimeout = 30 * time.Second
)

// ErrEmptyMessage is returned when Classify is called without any text.
var ErrEmptyMessage = errors.New("classifier: empty message")

// Hooks lets callers observe classifier activity without the classifier
// depending on a metrics backend. Nil fields are skipped.
type Hooks struct {
	OnClassify func(e *ClassifyEvent)
}

// ClassifyEvent describes one finished Classify call.
type ClassifyEvent struct {
	Provider  string
	Model     string
	Outcome   string // "success" or the ErrorKind
	Intent    intent.Intent
	Risk      bool
	Duration  float64
	TokensIn  int
	TokensOut int
}

// Classifier sends one message to a Provider and parses its verdict.
type Classifier struct {
	provider Provider
	logger   log.Logger
	timeout  time.Duration
	hooks    Hooks
}

// New creates a classifier. A non-positive timeout selects DefaultTimeout.
func New(provider Provider, logger log.Logger, timeout time.Duration, hooks Hooks) *Classifier {
	if provider == nil {
		panic(xerrors.New("classifier provider is required"))
	}
	if logger == nil {
		logger = log.Nop()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Classifier{
		provider: provider,
		logger:   logger,
		timeout:  timeout,
		hooks:    hooks,
	}
}

// Classify asks the provider for the intent and risk of message. A blank
// message returns ErrEmptyMessage without calling the provider; every other
// failure is a *ClassificationError. There is no retry.
func (c *Classifier) Classify(ctx context.Context, message string) (*intent.Classification, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "llm.classify",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.operation.name", "llm.classify"),
			attribute.String("gen_ai.system", c.provider.Name()),
			attribute.Int("gen_ai.request.max_tokens", ResponseTokens),
			attribute.Int("supportdesk.message.bytes", len(message)),
		),
	)
	defer span.End()

	start := time.Now()
	resp, err := c.provider.Complete(ctx, &Request{
		MaxTokens: ResponseTokens,
		System:    SystemPrompt,
		User:      message,
	})
	duration := time.Since(start).Seconds()

	ev := &ClassifyEvent{Provider: c.provider.Name(), Duration: duration}
	defer func() {
		if c.hooks.OnClassify != nil {
			c.hooks.OnClassify(ev)
		}
	}()

	if err != nil {
		cerr := providerError(err)
		ev.Outcome = string(cerr.Kind)
		span.RecordError(cerr)
		span.SetStatus(codes.Error, string(cerr.Kind))
		return nil, cerr
	}

	ev.Model = resp.Model
	ev.TokensIn = resp.Usage.InputTokens
	ev.TokensOut = resp.Usage.OutputTokens
	span.SetAttributes(
		attribute.String("gen_ai.response.model", resp.Model),
		attribute.Int("gen_ai.usage.input_tokens", resp.Usage.InputTokens),
		attribute.Int("gen_ai.usage.output_tokens", resp.Usage.OutputTokens),
	)

	cls, err := ParseContent(resp.Content)
	if err != nil {
		cerr := &ClassificationError{Kind: KindMalformed, Err: err}
		ev.Outcome = string(cerr.Kind)
		span.RecordError(cerr)
		span.SetStatus(codes.Error, string(cerr.Kind))
		return nil, cerr
	}
	cls.Model = resp.Model

	ev.Outcome = "success"
	ev.Intent = cls.Intent
	ev.Risk = cls.Risk
	span.SetAttributes(
		attribute.String("supportdesk.intent", string(cls.Intent)),
		attribute.Bool("supportdesk.risk", cls.Risk),
	)

	c.logger.Info(ctx, "message classified",
		"provider", c.provider.Name(),
		"model", resp.Model,
		"intent", cls.Intent,
		"label", cls.Label,
		"risk", cls.Risk,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"duration", duration,
	)

	return cls, nil
}

func providerError(err error) *ClassificationError {
	var cerr *ClassificationError
	if errors.As(err, &cerr) {
		return cerr
	}
	var serr *StatusError
	if errors.As(err, &serr) {
		return &ClassificationError{Kind: KindStatus, StatusCode: serr.StatusCode, Err: err}
	}
	return &ClassificationError{Kind: KindTransport, Err: err}
}

type wireClassification struct {
	Intent *string `json:"intent"`
	Risk   *bool   `json:"risk"`
}

// ParseContent decodes the model's answer. Both keys must be present with the
// right JSON types; an intent label that is not exactly one of the known
// intents maps to Unknown.
func ParseContent(content string) (*intent.Classification, error) {
	raw := stripFence(strings.TrimSpace(content))
	if raw == "" {
		return nil, errors.New("empty content")
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	var w wireClassification
	if err := dec.Decode(&w); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after json object")
	}
	if w.Intent == nil {
		return nil, errors.New(`missing "intent"`)
	}
	if w.Risk == nil {
		return nil, errors.New(`missing "risk"`)
	}

	return &intent.Classification{
		Intent: intent.Parse(*w.Intent),
		Risk:   *w.Risk,
		Label:  *w.Intent,
	}, nil
}

// stripFence removes a surrounding markdown code fence, which some models add
// even when told to return bare JSON.
func stripFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
