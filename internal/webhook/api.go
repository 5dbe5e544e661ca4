// Package webhook exposes the customer support webhook over HTTP.
package webhook

import (
	"context"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/supportdesk/internal/decision"
	"github.com/linnemanlabs/supportdesk/internal/intent"
	"github.com/linnemanlabs/supportdesk/internal/trigger"
)

// Path is the single inbound endpoint.
const Path = "/webhook/meesho"

// Classifier defines what the handler needs from the message classifier.
type Classifier interface {
	Classify(ctx context.Context, message string) (*intent.Classification, error)
}

// Notifier is told about escalated decisions. Failures never change the
// HTTP response.
type Notifier interface {
	Notify(ctx context.Context, d *decision.Decision) error
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger     log.Logger
	classifier Classifier
	triggers   *trigger.Table
	notifier   Notifier
	metrics    *Metrics

	// in-flight escalation notices
	pending sync.WaitGroup
}

// Option configures optional API dependencies.
type Option func(*API)

// WithNotifier sends escalations (no_match, risk_detected) to n.
func WithNotifier(n Notifier) Option {
	return func(a *API) { a.notifier = n }
}

// WithMetrics records decision outcomes on m.
func WithMetrics(m *Metrics) Option {
	return func(a *API) { a.metrics = m }
}

// New creates a new API handler.
func New(logger log.Logger, classifier Classifier, triggers *trigger.Table, opts ...Option) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if classifier == nil {
		panic(xerrors.New("classifier is required"))
	}
	if triggers == nil {
		panic(xerrors.New("trigger table is required"))
	}
	a := &API{
		logger:     logger,
		classifier: classifier,
		triggers:   triggers,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Wait blocks until in-flight escalation notices finish or ctx is done.
// Call it after the HTTP server has stopped accepting requests.
func (a *API) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Post(Path, a.handleMessage)
}
