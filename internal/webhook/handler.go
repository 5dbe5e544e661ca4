package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/supportdesk/internal/classifier"
	"github.com/linnemanlabs/supportdesk/internal/decision"
)

const notifyTimeout = 15 * time.Second

type messageRequest struct {
	Message any `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type decisionResponse struct {
	Status         decision.Status `json:"status"`
	Action         decision.Action `json:"action,omitempty"`
	SuggestedReply string          `json:"suggested_reply,omitempty"`
	Reply          string          `json:"reply,omitempty"`
}

func (a *API) handleMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	span := trace.SpanFromContext(ctx)

	// a body that is not declared as JSON is treated as having no message
	if !isJSON(r.Header.Get("Content-Type")) {
		a.reject(w, span)
		return
	}

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "payload too large"})
			return
		}
		a.reject(w, span)
		return
	}

	// only a non-blank string counts as a message
	message, ok := req.Message.(string)
	if !ok || strings.TrimSpace(message) == "" {
		a.reject(w, span)
		return
	}

	cls, err := a.classifier.Classify(ctx, message)
	if err != nil {
		kind := "unknown"
		var cerr *classifier.ClassificationError
		if errors.As(err, &cerr) {
			kind = string(cerr.Kind)
		}
		a.logger.Error(ctx, err, "message classification failed", "kind", kind)
		span.SetAttributes(attribute.String("supportdesk.decision.status", string(decision.StatusFailed)))
		a.metrics.observe(decision.StatusFailed)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "AI processing failed"})
		return
	}

	d := decision.Decide(cls, a.triggers)
	d.Message = message

	span.SetAttributes(
		attribute.String("supportdesk.decision.id", d.ID),
		attribute.String("supportdesk.decision.status", string(d.Status)),
		attribute.String("supportdesk.intent", string(d.Intent)),
		attribute.Bool("supportdesk.risk", d.Risk),
	)
	a.metrics.observe(d.Status)

	a.logger.Info(ctx, "message decided",
		"decision_id", d.ID,
		"status", d.Status,
		"intent", d.Intent,
		"model_risk", d.ModelRisk,
		"risk", d.Risk,
	)

	if d.Escalated() && a.notifier != nil {
		a.pending.Add(1)
		go func() {
			defer a.pending.Done()
			a.notify(context.WithoutCancel(ctx), d)
		}()
	}

	writeJSON(w, http.StatusOK, toResponse(d))
}

func (a *API) reject(w http.ResponseWriter, span trace.Span) {
	span.SetAttributes(attribute.String("supportdesk.decision.status", "invalid_input"))
	a.metrics.observeInvalid()
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message missing"})
}

func (a *API) notify(ctx context.Context, d *decision.Decision) {
	ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
	defer cancel()
	if err := a.notifier.Notify(ctx, d); err != nil {
		a.logger.Error(ctx, err, "escalation notify failed", "decision_id", d.ID, "status", d.Status)
	}
}

// isJSON reports whether ct is application/json or a +json media type.
func isJSON(ct string) bool {
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}

func toResponse(d *decision.Decision) decisionResponse {
	switch d.Status {
	case decision.StatusRiskDetected:
		return decisionResponse{Status: d.Status, Action: d.Action, SuggestedReply: d.Reply}
	case decision.StatusAutoReplied:
		return decisionResponse{Status: d.Status, Reply: d.Reply}
	default:
		return decisionResponse{Status: decision.StatusNoMatch, Action: decision.ActionSendToHuman}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// nothing to do with errors here
	_ = json.NewEncoder(w).Encode(v)
}
