package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/supportdesk/internal/classifier"
	"github.com/linnemanlabs/supportdesk/internal/decision"
	"github.com/linnemanlabs/supportdesk/internal/intent"
	"github.com/linnemanlabs/supportdesk/internal/trigger"
)

// fakeClassifier returns a fixed classification or error and counts calls.
type fakeClassifier struct {
	mu    sync.Mutex
	cls   *intent.Classification
	err   error
	calls []string
}

func (f *fakeClassifier) Classify(_ context.Context, message string) (*intent.Classification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, message)
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.cls
	return &cp, nil
}

func (f *fakeClassifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeNotifier records escalations on a channel.
type fakeNotifier struct {
	got chan *decision.Decision
	err error
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{got: make(chan *decision.Decision, 4)}
}

func (f *fakeNotifier) Notify(_ context.Context, d *decision.Decision) error {
	f.got <- d
	return f.err
}

func classifierFor(in intent.Intent, risk bool) *fakeClassifier {
	return &fakeClassifier{cls: &intent.Classification{Intent: in, Risk: risk}}
}

func newTestRouter(t *testing.T, c Classifier, opts ...Option) chi.Router {
	t.Helper()
	api := New(log.Nop(), c, trigger.Default(), opts...)
	r := chi.NewRouter()
	api.RegisterRoutes(r)
	return r
}

func post(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	return postAs(t, h, "application/json", body)
}

func postAs(t *testing.T, h http.Handler, contentType, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, Path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return rec, resp
}

func assertBody(t *testing.T, got, want map[string]any) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("body = %v, want %v", got, want)
		return
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("body[%q] = %v, want %v", k, got[k], v)
		}
	}
}

//  New / constructor

func TestNew_NilLogger(t *testing.T) {
	t.Parallel()

	api := New(nil, classifierFor(intent.Unknown, false), trigger.Default())
	if api.logger == nil {
		t.Fatal("New(nil, ...) left logger nil; expected Nop logger")
	}
}

func TestNew_NilClassifier_Panics(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("New with nil classifier did not panic")
		}
	}()
	New(nil, nil, trigger.Default())
}

func TestNew_NilTriggers_Panics(t *testing.T) {
	t.Parallel()

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("New with nil trigger table did not panic")
		}
	}()
	New(nil, classifierFor(intent.Unknown, false), nil)
}

// Routing

func TestRegisterRoutes_Methods(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, classifierFor(intent.OrderCancel, false))

	tests := []struct {
		name       string
		method     string
		wantStatus int
	}{
		{"GET not allowed", http.MethodGet, http.StatusMethodNotAllowed},
		{"PUT not allowed", http.MethodPut, http.StatusMethodNotAllowed},
		{"DELETE not allowed", http.MethodDelete, http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(tt.method, Path, http.NoBody)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("%s %s = %d, want %d", tt.method, Path, rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRegisterRoutes_NotFound(t *testing.T) {
	t.Parallel()

	r := newTestRouter(t, classifierFor(intent.OrderCancel, false))

	for _, path := range []string{"/", "/webhook", "/webhook/other", "/webhook/meesho/extra"} {
		t.Run(path, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"message":"hi"}`))
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			if rec.Code != http.StatusNotFound {
				t.Errorf("POST %s = %d, want %d", path, rec.Code, http.StatusNotFound)
			}
		})
	}
}

// Outcomes

func TestHandleMessage_Scenarios(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		message string
		cls     *fakeClassifier
		want    map[string]any
	}{
		{
			name:    "order cancel auto replies",
			message: "My order got cancelled, why?",
			cls:     classifierFor(intent.OrderCancel, false),
			want: map[string]any{
				"status": "auto_replied",
				"reply":  "Your order was cancelled due to a system update. Refund will be processed within 3–5 working days.",
			},
		},
		{
			name:    "legal threat needs approval",
			message: "I will sue you",
			cls:     classifierFor(intent.LegalThreat, true),
			want: map[string]any{
				"status":          "risk_detected",
				"action":          "human_approval_required",
				"suggested_reply": "Your concern has been escalated to our senior support team.",
			},
		},
		{
			name:    "unknown goes to human",
			message: "Where is my package",
			cls:     classifierFor(intent.Unknown, false),
			want: map[string]any{
				"status": "no_match",
				"action": "send_to_human",
			},
		},
		{
			name:    "model risk on safe trigger",
			message: "Refund late again, my lawyer will hear of this",
			cls:     classifierFor(intent.RefundDelay, true),
			want: map[string]any{
				"status":          "risk_detected",
				"action":          "human_approval_required",
				"suggested_reply": "We understand your concern. Refunds usually take 5–7 working days depending on your bank.",
			},
		},
		{
			name:    "trigger risk without model risk",
			message: "see you in court",
			cls:     classifierFor(intent.LegalThreat, false),
			want: map[string]any{
				"status":          "risk_detected",
				"action":          "human_approval_required",
				"suggested_reply": "Your concern has been escalated to our senior support team.",
			},
		},
		{
			name:    "unknown with risk still no match",
			message: "???",
			cls:     classifierFor(intent.Unknown, true),
			want: map[string]any{
				"status": "no_match",
				"action": "send_to_human",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := newTestRouter(t, tt.cls)
			body, _ := json.Marshal(map[string]string{"message": tt.message})
			rec, resp := post(t, r, string(body))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("content-type = %q, want application/json", ct)
			}
			assertBody(t, resp, tt.want)

			if tt.cls.callCount() != 1 {
				t.Errorf("classifier calls = %d, want 1", tt.cls.callCount())
			}
			if tt.cls.calls[0] != tt.message {
				t.Errorf("classified %q, want raw message %q", tt.cls.calls[0], tt.message)
			}
		})
	}
}

func TestHandleMessage_MissingMessage(t *testing.T) {
	t.Parallel()

	bodies := []struct {
		name string
		body string
	}{
		{"empty object", `{}`},
		{"empty string", `{"message":""}`},
		{"blank string", `{"message":"   "}`},
		{"null", `{"message":null}`},
		{"number", `{"message":42}`},
		{"object", `{"message":{"text":"hi"}}`},
		{"wrong key", `{"msg":"hello"}`},
		{"invalid json", `{bad`},
		{"empty body", ``},
	}

	for _, tt := range bodies {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cls := classifierFor(intent.OrderCancel, false)
			r := newTestRouter(t, cls)
			rec, resp := post(t, r, tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			assertBody(t, resp, map[string]any{"error": "message missing"})
			if cls.callCount() != 0 {
				t.Errorf("classifier called %d times for invalid input", cls.callCount())
			}
		})
	}
}

func TestHandleMessage_ContentType(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		wantStatus  int
	}{
		{"json", "application/json", http.StatusOK},
		{"json with charset", "application/json; charset=utf-8", http.StatusOK},
		{"json suffix", "application/vnd.meesho+json", http.StatusOK},
		{"text plain", "text/plain", http.StatusBadRequest},
		{"form", "application/x-www-form-urlencoded", http.StatusBadRequest},
		{"missing", "", http.StatusBadRequest},
		{"garbage", ";;;", http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cls := classifierFor(intent.OrderCancel, false)
			r := newTestRouter(t, cls)
			rec, resp := postAs(t, r, tt.contentType, `{"message":"My order got cancelled, why?"}`)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusBadRequest {
				assertBody(t, resp, map[string]any{"error": "message missing"})
				if cls.callCount() != 0 {
					t.Errorf("classifier called %d times for non-JSON body", cls.callCount())
				}
			}
		})
	}
}

func TestHandleMessage_ClassificationFailure(t *testing.T) {
	t.Parallel()

	errs := []error{
		&classifier.ClassificationError{Kind: classifier.KindTransport, Err: errors.New("connection refused")},
		&classifier.ClassificationError{Kind: classifier.KindStatus, StatusCode: 500, Err: errors.New("boom")},
		&classifier.ClassificationError{Kind: classifier.KindMalformed, Err: errors.New(`missing "risk"`)},
		errors.New("untyped failure"),
	}

	for _, e := range errs {
		t.Run(e.Error(), func(t *testing.T) {
			t.Parallel()

			n := newFakeNotifier()
			r := newTestRouter(t, &fakeClassifier{err: e}, WithNotifier(n))
			rec, resp := post(t, r, `{"message":"hello"}`)

			if rec.Code != http.StatusInternalServerError {
				t.Errorf("status = %d, want 500", rec.Code)
			}
			assertBody(t, resp, map[string]any{"error": "AI processing failed"})

			select {
			case d := <-n.got:
				t.Errorf("notifier called on failure: %+v", d)
			case <-time.After(20 * time.Millisecond):
			}
		})
	}
}

func TestHandleMessage_PayloadTooLarge(t *testing.T) {
	t.Parallel()

	cls := classifierFor(intent.OrderCancel, false)
	api := New(log.Nop(), cls, trigger.Default())
	r := chi.NewRouter()
	api.RegisterRoutes(r)
	h := http.MaxBytesHandler(r, 32)

	rec, resp := post(t, h, `{"message":"`+strings.Repeat("a", 200)+`"}`)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", rec.Code)
	}
	assertBody(t, resp, map[string]any{"error": "payload too large"})
	if cls.callCount() != 0 {
		t.Error("classifier called for oversized body")
	}
}

// Escalation notices

func TestHandleMessage_NotifiesEscalations(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		cls        *fakeClassifier
		wantStatus decision.Status
	}{
		{"no match", classifierFor(intent.Unknown, false), decision.StatusNoMatch},
		{"risk", classifierFor(intent.LegalThreat, true), decision.StatusRiskDetected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			n := newFakeNotifier()
			r := newTestRouter(t, tt.cls, WithNotifier(n))
			rec, _ := post(t, r, `{"message":"I will sue you"}`)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}

			select {
			case d := <-n.got:
				if d.Status != tt.wantStatus {
					t.Errorf("notified status = %q, want %q", d.Status, tt.wantStatus)
				}
				if d.Message != "I will sue you" {
					t.Errorf("notified message = %q", d.Message)
				}
				if d.ID == "" {
					t.Error("notified decision has no ID")
				}
			case <-time.After(2 * time.Second):
				t.Fatal("notifier not called")
			}
		})
	}
}

func TestHandleMessage_AutoReplyDoesNotNotify(t *testing.T) {
	t.Parallel()

	n := newFakeNotifier()
	r := newTestRouter(t, classifierFor(intent.OrderCancel, false), WithNotifier(n))
	post(t, r, `{"message":"My order got cancelled, why?"}`)

	select {
	case d := <-n.got:
		t.Errorf("notifier called for auto reply: %+v", d)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestHandleMessage_NotifierErrorIgnored(t *testing.T) {
	t.Parallel()

	n := newFakeNotifier()
	n.err = errors.New("slack down")
	r := newTestRouter(t, classifierFor(intent.LegalThreat, true), WithNotifier(n))

	rec, resp := post(t, r, `{"message":"I will sue you"}`)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
	if resp["status"] != "risk_detected" {
		t.Errorf("status = %v, want risk_detected", resp["status"])
	}
	<-n.got
}

// blockingNotifier holds every notice until release is closed.
type blockingNotifier struct {
	started chan struct{}
	release chan struct{}
	done    chan struct{}
}

func (b *blockingNotifier) Notify(_ context.Context, _ *decision.Decision) error {
	close(b.started)
	<-b.release
	close(b.done)
	return nil
}

func TestWait_DrainsPendingNotices(t *testing.T) {
	t.Parallel()

	n := &blockingNotifier{
		started: make(chan struct{}),
		release: make(chan struct{}),
		done:    make(chan struct{}),
	}
	api := New(log.Nop(), classifierFor(intent.LegalThreat, true), trigger.Default(), WithNotifier(n))
	r := chi.NewRouter()
	api.RegisterRoutes(r)

	rec, _ := post(t, r, `{"message":"I will sue you"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	<-n.started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := api.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait with notice in flight = %v, want deadline exceeded", err)
	}

	close(n.release)
	if err := api.Wait(context.Background()); err != nil {
		t.Fatalf("Wait after release = %v", err)
	}
	select {
	case <-n.done:
	default:
		t.Error("Wait returned before the notice finished")
	}
}

func TestWait_NoPendingNotices(t *testing.T) {
	t.Parallel()

	api := New(log.Nop(), classifierFor(intent.OrderCancel, false), trigger.Default())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := api.Wait(ctx); err != nil {
		t.Errorf("Wait = %v, want nil", err)
	}
}

// Metrics

func TestHandleMessage_Metrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	auto := newTestRouter(t, classifierFor(intent.OrderCancel, false), WithMetrics(m))
	failing := newTestRouter(t, &fakeClassifier{err: errors.New("x")}, WithMetrics(m))

	post(t, auto, `{"message":"a"}`)
	post(t, auto, `{"message":"b"}`)
	post(t, auto, `{}`)
	post(t, failing, `{"message":"c"}`)

	if got := testutil.ToFloat64(m.DecisionsTotal.WithLabelValues("auto_replied")); got != 2 {
		t.Errorf("auto_replied = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.DecisionsTotal.WithLabelValues("invalid_input")); got != 1 {
		t.Errorf("invalid_input = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.DecisionsTotal.WithLabelValues("processing_failed")); got != 1 {
		t.Errorf("processing_failed = %v, want 1", got)
	}
}
