package telephony

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"crm-call-tracker/internal/actionlog"
	"crm-call-tracker/internal/calls"

	"github.com/gin-gonic/gin"
)

func newWebhookRouter(t *testing.T, h *WebhookHandlers) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhooks/twilio/voice", h.HandleInboundVoice)
	r.POST("/webhooks/twilio/status", h.HandleStatusCallback)
	r.POST("/webhooks/twilio/recording", h.HandleRecordingCallback)
	return r
}

func newCallService(t *testing.T) *calls.Service {
	t.Helper()
	return calls.NewService(calls.NewMemoryStore(), actionlog.NewService(actionlog.NewMemoryRepo()))
}

func postForm(r *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHandleInboundVoice(t *testing.T) {
	svc := newCallService(t)
	r := newWebhookRouter(t, &WebhookHandlers{Calls: svc, Greeting: "hi there"})

	form := url.Values{
		"CallSid":   {"CA100"},
		"From":      {"+15551230000"},
		"To":        {"+15559870000"},
		"Direction": {"inbound"},
	}
	w := postForm(r, "/webhooks/twilio/voice", form)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "<Say>hi there</Say>") {
		t.Fatalf("expected twiml greeting: %s", w.Body.String())
	}

	c, err := svc.GetCallByProviderID(context.Background(), "CA100")
	if err != nil {
		t.Fatalf("call not created: %v", err)
	}
	if c.UserID != calls.SystemUserID || c.Direction != calls.DirectionInbound {
		t.Fatalf("unexpected inbound record: %+v", c)
	}
	if c.Status != calls.CallStatusRinging {
		t.Fatalf("expected ringing, got %q", c.Status)
	}

	// redelivery must not create a second record
	w = postForm(r, "/webhooks/twilio/voice", form)
	if w.Code != http.StatusOK {
		t.Fatalf("redelivery: expected 200, got %d", w.Code)
	}
	rows, _ := svc.ListCalls(context.Background(), calls.ListFilter{})
	if len(rows) != 1 {
		t.Fatalf("expected 1 call after redelivery, got %d", len(rows))
	}
}

func TestHandleInboundVoiceMissingFields(t *testing.T) {
	r := newWebhookRouter(t, &WebhookHandlers{Calls: newCallService(t)})

	w := postForm(r, "/webhooks/twilio/voice", url.Values{"CallSid": {"CA1"}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandleStatusCallback(t *testing.T) {
	svc := newCallService(t)
	released := ""
	releases := 0
	r := newWebhookRouter(t, &WebhookHandlers{
		Calls: svc,
		ReleaseSlot: func(_ context.Context, userID string) {
			released = userID
			releases++
		},
	})

	c, err := svc.CreateCall(context.Background(), calls.CreateCallRequest{
		UserID: "u1", From: "+1", To: "+2",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.AttachProviderCallID(context.Background(), c.CallID, "CA200"); err != nil {
		t.Fatalf("attach: %v", err)
	}

	w := postForm(r, "/webhooks/twilio/status", url.Values{
		"CallSid":    {"CA200"},
		"CallStatus": {"in-progress"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	got, _ := svc.GetCallByProviderID(context.Background(), "CA200")
	if got.Status != calls.CallStatusInProgress {
		t.Fatalf("expected in_progress, got %q", got.Status)
	}
	if released != "" {
		t.Fatalf("slot released before terminal status")
	}

	ts := time.Date(2026, 3, 1, 10, 0, 42, 0, time.UTC).Format(time.RFC1123Z)
	w = postForm(r, "/webhooks/twilio/status", url.Values{
		"CallSid":    {"CA200"},
		"CallStatus": {"completed"},
		"Timestamp":  {ts},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("completed: expected 200, got %d", w.Code)
	}
	got, _ = svc.GetCallByProviderID(context.Background(), "CA200")
	if got.Status != calls.CallStatusCompleted || got.EndedAt == nil {
		t.Fatalf("terminal stamping missing: %+v", got)
	}
	if released != "u1" {
		t.Fatalf("expected slot release for u1, got %q", released)
	}

	// a redelivered completed event is acknowledged but must not free a
	// second slot
	w = postForm(r, "/webhooks/twilio/status", url.Values{
		"CallSid":    {"CA200"},
		"CallStatus": {"completed"},
		"Timestamp":  {ts},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("replay: expected 200, got %d", w.Code)
	}
	if releases != 1 {
		t.Fatalf("expected exactly one slot release, got %d", releases)
	}

	// late ringing after completion is acknowledged, not retried
	w = postForm(r, "/webhooks/twilio/status", url.Values{
		"CallSid":    {"CA200"},
		"CallStatus": {"ringing"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("late event: expected 200, got %d", w.Code)
	}
	got, _ = svc.GetCallByProviderID(context.Background(), "CA200")
	if got.Status != calls.CallStatusCompleted {
		t.Fatalf("late event changed status: %q", got.Status)
	}
}

func TestHandleStatusCallbackCallDurationFallback(t *testing.T) {
	svc := newCallService(t)
	r := newWebhookRouter(t, &WebhookHandlers{Calls: svc})

	c, _ := svc.CreateCall(context.Background(), calls.CreateCallRequest{
		UserID: "u1", From: "+1", To: "+2",
	})
	_ = svc.AttachProviderCallID(context.Background(), c.CallID, "CA201")

	// no Timestamp: the provider-reported duration fixes EndedAt
	w := postForm(r, "/webhooks/twilio/status", url.Values{
		"CallSid":      {"CA201"},
		"CallStatus":   {"completed"},
		"CallDuration": {"25"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	got, _ := svc.GetCallByProviderID(context.Background(), "CA201")
	if got.DurationSeconds != 25 {
		t.Fatalf("expected duration 25, got %d", got.DurationSeconds)
	}
	if got.EndedAt == nil || !got.EndedAt.Equal(got.StartedAt.Add(25*time.Second)) {
		t.Fatalf("expected EndedAt derived from duration, got %+v", got.EndedAt)
	}
}

func TestHandleStatusCallbackUnknownCall(t *testing.T) {
	r := newWebhookRouter(t, &WebhookHandlers{Calls: newCallService(t)})

	w := postForm(r, "/webhooks/twilio/status", url.Values{
		"CallSid":    {"CA404"},
		"CallStatus": {"completed"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("unknown call must still be acknowledged, got %d", w.Code)
	}
}

func TestHandleRecordingCallback(t *testing.T) {
	svc := newCallService(t)
	r := newWebhookRouter(t, &WebhookHandlers{Calls: svc})

	c, _ := svc.CreateCall(context.Background(), calls.CreateCallRequest{
		UserID: "u1", From: "+1", To: "+2",
	})
	_ = svc.AttachProviderCallID(context.Background(), c.CallID, "CA300")
	if _, _, err := svc.ApplyStatusEvent(context.Background(), calls.CallRef{CallID: c.CallID}, calls.StatusEvent{Status: calls.CallStatusCompleted}); err != nil {
		t.Fatalf("complete: %v", err)
	}

	w := postForm(r, "/webhooks/twilio/recording", url.Values{
		"CallSid":           {"CA300"},
		"RecordingSid":      {"RE1"},
		"RecordingUrl":      {"https://api.twilio.com/rec/RE1"},
		"RecordingStatus":   {"completed"},
		"RecordingDuration": {"37"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	got, _ := svc.GetCallByProviderID(context.Background(), "CA300")
	if got.RecordingURL != "https://api.twilio.com/rec/RE1" || got.RecordingDurationSeconds != 37 {
		t.Fatalf("recording not attached: %+v", got)
	}
	if got.Status != calls.CallStatusCompleted {
		t.Fatalf("recording changed terminal status: %q", got.Status)
	}
}

func TestHandleRecordingCallbackLiveCall(t *testing.T) {
	svc := newCallService(t)
	r := newWebhookRouter(t, &WebhookHandlers{Calls: svc})

	c, _ := svc.CreateCall(context.Background(), calls.CreateCallRequest{
		UserID: "u1", From: "+1", To: "+2",
	})
	_ = svc.AttachProviderCallID(context.Background(), c.CallID, "CA301")

	w := postForm(r, "/webhooks/twilio/recording", url.Values{
		"CallSid":      {"CA301"},
		"RecordingUrl": {"https://api.twilio.com/rec/RE2"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	got, _ := svc.GetCallByProviderID(context.Background(), "CA301")
	if got.Status != calls.CallStatusRecordingAvailable {
		t.Fatalf("expected recording_available on live call, got %q", got.Status)
	}
	if got.RecordingURL == "" {
		t.Fatalf("recording url missing")
	}
}
