package telephony

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"crm-call-tracker/internal/calls"
	"crm-call-tracker/pkg/logger"

	"github.com/gin-gonic/gin"
)

// WebhookHandlers terminates provider callbacks. Policy at this boundary:
// everything the provider can retry gets a 2xx unless we genuinely failed to
// persist, because a non-2xx makes Twilio redeliver, and redelivery of an
// already-applied or unknown event is noise, not an error.
type WebhookHandlers struct {
	Calls *calls.Service

	// Greeting is spoken to inbound callers before hangup.
	Greeting string

	// ReleaseSlot, when set, frees the user's concurrent-call slot once a
	// call reaches a terminal status.
	ReleaseSlot func(ctx context.Context, userID string)
}

// HandleInboundVoice answers a provider-originated call: it creates the call
// record (owned by the system user) and returns TwiML. Redelivery of the same
// CallSid reuses the existing record.
func (h *WebhookHandlers) HandleInboundVoice(c *gin.Context) {
	var form InboundCallForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required call fields"})
		return
	}
	ctx := c.Request.Context()

	if _, err := h.Calls.GetCallByProviderID(ctx, form.CallSid); err != nil {
		if !errors.Is(err, calls.ErrNotFound) {
			logger.From(ctx).Error("inbound call lookup failed", "call_sid", form.CallSid, "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		_, err = h.Calls.CreateCall(ctx, calls.CreateCallRequest{
			UserID:         calls.SystemUserID,
			From:           form.From,
			To:             form.To,
			Direction:      calls.DirectionInbound,
			InitialStatus:  calls.CallStatusRinging,
			ProviderCallID: form.CallSid,
		})
		if err != nil {
			logger.From(ctx).Error("inbound call create failed", "call_sid", form.CallSid, "err", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
	}

	greeting := h.Greeting
	if greeting == "" {
		greeting = "Thank you for calling. This call is being recorded."
	}
	resp := (&TwiMLResponse{}).Say(greeting).Hangup()
	body, err := resp.Render()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.Data(http.StatusOK, "application/xml", body)
}

// HandleStatusCallback applies a call progress event. Events for unknown
// calls and transitions out of a terminal status are acknowledged
// (and logged) rather than bounced back for redelivery.
func (h *WebhookHandlers) HandleStatusCallback(c *gin.Context) {
	var form StatusCallbackForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing CallSid or CallStatus"})
		return
	}
	ctx := c.Request.Context()

	ev := calls.StatusEvent{
		Status:                  NormalizeStatus(form.CallStatus),
		EventTime:               form.EventTime(),
		ProviderDurationSeconds: form.DurationSeconds(),
	}
	if form.ErrorCode != "" {
		ev.Extra.ErrorDetail = "provider error code " + form.ErrorCode
	}

	updated, transitioned, err := h.Calls.ApplyStatusEvent(ctx, calls.CallRef{ProviderCallID: form.CallSid}, ev)
	switch {
	case err == nil:
		// A redelivered terminal event must not free a second slot.
		if transitioned && updated.Status.IsTerminal() && h.ReleaseSlot != nil && updated.UserID != calls.SystemUserID {
			h.ReleaseSlot(ctx, updated.UserID)
		}
		c.Status(http.StatusOK)
	case errors.Is(err, calls.ErrInvalidTransition):
		logger.From(ctx).Info("ignored late status event",
			"call_sid", form.CallSid, "provider_status", form.CallStatus)
		c.Status(http.StatusOK)
	case errors.Is(err, calls.ErrNotFound):
		logger.From(ctx).Warn("status event for unknown call", "call_sid", form.CallSid)
		c.Status(http.StatusOK)
	default:
		logger.From(ctx).Error("status event apply failed", "call_sid", form.CallSid, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// HandleRecordingCallback attaches a finished recording to its call. A live
// call moves to recording_available; a call that already ended keeps its
// terminal status (the transition is rejected) while the recording fields
// are still merged onto the record.
func (h *WebhookHandlers) HandleRecordingCallback(c *gin.Context) {
	var form RecordingCallbackForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing CallSid or RecordingUrl"})
		return
	}
	ctx := c.Request.Context()

	if form.RecordingStatus != "" && form.RecordingStatus != "completed" {
		// in-progress / absent notifications carry no usable media yet
		c.Status(http.StatusOK)
		return
	}

	duration := 0
	if form.RecordingDuration != "" {
		if n, err := strconv.Atoi(form.RecordingDuration); err == nil {
			duration = n
		}
	}

	_, _, err := h.Calls.ApplyStatusEvent(ctx, calls.CallRef{ProviderCallID: form.CallSid}, calls.StatusEvent{
		Status: calls.CallStatusRecordingAvailable,
		Extra: calls.EventFields{
			RecordingURL:             form.RecordingUrl,
			RecordingDurationSeconds: duration,
		},
	})
	switch {
	case err == nil, errors.Is(err, calls.ErrInvalidTransition):
		c.Status(http.StatusOK)
	case errors.Is(err, calls.ErrNotFound):
		logger.From(ctx).Warn("recording for unknown call", "call_sid", form.CallSid)
		c.Status(http.StatusOK)
	default:
		logger.From(ctx).Error("recording attach failed", "call_sid", form.CallSid, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
