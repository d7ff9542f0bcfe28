package httpapi

import (
	"errors"
	"net/http"
	"time"

	"crm-call-tracker/internal/auth"
	"crm-call-tracker/internal/calls"
	"crm-call-tracker/internal/rbac"
	"crm-call-tracker/internal/reporting"
	"crm-call-tracker/internal/telephony"
	"crm-call-tracker/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth    *auth.Manager
	Calls   *calls.Service
	Gateway telephony.Gateway
	Reports *reporting.Service
	Slots   *CallSlots

	// FromNumber is the default caller id when the request omits one.
	FromNumber string
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, role required"})
		return
	}
	if !rbac.ValidRole(req.Role) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// --- Calls ---

type initiateCallRequest struct {
	To   string `json:"to_number" binding:"required"`
	From string `json:"from_number"`
}

// InitiateCall creates the call record and places the call with the provider.
//
// The record is created before the provider is contacted, so a provider
// failure still leaves a (failed) call behind with the error attached; the
// client gets the record either way.
func (h Handlers) InitiateCall(c *gin.Context) {
	ctx := c.Request.Context()
	userID, err := auth.UserID(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return
	}

	var req initiateCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to_number required"})
		return
	}
	from := req.From
	if from == "" {
		from = h.FromNumber
	}
	if from == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from_number required"})
		return
	}

	call, err := h.Calls.CreateCall(ctx, calls.CreateCallRequest{
		UserID: userID,
		From:   from,
		To:     req.To,
	})
	if err != nil {
		h.Slots.Release(ctx, userID)
		if errors.Is(err, calls.ErrInvalidArgument) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid call request"})
			return
		}
		logger.From(ctx).Error("call create failed", "user_id", userID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	res, placeErr := h.Gateway.PlaceCall(ctx, telephony.PlaceCallRequest{
		To:     req.To,
		From:   from,
		CallID: call.CallID,
	})
	if placeErr != nil {
		logger.From(ctx).Error("call placement failed", "call_id", call.CallID, "err", placeErr)
		failed, _, applyErr := h.Calls.ApplyStatusEvent(ctx, calls.CallRef{CallID: call.CallID}, calls.StatusEvent{
			Status: calls.CallStatusFailed,
			Extra:  calls.EventFields{ErrorDetail: placeErr.Error()},
		})
		if applyErr == nil {
			call = failed
		}
		h.Slots.Release(ctx, userID)
		c.JSON(http.StatusCreated, call)
		return
	}

	if res.ProviderCallID != "" {
		if err := h.Calls.AttachProviderCallID(ctx, call.CallID, res.ProviderCallID); err != nil {
			logger.From(ctx).Error("provider id attach failed", "call_id", call.CallID, "err", err)
		} else {
			call.ProviderCallID = res.ProviderCallID
		}
	}
	c.JSON(http.StatusCreated, call)
}

func (h Handlers) GetCall(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := auth.UserID(ctx)
	role, _ := auth.Role(ctx)

	call, err := h.Calls.GetCallForUser(ctx, c.Param("call_id"), userID, role)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, call)
	case errors.Is(err, calls.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
	case errors.Is(err, calls.ErrForbidden):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not your call"})
	case errors.Is(err, calls.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "call_id required"})
	default:
		logger.From(ctx).Error("call lookup failed", "call_id", c.Param("call_id"), "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// GetCallLog returns the call's action trail, oldest first. Same ownership
// rule as GetCall.
func (h Handlers) GetCallLog(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := auth.UserID(ctx)
	role, _ := auth.Role(ctx)
	callID := c.Param("call_id")

	if _, err := h.Calls.GetCallForUser(ctx, callID, userID, role); err != nil {
		switch {
		case errors.Is(err, calls.ErrNotFound):
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
		case errors.Is(err, calls.ErrForbidden):
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not your call"})
		default:
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		}
		return
	}

	entries, err := h.Calls.History(ctx, callID)
	if err != nil {
		logger.From(ctx).Error("call log read failed", "call_id", callID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"call_id": callID, "entries": entries})
}

type updateCallStatusRequest struct {
	Status    string `json:"status" binding:"required"`
	EventTime string `json:"event_time,omitempty"`
	Error     string `json:"error,omitempty"`
}

// UpdateCallStatus is the administrative status override. It goes through the
// same transition rules as webhook events, so it cannot resurrect a
// terminal call; that attempt gets a 409.
func (h Handlers) UpdateCallStatus(c *gin.Context) {
	ctx := c.Request.Context()

	var req updateCallStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "status required"})
		return
	}
	status, ok := calls.ParseStatus(req.Status)
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown status"})
		return
	}

	ev := calls.StatusEvent{Status: status, Extra: calls.EventFields{ErrorDetail: req.Error}}
	if req.EventTime != "" {
		t, err := time.Parse(time.RFC3339, req.EventTime)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "event_time must be RFC 3339"})
			return
		}
		u := t.UTC()
		ev.EventTime = &u
	}

	call, _, err := h.Calls.ApplyStatusEvent(ctx, calls.CallRef{CallID: c.Param("call_id")}, ev)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, call)
	case errors.Is(err, calls.ErrInvalidTransition):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "call already in terminal status", "call": call})
	case errors.Is(err, calls.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
	default:
		logger.From(ctx).Error("status override failed", "call_id", c.Param("call_id"), "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// ListCalls returns calls newest first. Non-admin callers only ever see their
// own; admins may pass user_id= to scope, or omit it for everything.
func (h Handlers) ListCalls(c *gin.Context) {
	ctx := c.Request.Context()
	userID, err := auth.UserID(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user_id required"})
		return
	}
	role, _ := auth.Role(ctx)

	filter := calls.ListFilter{UserID: userID}
	if rbac.IsAdmin(role) {
		filter.UserID = c.Query("user_id")
	}
	var bad bool
	filter.From, bad = parseTimeQuery(c, "from", bad)
	filter.To, bad = parseTimeQuery(c, "to", bad)
	if bad {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from and to must be RFC 3339"})
		return
	}

	rows, err := h.Calls.ListCalls(ctx, filter)
	if err != nil {
		logger.From(ctx).Error("call list failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"calls": rows})
}

// --- Reporting ---

// CallsSummary aggregates call metrics over a time range. Admin only, set in
// routing; user_id= narrows to one user.
func (h Handlers) CallsSummary(c *gin.Context) {
	ctx := c.Request.Context()
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}

	var bad bool
	var req reporting.CallsSummaryRequest
	req.UserID = c.Query("user_id")
	req.Range.From, bad = parseTimeQuery(c, "from", bad)
	req.Range.To, bad = parseTimeQuery(c, "to", bad)
	if bad {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from and to must be RFC 3339"})
		return
	}

	sum, err := h.Reports.CallsSummary(ctx, req)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, sum)
	case errors.Is(err, reporting.ErrInvalidRequest):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from and to are required, to must be after from"})
	default:
		logger.From(ctx).Error("calls summary failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// --- SMS ---

type sendSMSRequest struct {
	To   string `json:"to_number" binding:"required"`
	Body string `json:"body" binding:"required"`
	From string `json:"from_number"`

	// CallID optionally ties the message to a call's action trail.
	CallID string `json:"call_id,omitempty"`
}

func (h Handlers) SendSMS(c *gin.Context) {
	ctx := c.Request.Context()
	userID, _ := auth.UserID(ctx)
	role, _ := auth.Role(ctx)

	var req sendSMSRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to_number and body required"})
		return
	}
	if req.CallID != "" {
		// ownership check before letting the message land on the trail
		if _, err := h.Calls.GetCallForUser(ctx, req.CallID, userID, role); err != nil {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "call not found"})
			return
		}
	}

	res, err := h.Gateway.SendSMS(ctx, telephony.SendSMSRequest{
		To:   req.To,
		From: req.From,
		Body: req.Body,
	})
	if err != nil {
		if errors.Is(err, telephony.ErrInvalidRequest) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid sms request"})
			return
		}
		logger.From(ctx).Error("sms send failed", "to", req.To, "err", err)
		c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "provider rejected message"})
		return
	}

	if req.CallID != "" {
		h.Calls.RecordSMS(ctx, req.CallID, req.To, res.ProviderMessageID)
	}
	c.JSON(http.StatusOK, gin.H{"provider_message_id": res.ProviderMessageID})
}

func parseTimeQuery(c *gin.Context, key string, bad bool) (time.Time, bool) {
	v := c.Query(key)
	if v == "" {
		return time.Time{}, bad
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, true
	}
	return t.UTC(), bad
}
