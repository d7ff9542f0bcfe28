package main

import (
	"database/sql"
	"net/http"
	"time"

	"crm-call-tracker/internal/auth"
	"crm-call-tracker/internal/calls"
	"crm-call-tracker/internal/config"
	"crm-call-tracker/internal/httpapi"
	"crm-call-tracker/internal/rbac"
	"crm-call-tracker/internal/reporting"
	"crm-call-tracker/internal/telephony"
	"crm-call-tracker/pkg/utils"

	"github.com/gin-gonic/gin"
)

type routeDeps struct {
	cfg     config.Config
	auth    *auth.Manager
	calls   *calls.Service
	gateway telephony.Gateway
	reports *reporting.Service
	slots   *httpapi.CallSlots
	db      *sql.DB
}

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, d routeDeps) {
	h := httpapi.Handlers{
		Auth:       d.auth,
		Calls:      d.calls,
		Gateway:    d.gateway,
		Reports:    d.reports,
		Slots:      d.slots,
		FromNumber: d.cfg.Twilio.FromNumber,
	}

	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), d.db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Provider webhooks: authenticated by signature, not by JWT.
	{
		wh := telephony.WebhookHandlers{
			Calls:       d.calls,
			ReleaseSlot: d.slots.Release,
		}
		hooks := r.Group("/webhooks/twilio")
		hooks.Use(telephony.RequireTwilioSignature(d.cfg.Twilio))
		hooks.POST("/voice", wh.HandleInboundVoice)
		hooks.POST("/status", wh.HandleStatusCallback)
		hooks.POST("/recording", wh.HandleRecordingCallback)
	}

	// protected API group
	v1 := r.Group("/v1")
	v1.POST("/auth/login", h.Login)
	v1.Use(auth.RequireAccessToken(d.auth))
	{
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(http.StatusOK, gin.H{"user_id": uid, "role": role})
		})

		callsGroup := v1.Group("/calls")
		callsGroup.Use(rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleSupervisor))
		{
			callsGroup.POST("/initiate", httpapi.RequireCallSlot(d.slots), h.InitiateCall)
			callsGroup.GET("", h.ListCalls)
			callsGroup.GET("/:call_id", h.GetCall)
			callsGroup.GET("/:call_id/log", h.GetCallLog)

			// admin-only status override; RequireAnyRole with no roles
			// listed admits admins alone
			callsGroup.PUT("/:call_id/status", rbac.RequireAnyRole(), h.UpdateCallStatus)
		}

		v1.POST("/sms", rbac.RequireAnyRole(rbac.RoleAgent, rbac.RoleSupervisor), h.SendSMS)

		reports := v1.Group("/reports")
		reports.Use(rbac.RequireAnyRole(rbac.RoleSupervisor))
		{
			reports.GET("/calls/summary", h.CallsSummary)
		}
	}
}
