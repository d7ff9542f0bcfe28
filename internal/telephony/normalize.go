package telephony

import "crm-call-tracker/internal/calls"

// NormalizeStatus maps a Twilio call status string to the internal status.
// Unknown values map to failed so a surprising provider state still drives
// the call to a terminal status instead of being silently dropped.
func NormalizeStatus(provider string) calls.CallStatus {
	switch provider {
	case "initiated":
		return calls.CallStatusInitiated
	case "queued":
		return calls.CallStatusQueued
	case "ringing":
		return calls.CallStatusRinging
	case "in-progress", "answered":
		return calls.CallStatusInProgress
	case "completed":
		return calls.CallStatusCompleted
	case "busy":
		return calls.CallStatusBusy
	case "failed":
		return calls.CallStatusFailed
	case "no-answer":
		return calls.CallStatusNoAnswer
	case "canceled":
		return calls.CallStatusCanceled
	default:
		return calls.CallStatusFailed
	}
}
