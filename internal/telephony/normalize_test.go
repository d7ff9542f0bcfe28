package telephony

import (
	"testing"

	"crm-call-tracker/internal/calls"
)

func TestNormalizeStatus(t *testing.T) {
	cases := map[string]calls.CallStatus{
		"initiated":   calls.CallStatusInitiated,
		"queued":      calls.CallStatusQueued,
		"ringing":     calls.CallStatusRinging,
		"in-progress": calls.CallStatusInProgress,
		"answered":    calls.CallStatusInProgress,
		"completed":   calls.CallStatusCompleted,
		"busy":        calls.CallStatusBusy,
		"failed":      calls.CallStatusFailed,
		"no-answer":   calls.CallStatusNoAnswer,
		"canceled":    calls.CallStatusCanceled,
		"something":   calls.CallStatusFailed,
		"":            calls.CallStatusFailed,
	}
	for in, want := range cases {
		if got := NormalizeStatus(in); got != want {
			t.Fatalf("NormalizeStatus(%q) = %q, want %q", in, got, want)
		}
	}
}
