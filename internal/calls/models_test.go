package calls

import "testing"

func TestCallStatus_IsTerminal(t *testing.T) {
	terminal := []CallStatus{
		CallStatusCompleted, CallStatusBusy, CallStatusFailed,
		CallStatusNoAnswer, CallStatusCanceled,
	}
	for _, s := range terminal {
		if !s.IsTerminal() {
			t.Fatalf("expected %q terminal", s)
		}
	}

	live := []CallStatus{
		CallStatusInitiated, CallStatusQueued, CallStatusRinging,
		CallStatusInProgress, CallStatusRecordingAvailable,
	}
	for _, s := range live {
		if s.IsTerminal() {
			t.Fatalf("expected %q non-terminal", s)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if st, ok := ParseStatus("in_progress"); !ok || st != CallStatusInProgress {
		t.Fatalf("expected in_progress to parse, got %q ok=%v", st, ok)
	}
	if _, ok := ParseStatus("in-progress"); ok {
		t.Fatalf("provider-style status must not parse")
	}
	if _, ok := ParseStatus(""); ok {
		t.Fatalf("empty status must not parse")
	}
}
