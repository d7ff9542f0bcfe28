package telephony

import (
	"strconv"
	"time"
)

// Twilio delivers webhooks as application/x-www-form-urlencoded POSTs; these
// structs bind the fields we consume. Field names match Twilio's parameter
// names exactly.

// StatusCallbackForm is the call progress notification.
type StatusCallbackForm struct {
	CallSid      string `form:"CallSid" binding:"required"`
	CallStatus   string `form:"CallStatus" binding:"required"`
	CallDuration string `form:"CallDuration"`
	Timestamp    string `form:"Timestamp"`
	ErrorCode    string `form:"ErrorCode"`
}

// EventTime parses the Timestamp parameter (RFC 1123 with numeric zone).
// Returns nil when absent or unparseable; callers then stamp processing time.
func (f StatusCallbackForm) EventTime() *time.Time {
	if f.Timestamp == "" {
		return nil
	}
	t, err := time.Parse(time.RFC1123Z, f.Timestamp)
	if err != nil {
		return nil
	}
	u := t.UTC()
	return &u
}

// DurationSeconds parses the CallDuration parameter. Returns nil when absent
// or malformed.
func (f StatusCallbackForm) DurationSeconds() *int {
	if f.CallDuration == "" {
		return nil
	}
	n, err := strconv.Atoi(f.CallDuration)
	if err != nil || n < 0 {
		return nil
	}
	return &n
}

// RecordingCallbackForm is the recording availability notification.
type RecordingCallbackForm struct {
	CallSid           string `form:"CallSid" binding:"required"`
	RecordingSid      string `form:"RecordingSid"`
	RecordingUrl      string `form:"RecordingUrl" binding:"required"`
	RecordingStatus   string `form:"RecordingStatus"`
	RecordingDuration string `form:"RecordingDuration"`
}

// InboundCallForm is the initial request for a provider-originated call.
type InboundCallForm struct {
	CallSid    string `form:"CallSid" binding:"required"`
	From       string `form:"From" binding:"required"`
	To         string `form:"To" binding:"required"`
	Direction  string `form:"Direction"`
	CallStatus string `form:"CallStatus"`
}
