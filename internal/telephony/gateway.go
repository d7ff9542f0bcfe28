package telephony

import (
	"context"
	"errors"
)

// Gateway is the provider-agnostic boundary for outbound telephony actions.
//
// Rules:
// - No provider SDK calls outside telephony adapters.
// - The gateway places calls and sends SMS; it does not decide retries and
//   it does not touch call records. Absorbing a placement failure into the
//   call's own state is the caller's job.
type Gateway interface {
	Name() string
	PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error)
	SendSMS(ctx context.Context, req SendSMSRequest) (SendSMSResult, error)
}

var (
	ErrInvalidRequest = errors.New("telephony: invalid request")

	// ErrProvider wraps any failure returned by the provider API or the
	// network in between.
	ErrProvider = errors.New("telephony: provider request failed")
)

type PlaceCallRequest struct {
	To   string `json:"to"`
	From string `json:"from"`

	// CallID is the internal record id, passed through so callback URLs and
	// provider-side metadata can reference it.
	CallID string `json:"call_id"`
}

type PlaceCallResult struct {
	// ProviderCallID is empty when the gateway runs in disabled mode.
	ProviderCallID string `json:"provider_call_id,omitempty"`
}

type SendSMSRequest struct {
	To   string `json:"to"`
	From string `json:"from"`
	Body string `json:"body"`
}

type SendSMSResult struct {
	ProviderMessageID string `json:"provider_message_id,omitempty"`
}
