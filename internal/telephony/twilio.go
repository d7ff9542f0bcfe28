package telephony

import (
	"context"
	"fmt"

	"crm-call-tracker/internal/config"
	"crm-call-tracker/pkg/logger"

	twilio "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioGateway places calls and sends SMS through the Twilio REST API.
//
// Disabled mode: when credentials are absent the gateway performs no network
// calls and returns empty provider ids, so the rest of the system keeps
// functioning in environments without live credentials.

type TwilioGateway struct {
	client *twilio.RestClient
	cfg    config.TwilioConfig
}

func NewTwilioGateway(cfg config.TwilioConfig) *TwilioGateway {
	g := &TwilioGateway{cfg: cfg}
	if !cfg.Disabled() {
		g.client = twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.AccountSID,
			Password: cfg.AuthToken,
		})
	}
	return g
}

func (g *TwilioGateway) Name() string { return "twilio" }

// Disabled reports whether the gateway skips real provider calls.
func (g *TwilioGateway) Disabled() bool { return g.client == nil }

func (g *TwilioGateway) PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error) {
	if req.To == "" || req.From == "" {
		return PlaceCallResult{}, ErrInvalidRequest
	}
	if g.client == nil {
		logger.From(ctx).Debug("twilio disabled, skipping call placement", "call_id", req.CallID, "to", req.To)
		return PlaceCallResult{}, nil
	}

	params := &openapi.CreateCallParams{}
	params.SetTo(req.To)
	params.SetFrom(req.From)
	params.SetUrl(g.cfg.WebhookURL("/webhooks/twilio/voice"))
	params.SetStatusCallback(g.cfg.WebhookURL("/webhooks/twilio/status"))
	params.SetStatusCallbackEvent([]string{"initiated", "ringing", "answered", "completed"})
	params.SetStatusCallbackMethod("POST")
	params.SetRecord(true)
	params.SetRecordingStatusCallback(g.cfg.WebhookURL("/webhooks/twilio/recording"))
	params.SetRecordingStatusCallbackMethod("POST")

	resp, err := g.client.Api.CreateCall(params)
	if err != nil {
		return PlaceCallResult{}, fmt.Errorf("%w: create call: %s", ErrProvider, err)
	}
	if resp.Sid == nil || *resp.Sid == "" {
		return PlaceCallResult{}, fmt.Errorf("%w: create call returned no sid", ErrProvider)
	}
	return PlaceCallResult{ProviderCallID: *resp.Sid}, nil
}

func (g *TwilioGateway) SendSMS(ctx context.Context, req SendSMSRequest) (SendSMSResult, error) {
	if req.To == "" || req.Body == "" {
		return SendSMSResult{}, ErrInvalidRequest
	}
	from := req.From
	if from == "" {
		from = g.cfg.FromNumber
	}
	if g.client == nil {
		logger.From(ctx).Debug("twilio disabled, skipping sms", "to", req.To)
		return SendSMSResult{}, nil
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(req.To)
	params.SetFrom(from)
	params.SetBody(req.Body)

	resp, err := g.client.Api.CreateMessage(params)
	if err != nil {
		return SendSMSResult{}, fmt.Errorf("%w: create message: %s", ErrProvider, err)
	}
	if resp.Sid == nil || *resp.Sid == "" {
		return SendSMSResult{}, fmt.Errorf("%w: create message returned no sid", ErrProvider)
	}
	return SendSMSResult{ProviderMessageID: *resp.Sid}, nil
}
