package telephony

import (
	"encoding/xml"
	"fmt"
)

// Minimal TwiML rendering for the voice webhook. Only the verbs we actually
// emit are modeled.

type TwiMLResponse struct {
	XMLName xml.Name     `xml:"Response"`
	Verbs   []interface{}
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type twimlDial struct {
	XMLName xml.Name `xml:"Dial"`
	Number  string   `xml:",chardata"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type twimlReject struct {
	XMLName xml.Name `xml:"Reject"`
	Reason  string   `xml:"reason,attr,omitempty"`
}

func (r *TwiMLResponse) Say(text string) *TwiMLResponse {
	r.Verbs = append(r.Verbs, twimlSay{Text: text})
	return r
}

func (r *TwiMLResponse) Dial(number string) *TwiMLResponse {
	r.Verbs = append(r.Verbs, twimlDial{Number: number})
	return r
}

func (r *TwiMLResponse) Hangup() *TwiMLResponse {
	r.Verbs = append(r.Verbs, twimlHangup{})
	return r
}

func (r *TwiMLResponse) Reject(reason string) *TwiMLResponse {
	r.Verbs = append(r.Verbs, twimlReject{Reason: reason})
	return r
}

// Render serializes the response with the XML declaration Twilio expects.
func (r *TwiMLResponse) Render() ([]byte, error) {
	body, err := xml.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("render twiml: %w", err)
	}
	return append([]byte(xml.Header), body...), nil
}
