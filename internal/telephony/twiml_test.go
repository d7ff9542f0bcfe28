package telephony

import (
	"strings"
	"testing"
)

func TestTwiMLRender(t *testing.T) {
	body, err := (&TwiMLResponse{}).Say("hello").Hangup().Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	xml := string(body)
	if !strings.HasPrefix(xml, "<?xml") {
		t.Fatalf("expected xml declaration: %s", xml)
	}
	for _, want := range []string{"<Response>", "<Say>hello</Say>", "<Hangup>", "</Response>"} {
		if !strings.Contains(xml, want) {
			t.Fatalf("expected %q in %s", want, xml)
		}
	}
}

func TestTwiMLRenderDialAndReject(t *testing.T) {
	body, err := (&TwiMLResponse{}).Dial("+15550001111").Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(string(body), "<Dial>+15550001111</Dial>") {
		t.Fatalf("expected dial verb: %s", body)
	}

	body, err = (&TwiMLResponse{}).Reject("busy").Render()
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(string(body), `<Reject reason="busy">`) {
		t.Fatalf("expected reject verb: %s", body)
	}
}
