package telephony

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"testing"

	"crm-call-tracker/internal/config"

	"github.com/gin-gonic/gin"
)

// twilioSign reproduces the provider's signing scheme: HMAC-SHA1 over the
// full callback URL followed by the form parameters sorted by name.
func twilioSign(authToken, fullURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(fullURL)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(form.Get(k))
	}
	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func signedRouter(cfg config.TwilioConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhooks/twilio/status", RequireTwilioSignature(cfg), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestRequireTwilioSignature(t *testing.T) {
	cfg := config.TwilioConfig{
		AccountSID:    "AC123",
		AuthToken:     "secret-token",
		PublicBaseURL: "https://api.example.com",
	}
	r := signedRouter(cfg)

	form := url.Values{
		"CallSid":    {"CA1"},
		"CallStatus": {"completed"},
	}
	sig := twilioSign(cfg.AuthToken, "https://api.example.com/webhooks/twilio/status", form)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", sig)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("valid signature rejected: %d %s", w.Code, w.Body.String())
	}
}

func TestRequireTwilioSignatureRejects(t *testing.T) {
	cfg := config.TwilioConfig{
		AccountSID:    "AC123",
		AuthToken:     "secret-token",
		PublicBaseURL: "https://api.example.com",
	}
	r := signedRouter(cfg)

	form := url.Values{"CallSid": {"CA1"}}

	// missing header
	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("missing signature: expected 401, got %d", w.Code)
	}

	// wrong key
	sig := twilioSign("other-token", "https://api.example.com/webhooks/twilio/status", form)
	req = httptest.NewRequest(http.MethodPost, "/webhooks/twilio/status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Twilio-Signature", sig)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("bad signature: expected 401, got %d", w.Code)
	}
}

func TestRequireTwilioSignatureSkip(t *testing.T) {
	cfg := config.TwilioConfig{
		AccountSID:          "AC123",
		AuthToken:           "secret-token",
		PublicBaseURL:       "https://api.example.com",
		SkipSignatureVerify: true,
	}
	r := signedRouter(cfg)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/twilio/status", strings.NewReader("CallSid=CA1"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("skip flag ignored: %d", w.Code)
	}
}
