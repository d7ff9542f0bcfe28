package telephony

import (
	"net/http"

	"crm-call-tracker/internal/config"
	"crm-call-tracker/pkg/logger"

	"github.com/gin-gonic/gin"
	twclient "github.com/twilio/twilio-go/client"
)

// RequireTwilioSignature authenticates webhook requests using the
// X-Twilio-Signature header (HMAC-SHA1 over the public callback URL plus the
// sorted POST parameters, keyed with the auth token).
//
// The signed URL is reconstructed from the configured public base URL, not
// from the Host header, because the service usually sits behind a proxy.
func RequireTwilioSignature(cfg config.TwilioConfig) gin.HandlerFunc {
	if cfg.SkipSignatureVerify || cfg.Disabled() {
		return func(c *gin.Context) { c.Next() }
	}
	validator := twclient.NewRequestValidator(cfg.AuthToken)

	return func(c *gin.Context) {
		sig := c.GetHeader("X-Twilio-Signature")
		if sig == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing signature"})
			return
		}
		if err := c.Request.ParseForm(); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "malformed form body"})
			return
		}
		params := make(map[string]string, len(c.Request.PostForm))
		for k, v := range c.Request.PostForm {
			if len(v) > 0 {
				params[k] = v[0]
			}
		}
		url := cfg.WebhookURL(c.Request.URL.RequestURI())
		if !validator.Validate(url, params, sig) {
			logger.From(c.Request.Context()).Warn("rejected webhook with bad signature", "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
		c.Next()
	}
}
