package infra

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	secret := "whsec_test"
	body := []byte(`{"session_id":"sess_1","event_type":"payment.succeeded"}`)

	assert.True(t, VerifyWebhookSignature(secret, body, sign(secret, body)))
	assert.False(t, VerifyWebhookSignature(secret, body, sign("wrong_secret", body)))
	assert.False(t, VerifyWebhookSignature(secret, []byte(`tampered`), sign(secret, body)))
	assert.False(t, VerifyWebhookSignature(secret, body, ""))
	assert.False(t, VerifyWebhookSignature(secret, body, "not-hex"))
}
