package util

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"
)

// SignWebhook computes the hex HMAC-SHA256 of "{timestampMs}.{idempotencyKey}.{payload}".
func SignWebhook(secret string, timestampMs int64, idempotencyKey string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(strconv.FormatInt(timestampMs, 10)))
	mac.Write([]byte("."))
	mac.Write([]byte(idempotencyKey))
	mac.Write([]byte("."))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature compares signature against the expected HMAC in constant time.
func VerifyWebhookSignature(secret string, timestampMs int64, idempotencyKey string, payload []byte, signature string) bool {
	provided, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(provided) != sha256.Size {
		return false
	}
	expected, _ := hex.DecodeString(SignWebhook(secret, timestampMs, idempotencyKey, payload))
	return hmac.Equal(provided, expected)
}

// SecretsEqual compares two shared secrets without leaking timing. An empty
// expected secret never matches.
func SecretsEqual(expected, provided string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(provided)) == 1
}
