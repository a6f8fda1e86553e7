package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Sign returns the hex HMAC-SHA256 of payload under secret.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyPaymentSignature checks the checkout signature over "orderID|paymentID".
func VerifyPaymentSignature(secret, orderID, paymentID, signature string) bool {
	return verify(secret, []byte(orderID+"|"+paymentID), signature)
}

// VerifyWebhookSignature checks a webhook signature over the exact raw body.
func VerifyWebhookSignature(secret string, body []byte, signature string) bool {
	return verify(secret, body, signature)
}

// verify compares lowercase hex digests, so a case change in the signature is a mismatch.
func verify(secret string, payload []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(secret, payload)), []byte(signature))
}
