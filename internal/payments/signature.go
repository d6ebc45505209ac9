package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SettlementNotification is the inbound webhook body that triggers order
// confirmation.
type SettlementNotification struct {
	ExternalOrderID string `json:"external_order_id" binding:"required"`
	PaymentID       string `json:"payment_id" binding:"required"`
	Signature       string `json:"signature" binding:"required"`
	Mode            string `json:"mode"`
}

// VerifySettlementSignature checks the gateway's HMAC over
// "externalOrderId|paymentId" against the shared webhook secret.
func VerifySettlementSignature(externalOrderID, paymentID, signature, secret string) bool {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s|%s", externalOrderID, paymentID)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignSettlement computes the signature the gateway attaches; exported for
// tests and the local mock gateway.
func SignSettlement(externalOrderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s|%s", externalOrderID, paymentID)
	return hex.EncodeToString(mac.Sum(nil))
}
