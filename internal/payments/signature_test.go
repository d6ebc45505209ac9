package payments

import (
	"testing"
	"time"

	"tixly/internal/shared/config"

	"github.com/stretchr/testify/assert"
)

func configWithCreds(keyID, keySecret string) config.PaymentConfig {
	return config.PaymentConfig{
		BaseURL:   "https://gateway.test/v1",
		KeyID:     keyID,
		KeySecret: keySecret,
		Currency:  "INR",
		Timeout:   time.Second,
	}
}

func TestSettlementSignatureRoundTrip(t *testing.T) {
	secret := "webhook-secret"
	signature := SignSettlement("ext_123", "pay_456", secret)

	assert.True(t, VerifySettlementSignature("ext_123", "pay_456", signature, secret))
}

func TestSettlementSignatureRejectsTampering(t *testing.T) {
	secret := "webhook-secret"
	signature := SignSettlement("ext_123", "pay_456", secret)

	assert.False(t, VerifySettlementSignature("ext_999", "pay_456", signature, secret))
	assert.False(t, VerifySettlementSignature("ext_123", "pay_999", signature, secret))
	assert.False(t, VerifySettlementSignature("ext_123", "pay_456", signature, "other-secret"))
	assert.False(t, VerifySettlementSignature("ext_123", "pay_456", "deadbeef", secret))
}

func TestNewGatewayPicksMockWithoutCredentials(t *testing.T) {
	gateway := NewGateway(configWithCreds("", ""))
	assert.IsType(t, MockGateway{}, gateway)

	gateway = NewGateway(configWithCreds("key_id", "key_secret"))
	assert.IsType(t, &httpGateway{}, gateway)
}
