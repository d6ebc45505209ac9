package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetRateLimitType(t *testing.T) {
	cases := []struct {
		path string
		want RateLimitType
	}{
		{"/api/v1/payments/webhook", RateLimitTypeWebhook},
		{"/api/v1/reservations", RateLimitTypeCheckout},
		{"/api/v1/reservations/:id/release", RateLimitTypeCheckout},
		{"/api/v1/orders", RateLimitTypeCheckout},
		{"/api/v1/orders/by-reservation/:reservationId", RateLimitTypeCheckout},
		{"/api/v1/promos/validate", RateLimitTypeCheckout},
		{"/api/v1/events/:idOrSlug/availability", RateLimitTypePublic},
		{"/api/v1/credentials/verify", RateLimitTypePublic},
		{"/health", RateLimitTypeDefault},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, getRateLimitType(tc.path), tc.path)
	}
}

func TestGetLimitPerType(t *testing.T) {
	limiter := NewRateLimiter(nil, &Config{
		DefaultRequests:  60,
		PublicRequests:   100,
		CheckoutRequests: 20,
		WebhookRequests:  120,
	})

	assert.Equal(t, 20, limiter.getLimit(RateLimitTypeCheckout))
	assert.Equal(t, 100, limiter.getLimit(RateLimitTypePublic))
	assert.Equal(t, 120, limiter.getLimit(RateLimitTypeWebhook))
	assert.Equal(t, 60, limiter.getLimit(RateLimitType("other")))
}
