package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testTier() *TicketTier {
	now := time.Now().UTC()
	return &TicketTier{
		Name:           "General Admission",
		TotalQuantity:  100,
		Remaining:      80,
		LockedQuantity: 10,
		MinPerOrder:    1,
		MaxPerOrder:    8,
		SaleStartsAt:   now.Add(-time.Hour),
		SaleEndsAt:     now.Add(time.Hour),
		PriceCents:     450000,
	}
}

func TestTierAvailable(t *testing.T) {
	tier := testTier()
	assert.Equal(t, 70, tier.Available())

	tier.LockedQuantity = 80
	assert.Equal(t, 0, tier.Available())
}

func TestTierSaleOpen(t *testing.T) {
	tier := testTier()
	now := time.Now().UTC()

	assert.True(t, tier.SaleOpen(now))
	assert.False(t, tier.SaleOpen(now.Add(-2*time.Hour)))
	assert.False(t, tier.SaleOpen(now.Add(2*time.Hour)))

	// Window start is inclusive, end is exclusive.
	assert.True(t, tier.SaleOpen(tier.SaleStartsAt))
	assert.False(t, tier.SaleOpen(tier.SaleEndsAt))
}

func TestTierAllowsQuantity(t *testing.T) {
	tier := testTier()

	assert.True(t, tier.AllowsQuantity(1))
	assert.True(t, tier.AllowsQuantity(8))
	assert.False(t, tier.AllowsQuantity(0))
	assert.False(t, tier.AllowsQuantity(9))

	tier.MinPerOrder = 2
	assert.False(t, tier.AllowsQuantity(1))

	// MaxPerOrder of zero means no upper bound.
	tier.MaxPerOrder = 0
	assert.True(t, tier.AllowsQuantity(500))
}

func TestTierCheckInvariant(t *testing.T) {
	tier := testTier()
	assert.True(t, tier.CheckInvariant())

	tier.LockedQuantity = 90
	assert.False(t, tier.CheckInvariant(), "locked above remaining")

	tier = testTier()
	tier.Remaining = 120
	assert.False(t, tier.CheckInvariant(), "remaining above total")

	tier = testTier()
	tier.LockedQuantity = -1
	assert.False(t, tier.CheckInvariant())
}
