package reservations

import (
	"context"
	"testing"
	"time"

	"tixly/internal/inventory"
	"tixly/internal/shared/apperr"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newRepoDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	for _, ddl := range []string{
		`CREATE TABLE ticket_tiers (
			id TEXT PRIMARY KEY,
			event_id TEXT NOT NULL,
			name TEXT NOT NULL,
			total_quantity INTEGER NOT NULL,
			remaining INTEGER NOT NULL,
			locked_quantity INTEGER NOT NULL DEFAULT 0,
			min_per_order INTEGER NOT NULL DEFAULT 1,
			max_per_order INTEGER NOT NULL DEFAULT 10,
			sale_starts_at DATETIME NOT NULL,
			sale_ends_at DATETIME NOT NULL,
			entry_type TEXT DEFAULT 'general',
			price_cents INTEGER NOT NULL,
			price_label TEXT,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE reservations (
			id TEXT PRIMARY KEY,
			event_id TEXT NOT NULL,
			customer_id TEXT NOT NULL,
			device_id TEXT,
			status TEXT DEFAULT 'active',
			expires_at DATETIME NOT NULL,
			created_at DATETIME,
			updated_at DATETIME
		)`,
		`CREATE TABLE reservation_items (
			id TEXT PRIMARY KEY,
			reservation_id TEXT NOT NULL,
			tier_id TEXT NOT NULL,
			tier_name TEXT,
			quantity INTEGER NOT NULL,
			unit_price_cents INTEGER NOT NULL,
			price_label TEXT,
			subtotal_cents INTEGER NOT NULL,
			created_at DATETIME
		)`,
	} {
		require.NoError(t, db.Exec(ddl).Error)
	}

	return db
}

func seedRepoTier(t *testing.T, db *gorm.DB, eventID uuid.UUID, total int, priceCents int64) *inventory.TicketTier {
	t.Helper()

	now := time.Now().UTC()
	tier := &inventory.TicketTier{
		ID:            uuid.New(),
		EventID:       eventID,
		Name:          "GA",
		TotalQuantity: total,
		Remaining:     total,
		MinPerOrder:   1,
		MaxPerOrder:   10,
		SaleStartsAt:  now.Add(-time.Hour),
		SaleEndsAt:    now.Add(time.Hour),
		PriceCents:    priceCents,
		PriceLabel:    "₹4,500",
	}
	require.NoError(t, db.Create(tier).Error)
	return tier
}

func reloadRepoTier(t *testing.T, db *gorm.DB, id uuid.UUID) inventory.TicketTier {
	t.Helper()
	var tier inventory.TicketTier
	require.NoError(t, db.Where("id = ?", id).First(&tier).Error)
	return tier
}

func newHold(eventID uuid.UUID, items ...ReservationItem) *Reservation {
	return &Reservation{
		ID:         uuid.New(),
		EventID:    eventID,
		CustomerID: uuid.New(),
		Status:     StatusActive,
		ExpiresAt:  time.Now().UTC().Add(10 * time.Minute),
		Items:      items,
	}
}

func TestCreateWithStockLock_HoldsAndSnapshotsPrices(t *testing.T) {
	db := newRepoDB(t)
	repo := NewRepository(db, inventory.NewLedger())
	eventID := uuid.New()
	tier := seedRepoTier(t, db, eventID, 10, 450000)

	reservation := newHold(eventID, ReservationItem{ID: uuid.New(), TierID: tier.ID, Quantity: 2})
	require.NoError(t, repo.CreateWithStockLock(context.Background(), reservation))

	held := reloadRepoTier(t, db, tier.ID)
	assert.Equal(t, 10, held.Remaining)
	assert.Equal(t, 2, held.LockedQuantity)
	assert.True(t, held.CheckInvariant())

	stored, err := repo.GetByID(context.Background(), reservation.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "GA", stored.Items[0].TierName)
	assert.Equal(t, int64(450000), stored.Items[0].UnitPriceCents)
	assert.Equal(t, int64(900000), stored.Items[0].SubtotalCents)
	assert.Equal(t, int64(900000), stored.TotalCents())
}

func TestCreateWithStockLock_IsAllOrNothing(t *testing.T) {
	db := newRepoDB(t)
	repo := NewRepository(db, inventory.NewLedger())
	eventID := uuid.New()
	plenty := seedRepoTier(t, db, eventID, 10, 450000)
	scarce := seedRepoTier(t, db, eventID, 1, 1500000)

	reservation := newHold(eventID,
		ReservationItem{ID: uuid.New(), TierID: plenty.ID, Quantity: 2},
		ReservationItem{ID: uuid.New(), TierID: scarce.ID, Quantity: 2},
	)
	err := repo.CreateWithStockLock(context.Background(), reservation)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindSoldOut))

	// The whole cart rolled back; the line that would have fit holds nothing.
	assert.Equal(t, 0, reloadRepoTier(t, db, plenty.ID).LockedQuantity)
	assert.Equal(t, 0, reloadRepoTier(t, db, scarce.ID).LockedQuantity)

	_, err = repo.GetByID(context.Background(), reservation.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestCreateWithStockLock_RejectsClosedWindow(t *testing.T) {
	db := newRepoDB(t)
	repo := NewRepository(db, inventory.NewLedger())
	eventID := uuid.New()
	tier := seedRepoTier(t, db, eventID, 10, 450000)
	require.NoError(t, db.Model(&inventory.TicketTier{}).
		Where("id = ?", tier.ID).
		Update("sale_ends_at", time.Now().UTC().Add(-time.Minute)).Error)

	reservation := newHold(eventID, ReservationItem{ID: uuid.New(), TierID: tier.ID, Quantity: 1})
	err := repo.CreateWithStockLock(context.Background(), reservation)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
	assert.Equal(t, 0, reloadRepoTier(t, db, tier.ID).LockedQuantity)
}

func TestCreateWithStockLock_RejectsForeignTier(t *testing.T) {
	db := newRepoDB(t)
	repo := NewRepository(db, inventory.NewLedger())
	tier := seedRepoTier(t, db, uuid.New(), 10, 450000)

	reservation := newHold(uuid.New(), ReservationItem{ID: uuid.New(), TierID: tier.ID, Quantity: 1})
	err := repo.CreateWithStockLock(context.Background(), reservation)
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestRelease_ReturnsHeldStockAndIsTerminal(t *testing.T) {
	db := newRepoDB(t)
	repo := NewRepository(db, inventory.NewLedger())
	eventID := uuid.New()
	tier := seedRepoTier(t, db, eventID, 10, 450000)

	reservation := newHold(eventID, ReservationItem{ID: uuid.New(), TierID: tier.ID, Quantity: 3})
	require.NoError(t, repo.CreateWithStockLock(context.Background(), reservation))
	require.Equal(t, 3, reloadRepoTier(t, db, tier.ID).LockedQuantity)

	released, err := repo.Release(context.Background(), reservation.ID)
	require.NoError(t, err)
	assert.True(t, released)
	assert.Equal(t, 0, reloadRepoTier(t, db, tier.ID).LockedQuantity)

	stored, err := repo.GetByID(context.Background(), reservation.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, stored.Status)

	// A second release is a no-op: no error, no double counter credit.
	released, err = repo.Release(context.Background(), reservation.ID)
	require.NoError(t, err)
	assert.False(t, released)
	assert.Equal(t, 0, reloadRepoTier(t, db, tier.ID).LockedQuantity)
}

func TestListExpiredIDs_PicksOnlyLapsedActiveHolds(t *testing.T) {
	db := newRepoDB(t)
	repo := NewRepository(db, inventory.NewLedger())
	now := time.Now().UTC()

	lapsed := newHold(uuid.New())
	lapsed.ExpiresAt = now.Add(-time.Minute)
	live := newHold(uuid.New())
	live.ExpiresAt = now.Add(10 * time.Minute)
	alreadyExpired := newHold(uuid.New())
	alreadyExpired.Status = StatusExpired
	alreadyExpired.ExpiresAt = now.Add(-time.Hour)

	for _, r := range []*Reservation{lapsed, live, alreadyExpired} {
		require.NoError(t, db.Create(r).Error)
	}

	ids, err := repo.ListExpiredIDs(context.Background(), now, 10)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, lapsed.ID, ids[0])
}
