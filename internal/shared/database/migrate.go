package database

import (
	"tixly/internal/events"
	"tixly/internal/inventory"
	"tixly/internal/orders"
	"tixly/internal/promos"
	"tixly/internal/reservations"

	"gorm.io/gorm"
)

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&events.Event{},
		&inventory.TicketTier{},
		&reservations.Reservation{},
		&reservations.ReservationItem{},
		&orders.Order{},
		&orders.OrderItem{},
		&orders.IssuedCredential{},
		&orders.IdempotencyKey{},
		&promos.PromoCode{},
		&promos.PromoCodeTier{},
		&promos.PromoRedemption{},
	)
}
