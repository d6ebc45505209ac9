package database

import (
	"strings"

	"gorm.io/gorm"
)

// MigrateConstraints adds the constraints and indexes the concurrency model
// leans on beyond what AutoMigrate produces.
func MigrateConstraints(db *gorm.DB) error {
	// One order per reservation, enforced by the database even if two
	// creation transactions race.
	err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS unique_order_per_reservation
		ON orders (reservation_id) WHERE reservation_id IS NOT NULL;
	`).Error
	if err != nil {
		return err
	}

	// Counter sanity on tiers. Mutations already guard these in
	// application transactions; the checks catch anything that slips.
	err = db.Exec(`
		ALTER TABLE ticket_tiers
		ADD CONSTRAINT tier_counters_non_negative
		CHECK (locked_quantity >= 0 AND locked_quantity <= remaining AND remaining <= total_quantity);
	`).Error
	if err != nil && !isDuplicateConstraint(err) {
		return err
	}

	// Sweep queries scan by status and cutoff.
	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_reservations_status_expires
		ON reservations (status, expires_at);
	`).Error
	if err != nil {
		return err
	}

	err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_orders_status_created
		ON orders (status, created_at);
	`).Error
	if err != nil {
		return err
	}

	// One redemption per order for a given code.
	err = db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS unique_redemption_per_order
		ON promo_redemptions (promo_code_id, order_id);
	`).Error
	if err != nil {
		return err
	}

	return nil
}

func isDuplicateConstraint(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "already exists") || strings.Contains(err.Error(), "42710"))
}
