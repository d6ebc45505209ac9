package main

import (
	"fmt"
	"log"
	"time"

	"tixly/internal/events"
	"tixly/internal/inventory"
	"tixly/internal/promos"
	"tixly/internal/shared/config"
	"tixly/internal/shared/database"

	"github.com/google/uuid"
)

type Seeder struct {
	db *database.DB
}

func main() {
	fmt.Println("🌱 Starting Tixly Database Seeder...")

	cfg := config.Load()

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	seeder := &Seeder{db: db}

	fmt.Println("\n🧹 Cleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}
	fmt.Println("✅ Database cleaned successfully")

	fmt.Println("\n🌱 Seeding database...")
	if err := seeder.SeedAll(); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}
	fmt.Println("✅ Database seeded successfully")

	fmt.Println("\n🎉 Seeding completed! Database is ready for testing.")
}

// CleanDatabase truncates all tables in reverse dependency order.
func (s *Seeder) CleanDatabase() error {
	tables := []string{
		"promo_redemptions",
		"promo_code_tiers",
		"promo_codes",
		"order_idempotency_keys",
		"order_credentials",
		"order_items",
		"orders",
		"reservation_items",
		"reservations",
		"ticket_tiers",
		"events",
	}

	tx := s.db.PostgreSQL.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Exec("SET CONSTRAINTS ALL DEFERRED").Error; err != nil {
		tx.Rollback()
		return fmt.Errorf("failed to defer constraints: %w", err)
	}

	for _, table := range tables {
		fmt.Printf("  Truncating table: %s\n", table)
		if err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to truncate table %s: %w", table, err)
		}
	}

	return tx.Commit().Error
}

// SeedAll seeds a paid event with tiers and promos, plus a free RSVP event.
func (s *Seeder) SeedAll() error {
	now := time.Now().UTC()
	saleStart := now.Add(-1 * time.Hour)
	saleEnd := now.Add(30 * 24 * time.Hour)

	concert := &events.Event{
		Slug:        "summer-arena-night",
		Name:        "Summer Arena Night",
		Description: "Headline show with two support acts.",
		Venue:       "Riverside Arena",
		StartsAt:    now.Add(31 * 24 * time.Hour),
		EndsAt:      now.Add(31*24*time.Hour + 5*time.Hour),
		Status:      events.StatusPublished,
		Tiers: []inventory.TicketTier{
			{
				Name:          "General Admission",
				TotalQuantity: 5000,
				Remaining:     5000,
				MinPerOrder:   1,
				MaxPerOrder:   8,
				SaleStartsAt:  saleStart,
				SaleEndsAt:    saleEnd,
				EntryType:     "general",
				PriceCents:    450000,
				PriceLabel:    "₹4,500.00",
			},
			{
				Name:          "VIP",
				TotalQuantity: 200,
				Remaining:     200,
				MinPerOrder:   1,
				MaxPerOrder:   4,
				SaleStartsAt:  saleStart,
				SaleEndsAt:    saleEnd,
				EntryType:     "vip",
				PriceCents:    1500000,
				PriceLabel:    "₹15,000.00",
			},
		},
	}

	if err := s.db.PostgreSQL.Create(concert).Error; err != nil {
		return fmt.Errorf("failed to seed concert: %w", err)
	}
	fmt.Printf("  Seeded event: %s (%s)\n", concert.Name, concert.ID)

	meetup := &events.Event{
		Slug:        "open-source-meetup",
		Name:        "Open Source Meetup",
		Description: "Monthly community meetup, free entry.",
		Venue:       "Hub Coworking",
		StartsAt:    now.Add(14 * 24 * time.Hour),
		EndsAt:      now.Add(14*24*time.Hour + 3*time.Hour),
		Status:      events.StatusPublished,
		IsRSVP:      true,
		Tiers: []inventory.TicketTier{
			{
				Name:          "Attendee",
				TotalQuantity: 150,
				Remaining:     150,
				MinPerOrder:   1,
				MaxPerOrder:   2,
				SaleStartsAt:  saleStart,
				SaleEndsAt:    saleEnd,
				EntryType:     "general",
				PriceCents:    0,
				PriceLabel:    "Free",
			},
		},
	}

	if err := s.db.PostgreSQL.Create(meetup).Error; err != nil {
		return fmt.Errorf("failed to seed meetup: %w", err)
	}
	fmt.Printf("  Seeded event: %s (%s)\n", meetup.Name, meetup.ID)

	return s.seedPromos(concert)
}

func (s *Seeder) seedPromos(concert *events.Event) error {
	now := time.Now().UTC()
	validFrom := now.Add(-1 * time.Hour)
	validUntil := now.Add(14 * 24 * time.Hour)

	var gaTierID uuid.UUID
	for _, tier := range concert.Tiers {
		if tier.Name == "General Admission" {
			gaTierID = tier.ID
		}
	}

	earlyBird := &promos.PromoCode{
		EventID:        concert.ID,
		Code:           "EARLYBIRD20",
		DiscountType:   promos.DiscountPercentage,
		DiscountValue:  20,
		StartsAt:       validFrom,
		EndsAt:         validUntil,
		Active:         true,
		MaxRedemptions: 500,
		MaxPerUser:     1,
		ApplicableTiers: []promos.PromoCodeTier{
			{TierID: gaTierID},
		},
	}
	if err := s.db.PostgreSQL.Create(earlyBird).Error; err != nil {
		return fmt.Errorf("failed to seed promo: %w", err)
	}
	fmt.Printf("  Seeded promo: %s\n", earlyBird.Code)

	flat := &promos.PromoCode{
		EventID:       concert.ID,
		Code:          "FLAT500",
		DiscountType:  promos.DiscountFixed,
		DiscountValue: 50000,
		StartsAt:      validFrom,
		EndsAt:        validUntil,
		Active:        true,
		MaxPerUser:    2,
	}
	if err := s.db.PostgreSQL.Create(flat).Error; err != nil {
		return fmt.Errorf("failed to seed promo: %w", err)
	}
	fmt.Printf("  Seeded promo: %s (all tiers)\n", flat.Code)

	return nil
}
