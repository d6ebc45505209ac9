package events

import (
	"time"

	"tixly/internal/inventory"

	"github.com/google/uuid"
)

type Event struct {
	ID          uuid.UUID   `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	Slug        string      `json:"slug" gorm:"uniqueIndex;not null;size:255"`
	Name        string      `json:"name" gorm:"not null;size:255"`
	Description string      `json:"description" gorm:"type:text"`
	Venue       string      `json:"venue" gorm:"size:255"`
	StartsAt    time.Time   `json:"starts_at" gorm:"not null"`
	EndsAt      time.Time   `json:"ends_at"`
	Status      EventStatus `json:"status" gorm:"type:varchar(20);default:'draft'"`
	IsRSVP      bool        `json:"is_rsvp" gorm:"default:false"`

	Tiers []inventory.TicketTier `json:"tiers,omitempty" gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE;"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Event) TableName() string {
	return "events"
}

type EventStatus string

const (
	StatusDraft     EventStatus = "draft"
	StatusPublished EventStatus = "published"
	StatusCancelled EventStatus = "cancelled"
	StatusCompleted EventStatus = "completed"
)

func (s EventStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusPublished, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// Bookable reports whether orders and reservations may target the event.
func (e *Event) Bookable() bool {
	return e.Status == StatusPublished
}

type EventResponse struct {
	ID          string                       `json:"id"`
	Slug        string                       `json:"slug"`
	Name        string                       `json:"name"`
	Description string                       `json:"description"`
	Venue       string                       `json:"venue"`
	StartsAt    time.Time                    `json:"starts_at"`
	Status      EventStatus                  `json:"status"`
	IsRSVP      bool                         `json:"is_rsvp"`
	Tiers       []inventory.TierAvailability `json:"tiers"`
}

// ToResponse builds the public availability view. The counts it carries are
// display-only and may be stale; authoritative checks happen inside the
// reservation and order transactions.
func (e *Event) ToResponse(now time.Time) EventResponse {
	tiers := make([]inventory.TierAvailability, 0, len(e.Tiers))
	for i := range e.Tiers {
		t := &e.Tiers[i]
		available := t.Available()
		if available < 0 {
			available = 0
		}
		tiers = append(tiers, inventory.TierAvailability{
			TierID:     t.ID.String(),
			Name:       t.Name,
			Available:  available,
			PriceCents: t.PriceCents,
			PriceLabel: t.PriceLabel,
			SaleOpen:   t.SaleOpen(now),
		})
	}

	return EventResponse{
		ID:          e.ID.String(),
		Slug:        e.Slug,
		Name:        e.Name,
		Description: e.Description,
		Venue:       e.Venue,
		StartsAt:    e.StartsAt,
		Status:      e.Status,
		IsRSVP:      e.IsRSVP,
		Tiers:       tiers,
	}
}
