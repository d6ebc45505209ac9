package reservations

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusConverted Status = "converted"
	StatusExpired   Status = "expired"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusConverted, StatusExpired:
		return true
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether the status is final. Terminal reservations are
// never resurrected; a new hold must be created instead.
func (s Status) IsTerminal() bool {
	return s == StatusConverted || s == StatusExpired
}

// Reservation is an ephemeral hold that locks tier stock during checkout.
// The random uuid primary key doubles as the unguessable client handle.
type Reservation struct {
	ID         uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	EventID    uuid.UUID `gorm:"type:uuid;index;not null" json:"event_id"`
	CustomerID uuid.UUID `gorm:"type:uuid;index;not null" json:"customer_id"`
	DeviceID   string    `gorm:"size:100" json:"device_id"`
	Status     Status    `gorm:"type:varchar(20);check:status IN ('active', 'converted', 'expired');default:'active'" json:"status"`
	ExpiresAt  time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Items []ReservationItem `json:"items,omitempty" gorm:"foreignKey:ReservationID;constraint:OnDelete:CASCADE;"`
}

// TableName sets the table name for Reservation
func (Reservation) TableName() string {
	return "reservations"
}

// ReservationItem is one held line of the cart. Unit price and label are
// snapshotted from the tier at hold time so the quoted price survives later
// catalog edits.
type ReservationItem struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ReservationID  uuid.UUID `gorm:"type:uuid;index;not null" json:"reservation_id"`
	TierID         uuid.UUID `gorm:"type:uuid;index;not null" json:"tier_id"`
	TierName       string    `gorm:"size:255" json:"tier_name"`
	Quantity       int       `gorm:"not null;check:quantity > 0" json:"quantity"`
	UnitPriceCents int64     `gorm:"not null" json:"unit_price_cents"`
	PriceLabel     string    `gorm:"size:100" json:"price_label"`
	SubtotalCents  int64     `gorm:"not null" json:"subtotal_cents"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName sets the table name for ReservationItem
func (ReservationItem) TableName() string {
	return "reservation_items"
}

func (r *Reservation) IsActive() bool {
	return r.Status == StatusActive
}

func (r *Reservation) IsExpired(now time.Time) bool {
	return r.Status == StatusExpired || (r.Status == StatusActive && now.After(r.ExpiresAt))
}

// TotalCents sums the held lines.
func (r *Reservation) TotalCents() int64 {
	var total int64
	for _, item := range r.Items {
		total += item.SubtotalCents
	}
	return total
}

// CreateReservationRequest represents a hold request
type CreateReservationRequest struct {
	EventID string                   `json:"event_id" binding:"required,uuid"`
	Items   []ReservationItemRequest `json:"items" binding:"required,min=1,dive"`
}

// ReservationItemRequest is one requested (tier, quantity) pair
type ReservationItemRequest struct {
	TierID   string `json:"tier_id" binding:"required,uuid"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
}

// ReservationResponse represents a hold in API responses
type ReservationResponse struct {
	ReservationID    string            `json:"reservation_id"`
	EventID          string            `json:"event_id"`
	Status           string            `json:"status"`
	Items            []ReservationItem `json:"items"`
	TotalCents       int64             `json:"total_cents"`
	ExpiresAt        time.Time         `json:"expires_at"`
	CountdownSeconds int               `json:"countdown_seconds"`
	CreatedAt        time.Time         `json:"created_at"`
}

// ToResponse builds the client view with the expiry countdown.
func (r *Reservation) ToResponse(now time.Time) ReservationResponse {
	countdown := int(r.ExpiresAt.Sub(now).Seconds())
	if countdown < 0 || !r.IsActive() {
		countdown = 0
	}

	return ReservationResponse{
		ReservationID:    r.ID.String(),
		EventID:          r.EventID.String(),
		Status:           r.Status.String(),
		Items:            r.Items,
		TotalCents:       r.TotalCents(),
		ExpiresAt:        r.ExpiresAt,
		CountdownSeconds: countdown,
		CreatedAt:        r.CreatedAt,
	}
}
