package orders

import (
	"time"

	"tixly/internal/credentials"

	"github.com/google/uuid"
)

// orderNamespace seeds the deterministic reservation -> order id derivation.
// Two createOrder calls for the same reservation always produce the same
// order id, which is what makes retried submissions idempotent.
var orderNamespace = uuid.MustParse("9f2b1c4e-31a7-4d57-9b0a-52c8a4e7d1f3")

// DeriveOrderID maps a reservation id onto its one possible order id.
func DeriveOrderID(reservationID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(orderNamespace, []byte("order:"+reservationID.String()))
}

// Order is the durable sale record. Once confirmed it is append-only except
// for the terminal cancelled/refunded transitions.
type Order struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	EventID       uuid.UUID  `gorm:"type:uuid;index;not null" json:"event_id"`
	CustomerID    uuid.UUID  `gorm:"type:uuid;index;not null" json:"customer_id"`
	ReservationID *uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"reservation_id,omitempty"`
	IsRSVP        bool       `gorm:"default:false" json:"is_rsvp"`

	SubtotalCents int64      `gorm:"not null" json:"subtotal_cents"`
	PromoCodeID   *uuid.UUID `gorm:"type:uuid" json:"promo_code_id,omitempty"`
	DiscountCents int64      `gorm:"not null;default:0" json:"discount_cents"`
	TotalCents    int64      `gorm:"not null;check:total_cents >= 0" json:"total_cents"`

	Status       Status     `gorm:"type:varchar(20);check:status IN ('pending_payment', 'confirmed', 'expired', 'cancelled', 'refunded');default:'pending_payment'" json:"status"`
	ExpiryReason string     `gorm:"size:255" json:"expiry_reason,omitempty"`

	// Payment gateway identifiers attached at creation / settlement.
	ExternalOrderRef string `gorm:"index;size:100" json:"external_order_ref,omitempty"`
	PaymentID        string `gorm:"size:100" json:"payment_id,omitempty"`
	PaymentMode      string `gorm:"size:50" json:"payment_mode,omitempty"`

	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Items       []OrderItem        `json:"items,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE;"`
	Credentials []IssuedCredential `json:"credentials,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE;"`
}

// TableName sets the table name for Order
func (Order) TableName() string {
	return "orders"
}

// OrderItem is one sold line, priced as it was at sale time.
type OrderItem struct {
	ID             uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OrderID        uuid.UUID `gorm:"type:uuid;index;not null" json:"order_id"`
	TierID         uuid.UUID `gorm:"type:uuid;index;not null" json:"tier_id"`
	TierName       string    `gorm:"size:255" json:"tier_name"`
	Quantity       int       `gorm:"not null;check:quantity > 0" json:"quantity"`
	UnitPriceCents int64     `gorm:"not null" json:"unit_price_cents"`
	PriceLabel     string    `gorm:"size:100" json:"price_label"`
	SubtotalCents  int64     `gorm:"not null" json:"subtotal_cents"`
	EntryType      string    `gorm:"type:varchar(50);default:'general'" json:"entry_type"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName sets the table name for OrderItem
func (OrderItem) TableName() string {
	return "order_items"
}

// IssuedCredential is the persisted form of a minted QR payload. One row per
// ticket line, covering the line's whole quantity as a unit.
type IssuedCredential struct {
	ID        uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OrderID   uuid.UUID `gorm:"type:uuid;index;not null" json:"order_id"`
	EventID   uuid.UUID `gorm:"type:uuid;index;not null" json:"event_id"`
	TicketID  uuid.UUID `gorm:"type:uuid;not null" json:"ticket_id"`
	TierName  string    `gorm:"size:255" json:"tier_name"`
	OwnerID   uuid.UUID `gorm:"type:uuid;index;not null" json:"owner_id"`
	Quantity  int       `gorm:"not null" json:"quantity"`
	EntryType string    `gorm:"type:varchar(50)" json:"entry_type"`
	IsRSVP    bool      `gorm:"default:false" json:"is_rsvp"`
	IssuedAt  int64     `gorm:"not null" json:"issued_at"`
	Version   int       `gorm:"not null" json:"version"`
	Signature string    `gorm:"size:32;not null" json:"signature"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName sets the table name for IssuedCredential
func (IssuedCredential) TableName() string {
	return "order_credentials"
}

// ToPayload rebuilds the QR payload from the stored row.
func (c *IssuedCredential) ToPayload() credentials.Payload {
	return credentials.Payload{
		OrderID:   c.OrderID.String(),
		EventID:   c.EventID.String(),
		TicketID:  c.TicketID.String(),
		TierName:  c.TierName,
		OwnerID:   c.OwnerID.String(),
		Quantity:  c.Quantity,
		EntryType: c.EntryType,
		IsRSVP:    c.IsRSVP,
		IssuedAt:  c.IssuedAt,
		Version:   c.Version,
		Signature: c.Signature,
	}
}

func (o *Order) IsConfirmed() bool {
	return o.Status == StatusConfirmed
}

func (o *Order) IsFree() bool {
	return o.TotalCents == 0
}

// CreateOrderRequest represents order creation. Either a reservation id or a
// direct (event, tickets) cart must be supplied.
type CreateOrderRequest struct {
	ReservationID string               `json:"reservation_id" binding:"omitempty,uuid"`
	EventID       string               `json:"event_id" binding:"omitempty,uuid"`
	Tickets       []OrderTicketRequest `json:"tickets" binding:"omitempty,dive"`
	PromoCode     string               `json:"promo_code" binding:"omitempty,max=50"`
}

// OrderTicketRequest is one requested line on the direct purchase path.
type OrderTicketRequest struct {
	TierID   string `json:"tier_id" binding:"required,uuid"`
	Quantity int    `json:"quantity" binding:"required,min=1"`
}

// CreateRSVPOrderRequest represents a free RSVP registration.
type CreateRSVPOrderRequest struct {
	EventID string               `json:"event_id" binding:"required,uuid"`
	Tickets []OrderTicketRequest `json:"tickets" binding:"required,min=1,dive"`
}

// OrderResponse represents an order in API responses.
type OrderResponse struct {
	OrderID          string                `json:"order_id"`
	EventID          string                `json:"event_id"`
	ReservationID    string                `json:"reservation_id,omitempty"`
	Status           string                `json:"status"`
	IsRSVP           bool                  `json:"is_rsvp"`
	Items            []OrderItem           `json:"items"`
	SubtotalCents    int64                 `json:"subtotal_cents"`
	DiscountCents    int64                 `json:"discount_cents"`
	TotalCents       int64                 `json:"total_cents"`
	ExternalOrderRef string                `json:"external_order_ref,omitempty"`
	QRCodes          []QRCodeResponse      `json:"qr_codes,omitempty"`
	ConfirmedAt      *time.Time            `json:"confirmed_at,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
}

// QRCodeResponse carries both encodings of one issued credential.
type QRCodeResponse struct {
	Payload   credentials.Payload `json:"payload"`
	Shortcode string              `json:"shortcode"`
}

// ToResponse builds the client view of an order.
func (o *Order) ToResponse() OrderResponse {
	resp := OrderResponse{
		OrderID:          o.ID.String(),
		EventID:          o.EventID.String(),
		Status:           o.Status.String(),
		IsRSVP:           o.IsRSVP,
		Items:            o.Items,
		SubtotalCents:    o.SubtotalCents,
		DiscountCents:    o.DiscountCents,
		TotalCents:       o.TotalCents,
		ExternalOrderRef: o.ExternalOrderRef,
		ConfirmedAt:      o.ConfirmedAt,
		CreatedAt:        o.CreatedAt,
	}
	if o.ReservationID != nil {
		resp.ReservationID = o.ReservationID.String()
	}
	for i := range o.Credentials {
		payload := o.Credentials[i].ToPayload()
		resp.QRCodes = append(resp.QRCodes, QRCodeResponse{
			Payload:   payload,
			Shortcode: payload.Shortcode(),
		})
	}
	return resp
}
