package orders

import (
	"context"
	"fmt"
	"time"

	"tixly/internal/credentials"
	"tixly/internal/events"
	"tixly/internal/payments"
	"tixly/internal/promos"
	"tixly/internal/reservations"
	"tixly/internal/shared/apperr"
	"tixly/internal/stream"
	"tixly/pkg/logger"

	"github.com/google/uuid"
)

// Service interface defines the contract for order business logic
type Service interface {
	CreateOrder(ctx context.Context, customerID uuid.UUID, req CreateOrderRequest, idempotencyKey string) (*OrderResponse, error)
	CreateRSVPOrder(ctx context.Context, customerID uuid.UUID, req CreateRSVPOrderRequest, idempotencyKey string) (*OrderResponse, error)
	ConfirmFromNotification(ctx context.Context, notification payments.SettlementNotification) (*OrderResponse, error)
	GetOrder(ctx context.Context, customerID, orderID uuid.UUID) (*OrderResponse, error)
	GetOrderByReservation(ctx context.Context, customerID, reservationID uuid.UUID) (*OrderResponse, error)

	VerifyCredential(ctx context.Context, payload credentials.Payload) (*VerificationResponse, error)
	VerifyShortcode(ctx context.Context, code string) (*VerificationResponse, error)

	// ExpireStaleBatch expires up to batchSize pending orders older than the
	// payment timeout; used by the background reclaimer.
	ExpireStaleBatch(ctx context.Context, batchSize int) (int, error)
}

// VerificationResponse is what a gate scanner gets back for a credential.
type VerificationResponse struct {
	Valid     bool   `json:"valid"`
	OrderID   string `json:"order_id"`
	EventID   string `json:"event_id"`
	TierName  string `json:"tier_name"`
	Quantity  int    `json:"quantity"`
	EntryType string `json:"entry_type"`
	IsRSVP    bool   `json:"is_rsvp"`
}

type service struct {
	repo            Repository
	reservationsSvc reservations.Service
	eventsSvc       events.Service
	promosSvc       promos.Service
	gateway         payments.Gateway
	producer        stream.Producer
	signer          *credentials.Signer

	currency      string
	webhookSecret string
	orderTimeout  time.Duration

	// now is swappable for tests
	now func() time.Time
}

// NewService creates a new order service instance
func NewService(
	repo Repository,
	reservationsSvc reservations.Service,
	eventsSvc events.Service,
	promosSvc promos.Service,
	gateway payments.Gateway,
	producer stream.Producer,
	signer *credentials.Signer,
	currency string,
	webhookSecret string,
	orderTimeout time.Duration,
) Service {
	return &service{
		repo:            repo,
		reservationsSvc: reservationsSvc,
		eventsSvc:       eventsSvc,
		promosSvc:       promosSvc,
		gateway:         gateway,
		producer:        producer,
		signer:          signer,
		currency:        currency,
		webhookSecret:   webhookSecret,
		orderTimeout:    orderTimeout,
		now:             time.Now,
	}
}

// CreateOrder places an order either against an active reservation or as a
// direct purchase. Retried submissions for the same reservation resolve to
// the stored order instead of charging twice.
func (s *service) CreateOrder(ctx context.Context, customerID uuid.UUID, req CreateOrderRequest, idempotencyKey string) (*OrderResponse, error) {
	if req.ReservationID != "" {
		return s.createFromReservation(ctx, customerID, req)
	}
	if req.EventID == "" || len(req.Tickets) == 0 {
		return nil, apperr.New(apperr.KindValidation, "either reservation_id or event_id with tickets is required")
	}
	return s.createDirect(ctx, customerID, req, idempotencyKey)
}

func (s *service) createFromReservation(ctx context.Context, customerID uuid.UUID, req CreateOrderRequest) (*OrderResponse, error) {
	reservationID, err := uuid.Parse(req.ReservationID)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "invalid reservation id")
	}

	// A retry whose first attempt already committed must short-circuit
	// before promo validation: the first call may have consumed the
	// customer's last allowed redemption.
	if existing, err := s.repo.GetByID(ctx, DeriveOrderID(reservationID)); err == nil {
		if existing.CustomerID != customerID {
			return nil, apperr.New(apperr.KindNotFound, "order not found")
		}
		return s.finishPending(ctx, existing, false)
	} else if !apperr.IsKind(err, apperr.KindNotFound) {
		return nil, err
	}

	params := CreateParams{
		CustomerID:    customerID,
		ReservationID: &reservationID,
	}

	if req.PromoCode != "" {
		reservation, err := s.reservationsSvc.GetReservation(ctx, reservationID)
		if err != nil {
			return nil, err
		}
		eventID, err := uuid.Parse(reservation.EventID)
		if err != nil {
			return nil, fmt.Errorf("stored reservation has invalid event id: %w", err)
		}

		cart := make([]promos.CartItem, 0, len(reservation.Items))
		for _, item := range reservation.Items {
			cart = append(cart, promos.CartItem{
				TierID:        item.TierID,
				Quantity:      item.Quantity,
				SubtotalCents: item.SubtotalCents,
			})
		}

		result, err := s.promosSvc.Validate(ctx, eventID, req.PromoCode, customerID, cart)
		if err != nil {
			return nil, err
		}
		params.PromoCodeID = &result.PromoCodeID
		params.DiscountCents = result.DiscountCents
	}

	order, created, err := s.repo.CreateFromReservation(ctx, params)
	if err != nil {
		return nil, err
	}
	return s.afterCreate(ctx, order, created)
}

func (s *service) createDirect(ctx context.Context, customerID uuid.UUID, req CreateOrderRequest, idempotencyKey string) (*OrderResponse, error) {
	event, err := s.eventsSvc.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	if event.IsRSVP {
		return nil, apperr.New(apperr.KindValidation, "rsvp events do not take paid orders")
	}
	if !event.Bookable() {
		return nil, apperr.New(apperr.KindValidation, "event is not open for sales")
	}

	items, cart, err := s.buildDirectCart(event, req.Tickets)
	if err != nil {
		return nil, err
	}

	params := CreateParams{
		CustomerID:     customerID,
		EventID:        event.ID,
		DirectItems:    items,
		IdempotencyKey: idempotencyKey,
	}

	if req.PromoCode != "" {
		result, err := s.promosSvc.Validate(ctx, event.ID, req.PromoCode, customerID, cart)
		if err != nil {
			return nil, err
		}
		params.PromoCodeID = &result.PromoCodeID
		params.DiscountCents = result.DiscountCents
	}

	order, created, err := s.repo.CreateDirect(ctx, params)
	if err != nil {
		return nil, err
	}
	return s.afterCreate(ctx, order, created)
}

// buildDirectCart resolves requested tiers against the event's catalog and
// prices the cart for promo validation.
func (s *service) buildDirectCart(event *events.Event, tickets []OrderTicketRequest) ([]DirectItem, []promos.CartItem, error) {
	tiersByID := make(map[uuid.UUID]int, len(event.Tiers))
	for i := range event.Tiers {
		tiersByID[event.Tiers[i].ID] = i
	}

	items := make([]DirectItem, 0, len(tickets))
	cart := make([]promos.CartItem, 0, len(tickets))
	seen := make(map[uuid.UUID]bool, len(tickets))
	for _, ticket := range tickets {
		tierID, err := uuid.Parse(ticket.TierID)
		if err != nil {
			return nil, nil, apperr.New(apperr.KindValidation, "invalid tier id")
		}
		if seen[tierID] {
			return nil, nil, apperr.New(apperr.KindValidation, "duplicate tier in cart")
		}
		seen[tierID] = true

		idx, ok := tiersByID[tierID]
		if !ok {
			return nil, nil, apperr.New(apperr.KindValidation, "ticket tier does not belong to this event")
		}
		tier := event.Tiers[idx]

		items = append(items, DirectItem{TierID: tierID, Quantity: ticket.Quantity})
		cart = append(cart, promos.CartItem{
			TierID:        tierID,
			Quantity:      ticket.Quantity,
			SubtotalCents: tier.PriceCents * int64(ticket.Quantity),
		})
	}
	return items, cart, nil
}

// CreateRSVPOrder registers a free RSVP. The order self-confirms and its
// credentials are minted immediately; no inventory or payment is involved.
func (s *service) CreateRSVPOrder(ctx context.Context, customerID uuid.UUID, req CreateRSVPOrderRequest, idempotencyKey string) (*OrderResponse, error) {
	event, err := s.eventsSvc.GetEvent(ctx, req.EventID)
	if err != nil {
		return nil, err
	}
	if !event.IsRSVP {
		return nil, apperr.New(apperr.KindValidation, "event is not an rsvp event")
	}
	if !event.Bookable() {
		return nil, apperr.New(apperr.KindValidation, "event is not open for registration")
	}

	items := make([]DirectItem, 0, len(req.Tickets))
	for _, ticket := range req.Tickets {
		tierID, err := uuid.Parse(ticket.TierID)
		if err != nil {
			return nil, apperr.New(apperr.KindValidation, "invalid tier id")
		}
		items = append(items, DirectItem{TierID: tierID, Quantity: ticket.Quantity})
	}

	params := CreateParams{
		CustomerID:     customerID,
		EventID:        event.ID,
		DirectItems:    items,
		IdempotencyKey: idempotencyKey,
		IsRSVP:         true,
	}

	order, created, err := s.repo.CreateRSVP(ctx, params)
	if err != nil {
		return nil, err
	}
	return s.afterCreate(ctx, order, created)
}

// afterCreate runs the post-commit side effects shared by every creation
// path: external payment order setup for pending orders, cache
// invalidation, and the lifecycle event.
func (s *service) afterCreate(ctx context.Context, order *Order, created bool) (*OrderResponse, error) {
	if created {
		s.eventsSvc.InvalidateAvailability(ctx, order.EventID.String())
		logger.GetDefault().LogOrderCreated(ctx, order.ID.String(), order.EventID.String(), order.CustomerID.String())

		eventType := stream.EventOrderCreated
		if order.IsConfirmed() {
			eventType = stream.EventOrderConfirmed
		}
		s.publish(ctx, eventType, order)
	}
	return s.finishPending(ctx, order, created)
}

// finishPending makes sure a pending order has its external payment order.
// It also runs on idempotent returns, so an order whose first attempt
// crashed between commit and gateway call still gets one on retry.
func (s *service) finishPending(ctx context.Context, order *Order, created bool) (*OrderResponse, error) {
	if order.Status == StatusPendingPayment && order.ExternalOrderRef == "" {
		external, err := s.gateway.CreateExternalOrder(ctx, order.TotalCents, s.currency, order.ID.String(), map[string]string{
			"order_id": order.ID.String(),
			"event_id": order.EventID.String(),
		})
		if err != nil {
			logger.GetDefault().ErrorWithContext(ctx, "payment gateway order creation failed", err, map[string]interface{}{
				"order_id": order.ID.String(),
			})
			return nil, apperr.Wrap(apperr.KindInternal, "failed to initialize payment", err)
		}
		if err := s.repo.AttachExternalRef(ctx, order.ID, external.ID); err != nil {
			return nil, err
		}
		order.ExternalOrderRef = external.ID
	}

	resp := order.ToResponse()
	return &resp, nil
}

// ConfirmFromNotification settles an order from the payment gateway's
// webhook. The signature is checked before anything is looked up, and
// duplicate notifications return the stored confirmed order unchanged.
func (s *service) ConfirmFromNotification(ctx context.Context, notification payments.SettlementNotification) (*OrderResponse, error) {
	if !payments.VerifySettlementSignature(notification.ExternalOrderID, notification.PaymentID, notification.Signature, s.webhookSecret) {
		return nil, apperr.New(apperr.KindPaymentRejected, "settlement signature does not match")
	}

	order, err := s.repo.GetByExternalRef(ctx, notification.ExternalOrderID)
	if err != nil {
		return nil, err
	}

	confirmedOrder, confirmed, err := s.repo.ConfirmPayment(ctx, order.ID, PaymentMeta{
		PaymentID: notification.PaymentID,
		Mode:      notification.Mode,
	})
	if err != nil {
		return nil, err
	}

	if confirmed {
		logger.GetDefault().LogOrderConfirmed(ctx, confirmedOrder.ID.String(), notification.PaymentID)
		s.publish(ctx, stream.EventOrderConfirmed, confirmedOrder)
	}

	resp := confirmedOrder.ToResponse()
	return &resp, nil
}

func (s *service) GetOrder(ctx context.Context, customerID, orderID uuid.UUID) (*OrderResponse, error) {
	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, apperr.New(apperr.KindNotFound, "order not found")
	}

	resp := order.ToResponse()
	return &resp, nil
}

func (s *service) GetOrderByReservation(ctx context.Context, customerID, reservationID uuid.UUID) (*OrderResponse, error) {
	order, err := s.repo.GetByReservationID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, apperr.New(apperr.KindNotFound, "no order for reservation")
	}

	resp := order.ToResponse()
	return &resp, nil
}

// VerifyCredential checks a full QR payload: signature first, then that the
// order it names actually exists, is confirmed, and carries this credential.
func (s *service) VerifyCredential(ctx context.Context, payload credentials.Payload) (*VerificationResponse, error) {
	if err := s.signer.Verify(payload); err != nil {
		return nil, err
	}

	orderID, err := uuid.Parse(payload.OrderID)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "malformed credential payload")
	}

	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsConfirmed() {
		return nil, apperr.New(apperr.KindInvalidSignature, "order is not confirmed")
	}

	for i := range order.Credentials {
		if order.Credentials[i].Signature == payload.Signature {
			return credentialResponse(&order.Credentials[i]), nil
		}
	}
	return nil, apperr.New(apperr.KindInvalidSignature, "credential does not belong to this order")
}

// VerifyShortcode resolves the compact encoding against the stored
// credential and re-runs full verification on the rebuilt payload.
func (s *service) VerifyShortcode(ctx context.Context, code string) (*VerificationResponse, error) {
	orderIDStr, signature, err := credentials.ParseShortcode(code)
	if err != nil {
		return nil, err
	}
	orderID, err := uuid.Parse(orderIDStr)
	if err != nil {
		return nil, apperr.New(apperr.KindValidation, "malformed credential shortcode")
	}

	order, err := s.repo.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.IsConfirmed() {
		return nil, apperr.New(apperr.KindInvalidSignature, "order is not confirmed")
	}

	for i := range order.Credentials {
		if order.Credentials[i].Signature == signature {
			payload := order.Credentials[i].ToPayload()
			if err := s.signer.Verify(payload); err != nil {
				return nil, err
			}
			return credentialResponse(&order.Credentials[i]), nil
		}
	}
	return nil, apperr.New(apperr.KindInvalidSignature, "credential does not belong to this order")
}

func credentialResponse(credential *IssuedCredential) *VerificationResponse {
	return &VerificationResponse{
		Valid:     true,
		OrderID:   credential.OrderID.String(),
		EventID:   credential.EventID.String(),
		TierName:  credential.TierName,
		Quantity:  credential.Quantity,
		EntryType: credential.EntryType,
		IsRSVP:    credential.IsRSVP,
	}
}

func (s *service) ExpireStaleBatch(ctx context.Context, batchSize int) (int, error) {
	cutoff := s.now().UTC().Add(-s.orderTimeout)
	ids, err := s.repo.ListStalePendingIDs(ctx, cutoff, batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to query stale orders: %w", err)
	}

	expired := 0
	for _, id := range ids {
		ok, err := s.repo.ExpireStale(ctx, id, "payment window elapsed")
		if err != nil {
			// Keep sweeping; a single contended row should not stall the
			// batch. Logged so a row that fails every pass stays visible.
			logger.GetDefault().ErrorWithContext(ctx, "failed to expire stale order", err, map[string]interface{}{
				"order_id": id.String(),
			})
			continue
		}
		if !ok {
			continue
		}
		expired++

		if order, err := s.repo.GetByID(ctx, id); err == nil {
			s.eventsSvc.InvalidateAvailability(ctx, order.EventID.String())
			s.publish(ctx, stream.EventOrderExpired, order)
		}
	}
	return expired, nil
}

// publish sends a lifecycle event; publish failures are logged, never
// surfaced. The sale already committed.
func (s *service) publish(ctx context.Context, eventType string, order *Order) {
	if s.producer == nil {
		return
	}

	event := stream.OrderEvent{
		Type:       eventType,
		OrderID:    order.ID.String(),
		EventID:    order.EventID.String(),
		CustomerID: order.CustomerID.String(),
		IsRSVP:     order.IsRSVP,
		TotalCents: order.TotalCents,
		Status:     order.Status.String(),
		OccurredAt: s.now().UTC(),
	}
	if order.ReservationID != nil {
		event.ReservationID = order.ReservationID.String()
	}

	if err := s.producer.PublishOrderEvent(ctx, event); err != nil {
		logger.GetDefault().ErrorWithContext(ctx, "failed to publish order event", err, map[string]interface{}{
			"order_id": order.ID.String(),
			"type":     eventType,
		})
	}
}
