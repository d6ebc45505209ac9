package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"tixly/internal/credentials"
	"tixly/internal/events"
	"tixly/internal/inventory"
	"tixly/internal/payments"
	"tixly/internal/promos"
	"tixly/internal/reservations"
	"tixly/internal/shared/apperr"
	"tixly/internal/stream"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "test-webhook-secret"

type reservationFixture struct {
	eventID    uuid.UUID
	customerID uuid.UUID
	items      []OrderItem
	active     bool
}

// fakeRepo is an in-memory Repository with the same idempotency semantics as
// the real one.
type fakeRepo struct {
	orders       map[uuid.UUID]*Order
	fixtures     map[uuid.UUID]*reservationFixture
	prices       map[uuid.UUID]int64
	keys         map[string]uuid.UUID
	signer       *credentials.Signer
	creates      int
	expireFailOn uuid.UUID
}

func newFakeRepo(signer *credentials.Signer) *fakeRepo {
	return &fakeRepo{
		orders:   make(map[uuid.UUID]*Order),
		fixtures: make(map[uuid.UUID]*reservationFixture),
		prices:   make(map[uuid.UUID]int64),
		keys:     make(map[string]uuid.UUID),
		signer:   signer,
	}
}

func mintTestCredentials(signer *credentials.Signer, order *Order) []IssuedCredential {
	minted := make([]IssuedCredential, 0, len(order.Items))
	for _, item := range order.Items {
		payload := signer.Issue(
			order.ID.String(), order.EventID.String(), item.TierID.String(),
			item.TierName, order.CustomerID.String(), item.Quantity, item.EntryType, order.IsRSVP,
		)
		minted = append(minted, IssuedCredential{
			OrderID:   order.ID,
			EventID:   order.EventID,
			TicketID:  item.TierID,
			TierName:  item.TierName,
			OwnerID:   order.CustomerID,
			Quantity:  item.Quantity,
			EntryType: item.EntryType,
			IsRSVP:    order.IsRSVP,
			IssuedAt:  payload.IssuedAt,
			Version:   payload.Version,
			Signature: payload.Signature,
		})
	}
	return minted
}

func (f *fakeRepo) CreateFromReservation(ctx context.Context, params CreateParams) (*Order, bool, error) {
	id := DeriveOrderID(*params.ReservationID)
	if existing, ok := f.orders[id]; ok {
		return existing, false, nil
	}

	fixture, ok := f.fixtures[*params.ReservationID]
	if !ok || !fixture.active {
		return nil, false, apperr.New(apperr.KindNotFound, "reservation is no longer active")
	}
	if fixture.customerID != params.CustomerID {
		return nil, false, apperr.New(apperr.KindUnauthorized, "reservation belongs to another customer")
	}

	var subtotal int64
	for _, item := range fixture.items {
		subtotal += item.SubtotalCents
	}

	order := f.buildOrder(id, params, fixture.eventID, fixture.items, subtotal)
	fixture.active = false
	f.orders[id] = order
	f.creates++
	return order, true, nil
}

func (f *fakeRepo) CreateDirect(ctx context.Context, params CreateParams) (*Order, bool, error) {
	if params.IdempotencyKey != "" {
		if id, ok := f.keys[params.IdempotencyKey]; ok {
			return f.orders[id], false, nil
		}
	}

	items := make([]OrderItem, 0, len(params.DirectItems))
	var subtotal int64
	for _, requested := range params.DirectItems {
		price := f.prices[requested.TierID]
		line := price * int64(requested.Quantity)
		items = append(items, OrderItem{
			TierID:         requested.TierID,
			Quantity:       requested.Quantity,
			UnitPriceCents: price,
			SubtotalCents:  line,
		})
		subtotal += line
	}

	order := f.buildOrder(uuid.New(), params, params.EventID, items, subtotal)
	f.orders[order.ID] = order
	f.creates++
	if params.IdempotencyKey != "" {
		f.keys[params.IdempotencyKey] = order.ID
	}
	return order, true, nil
}

func (f *fakeRepo) CreateRSVP(ctx context.Context, params CreateParams) (*Order, bool, error) {
	if params.IdempotencyKey != "" {
		if id, ok := f.keys[params.IdempotencyKey]; ok {
			return f.orders[id], false, nil
		}
	}

	items := make([]OrderItem, 0, len(params.DirectItems))
	for _, requested := range params.DirectItems {
		items = append(items, OrderItem{TierID: requested.TierID, Quantity: requested.Quantity})
	}

	order := f.buildOrder(uuid.New(), params, params.EventID, items, 0)
	f.orders[order.ID] = order
	f.creates++
	if params.IdempotencyKey != "" {
		f.keys[params.IdempotencyKey] = order.ID
	}
	return order, true, nil
}

func (f *fakeRepo) buildOrder(id uuid.UUID, params CreateParams, eventID uuid.UUID, items []OrderItem, subtotal int64) *Order {
	discount := params.DiscountCents
	if discount > subtotal {
		discount = subtotal
	}

	order := &Order{
		ID:            id,
		EventID:       eventID,
		CustomerID:    params.CustomerID,
		ReservationID: params.ReservationID,
		IsRSVP:        params.IsRSVP,
		SubtotalCents: subtotal,
		PromoCodeID:   params.PromoCodeID,
		DiscountCents: discount,
		TotalCents:    subtotal - discount,
		Status:        StatusPendingPayment,
		Items:         items,
		CreatedAt:     time.Now().UTC(),
	}
	if order.IsFree() {
		now := time.Now().UTC()
		order.Status = StatusConfirmed
		order.ConfirmedAt = &now
		order.Credentials = mintTestCredentials(f.signer, order)
	}
	return order
}

func (f *fakeRepo) ConfirmPayment(ctx context.Context, orderID uuid.UUID, meta PaymentMeta) (*Order, bool, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return nil, false, apperr.New(apperr.KindNotFound, "order not found")
	}
	if order.IsConfirmed() {
		return order, false, nil
	}
	if !order.Status.CanConfirm() {
		return nil, false, apperr.Newf(apperr.KindValidation, "order is %s and cannot be confirmed", order.Status)
	}

	now := time.Now().UTC()
	order.Status = StatusConfirmed
	order.ConfirmedAt = &now
	order.PaymentID = meta.PaymentID
	order.PaymentMode = meta.Mode
	order.Credentials = mintTestCredentials(f.signer, order)
	return order, true, nil
}

func (f *fakeRepo) AttachExternalRef(ctx context.Context, orderID uuid.UUID, externalRef string) error {
	f.orders[orderID].ExternalOrderRef = externalRef
	return nil
}

func (f *fakeRepo) GetByID(ctx context.Context, id uuid.UUID) (*Order, error) {
	order, ok := f.orders[id]
	if !ok {
		return nil, apperr.New(apperr.KindNotFound, "order not found")
	}
	return order, nil
}

func (f *fakeRepo) GetByReservationID(ctx context.Context, reservationID uuid.UUID) (*Order, error) {
	for _, order := range f.orders {
		if order.ReservationID != nil && *order.ReservationID == reservationID {
			return order, nil
		}
	}
	return nil, apperr.New(apperr.KindNotFound, "no order for reservation")
}

func (f *fakeRepo) GetByExternalRef(ctx context.Context, externalRef string) (*Order, error) {
	for _, order := range f.orders {
		if order.ExternalOrderRef == externalRef {
			return order, nil
		}
	}
	return nil, apperr.New(apperr.KindNotFound, "no order for payment reference")
}

func (f *fakeRepo) ListStalePendingIDs(ctx context.Context, cutoff time.Time, limit int) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for id, order := range f.orders {
		if order.Status == StatusPendingPayment && order.CreatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (f *fakeRepo) ExpireStale(ctx context.Context, orderID uuid.UUID, reason string) (bool, error) {
	if orderID == f.expireFailOn {
		return false, errors.New("deadlock detected")
	}
	order, ok := f.orders[orderID]
	if !ok {
		return false, apperr.New(apperr.KindNotFound, "order not found")
	}
	if order.Status != StatusPendingPayment {
		return false, nil
	}
	order.Status = StatusExpired
	order.ExpiryReason = reason
	return true, nil
}

type fakeReservations struct {
	response *reservations.ReservationResponse
}

func (f *fakeReservations) CreateReservation(ctx context.Context, customerID uuid.UUID, deviceID string, req reservations.CreateReservationRequest) (*reservations.ReservationResponse, error) {
	return nil, nil
}

func (f *fakeReservations) GetReservation(ctx context.Context, reservationID uuid.UUID) (*reservations.ReservationResponse, error) {
	if f.response == nil {
		return nil, apperr.New(apperr.KindNotFound, "reservation not found")
	}
	return f.response, nil
}

func (f *fakeReservations) ReleaseReservation(ctx context.Context, reservationID uuid.UUID) error {
	return nil
}

func (f *fakeReservations) ReleaseExpiredBatch(ctx context.Context, batchSize int) (int, error) {
	return 0, nil
}

type fakeEvents struct {
	event         *events.Event
	invalidations int
}

func (f *fakeEvents) GetEvent(ctx context.Context, idOrSlug string) (*events.Event, error) {
	if f.event == nil || (idOrSlug != f.event.ID.String() && idOrSlug != f.event.Slug) {
		return nil, apperr.New(apperr.KindNotFound, "event not found")
	}
	return f.event, nil
}

func (f *fakeEvents) GetAvailability(ctx context.Context, idOrSlug string) (*events.EventResponse, error) {
	return nil, nil
}

func (f *fakeEvents) InvalidateAvailability(ctx context.Context, eventID string) {
	f.invalidations++
}

type fakePromos struct {
	result   *promos.ValidationResult
	err      error
	lastCart []promos.CartItem
}

func (f *fakePromos) Validate(ctx context.Context, eventID uuid.UUID, code string, userID uuid.UUID, items []promos.CartItem) (*promos.ValidationResult, error) {
	f.lastCart = items
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type captureProducer struct {
	events []stream.OrderEvent
}

func (c *captureProducer) PublishOrderEvent(ctx context.Context, event stream.OrderEvent) error {
	c.events = append(c.events, event)
	return nil
}

func (c *captureProducer) Close() error { return nil }

type serviceFixture struct {
	svc      Service
	repo     *fakeRepo
	events   *fakeEvents
	promos   *fakePromos
	producer *captureProducer
	signer   *credentials.Signer
}

func newServiceFixture(resSvc reservations.Service, ev *events.Event) *serviceFixture {
	signer := credentials.NewSigner("test-credential-secret", 30*24*time.Hour)
	repo := newFakeRepo(signer)
	eventsSvc := &fakeEvents{event: ev}
	promosSvc := &fakePromos{}
	producer := &captureProducer{}

	svc := NewService(
		repo, resSvc, eventsSvc, promosSvc,
		payments.MockGateway{}, producer, signer,
		"INR", testWebhookSecret, 20*time.Minute,
	)

	return &serviceFixture{
		svc:      svc,
		repo:     repo,
		events:   eventsSvc,
		promos:   promosSvc,
		producer: producer,
		signer:   signer,
	}
}

func paidEvent() *events.Event {
	return &events.Event{
		ID:     uuid.New(),
		Slug:   "arena-night",
		Status: events.StatusPublished,
		Tiers: []inventory.TicketTier{
			{ID: uuid.New(), Name: "GA", PriceCents: 450000},
		},
	}
}

func TestCreateOrderFromReservationIsIdempotent(t *testing.T) {
	customerID := uuid.New()
	reservationID := uuid.New()
	tierID := uuid.New()
	eventID := uuid.New()

	fixture := newServiceFixture(&fakeReservations{}, nil)
	fixture.repo.fixtures[reservationID] = &reservationFixture{
		eventID:    eventID,
		customerID: customerID,
		active:     true,
		items: []OrderItem{
			{TierID: tierID, Quantity: 2, UnitPriceCents: 450000, SubtotalCents: 900000},
		},
	}

	req := CreateOrderRequest{ReservationID: reservationID.String()}

	first, err := fixture.svc.CreateOrder(context.Background(), customerID, req, "")
	require.NoError(t, err)
	assert.Equal(t, StatusPendingPayment.String(), first.Status)
	assert.Equal(t, int64(900000), first.TotalCents)
	assert.NotEmpty(t, first.ExternalOrderRef)

	second, err := fixture.svc.CreateOrder(context.Background(), customerID, req, "")
	require.NoError(t, err)

	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, first.ExternalOrderRef, second.ExternalOrderRef, "no second gateway order on retry")
	assert.Equal(t, 1, fixture.repo.creates)
	assert.Len(t, fixture.producer.events, 1)
}

func TestCreateOrderAgainstInactiveReservation(t *testing.T) {
	customerID := uuid.New()
	reservationID := uuid.New()

	fixture := newServiceFixture(&fakeReservations{}, nil)
	fixture.repo.fixtures[reservationID] = &reservationFixture{
		eventID:    uuid.New(),
		customerID: customerID,
		active:     false,
	}

	_, err := fixture.svc.CreateOrder(context.Background(), customerID, CreateOrderRequest{ReservationID: reservationID.String()}, "")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestCreateOrderRequiresReservationOrCart(t *testing.T) {
	fixture := newServiceFixture(&fakeReservations{}, nil)

	_, err := fixture.svc.CreateOrder(context.Background(), uuid.New(), CreateOrderRequest{}, "")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestCreateDirectOrderAppliesPromo(t *testing.T) {
	customerID := uuid.New()
	ev := paidEvent()
	tierID := ev.Tiers[0].ID

	fixture := newServiceFixture(&fakeReservations{}, ev)
	fixture.repo.prices[tierID] = 450000

	promoID := uuid.New()
	fixture.promos.result = &promos.ValidationResult{
		PromoCodeID:   promoID,
		Code:          "SAVE20",
		DiscountCents: 180000,
	}

	req := CreateOrderRequest{
		EventID:   ev.ID.String(),
		Tickets:   []OrderTicketRequest{{TierID: tierID.String(), Quantity: 2}},
		PromoCode: "SAVE20",
	}

	order, err := fixture.svc.CreateOrder(context.Background(), customerID, req, "")
	require.NoError(t, err)

	assert.Equal(t, int64(900000), order.SubtotalCents)
	assert.Equal(t, int64(180000), order.DiscountCents)
	assert.Equal(t, int64(720000), order.TotalCents)

	// The validator saw the priced cart.
	require.Len(t, fixture.promos.lastCart, 1)
	assert.Equal(t, int64(900000), fixture.promos.lastCart[0].SubtotalCents)
}

func TestCreateDirectOrderIneligiblePromoFailsClosed(t *testing.T) {
	ev := paidEvent()
	fixture := newServiceFixture(&fakeReservations{}, ev)
	fixture.promos.err = apperr.New(apperr.KindPromoIneligible, "promo code not found")

	req := CreateOrderRequest{
		EventID:   ev.ID.String(),
		Tickets:   []OrderTicketRequest{{TierID: ev.Tiers[0].ID.String(), Quantity: 1}},
		PromoCode: "NOPE",
	}

	_, err := fixture.svc.CreateOrder(context.Background(), uuid.New(), req, "")
	assert.True(t, apperr.IsKind(err, apperr.KindPromoIneligible))
	assert.Equal(t, 0, fixture.repo.creates, "no order written when the promo is ineligible")
}

func TestCreateDirectOrderRejectsForeignTier(t *testing.T) {
	ev := paidEvent()
	fixture := newServiceFixture(&fakeReservations{}, ev)

	req := CreateOrderRequest{
		EventID: ev.ID.String(),
		Tickets: []OrderTicketRequest{{TierID: uuid.New().String(), Quantity: 1}},
	}

	_, err := fixture.svc.CreateOrder(context.Background(), uuid.New(), req, "")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestCreateDirectOrderHonorsIdempotencyKey(t *testing.T) {
	ev := paidEvent()
	fixture := newServiceFixture(&fakeReservations{}, ev)
	fixture.repo.prices[ev.Tiers[0].ID] = 450000

	req := CreateOrderRequest{
		EventID: ev.ID.String(),
		Tickets: []OrderTicketRequest{{TierID: ev.Tiers[0].ID.String(), Quantity: 1}},
	}

	first, err := fixture.svc.CreateOrder(context.Background(), uuid.New(), req, "client-key-1")
	require.NoError(t, err)
	second, err := fixture.svc.CreateOrder(context.Background(), uuid.New(), req, "client-key-1")
	require.NoError(t, err)

	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, 1, fixture.repo.creates)
}

func TestCreateRSVPOrderConfirmsImmediately(t *testing.T) {
	ev := paidEvent()
	ev.IsRSVP = true
	fixture := newServiceFixture(&fakeReservations{}, ev)

	req := CreateRSVPOrderRequest{
		EventID: ev.ID.String(),
		Tickets: []OrderTicketRequest{{TierID: ev.Tiers[0].ID.String(), Quantity: 1}},
	}

	order, err := fixture.svc.CreateRSVPOrder(context.Background(), uuid.New(), req, "")
	require.NoError(t, err)

	assert.Equal(t, StatusConfirmed.String(), order.Status)
	assert.True(t, order.IsRSVP)
	assert.Empty(t, order.ExternalOrderRef, "no payment order for a free rsvp")
	assert.Len(t, order.QRCodes, 1)
	assert.True(t, order.QRCodes[0].Payload.IsRSVP)
}

func TestCreateRSVPOrderRejectsPaidEvent(t *testing.T) {
	ev := paidEvent()
	fixture := newServiceFixture(&fakeReservations{}, ev)

	req := CreateRSVPOrderRequest{
		EventID: ev.ID.String(),
		Tickets: []OrderTicketRequest{{TierID: ev.Tiers[0].ID.String(), Quantity: 1}},
	}

	_, err := fixture.svc.CreateRSVPOrder(context.Background(), uuid.New(), req, "")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func TestCreateDirectOrderRejectsRSVPEvent(t *testing.T) {
	ev := paidEvent()
	ev.IsRSVP = true
	fixture := newServiceFixture(&fakeReservations{}, ev)

	req := CreateOrderRequest{
		EventID: ev.ID.String(),
		Tickets: []OrderTicketRequest{{TierID: ev.Tiers[0].ID.String(), Quantity: 1}},
	}

	_, err := fixture.svc.CreateOrder(context.Background(), uuid.New(), req, "")
	assert.True(t, apperr.IsKind(err, apperr.KindValidation))
}

func createPendingOrder(t *testing.T, fixture *serviceFixture, ev *events.Event, customerID uuid.UUID) *OrderResponse {
	t.Helper()
	fixture.repo.prices[ev.Tiers[0].ID] = 450000

	order, err := fixture.svc.CreateOrder(context.Background(), customerID, CreateOrderRequest{
		EventID: ev.ID.String(),
		Tickets: []OrderTicketRequest{{TierID: ev.Tiers[0].ID.String(), Quantity: 1}},
	}, "")
	require.NoError(t, err)
	require.Equal(t, StatusPendingPayment.String(), order.Status)
	return order
}

func TestConfirmFromNotificationRejectsBadSignature(t *testing.T) {
	ev := paidEvent()
	fixture := newServiceFixture(&fakeReservations{}, ev)
	order := createPendingOrder(t, fixture, ev, uuid.New())

	_, err := fixture.svc.ConfirmFromNotification(context.Background(), payments.SettlementNotification{
		ExternalOrderID: order.ExternalOrderRef,
		PaymentID:       "pay_1",
		Signature:       "forged",
	})
	assert.True(t, apperr.IsKind(err, apperr.KindPaymentRejected))

	stored, err := fixture.repo.GetByID(context.Background(), uuid.MustParse(order.OrderID))
	require.NoError(t, err)
	assert.Equal(t, StatusPendingPayment, stored.Status, "order untouched after a forged notification")
}

func TestConfirmFromNotificationIsIdempotent(t *testing.T) {
	ev := paidEvent()
	fixture := newServiceFixture(&fakeReservations{}, ev)
	order := createPendingOrder(t, fixture, ev, uuid.New())

	notification := payments.SettlementNotification{
		ExternalOrderID: order.ExternalOrderRef,
		PaymentID:       "pay_1",
		Signature:       payments.SignSettlement(order.ExternalOrderRef, "pay_1", testWebhookSecret),
		Mode:            "card",
	}

	first, err := fixture.svc.ConfirmFromNotification(context.Background(), notification)
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed.String(), first.Status)
	require.Len(t, first.QRCodes, 1)

	second, err := fixture.svc.ConfirmFromNotification(context.Background(), notification)
	require.NoError(t, err)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Len(t, second.QRCodes, 1, "no second batch of credentials on a duplicate notification")

	// One created event, one confirmed event.
	confirmedEvents := 0
	for _, event := range fixture.producer.events {
		if event.Type == stream.EventOrderConfirmed {
			confirmedEvents++
		}
	}
	assert.Equal(t, 1, confirmedEvents)
}

func TestGetOrderHidesOtherCustomers(t *testing.T) {
	ev := paidEvent()
	fixture := newServiceFixture(&fakeReservations{}, ev)
	owner := uuid.New()
	order := createPendingOrder(t, fixture, ev, owner)
	orderID := uuid.MustParse(order.OrderID)

	_, err := fixture.svc.GetOrder(context.Background(), owner, orderID)
	assert.NoError(t, err)

	_, err = fixture.svc.GetOrder(context.Background(), uuid.New(), orderID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestVerifyCredentialAndShortcode(t *testing.T) {
	ev := paidEvent()
	fixture := newServiceFixture(&fakeReservations{}, ev)
	order := createPendingOrder(t, fixture, ev, uuid.New())

	notification := payments.SettlementNotification{
		ExternalOrderID: order.ExternalOrderRef,
		PaymentID:       "pay_1",
		Signature:       payments.SignSettlement(order.ExternalOrderRef, "pay_1", testWebhookSecret),
	}
	confirmed, err := fixture.svc.ConfirmFromNotification(context.Background(), notification)
	require.NoError(t, err)
	require.Len(t, confirmed.QRCodes, 1)

	payload := confirmed.QRCodes[0].Payload

	result, err := fixture.svc.VerifyCredential(context.Background(), payload)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, confirmed.OrderID, result.OrderID)

	// Tampering with the quantity invalidates the signature.
	tampered := payload
	tampered.Quantity = 10
	_, err = fixture.svc.VerifyCredential(context.Background(), tampered)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidSignature))

	result, err = fixture.svc.VerifyShortcode(context.Background(), confirmed.QRCodes[0].Shortcode)
	require.NoError(t, err)
	assert.True(t, result.Valid)

	_, err = fixture.svc.VerifyShortcode(context.Background(), "tixly://"+confirmed.OrderID+"/0000000000000000")
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidSignature))
}

func TestVerifyCredentialRejectsPendingOrder(t *testing.T) {
	ev := paidEvent()
	fixture := newServiceFixture(&fakeReservations{}, ev)
	order := createPendingOrder(t, fixture, ev, uuid.New())

	// A forged payload for an unpaid order must not verify even with a
	// valid signature shape.
	payload := fixture.signer.Issue(order.OrderID, ev.ID.String(), ev.Tiers[0].ID.String(), "GA", uuid.New().String(), 1, "general", false)
	_, err := fixture.svc.VerifyCredential(context.Background(), payload)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidSignature))
}

func TestExpireStaleBatch(t *testing.T) {
	ev := paidEvent()
	fixture := newServiceFixture(&fakeReservations{}, ev)
	order := createPendingOrder(t, fixture, ev, uuid.New())

	stored, err := fixture.repo.GetByID(context.Background(), uuid.MustParse(order.OrderID))
	require.NoError(t, err)
	stored.CreatedAt = time.Now().UTC().Add(-time.Hour)

	expired, err := fixture.svc.ExpireStaleBatch(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, 1, expired)
	assert.Equal(t, StatusExpired, stored.Status)
	assert.NotEmpty(t, stored.ExpiryReason)

	// A second sweep finds nothing.
	expired, err = fixture.svc.ExpireStaleBatch(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, 0, expired)
}

func TestExpireStaleBatchKeepsSweepingPastFailingRows(t *testing.T) {
	ev := paidEvent()
	fixture := newServiceFixture(&fakeReservations{}, ev)
	failing := createPendingOrder(t, fixture, ev, uuid.New())
	healthy := createPendingOrder(t, fixture, ev, uuid.New())

	for _, resp := range []*OrderResponse{failing, healthy} {
		stored, err := fixture.repo.GetByID(context.Background(), uuid.MustParse(resp.OrderID))
		require.NoError(t, err)
		stored.CreatedAt = time.Now().UTC().Add(-time.Hour)
	}
	fixture.repo.expireFailOn = uuid.MustParse(failing.OrderID)

	expired, err := fixture.svc.ExpireStaleBatch(context.Background(), 50)
	require.NoError(t, err)
	assert.Equal(t, 1, expired, "one contended row does not stall the batch")

	stored, err := fixture.repo.GetByID(context.Background(), uuid.MustParse(healthy.OrderID))
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, stored.Status)
}
