package orders

import (
	"net/http"

	"tixly/internal/credentials"
	"tixly/internal/payments"
	"tixly/internal/shared/middleware"
	"tixly/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// VerifyCredentialRequest carries either encoding of a scanned credential.
type VerifyCredentialRequest struct {
	Payload   *credentials.Payload `json:"payload"`
	Shortcode string               `json:"shortcode"`
}

// CreateOrder handles POST /api/v1/orders
func (c *Controller) CreateOrder(ctx *gin.Context) {
	customerID, ok := middleware.CustomerID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	var req CreateOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	order, err := c.service.CreateOrder(ctx.Request.Context(), customerID, req, ctx.GetHeader("Idempotency-Key"))
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	status := http.StatusCreated
	if order.Status == StatusConfirmed.String() {
		status = http.StatusOK
	}
	response.RespondJSON(ctx, "success", status, "Order created successfully", order, nil)
}

// CreateRSVPOrder handles POST /api/v1/orders/rsvp
func (c *Controller) CreateRSVPOrder(ctx *gin.Context) {
	customerID, ok := middleware.CustomerID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	var req CreateRSVPOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	order, err := c.service.CreateRSVPOrder(ctx.Request.Context(), customerID, req, ctx.GetHeader("Idempotency-Key"))
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "RSVP registered successfully", order, nil)
}

// GetOrder handles GET /api/v1/orders/:id
func (c *Controller) GetOrder(ctx *gin.Context) {
	customerID, ok := middleware.CustomerID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	orderID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid order ID", nil, nil)
		return
	}

	order, err := c.service.GetOrder(ctx.Request.Context(), customerID, orderID)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Order retrieved successfully", order, nil)
}

// GetOrderByReservation handles GET /api/v1/orders/by-reservation/:reservationId
func (c *Controller) GetOrderByReservation(ctx *gin.Context) {
	customerID, ok := middleware.CustomerID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	reservationID, err := uuid.Parse(ctx.Param("reservationId"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid reservation ID", nil, nil)
		return
	}

	order, err := c.service.GetOrderByReservation(ctx.Request.Context(), customerID, reservationID)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Order retrieved successfully", order, nil)
}

// HandleSettlementWebhook handles POST /api/v1/payments/webhook
func (c *Controller) HandleSettlementWebhook(ctx *gin.Context) {
	var notification payments.SettlementNotification
	if err := ctx.ShouldBindJSON(&notification); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid notification body", nil, err.Error())
		return
	}

	order, err := c.service.ConfirmFromNotification(ctx.Request.Context(), notification)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Payment settled successfully", order, nil)
}

// VerifyCredential handles POST /api/v1/credentials/verify
func (c *Controller) VerifyCredential(ctx *gin.Context) {
	var req VerifyCredentialRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	var result *VerificationResponse
	var err error
	switch {
	case req.Payload != nil:
		result, err = c.service.VerifyCredential(ctx.Request.Context(), *req.Payload)
	case req.Shortcode != "":
		result, err = c.service.VerifyShortcode(ctx.Request.Context(), req.Shortcode)
	default:
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Either payload or shortcode is required", nil, nil)
		return
	}
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Credential verified successfully", result, nil)
}
