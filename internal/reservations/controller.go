package reservations

import (
	"net/http"

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

// CreateReservation handles POST /api/v1/reservations
func (c *Controller) CreateReservation(ctx *gin.Context) {
	customerID, ok := middleware.CustomerID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	var req CreateReservationRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	reservation, err := c.service.CreateReservation(ctx.Request.Context(), customerID, middleware.DeviceID(ctx), req)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusCreated, "Reservation created successfully", reservation, nil)
}

// GetReservation handles GET /api/v1/reservations/:id
func (c *Controller) GetReservation(ctx *gin.Context) {
	reservationID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid reservation ID", nil, nil)
		return
	}

	reservation, err := c.service.GetReservation(ctx.Request.Context(), reservationID)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Reservation retrieved successfully", reservation, nil)
}

// ReleaseReservation handles POST /api/v1/reservations/:id/release
func (c *Controller) ReleaseReservation(ctx *gin.Context) {
	reservationID, err := uuid.Parse(ctx.Param("id"))
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid reservation ID", nil, nil)
		return
	}

	if err := c.service.ReleaseReservation(ctx.Request.Context(), reservationID); err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Reservation released successfully", nil, nil)
}
