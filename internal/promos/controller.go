package promos

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

// ValidateCode handles POST /api/v1/promos/validate
func (c *Controller) ValidateCode(ctx *gin.Context) {
	userID, ok := middleware.CustomerID(ctx)
	if !ok {
		response.RespondJSON(ctx, "error", http.StatusUnauthorized, "User not authenticated", nil, nil)
		return
	}

	var req ValidatePromoRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid event ID", nil, nil)
		return
	}

	items := make([]CartItem, 0, len(req.Items))
	for _, item := range req.Items {
		tierID, err := uuid.Parse(item.TierID)
		if err != nil {
			response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid tier ID", nil, nil)
			return
		}
		items = append(items, CartItem{
			TierID:        tierID,
			Quantity:      item.Quantity,
			SubtotalCents: item.SubtotalCents,
		})
	}

	result, err := c.service.Validate(ctx.Request.Context(), eventID, req.Code, userID, items)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, result.Message, result, nil)
}
