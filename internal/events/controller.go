package events

import (
	"net/http"

	"tixly/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// GetAvailability handles GET /api/v1/events/:idOrSlug/availability
func (c *Controller) GetAvailability(ctx *gin.Context) {
	idOrSlug := ctx.Param("idOrSlug")

	availability, err := c.service.GetAvailability(ctx.Request.Context(), idOrSlug)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}

	response.RespondJSON(ctx, "success", http.StatusOK, "Availability retrieved successfully", availability, nil)
}
