package events

import (
	"github.com/gin-gonic/gin"
)

// SetupEventRoutes configures the public catalog read routes
func SetupEventRoutes(rg *gin.RouterGroup, controller *Controller) {
	events := rg.Group("/events")
	{
		events.GET("/:idOrSlug/availability", controller.GetAvailability) // GET /api/v1/events/:idOrSlug/availability
	}
}
