package reservations

import (
	"tixly/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupReservationRoutes configures all reservation-related routes
func SetupReservationRoutes(rg *gin.RouterGroup, controller *Controller) {
	reservations := rg.Group("/reservations")
	reservations.Use(middleware.JWTAuth())
	{
		reservations.POST("", controller.CreateReservation)             // POST /api/v1/reservations
		reservations.GET("/:id", controller.GetReservation)             // GET /api/v1/reservations/:id
		reservations.POST("/:id/release", controller.ReleaseReservation) // POST /api/v1/reservations/:id/release
	}
}
