package orders

import (
	"tixly/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupOrderRoutes configures all order-related routes
func SetupOrderRoutes(rg *gin.RouterGroup, controller *Controller) {
	orders := rg.Group("/orders")
	orders.Use(middleware.JWTAuth())
	{
		orders.POST("", controller.CreateOrder)                                         // POST /api/v1/orders
		orders.POST("/rsvp", controller.CreateRSVPOrder)                                // POST /api/v1/orders/rsvp
		orders.GET("/:id", controller.GetOrder)                                         // GET /api/v1/orders/:id
		orders.GET("/by-reservation/:reservationId", controller.GetOrderByReservation)  // GET /api/v1/orders/by-reservation/:reservationId
	}

	// The webhook authenticates with its HMAC signature, not a user token.
	rg.POST("/payments/webhook", controller.HandleSettlementWebhook)

	credentials := rg.Group("/credentials")
	credentials.Use(middleware.JWTAuth())
	{
		credentials.POST("/verify", controller.VerifyCredential) // POST /api/v1/credentials/verify
	}
}
