package promos

import (
	"tixly/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupPromoRoutes configures promo validation routes
func SetupPromoRoutes(rg *gin.RouterGroup, controller *Controller) {
	promos := rg.Group("/promos")
	promos.Use(middleware.JWTAuth())
	{
		promos.POST("/validate", controller.ValidateCode) // POST /api/v1/promos/validate
	}
}
