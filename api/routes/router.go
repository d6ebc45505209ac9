// api/routes/router.go
package routes

import (
	"net/http"
	"time"

	"tixly/internal/credentials"
	"tixly/internal/events"
	"tixly/internal/inventory"
	"tixly/internal/orders"
	"tixly/internal/payments"
	"tixly/internal/promos"
	"tixly/internal/reservations"
	"tixly/internal/shared/config"
	"tixly/internal/shared/database"
	"tixly/internal/stream"
	"tixly/pkg/cache"

	"github.com/gin-gonic/gin"
)

// Router holds all route dependencies
type Router struct {
	config   *config.Config
	db       *database.DB
	producer stream.Producer

	// Shared services, wired once and handed to every consumer.
	reservationsSvc reservations.Service
	ordersSvc       orders.Service
}

// NewRouter creates a new router instance
func NewRouter(cfg *config.Config, db *database.DB, producer stream.Producer) *Router {
	return &Router{
		config:   cfg,
		db:       db,
		producer: producer,
	}
}

// ReservationsService exposes the wired reservation service for the reclaimer.
func (r *Router) ReservationsService() reservations.Service {
	return r.reservationsSvc
}

// OrdersService exposes the wired order service for the reclaimer.
func (r *Router) OrdersService() orders.Service {
	return r.ordersSvc
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	r.setupHealthRoutes(engine)

	ledger := inventory.NewLedger()
	signer := credentials.NewSigner(r.config.Credential.Secret, r.config.Credential.MaxAge)
	gateway := payments.NewGateway(r.config.Payment)

	var cacheService cache.Service
	if r.db.Redis != nil {
		cacheService = cache.NewService(r.db.Redis)
	}

	eventRepo := events.NewRepository(r.db.PostgreSQL)
	eventService := events.NewService(eventRepo, cacheService, r.config.Redis.AvailabilityTTL)
	eventController := events.NewController(eventService)

	reservationRepo := reservations.NewRepository(r.db.PostgreSQL, ledger)
	reservationService := reservations.NewService(reservationRepo, r.config.Reservation.HoldTTL)
	reservationController := reservations.NewController(reservationService)

	promoRepo := promos.NewRepository(r.db.PostgreSQL)
	promoService := promos.NewService(promoRepo)
	promoController := promos.NewController(promoService)

	orderRepo := orders.NewRepository(r.db.PostgreSQL, ledger, signer)
	orderService := orders.NewService(
		orderRepo,
		reservationService,
		eventService,
		promoService,
		gateway,
		r.producer,
		signer,
		r.config.Payment.Currency,
		r.config.Payment.WebhookSecret,
		r.config.Reclaimer.OrderTimeout,
	)
	orderController := orders.NewController(orderService)

	r.reservationsSvc = reservationService
	r.ordersSvc = orderService

	api := engine.Group(r.config.GetAPIBasePath())
	{
		events.SetupEventRoutes(api, eventController)
		reservations.SetupReservationRoutes(api, reservationController)
		promos.SetupPromoRoutes(api, promoController)
		orders.SetupOrderRoutes(api, orderController)
	}
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "tixly-core",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "tixly-core",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "operational",
			"api_version": r.config.APIVersion,
			"timestamp":   time.Now(),
		})
	})
}
