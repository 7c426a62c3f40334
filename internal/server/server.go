package server

import (
	"time"

	"storefront/internal/database"
	"storefront/internal/handlers"
	"storefront/internal/metrics"
	"storefront/internal/middleware"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// Deps are the services the HTTP layer exposes.
type Deps struct {
	DB       *gorm.DB
	Auth     *services.AuthService
	Products *services.ProductService
	Orders   *services.OrderService
	Coupons  *services.CouponService
	Checkout *services.CheckoutService
	Cart     *services.CartService

	// Metrics and Gatherer are optional; /metrics is served only with a Gatherer.
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer

	CORSOrigins string
	// DisableRequestLog turns off the per-request access log.
	DisableRequestLog bool
}

// NewApp builds the Fiber application with every route under /api/v1.
func NewApp(deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "storefront",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	app.Use(recover.New())
	if !deps.DisableRequestLog {
		app.Use(logger.New())
	}
	if deps.CORSOrigins != "" {
		app.Use(cors.New(cors.Config{
			AllowOrigins: deps.CORSOrigins,
			AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		}))
	}
	app.Use(deps.Metrics.Middleware())

	app.Get("/health", func(c *fiber.Ctx) error {
		health := fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		}
		if deps.DB != nil {
			db := database.Health(c.UserContext(), deps.DB)
			health["database"] = db
			if db["status"] != "up" {
				health["status"] = "unhealthy"
				return c.Status(fiber.StatusServiceUnavailable).JSON(health)
			}
		}
		return c.JSON(health)
	})
	if deps.Gatherer != nil {
		app.Get("/metrics", metrics.Handler(deps.Gatherer))
	}

	authHandler := handlers.NewAuthHandler(deps.Auth)
	productHandler := handlers.NewProductHandler(deps.Products)
	paymentHandler := handlers.NewPaymentHandler(deps.Checkout, deps.Orders)
	couponHandler := handlers.NewCouponHandler(deps.Coupons)
	orderHandler := handlers.NewOrderHandler(deps.Orders)
	cartHandler := handlers.NewCartHandler(deps.Cart)
	adminHandler := handlers.NewAdminHandler(deps.Auth, deps.Orders, deps.Checkout)

	apiV1 := app.Group("/api/v1")

	// Public routes
	authHandler.RegisterRoutes(apiV1)
	productHandler.RegisterRoutes(apiV1)
	paymentHandler.RegisterRoutes(apiV1)

	// Protected routes (require JWT authentication)
	authRequired := middleware.AuthRequired(deps.Auth)
	protected := apiV1.Group("", authRequired)
	authHandler.RegisterProtectedRoutes(protected)
	paymentHandler.RegisterProtectedRoutes(protected)
	couponHandler.RegisterRoutes(protected)
	orderHandler.RegisterRoutes(protected)
	cartHandler.RegisterRoutes(protected)

	admin := apiV1.Group("/admin", authRequired, middleware.AdminOnly())
	adminHandler.RegisterRoutes(admin)
	productHandler.RegisterAdminRoutes(admin)

	return app
}
