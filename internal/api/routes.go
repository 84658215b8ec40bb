package api

import (
	"github.com/adminboard/backend-api/internal/api/handlers"
	"github.com/adminboard/backend-api/internal/auth"
	"github.com/adminboard/backend-api/internal/logging"
	"github.com/adminboard/backend-api/internal/middleware"
	"github.com/adminboard/backend-api/internal/models"
	"github.com/adminboard/backend-api/internal/services"
	"github.com/adminboard/backend-api/internal/telegram"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Dependencies carries everything SetupRoutes wires into handlers.
// RateLimiter, Dispatcher and Redis are optional.
type Dependencies struct {
	Auth           *services.AuthService
	Users          *services.UserService
	Catalog        *services.CatalogService
	Tokens         *auth.TokenIssuer
	DB             handlers.HealthChecker
	Redis          handlers.HealthChecker
	RateLimiter    *middleware.RateLimiter
	Dispatcher     *telegram.Dispatcher
	WebhookSecret  string
	TelegramMode   string
	AllowedOrigins []string
	Logger         *logging.StandardLogger
}

// SetupRoutes registers middleware, probes and the /api surface on router.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	router.Use(middleware.CORS(deps.AllowedOrigins))
	router.Use(middleware.MetricsMiddleware())

	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Redis, deps.TelegramMode)
	healthGroup := router.Group("/")
	healthGroup.Use(middleware.HealthCheckTelemetryMiddleware())
	{
		healthGroup.GET("/health", healthHandler.HealthCheck)
		healthGroup.HEAD("/health", healthHandler.HealthCheck)
		healthGroup.GET("/ready", healthHandler.ReadinessCheck)
		healthGroup.GET("/live", healthHandler.LivenessCheck)
	}
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authMiddleware := middleware.NewAuthMiddleware(deps.Tokens)
	requireAuth := authMiddleware.RequireAuth()
	canWrite := middleware.RequireRoles(models.RoleAdmin, models.RoleEditor)
	canDelete := middleware.RequireRoles(models.RoleAdmin)

	authHandler := handlers.NewAuthHandler(deps.Auth, deps.Logger)
	userHandler := handlers.NewUserHandler(deps.Users, deps.Logger)
	catalogHandler := handlers.NewCatalogHandler(deps.Catalog, deps.Logger)

	api := router.Group("/api")
	api.Use(middleware.TelemetryMiddleware())
	{
		authGroup := api.Group("/auth")
		if deps.RateLimiter != nil {
			authGroup.Use(deps.RateLimiter.Middleware())
		}
		{
			authGroup.POST("/register", authMiddleware.OptionalAuth(), authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
			authGroup.POST("/telegram-login", authHandler.TelegramLogin)
			authGroup.POST("/telegram-miniapp", authHandler.TelegramMiniApp)
			authGroup.GET("/telegram-init", authHandler.TelegramInit)
			authGroup.GET("/telegram-status/:token", authHandler.TelegramStatus)
		}

		users := api.Group("/users")
		users.Use(requireAuth)
		{
			users.GET("/me", userHandler.Me)
			users.PUT("/phone", userHandler.UpdatePhone)
		}

		categories := api.Group("/productCategories")
		{
			categories.GET("", catalogHandler.ListCategories)
			categories.GET("/:id", catalogHandler.GetCategory)
			categories.POST("", requireAuth, canWrite, catalogHandler.CreateCategory)
			categories.PUT("/:id", requireAuth, canWrite, catalogHandler.UpdateCategory)
			categories.DELETE("/:id", requireAuth, canDelete, catalogHandler.DeleteCategory)
		}

		products := api.Group("/products")
		{
			products.GET("", catalogHandler.ListProducts)
			products.GET("/:id", catalogHandler.GetProduct)
			products.POST("", requireAuth, canWrite, catalogHandler.CreateProduct)
			products.PUT("/:id", requireAuth, canWrite, catalogHandler.UpdateProduct)
			products.DELETE("/:id", requireAuth, canDelete, catalogHandler.DeleteProduct)
		}

		if deps.Dispatcher != nil {
			webhook := handlers.NewWebhookHandler(deps.Dispatcher, deps.WebhookSecret, deps.Logger)
			api.POST("/telegram/webhook", webhook.HandleUpdate)
		}
	}
}
