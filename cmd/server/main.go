package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	swagger "github.com/gofiber/swagger"
	"github.com/localnerve/push-bouncer/internal/config"
	"github.com/localnerve/push-bouncer/internal/database"
	"github.com/localnerve/push-bouncer/internal/handlers"
	"github.com/localnerve/push-bouncer/internal/middleware"
	"github.com/localnerve/push-bouncer/internal/senders"
	"github.com/localnerve/push-bouncer/internal/services"
	"github.com/localnerve/push-bouncer/internal/types"
	"github.com/localnerve/push-bouncer/internal/utils"

	_ "github.com/localnerve/push-bouncer/docs/api" // Swagger docs
)

// @title Push Bouncer API
// @version 1.0.0
// @description Mobile push notification relay for self-hosted servers
// @termsOfService http://swagger.io/terms/

// @contact.name API Support
// @contact.url https://github.com/localnerve/push-bouncer
// @contact.email info@localnerve.com

// @host localhost:3000
// @BasePath /api/v1/remotes
// @schemes http https

// @securityDefinitions.basic BasicAuth

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	// Run auto-migrations
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Platform gateway senders
	platform := senders.NewFromConfig(cfg)

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler:          handlers.ErrorHandler,
		DisableStartupMessage: false,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New())

	// Prometheus metrics
	prometheus := fiberprometheus.New("push_bouncer")
	prometheus.RegisterAt(app, "/metrics")
	app.Use(prometheus.Middleware)

	// Swagger documentation
	app.Get("/swagger/*", swagger.HandlerDefault)

	// Health endpoint for load balancers and container orchestration
	app.Get("/health", func(c *fiber.Ctx) error {
		result := services.HealthCheck(cfg, db)
		status := fiber.StatusOK
		if result.Status != "healthy" {
			status = fiber.StatusServiceUnavailable
		}
		return c.Status(status).JSON(result)
	})

	// Remote server routes under /api/v1/remotes
	remotes := app.Group("/api/v1/remotes")
	remotes.Use(middleware.ClientVersionMiddleware())

	// Create handlers
	serverHandler := &handlers.ServerHandler{DB: db}
	deviceHandler := &handlers.PushDeviceHandler{DB: db}
	pushHandler := &handlers.PushHandler{DB: db, Senders: platform}
	analyticsHandler := &handlers.AnalyticsHandler{DB: db}

	// Registration is the one route without server credentials
	remotes.Post("/server/register", serverHandler.Register)

	// Everything else authenticates the calling server
	authed := remotes.Group("", middleware.AuthServer(db))
	authed.Post("/server/deactivate", serverHandler.Deactivate)

	authed.Post("/push/register", deviceHandler.Register)
	authed.Post("/push/unregister", deviceHandler.Unregister)
	authed.Post("/push/unregister/all", deviceHandler.UnregisterAll)
	authed.Post("/push/notify", pushHandler.Notify)
	authed.Post("/push/test_notification", pushHandler.TestNotification)

	authed.Get("/server/analytics/status", analyticsHandler.Status)
	authed.Post("/server/analytics", analyticsHandler.Post)

	// 404 handler
	app.Use(func(c *fiber.Ctx) error {
		return utils.JSONError(c, fiber.StatusNotFound, types.CodeBadRequest, "Resource not found")
	})

	// Graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		log.Println("Gracefully shutting down...")
		_ = app.Shutdown()
	}()

	// Start server
	port := cfg.Port
	log.Printf("Starting push bouncer on port %s", port)
	if err := app.Listen(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	log.Println("Server stopped")
}
