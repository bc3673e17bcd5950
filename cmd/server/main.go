package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/eventlodge/accommodation-backend/internal/cache"
	"github.com/eventlodge/accommodation-backend/internal/config"
	"github.com/eventlodge/accommodation-backend/internal/database"
	"github.com/eventlodge/accommodation-backend/internal/events"
	"github.com/eventlodge/accommodation-backend/internal/handlers"
	"github.com/eventlodge/accommodation-backend/internal/middleware"
	"github.com/eventlodge/accommodation-backend/internal/services"
	"github.com/eventlodge/accommodation-backend/pkg/jwt"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting EventLodge accommodation backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Catalog cache is optional; the API works without Redis
	var catalogCache *cache.CatalogCache
	if cfg.Redis.EnableCache {
		redisClient, err := cache.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, catalog cache disabled")
		} else {
			defer redisClient.Close()
			catalogCache = cache.NewCatalogCache(redisClient, cfg.Redis.CatalogTTL, cfg.Redis.CachePrefix, logger)
			logger.Info("✓ Catalog cache enabled")
		}
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Broker.Enabled {
		rabbit := events.NewRabbitPublisher(cfg.Broker.URL, logger)
		defer rabbit.Close()
		publisher = rabbit
		logger.Info("✓ Domain events will be published to RabbitMQ")
	}

	// Repositories
	accommodationRepo := database.NewAccommodationRepository(db)
	allocationRepo := database.NewAllocationRepository(db)
	paymentRepo := database.NewPaymentRepository(db)
	paymentAuditRepo := database.NewPaymentAuditRepository(db, logger)

	// Services
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTokenExpiry)
	payableService := services.NewPAYableService(&cfg.Payment, logger)
	if !payableService.IsConfigured() {
		logger.Warn("PAYable not configured, checkouts will use placeholder URLs")
	}

	var catalogCacheIface services.CatalogCache
	if catalogCache != nil {
		catalogCacheIface = catalogCache
	}
	accommodationService := services.NewAccommodationService(accommodationRepo, catalogCacheIface, logger)
	allocationService := services.NewAllocationService(allocationRepo, accommodationRepo, publisher, logger)
	paymentService := services.NewPaymentService(
		paymentRepo,
		allocationRepo,
		paymentAuditRepo,
		payableService,
		publisher,
		cfg.Payment.Currency,
		logger,
	)

	cronService := services.NewCronService(paymentRepo, paymentAuditRepo, cfg.Payment.PendingTTL, logger)
	if err := cronService.Start(cfg.Payment.SweepSchedule); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}
	defer cronService.Stop()

	router := newRouter(cfg, logger, db, jwtService,
		handlers.NewAccommodationHandler(accommodationService, logger),
		handlers.NewAllocationHandler(allocationService, logger),
		handlers.NewPaymentHandler(paymentService, logger),
	)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

func newRouter(
	cfg *config.Config,
	logger *logrus.Logger,
	db database.Pinger,
	jwtService *jwt.Service,
	accommodationHandler *handlers.AccommodationHandler,
	allocationHandler *handlers.AllocationHandler,
	paymentHandler *handlers.PaymentHandler,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORS.AllowedOrigins
	corsConfig.AllowMethods = cfg.CORS.AllowedMethods
	corsConfig.AllowHeaders = cfg.CORS.AllowedHeaders
	corsConfig.AllowCredentials = true
	if len(cfg.CORS.AllowedOrigins) == 1 && cfg.CORS.AllowedOrigins[0] == "*" {
		corsConfig.AllowOrigins = nil
		corsConfig.AllowAllOrigins = true
		corsConfig.AllowCredentials = false
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", healthCheckHandler(db))

	v1 := router.Group("/api/v1")
	{
		// Gateway callback, no user token
		v1.POST("/payments/webhook", paymentHandler.Webhook)

		protected := v1.Group("")
		protected.Use(middleware.AuthMiddleware(jwtService, logger))
		{
			protected.GET("/events/:event_id/accommodations", accommodationHandler.GetCatalog)
			protected.POST("/accommodations/reserve", accommodationHandler.Reserve)

			protected.POST("/allocations/hostel", allocationHandler.AllocateHostel)
			protected.POST("/allocations/hotel", allocationHandler.AllocateHotel)
			protected.GET("/allocations", allocationHandler.ListAllocations)

			protected.POST("/payments/checkout", paymentHandler.Checkout)
			protected.GET("/payments/:reference", paymentHandler.GetStatus)
		}
	}

	return router
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"query":      c.Request.URL.RawQuery,
			"ip":         c.ClientIP(),
			"latency_ms": time.Since(start).Milliseconds(),
			"has_auth":   c.GetHeader("Authorization") != "",
		}
		if user, ok := middleware.GetUserContext(c); ok {
			fields["user_id"] = user.UserID
		}

		entry := logger.WithFields(fields)

		if len(c.Errors) > 0 {
			for i, err := range c.Errors {
				entry = entry.WithField(fmt.Sprintf("error_%d", i), err.Error())
			}
			entry.Error("Request failed with errors")
			return
		}

		status := c.Writer.Status()
		if status >= 500 {
			entry.Error("Request completed with server error")
		} else if status >= 400 {
			entry.Warn("Request completed with client error")
		} else {
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
