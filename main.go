package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/faycaldjilali/sorabo/config"
	"github.com/faycaldjilali/sorabo/handler"
	"github.com/faycaldjilali/sorabo/middleware"
	"github.com/faycaldjilali/sorabo/pkg/logger"
	"github.com/faycaldjilali/sorabo/service"
)

func main() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger.Init(cfg.Log.Level, cfg.Log.Format)

	slog.Info("configuration loaded successfully")

	keywords, err := cfg.LoadKeywords()
	if err != nil {
		slog.Error("failed to load keywords", "error", err)
		os.Exit(1)
	}
	slog.Info("keyword list loaded", "count", len(keywords))

	// Initialize services
	service.InitRunStore(&cfg.Store)

	boampSvc := service.NewBoampService(&cfg.Boamp, &cfg.Retry, cfg.Columns.Date)

	var archiveSvc *service.ArchiveService
	if cfg.Archive.Enabled {
		archiveSvc, err = service.NewArchiveService(&cfg.Archive)
		if err != nil {
			slog.Error("failed to initialize archive storage", "error", err)
			os.Exit(1)
		}
		if err := archiveSvc.EnsureBucket(context.Background()); err != nil {
			slog.Error("failed to ensure archive bucket", "error", err)
			os.Exit(1)
		}
		slog.Info("archive storage ready", "bucket", cfg.Archive.Bucket)
	} else {
		slog.Info("archive storage disabled")
	}

	// Initialize handlers
	authHandler := handler.NewAuthHandler(cfg)
	runsHandler := handler.NewRunsHandler(cfg, boampSvc, service.PDFExtractor{}, keywords)
	exportHandler := handler.NewExportHandler(archiveSvc)

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New() // Use New() instead of Default() to avoid default middleware

	// Add custom middleware
	router.Use(middleware.RequestID())                 // Request ID for tracing
	router.Use(middleware.Recovery())                  // Panic recovery
	router.Use(middleware.RequestLogger())             // Access logging
	router.Use(corsMiddleware())                       // CORS
	router.Use(middleware.RateLimit(100, time.Minute)) // Rate limiting: 100 requests per minute

	// Public routes
	api := router.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":    "ok",
				"timestamp": time.Now().Format(time.RFC3339),
			})
		})
		api.POST("/auth/login", authHandler.Login)
	}

	// Protected routes
	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(&cfg.Auth))
	{
		protected.GET("/auth/me", authHandler.GetCurrentUser)
		protected.GET("/keywords", runsHandler.Keywords)

		protected.POST("/runs", runsHandler.Create)
		protected.POST("/runs/upload", runsHandler.Upload)
		protected.GET("/runs", runsHandler.List)
		protected.GET("/runs/:id", runsHandler.Get)
		protected.GET("/runs/:id/status", runsHandler.GetStatus)
		protected.DELETE("/runs/:id", runsHandler.Delete)
		protected.GET("/runs/:id/columns", runsHandler.Columns)
		protected.POST("/runs/:id/filter", runsHandler.Filter)
		protected.POST("/runs/:id/dedup", runsHandler.Dedup)
		protected.POST("/runs/:id/scan", runsHandler.Scan)

		protected.GET("/runs/:id/export", exportHandler.Export)
		protected.POST("/runs/:id/archive", exportHandler.Archive)
		protected.POST("/reformat", exportHandler.Reformat)
	}

	// Create server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("server starting", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}

// corsMiddleware handles CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
