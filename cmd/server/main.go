package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/openforum/backend/internal/auth"
	"github.com/openforum/backend/internal/config"
	"github.com/openforum/backend/internal/database"
	"github.com/openforum/backend/internal/handlers"
	"github.com/openforum/backend/internal/logger"
	"github.com/openforum/backend/internal/metrics"
	"github.com/openforum/backend/internal/middleware"
	"github.com/openforum/backend/internal/presence"
	"github.com/openforum/backend/internal/realtime"
	"github.com/openforum/backend/internal/repository"
	"github.com/openforum/backend/internal/storage"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if err := logger.Initialize(cfg.LogLevel, cfg.LogFile); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Close()

	logger.Log.Info("=== OpenForum server starting ===")

	// Initialize database and run migrations
	if err := database.Initialize(cfg.DatabaseURL); err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer database.Close()

	if err := database.Migrate(); err != nil {
		logger.Log.Fatal("Failed to run migrations", zap.Error(err))
	}

	metrics.Initialize()

	// Redis presence tracking is optional; the server runs without it
	var tracker *presence.Tracker
	if cfg.RedisHost != "" {
		tracker, err = presence.NewTracker(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
		if err != nil {
			logger.Log.Warn("Redis unavailable, presence tracking disabled", zap.Error(err))
			tracker = nil
		} else {
			defer tracker.Close()
		}
	}

	// S3 blob storage for uploads and chat attachments
	blobs, err := storage.NewS3Store(cfg.AWSRegion, cfg.AWSBucket, cfg.CDNBaseURL)
	if err != nil {
		logger.Log.Fatal("Failed to initialize S3 storage", zap.Error(err))
	}
	if err := blobs.CheckBucketAccess(context.Background()); err != nil {
		logger.Log.Warn("S3 bucket access check failed, uploads will fail", zap.Error(err))
	}

	authService := auth.NewService([]byte(cfg.JWTSecret), cfg.AccessTokenTTL, cfg.RefreshTTL)
	repo := repository.New(database.DB)

	// Realtime fan-out core
	registry := realtime.NewRegistry()
	broadcaster := realtime.NewBroadcaster(registry)
	ingestor := realtime.NewIngestor(realtime.NewGormStore(repo), blobs)
	supervisor := realtime.NewSupervisor(registry, authService, ingestor, broadcaster)
	supervisor.SetAuthorize(realtime.RepositoryAuthorizer(repo))
	if tracker != nil {
		supervisor.SetPresence(tracker)
	}
	wsHandler := realtime.NewHandler(supervisor)

	h := handlers.NewHandlers(authService, repo, blobs)
	if tracker != nil {
		h.SetPresenceTracker(tracker)
	}

	router := setupRouter(authService, h, wsHandler)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // websocket connections stay open
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Log.Info("Server listening", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown on SIGINT/SIGTERM
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Forced shutdown", zap.Error(err))
	}
	logger.Log.Info("Server stopped")
}

func setupRouter(authService *auth.Service, h *handlers.Handlers, ws *realtime.Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.GinLoggerMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"} // Configure properly for production
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		status := "ok"
		code := http.StatusOK
		if err := database.Health(); err != nil {
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{
			"status":    status,
			"timestamp": time.Now().UTC(),
			"service":   "openforum-backend",
		})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", h.Register)
			authGroup.POST("/login", h.Login)
			authGroup.POST("/refresh", h.RefreshToken)
		}

		users := api.Group("/users")
		{
			// Public directory; a profile is addressed by id or username
			users.GET("", h.ListUsers)
			users.GET("/:user", h.GetUser)

			me := users.Group("")
			me.Use(middleware.AuthMiddleware(authService))
			me.GET("/me", h.GetCurrentUser)
			me.PATCH("/me", h.UpdateCurrentUser)
			me.PATCH("/me/password", h.ChangePassword)
			me.DELETE("/me", h.DeleteCurrentUser)
			me.GET("/online", h.GetOnlineUsers)
		}

		posts := api.Group("/posts")
		{
			posts.GET("", h.ListPosts)
			posts.GET("/:id", h.GetPost)
			posts.GET("/:id/comments", h.ListComments)

			authed := posts.Group("")
			authed.Use(middleware.AuthMiddleware(authService))
			authed.POST("", h.CreatePost)
			authed.POST("/upload", h.UploadPostFile)
			authed.DELETE("/:id", h.DeletePost)
			authed.POST("/:id/like", h.LikePost)
			authed.DELETE("/:id/like", h.UnlikePost)
			authed.POST("/:id/comments", h.CreateComment)
		}

		conversations := api.Group("/conversations")
		{
			conversations.Use(middleware.AuthMiddleware(authService))
			conversations.POST("", h.CreateConversation)
			conversations.GET("", h.ListConversations)
			conversations.GET("/:id", h.GetConversation)
		}

		// Websocket subscriptions authenticate over the socket itself
		wsGroup := api.Group("/ws")
		{
			wsGroup.GET("/chats/:id", ws.HandleChat)
			wsGroup.GET("/posts/:id", ws.HandlePost)
		}
	}

	return router
}
