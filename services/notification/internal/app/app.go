package internal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"herald/pkg/config"
	"herald/pkg/jwt"
	"herald/pkg/logger"
	"herald/pkg/middleware"
	"herald/pkg/queue"
	notificationHTTP "herald/services/notification/internal/controller/http"
	notificationQueue "herald/services/notification/internal/controller/queue"
	"herald/services/notification/internal/delivery"
	"herald/services/notification/internal/payload"
	"herald/services/notification/internal/repo/memory"
	"herald/services/notification/internal/repo/persistent"
	"herald/services/notification/internal/telemetry"
	"herald/services/notification/internal/usecase"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	_ "herald/services/notification/docs" // Swagger docs
)

// Repositories groups the stores the worker and the API read and write.
type Repositories struct {
	Users              persistent.UserRepository
	Communities        persistent.CommunityRepository
	Notifications      persistent.NotificationRepository
	UsersNotifications persistent.UsersNotificationRepository
}

// NewRepositories picks the backing store from cfg.StoreDriver. db is only
// used by the postgres driver.
func NewRepositories(cfg *config.Config, db *gorm.DB) (Repositories, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		store := memory.NewStore()
		return Repositories{
			Users:              store.Users(),
			Communities:        store.Communities(),
			Notifications:      store.Notifications(),
			UsersNotifications: store.UsersNotifications(),
		}, nil
	case config.StoreDriverPostgres:
		if db == nil {
			return Repositories{}, errors.New("postgres store requires a database connection")
		}
		return Repositories{
			Users:              persistent.NewUserRepository(db),
			Communities:        persistent.NewCommunityRepository(db),
			Notifications:      persistent.NewNotificationRepository(db),
			UsersNotifications: persistent.NewUsersNotificationRepository(db),
		}, nil
	default:
		return Repositories{}, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

// NewProcessor wires the job pipeline. redisClient and queueClient may be nil,
// which disables the payload cache / live delivery and the e-mail trigger.
func NewProcessor(cfg *config.Config, log *logger.Logger, repos Repositories, redisClient *redis.Client, queueClient *queue.Client, reporter telemetry.Reporter) *usecase.Processor {
	var live usecase.LiveDeliverer
	if redisClient != nil {
		live = delivery.NewRedisPublisher(redisClient)
	}

	var trigger usecase.ContextTrigger
	if queueClient != nil {
		trigger = delivery.NewEmailTrigger(queueClient)
	}

	return usecase.NewProcessor(
		payload.NewResolver(repos.Users, repos.Communities, redisClient, cfg.PayloadCacheTTL, log),
		usecase.NewAggregator(repos.Notifications),
		usecase.NewRecipientResolver(repos.Users),
		usecase.NewFanout(repos.UsersNotifications, live),
		repos.Communities,
		trigger,
		reporter,
		log,
	)
}

// QueueInspector reports queue depth for the health check.
type QueueInspector interface {
	QueueLength(queueName string) (int, error)
}

// NewRouter builds the HTTP API. redisClient and queues may be nil, which
// disables rate limiting and the queue depth in /health.
func NewRouter(handler *notificationHTTP.NotificationHandler, jwtService *jwt.Service, redisClient *redis.Client, queues QueueInspector) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"http://localhost:3000", "http://127.0.0.1:3000"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		if queues == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		queueLength, err := queues.QueueLength(queue.JobsQueueName)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": "Failed to get queue length"})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":       "ok",
			"queue":        queue.JobsQueueName,
			"queue_length": queueLength,
		})
	})

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")
	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware(jwtService))
	protected.Use(middleware.RateLimitMiddleware(redisClient, 120, time.Minute))
	{
		protected.GET("/notifications", handler.GetNotifications)
		protected.POST("/notifications/:id/read", handler.MarkNotificationRead)
	}
	// WebSocket endpoint - handles authentication internally via query parameter
	api.GET("/notifications/ws", handler.HandleWebSocket)
	// Internal routes - no auth required (for internal service calls)
	api.POST("/jobs/:type", handler.EnqueueJob)

	return r
}

// Run serves the API and consumes jobs until SIGINT/SIGTERM. db is only used
// by the postgres store; redisClient and queueClient may be nil.
func Run(cfg *config.Config, log *logger.Logger, db *gorm.DB, redisClient *redis.Client, queueClient *queue.Client) {
	jwtService := jwt.NewService(cfg.JWTSecret)

	repos, err := NewRepositories(cfg, db)
	if err != nil {
		log.Error("Failed to set up repositories: %v", err)
		panic(err)
	}
	log.Info("Using %s store", cfg.StoreDriver)

	reporter, err := telemetry.NewReporter(cfg, log)
	if err != nil {
		log.Error("Failed to set up error reporting: %v", err)
		panic(err)
	}

	processor := NewProcessor(cfg, log, repos, redisClient, queueClient, reporter)
	var (
		publisher usecase.JobPublisher
		inspector QueueInspector
	)
	if queueClient != nil {
		publisher = queueClient
		inspector = queueClient
	}
	inboxUseCase := usecase.NewInboxUseCase(repos.Notifications, repos.UsersNotifications, publisher, log)
	notificationHandler := notificationHTTP.NewNotificationHandler(inboxUseCase, redisClient, log, jwtService)

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: NewRouter(notificationHandler, jwtService, redisClient, inspector),
	}

	consumeCtx, stopConsuming := context.WithCancel(context.Background())
	defer stopConsuming()

	if queueClient != nil {
		consumer := notificationQueue.NewJobConsumer(processor, log)
		log.Info("Starting notification job consumer...")
		if err := queueClient.Consume(consumeCtx, queue.JobsQueueName, consumer.Handle); err != nil {
			log.Error("Error starting notification job consumer: %v", err)
			panic(err)
		}
	} else {
		log.Warn("RabbitMQ not configured, notification job consumer disabled")
	}

	go func() {
		log.Info("Notification service starting on port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Failed to start server: %v", err)
			panic(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down notification service...")

	stopConsuming()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown: %v", err)
	}

	if queueClient != nil {
		queueClient.Close()
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing Redis: %v", err)
		}
	}

	if sentryReporter, ok := reporter.(*telemetry.SentryReporter); ok {
		sentryReporter.Flush(2 * time.Second)
	}

	log.Info("Notification service exited")
}
