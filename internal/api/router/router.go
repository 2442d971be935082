package router

import (
	"fmt"
	"time"

	"studio-booking/internal/api/handlers"
	"studio-booking/internal/api/middleware"
	"studio-booking/internal/config"
	"studio-booking/internal/infrastructure/cache"
	"studio-booking/internal/infrastructure/database"
	"studio-booking/internal/infrastructure/notify"
	"studio-booking/internal/infrastructure/queue"
	"studio-booking/internal/infrastructure/repository"
	interfaces "studio-booking/internal/interfaces/infrastructure"
	"studio-booking/internal/service"
	"studio-booking/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// RouterComponents bundles the router with the components the server
// command needs to shut down cleanly.
type RouterComponents struct {
	Router       *gin.Engine
	QueueService interfaces.QueueService
	CacheService interfaces.CacheService
}

func NewBookingRouter(db *gorm.DB) (*RouterComponents, error) {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Logger())
	r.Use(cors.Default())
	r.Use(gin.Recovery())

	cfg := config.Get()

	classRepo := repository.NewClassRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	txManager := database.NewTxManager(db)

	viewConn, err := repository.NewBookingViewConnection(
		cfg.Database.Host,
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.Name,
		cfg.Database.Port,
		cfg.Database.SSLMode,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open read model connection: %w", err)
	}
	viewRepo := repository.NewBookingViewRepository(viewConn)

	cacheService := cache.NewRedisCache(&cfg.Cache)
	idempotencyRepo := repository.NewRedisIdempotencyRepository(cacheService.GetClient())

	var queueService interfaces.QueueService
	if cfg.Queue.Type == "redis" {
		queueService = queue.NewRedisQueue(cacheService.GetClient(), cfg.Queue.Workers)
		logger.Info("Using Redis notification queue")
	} else {
		queueService = queue.NewInMemoryQueue(cfg.Queue.BufferSize, cfg.Queue.Workers)
		logger.Info("Using in-memory notification queue")
	}

	var sender interfaces.NotificationSender
	if cfg.Notifications.Transport == "amqp" {
		publisher, err := notify.NewAMQPPublisher(cfg.Notifications.AMQPURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect notification broker: %w", err)
		}
		sender = publisher
		logger.Info("Using AMQP notification transport")
	} else {
		sender = notify.NewLogSender()
		logger.Info("Using log notification transport")
	}

	queueService.SetSender(sender)
	queueService.StartWorkers()

	bookingService := service.NewBookingService(
		classRepo,
		bookingRepo,
		viewRepo,
		txManager,
		cacheService,
		idempotencyRepo,
		service.NewNotifier(queueService),
		service.Policy{
			CancellationWindow: time.Duration(cfg.Booking.CancellationWindowHours) * time.Hour,
			MaxTxRetries:       cfg.Booking.MaxTxRetries,
			RetryBackoff:       time.Duration(cfg.Booking.RetryBackoffMs) * time.Millisecond,
		},
	)

	bookingHandler := handlers.NewBookingHandler(bookingService)
	healthHandler := handlers.NewHealthHandler(db, cacheService)

	r.GET("/health", healthHandler.HealthCheck)
	r.GET("/ready", healthHandler.ReadinessCheck)
	r.GET("/live", healthHandler.LivenessCheck)

	v1 := r.Group("/api/v1")
	{
		bookings := v1.Group("/bookings")
		bookings.Use(middleware.RequireUser())
		{
			bookings.DELETE("/:booking_id", bookingHandler.Cancel)
			bookings.GET("", bookingHandler.ListBookings)
		}

		classes := v1.Group("/classes")
		{
			classes.GET("/upcoming", bookingHandler.ListUpcomingClasses)
			classes.GET("/:class_id/availability", bookingHandler.GetAvailability)
			classes.POST("/:class_id/book",
				middleware.RequireUser(),
				middleware.IdempotencyMiddleware(),
				bookingHandler.Book,
			)
		}
	}

	return &RouterComponents{
		Router:       r,
		QueueService: queueService,
		CacheService: cacheService,
	}, nil
}
