package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/mavex/checkout/internal/adapter/handler"
	"github.com/mavex/checkout/internal/adapter/notify"
	"github.com/mavex/checkout/internal/adapter/storage"
	"github.com/mavex/checkout/internal/config"
	"github.com/mavex/checkout/internal/core/domain"
	"github.com/mavex/checkout/internal/core/service"
	"github.com/mavex/checkout/internal/port"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MySQL
	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		logger.Fatal("failed to open mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		logger.Fatal("failed to ping mysql", zap.Error(err))
	}
	logger.Info("connected to mysql")

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	logger.Info("connected to redis")

	mysqlAdapter := storage.NewMySQLAdapter(db)
	redisAdapter := storage.NewRedisAdapter(rdb, cfg.RateLimitPerWindow, cfg.RateLimitWindow)

	// Notification side-channel: AMQP when configured, logs otherwise.
	var notifier port.Notifier
	if cfg.AMQPURL != "" {
		amqpNotifier, err := notify.NewAMQPNotifier(cfg.AMQPURL, cfg.NotifyExchange)
		if err != nil {
			logger.Fatal("failed to connect amqp", zap.Error(err))
		}
		defer amqpNotifier.Close()
		notifier = amqpNotifier
		logger.Info("connected to amqp", zap.String("exchange", cfg.NotifyExchange))
	} else {
		notifier = notify.NewLogNotifier(logger)
	}

	checkoutService := service.NewCheckoutService(mysqlAdapter, mysqlAdapter, mysqlAdapter, logger, cfg.QueueSize)

	// Notifier worker pool drains committed orders off the queue.
	var wg sync.WaitGroup
	for i := 0; i < cfg.NotifyWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			notifyLoop(id, checkoutService.NotificationQueue(), notifier, logger)
		}(i)
	}
	logger.Info("started notifier workers", zap.Int("count", cfg.NotifyWorkers))

	// HTTP server
	httpHandler := handler.NewHTTPHandler(checkoutService, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handler.PrometheusMiddleware())

	router.GET("/health", httpHandler.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := router.Group("/api")
	api.Use(handler.RateLimitMiddleware(redisAdapter, logger))
	api.Use(handler.IdempotencyMiddleware(redisAdapter, logger))
	api.POST("/checkout", httpHandler.Checkout)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info("http server listening", zap.String("port", cfg.Port))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	logger.Info("http server stopped")

	checkoutService.Close()
	wg.Wait()
	logger.Info("notifier workers stopped")

	rdb.Close()
	db.Close()
	logger.Info("connections closed")
}

func notifyLoop(id int, queue <-chan domain.Order, notifier port.Notifier, logger *zap.Logger) {
	for order := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)

		if err := notifier.NotifyOrderCreated(ctx, order); err != nil {
			// best effort only, the order is already committed
			logger.Warn("failed to publish order notification",
				zap.Int("worker", id),
				zap.String("order_id", order.ID),
				zap.Error(err))
		}

		cancel()
	}
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
