package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	intconfig "campusride/internal/config"
	"campusride/internal/events"
	router "campusride/internal/http"
	"campusride/internal/http/handlers"
	"campusride/internal/repositories"
	"campusride/internal/scheduler"
	"campusride/internal/services"
	"campusride/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type store interface {
	repositories.WalletStore
	repositories.BookingStore
	repositories.ReservationStore
}

func main() {
	env := intconfig.LoadEnv()
	logger := utils.InitLogger(env.Env)
	defer func() { _ = logger.Sync() }()
	if env.GinMode != "" {
		gin.SetMode(env.GinMode)
	}

	var st store
	switch env.StoreDriver {
	case "mysql":
		db := intconfig.ConnectDB(env.DatabaseDSN)
		defer intconfig.CloseDB()
		ms := repositories.MySQLStore{DB: db}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := ms.EnsureSchema(ctx); err != nil {
			cancel()
			logger.Fatal("failed to ensure schema", zap.Error(err))
		}
		cancel()
		st = ms
	default:
		st = repositories.NewMemoryStore()
	}

	publisher, closeEvents := buildPublisher(env, logger)
	defer closeEvents()

	rate, err := env.Rate()
	if err != nil {
		logger.Fatal("invalid commission rate", zap.Error(err))
	}
	commission, err := services.NewCommissionCalculator(rate)
	if err != nil {
		logger.Fatal("invalid commission rate", zap.Error(err))
	}

	rides := services.NewStaticRideDirectory()
	wallet := services.NewWalletLedger(st, publisher, logger)
	bookings := services.NewBookingLedger(st, logger)

	var sched scheduler.Scheduler
	var bind func(h scheduler.Handler)
	switch env.SchedulerDriver {
	case "asynq":
		opt := asynq.RedisClientOpt{Addr: env.RedisAddr, Password: env.RedisPassword, DB: env.RedisDB}
		asq := scheduler.NewAsynqScheduler(opt, logger)
		defer func() { _ = asq.Close() }()
		worker := scheduler.NewWorker(opt, 4)
		defer worker.Shutdown()
		sched = asq
		bind = func(h scheduler.Handler) {
			if err := worker.Start(asq.Mux(h)); err != nil {
				logger.Fatal("failed to start auto-accept worker", zap.Error(err))
			}
		}
	default:
		ts := scheduler.NewTimerScheduler()
		ts.OnError = func(key string, err error) {
			logger.Error("auto-accept failed", zap.String("request_id", key), zap.Error(err))
		}
		sched = ts
		bind = ts.Handle
	}

	requests := services.NewReservationRegistry(st, bookings, sched, publisher, logger)
	requests.Rides = rides
	requests.AutoAcceptDelay = env.AutoAcceptDelay
	bind(requests.AcceptIfPending)

	payments := services.NewPaymentOrchestrator(wallet, bookings, requests, commission, publisher, logger)

	r := router.NewRouter(env, &handlers.API{
		Wallet:     wallet,
		Bookings:   bookings,
		Requests:   requests,
		Payments:   payments,
		Rides:      rides,
		Commission: commission,
		Logger:     logger,
	}, logger)

	// WriteTimeout stays 0: the wallet stream is a long-lived response.
	srv := &http.Server{
		Addr:              env.AppAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("server listening",
			zap.String("addr", env.AppAddr),
			zap.String("store", env.StoreDriver),
			zap.String("scheduler", env.SchedulerDriver),
			zap.String("events", env.EventsDriver),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
		return
	}
	logger.Info("server stopped")
}

// buildPublisher always logs events and fans them out to the configured
// broker.
func buildPublisher(env intconfig.Env, logger *zap.Logger) (events.Publisher, func()) {
	logPub := events.LogPublisher{Logger: logger}
	switch env.EventsDriver {
	case "redis":
		rdb := redis.NewClient(&redis.Options{Addr: env.RedisAddr, Password: env.RedisPassword, DB: env.RedisDB})
		return events.Multi{logPub, events.NewRedisPublisher(rdb, env.EventsChannel)}, func() { _ = rdb.Close() }
	case "kafka":
		kp := events.NewKafkaPublisher(env.Brokers(), env.KafkaTopic, logger)
		return events.Multi{logPub, kp}, func() { _ = kp.Close() }
	default:
		return logPub, func() {}
	}
}
