package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Freeeeeet/careconnect/internal/app"
	"github.com/Freeeeeet/careconnect/internal/config"
	"github.com/Freeeeeet/careconnect/internal/controller"
	"github.com/Freeeeeet/careconnect/internal/notify"
	"github.com/Freeeeeet/careconnect/internal/repository"
	"github.com/Freeeeeet/careconnect/internal/repository/base"
	"github.com/Freeeeeet/careconnect/internal/repository/migrations"
	"github.com/Freeeeeet/careconnect/internal/service"
	"github.com/go-redis/redis/v8"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Environment, cfg.LogLevel)
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info("Starting careconnect",
		zap.String("environment", cfg.Environment),
		zap.Bool("telegram", cfg.TelegramEnabled()),
		zap.Bool("redis", cfg.RedisEnabled()))

	// ============ Storage ============

	pool, err := pgxpool.New(ctx, cfg.GetDBDSN())
	if err != nil {
		logger.Fatal("Failed to create connection pool", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Fatal("Failed to ping database", zap.Error(err))
	}

	if cfg.MigrateOnStart {
		migrator, err := app.NewMigrator(pool, migrations.FS, logger)
		if err != nil {
			logger.Fatal("Failed to create migrator", zap.Error(err))
		}
		if err := migrator.Run(ctx); err != nil {
			logger.Fatal("Failed to apply migrations", zap.Error(err))
		}
		if err := migrator.Close(); err != nil {
			logger.Warn("Failed to close migrator", zap.Error(err))
		}
	}

	userRepo := repository.NewUserRepository(pool)
	connectionRepo := repository.NewConnectionRepository(pool)
	requestRepo := repository.NewConnectionRequestRepository(pool)
	transactor := base.NewTransactor(pool)

	// ============ Telegram ============

	var tgBot *bot.Bot
	if cfg.TelegramEnabled() {
		tgBot, err = bot.New(cfg.TelegramToken)
		if err != nil {
			logger.Fatal("Failed to create bot", zap.Error(err))
		}
	}

	// ============ Notifications ============

	sinks := []notify.Sink{notify.NewLogSink(logger.Named("events"))}

	if cfg.RedisEnabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis is unavailable, events will still be queued", zap.Error(err))
		}
		sinks = append(sinks, notify.NewRedisStreamSink(rdb, cfg.NotifyStream, 0))
	}

	if tgBot != nil {
		sinks = append(sinks, notify.NewTelegramSink(tgBot, userRepo))
	}

	dispatcher := notify.NewDispatcher(cfg.NotifyQueueSize, logger.Named("notify"), sinks...)
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	// ============ Services ============

	gate := service.NewPermissionGate()
	eligibility := service.NewEligibilityChecker()

	userService := service.NewUserService(userRepo, logger)
	connectionService := service.NewConnectionService(transactor, connectionRepo, userRepo, gate, eligibility, dispatcher, logger)
	requestService := service.NewRequestService(transactor, requestRepo, connectionService, userRepo, gate, eligibility, dispatcher, logger)

	scheduler := app.NewScheduler(requestService, cfg.ReminderInterval, cfg.ReminderAge, logger)
	scheduler.Start(ctx)
	defer scheduler.Stop()

	// ============ Bot ============

	if tgBot != nil {
		botController := controller.NewBotController(tgBot, userService, requestService, connectionService, logger)
		if err := botController.RegisterHandlers(ctx); err != nil {
			logger.Warn("Failed to register bot commands menu", zap.Error(err))
		}
		go botController.Start(ctx)
	}

	<-ctx.Done()
	logger.Info("Shutting down")
}
