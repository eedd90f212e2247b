package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-auction/author-service/internal/config"
	"github.com/weiawesome/wes-auction/author-service/internal/consumer"
	"github.com/weiawesome/wes-auction/author-service/internal/domain"
	"github.com/weiawesome/wes-auction/author-service/internal/handler"
	"github.com/weiawesome/wes-auction/author-service/internal/reconciler"
	"github.com/weiawesome/wes-auction/author-service/internal/repository"
	"github.com/weiawesome/wes-auction/author-service/internal/service"
	"github.com/weiawesome/wes-auction/author-service/internal/store"
	"github.com/weiawesome/wes-auction/pkg/database"
	"github.com/weiawesome/wes-auction/pkg/jwt"
	pkglog "github.com/weiawesome/wes-auction/pkg/log"
	"github.com/weiawesome/wes-auction/pkg/metrics"
	"github.com/weiawesome/wes-auction/pkg/middleware"
	"github.com/weiawesome/wes-auction/pkg/pubsub"
	"github.com/weiawesome/wes-auction/pkg/storage"
)

const serviceName = "author-service"

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// 2. Initialize structured logger
	pkglog.Init(pkglog.Config{
		Level:       cfg.Log.Level,
		Pretty:      cfg.Log.Level == "debug",
		ServiceName: serviceName,
	})
	logger := pkglog.L()

	// 3. Init DB
	db, err := database.New(&database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		TimeZone:        cfg.Database.TimeZone,
		FilePath:        cfg.Database.FilePath,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		LogLevel:        cfg.Database.LogLevel,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close(db)

	if cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(db, &domain.UserModel{}, &domain.FollowModel{}, &domain.PictureModel{}); err != nil {
			logger.Fatal().Err(err).Msg("failed to auto-migrate")
		}
		logger.Info().Msg("database migration completed")
	}

	// Hard-delete CDC events need the full before-row to carry author_id.
	if cfg.Database.Driver == "postgres" && cfg.Kafka.Brokers != "" {
		if err := db.Exec(`ALTER TABLE follows REPLICA IDENTITY FULL`).Error; err != nil {
			logger.Warn().Err(err).Msg("failed to set REPLICA IDENTITY FULL on follows table")
		}
	}

	// 4. Init Redis store
	redisStore, err := store.NewRedisAuthorStore(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB, cfg.Cache.ListTTL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisStore.Close()
	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 5. Init event publisher and object storage
	publisher, err := pubsub.NewPublisher(cfg.PubSub)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.PubSub.Driver).Msg("failed to create event publisher")
	}
	defer publisher.Close()
	if kp, ok := publisher.(*pubsub.KafkaPublisher); ok {
		if err := kp.EnsureTopic(ctx, service.FollowEventsChannel); err != nil {
			logger.Warn().Err(err).Msg("failed to ensure follow events topic")
		}
	}

	files, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Storage.Driver).Msg("failed to create storage")
	}

	// 6. Create repos, metrics, service
	followRepo := repository.NewGormFollowRepository(db)
	m := metrics.New("author_service")
	svc := service.NewAuthorService(service.Deps{
		Users:     repository.NewGormUserRepository(db),
		Follows:   followRepo,
		Authors:   repository.NewGormAuthorRepository(db),
		Store:     redisStore,
		Publisher: publisher,
		Storage:   files,
		Metrics:   m,
		URLExpiry: cfg.Cache.URLExpiry,
	})

	// 7. Auth middleware
	if cfg.Auth.Enabled && cfg.Auth.JWTSecret == "" {
		logger.Fatal().Msg("JWT_SECRET is required when auth is enabled")
	}
	authMiddleware := middleware.NewAuthMiddleware(jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, 0), cfg.Auth.Enabled)

	// 8. Init Kafka CDC consumer
	var kafkaConsumer *consumer.ConfluentConsumer
	if cfg.Kafka.Brokers != "" {
		kc, err := consumer.NewConfluentConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, svc)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to create kafka consumer, CDC updates disabled")
		} else if err := kc.Start(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to start kafka consumer")
		} else {
			kafkaConsumer = kc
			logger.Info().Str("topic", cfg.Kafka.Topic).Msg("kafka CDC consumer started")
		}
	} else {
		logger.Warn().Msg("KAFKA_BROKERS not configured; CDC consumer disabled")
	}

	// 9. Reconciler
	rec := reconciler.New(redisStore, followRepo, cfg.Reconciler)
	rec.Start(ctx)
	logger.Info().Dur("interval", cfg.Reconciler.Interval).Int("top_n", cfg.Reconciler.TopN).Msg("reconciler started")

	// 10. Gin router + HTTP server
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))
	r.Use(m.GinMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))
	handler.NewHandler(svc, authMiddleware).RegisterRoutes(r)
	if rp, ok := publisher.(*pubsub.RedisPublisher); ok {
		handler.NewWSHandler(rp, service.FollowEventsChannel).RegisterRoutes(r)
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logger.Info().Str("addr", addr).Msg("author-service starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// 11. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutdown signal received")

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		cancel()

		if kafkaConsumer != nil {
			if err := kafkaConsumer.Close(); err != nil {
				logger.Warn().Err(err).Msg("error closing kafka consumer")
			}
		}

		rec.Stop()
		<-rec.Done()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("HTTP server forced to shutdown")
		}
	}()

	select {
	case <-shutdownDone:
		logger.Info().Msg("author-service stopped")
	case <-time.After(30 * time.Second):
		logger.Warn().Msg("shutdown timed out after 30s")
	}
}
