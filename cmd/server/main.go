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
	"github.com/redis/go-redis/v9"

	"github.com/poornimax/crushline/internal/archive"
	"github.com/poornimax/crushline/internal/config"
	"github.com/poornimax/crushline/internal/domain"
	"github.com/poornimax/crushline/internal/events"
	"github.com/poornimax/crushline/internal/handler"
	"github.com/poornimax/crushline/internal/hub"
	"github.com/poornimax/crushline/internal/pairlock"
	"github.com/poornimax/crushline/internal/reconciler"
	"github.com/poornimax/crushline/internal/relay"
	"github.com/poornimax/crushline/internal/repository"
	"github.com/poornimax/crushline/internal/service"
	"github.com/poornimax/crushline/internal/store"
	"github.com/poornimax/crushline/pkg/database"
	"github.com/poornimax/crushline/pkg/jwt"
	pkglog "github.com/poornimax/crushline/pkg/log"
	"github.com/poornimax/crushline/pkg/middleware"
	"github.com/poornimax/crushline/pkg/pubsub"
	"github.com/poornimax/crushline/pkg/storage"
)

const relayReadyTimeout = 10 * time.Second

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		l := pkglog.L()
		l.Fatal().Err(err).Msg("failed to load config")
	}

	// 2. Initialize structured logger
	pkglog.Init(cfg.Log)
	logger := pkglog.L()

	// 3. Init DB and migrate
	db, err := database.New(&cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to get underlying sql.DB")
	}
	defer sqlDB.Close()

	if err := database.AutoMigrate(db, domain.Models()...); err != nil {
		logger.Fatal().Err(err).Msg("failed to auto-migrate")
	}
	logger.Info().Str("driver", cfg.Database.Driver).Msg("database migration completed")

	// 4. Redis: stats cache and, optionally, the pair lock
	var (
		statsStore  store.StatsStore = store.NoopStatsStore{}
		locker      pairlock.Locker  = pairlock.NewLocalLocker()
		redisClient *redis.Client
	)
	if cfg.Redis.Address != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Fatal().Err(err).Str("addr", cfg.Redis.Address).Msg("failed to connect to redis")
		}
		defer redisClient.Close()
		statsStore = store.NewRedisStatsStoreFromClient(redisClient, cfg.Redis.StatsTTL)
		logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")

		if cfg.Relationship.LockBackend == "redis" {
			locker = pairlock.NewRedisLocker(redisClient, cfg.Relationship.LockTTL, cfg.Relationship.LockWait)
			logger.Info().Msg("using redis pair lock")
		}
	} else {
		logger.Warn().Msg("REDIS_ADDRESS not configured; stats cache disabled, in-process pair lock")
	}

	// 5. Domain event producer
	var producer events.Producer = events.NoopProducer{}
	if cfg.Kafka.Brokers != "" {
		p, err := events.NewConfluentProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, 0)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to create kafka producer, relationship events disabled")
		} else {
			producer = p
			logger.Info().Str("topic", cfg.Kafka.Topic).Msg("kafka producer started")
		}
	} else {
		logger.Warn().Msg("KAFKA_BROKERS not configured; relationship events disabled")
	}

	// 6. Archive storage
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	archiveStore, err := storage.New(ctx, cfg.Archive)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Archive.Driver).Msg("failed to init archive storage")
	}

	// 7. Broadcast: event bus, local hub and the relay between them
	bus, err := pubsub.NewPubSub(cfg.PubSub)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.PubSub.Driver).Msg("failed to init pubsub")
	}

	h := hub.New()
	go h.Run(ctx)

	rel := relay.New(bus, h)
	go rel.Run(ctx)

	// Publishes made before the pattern subscription exists are lost on
	// the memory bus, so hold traffic until the relay is listening.
	readyCtx, readyCancel := context.WithTimeout(ctx, relayReadyTimeout)
	if err := rel.WaitReady(readyCtx); err != nil {
		logger.Warn().Err(err).Str("driver", cfg.PubSub.Driver).Msg("conversation relay not subscribed yet; live delivery may lag")
	} else {
		logger.Info().Str("driver", cfg.PubSub.Driver).Msg("conversation relay started")
	}
	readyCancel()

	// 8. Repositories and services
	users := repository.NewGormUserRepository(db)
	relationshipRepo := repository.NewGormRelationshipRepository(db)
	messageRepo := repository.NewGormMessageRepository(db)

	relationshipSvc := service.NewRelationshipService(relationshipRepo, users, locker, statsStore, producer,
		service.WithMaxRetries(cfg.Relationship.MaxRetries))
	compatibilitySvc := service.NewCompatibilityService(users)
	conversationSvc := service.NewConversationService(messageRepo, users, rel, archive.NewStorageArchiver(archiveStore), locker)
	syncSvc := service.NewSyncService(messageRepo, users)

	// 9. Reconciler
	rec := reconciler.New(statsStore, relationshipRepo, cfg.Reconciler)
	rec.Start(ctx)
	logger.Info().Dur("interval", cfg.Reconciler.Interval).Int("top_n", cfg.Reconciler.TopN).Msg("reconciler started")

	// 10. Auth
	tokens, err := jwt.NewManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init token validator")
	}
	authMiddleware := middleware.NewAuthMiddleware(tokens)

	// 11. Gin router + HTTP server
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(pkglog.GinMiddleware(logger))

	handler.NewHandler(relationshipSvc, compatibilitySvc, conversationSvc, syncSvc, authMiddleware).RegisterRoutes(r)
	handler.NewWSHandler(h, conversationSvc, authMiddleware, cfg.WebSocket).RegisterRoutes(r)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logger.Info().Str("addr", addr).Msg("crushline starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	// 12. Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutdown signal received")

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		// Drain HTTP first so no new writes start.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("HTTP server forced to shutdown")
		}

		// Stops the hub (closing every socket), the relay and the reconciler.
		cancel()
		rec.Stop()
		<-rec.Done()
		<-rel.Done()

		if err := bus.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing pubsub")
		}
		if err := producer.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing kafka producer")
		}
	}()

	select {
	case <-shutdownDone:
		logger.Info().Msg("crushline stopped")
	case <-time.After(cfg.Server.ShutdownTimeout + 5*time.Second):
		logger.Warn().Msg("shutdown timed out")
	}
}
