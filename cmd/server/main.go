// Package main is the entry point for the Calixo API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"calixo/internal/auth"
	"calixo/internal/challenge"
	"calixo/internal/config"
	"calixo/internal/handler"
	"calixo/internal/job"
	"calixo/internal/pkg/db"
	"calixo/internal/pkg/lock"
	"calixo/internal/repository"
	"calixo/internal/server"
	"calixo/internal/service"
	"calixo/internal/storage"
)

func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	configureLogging(cfg.Log)

	log.Info().Msg("Configuration loaded successfully")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := db.Migrate(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("Redis unreachable, rate limiting will fail open")
		}
	} else {
		log.Info().Msg("Redis not configured, rate limiting disabled")
	}

	// The services check for a nil BlobStore, so a nil *Uploader must not be
	// stored in the interface.
	var blobs service.BlobStore
	if cfg.Storage.Bucket != "" {
		uploader, err := storage.NewUploader(ctx, cfg.Storage)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to configure blob storage")
		}
		blobs = uploader
	} else {
		log.Info().Msg("Blob storage not configured, image uploads disabled")
	}

	store := repository.NewStore(dbPool.Pool)
	userLock := lock.NewUserLock()
	kinds := challenge.NewDefaultRegistry(cfg.Challenges.MaxFocusMinutes)

	profileService := service.NewProfileService(store, userLock, blobs, cfg.IsAdmin)
	challengeService := service.NewChallengeService(store, userLock, kinds, cfg.Challenges)
	storeService := service.NewStoreService(store, userLock, blobs)
	couponService := service.NewCouponService(store, userLock)
	socialService := service.NewSocialService(store, userLock, blobs, cfg.Challenges.InviteTTL)
	notificationService := service.NewNotificationService(store)
	moderationService := service.NewModerationService(store)

	if err := server.RegisterValidators(); err != nil {
		log.Fatal().Err(err).Msg("Failed to register request validators")
	}

	maxUpload := cfg.Server.MaxUploadBytes
	router := server.NewRouter(cfg.Server, server.Deps{
		Tokens:  auth.NewVerifier(cfg.Auth),
		Users:   profileService,
		Limiter: server.NewRateLimiter(rdb, cfg.RateLimit.Requests, cfg.RateLimit.Window),
		DB:      store,
	}, server.Handlers{
		Profiles:      handler.NewProfileHandler(profileService, maxUpload),
		Challenges:    handler.NewChallengeHandler(challengeService),
		Store:         handler.NewStoreHandler(storeService),
		Coupons:       handler.NewCouponHandler(couponService),
		Social:        handler.NewSocialHandler(socialService, maxUpload),
		Notifications: handler.NewNotificationHandler(notificationService),
		Moderation:    handler.NewModerationHandler(moderationService),
		Admin:         handler.NewAdminHandler(challengeService, storeService, couponService, profileService, maxUpload),
	})

	scheduler, err := job.NewScheduler(profileService, socialService, job.Intervals{
		Decay:        cfg.Energy.DecayInterval,
		InviteExpiry: cfg.Challenges.InviteSweep,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create job scheduler")
	}
	scheduler.Start()

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server is starting...")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	if err := scheduler.Shutdown(); err != nil {
		log.Error().Err(err).Msg("Job scheduler shutdown failed")
	}
	log.Info().Msg("Server stopped gracefully")
}

func configureLogging(cfg config.LogConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if !cfg.Pretty {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}
