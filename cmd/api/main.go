package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"attachly/internal/config"
	httpx "attachly/internal/http"
	middlewarex "attachly/internal/http/middleware"
	"attachly/internal/provider"
	"attachly/internal/provider/daraja"
	"attachly/internal/provider/paystack"
	"attachly/internal/services/application"
	"attachly/internal/services/webhook"
	"attachly/internal/storage"
	"attachly/internal/store/postgres"
)

func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := postgres.MustOpen(ctx, cfg.DB.DSN)
	defer pool.Close()

	apps := postgres.NewApplicationRepository(pool)
	opps := postgres.NewOpportunityRepository(pool)
	users := postgres.NewUserRepository(pool)

	uploads, err := storage.NewDisk(cfg.Upload.Dir, cfg.Upload.BaseURL)
	if err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Upload.Dir).Msg("upload storage init failed")
	}

	// Both adapters are registered so the webhook route can dispatch by
	// name; outbound charges go through the one the deployment selected.
	registry := provider.NewRegistry()
	registry.Register("daraja", daraja.New(cfg.Daraja))
	registry.Register("paystack", paystack.New(cfg.Paystack))

	active, err := registry.Get(cfg.Provider)
	if err != nil {
		log.Fatal().Err(err).Str("provider", cfg.Provider).Msg("payment provider unavailable")
	}

	svc := application.NewService(apps, opps, uploads, active)
	proc := webhook.NewProcessor(registry, svc)

	var limiter *middlewarex.RedisLimiter
	if cfg.Redis.Addr != "" {
		limiter = middlewarex.NewRedisLimiter(redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr}))
	}

	r := httpx.NewRouter(httpx.RouterDependencies{
		Config:        cfg,
		Applications:  svc,
		Opportunities: opps,
		Users:         users,
		Webhooks:      proc,
		Limiter:       limiter,
		UploadDir:     uploads.Root(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().
			Str("port", cfg.App.Port).
			Str("provider", active.Name()).
			Msg("Attachly API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	cancel()
	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	log.Info().Msg("server stopped")
}
