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

	goredis "github.com/redis/go-redis/v9"

	"storefront/backend/internal/cache"
	"storefront/backend/internal/cart"
	"storefront/backend/internal/config"
	"storefront/backend/internal/httpapi"
	"storefront/backend/internal/logging"
	"storefront/backend/internal/recommendation"
	"storefront/backend/internal/service"
	"storefront/backend/internal/source"
	"storefront/backend/internal/store"
	badgerstore "storefront/backend/internal/store/badger"
	"storefront/backend/internal/store/memory"
	pgstore "storefront/backend/internal/store/postgres"
	redisstore "storefront/backend/internal/store/redis"
)

const cartKeyPrefix = "storefront:"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err := cfg.Validate(); err != nil {
		logging.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 2)

	var redisClient goredis.UniversalClient
	if cfg.Redis.Addr != "" {
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			if cfg.Storage.Backend == "redis" {
				logging.Fatal().Err(err).Msg("redis unavailable and storage backend is redis; refusing to start")
			}
			logging.Warn().Err(err).Msg("redis unavailable, using noop recommendation cache")
		} else {
			redisClient = client
			closers = append(closers, client.Close)
		}
	}

	blobs, closeBlobs, err := openCartStorage(ctx, cfg, redisClient)
	if err != nil {
		logging.Fatal().Err(err).Str("backend", cfg.Storage.Backend).Msg("cart storage unavailable")
	}
	closers = append(closers, closeBlobs)
	logging.Info().Str("backend", cfg.Storage.Backend).Msg("cart storage ready")

	cacheStore := cache.RecommendationCache(cache.NoopRecommendationCache{})
	if redisClient != nil {
		cacheStore = cache.NewRedisRecommendationCache(redisClient)
		logging.Info().Msg("recommendation cache: redis")
	} else {
		logging.Info().Msg("recommendation cache: noop")
	}

	recommender := recommendation.NewEngine(cacheStore, cfg.RecommendationTTL())
	svc := service.New(
		source.NewFetcher(cfg.SourceTimeout()),
		service.Sources{Catalog: cfg.Sources.Catalog, Rules: cfg.Sources.Rules},
		recommender,
		cart.New(blobs, nil),
	)

	loadCtx, loadCancel := context.WithTimeout(context.Background(), 2*cfg.SourceTimeout())
	if _, err := svc.Load(loadCtx); err != nil {
		logging.Warn().Err(err).Msg("starting without catalog or rules; use /api/v1/catalog/reload to retry")
	}
	loadCancel()

	api := httpapi.New(svc, httpapi.NewSessionManager(cfg.Session.Secret, cfg.SessionTTL()), httpapi.Options{
		AllowedOrigin:       cfg.Server.AllowedOrigin,
		RecommendationLimit: cfg.Recommendation.Limit,
		TrustProxy:          cfg.Server.TrustProxy,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      cfg.SourceTimeout() + 10*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logging.Info().Str("addr", cfg.Address()).Msg("storefront backend listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("server error")
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("shutdown error")
	}

	// Close in reverse so the cart store goes before the shared redis client.
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			logging.Error().Err(err).Msg("close error")
		}
	}

	logging.Info().Msg("server stopped")
}

// openCartStorage returns the blob store selected by storage.backend and the
// function that releases it.
func openCartStorage(ctx context.Context, cfg config.Config, redisClient goredis.UniversalClient) (store.BlobStore, func() error, error) {
	switch cfg.Storage.Backend {
	case "", "memory":
		s := memory.New()
		return s, s.Close, nil
	case "redis":
		if redisClient == nil {
			return nil, nil, errors.New("redis backend selected but no redis client is available")
		}
		return redisstore.New(redisClient, cartKeyPrefix, cfg.CartTTL()), func() error { return nil }, nil
	case "badger":
		s, err := badgerstore.Open(cfg.Storage.BadgerDir)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "postgres":
		s, err := pgstore.New(ctx, cfg.Storage.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
