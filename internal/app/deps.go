package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/adstudio/backend/internal/auth"
	"github.com/adstudio/backend/internal/billing"
	"github.com/adstudio/backend/internal/catalog"
	"github.com/adstudio/backend/internal/config"
	"github.com/adstudio/backend/internal/db"
	"github.com/adstudio/backend/internal/entitlement"
	"github.com/adstudio/backend/internal/events"
	"github.com/adstudio/backend/internal/handlers"
	"github.com/adstudio/backend/internal/middleware"
	"github.com/adstudio/backend/internal/repositories"
	"github.com/adstudio/backend/internal/storage"
)

const (
	rateLimiterIdleTTL   = 10 * time.Minute
	sessionPruneInterval = time.Hour
)

type expiredSessionDeleter interface {
	DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error)
}

// pruneSessions deletes expired refresh sessions every interval until ctx is done.
func pruneSessions(ctx context.Context, store expiredSessionDeleter, interval time.Duration, now func() time.Time, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.DeleteExpired(ctx, now())
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("prune expired sessions", "error", err)
				}
				continue
			}
			if removed > 0 {
				logger.Info("pruned expired sessions", "count", removed)
			}
		}
	}
}

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The returned cleanup releases background resources.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config, logger *slog.Logger) (handlers.Dependencies, func(context.Context) error, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var closers []func() error
	cleanup := func(context.Context) error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}
	fail := func(err error) (handlers.Dependencies, func(context.Context) error, error) {
		_ = cleanup(context.Background())
		return handlers.Dependencies{}, nil, err
	}

	sessions := repositories.NewPostgresSessionStore(pool)
	hub := auth.NewHub()
	manager := auth.NewManager(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, sessions, auth.WithHub(hub))
	closers = append(closers, func() error { manager.Close(); return nil })

	pruneCtx, stopPruning := context.WithCancel(context.Background())
	pruned := make(chan struct{})
	go func() {
		defer close(pruned)
		pruneSessions(pruneCtx, sessions, sessionPruneInterval, time.Now, logger)
	}()
	closers = append(closers, func() error {
		stopPruning()
		<-pruned
		return nil
	})

	var cache catalog.Cache = catalog.NewMemoryCache(cfg.CatalogCacheTTL)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fail(fmt.Errorf("parse redis url: %w", err))
		}
		client := redis.NewClient(opts)
		closers = append(closers, client.Close)

		bridge := events.NewSessionBridge(hub, client, events.DefaultSessionChannel, logger)
		if err := bridge.Start(ctx); err != nil {
			return fail(err)
		}
		closers = append(closers, bridge.Close)

		cache = catalog.NewRedisCache(client, cfg.CatalogCacheTTL, "adstudio:")
		logger.Info("redis enabled for catalog cache and session events")
	}

	accounts := repositories.NewPostgresAccountRepository(pool)
	cat := catalog.New(repositories.NewPostgresVideoRepository(pool), cache)
	ledger := entitlement.NewLedger(repositories.NewPostgresLedgerStore(pool), cat,
		entitlement.WithPolicy(entitlement.Policy{EnforceTrialExpiry: cfg.Trial.EnforceExpiry}))

	var signer handlers.URLSigner
	if cfg.ObjectStore.Enabled() {
		s3, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			return fail(err)
		}
		signer = s3
	}

	var publisher handlers.OrderPublisher = events.NoopOrderPublisher{}
	if cfg.AMQPURL != "" {
		amqpPublisher, err := events.DialOrderPublisher(cfg.AMQPURL)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, amqpPublisher.Close)
		publisher = amqpPublisher
	}

	deps := handlers.Dependencies{
		Accounts:        accounts,
		Sessions:        manager,
		Catalog:         cat,
		Ledger:          ledger,
		Signer:          signer,
		Favorites:       repositories.NewPostgresFavoriteRepository(pool),
		Downloads:       repositories.NewPostgresDownloadRepository(pool),
		Orders:          repositories.NewPostgresOrderRepository(pool),
		Publisher:       publisher,
		Checkout:        billing.NewService(accounts, billing.NewHostedCheckout(cfg.Checkout, nil)),
		Database:        pool,
		Trial:           cfg.Trial,
		DownloadURLTTL:  cfg.ObjectStore.DownloadURLTTL,
		AuthLimiter:     middleware.NewIPRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Burst, rateLimiterIdleTTL),
		CheckoutLimiter: middleware.NewIPRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.Burst, rateLimiterIdleTTL),

		TrustForwardedFor: cfg.RateLimit.TrustForwardedFor,
	}
	return deps, cleanup, nil
}
