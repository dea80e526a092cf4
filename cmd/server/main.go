package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"posgo/backend/internal/cache"
	"posgo/backend/internal/config"
	"posgo/backend/internal/httpapi"
	"posgo/backend/internal/logger"
	"posgo/backend/internal/media"
	"posgo/backend/internal/metrics"
	"posgo/backend/internal/notify"
	"posgo/backend/internal/service"
	"posgo/backend/internal/session"
	"posgo/backend/internal/store"
	"posgo/backend/internal/store/memory"
	pgstore "posgo/backend/internal/store/postgres"
	"posgo/backend/internal/tenant"
)

func main() {
	cfg := config.Load()
	zl, err := logger.New(cfg.AppEnv)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	if err := validateSecurityConfig(cfg); err != nil {
		zl.Fatal("invalid security configuration", zap.Error(err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 3)

	data, fallbackStoreID, err := openDataStore(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback", zap.Error(err))
	}
	if c, ok := data.(interface{ Close() error }); ok {
		closers = append(closers, c.Close)
	}

	var sharedCache cache.Cache = cache.NewMemory()
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, "posgo:")
		if err := redisCache.Ping(ctx); err != nil {
			zl.Warn("redis unavailable, using in-process cache", zap.Error(err))
		} else {
			sharedCache = redisCache
			closers = append(closers, redisCache.Close)
			zl.Info("cache: redis", zap.String("addr", cfg.RedisAddr))
		}
	} else {
		zl.Info("cache: in-process")
	}

	var objects media.ObjectStore = media.NewMemory(cfg.PublicBaseURL)
	if cfg.S3.Bucket != "" {
		s3Store, err := media.NewS3(ctx, cfg.S3)
		if err != nil {
			zl.Fatal("object storage unavailable", zap.Error(err))
		}
		objects = s3Store
		zl.Info("media: s3", zap.String("bucket", cfg.S3.Bucket))
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	var notifier notify.Notifier = notify.Noop{Logger: zl}
	var webhook *notify.Webhook
	if cfg.ReceiptWebhookURL != "" {
		webhook = notify.NewWebhook(cfg.ReceiptWebhookURL, cfg.WebhookTimeout(), zl, m)
		notifier = webhook
	}

	sessions := session.NewStore(sharedCache, cfg.AccessTokenTTL())
	tenants := tenant.NewResolver(data, sharedCache, cfg.TenantCacheTTL(), fallbackStoreID, zl)
	svc := service.New(data,
		service.WithObjectStore(objects),
		service.WithNotifier(notifier),
		service.WithMetrics(m),
		service.WithLogger(zl),
	)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, cfg.AccessTokenTTL(), data, sessions, zl)
	api := httpapi.New(svc, auth, tenants, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		Metrics:       m,
		Logger:        zl,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		zl.Info("POS backend listening", zap.String("addr", cfg.Address()), zap.Bool("demo", cfg.DemoMode()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zl.Warn("shutdown error", zap.Error(err))
	}
	if webhook != nil {
		webhook.Wait()
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			zl.Warn("close error", zap.Error(err))
		}
	}

	zl.Info("server stopped")
}

// openDataStore selects the persistence mode. Demo mode keeps everything in
// process under the demo store; otherwise postgres is migrated and used, with
// DEFAULT_STORE_ID as the tenant fallback.
func openDataStore(ctx context.Context, cfg config.Config, zl *zap.Logger) (store.DataStore, string, error) {
	if cfg.DemoMode() {
		zl.Info("repository: in-memory demo")
		return memory.NewSeeded(zl, memory.WithSnapshot(cfg.DemoSnapshotPath)), memory.DemoStoreID, nil
	}

	pg, err := pgstore.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, "", err
	}
	if err := pg.Migrate(ctx); err != nil {
		_ = pg.Close()
		return nil, "", fmt.Errorf("migrate: %w", err)
	}
	zl.Info("repository: postgres")
	return pg, cfg.DefaultStoreID, nil
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if !cfg.DemoMode() && cfg.AllowedOrigin == "*" {
		return fmt.Errorf("ALLOWED_ORIGIN must name an origin when DATABASE_URL is set")
	}
	return nil
}
