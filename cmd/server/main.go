package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	httpapi "github.com/groupbuy-hub/groupbuy-hub/internal/api/http"
	appAudit "github.com/groupbuy-hub/groupbuy-hub/internal/application/audit"
	"github.com/groupbuy-hub/groupbuy-hub/internal/application/bidding"
	appDispute "github.com/groupbuy-hub/groupbuy-hub/internal/application/dispute"
	"github.com/groupbuy-hub/groupbuy-hub/internal/application/ledger"
	"github.com/groupbuy-hub/groupbuy-hub/internal/application/lifecycle"
	"github.com/groupbuy-hub/groupbuy-hub/internal/application/scheduler"
	"github.com/groupbuy-hub/groupbuy-hub/internal/application/selection"
	"github.com/groupbuy-hub/groupbuy-hub/internal/config"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/audit"
	"github.com/groupbuy-hub/groupbuy-hub/internal/domain/store"
	"github.com/groupbuy-hub/groupbuy-hub/internal/infrastructure/eventbus"
	"github.com/groupbuy-hub/groupbuy-hub/internal/infrastructure/memory"
	"github.com/groupbuy-hub/groupbuy-hub/internal/infrastructure/postgres"
	"github.com/groupbuy-hub/groupbuy-hub/internal/infrastructure/rabbitmq"
	"github.com/groupbuy-hub/groupbuy-hub/internal/infrastructure/ratelimit"
	"github.com/groupbuy-hub/groupbuy-hub/internal/infrastructure/sse"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config error")
	}
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// storage
	var (
		uow       store.UnitOfWork
		auditRepo audit.Repository
	)
	switch cfg.StorageDriver {
	case config.DriverMemory:
		mem := memory.NewStore()
		uow, auditRepo = mem, mem.Audit()
		logger.Warn().Msg("using in-memory storage, data is lost on restart")
	default:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, postgres.PoolOptions{MaxConns: cfg.DBMaxConns})
		if err != nil {
			logger.Fatal().Err(err).Msg("db error")
		}
		defer pool.Close()
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("migration error")
		}
		uow, auditRepo = postgres.NewStore(pool), postgres.NewAuditRepository(pool)
	}

	// event fan-out
	sseHub := sse.NewHub(64)
	sinks := []eventbus.Sink{sseHub}
	if cfg.RabbitMQURL != "" {
		pub, err := rabbitmq.Dial(cfg.RabbitMQURL, cfg.RabbitMQExchange)
		if err != nil {
			logger.Fatal().Err(err).Msg("rabbitmq error")
		}
		defer pub.Close()
		sinks = append(sinks, pub)
	}
	dispatcher := eventbus.NewDispatcher(cfg.EventBufferSize, logger, sinks...)
	dispatcher.Start(ctx)

	// services
	auditSvc := appAudit.NewService(auditRepo, logger, cfg.AuditSigningKey)
	lifecycleSvc := lifecycle.NewService(uow, auditSvc, dispatcher, lifecycle.Config{
		BuyerDecisionWindow:  cfg.BuyerDecisionWindow,
		SellerDecisionWindow: cfg.SellerDecisionWindow,
	}, logger)
	ledgerSvc := ledger.NewService(uow, auditSvc, logger)
	biddingSvc := bidding.NewService(uow, ledgerSvc, auditSvc, logger)
	selectionSvc := selection.NewService(uow, auditSvc, dispatcher, logger)
	disputeSvc := appDispute.NewService(uow, auditSvc, dispatcher, appDispute.Config{
		AllowObjectionOnHold: cfg.AllowObjectionOnHold,
	}, logger)
	sweeper := scheduler.NewService(uow, lifecycleSvc, selectionSvc, logger)

	limiter := newLimiter(ctx, cfg, logger)

	apiServer := httpapi.NewServer(
		lifecycleSvc,
		biddingSvc,
		selectionSvc,
		ledgerSvc,
		disputeSvc,
		auditSvc,
		sweeper,
		sseHub,
		httpapi.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer),
		limiter,
		logger,
	)

	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE streams stay open
		IdleTimeout:  60 * time.Second,
	}

	// background loops
	if cfg.SweepInterval > 0 {
		go sweeper.Run(ctx, cfg.SweepInterval, cfg.SweepBatchSize)
	}

	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Str("storage", cfg.StorageDriver).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	logger.Info().Msg("shutting down")
	sseHub.Stop()
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
	dispatcher.Close()
	auditSvc.Flush()
}

// newLimiter shares buckets through Redis when configured and falls back to
// the in-process limiter when Redis errors.
func newLimiter(ctx context.Context, cfg *config.Config, logger zerolog.Logger) ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	rl := ratelimit.Config{
		Prefix:         cfg.RateLimit.Prefix,
		Capacity:       cfg.RateLimit.Capacity,
		RefillTokens:   cfg.RateLimit.RefillTokens,
		RefillInterval: cfg.RateLimit.RefillInterval,
		TTL:            cfg.RateLimit.TTL,
	}
	local := ratelimit.NewLocalLimiter(rl)
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				local.Sweep()
			}
		}
	}()
	if cfg.Redis.Addr == "" {
		return local
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("redis unreachable, rate limiting falls back to local buckets")
	}
	return ratelimit.Fallback{Primary: ratelimit.NewRedisLimiter(rdb, rl), Secondary: local}
}
