package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog/log"

	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/checkin"
	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/config"
	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/database"
	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/handler"
	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/lock"
	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/middleware"
	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/queue"
	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/repository"
	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/router"
	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/service"
	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, database.DSN(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName),
		database.Pool{MaxOpen: cfg.DBMaxOpen, MaxIdle: cfg.DBMaxIdle})
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, "mysql"); err != nil {
		logger.Fatal().Err(err).Msg("migrate")
	}

	// Redis is optional; without it the guard is per process and cache and
	// rate limiting are off.
	rdb := config.NewRedisClient(config.LoadRedisConfig())
	var guard checkin.Guard = checkin.NewMemoryGuard()
	if rdb != nil {
		defer rdb.Close()
		guard = lock.NewRedisGuard(rdb, "inflight")
	} else {
		logger.Warn().Msg("redis unavailable, using in-process guard")
	}

	var up checkin.Upstream
	switch cfg.UpstreamMode {
	case config.UpstreamHTTP:
		up = upstream.New(cfg.UpstreamURL, cfg.UpstreamToken, cfg.UpstreamTimeout)
	default:
		up = repository.NewStore(db)
	}

	var pub checkin.Publisher
	if cfg.EventsEnabled {
		qp := service.NewQueuePublisher(cfg.AMQPURL, logger)
		defer qp.Close()
		pub = qp
		go func() {
			if err := queue.StartActivityConsumer(ctx, cfg.AMQPURL, cfg.ActivityLogDir, logger); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Msg("activity consumer stopped")
			}
		}()
	}

	sessions := checkin.NewManager(up, guard, pub, logger, checkin.Options{
		InflightTTL:       cfg.InflightTTL,
		ReconcileDebounce: cfg.ReconcileDebounce,
		ReloadTimeout:     cfg.UpstreamTimeout * 2,
		LookupDebounce:    cfg.LookupDebounce,
	}, cfg.SessionIdleTTL)
	defer sessions.Close()
	go sessions.Run(ctx, time.Minute)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(logger))

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	router.RegisterRoutes(e, db, rdb)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens), cfg.JWTSecret)

	var mw router.CheckinMiddleware
	if rdb != nil {
		cacheCfg := config.LoadCacheConfig()
		mw.Limit = middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, logger)
		mw.Cache = middleware.NewRedisCache(cacheCfg, rdb)
		mw.Purge = middleware.NewCachePurge(cacheCfg, rdb, logger)
	}
	router.RegisterCheckin(e, handler.NewCheckinHandler(sessions, logger), cfg.JWTSecret, mw)

	addr := ":" + cfg.Port
	go func() {
		logger.Info().Str("addr", addr).Str("env", cfg.Env).Str("upstream", cfg.UpstreamMode).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown")
	}
	logger.Info().Msg("stopped")
}
