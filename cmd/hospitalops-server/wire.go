package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/hospitalops/hospitalops/internal/config"
	"github.com/hospitalops/hospitalops/internal/domain/allocation"
	"github.com/hospitalops/hospitalops/internal/domain/directory"
	"github.com/hospitalops/hospitalops/internal/platform/audit"
	"github.com/hospitalops/hospitalops/internal/platform/auth"
	"github.com/hospitalops/hospitalops/internal/platform/db"
	"github.com/hospitalops/hospitalops/internal/platform/middleware"
	"github.com/hospitalops/hospitalops/internal/platform/notification"
	"github.com/hospitalops/hospitalops/internal/platform/telemetry"
	"github.com/hospitalops/hospitalops/internal/platform/websocket"
)

// app holds the wired capacity engine and everything that must be closed on
// shutdown.
type app struct {
	service *allocation.Service
	gateway *notification.Gateway
	hub     *websocket.Hub
	probe   db.Probe

	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// stores are the driver-specific repositories behind the engine.
type stores struct {
	directory   directory.Directory
	pools       allocation.PoolRepository
	allocations allocation.AllocationRepository
	tx          allocation.TxRunner
	audit       allocation.AuditSink
	probe       db.Probe
	poolStats   func() (total, idle, acquired int32)
	close       func()
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StoreDriver {
	case config.DriverSQLite:
		sqlDB, err := db.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return &stores{
			directory:   directory.NewSQLiteStore(sqlDB),
			pools:       allocation.NewPoolRepoSQLite(sqlDB),
			allocations: allocation.NewAllocationRepoSQLite(sqlDB),
			tx:          db.NewSQLTxRunner(sqlDB),
			audit:       audit.NewSQLiteLogger(sqlDB),
			probe:       db.SQLiteProbe(sqlDB),
			close:       func() { sqlDB.Close() },
		}, nil
	case config.DriverPostgres:
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		return &stores{
			directory:   directory.NewPGStore(pool),
			pools:       allocation.NewPoolRepoPG(pool),
			allocations: allocation.NewAllocationRepoPG(pool),
			tx:          db.NewTxRunner(pool),
			audit:       audit.NewPGLogger(pool),
			probe:       db.PostgresProbe(pool),
			poolStats: func() (int32, int32, int32) {
				s := pool.Stat()
				return s.TotalConns(), s.IdleConns(), s.AcquiredConns()
			},
			close: pool.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

// newPublisher streams notifications to Redis when REDIS_URL is set and logs
// them otherwise.
func newPublisher(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (notification.Publisher, func(), error) {
	if cfg.RedisURL == "" {
		logger.Info().Msg("REDIS_URL not set, notifications are logged only")
		return notification.NewLogPublisher(logger), func() {}, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	logger.Info().Str("stream", cfg.NotifyStream).Msg("publishing notifications to redis")
	return notification.NewRedisStreamPublisher(client, cfg.NotifyStream), func() { client.Close() }, nil
}

func thresholdsFromConfig(cfg *config.Config) allocation.Thresholds {
	return allocation.Thresholds{
		FlowHighBeds:        cfg.FlowHighBeds,
		UtilizationCritical: cfg.UtilizationCriticalPct,
		UtilizationHigh:     cfg.UtilizationHighPct,
		ShortageCritical:    cfg.ShortageCriticalPct,
		DonorMax:            cfg.DonorMaxPct,
		RemediationFraction: cfg.RemediationFraction,
	}
}

// buildApp opens the configured store and message publisher and wires the
// capacity engine on top of them. metrics may be nil.
func buildApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, metrics *telemetry.Provider) (*app, error) {
	st, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a := &app{probe: st.probe, closers: []func(){st.close}}

	pub, closePub, err := newPublisher(ctx, cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, closePub)
	a.hub = websocket.NewHub(logger)
	a.gateway = notification.NewGateway(notification.NewTeePublisher(pub, a.hub), notification.DefaultHistorySize)

	thresholds := thresholdsFromConfig(cfg)
	if err := thresholds.Validate(); err != nil {
		a.Close()
		return nil, err
	}

	svc := allocation.NewService(allocation.Deps{
		Managers:    st.directory,
		Hospitals:   st.directory,
		Staff:       st.directory,
		Pools:       st.pools,
		Allocations: st.allocations,
		Tx:          st.tx,
		Audit:       st.audit,
		Notifier:    a.gateway,
	})
	svc.SetThresholds(thresholds)
	svc.SetLogger(logger)
	if metrics != nil {
		svc.SetMetrics(metrics)
		if st.poolStats != nil {
			metrics.Registry().MustRegister(telemetry.NewDBPoolCollector(st.poolStats))
		}
	}
	a.service = svc
	return a, nil
}

func newServer(cfg *config.Config, logger zerolog.Logger, a *app, metrics *telemetry.Provider) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(metrics.MetricsMiddleware())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout))

	// Auth
	if cfg.IsDev() && cfg.AuthSigningKey == "" {
		logger.Warn().Msg("no AUTH_SIGNING_KEY in development, every unauthenticated request acts as admin")
		e.Use(auth.DevAuthMiddleware(auth.AuthSkipper))
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
			Skipper:    auth.AuthSkipper,
		}))
	}

	// Health and metrics
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/health/db", db.HealthHandler(a.probe))
	e.GET("/metrics", metrics.Handler())

	api := e.Group("/api/v1")
	allocation.NewHandler(a.service).RegisterRoutes(api)
	notifications := api.Group("", auth.RequireRole(auth.RoleManager, auth.RoleAdmin))
	notification.NewHandler(a.gateway).RegisterRoutes(notifications)
	websocket.NewHandler(a.hub, cfg.CORSOrigins).RegisterRoutes(notifications)

	return e
}
