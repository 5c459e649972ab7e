package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dafibh/fortuna/fortuna-backend/internal/allocation"
	"github.com/dafibh/fortuna/fortuna-backend/internal/cache"
	"github.com/dafibh/fortuna/fortuna-backend/internal/clock"
	"github.com/dafibh/fortuna/fortuna-backend/internal/config"
	"github.com/dafibh/fortuna/fortuna-backend/internal/httpapi"
	"github.com/dafibh/fortuna/fortuna-backend/internal/ledger"
	"github.com/dafibh/fortuna/fortuna-backend/internal/reconciliation"
	"github.com/dafibh/fortuna/fortuna-backend/internal/readmodel"
	"github.com/dafibh/fortuna/fortuna-backend/internal/registry"
	"github.com/dafibh/fortuna/fortuna-backend/internal/rta"
	"github.com/dafibh/fortuna/fortuna-backend/internal/storage"
	"github.com/dafibh/fortuna/fortuna-backend/internal/storage/migrate"
	"github.com/dafibh/fortuna/fortuna-backend/internal/websocket"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	gateway, err := storage.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer gateway.Close()

	ctx := context.Background()
	applied, err := migrate.Run(ctx, gateway)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	log.Info().Int("applied", applied).Msg("migrations up to date")

	clockSource := clock.New()
	registryService := registry.New(gateway)
	ledgerService := ledger.New(gateway, clockSource)
	allocationService := allocation.New(gateway, clockSource)
	reconciliationService := reconciliation.New(gateway)
	rtaService := rta.New(gateway)
	readmodelService := readmodel.New(gateway, rtaService)
	cacheService := cache.New(gateway)

	if !cfg.SkipCacheRebuild {
		if err := cacheService.Rebuild(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to rebuild derived state")
		}
		log.Info().Msg("derived state rebuilt")
	}

	hub := websocket.NewHub()
	ledgerService.SetPublisher(hub)
	allocationService.SetPublisher(hub)
	reconciliationService.SetPublisher(hub)

	// Daily rebuild sweep: operational convenience on top of the
	// incrementally-maintained derived state, not a correctness
	// requirement (spec §4.9 already keeps current_balance_minor and
	// budget_category_monthly_state consistent on every write).
	scheduler := cron.New()
	if !cfg.SkipCacheRebuild {
		if _, err := scheduler.AddFunc("0 3 * * *", func() {
			if err := cacheService.Rebuild(context.Background()); err != nil {
				log.Error().Err(err).Msg("scheduled cache rebuild failed")
			}
		}); err != nil {
			log.Fatal().Err(err).Msg("failed to schedule cache rebuild")
		}
		scheduler.Start()
		defer scheduler.Stop()
	}

	handlers := httpapi.Handlers{
		Account:        httpapi.NewAccountHandler(registryService),
		Category:       httpapi.NewCategoryHandler(registryService),
		Transaction:    httpapi.NewTransactionHandler(ledgerService),
		Allocation:     httpapi.NewAllocationHandler(allocationService),
		Reconciliation: httpapi.NewReconciliationHandler(reconciliationService),
		ReadModel:      httpapi.NewReadModelHandler(readmodelService),
		Cache:          httpapi.NewCacheHandler(cacheService),
		WebSocket:      httpapi.NewWebSocketHandler(hub, cfg.CORSOrigins),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		AllowCredentials: true,
		MaxAge:           86400,
	}))
	e.Use(echomiddleware.SecureWithConfig(echomiddleware.SecureConfig{
		XSSProtection:         "1; mode=block",
		ContentTypeNosniff:    "nosniff",
		XFrameOptions:         "DENY",
		HSTSMaxAge:            31536000,
		ContentSecurityPolicy: "default-src 'self'",
		ReferrerPolicy:        "strict-origin-when-cross-origin",
	}))
	e.Use(zerologMiddleware())
	e.Use(echomiddleware.Recover())

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	httpapi.RegisterRoutes(e, handlers)

	go func() {
		log.Info().Str("port", cfg.Port).Msg("starting server")
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}
	log.Info().Msg("server exited")
}

func zerologMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			req := c.Request()
			res := c.Response()
			log.Info().
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Int("status", res.Status).
				Dur("latency", time.Since(start)).
				Str("request_id", res.Header().Get(echo.HeaderXRequestID)).
				Msg("request")
			return nil
		}
	}
}
