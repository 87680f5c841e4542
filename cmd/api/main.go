package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"sms-console/app"
	"sms-console/config"
	"sms-console/internal/auth"
	"sms-console/internal/contact"
	"sms-console/internal/credential"
	"sms-console/internal/gateway"
	"sms-console/internal/history"
	"sms-console/internal/outbox"
	"sms-console/internal/phone"
	"sms-console/internal/sms"
	"sms-console/pkg/circuitbreaker"
	"sms-console/pkg/metrics"
	"sms-console/pkg/tracing"

	_ "sms-console/docs"

	"github.com/labstack/echo/v4"
	echSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/sync/errgroup"
)

// @title           SMS Console API
// @version         1.0
// @description     Bulk SMS broadcast through a third-party gateway, with history, contacts and gateway settings.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey  ApiKeyAuth
// @in                          header
// @name                        X-API-Key
func main() {
	config.Init()
	app.Init()
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName: config.AppName,
		Endpoint:    config.OtelEndpoint,
		Insecure:    true,
	})
	if err != nil {
		panic(err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	phones := phone.NewPattern(config.SmsCountryCode)

	// Services
	gw := gateway.NewClient(gateway.Options{
		BaseURL: config.GatewayBaseURL,
		Timeout: time.Duration(config.GatewayTimeoutSec) * time.Second,
		Breaker: newBreaker(),
	})

	var cache credential.Cache
	cacheTTL := time.Duration(config.CredentialsCacheTTLSec) * time.Second
	if app.Redis != nil {
		cache = credential.NewRedisCache(app.Redis, cacheTTL)
	} else {
		cache = credential.NewLocalCache(cacheTTL)
	}
	creds := credential.NewLoader(credential.NewStore(app.DB), cache, app.Logger)

	histories := history.NewStore(app.DB, app.Rabbit != nil)
	dispatcher := sms.NewDispatcher(gw, creds, histories, app.Logger)

	// Handlers
	e := app.Echo
	e.Use(auth.APIKey(config.AdminAPIKey))

	// sms
	smsHandler := sms.NewHandler(dispatcher, phones, app.Logger)
	e.POST("/sms/bulk", smsHandler.SendBulk)

	historyHandler := history.NewHandler(histories, app.Logger)
	e.GET("/sms/history", historyHandler.List)
	e.GET("/sms/history/:id", historyHandler.Get)

	// settings
	settingsHandler := credential.NewHandler(creds, app.Logger)
	e.GET("/settings/sms-api", settingsHandler.GetSettings)
	e.PUT("/settings/sms-api", settingsHandler.PutSettings)

	// contacts and groups
	contact.NewHandler(contact.NewStore(app.DB), phones, app.Logger).Register(e.Group(""))

	// ops
	e.GET("/healthz", healthz)
	e.GET("/metrics", metrics.Handler())
	e.GET("/swagger/*", echSwagger.WrapHandler)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := e.Start(config.AppListenAddr); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if app.Rabbit != nil {
		relay := outbox.NewRelay(app.DB, app.Rabbit, outbox.RelayConfig{Exchange: config.HistoryExchange}, app.Logger)
		g.Go(func() error { return relay.Run(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		app.Logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		app.Logger.Error("server stopped", "err", err)
	}
}

func newBreaker() *circuitbreaker.Breaker {
	if config.GatewayBreakerFailures <= 0 {
		return nil
	}
	return circuitbreaker.New(circuitbreaker.Config{
		FailureThreshold: config.GatewayBreakerFailures,
		OpenTimeout:      time.Duration(config.GatewayBreakerOpenSec) * time.Second,
	})
}

func healthz(c echo.Context) error {
	if err := app.DB.PingContext(c.Request().Context()); err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "database unreachable")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
