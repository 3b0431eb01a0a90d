package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"moneyboard/internal/auth"
	"moneyboard/internal/cache"
	"moneyboard/internal/cli"
	apphttp "moneyboard/internal/http"
	"moneyboard/internal/log"
	"moneyboard/internal/middleware/ratelimit"
)

func main() {
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(log.ComponentApp, cfg.LogLevel)

	logger.Info("Starting moneyboard", "backend", cfg.DataBackend, "timezone", cfg.Timezone)

	be := cli.OpenBackend(context.Background(), logger, cfg)

	// Publishing is best effort: the API keeps serving without a broker.
	amqpClient, err := cli.ConnectAMQP(logger, cfg)
	if err != nil {
		logger.Warn("AMQP unavailable, change events will not be published", log.FieldError, err)
		amqpClient = nil
	}

	svc := cli.NewServices(cfg, be.Store, amqpClient)

	caches := cache.NewManager()
	if c := svc.Transactions.Cache(); c != nil {
		caches.Register(c)
	}
	caches.StartCleanup(time.Minute)

	ready := be.Ready
	if ready == nil {
		ready = apphttp.StoreReady(be.Store)
	}

	srv, err := apphttp.NewServer(apphttp.Options{
		Addr:         ":" + cfg.Port,
		Transactions: svc.Transactions,
		Tasks:        svc.Tasks,
		Tokens:       auth.NewJWT(cfg.JWTSecret),
		RateLimit: ratelimit.Config{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		},
		Logger:         logger,
		Ready:          ready,
		TrustedProxies: cfg.TrustedProxies,
	})
	if err != nil {
		logger.Error("Failed to configure server", log.FieldError, err)
		os.Exit(1)
	}

	ctx, stop, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		caches.Stop()
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		if be.Cleanup != nil {
			if err := be.Cleanup(); err != nil {
				logger.Error("Failed to close data backend", log.FieldError, err)
			}
		}
		requests, suspicious, limited := srv.Stats()
		views := svc.Transactions.CacheStats()
		logger.Info("Server stats",
			"requests", requests,
			"suspicious", suspicious,
			"rate_limited", limited,
			"view_cache_hits", views.Hits,
			"view_cache_misses", views.Misses,
			"view_cache_hit_rate", views.HitRate())
	})

	logger.Info("Listening", "port", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		stop()
		<-done
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
