package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/echarter/fleetauth/core"
	"github.com/echarter/fleetauth/directory"
	"github.com/echarter/fleetauth/httpapi"
	"github.com/echarter/fleetauth/internal/config"
	"github.com/echarter/fleetauth/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	accounts, closeDir := buildDirectory(ctx, cfg)
	defer closeDir()

	client := buildRedis(ctx, cfg)
	if client != nil {
		defer client.Close()
	}

	var retry core.RetryQueue
	if cfg.AMQPURL != "" {
		q, err := notify.DialAMQP(amqpConfig(cfg))
		if err != nil {
			log.Fatalf("init retry queue: %v", err)
		}
		defer q.Close()
		retry = q
		log.Printf("undelivered codes go to amqp queue %s", cfg.AMQPQueue)
	}

	opts := core.ManagerOptions{
		Directory:         accounts,
		Notifier:          buildNotifier(cfg),
		Retry:             retry,
		RedisKeyPrefix:    cfg.RedisKeyPrefix,
		JWTSecret:         cfg.JWTSecret,
		JWTIssuer:         cfg.JWTIssuer,
		BcryptCost:        cfg.BcryptCost,
		CodeTTL:           cfg.CodeTTL(),
		TokenTTL:          cfg.TokenTTL(),
		RequestLimit:      cfg.ResetRequestLimit,
		RequestWindow:     cfg.RequestWindow(),
		MaxVerifyAttempts: cfg.ResetVerifyMaxAttempts,
	}
	var ipLimiter core.RateLimiter = core.NewMemoryRateLimiter()
	if client != nil {
		opts.Redis = client
		ipLimiter = core.NewRedisRateLimiter(client, cfg.RedisKeyPrefix+"ip:")
	}
	manager, err := core.NewManagerWithOptions(opts)
	if err != nil {
		log.Fatalf("init manager: %v", err)
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(manager, httpapi.Options{
			MaskUnknownAccounts: cfg.MaskUnknownAccounts,
			TrustForwarded:      cfg.TrustForwarded,
			Limiter:             ipLimiter,
			RateLimit:           cfg.HTTPRateLimit,
			RateWindow:          cfg.RateWindow(),
		}),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}

	go func() {
		log.Printf("listening on %s (redis=%v, postgres=%v)", cfg.HTTPAddr, client != nil, cfg.DatabaseURL != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func buildDirectory(ctx context.Context, cfg *config.Config) (core.AccountDirectory, func()) {
	if cfg.DatabaseURL == "" {
		mem := directory.NewMemory()
		if cfg.SeedEmail == "" {
			log.Printf("WARNING: DATABASE_URL not set and no SEED_EMAIL: in-memory account directory is empty, every reset request will fail")
			return mem, func() {}
		}
		a, err := directory.Seed(ctx, mem, core.NewBcryptHasher(cfg.BcryptCost), cfg.SeedEmail, cfg.SeedPassword)
		if err != nil {
			log.Fatalf("seed in-memory directory: %v", err)
		}
		log.Printf("DATABASE_URL not set, using in-memory account directory seeded with %s", a.Email)
		return mem, func() {}
	}
	pool, err := directory.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	return directory.NewPostgres(pool), pool.Close
}

func buildRedis(ctx context.Context, cfg *config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		log.Printf("using in-memory reset store")
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis ping failed: %v", err)
	}
	log.Printf("using redis reset store at %s", cfg.RedisAddr)
	return client
}

func buildNotifier(cfg *config.Config) core.Notifier {
	if !cfg.SMTPEnabled() {
		log.Printf("SMTP not configured, email disabled")
		return notify.LogNotifier{}
	}
	return notify.NewSMTPMailer(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.SMTPFrom,
		CodeTTL:  cfg.CodeTTL(),
	})
}

func amqpConfig(cfg *config.Config) notify.AMQPConfig {
	return notify.AMQPConfig{
		URL:         cfg.AMQPURL,
		Queue:       cfg.AMQPQueue,
		MaxAttempts: cfg.NotifyMaxAttempts,
		RetryDelay:  cfg.RetryDelay(),
		CodeTTL:     cfg.CodeTTL(),
	}
}
