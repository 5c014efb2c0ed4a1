package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"bookrate/internal/app"
	"bookrate/internal/config"
	"bookrate/internal/ratelimit"
	"bookrate/internal/server"
	"bookrate/internal/util"
	"bookrate/pkg/storage"
	"bookrate/pkg/store"
)

func main() {
	configPath := flag.String("config", config.ConfigPath, "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session TTL: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	st, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	var revoker store.TokenRevoker
	if cfg.RedisAddr != "" {
		revoker = store.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword)
	} else {
		logger.Warn("redis not configured, token revocation is per-process only")
		revoker = store.NewMemoryTokenRevoker()
	}
	sessions, err := store.NewJWTSessionStore(cfg.JWTSecret, sessionTTL, revoker, store.JWTOptions{})
	if err != nil {
		log.Fatalf("failed to init session store: %v", err)
	}

	var covers storage.CoverStore
	if cfg.MinioEndpoint != "" {
		cs, err := storage.NewMinioCoverStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init cover store: %v", err)
		}
		covers = cs
	} else {
		logger.Warn("minio not configured, cover uploads are disabled")
	}

	opts := server.Options{
		TrustProxyHeaders: cfg.TrustProxyHeaders,
		MaxCoverBytes:     cfg.MaxCoverBytes,
	}
	if cfg.SignupRateLimitPerMinute > 0 {
		opts.SignupLimiter, err = ratelimit.NewRedisFixedWindowLimiter(
			cfg.RedisAddr, cfg.RedisPassword, "bookrate:ratelimit:signup",
			cfg.SignupRateLimitPerMinute, time.Minute)
		if err != nil {
			log.Fatalf("failed to init signup limiter: %v", err)
		}
	}
	if cfg.LoginRateLimitPerMinute > 0 {
		opts.LoginLimiter, err = ratelimit.NewRedisFixedWindowLimiter(
			cfg.RedisAddr, cfg.RedisPassword, "bookrate:ratelimit:login",
			cfg.LoginRateLimitPerMinute, time.Minute)
		if err != nil {
			log.Fatalf("failed to init login limiter: %v", err)
		}
	}

	httpServer := server.New(app.New(st, sessions, covers), opts)
	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           httpServer.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "err", err)
	}
}
