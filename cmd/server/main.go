package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"ecojourney/internal/app"
	"ecojourney/internal/config"
	"ecojourney/internal/notify"
	"ecojourney/internal/server"
	"ecojourney/internal/util"
	"ecojourney/pkg/mailer"
	"ecojourney/pkg/queue"
	"ecojourney/pkg/storage"
	"ecojourney/pkg/store"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	util.InitLogger(cfg.LogLevel)

	sessionTTL := 24 * time.Hour
	if cfg.SessionTTL != "" {
		ttl, err := time.ParseDuration(cfg.SessionTTL)
		if err != nil {
			log.Fatalf("invalid sessionTTL: %v", err)
		}
		sessionTTL = ttl
	}

	dataStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init postgres store: %v", err)
	}

	var sessions store.SessionStore
	switch cfg.SessionStrategy {
	case "jwt":
		revoker := store.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword)
		sessions, err = store.NewJWTSessionStore(cfg.JWTSecret, sessionTTL, revoker)
		if err != nil {
			log.Fatalf("failed to init jwt session store: %v", err)
		}
	default:
		sessions = store.NewRedisSessionStore(cfg.RedisAddr, cfg.RedisPassword, sessionTTL)
	}

	objects, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
	if err != nil {
		log.Fatalf("failed to init object store: %v", err)
	}

	var jobQueue queue.Queue
	switch cfg.QueueDriver {
	case "amqp":
		jobQueue, err = queue.NewAMQPNotificationQueue(queue.AMQPQueueConfig{
			URL:   cfg.AMQPURL,
			Queue: cfg.AMQPQueue,
		})
	default:
		stream := cfg.QueueStream
		if stream == "" {
			stream = "ecojourney:notifications"
		}
		jobQueue, err = queue.NewRedisNotificationQueue(queue.RedisQueueConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			Stream:   stream,
			Group:    cfg.QueueGroup,
		})
	}
	if err != nil {
		log.Fatalf("failed to init notification queue: %v", err)
	}

	smtpMailer, err := mailer.NewSMTPMailer(mailer.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		StartTLS: cfg.SMTPStartTLS,
	})
	if err != nil {
		log.Fatalf("failed to init mailer: %v", err)
	}

	appCore, err := app.New(app.Config{
		Store:         dataStore,
		Sessions:      sessions,
		Objects:       objects,
		Queue:         jobQueue,
		SessionTTL:    sessionTTL,
		MaxUploadSize: cfg.MaxUploadBytes,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	dispatcher, err := notify.New(notify.Config{
		Store:    dataStore,
		Mailer:   smtpMailer,
		Queue:    jobQueue,
		BaseURL:  cfg.SiteBaseURL,
		SiteName: cfg.SiteName,
	})
	if err != nil {
		log.Fatalf("failed to init dispatcher: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:                        appCore,
		RedisAddr:                  cfg.RedisAddr,
		RedisPassword:              cfg.RedisPassword,
		RegisterRateLimitPerMinute: cfg.RegisterRateLimitPerMinute,
		LoginRateLimitPerMinute:    cfg.LoginRateLimitPerMinute,
		PasswordRateLimitPerMinute: cfg.PasswordRateLimitPerMinute,
		MaxUploadBytes:             cfg.MaxUploadBytes,
		TrustedProxyCIDRs:          cfg.TrustedProxyCIDRs,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	concurrency := cfg.DispatcherConcurrency
	if concurrency <= 0 {
		concurrency = 2
	}
	dispatcher.Start(ctx, concurrency)

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		slog.Error("server error", "err", err)
	}
	slog.Info("server stopped")
}
