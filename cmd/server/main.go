package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/hongminglow/bountyboard/internal/auth"
	"github.com/hongminglow/bountyboard/internal/cache"
	"github.com/hongminglow/bountyboard/internal/config"
	"github.com/hongminglow/bountyboard/internal/digest"
	"github.com/hongminglow/bountyboard/internal/email"
	"github.com/hongminglow/bountyboard/internal/logging"
	"github.com/hongminglow/bountyboard/internal/marketplace"
	"github.com/hongminglow/bountyboard/internal/middleware"
	"github.com/hongminglow/bountyboard/internal/payments"
	"github.com/hongminglow/bountyboard/internal/push"
	"github.com/hongminglow/bountyboard/internal/realtime"
	"github.com/hongminglow/bountyboard/internal/server"
	"github.com/hongminglow/bountyboard/internal/storage"
	"github.com/hongminglow/bountyboard/internal/storage/memory"
	"github.com/hongminglow/bountyboard/internal/storage/postgres"
	"github.com/hongminglow/bountyboard/internal/uploads"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	log := logging.New(cfg.LogLevel)
	logrus.SetFormatter(log.Formatter)
	logrus.SetLevel(log.Level)
	if envErr != nil {
		log.Debug("no .env file found; relying on existing environment")
	}

	ctx := context.Background()

	var store storage.Store
	if cfg.UsesMemoryStore() {
		log.Warn("using in-memory store; data is lost on restart")
		store = memory.New()
	} else {
		pg, err := postgres.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("init database")
		}
		store = pg
	}
	defer store.Close()

	var responseCache cache.Cache = cache.Noop{}
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			log.WithError(err).Warn("redis unavailable; caching disabled")
		} else {
			defer redisCache.Close()
			responseCache = redisCache
		}
	}

	var provider payments.Provider = payments.Disabled{}
	if cfg.Stripe.Enabled() {
		provider = payments.NewStripe(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
	} else {
		log.Warn("STRIPE_SECRET_KEY not set; escrow is disabled")
	}

	var notifier marketplace.Notifier
	if cfg.Push.Enabled() {
		sender := push.NewVAPIDSender(cfg.Push.VAPIDPublicKey, cfg.Push.VAPIDPrivateKey, cfg.Push.Subject)
		notifier = push.NewNotifier(store, sender, log)
	}

	var mailer email.Mailer = email.Disabled{}
	if cfg.Email.Enabled() {
		mailer = email.NewResend(cfg.Email.APIKey, cfg.Email.From)
	}

	var objects uploads.ObjectStore = uploads.Disabled{}
	if cfg.Storage.Enabled() {
		minioStore, err := uploads.NewMinio(cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.Bucket, cfg.Storage.UseSSL)
		if err != nil {
			log.WithError(err).Warn("object storage unavailable; uploads disabled")
		} else {
			objects = minioStore
		}
	}

	hub := realtime.NewHub(log, middleware.OriginChecker(cfg.CORSOrigins))
	svc := marketplace.New(marketplace.Deps{
		Store:     store,
		Payments:  provider,
		Notifier:  notifier,
		Mailer:    mailer,
		Cache:     responseCache,
		Publisher: hub,
		Log:       log,
	}, marketplace.Options{
		Currency:       cfg.Stripe.Currency,
		PlatformFeeBPS: cfg.Stripe.PlatformFeeBPS,
		AppBaseURL:     cfg.AppBaseURL,
		CacheTTL:       cfg.CacheTTL,
	})

	job := digest.NewJob(store, mailer, cfg.AppBaseURL, log)
	var scheduler *digest.Scheduler
	if cfg.DigestSchedule != "" && cfg.Email.Enabled() {
		scheduler, err = digest.NewScheduler(cfg.DigestSchedule, job, log)
		if err != nil {
			log.WithError(err).Fatal("init digest scheduler")
		}
		scheduler.Start()
	}

	srv := server.New(cfg, server.Deps{
		Log:         log,
		Store:       store,
		Tokens:      auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL),
		Service:     svc,
		Hub:         hub,
		Digest:      job,
		Objects:     objects,
		MailEnabled: cfg.Email.Enabled(),
	})

	go func() {
		log.WithField("addr", cfg.HTTPAddress()).Info("bountyboard listening")
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if scheduler != nil {
		scheduler.Stop(ctxShutdown)
	}
	if err := srv.Shutdown(ctxShutdown); err != nil {
		log.WithError(err).Warn("graceful shutdown error")
	}
}
