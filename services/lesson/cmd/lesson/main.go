package main

import (
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"lessonforge/internal/genlock"
	"lessonforge/internal/ratelimit"
	"lessonforge/internal/util"
	"lessonforge/pkg/ai"
	"lessonforge/pkg/events"
	"lessonforge/pkg/storage"
	"lessonforge/pkg/store"
	"lessonforge/services/lesson/internal/app"
	"lessonforge/services/lesson/internal/config"
	"lessonforge/services/lesson/internal/server"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	lessonStore, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}

	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
	}

	var limiter *ratelimit.FixedWindowLimiter
	if cfg.RateLimitPerMinute > 0 {
		limiter, err = ratelimit.NewFixedWindowLimiter(redisClient, "", cfg.RateLimitPerMinute, time.Minute)
		if err != nil {
			log.Fatalf("failed to init rate limiter: %v", err)
		}
	}

	var lock *genlock.Mutex
	if redisClient != nil {
		ttl := time.Duration(cfg.LockTTLSeconds) * time.Second
		if ttl <= 0 {
			ttl = 2 * time.Minute
		}
		lock, err = genlock.NewMutex(redisClient, "", ttl)
		if err != nil {
			log.Fatalf("failed to init generation lock: %v", err)
		}
	}

	completer, err := ai.NewProvider(ai.ProviderConfig{
		Kind:    cfg.ProviderKind,
		APIKey:  cfg.ProviderAPIKey,
		BaseURL: cfg.ProviderBaseURL,
		Model:   cfg.ProviderModel,
	})
	if err != nil {
		log.Fatalf("failed to init provider: %v", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	client, err := ai.NewClient(ai.ClientConfig{
		Completer:  completer,
		Estimator:  ai.NewEstimator(cfg.ProviderModel),
		Timeout:    time.Duration(cfg.CallTimeoutSeconds) * time.Second,
		RetryLimit: cfg.RetryLimit,
		Backoff:    time.Duration(cfg.BackoffSeconds * float64(time.Second)),
		Metrics:    ai.NewMetrics(registry),
	})
	if err != nil {
		log.Fatalf("failed to init generation client: %v", err)
	}

	var publisher events.Publisher
	if cfg.RabbitURL != "" {
		rabbit, err := events.NewRabbitPublisher(cfg.RabbitURL, cfg.EventsExchange)
		if err != nil {
			log.Fatalf("failed to init event publisher: %v", err)
		}
		defer rabbit.Close()
		publisher = rabbit
	}

	var artifacts storage.ArtifactStore
	if cfg.ArtifactsEnabled {
		artifacts, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init artifact store: %v", err)
		}
	}

	appCore, err := app.New(app.Config{
		Store:       lessonStore,
		Client:      client,
		TokenBudget: cfg.TokenBudget,
		Lock:        lock,
		Events:      publisher,
		Artifacts:   artifacts,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:             appCore,
		RateLimiter:     limiter,
		MetricsGatherer: registry,
		TrustedProxies:  trustedProxies,
		CORSAllowOrigin: cfg.CORSAllowOrigin,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("lesson server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "err", err)
	}
}
