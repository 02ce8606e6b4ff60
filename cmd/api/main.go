package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"taskboard/api/internal/app"
	"taskboard/api/internal/blob"
	"taskboard/api/internal/config"
	"taskboard/api/internal/email"
	"taskboard/api/internal/realtime"
	"taskboard/api/internal/search"
	"taskboard/api/internal/session"
	"taskboard/api/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := app.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("taskboard.exit", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	openCtx, cancelOpen := context.WithTimeout(rootCtx, 30*time.Second)
	defer cancelOpen()

	dataStore, err := store.Open(openCtx, store.Options{
		URL:              cfg.Database.URL,
		MongoDatabase:    cfg.Database.MongoDatabase,
		Migrate:          cfg.Database.Migrate,
		FallbackToMemory: cfg.Database.FallbackToMemory,
	}, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer dataStore.Close()

	var sessionStore session.Store
	if strings.TrimSpace(cfg.Session.RedisURL) != "" {
		redisStore, err := session.NewRedisStore(cfg.Session.RedisURL, cfg.Session.TTL)
		if err != nil {
			return fmt.Errorf("redis session store: %w", err)
		}
		logger.Info("session.store", "backend", "redis")
		sessionStore = redisStore
	} else {
		logger.Warn("session.store", "backend", "memory", "note", "sessions are lost on restart")
		sessionStore = session.NewMemoryStore(cfg.Session.TTL)
	}
	defer sessionStore.Close()
	resolver := session.NewResolver(sessionStore, []byte(cfg.Session.Secret), cfg.Session.LookupTimeout)

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := realtime.NewMetrics(promRegistry)

	registry := realtime.NewRegistry()
	dispatcher := realtime.NewDispatcher(registry, metrics, logger)
	worker := realtime.NewWorker(cfg.Realtime.QueueSize, cfg.Realtime.JobTimeout, metrics, logger)
	wsHandler := realtime.NewHandler(
		&realtime.Authenticator{CookieName: cfg.Session.CookieName, Sessions: resolver},
		registry,
		metrics,
		realtime.Options{
			SendBuffer:      cfg.Realtime.SendBuffer,
			WriteWait:       cfg.Realtime.WriteWait,
			PongWait:        cfg.Realtime.PongWait,
			MaxMessageBytes: cfg.Realtime.MaxMessageBytes,
			InboundRate:     cfg.Realtime.InboundRate,
			InboundBurst:    cfg.Realtime.InboundBurst,
		},
		cfg.AllowedOrigins(),
		logger,
	)

	var meiliClient *search.Meili
	if strings.TrimSpace(cfg.Search.MeiliURL) != "" {
		meiliClient = search.NewMeili(cfg.Search.MeiliURL, cfg.Search.MeiliMasterKey, cfg.Search.Index, logger)
	}
	searchService := search.NewService(meiliClient, dataStore, logger)
	defer searchService.Close()

	var blobs blob.Store
	if strings.TrimSpace(cfg.Storage.Endpoint) != "" {
		minioStore, err := blob.NewMinioStore(blob.MinioConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			return fmt.Errorf("object storage: %w", err)
		}
		if err := minioStore.EnsureBucket(openCtx); err != nil {
			return fmt.Errorf("object storage: %w", err)
		}
		blobs = minioStore
	} else {
		logger.Warn("storage.disabled", "note", "attachment uploads return 503")
	}

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
		FromName: cfg.SMTP.FromName,
		AppURL:   cfg.SMTP.AppURL,
	})

	service := app.New(app.Deps{
		Store:        dataStore,
		Sessions:     resolver,
		SessionStore: sessionStore,
		Events:       dispatcher,
		Jobs:         worker,
		Blobs:        blobs,
		Search:       searchService,
		Mailer:       mailer,
		Logger:       logger,
	})

	httpServer := app.NewHTTPServer(service, app.HTTPOptions{
		AllowedOrigins: cfg.AllowedOrigins(),
		CookieName:     cfg.Session.CookieName,
		CookieMaxAge:   cfg.Session.TTL,
		SecureCookie:   cfg.Session.SecureCookie,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		WebSocketPath:  cfg.Realtime.Path,
		WebSocket:      wsHandler,
		Metrics:        promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{Registry: promRegistry}),
		Logger:         logger,
	})
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// The worker outlives the HTTP server so writes committed by in-flight
	// requests still fan out before the sockets are closed.
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	workerDone := make(chan struct{})

	g, ctx := errgroup.WithContext(rootCtx)
	g.Go(func() error {
		defer close(workerDone)
		return worker.Run(workerCtx)
	})
	g.Go(func() error {
		logger.Info("taskboard.listening", "addr", cfg.Server.Addr, "ws_path", cfg.Realtime.Path)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		searchService.ReindexAll(ctx)
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("taskboard.shutdown", "error", err)
		}
		stopWorker()
		<-workerDone
		closed := wsHandler.Shutdown()
		logger.Info("realtime.shutdown", "closed_connections", closed)
		return nil
	})

	err = g.Wait()
	logger.Info("taskboard.stopped", "open_connections", registry.Count())
	return err
}
