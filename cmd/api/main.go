// Package main is the entry point for the chatroom relay server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mindspring/mindweb/internal/broadcast"
	"github.com/mindspring/mindweb/internal/config"
	"github.com/mindspring/mindweb/internal/convmap"
	"github.com/mindspring/mindweb/internal/handler"
	"github.com/mindspring/mindweb/internal/middleware"
	natsclient "github.com/mindspring/mindweb/internal/nats"
	"github.com/mindspring/mindweb/internal/relay"
	"github.com/mindspring/mindweb/internal/store"
	"github.com/mindspring/mindweb/internal/upstream"
	"github.com/mindspring/mindweb/pkg/logger"
	"github.com/mindspring/mindweb/pkg/tracing"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()
	logger.SetGlobal(log)

	log.Info("starting chatroom relay server")

	ctx := context.Background()
	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "mindweb", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			defer tracing.Shutdown(ctx, tp)
		}
	}

	// The journal is optional; without NATS the store alone carries history.
	var (
		nc      *natsclient.Client
		journal relay.Journal
	)
	if cfg.NATSURL != "" {
		nc, err = natsclient.Connect(ctx, natsclient.Config{
			URL:      cfg.NATSURL,
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			log.Error("failed to connect to NATS", zap.Error(err))
			os.Exit(1)
		}
		defer nc.Close()

		j := natsclient.NewJournal(nc)
		if err := j.EnsureStream(ctx); err != nil {
			log.Error("failed to ensure journal stream", zap.Error(err))
			os.Exit(1)
		}
		journal = j
		log.Info("NATS journal enabled", zap.String("url", cfg.NATSURL))
	}

	streamer, err := upstream.NewStreamer(cfg, log)
	if err != nil {
		log.Error("failed to create upstream streamer", zap.Error(err))
		os.Exit(1)
	}
	log.Info("upstream provider configured", zap.String("provider", streamer.Name()))

	db := store.NewMemory()
	hub := broadcast.NewHub(cfg.HistoryCapacity, cfg.ListenerBuffer, log)
	mapping := convmap.NewTable()
	orchestrator := relay.New(db, hub, streamer, mapping, journal, log)

	healthHandler := handler.NewHealthHandler(nc)
	chatHandler := handler.NewChatHandler(orchestrator, db, cfg.WebURL, log)
	broadcastHandler := handler.NewBroadcastHandler(hub, cfg.ReplayLimit, cfg.KeepaliveInterval, log)
	userHandler := handler.NewUserHandler(db, log)

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With", "Cache-Control"},
		ExposedHeaders:   []string{"X-Correlation-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/chat", func(r chi.Router) {
			// The SSE stream sits outside the rate limit: one long-lived
			// connection per viewer, not request traffic.
			r.Get("/broadcast", broadcastHandler.Stream)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
				r.Post("/stream", chatHandler.Stream)
				r.Get("/history", chatHandler.History)
				r.Get("/config", chatHandler.Config)
			})
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
			r.Post("/visit", userHandler.Visit)
			r.Get("/online", userHandler.Online)
		})
	})

	server := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     r,
		ReadTimeout: cfg.ServerReadTimeout,
		// SERVER_WRITE_TIMEOUT must stay 0 (the default) while SSE is
		// served from this listener; any positive value kills every
		// broadcast stream after that interval.
		WriteTimeout: cfg.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("server listening", zap.String("port", cfg.ServerPort))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", zap.Error(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	log.Info("server stopped")
}
