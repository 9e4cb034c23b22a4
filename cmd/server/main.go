package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"onpaku/internal/audit"
	"onpaku/internal/docstore"
	"onpaku/internal/platform/config"
	"onpaku/internal/platform/httpserver"
	"onpaku/internal/platform/logger"
	"onpaku/internal/platform/metrics"
	"onpaku/internal/platform/middleware"
	platformredis "onpaku/internal/platform/redis"
	"onpaku/internal/program"
	programhandler "onpaku/internal/program/handler"
	"onpaku/internal/reservation"
	reservationhandler "onpaku/internal/reservation/handler"
	"onpaku/internal/user"
	userhandler "onpaku/internal/user/handler"
	"onpaku/internal/vc"
	vchandler "onpaku/internal/vc/handler"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal services.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	store, cleanup, err := newStore(cfg, log)
	if err != nil {
		log.Error("failed to initialize document store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	m := metrics.New(prometheus.DefaultRegisterer)

	var publisher audit.Publisher = audit.NopPublisher{}
	if len(cfg.Audit.Brokers) > 0 {
		kafkaPublisher, err := audit.NewKafkaPublisher(cfg.Audit)
		if err != nil {
			log.Error("failed to initialize kafka audit publisher", "error", err)
			os.Exit(1)
		}
		defer kafkaPublisher.Close()
		publisher = kafkaPublisher
	}
	emitter := audit.NewEmitter(publisher, log)

	vcService := vc.NewService(store,
		vc.WithLogger(log),
		vc.WithMetrics(m),
		vc.WithAudit(emitter),
	)
	programService := program.NewService(store, vcService,
		program.WithLogger(log),
		program.WithMetrics(m),
		program.WithAudit(emitter),
	)
	userService := user.NewService(store, vcService, programService,
		user.WithLogger(log),
		user.WithMetrics(m),
		user.WithAudit(emitter),
	)
	reservationService := reservation.NewService(store, vcService,
		reservation.WithLogger(log),
		reservation.WithMetrics(m),
		reservation.WithAudit(emitter),
	)

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.Logger(log))
	router.Use(middleware.Latency(m))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := store.Health(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("store unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Method(http.MethodGet, "/metrics", promhttp.Handler())

	router.Route("/api/v1/onpaku", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.RequireAPIKey(cfg.APIKey, log))

		userhandler.New(userService, log).Register(r)
		programhandler.New(programService, log).Register(r)
		reservationhandler.New(reservationService, log).Register(r)
		vchandler.New(vcService, log).Register(r)
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting onpaku backend",
		"addr", cfg.Addr,
		"docstore_driver", cfg.DocstoreDriver,
	)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
}

// newStore selects the document store backend from configuration. The
// returned cleanup is safe to call once, after the server stops.
func newStore(cfg config.Server, log *slog.Logger) (docstore.Store, func(), error) {
	switch cfg.DocstoreDriver {
	case "memory":
		return docstore.NewMemoryStore(), func() {}, nil

	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, nil, fmt.Errorf("postgres driver requires ONPAKU_DATABASE_URL")
		}
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		store := docstore.NewPostgresStore(db)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Migrate(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate documents table: %w", err)
		}
		return store, func() {
			if err := db.Close(); err != nil {
				log.Warn("closing postgres", "error", err)
			}
		}, nil

	case "redis":
		client, err := platformredis.New(cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("connect redis: %w", err)
		}
		if client == nil {
			return nil, nil, fmt.Errorf("redis driver requires ONPAKU_REDIS_URL")
		}
		return docstore.NewRedisStore(client.Client), func() {
			if err := client.Close(); err != nil {
				log.Warn("closing redis", "error", err)
			}
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown docstore driver %q", cfg.DocstoreDriver)
	}
}
