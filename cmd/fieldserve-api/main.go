package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fieldserve/internal/api"
	"fieldserve/internal/config"
	"fieldserve/internal/db"
	"fieldserve/internal/jobs"
	"fieldserve/internal/pubsub"
	"fieldserve/internal/report"
	"fieldserve/internal/schema"
	"fieldserve/internal/service"
	"fieldserve/internal/storage"
	"fieldserve/internal/ws"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		if err := runMigrations(cfg.DatabaseURL); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		os.Exit(0)
	}

	if len(os.Args) > 1 && os.Args[1] == "goose-migrate" {
		if err := runGooseMigrations(cfg.DatabaseURL); err != nil {
			log.Fatalf("Goose migration failed: %v", err)
		}
		os.Exit(0)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if len(os.Args) > 1 && os.Args[1] != "serve" {
		log.Fatalf("Unknown command: %s (use 'serve' or 'migrate')", os.Args[1])
	}

	dbPool, err := db.NewPool(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer dbPool.Close()

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	defer rdb.Close()

	ctx := context.Background()
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}

	// Pub/sub bus and audit journal
	bus := pubsub.New(rdb, logger)
	journal := pubsub.NewJournal(rdb, logger)

	// Background jobs
	jobServer, jobClient := jobs.NewJobServer(cfg.RedisAddr, dbPool, bus, logger)
	go func() {
		if err := jobServer.Start(); err != nil {
			logger.Fatal("Job server failed", zap.Error(err))
		}
	}()
	defer jobServer.Stop()

	// WebSocket hub
	hub := ws.NewHub(logger)
	go hub.Run()
	bus.SetWSHub(hub)

	// Media store and report compositor
	media, err := storage.NewLocalMediaStore(cfg.MediaDir)
	if err != nil {
		logger.Fatal("Failed to initialize media store", zap.Error(err))
	}
	compositor := report.NewCompositor(media, 10*time.Second)

	// Core services
	catalog := service.NewStaticCatalog(cfg.ServiceIDs)
	requestSvc := service.NewRequestService(dbPool.Queries, catalog, bus)
	requestSvc.SetJournal(journal)
	if jobClient != nil {
		requestSvc.SetJobClient(service.NewAsynqJobClient(jobClient))
	}
	taskSvc := service.NewTaskService(dbPool.Queries, bus)
	reportSvc := service.NewReportService(dbPool.Queries, compositor)

	// HTTP router
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Timeout middleware - skip for WebSocket upgrades
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if req.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, req)
				return
			}
			middleware.Timeout(60 * time.Second)(next).ServeHTTP(w, req)
		})
	})

	r.Mount("/v1", api.Routes(api.Dependencies{
		Requests:  requestSvc,
		Tasks:     taskSvc,
		Reports:   reportSvc,
		Journal:   journal,
		Hub:       hub,
		Shapes:    schema.NewCompilerWithCache(64),
		Log:       logger,
		JWTSecret: cfg.JWTSecret,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: r,
	}

	logger.Info("Starting server", zap.String("addr", cfg.Addr))
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server stopped")
}
