package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/mealplan/internal/api"
	"example.com/mealplan/internal/auth"
	"example.com/mealplan/internal/config"
	"example.com/mealplan/internal/health"
	"example.com/mealplan/internal/outbox"
	persistence "example.com/mealplan/internal/persistence/postgres"
	"example.com/mealplan/internal/planner"
	"example.com/mealplan/internal/syncer"
	httptransport "example.com/mealplan/internal/transport/http"
)

func main() {
	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	repo := persistence.NewRepository(pool)
	queue := outbox.NewQueue(pool)
	provider := health.NewHTTPProviderClient(cfg.HealthAPIURL)

	state := syncer.NewStateHolder()
	orchestrator := syncer.NewOrchestrator(provider, repo, queue, state,
		syncer.WithLocation(cfg.Location()),
		syncer.WithDrainLimit(cfg.OutboxDrainSize),
	)
	if err := orchestrator.SeedState(ctx); err != nil {
		log.Printf("failed to seed sync state: %v", err)
	}

	if cfg.SyncInterval > 0 {
		go orchestrator.Start(ctx, cfg.SyncInterval, cfg.SyncDaysBack)
	}

	planService := planner.NewService(repo)

	handler := api.NewHandler(repo, planService, orchestrator, queue, provider, state)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	// Basic request logger
	logger := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Printf("%s %s", r.Method, r.URL.Path)
			next.ServeHTTP(w, r)
		})
	}

	authMiddleware := auth.NewMiddleware(
		auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer},
		func(r *http.Request) bool {
			return r.URL.Path == "/healthz" || r.URL.Path == "/metrics"
		},
	)

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, authMiddleware.Wrap(logger(mux)))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("mealplan listening on %s", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	if err := httptransport.Shutdown(server, 15*time.Second); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	if cfg.SyncInterval > 0 {
		orchestrator.Wait()
	}
}
