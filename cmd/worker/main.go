package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/doctorconnect-api/internal/config"
	"github.com/jwalitptl/doctorconnect-api/internal/repository/postgres"
	"github.com/jwalitptl/doctorconnect-api/pkg/logger"
	"github.com/jwalitptl/doctorconnect-api/pkg/messaging"
	"github.com/jwalitptl/doctorconnect-api/pkg/messaging/redis"
	"github.com/jwalitptl/doctorconnect-api/pkg/metrics"
	"github.com/jwalitptl/doctorconnect-api/pkg/worker"
)

func main() {
	var healthAddr string

	rootCmd := &cobra.Command{
		Use:   "doctorconnect-worker",
		Short: "Publishes outbox events and purges delivered ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(healthAddr)
		},
	}
	rootCmd.Flags().StringVar(&healthAddr, "health-addr", ":8081", "address for health and metrics endpoints")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupHealthCheck(addr string, reg *prometheus.Registry, pingers map[string]func(context.Context) error, appLogger *logger.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		for name, ping := range pingers {
			if err := ping(ctx); err != nil {
				http.Error(w, name+" unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error(err, "health check server failed")
		}
	}()
	return srv
}

func run(healthAddr string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logCfg := cfg.Log.ToLoggerConfig()
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	appLogger := logger.NewLogger(&logCfg).With("worker").WithFields(map[string]interface{}{
		"worker_id": fmt.Sprintf("%s-%d", hostname, os.Getpid()),
	})
	log.Logger = appLogger.Zerolog()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	store := postgres.NewStore(db)

	pingers := map[string]func(context.Context) error{"database": store.Ping}

	var broker messaging.Broker
	if cfg.Redis.Enabled {
		rb, err := redis.NewRedisBroker(ctx, cfg.Redis.ToBrokerConfig(), appLogger.Zerolog())
		if err != nil {
			return fmt.Errorf("failed to create redis broker: %w", err)
		}
		pingers["redis"] = rb.Ping
		broker = rb
	} else {
		appLogger.Warn("redis disabled, events are published in-process only")
		broker = messaging.NewMemoryBroker()
	}
	defer broker.Close()

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg, "doctorconnect")

	processor, err := worker.NewOutboxProcessor(store, broker, cfg.Outbox.ToWorkerConfig(), appLogger, m)
	if err != nil {
		return err
	}
	cleanup := worker.NewOutboxCleanupWorker(store, cfg.Outbox.Retention, cfg.Outbox.CleanupInterval, appLogger)

	healthSrv := setupHealthCheck(healthAddr, reg, pingers, appLogger)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		processor.Start(ctx)
	}()
	go func() {
		defer wg.Done()
		cleanup.Start(ctx)
	}()

	<-ctx.Done()
	appLogger.Info("shutting down")
	wg.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return healthSrv.Shutdown(shutdownCtx)
}
