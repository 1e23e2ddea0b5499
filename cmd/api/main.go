package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/doctorconnect-api/internal/config"
	appointmentHandler "github.com/jwalitptl/doctorconnect-api/internal/handler/appointment"
	doctorHandler "github.com/jwalitptl/doctorconnect-api/internal/handler/doctor"
	"github.com/jwalitptl/doctorconnect-api/internal/handler/health"
	promHandler "github.com/jwalitptl/doctorconnect-api/internal/handler/prometheus"
	reviewHandler "github.com/jwalitptl/doctorconnect-api/internal/handler/review"
	"github.com/jwalitptl/doctorconnect-api/internal/middleware"
	"github.com/jwalitptl/doctorconnect-api/internal/model"
	"github.com/jwalitptl/doctorconnect-api/internal/repository/postgres"
	"github.com/jwalitptl/doctorconnect-api/internal/router"
	appointmentService "github.com/jwalitptl/doctorconnect-api/internal/service/appointment"
	eventService "github.com/jwalitptl/doctorconnect-api/internal/service/event"
	"github.com/jwalitptl/doctorconnect-api/internal/service/identity"
	ratingService "github.com/jwalitptl/doctorconnect-api/internal/service/rating"
	reviewService "github.com/jwalitptl/doctorconnect-api/internal/service/review"
	"github.com/jwalitptl/doctorconnect-api/pkg/auth"
	"github.com/jwalitptl/doctorconnect-api/pkg/logger"
	"github.com/jwalitptl/doctorconnect-api/pkg/metrics"
	"github.com/jwalitptl/doctorconnect-api/pkg/validator"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "doctorconnect",
		Short: "DoctorConnect appointments and reviews API",
	}
	rootCmd.AddCommand(serveCmd(), migrateCmd(), tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup() (*config.Config, *logger.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	logCfg := cfg.Log.ToLoggerConfig()
	appLogger := logger.NewLogger(&logCfg)
	log.Logger = appLogger.Zerolog()
	return cfg, appLogger, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, appLogger, err := setup()
			if err != nil {
				return err
			}
			return runServer(cfg, appLogger)
		},
	}
}

func runServer(cfg *config.Config, appLogger *logger.Logger) error {
	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	store := postgres.NewStore(db)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewMetrics(reg, "doctorconnect")

	// Initialize services
	resolver := identity.NewCachedResolver(
		identity.NewResolver(store.Users()),
		cfg.IdentityCache.TTL,
		cfg.IdentityCache.CleanupInterval,
	)
	events := eventService.NewEventService(appLogger)
	ratings := ratingService.NewService(store, resolver, events, m, appLogger)
	appointments := appointmentService.NewService(store, resolver, events, m, appLogger)
	reviews := reviewService.NewService(store, ratings, resolver, events, m, appLogger)

	// Initialize handlers
	v := validator.New()
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL)

	routerCfg := router.RouterConfig{
		RequestTimeout: cfg.Server.RequestTimeout,
		MaxBodyBytes:   cfg.Server.MaxBodyBytes,
	}
	if cfg.RateLimit.Enabled {
		routerCfg.RateLimit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
		routerCfg.RateBurst = cfg.RateLimit.Burst
	}

	gin.SetMode(gin.ReleaseMode)
	r := router.NewRouter(middleware.NewAuthMiddleware(jwtService), router.Handlers{
		Appointments: appointmentHandler.NewHandler(appointments, v),
		Reviews:      reviewHandler.NewHandler(reviews, v),
		Doctors:      doctorHandler.NewHandler(ratings),
		Health:       health.NewHandler(map[string]health.Pinger{"database": store}),
		Metrics:      promHandler.New(reg, m),
	}, routerCfg)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		appLogger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	}
	appLogger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	appLogger.Info("server exited properly")
	return nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, appLogger, err := setup()
			if err != nil {
				return err
			}
			db, err := postgres.NewDB(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := postgres.NewMigrator(db).Up(cmd.Context())
			if err != nil {
				return err
			}
			appLogger.Info("migrations applied", "count", n)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup()
			if err != nil {
				return err
			}
			db, err := postgres.NewDB(cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			statuses, err := postgres.NewMigrator(db).Status(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, s := range statuses {
				state := "pending"
				if s.Applied {
					state = "applied " + s.AppliedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(out, "%03d  %-30s %s\n", s.Version, s.Name, state)
			}
			return nil
		},
	}

	cmd.AddCommand(upCmd, statusCmd)
	return cmd
}

// tokenCmd mints a bearer token for local testing; production tokens come
// from the identity provider.
func tokenCmd() *cobra.Command {
	var (
		subject string
		role    string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := setup()
			if err != nil {
				return err
			}
			id, err := uuid.Parse(subject)
			if err != nil {
				return fmt.Errorf("invalid --sub: %w", err)
			}
			principal := model.Principal{ID: id, Role: model.Role(role)}
			if !principal.Role.Valid() {
				return fmt.Errorf("invalid --role %q", role)
			}

			tok, err := auth.NewToken([]byte(cfg.JWT.Secret), cfg.JWT.Issuer, principal, cfg.JWT.TTL)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "sub", "", "user id")
	cmd.Flags().StringVar(&role, "role", string(model.RolePatient), "PATIENT or DOCTOR")
	_ = cmd.MarkFlagRequired("sub")
	return cmd
}
