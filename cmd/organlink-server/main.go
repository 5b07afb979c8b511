package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/organlink/organlink/internal/config"
	"github.com/organlink/organlink/internal/domain/donor"
	"github.com/organlink/organlink/internal/domain/hospital"
	"github.com/organlink/organlink/internal/domain/matching"
	"github.com/organlink/organlink/internal/domain/notification"
	"github.com/organlink/organlink/internal/domain/patient"
	"github.com/organlink/organlink/internal/platform/auth"
	"github.com/organlink/organlink/internal/platform/cache"
	"github.com/organlink/organlink/internal/platform/db"
	"github.com/organlink/organlink/internal/platform/ipfs"
	"github.com/organlink/organlink/internal/platform/ledger"
	"github.com/organlink/organlink/internal/platform/middleware"
	"github.com/organlink/organlink/internal/platform/ocr"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "organlink-server",
		Short: "Organ donation coordination API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the portal API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
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
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Redis cache. A nil client is fine: lookups miss and writes are no-ops.
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, running without cache")
		cacheClient = nil
	} else if cacheClient != nil {
		defer cacheClient.Close()
		logger.Info().Msg("connected to redis")
	}

	// Token issuer for hospital sessions
	issuer := auth.NewTokenIssuer([]byte(cfg.JWTSecret), time.Duration(cfg.JWTTTLHours)*time.Hour)

	// Signature pinning, OCR and ledger providers. Each falls back to a local
	// implementation when the external service is not configured.
	var pinner ipfs.Pinner = ipfs.NopPinner{}
	if cfg.PinataJWT != "" {
		pinner = ipfs.NewPinataPinner(cfg.PinataJWT)
		logger.Info().Msg("pinata pinning enabled")
	}

	var verifier ocr.SignatureVerifier = ocr.ManualVerifier{}

	var registrar ledger.Registrar = ledger.NewLogRegistrar(logger)
	if cfg.LedgerRPCURL != "" {
		registrar = ledger.NewHTTPRegistrar(cfg.LedgerRPCURL, cfg.LedgerContract, logger)
		logger.Info().Str("url", cfg.LedgerRPCURL).Msg("ledger relay enabled")
	}

	// Domain services
	hospitalSvc := hospital.NewService(hospital.NewRepoPG(pool), issuer)
	notificationSvc := notification.NewService(notification.NewRepoPG(pool), cacheClient)
	patientSvc := patient.NewService(patient.NewRepoPG(pool), pinner, verifier, registrar, logger)
	donorSvc := donor.NewService(donor.NewRepoPG(pool), pinner, verifier, registrar, logger)
	matchingSvc := matching.NewService(
		matching.NewRepoPG(pool),
		&donorSourceAdapter{svc: donorSvc},
		patientSvc,
		notificationSvc,
		matching.NewScorer(nil),
		logger,
	)

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.Audit(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.SanitizeWithLogger(logger))
	e.Use(middleware.BodyLimit("1M", "10M"))
	e.Use(middleware.RequestTimeout(30 * time.Second))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// API groups: public carries login and the location directory, everything
	// else requires a hospital token.
	public := e.Group("/api/v1")
	apiV1 := e.Group("/api/v1")
	apiV1.Use(auth.Middleware(issuer))

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	public.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(middleware.RateLimit(rateLimitCfg))

	// Routes
	hospital.NewHandler(hospitalSvc).RegisterRoutes(public, apiV1)
	patient.NewHandler(patientSvc).RegisterRoutes(apiV1)
	donor.NewHandler(donorSvc).RegisterRoutes(apiV1)
	matching.NewHandler(matchingSvc).RegisterRoutes(apiV1)
	notification.NewHandler(notificationSvc).RegisterRoutes(apiV1)

	// Health checks
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// donorSourceAdapter exposes the donor registry to the matching engine as a
// slim candidate projection.
type donorSourceAdapter struct {
	svc *donor.Service
}

func (a *donorSourceAdapter) FindCandidates(ctx context.Context, organType string, bloodTypes []string, excludeHospitalID string) ([]matching.Donor, error) {
	donors, err := a.svc.FindCandidates(ctx, organType, bloodTypes, excludeHospitalID)
	if err != nil {
		return nil, err
	}
	out := make([]matching.Donor, 0, len(donors))
	for _, d := range donors {
		out = append(out, matching.Donor{
			DonorID:      d.DonorID,
			FullName:     d.FullName,
			BloodType:    d.BloodType,
			Organs:       d.OrgansToDonate,
			HospitalID:   d.HospitalID,
			HospitalName: d.HospitalName,
			RegisteredAt: d.CreatedAt,
		})
	}
	return out, nil
}

func (a *donorSourceAdapter) OwnedBy(ctx context.Context, donorID, hospitalID string) (bool, error) {
	return a.svc.OwnedBy(ctx, donorID, hospitalID)
}
