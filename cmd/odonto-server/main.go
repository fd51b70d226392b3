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

	"github.com/odonto/odonto/internal/config"
	"github.com/odonto/odonto/internal/domain/catalog"
	"github.com/odonto/odonto/internal/domain/patient"
	"github.com/odonto/odonto/internal/domain/payment"
	"github.com/odonto/odonto/internal/domain/pricing"
	"github.com/odonto/odonto/internal/domain/treatment"
	"github.com/odonto/odonto/internal/platform/auth"
	"github.com/odonto/odonto/internal/platform/db"
	"github.com/odonto/odonto/internal/platform/fx"
	"github.com/odonto/odonto/internal/platform/httpjson"
	"github.com/odonto/odonto/internal/platform/middleware"
	"github.com/odonto/odonto/migrations"
)

const version = "0.1.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "odonto-server",
		Short: "Dental clinic billing API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(promotionsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the billing API server",
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
			schema, _ := cmd.Flags().GetString("schema")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if schema == "" {
				schema = cfg.DBSchema
			}
			if !db.ValidSchema(schema) {
				return fmt.Errorf("invalid schema name %q", schema)
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, poolOptions(cfg))
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, migrations.FS, schema)
			fmt.Printf("Running migrations on schema: %s\n", schema)

			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", "", "Target schema (defaults to DB_SCHEMA)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if schema == "" {
				schema = cfg.DBSchema
			}
			if !db.ValidSchema(schema) {
				return fmt.Errorf("invalid schema name %q", schema)
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, poolOptions(cfg))
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, migrations.FS, schema)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
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
	statusCmd.Flags().String("schema", "", "Target schema (defaults to DB_SCHEMA)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func promotionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "promotions",
		Short: "Promotion maintenance",
	}

	backfillCmd := &cobra.Command{
		Use:   "backfill-group-flag",
		Short: "Classify promotions that have no explicit group flag",
		RunE: func(cmd *cobra.Command, args []string) error {
			dryRun, _ := cmd.Flags().GetBool("dry-run")
			logger := newLogger(os.Getenv("ENV"))

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, poolOptions(cfg))
			if err != nil {
				return err
			}
			defer pool.Close()

			res, err := catalog.BackfillGroupFlags(ctx, catalog.NewPromotionRepoPG(pool), dryRun, logger)
			if err != nil {
				return fmt.Errorf("backfill failed: %w", err)
			}

			verb := "Updated"
			if dryRun {
				verb = "Would update"
			}
			fmt.Printf("%s %d promotion(s): %d group, %d individual.\n", verb, res.Scanned, res.Group, res.Individual)
			return nil
		},
	}
	backfillCmd.Flags().Bool("dry-run", false, "Report the classification without writing it")
	cmd.AddCommand(backfillCmd)

	return cmd
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// pricingRates maps the policy file's age section onto the calculator.
func pricingRates(p *config.PricingPolicy) pricing.Rates {
	return pricing.Rates{
		SeniorAge:  p.AgeDiscounts.SeniorAge,
		ElderAge:   p.AgeDiscounts.ElderAge,
		MinorAge:   p.AgeDiscounts.MinorAge,
		SeniorRate: p.AgeDiscounts.SeniorRate,
		ElderRate:  p.AgeDiscounts.ElderRate,
	}
}

func historicalPolicy(p *config.PricingPolicy) (pricing.StaticPolicy, error) {
	if !p.Historical.Enabled {
		return pricing.StaticPolicy{}, nil
	}
	cutoff, err := p.HistoricalCutoff()
	if err != nil {
		return pricing.StaticPolicy{}, err
	}
	return pricing.StaticPolicy{Cutoff: cutoff, Enabled: true}, nil
}

func fallbackPair(p *config.PricingPolicy) fx.FallbackPair {
	return fx.FallbackPair{
		Base:  p.Currency.FallbackBase,
		Quote: p.Currency.FallbackTo,
		Rate:  p.Currency.FallbackRate,
	}
}

func poolOptions(cfg *config.Config) db.PoolOptions {
	return db.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
		Schema:   cfg.DBSchema,
		AppName:  "odonto-server",
	}
}

func rateLimitConfig(cfg *config.Config) middleware.RateLimitConfig {
	rl := middleware.DefaultRateLimitConfig()
	if cfg.RateLimitRPS > 0 {
		rl.RequestsPerSecond = cfg.RateLimitRPS
	}
	if cfg.RateLimitBurst > 0 {
		rl.BurstSize = cfg.RateLimitBurst
	}
	return rl
}

func runServer() error {
	logger := newLogger(os.Getenv("ENV"))

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	policy, err := config.LoadPricingPolicy(cfg.PricingPolicyFile)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load pricing policy")
	}
	historical, err := historicalPolicy(policy)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid historical policy")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, poolOptions(cfg))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.JSONSerializer = httpjson.Serializer{}

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Health checks stay outside auth
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	})
	e.GET("/health/db", db.HealthHandler(pool, pool))

	apiV1 := e.Group("/api/v1")
	if cfg.IsDev() {
		apiV1.Use(auth.DevAuthMiddleware())
		logger.Warn().Msg("development auth enabled: requests are not authenticated")
	} else {
		apiV1.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	}
	apiV1.Use(middleware.RateLimit(rateLimitConfig(cfg)))
	if cfg.RequestTimeout > 0 {
		apiV1.Use(middleware.RequestTimeout(cfg.RequestTimeout))
	}

	// Currency conversion
	rateProvider := fx.NewHTTPRateProvider(cfg.ExchangeRateURL, cfg.ExchangeRateTimeout, cfg.ExchangeRateCacheTTL)
	converter := fx.NewConverter(rateProvider, fallbackPair(policy), logger)

	txRunner := db.NewTxRunner(pool)

	// Catalog and patients
	itemRepo := catalog.NewItemRepoPG(pool)
	promotionRepo := catalog.NewPromotionRepoPG(pool)
	patientRepo := patient.NewRepoPG(pool)

	// Treatments
	treatmentRepo := treatment.NewRepoPG(pool)
	treatmentSvc := treatment.NewService(treatmentRepo, txRunner, itemRepo, promotionRepo, patientRepo,
		historical, treatment.Settings{
			Rates:           pricingRates(policy),
			DefaultCurrency: policy.Currency.Default,
		}, logger)
	treatment.NewHandler(treatmentSvc).RegisterRoutes(apiV1)

	// Payments
	paymentRepo := payment.NewRepoPG(pool)
	paymentSvc := payment.NewService(paymentRepo, txRunner, converter, payment.Options{
		AllowOverpayment: cfg.AllowOverpayment,
	}, logger)
	payment.NewHandler(paymentSvc).RegisterRoutes(apiV1)

	logger.Info().
		Bool("historical_enabled", historical.Enabled).
		Str("default_currency", policy.Currency.Default).
		Msg("billing services ready")

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
