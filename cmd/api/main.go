package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/carehub-backend/api/routes"
	"github.com/angelmondragon/carehub-backend/internal/deposits"
	"github.com/angelmondragon/carehub-backend/internal/emergency"
	"github.com/angelmondragon/carehub-backend/internal/loans"
	"github.com/angelmondragon/carehub-backend/internal/notifications"
	"github.com/angelmondragon/carehub-backend/internal/referrals"
	"github.com/angelmondragon/carehub-backend/internal/sessions"
	"github.com/angelmondragon/carehub-backend/internal/stock"
	"github.com/angelmondragon/carehub-backend/internal/users"
	"github.com/angelmondragon/carehub-backend/internal/wallet"
	"github.com/angelmondragon/carehub-backend/pkg/config"
	"github.com/angelmondragon/carehub-backend/pkg/db"
	"github.com/angelmondragon/carehub-backend/pkg/env"
	"github.com/angelmondragon/carehub-backend/pkg/logger"
	"github.com/angelmondragon/carehub-backend/pkg/maps"
	"github.com/angelmondragon/carehub-backend/pkg/metrics"
	"github.com/angelmondragon/carehub-backend/pkg/migrate"
	"github.com/angelmondragon/carehub-backend/pkg/outbox"
	"github.com/angelmondragon/carehub-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/carehub-backend/pkg/redis"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	services, err := buildServices(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to wire services", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := env.Get("DYNO", env.WorkerID())
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Infra{
			DB:          dbClient,
			Redis:       redisClient,
			Idempotency: redisClient,
			HTTPMetrics: metrics.NewHTTPMetrics(prometheus.DefaultRegisterer),
			Metrics:     promhttp.Handler(),
		}, *services),
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-sigCtx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func buildServices(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (*routes.Services, error) {
	conn := dbClient.DB()
	usersRepo := users.NewRepository(conn)
	walletRepo := wallet.NewRepository(conn)
	emitter := outbox.NewService(outbox.NewRepository(conn), logg)

	ledger, err := wallet.NewLedger(wallet.LedgerParams{
		Repository:         walletRepo,
		DefaultEligibility: cfg.Ledger.DefaultLoanEligibility,
		Metrics:            metrics.NewLedgerMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return nil, err
	}

	walletService, err := wallet.NewService(walletRepo, ledger, dbClient, logg)
	if err != nil {
		return nil, err
	}

	loanService, err := loans.NewService(loans.ServiceParams{
		Repository: loans.NewRepository(conn),
		Ledger:     ledger,
		Tx:         dbClient,
		Outbox:     emitter,
		Policy: loans.Policy{
			DefaultEligibility: cfg.Ledger.DefaultLoanEligibility,
			InterestRate:       decimal.NewFromFloat(cfg.Ledger.LoanInterestRate),
			Term:               cfg.Ledger.LoanTerm(),
		},
		Logger: logg,
	})
	if err != nil {
		return nil, err
	}

	sessionService, err := sessions.NewService(sessions.ServiceParams{
		Repository: sessions.NewRepository(conn),
		Directory:  usersRepo,
		Ledger:     ledger,
		Tx:         dbClient,
		Outbox:     emitter,
		Logger:     logg,
	})
	if err != nil {
		return nil, err
	}

	stockService, err := stock.NewService(stock.NewRepository(conn), ledger, dbClient, emitter, logg)
	if err != nil {
		return nil, err
	}

	guard, err := idempotency.NewManager(redisClient, cfg.Deposits.IdempotencyTTL)
	if err != nil {
		return nil, err
	}
	depositService, err := deposits.NewService(deposits.NewRepository(conn), ledger, dbClient, emitter, guard, logg)
	if err != nil {
		return nil, err
	}

	referralService, err := referrals.NewService(referrals.ServiceParams{
		Users:  usersRepo,
		Ledger: ledger,
		Tx:     dbClient,
		Outbox: emitter,
		Bonus:  cfg.Ledger.ReferralBonus,
		Logger: logg,
	})
	if err != nil {
		return nil, err
	}

	var mapOpts []maps.Option
	if cfg.GoogleMaps.BaseURL != "" {
		mapOpts = append(mapOpts, maps.WithBaseURL(cfg.GoogleMaps.BaseURL))
	}
	geocoder, err := maps.NewClient(cfg.GoogleMaps.APIKey, mapOpts...)
	if err != nil {
		return nil, err
	}
	emergencyService, err := emergency.NewService(emergency.ServiceParams{
		Repository:  emergency.NewRepository(conn),
		Geocoder:    geocoder,
		Providers:   usersRepo,
		Ledger:      ledger,
		Tx:          dbClient,
		Outbox:      emitter,
		ServiceCost: cfg.Ledger.EmergencyServiceCost,
		Percentage:  cfg.Ledger.EmergencyPercentage,
		Logger:      logg,
	})
	if err != nil {
		return nil, err
	}

	notificationService, err := notifications.NewService(notifications.NewRepository(conn))
	if err != nil {
		return nil, err
	}

	return &routes.Services{
		Wallet:    walletService,
		Loans:     loanService,
		Sessions:  sessionService,
		Stock:     stockService,
		Deposits:  depositService,
		Referrals: referralService,
		Emergency: emergencyService,

		Notifications: notificationService,
	}, nil
}
