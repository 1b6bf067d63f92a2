package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/carehub-backend/internal/notifications"
	"github.com/angelmondragon/carehub-backend/pkg/config"
	"github.com/angelmondragon/carehub-backend/pkg/db"
	"github.com/angelmondragon/carehub-backend/pkg/env"
	"github.com/angelmondragon/carehub-backend/pkg/logger"
	"github.com/angelmondragon/carehub-backend/pkg/metrics"
	"github.com/angelmondragon/carehub-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/carehub-backend/pkg/pubsub"
	"github.com/angelmondragon/carehub-backend/pkg/redis"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: "notifications-worker"})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		ServiceName: "notifications-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "failed to close database", err)
		}
	}()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "failed to close redis client", err)
		}
	}()

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	requireResource(ctx, logg, "pubsub", err)
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(ctx, "failed to close pubsub client", err)
		}
	}()

	names := []string{cfg.PubSub.LedgerSubscription, cfg.PubSub.AlertsSubscription, cfg.PubSub.NotifySubscription}
	requireResource(ctx, logg, "subscriptions", pubsubClient.EnsureSubscriptions(ctx, names...))

	manager, err := idempotency.NewManager(redisClient, cfg.Outbox.ConsumerIdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	repo := notifications.NewRepository(dbClient.DB())
	consumers := make([]*notifications.Consumer, 0, len(names))
	for _, name := range names {
		subscription := pubsubClient.Subscription(name)
		if subscription == nil {
			requireResource(ctx, logg, "subscription "+name, errors.New("subscription not configured"))
		}
		consumer, err := notifications.NewConsumer(repo, subscription, manager, logg)
		requireResource(ctx, logg, "consumer "+name, err)
		consumers = append(consumers, consumer)
	}

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{"env": cfg.App.Env, "worker": env.WorkerID()})
	logg.Info(runCtx, "notifications worker ready")

	group, groupCtx := errgroup.WithContext(runCtx)
	for _, consumer := range consumers {
		group.Go(func() error {
			return consumer.Run(groupCtx)
		})
	}
	group.Go(func() error {
		return metrics.Serve(groupCtx, cfg.App.MetricsAddr, prometheus.DefaultGatherer, logg)
	})
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "notifications worker failed", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "notifications worker stopped")
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
