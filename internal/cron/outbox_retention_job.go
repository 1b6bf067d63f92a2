package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/carehub-backend/pkg/logger"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultDLQRetention    = 90 * 24 * time.Hour
	retentionBatchSize     = 500
)

// OutboxRetentionJobParams configure the outbox cleanup.
type OutboxRetentionJobParams struct {
	Logger       *logger.Logger
	DB           txRunner
	Outbox       publishedPurger
	DeadLetters  deadLetterPurger
	Retention    time.Duration
	DLQRetention time.Duration
}

type publishedPurger interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) (int64, error)
}

type deadLetterPurger interface {
	DeleteFailedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// NewOutboxRetentionJob builds the job that drops relayed outbox rows older
// than Retention and dead letters older than DLQRetention.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	case params.DB == nil:
		return nil, fmt.Errorf("db runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:         params.Logger,
		db:           params.DB,
		outbox:       params.Outbox,
		dlq:          params.DeadLetters,
		retention:    params.Retention,
		dlqRetention: params.DLQRetention,
		batch:        retentionBatchSize,
		now:          time.Now,
	}
	if job.retention <= 0 {
		job.retention = defaultOutboxRetention
	}
	if job.dlqRetention <= 0 {
		job.dlqRetention = defaultDLQRetention
	}
	return job, nil
}

type outboxRetentionJob struct {
	logg         *logger.Logger
	db           txRunner
	outbox       publishedPurger
	dlq          deadLetterPurger
	retention    time.Duration
	dlqRetention time.Duration
	batch        int
	now          func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

// Run deletes in batches, one transaction each, so the relay's row locks are
// never held behind one long delete.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	cutoff := now.Add(-j.retention)

	var published int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		var n int64
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			n, err = j.outbox.DeletePublishedBefore(ctx, tx, cutoff, j.batch)
			return err
		})
		if err != nil {
			return fmt.Errorf("purge published outbox rows: %w", err)
		}
		published += n
		if n < int64(j.batch) {
			break
		}
	}

	var deadLetters int64
	if j.dlq != nil {
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			var err error
			deadLetters, err = j.dlq.DeleteFailedBefore(ctx, tx, now.Add(-j.dlqRetention))
			return err
		})
		if err != nil {
			return fmt.Errorf("purge dead letters: %w", err)
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":        cutoff,
		"published":     published,
		"dead_letters":  deadLetters,
		"dlq_retention": j.dlqRetention.String(),
	}), "outbox retention cleanup complete")
	return nil
}
