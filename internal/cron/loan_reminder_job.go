package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/carehub-backend/internal/loans"
	"github.com/angelmondragon/carehub-backend/pkg/db/models"
	"github.com/angelmondragon/carehub-backend/pkg/enums"
	"github.com/angelmondragon/carehub-backend/pkg/logger"
	"github.com/angelmondragon/carehub-backend/pkg/outbox"
	"github.com/angelmondragon/carehub-backend/pkg/outbox/payloads"
)

const (
	defaultReminderWindow = 72 * time.Hour
	reminderBatchSize     = 200
)

// LoanReminderJobParams configure the due-date reminder scan.
type LoanReminderJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository loans.Repository
	Outbox     reminderEmitter
	Window     time.Duration
}

type reminderEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// NewLoanReminderJob builds the job that queues loan_due_reminder events for
// approved loans entering the reminder window.
func NewLoanReminderJob(params LoanReminderJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("loans repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	window := params.Window
	if window <= 0 {
		window = defaultReminderWindow
	}
	return &loanReminderJob{
		logg:   params.Logger,
		db:     params.DB,
		repo:   params.Repository,
		outbox: params.Outbox,
		window: window,
		now:    time.Now,
	}, nil
}

type loanReminderJob struct {
	logg   *logger.Logger
	db     txRunner
	repo   loans.Repository
	outbox reminderEmitter
	window time.Duration
	now    func() time.Time
}

func (j *loanReminderJob) Name() string { return "loan-reminder" }

func (j *loanReminderJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	due, err := j.repo.DueSoon(ctx, now.Add(j.window), reminderBatchSize)
	if err != nil {
		return fmt.Errorf("query loans due soon: %w", err)
	}
	var errs []error
	sent := 0
	for _, loan := range due {
		if err := j.remind(ctx, loan, now); err != nil {
			errs = append(errs, fmt.Errorf("remind loan %s: %w", loan.ID, err))
			continue
		}
		sent++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{"due": len(due), "reminded": sent})
	j.logg.Info(logCtx, "loan reminder loop complete")
	return multierr.Combine(errs...)
}

func (j *loanReminderJob) remind(ctx context.Context, loan models.Loan, now time.Time) error {
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := j.repo.WithTx(tx)
		repaid, err := repo.SumRepayments(ctx, loan.ID)
		if err != nil {
			return err
		}
		remaining := loan.TotalRepayableAmount - repaid
		if remaining < 0 {
			remaining = 0
		}
		if err := j.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLoanDueReminder,
			AggregateType: enums.AggregateLoan,
			AggregateID:   loan.ID,
			Data: payloads.LoanDueReminderEvent{
				LoanID:           loan.ID,
				UserID:           loan.UserID,
				RemainingBalance: remaining,
				DueDate:          loan.DueDate.UTC(),
			},
			OccurredAt: now,
		}); err != nil {
			return err
		}
		return repo.MarkReminded(ctx, loan.ID, now)
	})
}
