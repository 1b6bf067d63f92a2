package deposits

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/carehub-backend/internal/wallet"
	"github.com/angelmondragon/carehub-backend/pkg/db/models"
	"github.com/angelmondragon/carehub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carehub-backend/pkg/errors"
	"github.com/angelmondragon/carehub-backend/pkg/logger"
	"github.com/angelmondragon/carehub-backend/pkg/outbox"
	"github.com/angelmondragon/carehub-backend/pkg/outbox/payloads"
)

const (
	consumerName  = "deposits"
	statusSuccess = "success"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Guard is the Redis fast path in front of the durable reference table.
type Guard interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, ref string) (bool, error)
	Delete(ctx context.Context, consumer, ref string) error
}

// Deposit is a verified gateway notification.
type Deposit struct {
	Reference string
	UserID    uuid.UUID
	Amount    int64
	Status    string
}

// Result reports whether the deposit was applied or was a replay.
type Result struct {
	Duplicate    bool  `json:"duplicate"`
	BalanceAfter int64 `json:"balanceAfter,omitempty"`
}

type Service interface {
	Apply(ctx context.Context, deposit Deposit) (*Result, error)
}

type service struct {
	repo   Repository
	ledger wallet.Ledger
	tx     txRunner
	outbox outbox.Emitter
	guard  Guard
	logg   *logger.Logger
}

// NewService wires the deposit consumer. guard may be nil, in which case only
// the reference table deduplicates.
func NewService(repo Repository, ledger wallet.Ledger, tx txRunner, emitter outbox.Emitter, guard Guard, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("deposits repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, ledger: ledger, tx: tx, outbox: emitter, guard: guard, logg: logg}, nil
}

func (s *service) Apply(ctx context.Context, deposit Deposit) (*Result, error) {
	deposit.Reference = strings.TrimSpace(deposit.Reference)
	switch {
	case deposit.Reference == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference is required")
	case deposit.UserID == uuid.Nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	case deposit.Amount <= 0:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	case !strings.EqualFold(deposit.Status, statusSuccess):
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "deposit status %q is not successful", deposit.Status)
	}

	logCtx := s.logg.WithFields(s.logg.WithUserID(ctx, deposit.UserID.String()), map[string]any{
		"reference": deposit.Reference,
		"amount":    deposit.Amount,
	})

	if s.guard != nil {
		seen, err := s.guard.CheckAndMarkProcessed(ctx, consumerName, deposit.Reference)
		switch {
		case err != nil:
			s.logg.Warn(logCtx, "deposit guard unavailable, relying on reference table")
		case seen:
			s.logg.Info(logCtx, "deposit replay ignored")
			return &Result{Duplicate: true}, nil
		}
	}

	var balanceAfter int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Insert(ctx, &models.DepositReference{
			Reference:     deposit.Reference,
			UserID:        deposit.UserID,
			Amount:        deposit.Amount,
			GatewayStatus: deposit.Status,
		}); err != nil {
			return err
		}
		entry, err := s.ledger.WithTx(tx).Credit(ctx, deposit.UserID, wallet.Entry{
			Type:        enums.TransactionDeposit,
			Amount:      deposit.Amount,
			Description: "Wallet funded",
			Payload:     map[string]any{"reference": deposit.Reference},
		})
		if err != nil {
			return err
		}
		balanceAfter = entry.BalanceAfter
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDepositReceived,
			AggregateType: enums.AggregateWallet,
			AggregateID:   entry.WalletID,
			Actor:         &outbox.ActorRef{UserID: deposit.UserID},
			Data: payloads.DepositReceivedEvent{
				UserID:       deposit.UserID,
				Reference:    deposit.Reference,
				Amount:       deposit.Amount,
				BalanceAfter: entry.BalanceAfter,
			},
			OccurredAt: time.Now().UTC(),
		})
	})
	if errors.Is(err, ErrDuplicateReference) {
		s.logg.Info(logCtx, "deposit reference already applied")
		return &Result{Duplicate: true}, nil
	}
	if err != nil {
		if s.guard != nil {
			if delErr := s.guard.Delete(ctx, consumerName, deposit.Reference); delErr != nil {
				s.logg.Error(logCtx, "clear deposit guard", delErr)
			}
		}
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply deposit")
		}
		return nil, err
	}

	s.logg.Info(logCtx, "deposit applied")
	return &Result{BalanceAfter: balanceAfter}, nil
}
