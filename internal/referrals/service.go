package referrals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/carehub-backend/internal/users"
	"github.com/angelmondragon/carehub-backend/internal/wallet"
	"github.com/angelmondragon/carehub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carehub-backend/pkg/errors"
	"github.com/angelmondragon/carehub-backend/pkg/logger"
	"github.com/angelmondragon/carehub-backend/pkg/outbox"
	"github.com/angelmondragon/carehub-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SignupInput is pushed by the identity service once an account is created.
type SignupInput struct {
	UserID       uuid.UUID      `json:"userId" validate:"required"`
	Username     string         `json:"username" validate:"required"`
	Role         enums.UserRole `json:"role" validate:"required"`
	ReferralCode string         `json:"referralCode"`
	IsOnline     bool           `json:"isOnline"`
	Specialties  []uuid.UUID    `json:"specialties"`
	Latitude     *float64       `json:"latitude"`
	Longitude    *float64       `json:"longitude"`
}

// SignupResult reports the wallet opened for the user and any bonus paid.
type SignupResult struct {
	UserID     uuid.UUID  `json:"userId"`
	WalletID   uuid.UUID  `json:"walletId"`
	ReferrerID *uuid.UUID `json:"referrerId,omitempty"`
	BonusPaid  int64      `json:"bonusPaid"`
}

type Service interface {
	ApplySignup(ctx context.Context, input SignupInput) (*SignupResult, error)
}

type ServiceParams struct {
	Users  *users.Repository
	Ledger wallet.Ledger
	Tx     txRunner
	Outbox outbox.Emitter
	Bonus  int64
	Logger *logger.Logger
}

type service struct {
	users  *users.Repository
	ledger wallet.Ledger
	tx     txRunner
	outbox outbox.Emitter
	bonus  int64
	logg   *logger.Logger
}

func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.Users == nil:
		return nil, fmt.Errorf("users repository required")
	case params.Ledger == nil:
		return nil, fmt.Errorf("ledger required")
	case params.Tx == nil:
		return nil, fmt.Errorf("transaction runner required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case params.Bonus < 0:
		return nil, fmt.Errorf("referral bonus must be non-negative")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		users:  params.Users,
		ledger: params.Ledger,
		tx:     params.Tx,
		outbox: params.Outbox,
		bonus:  params.Bonus,
		logg:   logg,
	}, nil
}

// ApplySignup mirrors the user, opens their wallet and pays the referrer.
// A replayed signup refreshes the mirror but never pays a second bonus.
func (s *service) ApplySignup(ctx context.Context, input SignupInput) (*SignupResult, error) {
	input.Username = strings.TrimSpace(input.Username)
	switch {
	case input.UserID == uuid.Nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	case input.Username == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username is required")
	case !input.Role.IsValid():
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid role %q", input.Role)
	}
	code := strings.TrimSpace(input.ReferralCode)
	logCtx := s.logg.WithUserID(ctx, input.UserID.String())

	result := &SignupResult{UserID: input.UserID}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		usersRepo := s.users.WithTx(tx)
		ledger := s.ledger.WithTx(tx)

		_, err := usersRepo.FindByID(ctx, input.UserID)
		isNew := errors.Is(err, gorm.ErrRecordNotFound)
		if err != nil && !isNew {
			return err
		}
		if _, err := usersRepo.Upsert(ctx, users.UpsertUserDTO{
			ID:          input.UserID,
			Username:    input.Username,
			Role:        input.Role,
			IsOnline:    input.IsOnline,
			Specialties: input.Specialties,
			Latitude:    input.Latitude,
			Longitude:   input.Longitude,
		}); err != nil {
			return err
		}
		w, err := ledger.Ensure(ctx, input.UserID)
		if err != nil {
			return err
		}
		result.WalletID = w.ID

		if !isNew || code == "" {
			return nil
		}
		referrer, err := usersRepo.FindByUsername(ctx, code)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logg.Warn(s.logg.WithField(logCtx, "referral_code", code), "referral code not found")
			return nil
		}
		if err != nil {
			return err
		}
		if referrer.ID == input.UserID {
			s.logg.Warn(logCtx, "self referral ignored")
			return nil
		}

		var walletID uuid.UUID
		if s.bonus > 0 {
			entry, err := ledger.Credit(ctx, referrer.ID, wallet.Entry{
				Type:        enums.TransactionReferralBonus,
				Amount:      s.bonus,
				Description: "Referral bonus",
				Payload:     map[string]any{"referredUserId": input.UserID.String()},
			})
			if err != nil {
				return err
			}
			walletID = entry.WalletID
		} else {
			rw, err := ledger.Ensure(ctx, referrer.ID)
			if err != nil {
				return err
			}
			walletID = rw.ID
		}
		if err := usersRepo.IncrementReferralCount(ctx, referrer.ID); err != nil {
			return err
		}
		referrerID := referrer.ID
		result.ReferrerID = &referrerID
		result.BonusPaid = s.bonus

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventReferralBonusPaid,
			AggregateType: enums.AggregateWallet,
			AggregateID:   walletID,
			Actor:         &outbox.ActorRef{UserID: input.UserID, Role: string(input.Role)},
			Data: payloads.ReferralBonusPaidEvent{
				ReferrerID: referrer.ID,
				ReferredID: input.UserID,
				Amount:     s.bonus,
			},
			OccurredAt: time.Now().UTC(),
		})
	})
	if err != nil {
		return nil, wrapStorage(err, "apply signup")
	}
	if result.ReferrerID != nil {
		s.logg.Info(s.logg.WithField(logCtx, "referrer_id", result.ReferrerID.String()), "referral bonus paid")
	}
	return result, nil
}

func wrapStorage(err error, action string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
