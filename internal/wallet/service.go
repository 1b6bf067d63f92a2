package wallet

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/carehub-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/carehub-backend/pkg/errors"
	"github.com/angelmondragon/carehub-backend/pkg/logger"
	"github.com/angelmondragon/carehub-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes the wallet operations reachable from the HTTP edge. Each
// call commits in its own transaction.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID) (*WalletDTO, error)
	Get(ctx context.Context, userID uuid.UUID) (*WalletDTO, error)
	Balance(ctx context.Context, userID uuid.UUID) (Balance, error)
	Transfer(ctx context.Context, fromUserID, toUserID uuid.UUID, amount int64, description string) (*TransferResultDTO, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, params pagination.Params) (*TransactionList, error)
}

type service struct {
	repo   Repository
	ledger Ledger
	tx     txRunner
	logg   *logger.Logger
}

// NewService wires the wallet service.
func NewService(repo Repository, ledger Ledger, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{repo: repo, ledger: ledger, tx: tx, logg: logg}, nil
}

func (s *service) Create(ctx context.Context, userID uuid.UUID) (*WalletDTO, error) {
	var out WalletDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		w, err := s.ledger.WithTx(tx).Create(ctx, userID)
		if err != nil {
			return err
		}
		out = toWalletDTO(w)
		return nil
	})
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithUserID(ctx, userID.String())
	s.logg.Info(s.logg.WithWalletID(logCtx, out.ID.String()), "wallet created")
	return &out, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*WalletDTO, error) {
	w, err := s.ledger.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	dto := toWalletDTO(w)
	return &dto, nil
}

func (s *service) Balance(ctx context.Context, userID uuid.UUID) (Balance, error) {
	return s.ledger.Balance(ctx, userID)
}

func (s *service) Transfer(ctx context.Context, fromUserID, toUserID uuid.UUID, amount int64, description string) (*TransferResultDTO, error) {
	var out TransferResultDTO
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		res, err := s.ledger.WithTx(tx).Transfer(ctx, TransferInput{
			FromUserID:  fromUserID,
			ToUserID:    toUserID,
			Amount:      amount,
			Description: description,
		})
		if err != nil {
			return err
		}
		out = TransferResultDTO{
			Amount:        amount,
			ToUserID:      toUserID,
			BalanceAfter:  res.Debit.BalanceAfter,
			TransactionID: res.Debit.ID,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *service) ListTransactions(ctx context.Context, userID uuid.UUID, params pagination.Params) (*TransactionList, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.ListTransactions(ctx, userID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wallet transactions")
	}

	rows, next := pagination.Page(rows, params.Limit, func(t models.WalletTransaction) pagination.Cursor {
		return pagination.Cursor{CreatedAt: t.CreatedAt, ID: t.ID}
	})
	out := &TransactionList{Transactions: make([]TransactionDTO, 0, len(rows))}
	if next != nil {
		out.NextCursor = pagination.EncodeCursor(*next)
	}
	for _, row := range rows {
		out.Transactions = append(out.Transactions, toTransactionDTO(row))
	}
	return out, nil
}
