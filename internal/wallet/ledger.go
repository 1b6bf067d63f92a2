package wallet

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/carehub-backend/pkg/db"
	"github.com/angelmondragon/carehub-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/carehub-backend/pkg/db/types"
	"github.com/angelmondragon/carehub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carehub-backend/pkg/errors"
	"github.com/angelmondragon/carehub-backend/pkg/metrics"
)

const (
	msgWalletNotFound    = "Wallet not found."
	msgInsufficientFunds = "Insufficient wallet balance."
	msgNotEligible       = "Requested amount exceeds eligibility."
)

// Entry describes one activity log line. Amount is the magnitude in minor units.
type Entry struct {
	Type        enums.TransactionType
	Amount      int64
	Description string
	Payload     map[string]any
}

// TransferInput moves Amount from one wallet to another. Zero-value types
// default to consultation_payment on the source and consultation_fee on the
// destination.
type TransferInput struct {
	FromUserID  uuid.UUID
	ToUserID    uuid.UUID
	Amount      int64
	DebitType   enums.TransactionType
	CreditType  enums.TransactionType
	Description string
	Payload     map[string]any
}

// TransferResult carries both log entries written by a transfer.
type TransferResult struct {
	Debit  *models.WalletTransaction
	Credit *models.WalletTransaction
}

// Balance is the spendable balance plus outstanding loan debt.
type Balance struct {
	Balance     int64 `json:"balance"`
	LoanBalance int64 `json:"loanBalance"`
}

// Ledger is the only code path that mutates wallets. Bind it to a transaction
// with WithTx when a flow touches more than one record.
type Ledger interface {
	WithTx(tx *gorm.DB) Ledger
	Ensure(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	Create(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	Get(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	Lock(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	Credit(ctx context.Context, userID uuid.UUID, entry Entry) (*models.WalletTransaction, error)
	Debit(ctx context.Context, userID uuid.UUID, entry Entry) (*models.WalletTransaction, error)
	Transfer(ctx context.Context, input TransferInput) (*TransferResult, error)
	AppendTransaction(ctx context.Context, userID uuid.UUID, entry Entry) (*models.WalletTransaction, error)
	ReduceLoanEligibility(ctx context.Context, userID uuid.UUID, amount int64) error
	SetLoanEligibility(ctx context.Context, userID uuid.UUID, value int64) error
	IncreaseLoanBalance(ctx context.Context, userID uuid.UUID, amount int64) error
	ReduceLoanBalance(ctx context.Context, userID uuid.UUID, amount int64) error
	Balance(ctx context.Context, userID uuid.UUID) (Balance, error)
}

type ledger struct {
	repo               Repository
	defaultEligibility int64
	metrics            *metrics.LedgerMetrics
	now                func() time.Time
}

// LedgerParams configures NewLedger.
type LedgerParams struct {
	Repository         Repository
	DefaultEligibility int64
	Metrics            *metrics.LedgerMetrics
}

// NewLedger builds a ledger over the wallet repository.
func NewLedger(params LedgerParams) (Ledger, error) {
	if params.Repository == nil {
		return nil, errors.New("wallet repository required")
	}
	if params.DefaultEligibility < 0 {
		return nil, errors.New("default loan eligibility must be non-negative")
	}
	return &ledger{
		repo:               params.Repository,
		defaultEligibility: params.DefaultEligibility,
		metrics:            params.Metrics,
		now:                time.Now,
	}, nil
}

func (l *ledger) WithTx(tx *gorm.DB) Ledger {
	if tx == nil {
		return l
	}
	clone := *l
	clone.repo = l.repo.WithTx(tx)
	return &clone
}

func (l *ledger) newWallet(userID uuid.UUID) *models.Wallet {
	return &models.Wallet{
		UserID:          userID,
		Balance:         0,
		LoanEligibility: l.defaultEligibility,
		LoanBalance:     0,
	}
}

// Ensure returns the user's wallet, creating it with the default policy when
// missing. A concurrent creator winning the insert is treated as success.
func (l *ledger) Ensure(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	wallet, err := l.repo.FindByUserID(ctx, userID)
	if err == nil {
		return wallet, nil
	}
	if !db.IsNotFound(err) {
		return nil, wrapStorage(err, "load wallet")
	}
	if err := l.repo.CreateIfMissing(ctx, l.newWallet(userID)); err != nil {
		return nil, wrapStorage(err, "create wallet")
	}
	return l.Get(ctx, userID)
}

// Create inserts a wallet and fails with Conflict when one already exists.
func (l *ledger) Create(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	wallet := l.newWallet(userID)
	err := l.repo.Create(ctx, wallet)
	l.observe("create", 0, err)
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeConflict) {
			return nil, err
		}
		return nil, wrapStorage(err, "create wallet")
	}
	return wallet, nil
}

func (l *ledger) Get(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet, err := l.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, mapLookup(err)
	}
	return wallet, nil
}

// Lock reads the wallet and holds its row lock until the surrounding
// transaction ends.
func (l *ledger) Lock(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet, err := l.repo.LockByUserID(ctx, userID)
	if err != nil {
		return nil, mapLookup(err)
	}
	return wallet, nil
}

// Credit increases the balance, creating the wallet on first credit.
func (l *ledger) Credit(ctx context.Context, userID uuid.UUID, entry Entry) (*models.WalletTransaction, error) {
	tx, err := l.credit(ctx, userID, entry)
	l.observe("credit", entry.Amount, err)
	return tx, err
}

func (l *ledger) credit(ctx context.Context, userID uuid.UUID, entry Entry) (*models.WalletTransaction, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}
	wallet, err := l.Ensure(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := l.repo.CreditBalance(ctx, userID, entry.Amount); err != nil {
		return nil, wrapStorage(err, "credit wallet")
	}
	return l.appendAfter(ctx, wallet.ID, userID, enums.DirectionCredit, entry)
}

// Debit decreases the balance only if it covers the amount.
func (l *ledger) Debit(ctx context.Context, userID uuid.UUID, entry Entry) (*models.WalletTransaction, error) {
	tx, err := l.debit(ctx, userID, entry)
	l.observe("debit", entry.Amount, err)
	return tx, err
}

func (l *ledger) debit(ctx context.Context, userID uuid.UUID, entry Entry) (*models.WalletTransaction, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}
	if err := l.repo.DebitBalance(ctx, userID, entry.Amount); err != nil {
		if errors.Is(err, ErrConditionFailed) {
			if _, getErr := l.Get(ctx, userID); getErr != nil {
				return nil, getErr
			}
			return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds, msgInsufficientFunds)
		}
		return nil, wrapStorage(err, "debit wallet")
	}
	wallet, err := l.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return l.appendAfter(ctx, wallet.ID, userID, enums.DirectionDebit, entry)
}

// Transfer debits the source and credits the destination. Both wallets must
// exist. Callers run it inside a transaction so a failed credit rolls back the debit.
func (l *ledger) Transfer(ctx context.Context, input TransferInput) (*TransferResult, error) {
	res, err := l.transfer(ctx, input)
	l.observe("transfer", input.Amount, err)
	return res, err
}

func (l *ledger) transfer(ctx context.Context, input TransferInput) (*TransferResult, error) {
	if input.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	if input.FromUserID == input.ToUserID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cannot transfer to the same wallet")
	}
	if err := l.lockPair(ctx, input.FromUserID, input.ToUserID); err != nil {
		return nil, err
	}
	debitType := input.DebitType
	if debitType == "" {
		debitType = enums.TransactionConsultationPayment
	}
	creditType := input.CreditType
	if creditType == "" {
		creditType = enums.TransactionConsultationFee
	}

	debitTx, err := l.debit(ctx, input.FromUserID, Entry{
		Type:        debitType,
		Amount:      input.Amount,
		Description: input.Description,
		Payload:     withCounterparty(input.Payload, input.ToUserID),
	})
	if err != nil {
		return nil, err
	}
	creditTx, err := l.credit(ctx, input.ToUserID, Entry{
		Type:        creditType,
		Amount:      input.Amount,
		Description: input.Description,
		Payload:     withCounterparty(input.Payload, input.FromUserID),
	})
	if err != nil {
		return nil, err
	}
	return &TransferResult{Debit: debitTx, Credit: creditTx}, nil
}

// lockPair row-locks both wallets in user id order, so transfers running in
// opposite directions queue on the same first row instead of deadlocking.
func (l *ledger) lockPair(ctx context.Context, a, b uuid.UUID) error {
	first, second := a, b
	if bytes.Compare(first[:], second[:]) > 0 {
		first, second = second, first
	}
	for _, userID := range []uuid.UUID{first, second} {
		if _, err := l.Lock(ctx, userID); err != nil {
			return err
		}
	}
	return nil
}

// AppendTransaction records a memo entry without touching the balance.
func (l *ledger) AppendTransaction(ctx context.Context, userID uuid.UUID, entry Entry) (*models.WalletTransaction, error) {
	if !entry.Type.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid transaction type %q", entry.Type)
	}
	if entry.Amount < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
	}
	wallet, err := l.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return l.appendAfter(ctx, wallet.ID, userID, enums.DirectionMemo, entry)
}

func (l *ledger) ReduceLoanEligibility(ctx context.Context, userID uuid.UUID, amount int64) error {
	err := l.reduceLoanEligibility(ctx, userID, amount)
	l.observe("reduce_eligibility", amount, err)
	return err
}

func (l *ledger) reduceLoanEligibility(ctx context.Context, userID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	if err := l.repo.ReduceEligibility(ctx, userID, amount); err != nil {
		if errors.Is(err, ErrConditionFailed) {
			if _, getErr := l.Get(ctx, userID); getErr != nil {
				return getErr
			}
			return pkgerrors.New(pkgerrors.CodeExceedsEligibility, msgNotEligible)
		}
		return wrapStorage(err, "reduce loan eligibility")
	}
	return nil
}

func (l *ledger) SetLoanEligibility(ctx context.Context, userID uuid.UUID, value int64) error {
	if value < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "loan eligibility must not be negative")
	}
	return l.mutate(ctx, userID, "set loan eligibility", func() error {
		return l.repo.SetEligibility(ctx, userID, value)
	})
}

func (l *ledger) IncreaseLoanBalance(ctx context.Context, userID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	return l.mutate(ctx, userID, "increase loan balance", func() error {
		return l.repo.AddLoanBalance(ctx, userID, amount)
	})
}

// ReduceLoanBalance decrements the loan balance, flooring it at zero.
func (l *ledger) ReduceLoanBalance(ctx context.Context, userID uuid.UUID, amount int64) error {
	if amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	return l.mutate(ctx, userID, "reduce loan balance", func() error {
		return l.repo.ReduceLoanBalance(ctx, userID, amount)
	})
}

func (l *ledger) Balance(ctx context.Context, userID uuid.UUID) (Balance, error) {
	wallet, err := l.Get(ctx, userID)
	if err != nil {
		return Balance{}, err
	}
	return Balance{Balance: wallet.Balance, LoanBalance: wallet.LoanBalance}, nil
}

func (l *ledger) mutate(ctx context.Context, userID uuid.UUID, op string, fn func() error) error {
	if err := fn(); err != nil {
		if errors.Is(err, ErrConditionFailed) {
			return pkgerrors.New(pkgerrors.CodeNotFound, msgWalletNotFound)
		}
		return wrapStorage(err, op)
	}
	return nil
}

// appendAfter writes the log entry with the post-mutation balance.
func (l *ledger) appendAfter(ctx context.Context, walletID, userID uuid.UUID, direction enums.TransactionDirection, entry Entry) (*models.WalletTransaction, error) {
	current, err := l.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, wrapStorage(err, "reload wallet")
	}
	row := &models.WalletTransaction{
		WalletID:     walletID,
		UserID:       userID,
		Amount:       entry.Amount,
		Direction:    direction,
		Type:         entry.Type,
		Description:  entry.Description,
		BalanceAfter: current.Balance,
		CreatedAt:    l.now().UTC(),
	}
	if len(entry.Payload) > 0 {
		row.Payload = dbtypes.JSONMap(entry.Payload)
	}
	if err := l.repo.InsertTransaction(ctx, row); err != nil {
		return nil, wrapStorage(err, "append wallet transaction")
	}
	return row, nil
}

func (l *ledger) observe(op string, amount int64, err error) {
	l.metrics.Observe(op, amount, err)
}

func validateEntry(entry Entry) error {
	if entry.Amount <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	if !entry.Type.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "invalid transaction type %q", entry.Type)
	}
	return nil
}

func withCounterparty(payload map[string]any, counterparty uuid.UUID) map[string]any {
	out := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		out[k] = v
	}
	out["counterpartyUserId"] = counterparty.String()
	return out
}

func mapLookup(err error) error {
	if db.IsNotFound(err) {
		return pkgerrors.New(pkgerrors.CodeNotFound, msgWalletNotFound)
	}
	return wrapStorage(err, "load wallet")
}

func wrapStorage(err error, action string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
