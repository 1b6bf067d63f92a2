package loans

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/carehub-backend/internal/wallet"
	"github.com/angelmondragon/carehub-backend/pkg/db"
	"github.com/angelmondragon/carehub-backend/pkg/db/models"
	"github.com/angelmondragon/carehub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carehub-backend/pkg/errors"
	"github.com/angelmondragon/carehub-backend/pkg/logger"
	"github.com/angelmondragon/carehub-backend/pkg/outbox"
	"github.com/angelmondragon/carehub-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service runs the lending flows. Every mutation holds the borrower's wallet
// lock for the duration of its transaction.
type Service interface {
	RequestLoan(ctx context.Context, userID uuid.UUID, amount int64) (*LoanDTO, error)
	RepayLoan(ctx context.Context, input RepayInput) (*RepayResult, error)
	History(ctx context.Context, userID uuid.UUID) (*History, error)
	LoansWithBalance(ctx context.Context, userID uuid.UUID) ([]LoanWithBalance, error)
	Eligibility(ctx context.Context, userID uuid.UUID) (*Eligibility, error)
}

// Policy is the lending configuration.
type Policy struct {
	DefaultEligibility int64
	InterestRate       decimal.Decimal
	Term               time.Duration
}

// ServiceParams wires NewService.
type ServiceParams struct {
	Repository Repository
	Ledger     wallet.Ledger
	Tx         txRunner
	Outbox     outbox.Emitter
	Policy     Policy
	Logger     *logger.Logger
}

type service struct {
	repo   Repository
	ledger wallet.Ledger
	tx     txRunner
	outbox outbox.Emitter
	policy Policy
	logg   *logger.Logger
	now    func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("loans repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Policy.Term <= 0 {
		return nil, fmt.Errorf("loan term must be positive")
	}
	if params.Policy.InterestRate.IsNegative() {
		return nil, fmt.Errorf("interest rate must not be negative")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &service{
		repo:   params.Repository,
		ledger: params.Ledger,
		tx:     params.Tx,
		outbox: params.Outbox,
		policy: params.Policy,
		logg:   logg,
		now:    time.Now,
	}, nil
}

// Interest returns amount*rate rounded half away from zero to whole minor units.
func Interest(amount int64, rate decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(rate).Round(0).IntPart()
}

func (s *service) RequestLoan(ctx context.Context, userID uuid.UUID, amount int64) (*LoanDTO, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}

	var created models.Loan
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ledger := s.ledger.WithTx(tx)
		loans := s.repo.WithTx(tx)
		now := s.now().UTC()

		if _, err := ledger.Ensure(ctx, userID); err != nil {
			return err
		}
		w, err := ledger.Lock(ctx, userID)
		if err != nil {
			return err
		}

		active, err := loans.FindActiveByUser(ctx, userID)
		switch {
		case err == nil:
			repaid, err := loans.SumRepayments(ctx, active.ID)
			if err != nil {
				return wrapStorage(err, "sum repayments")
			}
			if repaid < active.TotalRepayableAmount {
				return pkgerrors.Newf(pkgerrors.CodeActiveLoanExists,
					"You have an active loan with %d remaining. Please repay it before requesting a new one.",
					active.TotalRepayableAmount-repaid)
			}
			if err := loans.MarkPaid(ctx, active.ID, now); err != nil {
				return wrapStorage(err, "close repaid loan")
			}
		case !db.IsNotFound(err):
			return wrapStorage(err, "load active loan")
		}

		if amount > w.LoanEligibility {
			return pkgerrors.Newf(pkgerrors.CodeExceedsEligibility,
				"Requested amount exceeds eligibility. You are eligible to loan %d", w.LoanEligibility)
		}

		interest := Interest(amount, s.policy.InterestRate)
		created = models.Loan{
			UserID:               userID,
			Amount:               amount,
			Interest:             interest,
			TotalRepayableAmount: amount + interest,
			Status:               enums.LoanStatusApproved,
			DueDate:              now.Add(s.policy.Term),
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if err := loans.Create(ctx, &created); err != nil {
			if err == ErrActiveLoanRace {
				return pkgerrors.New(pkgerrors.CodeActiveLoanExists, "You have an active loan. Please repay it before requesting a new one.")
			}
			return wrapStorage(err, "create loan")
		}

		if err := ledger.ReduceLoanEligibility(ctx, userID, amount); err != nil {
			return err
		}
		if _, err := ledger.Credit(ctx, userID, wallet.Entry{
			Type:   enums.TransactionLoanDisbursement,
			Amount: amount,
			Description: fmt.Sprintf("Loan of %d disbursed. Interest %d, total repayable %d, due %s",
				amount, interest, created.TotalRepayableAmount, created.DueDate.Format("2006-01-02")),
			Payload: map[string]any{"loanId": created.ID.String(), "interest": interest},
		}); err != nil {
			return err
		}
		if err := ledger.IncreaseLoanBalance(ctx, userID, created.TotalRepayableAmount); err != nil {
			return err
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLoanDisbursed,
			AggregateType: enums.AggregateLoan,
			AggregateID:   created.ID,
			Actor:         &outbox.ActorRef{UserID: userID},
			Data: payloads.LoanDisbursedEvent{
				LoanID:               created.ID,
				UserID:               userID,
				Amount:               amount,
				Interest:             interest,
				TotalRepayableAmount: created.TotalRepayableAmount,
				DueDate:              created.DueDate,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(s.logg.WithUserID(ctx, userID.String()), map[string]any{
		"loan_id": created.ID.String(),
		"amount":  amount,
	})
	s.logg.Info(logCtx, "loan disbursed")
	dto := toLoanDTO(&created)
	return &dto, nil
}

func (s *service) RepayLoan(ctx context.Context, input RepayInput) (*RepayResult, error) {
	if input.UserID == uuid.Nil || input.LoanID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id and loan id are required")
	}
	if input.Amount <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}

	var result RepayResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ledger := s.ledger.WithTx(tx)
		loans := s.repo.WithTx(tx)
		now := s.now().UTC()

		loan, err := loans.FindByID(ctx, input.LoanID)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "Loan not found.")
			}
			return wrapStorage(err, "load loan")
		}
		if loan.UserID != input.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "Loan does not belong to this user.")
		}

		w, err := ledger.Lock(ctx, input.UserID)
		if err != nil {
			return err
		}
		if w.Balance < input.Amount {
			return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "Insufficient wallet balance.")
		}

		repaid, err := loans.SumRepayments(ctx, loan.ID)
		if err != nil {
			return wrapStorage(err, "sum repayments")
		}
		if repaid >= loan.TotalRepayableAmount {
			return pkgerrors.New(pkgerrors.CodeAlreadyRepaid, "Loan is already fully repaid.")
		}
		if repaid+input.Amount > loan.TotalRepayableAmount {
			return pkgerrors.New(pkgerrors.CodeExceedsLoanAmount, "Repayment exceeds loan amount.")
		}

		if _, err := ledger.Debit(ctx, input.UserID, wallet.Entry{
			Type:        enums.TransactionLoanRepayment,
			Amount:      input.Amount,
			Description: fmt.Sprintf("Loan repayment of %d", input.Amount),
			Payload:     map[string]any{"loanId": loan.ID.String()},
		}); err != nil {
			return err
		}

		totalPaid := repaid + input.Amount
		left := loan.TotalRepayableAmount - totalPaid
		if err := loans.InsertRepayment(ctx, &models.LoanRepayment{
			UserID:           input.UserID,
			LoanID:           loan.ID,
			Amount:           input.Amount,
			TotalPaid:        totalPaid,
			RemainingBalance: left,
			RepaymentDate:    now,
		}); err != nil {
			return wrapStorage(err, "record repayment")
		}
		if err := ledger.ReduceLoanBalance(ctx, input.UserID, input.Amount); err != nil {
			return err
		}

		status := loan.Status
		result = RepayResult{Message: "Loan repayment successful.", TotalRepaid: totalPaid, RemainingBalance: left}
		if left == 0 {
			if err := ledger.SetLoanEligibility(ctx, input.UserID, s.policy.DefaultEligibility); err != nil {
				return err
			}
			if err := loans.MarkPaid(ctx, loan.ID, now); err != nil {
				return wrapStorage(err, "mark loan paid")
			}
			status = enums.LoanStatusPaid
			result.Message = "Loan fully repaid."
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventLoanRepaid,
			AggregateType: enums.AggregateLoan,
			AggregateID:   loan.ID,
			Actor:         &outbox.ActorRef{UserID: input.UserID},
			Data: payloads.LoanRepaidEvent{
				LoanID:           loan.ID,
				UserID:           input.UserID,
				Amount:           input.Amount,
				TotalPaid:        totalPaid,
				RemainingBalance: left,
				Status:           status,
			},
			OccurredAt: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *service) History(ctx context.Context, userID uuid.UUID) (*History, error) {
	loans, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, wrapStorage(err, "list loans")
	}
	repayments, err := s.repo.ListRepaymentsByUser(ctx, userID)
	if err != nil {
		return nil, wrapStorage(err, "list repayments")
	}
	bal, err := s.ledger.Balance(ctx, userID)
	if err != nil && !pkgerrors.IsCode(err, pkgerrors.CodeNotFound) {
		return nil, err
	}

	repaid := map[uuid.UUID]int64{}
	for _, r := range repayments {
		repaid[r.LoanID] += r.Amount
	}

	out := &History{Entries: make([]HistoryEntry, 0, len(loans)+len(repayments)), WalletBalance: bal.Balance}
	for _, l := range loans {
		left := remaining(l.TotalRepayableAmount, repaid[l.ID])
		out.RemainingBalance += left
		out.Entries = append(out.Entries, HistoryEntry{
			Kind:             HistoryLoan,
			ID:               l.ID,
			LoanID:           l.ID,
			Amount:           l.Amount,
			Status:           l.Status,
			RemainingBalance: left,
			Date:             l.CreatedAt,
		})
	}
	for _, r := range repayments {
		out.Entries = append(out.Entries, HistoryEntry{
			Kind:             HistoryRepayment,
			ID:               r.ID,
			LoanID:           r.LoanID,
			Amount:           r.Amount,
			TotalPaid:        r.TotalPaid,
			RemainingBalance: r.RemainingBalance,
			Date:             r.RepaymentDate,
		})
	}
	sort.SliceStable(out.Entries, func(i, j int) bool {
		return out.Entries[i].Date.Before(out.Entries[j].Date)
	})
	return out, nil
}

func (s *service) LoansWithBalance(ctx context.Context, userID uuid.UUID) ([]LoanWithBalance, error) {
	loans, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, wrapStorage(err, "list loans")
	}
	repaid, err := s.repo.RepaidByLoan(ctx, userID)
	if err != nil {
		return nil, wrapStorage(err, "aggregate repayments")
	}
	out := make([]LoanWithBalance, 0, len(loans))
	for i := range loans {
		l := &loans[i]
		out = append(out, LoanWithBalance{
			LoanDTO:          toLoanDTO(l),
			TotalRepaid:      repaid[l.ID],
			RemainingBalance: remaining(l.TotalRepayableAmount, repaid[l.ID]),
		})
	}
	return out, nil
}

func (s *service) Eligibility(ctx context.Context, userID uuid.UUID) (*Eligibility, error) {
	w, err := s.ledger.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Eligibility{UserID: userID, LoanEligibility: w.LoanEligibility, WalletBalance: w.Balance}, nil
}

func wrapStorage(err error, action string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
