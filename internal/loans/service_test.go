package loans

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/carehub-backend/internal/wallet"
	"github.com/angelmondragon/carehub-backend/pkg/db"
	"github.com/angelmondragon/carehub-backend/pkg/db/dbtest"
	"github.com/angelmondragon/carehub-backend/pkg/db/models"
	"github.com/angelmondragon/carehub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carehub-backend/pkg/errors"
	"github.com/angelmondragon/carehub-backend/pkg/outbox"
)

type fixture struct {
	client  *db.Client
	ledger  wallet.Ledger
	repo    Repository
	service Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	client := dbtest.Open(t)
	ledger, err := wallet.NewLedger(wallet.LedgerParams{
		Repository:         wallet.NewRepository(client.DB()),
		DefaultEligibility: 20000,
	})
	require.NoError(t, err)
	repo := NewRepository(client.DB())
	svc, err := NewService(ServiceParams{
		Repository: repo,
		Ledger:     ledger,
		Tx:         client,
		Outbox:     outbox.NewService(outbox.NewRepository(client.DB()), nil),
		Policy: Policy{
			DefaultEligibility: 20000,
			InterestRate:       decimal.RequireFromString("0.03"),
			Term:               30 * 24 * time.Hour,
		},
	})
	require.NoError(t, err)
	return fixture{client: client, ledger: ledger, repo: repo, service: svc}
}

func (f fixture) wallet(t *testing.T, userID uuid.UUID) *models.Wallet {
	t.Helper()
	w, err := f.ledger.Get(context.Background(), userID)
	require.NoError(t, err)
	return w
}

func (f fixture) outboxTypes(t *testing.T) []enums.OutboxEventType {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, f.client.DB().Order("created_at ASC").Find(&rows).Error)
	out := make([]enums.OutboxEventType, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.EventType)
	}
	return out
}

func TestInterestRounding(t *testing.T) {
	rate := decimal.RequireFromString("0.03")
	cases := map[int64]int64{500: 15, 50: 2, 150: 5, 1: 0, 20000: 600}
	for amount, want := range cases {
		if got := Interest(amount, rate); got != want {
			t.Fatalf("Interest(%d) = %d, want %d", amount, got, want)
		}
	}
}

func TestRequestThenRepayInFull(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	loan, err := f.service.RequestLoan(ctx, userID, 500)
	require.NoError(t, err)
	require.Equal(t, int64(15), loan.Interest)
	require.Equal(t, int64(515), loan.TotalRepayableAmount)
	require.Equal(t, enums.LoanStatusApproved, loan.Status)

	w := f.wallet(t, userID)
	require.Equal(t, int64(500), w.Balance)
	require.Equal(t, int64(19500), w.LoanEligibility)
	require.Equal(t, int64(515), w.LoanBalance)

	_, err = f.ledger.Credit(ctx, userID, wallet.Entry{Type: enums.TransactionDeposit, Amount: 15})
	require.NoError(t, err)

	res, err := f.service.RepayLoan(ctx, RepayInput{UserID: userID, LoanID: loan.ID, Amount: 515})
	require.NoError(t, err)
	require.Equal(t, "Loan fully repaid.", res.Message)
	require.Equal(t, int64(515), res.TotalRepaid)
	require.Zero(t, res.RemainingBalance)

	w = f.wallet(t, userID)
	require.Zero(t, w.Balance)
	require.Equal(t, int64(20000), w.LoanEligibility)
	require.Zero(t, w.LoanBalance)

	stored, err := f.repo.FindByID(ctx, loan.ID)
	require.NoError(t, err)
	require.Equal(t, enums.LoanStatusPaid, stored.Status)
	require.NotNil(t, stored.PaidAt)

	require.Equal(t, []enums.OutboxEventType{enums.EventLoanDisbursed, enums.EventLoanRepaid}, f.outboxTypes(t))
}

func TestRequestBlockedByActiveLoan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	loan, err := f.service.RequestLoan(ctx, userID, 1000)
	require.NoError(t, err)
	_, err = f.service.RepayLoan(ctx, RepayInput{UserID: userID, LoanID: loan.ID, Amount: 30})
	require.NoError(t, err)

	_, err = f.service.RequestLoan(ctx, userID, 100)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeActiveLoanExists))
	require.Equal(t, "You have an active loan with 1000 remaining. Please repay it before requesting a new one.", pkgerrors.As(err).Message())
}

func TestRequestExceedsEligibility(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	_, err := f.ledger.Ensure(ctx, userID)
	require.NoError(t, err)

	_, err = f.service.RequestLoan(ctx, userID, 20001)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeExceedsEligibility))
	require.Equal(t, "Requested amount exceeds eligibility. You are eligible to loan 20000", pkgerrors.As(err).Message())

	w := f.wallet(t, userID)
	require.Zero(t, w.Balance)
	require.Zero(t, w.LoanBalance)
	require.Empty(t, f.outboxTypes(t))
}

func TestRepayChecksInOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, other := uuid.New(), uuid.New()

	loan, err := f.service.RequestLoan(ctx, owner, 500)
	require.NoError(t, err)

	_, err = f.service.RepayLoan(ctx, RepayInput{UserID: owner, LoanID: uuid.New(), Amount: 10})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))

	_, err = f.service.RepayLoan(ctx, RepayInput{UserID: other, LoanID: loan.ID, Amount: 10})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	require.Equal(t, "Loan does not belong to this user.", pkgerrors.As(err).Message())

	_, err = f.service.RepayLoan(ctx, RepayInput{UserID: owner, LoanID: loan.ID, Amount: 501})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds))

	_, err = f.ledger.Credit(ctx, owner, wallet.Entry{Type: enums.TransactionDeposit, Amount: 100})
	require.NoError(t, err)
	_, err = f.service.RepayLoan(ctx, RepayInput{UserID: owner, LoanID: loan.ID, Amount: 516})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeExceedsLoanAmount))

	res, err := f.service.RepayLoan(ctx, RepayInput{UserID: owner, LoanID: loan.ID, Amount: 15})
	require.NoError(t, err)
	require.Equal(t, "Loan repayment successful.", res.Message)
	require.Equal(t, int64(500), res.RemainingBalance)

	_, err = f.service.RepayLoan(ctx, RepayInput{UserID: owner, LoanID: loan.ID, Amount: 500})
	require.NoError(t, err)
	_, err = f.service.RepayLoan(ctx, RepayInput{UserID: owner, LoanID: loan.ID, Amount: 1})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeAlreadyRepaid))
	require.Equal(t, "Loan is already fully repaid.", pkgerrors.As(err).Message())
}

func TestFailedRepaymentLeavesStateUntouched(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	loan, err := f.service.RequestLoan(ctx, userID, 500)
	require.NoError(t, err)
	_, err = f.service.RepayLoan(ctx, RepayInput{UserID: userID, LoanID: loan.ID, Amount: 600})
	require.Error(t, err)

	w := f.wallet(t, userID)
	require.Equal(t, int64(500), w.Balance)
	require.Equal(t, int64(515), w.LoanBalance)
	total, err := f.repo.SumRepayments(ctx, loan.ID)
	require.NoError(t, err)
	require.Zero(t, total)
}

func TestHistoryAndBalances(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	loan, err := f.service.RequestLoan(ctx, userID, 500)
	require.NoError(t, err)
	_, err = f.service.RepayLoan(ctx, RepayInput{UserID: userID, LoanID: loan.ID, Amount: 200})
	require.NoError(t, err)

	history, err := f.service.History(ctx, userID)
	require.NoError(t, err)
	require.Len(t, history.Entries, 2)
	require.Equal(t, HistoryLoan, history.Entries[0].Kind)
	require.Equal(t, HistoryRepayment, history.Entries[1].Kind)
	require.Equal(t, int64(315), history.RemainingBalance)
	require.Equal(t, int64(300), history.WalletBalance)

	list, err := f.service.LoansWithBalance(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, int64(200), list[0].TotalRepaid)
	require.Equal(t, int64(315), list[0].RemainingBalance)

	elig, err := f.service.Eligibility(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, int64(19500), elig.LoanEligibility)
	require.Equal(t, int64(300), elig.WalletBalance)
}

func TestRequestAfterFullRepaymentSucceeds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()

	first, err := f.service.RequestLoan(ctx, userID, 100)
	require.NoError(t, err)
	_, err = f.ledger.Credit(ctx, userID, wallet.Entry{Type: enums.TransactionDeposit, Amount: 3})
	require.NoError(t, err)
	_, err = f.service.RepayLoan(ctx, RepayInput{UserID: userID, LoanID: first.ID, Amount: 103})
	require.NoError(t, err)

	second, err := f.service.RequestLoan(ctx, userID, 200)
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.RequestLoan(context.Background(), uuid.New(), 0)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = f.service.RepayLoan(context.Background(), RepayInput{UserID: uuid.New(), LoanID: uuid.New(), Amount: -1})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}
