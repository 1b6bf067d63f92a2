package loans

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/carehub-backend/pkg/db/dbtest"
	"github.com/angelmondragon/carehub-backend/pkg/db/models"
	"github.com/angelmondragon/carehub-backend/pkg/enums"
)

func newLoan(userID uuid.UUID, status enums.LoanStatus, due time.Time) *models.Loan {
	return &models.Loan{
		UserID:               userID,
		Amount:               100,
		Interest:             3,
		TotalRepayableAmount: 103,
		Status:               status,
		DueDate:              due,
	}
}

func TestRepositorySingleApprovedLoanPerUser(t *testing.T) {
	client := dbtest.Open(t)
	r := NewRepository(client.DB())
	ctx := context.Background()
	userID := uuid.New()
	due := time.Now().UTC().Add(time.Hour)

	require.NoError(t, r.Create(ctx, newLoan(userID, enums.LoanStatusApproved, due)))
	require.ErrorIs(t, r.Create(ctx, newLoan(userID, enums.LoanStatusApproved, due)), ErrActiveLoanRace)
	require.NoError(t, r.Create(ctx, newLoan(userID, enums.LoanStatusPaid, due)))
}

func TestRepositoryRepaymentAggregates(t *testing.T) {
	client := dbtest.Open(t)
	r := NewRepository(client.DB())
	ctx := context.Background()
	userID := uuid.New()
	loan := newLoan(userID, enums.LoanStatusApproved, time.Now().UTC())
	require.NoError(t, r.Create(ctx, loan))

	total, err := r.SumRepayments(ctx, loan.ID)
	require.NoError(t, err)
	require.Zero(t, total)

	for _, amount := range []int64{10, 25} {
		require.NoError(t, r.InsertRepayment(ctx, &models.LoanRepayment{
			UserID:        userID,
			LoanID:        loan.ID,
			Amount:        amount,
			RepaymentDate: time.Now().UTC(),
		}))
	}
	total, err = r.SumRepayments(ctx, loan.ID)
	require.NoError(t, err)
	require.Equal(t, int64(35), total)

	byLoan, err := r.RepaidByLoan(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, map[uuid.UUID]int64{loan.ID: 35}, byLoan)
}

func TestRepositoryDueSoonAndReminded(t *testing.T) {
	client := dbtest.Open(t)
	r := NewRepository(client.DB())
	ctx := context.Background()
	now := time.Now().UTC()

	soon := newLoan(uuid.New(), enums.LoanStatusApproved, now.Add(24*time.Hour))
	later := newLoan(uuid.New(), enums.LoanStatusApproved, now.Add(20*24*time.Hour))
	paid := newLoan(uuid.New(), enums.LoanStatusPaid, now.Add(time.Hour))
	for _, l := range []*models.Loan{soon, later, paid} {
		require.NoError(t, r.Create(ctx, l))
	}

	due, err := r.DueSoon(ctx, now.Add(72*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	require.Equal(t, soon.ID, due[0].ID)

	require.NoError(t, r.MarkReminded(ctx, soon.ID, now))
	due, err = r.DueSoon(ctx, now.Add(72*time.Hour), 10)
	require.NoError(t, err)
	require.Empty(t, due)
}
