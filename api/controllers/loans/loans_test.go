package loans

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/carehub-backend/api/middleware"
	internalloans "github.com/angelmondragon/carehub-backend/internal/loans"
	"github.com/angelmondragon/carehub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carehub-backend/pkg/errors"
)

type stubLoansService struct {
	request func(ctx context.Context, userID uuid.UUID, amount int64) (*internalloans.LoanDTO, error)
	repay   func(ctx context.Context, input internalloans.RepayInput) (*internalloans.RepayResult, error)
}

func (s *stubLoansService) RequestLoan(ctx context.Context, userID uuid.UUID, amount int64) (*internalloans.LoanDTO, error) {
	if s.request != nil {
		return s.request(ctx, userID, amount)
	}
	return &internalloans.LoanDTO{}, nil
}

func (s *stubLoansService) RepayLoan(ctx context.Context, input internalloans.RepayInput) (*internalloans.RepayResult, error) {
	if s.repay != nil {
		return s.repay(ctx, input)
	}
	return &internalloans.RepayResult{}, nil
}

func (s *stubLoansService) History(ctx context.Context, userID uuid.UUID) (*internalloans.History, error) {
	return &internalloans.History{}, nil
}

func (s *stubLoansService) LoansWithBalance(ctx context.Context, userID uuid.UUID) ([]internalloans.LoanWithBalance, error) {
	return []internalloans.LoanWithBalance{{TotalRepaid: 100, RemainingBalance: 415}}, nil
}

func (s *stubLoansService) Eligibility(ctx context.Context, userID uuid.UUID) (*internalloans.Eligibility, error) {
	return &internalloans.Eligibility{UserID: userID, LoanEligibility: 19500}, nil
}

func newRouter(svc internalloans.Service, userID uuid.UUID) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithUserID(req.Context(), userID.String())))
		})
	})
	r.Post("/api/v1/loans", Request(svc, nil))
	r.Post("/api/v1/loans/{loanId}/repayments", Repay(svc, nil))
	r.Get("/api/v1/loans", List(svc, nil))
	r.Get("/api/v1/loans/eligibility", Eligibility(svc, nil))
	return r
}

func TestRequestLoan(t *testing.T) {
	userID := uuid.New()
	svc := &stubLoansService{request: func(ctx context.Context, id uuid.UUID, amount int64) (*internalloans.LoanDTO, error) {
		if id != userID || amount != 500 {
			t.Fatalf("unexpected request %s %d", id, amount)
		}
		return &internalloans.LoanDTO{UserID: id, Amount: 500, Interest: 15, TotalRepayableAmount: 515, Status: enums.LoanStatusApproved}, nil
	}}

	resp := httptest.NewRecorder()
	newRouter(svc, userID).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/loans", strings.NewReader(`{"amount":500}`)))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	var envelope struct {
		Data internalloans.LoanDTO `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.TotalRepayableAmount != 515 {
		t.Fatalf("unexpected total %d", envelope.Data.TotalRepayableAmount)
	}
}

func TestRequestLoanSurfacesActiveLoan(t *testing.T) {
	svc := &stubLoansService{request: func(ctx context.Context, id uuid.UUID, amount int64) (*internalloans.LoanDTO, error) {
		return nil, pkgerrors.New(pkgerrors.CodeActiveLoanExists, "You have an outstanding loan. Remaining balance: 515")
	}}

	resp := httptest.NewRecorder()
	newRouter(svc, uuid.New()).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/loans", strings.NewReader(`{"amount":500}`)))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "Remaining balance: 515") {
		t.Fatalf("expected message surfaced verbatim, got %s", resp.Body.String())
	}
}

func TestRequestLoanRejectsNonPositiveAmount(t *testing.T) {
	for _, body := range []string{`{"amount":0}`, `{"amount":-5}`, `{}`} {
		resp := httptest.NewRecorder()
		newRouter(&stubLoansService{}, uuid.New()).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/loans", strings.NewReader(body)))
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400 got %d", body, resp.Code)
		}
	}
}

func TestRepayUsesPathLoanID(t *testing.T) {
	userID, loanID := uuid.New(), uuid.New()
	svc := &stubLoansService{repay: func(ctx context.Context, input internalloans.RepayInput) (*internalloans.RepayResult, error) {
		if input.UserID != userID || input.LoanID != loanID || input.Amount != 515 {
			t.Fatalf("unexpected input %+v", input)
		}
		return &internalloans.RepayResult{Message: "Loan fully repaid.", TotalRepaid: 515}, nil
	}}

	resp := httptest.NewRecorder()
	newRouter(svc, userID).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/loans/"+loanID.String()+"/repayments", strings.NewReader(`{"amount":515}`)))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestRepayRejectsBadLoanID(t *testing.T) {
	resp := httptest.NewRecorder()
	newRouter(&stubLoansService{}, uuid.New()).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/loans/not-a-uuid/repayments", strings.NewReader(`{"amount":5}`)))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestRepayForbiddenForOtherUsersLoan(t *testing.T) {
	svc := &stubLoansService{repay: func(ctx context.Context, input internalloans.RepayInput) (*internalloans.RepayResult, error) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "You are not authorized to repay this loan.")
	}}
	resp := httptest.NewRecorder()
	newRouter(svc, uuid.New()).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/loans/"+uuid.NewString()+"/repayments", strings.NewReader(`{"amount":5}`)))
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}

func TestListAndEligibility(t *testing.T) {
	router := newRouter(&stubLoansService{}, uuid.New())

	list := httptest.NewRecorder()
	router.ServeHTTP(list, httptest.NewRequest(http.MethodGet, "/api/v1/loans", nil))
	if list.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", list.Code)
	}
	var envelope struct {
		Data struct {
			Loans []internalloans.LoanWithBalance `json:"loans"`
		} `json:"data"`
	}
	if err := json.NewDecoder(list.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(envelope.Data.Loans) != 1 || envelope.Data.Loans[0].RemainingBalance != 415 {
		t.Fatalf("unexpected loans %+v", envelope.Data.Loans)
	}

	elig := httptest.NewRecorder()
	router.ServeHTTP(elig, httptest.NewRequest(http.MethodGet, "/api/v1/loans/eligibility", nil))
	if elig.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", elig.Code)
	}
}
