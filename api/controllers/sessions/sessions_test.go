package sessions

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/carehub-backend/api/middleware"
	internalsessions "github.com/angelmondragon/carehub-backend/internal/sessions"
	"github.com/angelmondragon/carehub-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/carehub-backend/pkg/errors"
)

type stubSessionsService struct {
	book   func(ctx context.Context, input internalsessions.BookInput) (*internalsessions.SessionDTO, error)
	update func(ctx context.Context, input internalsessions.UpdateStatusInput) (*internalsessions.SessionDTO, error)
	review func(ctx context.Context, input internalsessions.ReviewInput) (*internalsessions.SessionWithReview, error)
	match  func(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (*internalsessions.MatchResult, error)
}

func (s *stubSessionsService) CreateMedicalIssue(ctx context.Context, name string, price int64) (*internalsessions.MedicalIssueDTO, error) {
	return &internalsessions.MedicalIssueDTO{Name: name, Price: price}, nil
}

func (s *stubSessionsService) ListMedicalIssues(ctx context.Context) ([]internalsessions.MedicalIssueDTO, error) {
	return nil, nil
}

func (s *stubSessionsService) Book(ctx context.Context, input internalsessions.BookInput) (*internalsessions.SessionDTO, error) {
	if s.book != nil {
		return s.book(ctx, input)
	}
	return &internalsessions.SessionDTO{}, nil
}

func (s *stubSessionsService) BookWithAnyPractitioner(ctx context.Context, input internalsessions.BookAnyInput) (*internalsessions.SessionDTO, error) {
	return &internalsessions.SessionDTO{PaymentMode: enums.PaymentModeOnReview}, nil
}

func (s *stubSessionsService) MatchPractitioners(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (*internalsessions.MatchResult, error) {
	if s.match != nil {
		return s.match(ctx, userID, ids)
	}
	return &internalsessions.MatchResult{}, nil
}

func (s *stubSessionsService) UpdateStatus(ctx context.Context, input internalsessions.UpdateStatusInput) (*internalsessions.SessionDTO, error) {
	if s.update != nil {
		return s.update(ctx, input)
	}
	return &internalsessions.SessionDTO{Status: input.Status}, nil
}

func (s *stubSessionsService) SubmitReview(ctx context.Context, input internalsessions.ReviewInput) (*internalsessions.SessionWithReview, error) {
	if s.review != nil {
		return s.review(ctx, input)
	}
	return &internalsessions.SessionWithReview{}, nil
}

func (s *stubSessionsService) ListForUser(ctx context.Context, userID uuid.UUID) ([]internalsessions.MonthGroup, error) {
	return nil, nil
}

func (s *stubSessionsService) PendingForPractitioner(ctx context.Context, practitionerID uuid.UUID) ([]internalsessions.SessionDTO, error) {
	return nil, nil
}

func (s *stubSessionsService) WithReview(ctx context.Context, sessionID, actorID uuid.UUID) (*internalsessions.SessionWithReview, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "Session not found.")
}

func newRouter(svc internalsessions.Service, userID uuid.UUID) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithUserID(req.Context(), userID.String())))
		})
	})
	r.Post("/api/v1/medical-issues", CreateIssue(svc, nil))
	r.Post("/api/v1/sessions", Book(svc, nil))
	r.Post("/api/v1/sessions/any", BookAny(svc, nil))
	r.Post("/api/v1/sessions/match", Match(svc, nil))
	r.Get("/api/v1/sessions/{sessionId}", Detail(svc, nil))
	r.Patch("/api/v1/sessions/{sessionId}/status", UpdateStatus(svc, nil))
	r.Post("/api/v1/sessions/{sessionId}/review", Review(svc, nil))
	return r
}

func TestBookForwardsSelection(t *testing.T) {
	userID, practitioner, issue := uuid.New(), uuid.New(), uuid.New()
	svc := &stubSessionsService{book: func(ctx context.Context, input internalsessions.BookInput) (*internalsessions.SessionDTO, error) {
		if input.UserID != userID || input.PractitionerID != practitioner {
			t.Fatalf("unexpected parties %+v", input)
		}
		if len(input.MedicalIssueIDs) != 1 || input.MedicalIssueIDs[0] != issue {
			t.Fatalf("unexpected issues %v", input.MedicalIssueIDs)
		}
		return &internalsessions.SessionDTO{Price: 300, PaymentMode: enums.PaymentModeEscrow}, nil
	}}

	body := `{"practitionerId":"` + practitioner.String() + `","medicalIssueIds":["` + issue.String() + `"]}`
	resp := httptest.NewRecorder()
	newRouter(svc, userID).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(body)))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestBookRequiresIssues(t *testing.T) {
	body := `{"practitionerId":"` + uuid.NewString() + `","medicalIssueIds":[]}`
	resp := httptest.NewRecorder()
	newRouter(&stubSessionsService{}, uuid.New()).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/sessions", strings.NewReader(body)))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestMatchSurfacesInsufficientFunds(t *testing.T) {
	svc := &stubSessionsService{match: func(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (*internalsessions.MatchResult, error) {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "Insufficient funds. Required: 300, Available: 10")
	}}
	body := `{"medicalIssueIds":["` + uuid.NewString() + `"]}`
	resp := httptest.NewRecorder()
	newRouter(svc, uuid.New()).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/sessions/match", strings.NewReader(body)))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), string(pkgerrors.CodeInsufficientFunds)) {
		t.Fatalf("expected insufficient funds code, got %s", resp.Body.String())
	}
}

func TestUpdateStatusParsesStatus(t *testing.T) {
	userID, sessionID := uuid.New(), uuid.New()
	svc := &stubSessionsService{update: func(ctx context.Context, input internalsessions.UpdateStatusInput) (*internalsessions.SessionDTO, error) {
		if input.SessionID != sessionID || input.ActorID != userID || input.Status != enums.SessionStatusInProgress {
			t.Fatalf("unexpected input %+v", input)
		}
		return &internalsessions.SessionDTO{Status: input.Status}, nil
	}}

	resp := httptest.NewRecorder()
	newRouter(svc, userID).ServeHTTP(resp, httptest.NewRequest(http.MethodPatch, "/api/v1/sessions/"+sessionID.String()+"/status", strings.NewReader(`{"status":"in-progress"}`)))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}

	bad := httptest.NewRecorder()
	newRouter(svc, userID).ServeHTTP(bad, httptest.NewRequest(http.MethodPatch, "/api/v1/sessions/"+sessionID.String()+"/status", strings.NewReader(`{"status":"archived"}`)))
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", bad.Code)
	}
}

func TestReviewUsesCallerAsPractitioner(t *testing.T) {
	practitioner, sessionID := uuid.New(), uuid.New()
	svc := &stubSessionsService{review: func(ctx context.Context, input internalsessions.ReviewInput) (*internalsessions.SessionWithReview, error) {
		if input.PractitionerID != practitioner || input.SessionID != sessionID || input.Rating != 4 || input.Comment != "ok" {
			t.Fatalf("unexpected review %+v", input)
		}
		return &internalsessions.SessionWithReview{}, nil
	}}

	resp := httptest.NewRecorder()
	newRouter(svc, practitioner).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+sessionID.String()+"/review", strings.NewReader(`{"rating":4,"comment":" ok "}`)))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}

	bad := httptest.NewRecorder()
	newRouter(svc, practitioner).ServeHTTP(bad, httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+sessionID.String()+"/review", strings.NewReader(`{"rating":9}`)))
	if bad.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", bad.Code)
	}
}

func TestDetailNotFound(t *testing.T) {
	resp := httptest.NewRecorder()
	newRouter(&stubSessionsService{}, uuid.New()).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/sessions/"+uuid.NewString(), nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestCreateIssueValidates(t *testing.T) {
	resp := httptest.NewRecorder()
	newRouter(&stubSessionsService{}, uuid.New()).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/medical-issues", strings.NewReader(`{"name":"Malaria","price":0}`)))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
