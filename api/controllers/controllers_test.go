package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/angelmondragon/carehub-backend/internal/referrals"
	"github.com/angelmondragon/carehub-backend/pkg/config"
	"github.com/angelmondragon/carehub-backend/pkg/enums"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthLive(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	resp := httptest.NewRecorder()
	HealthLive(cfg).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if resp.Header().Get("X-CareHub-Env") != "test" {
		t.Fatalf("expected env header")
	}
}

func TestHealthReady(t *testing.T) {
	cfg := &config.Config{App: config.AppConfig{Env: "test"}}
	ok := pingerFunc(func(context.Context) error { return nil })
	down := pingerFunc(func(context.Context) error { return errors.New("connection refused") })

	resp := httptest.NewRecorder()
	HealthReady(cfg, nil, map[string]Pinger{"db": ok, "redis": ok}).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	HealthReady(cfg, nil, map[string]Pinger{"db": ok, "redis": down}).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code == http.StatusOK {
		t.Fatalf("expected failure when redis is down")
	}
}

type stubReferrals struct {
	got *referrals.SignupInput
}

func (s *stubReferrals) ApplySignup(ctx context.Context, input referrals.SignupInput) (*referrals.SignupResult, error) {
	s.got = &input
	return &referrals.SignupResult{UserID: input.UserID, WalletID: uuid.New()}, nil
}

func TestSignupForwardsInput(t *testing.T) {
	svc := &stubReferrals{}
	userID := uuid.New()
	body := `{"userId":"` + userID.String() + `","username":" ada ","role":"medical_practitioner","referralCode":"grace","isOnline":true}`

	resp := httptest.NewRecorder()
	Signup(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/internal/signups", strings.NewReader(body)))
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", resp.Code, resp.Body.String())
	}
	if svc.got == nil || svc.got.UserID != userID || svc.got.Username != "ada" || svc.got.Role != enums.RoleMedicalPractitioner || !svc.got.IsOnline {
		t.Fatalf("unexpected input %+v", svc.got)
	}
}

func TestSignupRejectsUnknownRole(t *testing.T) {
	svc := &stubReferrals{}
	body := `{"userId":"` + uuid.NewString() + `","username":"ada","role":"wizard"}`

	resp := httptest.NewRecorder()
	Signup(svc, nil).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/internal/signups", strings.NewReader(body)))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
	if svc.got != nil {
		t.Fatalf("service should not be called")
	}
}
