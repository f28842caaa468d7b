package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"server/internal/domain"
	"server/internal/http/handlers"
	"server/internal/middleware"
)

type staticLedger struct {
	balance int
}

func (s staticLedger) Debit(context.Context, string, int, string) error      { return nil }
func (s staticLedger) CreditBack(context.Context, string, int, string) error { return nil }
func (s staticLedger) Refund(context.Context, string, string) (*domain.RefundOutcome, error) {
	return nil, domain.ErrNotFound
}
func (s staticLedger) Account(_ context.Context, merchantID string) (*domain.CreditAccount, error) {
	return &domain.CreditAccount{MerchantID: merchantID, Balance: s.balance}, nil
}

func newTestRouter(t *testing.T, secret string) http.Handler {
	t.Helper()
	app := &handlers.App{
		Ledger: staticLedger{balance: 9},
		Logger: zerolog.Nop(),
	}
	return NewRouter(app, Options{
		JWTSecret:       secret,
		RateLimitPerMin: 100,
	})
}

func TestHealthzIsPublic(t *testing.T) {
	router := newTestRouter(t, "secret")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestAPIRequiresToken(t *testing.T) {
	router := newTestRouter(t, "secret")

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/credits", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAPIAcceptsSignedToken(t *testing.T) {
	router := newTestRouter(t, "secret")

	token, err := middleware.SignMerchantToken("secret", "m1", "en", time.Hour)
	if err != nil {
		t.Fatalf("SignMerchantToken: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/credits", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
}

func TestAPIRejectsTokenSignedWithWrongSecret(t *testing.T) {
	router := newTestRouter(t, "secret")

	token, err := middleware.SignMerchantToken("other-secret", "m1", "en", time.Hour)
	if err != nil {
		t.Fatalf("SignMerchantToken: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/credits", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
