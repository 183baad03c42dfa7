package ledger_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/creditd/creditd-api/internal/domain/ledger"
	"github.com/creditd/creditd-api/internal/middleware"
	"github.com/creditd/creditd-api/internal/pkg/response"
)

// authAs injects the account id the way the auth middleware would.
func authAs(accountID uuid.UUID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.AccountIDKey, accountID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newRouter(handler *ledger.Handler, accountID uuid.UUID) chi.Router {
	r := chi.NewRouter()
	r.Mount("/credits", handler.Routes(authAs(accountID)))
	return r
}

func TestSpendEndpoint(t *testing.T) {
	store := newFakeStore()
	svc := ledger.NewService(store, nil)
	accountID := uuid.New()
	router := newRouter(ledger.NewHandler(svc), accountID)

	if _, err := svc.Grant(context.Background(), accountID, 2); err != nil {
		t.Fatalf("grant failed: %v", err)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/credits/spend", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp response.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	data := resp.Data.(map[string]interface{})
	if remaining := data["remaining"].(float64); remaining != 1 {
		t.Fatalf("expected remaining 1, got %v", remaining)
	}
}

func TestSpendEndpointInsufficientCredits(t *testing.T) {
	svc := ledger.NewService(newFakeStore(), nil)
	router := newRouter(ledger.NewHandler(svc), uuid.New())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/credits/spend", nil))
	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("expected 402, got %d", rec.Code)
	}
}

func TestBalanceEndpoint(t *testing.T) {
	store := newFakeStore()
	svc := ledger.NewService(store, nil)
	accountID := uuid.New()
	router := newRouter(ledger.NewHandler(svc), accountID)

	if _, err := svc.Grant(context.Background(), accountID, 7); err != nil {
		t.Fatalf("grant failed: %v", err)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/credits/balance", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp response.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	data := resp.Data.(map[string]interface{})
	if balance := data["balance"].(float64); balance != 7 {
		t.Fatalf("expected balance 7, got %v", balance)
	}
}

func TestEndpointsRequireAuth(t *testing.T) {
	svc := ledger.NewService(newFakeStore(), nil)
	router := newRouter(ledger.NewHandler(svc), uuid.Nil)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodPost, "/credits/spend", nil),
		httptest.NewRequest(http.MethodGet, "/credits/balance", nil),
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", req.Method, req.URL.Path, rec.Code)
		}
	}
}
