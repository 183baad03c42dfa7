package reconcile_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/creditd/creditd-api/internal/domain/reconcile"
	"github.com/creditd/creditd-api/internal/pkg/gateway"
)

func postWebhook(t *testing.T, handler *reconcile.Handler, payload []byte, signature string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/payment", bytes.NewReader(payload))
	req.Header.Set("X-Gateway-Signature", signature)
	rec := httptest.NewRecorder()
	handler.Routes().ServeHTTP(rec, req)
	return rec
}

func TestWebhookEndpoint(t *testing.T) {
	tracker := newFakeTracker()
	ledger := newFakeLedger()
	handler := reconcile.NewHandler(reconcile.NewService(secretVerifier{}, tracker, ledger, nil, nil))
	accountID := uuid.New()
	payload := completedPayload("sess_http_1", accountID)

	rec := postWebhook(t, handler, payload, sign(payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Gateway retry of the same event is still a 200.
	rec = postWebhook(t, handler, payload, sign(payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("duplicate delivery expected 200, got %d", rec.Code)
	}

	if ledger.balance(accountID) != 10 {
		t.Fatalf("expected balance 10, got %d", ledger.balance(accountID))
	}
}

func TestWebhookEndpointBadSignature(t *testing.T) {
	handler := reconcile.NewHandler(reconcile.NewService(secretVerifier{}, newFakeTracker(), newFakeLedger(), nil, nil))
	payload := completedPayload("sess_http_2", uuid.New())

	rec := postWebhook(t, handler, payload, gateway.Sign(payload, "whsec_wrong"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestWebhookEndpointMalformedPayload(t *testing.T) {
	handler := reconcile.NewHandler(reconcile.NewService(secretVerifier{}, newFakeTracker(), newFakeLedger(), nil, nil))
	payload := []byte(`{"type":"checkout.session.completed","data":{"session":{}}}`)

	rec := postWebhook(t, handler, payload, sign(payload))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
