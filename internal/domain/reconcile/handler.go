package reconcile

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/creditd/creditd-api/internal/pkg/response"
)

// maxWebhookBody bounds how much of a webhook payload is read.
const maxWebhookBody = 1 << 20

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Webhook handles POST /webhooks/payment. The transport is
// unauthenticated; the signature header is the authentication. Client
// errors are returned only for signature failure or a malformed
// payload. Everything else is either a 200 acknowledgement or a 500
// that makes the gateway deliver again.
func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(w, "could not read request body")
		return
	}

	err = h.svc.Reconcile(r.Context(), payload, r.Header.Get("X-Gateway-Signature"))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidSignature):
			response.Error(w, http.StatusBadRequest, "INVALID_SIGNATURE", "signature verification failed")
		case errors.Is(err, ErrMalformedPayload):
			response.BadRequest(w, "malformed event payload")
		default:
			// Not durably classified yet; let the gateway retry.
			log.Error().Err(err).Msg("webhook reconciliation failed")
			response.InternalError(w)
		}
		return
	}

	response.OK(w, map[string]interface{}{"received": true})
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/payment", h.Webhook)
	return r
}
