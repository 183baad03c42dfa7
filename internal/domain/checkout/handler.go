package checkout

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/creditd/creditd-api/internal/middleware"
	"github.com/creditd/creditd-api/internal/pkg/errorhandler"
	"github.com/creditd/creditd-api/internal/pkg/gateway"
	"github.com/creditd/creditd-api/internal/pkg/response"
	"github.com/creditd/creditd-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type createCheckoutRequest struct {
	PackID string `json:"pack_id" validate:"required,min=1,max=64"`
}

// CreateCheckout handles POST /checkout
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())
	if accountID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var req createCheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return
	}
	if details := validator.Validate(req); details != nil {
		response.ValidationError(w, details)
		return
	}

	redirectURL, err := h.svc.CreateCheckout(r.Context(), accountID, middleware.ClientIP(r), req.PackID, middleware.GetEmail(r.Context()))
	if err != nil {
		var limited *RateLimitedError
		switch {
		case errors.As(err, &limited):
			retryAfter := 0
			if !limited.RetryAfter.IsZero() {
				retryAfter = int(time.Until(limited.RetryAfter).Seconds())
			}
			response.TooManyRequests(w, limited.Reason, retryAfter)
		case errors.Is(err, ErrUnknownPack):
			// Deployment mismatch between pack catalog and gateway
			// prices; operators need to see this, users cannot fix it.
			errorhandler.HandleError(r.Context(), w, http.StatusInternalServerError,
				"CONFIGURATION_ERROR", "credit pack is not configured", err)
		case errors.Is(err, gateway.ErrUnavailable), errors.Is(err, gateway.ErrRejected):
			errorhandler.HandleError(r.Context(), w, http.StatusBadGateway,
				"GATEWAY_ERROR", "payment gateway is unavailable, try again later", err)
		default:
			response.InternalError(w)
		}
		return
	}

	response.OK(w, map[string]interface{}{"redirect_url": redirectURL})
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Post("/", h.CreateCheckout)
	return r
}
