package ledger

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/creditd/creditd-api/internal/middleware"
	"github.com/creditd/creditd-api/internal/pkg/response"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Balance handles GET /credits/balance
func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())
	if accountID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	balance, err := h.svc.Balance(r.Context(), accountID)
	if err != nil {
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"balance": balance})
}

// Spend handles POST /credits/spend. It gates the protected action: on
// 402 the caller must not proceed. A credit consumed here is not
// refunded if the downstream work later fails.
func (h *Handler) Spend(w http.ResponseWriter, r *http.Request) {
	accountID := middleware.GetAccountID(r.Context())
	if accountID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	remaining, err := h.svc.AttemptSpend(r.Context(), accountID, middleware.GetEmail(r.Context()))
	if err != nil {
		if errors.Is(err, ErrInsufficientCredits) {
			response.PaymentRequired(w, "insufficient credits")
			return
		}
		response.InternalError(w)
		return
	}

	response.OK(w, map[string]interface{}{"remaining": remaining})
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Get("/balance", h.Balance)
	r.Post("/spend", h.Spend)
	return r
}
