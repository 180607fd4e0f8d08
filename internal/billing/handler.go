// internal/billing/handler.go
package billing

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

// maxPayloadBytes bounds webhook bodies before signature verification.
const maxPayloadBytes = 1 << 20

type Handler struct {
	service Service
	flood   *rate.Limiter
}

// NewHandler wires the reconciler behind the webhook route. The flood
// limiter is a process-wide token bucket shielding the endpoint from a
// misbehaving provider retry storm; per-member fairness is not a
// concern here because the provider is the only caller.
func NewHandler(service Service) *Handler {
	return &Handler{
		service: service,
		flood:   rate.NewLimiter(rate.Limit(50), 100),
	}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/webhooks/payments", h.handlePaymentEvent)
}

func (h *Handler) handlePaymentEvent(w http.ResponseWriter, r *http.Request) {
	if !h.flood.Allow() {
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxPayloadBytes))
	if err != nil {
		http.Error(w, "unreadable payload", http.StatusBadRequest)
		return
	}

	err = h.service.HandleWebhook(r.Context(), payload, r.Header.Get("Signature"))
	switch {
	case errors.Is(err, ErrSignatureInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		// Non-2xx asks the provider to redeliver.
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusOK)
}
