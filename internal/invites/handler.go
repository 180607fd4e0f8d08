// internal/invites/handler.go
package invites

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/invites/validate", h.handleValidate)
	r.Post("/invites/redeem", h.handleRedeem)
	r.Post("/admin/invites", h.handleCreate)
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	validation, err := h.service.Validate(r.Context(), req.Code)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(validation)
}

func (h *Handler) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code  string `json:"code"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Code == "" || req.Email == "" {
		http.Error(w, "code and email are required", http.StatusBadRequest)
		return
	}

	redemption, err := h.service.Redeem(r.Context(), req.Code, req.Email)
	switch {
	case errors.Is(err, ErrInvalidInvite):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, ErrAlreadyUsed), errors.Is(err, ErrCapReached):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	json.NewEncoder(w).Encode(map[string]string{
		"member_id":      redemption.MemberID.String(),
		"callback_token": redemption.CallbackToken,
	})
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code           string   `json:"code"`
		InvitedBy      string   `json:"invited_by"`
		MembershipType string   `json:"membership_type"`
		Reusable       bool     `json:"reusable"`
		TargetName     *string  `json:"target_name"`
		TargetCountry  *string  `json:"target_country"`
		TargetCity     *string  `json:"target_city"`
		TargetLat      *float64 `json:"target_lat"`
		TargetLng      *float64 `json:"target_lng"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	inviter, err := uuid.Parse(req.InvitedBy)
	if err != nil {
		http.Error(w, "invalid inviter ID", http.StatusBadRequest)
		return
	}

	invite, err := h.service.CreateInvite(r.Context(), CreateInput{
		Code:           req.Code,
		InvitedBy:      inviter,
		MembershipType: req.MembershipType,
		Reusable:       req.Reusable,
		TargetName:     req.TargetName,
		TargetCountry:  req.TargetCountry,
		TargetCity:     req.TargetCity,
		TargetLat:      req.TargetLat,
		TargetLng:      req.TargetLng,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(invite)
}
