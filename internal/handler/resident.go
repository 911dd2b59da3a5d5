package handler

import (
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/societyhub/internal/domain"
	"github.com/aryan0dhankhar/societyhub/internal/service"
)

// ResidentHandler serves a resident's own profile
type ResidentHandler struct {
	residents *service.ResidentService
	logger    *slog.Logger
}

// NewResidentHandler creates a new resident handler
func NewResidentHandler(residents *service.ResidentService, logger *slog.Logger) *ResidentHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &ResidentHandler{
		residents: residents,
		logger:    logger,
	}
}

// Profile handles GET /resident/profile
func (h *ResidentHandler) Profile(w http.ResponseWriter, r *http.Request) {
	_, id, err := session(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	profile, err := h.residents.Profile(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, profile)
}

// UpdateProfileRequest is the body of PUT /resident/profile
type UpdateProfileRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	Email   string `json:"email" validate:"required,max=255"`
	Phone   string `json:"phone" validate:"max=20"`
	Address string `json:"address" validate:"max=500"`
}

// UpdateProfile handles PUT /resident/profile
func (h *ResidentHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	_, id, err := session(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req UpdateProfileRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	profile, err := h.residents.UpdateProfile(r.Context(), id, domain.Contact{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, profile)
}
