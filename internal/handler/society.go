package handler

import (
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/societyhub/internal/domain"
	"github.com/aryan0dhankhar/societyhub/internal/service"
)

// SocietyHandler serves registration, the flat listing and the society profile
type SocietyHandler struct {
	societies *service.SocietyService
	logger    *slog.Logger
}

// NewSocietyHandler creates a new society handler
func NewSocietyHandler(societies *service.SocietyService, logger *slog.Logger) *SocietyHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &SocietyHandler{
		societies: societies,
		logger:    logger,
	}
}

// RegisterSocietyRequest is the body of POST /society/register
type RegisterSocietyRequest struct {
	SocietyCode   string `json:"society_code" validate:"omitempty,max=32"`
	SocietyName   string `json:"society_name" validate:"required,max=200"`
	Email         string `json:"email" validate:"required,max=255"`
	Password      string `json:"password" validate:"required,min=8,max=72"`
	Wings         int    `json:"no_of_wings" validate:"required,min=1,max=26"`
	FloorsPerWing int    `json:"floor_per_wing" validate:"required,min=1,max=99"`
	RoomsPerFloor int    `json:"rooms_per_floor" validate:"required,min=1,max=99"`
}

// Register handles POST /society/register
func (h *SocietyHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterSocietyRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.societies.Register(r.Context(), service.RegisterSocietyRequest{
		Code:          req.SocietyCode,
		Name:          req.SocietyName,
		Email:         req.Email,
		Password:      req.Password,
		Wings:         req.Wings,
		FloorsPerWing: req.FloorsPerWing,
		RoomsPerFloor: req.RoomsPerFloor,
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, result)
}

// FlatsResponse wraps the flat listing
type FlatsResponse struct {
	SocietyCode string                `json:"society_code"`
	Count       int                   `json:"count"`
	Flats       []*domain.FlatDetails `json:"flats"`
}

// ListFlats handles GET /society/flats for the session's society
func (h *SocietyHandler) ListFlats(w http.ResponseWriter, r *http.Request) {
	claims, _, err := session(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	flats, err := h.societies.ListFlatsWithDetails(r.Context(), claims.SocietyCode)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, FlatsResponse{
		SocietyCode: claims.SocietyCode,
		Count:       len(flats),
		Flats:       flats,
	})
}

// Profile handles GET /society/profile
func (h *SocietyHandler) Profile(w http.ResponseWriter, r *http.Request) {
	_, id, err := session(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	profile, err := h.societies.Profile(r.Context(), id)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, profile)
}
