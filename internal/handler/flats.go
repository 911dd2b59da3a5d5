package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aryan0dhankhar/societyhub/internal/domain"
	"github.com/aryan0dhankhar/societyhub/internal/service"
)

// FlatHandler creates flats and saves their occupancy
type FlatHandler struct {
	occupancy *service.OccupancyService
	logger    *slog.Logger
}

// NewFlatHandler creates a new flat handler
func NewFlatHandler(occupancy *service.OccupancyService, logger *slog.Logger) *FlatHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &FlatHandler{
		occupancy: occupancy,
		logger:    logger,
	}
}

// OccupancyFields is the owner and tenant block shared by both flat writes
type OccupancyFields struct {
	Occupancy       domain.Occupancy `json:"occupancy" validate:"omitempty,oneof=Vacant Owner-Occupied Rented"`
	OwnerID         *int64           `json:"owner_id" validate:"omitempty,gt=0"`
	OwnerName       string           `json:"owner_name" validate:"max=200"`
	OwnerEmail      string           `json:"owner_email" validate:"max=255"`
	OwnerPhone      string           `json:"owner_phone" validate:"max=20"`
	OwnerAddress    string           `json:"owner_address" validate:"max=500"`
	ResidentID      *int64           `json:"resident_id" validate:"omitempty,gt=0"`
	ResidentName    string           `json:"resident_name" validate:"max=200"`
	ResidentEmail   string           `json:"resident_email" validate:"max=255"`
	ResidentPhone   string           `json:"resident_phone" validate:"max=20"`
	ResidentAddress string           `json:"resident_address" validate:"max=500"`
}

func (f *OccupancyFields) owner() *service.PersonInput {
	return &service.PersonInput{
		ID:      f.OwnerID,
		Name:    f.OwnerName,
		Email:   f.OwnerEmail,
		Phone:   f.OwnerPhone,
		Address: f.OwnerAddress,
	}
}

func (f *OccupancyFields) resident() *service.PersonInput {
	return &service.PersonInput{
		ID:      f.ResidentID,
		Name:    f.ResidentName,
		Email:   f.ResidentEmail,
		Phone:   f.ResidentPhone,
		Address: f.ResidentAddress,
	}
}

// CreateFlatRequest is the body of POST /society/flats
type CreateFlatRequest struct {
	FlatID string `json:"flat_id" validate:"required,max=16"`
	OccupancyFields
}

// Create handles POST /society/flats
func (h *FlatHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims, _, err := session(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	var req CreateFlatRequest
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.occupancy.CreateFlat(r.Context(), service.CreateFlatRequest{
		SocietyCode: claims.SocietyCode,
		FlatID:      req.FlatID,
		Occupancy:   req.Occupancy,
		Owner:       req.owner(),
		Resident:    req.resident(),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, result)
}

// Save handles PUT /society/flats/{id}
func (h *FlatHandler) Save(w http.ResponseWriter, r *http.Request) {
	claims, _, err := session(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	flatRowID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || flatRowID <= 0 {
		writeError(w, r, h.logger, domain.Validation("invalid flat id"))
		return
	}

	var req OccupancyFields
	if err := decode(r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.occupancy.UpsertOccupancy(r.Context(), service.UpsertOccupancyRequest{
		SocietyCode: claims.SocietyCode,
		FlatRowID:   flatRowID,
		Occupancy:   req.Occupancy,
		Owner:       req.owner(),
		Resident:    req.resident(),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, result)
}
