package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"deals-system/internal/logger"
	"deals-system/internal/models"
)

// PartnerHandler serves the partner registry and admin review endpoints.
type PartnerHandler struct {
	partnerService PartnerService
	producer       EventProducer
	log            *logger.Logger
}

// NewPartnerHandler creates the partner handler.
func NewPartnerHandler(partnerService PartnerService, producer EventProducer, log *logger.Logger) *PartnerHandler {
	return &PartnerHandler{
		partnerService: partnerService,
		producer:       producer,
		log:            log,
	}
}

// CreatePartner registers a partner in pending state.
func (h *PartnerHandler) CreatePartner(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.CreatePartnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	partner, err := h.partnerService.CreatePartner(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create partner")
		return
	}

	writeJSONResponse(w, http.StatusCreated, partner)
}

// GetPartner returns a partner by id.
func (h *PartnerHandler) GetPartner(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	partnerID, err := extractUUIDFromPath(r.URL.Path, "/api/partners/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	partner, err := h.partnerService.GetPartner(r.Context(), partnerID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get partner")
		return
	}

	writeJSONResponse(w, http.StatusOK, partner)
}

// ListPartners returns partners, optionally filtered by status.
func (h *PartnerHandler) ListPartners(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit, offset := parsePagination(r)

	var status *models.PartnerStatus
	if s := r.URL.Query().Get("status"); s != "" {
		parsed := models.PartnerStatus(strings.ToLower(s))
		switch parsed {
		case models.PartnerStatusPending, models.PartnerStatusApproved, models.PartnerStatusRejected:
			status = &parsed
		default:
			writeErrorResponse(w, http.StatusBadRequest, "Invalid partner status")
			return
		}
	}

	partners, err := h.partnerService.ListPartners(r.Context(), status, limit, offset)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list partners")
		return
	}

	writeJSONResponse(w, http.StatusOK, partners)
}

// ReviewPartner applies an admin approval decision to a pending partner.
func (h *PartnerHandler) ReviewPartner(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	partnerID, err := extractUUIDFromPath(r.URL.Path, "/api/partners/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	var req models.ReviewPartnerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	partner, err := h.partnerService.ReviewPartner(r.Context(), partnerID, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to review partner")
		return
	}

	if h.producer != nil {
		if err := h.producer.PublishPartnerReviewed(partner.ID, partner.Status); err != nil {
			h.log.WithError(err).Error("Failed to publish partner reviewed event")
		}
	}

	writeJSONResponse(w, http.StatusOK, partner)
}
