package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"deals-system/internal/logger"
	"deals-system/internal/models"
	"deals-system/internal/redis"

	"github.com/google/uuid"
)

// OfferHandler serves offer CRUD and the engagement tracking endpoints.
type OfferHandler struct {
	offerService      OfferService
	engagementService EngagementService
	producer          EventProducer
	redisClient       RedisClient
	log               *logger.Logger
}

// NewOfferHandler creates the offer handler.
func NewOfferHandler(offerService OfferService, engagementService EngagementService, producer EventProducer, redisClient RedisClient, log *logger.Logger) *OfferHandler {
	return &OfferHandler{
		offerService:      offerService,
		engagementService: engagementService,
		producer:          producer,
		redisClient:       redisClient,
		log:               log,
	}
}

// CreateOffer publishes an offer for an approved partner.
func (h *OfferHandler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.CreateOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	offer, err := h.offerService.CreateOffer(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to create offer")
		return
	}

	if h.redisClient != nil {
		cacheKey := redis.GenerateKey(redis.KeyPrefixOffer, offer.ID.String())
		if err := h.redisClient.Set(r.Context(), cacheKey, offer, defaultCacheTTL); err != nil {
			h.log.WithError(err).Error("Failed to cache offer")
		}
	}

	writeJSONResponse(w, http.StatusCreated, offer)
}

// GetOffer returns an offer by id, trying the cache first.
func (h *OfferHandler) GetOffer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	offerID, err := extractUUIDFromPath(r.URL.Path, "/api/offers/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	cacheKey := redis.GenerateKey(redis.KeyPrefixOffer, offerID.String())
	if h.redisClient != nil {
		var cached models.Offer
		if err := h.redisClient.Get(r.Context(), cacheKey, &cached); err == nil {
			writeJSONResponse(w, http.StatusOK, &cached)
			return
		}
	}

	offer, err := h.offerService.GetOffer(r.Context(), offerID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get offer")
		return
	}

	if h.redisClient != nil {
		if err := h.redisClient.Set(r.Context(), cacheKey, offer, defaultCacheTTL); err != nil {
			h.log.WithError(err).Error("Failed to cache offer")
		}
	}

	writeJSONResponse(w, http.StatusOK, offer)
}

// UpdateOffer edits an offer and invalidates its cache entry.
func (h *OfferHandler) UpdateOffer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	offerID, err := extractUUIDFromPath(r.URL.Path, "/api/offers/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	var req models.UpdateOfferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	offer, err := h.offerService.UpdateOffer(r.Context(), offerID, &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to update offer")
		return
	}

	if h.redisClient != nil {
		cacheKey := redis.GenerateKey(redis.KeyPrefixOffer, offerID.String())
		if err := h.redisClient.Delete(r.Context(), cacheKey); err != nil {
			h.log.WithError(err).Warn("Failed to invalidate offer cache")
		}
	}

	writeJSONResponse(w, http.StatusOK, offer)
}

// ListOffers returns offers with optional partner/category/active filters.
func (h *OfferHandler) ListOffers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	limit, offset := parsePagination(r)

	var partnerID *uuid.UUID
	if p := r.URL.Query().Get("partner_id"); p != "" {
		id, err := uuid.Parse(p)
		if err != nil {
			writeErrorResponse(w, http.StatusBadRequest, "Invalid partner_id")
			return
		}
		partnerID = &id
	}

	var category *string
	if c := r.URL.Query().Get("category"); c != "" {
		category = &c
	}

	activeOnly := strings.EqualFold(r.URL.Query().Get("active"), "true")

	offers, err := h.offerService.ListOffers(r.Context(), partnerID, category, activeOnly, limit, offset)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list offers")
		return
	}

	writeJSONResponse(w, http.StatusOK, offers)
}

// TrackView records a view of the offer.
func (h *OfferHandler) TrackView(w http.ResponseWriter, r *http.Request) {
	h.trackEngagement(w, r, models.EngagementView)
}

// TrackClick records a click on the offer.
func (h *OfferHandler) TrackClick(w http.ResponseWriter, r *http.Request) {
	h.trackEngagement(w, r, models.EngagementClick)
}

func (h *OfferHandler) trackEngagement(w http.ResponseWriter, r *http.Request, kind models.EngagementKind) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	offerID, err := extractUUIDFromPath(r.URL.Path, "/api/offers/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.engagementService.Increment(r.Context(), offerID, kind); err != nil {
		writeServiceError(w, h.log, err, "Failed to track engagement")
		return
	}

	if h.producer != nil {
		if err := h.producer.PublishOfferEngagement(offerID, kind); err != nil {
			h.log.WithError(err).Error("Failed to publish engagement event")
		}
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "recorded"})
}
