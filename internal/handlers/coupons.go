package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"deals-system/internal/logger"
	"deals-system/internal/models"
)

// CouponHandler serves minting, lookup and redemption of coupons.
type CouponHandler struct {
	couponService     CouponService
	redemptionService RedemptionService
	producer          EventProducer
	log               *logger.Logger
}

// NewCouponHandler creates the coupon handler.
func NewCouponHandler(couponService CouponService, redemptionService RedemptionService, producer EventProducer, log *logger.Logger) *CouponHandler {
	return &CouponHandler{
		couponService:     couponService,
		redemptionService: redemptionService,
		producer:          producer,
		log:               log,
	}
}

// MintCoupon issues (or idempotently returns) a coupon for (offer, member).
func (h *CouponHandler) MintCoupon(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.MintCouponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	coupon, minted, err := h.couponService.Mint(r.Context(), req.OfferID, req.MemberID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to mint coupon")
		return
	}

	// An idempotent mint returns the existing coupon: nothing was created,
	// so no event fires and the response is 200.
	if !minted {
		writeJSONResponse(w, http.StatusOK, coupon)
		return
	}

	if h.producer != nil {
		if err := h.producer.PublishCouponMinted(coupon); err != nil {
			h.log.WithError(err).Error("Failed to publish coupon minted event")
		}
	}

	writeJSONResponse(w, http.StatusCreated, coupon)
}

// GetCoupon returns a coupon by id.
func (h *CouponHandler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	couponID, err := extractUUIDFromPath(r.URL.Path, "/api/coupons/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	coupon, err := h.couponService.Get(r.Context(), couponID)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to get coupon")
		return
	}

	writeJSONResponse(w, http.StatusOK, coupon)
}

// RedeemCoupon burns a coupon at the partner's point of sale.
func (h *CouponHandler) RedeemCoupon(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	couponID, err := extractUUIDFromPath(r.URL.Path, "/api/coupons/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	var req models.RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.CouponID = couponID

	result, err := h.redemptionService.Redeem(r.Context(), &req)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to redeem coupon")
		return
	}

	writeJSONResponse(w, http.StatusOK, result)
}

// ListMemberCoupons returns a member's wallet.
func (h *CouponHandler) ListMemberCoupons(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	memberID, err := extractUUIDFromPath(r.URL.Path, "/api/members/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	filter, err := parseCouponFilter(r)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	coupons, err := h.couponService.ListForMember(r.Context(), memberID, filter)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list member coupons")
		return
	}

	writeJSONResponse(w, http.StatusOK, coupons)
}

// ListPartnerCoupons returns coupons minted against a partner's offers.
func (h *CouponHandler) ListPartnerCoupons(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	partnerID, err := extractUUIDFromPath(r.URL.Path, "/api/partners/")
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	filter, err := parseCouponFilter(r)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	coupons, err := h.couponService.ListForPartner(r.Context(), partnerID, filter)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to list partner coupons")
		return
	}

	views := make([]*models.PartnerCouponView, 0, len(coupons))
	for _, c := range coupons {
		views = append(views, c.PartnerView())
	}

	writeJSONResponse(w, http.StatusOK, views)
}

func parseCouponFilter(r *http.Request) (*models.CouponFilter, error) {
	limit, offset := parsePagination(r)
	filter := &models.CouponFilter{Limit: limit, Offset: offset}

	if s := r.URL.Query().Get("status"); s != "" {
		status := models.CouponStatus(strings.ToUpper(s))
		switch status {
		case models.CouponStatusActive, models.CouponStatusRedeemed, models.CouponStatusExpired:
			filter.Status = &status
		default:
			return nil, fmt.Errorf("invalid coupon status")
		}
	}

	return filter, nil
}
