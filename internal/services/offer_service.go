package services

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"deals-system/internal/apperror"
	"deals-system/internal/database"
	"deals-system/internal/logger"
	"deals-system/internal/models"

	"github.com/google/uuid"
)

// OfferService owns offer records. Engagement counters live on the offer
// row but are mutated only through the engagement service.
type OfferService struct {
	db  *database.DB
	log *logger.Logger
}

// NewOfferService creates the offer service.
func NewOfferService(db *database.DB, log *logger.Logger) *OfferService {
	return &OfferService{
		db:  db,
		log: log,
	}
}

// CreateOffer publishes an offer for an approved partner.
func (s *OfferService) CreateOffer(ctx context.Context, req *models.CreateOfferRequest) (*models.Offer, error) {
	if err := validateOfferPayload(req.Title, req.OriginalPrice, req.DiscountedPrice, req.ExpiryDate, req.CouponExpiryDays); err != nil {
		return nil, apperror.Validation(err.Error(), err)
	}

	var partnerStatus models.PartnerStatus
	if err := s.db.QueryRowContext(ctx, "SELECT status FROM partners WHERE id = $1", req.PartnerID).Scan(&partnerStatus); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("partner not found", err)
		}
		return nil, fmt.Errorf("failed to get partner status: %w", err)
	}
	if partnerStatus != models.PartnerStatusApproved {
		return nil, apperror.NotEligible("partner is not approved", nil)
	}

	offer := &models.Offer{
		ID:               uuid.New(),
		PartnerID:        req.PartnerID,
		Title:            req.Title,
		Description:      req.Description,
		Category:         req.Category,
		OriginalPrice:    req.OriginalPrice,
		DiscountedPrice:  req.DiscountedPrice,
		DiscountPercent:  discountPercent(req.OriginalPrice, req.DiscountedPrice),
		CouponColor:      req.CouponColor,
		CouponExpiryDays: req.CouponExpiryDays,
		ExpiryDate:       req.ExpiryDate,
		IsActive:         req.IsActive,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}

	query := `
		INSERT INTO offers (id, partner_id, title, description, category, original_price, discounted_price, discount_percent, coupon_color, coupon_expiry_days, expiry_date, is_active, views, clicks, redemptions, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 0, 0, 0, $13, $14)
	`
	_, err := s.db.ExecContext(ctx, query, offer.ID, offer.PartnerID, offer.Title, offer.Description, offer.Category,
		offer.OriginalPrice, offer.DiscountedPrice, offer.DiscountPercent, offer.CouponColor, offer.CouponExpiryDays,
		offer.ExpiryDate, offer.IsActive, offer.CreatedAt, offer.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create offer: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"offer_id":   offer.ID,
		"partner_id": offer.PartnerID,
	}).Info("Offer created")

	return offer, nil
}

// UpdateOffer edits an offer. Counters are untouched; already minted
// coupons keep the color and expiry resolved at their mint time.
func (s *OfferService) UpdateOffer(ctx context.Context, offerID uuid.UUID, req *models.UpdateOfferRequest) (*models.Offer, error) {
	if err := validateOfferPayload(req.Title, req.OriginalPrice, req.DiscountedPrice, req.ExpiryDate, req.CouponExpiryDays); err != nil {
		return nil, apperror.Validation(err.Error(), err)
	}

	query := `
		UPDATE offers
		SET title = $1, description = $2, category = $3, original_price = $4, discounted_price = $5,
		    discount_percent = $6, coupon_color = $7, coupon_expiry_days = $8, expiry_date = $9,
		    is_active = $10, updated_at = $11
		WHERE id = $12
	`
	result, err := s.db.ExecContext(ctx, query, req.Title, req.Description, req.Category, req.OriginalPrice,
		req.DiscountedPrice, discountPercent(req.OriginalPrice, req.DiscountedPrice), req.CouponColor,
		req.CouponExpiryDays, req.ExpiryDate, req.IsActive, time.Now(), offerID)
	if err != nil {
		return nil, fmt.Errorf("failed to update offer: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, apperror.NotFound("offer not found", nil)
	}

	return s.GetOffer(ctx, offerID)
}

// GetOffer returns an offer by id.
func (s *OfferService) GetOffer(ctx context.Context, offerID uuid.UUID) (*models.Offer, error) {
	query := `
		SELECT id, partner_id, title, description, category, original_price, discounted_price, discount_percent,
		       coupon_color, coupon_expiry_days, expiry_date, is_active, views, clicks, redemptions, created_at, updated_at
		FROM offers
		WHERE id = $1
	`

	offer := &models.Offer{}
	if err := s.db.QueryRowContext(ctx, query, offerID).Scan(
		&offer.ID, &offer.PartnerID, &offer.Title, &offer.Description, &offer.Category,
		&offer.OriginalPrice, &offer.DiscountedPrice, &offer.DiscountPercent,
		&offer.CouponColor, &offer.CouponExpiryDays, &offer.ExpiryDate, &offer.IsActive,
		&offer.Views, &offer.Clicks, &offer.Redemptions, &offer.CreatedAt, &offer.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("offer not found", err)
		}
		return nil, fmt.Errorf("failed to get offer: %w", err)
	}
	return offer, nil
}

// ListOffers returns offers with optional partner/category/active filters.
func (s *OfferService) ListOffers(ctx context.Context, partnerID *uuid.UUID, category *string, activeOnly bool, limit, offset int) ([]*models.Offer, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, partner_id, title, description, category, original_price, discounted_price, discount_percent,
		       coupon_color, coupon_expiry_days, expiry_date, is_active, views, clicks, redemptions, created_at, updated_at
		FROM offers
	`
	var conditions []string
	var args []interface{}

	if partnerID != nil {
		args = append(args, *partnerID)
		conditions = append(conditions, fmt.Sprintf("partner_id = $%d", len(args)))
	}
	if category != nil && *category != "" {
		args = append(args, *category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}
	if activeOnly {
		args = append(args, time.Now())
		conditions = append(conditions, fmt.Sprintf("is_active = true AND expiry_date > $%d", len(args)))
	}
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}
	defer rows.Close()

	var offers []*models.Offer
	for rows.Next() {
		o := &models.Offer{}
		if err := rows.Scan(&o.ID, &o.PartnerID, &o.Title, &o.Description, &o.Category,
			&o.OriginalPrice, &o.DiscountedPrice, &o.DiscountPercent,
			&o.CouponColor, &o.CouponExpiryDays, &o.ExpiryDate, &o.IsActive,
			&o.Views, &o.Clicks, &o.Redemptions, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan offer: %w", err)
		}
		offers = append(offers, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate offers: %w", err)
	}

	return offers, nil
}

func validateOfferPayload(title string, originalPrice, discountedPrice float64, expiryDate time.Time, couponExpiryDays *int) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("offer title is required")
	}
	if originalPrice <= 0 {
		return fmt.Errorf("original price must be positive")
	}
	if discountedPrice < 0 || discountedPrice > originalPrice {
		return fmt.Errorf("discounted price must be between 0 and the original price")
	}
	if expiryDate.IsZero() {
		return fmt.Errorf("expiry date is required")
	}
	if couponExpiryDays != nil && *couponExpiryDays < 0 {
		return fmt.Errorf("coupon expiry days must be non-negative")
	}
	return nil
}

func discountPercent(originalPrice, discountedPrice float64) float64 {
	if originalPrice <= 0 {
		return 0
	}
	return round2((originalPrice - discountedPrice) / originalPrice * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
