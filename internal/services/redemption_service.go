package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"deals-system/internal/apperror"
	"deals-system/internal/database"
	"deals-system/internal/logger"
	"deals-system/internal/models"

	"github.com/google/uuid"
)

// RedemptionPublisher publishes redemption events. Publishing is best
// effort; a broker outage never fails a redemption that already committed.
type RedemptionPublisher interface {
	PublishCouponRedeemed(result *models.RedemptionResult) error
}

// RedemptionService burns coupons at the partner's point of sale. A coupon
// is redeemed at most once: the only state transition is a single
// conditional UPDATE from ACTIVE, so two concurrent redemptions can never
// both succeed regardless of interleaving.
type RedemptionService struct {
	db         *database.DB
	log        *logger.Logger
	engagement *EngagementService
	publisher  RedemptionPublisher
}

// NewRedemptionService wires the redemption path.
func NewRedemptionService(db *database.DB, log *logger.Logger, engagement *EngagementService, publisher RedemptionPublisher) *RedemptionService {
	return &RedemptionService{
		db:         db,
		log:        log,
		engagement: engagement,
		publisher:  publisher,
	}
}

// Redeem validates the presented token and partner, then attempts the
// ACTIVE -> REDEEMED transition. Failure ordering: unknown or mismatched
// token first, then wrong partner, then partner standing, then expiry, then
// double redemption.
func (s *RedemptionService) Redeem(ctx context.Context, req *models.RedeemRequest) (*models.RedemptionResult, error) {
	if req.RedemptionToken == "" {
		return nil, apperror.InvalidToken("redemption token is required", nil)
	}

	coupon, partnerStatus, err := s.couponByToken(ctx, req.RedemptionToken)
	if err != nil {
		return nil, err
	}

	// A token that resolves to a different coupon is treated the same as an
	// unknown token, so the response does not confirm the token exists.
	if req.CouponID != uuid.Nil && coupon.ID != req.CouponID {
		return nil, apperror.InvalidToken("invalid redemption token", nil)
	}

	if coupon.PartnerID != req.PartnerID {
		s.log.WithFields(map[string]interface{}{
			"coupon_id":          coupon.ID,
			"coupon_partner_id":  coupon.PartnerID,
			"request_partner_id": req.PartnerID,
		}).Warn("Redemption attempted at wrong partner")
		return nil, apperror.WrongPartner("coupon belongs to a different partner", nil)
	}

	// A partner that lost its approved standing keeps its issued coupons
	// visible but can no longer honor them.
	if partnerStatus != models.PartnerStatusApproved {
		return nil, apperror.NotEligible("partner is not approved for redemptions", nil)
	}

	now := time.Now()
	if coupon.Status == models.CouponStatusActive && !coupon.ExpiryDate.After(now) {
		s.expireLazily(ctx, coupon.ID)
		return nil, apperror.Expired("coupon has expired", nil)
	}

	switch coupon.Status {
	case models.CouponStatusExpired:
		return nil, apperror.Expired("coupon has expired", nil)
	case models.CouponStatusRedeemed:
		return nil, apperror.AlreadyRedeemed("coupon already redeemed", formatRedeemedAt(coupon.RedeemedAt))
	}

	redeemedAt := now
	res, err := s.db.ExecContext(ctx,
		"UPDATE coupons SET status = $1, redeemed_at = $2 WHERE id = $3 AND status = $4",
		models.CouponStatusRedeemed, redeemedAt, coupon.ID, models.CouponStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to redeem coupon: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read redemption result: %w", err)
	}
	if affected == 0 {
		// Lost the race: someone else moved the coupon out of ACTIVE
		// between our read and the update. Re-read to report what won.
		return nil, s.concurrentOutcome(ctx, coupon.ID)
	}

	result := &models.RedemptionResult{
		CouponID:   coupon.ID,
		OfferID:    coupon.OfferID,
		MemberID:   coupon.MemberID,
		CouponCode: coupon.CouponCode,
		RedeemedAt: redeemedAt,
	}

	s.log.WithFields(map[string]interface{}{
		"coupon_id":  coupon.ID,
		"offer_id":   coupon.OfferID,
		"partner_id": coupon.PartnerID,
	}).Info("Coupon redeemed")

	// The redemption is committed; counter and event follow best effort.
	if err := s.engagement.IncrementRedemption(ctx, coupon.OfferID); err != nil {
		s.log.WithError(err).WithField("offer_id", coupon.OfferID).Error("Failed to increment redemption counter")
	}
	if s.publisher != nil {
		if err := s.publisher.PublishCouponRedeemed(result); err != nil {
			s.log.WithError(err).WithField("coupon_id", coupon.ID).Error("Failed to publish redemption event")
		}
	}

	return result, nil
}

func (s *RedemptionService) couponByToken(ctx context.Context, token string) (*models.Coupon, models.PartnerStatus, error) {
	query := `
		SELECT c.id, c.offer_id, c.partner_id, c.member_id, c.coupon_code, c.redemption_token,
		       c.status, c.coupon_color, c.issued_at, c.expiry_date, c.redeemed_at, p.status
		FROM coupons c
		JOIN partners p ON p.id = c.partner_id
		WHERE c.redemption_token = $1`

	c := &models.Coupon{}
	var partnerStatus models.PartnerStatus
	err := s.db.QueryRowContext(ctx, query, token).Scan(
		&c.ID, &c.OfferID, &c.PartnerID, &c.MemberID, &c.CouponCode, &c.RedemptionToken,
		&c.Status, &c.CouponColor, &c.IssuedAt, &c.ExpiryDate, &c.RedeemedAt, &partnerStatus)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, "", apperror.InvalidToken("invalid redemption token", err)
		}
		return nil, "", fmt.Errorf("failed to look up redemption token: %w", err)
	}
	return c, partnerStatus, nil
}

// concurrentOutcome re-reads a coupon after a failed conditional update and
// returns the typed error describing the state that beat us to it.
func (s *RedemptionService) concurrentOutcome(ctx context.Context, couponID uuid.UUID) error {
	var status models.CouponStatus
	var redeemedAt *time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT status, redeemed_at FROM coupons WHERE id = $1", couponID).Scan(&status, &redeemedAt)
	if err != nil {
		return fmt.Errorf("failed to re-read coupon after redemption conflict: %w", err)
	}

	switch status {
	case models.CouponStatusRedeemed:
		return apperror.AlreadyRedeemed("coupon already redeemed", formatRedeemedAt(redeemedAt))
	case models.CouponStatusExpired:
		return apperror.Expired("coupon has expired", nil)
	default:
		return apperror.Conflict("redemption conflict, retry", nil)
	}
}

func (s *RedemptionService) expireLazily(ctx context.Context, couponID uuid.UUID) {
	_, err := s.db.ExecContext(ctx,
		"UPDATE coupons SET status = $1 WHERE id = $2 AND status = $3",
		models.CouponStatusExpired, couponID, models.CouponStatusActive)
	if err != nil {
		s.log.WithError(err).WithField("coupon_id", couponID).Warn("Failed to persist lazy expiry")
	}
}

func formatRedeemedAt(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
