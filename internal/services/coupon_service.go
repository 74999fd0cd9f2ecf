package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"deals-system/internal/apperror"
	"deals-system/internal/database"
	"deals-system/internal/logger"
	"deals-system/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

// activePairConstraint is the partial unique index on (offer_id, member_id)
// WHERE status = 'ACTIVE'. A violation means a concurrent mint won the race.
const activePairConstraint = "uq_coupons_active_pair"

// CouponService is the coupon ledger: it owns coupon rows and their state
// machine. Expiry is resolved lazily on read; there is no background sweep.
type CouponService struct {
	db      *database.DB
	log     *logger.Logger
	codegen *CodeGenerator
}

// NewCouponService creates the coupon ledger.
func NewCouponService(db *database.DB, log *logger.Logger, codegen *CodeGenerator) *CouponService {
	return &CouponService{
		db:      db,
		log:     log,
		codegen: codegen,
	}
}

// Mint issues a coupon for (offer, member). The mint is idempotent: if the
// member already holds an ACTIVE unexpired coupon for the offer, that coupon
// is returned instead of a new one, with minted false. Two concurrent mints
// are resolved by the partial unique index on (offer_id, member_id) WHERE
// status='ACTIVE'; the loser re-fetches and returns the winner's coupon.
func (s *CouponService) Mint(ctx context.Context, offerID, memberID uuid.UUID) (*models.Coupon, bool, error) {
	offer, partnerStatus, err := s.offerForMint(ctx, offerID)
	if err != nil {
		return nil, false, err
	}

	now := time.Now()
	if partnerStatus != models.PartnerStatusApproved {
		return nil, false, apperror.NotEligible("offer partner is not approved", nil)
	}
	if !offer.IsActive {
		return nil, false, apperror.NotEligible("offer is not active", nil)
	}
	if !offer.ExpiryDate.After(now) {
		return nil, false, apperror.NotEligible("offer has expired", nil)
	}

	if existing, err := s.activeCoupon(ctx, offerID, memberID, now); err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, false, nil
	}

	expiryDate, err := ResolveExpiry(offer, now)
	if err != nil {
		s.log.WithError(err).WithField("offer_id", offerID).Error("Expiry resolution failed after eligibility check")
		return nil, false, err
	}

	code, token, err := s.codegen.GenerateCode(ctx, s.CodeExists)
	if err != nil {
		return nil, false, err
	}

	coupon := &models.Coupon{
		ID:              uuid.New(),
		OfferID:         offerID,
		PartnerID:       offer.PartnerID,
		MemberID:        memberID,
		CouponCode:      code,
		RedemptionToken: token,
		Status:          models.CouponStatusActive,
		CouponColor:     offer.CouponColor,
		IssuedAt:        now,
		ExpiryDate:      expiryDate,
	}

	query := `
		INSERT INTO coupons (id, offer_id, partner_id, member_id, coupon_code, redemption_token, status, coupon_color, issued_at, expiry_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.db.ExecContext(ctx, query, coupon.ID, coupon.OfferID, coupon.PartnerID, coupon.MemberID,
		coupon.CouponCode, coupon.RedemptionToken, coupon.Status, coupon.CouponColor, coupon.IssuedAt, coupon.ExpiryDate)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation && pqErr.Constraint == activePairConstraint {
			// Lost a concurrent mint race; return the winner's coupon.
			winner, ferr := s.activeCoupon(ctx, offerID, memberID, now)
			if ferr != nil {
				return nil, false, ferr
			}
			if winner != nil {
				return winner, false, nil
			}
			return nil, false, apperror.Conflict("concurrent mint detected, retry", err)
		}
		return nil, false, fmt.Errorf("failed to insert coupon: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"coupon_id": coupon.ID,
		"offer_id":  offerID,
		"member_id": memberID,
	}).Info("Coupon minted")

	return coupon, true, nil
}

// Get returns a coupon by id, with lazily normalized expiry.
func (s *CouponService) Get(ctx context.Context, couponID uuid.UUID) (*models.Coupon, error) {
	coupon, err := s.scanCoupon(s.db.QueryRowContext(ctx, selectCoupon+" WHERE id = $1", couponID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("coupon not found", err)
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}

	s.normalizeExpiry(ctx, coupon, time.Now())
	return coupon, nil
}

// ListForMember returns a member's coupons, newest first.
func (s *CouponService) ListForMember(ctx context.Context, memberID uuid.UUID, filter *models.CouponFilter) ([]*models.Coupon, error) {
	return s.list(ctx, "member_id", memberID, filter)
}

// ListForPartner returns the coupons minted against a partner's offers.
func (s *CouponService) ListForPartner(ctx context.Context, partnerID uuid.UUID, filter *models.CouponFilter) ([]*models.Coupon, error) {
	return s.list(ctx, "partner_id", partnerID, filter)
}

// CodeExists reports whether a coupon code was ever issued. Codes are
// never reused, so the probe covers the full historical set.
func (s *CouponService) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM coupons WHERE coupon_code = $1)", code).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check coupon code: %w", err)
	}
	return exists, nil
}

const selectCoupon = `
	SELECT id, offer_id, partner_id, member_id, coupon_code, redemption_token, status, coupon_color, issued_at, expiry_date, redeemed_at
	FROM coupons`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *CouponService) scanCoupon(row rowScanner) (*models.Coupon, error) {
	c := &models.Coupon{}
	err := row.Scan(&c.ID, &c.OfferID, &c.PartnerID, &c.MemberID, &c.CouponCode, &c.RedemptionToken,
		&c.Status, &c.CouponColor, &c.IssuedAt, &c.ExpiryDate, &c.RedeemedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CouponService) list(ctx context.Context, column string, id uuid.UUID, filter *models.CouponFilter) ([]*models.Coupon, error) {
	limit := 50
	offset := 0
	var status *models.CouponStatus
	if filter != nil {
		if filter.Limit > 0 {
			limit = filter.Limit
		}
		if filter.Offset > 0 {
			offset = filter.Offset
		}
		status = filter.Status
	}

	now := time.Now()
	query := selectCoupon + fmt.Sprintf(" WHERE %s = $1", column)
	args := []interface{}{id}
	if status != nil {
		args = append(args, *status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
		// An ACTIVE filter must not surface rows whose persisted status is
		// stale; lazy expiry would relabel them EXPIRED in the response.
		if *status == models.CouponStatusActive {
			args = append(args, now)
			query += fmt.Sprintf(" AND expiry_date > $%d", len(args))
		}
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(" ORDER BY issued_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	defer rows.Close()
	var coupons []*models.Coupon
	for rows.Next() {
		c, err := s.scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coupon: %w", err)
		}
		coupons = append(coupons, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate coupons: %w", err)
	}

	for _, c := range coupons {
		s.normalizeExpiry(ctx, c, now)
	}

	return coupons, nil
}

// normalizeExpiry applies lazy expiry: an ACTIVE coupon past its expiry
// date is reported as EXPIRED, and the persisted row is corrected
// opportunistically. The conditional update makes the fix idempotent and
// safe against a concurrent redemption.
func (s *CouponService) normalizeExpiry(ctx context.Context, coupon *models.Coupon, now time.Time) {
	if coupon.Status != models.CouponStatusActive || coupon.ExpiryDate.After(now) {
		return
	}

	coupon.Status = models.CouponStatusExpired

	_, err := s.db.ExecContext(ctx,
		"UPDATE coupons SET status = $1 WHERE id = $2 AND status = $3",
		models.CouponStatusExpired, coupon.ID, models.CouponStatusActive)
	if err != nil {
		s.log.WithError(err).WithField("coupon_id", coupon.ID).Warn("Failed to persist lazy expiry")
	}
}

// offerForMint loads the offer together with its partner's approval status
// in one query; the partner gate applies at mint time.
func (s *CouponService) offerForMint(ctx context.Context, offerID uuid.UUID) (*models.Offer, models.PartnerStatus, error) {
	query := `
		SELECT o.id, o.partner_id, o.coupon_color, o.coupon_expiry_days, o.expiry_date, o.is_active, p.status
		FROM offers o
		JOIN partners p ON p.id = o.partner_id
		WHERE o.id = $1
	`

	offer := &models.Offer{}
	var partnerStatus models.PartnerStatus
	err := s.db.QueryRowContext(ctx, query, offerID).Scan(
		&offer.ID, &offer.PartnerID, &offer.CouponColor, &offer.CouponExpiryDays,
		&offer.ExpiryDate, &offer.IsActive, &partnerStatus,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, "", apperror.NotFound("offer not found", err)
		}
		return nil, "", fmt.Errorf("failed to load offer for mint: %w", err)
	}

	return offer, partnerStatus, nil
}

// activeCoupon finds the member's ACTIVE unexpired coupon for an offer.
func (s *CouponService) activeCoupon(ctx context.Context, offerID, memberID uuid.UUID, now time.Time) (*models.Coupon, error) {
	query := selectCoupon + " WHERE offer_id = $1 AND member_id = $2 AND status = $3 AND expiry_date > $4"
	coupon, err := s.scanCoupon(s.db.QueryRowContext(ctx, query, offerID, memberID, models.CouponStatusActive, now))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to check existing coupon: %w", err)
	}
	return coupon, nil
}
