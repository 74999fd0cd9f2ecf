package models

import (
	"time"

	"github.com/google/uuid"
)

// CouponStatus represents the lifecycle state of a coupon
type CouponStatus string

const (
	CouponStatusActive   CouponStatus = "ACTIVE"
	CouponStatusRedeemed CouponStatus = "REDEEMED"
	CouponStatusExpired  CouponStatus = "EXPIRED"
)

// Coupon is a single-use redemption right minted from an offer for one
// member. PartnerID is denormalized from the offer at mint time so the
// redemption path needs no join; CouponColor is copied for the same
// reason, so later offer edits don't alter issued coupons.
type Coupon struct {
	ID              uuid.UUID    `json:"id" db:"id"`
	OfferID         uuid.UUID    `json:"offer_id" db:"offer_id"`
	PartnerID       uuid.UUID    `json:"partner_id" db:"partner_id"`
	MemberID        uuid.UUID    `json:"member_id" db:"member_id"`
	CouponCode      string       `json:"coupon_code" db:"coupon_code"`
	RedemptionToken string       `json:"redemption_token" db:"redemption_token"`
	Status          CouponStatus `json:"status" db:"status"`
	CouponColor     string       `json:"coupon_color" db:"coupon_color"`
	IssuedAt        time.Time    `json:"issued_at" db:"issued_at"`
	ExpiryDate      time.Time    `json:"expiry_date" db:"expiry_date"`
	RedeemedAt      *time.Time   `json:"redeemed_at,omitempty" db:"redeemed_at"`
}

// PartnerCouponView is the partner-facing projection of a coupon. It omits
// the redemption token: only the member's QR payload may carry the token,
// so nothing a partner can list is sufficient to forge a redemption.
type PartnerCouponView struct {
	ID          uuid.UUID    `json:"id"`
	OfferID     uuid.UUID    `json:"offer_id"`
	PartnerID   uuid.UUID    `json:"partner_id"`
	MemberID    uuid.UUID    `json:"member_id"`
	CouponCode  string       `json:"coupon_code"`
	Status      CouponStatus `json:"status"`
	CouponColor string       `json:"coupon_color"`
	IssuedAt    time.Time    `json:"issued_at"`
	ExpiryDate  time.Time    `json:"expiry_date"`
	RedeemedAt  *time.Time   `json:"redeemed_at,omitempty"`
}

// PartnerView strips the coupon down to what a partner may see.
func (c *Coupon) PartnerView() *PartnerCouponView {
	return &PartnerCouponView{
		ID:          c.ID,
		OfferID:     c.OfferID,
		PartnerID:   c.PartnerID,
		MemberID:    c.MemberID,
		CouponCode:  c.CouponCode,
		Status:      c.Status,
		CouponColor: c.CouponColor,
		IssuedAt:    c.IssuedAt,
		ExpiryDate:  c.ExpiryDate,
		RedeemedAt:  c.RedeemedAt,
	}
}

// MintCouponRequest represents a member requesting a coupon for an offer
type MintCouponRequest struct {
	OfferID  uuid.UUID `json:"offer_id"`
	MemberID uuid.UUID `json:"member_id"`
}

// RedeemRequest carries the decoded QR payload plus the scanning
// partner's identity. The QR payload encodes {coupon_id, redemption_token}.
type RedeemRequest struct {
	CouponID        uuid.UUID `json:"coupon_id"`
	RedemptionToken string    `json:"redemption_token"`
	PartnerID       uuid.UUID `json:"partner_id"`
}

// RedemptionResult is returned on a successful redemption
type RedemptionResult struct {
	CouponID   uuid.UUID `json:"coupon_id"`
	OfferID    uuid.UUID `json:"offer_id"`
	MemberID   uuid.UUID `json:"member_id"`
	CouponCode string    `json:"coupon_code"`
	RedeemedAt time.Time `json:"redeemed_at"`
}

// CouponFilter narrows coupon list queries
type CouponFilter struct {
	Status *CouponStatus
	Limit  int
	Offset int
}
