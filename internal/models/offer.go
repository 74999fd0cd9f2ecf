package models

import (
	"time"

	"github.com/google/uuid"
)

// Offer represents a time-bounded discount published by a partner.
// Views, clicks and redemptions are monotonic engagement counters
// incremented at the storage layer.
type Offer struct {
	ID               uuid.UUID `json:"id" db:"id"`
	PartnerID        uuid.UUID `json:"partner_id" db:"partner_id"`
	Title            string    `json:"title" db:"title"`
	Description      string    `json:"description" db:"description"`
	Category         string    `json:"category" db:"category"`
	OriginalPrice    float64   `json:"original_price" db:"original_price"`
	DiscountedPrice  float64   `json:"discounted_price" db:"discounted_price"`
	DiscountPercent  float64   `json:"discount_percent" db:"discount_percent"`
	CouponColor      string    `json:"coupon_color" db:"coupon_color"`
	CouponExpiryDays *int      `json:"coupon_expiry_days,omitempty" db:"coupon_expiry_days"`
	ExpiryDate       time.Time `json:"expiry_date" db:"expiry_date"`
	IsActive         bool      `json:"is_active" db:"is_active"`
	Views            int64     `json:"views" db:"views"`
	Clicks           int64     `json:"clicks" db:"clicks"`
	Redemptions      int64     `json:"redemptions" db:"redemptions"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// CreateOfferRequest represents a request to publish an offer
type CreateOfferRequest struct {
	PartnerID        uuid.UUID `json:"partner_id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Category         string    `json:"category"`
	OriginalPrice    float64   `json:"original_price"`
	DiscountedPrice  float64   `json:"discounted_price"`
	CouponColor      string    `json:"coupon_color"`
	CouponExpiryDays *int      `json:"coupon_expiry_days,omitempty"`
	ExpiryDate       time.Time `json:"expiry_date"`
	IsActive         bool      `json:"is_active"`
}

// UpdateOfferRequest represents a request to edit an offer
type UpdateOfferRequest struct {
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	Category         string    `json:"category"`
	OriginalPrice    float64   `json:"original_price"`
	DiscountedPrice  float64   `json:"discounted_price"`
	CouponColor      string    `json:"coupon_color"`
	CouponExpiryDays *int      `json:"coupon_expiry_days,omitempty"`
	ExpiryDate       time.Time `json:"expiry_date"`
	IsActive         bool      `json:"is_active"`
}

// EngagementKind identifies an engagement counter on an offer
type EngagementKind string

const (
	EngagementView       EngagementKind = "view"
	EngagementClick      EngagementKind = "click"
	EngagementRedemption EngagementKind = "redemption"
)
