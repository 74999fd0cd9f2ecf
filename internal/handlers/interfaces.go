package handlers

import (
	"context"
	"time"

	"deals-system/internal/models"

	"github.com/google/uuid"
)

// ----- Partners -----

type PartnerService interface {
	CreatePartner(ctx context.Context, req *models.CreatePartnerRequest) (*models.Partner, error)
	GetPartner(ctx context.Context, partnerID uuid.UUID) (*models.Partner, error)
	ListPartners(ctx context.Context, status *models.PartnerStatus, limit, offset int) ([]*models.Partner, error)
	ReviewPartner(ctx context.Context, partnerID uuid.UUID, req *models.ReviewPartnerRequest) (*models.Partner, error)
}

// ----- Offers -----

type OfferService interface {
	CreateOffer(ctx context.Context, req *models.CreateOfferRequest) (*models.Offer, error)
	UpdateOffer(ctx context.Context, offerID uuid.UUID, req *models.UpdateOfferRequest) (*models.Offer, error)
	GetOffer(ctx context.Context, offerID uuid.UUID) (*models.Offer, error)
	ListOffers(ctx context.Context, partnerID *uuid.UUID, category *string, activeOnly bool, limit, offset int) ([]*models.Offer, error)
}

type EngagementService interface {
	Increment(ctx context.Context, offerID uuid.UUID, kind models.EngagementKind) error
}

// ----- Coupons -----

type CouponService interface {
	Mint(ctx context.Context, offerID, memberID uuid.UUID) (*models.Coupon, bool, error)
	Get(ctx context.Context, couponID uuid.UUID) (*models.Coupon, error)
	ListForMember(ctx context.Context, memberID uuid.UUID, filter *models.CouponFilter) ([]*models.Coupon, error)
	ListForPartner(ctx context.Context, partnerID uuid.UUID, filter *models.CouponFilter) ([]*models.Coupon, error)
}

type RedemptionService interface {
	Redeem(ctx context.Context, req *models.RedeemRequest) (*models.RedemptionResult, error)
}

// ----- Analytics -----

type AnalyticsProvider interface {
	Summarize(ctx context.Context, filter *models.AnalyticsFilter) (*models.AnalyticsSnapshot, error)
}

// ----- Events and cache -----

type EventProducer interface {
	PublishCouponMinted(coupon *models.Coupon) error
	PublishOfferEngagement(offerID uuid.UUID, kind models.EngagementKind) error
	PublishPartnerReviewed(partnerID uuid.UUID, status models.PartnerStatus) error
}

type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
}
