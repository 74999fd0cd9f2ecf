package models

import (
	"time"

	"github.com/google/uuid"
)

// AnalyticsScope selects platform-wide or single-partner aggregation
type AnalyticsScope string

const (
	AnalyticsScopePlatform AnalyticsScope = "platform"
	AnalyticsScopePartner  AnalyticsScope = "partner"
)

// AnalyticsFilter sets the aggregation scope and date range
type AnalyticsFilter struct {
	Scope          AnalyticsScope
	PartnerID      *uuid.UUID
	From           time.Time
	To             time.Time
	TopOffersLimit int
}

// EngagementTotals sums the offer engagement counters. The counters are
// lifetime values, so totals are cumulative through the snapshot's To
// bound; the From bound does not window them.
type EngagementTotals struct {
	Views       int64 `json:"views"`
	Clicks      int64 `json:"clicks"`
	Redemptions int64 `json:"redemptions"`
}

// CouponCounts breaks coupons down by effective status. Lazy expiry is
// applied at read time: an ACTIVE coupon past its expiry counts as EXPIRED.
type CouponCounts struct {
	Active   int64 `json:"active"`
	Redeemed int64 `json:"redeemed"`
	Expired  int64 `json:"expired"`
}

// PartnerCounts breaks partners down by approval status (platform scope only)
type PartnerCounts struct {
	Pending  int64 `json:"pending"`
	Approved int64 `json:"approved"`
	Rejected int64 `json:"rejected"`
}

// TopOffer ranks an offer by redemptions within the range
type TopOffer struct {
	OfferID     uuid.UUID `json:"offer_id"`
	Title       string    `json:"title"`
	Redemptions int64     `json:"redemptions"`
	Views       int64     `json:"views"`
	Clicks      int64     `json:"clicks"`
}

// AnalyticsSnapshot is the aggregated reporting view for dashboards
type AnalyticsSnapshot struct {
	Scope       AnalyticsScope   `json:"scope"`
	PartnerID   *uuid.UUID       `json:"partner_id,omitempty"`
	From        time.Time        `json:"from"`
	To          time.Time        `json:"to"`
	Engagement  EngagementTotals `json:"engagement"`
	Coupons     CouponCounts     `json:"coupons"`
	Partners    *PartnerCounts   `json:"partners,omitempty"`
	TopOffers   []TopOffer       `json:"top_offers"`
	GeneratedAt time.Time        `json:"generated_at"`
}
