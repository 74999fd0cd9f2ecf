package services

import (
	"time"

	"deals-system/internal/apperror"
	"deals-system/internal/models"
)

// ResolveExpiry computes a coupon's effective expiry at mint time. The
// offer's expiry date is a hard ceiling: a per-offer day override can only
// shorten the window, never extend it past the offer itself.
//
// Minting against an already expired offer must be refused upstream;
// reaching the resolver with one is a bug, not a normal failure.
func ResolveExpiry(offer *models.Offer, mintTime time.Time) (time.Time, error) {
	if !offer.ExpiryDate.After(mintTime) {
		return time.Time{}, apperror.InvalidState("offer expired before mint", nil)
	}

	if offer.CouponExpiryDays == nil {
		return offer.ExpiryDate, nil
	}

	candidate := mintTime.AddDate(0, 0, *offer.CouponExpiryDays)
	if candidate.After(offer.ExpiryDate) {
		return offer.ExpiryDate, nil
	}
	return candidate, nil
}
