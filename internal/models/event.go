package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a domain event published to Kafka
type EventType string

const (
	EventTypeCouponMinted    EventType = "coupon.minted"
	EventTypeCouponRedeemed  EventType = "coupon.redeemed"
	EventTypeOfferEngagement EventType = "offer.engagement"
	EventTypePartnerReviewed EventType = "partner.reviewed"
)

// Event is the envelope for all domain events
type Event struct {
	ID        uuid.UUID              `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// NewEvent creates an event envelope with a fresh id and timestamp
func NewEvent(eventType EventType, data map[string]interface{}) *Event {
	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
}
