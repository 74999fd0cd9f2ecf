package models

import (
	"time"

	"github.com/google/uuid"
)

// PartnerStatus represents the approval state of a partner
type PartnerStatus string

const (
	PartnerStatusPending  PartnerStatus = "pending"
	PartnerStatusApproved PartnerStatus = "approved"
	PartnerStatusRejected PartnerStatus = "rejected"
)

// Partner represents a business offering deals on the platform.
// Approved and rejected are terminal states; a rejected partner
// re-applies with a new record.
type Partner struct {
	ID              uuid.UUID     `json:"id" db:"id"`
	Name            string        `json:"name" db:"name"`
	ContactEmail    string        `json:"contact_email" db:"contact_email"`
	Status          PartnerStatus `json:"status" db:"status"`
	RejectionReason *string       `json:"rejection_reason,omitempty" db:"rejection_reason"`
	CreatedAt       time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at" db:"updated_at"`
}

// CreatePartnerRequest represents a partner registration request
type CreatePartnerRequest struct {
	Name         string `json:"name"`
	ContactEmail string `json:"contact_email"`
}

// ReviewPartnerRequest represents an admin approval decision
type ReviewPartnerRequest struct {
	Approve bool    `json:"approve"`
	Reason  *string `json:"reason,omitempty"`
}
