package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"deals-system/internal/apperror"
	"deals-system/internal/database"
	"deals-system/internal/logger"
	"deals-system/internal/models"

	"github.com/google/uuid"
)

// PartnerService owns the partner registry and the approval state machine.
// The coupon lifecycle only reads partner status; transitions happen here
// through admin review.
type PartnerService struct {
	db  *database.DB
	log *logger.Logger
}

// NewPartnerService creates the partner service.
func NewPartnerService(db *database.DB, log *logger.Logger) *PartnerService {
	return &PartnerService{
		db:  db,
		log: log,
	}
}

// CreatePartner registers a new partner in pending state.
func (s *PartnerService) CreatePartner(ctx context.Context, req *models.CreatePartnerRequest) (*models.Partner, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperror.Validation("partner name is required", nil)
	}
	if strings.TrimSpace(req.ContactEmail) == "" {
		return nil, apperror.Validation("contact email is required", nil)
	}

	partner := &models.Partner{
		ID:           uuid.New(),
		Name:         req.Name,
		ContactEmail: req.ContactEmail,
		Status:       models.PartnerStatusPending,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	query := `
		INSERT INTO partners (id, name, contact_email, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query, partner.ID, partner.Name, partner.ContactEmail, partner.Status, partner.CreatedAt, partner.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create partner: %w", err)
	}

	s.log.WithField("partner_id", partner.ID).Info("Partner registered")
	return partner, nil
}

// GetPartner returns a partner by id.
func (s *PartnerService) GetPartner(ctx context.Context, partnerID uuid.UUID) (*models.Partner, error) {
	query := `
		SELECT id, name, contact_email, status, rejection_reason, created_at, updated_at
		FROM partners
		WHERE id = $1
	`

	partner := &models.Partner{}
	if err := s.db.QueryRowContext(ctx, query, partnerID).Scan(
		&partner.ID, &partner.Name, &partner.ContactEmail, &partner.Status,
		&partner.RejectionReason, &partner.CreatedAt, &partner.UpdatedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("partner not found", err)
		}
		return nil, fmt.Errorf("failed to get partner: %w", err)
	}
	return partner, nil
}

// ListPartners returns partners, optionally filtered by status.
func (s *PartnerService) ListPartners(ctx context.Context, status *models.PartnerStatus, limit, offset int) ([]*models.Partner, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, name, contact_email, status, rejection_reason, created_at, updated_at
		FROM partners
	`
	args := []interface{}{}
	if status != nil {
		query += " WHERE status = $1"
		args = append(args, *status)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list partners: %w", err)
	}
	defer rows.Close()

	var partners []*models.Partner
	for rows.Next() {
		p := &models.Partner{}
		if err := rows.Scan(&p.ID, &p.Name, &p.ContactEmail, &p.Status, &p.RejectionReason, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan partner: %w", err)
		}
		partners = append(partners, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate partners: %w", err)
	}

	return partners, nil
}

// ReviewPartner applies an admin approval decision. Pending is the only
// reviewable state; approved and rejected are terminal, so the conditional
// update refuses to resurrect an already decided partner.
func (s *PartnerService) ReviewPartner(ctx context.Context, partnerID uuid.UUID, req *models.ReviewPartnerRequest) (*models.Partner, error) {
	newStatus := models.PartnerStatusApproved
	var reason *string
	if !req.Approve {
		newStatus = models.PartnerStatusRejected
		reason = req.Reason
	}

	query := `
		UPDATE partners
		SET status = $1, rejection_reason = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`
	result, err := s.db.ExecContext(ctx, query, newStatus, reason, time.Now(), partnerID, models.PartnerStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to review partner: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		// Either the partner does not exist or it was already decided.
		existing, err := s.GetPartner(ctx, partnerID)
		if err != nil {
			return nil, err
		}
		return nil, apperror.Conflict(fmt.Sprintf("partner already %s", existing.Status), nil)
	}

	s.log.WithFields(map[string]interface{}{
		"partner_id": partnerID,
		"status":     newStatus,
	}).Info("Partner reviewed")

	return s.GetPartner(ctx, partnerID)
}
