package services

import (
	"context"
	"fmt"
	"time"

	"deals-system/internal/apperror"
	"deals-system/internal/database"
	"deals-system/internal/logger"
	"deals-system/internal/models"

	"github.com/google/uuid"
)

const redemptionIncrementRetries = 3

// EngagementService maintains the per-offer view, click and redemption
// counters. Counters only move forward and are incremented in storage, so
// concurrent writers never lose updates.
type EngagementService struct {
	db  *database.DB
	log *logger.Logger
}

func NewEngagementService(db *database.DB, log *logger.Logger) *EngagementService {
	return &EngagementService{db: db, log: log}
}

// Increment bumps a single engagement counter for an offer.
func (s *EngagementService) Increment(ctx context.Context, offerID uuid.UUID, kind models.EngagementKind) error {
	column, err := counterColumn(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf("UPDATE offers SET %s = %s + 1, updated_at = $1 WHERE id = $2", column, column)
	res, err := s.db.ExecContext(ctx, query, time.Now(), offerID)
	if err != nil {
		return fmt.Errorf("failed to increment %s counter: %w", column, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read counter update result: %w", err)
	}
	if affected == 0 {
		return apperror.NotFound("offer not found", nil)
	}

	return nil
}

// IncrementRedemption bumps the redemption counter with a short retry. The
// redemption itself has already committed when this runs, so a persistent
// failure is logged by the caller instead of surfacing to the client.
func (s *EngagementService) IncrementRedemption(ctx context.Context, offerID uuid.UUID) error {
	var lastErr error
	for attempt := 1; attempt <= redemptionIncrementRetries; attempt++ {
		lastErr = s.Increment(ctx, offerID, models.EngagementRedemption)
		if lastErr == nil {
			return nil
		}
		if apperror.Is(lastErr, apperror.KindNotFound) {
			return lastErr
		}
		if attempt == redemptionIncrementRetries {
			break
		}

		s.log.WithError(lastErr).WithFields(map[string]interface{}{
			"offer_id": offerID,
			"attempt":  attempt,
		}).Warn("Redemption counter increment failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
		}
	}
	return lastErr
}

func counterColumn(kind models.EngagementKind) (string, error) {
	switch kind {
	case models.EngagementView:
		return "views", nil
	case models.EngagementClick:
		return "clicks", nil
	case models.EngagementRedemption:
		return "redemptions", nil
	default:
		return "", apperror.Validation(fmt.Sprintf("unknown engagement kind: %s", kind), nil)
	}
}
