package services

import (
	"context"
	"fmt"
	"time"

	"deals-system/internal/apperror"
	"deals-system/internal/config"
	"deals-system/internal/database"
	"deals-system/internal/logger"
	"deals-system/internal/models"
	"deals-system/internal/redis"
)

const (
	DefaultTopOffersLimit = 5
	defaultMaxRangeDays   = 365
	defaultCacheTTL       = 10 * time.Minute
)

// AnalyticsService aggregates engagement and coupon metrics and caches the
// heavy queries. Coupon counts apply the same lazy-expiry rule as the read
// paths: an ACTIVE coupon past its expiry date is reported as EXPIRED even
// if the row has not been corrected yet.
type AnalyticsService struct {
	db              *database.DB
	redis           *redis.Client
	log             *logger.Logger
	cacheTTL        time.Duration
	maxRangeDays    int
	defaultTopLimit int
}

// NewAnalyticsService creates the analytics aggregator.
func NewAnalyticsService(db *database.DB, redisClient *redis.Client, log *logger.Logger, cfg *config.AnalyticsConfig) *AnalyticsService {
	cacheTTL := defaultCacheTTL
	maxRange := defaultMaxRangeDays
	topLimit := DefaultTopOffersLimit

	if cfg != nil {
		if cfg.CacheTTLMinutes > 0 {
			cacheTTL = time.Duration(cfg.CacheTTLMinutes) * time.Minute
		}
		if cfg.MaxRangeDays > 0 {
			maxRange = cfg.MaxRangeDays
		}
		if cfg.TopOffersLimit > 0 {
			topLimit = cfg.TopOffersLimit
		}
	}

	return &AnalyticsService{
		db:              db,
		redis:           redisClient,
		log:             log,
		cacheTTL:        cacheTTL,
		maxRangeDays:    maxRange,
		defaultTopLimit: topLimit,
	}
}

// Summarize builds the aggregated snapshot for a dashboard request.
func (s *AnalyticsService) Summarize(ctx context.Context, filter *models.AnalyticsFilter) (*models.AnalyticsSnapshot, error) {
	filter, err := s.normalizeFilter(filter)
	if err != nil {
		return nil, err
	}

	cacheKey := s.buildCacheKey(filter)
	var cached models.AnalyticsSnapshot
	if s.tryGetFromCache(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	engagement, err := s.fetchEngagement(ctx, filter)
	if err != nil {
		return nil, err
	}

	coupons, err := s.fetchCouponCounts(ctx, filter)
	if err != nil {
		return nil, err
	}

	topOffers, err := s.fetchTopOffers(ctx, filter)
	if err != nil {
		return nil, err
	}

	snapshot := &models.AnalyticsSnapshot{
		Scope:       filter.Scope,
		PartnerID:   filter.PartnerID,
		From:        filter.From,
		To:          filter.To,
		Engagement:  *engagement,
		Coupons:     *coupons,
		TopOffers:   topOffers,
		GeneratedAt: time.Now(),
	}

	if filter.Scope == models.AnalyticsScopePlatform {
		partners, err := s.fetchPartnerCounts(ctx)
		if err != nil {
			return nil, err
		}
		snapshot.Partners = partners
	}

	s.saveToCache(ctx, cacheKey, snapshot)
	return snapshot, nil
}

// InvalidateCache drops all cached snapshots. Called from the event
// consumer when a redemption lands so dashboards converge quickly.
func (s *AnalyticsService) InvalidateCache(ctx context.Context) error {
	if s.redis == nil {
		return nil
	}
	return s.redis.DeleteByPrefix(ctx, redis.KeyPrefixStats)
}

// fetchEngagement sums the offer counters. The counters are lifetime
// values with no per-event timestamps, so only the upper bound applies:
// the totals cover everything up to filter.To and ignore filter.From.
func (s *AnalyticsService) fetchEngagement(ctx context.Context, filter *models.AnalyticsFilter) (*models.EngagementTotals, error) {
	query := `
		SELECT COALESCE(SUM(views), 0),
		       COALESCE(SUM(clicks), 0),
		       COALESCE(SUM(redemptions), 0)
	FROM offers
	WHERE created_at <= $1
	`
	args := []interface{}{filter.To}
	if filter.Scope == models.AnalyticsScopePartner {
		query += " AND partner_id = $2"
		args = append(args, *filter.PartnerID)
	}

	totals := &models.EngagementTotals{}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&totals.Views, &totals.Clicks, &totals.Redemptions); err != nil {
		return nil, fmt.Errorf("failed to load engagement totals: %w", err)
	}
	return totals, nil
}

// fetchCouponCounts counts coupons by effective status. The CASE folds
// stale ACTIVE rows past their expiry into EXPIRED without writing them.
func (s *AnalyticsService) fetchCouponCounts(ctx context.Context, filter *models.AnalyticsFilter) (*models.CouponCounts, error) {
	query := `
		SELECT COUNT(*) FILTER (WHERE status = 'ACTIVE' AND expiry_date > $1)   AS active,
		       COUNT(*) FILTER (WHERE status = 'REDEEMED')                      AS redeemed,
		       COUNT(*) FILTER (WHERE status = 'EXPIRED'
		                        OR (status = 'ACTIVE' AND expiry_date <= $1))   AS expired
	FROM coupons
	WHERE issued_at BETWEEN $2 AND $3
	`
	args := []interface{}{time.Now(), filter.From, filter.To}
	if filter.Scope == models.AnalyticsScopePartner {
		query += " AND partner_id = $4"
		args = append(args, *filter.PartnerID)
	}

	counts := &models.CouponCounts{}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&counts.Active, &counts.Redeemed, &counts.Expired); err != nil {
		return nil, fmt.Errorf("failed to load coupon counts: %w", err)
	}
	return counts, nil
}

func (s *AnalyticsService) fetchTopOffers(ctx context.Context, filter *models.AnalyticsFilter) ([]models.TopOffer, error) {
	query := `
		SELECT o.id, o.title, o.redemptions, o.views, o.clicks
	FROM offers o
	WHERE o.created_at <= $1
	`
	args := []interface{}{filter.To}
	if filter.Scope == models.AnalyticsScopePartner {
		args = append(args, *filter.PartnerID)
		query += fmt.Sprintf(" AND o.partner_id = $%d", len(args))
	}
	args = append(args, filter.TopOffersLimit)
	query += fmt.Sprintf(" ORDER BY o.redemptions DESC, o.views DESC, o.title ASC LIMIT $%d", len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load top offers: %w", err)
	}
	defer rows.Close()

	var result []models.TopOffer
	for rows.Next() {
		var item models.TopOffer
		if err := rows.Scan(&item.OfferID, &item.Title, &item.Redemptions, &item.Views, &item.Clicks); err != nil {
			return nil, fmt.Errorf("failed to scan top offer: %w", err)
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate top offers: %w", err)
	}

	return result, nil
}

func (s *AnalyticsService) fetchPartnerCounts(ctx context.Context) (*models.PartnerCounts, error) {
	query := `
		SELECT COUNT(*) FILTER (WHERE status = 'pending'),
		       COUNT(*) FILTER (WHERE status = 'approved'),
		       COUNT(*) FILTER (WHERE status = 'rejected')
	FROM partners
	`

	counts := &models.PartnerCounts{}
	if err := s.db.QueryRowContext(ctx, query).Scan(&counts.Pending, &counts.Approved, &counts.Rejected); err != nil {
		return nil, fmt.Errorf("failed to load partner counts: %w", err)
	}
	return counts, nil
}

func (s *AnalyticsService) normalizeFilter(filter *models.AnalyticsFilter) (*models.AnalyticsFilter, error) {
	if filter == nil {
		filter = &models.AnalyticsFilter{}
	}
	if filter.Scope == "" {
		filter.Scope = models.AnalyticsScopePlatform
	}
	if filter.Scope == models.AnalyticsScopePartner && filter.PartnerID == nil {
		return nil, apperror.Validation("partner scope requires a partner id", nil)
	}

	now := time.Now()
	if filter.To.IsZero() {
		filter.To = now
	}
	if filter.From.IsZero() {
		filter.From = filter.To.AddDate(0, 0, -30)
	}
	if filter.From.After(filter.To) {
		return nil, apperror.Validation("from must not be after to", nil)
	}
	if filter.To.Sub(filter.From) > time.Duration(s.maxRangeDays)*24*time.Hour {
		return nil, apperror.Validation(fmt.Sprintf("date range exceeds %d days", s.maxRangeDays), nil)
	}

	if filter.TopOffersLimit <= 0 {
		filter.TopOffersLimit = s.defaultTopLimit
	}

	return filter, nil
}

func (s *AnalyticsService) buildCacheKey(filter *models.AnalyticsFilter) string {
	partner := "all"
	if filter.PartnerID != nil {
		partner = filter.PartnerID.String()
	}
	return redis.GenerateKey(redis.KeyPrefixStats, fmt.Sprintf(
		"%s:%s:%s:%s:%d",
		filter.Scope,
		partner,
		filter.From.Format("2006-01-02"),
		filter.To.Format("2006-01-02"),
		filter.TopOffersLimit,
	))
}

func (s *AnalyticsService) tryGetFromCache(ctx context.Context, key string, dest interface{}) bool {
	if s.redis == nil {
		return false
	}
	if err := s.redis.Get(ctx, key, dest); err != nil {
		return false
	}
	return true
}

func (s *AnalyticsService) saveToCache(ctx context.Context, key string, value interface{}) {
	if s.redis == nil {
		return
	}
	if err := s.redis.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("Failed to cache analytics result")
	}
}
