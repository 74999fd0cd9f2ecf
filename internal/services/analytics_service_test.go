package services

import (
	"context"
	"testing"
	"time"

	"deals-system/internal/apperror"
	"deals-system/internal/config"
	"deals-system/internal/models"
	"deals-system/internal/redis"

	"github.com/DATA-DOG/go-sqlmock"
	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
)

func newTestRedis(t *testing.T) *redis.Client {
	mr := miniredis.RunT(t)

	client, err := redis.Connect(&config.RedisConfig{Host: mr.Host(), Port: mr.Port()}, newTestLogger())
	if err != nil {
		t.Fatalf("failed to connect to miniredis: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return client
}

func expectAnalyticsQueries(mock sqlmock.Sqlmock, partnerScoped bool) {
	engagement := mock.ExpectQuery("SELECT COALESCE\\(SUM\\(views\\), 0\\)")
	coupons := mock.ExpectQuery("SELECT COUNT\\(\\*\\) FILTER \\(WHERE status = 'ACTIVE'")
	top := mock.ExpectQuery("SELECT o.id, o.title, o.redemptions")

	engagement.WillReturnRows(sqlmock.NewRows([]string{"views", "clicks", "redemptions"}).AddRow(120, 45, 12))
	coupons.WillReturnRows(sqlmock.NewRows([]string{"active", "redeemed", "expired"}).AddRow(8, 12, 3))
	top.WillReturnRows(sqlmock.NewRows([]string{"id", "title", "redemptions", "views", "clicks"}).
		AddRow(uuid.New(), "Half-price pizza", 12, 120, 45))

	if !partnerScoped {
		mock.ExpectQuery("SELECT COUNT\\(\\*\\) FILTER \\(WHERE status = 'pending'").
			WillReturnRows(sqlmock.NewRows([]string{"pending", "approved", "rejected"}).AddRow(2, 5, 1))
	}
}

func TestAnalyticsService_Summarize_PlatformScope(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewAnalyticsService(db, nil, newTestLogger(), nil)

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	expectAnalyticsQueries(mock, false)

	snapshot, err := service.Summarize(context.Background(), &models.AnalyticsFilter{From: from, To: to})
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	if snapshot.Scope != models.AnalyticsScopePlatform {
		t.Fatalf("expected platform scope, got %s", snapshot.Scope)
	}
	if snapshot.Engagement.Views != 120 || snapshot.Engagement.Redemptions != 12 {
		t.Fatalf("unexpected engagement totals: %+v", snapshot.Engagement)
	}
	if snapshot.Coupons.Expired != 3 {
		t.Fatalf("expected lazily expired coupons in the count: %+v", snapshot.Coupons)
	}
	if snapshot.Partners == nil || snapshot.Partners.Approved != 5 {
		t.Fatalf("expected partner counts in platform scope: %+v", snapshot.Partners)
	}
	if len(snapshot.TopOffers) != 1 {
		t.Fatalf("expected 1 top offer, got %d", len(snapshot.TopOffers))
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAnalyticsService_Summarize_PartnerScope(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewAnalyticsService(db, nil, newTestLogger(), nil)
	partnerID := uuid.New()

	expectAnalyticsQueries(mock, true)

	snapshot, err := service.Summarize(context.Background(), &models.AnalyticsFilter{
		Scope:     models.AnalyticsScopePartner,
		PartnerID: &partnerID,
		From:      time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		To:        time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}

	if snapshot.Partners != nil {
		t.Fatalf("partner counts must be omitted outside platform scope")
	}
	if snapshot.PartnerID == nil || *snapshot.PartnerID != partnerID {
		t.Fatalf("expected partner id echoed in snapshot")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAnalyticsService_Summarize_PartnerScopeRequiresPartnerID(t *testing.T) {
	db, _ := newMockDB(t)
	defer db.Close()

	service := NewAnalyticsService(db, nil, newTestLogger(), nil)

	_, err := service.Summarize(context.Background(), &models.AnalyticsFilter{Scope: models.AnalyticsScopePartner})
	if !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAnalyticsService_Summarize_RangeTooWide(t *testing.T) {
	db, _ := newMockDB(t)
	defer db.Close()

	service := NewAnalyticsService(db, nil, newTestLogger(), &config.AnalyticsConfig{MaxRangeDays: 30})

	_, err := service.Summarize(context.Background(), &models.AnalyticsFilter{
		From: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
	})
	if !apperror.Is(err, apperror.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestAnalyticsService_Summarize_CachesSnapshot(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewAnalyticsService(db, newTestRedis(t), newTestLogger(), nil)

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	// only the first call may hit the database
	expectAnalyticsQueries(mock, false)

	first, err := service.Summarize(context.Background(), &models.AnalyticsFilter{From: from, To: to})
	if err != nil {
		t.Fatalf("first call failed: %v", err)
	}

	second, err := service.Summarize(context.Background(), &models.AnalyticsFilter{From: from, To: to})
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}

	if second.Engagement != first.Engagement || second.Coupons != first.Coupons {
		t.Fatalf("expected cached snapshot to match the first result")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAnalyticsService_InvalidateCache(t *testing.T) {
	db, mock := newMockDB(t)
	defer db.Close()

	service := NewAnalyticsService(db, newTestRedis(t), newTestLogger(), nil)

	from := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	expectAnalyticsQueries(mock, false)

	if _, err := service.Summarize(context.Background(), &models.AnalyticsFilter{From: from, To: to}); err != nil {
		t.Fatalf("first call failed: %v", err)
	}

	if err := service.InvalidateCache(context.Background()); err != nil {
		t.Fatalf("invalidate failed: %v", err)
	}

	// cache is gone, the database is queried again
	expectAnalyticsQueries(mock, false)

	if _, err := service.Summarize(context.Background(), &models.AnalyticsFilter{From: from, To: to}); err != nil {
		t.Fatalf("call after invalidation failed: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
