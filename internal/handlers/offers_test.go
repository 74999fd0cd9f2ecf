package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"deals-system/internal/apperror"
	"deals-system/internal/models"

	"github.com/google/uuid"
)

type stubOfferService struct {
	offer *models.Offer
	list  []*models.Offer
	err   error
}

func (s *stubOfferService) CreateOffer(ctx context.Context, req *models.CreateOfferRequest) (*models.Offer, error) {
	return s.offer, s.err
}
func (s *stubOfferService) UpdateOffer(ctx context.Context, offerID uuid.UUID, req *models.UpdateOfferRequest) (*models.Offer, error) {
	return s.offer, s.err
}
func (s *stubOfferService) GetOffer(ctx context.Context, offerID uuid.UUID) (*models.Offer, error) {
	return s.offer, s.err
}
func (s *stubOfferService) ListOffers(ctx context.Context, partnerID *uuid.UUID, category *string, activeOnly bool, limit, offset int) ([]*models.Offer, error) {
	return s.list, s.err
}

type stubEngagementService struct {
	calls []models.EngagementKind
	err   error
}

func (s *stubEngagementService) Increment(ctx context.Context, offerID uuid.UUID, kind models.EngagementKind) error {
	s.calls = append(s.calls, kind)
	return s.err
}

func sampleOffer() *models.Offer {
	now := time.Now()
	return &models.Offer{
		ID:              uuid.New(),
		PartnerID:       uuid.New(),
		Title:           "Half-price pizza",
		Category:        "food",
		OriginalPrice:   20,
		DiscountedPrice: 10,
		DiscountPercent: 50,
		CouponColor:     "#ff6600",
		ExpiryDate:      now.AddDate(0, 1, 0),
		IsActive:        true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestOfferHandler_CreateOffer(t *testing.T) {
	offer := sampleOffer()
	handler := NewOfferHandler(&stubOfferService{offer: offer}, &stubEngagementService{}, nil, nil, newHandlerTestLogger())

	body := bytes.NewBufferString(`{"partner_id":"` + offer.PartnerID.String() + `","title":"Half-price pizza","original_price":20,"discounted_price":10}`)
	req := httptest.NewRequest(http.MethodPost, "/api/offers", body)
	rr := httptest.NewRecorder()

	handler.CreateOffer(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
}

func TestOfferHandler_CreateOffer_PartnerNotApproved(t *testing.T) {
	handler := NewOfferHandler(&stubOfferService{err: apperror.NotEligible("partner is not approved", nil)}, &stubEngagementService{}, nil, nil, newHandlerTestLogger())

	body := bytes.NewBufferString(`{"partner_id":"` + uuid.NewString() + `","title":"x"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/offers", body)
	rr := httptest.NewRecorder()

	handler.CreateOffer(rr, req)
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
}

func TestOfferHandler_ListOffers_InvalidPartnerID(t *testing.T) {
	handler := NewOfferHandler(&stubOfferService{}, &stubEngagementService{}, nil, nil, newHandlerTestLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/offers?partner_id=nope", nil)
	rr := httptest.NewRecorder()

	handler.ListOffers(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestOfferHandler_TrackView(t *testing.T) {
	engagement := &stubEngagementService{}
	producer := &stubProducer{}
	handler := NewOfferHandler(&stubOfferService{}, engagement, producer, nil, newHandlerTestLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/offers/"+uuid.NewString()+"/view", nil)
	rr := httptest.NewRecorder()

	handler.TrackView(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(engagement.calls) != 1 || engagement.calls[0] != models.EngagementView {
		t.Fatalf("expected a view increment, got %v", engagement.calls)
	}
	if producer.engagement != 1 {
		t.Fatalf("expected engagement event, got %d", producer.engagement)
	}
}

func TestOfferHandler_TrackClick_OfferNotFound(t *testing.T) {
	handler := NewOfferHandler(&stubOfferService{}, &stubEngagementService{err: apperror.NotFound("offer not found", nil)}, nil, nil, newHandlerTestLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/offers/"+uuid.NewString()+"/click", nil)
	rr := httptest.NewRecorder()

	handler.TrackClick(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestOfferHandler_TrackView_GetMethodRejected(t *testing.T) {
	handler := NewOfferHandler(&stubOfferService{}, &stubEngagementService{}, nil, nil, newHandlerTestLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/offers/"+uuid.NewString()+"/view", nil)
	rr := httptest.NewRecorder()

	handler.TrackView(rr, req)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
}
