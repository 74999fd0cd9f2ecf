package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"deals-system/internal/config"
	"deals-system/internal/logger"
	"deals-system/internal/models"

	"github.com/google/uuid"
)

const defaultAnalyticsTimeout = 5 * time.Second

// AnalyticsHandler serves the aggregated reporting endpoint.
type AnalyticsHandler struct {
	service AnalyticsProvider
	log     *logger.Logger
	cfg     *config.AnalyticsConfig
}

// NewAnalyticsHandler creates the analytics handler.
func NewAnalyticsHandler(service AnalyticsProvider, log *logger.Logger, cfg *config.AnalyticsConfig) *AnalyticsHandler {
	return &AnalyticsHandler{
		service: service,
		log:     log,
		cfg:     cfg,
	}
}

// Summary returns the aggregated snapshot for the requested scope and range.
func (h *AnalyticsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	filter, err := parseAnalyticsFilter(r)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
	defer cancel()

	snapshot, err := h.service.Summarize(ctx, filter)
	if err != nil {
		writeServiceError(w, h.log, err, "Failed to load analytics")
		return
	}

	writeJSONResponse(w, http.StatusOK, snapshot)
}

func (h *AnalyticsHandler) timeout() time.Duration {
	if h.cfg != nil && h.cfg.RequestTimeoutSeconds > 0 {
		return time.Duration(h.cfg.RequestTimeoutSeconds) * time.Second
	}
	return defaultAnalyticsTimeout
}

func parseAnalyticsFilter(r *http.Request) (*models.AnalyticsFilter, error) {
	filter := &models.AnalyticsFilter{Scope: models.AnalyticsScopePlatform}
	query := r.URL.Query()

	if p := query.Get("partner_id"); p != "" {
		id, err := uuid.Parse(p)
		if err != nil {
			return nil, fmt.Errorf("invalid partner_id")
		}
		filter.Scope = models.AnalyticsScopePartner
		filter.PartnerID = &id
	}

	if f := query.Get("from"); f != "" {
		t, err := parseDateParam(f)
		if err != nil {
			return nil, fmt.Errorf("invalid from date: expected YYYY-MM-DD or RFC3339")
		}
		filter.From = t
	}
	if to := query.Get("to"); to != "" {
		t, err := parseDateParam(to)
		if err != nil {
			return nil, fmt.Errorf("invalid to date: expected YYYY-MM-DD or RFC3339")
		}
		filter.To = t
	}

	if l := query.Get("top"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v <= 0 || v > 50 {
			return nil, fmt.Errorf("top must be between 1 and 50")
		}
		filter.TopOffersLimit = v
	}

	return filter, nil
}

func parseDateParam(value string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, value)
}
