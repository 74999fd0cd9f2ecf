package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"deals-system/internal/config"
	"deals-system/internal/database"
	"deals-system/internal/handlers"
	"deals-system/internal/kafka"
	"deals-system/internal/logger"
	"deals-system/internal/models"
	"deals-system/internal/redis"
	"deals-system/internal/services"
)

// Factory functions for external dependencies (replaceable in tests).
var (
	dbConnect        = database.Connect
	redisConnect     = redis.Connect
	newKafkaProducer = kafka.NewProducer
	newKafkaConsumer = kafka.NewConsumer
	kafkaHealthCheck = handlers.CheckKafkaHealth
	loadConfig       = config.Load
	newLogger        = logger.New
)

// application aggregates the assembled dependencies.
type application struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *database.DB
	redis    *redis.Client
	producer *kafka.Producer
	consumer *kafka.Consumer
	mux      *http.ServeMux
	server   *http.Server
}

func main() {
	app, err := buildApplication()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build app: %v\n", err)
		os.Exit(1)
	}
	app.log.Info("Starting deals system server...")

	go func() {
		app.log.WithField("address", app.server.Addr).Info("HTTP server starting")
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	app.log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_ = app.consumer.Stop()
	if err := app.server.Shutdown(ctx); err != nil {
		app.log.WithError(err).Error("Server forced to shutdown")
	}
	_ = app.producer.Close()
	_ = app.redis.Close()
	_ = app.db.Close()
	app.log.Info("Server exited")
}

// buildApplication creates all dependencies (replaceable in tests).
func buildApplication() (*application, error) {
	cfg := loadConfig()
	log := newLogger(&cfg.Logger)

	db, err := dbConnect(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	redisClient, err := redisConnect(&cfg.Redis, log)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("redis connect: %w", err)
	}

	producer, err := newKafkaProducer(&cfg.Kafka, log)
	if err != nil {
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	consumer, err := newKafkaConsumer(&cfg.Kafka, log)
	if err != nil {
		_ = producer.Close()
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}

	codeGenerator := services.NewCodeGenerator(&cfg.Coupons)
	partnerService := services.NewPartnerService(db, log)
	offerService := services.NewOfferService(db, log)
	engagementService := services.NewEngagementService(db, log)
	couponService := services.NewCouponService(db, log, codeGenerator)
	redemptionService := services.NewRedemptionService(db, log, engagementService, producer)
	analyticsService := services.NewAnalyticsService(db, redisClient, log, &cfg.Analytics)
	rateLimiter := services.NewRateLimiter(redisClient, log, &cfg.RateLimit)

	partnerHandler := handlers.NewPartnerHandler(partnerService, producer, log)
	offerHandler := handlers.NewOfferHandler(offerService, engagementService, producer, redisClient, log)
	couponHandler := handlers.NewCouponHandler(couponService, redemptionService, producer, log)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsService, log, &cfg.Analytics)
	healthHandler := handlers.NewHealthHandler(db, redisClient, cfg.Kafka.Brokers, kafkaHealthCheck)
	rateLimitHandler := handlers.NewRateLimitHandler(rateLimiter, log, &cfg.RateLimit)

	registerEventHandlers(consumer, analyticsService, log)
	if err := consumer.Start(); err != nil {
		_ = consumer.Stop()
		_ = producer.Close()
		_ = redisClient.Close()
		_ = db.Close()
		return nil, fmt.Errorf("kafka consumer start: %w", err)
	}

	mux := setupRoutes(partnerHandler, offerHandler, couponHandler, healthHandler, analyticsHandler, rateLimitHandler, rateLimiter, log)
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	return &application{
		cfg:      cfg,
		log:      log,
		db:       db,
		redis:    redisClient,
		producer: producer,
		consumer: consumer,
		mux:      mux,
		server:   server,
	}, nil
}

// setupRoutes configures the HTTP server routes
func setupRoutes(partnerHandler *handlers.PartnerHandler, offerHandler *handlers.OfferHandler, couponHandler *handlers.CouponHandler, healthHandler *handlers.HealthHandler, analyticsHandler *handlers.AnalyticsHandler, rateLimitHandler *handlers.RateLimitHandler, rateLimiter *services.RateLimiter, log *logger.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	applyAPI := func(h http.HandlerFunc) http.HandlerFunc {
		return corsMiddleware(handlers.RateLimitMiddleware(rateLimiter, log, h))
	}

	// Health check endpoints
	mux.HandleFunc("/health", corsMiddleware(healthHandler.Health))
	mux.HandleFunc("/health/readiness", corsMiddleware(healthHandler.Readiness))
	mux.HandleFunc("/health/liveness", corsMiddleware(healthHandler.Liveness))

	// Partner endpoints
	mux.HandleFunc("/api/partners", applyAPI(handlePartnersRoute(partnerHandler)))
	mux.HandleFunc("/api/partners/", applyAPI(handlePartnerRoute(partnerHandler, couponHandler)))

	// Offer endpoints
	mux.HandleFunc("/api/offers", applyAPI(handleOffersRoute(offerHandler)))
	mux.HandleFunc("/api/offers/", applyAPI(handleOfferRoute(offerHandler)))

	// Coupon endpoints
	mux.HandleFunc("/api/coupons", applyAPI(handleCouponsRoute(couponHandler)))
	mux.HandleFunc("/api/coupons/", applyAPI(handleCouponRoute(couponHandler)))

	// Member coupon listing
	mux.HandleFunc("/api/members/", applyAPI(handleMemberRoute(couponHandler)))

	// Analytics endpoints
	mux.HandleFunc("/api/analytics/summary", applyAPI(analyticsHandler.Summary))

	// Rate limit status
	mux.HandleFunc("/api/rate-limit/status", applyAPI(rateLimitHandler.Status))

	return mux
}

// handlePartnersRoute serves the partner collection
func handlePartnersRoute(handler *handlers.PartnerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.ListPartners(w, r)
		case http.MethodPost:
			handler.CreatePartner(w, r)
		default:
			writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// handlePartnerRoute serves a single partner and its sub-resources
func handlePartnerRoute(handler *handlers.PartnerHandler, couponHandler *handlers.CouponHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/review") {
			// Approve or reject a pending partner
			if r.Method == http.MethodPost {
				handler.ReviewPartner(w, r)
			} else {
				writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		} else if strings.HasSuffix(r.URL.Path, "/coupons") {
			// Coupons minted against this partner's offers
			if r.Method == http.MethodGet {
				couponHandler.ListPartnerCoupons(w, r)
			} else {
				writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		} else {
			if r.Method == http.MethodGet {
				handler.GetPartner(w, r)
			} else {
				writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		}
	}
}

// handleOffersRoute serves the offer collection
func handleOffersRoute(handler *handlers.OfferHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handler.ListOffers(w, r)
		case http.MethodPost:
			handler.CreateOffer(w, r)
		default:
			writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	}
}

// handleOfferRoute serves a single offer and its engagement endpoints
func handleOfferRoute(handler *handlers.OfferHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/view") {
			// Record a view against the offer counters
			if r.Method == http.MethodPost {
				handler.TrackView(w, r)
			} else {
				writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		} else if strings.HasSuffix(r.URL.Path, "/click") {
			// Record a click against the offer counters
			if r.Method == http.MethodPost {
				handler.TrackClick(w, r)
			} else {
				writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		} else {
			switch r.Method {
			case http.MethodGet:
				handler.GetOffer(w, r)
			case http.MethodPut:
				handler.UpdateOffer(w, r)
			default:
				writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		}
	}
}

// handleCouponsRoute serves the coupon collection
func handleCouponsRoute(handler *handlers.CouponHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			handler.MintCoupon(w, r)
			return
		}
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleCouponRoute serves a single coupon and its redemption endpoint
func handleCouponRoute(handler *handlers.CouponHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/redeem") {
			// Exactly-once redemption at the merchant counter
			if r.Method == http.MethodPost {
				handler.RedeemCoupon(w, r)
			} else {
				writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		} else {
			if r.Method == http.MethodGet {
				handler.GetCoupon(w, r)
			} else {
				writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		}
	}
}

// handleMemberRoute serves a member's coupon wallet
func handleMemberRoute(handler *handlers.CouponHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/coupons") {
			if r.Method == http.MethodGet {
				handler.ListMemberCoupons(w, r)
			} else {
				writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
			}
		} else {
			writeErrorResponse(w, http.StatusNotFound, "Not found")
		}
	}
}

// registerEventHandlers registers the Kafka event handlers
func registerEventHandlers(consumer *kafka.Consumer, analyticsService *services.AnalyticsService, log *logger.Logger) {
	consumer.RegisterHandler(models.EventTypeCouponRedeemed, func(ctx context.Context, event *models.Event) error {
		log.WithField("event_id", event.ID).Info("Processing coupon redeemed event")
		// Redemptions move the analytics counters, so cached snapshots are stale
		return analyticsService.InvalidateCache(ctx)
	})

	consumer.RegisterHandler(models.EventTypePartnerReviewed, func(ctx context.Context, event *models.Event) error {
		log.WithField("event_id", event.ID).Info("Processing partner reviewed event")
		// Approved or rejected partners change the platform-scope partner counts
		return analyticsService.InvalidateCache(ctx)
	})

	consumer.RegisterHandler(models.EventTypeCouponMinted, func(ctx context.Context, event *models.Event) error {
		log.WithField("event_id", event.ID).Info("Processing coupon minted event")
		return nil
	})
}

// corsMiddleware and other helper functions
func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	type errorResponse struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}
