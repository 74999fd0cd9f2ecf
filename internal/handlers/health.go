package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/IBM/sarama"
)

// DBHealth is the database health probe.
type DBHealth interface {
	Health() error
}

// RedisHealth is the cache health probe.
type RedisHealth interface {
	Health(ctx context.Context) error
}

// KafkaHealthCheck verifies broker reachability.
type KafkaHealthCheck func(brokers []string) error

// HealthHandler reports component health for orchestration probes.
type HealthHandler struct {
	db           DBHealth
	redisClient  RedisHealth
	kafkaBrokers []string
	kafkaCheck   KafkaHealthCheck
}

// NewHealthHandler creates the health handler. Passing a nil kafkaCheck
// uses the default sarama client probe.
func NewHealthHandler(db DBHealth, redisClient RedisHealth, kafkaBrokers []string, kafkaCheck KafkaHealthCheck) *HealthHandler {
	if kafkaCheck == nil {
		kafkaCheck = CheckKafkaHealth
	}
	return &HealthHandler{
		db:           db,
		redisClient:  redisClient,
		kafkaBrokers: kafkaBrokers,
		kafkaCheck:   kafkaCheck,
	}
}

// HealthResponse describes the overall and per-component status.
type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
	Version  string            `json:"version"`
	Uptime   string            `json:"uptime"`
}

var startTime = time.Now()

// Health checks every component and reports the aggregate.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	services := make(map[string]string)
	overallStatus := "healthy"

	if err := h.db.Health(); err != nil {
		services["database"] = "unhealthy: " + err.Error()
		overallStatus = "unhealthy"
	} else {
		services["database"] = "healthy"
	}

	if err := h.redisClient.Health(ctx); err != nil {
		services["redis"] = "unhealthy: " + err.Error()
		overallStatus = "unhealthy"
	} else {
		services["redis"] = "healthy"
	}

	if err := h.kafkaCheck(h.kafkaBrokers); err != nil {
		services["kafka"] = "unhealthy: " + err.Error()
		overallStatus = "unhealthy"
	} else {
		services["kafka"] = "healthy"
	}

	response := HealthResponse{
		Status:   overallStatus,
		Services: services,
		Version:  "1.0.0",
		Uptime:   time.Since(startTime).String(),
	}

	statusCode := http.StatusOK
	if overallStatus == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSONResponse(w, statusCode, response)
}

// Readiness verifies the backing stores are reachable.
func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Health(); err != nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "Database not ready")
		return
	}

	if err := h.redisClient.Health(ctx); err != nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "Redis not ready")
		return
	}

	if err := h.kafkaCheck(h.kafkaBrokers); err != nil {
		writeErrorResponse(w, http.StatusServiceUnavailable, "Kafka not ready")
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Liveness reports the process is alive.
func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErrorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	writeJSONResponse(w, http.StatusOK, map[string]string{
		"status": "alive",
		"uptime": time.Since(startTime).String(),
	})
}

// CheckKafkaHealth dials the brokers with a short-lived sarama client.
func CheckKafkaHealth(brokers []string) error {
	if len(brokers) == 0 {
		return fmt.Errorf("no brokers configured")
	}

	cfg := sarama.NewConfig()
	cfg.Net.DialTimeout = 3 * time.Second
	cfg.Net.ReadTimeout = 5 * time.Second
	cfg.Net.WriteTimeout = 5 * time.Second
	cfg.Metadata.Retry.Max = 1
	cfg.Metadata.Retry.Backoff = 500 * time.Millisecond

	client, err := sarama.NewClient(brokers, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	return nil
}
