package kafka

import (
	"encoding/json"
	"fmt"

	"deals-system/internal/config"
	"deals-system/internal/logger"
	"deals-system/internal/models"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// Producer publishes domain events to Kafka.
type Producer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
	topics   *config.Topics
}

// NewProducer creates a synchronous Kafka producer.
func NewProducer(cfg *config.KafkaConfig, log *logger.Logger) (*Producer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	saramaCfg.Producer.Retry.Max = 3

	producer, err := sarama.NewSyncProducer(cfg.Brokers, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	log.Info("Successfully connected to Kafka")

	return &Producer{
		producer: producer,
		log:      log,
		topics:   &cfg.Topics,
	}, nil
}

// Close shuts the producer down.
func (p *Producer) Close() error {
	if p == nil || p.producer == nil {
		return nil
	}
	return p.producer.Close()
}

// PublishCouponMinted announces a freshly minted coupon.
func (p *Producer) PublishCouponMinted(coupon *models.Coupon) error {
	event := models.NewEvent(models.EventTypeCouponMinted, map[string]interface{}{
		"coupon_id":  coupon.ID,
		"offer_id":   coupon.OfferID,
		"partner_id": coupon.PartnerID,
		"member_id":  coupon.MemberID,
		"expires_at": coupon.ExpiryDate,
	})
	return p.publishEvent(p.topics.Coupons, *event)
}

// PublishCouponRedeemed announces a committed redemption. Callers treat this
// as best-effort; a publish failure never unwinds the redemption.
func (p *Producer) PublishCouponRedeemed(result *models.RedemptionResult) error {
	event := models.NewEvent(models.EventTypeCouponRedeemed, map[string]interface{}{
		"coupon_id":   result.CouponID,
		"offer_id":    result.OfferID,
		"member_id":   result.MemberID,
		"redeemed_at": result.RedeemedAt,
	})
	return p.publishEvent(p.topics.Coupons, *event)
}

// PublishOfferEngagement announces a view or click on an offer.
func (p *Producer) PublishOfferEngagement(offerID uuid.UUID, kind models.EngagementKind) error {
	event := models.NewEvent(models.EventTypeOfferEngagement, map[string]interface{}{
		"offer_id": offerID,
		"kind":     kind,
	})
	return p.publishEvent(p.topics.Offers, *event)
}

// PublishPartnerReviewed announces an admin approval decision.
func (p *Producer) PublishPartnerReviewed(partnerID uuid.UUID, status models.PartnerStatus) error {
	event := models.NewEvent(models.EventTypePartnerReviewed, map[string]interface{}{
		"partner_id": partnerID,
		"status":     status,
	})
	return p.publishEvent(p.topics.Partners, *event)
}

func (p *Producer) publishEvent(topic string, event models.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(event.ID.String()),
		Value: sarama.ByteEncoder(data),
	}

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send message to topic %s: %w", topic, err)
	}

	p.log.WithFields(map[string]interface{}{
		"topic":     topic,
		"partition": partition,
		"offset":    offset,
		"event_id":  event.ID,
		"type":      event.Type,
	}).Debug("Event published")

	return nil
}
