package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"deals-system/internal/config"
	"deals-system/internal/logger"
	"deals-system/internal/models"

	"github.com/IBM/sarama"
)

// EventHandler processes a single consumed domain event.
type EventHandler func(ctx context.Context, event *models.Event) error

// Consumer wraps a Kafka consumer group and dispatches events to
// registered handlers by event type.
type Consumer struct {
	consumer sarama.ConsumerGroup
	log      *logger.Logger
	handlers map[models.EventType]EventHandler
	topics   []string
	mu       sync.RWMutex
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewConsumer creates a consumer group subscribed to all service topics.
func NewConsumer(cfg *config.KafkaConfig, log *logger.Logger) (*Consumer, error) {
	saramaCfg := sarama.NewConfig()
	saramaCfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	saramaCfg.Consumer.Offsets.Initial = sarama.OffsetNewest

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, saramaCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer group: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		consumer: group,
		log:      log,
		handlers: make(map[models.EventType]EventHandler),
		topics:   []string{cfg.Topics.Coupons, cfg.Topics.Offers, cfg.Topics.Partners},
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// NewTestConsumer builds a consumer around an injected consumer group.
func NewTestConsumer(group sarama.ConsumerGroup, log *logger.Logger) *Consumer {
	ctx, cancel := context.WithCancel(context.Background())
	return &Consumer{
		consumer: group,
		log:      log,
		handlers: make(map[models.EventType]EventHandler),
		topics:   []string{"coupons"},
		ctx:      ctx,
		cancel:   cancel,
	}
}

// RegisterHandler binds a handler to an event type.
func (c *Consumer) RegisterHandler(eventType models.EventType, handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[eventType] = handler
}

// Handler returns the handler registered for an event type, or nil.
func (c *Consumer) Handler(eventType models.EventType) EventHandler {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.handlers[eventType]
}

// HandlerCount returns the number of registered handlers.
func (c *Consumer) HandlerCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.handlers)
}

// Start begins consuming in a background goroutine.
func (c *Consumer) Start() error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			if err := c.consumer.Consume(c.ctx, c.topics, c); err != nil {
				c.log.WithError(err).Error("Kafka consume error")
			}
			if c.ctx.Err() != nil {
				return
			}
		}
	}()
	return nil
}

// Stop cancels consumption and closes the group.
func (c *Consumer) Stop() error {
	if c == nil {
		return nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	if c.consumer != nil {
		return c.consumer.Close()
	}
	return nil
}

// Setup implements sarama.ConsumerGroupHandler.
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error { return nil }

// Cleanup implements sarama.ConsumerGroupHandler.
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim implements sarama.ConsumerGroupHandler.
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := c.processMessage(msg); err != nil {
			c.log.WithError(err).WithFields(map[string]interface{}{
				"topic":  msg.Topic,
				"offset": msg.Offset,
			}).Error("Failed to process message")
		}
		session.MarkMessage(msg, "")
	}
	return nil
}

func (c *Consumer) processMessage(msg *sarama.ConsumerMessage) error {
	var event models.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal event: %w", err)
	}

	handler := c.Handler(event.Type)
	if handler == nil {
		c.log.WithFields(map[string]interface{}{
			"type":  event.Type,
			"topic": msg.Topic,
		}).Debug("No handler registered for event type")
		return nil
	}

	if err := handler(c.ctx, &event); err != nil {
		return fmt.Errorf("handler failed for event %s: %w", event.ID, err)
	}

	c.log.WithFields(map[string]interface{}{
		"event_id": event.ID,
		"type":     event.Type,
	}).Debug("Event processed")

	return nil
}
