package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"deals-system/internal/config"
	"deals-system/internal/logger"

	"github.com/go-redis/redis/v8"
)

// Client wraps the Redis connection
type Client struct {
	client *redis.Client
	log    *logger.Logger
}

// Connect creates a Redis connection and verifies it with a ping
func Connect(cfg *config.RedisConfig, log *logger.Logger) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx := context.Background()
	_, err := rdb.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Successfully connected to Redis")

	return &Client{
		client: rdb,
		log:    log,
	}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Set stores a JSON-encoded value with a TTL
func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	err = c.client.Set(ctx, key, data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}

	c.log.WithField("key", key).Debug("Value set in Redis")
	return nil
}

// Get fetches and JSON-decodes a value by key
func (c *Client) Get(ctx context.Context, key string, dest interface{}) error {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return fmt.Errorf("key %s not found", key)
		}
		return fmt.Errorf("failed to get key %s: %w", key, err)
	}

	err = json.Unmarshal([]byte(val), dest)
	if err != nil {
		return fmt.Errorf("failed to unmarshal value for key %s: %w", key, err)
	}

	c.log.WithField("key", key).Debug("Value retrieved from Redis")
	return nil
}

// Delete removes a key
func (c *Client) Delete(ctx context.Context, key string) error {
	err := c.client.Del(ctx, key).Err()
	if err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}

	c.log.WithField("key", key).Debug("Key deleted from Redis")
	return nil
}

// Incr increments a counter key and returns the new value
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	val, err := c.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to incr key %s: %w", key, err)
	}
	return val, nil
}

// Expire sets a TTL on a key
func (c *Client) Expire(ctx context.Context, key string, ttl time.Duration) error {
	if err := c.client.Expire(ctx, key, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set ttl for key %s: %w", key, err)
	}
	return nil
}

// TTL returns the remaining TTL for a key
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := c.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to get ttl for key %s: %w", key, err)
	}
	return ttl, nil
}

// GetInt fetches a counter value as int64
func (c *Client) GetInt(ctx context.Context, key string) (int64, error) {
	val, err := c.client.Get(ctx, key).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, fmt.Errorf("key %s not found", key)
		}
		return 0, fmt.Errorf("failed to get int value for key %s: %w", key, err)
	}
	return val, nil
}

// Health pings Redis
func (c *Client) Health(ctx context.Context) error {
	_, err := c.client.Ping(ctx).Result()
	return err
}

// DeleteByPrefix removes keys matching a prefix (uses SCAN).
func (c *Client) DeleteByPrefix(ctx context.Context, prefix string) error {
	iter := c.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	var keys []string

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan keys by prefix %s: %w", prefix, err)
	}
	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete keys by prefix %s: %w", prefix, err)
	}

	c.log.WithFields(map[string]interface{}{
		"prefix": prefix,
		"count":  len(keys),
	}).Debug("Deleted Redis keys by prefix")

	return nil
}

// GenerateKey builds a namespaced cache key
func GenerateKey(prefix, id string) string {
	return fmt.Sprintf("%s:%s", prefix, id)
}

// Key prefix constants
const (
	KeyPrefixOffer   = "offer"
	KeyPrefixCoupon  = "coupon"
	KeyPrefixPartner = "partner"
	KeyPrefixStats   = "stats"
)
