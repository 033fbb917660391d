package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bayardlab/bayard-gateway/internal/storage/models"
)

// feedbackTTL is the fixed retention for feedback records: 7 days.
const feedbackTTL = 604800 * time.Second

// Client stores ephemeral feedback records, expired by Redis itself.
type Client struct {
	client *redis.Client
	logger *zap.Logger
}

func NewClient(host string, port int, password string, db int, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{
		client: client,
		logger: logger,
	}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// RecordFeedback writes the rating as a hash keyed by feedback id and
// arms the TTL.
func (c *Client) RecordFeedback(ctx context.Context, fb *models.FeedbackRecord) error {
	key := fmt.Sprintf("feedback:%s", fb.FeedbackID)

	err := c.client.HSet(ctx, key, map[string]interface{}{
		"run_id":          fb.RunID,
		"feedback_rating": fb.Rating,
		"timestamp":       fb.Timestamp,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to set feedback hash: %w", err)
	}

	if err := c.client.Expire(ctx, key, feedbackTTL).Err(); err != nil {
		return fmt.Errorf("failed to set feedback ttl: %w", err)
	}

	c.logger.Debug("Feedback recorded",
		zap.String("feedback_id", fb.FeedbackID),
		zap.Duration("ttl", feedbackTTL),
	)
	return nil
}
