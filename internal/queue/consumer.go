package queue

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

type MessageHandler interface {
	Handle(ctx context.Context, msg redis.XMessage) error
}

const defaultMaxDeliveries = 5

// Consumer reads a stream as one member of a consumer group. Entries are
// acked only after the handler succeeds; entries left pending by a dead
// consumer are claimed once they have idled for claimInterval. An entry
// delivered maxDeliveries times is copied to the dead-letter stream and
// acked.
type Consumer struct {
	client        *redis.Client
	stream        string
	group         string
	consumer      string
	deadLetter    string
	maxDeliveries int64
	claimInterval time.Duration
	block         time.Duration
	retryDelay    time.Duration
	logger        zerolog.Logger
	handler       MessageHandler
}

func NewConsumer(client *redis.Client, stream, group, consumer string, claimInterval time.Duration, logger zerolog.Logger, handler MessageHandler) *Consumer {
	return &Consumer{
		client:        client,
		stream:        stream,
		group:         group,
		consumer:      consumer,
		deadLetter:    stream + ":dead",
		maxDeliveries: defaultMaxDeliveries,
		claimInterval: claimInterval,
		block:         5 * time.Second,
		retryDelay:    2 * time.Second,
		logger:        logger,
		handler:       handler,
	}
}

// WithDeadLetter overrides where exhausted entries go and after how many
// deliveries. Zero values keep the defaults.
func (c *Consumer) WithDeadLetter(stream string, maxDeliveries int64) *Consumer {
	if stream != "" {
		c.deadLetter = stream
	}
	if maxDeliveries > 0 {
		c.maxDeliveries = maxDeliveries
	}
	return c
}

// EnsureGroup creates the group (and the stream) if missing.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (c *Consumer) Start(ctx context.Context) error {
	if err := c.EnsureGroup(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(c.claimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			if err := c.read(ctx); err != nil && ctx.Err() == nil {
				c.logger.Error().Err(err).Msg("stream read error")
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(c.retryDelay):
				}
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.claimStalled(ctx); err != nil && ctx.Err() == nil {
				c.logger.Error().Err(err).Msg("claim stalled entries failed")
			}
		default:
		}
	}
}

func (c *Consumer) read(ctx context.Context) error {
	result, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    10,
		Block:    c.block,
	}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	for _, stream := range result {
		for _, msg := range stream.Messages {
			c.process(ctx, msg)
		}
	}
	return nil
}

func (c *Consumer) process(ctx context.Context, msg redis.XMessage) {
	if err := c.handler.Handle(ctx, msg); err != nil {
		c.logger.Error().
			Err(err).
			Str("message_id", msg.ID).
			Msg("handle message failed")
		return
	}
	if err := c.client.XAck(ctx, c.stream, c.group, msg.ID).Err(); err != nil {
		c.logger.Error().Err(err).Str("message_id", msg.ID).Msg("ack failed")
	}
}

func (c *Consumer) claimStalled(ctx context.Context) error {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.stream,
		Group:  c.group,
		Start:  "-",
		End:    "+",
		Count:  10,
	}).Result()
	if err != nil {
		return err
	}

	for _, entry := range pending {
		if entry.Idle < c.claimInterval {
			continue
		}
		if entry.RetryCount >= c.maxDeliveries {
			if err := c.bury(ctx, entry); err != nil {
				c.logger.Error().Err(err).Str("message_id", entry.ID).Msg("dead-letter failed")
			}
			continue
		}
		msgs, err := c.client.XClaim(ctx, &redis.XClaimArgs{
			Stream:   c.stream,
			Group:    c.group,
			Consumer: c.consumer,
			MinIdle:  c.claimInterval,
			Messages: []string{entry.ID},
		}).Result()
		if err != nil {
			c.logger.Error().Err(err).Str("message_id", entry.ID).Msg("claim error")
			continue
		}
		for _, msg := range msgs {
			c.process(ctx, msg)
		}
	}
	return nil
}

// bury moves a pending entry that keeps failing to the dead-letter stream.
func (c *Consumer) bury(ctx context.Context, entry redis.XPendingExt) error {
	msgs, err := c.client.XRangeN(ctx, c.stream, entry.ID, entry.ID, 1).Result()
	if err != nil {
		return err
	}

	// trimmed entries have nothing left to keep
	if len(msgs) > 0 {
		values := make(map[string]any, len(msgs[0].Values)+2)
		for k, v := range msgs[0].Values {
			values[k] = v
		}
		values["source_id"] = entry.ID
		values["deliveries"] = entry.RetryCount
		if err := c.client.XAdd(ctx, &redis.XAddArgs{Stream: c.deadLetter, Values: values}).Err(); err != nil {
			return err
		}
	}

	if err := c.client.XAck(ctx, c.stream, c.group, entry.ID).Err(); err != nil {
		return err
	}
	c.logger.Warn().
		Str("message_id", entry.ID).
		Int64("deliveries", entry.RetryCount).
		Str("dead_letter", c.deadLetter).
		Msg("entry moved to dead-letter stream")
	return nil
}
