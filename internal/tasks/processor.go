package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"krishimitra/api/internal/events"
	"krishimitra/api/internal/models"
)

type AuthEventStore interface {
	Insert(ctx context.Context, event models.AuthEvent) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Processor handles entries of the audit stream.
type Processor struct {
	store     AuthEventStore
	retention time.Duration
	now       func() time.Time
	logger    zerolog.Logger
}

func NewProcessor(store AuthEventStore, retention time.Duration, logger zerolog.Logger) *Processor {
	return &Processor{
		store:     store,
		retention: retention,
		now:       time.Now,
		logger:    logger,
	}
}

func (p *Processor) Handle(ctx context.Context, msg redis.XMessage) error {
	payload, err := events.DecodePayload(msg.Values)
	if err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}

	switch payload.Type {
	case events.TaskAuthEvent:
		return p.handleAuthEvent(ctx, payload)
	case events.TaskCleanup:
		return p.handleCleanup(ctx)
	default:
		p.logger.Warn().Str("type", payload.Type).Str("message_id", msg.ID).Msg("unknown task type")
		return nil
	}
}

func (p *Processor) handleAuthEvent(ctx context.Context, payload events.Payload) error {
	event, err := payload.AuthEvent()
	if err != nil {
		// malformed entries would never succeed; drop them
		p.logger.Warn().Err(err).Msg("discarding malformed auth event")
		return nil
	}
	if err := p.store.Insert(ctx, event); err != nil {
		return err
	}
	p.logger.Debug().
		Str("event_id", event.ID).
		Str("event", string(event.Type)).
		Str("user_id", event.UserID).
		Msg("auth event stored")
	return nil
}

func (p *Processor) handleCleanup(ctx context.Context) error {
	if p.retention <= 0 {
		return nil
	}
	cutoff := p.now().Add(-p.retention)
	removed, err := p.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	p.logger.Info().Int64("removed", removed).Time("cutoff", cutoff).Msg("auth events cleaned up")
	return nil
}
