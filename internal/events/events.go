// Package events carries audit records from the API to the worker over a
// Redis stream. Publishing is best-effort: a lost audit entry never fails
// the request that produced it.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"krishimitra/api/internal/ids"
	"krishimitra/api/internal/models"
)

const (
	TaskAuthEvent = "auth_event"
	TaskCleanup   = "cleanup"
)

// Payload is the flat field set of one stream entry.
type Payload struct {
	Type       string `json:"type"`
	EventID    string `json:"eventId,omitempty"`
	Event      string `json:"event,omitempty"`
	UserID     string `json:"userId,omitempty"`
	Username   string `json:"username,omitempty"`
	ClientIP   string `json:"clientIp,omitempty"`
	UserAgent  string `json:"userAgent,omitempty"`
	OccurredAt string `json:"occurredAt,omitempty"`
}

type Publisher interface {
	Publish(ctx context.Context, event models.AuthEvent) error
}

type StreamPublisher struct {
	client redis.Cmdable
	stream string
	maxLen int64
}

func NewStreamPublisher(client redis.Cmdable, stream string, maxLen int64) *StreamPublisher {
	return &StreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *StreamPublisher) Publish(ctx context.Context, event models.AuthEvent) error {
	if event.ID == "" {
		event.ID = ids.New()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	return p.Enqueue(ctx, Encode(event))
}

// Enqueue appends a raw task entry. The scheduler uses it for maintenance
// tasks that share the stream with audit events.
func (p *StreamPublisher) Enqueue(ctx context.Context, values map[string]any) error {
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: values,
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

func Encode(event models.AuthEvent) map[string]any {
	return map[string]any{
		"type":       TaskAuthEvent,
		"eventId":    event.ID,
		"event":      string(event.Type),
		"userId":     event.UserID,
		"username":   event.Username,
		"clientIp":   event.ClientIP,
		"userAgent":  event.UserAgent,
		"occurredAt": event.OccurredAt.UTC().Format(time.RFC3339Nano),
	}
}

func DecodePayload(values map[string]any) (Payload, error) {
	var payload Payload
	raw, err := json.Marshal(values)
	if err != nil {
		return payload, err
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return payload, err
	}
	return payload, nil
}

// AuthEvent rebuilds the audit record carried by an auth_event payload.
func (p Payload) AuthEvent() (models.AuthEvent, error) {
	if p.Type != TaskAuthEvent {
		return models.AuthEvent{}, fmt.Errorf("payload type %q is not %s", p.Type, TaskAuthEvent)
	}
	if p.EventID == "" || p.Event == "" {
		return models.AuthEvent{}, fmt.Errorf("auth event payload missing id or type")
	}
	occurred, err := time.Parse(time.RFC3339Nano, p.OccurredAt)
	if err != nil {
		return models.AuthEvent{}, fmt.Errorf("parse occurredAt: %w", err)
	}
	return models.AuthEvent{
		ID:         p.EventID,
		Type:       models.AuthEventType(p.Event),
		UserID:     p.UserID,
		Username:   p.Username,
		ClientIP:   p.ClientIP,
		UserAgent:  p.UserAgent,
		OccurredAt: occurred,
	}, nil
}

// Nop discards events. Used when the audit stream is disabled.
type Nop struct{}

func (Nop) Publish(context.Context, models.AuthEvent) error { return nil }
