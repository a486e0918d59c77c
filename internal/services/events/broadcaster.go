package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jwebster45206/novel-engine/pkg/battle"
	"github.com/jwebster45206/novel-engine/pkg/state"
	"github.com/redis/go-redis/v9"
)

// EventType represents the type of event being broadcast
type EventType string

const (
	EventTypeSceneChanged    EventType = "scene.changed"
	EventTypeBattlePhase     EventType = "battle.phase"
	EventTypeBattleCompleted EventType = "battle.completed"
	EventTypeSessionReset    EventType = "session.reset"
)

// Event is the JSON payload published on a session channel.
type Event struct {
	Type      EventType      `json:"type"`
	SessionID string         `json:"session_id"`
	Data      map[string]any `json:"data,omitempty"`
}

// Channel is the Redis Pub/Sub channel for a session's events.
func Channel(sessionID uuid.UUID) string {
	return "novel-events:" + sessionID.String()
}

// Publisher is what request handlers use to announce session changes.
type Publisher interface {
	PublishSceneChanged(ctx context.Context, sessionID uuid.UUID, change state.SceneChange) error
	PublishBattlePhase(ctx context.Context, sessionID uuid.UUID, result battle.PhaseResult) error
	PublishBattleCompleted(ctx context.Context, sessionID uuid.UUID, sceneID string, outcome battle.Outcome) error
	PublishSessionReset(ctx context.Context, sessionID uuid.UUID) error
}

// Broadcaster publishes events to Redis Pub/Sub for SSE distribution
type Broadcaster struct {
	redisClient *redis.Client
	logger      *slog.Logger
}

var _ Publisher = (*Broadcaster)(nil)

func NewBroadcaster(redisClient *redis.Client, logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		redisClient: redisClient,
		logger:      logger,
	}
}

// PublishSceneChanged carries the new scene and its audio track so that
// audio and presentation collaborators can follow along.
func (b *Broadcaster) PublishSceneChanged(ctx context.Context, sessionID uuid.UUID, change state.SceneChange) error {
	return b.publish(ctx, sessionID, Event{
		Type: EventTypeSceneChanged,
		Data: map[string]any{
			"scene_id":   change.SceneID,
			"title":      change.Title,
			"atmosphere": change.Atmosphere,
			"track":      change.Track,
			"mode":       change.Mode,
			"reason":     change.Reason,
		},
	})
}

func (b *Broadcaster) PublishBattlePhase(ctx context.Context, sessionID uuid.UUID, result battle.PhaseResult) error {
	data := map[string]any{
		"phase":    result.Phase,
		"ally_hp":  result.Health.Ally,
		"enemy_hp": result.Health.Enemy,
		"complete": result.Complete,
	}
	if result.Step != nil {
		data["side"] = result.Step.Side
		data["attack"] = result.Step.Name
		data["damage"] = result.Step.Damage
		data["heal"] = result.Step.Heal
	}
	return b.publish(ctx, sessionID, Event{Type: EventTypeBattlePhase, Data: data})
}

func (b *Broadcaster) PublishBattleCompleted(ctx context.Context, sessionID uuid.UUID, sceneID string, outcome battle.Outcome) error {
	return b.publish(ctx, sessionID, Event{
		Type: EventTypeBattleCompleted,
		Data: map[string]any{
			"scene_id": sceneID,
			"outcome":  outcome,
		},
	})
}

func (b *Broadcaster) PublishSessionReset(ctx context.Context, sessionID uuid.UUID) error {
	return b.publish(ctx, sessionID, Event{Type: EventTypeSessionReset})
}

func (b *Broadcaster) publish(ctx context.Context, sessionID uuid.UUID, event Event) error {
	event.SessionID = sessionID.String()
	channel := Channel(sessionID)

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("Failed to marshal event", "error", err, "event_type", event.Type)
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := b.redisClient.Publish(ctx, channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish event", "error", err, "channel", channel)
		return fmt.Errorf("failed to publish event: %w", err)
	}

	b.logger.Debug("Event published", "channel", channel, "event_type", event.Type)
	return nil
}
