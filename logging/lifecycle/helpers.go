package lifecycle

import (
	"context"

	"terrafort/server/logging"
)

const (
	// EventPlayerJoined is emitted when a session's player spawns.
	EventPlayerJoined logging.EventType = "lifecycle.player_joined"
	// EventPlayerDisconnected is emitted when a session ends and its player is killed.
	EventPlayerDisconnected logging.EventType = "lifecycle.player_disconnected"
	// EventWorldCreated is emitted the first time a world id is used.
	EventWorldCreated logging.EventType = "lifecycle.world_created"
	// EventPlayerRenamed is emitted when a session picks a username.
	EventPlayerRenamed logging.EventType = "lifecycle.player_renamed"
)

type PlayerJoinedPayload struct {
	SessionID string  `json:"sessionId"`
	World     string  `json:"world"`
	SpawnX    float64 `json:"spawnX"`
	SpawnY    float64 `json:"spawnY"`
}

type PlayerDisconnectedPayload struct {
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason"`
}

type WorldCreatedPayload struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

type PlayerRenamedPayload struct {
	Previous string `json:"previous,omitempty"`
	Username string `json:"username"`
}

func PlayerJoined(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerJoinedPayload) {
	publish(ctx, pub, EventPlayerJoined, tick, actor, logging.SeverityInfo, payload)
}

func PlayerDisconnected(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerDisconnectedPayload) {
	publish(ctx, pub, EventPlayerDisconnected, tick, actor, logging.SeverityInfo, payload)
}

func WorldCreated(ctx context.Context, pub logging.Publisher, tick uint64, world string, payload WorldCreatedPayload) {
	actor := logging.EntityRef{ID: world, Kind: logging.EntityKindWorld}
	publish(ctx, pub, EventWorldCreated, tick, actor, logging.SeverityInfo, payload)
}

// PlayerRenamed is debug level; clients rename on every connect.
func PlayerRenamed(ctx context.Context, pub logging.Publisher, tick uint64, actor logging.EntityRef, payload PlayerRenamedPayload) {
	publish(ctx, pub, EventPlayerRenamed, tick, actor, logging.SeverityDebug, payload)
}

func publish(ctx context.Context, pub logging.Publisher, eventType logging.EventType, tick uint64, actor logging.EntityRef, severity logging.Severity, payload any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     eventType,
		Tick:     tick,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
	})
}
