package network

import (
	"context"

	"terrafort/server/logging"
)

const (
	// EventMessageRejected is emitted when an inbound frame is malformed or has no handler.
	EventMessageRejected logging.EventType = "network.message_rejected"
	// EventSendDropped is emitted when a session's outbound queue is full.
	EventSendDropped logging.EventType = "network.send_dropped"
)

// MessageRejectedPayload describes a dropped inbound frame.
type MessageRejectedPayload struct {
	Event  string `json:"event,omitempty"`
	Reason string `json:"reason"`
}

// SendDroppedPayload describes an outbound frame lost to backpressure.
type SendDroppedPayload struct {
	Event   string `json:"event"`
	Dropped uint64 `json:"dropped"`
}

// MessageRejected publishes a warning for a dropped inbound frame.
func MessageRejected(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload MessageRejectedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventMessageRejected,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}

// SendDropped publishes a warning for an outbound frame lost to backpressure.
func SendDropped(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload SendDroppedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSendDropped,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
	})
}
