// Package proto defines the websocket events exchanged with clients.
package proto

import (
	"errors"
	"fmt"
	"strings"
)

// Server to client events.
const (
	EventPlayers         = "players"
	EventDebug           = "debug"
	EventUpdateWorld     = "updateWorld"
	EventReset           = "reset"
	EventUpdate          = "update"
	EventRequestUsername = "requestUsername"
)

// Client to server events.
const (
	EventRename = "rename"
	EventInput  = "input"
)

// Record types carried in reset and update frames.
const (
	RecordUpdate = "update"
	RecordDelete = "delete"
)

// MaxUsernameLength bounds rename payloads.
const MaxUsernameLength = 32

var (
	// ErrMalformed marks an inbound frame that could not be decoded.
	ErrMalformed = errors.New("proto: malformed message")
	// ErrUnknownEvent marks an inbound event without a handler.
	ErrUnknownEvent = errors.New("proto: unknown event")
)

// Envelope is the outer frame of every message in both directions.
type Envelope struct {
	Event   string `json:"event" msgpack:"event"`
	Payload any    `json:"payload" msgpack:"payload"`
}

// EntityRecord is the client view of one entity.
type EntityRecord struct {
	ID     uint64  `json:"id" msgpack:"id"`
	Asset  string  `json:"asset" msgpack:"asset"`
	Name   string  `json:"name" msgpack:"name"`
	Type   string  `json:"type" msgpack:"type" jsonschema:"enum=update,enum=delete"`
	X      float64 `json:"x" msgpack:"x"`
	Y      float64 `json:"y" msgpack:"y"`
	XSize  float64 `json:"xsize" msgpack:"xsize"`
	YSize  float64 `json:"ysize" msgpack:"ysize"`
	XSpeed float64 `json:"xspeed" msgpack:"xspeed"`
	YSpeed float64 `json:"yspeed" msgpack:"yspeed"`
}

// ResetFrame replaces the client's whole view of its world.
type ResetFrame struct {
	Entities []EntityRecord `json:"entities" msgpack:"entities"`
}

// UpdateFrame carries only the entities that changed since the last frame.
type UpdateFrame struct {
	Updates []EntityRecord `json:"updates" msgpack:"updates"`
}

// InputMessage is a held or released transition for one control.
type InputMessage struct {
	Keycode string `json:"keycode" msgpack:"keycode"`
	State   *bool  `json:"state" msgpack:"state"`
}

// Validate rejects inputs without a key or state.
func (m InputMessage) Validate() error {
	if strings.TrimSpace(m.Keycode) == "" {
		return fmt.Errorf("%w: input without keycode", ErrMalformed)
	}
	if m.State == nil {
		return fmt.Errorf("%w: input %q without state", ErrMalformed, m.Keycode)
	}
	return nil
}

// NormalizeUsername trims a requested name and enforces the length limit.
func NormalizeUsername(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fmt.Errorf("%w: empty username", ErrMalformed)
	}
	if runes := []rune(name); len(runes) > MaxUsernameLength {
		name = string(runes[:MaxUsernameLength])
	}
	return name, nil
}
