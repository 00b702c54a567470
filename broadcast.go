package server

import (
	"encoding/json"
	"fmt"
	"strings"

	"terrafort/server/internal/entity"
	"terrafort/server/internal/net/proto"
	"terrafort/server/internal/session"
	"terrafort/server/internal/world"
)

// broadcast sends every session a reset or update frame for its world and
// then clears the dirty flags of the entities that were examined.
func (e *Engine) broadcast(reset bool) {
	byWorld := make(map[string][]*session.Session)
	for _, s := range e.sessions.Sessions() {
		id := s.WorldID()
		byWorld[id] = append(byWorld[id], s)
	}

	event := proto.EventUpdate
	if reset {
		event = proto.EventReset
	}
	codec := e.sessions.Codec()

	for _, w := range e.universe.Worlds() {
		members := byWorld[w.ID()]
		if len(members) > 0 {
			records := worldRecords(w, reset, true)
			var payload any = updateFrame(records)
			if reset {
				payload = resetFrame(records)
			}
			data, err := codec.Encode(event, payload)
			if err != nil {
				e.logger.Printf("[broadcast] encode %s for %s: %v", event, w.ID(), err)
				continue
			}
			for _, s := range members {
				if err := e.sessions.SendEncoded(s, event, data); err == nil {
					e.telemetry.RecordBroadcast(len(data), len(records))
				}
			}
			e.telemetry.RecordFrame(reset)
		}
		for _, ent := range w.Entities() {
			ent.ClearDirty()
		}
	}
}

// worldRecords builds the frame records for w. A reset covers every live
// entity; an update covers only dirty ones. Dead entities awaiting
// collection are included as deletes when includeDead is set.
func worldRecords(w *world.World, reset, includeDead bool) []proto.EntityRecord {
	entities := w.Entities()
	records := make([]proto.EntityRecord, 0, len(entities))
	for _, ent := range entities {
		dead := ent.IsDead()
		switch {
		case dead && !includeDead:
			continue
		case !reset && !ent.ShouldUpdate():
			continue
		}
		records = append(records, record(ent))
	}
	return records
}

func record(ent *entity.Entity) proto.EntityRecord {
	kind := proto.RecordUpdate
	if ent.IsDead() {
		kind = proto.RecordDelete
	}
	// Non-finite values would fail the codec for the whole world.
	pos, size, vel := ent.Position.Sanitize(), ent.Size.Sanitize(), ent.Velocity.Sanitize()
	return proto.EntityRecord{
		ID:     uint64(ent.ID),
		Asset:  ent.Asset,
		Name:   ent.Name,
		Type:   kind,
		X:      pos.X(),
		Y:      pos.Y(),
		XSize:  size.X(),
		YSize:  size.Y(),
		XSpeed: vel.X(),
		YSpeed: vel.Y(),
	}
}

func resetFrame(records []proto.EntityRecord) proto.ResetFrame {
	return proto.ResetFrame{Entities: records}
}

func updateFrame(records []proto.EntityRecord) proto.UpdateFrame {
	return proto.UpdateFrame{Updates: records}
}

// emitDebug fills and sends each session's debug buffer.
func (e *Engine) emitDebug(sessions []*session.Session) {
	total := e.universe.EntityCount()
	var names []string
	for _, w := range e.universe.Worlds() {
		for _, ent := range w.Entities() {
			names = append(names, ent.String())
		}
	}
	if len(names) > maxDebugEntities {
		names = append(names[:maxDebugEntities], "...")
	}
	entitiesLine := fmt.Sprintf("Entities (%d total): %s", total, strings.Join(names, ", "))

	for _, s := range sessions {
		controls, err := json.Marshal(s.Inputs())
		if err != nil {
			controls = []byte("{}")
		}
		lines := []string{
			"Controls: " + string(controls),
			fmt.Sprintf("Server Tick Speed: %.4f", e.dt),
			"Current Session: " + s.String(),
			entitiesLine,
		}
		s.SetDebug(lines)
		if err := e.sessions.Send(s, proto.EventDebug, lines); err != nil {
			e.logger.Printf("[debug] send to %s: %v", s.ID(), err)
		}
	}
}
