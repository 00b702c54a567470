package server

import "terrafort/server/internal/timing"

type WorldDiagnostics struct {
	ID       string `json:"id"`
	Entities int    `json:"entities"`
	Alive    int    `json:"alive"`
}

type SessionDiagnostics struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	World    string `json:"world"`
	PlayerID uint64 `json:"playerId,omitempty"`
	Dropped  uint64 `json:"droppedFrames"`
}

// Diagnostics is a point-in-time view of the engine.
type Diagnostics struct {
	ServerTime int64                `json:"serverTime"`
	State      string               `json:"state"`
	Tick       uint64               `json:"tick"`
	TickRate   int                  `json:"tickRate"`
	DT         float64              `json:"dt"`
	Worlds     []WorldDiagnostics   `json:"worlds"`
	Sessions   []SessionDiagnostics `json:"sessions"`
	Pending    int                  `json:"scheduledCallbacks"`
	Telemetry  TelemetrySnapshot    `json:"telemetry"`
	Counters   map[string]uint64    `json:"counters,omitempty"`
	Timing     *timing.Report       `json:"timing,omitempty"`
}

// DiagnosticsSnapshot collects the engine state. Timing data is drained
// from the collector when it supports pulling.
func (e *Engine) DiagnosticsSnapshot() Diagnostics {
	e.mu.Lock()
	d := Diagnostics{
		ServerTime: e.nowMillis(),
		State:      e.state.String(),
		Tick:       e.tick,
		TickRate:   e.cfg.TickRate,
		DT:         e.dt,
	}
	for _, w := range e.universe.Worlds() {
		d.Worlds = append(d.Worlds, WorldDiagnostics{ID: w.ID(), Entities: w.Len(), Alive: len(w.Alive())})
	}
	e.mu.Unlock()

	for _, s := range e.sessions.Sessions() {
		sd := SessionDiagnostics{ID: s.ID(), Username: s.Username(), World: s.WorldID(), Dropped: s.Dropped()}
		if p := s.Player(); p != nil {
			sd.PlayerID = uint64(p.ID)
		}
		d.Sessions = append(d.Sessions, sd)
	}
	d.Pending = e.scheduler.Pending()
	d.Telemetry = e.telemetry.Snapshot()
	if snap, ok := e.metrics.(interface{ Snapshot() map[string]uint64 }); ok {
		d.Counters = snap.Snapshot()
	}
	if puller, ok := e.timer.(interface{ Pull() timing.Report }); ok {
		report := puller.Pull()
		d.Timing = &report
	}
	return d
}
