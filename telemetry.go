package server

import (
	"sync/atomic"
	"time"

	"terrafort/server/internal/telemetry"
)

type telemetryCounters struct {
	bytesSent             atomic.Uint64
	entitiesSent          atomic.Uint64
	tickDurationMillis    atomic.Int64
	lastBroadcastBytes    atomic.Uint64
	lastBroadcastEntities atomic.Uint64
	resetFrames           atomic.Uint64
	updateFrames          atomic.Uint64
	ticks                 atomic.Uint64
	overruns              atomic.Uint64
	logger                telemetry.Logger
	debug                 bool
}

// TelemetrySnapshot is the broadcast and tick accounting exposed by
// diagnostics.
type TelemetrySnapshot struct {
	BytesSent    uint64 `json:"bytesSent"`
	EntitiesSent uint64 `json:"entitiesSent"`
	TickDuration int64  `json:"tickDurationMillis"`
	ResetFrames  uint64 `json:"resetFrames"`
	UpdateFrames uint64 `json:"updateFrames"`
	Ticks        uint64 `json:"ticks"`
	Overruns     uint64 `json:"tickOverruns"`
}

func newTelemetryCounters(logger telemetry.Logger, debug bool) *telemetryCounters {
	return &telemetryCounters{logger: logger, debug: debug}
}

func (t *telemetryCounters) RecordBroadcast(bytes, entities int) {
	bytes = max(bytes, 0)
	entities = max(entities, 0)
	t.bytesSent.Add(uint64(bytes))
	t.entitiesSent.Add(uint64(entities))
	t.lastBroadcastBytes.Store(uint64(bytes))
	t.lastBroadcastEntities.Store(uint64(entities))
}

// RecordFrame counts one frame built for a world.
func (t *telemetryCounters) RecordFrame(reset bool) {
	if reset {
		t.resetFrames.Add(1)
	} else {
		t.updateFrames.Add(1)
	}
}

func (t *telemetryCounters) RecordTickDuration(duration time.Duration) {
	millis := max(duration.Milliseconds(), 0)
	t.tickDurationMillis.Store(millis)
	t.ticks.Add(1)
	if t.debug && t.logger != nil {
		t.logger.Printf(
			"[telemetry] tick=%dms bytes=%d totalBytes=%d entities=%d totalEntities=%d",
			millis,
			t.lastBroadcastBytes.Load(),
			t.bytesSent.Load(),
			t.lastBroadcastEntities.Load(),
			t.entitiesSent.Load(),
		)
	}
}

func (t *telemetryCounters) IncrementOverrun() {
	t.overruns.Add(1)
}

func (t *telemetryCounters) Snapshot() TelemetrySnapshot {
	return TelemetrySnapshot{
		BytesSent:    t.bytesSent.Load(),
		EntitiesSent: t.entitiesSent.Load(),
		TickDuration: t.tickDurationMillis.Load(),
		ResetFrames:  t.resetFrames.Load(),
		UpdateFrames: t.updateFrames.Load(),
		Ticks:        t.ticks.Load(),
		Overruns:     t.overruns.Load(),
	}
}
