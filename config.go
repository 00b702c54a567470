package server

import (
	"math"
	"time"

	"go.opentelemetry.io/otel/trace"

	"terrafort/server/internal/net/proto"
	"terrafort/server/internal/physics"
	"terrafort/server/internal/telemetry"
	"terrafort/server/internal/timing"
	"terrafort/server/internal/world"
	"terrafort/server/logging"
)

// Config tunes an Engine. Zero values fall back to DefaultConfig.
type Config struct {
	TickRate        int
	ResetInterval   uint64
	CatchupMaxTicks int
	// PhaseTimeout flags parallel phases that run longer than this. Slow
	// phases are reported, never abandoned. Zero disables the guard.
	PhaseTimeout  time.Duration
	DebugMessages bool
	// DebugTelemetry logs tick timings after every tick.
	DebugTelemetry bool
	WorldID        string
	Physics        physics.Config
	Terrain        func(worldID string) world.Terrain

	Codec      proto.Codec
	OutboxSize int

	Logger    telemetry.Logger
	Publisher logging.Publisher
	Metrics   telemetry.Metrics
	Timer     timing.Collector
	Tracer    trace.Tracer
	Clock     func() time.Time
}

func DefaultConfig() Config {
	return Config{
		TickRate:        DefaultTickRate,
		ResetInterval:   DefaultResetInterval,
		CatchupMaxTicks: DefaultCatchupMaxTicks,
		PhaseTimeout:    time.Second / DefaultTickRate,
		WorldID:         world.DefaultWorldID,
		Physics:         physics.DefaultConfig(),
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.TickRate <= 0 {
		c.TickRate = def.TickRate
	}
	if c.ResetInterval == 0 {
		c.ResetInterval = def.ResetInterval
	}
	if c.CatchupMaxTicks <= 0 {
		c.CatchupMaxTicks = def.CatchupMaxTicks
	}
	if c.PhaseTimeout < 0 {
		c.PhaseTimeout = 0
	}
	if c.WorldID == "" {
		c.WorldID = def.WorldID
	}
	if c.Codec == nil {
		c.Codec = proto.JSONCodec{}
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

// Period is the target duration of one tick.
func (c Config) Period() time.Duration {
	rate := c.TickRate
	if rate <= 0 {
		rate = DefaultTickRate
	}
	return time.Second / time.Duration(rate)
}

// ticksFor converts a duration into whole ticks, rounding up.
func (c Config) ticksFor(d time.Duration) uint64 {
	if d <= 0 {
		return 0
	}
	rate := c.TickRate
	if rate <= 0 {
		rate = DefaultTickRate
	}
	return uint64(math.Ceil(d.Seconds()*float64(rate) - 1e-9))
}
