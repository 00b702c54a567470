package server

import "time"

const (
	// DefaultTickRate is the fixed simulation rate in ticks per second.
	DefaultTickRate = 30
	// DefaultResetInterval is the number of ticks between full reset frames.
	DefaultResetInterval = 30
	// DefaultCatchupMaxTicks caps dt after a stall to this many periods.
	DefaultCatchupMaxTicks = 4

	ProjectileSpeed = 100.0
	ProjectileTTL   = 2 * time.Second
	FireCooldown    = 500 * time.Millisecond

	// maxDebugEntities bounds the entity list in debug messages.
	maxDebugEntities = 16
)

// Control keys read from a session's input map.
const (
	KeyUp    = "upArrow"
	KeyDown  = "downArrow"
	KeyLeft  = "leftArrow"
	KeyRight = "rightArrow"
	KeyFire  = "space"
)

// keyAliases maps WASD onto the arrow keys.
var keyAliases = map[string]string{
	"w": KeyUp,
	"s": KeyDown,
	"a": KeyLeft,
	"d": KeyRight,
}
