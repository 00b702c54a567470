package app

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	server "terrafort/server"
	"terrafort/server/internal/net/proto"
	"terrafort/server/internal/observability"
	"terrafort/server/internal/telemetry"
	"terrafort/server/internal/world"
	"terrafort/server/logging"
)

const defaultAddr = ":8080"

type Config struct {
	Logger        telemetry.Logger
	Observability observability.Config

	Addr      string
	ClientDir string
	Engine    server.Config
	World     world.Config
	Logging   logging.Config
	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Addr:            defaultAddr,
		Engine:          server.DefaultConfig(),
		World:           world.DefaultConfig(),
		Logging:         logging.DefaultConfig(),
		ShutdownTimeout: 5 * time.Second,
	}
}

// LoadConfig reads .env when present and then the process environment.
// Invalid values are logged and the default is kept.
func LoadConfig(logger telemetry.Logger) Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Printf("failed to load .env: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Logger = logger
	applyEnv(&cfg, os.Getenv, logger)
	return cfg
}

func applyEnv(cfg *Config, getenv func(string) string, logger telemetry.Logger) {
	if raw := getenv("ADDR"); raw != "" {
		cfg.Addr = raw
	}
	if raw := getenv("CLIENT_DIR"); raw != "" {
		cfg.ClientDir = raw
	}
	if raw := getenv("TICK_RATE"); raw != "" {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.Engine.TickRate = value
			cfg.Engine.PhaseTimeout = time.Second / time.Duration(value)
		} else {
			logger.Printf("invalid TICK_RATE=%q", raw)
		}
	}
	if raw := getenv("RESET_INTERVAL_TICKS"); raw != "" {
		if value, err := strconv.ParseUint(raw, 10, 64); err == nil && value > 0 {
			cfg.Engine.ResetInterval = value
		} else {
			logger.Printf("invalid RESET_INTERVAL_TICKS=%q", raw)
		}
	}
	for key, dst := range map[string]*float64{
		"WORLD_WIDTH":  &cfg.World.Width,
		"WORLD_HEIGHT": &cfg.World.Height,
		"TILE_SIZE":    &cfg.World.TileSize,
	} {
		raw := getenv(key)
		if raw == "" {
			continue
		}
		if value, err := strconv.ParseFloat(raw, 64); err == nil && value > 0 {
			*dst = value
		} else {
			logger.Printf("invalid %s=%q", key, raw)
		}
	}
	if raw := getenv("DEBUG_MESSAGES"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.Engine.DebugMessages = value
		} else {
			logger.Printf("invalid DEBUG_MESSAGES=%q: %v", raw, err)
		}
	}
	if raw := getenv("DEBUG_TELEMETRY"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.Engine.DebugTelemetry = value
		} else {
			logger.Printf("invalid DEBUG_TELEMETRY=%q: %v", raw, err)
		}
	}
	if raw := getenv("FRAME_CODEC"); raw != "" {
		codec, ok := proto.NewCodec(strings.ToLower(raw))
		if !ok {
			logger.Printf("unknown FRAME_CODEC=%q, using %s", raw, codec.Name())
		}
		cfg.Engine.Codec = codec
	}
	if raw := getenv("LOG_SINKS"); raw != "" {
		cfg.Logging.EnabledSinks = logging.ParseSinks(raw)
	}
	if raw := getenv("LOG_LEVEL"); raw != "" {
		if severity, ok := logging.ParseSeverity(raw); ok {
			cfg.Logging.MinimumSeverity = severity
		} else {
			logger.Printf("invalid LOG_LEVEL=%q", raw)
		}
	}
	if raw := getenv("LOG_JSON_PATH"); raw != "" {
		cfg.Logging.JSON.FilePath = raw
	}
	if raw := getenv("ENABLE_PPROF_TRACE"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.Observability.EnablePprofTrace = value
		} else {
			logger.Printf("invalid ENABLE_PPROF_TRACE=%q: %v", raw, err)
		}
	}
	if raw := getenv("ENABLE_TRACING"); raw != "" {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.Observability.EnableTracing = value
		} else {
			logger.Printf("invalid ENABLE_TRACING=%q: %v", raw, err)
		}
	}
	if raw := getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); raw != "" {
		endpoint := raw
		for _, scheme := range []string{"http://", "https://"} {
			endpoint = strings.TrimPrefix(endpoint, scheme)
		}
		cfg.Observability.OTLPEndpoint = endpoint
		cfg.Observability.OTLPInsecure = strings.HasPrefix(raw, "http://")
	}
	if raw := getenv("OTEL_SERVICE_NAME"); raw != "" {
		cfg.Observability.ServiceName = raw
	}
}
