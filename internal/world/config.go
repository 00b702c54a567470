package world

// Config sizes the terrain generated for new worlds.
type Config struct {
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
	TileSize float64 `json:"tileSize"`
}

func DefaultConfig() Config {
	return Config{
		Width:    DefaultWidth,
		Height:   DefaultHeight,
		TileSize: DefaultTileSize,
	}
}

func (cfg Config) normalized() Config {
	normalized := cfg
	if normalized.Width <= 0 {
		normalized.Width = DefaultWidth
	}
	if normalized.Height <= 0 {
		normalized.Height = DefaultHeight
	}
	if normalized.TileSize <= 0 {
		normalized.TileSize = DefaultTileSize
	}
	// A world narrower than three tiles has no room inside its walls.
	if min(normalized.Width, normalized.Height) < 3*normalized.TileSize {
		normalized.TileSize = min(normalized.Width, normalized.Height) / 3
	}
	return normalized
}

func (cfg Config) Normalized() Config {
	return cfg.normalized()
}

func (cfg Config) Dimensions() (float64, float64) {
	n := cfg.normalized()
	return n.Width, n.Height
}

// TerrainSource returns a terrain generator for Universe. Every world gets
// the same layout.
func (cfg Config) TerrainSource() func(id string) Terrain {
	n := cfg.normalized()
	return func(string) Terrain {
		return GenerateTerrain(n.Width, n.Height, n.TileSize)
	}
}
