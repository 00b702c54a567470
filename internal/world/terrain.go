package world

// Tile is one cell of the terrain grid.
type Tile int

const (
	TileGrass Tile = iota
	TileWall
)

const (
	DefaultWidth    = 1600.0
	DefaultHeight   = 1600.0
	DefaultTileSize = 32.0
)

// Terrain is the static map payload sent with updateWorld.
type Terrain struct {
	Width    float64  `json:"width" msgpack:"width"`
	Height   float64  `json:"height" msgpack:"height"`
	TileSize float64  `json:"tileSize" msgpack:"tileSize"`
	Tiles    [][]Tile `json:"tiles" msgpack:"tiles"`
}

// GenerateTerrain builds a grass field ringed by walls.
func GenerateTerrain(width, height, tileSize float64) Terrain {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	if tileSize <= 0 {
		tileSize = DefaultTileSize
	}
	cols := int(width / tileSize)
	rows := int(height / tileSize)
	tiles := make([][]Tile, rows)
	for r := range tiles {
		tiles[r] = make([]Tile, cols)
		for c := range tiles[r] {
			if r == 0 || c == 0 || r == rows-1 || c == cols-1 {
				tiles[r][c] = TileWall
			}
		}
	}
	return Terrain{Width: width, Height: height, TileSize: tileSize, Tiles: tiles}
}

// DefaultTerrain is the map every new world starts with.
func DefaultTerrain() Terrain {
	return GenerateTerrain(DefaultWidth, DefaultHeight, DefaultTileSize)
}

func (t Terrain) bounded() bool {
	return t.Width > 0 && t.Height > 0
}
