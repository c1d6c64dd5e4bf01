// Package tiler places tiles on the world grid and sequences their generation.
package tiler

import (
	"errors"
	"fmt"

	"terrainsynth.ai/internal/synth/mathx"
	"terrainsynth.ai/internal/synth/tile"
)

var ErrOutOfBounds = errors.New("tile out of bounds")

// Coord is an integer tile index.
type Coord struct {
	X int `json:"x"`
	Z int `json:"z"`
}

func (c Coord) String() string { return fmt.Sprintf("(%d,%d)", c.X, c.Z) }

// WorldOffsets returns the noise sampling offsets of tile (ix, iz): the negated
// world position. Neighbouring tiles then read one continuous noise plane, and
// with tileWidth == sampleWidth-1 tile i's last column equals tile i-1's first.
func WorldOffsets(ix, iz int, tileWidth, tileDepth float64) (offsetX, offsetZ float64) {
	return -float64(ix) * tileWidth, -float64(iz) * tileDepth
}

// Layout is a WidthInTiles x DepthInTiles grid of tiles starting at the world
// origin (OriginX, OriginZ).
type Layout struct {
	OriginX      float64
	OriginZ      float64
	TileWidth    float64
	TileDepth    float64
	WidthInTiles int
	DepthInTiles int
}

func (l Layout) Validate() error {
	if !(l.TileWidth > 0) || !mathx.Finite(l.TileWidth) || !(l.TileDepth > 0) || !mathx.Finite(l.TileDepth) {
		return fmt.Errorf("layout: tile size must be > 0, got %vx%v", l.TileWidth, l.TileDepth)
	}
	if l.WidthInTiles <= 0 || l.DepthInTiles <= 0 {
		return fmt.Errorf("layout: world must be at least 1x1 tiles, got %dx%d", l.WidthInTiles, l.DepthInTiles)
	}
	if !mathx.Finite(l.OriginX) || !mathx.Finite(l.OriginZ) {
		return fmt.Errorf("layout: origin must be finite")
	}
	return nil
}

func (l Layout) TileCount() int { return l.WidthInTiles * l.DepthInTiles }

// Position is the world position of the tile's origin corner.
func (l Layout) Position(c Coord) tile.Placement {
	return tile.Placement{
		X: l.OriginX + float64(c.X)*l.TileWidth,
		Z: l.OriginZ + float64(c.Z)*l.TileDepth,
	}
}

// Offsets are the noise sampling offsets for c, including the world origin.
func (l Layout) Offsets(c Coord) (float64, float64) {
	p := l.Position(c)
	return -p.X, -p.Z
}

func (l Layout) Contains(c Coord) bool {
	return c.X >= 0 && c.X < l.WidthInTiles && c.Z >= 0 && c.Z < l.DepthInTiles
}

// Coords lists every tile, row by row.
func (l Layout) Coords() []Coord {
	out := make([]Coord, 0, l.TileCount())
	for z := 0; z < l.DepthInTiles; z++ {
		for x := 0; x < l.WidthInTiles; x++ {
			out = append(out, Coord{X: x, Z: z})
		}
	}
	return out
}

// Rect lists the tiles of the inclusive rectangle [x0,x1] x [z0,z1].
func (l Layout) Rect(x0, z0, x1, z1 int) ([]Coord, error) {
	if x1 < x0 || z1 < z0 {
		return nil, fmt.Errorf("empty rect [%d,%d]-[%d,%d]", x0, z0, x1, z1)
	}
	if !l.Contains(Coord{X: x0, Z: z0}) || !l.Contains(Coord{X: x1, Z: z1}) {
		return nil, fmt.Errorf("%w: rect [%d,%d]-[%d,%d] outside %dx%d", ErrOutOfBounds, x0, z0, x1, z1, l.WidthInTiles, l.DepthInTiles)
	}
	out := make([]Coord, 0, (x1-x0+1)*(z1-z0+1))
	for z := z0; z <= z1; z++ {
		for x := x0; x <= x1; x++ {
			out = append(out, Coord{X: x, Z: z})
		}
	}
	return out, nil
}

// TileAt returns the tile covering a world position.
func (l Layout) TileAt(worldX, worldZ float64) (Coord, bool) {
	c := Coord{
		X: mathx.FloorToInt(worldX-l.OriginX, l.TileWidth),
		Z: mathx.FloorToInt(worldZ-l.OriginZ, l.TileDepth),
	}
	return c, l.Contains(c)
}
