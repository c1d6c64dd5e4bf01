package tile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image/color"
	"strings"

	"terrainsynth.ai/internal/synth/io/digestcodec"
	"terrainsynth.ai/internal/synth/noise"
)

// ColorGrid is row-major like noise.ScalarField.
type ColorGrid []color.RGBA

// Mode selects which classified field a host presents.
type Mode string

const (
	ModeHeight   Mode = "HEIGHT"
	ModeHeat     Mode = "HEAT"
	ModeMoisture Mode = "MOISTURE"
	ModeBiome    Mode = "BIOME"
)

func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToUpper(strings.TrimSpace(s))); m {
	case "":
		return ModeBiome, nil
	case ModeHeight, ModeHeat, ModeMoisture, ModeBiome:
		return m, nil
	default:
		return "", fmt.Errorf("unknown visualization mode %q", s)
	}
}

// Result bundles the fields of one tile. All grids share Width x Depth.
type Result struct {
	Width int
	Depth int

	HeightMap   *noise.ScalarField
	HeatMap     *noise.ScalarField
	MoistureMap *noise.ScalarField

	HeightRanks   []int
	HeatRanks     []int
	MoistureRanks []int

	HeightColors   ColorGrid
	HeatColors     ColorGrid
	MoistureColors ColorGrid
	BiomeColors    ColorGrid

	// Biomes holds the biome name per cell; water cells are empty.
	Biomes []string
}

func (r *Result) Colors(m Mode) ColorGrid {
	switch m {
	case ModeHeight:
		return r.HeightColors
	case ModeHeat:
		return r.HeatColors
	case ModeMoisture:
		return r.MoistureColors
	default:
		return r.BiomeColors
	}
}

// BiomeCounts is the per-biome cell histogram; water cells count under "".
func (r *Result) BiomeCounts() map[string]int {
	out := map[string]int{}
	for _, b := range r.Biomes {
		out[b]++
	}
	return out
}

func (r *Result) WaterCells() int {
	n := 0
	for _, b := range r.Biomes {
		if b == "" {
			n++
		}
	}
	return n
}

// Digest is a stable hex SHA-256 over every field and grid.
func (r *Result) Digest() string {
	h := sha256.New()
	var tmp [8]byte
	digestcodec.WriteInts(h, &tmp, []int{r.Width, r.Depth})
	digestcodec.WriteFloats(h, &tmp, r.HeightMap.Values)
	digestcodec.WriteFloats(h, &tmp, r.HeatMap.Values)
	digestcodec.WriteFloats(h, &tmp, r.MoistureMap.Values)
	digestcodec.WriteInts(h, &tmp, r.HeightRanks)
	digestcodec.WriteInts(h, &tmp, r.HeatRanks)
	digestcodec.WriteInts(h, &tmp, r.MoistureRanks)
	digestcodec.WriteColors(h, &tmp, r.HeightColors)
	digestcodec.WriteColors(h, &tmp, r.HeatColors)
	digestcodec.WriteColors(h, &tmp, r.MoistureColors)
	digestcodec.WriteColors(h, &tmp, r.BiomeColors)
	for _, b := range r.Biomes {
		digestcodec.WriteString(h, &tmp, b)
	}
	return hex.EncodeToString(h.Sum(nil))
}
