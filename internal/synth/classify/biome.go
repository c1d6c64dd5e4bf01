package classify

import (
	"fmt"
	"image/color"
	"strings"
)

type Biome struct {
	Name  string
	Color color.RGBA
}

// UndefinedBiome is returned for ranks outside the table.
var UndefinedBiome = Biome{Name: "UNDEFINED", Color: color.RGBA{R: 255, G: 0, B: 255, A: 255}}

// BiomeTable is indexed [moistureRank][heatRank].
type BiomeTable struct {
	rows [][]Biome
}

// NewBiomeTable requires exactly moistureCount rows of heatCount biomes each.
func NewBiomeTable(rows [][]Biome, moistureCount, heatCount int) (*BiomeTable, error) {
	if moistureCount <= 0 || heatCount <= 0 {
		return nil, fmt.Errorf("biome table needs positive dimensions, got %dx%d", moistureCount, heatCount)
	}
	if len(rows) != moistureCount {
		return nil, fmt.Errorf("biome table has %d moisture rows, want %d", len(rows), moistureCount)
	}
	cp := make([][]Biome, len(rows))
	for m, row := range rows {
		if len(row) != heatCount {
			return nil, fmt.Errorf("biome table row %d has %d heat columns, want %d", m, len(row), heatCount)
		}
		for h, b := range row {
			if strings.TrimSpace(b.Name) == "" {
				return nil, fmt.Errorf("biome table [%d][%d]: name must not be empty", m, h)
			}
		}
		cp[m] = append([]Biome(nil), row...)
	}
	return &BiomeTable{rows: cp}, nil
}

func (t *BiomeTable) MoistureCount() int { return len(t.rows) }

func (t *BiomeTable) HeatCount() int {
	if len(t.rows) == 0 {
		return 0
	}
	return len(t.rows[0])
}

// Lookup reports false when either rank is outside the table.
func (t *BiomeTable) Lookup(moistureRank, heatRank int) (Biome, bool) {
	if moistureRank < 0 || moistureRank >= len(t.rows) {
		return Biome{}, false
	}
	row := t.rows[moistureRank]
	if heatRank < 0 || heatRank >= len(row) {
		return Biome{}, false
	}
	return row[heatRank], true
}

// At is Lookup with UndefinedBiome for out-of-range ranks.
func (t *BiomeTable) At(moistureRank, heatRank int) Biome {
	if b, ok := t.Lookup(moistureRank, heatRank); ok {
		return b
	}
	return UndefinedBiome
}

// Names lists distinct biome names in table order.
func (t *BiomeTable) Names() []string {
	seen := map[string]bool{}
	var out []string
	for _, row := range t.rows {
		for _, b := range row {
			if !seen[b.Name] {
				seen[b.Name] = true
				out = append(out, b.Name)
			}
		}
	}
	return out
}
