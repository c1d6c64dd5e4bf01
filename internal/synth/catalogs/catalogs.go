package catalogs

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"terrainsynth.ai/internal/synth/classify"
)

//go:embed defaults/*.json
var builtin embed.FS

const (
	HeightTypesFile   = "height_types.json"
	HeatTypesFile     = "heat_types.json"
	MoistureTypesFile = "moisture_types.json"
	BiomesFile        = "biomes.json"
)

type Catalogs struct {
	HeightTypes   CategoryCatalog
	HeatTypes     CategoryCatalog
	MoistureTypes CategoryCatalog
	Biomes        BiomeCatalog
}

type CategoryDef struct {
	Name      string  `json:"name"`
	Threshold float64 `json:"threshold"`
	Color     string  `json:"color"`
}

type CategoryCatalog struct {
	Defs       []CategoryDef
	Categories classify.Categories
	Digest     string
}

type BiomeDef struct {
	ID    string `json:"id"`
	Color string `json:"color"`
}

type BiomeCatalog struct {
	Defs []BiomeDef
	ByID map[string]classify.Biome
	// Rows is the table resolved to biomes, [moistureRank][heatRank].
	Rows   [][]classify.Biome
	Digest string
}

type biomeFile struct {
	Biomes []BiomeDef `json:"biomes"`
	Table  [][]string `json:"table"`
}

// Load reads the four catalog files from configDir.
func Load(configDir string) (*Catalogs, error) {
	return LoadFS(os.DirFS(configDir))
}

// Defaults returns the built-in catalogs.
func Defaults() *Catalogs {
	sub, err := fs.Sub(builtin, "defaults")
	if err != nil {
		panic(err)
	}
	c, err := LoadFS(sub)
	if err != nil {
		panic(fmt.Sprintf("built-in catalogs: %v", err))
	}
	return c
}

func LoadFS(fsys fs.FS) (*Catalogs, error) {
	var c Catalogs
	if err := loadCategories(fsys, HeightTypesFile, &c.HeightTypes); err != nil {
		return nil, err
	}
	if err := loadCategories(fsys, HeatTypesFile, &c.HeatTypes); err != nil {
		return nil, err
	}
	if err := loadCategories(fsys, MoistureTypesFile, &c.MoistureTypes); err != nil {
		return nil, err
	}
	if err := loadBiomes(fsys, BiomesFile, len(c.MoistureTypes.Categories), len(c.HeatTypes.Categories), &c.Biomes); err != nil {
		return nil, err
	}
	return &c, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadCategories(fsys fs.FS, name string, out *CategoryCatalog) error {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var defs []CategoryDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	cats := make([]classify.Category, 0, len(defs))
	for _, d := range defs {
		col, err := classify.ParseColor(d.Color)
		if err != nil {
			return fmt.Errorf("%s: %s: %w", name, d.Name, err)
		}
		cats = append(cats, classify.Category{Name: d.Name, Threshold: d.Threshold, Color: col})
	}
	out.Categories, err = classify.NewCategories(cats)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	out.Defs = defs
	return nil
}

func loadBiomes(fsys fs.FS, name string, moistureCount, heatCount int, out *BiomeCatalog) error {
	raw, err := fs.ReadFile(fsys, name)
	if err != nil {
		return err
	}
	out.Digest = sha256Hex(raw)

	var f biomeFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	out.ByID = map[string]classify.Biome{}
	for i, d := range f.Biomes {
		id := strings.TrimSpace(d.ID)
		f.Biomes[i].ID = id
		if id == "" {
			return fmt.Errorf("%s: empty id", name)
		}
		if _, dup := out.ByID[id]; dup {
			return fmt.Errorf("%s: duplicate biome id: %s", name, id)
		}
		col, err := classify.ParseColor(d.Color)
		if err != nil {
			return fmt.Errorf("%s: %s: %w", name, id, err)
		}
		out.ByID[id] = classify.Biome{Name: id, Color: col}
	}

	rows := make([][]classify.Biome, len(f.Table))
	for m, ids := range f.Table {
		rows[m] = make([]classify.Biome, len(ids))
		for h, id := range ids {
			b, ok := out.ByID[id]
			if !ok {
				return fmt.Errorf("%s: table[%d][%d]: unknown biome %q", name, m, h, id)
			}
			rows[m][h] = b
		}
	}
	if _, err := classify.NewBiomeTable(rows, moistureCount, heatCount); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	out.Defs = f.Biomes
	out.Rows = rows
	return nil
}

// Digests maps each catalog file to the SHA-256 of its bytes.
func (c *Catalogs) Digests() map[string]string {
	return map[string]string{
		HeightTypesFile:   c.HeightTypes.Digest,
		HeatTypesFile:     c.HeatTypes.Digest,
		MoistureTypesFile: c.MoistureTypes.Digest,
		BiomesFile:        c.Biomes.Digest,
	}
}
