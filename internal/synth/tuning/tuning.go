package tuning

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"terrainsynth.ai/internal/synth/classify"
	"terrainsynth.ai/internal/synth/curve"
	"terrainsynth.ai/internal/synth/noise"
)

//go:embed tuning.schema.json
var schemaJSON string

var schema = jsonschema.MustCompileString("tuning.schema.json", schemaJSON)

type Tuning struct {
	Source           string  `yaml:"source" json:"source"`
	Seed             int64   `yaml:"seed" json:"seed"`
	LevelScale       float64 `yaml:"level_scale" json:"level_scale"`
	HeightMultiplier float64 `yaml:"height_multiplier" json:"height_multiplier"`

	Tile     TileSpec     `yaml:"tile" json:"tile"`
	World    WorldSpec    `yaml:"world" json:"world"`
	Latitude LatitudeSpec `yaml:"latitude" json:"latitude"`

	WaterCategory string `yaml:"water_category" json:"water_category"`
	WaterColor    string `yaml:"water_color,omitempty" json:"water_color,omitempty"`

	Waves  WavesSpec  `yaml:"waves" json:"waves"`
	Curves CurvesSpec `yaml:"curves" json:"curves"`
}

type TileSpec struct {
	Width       float64 `yaml:"width" json:"width"`
	Depth       float64 `yaml:"depth" json:"depth"`
	SampleWidth int     `yaml:"sample_width" json:"sample_width"`
	SampleDepth int     `yaml:"sample_depth" json:"sample_depth"`
}

type WorldSpec struct {
	WidthTiles int     `yaml:"width_tiles" json:"width_tiles"`
	DepthTiles int     `yaml:"depth_tiles" json:"depth_tiles"`
	OriginX    float64 `yaml:"origin_x" json:"origin_x"`
	OriginZ    float64 `yaml:"origin_z" json:"origin_z"`
}

// LatitudeSpec is in vertex units. Both zero means "centered on the world".
type LatitudeSpec struct {
	CenterZ      float64 `yaml:"center_z" json:"center_z"`
	MaxDistanceZ float64 `yaml:"max_distance_z" json:"max_distance_z"`
}

type WavesSpec struct {
	Height   []noise.Wave `yaml:"height" json:"height"`
	Heat     []noise.Wave `yaml:"heat" json:"heat"`
	Moisture []noise.Wave `yaml:"moisture" json:"moisture"`
}

type CurvesSpec struct {
	Height   []curve.Key `yaml:"height" json:"height"`
	Heat     []curve.Key `yaml:"heat" json:"heat"`
	Moisture []curve.Key `yaml:"moisture" json:"moisture"`
}

func Defaults() Tuning {
	return Tuning{
		Source:           string(noise.KindPerlin),
		Seed:             1337,
		LevelScale:       3,
		HeightMultiplier: 3,
		Tile:             TileSpec{Width: 10, Depth: 10, SampleWidth: 11, SampleDepth: 11},
		World:            WorldSpec{WidthTiles: 8, DepthTiles: 8},
		WaterCategory:    "water",
		Waves: WavesSpec{
			Height: []noise.Wave{
				{Amplitude: 1, Frequency: 1, Seed: 4235},
				{Amplitude: 0.5, Frequency: 2, Seed: 5000},
				{Amplitude: 0.1, Frequency: 4, Seed: 9000},
			},
			Heat: []noise.Wave{
				{Amplitude: 1, Frequency: 1, Seed: 3000},
				{Amplitude: 0.5, Frequency: 2, Seed: 1000},
			},
			Moisture: []noise.Wave{
				{Amplitude: 1, Frequency: 1, Seed: 2000},
			},
		},
		Curves: CurvesSpec{
			Height:   []curve.Key{{Time: 0, Value: 0}, {Time: 0.4, Value: 0}, {Time: 1, Value: 1, InTangent: 2}},
			Heat:     []curve.Key{{Time: 0, Value: 0}, {Time: 1, Value: 0.5}},
			Moisture: []curve.Key{{Time: 0, Value: 0}, {Time: 1, Value: 0.5}},
		},
	}
}

// Load reads a tuning file. An empty path yields the defaults.
func Load(path string) (Tuning, error) {
	if strings.TrimSpace(path) == "" {
		t := Defaults()
		t.Normalize()
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, err
	}
	t, err := Parse(raw)
	if err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

// Parse validates raw against the tuning schema, overlays it on the defaults
// and checks the result.
func Parse(raw []byte) (Tuning, error) {
	if err := validateDocument(raw); err != nil {
		return Tuning{}, err
	}
	// Sequences in the document replace the default lists wholesale.
	t := Defaults()
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Tuning{}, err
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

func validateDocument(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if doc == nil {
		doc = map[string]any{}
	}
	// The validator expects JSON-decoded values.
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	return schema.Validate(v)
}

func (t *Tuning) Normalize() {
	t.Source = strings.ToLower(strings.TrimSpace(t.Source))
	t.WaterCategory = strings.TrimSpace(t.WaterCategory)
	t.WaterColor = strings.TrimSpace(t.WaterColor)
	if t.Tile.SampleWidth == 0 {
		t.Tile.SampleWidth = int(t.Tile.Width) + 1
	}
	if t.Tile.SampleDepth == 0 {
		t.Tile.SampleDepth = int(t.Tile.Depth) + 1
	}
	if t.Latitude.CenterZ == 0 && t.Latitude.MaxDistanceZ == 0 {
		half := float64(t.World.DepthTiles*t.Tile.SampleDepth) / 2
		t.Latitude.CenterZ = half
		t.Latitude.MaxDistanceZ = half
	}
}

// Validate checks what the schema cannot express. Semantic checks of waves,
// curves and categories happen when the tile config is built.
func (t Tuning) Validate() error {
	if _, err := noise.ParseKind(t.Source); err != nil {
		return err
	}
	if !(t.LevelScale > 0) {
		return fmt.Errorf("level_scale must be > 0")
	}
	if !(t.Tile.Width > 0) || !(t.Tile.Depth > 0) {
		return fmt.Errorf("tile size must be > 0")
	}
	if t.Tile.SampleWidth < 2 || t.Tile.SampleDepth < 2 {
		return fmt.Errorf("tile samples must be >= 2, got %dx%d", t.Tile.SampleWidth, t.Tile.SampleDepth)
	}
	if t.World.WidthTiles <= 0 || t.World.DepthTiles <= 0 {
		return fmt.Errorf("world must be at least 1x1 tiles")
	}
	if t.Latitude.MaxDistanceZ == 0 {
		return fmt.Errorf("latitude.max_distance_z must be non-zero")
	}
	if t.WaterColor != "" {
		if _, err := classify.ParseColor(t.WaterColor); err != nil {
			return fmt.Errorf("water_color: %w", err)
		}
	}
	return nil
}

// Seamless reports whether neighbouring tiles share their edge samples.
func (t Tuning) Seamless() bool {
	return t.Tile.Width == float64(t.Tile.SampleWidth-1) && t.Tile.Depth == float64(t.Tile.SampleDepth-1)
}

func (t Tuning) BuildCurves() (height, heat, moisture curve.Curve, err error) {
	h, err := curve.New(t.Curves.Height)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("curves.height: %w", err)
	}
	he, err := curve.New(t.Curves.Heat)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("curves.heat: %w", err)
	}
	m, err := curve.New(t.Curves.Moisture)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("curves.moisture: %w", err)
	}
	return h, he, m, nil
}

// Digest is a SHA-256 over the canonical JSON form.
func (t Tuning) Digest() string {
	b, _ := json.Marshal(t)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
