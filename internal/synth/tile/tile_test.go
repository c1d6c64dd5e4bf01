package tile

import (
	"errors"
	"image/color"
	"math"
	"testing"

	"terrainsynth.ai/internal/synth/classify"
	"terrainsynth.ai/internal/synth/curve"
	"terrainsynth.ai/internal/synth/noise"
)

var (
	blue    = color.RGBA{B: 255, A: 255}
	sand    = color.RGBA{R: 230, G: 210, B: 150, A: 255}
	green   = color.RGBA{G: 200, A: 255}
	white   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	deepSea = color.RGBA{B: 90, A: 255}
)

func testOptions(src noise.Source) Options {
	b := func(name string, r uint8) classify.Biome {
		return classify.Biome{Name: name, Color: color.RGBA{R: r, A: 255}}
	}
	return Options{
		Source:           src,
		Scale:            3.7,
		HeightMultiplier: 4,
		TileWidth:        10,
		TileDepth:        10,
		HeightWaves:      []noise.Wave{{Amplitude: 1, Frequency: 1, Seed: 0}, {Amplitude: 0.5, Frequency: 2, Seed: 11.3}},
		HeatWaves:        []noise.Wave{{Amplitude: 1, Frequency: 0.6, Seed: 101.7}},
		MoistureWaves:    []noise.Wave{{Amplitude: 1, Frequency: 0.9, Seed: 57.1}},
		HeightTypes: []classify.Category{
			{Name: "water", Threshold: 0.4, Color: blue},
			{Name: "sand", Threshold: 0.45, Color: sand},
			{Name: "grass", Threshold: 0.7, Color: green},
			{Name: "snow", Threshold: 1, Color: white},
		},
		HeatTypes: []classify.Category{
			{Name: "hot", Threshold: 0.5, Color: color.RGBA{R: 250, A: 255}},
			{Name: "cold", Threshold: 1, Color: color.RGBA{B: 250, A: 255}},
		},
		MoistureTypes: []classify.Category{
			{Name: "dry", Threshold: 0.5, Color: color.RGBA{R: 200, G: 200, A: 255}},
			{Name: "wet", Threshold: 1, Color: color.RGBA{G: 100, B: 200, A: 255}},
		},
		Biomes: [][]classify.Biome{
			{b("desert", 1), b("tundra", 2)},
			{b("rainforest", 3), b("taiga", 4)},
		},
		HeightCurve:          curve.Identity,
		HeatCurve:            curve.Identity,
		MoistureCurve:        curve.Func(func(float64) float64 { return 1 }),
		LatitudeCenterZ:      5,
		LatitudeMaxDistanceZ: 10,
		WaterCategory:        "water",
	}
}

func mustConfig(t *testing.T, o Options) *Config {
	t.Helper()
	cfg, err := NewConfig(o)
	if err != nil {
		t.Fatalf("NewConfig: %v", err)
	}
	return cfg
}

func TestGenerate_Deterministic(t *testing.T) {
	cfg := mustConfig(t, testOptions(noise.NewPerlin(99)))
	a, err := Generate(cfg, Placement{X: 30, Z: -20}, 11, 11)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, err := Generate(cfg, Placement{X: 30, Z: -20}, 11, 11)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if a.Digest() != b.Digest() {
		t.Fatalf("digests differ: %s vs %s", a.Digest(), b.Digest())
	}
	for i := range a.HeatMap.Values {
		if math.Float64bits(a.HeatMap.Values[i]) != math.Float64bits(b.HeatMap.Values[i]) {
			t.Fatalf("heat cell %d differs", i)
		}
	}
	c, _ := Generate(cfg, Placement{X: 40, Z: -20}, 11, 11)
	if c.Digest() == a.Digest() {
		t.Fatalf("different placements produced identical tiles")
	}
}

func TestGenerate_SeamlessNeighbours(t *testing.T) {
	cfg := mustConfig(t, testOptions(noise.NewPerlin(5)))
	const samples = 11 // tile size 10 == samples-1

	// Column index runs against world X: tile i's last column meets tile i-1's first.
	west, _ := Generate(cfg, Placement{X: 10, Z: 0}, samples, samples)
	east, _ := Generate(cfg, Placement{X: 20, Z: 0}, samples, samples)
	last := east.HeightMap.Column(samples - 1)
	first := west.HeightMap.Column(0)
	for z := range last {
		if math.Abs(last[z]-first[z]) > 1e-9 {
			t.Fatalf("seam mismatch at row %d: %v vs %v", z, last[z], first[z])
		}
	}

	lower, _ := Generate(cfg, Placement{X: 10, Z: -10}, samples, samples)
	upper, _ := Generate(cfg, Placement{X: 10, Z: 0}, samples, samples)
	lastRow := upper.HeightMap.Row(samples - 1)
	firstRow := lower.HeightMap.Row(0)
	for x := range lastRow {
		if math.Abs(lastRow[x]-firstRow[x]) > 1e-9 {
			t.Fatalf("z seam mismatch at col %d: %v vs %v", x, lastRow[x], firstRow[x])
		}
	}
}

func TestGenerate_HeatAndMoistureCoupling(t *testing.T) {
	o := testOptions(noise.Constant(0.5))
	o.TileDepth = 3
	cfg := mustConfig(t, o)
	r, err := Generate(cfg, Placement{}, 2, 3)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// heat = latitude*0.5 + curve(0.5^2); latitude rows are mirrored.
	wantHeat := []float64{0.3*0.5 + 0.25, 0.4*0.5 + 0.25, 0.5*0.5 + 0.25}
	for row, want := range wantHeat {
		for x := 0; x < 2; x++ {
			if got := r.HeatMap.At(row, x); math.Abs(got-want) > 1e-12 {
				t.Fatalf("heat[%d][%d]=%v want %v", row, x, got, want)
			}
		}
	}
	for i, v := range r.MoistureMap.Values {
		if v != 0 {
			t.Fatalf("moisture cell %d = %v, want 0.5 - 1*0.5", i, v)
		}
		if r.HeightMap.Values[i] != 0.5 {
			t.Fatalf("height cell %d = %v", i, r.HeightMap.Values[i])
		}
	}
	// height 0.5 -> grass; heat 0.4/0.45 -> hot, 0.5 -> cold; moisture 0 -> dry.
	if r.HeightColors[0] != green {
		t.Fatalf("height color %v want grass", r.HeightColors[0])
	}
	if r.Biomes[0] != "desert" || r.Biomes[2] != "desert" || r.Biomes[4] != "tundra" {
		t.Fatalf("biomes=%v", r.Biomes)
	}
	if r.BiomeColors[4] != (color.RGBA{R: 2, A: 255}) {
		t.Fatalf("tundra color=%v", r.BiomeColors[4])
	}
	if got := r.Colors(ModeHeat)[4]; got != (color.RGBA{B: 250, A: 255}) {
		t.Fatalf("Colors(HEAT)[4]=%v", got)
	}
}

func TestGenerate_LatitudeUsesVertexUnits(t *testing.T) {
	o := testOptions(noise.Constant(0.5))
	o.HeatCurve = curve.Zero
	o.TileDepth = 20 // spacing 2 world units per sample
	o.LatitudeCenterZ = 0
	o.LatitudeMaxDistanceZ = 1
	cfg := mustConfig(t, o)
	r, err := Generate(cfg, Placement{Z: 8}, 1, 10)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	// Row z=0 sits at vertex offset 8/2 = 4 and lands on the last row.
	if got := r.HeatMap.At(9, 0); got != 4*0.5 {
		t.Fatalf("heat=%v want %v", got, 4*0.5)
	}
}

func TestGenerate_WaterExclusion(t *testing.T) {
	cfg := mustConfig(t, testOptions(noise.Constant(0.1)))
	r, err := Generate(cfg, Placement{X: 3, Z: 4}, 4, 4)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for i := range r.BiomeColors {
		if r.BiomeColors[i] != blue || r.Biomes[i] != "" {
			t.Fatalf("cell %d: color=%v biome=%q, want water", i, r.BiomeColors[i], r.Biomes[i])
		}
	}
	if r.WaterCells() != 16 || r.BiomeCounts()[""] != 16 {
		t.Fatalf("water cells=%d", r.WaterCells())
	}

	water := cfg.HeightTypes()[0]
	for _, heat := range append(cfg.HeatTypes(), classify.Category{Name: "bogus", Rank: 99}) {
		for _, moist := range cfg.MoistureTypes() {
			b, c := cfg.BiomeColor(water, heat, moist)
			if c != blue || b.Name != "" {
				t.Fatalf("water with heat=%s moisture=%s gave %v/%q", heat.Name, moist.Name, c, b.Name)
			}
		}
	}
}

func TestGenerate_WaterMatchesOnlyTheWaterRank(t *testing.T) {
	o := testOptions(noise.Constant(0.42))
	o.HeightTypes = []classify.Category{
		{Name: "water", Threshold: 0.4, Color: blue},
		{Name: "Water", Threshold: 0.45, Color: sand},
		{Name: "grass", Threshold: 0.7, Color: green},
		{Name: "snow", Threshold: 1, Color: white},
	}
	cfg := mustConfig(t, o)
	if w, _, ok := cfg.WaterCategory(); !ok || w.Rank != 0 || w.Name != "water" {
		t.Fatalf("water category=%+v ok=%v want rank 0", w, ok)
	}
	r, err := Generate(cfg, Placement{}, 2, 2)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	for i := range r.Biomes {
		if r.HeightRanks[i] != 1 {
			t.Fatalf("cell %d height rank=%d want 1", i, r.HeightRanks[i])
		}
		if r.Biomes[i] == "" || r.BiomeColors[i] == blue {
			t.Fatalf("cell %d treated as water: biome=%q color=%v", i, r.Biomes[i], r.BiomeColors[i])
		}
	}
	if r.WaterCells() != 0 {
		t.Fatalf("water cells=%d want 0", r.WaterCells())
	}
}

func TestGenerate_NaNSourceDoesNotPanic(t *testing.T) {
	o := testOptions(noise.SourceFunc(func(x, z float64) float64 { return math.NaN() }))
	lin, err := curve.Linear([2]float64{0, 0}, [2]float64{1, 1})
	if err != nil {
		t.Fatalf("Linear: %v", err)
	}
	o.HeightCurve, o.HeatCurve, o.MoistureCurve = lin, lin, lin
	cfg := mustConfig(t, o)
	r, err := Generate(cfg, Placement{}, 2, 2)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	last := len(cfg.HeightTypes()) - 1
	for i, rank := range r.HeightRanks {
		if rank != last {
			t.Fatalf("cell %d height rank=%d want %d", i, rank, last)
		}
	}
	if d := cfg.Displace(math.NaN()); !math.IsNaN(d) {
		t.Fatalf("Displace(NaN)=%v want NaN", d)
	}
}

func TestConfig_WaterColorOverride(t *testing.T) {
	o := testOptions(noise.Constant(0.1))
	o.WaterColor = &deepSea
	cfg := mustConfig(t, o)
	r, _ := Generate(cfg, Placement{}, 2, 2)
	if r.BiomeColors[0] != deepSea {
		t.Fatalf("water color=%v want override", r.BiomeColors[0])
	}
	if r.HeightColors[0] != blue {
		t.Fatalf("height color should keep the category color")
	}
}

func TestConfig_NoWaterCategory(t *testing.T) {
	o := testOptions(noise.Constant(0.1))
	o.WaterCategory = ""
	cfg := mustConfig(t, o)
	if _, _, ok := cfg.WaterCategory(); ok {
		t.Fatalf("water should be disabled")
	}
	r, _ := Generate(cfg, Placement{}, 2, 2)
	if r.Biomes[0] == "" {
		t.Fatalf("cells should carry biomes when water is disabled")
	}
}

func TestBiomeColor_UndefinedSentinel(t *testing.T) {
	cfg := mustConfig(t, testOptions(noise.Constant(0.5)))
	grass := cfg.HeightTypes()[2]
	b, c := cfg.BiomeColor(grass, classify.Category{Name: "x", Rank: 7}, cfg.MoistureTypes()[0])
	if b != classify.UndefinedBiome || c != classify.UndefinedBiome.Color {
		t.Fatalf("out-of-range rank gave %v/%v, want sentinel", b, c)
	}
}

func TestNewConfig_Rejects(t *testing.T) {
	cases := map[string]func(o *Options){
		"source":                  func(o *Options) { o.Source = nil },
		"scale":                   func(o *Options) { o.Scale = 0 },
		"height_multiplier":       func(o *Options) { o.HeightMultiplier = -1 },
		"tile_width":              func(o *Options) { o.TileWidth = 0 },
		"tile_depth":              func(o *Options) { o.TileDepth = math.Inf(1) },
		"latitude_max_distance_z": func(o *Options) { o.LatitudeMaxDistanceZ = 0 },
		"height_waves":            func(o *Options) { o.HeightWaves = nil },
		"heat_waves":              func(o *Options) { o.HeatWaves = []noise.Wave{{Amplitude: 0, Frequency: 1}} },
		"moisture_waves":          func(o *Options) { o.MoistureWaves = []noise.Wave{{Amplitude: -2, Frequency: 1}} },
		"height_types":            func(o *Options) { o.HeightTypes = nil },
		"biomes":                  func(o *Options) { o.Biomes = o.Biomes[:1] },
		"heat_curve":              func(o *Options) { o.HeatCurve = nil },
		"water_category":          func(o *Options) { o.WaterCategory = "lava" },
	}
	for field, mutate := range cases {
		o := testOptions(noise.Constant(0.5))
		mutate(&o)
		_, err := NewConfig(o)
		var ce *ConfigError
		if !errors.As(err, &ce) {
			t.Fatalf("%s: err=%v, want *ConfigError", field, err)
		}
		if ce.Field != field {
			t.Fatalf("%s: field=%s", field, ce.Field)
		}
		if !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("%s: error does not wrap ErrInvalidConfig", field)
		}
	}
}

func TestNewConfig_CopiesInputs(t *testing.T) {
	o := testOptions(noise.Constant(0.5))
	cfg := mustConfig(t, o)
	o.HeightWaves[0].Amplitude = 100
	o.HeightTypes[0].Name = "lava"
	if cfg.HeightWaves()[0].Amplitude != 1 || cfg.HeightTypes()[0].Name != "water" {
		t.Fatalf("config aliases caller slices")
	}
}

func TestGenerate_RejectsBadGrid(t *testing.T) {
	cfg := mustConfig(t, testOptions(noise.Constant(0.5)))
	if _, err := Generate(cfg, Placement{}, 0, 4); !errors.Is(err, noise.ErrInvalidParams) {
		t.Fatalf("err=%v", err)
	}
	if _, err := Generate(nil, Placement{}, 4, 4); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err=%v", err)
	}
}

func TestDisplaceAndModes(t *testing.T) {
	cfg := mustConfig(t, testOptions(noise.Constant(0.5)))
	if got := cfg.Displace(0.25); got != 1 {
		t.Fatalf("Displace(0.25)=%v want 1", got)
	}
	for in, want := range map[string]Mode{"": ModeBiome, "height": ModeHeight, "HEAT": ModeHeat, " moisture": ModeMoisture} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q)=%q,%v", in, got, err)
		}
	}
	if _, err := ParseMode("normals"); err == nil {
		t.Fatalf("expected error")
	}
}
