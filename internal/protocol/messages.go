package protocol

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string      `json:"type"`
	ProtocolVersion string      `json:"protocol_version"`
	SessionID       string      `json:"session_id,omitempty"`
	WorldParams     WorldParams `json:"world_params"`

	// Catalogs maps catalog file names to content digests.
	Catalogs     map[string]string `json:"catalogs"`
	TuningDigest string            `json:"tuning_digest"`
}

type WorldParams struct {
	Source           string  `json:"source"`
	Seed             int64   `json:"seed"`
	LevelScale       float64 `json:"level_scale"`
	HeightMultiplier float64 `json:"height_multiplier"`

	TileSize   [2]float64 `json:"tile_size"`
	SampleSize [2]int     `json:"sample_size"`
	WorldTiles [2]int     `json:"world_tiles"`
	Origin     [2]float64 `json:"origin"`
	Seamless   bool       `json:"seamless"`

	WaterCategory string        `json:"water_category,omitempty"`
	HeightTypes   []CategoryRef `json:"height_types"`
	HeatTypes     []CategoryRef `json:"heat_types"`
	MoistureTypes []CategoryRef `json:"moisture_types"`
	Biomes        []BiomeRef    `json:"biomes"`
}

type CategoryRef struct {
	Name      string  `json:"name"`
	Threshold float64 `json:"threshold"`
	Color     string  `json:"color"`
}

type BiomeRef struct {
	ID    string `json:"id"`
	Color string `json:"color"`
}

// TILES (client -> server). Exactly one of Tiles and Rect is set; Rect is
// inclusive [x0, z0, x1, z1].
type TilesReq struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version,omitempty"`
	ReqID           string   `json:"req_id"`
	Tiles           [][2]int `json:"tiles,omitempty"`
	Rect            *[4]int  `json:"rect,omitempty"`
	Mode            string   `json:"mode,omitempty"`
	IncludeHeight   bool     `json:"include_height,omitempty"`
	Compress        bool     `json:"compress,omitempty"`
}

// TILE (server -> client). Colors are RGBA bytes, 4 per sample, row-major;
// Heights are little-endian float32 values. Both travel base64-encoded.
type TileMsg struct {
	Type        string         `json:"type"`
	ReqID       string         `json:"req_id"`
	X           int            `json:"x"`
	Z           int            `json:"z"`
	Width       int            `json:"width"`
	Depth       int            `json:"depth"`
	Mode        string         `json:"mode"`
	Colors      []byte         `json:"colors"`
	Heights     []byte         `json:"heights,omitempty"`
	BiomeCounts map[string]int `json:"biome_counts,omitempty"`
	WaterCells  int            `json:"water_cells"`
	Digest      string         `json:"digest"`
}

// DONE (server -> client)
type DoneMsg struct {
	Type      string `json:"type"`
	ReqID     string `json:"req_id"`
	Tiles     int    `json:"tiles"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type    string `json:"type"`
	ReqID   string `json:"req_id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// BootstrapResponse is served over HTTP so hosts can size their grids before
// opening the tile stream.
type BootstrapResponse struct {
	ProtocolVersion string            `json:"protocol_version"`
	WorldParams     WorldParams       `json:"world_params"`
	Catalogs        map[string]string `json:"catalogs"`
	TuningDigest    string            `json:"tuning_digest"`
}
