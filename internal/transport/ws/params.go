package ws

import (
	"encoding/json"
	"net/http"

	"terrainsynth.ai/internal/protocol"
	"terrainsynth.ai/internal/synth/classify"
	"terrainsynth.ai/internal/synth/worldgen"
)

// WorldParams describes w for hosts.
func WorldParams(w *worldgen.World) protocol.WorldParams {
	tu := w.Tuning
	p := protocol.WorldParams{
		Source:           tu.Source,
		Seed:             tu.Seed,
		LevelScale:       tu.LevelScale,
		HeightMultiplier: tu.HeightMultiplier,
		TileSize:         [2]float64{w.Layout.TileWidth, w.Layout.TileDepth},
		SampleSize:       [2]int{w.SampleWidth, w.SampleDepth},
		WorldTiles:       [2]int{w.Layout.WidthInTiles, w.Layout.DepthInTiles},
		Origin:           [2]float64{w.Layout.OriginX, w.Layout.OriginZ},
		Seamless:         tu.Seamless(),
		HeightTypes:      categoryRefs(w.Config.HeightTypes()),
		HeatTypes:        categoryRefs(w.Config.HeatTypes()),
		MoistureTypes:    categoryRefs(w.Config.MoistureTypes()),
	}
	if water, _, ok := w.Config.WaterCategory(); ok {
		p.WaterCategory = water.Name
	}
	for _, d := range w.Catalogs.Biomes.Defs {
		b := w.Catalogs.Biomes.ByID[d.ID]
		p.Biomes = append(p.Biomes, protocol.BiomeRef{ID: b.Name, Color: classify.FormatColor(b.Color)})
	}
	return p
}

func categoryRefs(cats classify.Categories) []protocol.CategoryRef {
	out := make([]protocol.CategoryRef, 0, len(cats))
	for _, c := range cats {
		out = append(out, protocol.CategoryRef{Name: c.Name, Threshold: c.Threshold, Color: classify.FormatColor(c.Color)})
	}
	return out
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		resp := protocol.BootstrapResponse{
			ProtocolVersion: protocol.Version,
			WorldParams:     s.welcome.WorldParams,
			Catalogs:        s.welcome.Catalogs,
			TuningDigest:    s.welcome.TuningDigest,
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(resp)
	}
}
