// Package tilecodec packs tile grids for the wire and wraps encoded messages in
// zstd frames.
package tilecodec

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"image/color"
	"math"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// MaxFrameSize bounds a decompressed frame.
const MaxFrameSize = 64 << 20

var (
	once sync.Once
	enc  *zstd.Encoder
	dec  *zstd.Decoder
	err0 error
)

func codecs() (*zstd.Encoder, *zstd.Decoder, error) {
	once.Do(func() {
		enc, err0 = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err0 != nil {
			return
		}
		dec, err0 = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxFrameSize), zstd.WithDecoderConcurrency(0))
	})
	return enc, dec, err0
}

// Compress returns src as a single zstd frame. Safe for concurrent use.
func Compress(src []byte) ([]byte, error) {
	e, _, err := codecs()
	if err != nil {
		return nil, err
	}
	return e.EncodeAll(src, make([]byte, 0, len(src)/2)), nil
}

func Decompress(src []byte) ([]byte, error) {
	_, d, err := codecs()
	if err != nil {
		return nil, err
	}
	out, err := d.DecodeAll(src, nil)
	if err != nil {
		return nil, fmt.Errorf("tilecodec: %w", err)
	}
	return out, nil
}

// Marshal encodes v as JSON and compresses it.
func Marshal(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Compress(b)
}

func Unmarshal(frame []byte, v any) error {
	b, err := Decompress(frame)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// PackColors flattens a color grid to RGBA bytes, 4 per cell.
func PackColors(grid []color.RGBA) []byte {
	out := make([]byte, 0, len(grid)*4)
	for _, c := range grid {
		out = append(out, c.R, c.G, c.B, c.A)
	}
	return out
}

func UnpackColors(b []byte) ([]color.RGBA, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("tilecodec: color data length %d is not a multiple of 4", len(b))
	}
	out := make([]color.RGBA, len(b)/4)
	for i := range out {
		out[i] = color.RGBA{R: b[i*4], G: b[i*4+1], B: b[i*4+2], A: b[i*4+3]}
	}
	return out, nil
}

// PackHeights stores values as little-endian float32.
func PackHeights(values []float64) []byte {
	out := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(float32(v)))
	}
	return out
}

func UnpackHeights(b []byte) ([]float64, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("tilecodec: height data length %d is not a multiple of 4", len(b))
	}
	out := make([]float64, len(b)/4)
	for i := range out {
		out[i] = float64(math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:])))
	}
	return out, nil
}
