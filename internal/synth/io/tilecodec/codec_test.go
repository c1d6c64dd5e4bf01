package tilecodec

import (
	"bytes"
	"image/color"
	"sync"
	"testing"
)

func TestCompressRoundTrip(t *testing.T) {
	src := bytes.Repeat([]byte(`{"type":"TILE","x":1}`), 200)
	frame, err := Compress(src)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if len(frame) >= len(src) {
		t.Fatalf("frame %d bytes, source %d", len(frame), len(src))
	}
	got, err := Decompress(frame)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(got, src) {
		t.Fatalf("round trip mismatch")
	}
	if _, err := Decompress([]byte("not zstd")); err == nil {
		t.Fatalf("expected error for garbage frame")
	}
}

func TestMarshalConcurrent(t *testing.T) {
	type msg struct {
		N    int    `json:"n"`
		Data []byte `json:"data"`
	}
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			frame, err := Marshal(msg{N: i, Data: []byte{byte(i), 1, 2}})
			if err != nil {
				errs <- err
				return
			}
			var out msg
			if err := Unmarshal(frame, &out); err != nil {
				errs <- err
				return
			}
			if out.N != i || out.Data[0] != byte(i) {
				t.Errorf("worker %d decoded %+v", i, out)
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("codec: %v", err)
	}
}

func TestPackColors(t *testing.T) {
	grid := []color.RGBA{{R: 1, G: 2, B: 3, A: 255}, {R: 250, A: 7}}
	b := PackColors(grid)
	if len(b) != 8 || b[4] != 250 || b[7] != 7 {
		t.Fatalf("packed=%v", b)
	}
	back, err := UnpackColors(b)
	if err != nil || back[0] != grid[0] || back[1] != grid[1] {
		t.Fatalf("unpacked=%v err=%v", back, err)
	}
	if _, err := UnpackColors(b[:5]); err == nil {
		t.Fatalf("expected length error")
	}
}

func TestPackHeights(t *testing.T) {
	in := []float64{0, 0.5, 0.25, 1}
	back, err := UnpackHeights(PackHeights(in))
	if err != nil {
		t.Fatalf("UnpackHeights: %v", err)
	}
	for i := range in {
		if back[i] != in[i] {
			t.Fatalf("height %d = %v want %v", i, back[i], in[i])
		}
	}
}
