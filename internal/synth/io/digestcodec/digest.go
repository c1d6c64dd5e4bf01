package digestcodec

import (
	"encoding/binary"
	"image/color"
	"math"
	"sort"
)

type fieldWriter interface {
	Write(p []byte) (n int, err error)
}

// WriteFloats emits the IEEE-754 bits so digests are bit-exact.
func WriteFloats(w fieldWriter, tmp *[8]byte, vs []float64) {
	binary.LittleEndian.PutUint64(tmp[:], uint64(len(vs)))
	w.Write(tmp[:])
	for _, v := range vs {
		binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(v))
		w.Write(tmp[:])
	}
}

func WriteInts(w fieldWriter, tmp *[8]byte, vs []int) {
	binary.LittleEndian.PutUint64(tmp[:], uint64(len(vs)))
	w.Write(tmp[:])
	for _, v := range vs {
		binary.LittleEndian.PutUint64(tmp[:], uint64(v))
		w.Write(tmp[:])
	}
}

func WriteColors(w fieldWriter, tmp *[8]byte, cs []color.RGBA) {
	binary.LittleEndian.PutUint64(tmp[:], uint64(len(cs)))
	w.Write(tmp[:])
	var px [4]byte
	for _, c := range cs {
		px[0], px[1], px[2], px[3] = c.R, c.G, c.B, c.A
		w.Write(px[:])
	}
}

func WriteString(w fieldWriter, tmp *[8]byte, s string) {
	binary.LittleEndian.PutUint64(tmp[:], uint64(len(s)))
	w.Write(tmp[:])
	w.Write([]byte(s))
}

// WriteSortedNonZeroIntMap emits a deterministic key-sorted map encoding,
// skipping zero values to keep digest payload stable and compact.
func WriteSortedNonZeroIntMap(w fieldWriter, tmp *[8]byte, m map[string]int) {
	keys := make([]string, 0, len(m))
	for k, v := range m {
		if v != 0 {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		w.Write([]byte(k))
		binary.LittleEndian.PutUint64(tmp[:], uint64(m[k]))
		w.Write(tmp[:])
	}
}
