package mathx

import "math"

func FloorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func Mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func Clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func Finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// FloorToInt floors a world coordinate into a cell index of the given size.
func FloorToInt(v, size float64) int {
	return int(math.Floor(v / size))
}
