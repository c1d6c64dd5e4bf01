package classify

import (
	"fmt"
	"image/color"
	"sort"
	"strings"

	"terrainsynth.ai/internal/synth/mathx"
)

// Category is a named bucket holding every value strictly below Threshold
// that no lower category claimed.
type Category struct {
	Name      string
	Threshold float64
	Color     color.RGBA
	Rank      int
}

// Categories is sorted ascending by Threshold; Rank equals position.
type Categories []Category

// NewCategories validates defs, orders them by threshold and assigns ranks.
// Input ranks are ignored.
func NewCategories(defs []Category) (Categories, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("categories must not be empty")
	}
	out := make(Categories, len(defs))
	copy(out, defs)
	seen := map[string]bool{}
	for i, c := range out {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			return nil, fmt.Errorf("category %d: name must not be empty", i)
		}
		if seen[name] {
			return nil, fmt.Errorf("duplicate category name: %s", name)
		}
		seen[name] = true
		if !mathx.Finite(c.Threshold) {
			return nil, fmt.Errorf("category %s: threshold must be finite", name)
		}
		out[i].Name = name
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Threshold < out[j].Threshold })
	for i := range out {
		out[i].Rank = i
	}
	return out, nil
}

// Index returns the rank of the named category.
// Index finds a category by name, preferring an exact match over a
// case-insensitive one.
func (cs Categories) Index(name string) (int, bool) {
	fold := -1
	for i, c := range cs {
		if c.Name == name {
			return i, true
		}
		if fold < 0 && strings.EqualFold(c.Name, name) {
			fold = i
		}
	}
	return fold, fold >= 0
}

func (cs Categories) Names() []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Name
	}
	return out
}

// Classify returns the first category whose threshold exceeds value, or the
// last category when none does. cats must be non-empty.
func Classify(value float64, cats Categories) Category {
	for _, c := range cats {
		if value < c.Threshold {
			return c
		}
	}
	return cats[len(cats)-1]
}
