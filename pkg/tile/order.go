package tile

import (
	"math"
	"slices"
	"sort"
)

// TilingMode selects the order in which tiles are emitted
type TilingMode int

const (
	ModeRadial TilingMode = iota
	ModeCheckerboard
	ModeSpiral
	ModeRow
	ModeColumn
	ModeDiagonal
)

var tilingModeNames = map[TilingMode]string{
	ModeRadial:       "radial",
	ModeCheckerboard: "checkerboard",
	ModeSpiral:       "spiral",
	ModeRow:          "row",
	ModeColumn:       "column",
	ModeDiagonal:     "diagonal",
}

func (m TilingMode) String() string {
	if name, ok := tilingModeNames[m]; ok {
		return name
	}
	return "unknown"
}

// TilingModes lists every mode in its canonical order
func TilingModes() []TilingMode {
	return []TilingMode{ModeRadial, ModeCheckerboard, ModeSpiral, ModeRow, ModeColumn, ModeDiagonal}
}

// ParseTilingMode resolves a mode name
func ParseTilingMode(name string) (TilingMode, error) {
	for mode, n := range tilingModeNames {
		if n == name {
			return mode, nil
		}
	}
	return 0, configErrorf("tiling_mode", name, "is not one of radial, checkerboard, spiral, row, column, diagonal")
}

// Layout gives the order strategies the context some of them need
type Layout struct {
	ImageWidth  int
	ImageHeight int
	TileWidth   int
	TileHeight  int
}

// Reorder returns a permutation of origins according to mode.
// The input slice is not modified.
func Reorder(origins []Origin, mode TilingMode, layout Layout) ([]Origin, error) {
	if len(origins) == 0 {
		if _, ok := tilingModeNames[mode]; !ok {
			return nil, configErrorf("tiling_mode", int(mode), "is not a known tiling mode")
		}
		return []Origin{}, nil
	}

	switch mode {
	case ModeRadial:
		return radialOrder(origins, layout), nil
	case ModeCheckerboard:
		return checkerboardOrder(origins), nil
	case ModeSpiral:
		return spiralOrder(origins), nil
	case ModeRow:
		return rowOrder(origins), nil
	case ModeColumn:
		return columnOrder(origins), nil
	case ModeDiagonal:
		return diagonalOrder(origins), nil
	default:
		return nil, configErrorf("tiling_mode", int(mode), "is not a known tiling mode")
	}
}

func rowOrder(origins []Origin) []Origin {
	out := slices.Clone(origins)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Y != out[j].Y {
			return out[i].Y < out[j].Y
		}
		return out[i].X < out[j].X
	})
	return out
}

func columnOrder(origins []Origin) []Origin {
	out := slices.Clone(origins)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].X != out[j].X {
			return out[i].X < out[j].X
		}
		return out[i].Y < out[j].Y
	})
	return out
}

func diagonalOrder(origins []Origin) []Origin {
	out := slices.Clone(origins)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].X+out[i].Y < out[j].X+out[j].Y
	})
	return out
}

// checkerboardOrder emits odd-indexed tiles first, then even-indexed ones
func checkerboardOrder(origins []Origin) []Origin {
	out := make([]Origin, 0, len(origins))
	for i := 1; i < len(origins); i += 2 {
		out = append(out, origins[i])
	}
	for i := 0; i < len(origins); i += 2 {
		out = append(out, origins[i])
	}
	return out
}

// radialOrder emits tiles farthest from the image center first
func radialOrder(origins []Origin, layout Layout) []Origin {
	cx := float64(layout.ImageWidth / 2)
	cy := float64(layout.ImageHeight / 2)
	dist := func(o Origin) float64 {
		return math.Hypot(float64(o.X+layout.TileWidth/2)-cx, float64(o.Y+layout.TileHeight/2)-cy)
	}

	out := slices.Clone(origins)
	sort.SliceStable(out, func(i, j int) bool {
		return dist(out[i]) < dist(out[j])
	})
	slices.Reverse(out)
	return out
}

// spiralOrder walks the pixel bounding rectangle of the origins in clockwise
// rings from the outside in, shrinking it by one pixel per ring, and emits the
// origins in the order the walk meets them. Duplicate origins are emitted as
// often as they occur.
//
// Instead of visiting every pixel of every ring, each origin gets the ring it
// lies on and its position along that ring, and the origins are sorted by both.
func spiralOrder(origins []Origin) []Origin {
	minX, maxX := origins[0].X, origins[0].X
	minY, maxY := origins[0].Y, origins[0].Y
	for _, o := range origins[1:] {
		minX, maxX = min(minX, o.X), max(maxX, o.X)
		minY, maxY = min(minY, o.Y), max(maxY, o.Y)
	}

	type position struct {
		ring, side, along int
	}
	locate := func(o Origin) position {
		ring := min(o.X-minX, maxX-o.X, o.Y-minY, maxY-o.Y)
		top, right, bottom := minY+ring, maxX-ring, maxY-ring
		switch {
		case o.Y == top:
			return position{ring, 0, o.X}
		case o.X == right:
			return position{ring, 1, o.Y}
		case o.Y == bottom:
			return position{ring, 2, -o.X}
		default:
			return position{ring, 3, -o.Y}
		}
	}

	out := slices.Clone(origins)
	slices.SortStableFunc(out, func(a, b Origin) int {
		pa, pb := locate(a), locate(b)
		if pa.ring != pb.ring {
			return pa.ring - pb.ring
		}
		if pa.side != pb.side {
			return pa.side - pb.side
		}
		return pa.along - pb.along
	})
	return out
}
