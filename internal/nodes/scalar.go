package nodes

import (
	"errors"
	"math"

	"github.com/kiesman99/goat/pkg/tile"
)

// Upper bounds of the capped scalar nodes
const (
	MaxInt   = math.MaxInt32
	MaxFloat = 1125899906842624.0
)

// ErrDivideByZero is returned by DivideRounded for b == 0
var ErrDivideByZero = errors.New("division by zero")

// CapInt limits v to limit. A limit of 0 means uncapped.
func CapInt(v, limit int64) int64 {
	if limit == 0 {
		return v
	}
	return min(v, limit)
}

// CapFloat limits v to limit. A limit of 0 means uncapped.
func CapFloat(v, limit float64) float64 {
	if limit == 0 {
		return v
	}
	return math.Min(v, limit)
}

// DivideRounded divides a by b and rounds half to even
func DivideRounded(a, b int64) (int64, error) {
	if b == 0 {
		return 0, ErrDivideByZero
	}
	return int64(math.RoundToEven(float64(a) / float64(b))), nil
}

// SideLength returns the longest or the shortest side of img
func SideLength(img *tile.Image, longest bool) int {
	if longest {
		return max(img.Width, img.Height)
	}
	return min(img.Width, img.Height)
}
