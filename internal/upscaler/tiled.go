package upscaler

import (
	"context"
	"fmt"

	"github.com/kiesman99/goat/internal/logging"
	"github.com/kiesman99/goat/internal/model"
	"github.com/kiesman99/goat/pkg/tile"
)

// QuadrantOverlap returns the overlap added to a quadrant of the given size:
// size/8 clamped to [8, 64], and at most size-1
func QuadrantOverlap(size int) int {
	ov := max(min(size/8, 64), 8)
	return max(1, min(ov, size-1))
}

// quadrant is a tile rectangle [x1, x2) x [y1, y2)
type quadrant struct {
	x1, y1, x2, y2 int
}

func (q quadrant) origin() tile.Origin { return tile.Origin{X: q.x1, Y: q.y1} }
func (q quadrant) width() int          { return q.x2 - q.x1 }
func (q quadrant) height() int         { return q.y2 - q.y1 }

// quadrants splits a width x height image into four overlapping corner tiles
func quadrants(width, height, overlapW, overlapH int) []quadrant {
	tw, th := width/2, height/2
	return []quadrant{
		{0, 0, tw + overlapW, th + overlapH},
		{width - tw - overlapW, 0, width, th + overlapH},
		{0, height - th - overlapH, tw + overlapW, height},
		{width - tw - overlapW, height - th - overlapH, width, height},
	}
}

// TiledInfer runs m on the four overlapping quadrants of img and blends them
// back together with sine weights over the scaled overlap. Edges on the image
// border are never faded.
func TiledInfer(ctx context.Context, m model.Model, img *tile.Image) (*tile.Image, error) {
	if img.Width < 2 || img.Height < 2 {
		return nil, fmt.Errorf("tiled upscale: image %dx%d is too small to split into quadrants", img.Width, img.Height)
	}
	scale := m.Scale()
	if scale < 1 {
		return nil, fmt.Errorf("tiled upscale: model scale %d is not positive", scale)
	}

	overlapW := QuadrantOverlap(img.Width / 2)
	overlapH := QuadrantOverlap(img.Height / 2)
	quads := quadrants(img.Width, img.Height, overlapW, overlapH)

	logging.Logger().Debug("tiled upscale",
		"tile_width", img.Width/2, "tile_height", img.Height/2,
		"overlap_width", overlapW, "overlap_height", overlapH)

	width, height := img.Width*scale, img.Height*scale
	acc := tile.NewAccumulator(width, height, img.Channels, img.Format)

	for i, q := range quads {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logging.Logger().Debug("tiled upscale: quadrant", "index", i+1, "x1", q.x1, "y1", q.y1, "x2", q.x2, "y2", q.y2)

		crop, err := img.Crop(q.x1, q.y1, q.width(), q.height())
		if err != nil {
			return nil, fmt.Errorf("quadrant %d: %w", i, err)
		}
		up, err := model.InferOne(ctx, m, crop)
		if err != nil {
			return nil, fmt.Errorf("quadrant %d: %w", i, err)
		}

		ux, uy := q.x1*scale, q.y1*scale
		uw := min(q.x2*scale, width) - ux
		uh := min(q.y2*scale, height) - uy
		if up.Width < uw || up.Height < uh {
			return nil, fmt.Errorf("quadrant %d: model returned %dx%d, expected at least %dx%d", i, up.Width, up.Height, uw, uh)
		}
		if up.Width != uw || up.Height != uh {
			if up, err = up.Crop(0, 0, uw, uh); err != nil {
				return nil, fmt.Errorf("quadrant %d: %w", i, err)
			}
		}

		edges := tile.InteriorEdges(q.origin(), q.width(), q.height(), img.Width, img.Height)
		weights := tile.BuildWeightMatrix(uw, uh, edges, overlapW*scale, overlapH*scale, tile.Sine)
		acc.Add(up, tile.Origin{X: ux, Y: uy}, weights)
	}

	return acc.Image(), nil
}
