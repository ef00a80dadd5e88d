// Package stitch splits images into overlapping tiles and merges tile batches
// back into a single image with weighted blending across the overlaps.
package stitch

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/kiesman99/goat/internal/logging"
	"github.com/kiesman99/goat/pkg/tile"
)

// MaxBlendRange is the largest accepted blend range in pixels
const MaxBlendRange = 8192

// Tiles is the result of splitting an image
type Tiles struct {
	Batch    []*tile.Image
	Metadata tile.Metadata
	Count    int
}

// Stitcher handles splitting and merging
type Stitcher struct {
	workers int
}

// NewStitcher creates a new stitcher. workers bounds the number of tiles
// extracted concurrently; values below 1 use GOMAXPROCS.
func NewStitcher(workers int) *Stitcher {
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Stitcher{workers: workers}
}

// Split cuts img into tiles of a fixed size, emitted in the order chosen by opts.Mode
func (s *Stitcher) Split(ctx context.Context, img *tile.Image, opts tile.Options) (*Tiles, error) {
	origins, err := tile.GenerateOrigins(img.Width, img.Height, opts.GeometryOptions)
	if err != nil {
		return nil, err
	}

	origins, err = tile.Reorder(origins, opts.Mode, tile.Layout{
		ImageWidth:  img.Width,
		ImageHeight: img.Height,
		TileWidth:   opts.TileWidth,
		TileHeight:  opts.TileHeight,
	})
	if err != nil {
		return nil, err
	}

	logging.Logger().Debug("split image",
		"width", img.Width, "height", img.Height,
		"mode", opts.Mode.String(), "tiles", len(origins), "origins", origins)

	batch := make([]*tile.Image, len(origins))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, o := range origins {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			t, err := img.Crop(o.X, o.Y, opts.TileWidth, opts.TileHeight)
			if err != nil {
				return fmt.Errorf("tile %d: %w", i, err)
			}
			batch[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Tiles{
		Batch: batch,
		Metadata: tile.Metadata{
			Height:  img.Height,
			Width:   img.Width,
			Origins: origins,
		},
		Count: len(batch),
	}, nil
}

// Merge reconstructs an image from a tile batch. Tile i is placed at
// meta.Origins[i]; every edge that does not lie on the image border fades
// over blendRange pixels with the curve of mode, and overlapping samples are
// averaged by their weights. Pixels no tile contributes weight to stay 0.
//
// Seams are only guaranteed to vanish when the tile overlap is at least
// blendRange.
func (s *Stitcher) Merge(ctx context.Context, batch []*tile.Image, meta tile.Metadata, mode tile.BlendMode, blendRange int) (*tile.Image, error) {
	weightFn, err := mode.Func()
	if err != nil {
		return nil, err
	}
	if err := validateMerge(batch, meta, blendRange); err != nil {
		return nil, err
	}

	tw, th := batch[0].Width, batch[0].Height
	channels, format := batch[0].Channels, batch[0].Format

	acc := tile.NewAccumulator(meta.Width, meta.Height, channels, format)

	for i, o := range meta.Origins {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		edges := tile.InteriorEdges(o, tw, th, meta.Width, meta.Height)
		weights := tile.BuildWeightMatrix(tw, th, edges, blendRange, blendRange, weightFn)
		acc.Add(batch[i], o, weights)
	}

	logging.Logger().Debug("merged tiles",
		"tiles", len(batch), "width", meta.Width, "height", meta.Height,
		"blend_mode", mode.String(), "blend_range", blendRange)

	return acc.Image(), nil
}

// validateMerge rejects inconsistent input before any buffer is allocated
func validateMerge(batch []*tile.Image, meta tile.Metadata, blendRange int) error {
	if err := tile.CheckRange("blend_range", blendRange, 0, MaxBlendRange); err != nil {
		return err
	}
	if len(batch) == 0 {
		return &tile.ConfigError{Field: "images", Value: 0, Constraint: "tile batch is empty"}
	}
	if len(batch) != len(meta.Origins) {
		return &tile.ConfigError{
			Field:      "tile_data",
			Value:      len(meta.Origins),
			Constraint: fmt.Sprintf("origins do not match the %d tiles in the batch", len(batch)),
		}
	}
	if meta.Width <= 0 || meta.Height <= 0 {
		return &tile.ConfigError{
			Field:      "tile_data",
			Value:      fmt.Sprintf("%dx%d", meta.Width, meta.Height),
			Constraint: "is not a valid image size",
		}
	}

	first := batch[0]
	attenuateX, attenuateY := false, false
	for i, t := range batch {
		if t == nil || !t.SameShape(first) || t.Format != first.Format {
			return &tile.ConfigError{Field: "images", Value: i, Constraint: "tile differs in size, channels or format from tile 0"}
		}
		o := meta.Origins[i]
		if o.X < 0 || o.Y < 0 || o.X+t.Width > meta.Width || o.Y+t.Height > meta.Height {
			return &tile.ConfigError{
				Field:      "tile_data",
				Value:      o.String(),
				Constraint: fmt.Sprintf("places a %dx%d tile outside the %dx%d image", t.Width, t.Height, meta.Width, meta.Height),
			}
		}
		edges := tile.InteriorEdges(o, t.Width, t.Height, meta.Width, meta.Height)
		attenuateX = attenuateX || edges.Left || edges.Right
		attenuateY = attenuateY || edges.Top || edges.Bottom
	}

	if attenuateX && blendRange > first.Width {
		return &tile.ConfigError{Field: "blend_range", Value: blendRange, Constraint: fmt.Sprintf("is greater than tile width: %d", first.Width)}
	}
	if attenuateY && blendRange > first.Height {
		return &tile.ConfigError{Field: "blend_range", Value: blendRange, Constraint: fmt.Sprintf("is greater than tile height: %d", first.Height)}
	}
	return nil
}
