// Package model defines the contract of an upscale model.
//
// A model multiplies both dimensions of every image in a batch by its fixed
// native scale. Loading weights and running real networks happens outside
// goat; this package only carries the contract and a resampling stand-in used
// by the command line and the HTTP API.
package model

import (
	"context"
	"fmt"

	"github.com/kiesman99/goat/internal/resample"
	"github.com/kiesman99/goat/pkg/tile"
)

// Model applies a fixed integer upscale to every image of a batch
type Model interface {
	Scale() int
	Infer(ctx context.Context, batch []*tile.Image) ([]*tile.Image, error)
}

// InferFunc upscales a single image
type InferFunc func(ctx context.Context, img *tile.Image) (*tile.Image, error)

type funcModel struct {
	scale int
	fn    InferFunc
}

// New wraps a per-image function as a Model
func New(scale int, fn InferFunc) Model {
	return &funcModel{scale: scale, fn: fn}
}

func (m *funcModel) Scale() int { return m.scale }

func (m *funcModel) Infer(ctx context.Context, batch []*tile.Image) ([]*tile.Image, error) {
	out := make([]*tile.Image, len(batch))
	for i, img := range batch {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		up, err := m.fn(ctx, img)
		if err != nil {
			return nil, err
		}
		out[i] = up
	}
	return out, nil
}

// NewResampling returns a model that emulates a network of the given scale
// by resampling with method
func NewResampling(scale int, method resample.Method, r resample.Resampler) Model {
	if r == nil {
		r = resample.Default
	}
	return New(scale, func(ctx context.Context, img *tile.Image) (*tile.Image, error) {
		return r.Resample(ctx, img, img.Width*scale, img.Height*scale, method)
	})
}

// InferOne runs the model on a single image and checks the result shape
func InferOne(ctx context.Context, m Model, img *tile.Image) (*tile.Image, error) {
	out, err := m.Infer(ctx, []*tile.Image{img})
	if err != nil {
		return nil, fmt.Errorf("model inference: %w", err)
	}
	if len(out) != 1 || out[0] == nil {
		return nil, fmt.Errorf("model inference: expected 1 image, got %d", len(out))
	}
	if out[0].Channels != img.Channels {
		return nil, fmt.Errorf("model inference: expected %d channels, got %d", img.Channels, out[0].Channels)
	}
	return out[0], nil
}
