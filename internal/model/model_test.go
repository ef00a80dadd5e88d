package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiesman99/goat/internal/resample"
	"github.com/kiesman99/goat/pkg/tile"
)

func TestResamplingModel(t *testing.T) {
	m := NewResampling(4, resample.Nearest, nil)
	assert.Equal(t, 4, m.Scale())

	img := tile.NewImage(5, 3, 3, tile.FormatFloat)
	out, err := InferOne(t.Context(), m, img)
	require.NoError(t, err)
	assert.Equal(t, 20, out.Width)
	assert.Equal(t, 12, out.Height)
}

func TestInferPropagatesErrors(t *testing.T) {
	boom := errors.New("out of memory")
	m := New(2, func(context.Context, *tile.Image) (*tile.Image, error) {
		return nil, boom
	})

	_, err := InferOne(t.Context(), m, tile.NewImage(2, 2, 3, tile.FormatFloat))
	assert.ErrorIs(t, err, boom)
}

func TestInferStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	m := NewResampling(2, resample.Nearest, nil)
	_, err := m.Infer(ctx, []*tile.Image{tile.NewImage(2, 2, 3, tile.FormatFloat)})
	assert.ErrorIs(t, err, context.Canceled)
}
