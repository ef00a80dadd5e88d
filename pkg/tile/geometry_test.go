package tile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func geometry(tw, th, ro, co, rOff, cOff int) GeometryOptions {
	return GeometryOptions{
		TileWidth:  tw,
		TileHeight: th,
		RowOverlap: ro,
		ColOverlap: co,
		RowOffset:  rOff,
		ColOffset:  cOff,
	}
}

func TestGenerateOriginsFlushFinalTile(t *testing.T) {
	origins, err := GenerateOrigins(2000, 2000, geometry(1024, 1024, 48, 48, 0, 0))
	require.NoError(t, err)

	ordered, err := Reorder(origins, ModeRow, Layout{2000, 2000, 1024, 1024})
	require.NoError(t, err)
	assert.Equal(t, []Origin{{0, 0}, {976, 0}, {0, 976}, {976, 976}}, ordered)
}

func TestGenerateOriginsHalfOverlap(t *testing.T) {
	origins, err := GenerateOrigins(2000, 2000, geometry(1024, 1024, 512, 512, 0, 0))
	require.NoError(t, err)

	// Steps of 512 place a middle tile before the flush one on each axis.
	want := []Origin{
		{0, 0}, {512, 0}, {976, 0},
		{0, 512}, {512, 512}, {976, 512},
		{0, 976}, {512, 976}, {976, 976},
	}
	assert.Equal(t, want, origins)
}

func TestGenerateOriginsSingleTile(t *testing.T) {
	origins, err := GenerateOrigins(64, 32, geometry(64, 32, 8, 8, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, []Origin{{0, 0}}, origins)
}

func TestGenerateOriginsOffsets(t *testing.T) {
	origins, err := GenerateOrigins(100, 50, geometry(40, 50, 10, 10, 5, 0))
	require.NoError(t, err)

	// x walks 0, 30, 60; each column drifts by 5 more, the last is clamped.
	assert.Equal(t, []Origin{{0, 0}, {35, 0}, {60, 0}}, origins)
}

func TestGenerateOriginsStayInBounds(t *testing.T) {
	for _, off := range []int{-6, -3, 0, 3, 6} {
		origins, err := GenerateOrigins(97, 83, geometry(30, 25, 12, 10, off, off))
		require.NoError(t, err)
		for _, o := range origins {
			require.GreaterOrEqual(t, o.X, 0)
			require.GreaterOrEqual(t, o.Y, 0)
			require.LessOrEqual(t, o.X, 97-30)
			require.LessOrEqual(t, o.Y, 83-25)
		}
	}
}

func TestGenerateOriginsCoverImage(t *testing.T) {
	for iw := 9; iw <= 31; iw += 2 {
		for ih := 7; ih <= 23; ih += 4 {
			for tw := 4; tw <= min(iw, 12); tw += 2 {
				for th := 3; th <= min(ih, 9); th += 3 {
					for ov := 1; ov <= min(tw, th)-2; ov++ {
						g := geometry(tw, th, ov, ov, 0, 0)
						origins, err := GenerateOrigins(iw, ih, g)
						require.NoError(t, err)
						require.True(t, Covers(iw, ih, tw, th, origins), "%dx%d %+v", iw, ih, g)

						// Drifting by no more than the overlap keeps the cover intact.
						for off := 1; off <= min(ov, tw-ov-2, th-ov-2); off++ {
							g := geometry(tw, th, ov, ov, off, off)
							origins, err := GenerateOrigins(iw, ih, g)
							require.NoError(t, err)
							require.True(t, Covers(iw, ih, tw, th, origins), "%dx%d %+v", iw, ih, g)
						}
					}
				}
			}
		}
	}
}

func TestGenerateOriginsOffsetGaps(t *testing.T) {
	// Offsets pass validation up to tile - overlap - 2, but only drifts within
	// [0, overlap] keep every pixel covered.
	tests := []struct {
		name    string
		offset  int
		origins []Origin
	}{
		// The last column is pulled back by 2*5 and stops short of the right edge.
		{"negative offset", -5, []Origin{{0, 0}, {25, 0}, {50, 0}}},
		// Drifting past the overlap opens a gap between the first two columns.
		{"offset beyond overlap", 15, []Origin{{0, 0}, {45, 0}, {60, 0}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := geometry(40, 40, 10, 10, tt.offset, 0)
			origins, err := GenerateOrigins(100, 40, g)
			require.NoError(t, err)
			assert.Equal(t, tt.origins, origins)
			assert.False(t, Covers(100, 40, 40, 40, origins))
		})
	}
}

func TestTileCount(t *testing.T) {
	for iw := 9; iw <= 40; iw += 3 {
		for tw := 4; tw <= 9; tw++ {
			for ov := 1; ov <= tw-2; ov++ {
				g := geometry(tw, tw, ov, ov, 0, 0)
				origins, err := GenerateOrigins(iw, iw+5, g)
				require.NoError(t, err)
				require.Equal(t, len(origins), TileCount(iw, iw+5, g), "%d %+v", iw, g)
			}
		}
	}
	assert.Equal(t, 32768*32768, TileCount(65536, 65536, geometry(3, 3, 1, 1, 0, 0)))
}

func TestValidateGeometry(t *testing.T) {
	tests := []struct {
		name  string
		iw    int
		ih    int
		g     GeometryOptions
		field string
		msg   string
	}{
		{"tile wider than image", 1000, 1000, geometry(1025, 512, 8, 8, 0, 0), "tile_width", "tile_width: 1025 is greater than image_width: 1000"},
		{"tile taller than image", 1000, 500, geometry(512, 501, 8, 8, 0, 0), "tile_height", "tile_height: 501 is greater than image_height: 500"},
		{"row overlap too large", 1000, 1000, geometry(256, 256, 256, 8, 0, 0), "row_overlap", "row_overlap: 256 is greater than or equal to tile_width: 256"},
		{"col overlap too large", 1000, 1000, geometry(256, 256, 8, 300, 0, 0), "col_overlap", "col_overlap: 300 is greater than or equal to tile_height: 256"},
		{"row offset too large", 1000, 1000, geometry(256, 256, 200, 8, 55, 0), "row_offset", "row_offset: 55 is greater than the remaining unused overlap space: 54"},
		{"negative col offset too large", 1000, 1000, geometry(256, 256, 8, 200, 0, -55), "col_offset", "col_offset: -55 is greater than the remaining unused overlap space: 54"},
		{"zero tile width", 1000, 1000, geometry(0, 256, 8, 8, 0, 0), "tile_width", ""},
		{"zero overlap", 1000, 1000, geometry(256, 256, 0, 8, 0, 0), "row_overlap", ""},
		{"tile beyond max", 9000, 9000, geometry(8193, 256, 8, 8, 0, 0), "tile_width", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGeometry(tt.iw, tt.ih, tt.g)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidConfig))

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, tt.field, cfgErr.Field)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, err.Error())
			}

			_, err = GenerateOrigins(tt.iw, tt.ih, tt.g)
			assert.Error(t, err)
		})
	}

	assert.NoError(t, ValidateGeometry(1000, 1000, geometry(256, 256, 200, 200, 54, -54)))
}
