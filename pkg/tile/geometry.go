package tile

// Accepted parameter ranges
const (
	MaxTileSize = 8192
	MaxOverlap  = 8192
	MaxOffset   = 8192
)

// Validate checks the parameter ranges that do not depend on the image
func (g GeometryOptions) Validate() error {
	checks := []error{
		CheckRange("tile_width", g.TileWidth, 1, MaxTileSize),
		CheckRange("tile_height", g.TileHeight, 1, MaxTileSize),
		CheckRange("row_overlap", g.RowOverlap, 1, MaxOverlap),
		CheckRange("col_overlap", g.ColOverlap, 1, MaxOverlap),
		CheckRange("row_offset", g.RowOffset, -MaxOffset, MaxOffset),
		CheckRange("col_offset", g.ColOffset, -MaxOffset, MaxOffset),
	}
	for _, err := range checks {
		if err != nil {
			return err
		}
	}
	return nil
}

// ValidateGeometry checks that the tiling fits an image of the given size
func ValidateGeometry(imageWidth, imageHeight int, g GeometryOptions) error {
	if err := g.Validate(); err != nil {
		return err
	}

	if g.TileWidth > imageWidth {
		return configErrorf("tile_width", g.TileWidth, "is greater than image_width: %d", imageWidth)
	}
	if g.TileHeight > imageHeight {
		return configErrorf("tile_height", g.TileHeight, "is greater than image_height: %d", imageHeight)
	}
	if g.RowOverlap >= g.TileWidth {
		return configErrorf("row_overlap", g.RowOverlap, "is greater than or equal to tile_width: %d", g.TileWidth)
	}
	if g.ColOverlap >= g.TileHeight {
		return configErrorf("col_overlap", g.ColOverlap, "is greater than or equal to tile_height: %d", g.TileHeight)
	}
	if space := g.TileWidth - g.RowOverlap - 2; abs(g.RowOffset) > space {
		return configErrorf("row_offset", g.RowOffset, "is greater than the remaining unused overlap space: %d", space)
	}
	if space := g.TileHeight - g.ColOverlap - 2; abs(g.ColOffset) > space {
		return configErrorf("col_offset", g.ColOffset, "is greater than the remaining unused overlap space: %d", space)
	}
	return nil
}

// GenerateOrigins lays tiles over the image in raster order.
//
// Tiles advance by (tile - overlap) on each axis. A tile that would cross the
// far edge is pulled back so it ends exactly on that edge and closes its row
// or column. Each tile is then shifted by column*RowOffset horizontally and
// row*ColOffset vertically and clamped back inside the image.
func GenerateOrigins(imageWidth, imageHeight int, g GeometryOptions) ([]Origin, error) {
	if err := ValidateGeometry(imageWidth, imageHeight, g); err != nil {
		return nil, err
	}

	maxX := imageWidth - g.TileWidth
	maxY := imageHeight - g.TileHeight

	var origins []Origin
	for y, row := 0, 0; y < imageHeight; row++ {
		nextY := y + g.TileHeight - g.ColOverlap
		if y+g.TileHeight >= imageHeight {
			y = maxY
			nextY = imageHeight
		}

		for x, col := 0, 0; x < imageWidth; col++ {
			nextX := x + g.TileWidth - g.RowOverlap
			if x+g.TileWidth >= imageWidth {
				x = maxX
				nextX = imageWidth
			}

			origins = append(origins, Origin{
				X: clamp(x+col*g.RowOffset, 0, maxX),
				Y: clamp(y+row*g.ColOffset, 0, maxY),
			})
			x = nextX
		}
		y = nextY
	}
	return origins, nil
}

// TileCount returns the number of origins GenerateOrigins produces for valid
// geometry without allocating them
func TileCount(imageWidth, imageHeight int, g GeometryOptions) int {
	return axisCount(imageWidth, g.TileWidth, g.TileWidth-g.RowOverlap) *
		axisCount(imageHeight, g.TileHeight, g.TileHeight-g.ColOverlap)
}

func axisCount(size, tile, stride int) int {
	if tile >= size {
		return 1
	}
	return (size-tile+stride-1)/stride + 1
}

// Covers reports whether every pixel of the image lies in at least one tile
func Covers(imageWidth, imageHeight, tileWidth, tileHeight int, origins []Origin) bool {
	covered := make([]bool, imageWidth*imageHeight)
	for _, o := range origins {
		for y := max(o.Y, 0); y < min(o.Y+tileHeight, imageHeight); y++ {
			for x := max(o.X, 0); x < min(o.X+tileWidth, imageWidth); x++ {
				covered[y*imageWidth+x] = true
			}
		}
	}
	for _, c := range covered {
		if !c {
			return false
		}
	}
	return true
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
