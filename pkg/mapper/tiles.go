package mapper

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// TileSize is the edge length of slippy-map tiles in pixels.
const TileSize = 256

// TileBound returns a tile's extent projected into crs.
func TileBound(t maptile.Tile, crs CRS) orb.Bound {
	b := t.Bound()

	return orb.Bound{
		Min: crs.Project(orb.Point{b.Left(), b.Bottom()}),
		Max: crs.Project(orb.Point{b.Right(), b.Top()}),
	}
}

// Covering enumerates the tiles overlapping b at the given zoom, row by
// row from the northwest corner.
func Covering(b orb.Bound, zoom maptile.Zoom) []maptile.Tile {
	min := maptile.At(orb.Point{b.Left(), b.Top()}, zoom)
	max := maptile.At(orb.Point{b.Right(), b.Bottom()}, zoom)

	// an edge exactly on lon 180 or the mercator latitude limit maps one
	// past the last valid index
	last := uint32(1)<<zoom - 1
	if max.X > last {
		max.X = last
	}

	if max.Y > last {
		max.Y = last
	}

	tiles := make([]maptile.Tile, 0, int(max.X-min.X+1)*int(max.Y-min.Y+1))

	for y := min.Y; y <= max.Y; y++ {
		for x := min.X; x <= max.X; x++ {
			tiles = append(tiles, maptile.New(x, y, zoom))
		}
	}

	return tiles
}
