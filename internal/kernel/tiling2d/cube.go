package tiling2d

import (
	"github.com/ember-ml/ember/internal/parallel"
	"github.com/ember-ml/ember/internal/tensor"
)

// CubeDim is a 2D extent of a dispatch grid: either the number of cubes or
// the number of units per cube.
type CubeDim struct {
	X, Y int
}

// Launch runs the specialized writer over a full dispatch grid. Unit
// (ux, uy) of cube (cx, cy) owns the tile at
//
//	row = cx*BlockSizeM + ux*TileSize
//	col = cy*BlockSizeN + uy*TileSize
//
// and receives its results from the tile callback. Units own disjoint
// output regions, so cubes run in parallel without synchronization.
func Launch(
	write Writer,
	cfg Config,
	tiling Tiling,
	cubes, units CubeDim,
	out *tensor.RawTensor,
	tile func(Coordinates) []float32,
	offsetOutput int,
	pcfg parallel.Config,
) {
	parallel.ForGrid(cubes.X, cubes.Y, func(cx, cy int) {
		for ux := 0; ux < units.X; ux++ {
			for uy := 0; uy < units.Y; uy++ {
				coords := Coordinates{
					SkipRow: cx * tiling.BlockSizeM,
					SkipCol: cy * tiling.BlockSizeN,
					UnitRow: ux * cfg.TileSize,
					UnitCol: uy * cfg.TileSize,
				}
				write(out, tile(coords), coords, offsetOutput)
			}
		}
	}, pcfg)
}
