package tiling2d

import (
	"github.com/pkg/errors"

	"github.com/ember-ml/ember/internal/tensor"
)

// Coordinates locates one unit's tile in the output: the cube's offset
// (skip) plus the unit's offset inside the cube.
type Coordinates struct {
	UnitRow, UnitCol int
	SkipRow, SkipCol int
}

// Writer flushes a unit's tile results (tile-size x tile-size values,
// row-major) into the output at the position given by the coordinates.
// The destination flat index of a tile cell is
// row*rowStride + col + offsetOutput.
type Writer func(out *tensor.RawTensor, results []float32, coords Coordinates, offsetOutput int)

// storeFunc writes one vector-width group of a tile row.
type storeFunc func(data, results []float32, i, outPosition, resultsPosM int)

// rowFunc writes one tile row, walking its vector-width groups.
type rowFunc func(out *tensor.RawTensor, results []float32, resIdxM, row, col, offsetOutput, strideRow int)

// tileFunc writes a whole tile, walking its rows.
type tileFunc func(out *tensor.RawTensor, results []float32, row, col, offsetOutput, strideRow int)

// Specialize resolves every variant choice in the configuration and
// returns a Writer composed of the chosen pieces. The returned function
// contains no branches on the configuration flags.
func Specialize(cfg Config) (Writer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "tiling2d: specialize")
	}

	if cfg.TileSize == 1 {
		// Single scalar element, written directly at the flat offset.
		return func(out *tensor.RawTensor, results []float32, coords Coordinates, offsetOutput int) {
			row := coords.SkipRow + coords.UnitRow
			col := coords.SkipCol + coords.UnitCol
			out.AsFloat32()[row*rowStride(out)+col+offsetOutput] = results[0]
		}, nil
	}

	store := specializeStore(cfg)
	columns := specializeColumns(cfg, store)
	tile := specializeRows(cfg, columns)

	return func(out *tensor.RawTensor, results []float32, coords Coordinates, offsetOutput int) {
		row := coords.SkipRow + coords.UnitRow
		col := coords.SkipCol + coords.UnitCol
		tile(out, results, row, col, offsetOutput, rowStride(out))
	}, nil
}

// specializeRows picks the tile-height loop: bounds-checked against the
// output's M extent, or the full height when the dispatch guarantees no
// overhang.
func specializeRows(cfg Config, columns rowFunc) tileFunc {
	tileSize := cfg.TileSize

	if cfg.CheckMBounds {
		return func(out *tensor.RawTensor, results []float32, row, col, offsetOutput, strideRow int) {
			shape := out.Shape()
			dimM := shape[len(shape)-2]

			numWrites := 0
			if dimM > row {
				numWrites = min(dimM-row, tileSize)
			}
			for resIdxM := 0; resIdxM < numWrites; resIdxM++ {
				columns(out, results, resIdxM, row, col, offsetOutput, strideRow)
			}
		}
	}

	if cfg.Unroll && tileSize == 4 {
		return func(out *tensor.RawTensor, results []float32, row, col, offsetOutput, strideRow int) {
			columns(out, results, 0, row, col, offsetOutput, strideRow)
			columns(out, results, 1, row, col, offsetOutput, strideRow)
			columns(out, results, 2, row, col, offsetOutput, strideRow)
			columns(out, results, 3, row, col, offsetOutput, strideRow)
		}
	}

	return func(out *tensor.RawTensor, results []float32, row, col, offsetOutput, strideRow int) {
		for resIdxM := 0; resIdxM < tileSize; resIdxM++ {
			columns(out, results, resIdxM, row, col, offsetOutput, strideRow)
		}
	}
}

// specializeColumns picks the per-row loop over vector-width groups:
// bounds-checked against the output's N extent, or the full tile width.
func specializeColumns(cfg Config, store storeFunc) rowFunc {
	tileSize := cfg.TileSize
	vectorWidth := cfg.VectorWidth

	if cfg.CheckNBounds {
		return func(out *tensor.RawTensor, results []float32, resIdxM, row, col, offsetOutput, strideRow int) {
			shape := out.Shape()
			dimN := shape[len(shape)-1]

			resultsPosM := resIdxM * tileSize
			outPosition := (row+resIdxM)*strideRow + col + offsetOutput

			// Only whole vector groups that fit before the bound.
			numLoops := 0
			if dimN > col {
				numLoops = min(dimN-col, tileSize) / vectorWidth
			}
			data := out.AsFloat32()
			for i := 0; i < numLoops; i++ {
				store(data, results, i, outPosition, resultsPosM)
			}
		}
	}

	groups := tileSize / vectorWidth
	return func(out *tensor.RawTensor, results []float32, resIdxM, row, col, offsetOutput, strideRow int) {
		resultsPosM := resIdxM * tileSize
		outPosition := (row+resIdxM)*strideRow + col + offsetOutput

		data := out.AsFloat32()
		for i := 0; i < groups; i++ {
			store(data, results, i, outPosition, resultsPosM)
		}
	}
}

// specializeStore picks the innermost write: one scalar, or one assembled
// vector of VectorWidth lanes stored in a single group-aligned burst.
func specializeStore(cfg Config) storeFunc {
	vectorWidth := cfg.VectorWidth

	if vectorWidth == 1 {
		return func(data, results []float32, i, outPosition, resultsPosM int) {
			data[i+outPosition] = results[resultsPosM+i]
		}
	}

	if cfg.Unroll && vectorWidth == 4 {
		return func(data, results []float32, i, outPosition, resultsPosM int) {
			base := (i + outPosition/4) * 4
			src := resultsPosM + i*4
			data[base+0] = results[src+0]
			data[base+1] = results[src+1]
			data[base+2] = results[src+2]
			data[base+3] = results[src+3]
		}
	}

	return func(data, results []float32, i, outPosition, resultsPosM int) {
		base := (i + outPosition/vectorWidth) * vectorWidth
		src := resultsPosM + i*vectorWidth
		for j := 0; j < vectorWidth; j++ {
			data[base+j] = results[src+j]
		}
	}
}

func rowStride(out *tensor.RawTensor) int {
	strides := out.Strides()
	return strides[len(strides)-2]
}
