// Package tiling2d implements the output-write stage of the tiled matrix
// multiplication kernel: each unit of work owns one tile of the output and
// flushes its accumulated results into the strided output buffer.
//
// All variant choices (bounds checks, unrolling, vector width) are resolved
// once per kernel specialization, never per invocation, mirroring how the
// generated device code bakes them in at compile time.
package tiling2d

import (
	"github.com/pkg/errors"
)

// Tiling groups the block sizes of a tiled matmul dispatch. One cube of
// units computes a BlockSizeM x BlockSizeN region of the output.
type Tiling struct {
	BlockSizeM int
	BlockSizeK int
	BlockSizeN int
	Unroll     bool
}

// DefaultTiling returns the block sizes used by the default dispatch.
func DefaultTiling() Tiling {
	return Tiling{
		BlockSizeM: 64,
		BlockSizeK: 32,
		BlockSizeN: 64,
	}
}

// Config is a kernel specialization: everything the write stage needs to
// know that is fixed before dispatch. The bounds flags record whether a
// tile can overhang the output along each dimension; when false the
// corresponding runtime check is compiled out entirely.
type Config struct {
	TileSize     int
	CheckMBounds bool
	CheckNBounds bool
	Unroll       bool
	VectorWidth  int
}

// NewConfig derives a specialization for an m x n output. Bounds checks
// are needed only when the problem size is not an exact multiple of the
// block size along that dimension.
func NewConfig(t Tiling, m, n, tileSize, vectorWidth int) Config {
	return Config{
		TileSize:     tileSize,
		CheckMBounds: m%t.BlockSizeM != 0,
		CheckNBounds: n%t.BlockSizeN != 0,
		Unroll:       t.Unroll,
		VectorWidth:  vectorWidth,
	}
}

// Validate checks the invariants Specialize relies on.
func (c Config) Validate() error {
	if c.TileSize < 1 {
		return errors.Errorf("tiling2d: tile size must be >= 1, got %d", c.TileSize)
	}
	if c.VectorWidth < 1 {
		return errors.Errorf("tiling2d: vector width must be >= 1, got %d", c.VectorWidth)
	}
	if c.TileSize == 1 && c.VectorWidth != 1 {
		return errors.Errorf(
			"tiling2d: scalar tiles cannot use vector width %d", c.VectorWidth,
		)
	}
	if c.TileSize > 1 && c.TileSize%c.VectorWidth != 0 {
		return errors.Errorf(
			"tiling2d: vector width %d must divide tile size %d",
			c.VectorWidth, c.TileSize,
		)
	}
	return nil
}
