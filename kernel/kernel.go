// Copyright 2025 Ember ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package kernel exposes the device-parallel kernels of the Ember ML
// framework. Currently this is the output-write stage of the tiled matrix
// multiplication, specialized ahead of dispatch.
package kernel

import (
	"github.com/ember-ml/ember/internal/kernel/tiling2d"
	"github.com/ember-ml/ember/internal/parallel"
	"github.com/ember-ml/ember/internal/tensor"
)

// Tiling groups the block sizes of a tiled matmul dispatch.
type Tiling = tiling2d.Tiling

// Config is a kernel specialization, resolved before dispatch.
type Config = tiling2d.Config

// Coordinates locates one unit's tile in the output.
type Coordinates = tiling2d.Coordinates

// Writer flushes a unit's tile results into the output tensor.
type Writer = tiling2d.Writer

// CubeDim is a 2D extent of a dispatch grid.
type CubeDim = tiling2d.CubeDim

// DefaultTiling returns the block sizes used by the default dispatch.
func DefaultTiling() Tiling {
	return tiling2d.DefaultTiling()
}

// NewConfig derives a specialization for an m x n output.
func NewConfig(t Tiling, m, n, tileSize, vectorWidth int) Config {
	return tiling2d.NewConfig(t, m, n, tileSize, vectorWidth)
}

// Specialize resolves the configuration into a Writer with every variant
// choice made up front.
func Specialize(cfg Config) (Writer, error) {
	return tiling2d.Specialize(cfg)
}

// Launch runs the specialized writer over a full dispatch grid.
func Launch(
	write Writer,
	cfg Config,
	tiling Tiling,
	cubes, units CubeDim,
	out *tensor.RawTensor,
	tile func(Coordinates) []float32,
	offsetOutput int,
) {
	tiling2d.Launch(write, cfg, tiling, cubes, units, out, tile, offsetOutput, parallel.DefaultConfig())
}
