package tiling2d

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// WGSL emits the compute shader implementing this specialization for the
// given tiling and workgroup shape. The configuration flags are resolved
// into the shader text itself: a bounds check that is off produces no
// branch, an unrolled loop produces repeated statements, and the vector
// width selects between scalar f32 stores and vecN<f32> stores. The
// results binding holds one tile (tile_size x tile_size values, row-major)
// shared by the dispatch.
func (c Config) WGSL(tiling Tiling, units CubeDim) (string, error) {
	if err := c.Validate(); err != nil {
		return "", errors.Wrap(err, "tiling2d: wgsl")
	}
	switch c.VectorWidth {
	case 1, 2, 4:
	default:
		return "", errors.Errorf("tiling2d: wgsl vector width must be 1, 2 or 4, got %d", c.VectorWidth)
	}

	var b strings.Builder

	outType := "f32"
	if c.VectorWidth > 1 {
		outType = fmt.Sprintf("vec%d<f32>", c.VectorWidth)
	}
	fmt.Fprintf(&b, "@group(0) @binding(0) var<storage, read_write> out: array<%s>;\n", outType)
	b.WriteString("@group(0) @binding(1) var<storage, read> results: array<f32>;\n\n")
	b.WriteString("struct Params {\n")
	b.WriteString("    dim_m: u32,\n")
	b.WriteString("    dim_n: u32,\n")
	b.WriteString("    stride_row: u32,\n")
	b.WriteString("    offset_output: u32,\n")
	b.WriteString("}\n")
	b.WriteString("@group(0) @binding(2) var<uniform> params: Params;\n\n")

	fmt.Fprintf(&b, "@compute @workgroup_size(%d, %d)\n", units.X, units.Y)
	b.WriteString("fn main(@builtin(workgroup_id) cube: vec3<u32>, @builtin(local_invocation_id) unit: vec3<u32>) {\n")
	fmt.Fprintf(&b, "    let row = cube.x * %du + unit.x * %du;\n", tiling.BlockSizeM, c.TileSize)
	fmt.Fprintf(&b, "    let col = cube.y * %du + unit.y * %du;\n", tiling.BlockSizeN, c.TileSize)

	if c.TileSize == 1 {
		b.WriteString("    out[row * params.stride_row + col + params.offset_output] = results[0];\n")
		b.WriteString("}\n")
		return b.String(), nil
	}

	b.WriteString("\n")
	c.emitRows(&b, "    ")
	b.WriteString("}\n")
	return b.String(), nil
}

func (c Config) emitRows(b *strings.Builder, indent string) {
	if c.CheckMBounds {
		fmt.Fprintf(b, "%svar num_writes: u32 = 0u;\n", indent)
		fmt.Fprintf(b, "%sif (params.dim_m > row) {\n", indent)
		fmt.Fprintf(b, "%s    num_writes = min(params.dim_m - row, %du);\n", indent, c.TileSize)
		fmt.Fprintf(b, "%s}\n", indent)
		fmt.Fprintf(b, "%sfor (var res_idx_m: u32 = 0u; res_idx_m < num_writes; res_idx_m = res_idx_m + 1u) {\n", indent)
		c.emitRow(b, indent+"    ", "res_idx_m")
		fmt.Fprintf(b, "%s}\n", indent)
		return
	}

	if c.Unroll {
		for r := 0; r < c.TileSize; r++ {
			if r > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(b, "%s{\n", indent)
			c.emitRow(b, indent+"    ", fmt.Sprintf("%du", r))
			fmt.Fprintf(b, "%s}\n", indent)
		}
		return
	}

	fmt.Fprintf(b, "%sfor (var res_idx_m: u32 = 0u; res_idx_m < %du; res_idx_m = res_idx_m + 1u) {\n", indent, c.TileSize)
	c.emitRow(b, indent+"    ", "res_idx_m")
	fmt.Fprintf(b, "%s}\n", indent)
}

func (c Config) emitRow(b *strings.Builder, indent, resIdxM string) {
	fmt.Fprintf(b, "%slet results_pos_m = %s * %du;\n", indent, resIdxM, c.TileSize)
	fmt.Fprintf(b, "%slet out_position = (row + %s) * params.stride_row + col + params.offset_output;\n", indent, resIdxM)

	groups := c.TileSize / c.VectorWidth
	if c.CheckNBounds {
		fmt.Fprintf(b, "%svar num_loops: u32 = 0u;\n", indent)
		fmt.Fprintf(b, "%sif (params.dim_n > col) {\n", indent)
		fmt.Fprintf(b, "%s    num_loops = min(params.dim_n - col, %du) / %du;\n", indent, c.TileSize, c.VectorWidth)
		fmt.Fprintf(b, "%s}\n", indent)
		fmt.Fprintf(b, "%sfor (var i: u32 = 0u; i < num_loops; i = i + 1u) {\n", indent)
		c.emitStore(b, indent+"    ", "i")
		fmt.Fprintf(b, "%s}\n", indent)
		return
	}

	if c.Unroll {
		for i := 0; i < groups; i++ {
			fmt.Fprintf(b, "%s{\n", indent)
			c.emitStore(b, indent+"    ", fmt.Sprintf("%du", i))
			fmt.Fprintf(b, "%s}\n", indent)
		}
		return
	}

	fmt.Fprintf(b, "%sfor (var i: u32 = 0u; i < %du; i = i + 1u) {\n", indent, groups)
	c.emitStore(b, indent+"    ", "i")
	fmt.Fprintf(b, "%s}\n", indent)
}

func (c Config) emitStore(b *strings.Builder, indent, i string) {
	if c.VectorWidth == 1 {
		fmt.Fprintf(b, "%sout[%s + out_position] = results[results_pos_m + %s];\n", indent, i, i)
		return
	}

	fmt.Fprintf(b, "%svar elem = vec%d<f32>();\n", indent, c.VectorWidth)
	for j := 0; j < c.VectorWidth; j++ {
		fmt.Fprintf(b, "%selem[%d] = results[results_pos_m + %s * %du + %du];\n", indent, j, i, c.VectorWidth, j)
	}
	fmt.Fprintf(b, "%sout[%s + out_position / %du] = elem;\n", indent, i, c.VectorWidth)
}
