package cpu

import (
	"fmt"

	"github.com/ember-ml/ember/internal/tensor"
)

// SumDim sums tensor elements along the specified dimension.
//
// Parameters:
//   - dim: dimension to reduce (supports negative indexing: -1 = last dim)
//   - keepDim: if true, keep the reduced dimension with size 1; if false, remove it
func (cpu *Backend) SumDim(x *tensor.RawTensor, dim int, keepDim bool) *tensor.RawTensor {
	shape := x.Shape()
	ndim := len(shape)

	if dim < 0 {
		dim = ndim + dim
	}
	if dim < 0 || dim >= ndim {
		panic(fmt.Sprintf("sumdim: dimension %d out of range for %dD tensor", dim, ndim))
	}

	keepShape := shape.Clone()
	keepShape[dim] = 1

	outShape := keepShape
	if !keepDim {
		outShape = make(tensor.Shape, 0, ndim-1)
		for i := 0; i < ndim; i++ {
			if i != dim {
				outShape = append(outShape, shape[i])
			}
		}
	}

	result, err := tensor.NewRaw(outShape, x.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("sumdim: %v", err))
	}

	inStrides := shape.ComputeStrides()
	keepStrides := keepShape.ComputeStrides()

	switch x.DType() {
	case tensor.Float32:
		src, dst := x.AsFloat32(), result.AsFloat32()
		for i := range src {
			dst[reducedIndex(i, shape, inStrides, keepStrides, dim)] += src[i]
		}
	case tensor.Float64:
		src, dst := x.AsFloat64(), result.AsFloat64()
		for i := range src {
			dst[reducedIndex(i, shape, inStrides, keepStrides, dim)] += src[i]
		}
	default:
		panic(fmt.Sprintf("sumdim: unsupported dtype %s (only float32/float64 supported)", x.DType()))
	}

	return result
}

// reducedIndex maps a flat input index to the flat index in the keep-dim
// reduced tensor (the coordinate along dim collapses to 0).
func reducedIndex(flat int, shape tensor.Shape, inStrides, keepStrides []int, dim int) int {
	idx := 0
	for d := range shape {
		if d == dim {
			continue
		}
		coord := (flat / inStrides[d]) % shape[d]
		idx += coord * keepStrides[d]
	}
	return idx
}
