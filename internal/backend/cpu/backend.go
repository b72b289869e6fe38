// Package cpu implements the CPU backend with a BLAS fast path for matmul.
package cpu

import (
	"fmt"

	"github.com/ember-ml/ember/internal/tensor"
)

// Backend implements tensor operations on CPU.
type Backend struct {
	device tensor.Device
}

// New creates a new CPU backend.
func New() *Backend {
	return &Backend{
		device: tensor.CPU,
	}
}

// Name returns the backend name.
func (cpu *Backend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *Backend) Device() tensor.Device {
	return cpu.device
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (cpu *Backend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("add", a, b,
		func(x, y float32) float32 { return x + y },
		func(x, y float64) float64 { return x + y })
}

// Sub performs element-wise subtraction with NumPy-style broadcasting.
func (cpu *Backend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("sub", a, b,
		func(x, y float32) float32 { return x - y },
		func(x, y float64) float64 { return x - y })
}

// Mul performs element-wise multiplication with NumPy-style broadcasting.
func (cpu *Backend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("mul", a, b,
		func(x, y float32) float32 { return x * y },
		func(x, y float64) float64 { return x * y })
}

// Div performs element-wise division with NumPy-style broadcasting.
func (cpu *Backend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return cpu.binary("div", a, b,
		func(x, y float32) float32 { return x / y },
		func(x, y float64) float64 { return x / y })
}

// binary applies an element-wise binary operation with broadcasting.
func (cpu *Backend) binary(
	name string,
	a, b *tensor.RawTensor,
	f32 func(x, y float32) float32,
	f64 func(x, y float64) float64,
) *tensor.RawTensor {
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", name, a.DType(), b.DType()))
	}

	result, err := tensor.NewRaw(outShape, a.DType(), cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}

	switch a.DType() {
	case tensor.Float32:
		if !needsBroadcast {
			ad, bd, rd := a.AsFloat32(), b.AsFloat32(), result.AsFloat32()
			for i := range rd {
				rd[i] = f32(ad[i], bd[i])
			}
			break
		}
		binaryBroadcastFloat32(result, a, b, f32)
	case tensor.Float64:
		if !needsBroadcast {
			ad, bd, rd := a.AsFloat64(), b.AsFloat64(), result.AsFloat64()
			for i := range rd {
				rd[i] = f64(ad[i], bd[i])
			}
			break
		}
		binaryBroadcastFloat64(result, a, b, f64)
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %s", name, a.DType()))
	}

	return result
}

func binaryBroadcastFloat32(result, a, b *tensor.RawTensor, f func(x, y float32) float32) {
	outShape := result.Shape()
	outStrides := outShape.ComputeStrides()
	ad, bd, rd := a.AsFloat32(), b.AsFloat32(), result.AsFloat32()
	for i := range rd {
		rd[i] = f(
			ad[broadcastSourceIndex(i, outShape, outStrides, a.Shape())],
			bd[broadcastSourceIndex(i, outShape, outStrides, b.Shape())],
		)
	}
}

func binaryBroadcastFloat64(result, a, b *tensor.RawTensor, f func(x, y float64) float64) {
	outShape := result.Shape()
	outStrides := outShape.ComputeStrides()
	ad, bd, rd := a.AsFloat64(), b.AsFloat64(), result.AsFloat64()
	for i := range rd {
		rd[i] = f(
			ad[broadcastSourceIndex(i, outShape, outStrides, a.Shape())],
			bd[broadcastSourceIndex(i, outShape, outStrides, b.Shape())],
		)
	}
}

// broadcastSourceIndex maps a flat index in the broadcasted output back to
// the flat index in a (possibly smaller) input, aligning shapes from the
// right per NumPy rules.
func broadcastSourceIndex(flat int, outShape tensor.Shape, outStrides []int, inShape tensor.Shape) int {
	inStrides := inShape.ComputeStrides()
	skip := len(outShape) - len(inShape)

	idx := 0
	for d := range outShape {
		coord := (flat / outStrides[d]) % outShape[d]
		inD := d - skip
		if inD < 0 || inShape[inD] == 1 {
			continue
		}
		idx += coord * inStrides[inD]
	}
	return idx
}
