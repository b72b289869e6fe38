package cpu_test

import (
	"math"
	"testing"

	"github.com/ember-ml/ember/internal/backend/cpu"
	"github.com/ember-ml/ember/internal/tensor"
)

func fromFloat32(t *testing.T, data []float32, shape tensor.Shape) *tensor.RawTensor {
	t.Helper()
	raw, err := tensor.FromFloat32(data, shape, tensor.CPU)
	if err != nil {
		t.Fatalf("FromFloat32 failed: %v", err)
	}
	return raw
}

func assertFloat32(t *testing.T, got *tensor.RawTensor, wantShape tensor.Shape, want []float32) {
	t.Helper()
	if !got.Shape().Equal(wantShape) {
		t.Fatalf("shape = %v, want %v", got.Shape(), wantShape)
	}
	data := got.AsFloat32()
	for i := range want {
		if math.Abs(float64(data[i]-want[i])) > 1e-5 {
			t.Errorf("element %d = %f, want %f", i, data[i], want[i])
		}
	}
}

// TestBackend_Metadata tests Name and Device.
func TestBackend_Metadata(t *testing.T) {
	backend := cpu.New()
	if backend.Name() != "CPU" {
		t.Errorf("Name() = %s, want CPU", backend.Name())
	}
	if backend.Device() != tensor.CPU {
		t.Errorf("Device() = %v, want CPU", backend.Device())
	}
}

// TestBackend_Add tests element-wise addition.
func TestBackend_Add(t *testing.T) {
	backend := cpu.New()
	a := fromFloat32(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	b := fromFloat32(t, []float32{10, 20, 30, 40}, tensor.Shape{2, 2})

	assertFloat32(t, backend.Add(a, b), tensor.Shape{2, 2}, []float32{11, 22, 33, 44})
}

// TestBackend_AddBroadcast tests addition with a broadcast row vector.
func TestBackend_AddBroadcast(t *testing.T) {
	backend := cpu.New()
	a := fromFloat32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b := fromFloat32(t, []float32{10, 20, 30}, tensor.Shape{1, 3})

	assertFloat32(t, backend.Add(a, b), tensor.Shape{2, 3}, []float32{11, 22, 33, 14, 25, 36})
}

// TestBackend_SubMulDiv tests the remaining element-wise operations.
func TestBackend_SubMulDiv(t *testing.T) {
	backend := cpu.New()
	a := fromFloat32(t, []float32{10, 20, 30, 40}, tensor.Shape{4})
	b := fromFloat32(t, []float32{1, 2, 3, 4}, tensor.Shape{4})

	assertFloat32(t, backend.Sub(a, b), tensor.Shape{4}, []float32{9, 18, 27, 36})
	assertFloat32(t, backend.Mul(a, b), tensor.Shape{4}, []float32{10, 40, 90, 160})
	assertFloat32(t, backend.Div(a, b), tensor.Shape{4}, []float32{10, 10, 10, 10})
}

// TestBackend_MulBroadcastColumn tests broadcasting a column vector.
func TestBackend_MulBroadcastColumn(t *testing.T) {
	backend := cpu.New()
	a := fromFloat32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b := fromFloat32(t, []float32{10, 100}, tensor.Shape{2, 1})

	assertFloat32(t, backend.Mul(a, b), tensor.Shape{2, 3}, []float32{10, 20, 30, 400, 500, 600})
}

// TestBackend_Exp tests the element-wise exponential.
func TestBackend_Exp(t *testing.T) {
	backend := cpu.New()
	x := fromFloat32(t, []float32{0, 1, -1}, tensor.Shape{3})

	e := float32(math.E)
	assertFloat32(t, backend.Exp(x), tensor.Shape{3}, []float32{1, e, 1 / e})
}

// TestBackend_MatMul tests 2D matrix multiplication.
func TestBackend_MatMul(t *testing.T) {
	backend := cpu.New()
	a := fromFloat32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})
	b := fromFloat32(t, []float32{7, 8, 9, 10, 11, 12}, tensor.Shape{3, 2})

	assertFloat32(t, backend.MatMul(a, b), tensor.Shape{2, 2}, []float32{58, 64, 139, 154})
}

// TestBackend_MatMul_ShapeMismatch tests the inner-dimension check.
func TestBackend_MatMul_ShapeMismatch(t *testing.T) {
	backend := cpu.New()
	a := fromFloat32(t, []float32{1, 2, 3, 4}, tensor.Shape{2, 2})
	b := fromFloat32(t, []float32{1, 2, 3}, tensor.Shape{3, 1})

	defer func() {
		if recover() == nil {
			t.Error("MatMul with mismatched inner dimensions should panic")
		}
	}()
	backend.MatMul(a, b)
}

// TestBackend_Transpose tests 2D axis permutation.
func TestBackend_Transpose(t *testing.T) {
	backend := cpu.New()
	x := fromFloat32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	assertFloat32(t, backend.Transpose(x, 1, 0), tensor.Shape{3, 2}, []float32{1, 4, 2, 5, 3, 6})
	// No axes: reverse all dimensions.
	assertFloat32(t, backend.Transpose(x), tensor.Shape{3, 2}, []float32{1, 4, 2, 5, 3, 6})
}

// TestBackend_Reshape tests reshaping.
func TestBackend_Reshape(t *testing.T) {
	backend := cpu.New()
	x := fromFloat32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	assertFloat32(t, backend.Reshape(x, tensor.Shape{3, 2}), tensor.Shape{3, 2}, []float32{1, 2, 3, 4, 5, 6})
}

// TestBackend_SumDim tests reduction along each dimension.
func TestBackend_SumDim(t *testing.T) {
	backend := cpu.New()
	x := fromFloat32(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3})

	assertFloat32(t, backend.SumDim(x, 0, true), tensor.Shape{1, 3}, []float32{5, 7, 9})
	assertFloat32(t, backend.SumDim(x, 1, true), tensor.Shape{2, 1}, []float32{6, 15})
	assertFloat32(t, backend.SumDim(x, 0, false), tensor.Shape{3}, []float32{5, 7, 9})
	// Negative dim indexes from the end.
	assertFloat32(t, backend.SumDim(x, -1, false), tensor.Shape{2}, []float32{6, 15})
}
