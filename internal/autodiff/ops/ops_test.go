package ops_test

import (
	"math"
	"testing"

	"github.com/ember-ml/ember/internal/autodiff"
	"github.com/ember-ml/ember/internal/autodiff/ops"
	"github.com/ember-ml/ember/internal/backend/cpu"
	"github.com/ember-ml/ember/internal/tensor"
)

func leaf(t *testing.T, data []float32, shape tensor.Shape, requiresGrad bool) *autodiff.Tensor {
	t.Helper()
	raw, err := tensor.FromFloat32(data, shape, tensor.CPU)
	if err != nil {
		t.Fatalf("FromFloat32 failed: %v", err)
	}
	return autodiff.NewLeaf(raw, requiresGrad)
}

func gradOf(t *testing.T, grads *autodiff.Gradients, node *autodiff.Node) []float32 {
	t.Helper()
	g, ok := grads.Get(node)
	if !ok {
		t.Fatalf("no gradient registered for node %s", node.ID())
	}
	return g.AsFloat32()
}

func assertClose(t *testing.T, got, want []float32, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > tol {
			t.Errorf("element %d = %f, want %f", i, got[i], want[i])
		}
	}
}

// TestAdd_Backward tests d(x+y)/dx = d(x+y)/dy = 1.
func TestAdd_Backward(t *testing.T) {
	backend := cpu.New()
	x := leaf(t, []float32{1, 2}, tensor.Shape{2}, true)
	y := leaf(t, []float32{3, 4}, tensor.Shape{2}, true)

	z := ops.Add(backend, x, y)
	assertClose(t, z.Primitive.AsFloat32(), []float32{4, 6}, 1e-6)

	grads := autodiff.Backward(backend, z)
	assertClose(t, gradOf(t, grads, x.Node), []float32{1, 1}, 1e-6)
	assertClose(t, gradOf(t, grads, y.Node), []float32{1, 1}, 1e-6)
}

// TestAdd_BroadcastBackward tests that the broadcast parent's gradient is
// summed back to its shape.
func TestAdd_BroadcastBackward(t *testing.T) {
	backend := cpu.New()
	x := leaf(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, true)
	y := leaf(t, []float32{10, 20, 30}, tensor.Shape{1, 3}, true)

	z := ops.Add(backend, x, y)
	grads := autodiff.Backward(backend, z)

	assertClose(t, gradOf(t, grads, x.Node), []float32{1, 1, 1, 1, 1, 1}, 1e-6)
	gy, _ := grads.Get(y.Node)
	if !gy.Shape().Equal(tensor.Shape{1, 3}) {
		t.Fatalf("grad shape = %v, want [1 3]", gy.Shape())
	}
	assertClose(t, gy.AsFloat32(), []float32{2, 2, 2}, 1e-6)
}

// TestSub_Backward tests d(x-y)/dy = -1.
func TestSub_Backward(t *testing.T) {
	backend := cpu.New()
	x := leaf(t, []float32{5, 6}, tensor.Shape{2}, true)
	y := leaf(t, []float32{1, 2}, tensor.Shape{2}, true)

	z := ops.Sub(backend, x, y)
	assertClose(t, z.Primitive.AsFloat32(), []float32{4, 4}, 1e-6)

	grads := autodiff.Backward(backend, z)
	assertClose(t, gradOf(t, grads, x.Node), []float32{1, 1}, 1e-6)
	assertClose(t, gradOf(t, grads, y.Node), []float32{-1, -1}, 1e-6)
}

// TestNeg_Backward tests d(-x)/dx = -1.
func TestNeg_Backward(t *testing.T) {
	backend := cpu.New()
	x := leaf(t, []float32{1, -2}, tensor.Shape{2}, true)

	z := ops.Neg(backend, x)
	assertClose(t, z.Primitive.AsFloat32(), []float32{-1, 2}, 1e-6)

	grads := autodiff.Backward(backend, z)
	assertClose(t, gradOf(t, grads, x.Node), []float32{-1, -1}, 1e-6)
}

// TestMul_Backward tests d(xy)/dx = y and d(xy)/dy = x.
func TestMul_Backward(t *testing.T) {
	backend := cpu.New()
	x := leaf(t, []float32{2, 3}, tensor.Shape{2}, true)
	y := leaf(t, []float32{5, 7}, tensor.Shape{2}, true)

	z := ops.Mul(backend, x, y)
	assertClose(t, z.Primitive.AsFloat32(), []float32{10, 21}, 1e-6)

	grads := autodiff.Backward(backend, z)
	assertClose(t, gradOf(t, grads, x.Node), []float32{5, 7}, 1e-6)
	assertClose(t, gradOf(t, grads, y.Node), []float32{2, 3}, 1e-6)
}

// TestMul_OneSideTracked tests that an untracked parent gets no gradient
// and its side of the checkpointing is skipped.
func TestMul_OneSideTracked(t *testing.T) {
	backend := cpu.New()
	x := leaf(t, []float32{2, 3}, tensor.Shape{2}, true)
	y := leaf(t, []float32{5, 7}, tensor.Shape{2}, false)

	z := ops.Mul(backend, x, y)
	grads := autodiff.Backward(backend, z)

	assertClose(t, gradOf(t, grads, x.Node), []float32{5, 7}, 1e-6)
	if _, ok := grads.Get(y.Node); ok {
		t.Error("untracked parent should have no gradient")
	}
}

// TestDiv_Backward tests d(x/y)/dx = 1/y and d(x/y)/dy = -x/y^2.
func TestDiv_Backward(t *testing.T) {
	backend := cpu.New()
	x := leaf(t, []float32{6, 8}, tensor.Shape{2}, true)
	y := leaf(t, []float32{2, 4}, tensor.Shape{2}, true)

	z := ops.Div(backend, x, y)
	assertClose(t, z.Primitive.AsFloat32(), []float32{3, 2}, 1e-6)

	grads := autodiff.Backward(backend, z)
	assertClose(t, gradOf(t, grads, x.Node), []float32{0.5, 0.25}, 1e-6)
	assertClose(t, gradOf(t, grads, y.Node), []float32{-1.5, -0.5}, 1e-6)
}

// TestExp_Backward tests d(exp x)/dx = exp x, recomputed from the input.
func TestExp_Backward(t *testing.T) {
	backend := cpu.New()
	x := leaf(t, []float32{0, 1}, tensor.Shape{2}, true)

	z := ops.Exp(backend, x)
	grads := autodiff.Backward(backend, z)

	e := float32(math.E)
	assertClose(t, gradOf(t, grads, x.Node), []float32{1, e}, 1e-5)
}

// TestMatMul_Backward tests grad(A) = grad @ B^T and grad(B) = A^T @ grad.
func TestMatMul_Backward(t *testing.T) {
	backend := cpu.New()
	a := leaf(t, []float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, true)
	b := leaf(t, []float32{7, 8, 9, 10, 11, 12}, tensor.Shape{3, 2}, true)

	c := ops.MatMul(backend, a, b)
	assertClose(t, c.Primitive.AsFloat32(), []float32{58, 64, 139, 154}, 1e-4)

	grads := autodiff.Backward(backend, c)
	// Seed is ones(2,2): grad(A)[i,k] = sum_j B[k,j], grad(B)[k,j] = sum_i A[i,k].
	assertClose(t, gradOf(t, grads, a.Node), []float32{15, 19, 23, 15, 19, 23}, 1e-4)
	assertClose(t, gradOf(t, grads, b.Node), []float32{5, 5, 7, 7, 9, 9}, 1e-4)
}

// TestBackward_Accumulation tests that a node consumed twice accumulates
// both contributions.
func TestBackward_Accumulation(t *testing.T) {
	backend := cpu.New()
	x := leaf(t, []float32{1, 2}, tensor.Shape{2}, true)

	z := ops.Add(backend, x, x)
	grads := autodiff.Backward(backend, z)

	assertClose(t, gradOf(t, grads, x.Node), []float32{2, 2}, 1e-6)
}

// TestBackward_SiblingBranches tests a backward pass rooted at one of two
// independent operations sharing a leaf. The sibling's step lives in the
// same merged graph but is outside the root's ancestry; it must not run
// (it would consume a gradient nothing registered).
func TestBackward_SiblingBranches(t *testing.T) {
	backend := cpu.New()
	x := leaf(t, []float32{1, 2}, tensor.Shape{2}, true)

	a := ops.Add(backend, x, x)
	b := ops.Mul(backend, x, x)

	grads := autodiff.Backward(backend, a)
	assertClose(t, gradOf(t, grads, x.Node), []float32{2, 2}, 1e-6)
	if _, ok := grads.Get(b.Node); ok {
		t.Fatal("sibling branch received a gradient")
	}

	// The other branch stays differentiable on its own.
	grads = autodiff.Backward(backend, b)
	assertClose(t, gradOf(t, grads, x.Node), []float32{2, 4}, 1e-6)
}

// TestBackward_RecomputesMemoryBound tests a chain through a memory-bound
// intermediate: mul checkpoints exp(x) by recipe, and the recipe rebuilds
// it from the retained input during backward.
func TestBackward_RecomputesMemoryBound(t *testing.T) {
	backend := cpu.New()
	x := leaf(t, []float32{0.5}, tensor.Shape{1}, true)

	w := ops.Exp(backend, x)
	z := ops.Mul(backend, w, w)

	grads := autodiff.Backward(backend, z)

	// z = exp(2x), dz/dx = 2 exp(2x).
	want := float32(2 * math.Exp(1))
	assertClose(t, gradOf(t, grads, x.Node), []float32{want}, 1e-4)
}

// TestBackward_LeafPersistence tests that interior gradients are consumed
// while leaf gradients remain.
func TestBackward_LeafPersistence(t *testing.T) {
	backend := cpu.New()
	x := leaf(t, []float32{1}, tensor.Shape{1}, true)
	y := leaf(t, []float32{2}, tensor.Shape{1}, true)

	z := ops.Mul(backend, x, y)
	w := ops.Add(backend, z, x)

	grads := autodiff.Backward(backend, w)

	if _, ok := grads.Get(z.Node); ok {
		t.Error("interior node gradient should have been consumed")
	}
	assertClose(t, gradOf(t, grads, x.Node), []float32{3}, 1e-6) // y + 1
	assertClose(t, gradOf(t, grads, y.Node), []float32{1}, 1e-6) // x
}

// TestBackward_UntrackedRootPanics tests the tracked-root contract.
func TestBackward_UntrackedRootPanics(t *testing.T) {
	backend := cpu.New()
	x := leaf(t, []float32{1}, tensor.Shape{1}, false)
	y := leaf(t, []float32{2}, tensor.Shape{1}, false)
	z := ops.Add(backend, x, y)

	defer func() {
		if recover() == nil {
			t.Error("Backward on an untracked root should panic")
		}
	}()
	autodiff.Backward(backend, z)
}

// TestBackward_NumericGradients cross-checks a composite expression
// against central finite differences. The loss is the sum of the root's
// elements (the seed gradient is ones).
func TestBackward_NumericGradients(t *testing.T) {
	backend := cpu.New()

	xData := []float32{0.5, -1.2, 2.0}
	yData := []float32{1.5, 0.7, -0.9}

	forward := func(xv, yv []float32) float32 {
		x := leaf(t, xv, tensor.Shape{3}, false)
		y := leaf(t, yv, tensor.Shape{3}, false)
		out := ops.Div(backend, ops.Add(backend, ops.Mul(backend, x, y), ops.Exp(backend, x)), y)
		sum := float32(0)
		for _, v := range out.Primitive.AsFloat32() {
			sum += v
		}
		return sum
	}

	x := leaf(t, xData, tensor.Shape{3}, true)
	y := leaf(t, yData, tensor.Shape{3}, true)
	out := ops.Div(backend, ops.Add(backend, ops.Mul(backend, x, y), ops.Exp(backend, x)), y)
	grads := autodiff.Backward(backend, out)

	const eps = 1e-2
	numeric := func(data []float32, i int, eval func() float32) float32 {
		orig := data[i]
		data[i] = orig + eps
		plus := eval()
		data[i] = orig - eps
		minus := eval()
		data[i] = orig
		return (plus - minus) / (2 * eps)
	}

	gx := gradOf(t, grads, x.Node)
	gy := gradOf(t, grads, y.Node)
	for i := range xData {
		wantX := numeric(xData, i, func() float32 { return forward(xData, yData) })
		if math.Abs(float64(gx[i]-wantX)) > 1e-2 {
			t.Errorf("dx[%d] = %f, numeric %f", i, gx[i], wantX)
		}
		wantY := numeric(yData, i, func() float32 { return forward(xData, yData) })
		if math.Abs(float64(gy[i]-wantY)) > 1e-2 {
			t.Errorf("dy[%d] = %f, numeric %f", i, gy[i], wantY)
		}
	}
}
