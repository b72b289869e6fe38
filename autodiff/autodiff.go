// Copyright 2025 Ember ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation.
//
// Operations on tracked tensors register backward steps in a dynamic graph;
// Backward replays the graph in reverse creation order and returns the
// gradients of every tensor that requires them. Intermediate values are
// either snapshotted or recomputed on demand, depending on each operation's
// computing property.
//
// Example:
//
//	import (
//	    "github.com/ember-ml/ember/autodiff"
//	    "github.com/ember-ml/ember/backend/cpu"
//	    "github.com/ember-ml/ember/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    x := autodiff.NewLeaf(tensor.Ones(tensor.Shape{2, 2}, tensor.Float32, tensor.CPU), true)
//	    y := autodiff.Mul(backend, x, x)
//
//	    grads := autodiff.Backward(backend, y)
//	    gx, _ := grads.Get(x.Node) // dy/dx = 2x
//	    _ = gx
//	}
package autodiff

import (
	"github.com/ember-ml/ember/internal/autodiff"
	"github.com/ember-ml/ember/internal/autodiff/ops"
	"github.com/ember-ml/ember/internal/tensor"
)

// Tensor pairs a primitive value with its autodiff metadata.
type Tensor = autodiff.Tensor

// Node identifies one tensor in the autodiff graph.
type Node = autodiff.Node

// NodeID is the unique identity of a node.
type NodeID = autodiff.NodeID

// Graph is the dynamic DAG of backward steps.
type Graph = autodiff.Graph

// Step is one type-erased backward computation.
type Step = autodiff.Step

// Gradients maps nodes to their accumulated gradients.
type Gradients = autodiff.Gradients

// Checkpointer resolves checkpointed values during backward.
type Checkpointer = autodiff.Checkpointer

// PromotionPolicy decides the fate of unsure checkpointing actions.
type PromotionPolicy = autodiff.PromotionPolicy

// PromoteAll promotes every unsure action.
type PromoteAll = autodiff.PromoteAll

// NewLeaf wraps a primitive as a graph leaf.
func NewLeaf(primitive *tensor.RawTensor, requiresGrad bool) *Tensor {
	return autodiff.NewLeaf(primitive, requiresGrad)
}

// Backward runs the backward pass from root with the default promotion
// policy and returns the gradients of every requiring leaf.
func Backward(backend tensor.Backend, root *Tensor) *Gradients {
	return autodiff.Backward(backend, root)
}

// Execute runs the backward pass from root with an explicit promotion
// policy.
func Execute(backend tensor.Backend, root *Tensor, policy PromotionPolicy) *Gradients {
	return autodiff.Execute(backend, root, policy)
}

// BroadcastShape reduces a gradient back to the target parent shape by
// summing broadcast dimensions.
func BroadcastShape(backend tensor.Backend, grad *tensor.RawTensor, shape tensor.Shape) *tensor.RawTensor {
	return autodiff.BroadcastShape(backend, grad, shape)
}

// Differentiable operations.

// Add performs element-wise addition.
func Add(backend tensor.Backend, lhs, rhs *Tensor) *Tensor {
	return ops.Add(backend, lhs, rhs)
}

// Sub performs element-wise subtraction.
func Sub(backend tensor.Backend, lhs, rhs *Tensor) *Tensor {
	return ops.Sub(backend, lhs, rhs)
}

// Mul performs element-wise multiplication.
func Mul(backend tensor.Backend, lhs, rhs *Tensor) *Tensor {
	return ops.Mul(backend, lhs, rhs)
}

// Div performs element-wise division.
func Div(backend tensor.Backend, lhs, rhs *Tensor) *Tensor {
	return ops.Div(backend, lhs, rhs)
}

// Neg negates a tensor element-wise.
func Neg(backend tensor.Backend, t *Tensor) *Tensor {
	return ops.Neg(backend, t)
}

// Exp computes the element-wise exponential.
func Exp(backend tensor.Backend, t *Tensor) *Tensor {
	return ops.Exp(backend, t)
}

// MatMul multiplies two matrices.
func MatMul(backend tensor.Backend, lhs, rhs *Tensor) *Tensor {
	return ops.MatMul(backend, lhs, rhs)
}
