package tensor

import "fmt"

// FromFloat32 creates a Float32 tensor from a Go slice.
// The slice is copied into the tensor's memory.
func FromFloat32(data []float32, shape Shape, device Device) (*RawTensor, error) {
	if shape.NumElements() != len(data) {
		return nil, fmt.Errorf("shape %v requires %d elements, but got %d", shape, shape.NumElements(), len(data))
	}

	raw, err := NewRaw(shape, Float32, device)
	if err != nil {
		return nil, err
	}
	copy(raw.AsFloat32(), data)
	return raw, nil
}

// Zeros creates a zero-filled tensor.
func Zeros(shape Shape, dtype DataType, device Device) *RawTensor {
	raw, err := NewRaw(shape, dtype, device)
	if err != nil {
		panic(fmt.Sprintf("zeros: %v", err))
	}
	return raw
}

// Ones creates a one-filled Float32 or Float64 tensor.
func Ones(shape Shape, dtype DataType, device Device) *RawTensor {
	raw, err := NewRaw(shape, dtype, device)
	if err != nil {
		panic(fmt.Sprintf("ones: %v", err))
	}
	switch dtype {
	case Float32:
		data := raw.AsFloat32()
		for i := range data {
			data[i] = 1
		}
	case Float64:
		data := raw.AsFloat64()
		for i := range data {
			data[i] = 1
		}
	default:
		panic(fmt.Sprintf("ones: unsupported dtype %s", dtype))
	}
	return raw
}

// Arange creates a 1-D Float32 tensor containing [start, end) step 1.
func Arange(start, end int, device Device) *RawTensor {
	if end <= start {
		panic(fmt.Sprintf("arange: invalid range [%d, %d)", start, end))
	}
	raw := Zeros(Shape{end - start}, Float32, device)
	data := raw.AsFloat32()
	for i := range data {
		data[i] = float32(start + i)
	}
	return raw
}
