//go:build windows

package tiling2d

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/ember-ml/ember/internal/tensor"
)

// Launcher dispatches specialized write kernels on a WebGPU device.
// Compiled shaders and pipelines are cached per specialization key.
type Launcher struct {
	device *wgpu.Device
	queue  *wgpu.Queue

	mu        sync.RWMutex
	shaders   map[string]*wgpu.ShaderModule
	pipelines map[string]*wgpu.ComputePipeline
}

// NewLauncher wraps an initialized device and queue.
func NewLauncher(device *wgpu.Device, queue *wgpu.Queue) *Launcher {
	return &Launcher{
		device:    device,
		queue:     queue,
		shaders:   make(map[string]*wgpu.ShaderModule),
		pipelines: make(map[string]*wgpu.ComputePipeline),
	}
}

// compileShader compiles WGSL shader code into a ShaderModule.
// Results are cached in the Launcher's shaders map.
func (l *Launcher) compileShader(name, code string) *wgpu.ShaderModule {
	l.mu.RLock()
	if shader, exists := l.shaders[name]; exists {
		l.mu.RUnlock()
		return shader
	}
	l.mu.RUnlock()

	shader := l.device.CreateShaderModuleWGSL(code)

	l.mu.Lock()
	l.shaders[name] = shader
	l.mu.Unlock()

	return shader
}

// getOrCreatePipeline returns a cached ComputePipeline or creates a new one.
func (l *Launcher) getOrCreatePipeline(name string, shader *wgpu.ShaderModule) *wgpu.ComputePipeline {
	l.mu.RLock()
	if pipeline, exists := l.pipelines[name]; exists {
		l.mu.RUnlock()
		return pipeline
	}
	l.mu.RUnlock()

	pipeline := l.device.CreateComputePipelineSimple(nil, shader, "main")

	l.mu.Lock()
	l.pipelines[name] = pipeline
	l.mu.Unlock()

	return pipeline
}

// createBuffer creates a GPU buffer and uploads initial data.
func (l *Launcher) createBuffer(data []byte, usage wgpu.BufferUsage) *wgpu.Buffer {
	size := uint64(len(data))

	buffer := l.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, size)
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	copy(mappedSlice, data)
	buffer.Unmap()

	return buffer
}

// createUniformBuffer creates a uniform buffer with 16-byte alignment.
func (l *Launcher) createUniformBuffer(data []byte) *wgpu.Buffer {
	size := uint64(len(data))
	alignedSize := (size + 15) &^ 15

	buffer := l.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		Size:             alignedSize,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, alignedSize)
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), alignedSize)
	copy(mappedSlice, data)
	buffer.Unmap()

	return buffer
}

// readBuffer reads data back from a GPU buffer through a staging buffer.
func (l *Launcher) readBuffer(srcBuffer *wgpu.Buffer, size uint64) ([]byte, error) {
	stagingBuffer := l.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer stagingBuffer.Release()

	encoder := l.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(srcBuffer, 0, stagingBuffer, 0, size)
	cmdBuffer := encoder.Finish(nil)
	l.queue.Submit(cmdBuffer)

	err := stagingBuffer.MapAsync(l.device, wgpu.MapModeRead, 0, size)
	if err != nil {
		return nil, fmt.Errorf("tiling2d: failed to map staging buffer: %w", err)
	}

	mappedPtr := stagingBuffer.GetMappedRange(0, size)
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	result := make([]byte, size)
	copy(result, mappedSlice)

	stagingBuffer.Unmap()

	return result, nil
}

// Run dispatches the write kernel for cfg over the given grid: the tile
// results are written into out at the positions the grid implies, and the
// updated output is read back from the device.
func (l *Launcher) Run(
	cfg Config,
	tiling Tiling,
	cubes, units CubeDim,
	out *tensor.RawTensor,
	results []float32,
	offsetOutput int,
) error {
	if out.DType() != tensor.Float32 {
		return fmt.Errorf("tiling2d: only float32 is supported, got %s", out.DType())
	}
	shape := out.Shape()
	if len(shape) != 2 {
		return fmt.Errorf("tiling2d: output must be 2D, got %v", shape)
	}

	code, err := cfg.WGSL(tiling, units)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("write_output_t%d_v%d_m%t_n%t_u%t_%dx%d",
		cfg.TileSize, cfg.VectorWidth, cfg.CheckMBounds, cfg.CheckNBounds, cfg.Unroll,
		units.X, units.Y)

	shader := l.compileShader(name, code)
	pipeline := l.getOrCreatePipeline(name, shader)

	outSize := uint64(out.ByteSize())
	bufferOut := l.createBuffer(out.Data(), wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc|wgpu.BufferUsageCopyDst)
	defer bufferOut.Release()

	resultsBytes := make([]byte, len(results)*4)
	for i, v := range results {
		binary.LittleEndian.PutUint32(resultsBytes[i*4:], math.Float32bits(v))
	}
	bufferResults := l.createBuffer(resultsBytes, wgpu.BufferUsageStorage)
	defer bufferResults.Release()

	// Params: dim_m, dim_n, stride_row, offset_output.
	params := make([]byte, 16)
	binary.LittleEndian.PutUint32(params[0:4], uint32(shape[0]))
	binary.LittleEndian.PutUint32(params[4:8], uint32(shape[1]))
	binary.LittleEndian.PutUint32(params[8:12], uint32(rowStride(out)))
	binary.LittleEndian.PutUint32(params[12:16], uint32(offsetOutput))
	bufferParams := l.createUniformBuffer(params)
	defer bufferParams.Release()

	bindGroupLayout := pipeline.GetBindGroupLayout(0)
	bindGroup := l.device.CreateBindGroupSimple(bindGroupLayout, []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, bufferOut, 0, outSize),
		wgpu.BufferBindingEntry(1, bufferResults, 0, uint64(len(resultsBytes))),
		wgpu.BufferBindingEntry(2, bufferParams, 0, 16),
	})
	defer bindGroup.Release()

	encoder := l.device.CreateCommandEncoder(nil)
	computePass := encoder.BeginComputePass(nil)

	computePass.SetPipeline(pipeline)
	computePass.SetBindGroup(0, bindGroup, nil)
	computePass.DispatchWorkgroups(uint32(cubes.X), uint32(cubes.Y), 1)
	computePass.End()

	cmdBuffer := encoder.Finish(nil)
	l.queue.Submit(cmdBuffer)

	written, err := l.readBuffer(bufferOut, outSize)
	if err != nil {
		return err
	}
	copy(out.Data(), written)
	return nil
}
