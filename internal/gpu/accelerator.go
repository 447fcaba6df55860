//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gogpu/genart"
	"github.com/gogpu/genart/internal/cache"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// DefaultPipelineCacheSize is the number of compiled kernels kept per device.
const DefaultPipelineCacheSize = 32

// fenceTimeout bounds the wait for one dispatch.
const fenceTimeout = 5 * time.Second

// paramsSize is the size of the Params uniform: width, height and padding.
const paramsSize = 16

var errNotReady = errors.New("gpu-kernel: device not initialized")

// pipelineKey identifies a compiled kernel.
type pipelineKey struct {
	fingerprint  uint64
	oversampling int
}

// kernelPipeline is a program-specialised compute pipeline.
type kernelPipeline struct {
	shader   hal.ShaderModule
	pipeline hal.ComputePipeline
}

// KernelAccelerator renders programs with a compute shader generated per
// program and compiled with naga. It implements genart.Accelerator.
//
// Each (program, oversampling) pair gets its own pipeline, kept in an LRU
// cache so that re-rendering the current formula does not recompile.
type KernelAccelerator struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipelines  *cache.Cache[pipelineKey, *kernelPipeline]

	gpuReady       bool
	externalDevice bool // shared device, not destroyed on Close
}

var (
	_ genart.Accelerator         = (*KernelAccelerator)(nil)
	_ genart.DeviceProviderAware = (*KernelAccelerator)(nil)
)

// Name implements genart.Accelerator.
func (a *KernelAccelerator) Name() string { return "wgsl-kernel" }

// SetLogger receives the logger propagated by genart.SetLogger.
func (a *KernelAccelerator) SetLogger(l *slog.Logger) { setLogger(l) }

// Init opens a Vulkan device. A missing GPU is not an error: the accelerator
// stays registered and every Render falls back to the CPU.
func (a *KernelAccelerator) Init() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.initGPU(); err != nil {
		slogger().Warn("gpu-kernel: GPU init failed, using CPU fallback", "err", err)
	}
	return nil
}

// Ready reports whether a device is attached and layouts are created.
func (a *KernelAccelerator) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gpuReady
}

// Close releases pipelines and, unless shared, the device.
func (a *KernelAccelerator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.releaseLocked()
}

func (a *KernelAccelerator) releaseLocked() {
	a.destroyPipelines()
	if !a.externalDevice {
		if a.device != nil {
			a.device.Destroy()
		}
		if a.instance != nil {
			a.instance.Destroy()
		}
	}
	a.device = nil
	a.instance = nil
	a.queue = nil
	a.gpuReady = false
	a.externalDevice = false
}

// SetDevice attaches an externally owned device and queue. Close will not
// destroy them.
func (a *KernelAccelerator) SetDevice(device hal.Device, queue hal.Queue) error {
	if device == nil || queue == nil {
		return fmt.Errorf("gpu-kernel: device and queue are required")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.releaseLocked()
	a.device = device
	a.queue = queue
	a.externalDevice = true

	if err := a.createLayouts(); err != nil {
		a.gpuReady = false
		return fmt.Errorf("gpu-kernel: create layouts with shared device: %w", err)
	}
	a.gpuReady = true
	slogger().Info("gpu-kernel: switched to shared GPU device")
	return nil
}

// SetDeviceProvider uses the device of a host application. The provider
// must also expose HalDevice() and HalQueue() returning hal types.
func (a *KernelAccelerator) SetDeviceProvider(provider gpucontext.DeviceProvider) error {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return fmt.Errorf("gpu-kernel: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return fmt.Errorf("gpu-kernel: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return fmt.Errorf("gpu-kernel: provider HalQueue is not hal.Queue")
	}
	return a.SetDevice(device, queue)
}

// Render implements genart.Accelerator.
func (a *KernelAccelerator) Render(target genart.Target, p *genart.Program, oversampling int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.gpuReady {
		return genart.ErrFallbackToCPU
	}
	k := max(oversampling, 1)
	if k > MaxOversampling {
		return genart.ErrFallbackToCPU
	}

	kp, err := a.pipeline(p, k)
	if err != nil {
		return err
	}
	if err := a.dispatch(kp, target); err != nil {
		return fmt.Errorf("gpu-kernel: %w", err)
	}
	slogger().Debug("gpu-kernel: rendered",
		"fingerprint", p.Fingerprint(), "width", target.Width, "height", target.Height)
	return nil
}

// pipeline returns the cached pipeline for (p, k), building it on a miss.
// Caller holds a.mu.
func (a *KernelAccelerator) pipeline(p *genart.Program, k int) (*kernelPipeline, error) {
	key := pipelineKey{fingerprint: p.Fingerprint(), oversampling: k}
	return a.pipelines.GetOrCreate(key, func() (*kernelPipeline, error) {
		return a.buildPipeline(p, k)
	})
}

func (a *KernelAccelerator) buildPipeline(p *genart.Program, k int) (*kernelPipeline, error) {
	if a.device == nil {
		return nil, errNotReady
	}
	code, err := CompileKernel(GenerateWGSL(p, k))
	if err != nil {
		return nil, err
	}
	shader, err := createShaderModule(a.device, "genart_kernel", code)
	if err != nil {
		return nil, fmt.Errorf("create shader module: %w", err)
	}
	pipeline, err := a.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:   "genart_kernel_pipeline",
		Layout:  a.pipeLayout,
		Compute: hal.ComputeState{Module: shader, EntryPoint: "main"},
	})
	if err != nil {
		a.device.DestroyShaderModule(shader)
		return nil, fmt.Errorf("create compute pipeline: %w", err)
	}
	slogger().Debug("gpu-kernel: pipeline compiled",
		"fingerprint", p.Fingerprint(), "oversampling", k, "spirv_words", len(code))
	return &kernelPipeline{shader: shader, pipeline: pipeline}, nil
}

// dispatch runs kp over target and copies the result into target.Data.
func (a *KernelAccelerator) dispatch(kp *kernelPipeline, target genart.Target) error {
	w, h := uint32(target.Width), uint32(target.Height) //nolint:gosec // dimensions always fit uint32
	pixelBufSize := uint64(w) * uint64(h) * 4

	paramsBuf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "genart_params", Size: paramsSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create params buffer: %w", err)
	}
	defer a.device.DestroyBuffer(paramsBuf)

	storageBuf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "genart_pixels", Size: pixelBufSize,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("create storage buffer: %w", err)
	}
	defer a.device.DestroyBuffer(storageBuf)

	stagingBuf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "genart_staging", Size: pixelBufSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create staging buffer: %w", err)
	}
	defer a.device.DestroyBuffer(stagingBuf)

	a.queue.WriteBuffer(paramsBuf, 0, makeParams(w, h))

	bg, err := a.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "genart_bind", Layout: a.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: paramsBuf.NativeHandle(), Offset: 0, Size: paramsSize}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: storageBuf.NativeHandle(), Offset: 0, Size: pixelBufSize}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group: %w", err)
	}
	defer a.device.DestroyBindGroup(bg)

	encoder, err := a.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "genart_encoder"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("genart_kernel"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "genart_pass"})
	pass.SetPipeline(kp.pipeline)
	pass.SetBindGroup(0, bg, nil)
	pass.Dispatch((w+workgroupSize-1)/workgroupSize, (h+workgroupSize-1)/workgroupSize, 1)
	pass.End()

	encoder.CopyBufferToBuffer(storageBuf, stagingBuf, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: pixelBufSize},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer a.device.FreeCommandBuffer(cmdBuf)

	fence, err := a.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer a.device.DestroyFence(fence)
	if err := a.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	fenceOK, err := a.device.Wait(fence, 1, fenceTimeout)
	if err != nil || !fenceOK {
		return fmt.Errorf("wait for GPU: ok=%v err=%w", fenceOK, err)
	}

	readback := make([]byte, pixelBufSize)
	if err := a.queue.ReadBuffer(stagingBuf, 0, readback); err != nil {
		return fmt.Errorf("readback: %w", err)
	}
	unpackPixels(readback, target)
	return nil
}

func (a *KernelAccelerator) initGPU() error {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	a.instance = instance
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return fmt.Errorf("no GPU adapters found")
	}
	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	a.device = openDev.Device
	a.queue = openDev.Queue
	if err := a.createLayouts(); err != nil {
		a.device.Destroy()
		a.device = nil
		a.queue = nil
		return fmt.Errorf("create layouts: %w", err)
	}
	a.gpuReady = true
	slogger().Info("gpu-kernel: GPU accelerator initialized", "adapter", selected.Info.Name)
	return nil
}

// createLayouts creates the bind group and pipeline layouts shared by every
// kernel, and an empty pipeline cache bound to the current device.
func (a *KernelAccelerator) createLayouts() error {
	bindLayout, err := a.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "genart_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}
	a.bindLayout = bindLayout

	pipeLayout, err := a.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "genart_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{a.bindLayout},
	})
	if err != nil {
		a.device.DestroyBindGroupLayout(a.bindLayout)
		a.bindLayout = nil
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	a.pipeLayout = pipeLayout

	device := a.device
	a.pipelines = cache.NewWithEvict(DefaultPipelineCacheSize, func(_ pipelineKey, kp *kernelPipeline) {
		device.DestroyComputePipeline(kp.pipeline)
		device.DestroyShaderModule(kp.shader)
	})
	return nil
}

func (a *KernelAccelerator) destroyPipelines() {
	if a.device == nil {
		return
	}
	if a.pipelines != nil {
		a.pipelines.Clear()
		a.pipelines = nil
	}
	if a.pipeLayout != nil {
		a.device.DestroyPipelineLayout(a.pipeLayout)
		a.pipeLayout = nil
	}
	if a.bindLayout != nil {
		a.device.DestroyBindGroupLayout(a.bindLayout)
		a.bindLayout = nil
	}
}

// makeParams returns the Params uniform for a w x h target.
func makeParams(w, h uint32) []byte {
	buf := make([]byte, paramsSize)
	binary.LittleEndian.PutUint32(buf[0:], w)
	binary.LittleEndian.PutUint32(buf[4:], h)
	return buf
}

// unpackPixels copies packed little-endian RGBA8 words into target rows.
func unpackPixels(packed []byte, target genart.Target) {
	for y := range target.Height {
		row := target.Data[y*target.Stride:]
		for x := range target.Width {
			val := binary.LittleEndian.Uint32(packed[(y*target.Width+x)*4:])
			i := x * 4
			row[i+0] = uint8(val & 0xFF)         //nolint:gosec // masked to 8 bits
			row[i+1] = uint8((val >> 8) & 0xFF)  //nolint:gosec // masked to 8 bits
			row[i+2] = uint8((val >> 16) & 0xFF) //nolint:gosec // masked to 8 bits
			row[i+3] = uint8((val >> 24) & 0xFF) //nolint:gosec // masked to 8 bits
		}
	}
}
