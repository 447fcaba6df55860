//go:build !nogpu

package gpu

import (
	"errors"
	"image/color"
	"math/rand/v2"
	"testing"

	"github.com/gogpu/genart"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"
)

func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

func newNoopAccelerator(t *testing.T) *KernelAccelerator {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	a := &KernelAccelerator{}
	if err := a.SetDevice(device, queue); err != nil {
		cleanup()
		t.Fatalf("SetDevice: %v", err)
	}
	t.Cleanup(func() {
		a.Close()
		cleanup()
	})
	return a
}

func TestKernelAcceleratorName(t *testing.T) {
	if got := (&KernelAccelerator{}).Name(); got != "wgsl-kernel" {
		t.Errorf("Name() = %q, want %q", got, "wgsl-kernel")
	}
}

func TestKernelAcceleratorNotReadyFallsBack(t *testing.T) {
	a := &KernelAccelerator{}
	p := testProgram(t, genart.Step{Kind: genart.Rotate, Dest: 0})
	pm := genart.NewPixmap(4, 4)
	target := genart.Target{Data: pm.Data(), Width: 4, Height: 4, Stride: pm.Stride()}

	err := a.Render(target, p, 1)
	if !errors.Is(err, genart.ErrFallbackToCPU) {
		t.Errorf("Render on uninitialized accelerator = %v, want ErrFallbackToCPU", err)
	}
}

func TestKernelAcceleratorSetDeviceNil(t *testing.T) {
	a := &KernelAccelerator{}
	if err := a.SetDevice(nil, nil); err == nil {
		t.Error("SetDevice(nil, nil) should fail")
	}
	if a.Ready() {
		t.Error("accelerator should not be ready")
	}
}

func TestKernelAcceleratorSetDevice(t *testing.T) {
	a := newNoopAccelerator(t)
	if !a.Ready() {
		t.Fatal("accelerator should be ready after SetDevice")
	}
	if a.bindLayout == nil || a.pipeLayout == nil {
		t.Error("layouts not created")
	}
	if a.pipelines == nil || a.pipelines.Len() != 0 {
		t.Error("expected an empty pipeline cache")
	}
}

func TestKernelAcceleratorCloseKeepsSharedDevice(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	a := &KernelAccelerator{}
	if err := a.SetDevice(device, queue); err != nil {
		t.Fatalf("SetDevice: %v", err)
	}
	a.Close()
	if a.Ready() {
		t.Error("accelerator should not be ready after Close")
	}
	// Close twice is safe.
	a.Close()
}

func TestKernelAcceleratorOversamplingFallback(t *testing.T) {
	a := newNoopAccelerator(t)
	p := testProgram(t, genart.Step{Kind: genart.Rotate, Dest: 0})
	pm := genart.NewPixmap(2, 2)
	target := genart.Target{Data: pm.Data(), Width: 2, Height: 2, Stride: pm.Stride()}

	err := a.Render(target, p, MaxOversampling+1)
	if !errors.Is(err, genart.ErrFallbackToCPU) {
		t.Errorf("Render(k=%d) = %v, want ErrFallbackToCPU", MaxOversampling+1, err)
	}
}

func TestKernelAcceleratorPipelineCache(t *testing.T) {
	a := newNoopAccelerator(t)
	p := testProgram(t,
		genart.Step{Kind: genart.Sine, Source: 0, Control: 1, Dest: 0},
	)

	a.mu.Lock()
	defer a.mu.Unlock()

	first, err := a.pipeline(p, 2)
	if err != nil {
		skipOnNagaLimitation(t, err)
		t.Skipf("Skipping: kernel pipeline not available on noop device: %v", err)
	}
	second, err := a.pipeline(p, 2)
	if err != nil {
		t.Fatalf("second pipeline lookup: %v", err)
	}
	if first != second {
		t.Error("same (program, oversampling) should reuse the cached pipeline")
	}
	if _, err := a.pipeline(p, 3); err != nil {
		t.Fatalf("pipeline(k=3): %v", err)
	}
	if got := a.pipelines.Len(); got != 2 {
		t.Errorf("cached pipelines = %d, want 2", got)
	}
}

// failingLayoutDevice fails pipeline layout creation and counts bind group
// layout releases.
type failingLayoutDevice struct {
	hal.Device
	destroyedBindLayouts int
}

func (d *failingLayoutDevice) CreatePipelineLayout(*hal.PipelineLayoutDescriptor) (hal.PipelineLayout, error) {
	return nil, errors.New("out of memory")
}

func (d *failingLayoutDevice) DestroyBindGroupLayout(layout hal.BindGroupLayout) {
	d.destroyedBindLayouts++
	d.Device.DestroyBindGroupLayout(layout)
}

func TestKernelAcceleratorSetDeviceReleasesLayoutOnFailure(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	failing := &failingLayoutDevice{Device: device}
	a := &KernelAccelerator{}
	if err := a.SetDevice(failing, queue); err == nil {
		t.Fatal("SetDevice should fail when the pipeline layout cannot be created")
	}
	if failing.destroyedBindLayouts != 1 {
		t.Errorf("bind group layouts destroyed = %d, want 1", failing.destroyedBindLayouts)
	}
	if a.bindLayout != nil {
		t.Error("bind group layout still referenced after failure")
	}
	if a.Ready() {
		t.Error("accelerator should not be ready")
	}
}

// mockDevice implements gpucontext.Device for testing.
type mockDevice struct{}

func (m *mockDevice) Poll(wait bool) {}
func (m *mockDevice) Destroy()       {}

type mockQueue struct{}

type mockAdapter struct{}

// mockProvider implements gpucontext.DeviceProvider without HAL access.
type mockProvider struct{}

func (m *mockProvider) Device() gpucontext.Device             { return &mockDevice{} }
func (m *mockProvider) Queue() gpucontext.Queue               { return &mockQueue{} }
func (m *mockProvider) Adapter() gpucontext.Adapter           { return &mockAdapter{} }
func (m *mockProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatBGRA8Unorm }

// halMockProvider also exposes HAL types, like a host application would.
type halMockProvider struct {
	mockProvider
	device hal.Device
	queue  hal.Queue
}

func (m *halMockProvider) HalDevice() any { return m.device }
func (m *halMockProvider) HalQueue() any  { return m.queue }

func TestKernelAcceleratorSetDeviceProvider(t *testing.T) {
	t.Run("without HAL", func(t *testing.T) {
		a := &KernelAccelerator{}
		if err := a.SetDeviceProvider(&mockProvider{}); err == nil {
			t.Error("expected error for provider without HAL types")
		}
	})

	t.Run("with HAL", func(t *testing.T) {
		device, queue, cleanup := createNoopDevice(t)
		defer cleanup()

		a := &KernelAccelerator{}
		defer a.Close()
		if err := a.SetDeviceProvider(&halMockProvider{device: device, queue: queue}); err != nil {
			t.Fatalf("SetDeviceProvider: %v", err)
		}
		if !a.Ready() {
			t.Error("accelerator should be ready")
		}
	})

	t.Run("nil HAL device", func(t *testing.T) {
		a := &KernelAccelerator{}
		if err := a.SetDeviceProvider(&halMockProvider{}); err == nil {
			t.Error("expected error for nil HAL device")
		}
	})
}

func TestMakeParams(t *testing.T) {
	b := makeParams(640, 480)
	if len(b) != paramsSize {
		t.Fatalf("len = %d, want %d", len(b), paramsSize)
	}
	// width at offset 0, height at offset 4, little-endian
	if b[0] != 0x80 || b[1] != 0x02 || b[4] != 0xE0 || b[5] != 0x01 {
		t.Errorf("unexpected layout: % x", b)
	}
}

func TestUnpackPixelsStride(t *testing.T) {
	const w, h, stride = 2, 2, 12 // 4 bytes of row padding
	packed := []byte{
		1, 2, 3, 255, 4, 5, 6, 255,
		7, 8, 9, 255, 10, 11, 12, 255,
	}
	data := make([]byte, stride*h)
	unpackPixels(packed, genart.Target{Data: data, Width: w, Height: h, Stride: stride})

	want := []byte{
		1, 2, 3, 255, 4, 5, 6, 255, 0, 0, 0, 0,
		7, 8, 9, 255, 10, 11, 12, 255, 0, 0, 0, 0,
	}
	for i := range want {
		if data[i] != want[i] {
			t.Fatalf("byte %d = %d, want %d", i, data[i], want[i])
		}
	}
}

// smoothCorpus holds formulas without wrap or threshold discontinuities, so
// float32 and float64 evaluation agree to within one channel level.
func smoothCorpus(t *testing.T) []*genart.Program {
	t.Helper()
	return []*genart.Program{
		testProgram(t, genart.Step{Kind: genart.Rotate, Source: 0, Dest: 0}),
		testProgram(t,
			genart.Step{Kind: genart.Multiply, Source: 0, Control: 1, Dest: 0},
			genart.Step{Kind: genart.Complement, Source: 0, Dest: 0},
		),
		testProgram(t,
			genart.Step{Kind: genart.Rotate2, Source: 2, Dest: 1},
			genart.Step{Kind: genart.Projection, Source: 1, Control: 3, Dest: 0},
		),
		testProgram(t, genart.Step{Kind: genart.Sine, Source: 0, Control: 0, Dest: 0}),
	}
}

// gpuDeviceAccelerator opens a real GPU device or skips the test.
func gpuDeviceAccelerator(t *testing.T) *KernelAccelerator {
	t.Helper()
	a := &KernelAccelerator{}
	if err := a.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(a.Close)
	if !a.Ready() {
		t.Skip("Skipping: no GPU device available")
	}
	return a
}

func renderOnDevice(t *testing.T, a *KernelAccelerator, p *genart.Program, w, h, k int) *genart.Pixmap {
	t.Helper()
	pm := genart.NewPixmap(w, h)
	err := a.Render(genart.Target{Data: pm.Data(), Width: w, Height: h, Stride: pm.Stride()}, p, k)
	if err != nil {
		skipOnNagaLimitation(t, err)
		t.Fatalf("Render(k=%d): %v", k, err)
	}
	return pm
}

// channelDelta returns the largest per-channel difference between a and b.
func channelDelta(a, b color.RGBA) int {
	d := 0
	for _, pair := range [4][2]uint8{{a.R, b.R}, {a.G, b.G}, {a.B, b.B}, {a.A, b.A}} {
		d = max(d, abs(int(pair[0])-int(pair[1])))
	}
	return d
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func TestKernelAcceleratorMatchesCPU(t *testing.T) {
	a := gpuDeviceAccelerator(t)
	const w, h = 24, 16

	for i, p := range smoothCorpus(t) {
		for _, k := range []int{1, 2} {
			pm := renderOnDevice(t, a, p, w, h, k)
			for y := range h {
				for x := range w {
					got, want := pm.Pixel(x, y), p.Pixel(x, y, w, h, k)
					if channelDelta(got, want) > 1 {
						t.Fatalf("formula %d, k=%d, pixel (%d, %d): gpu %v, cpu %v", i, k, x, y, got, want)
					}
				}
			}
		}
	}
}

func TestKernelAcceleratorRandomFormulasMatchCPU(t *testing.T) {
	a := gpuDeviceAccelerator(t)
	const w, h = 24, 16
	rng := rand.New(rand.NewPCG(7, 9))

	for i := range 12 {
		p := genart.Compile(genart.RandomFormula(rng))
		for _, k := range []int{1, 2} {
			pm := renderOnDevice(t, a, p, w, h, k)
			// Shift wraps and Conditional thresholds may flip for samples
			// sitting on a boundary, where float32 rounding decides.
			off := 0
			for y := range h {
				for x := range w {
					if pm.Pixel(x, y).A != 255 {
						t.Fatalf("formula %d, k=%d: pixel (%d, %d) not opaque", i, k, x, y)
					}
					if channelDelta(pm.Pixel(x, y), p.Pixel(x, y, w, h, k)) > 1 {
						off++
					}
				}
			}
			if off > w*h/100 {
				t.Errorf("formula %d, k=%d: %d of %d pixels differ by more than one level", i, k, off, w*h)
			}
		}
	}
}
