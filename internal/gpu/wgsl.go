//go:build !nogpu

package gpu

import (
	"fmt"
	"strings"

	"github.com/gogpu/genart"
)

// MaxOversampling is the largest subsample grid the generated shader
// unrolls. Larger grids render on the CPU.
const MaxOversampling = 8

// workgroupSize is the edge of the square compute workgroup.
const workgroupSize = 8

// shaderPrelude declares the bindings and the wrap helpers shared by every
// generated kernel.
const shaderPrelude = `struct Params {
    width: u32,
    height: u32,
    _pad0: u32,
    _pad1: u32,
}

@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(1) var<storage, read_write> pixels: array<u32>;

fn wrap_up(s: vec3<f32>) -> vec3<f32> {
    return select(s, s - vec3<f32>(1.0, 1.0, 1.0), s >= vec3<f32>(1.0, 1.0, 1.0));
}

fn wrap_down(d: vec3<f32>) -> vec3<f32> {
    return select(d, d + vec3<f32>(1.0, 1.0, 1.0), d <= vec3<f32>(0.0, 0.0, 0.0));
}

fn to_channel(c: f32) -> u32 {
    let v = floor(c * 255.0);
    if (!(v > 0.0)) {
        return 0u;
    }
    return u32(min(v, 255.0));
}

`

// GenerateWGSL emits a compute shader that renders p with k x k
// oversampling, k clamped into [1, MaxOversampling].
//
// The shader is specialised to the program: every live step becomes one
// statement block in sample(), dead steps are absent and unseeded registers
// start at zero. All iteration is unrolled, including the subsample grid,
// so the module contains no loops.
func GenerateWGSL(p *genart.Program, oversampling int) string {
	k := min(max(oversampling, 1), MaxOversampling)
	f := p.Formula()
	live := p.Liveness()

	var b strings.Builder
	fmt.Fprintf(&b, "// genart kernel %016x, %d live steps, %dx%d oversampling\n\n",
		p.Fingerprint(), live.LiveCount(), k, k)
	b.WriteString(shaderPrelude)

	b.WriteString("fn sample(u: f32, v: f32) -> vec3<f32> {\n")
	for r := range genart.RegisterCount {
		if live.Seeded[r] {
			fmt.Fprintf(&b, "    var r%d = vec3<f32>(u, v, %d.0 / %d.0);\n", r, r, genart.RegisterCount)
		} else {
			fmt.Fprintf(&b, "    var r%d = vec3<f32>(0.0, 0.0, 0.0);\n", r)
		}
	}
	for _, i := range p.LiveSteps() {
		writeStep(&b, i, f.Step(i))
	}
	b.WriteString("    return r0;\n}\n\n")

	fmt.Fprintf(&b, "@compute @workgroup_size(%d, %d, 1)\n", workgroupSize, workgroupSize)
	b.WriteString("fn main(@builtin(global_invocation_id) gid: vec3<u32>) {\n")
	b.WriteString("    if (gid.x >= params.width || gid.y >= params.height) {\n        return;\n    }\n")
	fmt.Fprintf(&b, "    let uw = f32(params.width * %du);\n", k)
	fmt.Fprintf(&b, "    let vh = f32(params.height * %du);\n", k)
	fmt.Fprintf(&b, "    let bx = gid.x * %du;\n", k)
	fmt.Fprintf(&b, "    let by = gid.y * %du;\n", k)
	b.WriteString("    var sum = vec3<f32>(0.0, 0.0, 0.0);\n")
	for dx := range k {
		for dy := range k {
			fmt.Fprintf(&b, "    sum = sum + sample(f32(bx + %du) / uw, f32(by + %du) / vh);\n", dx, dy)
		}
	}
	fmt.Fprintf(&b, "    let avg = sum / %d.0;\n", k*k)
	b.WriteString("    let rgba = to_channel(avg.x) | (to_channel(avg.y) << 8u) | (to_channel(avg.z) << 16u) | (255u << 24u);\n")
	b.WriteString("    pixels[gid.y * params.width + gid.x] = rgba;\n")
	b.WriteString("}\n")
	return b.String()
}

// writeStep emits the block for step i. Operands are read into s and c
// before dest is written, so a step whose dest equals its source sees the
// old value.
func writeStep(b *strings.Builder, i int, s genart.Step) {
	fmt.Fprintf(b, "    // %02d %s\n    {\n", i, s)
	fmt.Fprintf(b, "        let s = r%d;\n", s.Source)
	if s.Kind.UsesControl() {
		fmt.Fprintf(b, "        let c = r%d;\n", s.Control)
	}
	d := fmt.Sprintf("r%d", s.Dest)
	switch s.Kind {
	case genart.Projection:
		fmt.Fprintf(b, "        %s = s * dot(s, c);\n", d)
	case genart.Shift:
		fmt.Fprintf(b, "        %s = wrap_up(s + c);\n", d)
	case genart.ShiftBack:
		fmt.Fprintf(b, "        %s = wrap_down(s - c);\n", d)
	case genart.Rotate:
		fmt.Fprintf(b, "        %s = s.yzx;\n", d)
	case genart.Rotate2:
		fmt.Fprintf(b, "        %s = s.zxy;\n", d)
	case genart.Multiply:
		fmt.Fprintf(b, "        %s = s * c;\n", d)
	case genart.Sine:
		fmt.Fprintf(b, "        %s = vec3<f32>(0.5, 0.5, 0.5) + 0.5 * sin(20.0 * s * c);\n", d)
	case genart.Conditional:
		fmt.Fprintf(b, "        if (c.x + c.y + c.z > 0.5) {\n            %s = s;\n        } else {\n            %s = c;\n        }\n", d, d)
	case genart.Complement:
		fmt.Fprintf(b, "        %s = vec3<f32>(1.0, 1.0, 1.0) - s;\n", d)
	}
	b.WriteString("    }\n")
}
