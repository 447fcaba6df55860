// Package genart renders generative images from small register-machine
// formulas.
//
// # Overview
//
// A Formula is 36 steps over six 3-component registers. Every sample of an
// image seeds the registers from its normalized coordinates, runs the steps
// in order and reads register 0 as its color. Formulas are random or mutated
// from a parent, so exploring them is a matter of picking the mutant you like
// and mutating again.
//
// # Quick Start
//
//	import "github.com/gogpu/genart"
//
//	f := genart.RandomFormula(nil)
//	p := genart.Compile(f)
//
//	pm, err := genart.Render(ctx, p, 512, 512, genart.WithOversampling(4))
//	if err != nil {
//	    return err
//	}
//	pm.SavePNG("formula.png")
//
// # Liveness
//
// Compile runs a backward liveness walk from the final read of register 0.
// Steps that cannot influence the output are skipped during evaluation, and
// registers whose coordinate seed is never read start at zero. The walk runs
// once per formula, never per pixel; ProgramCache memoizes it across a
// session.
//
// # Kinds
//
// Each step applies one of nine kinds to its source and control registers:
//
//	PROJECTION  (src . ctl) * src
//	SHIFT       src + ctl, components >= 1 wrap back by 1
//	SHIFTBACK   src - ctl, components <= 0 wrap forward by 1
//	ROTATE      (src.y, src.z, src.x)
//	ROTATE2     (src.z, src.x, src.y)
//	MULTIPLY    src * ctl
//	SINE        0.5 + 0.5*sin(20 * src * ctl)
//	CONDITIONAL src if ctl.x+ctl.y+ctl.z > 0.5, else ctl
//	COMPLEMENT  1 - src
//
// # Encodings
//
// MarshalGimp and UnmarshalGimp implement the 288-byte big-endian binary
// format. EncodeShareCode and DecodeShareCode implement the compact text form
// (base64 of a JSON object with four integer arrays). Formula also implements
// encoding.BinaryMarshaler and encoding.TextMarshaler with these formats.
//
// # Rendering
//
// Renderer splits an image into row bands and evaluates them on a worker
// pool. The CPU kernel in float64 is the reference. A GPU accelerator can be
// enabled with a blank import:
//
//	import _ "github.com/gogpu/genart/gpu"
//
// When the accelerator cannot serve a request it returns ErrFallbackToCPU
// and the Renderer uses the CPU kernel.
//
// # Logging
//
// genart is silent by default. Call SetLogger with a *slog.Logger to see
// render diagnostics and accelerator lifecycle events.
//
// # Related Packages
//
//   - github.com/gogpu/genart/sheet: numbered contact sheets of mutants
//   - github.com/gogpu/genart/store: SQLite archive with mutation lineage
//   - github.com/gogpu/genart/cmd/genart: command-line front end
package genart
