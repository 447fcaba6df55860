package genart

import "math"

// Kernel tuning constants. They are part of the algorithm, not parameters.
const (
	sineFrequency        = 20.0
	conditionalThreshold = 0.5
)

// seed returns the initial value of register r at (u, v).
func seed(r int, u, v float64) Vec3 {
	return Vec3{X: u, Y: v, Z: float64(r) / RegisterCount}
}

// EvaluateSample runs the live steps of f at the normalized coordinates
// (u, v) and returns the final value of register 0.
//
// f must already be normalized (see Analyze) and live must be its liveness.
// Registers whose seed is never read start at zero.
func EvaluateSample(f *Formula, live *Liveness, u, v float64) Vec3 {
	if debugChecks {
		mustValid(f)
	}

	var regs [RegisterCount]Vec3
	for r := range RegisterCount {
		if live.Seeded[r] {
			regs[r] = seed(r, u, v)
		}
	}

	for i := range StepCount {
		if !live.Step[i] {
			continue
		}
		regs[f.Dest[i]] = applyStep(f.Kind[i], regs[f.Source[i]], regs[f.Control[i]])
	}
	return regs[0]
}

// applyStep computes one transformation from the pre-step operand values.
func applyStep(k Kind, src, ctrl Vec3) Vec3 {
	switch k {
	case Projection:
		return src.Scale(src.Dot(ctrl))

	case Shift:
		s := src.Add(ctrl)
		return Vec3{X: wrapUp(s.X), Y: wrapUp(s.Y), Z: wrapUp(s.Z)}

	case ShiftBack:
		d := src.Sub(ctrl)
		return Vec3{X: wrapDown(d.X), Y: wrapDown(d.Y), Z: wrapDown(d.Z)}

	case Rotate:
		return Vec3{X: src.Y, Y: src.Z, Z: src.X}

	case Rotate2:
		return Vec3{X: src.Z, Y: src.X, Z: src.Y}

	case Multiply:
		return src.Mul(ctrl)

	case Sine:
		return Vec3{
			X: 0.5 + 0.5*math.Sin(sineFrequency*src.X*ctrl.X),
			Y: 0.5 + 0.5*math.Sin(sineFrequency*src.Y*ctrl.Y),
			Z: 0.5 + 0.5*math.Sin(sineFrequency*src.Z*ctrl.Z),
		}

	case Conditional:
		if ctrl.Sum() > conditionalThreshold {
			return src
		}
		return ctrl

	case Complement:
		return Vec3{X: 1 - src.X, Y: 1 - src.Y, Z: 1 - src.Z}
	}
	return src
}

// wrapUp folds x >= 1 back by one. The boundary is inclusive.
func wrapUp(x float64) float64 {
	if x >= 1.0 {
		return x - 1.0
	}
	return x
}

// wrapDown folds x <= 0 forward by one. The boundary is inclusive.
func wrapDown(x float64) float64 {
	if x <= 0.0 {
		return x + 1.0
	}
	return x
}

// mustValid panics when f violates the formula invariants. Only called in
// builds tagged genartdebug.
func mustValid(f *Formula) {
	if err := f.Validate(); err != nil {
		panic(err)
	}
}
