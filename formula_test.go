package genart

import (
	"errors"
	"math/rand/v2"
	"testing"
)

// fillerStep never touches register 0, so it is dead in every formula built
// by testFormula.
var fillerStep = Step{Kind: Multiply, Source: 5, Control: 5, Dest: 5}

// testFormula places steps at the front of a formula and pads the rest with
// fillerStep.
func testFormula(t testing.TB, steps ...Step) Formula {
	t.Helper()
	if len(steps) > StepCount {
		t.Fatalf("testFormula: %d steps, max %d", len(steps), StepCount)
	}
	var f Formula
	for i := range StepCount {
		f.SetStep(i, fillerStep)
	}
	for i, s := range steps {
		f.SetStep(i, s)
	}
	if err := f.Validate(); err != nil {
		t.Fatalf("testFormula: %v", err)
	}
	return f
}

// rotateFormula is a single live ROTATE r0->r0 step; its output at (u, v)
// is (v, 0, u).
func rotateFormula(t testing.TB) Formula {
	t.Helper()
	return testFormula(t, Step{Kind: Rotate, Source: 0, Control: 0, Dest: 0})
}

func testRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed+1))
}

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{Projection, "PROJECTION"},
		{Shift, "SHIFT"},
		{ShiftBack, "SHIFTBACK"},
		{Rotate, "ROTATE"},
		{Rotate2, "ROTATE2"},
		{Multiply, "MULTIPLY"},
		{Sine, "SINE"},
		{Conditional, "CONDITIONAL"},
		{Complement, "COMPLEMENT"},
		{Kind(9), "Kind(9)"},
		{Kind(-1), "Kind(-1)"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", int(tt.kind), got, tt.want)
		}
	}
}

func TestKindWireValues(t *testing.T) {
	// The numeric values are persisted and must not drift.
	if Projection != 0 || Rotate != 3 || Sine != 6 || Complement != 8 {
		t.Fatal("kind numbering changed")
	}
}

func TestKindUsesControl(t *testing.T) {
	for k := range Kind(KindCount) {
		want := k != Rotate && k != Rotate2 && k != Complement
		if got := k.UsesControl(); got != want {
			t.Errorf("%v.UsesControl() = %v, want %v", k, got, want)
		}
	}
}

func TestStepString(t *testing.T) {
	s := Step{Kind: Sine, Source: 1, Control: 4, Dest: 2}
	if got, want := s.String(), "SINE r1,r4->r2"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		edit func(f *Formula)
		ok   bool
	}{
		{"valid", func(*Formula) {}, true},
		{"kind too large", func(f *Formula) { f.Kind[3] = KindCount }, false},
		{"negative kind", func(f *Formula) { f.Kind[0] = -1 }, false},
		{"source too large", func(f *Formula) { f.Source[35] = RegisterCount }, false},
		{"negative control", func(f *Formula) { f.Control[7] = -1 }, false},
		{"dest too large", func(f *Formula) { f.Dest[12] = 6 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := RandomFormula(testRand(1))
			tt.edit(&f)
			err := f.Validate()
			if tt.ok && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidFormula) {
				t.Errorf("Validate() = %v, want ErrInvalidFormula", err)
			}
		})
	}
}

func TestFromSteps(t *testing.T) {
	f, err := FromSteps([]Step{{Kind: Complement, Source: 2, Control: 0, Dest: 1}})
	if err != nil {
		t.Fatalf("FromSteps: %v", err)
	}
	if got := f.Step(0); got != (Step{Kind: Complement, Source: 2, Control: 0, Dest: 1}) {
		t.Errorf("Step(0) = %v", got)
	}
	if got := f.Step(1); got != (Step{}) {
		t.Errorf("Step(1) = %v, want zero step", got)
	}

	if _, err := FromSteps(make([]Step, StepCount+1)); !errors.Is(err, ErrInvalidFormula) {
		t.Errorf("too many steps: err = %v", err)
	}
	if _, err := FromSteps([]Step{{Dest: 9}}); !errors.Is(err, ErrInvalidFormula) {
		t.Errorf("bad register: err = %v", err)
	}
}

func TestNormalize(t *testing.T) {
	f := testFormula(t,
		Step{Kind: Rotate, Source: 1, Control: 4, Dest: 2},
		Step{Kind: Rotate2, Source: 1, Control: 4, Dest: 3},
		Step{Kind: Complement, Source: 1, Control: 4, Dest: 0},
		Step{Kind: Shift, Source: 1, Control: 4, Dest: 0},
	)
	f.Normalize()

	wantControl := []int{2, 3, 0, 4}
	for i, want := range wantControl {
		if f.Control[i] != want {
			t.Errorf("step %d control = %d, want %d", i, f.Control[i], want)
		}
	}
	if f.Source[0] != 1 || f.Dest[0] != 2 {
		t.Error("Normalize changed source or dest")
	}
}

func TestRandomFormulaValid(t *testing.T) {
	rng := testRand(7)
	var kinds [KindCount]bool
	for range 50 {
		f := RandomFormula(rng)
		if err := f.Validate(); err != nil {
			t.Fatalf("RandomFormula produced invalid formula: %v", err)
		}
		for _, k := range f.Kind {
			kinds[k] = true
		}
	}
	for k, seen := range kinds {
		if !seen {
			t.Errorf("kind %v never drawn in 50 formulas", Kind(k))
		}
	}
}

func TestRandomFormulaDeterministic(t *testing.T) {
	a := RandomFormula(testRand(3))
	b := RandomFormula(testRand(3))
	if a != b {
		t.Error("same seed produced different formulas")
	}
}

// fieldDiff counts the fields in which a and b differ.
func fieldDiff(a, b Formula) int {
	n := 0
	for i := range StepCount {
		if a.Kind[i] != b.Kind[i] {
			n++
		}
		if a.Source[i] != b.Source[i] {
			n++
		}
		if a.Control[i] != b.Control[i] {
			n++
		}
		if a.Dest[i] != b.Dest[i] {
			n++
		}
	}
	return n
}

func TestMutate(t *testing.T) {
	rng := testRand(11)
	base := RandomFormula(rng)
	orig := base

	changed, identical := 0, 0
	for range 2000 {
		child := Mutate(base, rng)
		if err := child.Validate(); err != nil {
			t.Fatalf("Mutate produced invalid formula: %v", err)
		}
		// At most StepCount-1 edits, each touching one field.
		if d := fieldDiff(base, child); d > StepCount-1 {
			t.Fatalf("child differs in %d fields, want at most %d", d, StepCount-1)
		}
		if child != base {
			changed++
		} else {
			identical++
		}
	}
	if base != orig {
		t.Error("Mutate modified its base")
	}
	if changed == 0 {
		t.Error("2000 mutations never changed the formula")
	}
	if identical == 0 {
		t.Error("2000 mutations never returned the base unchanged")
	}
}

func TestFingerprint(t *testing.T) {
	f := RandomFormula(testRand(5))
	g := f
	if f.Fingerprint() != g.Fingerprint() {
		t.Error("equal formulas have different fingerprints")
	}
	g.Dest[35] = (g.Dest[35] + 1) % RegisterCount
	if f.Fingerprint() == g.Fingerprint() {
		t.Error("different formulas share a fingerprint")
	}
}

func BenchmarkMutate(b *testing.B) {
	rng := testRand(1)
	base := RandomFormula(rng)
	b.ReportAllocs()
	for b.Loop() {
		_ = Mutate(base, rng)
	}
}
