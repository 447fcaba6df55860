package genart

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"
)

// Formula dimensions.
const (
	// StepCount is the number of steps in every formula.
	StepCount = 36

	// RegisterCount is the number of vector registers a formula operates on.
	RegisterCount = 6

	// KindCount is the number of transformation kinds.
	KindCount = 9
)

// Formula is an ordered sequence of StepCount transformation steps, stored as
// four parallel arrays. Position is execution order.
//
// Formula is a value type: assigning or passing it copies all four arrays, so
// a Formula obtained from a Program or a Session can be edited freely without
// affecting its origin.
type Formula struct {
	Kind    [StepCount]Kind
	Source  [StepCount]int
	Control [StepCount]int
	Dest    [StepCount]int
}

// Step is a single instruction of a formula.
type Step struct {
	Kind    Kind
	Source  int
	Control int
	Dest    int
}

// String formats the step as "KIND src,ctl->dst".
func (s Step) String() string {
	return fmt.Sprintf("%s r%d,r%d->r%d", s.Kind, s.Source, s.Control, s.Dest)
}

// Step returns step i.
func (f *Formula) Step(i int) Step {
	return Step{
		Kind:    f.Kind[i],
		Source:  f.Source[i],
		Control: f.Control[i],
		Dest:    f.Dest[i],
	}
}

// SetStep overwrites step i.
func (f *Formula) SetStep(i int, s Step) {
	f.Kind[i] = s.Kind
	f.Source[i] = s.Source
	f.Control[i] = s.Control
	f.Dest[i] = s.Dest
}

// FromSteps builds a formula from up to StepCount steps.
// Missing trailing steps keep their zero value; extra steps are an error.
func FromSteps(steps []Step) (Formula, error) {
	var f Formula
	if len(steps) > StepCount {
		return f, fmt.Errorf("%w: %d steps, max %d", ErrInvalidFormula, len(steps), StepCount)
	}
	for i, s := range steps {
		f.SetStep(i, s)
	}
	return f, f.Validate()
}

// Validate reports the first field that lies outside its domain.
func (f *Formula) Validate() error {
	for i := range StepCount {
		if !f.Kind[i].Valid() {
			return fmt.Errorf("%w: step %d kind %d", ErrInvalidFormula, i, int(f.Kind[i]))
		}
		if !validRegister(f.Source[i]) {
			return fmt.Errorf("%w: step %d source r%d", ErrInvalidFormula, i, f.Source[i])
		}
		if !validRegister(f.Control[i]) {
			return fmt.Errorf("%w: step %d control r%d", ErrInvalidFormula, i, f.Control[i])
		}
		if !validRegister(f.Dest[i]) {
			return fmt.Errorf("%w: step %d dest r%d", ErrInvalidFormula, i, f.Dest[i])
		}
	}
	return nil
}

func validRegister(r int) bool {
	return r >= 0 && r < RegisterCount
}

// Normalize aliases the control register of every Rotate, Rotate2 and
// Complement step to its destination. Those kinds ignore control, and the
// alias keeps liveness analysis from inventing a read of an unrelated
// register.
func (f *Formula) Normalize() {
	for i := range StepCount {
		if !f.Kind[i].UsesControl() {
			f.Control[i] = f.Dest[i]
		}
	}
}

// reduceFields maps every out-of-range field into its domain modulo the
// domain size, as UnmarshalGimp does. Valid formulas are left unchanged.
func (f *Formula) reduceFields() {
	for i := range StepCount {
		f.Kind[i] = Kind(reduce(int(f.Kind[i]), KindCount))
		f.Source[i] = reduce(f.Source[i], RegisterCount)
		f.Control[i] = reduce(f.Control[i], RegisterCount)
		f.Dest[i] = reduce(f.Dest[i], RegisterCount)
	}
}

// Fingerprint returns the FNV-1a hash of the formula's binary encoding.
func (f *Formula) Fingerprint() uint64 {
	h := fnv.New64a()
	_, _ = h.Write(MarshalGimp(*f)) // fnv.Write never returns an error
	return h.Sum64()
}

// intN draws from rng, or from the package-wide source when rng is nil.
func intN(rng *rand.Rand, n int) int {
	if rng == nil {
		return rand.IntN(n)
	}
	return rng.IntN(n)
}

// RandomFormula returns a formula whose every field is drawn independently
// and uniformly from its domain. A nil rng uses the global math/rand source.
func RandomFormula(rng *rand.Rand) Formula {
	var f Formula
	for i := range StepCount {
		f.Kind[i] = Kind(intN(rng, KindCount))
		f.Source[i] = intN(rng, RegisterCount)
		f.Control[i] = intN(rng, RegisterCount)
		f.Dest[i] = intN(rng, RegisterCount)
	}
	return f
}

// Mutate returns a copy of base with a random number of single-field edits
// in [0, StepCount). Each edit picks one of the four arrays and one step
// uniformly and redraws that field. Edits may land on the same field twice or
// on a dead step, so a child can be anything from identical to unrecognisable.
func Mutate(base Formula, rng *rand.Rand) Formula {
	child := base
	edits := intN(rng, StepCount)
	for range edits {
		field := intN(rng, 4)
		i := intN(rng, StepCount)
		switch field {
		case 0:
			child.Kind[i] = Kind(intN(rng, KindCount))
		case 1:
			child.Source[i] = intN(rng, RegisterCount)
		case 2:
			child.Control[i] = intN(rng, RegisterCount)
		case 3:
			child.Dest[i] = intN(rng, RegisterCount)
		}
	}
	return child
}
