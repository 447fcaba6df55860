package genart

// Liveness records which parts of a formula influence its output.
type Liveness struct {
	// Step[i] is true when step i contributes, directly or transitively,
	// to register 0 after the last step.
	Step [StepCount]bool

	// Seeded[r] is true when the coordinate-derived initial value of
	// register r is read by some live step.
	Seeded [RegisterCount]bool
}

// LiveCount returns the number of live steps.
func (l *Liveness) LiveCount() int {
	n := 0
	for _, live := range l.Step {
		if live {
			n++
		}
	}
	return n
}

// walkItem is a pending (position, register) query: find the last writer of
// register before position.
type walkItem struct {
	pos, reg int
}

// Analyze computes the liveness of f.
//
// Analyze first reduces any out-of-range field modulo its domain, the way
// the decoders do, and then calls f.Normalize. f is modified in place: the
// control field of every Rotate, Rotate2 and Complement step is set to its
// dest.
// Evaluation must use the normalized formula for results to match. Use
// Compile to get a normalized copy and leave the original untouched.
//
// Starting from register 0 read after the final step, the walk searches
// backwards for the nearest step writing the queried register. A hit marks
// the step live and queues its source and control registers at that step's
// position; a miss means the register's seed is observed.
func Analyze(f *Formula) Liveness {
	f.reduceFields()
	f.Normalize()

	var (
		live    Liveness
		visited [StepCount + 1][RegisterCount]bool
	)
	stack := make([]walkItem, 0, 2*StepCount)
	stack = append(stack, walkItem{pos: StepCount, reg: 0})

	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if visited[it.pos][it.reg] {
			continue
		}
		visited[it.pos][it.reg] = true

		p := lastWriter(f, it.pos, it.reg)
		if p < 0 {
			live.Seeded[it.reg] = true
			continue
		}
		live.Step[p] = true
		stack = append(stack,
			walkItem{pos: p, reg: f.Control[p]},
			walkItem{pos: p, reg: f.Source[p]},
		)
	}
	return live
}

// lastWriter returns the index of the nearest step before pos whose
// destination is reg, or -1 when there is none.
func lastWriter(f *Formula, pos, reg int) int {
	for p := pos - 1; p >= 0; p-- {
		if f.Dest[p] == reg {
			return p
		}
	}
	return -1
}
