package genart

import (
	"fmt"
	"math/rand/v2"
)

// DefaultPreviewCount is the number of preview mutants a Session keeps.
const DefaultPreviewCount = 9

// SessionOption configures a Session.
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	rng      *rand.Rand
	previews int
	cache    *ProgramCache
}

// WithRand sets the random source used for new formulas and mutations.
// A nil source, the default, uses the global math/rand source.
func WithRand(rng *rand.Rand) SessionOption {
	return func(o *sessionOptions) {
		o.rng = rng
	}
}

// WithPreviewCount sets how many preview mutants are kept. Values below 1
// are treated as 1.
func WithPreviewCount(n int) SessionOption {
	return func(o *sessionOptions) {
		o.previews = max(n, 1)
	}
}

// WithProgramCache shares a program cache between sessions.
func WithProgramCache(c *ProgramCache) SessionOption {
	return func(o *sessionOptions) {
		o.cache = c
	}
}

// Session is the interactive state of an exploration: a current formula, a
// set of preview mutants derived from it and the trail of formulas that were
// current before it.
//
// Session is not safe for concurrent use. Programs returned by it are.
type Session struct {
	rng      *rand.Rand
	cache    *ProgramCache
	current  *Program
	previews []*Program
	history  []Formula
}

// NewSession starts a session from a random formula.
func NewSession(opts ...SessionOption) *Session {
	o := sessionOptions{previews: DefaultPreviewCount}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cache == nil {
		o.cache = NewProgramCache(0)
	}
	s := &Session{
		rng:      o.rng,
		cache:    o.cache,
		previews: make([]*Program, o.previews),
	}
	s.current = s.cache.Get(RandomFormula(s.rng))
	s.Remutate()
	return s
}

// Current returns the current program.
func (s *Session) Current() *Program {
	return s.current
}

// Previews returns the preview programs. The slice is a copy.
func (s *Session) Previews() []*Program {
	out := make([]*Program, len(s.previews))
	copy(out, s.previews)
	return out
}

// Randomize replaces the current formula with a fresh random one and
// regenerates the previews.
func (s *Session) Randomize() {
	s.SetCurrent(RandomFormula(s.rng))
}

// SetCurrent makes f the current formula and regenerates the previews.
func (s *Session) SetCurrent(f Formula) {
	s.history = append(s.history, s.current.Formula())
	s.current = s.cache.Get(f)
	s.Remutate()
	Logger().Debug("genart: session current changed",
		"fingerprint", s.current.Fingerprint(),
		"live_steps", s.current.live.LiveCount())
}

// Select promotes preview i to current and mutates new previews from it.
func (s *Session) Select(i int) error {
	if i < 0 || i >= len(s.previews) {
		return fmt.Errorf("genart: preview index %d out of range [0, %d)", i, len(s.previews))
	}
	s.SetCurrent(s.previews[i].Formula())
	return nil
}

// Remutate replaces every preview with a fresh mutant of the current formula.
func (s *Session) Remutate() {
	base := s.current.Formula()
	for i := range s.previews {
		s.previews[i] = s.cache.Get(Mutate(base, s.rng))
	}
}

// History returns the previously current formulas, oldest first.
func (s *Session) History() []Formula {
	out := make([]Formula, len(s.history))
	copy(out, s.history)
	return out
}

// Back restores the previous current formula and regenerates the previews.
// It reports false when there is no history.
func (s *Session) Back() bool {
	n := len(s.history)
	if n == 0 {
		return false
	}
	prev := s.history[n-1]
	s.history = s.history[:n-1]
	s.current = s.cache.Get(prev)
	s.Remutate()
	return true
}
