package genart

import "fmt"

// Kind identifies the transformation a step applies to its operands.
//
// The numeric value is part of the persisted formats (binary and share code),
// so the declaration order below must never change.
type Kind int

const (
	// Projection scales source by the dot product of source and control.
	Projection Kind = iota
	// Shift adds control to source, wrapping components >= 1 back into [0,1).
	Shift
	// ShiftBack subtracts control from source, wrapping components <= 0 into (0,1].
	ShiftBack
	// Rotate permutes the components of source as (y, z, x).
	Rotate
	// Rotate2 permutes the components of source as (z, x, y).
	Rotate2
	// Multiply is the componentwise product of source and control.
	Multiply
	// Sine maps 0.5 + 0.5*sin(20*source*control) componentwise.
	Sine
	// Conditional selects source when the control components sum above 0.5,
	// and control otherwise.
	Conditional
	// Complement maps each component c of source to 1 - c.
	Complement
)

var kindNames = [KindCount]string{
	Projection:  "PROJECTION",
	Shift:       "SHIFT",
	ShiftBack:   "SHIFTBACK",
	Rotate:      "ROTATE",
	Rotate2:     "ROTATE2",
	Multiply:    "MULTIPLY",
	Sine:        "SINE",
	Conditional: "CONDITIONAL",
	Complement:  "COMPLEMENT",
}

// String returns the mnemonic of the kind, or "Kind(n)" for invalid values.
func (k Kind) String() string {
	if k.Valid() {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Valid reports whether k is one of the nine defined kinds.
func (k Kind) Valid() bool {
	return k >= 0 && k < KindCount
}

// UsesControl reports whether the kind reads its control register.
// Rotate, Rotate2 and Complement only read source.
func (k Kind) UsesControl() bool {
	switch k {
	case Rotate, Rotate2, Complement:
		return false
	}
	return true
}
