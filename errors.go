package genart

import "errors"

// Errors returned by formula decoding and rendering.
var (
	// ErrInvalidLength is returned when a binary formula buffer is not
	// exactly GimpSize bytes long.
	ErrInvalidLength = errors.New("genart: invalid formula buffer length")

	// ErrInvalidShareCode is returned when a share code is not valid base64,
	// not valid JSON, or carries arrays of the wrong length.
	ErrInvalidShareCode = errors.New("genart: invalid share code")

	// ErrInvalidFormula is returned when a formula field lies outside its domain.
	ErrInvalidFormula = errors.New("genart: invalid formula")

	// ErrInvalidDimensions is returned when a render target has a
	// non-positive width or height.
	ErrInvalidDimensions = errors.New("genart: invalid dimensions")
)
