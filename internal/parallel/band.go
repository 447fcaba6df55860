package parallel

// DefaultBandHeight is the number of rows per band when none is configured.
const DefaultBandHeight = 16

// Band is a half-open range of image rows [Y0, Y1).
type Band struct {
	Y0, Y1 int
}

// Rows returns the number of rows in the band.
func (b Band) Rows() int {
	return b.Y1 - b.Y0
}

// SplitRows cuts height rows into consecutive bands of at most bandHeight
// rows. The last band takes the remainder. A non-positive bandHeight uses
// DefaultBandHeight; a non-positive height yields no bands.
func SplitRows(height, bandHeight int) []Band {
	if height <= 0 {
		return nil
	}
	if bandHeight <= 0 {
		bandHeight = DefaultBandHeight
	}
	bands := make([]Band, 0, (height+bandHeight-1)/bandHeight)
	for y := 0; y < height; y += bandHeight {
		bands = append(bands, Band{Y0: y, Y1: min(y+bandHeight, height)})
	}
	return bands
}
