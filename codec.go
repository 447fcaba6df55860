package genart

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strings"
)

// GimpSize is the length in bytes of the binary formula encoding: four blocks
// of StepCount big-endian uint16 values (kind, source, control, dest).
const GimpSize = 4 * StepCount * 2

// MarshalGimp encodes f in the 288-byte binary interchange format.
// Fields outside [0, 65535] are truncated to 16 bits; valid formulas never
// hit that case.
func MarshalGimp(f Formula) []byte {
	buf := make([]byte, GimpSize)
	for i := range StepCount {
		binary.BigEndian.PutUint16(buf[blockOffset(0, i):], uint16(f.Kind[i]))  //nolint:gosec // kind < KindCount
		binary.BigEndian.PutUint16(buf[blockOffset(1, i):], uint16(f.Source[i])) //nolint:gosec // register < RegisterCount
		binary.BigEndian.PutUint16(buf[blockOffset(2, i):], uint16(f.Control[i]))
		binary.BigEndian.PutUint16(buf[blockOffset(3, i):], uint16(f.Dest[i]))
	}
	return buf
}

// UnmarshalGimp decodes the 288-byte binary interchange format.
//
// A buffer of any other length is rejected with ErrInvalidLength. Values
// outside a field's domain are reduced modulo the domain size rather than
// rejected, so slightly corrupted data still yields a usable formula.
func UnmarshalGimp(b []byte) (Formula, error) {
	var f Formula
	if len(b) != GimpSize {
		return f, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidLength, len(b), GimpSize)
	}
	for i := range StepCount {
		f.Kind[i] = Kind(int(binary.BigEndian.Uint16(b[blockOffset(0, i):])) % KindCount)
		f.Source[i] = int(binary.BigEndian.Uint16(b[blockOffset(1, i):])) % RegisterCount
		f.Control[i] = int(binary.BigEndian.Uint16(b[blockOffset(2, i):])) % RegisterCount
		f.Dest[i] = int(binary.BigEndian.Uint16(b[blockOffset(3, i):])) % RegisterCount
	}
	return f, nil
}

// blockOffset returns the byte offset of step i within field block n.
func blockOffset(n, i int) int {
	return n*StepCount*2 + i*2
}

// shareDoc is the JSON document behind a share code. Kinds are plain integers.
type shareDoc struct {
	Kind    []int `json:"kind"`
	Source  []int `json:"source"`
	Control []int `json:"control"`
	Dest    []int `json:"dest"`
}

// EncodeShareCode encodes f as URL-safe, unpadded base64 of its JSON form.
func EncodeShareCode(f Formula) (string, error) {
	doc := shareDoc{
		Kind:    make([]int, StepCount),
		Source:  f.Source[:],
		Control: f.Control[:],
		Dest:    f.Dest[:],
	}
	for i, k := range f.Kind {
		doc.Kind[i] = int(k)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("genart: encode share code: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// DecodeShareCode decodes a share code produced by EncodeShareCode.
//
// Standard and URL-safe alphabets are accepted, with or without padding.
// Arrays must hold exactly StepCount entries; out-of-range values are
// reduced modulo their domain like UnmarshalGimp does.
func DecodeShareCode(code string) (Formula, error) {
	var f Formula

	raw, err := decodeBase64(strings.TrimSpace(code))
	if err != nil {
		return f, fmt.Errorf("%w: %w", ErrInvalidShareCode, err)
	}
	var doc shareDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return f, fmt.Errorf("%w: %w", ErrInvalidShareCode, err)
	}

	fields := []struct {
		name string
		vals []int
	}{
		{"kind", doc.Kind},
		{"source", doc.Source},
		{"control", doc.Control},
		{"dest", doc.Dest},
	}
	for _, fl := range fields {
		if len(fl.vals) != StepCount {
			return f, fmt.Errorf("%w: %s has %d entries, want %d",
				ErrInvalidShareCode, fl.name, len(fl.vals), StepCount)
		}
	}

	for i := range StepCount {
		f.Kind[i] = Kind(reduce(doc.Kind[i], KindCount))
		f.Source[i] = reduce(doc.Source[i], RegisterCount)
		f.Control[i] = reduce(doc.Control[i], RegisterCount)
		f.Dest[i] = reduce(doc.Dest[i], RegisterCount)
	}
	return f, nil
}

// reduce maps v into [0, n), also for negative v.
func reduce(v, n int) int {
	v %= n
	if v < 0 {
		v += n
	}
	return v
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimRight(s, "=")
	if strings.ContainsAny(s, "+/") {
		return base64.RawStdEncoding.DecodeString(s)
	}
	return base64.RawURLEncoding.DecodeString(s)
}

// MarshalBinary implements encoding.BinaryMarshaler with the 288-byte format.
func (f Formula) MarshalBinary() ([]byte, error) {
	return MarshalGimp(f), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (f *Formula) UnmarshalBinary(b []byte) error {
	decoded, err := UnmarshalGimp(b)
	if err != nil {
		return err
	}
	*f = decoded
	return nil
}

// MarshalText implements encoding.TextMarshaler with the share code.
func (f Formula) MarshalText() ([]byte, error) {
	code, err := EncodeShareCode(f)
	if err != nil {
		return nil, err
	}
	return []byte(code), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Formula) UnmarshalText(text []byte) error {
	decoded, err := DecodeShareCode(string(text))
	if err != nil {
		return err
	}
	*f = decoded
	return nil
}
