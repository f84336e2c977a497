// Package field provides canonical transport and validation for BN254
// scalar-field elements (Fp), generalized from the teacher's
// Bytes2Field helper to also cover decimal/0x-hex parsing of single field
// elements, as required by the proof envelope (spec.md §3).
package field

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Modulus is the BN254 scalar field order p.
var Modulus = fr.Modulus()

// Parse validates and decodes a field element from its canonical transport
// form: decimal digits, or 0x-prefixed hex with up to 64 nibbles. It rejects
// the empty value, non-digit/non-hex content, and any value >= Modulus.
func Parse(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("field element is empty")
	}

	v := new(big.Int)
	var ok bool
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		hexPart := s[2:]
		if len(hexPart) == 0 || len(hexPart) > 64 {
			return nil, fmt.Errorf("field element hex length invalid: %d nibbles", len(hexPart))
		}
		v, ok = v.SetString(hexPart, 16)
	} else {
		v, ok = v.SetString(s, 10)
	}
	if !ok {
		return nil, fmt.Errorf("field element %q is not valid decimal or 0x-hex", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("field element %q is negative", s)
	}
	if v.Cmp(Modulus) >= 0 {
		return nil, fmt.Errorf("field element %q is >= field modulus", s)
	}
	return v, nil
}

// Hex renders v as a 0x-prefixed, 64-nibble hex string.
func Hex(v *big.Int) string {
	return fmt.Sprintf("0x%064x", v)
}

// ParsedElement pairs a validated field value with the wire string it was
// parsed from, so callers that need to report or re-emit the original
// representation don't have to re-derive it.
type ParsedElement struct {
	Value *big.Int
	Raw   string
}

// ParseElement validates s as an envelope-transport field element: either
// 0x-prefixed hex of exactly 64 nibbles (66 characters including the
// prefix, per spec.md §4.D) or plain decimal digits, strictly less than
// the field modulus.
func ParseElement(s string) (*ParsedElement, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		if len(s) != 66 {
			return nil, fmt.Errorf("hex field element must be 66 characters (0x + 64 nibbles), got %d", len(s))
		}
	}
	v, err := Parse(s)
	if err != nil {
		return nil, err
	}
	return &ParsedElement{Value: v, Raw: s}, nil
}

// IsValid reports whether v is a well-formed Fp value (non-negative and
// strictly less than the field modulus). It does not check nonzero-ness;
// callers that require nonzero values check separately.
func IsValid(v *big.Int) bool {
	return v != nil && v.Sign() >= 0 && v.Cmp(Modulus) < 0
}

// Bytes2Field converts bytes to field elements with fixed size, matching
// the teacher's chunking convention. numChunks is the total number of
// field elements to produce; elementSize is the byte width per element.
func Bytes2Field(data []byte, numChunks, elementSize int) []*big.Int {
	elements := make([]*big.Int, numChunks)
	buf := make([]byte, elementSize)

	for i := 0; i < numChunks; i++ {
		for j := range buf {
			buf[j] = 0
		}

		start := i * elementSize
		if start >= len(data) {
			elements[i] = big.NewInt(0)
			continue
		}

		end := start + elementSize
		if end > len(data) {
			end = len(data)
		}
		copy(buf, data[start:end])
		elements[i] = new(big.Int).SetBytes(buf)
	}
	return elements
}

// PadLeft returns data left-padded with zeros to width bytes, or truncated
// to its low-order width bytes if already longer (matching big-endian
// canonical field-element encoding).
func PadLeft(data []byte, width int) []byte {
	out := make([]byte, width)
	if len(data) >= width {
		copy(out, data[len(data)-width:])
		return out
	}
	copy(out[width-len(data):], data)
	return out
}
