// Package bergercrc implements the two integrity primitives the NVM3 codec
// relies on: Berger codes over the page erase counter and the CRC-16/CCITT
// used on object headers and payloads. Neither primitive is generalized
// beyond the bit widths NVM3 actually uses.
package bergercrc

import "math/bits"

// BergerWidth is the number of data bits the page erase counter carries.
const BergerWidth = 27

// BergerCodeWidth is the number of bits needed to hold a Berger code over a
// BergerWidth-bit value: ceil(log2(BergerWidth+1)).
const BergerCodeWidth = 5

// Berger returns the Berger code of value over the low widthBits bits of
// value: the count of zero bits among those widthBits bits.
func Berger(value uint32, widthBits uint) uint32 {
	mask := uint32(1)<<widthBits - 1
	masked := value & mask
	return uint32(widthBits) - uint32(bits.OnesCount32(masked))
}

// ValidateBerger recomputes the Berger code of value over widthBits bits and
// reports whether it matches code.
func ValidateBerger(value uint32, code uint32, widthBits uint) bool {
	return Berger(value, widthBits) == code
}
