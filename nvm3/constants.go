// Package nvm3 implements a codec for the NVM3 flash key-value store image
// format used by Silicon Labs Z-Wave controllers: page discovery and
// ordering, object-stream parsing, the compaction pass that resolves live
// key values from a raw write log, fragmentation of oversized payloads, and
// the Berger-code/CRC-16 integrity checks layered over all of it.
//
// The codec is synchronous and single-threaded: ParseImage and EncodeImage
// both run to completion or return an error describing the first offending
// byte range. Buffers passed to ParseImage are treated as immutable; buffers
// produced by EncodeImage are exclusively owned by the caller.
package nvm3

import "github.com/zollek/nvm3/internal/bergercrc"

// Region sizes, fixed by construction and not stored anywhere in the image.
const (
	ApplicationRegionSize = 0x3000
	ProtocolRegionSize    = 0xC000
	DefaultImageSize      = ApplicationRegionSize + ProtocolRegionSize
)

// Page geometry.
const (
	MinPageSize     = 512
	MaxPageSize     = 2048 // flash maximum; larger declared sizes clamp to this for layout
	DefaultPageSize = 2048
	PageHeaderSize  = 20
	PageMagic       = 0xB29A
	PageVersion     = 1
)

// Object wire format.
const (
	// ObjectSmallHeaderSize is the size, in bytes, of the bit-packed
	// type/fragment/key/length word common to every object.
	ObjectSmallHeaderSize = 4
	// objectHeaderCRCSize is the size of the header CRC-16 field that
	// follows the packed word. Not separately wire-visible in the spec's
	// constant table, but required by the "header CRC" the spec describes;
	// see DESIGN.md for the resolution of this ambiguity.
	objectHeaderCRCSize = 2
	// objectBaseHeaderSize is the total header size for objects that do not
	// need an extended length word: the packed word plus its CRC.
	objectBaseHeaderSize = ObjectSmallHeaderSize + objectHeaderCRCSize
	// objectExtendedLengthSize is the size of the length word Large/Link
	// objects prepend after the base header.
	objectExtendedLengthSize = 4
	// objectExtendedHeaderSize is the total header size for Large/Link
	// objects.
	objectExtendedHeaderSize = objectBaseHeaderSize + objectExtendedLengthSize

	// WordAlignment is the byte boundary every object's total on-page
	// length (header + payload) is rounded up to.
	WordAlignment = 4
	// CounterPayloadSize is the fixed payload length of every counter
	// object, regardless of CounterSmall/CounterLarge classification.
	CounterPayloadSize = 4
	// ErasedBytePattern is the value of unwritten flash.
	ErasedBytePattern = 0xFF

	// smallDataMaxLength is the largest payload the 7-bit length field of
	// the packed word can express.
	smallDataMaxLength = (1 << 7) - 1
	// minFragmentPayload is the smallest payload slice fragment_large_object
	// will place in a single fragment; below this, the caller must advance
	// to a fresh page before fragmenting.
	minFragmentPayload = 1
)

// EraseCountWidth is the number of bits the page erase counter carries, and
// the width the Berger code protects.
const EraseCountWidth = bergercrc.BergerWidth

// PageStatus values, stored verbatim in the page header's status word.
type PageStatus uint32

const (
	PageStatusOK              PageStatus = 0xFFFFFFFF
	PageStatusOKErasePending  PageStatus = 0xFFFFA5A5
	PageStatusBad             PageStatus = 0x0000FFFF
	PageStatusBadErasePending PageStatus = 0x0000A5A5
)

func (s PageStatus) String() string {
	switch s {
	case PageStatusOK:
		return "OK"
	case PageStatusOKErasePending:
		return "OK-ErasePending"
	case PageStatusBad:
		return "Bad"
	case PageStatusBadErasePending:
		return "Bad-ErasePending"
	default:
		return "Unknown"
	}
}

// WriteSize classifies a page's write granularity: one of two classes, never
// more, matching the single device-info bit the format reserves for it.
type WriteSize uint8

const (
	// WriteSize8 is the single-write class.
	WriteSize8 WriteSize = 0
	// WriteSize16 is the dual-write class, and the codec's default.
	WriteSize16 WriteSize = 1
)
