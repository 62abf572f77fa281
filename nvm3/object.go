package nvm3

import (
	"encoding/binary"

	"github.com/zollek/nvm3/internal/bergercrc"
	"github.com/zollek/nvm3/nvm3errors"
)

// ObjectType classifies a logical NVM3 record. It occupies the 3-bit type
// field of the packed header word, so only values 0-7 are representable;
// values 6 and 7 (above TypeLink) are reported as KindUnknownObjectType.
type ObjectType uint8

const (
	TypeDataSmall ObjectType = iota
	TypeDataLarge
	TypeCounterSmall
	TypeCounterLarge
	TypeDeleted
	// TypeLink marks an internal fragment continuation: the second and
	// later physical records of a fragmented DataLarge object.
	TypeLink
)

func (t ObjectType) String() string {
	switch t {
	case TypeDataSmall:
		return "DataSmall"
	case TypeDataLarge:
		return "DataLarge"
	case TypeCounterSmall:
		return "CounterSmall"
	case TypeCounterLarge:
		return "CounterLarge"
	case TypeDeleted:
		return "Deleted"
	case TypeLink:
		return "Link"
	default:
		return "Unknown"
	}
}

// isExtendedType reports whether t's header carries a 4-byte extended
// length word after the base header. Only DataLarge and its Link
// continuations need this: their payload can exceed the 7-bit small length
// field. CounterLarge is deliberately excluded — see DESIGN.md's resolution
// of the counter-fragmentation ambiguity in spec §4.5 vs §9.
func isExtendedType(t ObjectType) bool {
	return t == TypeDataLarge || t == TypeLink
}

func isCounterType(t ObjectType) bool {
	return t == TypeCounterSmall || t == TypeCounterLarge
}

// FragmentStatus marks a Large/Link object's position in its fragment chain.
// It occupies the 2-bit fragment field, which is otherwise zero (FragmentNone).
type FragmentStatus uint8

const (
	// FragmentNone means the object is not part of a fragment chain: either
	// it is a Small/Counter/Deleted record, or a Large object that fit
	// entirely in one page.
	FragmentNone FragmentStatus = iota
	FragmentFirst
	FragmentNext
	FragmentLast
)

func (f FragmentStatus) String() string {
	switch f {
	case FragmentNone:
		return "None"
	case FragmentFirst:
		return "First"
	case FragmentNext:
		return "Next"
	case FragmentLast:
		return "Last"
	default:
		return "Unknown"
	}
}

// RawObject is a single physical record as it appears in the object stream
// of one page: one write, or one fragment of a write, of a given key.
type RawObject struct {
	// Offset is the byte offset of this record within the full image
	// buffer, set by ReadObject/ReadObjects for error reporting.
	Offset int
	Key    uint32
	Type   ObjectType
	Fragment FragmentStatus
	// Payload is nil for TypeDeleted, exactly CounterPayloadSize bytes for
	// counter types, and arbitrary length otherwise.
	Payload []byte
}

func align4(n int) int {
	return (n + WordAlignment - 1) &^ (WordAlignment - 1)
}

// packedHeaderWord builds the 4-byte little-endian bit-packed word: type (3
// bits), fragment status (2 bits), key (20 bits), length (7 bits).
func packedHeaderWord(objType ObjectType, fragment FragmentStatus, key uint32, length int) uint32 {
	return uint32(objType&0x7) |
		uint32(fragment&0x3)<<3 |
		(key&0xFFFFF)<<5 |
		uint32(length&0x7F)<<25
}

func unpackHeaderWord(word uint32) (objType ObjectType, fragment FragmentStatus, key uint32, length int) {
	objType = ObjectType(word & 0x7)
	fragment = FragmentStatus((word >> 3) & 0x3)
	key = (word >> 5) & 0xFFFFF
	length = int((word >> 25) & 0x7F)
	return
}

// ReadObject decodes one object starting at offset within window, returning
// the decoded object and the number of (alignment-padded) bytes it occupies.
func ReadObject(window []byte, offset int) (RawObject, int, error) {
	if offset+objectBaseHeaderSize > len(window) {
		return RawObject{}, 0, nvm3errors.New(nvm3errors.KindShortBuffer, offset, "object header runs past end of window")
	}

	headerBytes := window[offset : offset+ObjectSmallHeaderSize]
	word := binary.LittleEndian.Uint32(headerBytes)
	storedCRC := binary.LittleEndian.Uint16(window[offset+ObjectSmallHeaderSize : offset+objectBaseHeaderSize])
	computedCRC := bergercrc.CRC16CCITT(headerBytes)
	if computedCRC != storedCRC {
		return RawObject{}, 0, nvm3errors.New(nvm3errors.KindObjectCrcMismatch, offset, "object header CRC mismatch")
	}

	objType, fragment, key, smallLength := unpackHeaderWord(word)
	if objType > TypeLink {
		return RawObject{}, 0, nvm3errors.New(nvm3errors.KindUnknownObjectType, offset, "object declares an unrecognized type")
	}

	cursor := offset + objectBaseHeaderSize

	switch {
	case objType == TypeDeleted:
		consumed := align4(cursor - offset)
		return RawObject{Offset: offset, Key: key, Type: objType, Fragment: fragment}, consumed, nil

	case isCounterType(objType):
		if cursor+CounterPayloadSize > len(window) {
			return RawObject{}, 0, nvm3errors.New(nvm3errors.KindShortBuffer, offset, "counter payload runs past end of window")
		}
		payload := append([]byte(nil), window[cursor:cursor+CounterPayloadSize]...)
		consumed := align4(cursor + CounterPayloadSize - offset)
		return RawObject{Offset: offset, Key: key, Type: objType, Fragment: fragment, Payload: payload}, consumed, nil

	case isExtendedType(objType):
		if cursor+objectExtendedLengthSize > len(window) {
			return RawObject{}, 0, nvm3errors.New(nvm3errors.KindShortBuffer, offset, "extended length word runs past end of window")
		}
		length := int(binary.LittleEndian.Uint32(window[cursor : cursor+objectExtendedLengthSize]))
		cursor += objectExtendedLengthSize
		if cursor+length > len(window) {
			return RawObject{}, 0, nvm3errors.New(nvm3errors.KindShortBuffer, offset, "object payload runs past end of window")
		}
		payload := append([]byte(nil), window[cursor:cursor+length]...)
		consumed := align4(cursor + length - offset)
		return RawObject{Offset: offset, Key: key, Type: objType, Fragment: fragment, Payload: payload}, consumed, nil

	default: // TypeDataSmall
		length := smallLength
		if cursor+length > len(window) {
			return RawObject{}, 0, nvm3errors.New(nvm3errors.KindShortBuffer, offset, "small object payload runs past end of window")
		}
		payload := append([]byte(nil), window[cursor:cursor+length]...)
		consumed := align4(cursor + length - offset)
		return RawObject{Offset: offset, Key: key, Type: objType, Fragment: fragment, Payload: payload}, consumed, nil
	}
}

// isErased reports whether the 4 bytes at offset are the erased pattern,
// marking the clean end of the live object stream within a page body.
func isErased(body []byte, offset int) bool {
	if offset+4 > len(body) {
		return false
	}
	for _, b := range body[offset : offset+4] {
		if b != ErasedBytePattern {
			return false
		}
	}
	return true
}

// ReadObjects decodes every object in a page body, in order, stopping
// cleanly once it reaches erased (all-0xFF) space or the end of the body.
func ReadObjects(body []byte, baseOffset int) ([]RawObject, error) {
	var objects []RawObject
	offset := 0
	for {
		if offset+4 > len(body) {
			break
		}
		if isErased(body, offset) {
			break
		}
		obj, consumed, err := ReadObject(body, offset)
		if err != nil {
			if codecErr, ok := err.(*nvm3errors.Error); ok {
				codecErr.Offset += baseOffset
			}
			return objects, nvm3errors.Wrapf(err, "decoding object in page body at offset %#x", baseOffset+offset)
		}
		obj.Offset = baseOffset + offset
		objects = append(objects, obj)
		offset += consumed
	}
	return objects, nil
}

// WriteObject serializes obj to its on-wire form: header (with freshly
// computed CRC), any extended length word, payload, and trailing 4-byte
// alignment padding filled with the erased byte pattern.
func WriteObject(obj RawObject) ([]byte, error) {
	var length int
	switch {
	case obj.Type == TypeDeleted:
		length = 0
	case isCounterType(obj.Type):
		if len(obj.Payload) != CounterPayloadSize {
			return nil, nvm3errors.NewWithKey(nvm3errors.KindInvalidOption, obj.Offset, obj.Key, "counter payload must be exactly 4 bytes")
		}
		length = 0 // counters never use the small length field
	case obj.Type == TypeDataSmall:
		if len(obj.Payload) > smallDataMaxLength {
			return nil, nvm3errors.NewWithKey(nvm3errors.KindInvalidOption, obj.Offset, obj.Key, "small object payload exceeds 7-bit length field")
		}
		length = len(obj.Payload)
	case isExtendedType(obj.Type):
		length = 0 // length lives in the extended word
	default:
		return nil, nvm3errors.NewWithKey(nvm3errors.KindUnknownObjectType, obj.Offset, obj.Key, "cannot encode object of unrecognized type")
	}

	word := packedHeaderWord(obj.Type, obj.Fragment, obj.Key, length)
	header := make([]byte, ObjectSmallHeaderSize)
	binary.LittleEndian.PutUint32(header, word)
	crc := bergercrc.CRC16CCITT(header)

	out := make([]byte, objectBaseHeaderSize, objectBaseHeaderSize+objectExtendedLengthSize+len(obj.Payload)+WordAlignment)
	copy(out, header)
	binary.LittleEndian.PutUint16(out[ObjectSmallHeaderSize:], crc)

	if isExtendedType(obj.Type) {
		extLen := make([]byte, objectExtendedLengthSize)
		binary.LittleEndian.PutUint32(extLen, uint32(len(obj.Payload)))
		out = append(out, extLen...)
	}
	out = append(out, obj.Payload...)

	padded := align4(len(out))
	for len(out) < padded {
		out = append(out, ErasedBytePattern)
	}
	return out, nil
}

func objectHeaderOverhead(t ObjectType) int {
	if isExtendedType(t) {
		return objectExtendedHeaderSize
	}
	return objectBaseHeaderSize
}

// FragmentLargeObject splits obj's payload across fragments so that the
// first fragment fits within firstFit bytes (header + partial payload) and
// every subsequent fragment fits within subsequentFit bytes (a full page
// body). If the object fits entirely within firstFit, it returns a single
// fragment carrying FragmentNone. Only TypeDataLarge objects are accepted;
// callers must not fragment counters (see DESIGN.md).
func FragmentLargeObject(obj RawObject, firstFit, subsequentFit int) ([]RawObject, error) {
	if obj.Type != TypeDataLarge {
		return nil, nvm3errors.NewWithKey(nvm3errors.KindInvalidOption, obj.Offset, obj.Key, "only DataLarge objects fragment")
	}

	overhead := objectExtendedHeaderSize
	if overhead+len(obj.Payload) <= firstFit {
		return []RawObject{{Key: obj.Key, Type: obj.Type, Fragment: FragmentNone, Payload: obj.Payload}}, nil
	}

	if firstFit < overhead+minFragmentPayload {
		return nil, nvm3errors.NewWithKey(nvm3errors.KindInsufficientSpace, obj.Offset, obj.Key, "not even one byte of payload fits in the first fragment; caller must advance to the next page")
	}

	var fragments []RawObject
	chunkSize := firstFit - overhead
	if chunkSize > len(obj.Payload) {
		chunkSize = len(obj.Payload)
	}
	fragments = append(fragments, RawObject{Key: obj.Key, Type: obj.Type, Fragment: FragmentFirst, Payload: obj.Payload[:chunkSize]})
	remaining := obj.Payload[chunkSize:]

	subChunkMax := subsequentFit - overhead
	if subChunkMax < minFragmentPayload {
		return nil, nvm3errors.NewWithKey(nvm3errors.KindInsufficientSpace, obj.Offset, obj.Key, "page body is too small to hold even one fragment")
	}

	for len(remaining) > 0 {
		n := subChunkMax
		if n > len(remaining) {
			n = len(remaining)
		}
		status := FragmentNext
		if n == len(remaining) {
			status = FragmentLast
		}
		fragments = append(fragments, RawObject{Key: obj.Key, Type: TypeLink, Fragment: status, Payload: remaining[:n]})
		remaining = remaining[n:]
	}

	return fragments, nil
}
