// Package nvm3errors defines the distinct error kinds the NVM3 codec can
// report, each carrying the byte offset of the offending range and, where
// applicable, the object key. Propagation follows the same
// github.com/pkg/errors wrapping style the reference qcow2 codec uses for
// every decode/write failure.
package nvm3errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind enumerates the distinct error variants from the codec's design.
type Kind int

const (
	// KindShortBuffer means the buffer ends inside a declared page or object.
	KindShortBuffer Kind = iota
	// KindBadMagic means a page's magic word did not match 0xB29A.
	KindBadMagic
	// KindUnsupportedVersion means a page declared a version other than 1.
	KindUnsupportedVersion
	// KindBergerMismatch means a page's erase-count Berger code did not validate.
	KindBergerMismatch
	// KindEraseCountComplementMismatch means eraseCount != ^eraseCountInv.
	KindEraseCountComplementMismatch
	// KindObjectCrcMismatch means an object's header CRC did not validate.
	KindObjectCrcMismatch
	// KindUnknownObjectType means an object declared a type the codec does not recognize.
	KindUnknownObjectType
	// KindTruncatedObject means a fragmented large object never saw a "last" fragment.
	KindTruncatedObject
	// KindOrphanedFragment means a "next"/"last" fragment arrived with no preceding "first".
	KindOrphanedFragment
	// KindInsufficientSpace means encode placement exhausted a region.
	KindInsufficientSpace
	// KindInvalidOption means an EncodeOptions value is not usable, e.g. a
	// page size that does not divide a region size, or that an object cannot
	// be encoded as given, e.g. a counter payload that is not 4 bytes.
	KindInvalidOption
)

func (k Kind) String() string {
	switch k {
	case KindShortBuffer:
		return "ShortBuffer"
	case KindBadMagic:
		return "BadMagic"
	case KindUnsupportedVersion:
		return "UnsupportedVersion"
	case KindBergerMismatch:
		return "BergerMismatch"
	case KindEraseCountComplementMismatch:
		return "EraseCountComplementMismatch"
	case KindObjectCrcMismatch:
		return "ObjectCrcMismatch"
	case KindUnknownObjectType:
		return "UnknownObjectType"
	case KindTruncatedObject:
		return "TruncatedObject"
	case KindOrphanedFragment:
		return "OrphanedFragment"
	case KindInsufficientSpace:
		return "InsufficientSpace"
	case KindInvalidOption:
		return "InvalidOption"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type every codec failure is reported as.
// Offset is the byte offset, relative to the full image buffer, at which the
// problem was detected. Key is set when the error pertains to a specific
// object key; HasKey reports whether it was set.
type Error struct {
	Kind    Kind
	Offset  int
	Key     uint32
	HasKey  bool
	Message string
}

func (e *Error) Error() string {
	if e.HasKey {
		return fmt.Sprintf("nvm3: %s at offset 0x%x (key 0x%x): %s", e.Kind, e.Offset, e.Key, e.Message)
	}
	return fmt.Sprintf("nvm3: %s at offset 0x%x: %s", e.Kind, e.Offset, e.Message)
}

// New builds an Error without an associated key.
func New(kind Kind, offset int, message string) *Error {
	return &Error{Kind: kind, Offset: offset, Message: message}
}

// NewWithKey builds an Error associated with a specific object key.
func NewWithKey(kind Kind, offset int, key uint32, message string) *Error {
	return &Error{Kind: kind, Offset: offset, Key: key, HasKey: true, Message: message}
}

// Wrap attaches additional context to err using github.com/pkg/errors,
// preserving the underlying *Error for errors.As.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, context)
}

// Wrapf is Wrap with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return errors.Wrapf(err, format, args...)
}

// As reports whether err, or any error it wraps, is a *Error of the given
// kind, returning the matched error.
func As(err error, kind Kind) (*Error, bool) {
	var target *Error
	if !errors.As(err, &target) {
		return nil, false
	}
	if target.Kind != kind {
		return nil, false
	}
	return target, true
}
