package nvm3

import (
	"encoding/binary"
	"math/bits"

	"github.com/zollek/nvm3/internal/bergercrc"
	"github.com/zollek/nvm3/nvm3errors"
)

// PageHeader is the decoded 20-byte header every page begins with.
type PageHeader struct {
	Version      uint16
	EraseCount   uint32 // low EraseCountWidth bits of the value
	Status       PageStatus
	DeviceFamily uint16 // 11 bits
	WriteSize    WriteSize
	MemoryMapped bool
	PageSize     int // declared size, decoded from the 3-bit size class
	Encrypted    bool
}

// Page is a single decoded NVM3 page: its header, the byte offset it was
// found at within the image buffer (parse-time only, zero on freshly
// constructed pages), and its ordered object stream.
type Page struct {
	Offset  int
	Header  PageHeader
	Objects []RawObject
}

const eraseCountMask = (uint32(1) << EraseCountWidth) - 1

func encodePageSizeClass(pageSize int) uint16 {
	// bits = ceil(log2(pageSize) - log2(512)) = log2(pageSize/512) for
	// pageSize a power of two multiple of 512.
	return uint16(bits.Len(uint(pageSize/MinPageSize)) - 1)
}

func decodePageSizeClass(class uint16) int {
	return MinPageSize << class
}

// clampedPageSize returns size if it does not exceed the flash maximum,
// otherwise MaxPageSize. All layout math uses the clamped value.
func clampedPageSize(size int) int {
	if size > MaxPageSize {
		return MaxPageSize
	}
	return size
}

// ActualPageSize returns the clamped size used for layout purposes.
func (h PageHeader) ActualPageSize() int {
	return clampedPageSize(h.PageSize)
}

func eraseCountWord(value uint32) uint32 {
	masked := value & eraseCountMask
	code := bergercrc.Berger(masked, EraseCountWidth)
	return masked | code<<EraseCountWidth
}

func decodeEraseCountWord(word uint32) (value, code uint32) {
	value = word & eraseCountMask
	code = word >> EraseCountWidth
	return
}

// WritePageHeader serializes header to its 20-byte on-wire form with
// freshly computed Berger codes for the erase count and its complement.
func WritePageHeader(header PageHeader) []byte {
	buf := make([]byte, PageHeaderSize)
	binary.LittleEndian.PutUint16(buf[0:2], header.Version)
	binary.LittleEndian.PutUint16(buf[2:4], PageMagic)
	binary.LittleEndian.PutUint32(buf[4:8], eraseCountWord(header.EraseCount))
	inv := ^header.EraseCount & eraseCountMask
	binary.LittleEndian.PutUint32(buf[8:12], eraseCountWord(inv))
	binary.LittleEndian.PutUint32(buf[12:16], uint32(header.Status))

	deviceInfo := header.DeviceFamily & 0x7FF
	if header.WriteSize == WriteSize16 {
		deviceInfo |= 1 << 11
	}
	if header.MemoryMapped {
		deviceInfo |= 1 << 12
	}
	deviceInfo |= encodePageSizeClass(clampedPageSize(header.PageSize)) << 13
	binary.LittleEndian.PutUint16(buf[16:18], deviceInfo)

	var formatInfo uint16
	if !header.Encrypted {
		formatInfo |= 1
	}
	binary.LittleEndian.PutUint16(buf[18:20], formatInfo)

	return buf
}

// ReadPage validates and decodes one page starting at offset, including its
// object stream, returning the page and the number of bytes consumed
// (always the page's actual/clamped size).
func ReadPage(buffer []byte, offset int) (Page, int, error) {
	if offset+PageHeaderSize > len(buffer) {
		return Page{}, 0, nvm3errors.New(nvm3errors.KindShortBuffer, offset, "page header runs past end of buffer")
	}

	raw := buffer[offset : offset+PageHeaderSize]
	version := binary.LittleEndian.Uint16(raw[0:2])
	magic := binary.LittleEndian.Uint16(raw[2:4])
	if magic != PageMagic {
		return Page{}, 0, nvm3errors.New(nvm3errors.KindBadMagic, offset, "page magic word mismatch")
	}
	if version != PageVersion {
		return Page{}, 0, nvm3errors.New(nvm3errors.KindUnsupportedVersion, offset, "unsupported page format version")
	}

	eraseWord := binary.LittleEndian.Uint32(raw[4:8])
	eraseValue, eraseCode := decodeEraseCountWord(eraseWord)
	if !bergercrc.ValidateBerger(eraseValue, eraseCode, EraseCountWidth) {
		return Page{}, 0, nvm3errors.New(nvm3errors.KindBergerMismatch, offset, "erase count Berger code mismatch")
	}

	invWord := binary.LittleEndian.Uint32(raw[8:12])
	invValue, invCode := decodeEraseCountWord(invWord)
	if !bergercrc.ValidateBerger(invValue, invCode, EraseCountWidth) {
		return Page{}, 0, nvm3errors.New(nvm3errors.KindBergerMismatch, offset, "erase count complement Berger code mismatch")
	}

	if eraseValue != (^invValue)&eraseCountMask {
		return Page{}, 0, nvm3errors.New(nvm3errors.KindEraseCountComplementMismatch, offset, "erase count and its complement disagree")
	}

	status := PageStatus(binary.LittleEndian.Uint32(raw[12:16]))

	deviceInfo := binary.LittleEndian.Uint16(raw[16:18])
	deviceFamily := deviceInfo & 0x7FF
	writeSize := WriteSize8
	if deviceInfo&(1<<11) != 0 {
		writeSize = WriteSize16
	}
	memoryMapped := deviceInfo&(1<<12) != 0
	pageSize := decodePageSizeClass((deviceInfo >> 13) & 0x7)

	formatInfo := binary.LittleEndian.Uint16(raw[18:20])
	encrypted := formatInfo&1 == 0

	header := PageHeader{
		Version:      version,
		EraseCount:   eraseValue,
		Status:       status,
		DeviceFamily: deviceFamily,
		WriteSize:    writeSize,
		MemoryMapped: memoryMapped,
		PageSize:     pageSize,
		Encrypted:    encrypted,
	}

	actualSize := header.ActualPageSize()
	if offset+actualSize > len(buffer) {
		return Page{}, 0, nvm3errors.New(nvm3errors.KindShortBuffer, offset, "page body runs past end of buffer")
	}

	body := buffer[offset+PageHeaderSize : offset+actualSize]
	objects, err := ReadObjects(body, offset+PageHeaderSize)
	if err != nil {
		return Page{}, 0, nvm3errors.Wrapf(err, "reading object stream of page at offset %#x", offset)
	}

	return Page{Offset: offset, Header: header, Objects: objects}, actualSize, nil
}
