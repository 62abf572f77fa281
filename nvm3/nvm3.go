package nvm3

import (
	"math/bits"

	"github.com/zollek/nvm3/internal/bufpool"
	"github.com/zollek/nvm3/nvm3errors"
)

// EncodeOptions controls the page geometry and device metadata EncodeImage
// stamps into every page header. The zero value is not usable; callers
// should start from DefaultEncodeOptions.
type EncodeOptions struct {
	PageSize     int
	DeviceFamily uint16
	WriteSize    WriteSize
	MemoryMapped bool
}

// DefaultEncodeOptions returns the codec's default page geometry: the
// largest page size flash supports, an unrestricted device family, and
// dual-write granularity.
func DefaultEncodeOptions() EncodeOptions {
	return EncodeOptions{
		PageSize:     DefaultPageSize,
		DeviceFamily: 0x7FF,
		WriteSize:    WriteSize16,
		MemoryMapped: true,
	}
}

func (o EncodeOptions) validate() error {
	if o.PageSize < MinPageSize || o.PageSize > MaxPageSize {
		return nvm3errors.New(nvm3errors.KindInvalidOption, 0, "page size out of the supported range")
	}
	if o.PageSize%MinPageSize != 0 || bits.OnesCount(uint(o.PageSize/MinPageSize)) != 1 {
		return nvm3errors.New(nvm3errors.KindInvalidOption, 0, "page size must be a power-of-two multiple of the minimum page size")
	}
	if ApplicationRegionSize%o.PageSize != 0 || ProtocolRegionSize%o.PageSize != 0 {
		return nvm3errors.New(nvm3errors.KindInvalidOption, 0, "page size must evenly divide both regions")
	}
	if o.DeviceFamily > 0x7FF {
		return nvm3errors.New(nvm3errors.KindInvalidOption, 0, "device family exceeds its 11-bit field")
	}
	return nil
}

// EncodeImage serializes the live application and protocol object maps
// (typically produced by ParseImage or by application logic building a fresh
// image) back into a full NVM3 image buffer, running the placement algorithm
// described by the codec's design: whole-object placement where it fits,
// fragmentation of oversized DataLarge objects where it does not.
func EncodeImage(applicationObjects, protocolObjects *LiveObjects, options EncodeOptions) ([]byte, error) {
	if err := options.validate(); err != nil {
		return nil, err
	}

	appBuf, err := encodeRegion(applicationObjects, ApplicationRegionSize, options)
	if err != nil {
		return nil, nvm3errors.Wrap(err, "encoding application region")
	}
	protoBuf, err := encodeRegion(protocolObjects, ProtocolRegionSize, options)
	if err != nil {
		return nil, nvm3errors.Wrap(err, "encoding protocol region")
	}

	out := make([]byte, 0, len(appBuf)+len(protoBuf))
	out = append(out, appBuf...)
	out = append(out, protoBuf...)
	return out, nil
}

// regionEncoder accumulates pages for one region, allocating fresh pages
// from a bufpool.PagePool as the current one fills.
type regionEncoder struct {
	options      EncodeOptions
	pool         *bufpool.PagePool
	bodyCapacity int
	capacity     int
	pages        [][]byte
	current      []byte
	cursor       int
}

func newRegionEncoder(capacity int, options EncodeOptions) *regionEncoder {
	return &regionEncoder{
		options:      options,
		pool:         bufpool.NewPagePool(options.PageSize),
		bodyCapacity: options.PageSize - PageHeaderSize,
		capacity:     capacity,
	}
}

func (e *regionEncoder) remaining() int {
	if e.current == nil {
		return 0
	}
	return e.options.PageSize - e.cursor
}

func (e *regionEncoder) newPage() error {
	if e.current != nil {
		e.pages = append(e.pages, e.current)
		e.current = nil
	}
	if (len(e.pages)+1)*e.options.PageSize > e.capacity {
		return nvm3errors.New(nvm3errors.KindInsufficientSpace, 0, "region has no room for another page")
	}
	buf := e.pool.Get()
	header := WritePageHeader(PageHeader{
		Version: PageVersion,
		// A freshly encoded page always starts at erase count 0 — see
		// spec §4.5/§9; only an update-in-place re-erase would bump it,
		// which this codec's one-shot EncodeImage never does.
		EraseCount:   0,
		Status:       PageStatusOK,
		DeviceFamily: e.options.DeviceFamily,
		WriteSize:    e.options.WriteSize,
		MemoryMapped: e.options.MemoryMapped,
		PageSize:     e.options.PageSize,
	})
	copy(buf, header)
	e.current = buf
	e.cursor = PageHeaderSize
	return nil
}

func (e *regionEncoder) write(b []byte) {
	copy(e.current[e.cursor:], b)
	e.cursor += len(b)
}

// place writes obj to the region, advancing to a fresh page and, for
// DataLarge objects, fragmenting across pages as needed.
func (e *regionEncoder) place(obj Object) error {
	raw := RawObject{Key: obj.Key, Type: obj.Type, Fragment: FragmentNone, Payload: obj.Payload}

	if e.current == nil {
		if err := e.newPage(); err != nil {
			return err
		}
	}

	encoded, err := WriteObject(raw)
	if err != nil {
		return err
	}
	if len(encoded) <= e.remaining() {
		e.write(encoded)
		return nil
	}

	if obj.Type != TypeDataLarge {
		if err := e.newPage(); err != nil {
			return err
		}
		if len(encoded) > e.remaining() {
			return nvm3errors.NewWithKey(nvm3errors.KindInsufficientSpace, 0, obj.Key, "object does not fit within a single fresh page")
		}
		e.write(encoded)
		return nil
	}

	firstFit := e.remaining()
	if firstFit < objectExtendedHeaderSize+minFragmentPayload {
		if err := e.newPage(); err != nil {
			return err
		}
		firstFit = e.remaining()
	}

	fragments, err := FragmentLargeObject(raw, firstFit, e.bodyCapacity)
	if err != nil {
		return err
	}
	for _, frag := range fragments {
		fb, err := WriteObject(frag)
		if err != nil {
			return err
		}
		if len(fb) > e.remaining() {
			if err := e.newPage(); err != nil {
				return err
			}
		}
		if len(fb) > e.remaining() {
			return nvm3errors.NewWithKey(nvm3errors.KindInsufficientSpace, 0, obj.Key, "fragment does not fit within a fresh page")
		}
		e.write(fb)
	}
	return nil
}

// finish pads the region out to its full fixed capacity with empty pages and
// concatenates every page buffer in write order.
func (e *regionEncoder) finish() ([]byte, error) {
	if e.current != nil {
		e.pages = append(e.pages, e.current)
		e.current = nil
	}

	for len(e.pages)*e.options.PageSize < e.capacity {
		if err := e.newPage(); err != nil {
			return nil, err
		}
		e.pages = append(e.pages, e.current)
		e.current = nil
	}

	out := make([]byte, 0, e.capacity)
	for _, p := range e.pages {
		out = append(out, p...)
	}
	return out, nil
}

func encodeRegion(objects *LiveObjects, capacity int, options EncodeOptions) ([]byte, error) {
	enc := newRegionEncoder(capacity, options)

	if objects != nil {
		var placeErr error
		objects.Range(func(_ uint32, obj Object) bool {
			if err := enc.place(obj); err != nil {
				placeErr = err
				return false
			}
			return true
		})
		if placeErr != nil {
			return nil, placeErr
		}
	}

	return enc.finish()
}
