// Package bufpool provides a sync.Pool of reusable, fixed-size byte buffers
// for the NVM3 encode path, which otherwise allocates one pageSize buffer per
// page of the image it assembles.
package bufpool

import "sync"

// PagePool hands out byte slices of a fixed length, recycling them across
// calls instead of allocating a fresh slice per page.
type PagePool struct {
	pool   sync.Pool
	length int
}

// NewPagePool returns a PagePool whose Get always returns slices of length
// pageLength, filled with the erased byte pattern (0xFF) expected by a
// freshly allocated NVM3 page.
func NewPagePool(pageLength int) *PagePool {
	return &PagePool{
		length: pageLength,
		pool: sync.Pool{
			New: func() any {
				return make([]byte, pageLength)
			},
		},
	}
}

// Get returns a buffer of the pool's configured length, filled with 0xFF.
func (p *PagePool) Get() []byte {
	buf, _ := p.pool.Get().([]byte)
	if len(buf) != p.length {
		buf = make([]byte, p.length)
	}
	for i := range buf {
		buf[i] = 0xFF
	}
	return buf
}

// Put returns buf to the pool for reuse. Buffers of the wrong length are
// dropped rather than retained.
func (p *PagePool) Put(buf []byte) {
	if len(buf) != p.length {
		return
	}
	p.pool.Put(buf)
}
