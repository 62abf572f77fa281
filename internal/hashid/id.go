// Package hashid fingerprints decoded NVM3 images for the nvm3dump CLI's
// --fingerprint flag. It is not used by the core codec.
package hashid

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
)

// ObjectSet fingerprints a live key/payload set with xxHash64, hashing each
// key and its payload in the order keys lists them. The fingerprint is
// order-sensitive: the same pairs listed in a different order hash
// differently.
func ObjectSet(keys []uint32, payloadOf func(key uint32) []byte) uint64 {
	h := xxhash.New()
	var keyBuf [4]byte
	for _, key := range keys {
		binary.LittleEndian.PutUint32(keyBuf[:], key)
		_, _ = h.Write(keyBuf[:])
		_, _ = h.Write(payloadOf(key))
	}
	return h.Sum64()
}
