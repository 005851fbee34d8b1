package pipeline

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"
)

// Job IDs are ULIDs: a 48-bit millisecond timestamp and 80 random bits,
// Crockford Base32 encoded to 26 characters. Sortable by creation time.

const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

var (
	idMu   sync.Mutex
	idLast uint64
	idSeq  uint16
)

// NewJobID returns a sortable unique job identifier.
func NewJobID() string {
	idMu.Lock()
	defer idMu.Unlock()

	ts := uint64(time.Now().UnixMilli())
	if ts == idLast {
		idSeq++
	} else {
		idLast = ts
		idSeq = 0
	}

	var b [16]byte
	binary.BigEndian.PutUint16(b[0:2], uint16(ts>>32))
	binary.BigEndian.PutUint32(b[2:6], uint32(ts))
	rand.Read(b[6:])
	// A counter in the leading random bytes keeps ids unique within one ms.
	binary.BigEndian.PutUint16(b[6:8], idSeq)

	return encodeBase32(b)
}

// encodeBase32 packs 128 bits into 26 Crockford characters. The output
// holds two bits more than the input, so the first character carries
// only the top three timestamp bits.
func encodeBase32(b [16]byte) string {
	var out [26]byte
	for i := range out {
		start := i*5 - 2
		var v byte
		for bit := range 5 {
			pos := start + bit
			v <<= 1
			if pos >= 0 && b[pos/8]&(1<<(7-pos%8)) != 0 {
				v |= 1
			}
		}
		out[i] = crockford[v]
	}
	return string(out[:])
}
