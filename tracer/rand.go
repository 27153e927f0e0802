// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.

package tracer

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"math"
	"math/big"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tracekit/tracescope/internal/log"
)

var (
	random   randT
	warnOnce sync.Once
	seedSeq  int64
	randPool = sync.Pool{
		New: func() interface{} {
			var seed int64
			n, err := cryptorand.Int(cryptorand.Reader, big.NewInt(math.MaxInt64))
			if err == nil {
				seed = n.Int64()
			} else {
				warnOnce.Do(func() {
					log.Warn("cannot generate random seed: %v; using current time", err)
				})
				seed = time.Now().UnixNano()
			}
			// seedSeq makes sure we don't create two generators with the same seed
			// by accident.
			return rand.New(rand.NewSource(seed + atomic.AddInt64(&seedSeq, 1)))
		},
	}
)

type randT struct{}

// Uint64 returns a random number. It's optimized for concurrent access.
func (randT) Uint64() uint64 {
	r := randPool.Get().(*rand.Rand)
	// Identifiers stay within 63 bits so that they survive transports which
	// decode them as signed integers.
	v := uint64(r.Int63())
	randPool.Put(r)
	return v
}

// randSpanID returns a non-zero random span identifier.
func randSpanID() uint64 {
	for {
		if id := random.Uint64(); id != 0 {
			return id
		}
	}
}

// randTraceID returns a non-zero random 128-bit trace identifier. The
// lower half is guaranteed non-zero so the identifier round-trips through
// 64-bit propagation formats.
func randTraceID() [16]byte {
	var id [16]byte
	binary.BigEndian.PutUint64(id[:8], random.Uint64())
	binary.BigEndian.PutUint64(id[8:], randSpanID())
	return id
}
