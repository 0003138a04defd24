package schedule

import (
	"hash/fnv"
	"math/rand"
	"sync/atomic"
	"time"
)

// MaxStartupSpread caps the jitter Spread adds when no explicit bound is given.
const MaxStartupSpread = 30 * time.Second

var spreadSeq atomic.Uint64

// Spread pushes the first firing of f back by a random jitter in
// [0, min(period, max)), so jobs loaded together do not all fire on the same
// tick. The tag (usually the job name) feeds the seed.
func Spread(f Fixed, tag string, max time.Duration) (Fixed, time.Duration) {
	if max <= 0 {
		max = MaxStartupSpread
	}
	limit := f.Period
	if limit > max {
		limit = max
	}
	if limit <= 0 {
		return f, 0
	}
	seed := time.Now().UnixNano() ^ int64(spreadSeq.Add(1)) ^ int64(fnv64a(tag))
	rng := rand.New(rand.NewSource(seed))
	jitter := time.Duration(rng.Int63n(int64(limit)))
	f.Delay += jitter
	return f, jitter
}

func fnv64a(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
