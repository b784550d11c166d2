package scoring

import (
	"crypto/md5"
	"encoding/binary"
	"math"
	"math/rand"
)

// contentSeed hashes the concatenated parts and returns the first 32 bits of the digest.
func contentSeed(parts ...string) uint32 {
	h := md5.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	sum := h.Sum(nil)
	return binary.BigEndian.Uint32(sum[:4])
}

// newRand returns a generator owned by a single call.
func newRand(seed uint32) *rand.Rand {
	return rand.New(rand.NewSource(int64(seed)))
}

// randInt draws uniformly from the inclusive range [lo, hi].
func randInt(r *rand.Rand, lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + r.Intn(hi-lo+1)
}

// uniform draws uniformly from [lo, hi).
func uniform(r *rand.Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*r.Float64()
}

func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

func validAmount(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
