package evo

import (
	"math/rand"
	"time"
)

// Rand is the random source used for every Bernoulli trial and perturbation.
// *rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

// NewRand returns a seeded source. A zero seed derives one from the clock.
func NewRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

func chance(r Rand, p float64) bool {
	return r.Float64() < p
}

// perturb applies a relative delta of (u-0.5)*scale*value.
func perturb(r Rand, value, scale float64) float64 {
	return value + (r.Float64()-0.5)*scale*value
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
