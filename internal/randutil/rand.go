// Package randutil centralises how deterministic rand/v2 sources are built.
// Pairing and identifier generation both take an injected *rand.Rand, so a
// single seed reproduces a whole run.
package randutil

import rand "math/rand/v2"

const goldenRatio64 = 0x9e3779b97f4a7c15

// New returns a *rand.Rand seeded deterministically from one int64. rand/v2's
// PCG wants two 64-bit seeds; both are derived here so call sites stay simple
// and reproducible.
func New(seed int64) *rand.Rand {
	u := uint64(seed)
	return rand.New(rand.NewPCG(mix(u), mix(u+goldenRatio64)))
}

// mix is a splitmix64-style finalizer, avoiding correlated streams when
// seeds are small or sequential.
func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}
