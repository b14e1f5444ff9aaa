package workload

import "math/rand/v2"

// Sequence returns the key indices a key-driven workload visits, in issue
// order. It returns nil for workloads that do not sweep a key space.
// Every returned sequence has exactly N entries.
func (s Spec) Sequence() []int {
	switch s.Name {
	case Set, GetHit, Increment:
		return Range(0, s.N)
	case GetMiss:
		// n+1..2n is disjoint from the preloaded [0, n).
		return Range(s.N+1, s.N)
	case HalfMiss:
		// n/2..3n/2 straddles the preloaded range.
		return Range(s.N/2, s.N)
	case RatioMiss:
		return RatioKeys(s.N, s.Ratio, s.Seed)
	case Zipf:
		return GenerateZipfInt(s.N, s.N, s.Skew(), s.Seed)
	}
	return nil
}

// Range returns n consecutive indices starting at lo.
func Range(lo, n int) []int {
	keys := make([]int, n)
	for i := range keys {
		keys[i] = lo + i
	}
	return keys
}

// RatioSpace is the size of the key space ratio-miss draws from.
// Only [0, n) is preloaded, so a uniform draw hits with probability
// n/floor(n/ratio), which approaches ratio but is not exact for every n.
func RatioSpace(n int, ratio float64) int {
	space := int(float64(n) / ratio)
	if space < 1 {
		space = 1
	}
	return space
}

// RatioKeys draws n keys uniformly from [0, RatioSpace(n, ratio)).
func RatioKeys(n int, ratio float64, seed uint64) []int {
	rng := rand.New(rand.NewPCG(seed, seed+1))
	space := RatioSpace(n, ratio)
	keys := make([]int, n)
	for i := range keys {
		keys[i] = rng.IntN(space)
	}
	return keys
}
