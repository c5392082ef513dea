package placement

import (
	"sort"

	"github.com/zeebo/xxh3"
)

// mixFactor is the multiplier of the weight composition. It is shared with
// every other client implementation of the service and must never change.
const mixFactor uint32 = 1103515245

// ----------------------------------------------------------------------------
// Types
// ----------------------------------------------------------------------------

// Target is a candidate server for key placement. Seed is the per-server
// placement seed; servers discovered via the address directory can derive
// one with SeedForAddress.
type Target struct {
	Address string
	Seed    uint32
}

// ----------------------------------------------------------------------------
// Hashing
// ----------------------------------------------------------------------------

// hrwHash reduces the 64-bit xxHash3 digest of key to its low 32 bits.
func hrwHash(key []byte) uint32 {
	return uint32(xxh3.Hash(key))
}

// SeedForAddress derives a stable placement seed from a server address.
// The same address always yields the same seed.
func SeedForAddress(addr string) uint32 {
	return uint32(xxh3.HashString(addr))
}

// keyFactor combines the caller-chosen placement-factor digest with the
// hash of the key. The digest lets callers partition placement domains
// (e.g. per cache) without changing the key bytes.
func keyFactor(key []byte, placementFactorDigest uint32) uint32 {
	return placementFactorDigest ^ hrwHash(key)
}

// weightFor computes the placement weight of a single target. All arithmetic
// is 32-bit wrapping.
func weightFor(seed, factor uint32) uint32 {
	return mixFactor * (mixFactor*seed ^ factor)
}

// ----------------------------------------------------------------------------
// Ranking
// ----------------------------------------------------------------------------

// RankTargets ranks the given targets for a key and placement-factor digest.
// It returns a new slice sorted ascending by placement weight: the first
// entry is the primary placement, the rest are ordered fallbacks. The input
// slice is not modified.
//
// The ranking is deterministic: the same key, digest and target set always
// produce the same order, and removing a target never reorders the targets
// that remain relative to each other.
func RankTargets(targets []Target, key []byte, placementFactorDigest uint32) []Target {
	if len(targets) == 0 {
		return nil
	}

	factor := keyFactor(key, placementFactorDigest)

	ranked := make([]Target, len(targets))
	copy(ranked, targets)

	// Stable sort so that equal weights keep their input order
	sort.SliceStable(ranked, func(i, j int) bool {
		return weightFor(ranked[i].Seed, factor) < weightFor(ranked[j].Seed, factor)
	})

	return ranked
}

// RankAddresses is a convenience wrapper around RankTargets for callers that
// only have addresses. Seeds are derived with SeedForAddress.
func RankAddresses(addrs []string, key []byte, placementFactorDigest uint32) []string {
	if len(addrs) == 0 {
		return nil
	}

	targets := make([]Target, len(addrs))
	for i, addr := range addrs {
		targets[i] = Target{Address: addr, Seed: SeedForAddress(addr)}
	}

	ranked := RankTargets(targets, key, placementFactorDigest)

	result := make([]string, len(ranked))
	for i, t := range ranked {
		result[i] = t.Address
	}
	return result
}
