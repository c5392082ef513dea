// Package placement implements the weighted placement selector used to rank
// candidate cache servers for a given key (rendezvous / HRW hashing).
//
// The package focuses on:
//   - Deterministic, stateless ranking of targets per key
//   - Exact wire-compatibility with other clients of the same service
//   - Minimal redistribution when targets join or leave
//
// Key Components:
//
//   - Target: a candidate server identified by its address and a 32-bit
//     placement seed.
//
//   - RankTargets: ranks a target set for a key and placement-factor digest.
//     The first target in the returned slice is the primary placement, the
//     remainder are ordered fallbacks.
//
//   - SeedForAddress: derives a stable placement seed from a server address,
//     for callers that have no externally assigned seeds.
//
// The weight composition (xxHash3 reduced to 32 bits, XOR with the caller's
// placement-factor digest, two wrapping multiplications by 1103515245) is
// fixed. Every client of a given service must compute identical orderings,
// so no part of it may be substituted with a logically equivalent variant.
//
// Thread Safety:
//
//	All functions in this package are pure and safe for concurrent use.
package placement
