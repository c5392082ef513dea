package placement

import (
	"fmt"
	"math"
	"reflect"
	"testing"
)

// testTargets returns a fixed target set for ranking tests
func testTargets() []Target {
	return []Target{
		{Address: "10.0.0.1:4000", Seed: 17},
		{Address: "10.0.0.2:4000", Seed: 4242},
		{Address: "10.0.0.3:4000", Seed: 99991},
		{Address: "10.0.0.4:4000", Seed: 7},
		{Address: "10.0.0.5:4000", Seed: 3000000001},
	}
}

// TestReferenceVectors pins the hash reduction against known digests.
// These values are shared with other client implementations of the service,
// so a failure here means the ranking is no longer wire-compatible.
func TestReferenceVectors(t *testing.T) {
	testCases := []struct {
		key      string
		expected int32
	}{
		{key: "yaxjtq74i", expected: 1499626933},
		{key: "jewmilumw", expected: 567767100},
	}

	for _, tc := range testCases {
		t.Run(tc.key, func(t *testing.T) {
			got := int32(hrwHash([]byte(tc.key)))
			if got != tc.expected {
				t.Errorf("hrwHash(%q) = %d, want %d", tc.key, got, tc.expected)
			}
		})
	}
}

// TestRankDeterminism verifies that repeated calls with identical inputs
// produce identical orderings
func TestRankDeterminism(t *testing.T) {
	targets := testTargets()

	for i := 0; i < 100; i++ {
		key := []byte(fmt.Sprintf("determinism-key-%d", i))
		digest := uint32(i * 31)

		first := RankTargets(targets, key, digest)
		second := RankTargets(targets, key, digest)

		if !reflect.DeepEqual(first, second) {
			t.Fatalf("Ranking not deterministic for key %q: %v vs %v", key, first, second)
		}
	}
}

// TestRankDoesNotMutateInput verifies the input slice keeps its order
func TestRankDoesNotMutateInput(t *testing.T) {
	targets := testTargets()
	original := make([]Target, len(targets))
	copy(original, targets)

	_ = RankTargets(targets, []byte("some-key"), 12345)

	if !reflect.DeepEqual(targets, original) {
		t.Errorf("Input slice was modified: %v, want %v", targets, original)
	}
}

// TestRankStability verifies that removing a target never reorders the
// targets that remain relative to each other
func TestRankStability(t *testing.T) {
	targets := testTargets()

	for i := 0; i < 200; i++ {
		key := []byte(fmt.Sprintf("stability-key-%d", i))
		digest := uint32(i)

		full := RankTargets(targets, key, digest)

		// Remove each target in turn and compare relative orders
		for remove := 0; remove < len(targets); remove++ {
			reduced := make([]Target, 0, len(targets)-1)
			for j, tgt := range targets {
				if j != remove {
					reduced = append(reduced, tgt)
				}
			}

			reducedRanked := RankTargets(reduced, key, digest)

			// The reduced ranking must equal the full ranking with the
			// removed target filtered out
			expected := make([]Target, 0, len(reduced))
			for _, tgt := range full {
				if tgt.Address != targets[remove].Address {
					expected = append(expected, tgt)
				}
			}

			if !reflect.DeepEqual(reducedRanked, expected) {
				t.Fatalf("Removing %s reordered remaining targets for key %q:\ngot  %v\nwant %v",
					targets[remove].Address, key, reducedRanked, expected)
			}
		}
	}
}

// TestRankDigestChangesOrder verifies that the placement-factor digest
// actually participates in the ranking
func TestRankDigestChangesOrder(t *testing.T) {
	targets := testTargets()
	key := []byte("digest-sensitivity-key")

	changed := false
	for digest := uint32(0); digest < 64; digest++ {
		a := RankTargets(targets, key, digest)
		b := RankTargets(targets, key, digest+1)
		if !reflect.DeepEqual(a, b) {
			changed = true
			break
		}
	}

	if !changed {
		t.Error("Ranking ignored the placement-factor digest across 64 values")
	}
}

// TestRankEqualSeedsKeepInputOrder verifies the tie rule: targets with
// identical seeds have identical weights and must keep their input order
func TestRankEqualSeedsKeepInputOrder(t *testing.T) {
	targets := []Target{
		{Address: "first:4000", Seed: 1234},
		{Address: "second:4000", Seed: 1234},
		{Address: "third:4000", Seed: 1234},
	}

	for i := 0; i < 50; i++ {
		key := []byte(fmt.Sprintf("tie-key-%d", i))
		ranked := RankTargets(targets, key, uint32(i))

		if !reflect.DeepEqual(ranked, targets) {
			t.Fatalf("Equal-weight targets reordered for key %q: %v", key, ranked)
		}
	}
}

// TestRankEdgeCases covers empty and single-target inputs
func TestRankEdgeCases(t *testing.T) {
	t.Run("Empty", func(t *testing.T) {
		if got := RankTargets(nil, []byte("key"), 0); got != nil {
			t.Errorf("Expected nil for empty target set, got %v", got)
		}
	})

	t.Run("Single", func(t *testing.T) {
		targets := []Target{{Address: "only:4000", Seed: 1}}
		got := RankTargets(targets, []byte("key"), 0)
		if !reflect.DeepEqual(got, targets) {
			t.Errorf("Expected single target unchanged, got %v", got)
		}
	})

	t.Run("EmptyKey", func(t *testing.T) {
		targets := testTargets()
		first := RankTargets(targets, nil, 42)
		second := RankTargets(targets, []byte{}, 42)
		if !reflect.DeepEqual(first, second) {
			t.Errorf("nil key and empty key ranked differently: %v vs %v", first, second)
		}
	})
}

// TestSeedForAddress verifies seed derivation is stable and distinguishes
// addresses
func TestSeedForAddress(t *testing.T) {
	addr := "cache-1.example.com:4000"

	if SeedForAddress(addr) != SeedForAddress(addr) {
		t.Error("SeedForAddress not stable for identical input")
	}

	if SeedForAddress("cache-1.example.com:4000") == SeedForAddress("cache-2.example.com:4000") {
		t.Error("SeedForAddress collided for distinct addresses")
	}
}

// TestRankAddresses verifies the address convenience wrapper agrees with
// RankTargets over derived seeds
func TestRankAddresses(t *testing.T) {
	addrs := []string{
		"10.1.0.1:4000",
		"10.1.0.2:4000",
		"10.1.0.3:4000",
		"10.1.0.4:4000",
	}
	key := []byte("wrapper-key")
	digest := uint32(777)

	targets := make([]Target, len(addrs))
	for i, addr := range addrs {
		targets[i] = Target{Address: addr, Seed: SeedForAddress(addr)}
	}
	expected := RankTargets(targets, key, digest)

	got := RankAddresses(addrs, key, digest)

	if len(got) != len(expected) {
		t.Fatalf("Expected %d addresses, got %d", len(expected), len(got))
	}
	for i := range got {
		if got[i] != expected[i].Address {
			t.Errorf("Position %d: expected %s, got %s", i, expected[i].Address, got[i])
		}
	}
}

// ----------------------------------------------------------------------------
// Distribution quality
// ----------------------------------------------------------------------------

// primaryWinStats computes quality metrics for how evenly primary
// placements spread across targets. Quality combines the coefficient of
// variation and the min/max ratio; 1.0 is a perfectly even spread.
func primaryWinStats(wins []float64) (stdDev, minMaxRatio, quality float64) {
	if len(wins) == 0 {
		return 0, 0, 0
	}

	min, max := wins[0], wins[0]
	var sum float64
	for _, v := range wins {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	mean := sum / float64(len(wins))

	var sumSquaredDiffs float64
	for _, v := range wins {
		diff := v - mean
		sumSquaredDiffs += diff * diff
	}
	stdDev = math.Sqrt(sumSquaredDiffs / float64(len(wins)))

	minMaxRatio = 1.0
	if max > 0 {
		minMaxRatio = min / max
	}

	var cv float64
	if mean > 0 {
		cv = stdDev / mean
	}
	quality = (1.0-math.Min(1.0, cv))*0.5 + minMaxRatio*0.5

	return stdDev, minMaxRatio, quality
}

// TestRankDistribution verifies primary placements spread evenly across a
// realistic target count
func TestRankDistribution(t *testing.T) {
	const (
		numTargets = 8
		numKeys    = 10000
	)

	targets := make([]Target, numTargets)
	for i := range targets {
		addr := fmt.Sprintf("10.2.0.%d:4000", i+1)
		targets[i] = Target{Address: addr, Seed: SeedForAddress(addr)}
	}

	wins := make(map[string]int, numTargets)
	for i := 0; i < numKeys; i++ {
		key := []byte(fmt.Sprintf("distribution-key-%d", i))
		ranked := RankTargets(targets, key, 0)
		wins[ranked[0].Address]++
	}

	if len(wins) != numTargets {
		t.Fatalf("Expected all %d targets to win some keys, got %d winners", numTargets, len(wins))
	}

	values := make([]float64, 0, numTargets)
	for _, count := range wins {
		values = append(values, float64(count))
	}

	stdDev, minMaxRatio, quality := primaryWinStats(values)
	t.Logf("Distribution over %d keys: stddev=%.1f minMaxRatio=%.3f quality=%.3f",
		numKeys, stdDev, minMaxRatio, quality)

	if quality < 0.6 {
		t.Errorf("Distribution quality %.3f below threshold 0.6 (wins: %v)", quality, wins)
	}
}

// BenchmarkRankTargets measures ranking cost for a realistic target count
func BenchmarkRankTargets(b *testing.B) {
	targets := testTargets()
	key := []byte("benchmark-key")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = RankTargets(targets, key, uint32(i))
	}
}
