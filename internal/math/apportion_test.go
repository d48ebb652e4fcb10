package math_test

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"

	"github.com/0xShonen/subtensor/internal/math"
	"github.com/0xShonen/subtensor/internal/nettypes"
)

func claimant(seed byte, weight uint64) math.Claimant {
	var hot, cold uuid.UUID
	hot[0] = seed
	cold[0] = seed
	return math.Claimant{Hotkey: hot, Coldkey: cold, Weight: weight}
}

func sumShares(shares []math.Share) nettypes.Tao {
	var total nettypes.Tao
	for _, s := range shares {
		total += s.Amount
	}
	return total
}

// ============================================================================
// Test: Apportion
// ============================================================================

func TestApportion_ExactSplit(t *testing.T) {
	shares := math.Apportion(10_000, []math.Claimant{
		claimant(1, 300),
		claimant(2, 700),
	})

	if len(shares) != 2 {
		t.Fatalf("got %d shares, want 2", len(shares))
	}
	if shares[0].Amount != 3000 {
		t.Errorf("weight-300 share: got %d, want 3000", shares[0].Amount)
	}
	if shares[1].Amount != 7000 {
		t.Errorf("weight-700 share: got %d, want 7000", shares[1].Amount)
	}
}

func TestApportion_SingleUnitGoesToLargerRemainder(t *testing.T) {
	// Pot 1 over weights 3 and 2: bases are 0, remainders 3 and 2,
	// so the one unit goes to the weight-3 claimant.
	shares := math.Apportion(1, []math.Claimant{
		claimant(1, 3),
		claimant(2, 2),
	})

	if shares[0].Amount != 1 {
		t.Errorf("weight-3 share: got %d, want 1", shares[0].Amount)
	}
	if shares[1].Amount != 0 {
		t.Errorf("weight-2 share: got %d, want 0", shares[1].Amount)
	}
}

func TestApportion_SingleClaimant(t *testing.T) {
	shares := math.Apportion(12_345, []math.Claimant{claimant(7, 42)})
	if len(shares) != 1 || shares[0].Amount != 12_345 {
		t.Fatalf("single claimant should receive the whole pot, got %+v", shares)
	}
}

func TestApportion_ZeroTotalWeight(t *testing.T) {
	shares := math.Apportion(1000, []math.Claimant{
		claimant(1, 0),
		claimant(2, 0),
	})
	if shares != nil {
		t.Fatalf("zero total weight should be a no-op, got %+v", shares)
	}
}

func TestApportion_ZeroPot(t *testing.T) {
	shares := math.Apportion(0, []math.Claimant{
		claimant(1, 5),
		claimant(2, 5),
	})
	if sumShares(shares) != 0 {
		t.Fatalf("zero pot should distribute nothing, got %+v", shares)
	}
}

func TestApportion_RemainderTieBrokenByIdentity(t *testing.T) {
	// Equal weights, pot 3 over 2 claimants: bases 1 each, one leftover
	// unit. Remainders tie, so the lower identity wins.
	hi := claimant(9, 5)
	lo := claimant(1, 5)

	shares := math.Apportion(3, []math.Claimant{hi, lo})

	if shares[0].Hotkey != lo.Hotkey {
		t.Fatal("shares should be ordered by identity")
	}
	if shares[0].Amount != 2 || shares[1].Amount != 1 {
		t.Errorf("tie should favor lower identity: got %d and %d", shares[0].Amount, shares[1].Amount)
	}
}

func TestApportion_DeterministicAcrossInputOrder(t *testing.T) {
	claimants := []math.Claimant{
		claimant(3, 17),
		claimant(1, 91),
		claimant(2, 44),
	}
	reversed := []math.Claimant{claimants[2], claimants[1], claimants[0]}

	a := math.Apportion(1_000_003, claimants)
	b := math.Apportion(1_000_003, reversed)

	if len(a) != len(b) {
		t.Fatalf("share counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("share %d differs across input order: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestApportion_LargeValuesNoOverflow(t *testing.T) {
	// Pot and weights near the 64-bit ceiling force 128-bit
	// intermediates.
	const big = uint64(1) << 62
	shares := math.Apportion(nettypes.Tao(big), []math.Claimant{
		claimant(1, big),
		claimant(2, big),
		claimant(3, big),
	})

	if got := sumShares(shares); got != nettypes.Tao(big) {
		t.Fatalf("conservation violated at 64-bit scale: got %d, want %d", got, big)
	}
}

func TestApportion_ConservationRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	for trial := 0; trial < 200; trial++ {
		n := 1 + rng.Intn(20)
		claimants := make([]math.Claimant, n)
		for i := range claimants {
			claimants[i] = math.Claimant{
				Hotkey:  uuid.New(),
				Coldkey: uuid.New(),
				Weight:  uint64(rng.Int63()),
			}
		}
		pot := nettypes.Tao(rng.Uint64())

		shares := math.Apportion(pot, claimants)
		if got := sumShares(shares); got != pot {
			t.Fatalf("trial %d: sum %d != pot %d", trial, got, pot)
		}
	}
}

func TestApportion_Boundedness(t *testing.T) {
	rng := rand.New(rand.NewSource(2))

	for trial := 0; trial < 100; trial++ {
		n := 2 + rng.Intn(10)
		claimants := make([]math.Claimant, n)
		var totalWeight uint64
		for i := range claimants {
			w := uint64(rng.Intn(1000)) + 1
			claimants[i] = math.Claimant{Hotkey: uuid.New(), Coldkey: uuid.New(), Weight: w}
			totalWeight += w
		}
		pot := nettypes.Tao(rng.Intn(1_000_000))

		shares := math.Apportion(pot, claimants)
		byKey := make(map[uuid.UUID]nettypes.Tao, len(shares))
		for _, s := range shares {
			byKey[s.Hotkey] = s.Amount
		}
		for _, c := range claimants {
			base := uint64(pot) * c.Weight / totalWeight
			got := uint64(byKey[c.Hotkey])
			if got != base && got != base+1 {
				t.Fatalf("trial %d: share %d outside {%d, %d}", trial, got, base, base+1)
			}
		}
	}
}
