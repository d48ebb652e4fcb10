package math

import (
	"math/big"
	"sort"

	"github.com/google/uuid"

	"github.com/0xShonen/subtensor/internal/nettypes"
)

// Claimant is one stake entry competing for a share of a settlement pot.
// Weight is the claimant's staked alpha on the dissolving subnet.
type Claimant struct {
	Hotkey  uuid.UUID
	Coldkey uuid.UUID
	Weight  uint64
}

// Share is the tao amount apportioned to one claimant.
type Share struct {
	Hotkey  uuid.UUID
	Coldkey uuid.UUID
	Amount  nettypes.Tao
}

// Apportion splits pot across claimants in proportion to weight using the
// largest-remainder method. Every claimant first receives
// floor(pot * weight / totalWeight); the units lost to flooring are then
// handed out one each to the claimants with the largest division
// remainders, ties going to the lower (hotkey, coldkey) pair. The
// returned shares always sum to exactly pot.
//
// A zero total weight returns nil: there is nobody to pay.
func Apportion(pot nettypes.Tao, claimants []Claimant) []Share {
	// Sort by identity for deterministic ordering regardless of how the
	// caller collected the claimants.
	ordered := make([]Claimant, len(claimants))
	copy(ordered, claimants)
	sort.Slice(ordered, func(i, j int) bool {
		if c := nettypes.CompareAccounts(ordered[i].Hotkey, ordered[j].Hotkey); c != 0 {
			return c < 0
		}
		return nettypes.CompareAccounts(ordered[i].Coldkey, ordered[j].Coldkey) < 0
	})

	// Total weight can exceed 64 bits when many large stakes sum up.
	totalWeight := getUint128()
	defer putUint128(totalWeight)
	w := getUint128()
	for _, c := range ordered {
		w.SetUint64(c.Weight)
		totalWeight.Add(totalWeight, w)
	}
	putUint128(w)

	if totalWeight.Sign() == 0 {
		return nil
	}

	shares := make([]Share, len(ordered))
	remainders := make([]*big.Int, len(ordered))
	var distributed nettypes.Tao

	for i, c := range ordered {
		prod := MulUint128(uint64(pot), c.Weight)
		quotient := new(big.Int)
		remainder := new(big.Int)
		quotient.DivMod(prod, totalWeight, remainder)
		putUint128(prod)

		// quotient <= pot, so it always fits in uint64.
		base := nettypes.Tao(quotient.Uint64())
		shares[i] = Share{Hotkey: c.Hotkey, Coldkey: c.Coldkey, Amount: base}
		remainders[i] = remainder
		distributed += base
	}

	leftover := pot - distributed
	if leftover == 0 {
		return shares
	}

	// Hand the leftover units to the largest remainders. SliceStable
	// keeps the identity order for equal remainders.
	order := make([]int, len(ordered))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return remainders[order[i]].Cmp(remainders[order[j]]) > 0
	})
	for k := nettypes.Tao(0); k < leftover; k++ {
		shares[order[k]].Amount++
	}

	return shares
}
