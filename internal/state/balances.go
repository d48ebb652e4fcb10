package state

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/0xShonen/subtensor/internal/math"
	"github.com/0xShonen/subtensor/internal/nettypes"
)

// BalanceBook tracks the free tao balance of every coldkey.
type BalanceBook struct {
	balances map[uuid.UUID]nettypes.Tao
}

func NewBalanceBook() *BalanceBook {
	return &BalanceBook{balances: make(map[uuid.UUID]nettypes.Tao)}
}

// Balance returns the coldkey's free balance, zero if unknown.
func (b *BalanceBook) Balance(coldkey uuid.UUID) nettypes.Tao {
	return b.balances[coldkey]
}

// Credit adds amount to the coldkey's balance. Addition saturates, so
// crediting never fails.
func (b *BalanceBook) Credit(coldkey uuid.UUID, amount nettypes.Tao) {
	b.balances[coldkey] = nettypes.Tao(math.SaturatingAdd(uint64(b.balances[coldkey]), uint64(amount)))
}

// Debit removes amount from the coldkey's balance. The caller must have
// verified sufficiency first.
func (b *BalanceBook) Debit(coldkey uuid.UUID, amount nettypes.Tao) error {
	have := b.balances[coldkey]
	if have < amount {
		return fmt.Errorf("coldkey %s holds %d, cannot debit %d", coldkey, have, amount)
	}
	b.balances[coldkey] = have - amount
	return nil
}

// All returns a copy of every balance, for snapshots and digests.
func (b *BalanceBook) All() map[uuid.UUID]nettypes.Tao {
	out := make(map[uuid.UUID]nettypes.Tao, len(b.balances))
	for k, v := range b.balances {
		out[k] = v
	}
	return out
}
