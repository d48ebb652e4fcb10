package state_test

import (
	"testing"

	"github.com/google/uuid"

	"github.com/0xShonen/subtensor/internal/nettypes"
	"github.com/0xShonen/subtensor/internal/state"
)

func stakeKey(seed byte, net nettypes.NetUid) nettypes.StakeKey {
	var hot, cold uuid.UUID
	hot[0] = seed
	cold[0] = seed
	return nettypes.StakeKey{Hotkey: hot, Coldkey: cold, Net: net}
}

// ============================================================================
// Test: StakeLedger
// ============================================================================

func TestStakeLedger_AddAndGet(t *testing.T) {
	l := state.NewStakeLedger()
	key := stakeKey(1, 1)

	l.Add(key, 500)
	l.Add(key, 250)

	if got := l.Get(key); got != 750 {
		t.Errorf("got %d, want 750", got)
	}
}

func TestStakeLedger_SubRemovesEmptyEntries(t *testing.T) {
	l := state.NewStakeLedger()
	key := stakeKey(1, 1)
	l.Add(key, 500)

	l.Sub(key, 500)

	if l.Len() != 0 {
		t.Errorf("ledger should be empty, has %d entries", l.Len())
	}
}

func TestStakeLedger_SubSaturates(t *testing.T) {
	l := state.NewStakeLedger()
	key := stakeKey(1, 1)
	l.Add(key, 100)

	l.Sub(key, 1000)

	if got := l.Get(key); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}

func TestStakeLedger_SnapshotOrderedByIdentity(t *testing.T) {
	l := state.NewStakeLedger()
	l.Add(stakeKey(9, 1), 10)
	l.Add(stakeKey(1, 1), 20)
	l.Add(stakeKey(5, 1), 30)
	l.Add(stakeKey(2, 2), 999) // other subnet, excluded

	snap := l.SnapshotNetwork(1)
	if len(snap) != 3 {
		t.Fatalf("got %d entries, want 3", len(snap))
	}
	if snap[0].Hotkey[0] != 1 || snap[1].Hotkey[0] != 5 || snap[2].Hotkey[0] != 9 {
		t.Errorf("snapshot not ordered by identity: %+v", snap)
	}
}

func TestStakeLedger_TotalAlphaPerNetwork(t *testing.T) {
	l := state.NewStakeLedger()
	l.Add(stakeKey(1, 1), 100)
	l.Add(stakeKey(2, 1), 200)
	l.Add(stakeKey(3, 2), 400)

	if got := l.TotalAlpha(1); got != 300 {
		t.Errorf("net 1 total: got %d, want 300", got)
	}
	if got := l.TotalAlpha(2); got != 400 {
		t.Errorf("net 2 total: got %d, want 400", got)
	}
}

func TestStakeLedger_RemoveNetworkScoped(t *testing.T) {
	l := state.NewStakeLedger()
	l.Add(stakeKey(1, 1), 100)
	l.Add(stakeKey(2, 1), 200)
	survivor := stakeKey(3, 2)
	l.Add(survivor, 400)

	removed := l.RemoveNetwork(1)

	if removed != 2 {
		t.Errorf("removed %d entries, want 2", removed)
	}
	if l.Len() != 1 {
		t.Errorf("ledger should keep 1 entry, has %d", l.Len())
	}
	if got := l.Get(survivor); got != 400 {
		t.Errorf("survivor stake: got %d, want 400", got)
	}
}

// ============================================================================
// Test: BalanceBook
// ============================================================================

func TestBalanceBook_CreditIsAdditive(t *testing.T) {
	b := state.NewBalanceBook()
	cold := uuid.New()

	b.Credit(cold, 100)
	b.Credit(cold, 50)

	if got := b.Balance(cold); got != 150 {
		t.Errorf("got %d, want 150", got)
	}
}

func TestBalanceBook_DebitRequiresFunds(t *testing.T) {
	b := state.NewBalanceBook()
	cold := uuid.New()
	b.Credit(cold, 100)

	if err := b.Debit(cold, 200); err == nil {
		t.Fatal("overdraft should fail")
	}
	if got := b.Balance(cold); got != 100 {
		t.Errorf("failed debit should not mutate: got %d, want 100", got)
	}

	if err := b.Debit(cold, 100); err != nil {
		t.Fatalf("debit failed: %v", err)
	}
	if got := b.Balance(cold); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}
