package state

import (
	"sort"

	"github.com/google/uuid"

	"github.com/0xShonen/subtensor/internal/math"
	"github.com/0xShonen/subtensor/internal/nettypes"
)

// StakeEntry is one row of a stake snapshot: a (hotkey, coldkey) pair
// and the alpha it holds on the subnet.
type StakeEntry struct {
	Hotkey  uuid.UUID
	Coldkey uuid.UUID
	Amount  nettypes.Alpha
}

// StakeLedger maps (hotkey, coldkey, netuid) to staked alpha.
type StakeLedger struct {
	entries map[nettypes.StakeKey]nettypes.Alpha
}

func NewStakeLedger() *StakeLedger {
	return &StakeLedger{entries: make(map[nettypes.StakeKey]nettypes.Alpha)}
}

// Get returns the stake for key, zero if absent.
func (l *StakeLedger) Get(key nettypes.StakeKey) nettypes.Alpha {
	return l.entries[key]
}

// Add increases the stake for key.
func (l *StakeLedger) Add(key nettypes.StakeKey, amount nettypes.Alpha) {
	l.entries[key] = nettypes.Alpha(math.SaturatingAdd(uint64(l.entries[key]), uint64(amount)))
}

// Sub decreases the stake for key, removing the entry when it reaches
// zero.
func (l *StakeLedger) Sub(key nettypes.StakeKey, amount nettypes.Alpha) {
	left := nettypes.Alpha(math.SaturatingSub(uint64(l.entries[key]), uint64(amount)))
	if left == 0 {
		delete(l.entries, key)
		return
	}
	l.entries[key] = left
}

// SnapshotNetwork returns every stake entry on net, ordered by
// (hotkey, coldkey) bytes. This order is the deterministic input of the
// settlement apportionment.
func (l *StakeLedger) SnapshotNetwork(net nettypes.NetUid) []StakeEntry {
	var entries []StakeEntry
	for key, amount := range l.entries {
		if key.Net != net {
			continue
		}
		entries = append(entries, StakeEntry{Hotkey: key.Hotkey, Coldkey: key.Coldkey, Amount: amount})
	}
	sort.Slice(entries, func(i, j int) bool {
		if c := nettypes.CompareAccounts(entries[i].Hotkey, entries[j].Hotkey); c != 0 {
			return c < 0
		}
		return nettypes.CompareAccounts(entries[i].Coldkey, entries[j].Coldkey) < 0
	})
	return entries
}

// TotalAlpha sums all stake on net.
func (l *StakeLedger) TotalAlpha(net nettypes.NetUid) nettypes.Alpha {
	var total nettypes.Alpha
	for key, amount := range l.entries {
		if key.Net == net {
			total = nettypes.Alpha(math.SaturatingAdd(uint64(total), uint64(amount)))
		}
	}
	return total
}

// RemoveNetwork drops every stake entry on net, returning how many were
// removed.
func (l *StakeLedger) RemoveNetwork(net nettypes.NetUid) int {
	removed := 0
	for key := range l.entries {
		if key.Net == net {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Len is the total number of stake entries across all subnets.
func (l *StakeLedger) Len() int { return len(l.entries) }

// All returns every entry in the ledger keyed form, for snapshots.
func (l *StakeLedger) All() map[nettypes.StakeKey]nettypes.Alpha {
	out := make(map[nettypes.StakeKey]nettypes.Alpha, len(l.entries))
	for k, v := range l.entries {
		out[k] = v
	}
	return out
}
