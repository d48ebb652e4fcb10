package state

import (
	"sort"

	"github.com/google/uuid"

	"github.com/0xShonen/subtensor/internal/nettypes"
)

// NetworkSnapshot is the serializable form of one subnet's registry
// state. Weight and bond vectors are not captured: nothing in the
// recovery path needs them and they are rebuilt by upstream consensus.
type NetworkSnapshot struct {
	NetUid       nettypes.NetUid      `json:"netuid"`
	Owner        uuid.UUID            `json:"owner"`
	OwnerHotkey  uuid.UUID            `json:"owner_hotkey"`
	RegisteredAt uint64               `json:"registered_at"`
	MemberCount  uint16               `json:"member_count"`
	Modality     uint16               `json:"modality"`
	Params       NetworkParams        `json:"params"`
	RegCounters  RegistrationCounters `json:"reg_counters"`
	SubnetTAO    nettypes.Tao         `json:"subnet_tao"`
	Volume       uint64               `json:"volume"`
	Emission     []nettypes.Alpha     `json:"emission"`
	AlphaIn      nettypes.Alpha       `json:"alpha_in"`
	AlphaOut     nettypes.Alpha       `json:"alpha_out"`
	Locked       nettypes.Tao         `json:"locked"`
	Keys         map[uint16]uuid.UUID `json:"keys"`
}

// RegistrySnapshot is the serializable form of the whole registry.
type RegistrySnapshot struct {
	TotalNetworks  uint16            `json:"total_networks"`
	SubnetLimit    uint16            `json:"subnet_limit"`
	ImmunityPeriod uint64            `json:"immunity_period"`
	OwnerCut       uint16            `json:"owner_cut"`
	MinLockCost    nettypes.Tao      `json:"min_lock_cost"`
	LastLockCost   nettypes.Tao      `json:"last_lock_cost"`
	CurrentBlock   uint64            `json:"current_block"`
	Networks       []NetworkSnapshot `json:"networks"`
}

// Snapshot captures the registry for persistence. Subnets are emitted
// in ascending netuid order so snapshots of equal state are
// byte-identical.
func (r *Registry) Snapshot() *RegistrySnapshot {
	snap := &RegistrySnapshot{
		TotalNetworks:  r.totalNetworks,
		SubnetLimit:    r.subnetLimit,
		ImmunityPeriod: r.networkImmunityPeriod,
		OwnerCut:       r.ownerCut,
		MinLockCost:    r.minLockCost,
		LastLockCost:   r.lastLockCost,
		CurrentBlock:   r.currentBlock,
	}
	for _, net := range r.Networks() {
		keys := make(map[uint16]uuid.UUID, len(r.keys[net]))
		for uid, hotkey := range r.keys[net] {
			keys[uid] = hotkey
		}
		emission := make([]nettypes.Alpha, len(r.emission[net]))
		copy(emission, r.emission[net])

		snap.Networks = append(snap.Networks, NetworkSnapshot{
			NetUid:       net,
			Owner:        r.owner[net],
			OwnerHotkey:  r.ownerHotkey[net],
			RegisteredAt: r.registeredAt[net],
			MemberCount:  r.memberCount[net],
			Modality:     r.modality[net],
			Params:       r.params[net],
			RegCounters:  r.regCounters[net],
			SubnetTAO:    r.subnetTAO[net],
			Volume:       r.volume[net],
			Emission:     emission,
			AlphaIn:      r.alphaIn[net],
			AlphaOut:     r.alphaOut[net],
			Locked:       r.locked[net],
			Keys:         keys,
		})
	}
	return snap
}

// RestoreSnapshot replaces the registry contents with the snapshot.
func (r *Registry) RestoreSnapshot(snap *RegistrySnapshot) {
	fresh := NewRegistry()
	*r = *fresh

	r.totalNetworks = snap.TotalNetworks
	r.subnetLimit = snap.SubnetLimit
	r.networkImmunityPeriod = snap.ImmunityPeriod
	r.ownerCut = snap.OwnerCut
	r.minLockCost = snap.MinLockCost
	r.lastLockCost = snap.LastLockCost
	r.currentBlock = snap.CurrentBlock

	for _, n := range snap.Networks {
		r.owner[n.NetUid] = n.Owner
		r.ownerHotkey[n.NetUid] = n.OwnerHotkey
		r.registeredAt[n.NetUid] = n.RegisteredAt
		r.networksAdded[n.NetUid] = true
		r.memberCount[n.NetUid] = n.MemberCount
		r.modality[n.NetUid] = n.Modality
		r.params[n.NetUid] = n.Params
		r.regCounters[n.NetUid] = n.RegCounters
		r.subnetTAO[n.NetUid] = n.SubnetTAO
		r.volume[n.NetUid] = n.Volume
		r.emission[n.NetUid] = n.Emission
		r.uidVectors[n.NetUid] = &UidVectors{}
		r.alphaIn[n.NetUid] = n.AlphaIn
		r.alphaOut[n.NetUid] = n.AlphaOut
		r.locked[n.NetUid] = n.Locked

		r.keys[n.NetUid] = make(map[uint16]uuid.UUID, len(n.Keys))
		r.weights[n.NetUid] = make(map[uint16][]WeightEntry)
		r.bonds[n.NetUid] = make(map[uint16][]WeightEntry)
		for uid, hotkey := range n.Keys {
			r.keys[n.NetUid][uid] = hotkey
			if nets, ok := r.isMember[hotkey]; ok {
				nets[n.NetUid] = true
			} else {
				r.isMember[hotkey] = map[nettypes.NetUid]bool{n.NetUid: true}
			}
		}
	}
}

// PersistedStake is the serializable form of one stake ledger entry.
type PersistedStake struct {
	Hotkey  uuid.UUID       `json:"hotkey"`
	Coldkey uuid.UUID       `json:"coldkey"`
	NetUid  nettypes.NetUid `json:"netuid"`
	Amount  nettypes.Alpha  `json:"amount"`
}

// Export dumps the whole stake ledger in deterministic order.
func (l *StakeLedger) Export() []PersistedStake {
	out := make([]PersistedStake, 0, len(l.entries))
	for key, amount := range l.entries {
		out = append(out, PersistedStake{
			Hotkey:  key.Hotkey,
			Coldkey: key.Coldkey,
			NetUid:  key.Net,
			Amount:  amount,
		})
	}
	sortPersistedStakes(out)
	return out
}

// Import replaces the ledger contents with the exported entries.
func (l *StakeLedger) Import(entries []PersistedStake) {
	l.entries = make(map[nettypes.StakeKey]nettypes.Alpha, len(entries))
	for _, e := range entries {
		l.entries[nettypes.StakeKey{Hotkey: e.Hotkey, Coldkey: e.Coldkey, Net: e.NetUid}] = e.Amount
	}
}

func sortPersistedStakes(entries []PersistedStake) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].NetUid != entries[j].NetUid {
			return entries[i].NetUid < entries[j].NetUid
		}
		if c := nettypes.CompareAccounts(entries[i].Hotkey, entries[j].Hotkey); c != 0 {
			return c < 0
		}
		return nettypes.CompareAccounts(entries[i].Coldkey, entries[j].Coldkey) < 0
	})
}

// Restore replaces the book contents with the given balances.
func (b *BalanceBook) Restore(balances map[uuid.UUID]nettypes.Tao) {
	b.balances = make(map[uuid.UUID]nettypes.Tao, len(balances))
	for k, v := range balances {
		b.balances[k] = v
	}
}
