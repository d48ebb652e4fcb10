// Package state holds the in-memory subnet registry, the stake ledger,
// and the coldkey balance book. Everything here is mutated only by the
// single-threaded lifecycle core, so no locking is needed.
package state

import (
	"sort"

	"github.com/google/uuid"

	"github.com/0xShonen/subtensor/internal/math"
	"github.com/0xShonen/subtensor/internal/nettypes"
)

// Default hyperparameters assigned to a freshly registered subnet.
var DefaultNetworkParams = NetworkParams{
	Tempo:             360,
	Kappa:             32767,
	Difficulty:        10_000_000,
	ImmunityPeriod:    4096,
	ActivityCutoff:    5000,
	MaxWeightsLimit:   65535,
	MinAllowedWeights: 0,
	MaxAllowedUids:    256,
}

// NetworkParams are the per-subnet configuration scalars. They are
// created with the subnet and removed wholesale at teardown.
type NetworkParams struct {
	Tempo             uint16
	Kappa             uint16
	Difficulty        uint64
	ImmunityPeriod    uint16
	ActivityCutoff    uint16
	MaxWeightsLimit   uint16
	MinAllowedWeights uint16
	MaxAllowedUids    uint16
}

// RegistrationCounters track how many registrations a subnet has seen,
// split by mechanism.
type RegistrationCounters struct {
	Total uint16
	POW   uint16
	Burn  uint16
}

// UidVectors are the per-uid consensus vectors of one subnet. All slices
// share the same length (the subnet's member count).
type UidVectors struct {
	Rank           []uint16
	Trust          []uint16
	Incentive      []uint16
	Consensus      []uint16
	Dividends      []uint16
	PruningScores  []uint16
	ValidatorTrust []uint16
	Active         []bool
	ValidatorPermit []bool
	LastUpdate     []uint64
}

// WeightEntry is one (target uid, weight) pair in a uid's weight or bond
// vector.
type WeightEntry struct {
	Uid    uint16
	Weight uint16
}

// Registry is the global subnet registry: every per-subnet storage
// collection, dense and sparse, plus the global lifecycle parameters.
type Registry struct {
	// Sparse per-subnet records, removed entirely at teardown.
	owner          map[nettypes.NetUid]uuid.UUID
	ownerHotkey    map[nettypes.NetUid]uuid.UUID
	registeredAt   map[nettypes.NetUid]uint64
	networksAdded  map[nettypes.NetUid]bool
	memberCount    map[nettypes.NetUid]uint16
	modality       map[nettypes.NetUid]uint16
	params         map[nettypes.NetUid]NetworkParams
	regCounters    map[nettypes.NetUid]RegistrationCounters
	subnetTAO      map[nettypes.NetUid]nettypes.Tao
	volume         map[nettypes.NetUid]uint64
	emission       map[nettypes.NetUid][]nettypes.Alpha
	uidVectors     map[nettypes.NetUid]*UidVectors
	keys           map[nettypes.NetUid]map[uint16]uuid.UUID
	weights        map[nettypes.NetUid]map[uint16][]WeightEntry
	bonds          map[nettypes.NetUid]map[uint16][]WeightEntry
	isMember       map[uuid.UUID]map[nettypes.NetUid]bool

	// Dense per-subnet scalars, zeroed (kept present) at teardown.
	alphaIn  map[nettypes.NetUid]nettypes.Alpha
	alphaOut map[nettypes.NetUid]nettypes.Alpha
	locked   map[nettypes.NetUid]nettypes.Tao

	// Globals.
	totalNetworks         uint16
	subnetLimit           uint16
	networkImmunityPeriod uint64
	ownerCut              uint16
	minLockCost           nettypes.Tao
	lastLockCost          nettypes.Tao
	currentBlock          uint64
}

// NewRegistry returns an empty registry with the default global
// parameters.
func NewRegistry() *Registry {
	return &Registry{
		owner:         make(map[nettypes.NetUid]uuid.UUID),
		ownerHotkey:   make(map[nettypes.NetUid]uuid.UUID),
		registeredAt:  make(map[nettypes.NetUid]uint64),
		networksAdded: make(map[nettypes.NetUid]bool),
		memberCount:   make(map[nettypes.NetUid]uint16),
		modality:      make(map[nettypes.NetUid]uint16),
		params:        make(map[nettypes.NetUid]NetworkParams),
		regCounters:   make(map[nettypes.NetUid]RegistrationCounters),
		subnetTAO:     make(map[nettypes.NetUid]nettypes.Tao),
		volume:        make(map[nettypes.NetUid]uint64),
		emission:      make(map[nettypes.NetUid][]nettypes.Alpha),
		uidVectors:    make(map[nettypes.NetUid]*UidVectors),
		keys:          make(map[nettypes.NetUid]map[uint16]uuid.UUID),
		weights:       make(map[nettypes.NetUid]map[uint16][]WeightEntry),
		bonds:         make(map[nettypes.NetUid]map[uint16][]WeightEntry),
		isMember:      make(map[uuid.UUID]map[nettypes.NetUid]bool),
		alphaIn:       make(map[nettypes.NetUid]nettypes.Alpha),
		alphaOut:      make(map[nettypes.NetUid]nettypes.Alpha),
		locked:        make(map[nettypes.NetUid]nettypes.Tao),

		subnetLimit:           12,
		networkImmunityPeriod: 7200,
		ownerCut:              11796, // ~18%
		minLockCost:           100_000_000_000,
	}
}

// ============================================================================
// Lifecycle
// ============================================================================

// Exists reports whether net is a live subnet.
func (r *Registry) Exists(net nettypes.NetUid) bool {
	return r.networksAdded[net]
}

// NextNetUid returns the lowest unused subnet id. Ids released by
// dissolved subnets are reused before new ones are minted.
func (r *Registry) NextNetUid() nettypes.NetUid {
	for id := nettypes.NetUid(1); ; id++ {
		if !r.networksAdded[id] {
			return id
		}
	}
}

// CreateNetwork registers a new subnet owned by coldkey/hotkey at the
// current block, seeding its tao pool and alpha-in pool from the paid
// lock. The caller has already debited the lock from the owner.
func (r *Registry) CreateNetwork(net nettypes.NetUid, coldkey, hotkey uuid.UUID, lock nettypes.Tao) {
	r.owner[net] = coldkey
	r.ownerHotkey[net] = hotkey
	r.registeredAt[net] = r.currentBlock
	r.networksAdded[net] = true
	r.memberCount[net] = 0
	r.modality[net] = 0
	r.params[net] = DefaultNetworkParams
	r.regCounters[net] = RegistrationCounters{}
	r.subnetTAO[net] = lock
	r.volume[net] = 0
	r.emission[net] = nil
	r.uidVectors[net] = &UidVectors{}
	r.keys[net] = make(map[uint16]uuid.UUID)
	r.weights[net] = make(map[uint16][]WeightEntry)
	r.bonds[net] = make(map[uint16][]WeightEntry)

	r.alphaIn[net] = nettypes.Alpha(lock)
	r.alphaOut[net] = 0
	r.locked[net] = lock

	r.totalNetworks++
	r.lastLockCost = lock
}

// purgeOp removes or zeroes one per-subnet storage collection. Teardown
// walks this table so a newly added collection only needs a new row.
type purgeOp struct {
	name string
	fn   func(r *Registry, net nettypes.NetUid)
}

var purgeOps = []purgeOp{
	{"subnet_owner", func(r *Registry, n nettypes.NetUid) { delete(r.owner, n) }},
	{"subnet_owner_hotkey", func(r *Registry, n nettypes.NetUid) { delete(r.ownerHotkey, n) }},
	{"network_registered_at", func(r *Registry, n nettypes.NetUid) { delete(r.registeredAt, n) }},
	{"networks_added", func(r *Registry, n nettypes.NetUid) { delete(r.networksAdded, n) }},
	{"subnetwork_n", func(r *Registry, n nettypes.NetUid) { delete(r.memberCount, n) }},
	{"network_modality", func(r *Registry, n nettypes.NetUid) { delete(r.modality, n) }},
	{"network_params", func(r *Registry, n nettypes.NetUid) { delete(r.params, n) }},
	{"registration_counters", func(r *Registry, n nettypes.NetUid) { delete(r.regCounters, n) }},
	{"subnet_tao", func(r *Registry, n nettypes.NetUid) { delete(r.subnetTAO, n) }},
	{"subnet_volume", func(r *Registry, n nettypes.NetUid) { delete(r.volume, n) }},
	{"emission_record", func(r *Registry, n nettypes.NetUid) { delete(r.emission, n) }},
	{"uid_vectors", func(r *Registry, n nettypes.NetUid) { delete(r.uidVectors, n) }},
	{"keys", func(r *Registry, n nettypes.NetUid) { delete(r.keys, n) }},
	{"weights", func(r *Registry, n nettypes.NetUid) { delete(r.weights, n) }},
	{"bonds", func(r *Registry, n nettypes.NetUid) { delete(r.bonds, n) }},
	{"is_network_member", func(r *Registry, n nettypes.NetUid) {
		for hotkey, nets := range r.isMember {
			delete(nets, n)
			if len(nets) == 0 {
				delete(r.isMember, hotkey)
			}
		}
	}},

	// Dense pool scalars stay present with value zero.
	{"subnet_alpha_in", func(r *Registry, n nettypes.NetUid) { r.alphaIn[n] = 0 }},
	{"subnet_alpha_out", func(r *Registry, n nettypes.NetUid) { r.alphaOut[n] = 0 }},
	{"subnet_locked", func(r *Registry, n nettypes.NetUid) { r.locked[n] = 0 }},
}

// PurgeNetwork removes every per-subnet storage item for net and
// decrements the live-network counter. Returns the number of storage
// collections touched.
func (r *Registry) PurgeNetwork(net nettypes.NetUid) int {
	for _, op := range purgeOps {
		op.fn(r, net)
	}
	if r.totalNetworks > 0 {
		r.totalNetworks--
	}
	return len(purgeOps)
}

// ============================================================================
// Accessors
// ============================================================================

func (r *Registry) Owner(net nettypes.NetUid) uuid.UUID       { return r.owner[net] }
func (r *Registry) OwnerHotkey(net nettypes.NetUid) uuid.UUID { return r.ownerHotkey[net] }
func (r *Registry) RegisteredAt(net nettypes.NetUid) uint64   { return r.registeredAt[net] }
func (r *Registry) MemberCount(net nettypes.NetUid) uint16    { return r.memberCount[net] }

func (r *Registry) SubnetTAO(net nettypes.NetUid) nettypes.Tao  { return r.subnetTAO[net] }
func (r *Registry) AlphaIn(net nettypes.NetUid) nettypes.Alpha  { return r.alphaIn[net] }
func (r *Registry) AlphaOut(net nettypes.NetUid) nettypes.Alpha { return r.alphaOut[net] }
func (r *Registry) Locked(net nettypes.NetUid) nettypes.Tao     { return r.locked[net] }

func (r *Registry) Params(net nettypes.NetUid) (NetworkParams, bool) {
	p, ok := r.params[net]
	return p, ok
}

// AddToPool merges freed collateral into the subnet's tao pool.
func (r *Registry) AddToPool(net nettypes.NetUid, amount nettypes.Tao) {
	r.subnetTAO[net] = nettypes.Tao(math.SaturatingAdd(uint64(r.subnetTAO[net]), uint64(amount)))
}

// RecordEmission appends one epoch's emitted alpha to the subnet's
// emission record and mints it into circulation.
func (r *Registry) RecordEmission(net nettypes.NetUid, amount nettypes.Alpha) {
	r.emission[net] = append(r.emission[net], amount)
	r.alphaOut[net] = nettypes.Alpha(math.SaturatingAdd(uint64(r.alphaOut[net]), uint64(amount)))
}

// TotalEmission sums the subnet's emission record.
func (r *Registry) TotalEmission(net nettypes.NetUid) nettypes.Alpha {
	var total nettypes.Alpha
	for _, e := range r.emission[net] {
		total = nettypes.Alpha(math.SaturatingAdd(uint64(total), uint64(e)))
	}
	return total
}

// RecordVolume adds traded volume to the subnet's running total.
func (r *Registry) RecordVolume(net nettypes.NetUid, amount uint64) {
	r.volume[net] = math.SaturatingAdd(r.volume[net], amount)
}

func (r *Registry) Volume(net nettypes.NetUid) uint64 { return r.volume[net] }

// RegisterMember appends a hotkey as a subnet member, growing the uid
// vectors in lockstep.
func (r *Registry) RegisterMember(net nettypes.NetUid, hotkey uuid.UUID) uint16 {
	uid := r.memberCount[net]
	r.keys[net][uid] = hotkey
	if nets, ok := r.isMember[hotkey]; ok {
		nets[net] = true
	} else {
		r.isMember[hotkey] = map[nettypes.NetUid]bool{net: true}
	}

	v := r.uidVectors[net]
	v.Rank = append(v.Rank, 0)
	v.Trust = append(v.Trust, 0)
	v.Incentive = append(v.Incentive, 0)
	v.Consensus = append(v.Consensus, 0)
	v.Dividends = append(v.Dividends, 0)
	v.PruningScores = append(v.PruningScores, 0)
	v.ValidatorTrust = append(v.ValidatorTrust, 0)
	v.Active = append(v.Active, true)
	v.ValidatorPermit = append(v.ValidatorPermit, false)
	v.LastUpdate = append(v.LastUpdate, r.currentBlock)

	r.memberCount[net] = uid + 1
	c := r.regCounters[net]
	c.Total++
	c.Burn++
	r.regCounters[net] = c
	return uid
}

// IsMember reports whether hotkey is registered on net.
func (r *Registry) IsMember(hotkey uuid.UUID, net nettypes.NetUid) bool {
	return r.isMember[hotkey][net]
}

// KeyAt returns the hotkey registered at uid on net.
func (r *Registry) KeyAt(net nettypes.NetUid, uid uint16) (uuid.UUID, bool) {
	hotkey, ok := r.keys[net][uid]
	return hotkey, ok
}

// SetWeights stores a uid's weight vector on net.
func (r *Registry) SetWeights(net nettypes.NetUid, uid uint16, entries []WeightEntry) {
	if r.weights[net] == nil {
		return
	}
	r.weights[net][uid] = entries
}

// SetBonds stores a uid's bond vector on net.
func (r *Registry) SetBonds(net nettypes.NetUid, uid uint16, entries []WeightEntry) {
	if r.bonds[net] == nil {
		return
	}
	r.bonds[net][uid] = entries
}

// WeightsFor returns a uid's weight vector on net, nil once purged.
func (r *Registry) WeightsFor(net nettypes.NetUid, uid uint16) []WeightEntry {
	return r.weights[net][uid]
}

// BondsFor returns a uid's bond vector on net, nil once purged.
func (r *Registry) BondsFor(net nettypes.NetUid, uid uint16) []WeightEntry {
	return r.bonds[net][uid]
}

// UidVectorsFor returns the subnet's per-uid vectors, or nil once purged.
func (r *Registry) UidVectorsFor(net nettypes.NetUid) *UidVectors {
	return r.uidVectors[net]
}

// Networks returns the live subnet ids in ascending order.
func (r *Registry) Networks() []nettypes.NetUid {
	nets := make([]nettypes.NetUid, 0, len(r.networksAdded))
	for net := range r.networksAdded {
		nets = append(nets, net)
	}
	sort.Slice(nets, func(i, j int) bool { return nets[i] < nets[j] })
	return nets
}

// ============================================================================
// Globals
// ============================================================================

func (r *Registry) TotalNetworks() uint16 { return r.totalNetworks }
func (r *Registry) SubnetLimit() uint16   { return r.subnetLimit }
func (r *Registry) OwnerCut() uint16      { return r.ownerCut }
func (r *Registry) CurrentBlock() uint64  { return r.currentBlock }

func (r *Registry) SetSubnetLimit(limit uint16) { r.subnetLimit = limit }
func (r *Registry) SetOwnerCut(cut uint16)      { r.ownerCut = cut }
func (r *Registry) SetBlock(block uint64)       { r.currentBlock = block }

func (r *Registry) ImmunityPeriod() uint64          { return r.networkImmunityPeriod }
func (r *Registry) SetImmunityPeriod(blocks uint64) { r.networkImmunityPeriod = blocks }

func (r *Registry) MinLockCost() nettypes.Tao            { return r.minLockCost }
func (r *Registry) SetMinLockCost(cost nettypes.Tao)     { r.minLockCost = cost }
func (r *Registry) LastLockCost() nettypes.Tao           { return r.lastLockCost }

// LockCost is the tao deposit required to register a subnet right now.
// Each registration ratchets the floor up to the last paid lock.
func (r *Registry) LockCost() nettypes.Tao {
	if r.lastLockCost > r.minLockCost {
		return r.lastLockCost
	}
	return r.minLockCost
}
