// Package core implements the single-threaded subnet lifecycle engine:
// registration admission, eviction, dissolution settlement, and the
// command pipeline that feeds the durable log and projections.
package core

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/0xShonen/subtensor/internal/event"
	"github.com/0xShonen/subtensor/internal/nettypes"
	"github.com/0xShonen/subtensor/internal/observability"
	"github.com/0xShonen/subtensor/internal/state"
)

// LiquidityProvider is the AMM collaborator. LiquidateAll must leave
// zero residual positions and clear every piece of subnet-scoped AMM
// bookkeeping; it is invoked synchronously and must not re-enter the
// core.
type LiquidityProvider interface {
	Initialize(net nettypes.NetUid, price nettypes.Price)
	CurrentPrice(net nettypes.NetUid) nettypes.Price
	LiquidateAll(net nettypes.NetUid) (nettypes.Tao, []nettypes.OwnerCredit)
}

// PayoutKind distinguishes the two credit paths of a settlement.
type PayoutKind string

const (
	PayoutKindStakeShare  PayoutKind = "stake_share"
	PayoutKindOwnerRefund PayoutKind = "owner_refund"
)

// Payout is one tao credit produced by a settlement.
type Payout struct {
	ID      uuid.UUID
	Coldkey uuid.UUID
	Amount  nettypes.Tao
	Kind    PayoutKind
}

// Settlement records the full outcome of dissolving one subnet.
type Settlement struct {
	NetUid        nettypes.NetUid
	Pot           nettypes.Tao // pool after LP collateral merged
	LPCollateral  nettypes.Tao
	OwnerRefund   nettypes.Tao
	Unclaimed     nettypes.Tao
	Stakers       int
	StoragePurged int
	Payouts       []Payout
}

// Result is what a command returns to a synchronous caller.
type Result struct {
	// NetUid is the assigned id for RegisterNetwork and the eviction
	// candidate for PruneQuery.
	NetUid      *nettypes.NetUid
	Settlements []*Settlement
}

// CoreOutput is what the core emits per applied command. AssignedNet
// is set for registrations, whose envelope has no target subnet.
type CoreOutput struct {
	Envelope    *event.Envelope
	AssignedNet *nettypes.NetUid
	Settlements []*Settlement
}

// LifecycleCore is the single-threaded command processor.
type LifecycleCore struct {
	sequence          int64
	hasher            *StateHasher
	registry          *state.Registry
	stake             *state.StakeLedger
	balances          *state.BalanceBook
	liquidity         LiquidityProvider
	idempotency       *CommandDeduper
	sequenceValidator *SequenceValidator
	metrics           *observability.Metrics
	log               zerolog.Logger

	persistChan    chan<- CoreOutput
	projectionChan chan<- CoreOutput
}

func NewLifecycleCore(
	startSequence int64,
	persistChan, projectionChan chan<- CoreOutput,
	dbChecker DBDedupChecker,
	liquidity LiquidityProvider,
	metrics *observability.Metrics,
	log zerolog.Logger,
) *LifecycleCore {
	return &LifecycleCore{
		sequence:          startSequence,
		hasher:            NewStateHasher(),
		registry:          state.NewRegistry(),
		stake:             state.NewStakeLedger(),
		balances:          state.NewBalanceBook(),
		liquidity:         liquidity,
		idempotency:       NewCommandDeduper(1_000_000, dbChecker),
		sequenceValidator: NewSequenceValidator(),
		metrics:           metrics,
		log:               log,
		persistChan:       persistChan,
		projectionChan:    projectionChan,
	}
}

// ProcessCommand is the main processing pipeline.
func (c *LifecycleCore) ProcessCommand(cmd event.Command) (*Result, error) {
	start := time.Now()
	cmdType := cmd.CommandType().String()
	idempotencyKey := cmd.IdempotencyKey()

	// Read-only query: answered from live state, never enters the log.
	if _, ok := cmd.(*event.PruneQuery); ok {
		res := &Result{}
		if victim, found := c.NetworkToPrune(); found {
			res.NetUid = &victim
		}
		return res, nil
	}

	// Step 1: Idempotency check (two-tier)
	isDuplicate := c.idempotency.IsDuplicate(cmdType, idempotencyKey)

	// Step 2: Sequence validation. Block heights tolerate gaps, every
	// other partition must be contiguous.
	if blockCmd, ok := cmd.(*event.BlockAdvanced); ok {
		if err := c.sequenceValidator.ValidateBlockSequence(int64(blockCmd.Height)); err != nil {
			return nil, err
		}
	} else {
		partition := c.getPartition(cmd)
		if err := c.sequenceValidator.ValidateSequence(partition, cmd.SourceSequence(), idempotencyKey, isDuplicate); err != nil {
			return nil, fmt.Errorf("sequence validation failed: %w", err)
		}
	}

	if isDuplicate {
		if c.metrics != nil {
			c.metrics.CoreCommandsRejected.WithLabelValues(cmdType, "duplicate").Inc()
		}
		return nil, nil
	}

	// Step 3: Dispatch. A dispatch error is a precondition failure and
	// leaves all state untouched.
	result, err := c.dispatch(cmd)
	if err != nil {
		if c.metrics != nil {
			c.metrics.CoreCommandsRejected.WithLabelValues(cmdType, "precondition").Inc()
		}
		return nil, err
	}

	// Step 4: Envelope with chained state hash.
	payload, err := json.Marshal(cmd)
	if err != nil {
		panic(fmt.Sprintf("FATAL: command %s not serializable: %v", cmdType, err))
	}

	prevHash := c.hasher.GetPrevHash()
	stateDigest := c.computeStateDigest(cmd, result)
	stateHash := c.hasher.ComputeHash(c.sequence, stateDigest)

	output := CoreOutput{
		Envelope: &event.Envelope{
			Sequence:       c.sequence,
			IdempotencyKey: idempotencyKey,
			CommandType:    cmd.CommandType(),
			Net:            cmd.Net(),
			Block:          c.registry.CurrentBlock(),
			SourceSequence: cmd.SourceSequence(),
			Payload:        payload,
			StateHash:      stateHash,
			PrevHash:       prevHash,
		},
		Settlements: result.Settlements,
	}
	if _, ok := cmd.(*event.RegisterNetwork); ok {
		output.AssignedNet = result.NetUid
	}
	c.sequence++

	// Step 5: Emit. Persistence gets a blocking send so no applied
	// command is ever lost; projections get a non-blocking send and
	// rebuild from the log if they fall behind.
	if c.persistChan != nil {
		c.persistChan <- output
	}
	if c.projectionChan != nil {
		select {
		case c.projectionChan <- output:
		default:
			// Dropped. Projections catch up via rebuild.
			if c.metrics != nil {
				c.metrics.ProjectionDrops.WithLabelValues("main").Inc()
			}
		}
	}

	// Step 6: Mark as processed (add to LRU)
	c.idempotency.MarkProcessed(cmdType, idempotencyKey)

	if c.metrics != nil {
		c.metrics.CoreCommandsApplied.WithLabelValues(cmdType).Inc()
		c.metrics.CoreCommandDuration.WithLabelValues(cmdType).Observe(time.Since(start).Seconds())
		c.metrics.CoreSequence.Set(float64(c.sequence))
		c.metrics.NetworksLive.Set(float64(c.registry.TotalNetworks()))
	}

	return result, nil
}

func (c *LifecycleCore) dispatch(cmd event.Command) (*Result, error) {
	switch e := cmd.(type) {
	case *event.RegisterNetwork:
		return c.handleRegister(e)
	case *event.DissolveNetwork:
		return c.handleDissolve(e)
	case *event.StakeDeposited:
		return c.handleStakeDeposited(e)
	case *event.StakeWithdrawn:
		return c.handleStakeWithdrawn(e)
	case *event.EmissionRecorded:
		return c.handleEmissionRecorded(e)
	case *event.BlockAdvanced:
		return c.handleBlockAdvanced(e)
	default:
		return nil, fmt.Errorf("unknown command type: %T", cmd)
	}
}

// getPartition determines the partition key for sequence validation.
// Each upstream stream carries its own contiguous sequence: lifecycle
// requests arrive on one global stream, stake movements and emission
// reports on per-subnet streams.
func (c *LifecycleCore) getPartition(cmd event.Command) string {
	switch e := cmd.(type) {
	case *event.StakeDeposited:
		return fmt.Sprintf("stake:%d", e.NetUid)
	case *event.StakeWithdrawn:
		return fmt.Sprintf("stake:%d", e.NetUid)
	case *event.EmissionRecorded:
		return fmt.Sprintf("emission:%d", e.NetUid)
	default:
		return "lifecycle"
	}
}

func (c *LifecycleCore) handleStakeDeposited(cmd *event.StakeDeposited) (*Result, error) {
	if !c.registry.Exists(cmd.NetUid) {
		return nil, fmt.Errorf("stake deposit on subnet %d: %w", cmd.NetUid, ErrNetworkDoesNotExist)
	}

	key := nettypes.StakeKey{Hotkey: cmd.Hotkey, Coldkey: cmd.Coldkey, Net: cmd.NetUid}
	if c.stake.Get(key) == 0 && !c.registry.IsMember(cmd.Hotkey, cmd.NetUid) {
		c.registry.RegisterMember(cmd.NetUid, cmd.Hotkey)
	}
	c.stake.Add(key, cmd.Amount)
	return &Result{}, nil
}

func (c *LifecycleCore) handleStakeWithdrawn(cmd *event.StakeWithdrawn) (*Result, error) {
	if !c.registry.Exists(cmd.NetUid) {
		return nil, fmt.Errorf("stake withdrawal on subnet %d: %w", cmd.NetUid, ErrNetworkDoesNotExist)
	}

	key := nettypes.StakeKey{Hotkey: cmd.Hotkey, Coldkey: cmd.Coldkey, Net: cmd.NetUid}
	c.stake.Sub(key, cmd.Amount)
	return &Result{}, nil
}

func (c *LifecycleCore) handleEmissionRecorded(cmd *event.EmissionRecorded) (*Result, error) {
	if !c.registry.Exists(cmd.NetUid) {
		return nil, fmt.Errorf("emission on subnet %d: %w", cmd.NetUid, ErrNetworkDoesNotExist)
	}

	c.registry.RecordEmission(cmd.NetUid, cmd.Amount)
	return &Result{}, nil
}

func (c *LifecycleCore) handleBlockAdvanced(cmd *event.BlockAdvanced) (*Result, error) {
	if cmd.Height > c.registry.CurrentBlock() {
		c.registry.SetBlock(cmd.Height)
	}
	return &Result{}, nil
}

// computeStateDigest creates canonical bytes for the state hash: every
// coldkey balance the command touched, plus the registry anchors that
// any command can move.
func (c *LifecycleCore) computeStateDigest(cmd event.Command, res *Result) []byte {
	affected := make(map[uuid.UUID]bool)
	for _, s := range res.Settlements {
		for _, p := range s.Payouts {
			affected[p.Coldkey] = true
		}
	}
	if reg, ok := cmd.(*event.RegisterNetwork); ok {
		affected[reg.Coldkey] = true
	}

	coldkeys := make([]uuid.UUID, 0, len(affected))
	for key := range affected {
		coldkeys = append(coldkeys, key)
	}
	sort.Slice(coldkeys, func(i, j int) bool {
		return nettypes.CompareAccounts(coldkeys[i], coldkeys[j]) < 0
	})

	digest := make([]byte, 0, len(coldkeys)*24+32)
	for _, key := range coldkeys {
		digest = append(digest, key[:]...)
		digest = appendUint64LE(digest, uint64(c.balances.Balance(key)))
	}

	// Subnet-scoped anchors: pool levels and total stake.
	if net := cmd.Net(); net != nil {
		digest = appendUint64LE(digest, uint64(*net))
		digest = appendUint64LE(digest, uint64(c.registry.SubnetTAO(*net)))
		digest = appendUint64LE(digest, uint64(c.registry.AlphaOut(*net)))
		digest = appendUint64LE(digest, uint64(c.stake.TotalAlpha(*net)))
	}

	digest = appendUint64LE(digest, uint64(c.registry.TotalNetworks()))
	digest = appendUint64LE(digest, c.registry.CurrentBlock())

	return digest
}

func appendUint64LE(buf []byte, v uint64) []byte {
	return append(buf,
		byte(v),
		byte(v>>8),
		byte(v>>16),
		byte(v>>24),
		byte(v>>32),
		byte(v>>40),
		byte(v>>48),
		byte(v>>56),
	)
}

// --- State access for recovery, snapshots, and tests ---

func (c *LifecycleCore) Registry() *state.Registry    { return c.registry }
func (c *LifecycleCore) Stake() *state.StakeLedger    { return c.stake }
func (c *LifecycleCore) Balances() *state.BalanceBook { return c.balances }

// GetSequence returns the current global sequence number.
func (c *LifecycleCore) GetSequence() int64 {
	return c.sequence
}

// ExpectedSequence returns the next source sequence the named
// partition will accept. Used to seed the lifecycle command source
// after recovery.
func (c *LifecycleCore) ExpectedSequence(partition string) int64 {
	return c.sequenceValidator.GetExpectedSequence(partition)
}

// GetStateHash returns the current state hash (chain tip).
func (c *LifecycleCore) GetStateHash() [32]byte {
	return c.hasher.GetPrevHash()
}

// SnapshotState holds the serializable in-memory state for restore.
type SnapshotState struct {
	Sequence        int64
	StateHash       [32]byte
	Registry        *state.RegistrySnapshot
	Stakes          []state.PersistedStake
	Balances        map[uuid.UUID]nettypes.Tao
	SequenceState   map[string]int64
	IdempotencyKeys []string
}

// CreateSnapshotState captures the current in-memory state for
// persistence.
func (c *LifecycleCore) CreateSnapshotState() *SnapshotState {
	return &SnapshotState{
		Sequence:        c.sequence - 1, // Last processed sequence
		StateHash:       c.hasher.GetPrevHash(),
		Registry:        c.registry.Snapshot(),
		Stakes:          c.stake.Export(),
		Balances:        c.balances.All(),
		SequenceState:   c.sequenceValidator.GetAllPartitions(),
		IdempotencyKeys: c.idempotency.lru.Keys(),
	}
}

// RestoreFromSnapshot restores the core's in-memory state. On warm
// restart the caller loads the latest snapshot, restores, then replays
// the log tail.
func (c *LifecycleCore) RestoreFromSnapshot(snap *SnapshotState) {
	c.sequence = snap.Sequence + 1 // Next sequence to assign
	c.hasher.SetPrevHash(snap.StateHash)

	if snap.Registry != nil {
		c.registry.RestoreSnapshot(snap.Registry)
	}
	c.stake.Import(snap.Stakes)
	c.balances.Restore(snap.Balances)

	for partition, nextSeq := range snap.SequenceState {
		c.sequenceValidator.SetExpectedSequence(partition, nextSeq)
	}
}

// WarmLRU loads recent idempotency keys into the LRU cache so a warm
// restart avoids cold-path DB lookups.
func (c *LifecycleCore) WarmLRU(keys []string) {
	c.idempotency.lru.WarmFromKeys(keys)
}
