package event

import "github.com/0xShonen/subtensor/internal/nettypes"

// CommandType discriminator for command payloads
type CommandType int32

const (
	CommandTypeUnknown CommandType = iota
	CommandTypeRegisterNetwork
	CommandTypeDissolveNetwork
	CommandTypeStakeDeposited
	CommandTypeStakeWithdrawn
	CommandTypeEmissionRecorded
	CommandTypeBlockAdvanced
	CommandTypePruneQuery
)

// Envelope wraps every applied command in the log
type Envelope struct {
	// Global monotonic sequence assigned by core
	Sequence int64

	// Stable idempotency key from upstream
	IdempotencyKey string

	// Command type discriminator
	CommandType CommandType

	// Subnet context (nullable for global commands)
	Net *nettypes.NetUid

	// Chain block height at which the command applied
	Block uint64

	// Upstream sequence for ordering validation
	SourceSequence int64

	// JSON-encoded command-specific data
	Payload []byte

	// SHA-256 of state AFTER applying this command
	StateHash [32]byte

	// Previous command's state hash (chain integrity)
	PrevHash [32]byte
}

// Command is the interface all lifecycle commands must implement
type Command interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// CommandType returns the discriminator
	CommandType() CommandType

	// Net returns the subnet context (nil for global commands)
	Net() *nettypes.NetUid

	// SourceSequence returns upstream ordering key
	SourceSequence() int64
}

func (ct CommandType) String() string {
	switch ct {
	case CommandTypeRegisterNetwork:
		return "RegisterNetwork"
	case CommandTypeDissolveNetwork:
		return "DissolveNetwork"
	case CommandTypeStakeDeposited:
		return "StakeDeposited"
	case CommandTypeStakeWithdrawn:
		return "StakeWithdrawn"
	case CommandTypeEmissionRecorded:
		return "EmissionRecorded"
	case CommandTypeBlockAdvanced:
		return "BlockAdvanced"
	case CommandTypePruneQuery:
		return "PruneQuery"
	default:
		return "Unknown"
	}
}
