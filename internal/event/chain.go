package event

import (
	"fmt"

	"github.com/0xShonen/subtensor/internal/nettypes"
)

// EmissionRecorded reports one epoch's alpha emission on a subnet.
// Idempotency key: "{netuid}:{epoch}", one emission per subnet epoch.
type EmissionRecorded struct {
	NetUid nettypes.NetUid `json:"netuid"`
	Epoch  int64           `json:"epoch"`
	Amount nettypes.Alpha  `json:"amount"`
}

func (e *EmissionRecorded) IdempotencyKey() string {
	return fmt.Sprintf("emission:%d:%d", e.NetUid, e.Epoch)
}

func (e *EmissionRecorded) CommandType() CommandType {
	return CommandTypeEmissionRecorded
}

func (e *EmissionRecorded) Net() *nettypes.NetUid {
	n := e.NetUid
	return &n
}

func (e *EmissionRecorded) SourceSequence() int64 {
	return e.Epoch
}

// BlockAdvanced moves the chain clock forward. Block heights may skip
// when the upstream feed drops blocks with no lifecycle activity.
type BlockAdvanced struct {
	Height uint64 `json:"height"`
}

func (b *BlockAdvanced) IdempotencyKey() string {
	return fmt.Sprintf("block:%d", b.Height)
}

func (b *BlockAdvanced) CommandType() CommandType {
	return CommandTypeBlockAdvanced
}

func (b *BlockAdvanced) Net() *nettypes.NetUid {
	return nil
}

func (b *BlockAdvanced) SourceSequence() int64 {
	return int64(b.Height)
}
