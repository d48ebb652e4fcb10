package event

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/0xShonen/subtensor/internal/nettypes"
)

// RegisterNetwork requests admission of a new subnet. RequestID is
// minted by the submitter and doubles as the dedup key, since the
// assigned netuid is not known until the command applies.
type RegisterNetwork struct {
	RequestID uuid.UUID    `json:"request_id"`
	Coldkey   uuid.UUID    `json:"coldkey"`
	Hotkey    uuid.UUID    `json:"hotkey"`
	Lock      nettypes.Tao `json:"lock"`
	Sequence  int64        `json:"sequence"`
}

func (r *RegisterNetwork) IdempotencyKey() string {
	return "register:" + r.RequestID.String()
}

func (r *RegisterNetwork) CommandType() CommandType {
	return CommandTypeRegisterNetwork
}

func (r *RegisterNetwork) Net() *nettypes.NetUid {
	return nil // Target subnet is assigned by the core
}

func (r *RegisterNetwork) SourceSequence() int64 {
	return r.Sequence
}

// DissolveNetwork requests full settlement and teardown of a subnet.
type DissolveNetwork struct {
	RequestID uuid.UUID       `json:"request_id"`
	NetUid    nettypes.NetUid `json:"netuid"`
	Sequence  int64           `json:"sequence"`
}

func (d *DissolveNetwork) IdempotencyKey() string {
	return fmt.Sprintf("dissolve:%d:%s", d.NetUid, d.RequestID)
}

func (d *DissolveNetwork) CommandType() CommandType {
	return CommandTypeDissolveNetwork
}

func (d *DissolveNetwork) Net() *nettypes.NetUid {
	n := d.NetUid
	return &n
}

func (d *DissolveNetwork) SourceSequence() int64 {
	return d.Sequence
}

// PruneQuery asks the core which subnet the eviction selector would
// pick right now. Read-only.
type PruneQuery struct {
	RequestID uuid.UUID `json:"request_id"`
	Sequence  int64     `json:"sequence"`
}

func (p *PruneQuery) IdempotencyKey() string {
	return "prune:" + p.RequestID.String()
}

func (p *PruneQuery) CommandType() CommandType {
	return CommandTypePruneQuery
}

func (p *PruneQuery) Net() *nettypes.NetUid {
	return nil
}

func (p *PruneQuery) SourceSequence() int64 {
	return p.Sequence
}
