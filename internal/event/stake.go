package event

import (
	"github.com/google/uuid"

	"github.com/0xShonen/subtensor/internal/nettypes"
)

type StakeDeposited struct {
	DepositID uuid.UUID       `json:"deposit_id"`
	Hotkey    uuid.UUID       `json:"hotkey"`
	Coldkey   uuid.UUID       `json:"coldkey"`
	NetUid    nettypes.NetUid `json:"netuid"`
	Amount    nettypes.Alpha  `json:"amount"`
	Sequence  int64           `json:"sequence"`
}

func (s *StakeDeposited) IdempotencyKey() string {
	return "stake:" + s.DepositID.String()
}

func (s *StakeDeposited) CommandType() CommandType {
	return CommandTypeStakeDeposited
}

func (s *StakeDeposited) Net() *nettypes.NetUid {
	n := s.NetUid
	return &n
}

func (s *StakeDeposited) SourceSequence() int64 {
	return s.Sequence
}

type StakeWithdrawn struct {
	WithdrawalID uuid.UUID       `json:"withdrawal_id"`
	Hotkey       uuid.UUID       `json:"hotkey"`
	Coldkey      uuid.UUID       `json:"coldkey"`
	NetUid       nettypes.NetUid `json:"netuid"`
	Amount       nettypes.Alpha  `json:"amount"`
	Sequence     int64           `json:"sequence"`
}

func (s *StakeWithdrawn) IdempotencyKey() string {
	return "unstake:" + s.WithdrawalID.String()
}

func (s *StakeWithdrawn) CommandType() CommandType {
	return CommandTypeStakeWithdrawn
}

func (s *StakeWithdrawn) Net() *nettypes.NetUid {
	n := s.NetUid
	return &n
}

func (s *StakeWithdrawn) SourceSequence() int64 {
	return s.Sequence
}
