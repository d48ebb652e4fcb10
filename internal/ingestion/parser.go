package ingestion

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/0xShonen/subtensor/internal/event"
	"github.com/0xShonen/subtensor/internal/nettypes"
)

// ParseRawCommand converts a RawCommand (JSON bytes + command type
// string) into a typed event.Command. The ingestion shell validates and
// parses before anything reaches the single-threaded core.
func ParseRawCommand(raw RawCommand, commandType string) (event.Command, error) {
	switch commandType {
	case "RegisterNetwork":
		return ParseRegisterNetwork(raw.Data)
	case "DissolveNetwork":
		return ParseDissolveNetwork(raw.Data)
	case "StakeDeposited":
		return parseStakeDeposited(raw.Data)
	case "StakeWithdrawn":
		return parseStakeWithdrawn(raw.Data)
	case "EmissionRecorded":
		return parseEmissionRecorded(raw.Data)
	case "BlockAdvanced":
		return parseBlockAdvanced(raw.Data)
	default:
		return nil, fmt.Errorf("unknown command type: %s", commandType)
	}
}

// --- JSON wire formats ---
// Field names use snake_case to match upstream producers.

type registerNetworkJSON struct {
	RequestID string `json:"request_id"`
	Coldkey   string `json:"coldkey"`
	Hotkey    string `json:"hotkey"`
	Lock      uint64 `json:"lock"`
	Sequence  int64  `json:"sequence"`
}

// ParseRegisterNetwork is exported because the RPC server accepts the
// same wire format on the request-reply surface.
func ParseRegisterNetwork(data []byte) (*event.RegisterNetwork, error) {
	var j registerNetworkJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse RegisterNetwork: %w", err)
	}

	requestID, err := uuid.Parse(j.RequestID)
	if err != nil {
		return nil, fmt.Errorf("parse request_id: %w", err)
	}
	coldkey, err := uuid.Parse(j.Coldkey)
	if err != nil {
		return nil, fmt.Errorf("parse coldkey: %w", err)
	}
	hotkey, err := uuid.Parse(j.Hotkey)
	if err != nil {
		return nil, fmt.Errorf("parse hotkey: %w", err)
	}

	return &event.RegisterNetwork{
		RequestID: requestID,
		Coldkey:   coldkey,
		Hotkey:    hotkey,
		Lock:      nettypes.Tao(j.Lock),
		Sequence:  j.Sequence,
	}, nil
}

type dissolveNetworkJSON struct {
	RequestID string `json:"request_id"`
	NetUid    uint16 `json:"netuid"`
	Sequence  int64  `json:"sequence"`
}

// ParseDissolveNetwork is exported for the RPC server.
func ParseDissolveNetwork(data []byte) (*event.DissolveNetwork, error) {
	var j dissolveNetworkJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse DissolveNetwork: %w", err)
	}

	requestID, err := uuid.Parse(j.RequestID)
	if err != nil {
		return nil, fmt.Errorf("parse request_id: %w", err)
	}

	return &event.DissolveNetwork{
		RequestID: requestID,
		NetUid:    nettypes.NetUid(j.NetUid),
		Sequence:  j.Sequence,
	}, nil
}

type stakeDepositedJSON struct {
	DepositID string `json:"deposit_id"`
	Hotkey    string `json:"hotkey"`
	Coldkey   string `json:"coldkey"`
	NetUid    uint16 `json:"netuid"`
	Amount    uint64 `json:"amount"`
	Sequence  int64  `json:"sequence"`
}

func parseStakeDeposited(data []byte) (*event.StakeDeposited, error) {
	var j stakeDepositedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse StakeDeposited: %w", err)
	}

	depositID, err := uuid.Parse(j.DepositID)
	if err != nil {
		return nil, fmt.Errorf("parse deposit_id: %w", err)
	}
	hotkey, err := uuid.Parse(j.Hotkey)
	if err != nil {
		return nil, fmt.Errorf("parse hotkey: %w", err)
	}
	coldkey, err := uuid.Parse(j.Coldkey)
	if err != nil {
		return nil, fmt.Errorf("parse coldkey: %w", err)
	}

	return &event.StakeDeposited{
		DepositID: depositID,
		Hotkey:    hotkey,
		Coldkey:   coldkey,
		NetUid:    nettypes.NetUid(j.NetUid),
		Amount:    nettypes.Alpha(j.Amount),
		Sequence:  j.Sequence,
	}, nil
}

type stakeWithdrawnJSON struct {
	WithdrawalID string `json:"withdrawal_id"`
	Hotkey       string `json:"hotkey"`
	Coldkey      string `json:"coldkey"`
	NetUid       uint16 `json:"netuid"`
	Amount       uint64 `json:"amount"`
	Sequence     int64  `json:"sequence"`
}

func parseStakeWithdrawn(data []byte) (*event.StakeWithdrawn, error) {
	var j stakeWithdrawnJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse StakeWithdrawn: %w", err)
	}

	withdrawalID, err := uuid.Parse(j.WithdrawalID)
	if err != nil {
		return nil, fmt.Errorf("parse withdrawal_id: %w", err)
	}
	hotkey, err := uuid.Parse(j.Hotkey)
	if err != nil {
		return nil, fmt.Errorf("parse hotkey: %w", err)
	}
	coldkey, err := uuid.Parse(j.Coldkey)
	if err != nil {
		return nil, fmt.Errorf("parse coldkey: %w", err)
	}

	return &event.StakeWithdrawn{
		WithdrawalID: withdrawalID,
		Hotkey:       hotkey,
		Coldkey:      coldkey,
		NetUid:       nettypes.NetUid(j.NetUid),
		Amount:       nettypes.Alpha(j.Amount),
		Sequence:     j.Sequence,
	}, nil
}

type emissionRecordedJSON struct {
	NetUid uint16 `json:"netuid"`
	Epoch  int64  `json:"epoch"`
	Amount uint64 `json:"amount"`
}

func parseEmissionRecorded(data []byte) (*event.EmissionRecorded, error) {
	var j emissionRecordedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse EmissionRecorded: %w", err)
	}

	return &event.EmissionRecorded{
		NetUid: nettypes.NetUid(j.NetUid),
		Epoch:  j.Epoch,
		Amount: nettypes.Alpha(j.Amount),
	}, nil
}

type blockAdvancedJSON struct {
	Height uint64 `json:"height"`
}

func parseBlockAdvanced(data []byte) (*event.BlockAdvanced, error) {
	var j blockAdvancedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse BlockAdvanced: %w", err)
	}

	return &event.BlockAdvanced{Height: j.Height}, nil
}
