package ingestion_test

import (
	"testing"

	"github.com/google/uuid"

	"github.com/0xShonen/subtensor/internal/event"
	"github.com/0xShonen/subtensor/internal/ingestion"
)

func raw(data string) ingestion.RawCommand {
	return ingestion.RawCommand{Data: []byte(data)}
}

func TestParseRegisterNetwork(t *testing.T) {
	requestID := uuid.New()
	coldkey := uuid.New()
	hotkey := uuid.New()

	data := `{
		"request_id": "` + requestID.String() + `",
		"coldkey": "` + coldkey.String() + `",
		"hotkey": "` + hotkey.String() + `",
		"lock": 100000000000,
		"sequence": 7
	}`

	cmd, err := ingestion.ParseRawCommand(raw(data), "RegisterNetwork")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	reg, ok := cmd.(*event.RegisterNetwork)
	if !ok {
		t.Fatalf("expected *event.RegisterNetwork, got %T", cmd)
	}
	if reg.RequestID != requestID {
		t.Errorf("request_id mismatch: %s", reg.RequestID)
	}
	if reg.Coldkey != coldkey || reg.Hotkey != hotkey {
		t.Error("key mismatch")
	}
	if uint64(reg.Lock) != 100_000_000_000 {
		t.Errorf("lock mismatch: %d", reg.Lock)
	}
	if reg.Sequence != 7 {
		t.Errorf("sequence mismatch: %d", reg.Sequence)
	}
}

func TestParseRegisterNetwork_BadUUID(t *testing.T) {
	data := `{"request_id": "not-a-uuid", "coldkey": "also-bad", "hotkey": "nope", "lock": 1}`
	_, err := ingestion.ParseRawCommand(raw(data), "RegisterNetwork")
	if err == nil {
		t.Fatal("expected error for malformed uuid")
	}
}

func TestParseDissolveNetwork(t *testing.T) {
	requestID := uuid.New()
	data := `{"request_id": "` + requestID.String() + `", "netuid": 3, "sequence": 12}`

	cmd, err := ingestion.ParseRawCommand(raw(data), "DissolveNetwork")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	dis, ok := cmd.(*event.DissolveNetwork)
	if !ok {
		t.Fatalf("expected *event.DissolveNetwork, got %T", cmd)
	}
	if dis.NetUid != 3 {
		t.Errorf("netuid mismatch: %d", dis.NetUid)
	}
	if dis.Sequence != 12 {
		t.Errorf("sequence mismatch: %d", dis.Sequence)
	}
}

func TestParseStakeDeposited(t *testing.T) {
	depositID := uuid.New()
	hotkey := uuid.New()
	coldkey := uuid.New()

	data := `{
		"deposit_id": "` + depositID.String() + `",
		"hotkey": "` + hotkey.String() + `",
		"coldkey": "` + coldkey.String() + `",
		"netuid": 5,
		"amount": 12345,
		"sequence": 99
	}`

	cmd, err := ingestion.ParseRawCommand(raw(data), "StakeDeposited")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	dep, ok := cmd.(*event.StakeDeposited)
	if !ok {
		t.Fatalf("expected *event.StakeDeposited, got %T", cmd)
	}
	if dep.NetUid != 5 || uint64(dep.Amount) != 12345 || dep.Sequence != 99 {
		t.Errorf("fields mismatch: %+v", dep)
	}
	if dep.Hotkey != hotkey || dep.Coldkey != coldkey {
		t.Error("key mismatch")
	}
}

func TestParseStakeWithdrawn(t *testing.T) {
	withdrawalID := uuid.New()
	data := `{
		"withdrawal_id": "` + withdrawalID.String() + `",
		"hotkey": "` + uuid.New().String() + `",
		"coldkey": "` + uuid.New().String() + `",
		"netuid": 2,
		"amount": 500,
		"sequence": 1
	}`

	cmd, err := ingestion.ParseRawCommand(raw(data), "StakeWithdrawn")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	wd := cmd.(*event.StakeWithdrawn)
	if wd.WithdrawalID != withdrawalID || wd.NetUid != 2 || uint64(wd.Amount) != 500 {
		t.Errorf("fields mismatch: %+v", wd)
	}
}

func TestParseEmissionRecorded(t *testing.T) {
	data := `{"netuid": 4, "epoch": 17, "amount": 999}`

	cmd, err := ingestion.ParseRawCommand(raw(data), "EmissionRecorded")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	em := cmd.(*event.EmissionRecorded)
	if em.NetUid != 4 || em.Epoch != 17 || uint64(em.Amount) != 999 {
		t.Errorf("fields mismatch: %+v", em)
	}
	if em.SourceSequence() != 17 {
		t.Errorf("source sequence should be the epoch, got %d", em.SourceSequence())
	}
}

func TestParseBlockAdvanced(t *testing.T) {
	data := `{"height": 864001}`

	cmd, err := ingestion.ParseRawCommand(raw(data), "BlockAdvanced")
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	blk := cmd.(*event.BlockAdvanced)
	if blk.Height != 864_001 {
		t.Errorf("height mismatch: %d", blk.Height)
	}
}

func TestParseUnknownType(t *testing.T) {
	_, err := ingestion.ParseRawCommand(raw(`{}`), "SomethingElse")
	if err == nil {
		t.Fatal("expected error for unknown command type")
	}
}

func TestParseMalformedJSON(t *testing.T) {
	_, err := ingestion.ParseRawCommand(raw(`{not json`), "EmissionRecorded")
	if err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}
