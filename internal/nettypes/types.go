// Package nettypes holds the scalar types shared by every layer of the
// subnet ledger: network identifiers, balance units, and the fixed-point
// price representation used when converting between them.
package nettypes

import (
	"bytes"

	"github.com/google/uuid"
)

// NetUid identifies a subnet. Uids are recycled: after a network is
// dissolved its uid becomes available to the next registration.
type NetUid uint16

// Tao is a balance in rao, the base unit of the tao currency.
type Tao uint64

// Alpha is a balance in the subnet-local alpha currency, also in base units.
type Alpha uint64

// PriceScale is the fixed-point denominator for Price. A Price of
// PriceScale means one alpha converts to exactly one tao.
const PriceScale = 1_000_000_000

// Price is the tao-per-alpha conversion rate scaled by PriceScale.
type Price uint64

// OwnerCutDenom is the denominator of the owner emission cut. A cut of
// OwnerCutDenom means the owner received 100% of emitted alpha.
const OwnerCutDenom = 65535

// StakeKey addresses a single stake entry: one hotkey staked by one
// coldkey on one subnet.
type StakeKey struct {
	Hotkey  uuid.UUID
	Coldkey uuid.UUID
	Net     NetUid
}

// OwnerCredit is a tao amount owed to a coldkey, produced when pool
// liquidity is unwound during settlement.
type OwnerCredit struct {
	Owner  uuid.UUID
	Amount Tao
}

// CompareAccounts orders two account ids by their raw bytes. All
// deterministic iteration over accounts in the ledger uses this order.
func CompareAccounts(a, b uuid.UUID) int {
	return bytes.Compare(a[:], b[:])
}
