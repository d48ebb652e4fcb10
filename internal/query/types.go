package query

// BalanceResponse is a coldkey's settled tao balance.
type BalanceResponse struct {
	Coldkey      string `json:"coldkey"`
	Balance      int64  `json:"balance"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// NetworkResponse is one subnet's registration state.
type NetworkResponse struct {
	NetUid             uint16 `json:"netuid"`
	OwnerColdkey       string `json:"owner_coldkey"`
	Lock               int64  `json:"lock"`
	RegisteredBlock    int64  `json:"registered_block"`
	RegisteredSequence int64  `json:"registered_sequence"`
	Dissolved          bool   `json:"dissolved"`
	DissolvedSequence  *int64 `json:"dissolved_sequence,omitempty"`
	AsOfSequence       int64  `json:"as_of_sequence"`
}

// SettlementResponse is one recorded dissolution.
type SettlementResponse struct {
	Sequence      int64  `json:"sequence"`
	NetUid        uint16 `json:"netuid"`
	Pot           int64  `json:"pot"`
	LPCollateral  int64  `json:"lp_collateral"`
	OwnerRefund   int64  `json:"owner_refund"`
	Unclaimed     int64  `json:"unclaimed"`
	Stakers       int32  `json:"stakers"`
	StoragePurged int32  `json:"storage_purged"`
	AsOfSequence  int64  `json:"as_of_sequence"`
}

// PayoutResponse is one tao credit from a settlement.
type PayoutResponse struct {
	PayoutID     string `json:"payout_id"`
	Sequence     int64  `json:"sequence"`
	NetUid       uint16 `json:"netuid"`
	Coldkey      string `json:"coldkey"`
	Amount       int64  `json:"amount"`
	Kind         string `json:"kind"`
	AsOfSequence int64  `json:"as_of_sequence"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy       bool    `json:"is_healthy"`
	HashChainBreaks []int64 `json:"hash_chain_breaks,omitempty"`
}
