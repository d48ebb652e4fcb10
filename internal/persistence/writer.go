package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// CommandLogWriter writes applied commands and settlement records to
// Postgres using multi-row INSERT batches. Switch to pgx CopyFrom if
// batch sizes ever make the INSERT path the bottleneck.
type CommandLogWriter struct {
	db *sql.DB
}

// CommandRow is a row in command_log.commands.
type CommandRow struct {
	Sequence       int64
	CommandType    string
	IdempotencyKey string
	NetUid         *int16 // nil for subnet-less commands
	Block          int64
	Payload        []byte // JSON-encoded command
	StateHash      []byte
	PrevHash       []byte
	SourceSequence int64
	Timestamp      time.Time
}

// SettlementRow is a row in command_log.settlements.
type SettlementRow struct {
	Sequence      int64
	NetUid        int16
	Pot           int64
	LPCollateral  int64
	OwnerRefund   int64
	Unclaimed     int64
	Stakers       int32
	StoragePurged int32
}

// PayoutRow is a row in command_log.payouts.
type PayoutRow struct {
	PayoutID string
	Sequence int64
	NetUid   int16
	Coldkey  string
	Amount   int64
	Kind     string
}

func NewCommandLogWriter(db *sql.DB) *CommandLogWriter {
	return &CommandLogWriter{db: db}
}

// WriteCommandBatch writes a batch of commands inside tx. Conflicting
// sequences are skipped so replayed batches are idempotent.
func (w *CommandLogWriter) WriteCommandBatch(ctx context.Context, tx *sql.Tx, commands []CommandRow) error {
	if len(commands) == 0 {
		return nil
	}

	query := `INSERT INTO command_log.commands
		(sequence, command_type, idempotency_key, netuid, block, payload, state_hash, prev_hash, source_sequence, timestamp)
		VALUES `

	values := make([]string, 0, len(commands))
	args := make([]interface{}, 0, len(commands)*10)

	for i, c := range commands {
		base := i * 10
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8, base+9, base+10,
		))
		args = append(args,
			c.Sequence, c.CommandType, c.IdempotencyKey, c.NetUid, c.Block,
			c.Payload, c.StateHash, c.PrevHash, c.SourceSequence, c.Timestamp,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// WriteSettlementBatch writes settlement records inside tx.
func (w *CommandLogWriter) WriteSettlementBatch(ctx context.Context, tx *sql.Tx, settlements []SettlementRow) error {
	if len(settlements) == 0 {
		return nil
	}

	query := `INSERT INTO command_log.settlements
		(sequence, netuid, pot, lp_collateral, owner_refund, unclaimed, stakers, storage_purged)
		VALUES `

	values := make([]string, 0, len(settlements))
	args := make([]interface{}, 0, len(settlements)*8)

	for i, s := range settlements {
		base := i * 8
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6, base+7, base+8,
		))
		args = append(args,
			s.Sequence, s.NetUid, s.Pot, s.LPCollateral,
			s.OwnerRefund, s.Unclaimed, s.Stakers, s.StoragePurged,
		)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (sequence, netuid) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// WritePayoutBatch writes payout rows inside tx.
func (w *CommandLogWriter) WritePayoutBatch(ctx context.Context, tx *sql.Tx, payouts []PayoutRow) error {
	if len(payouts) == 0 {
		return nil
	}

	query := `INSERT INTO command_log.payouts
		(payout_id, sequence, netuid, coldkey, amount, kind)
		VALUES `

	values := make([]string, 0, len(payouts))
	args := make([]interface{}, 0, len(payouts)*6)

	for i, p := range payouts {
		base := i * 6
		values = append(values, fmt.Sprintf(
			"($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6,
		))
		args = append(args, p.PayoutID, p.Sequence, p.NetUid, p.Coldkey, p.Amount, p.Kind)
	}

	query += strings.Join(values, ", ")
	query += " ON CONFLICT (payout_id) DO NOTHING"

	_, err := tx.ExecContext(ctx, query, args...)
	return err
}
