// Package query serves read-only requests from the Postgres projection
// tables and the command log. All responses carry as_of_sequence so
// callers can reason about freshness.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/0xShonen/subtensor/internal/observability"
)

type QueryService struct {
	db      *sql.DB
	metrics *observability.Metrics
}

func NewQueryService(db *sql.DB, metrics *observability.Metrics) *QueryService {
	return &QueryService{db: db, metrics: metrics}
}

// GetBalance returns a coldkey's settled tao balance.
func (qs *QueryService) GetBalance(ctx context.Context, coldkey uuid.UUID) (*BalanceResponse, error) {
	defer qs.observe("balance", time.Now())

	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	var balance int64
	err = qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(balance, 0) FROM projections.coldkey_balances
		WHERE coldkey = $1
	`, coldkey.String()).Scan(&balance)
	if err != nil && err != sql.ErrNoRows {
		qs.countError("balance")
		return nil, err
	}

	return &BalanceResponse{
		Coldkey:      coldkey.String(),
		Balance:      balance,
		AsOfSequence: asOfSeq,
	}, nil
}

// ListNetworks returns all subnets, live first, then dissolved.
func (qs *QueryService) ListNetworks(ctx context.Context, includeDissolved bool) ([]NetworkResponse, error) {
	defer qs.observe("networks", time.Now())

	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	q := `
		SELECT netuid, owner_coldkey, lock, registered_block, registered_sequence,
		       dissolved, dissolved_sequence
		FROM projections.networks
	`
	if !includeDissolved {
		q += " WHERE NOT dissolved"
	}
	q += " ORDER BY dissolved ASC, netuid ASC"

	rows, err := qs.db.QueryContext(ctx, q)
	if err != nil {
		qs.countError("networks")
		return nil, err
	}
	defer rows.Close()

	var networks []NetworkResponse
	for rows.Next() {
		var n NetworkResponse
		n.AsOfSequence = asOfSeq
		if err := rows.Scan(
			&n.NetUid, &n.OwnerColdkey, &n.Lock, &n.RegisteredBlock,
			&n.RegisteredSequence, &n.Dissolved, &n.DissolvedSequence,
		); err != nil {
			return nil, err
		}
		networks = append(networks, n)
	}

	return networks, rows.Err()
}

// GetSettlements returns dissolution records for a subnet, newest first.
// A recycled netuid can have several.
func (qs *QueryService) GetSettlements(ctx context.Context, netuid uint16, limit int) ([]SettlementResponse, error) {
	defer qs.observe("settlements", time.Now())

	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT sequence, netuid, pot, lp_collateral, owner_refund, unclaimed, stakers, storage_purged
		FROM command_log.settlements
		WHERE netuid = $1
		ORDER BY sequence DESC
		LIMIT $2
	`, int16(netuid), limit)
	if err != nil {
		qs.countError("settlements")
		return nil, err
	}
	defer rows.Close()

	var settlements []SettlementResponse
	for rows.Next() {
		var s SettlementResponse
		s.AsOfSequence = asOfSeq
		if err := rows.Scan(
			&s.Sequence, &s.NetUid, &s.Pot, &s.LPCollateral,
			&s.OwnerRefund, &s.Unclaimed, &s.Stakers, &s.StoragePurged,
		); err != nil {
			return nil, err
		}
		settlements = append(settlements, s)
	}

	return settlements, rows.Err()
}

// GetPayouts returns a coldkey's settlement credits with cursor-based
// pagination on sequence.
func (qs *QueryService) GetPayouts(
	ctx context.Context,
	coldkey uuid.UUID,
	limit int,
	beforeSequence *int64,
) ([]PayoutResponse, error) {
	defer qs.observe("payouts", time.Now())

	asOfSeq, err := qs.getWatermark(ctx)
	if err != nil {
		return nil, err
	}

	q := `
		SELECT payout_id, sequence, netuid, coldkey, amount, kind
		FROM command_log.payouts
		WHERE coldkey = $1
	`
	args := []interface{}{coldkey.String()}
	argIdx := 2

	if beforeSequence != nil {
		q += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *beforeSequence)
		argIdx++
	}

	q += " ORDER BY sequence DESC"
	q += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := qs.db.QueryContext(ctx, q, args...)
	if err != nil {
		qs.countError("payouts")
		return nil, err
	}
	defer rows.Close()

	var payouts []PayoutResponse
	for rows.Next() {
		var p PayoutResponse
		p.AsOfSequence = asOfSeq
		if err := rows.Scan(
			&p.PayoutID, &p.Sequence, &p.NetUid, &p.Coldkey, &p.Amount, &p.Kind,
		); err != nil {
			return nil, err
		}
		payouts = append(payouts, p)
	}

	return payouts, rows.Err()
}

// VerifyIntegrity checks hash chain continuity over the command log.
func (qs *QueryService) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	defer qs.observe("integrity", time.Now())

	report := &IntegrityReport{}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT c1.sequence
		FROM command_log.commands c1
		LEFT JOIN command_log.commands c2 ON c2.sequence = c1.sequence - 1
		WHERE c1.sequence > 0 AND c1.prev_hash != COALESCE(c2.state_hash, c1.prev_hash)
		LIMIT 10
	`)
	if err != nil {
		qs.countError("integrity")
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0
	return report, nil
}

// --- helpers ---

func (qs *QueryService) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := qs.db.QueryRowContext(ctx, `
		SELECT COALESCE(last_sequence, 0) FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}

func (qs *QueryService) observe(endpoint string, start time.Time) {
	if qs.metrics == nil {
		return
	}
	qs.metrics.QueryRequests.WithLabelValues(endpoint).Inc()
	qs.metrics.QueryDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

func (qs *QueryService) countError(endpoint string) {
	if qs.metrics != nil {
		qs.metrics.QueryErrors.WithLabelValues(endpoint).Inc()
	}
}
