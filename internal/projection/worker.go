package projection

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/0xShonen/subtensor/internal/core"
	"github.com/0xShonen/subtensor/internal/event"
	"github.com/0xShonen/subtensor/internal/observability"
)

// ProjectionWorker updates read-side tables from applied commands. The
// projection channel is non-blocking with drop: if this worker falls
// behind, projections are rebuilt from the command log.
type ProjectionWorker struct {
	db        *sql.DB
	inputChan <-chan core.CoreOutput
	metrics   *observability.Metrics
	lastSeq   int64
}

func NewProjectionWorker(db *sql.DB, inputChan <-chan core.CoreOutput, metrics *observability.Metrics) *ProjectionWorker {
	return &ProjectionWorker{
		db:        db,
		inputChan: inputChan,
		metrics:   metrics,
	}
}

// Run starts the projection worker loop.
func (pw *ProjectionWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case output, ok := <-pw.inputChan:
			if !ok {
				return nil
			}

			if err := pw.processOutput(ctx, output); err != nil {
				log.Printf("WARN: projection update failed at seq=%d: %v",
					output.Envelope.Sequence, err)
				// Continue; projections are eventually consistent
				// and can be rebuilt from the command log
			}

			pw.lastSeq = output.Envelope.Sequence
		}
	}
}

func (pw *ProjectionWorker) processOutput(ctx context.Context, output core.CoreOutput) error {
	start := time.Now()
	env := output.Envelope

	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if env.CommandType == event.CommandTypeRegisterNetwork && output.AssignedNet != nil {
		if err := pw.upsertNetwork(ctx, tx, env, int16(*output.AssignedNet)); err != nil {
			return fmt.Errorf("network projection: %w", err)
		}
	}

	for _, s := range output.Settlements {
		if err := pw.retireNetwork(ctx, tx, int16(s.NetUid), env.Sequence); err != nil {
			return fmt.Errorf("retire network %d: %w", s.NetUid, err)
		}
		for _, p := range s.Payouts {
			if err := pw.creditBalance(ctx, tx, p.Coldkey.String(), int64(p.Amount), env.Sequence); err != nil {
				return fmt.Errorf("balance projection: %w", err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, env.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	if pw.metrics != nil {
		pw.metrics.ProjectionUpdateDur.WithLabelValues(env.CommandType.String()).
			Observe(time.Since(start).Seconds())
	}
	return nil
}

func (pw *ProjectionWorker) upsertNetwork(ctx context.Context, tx *sql.Tx, env *event.Envelope, netuid int16) error {
	var reg event.RegisterNetwork
	if err := json.Unmarshal(env.Payload, &reg); err != nil {
		return fmt.Errorf("decode register payload: %w", err)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.networks (netuid, owner_coldkey, lock, registered_block, registered_sequence, dissolved)
		VALUES ($1, $2, $3, $4, $5, FALSE)
		ON CONFLICT (netuid) DO UPDATE SET
			owner_coldkey = EXCLUDED.owner_coldkey,
			lock = EXCLUDED.lock,
			registered_block = EXCLUDED.registered_block,
			registered_sequence = EXCLUDED.registered_sequence,
			dissolved = FALSE,
			dissolved_sequence = NULL
	`, netuid, reg.Coldkey.String(), int64(reg.Lock), int64(env.Block), env.Sequence)
	return err
}

func (pw *ProjectionWorker) retireNetwork(ctx context.Context, tx *sql.Tx, netuid int16, seq int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE projections.networks
		SET dissolved = TRUE, dissolved_sequence = $2
		WHERE netuid = $1
	`, netuid, seq)
	return err
}

func (pw *ProjectionWorker) creditBalance(ctx context.Context, tx *sql.Tx, coldkey string, amount int64, seq int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.coldkey_balances (coldkey, balance, last_sequence)
		VALUES ($1, $2, $3)
		ON CONFLICT (coldkey)
		DO UPDATE SET balance = projections.coldkey_balances.balance + $2, last_sequence = $3
	`, coldkey, amount, seq)
	return err
}

// RebuildProjections rebuilds the read-side tables from the command
// log. Projections are derived state; the log is the source of truth.
func RebuildProjections(ctx context.Context, db *sql.DB) error {
	truncateStatements := []string{
		`TRUNCATE projections.coldkey_balances`,
		`TRUNCATE projections.networks`,
		`DELETE FROM projections.watermark WHERE worker_id = 'main'`,
	}

	for _, stmt := range truncateStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	// Balances: sum of all payouts per coldkey.
	_, err := db.ExecContext(ctx, `
		INSERT INTO projections.coldkey_balances (coldkey, balance, last_sequence)
		SELECT coldkey, SUM(amount), MAX(sequence)
		FROM command_log.payouts
		GROUP BY coldkey
	`)
	if err != nil {
		return fmt.Errorf("rebuild balances: %w", err)
	}

	// Networks: registrations, retired where a later settlement exists.
	_, err = db.ExecContext(ctx, `
		INSERT INTO projections.networks (netuid, owner_coldkey, lock, registered_block, registered_sequence, dissolved, dissolved_sequence)
		SELECT DISTINCT ON (c.netuid)
			c.netuid,
			c.payload->>'coldkey',
			(c.payload->>'lock')::BIGINT,
			c.block,
			c.sequence,
			s.sequence IS NOT NULL,
			s.sequence
		FROM command_log.commands c
		LEFT JOIN command_log.settlements s
			ON s.netuid = c.netuid AND s.sequence > c.sequence
		WHERE c.command_type = 'RegisterNetwork'
		ORDER BY c.netuid, c.sequence DESC, s.sequence ASC
	`)
	if err != nil {
		return fmt.Errorf("rebuild networks: %w", err)
	}

	log.Println("INFO: projection rebuild complete")
	return nil
}
