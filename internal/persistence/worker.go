package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/0xShonen/subtensor/internal/core"
	"github.com/0xShonen/subtensor/internal/observability"
)

// PersistenceWorker drains the persist channel and batch-writes to
// Postgres. The core sends on this channel with a BLOCKING send, so if
// this worker falls behind the core stalls rather than losing an
// applied command.
type PersistenceWorker struct {
	writer       *CommandLogWriter
	db           *sql.DB
	inputChan    <-chan core.CoreOutput
	batchSize    int
	flushTimeout time.Duration
	metrics      *observability.Metrics
}

func NewPersistenceWorker(
	db *sql.DB,
	inputChan <-chan core.CoreOutput,
	batchSize int,
	flushTimeout time.Duration,
	metrics *observability.Metrics,
) *PersistenceWorker {
	return &PersistenceWorker{
		writer:       NewCommandLogWriter(db),
		db:           db,
		inputChan:    inputChan,
		batchSize:    batchSize,
		flushTimeout: flushTimeout,
		metrics:      metrics,
	}
}

type rowBatch struct {
	commands    []CommandRow
	settlements []SettlementRow
	payouts     []PayoutRow
}

func (b *rowBatch) add(output core.CoreOutput) {
	env := output.Envelope

	// Registrations carry no target subnet in the envelope; the log row
	// records the netuid the core assigned.
	var netuid *int16
	if env.Net != nil {
		n := int16(*env.Net)
		netuid = &n
	} else if output.AssignedNet != nil {
		n := int16(*output.AssignedNet)
		netuid = &n
	}
	b.commands = append(b.commands, CommandRow{
		Sequence:       env.Sequence,
		CommandType:    env.CommandType.String(),
		IdempotencyKey: env.IdempotencyKey,
		NetUid:         netuid,
		Block:          int64(env.Block),
		Payload:        env.Payload,
		StateHash:      env.StateHash[:],
		PrevHash:       env.PrevHash[:],
		SourceSequence: env.SourceSequence,
		Timestamp:      time.Now().UTC(),
	})

	for _, s := range output.Settlements {
		b.settlements = append(b.settlements, SettlementRow{
			Sequence:      env.Sequence,
			NetUid:        int16(s.NetUid),
			Pot:           int64(s.Pot),
			LPCollateral:  int64(s.LPCollateral),
			OwnerRefund:   int64(s.OwnerRefund),
			Unclaimed:     int64(s.Unclaimed),
			Stakers:       int32(s.Stakers),
			StoragePurged: int32(s.StoragePurged),
		})
		for _, p := range s.Payouts {
			id := p.ID
			if id == uuid.Nil {
				id = uuid.New()
			}
			b.payouts = append(b.payouts, PayoutRow{
				PayoutID: id.String(),
				Sequence: env.Sequence,
				NetUid:   int16(s.NetUid),
				Coldkey:  p.Coldkey.String(),
				Amount:   int64(p.Amount),
				Kind:     string(p.Kind),
			})
		}
	}
}

func (b *rowBatch) reset() {
	b.commands = b.commands[:0]
	b.settlements = b.settlements[:0]
	b.payouts = b.payouts[:0]
}

// Run starts the persistence worker loop. It batches incoming outputs
// and flushes either when the batch is full or the flush timeout
// expires. Blocks until ctx is cancelled.
func (pw *PersistenceWorker) Run(ctx context.Context) error {
	batch := &rowBatch{
		commands:    make([]CommandRow, 0, pw.batchSize),
		settlements: make([]SettlementRow, 0, pw.batchSize),
		payouts:     make([]PayoutRow, 0, pw.batchSize*4),
	}

	timer := time.NewTimer(pw.flushTimeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			if len(batch.commands) > 0 {
				if err := pw.flush(context.Background(), batch); err != nil {
					log.Printf("ERROR: final flush failed: %v", err)
				}
			}
			return ctx.Err()

		case output, ok := <-pw.inputChan:
			if !ok {
				if len(batch.commands) > 0 {
					if err := pw.flush(context.Background(), batch); err != nil {
						log.Printf("ERROR: final flush failed: %v", err)
					}
				}
				return nil
			}

			batch.add(output)

			if len(batch.commands) >= pw.batchSize {
				if err := pw.flushWithRetry(ctx, batch); err != nil {
					log.Printf("ERROR: batch flush failed after retries: %v", err)
				}
				batch.reset()
				timer.Reset(pw.flushTimeout)
			}

		case <-timer.C:
			if len(batch.commands) > 0 {
				if err := pw.flushWithRetry(ctx, batch); err != nil {
					log.Printf("ERROR: timeout flush failed after retries: %v", err)
				}
				batch.reset()
			}
			timer.Reset(pw.flushTimeout)
		}
	}
}

// flushWithRetry retries with exponential backoff. The worker never
// drops a batch: it retries until the write succeeds or the context is
// cancelled, in which case it attempts one final flush.
func (pw *PersistenceWorker) flushWithRetry(ctx context.Context, batch *rowBatch) error {
	backoff := 100 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			log.Printf("WARN: persistence retry attempt %d (backoff=%v, commands=%d)",
				attempt, backoff, len(batch.commands))
			if pw.metrics != nil {
				pw.metrics.PersistRetry.Inc()
			}
			select {
			case <-ctx.Done():
				finalErr := pw.flush(context.Background(), batch)
				if finalErr != nil {
					return fmt.Errorf("final flush on shutdown failed: %w", finalErr)
				}
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
		}

		err := pw.flush(ctx, batch)
		if err == nil {
			if attempt > 0 {
				log.Printf("INFO: persistence flush succeeded after %d retries", attempt)
			}
			return nil
		}

		if pw.metrics != nil {
			pw.metrics.PersistErrors.WithLabelValues("retry").Inc()
		}
	}
}

func (pw *PersistenceWorker) flush(ctx context.Context, batch *rowBatch) error {
	start := time.Now()

	tx, err := pw.db.BeginTx(ctx, nil)
	if err != nil {
		if pw.metrics != nil {
			pw.metrics.PersistErrors.WithLabelValues("tx_begin").Inc()
		}
		return err
	}
	defer tx.Rollback()

	if err := pw.writer.WriteCommandBatch(ctx, tx, batch.commands); err != nil {
		if pw.metrics != nil {
			pw.metrics.PersistErrors.WithLabelValues("write_commands").Inc()
		}
		return err
	}
	if err := pw.writer.WriteSettlementBatch(ctx, tx, batch.settlements); err != nil {
		if pw.metrics != nil {
			pw.metrics.PersistErrors.WithLabelValues("write_settlements").Inc()
		}
		return err
	}
	if err := pw.writer.WritePayoutBatch(ctx, tx, batch.payouts); err != nil {
		if pw.metrics != nil {
			pw.metrics.PersistErrors.WithLabelValues("write_payouts").Inc()
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		if pw.metrics != nil {
			pw.metrics.PersistErrors.WithLabelValues("tx_commit").Inc()
		}
		return err
	}

	if pw.metrics != nil {
		pw.metrics.PersistBatchDur.Observe(time.Since(start).Seconds())
		pw.metrics.PersistBatchSize.Observe(float64(len(batch.commands)))
		pw.metrics.PersistCommandsWritten.Add(float64(len(batch.commands)))
		pw.metrics.PersistPayoutsWritten.Add(float64(len(batch.payouts)))
		pw.metrics.PersistLastSequence.Set(float64(batch.commands[len(batch.commands)-1].Sequence))
	}

	return nil
}
