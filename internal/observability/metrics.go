package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the subnet lifecycle service.
type Metrics struct {
	// --- Core processing ---
	CoreCommandsApplied  *prometheus.CounterVec
	CoreCommandsRejected *prometheus.CounterVec
	CoreCommandDuration  *prometheus.HistogramVec
	CoreSequence         prometheus.Gauge

	// --- Lifecycle ---
	NetworksLive         prometheus.Gauge
	NetworksRegistered   prometheus.Counter
	NetworksDissolved    prometheus.Counter
	EvictionsSelected    prometheus.Counter
	SettleDuration       prometheus.Histogram
	SettlePayouts        prometheus.Counter
	SettlePotDistributed prometheus.Counter
	SettleUnclaimedPot   prometheus.Counter
	SettleOwnerRefunds   prometheus.Counter
	StoragePurged        prometheus.Counter
	MigrationsRun        prometheus.Counter

	// --- Channel & backpressure ---
	ChannelSize         *prometheus.GaugeVec
	ChannelCapacity     *prometheus.GaugeVec
	ChannelUtilization  *prometheus.GaugeVec
	ProjectionDrops     *prometheus.CounterVec
	PublishDrops        prometheus.Counter
	PersistBackpressure prometheus.Counter

	// --- Idempotency & ordering ---
	IdempotencyDuplicates *prometheus.CounterVec
	DedupLRUSize          prometheus.Gauge
	DedupLRUEvictions     prometheus.Counter
	CommandSequenceGap    *prometheus.CounterVec
	CommandOutOfOrder     *prometheus.CounterVec

	// --- Persistence ---
	PersistCommandsWritten prometheus.Counter
	PersistPayoutsWritten  prometheus.Counter
	PersistBatchDur        prometheus.Histogram
	PersistBatchSize       prometheus.Histogram
	PersistErrors          *prometheus.CounterVec
	PersistRetry           prometheus.Counter
	PersistLastSequence    prometheus.Gauge

	// --- Snapshot & recovery ---
	SnapshotTaken     prometheus.Counter
	SnapshotDuration  prometheus.Histogram
	SnapshotSizeBytes prometheus.Gauge
	SnapshotLastSeq   prometheus.Gauge
	ReplayCommands    prometheus.Counter
	ReplayDuration    prometheus.Gauge

	// --- Projections ---
	ProjectionUpdateDur *prometheus.HistogramVec

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec

	// --- Ingestion ---
	NATSPullLatency *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		// Core processing
		CoreCommandsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "subtensor_core_commands_applied_total",
			Help: "Commands successfully applied by core",
		}, []string{"command_type"}),

		CoreCommandsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "subtensor_core_commands_rejected_total",
			Help: "Commands rejected (dedup, gap, validation)",
		}, []string{"command_type", "reason"}),

		CoreCommandDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "subtensor_core_command_apply_duration_seconds",
			Help:    "Time to apply a single command in core",
			Buckets: latencyBuckets,
		}, []string{"command_type"}),

		CoreSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "subtensor_core_sequence",
			Help: "Current global sequence number",
		}),

		// Lifecycle
		NetworksLive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "subtensor_networks_live",
			Help: "Live subnet count",
		}),

		NetworksRegistered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subtensor_networks_registered_total",
			Help: "Subnets admitted",
		}),

		NetworksDissolved: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subtensor_networks_dissolved_total",
			Help: "Subnets dissolved (explicit or evicted)",
		}),

		EvictionsSelected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subtensor_evictions_selected_total",
			Help: "Subnets picked by the eviction selector",
		}),

		SettleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "subtensor_settle_duration_seconds",
			Help:    "Time to settle one subnet end to end",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),

		SettlePayouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subtensor_settle_payouts_total",
			Help: "Individual payouts credited during settlement",
		}),

		SettlePotDistributed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subtensor_settle_pot_distributed_rao_total",
			Help: "Total tao distributed to stakers (rao)",
		}),

		SettleUnclaimedPot: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subtensor_settle_unclaimed_pot_rao_total",
			Help: "Pot left unclaimed when a subnet dissolved with zero stake weight (rao)",
		}),

		SettleOwnerRefunds: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subtensor_settle_owner_refunds_rao_total",
			Help: "Total lock refunds paid to subnet owners (rao)",
		}),

		StoragePurged: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subtensor_storage_collections_purged_total",
			Help: "Per-subnet storage collections removed or zeroed at teardown",
		}),

		MigrationsRun: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subtensor_state_migrations_run_total",
			Help: "One-shot state migrations executed",
		}),

		// Channel & backpressure
		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "subtensor_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "subtensor_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "subtensor_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		ProjectionDrops: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "subtensor_projection_drops_total",
			Help: "Outputs dropped due to full projection channel",
		}, []string{"projection"}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subtensor_publish_drops_total",
			Help: "Outbound events dropped due to full publish channel",
		}),

		PersistBackpressure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subtensor_persist_backpressure_total",
			Help: "Times core blocked on persist channel",
		}),

		// Idempotency & ordering
		IdempotencyDuplicates: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "subtensor_idempotency_duplicates_total",
			Help: "Duplicates caught (lru/postgres)",
		}, []string{"command_type", "tier"}),

		DedupLRUSize: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "subtensor_dedup_lru_size",
			Help: "Current LRU occupancy",
		}),

		DedupLRUEvictions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subtensor_dedup_lru_evictions_total",
			Help: "LRU evictions",
		}),

		CommandSequenceGap: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "subtensor_command_sequence_gap_total",
			Help: "Source sequence gaps",
		}, []string{"partition"}),

		CommandOutOfOrder: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "subtensor_command_out_of_order_total",
			Help: "Out-of-order rejections",
		}, []string{"partition"}),

		// Persistence
		PersistCommandsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subtensor_persist_commands_written_total",
			Help: "Commands written to Postgres",
		}),

		PersistPayoutsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subtensor_persist_payouts_written_total",
			Help: "Settlement payout rows written to Postgres",
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "subtensor_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "subtensor_persist_batch_size",
			Help:    "Commands per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "subtensor_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subtensor_persist_retry_total",
			Help: "Persistence retries",
		}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "subtensor_persist_last_sequence",
			Help: "Last persisted sequence",
		}),

		// Snapshot & recovery
		SnapshotTaken: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subtensor_snapshot_taken_total",
			Help: "Snapshots created",
		}),

		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "subtensor_snapshot_duration_seconds",
			Help:    "Snapshot creation time",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0},
		}),

		SnapshotSizeBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "subtensor_snapshot_size_bytes",
			Help: "Last snapshot size",
		}),

		SnapshotLastSeq: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "subtensor_snapshot_last_sequence",
			Help: "Sequence of last snapshot",
		}),

		ReplayCommands: promauto.NewCounter(prometheus.CounterOpts{
			Name: "subtensor_replay_commands_total",
			Help: "Commands replayed on startup",
		}),

		ReplayDuration: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "subtensor_replay_duration_seconds",
			Help: "Total replay time",
		}),

		// Projections
		ProjectionUpdateDur: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "subtensor_projection_update_duration_seconds",
			Help:    "Projection table update duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		}, []string{"projection"}),

		// Query API
		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "subtensor_query_requests_total",
			Help: "Query requests",
		}, []string{"endpoint", "status"}),

		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "subtensor_query_duration_seconds",
			Help:    "Query latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),

		QueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "subtensor_query_errors_total",
			Help: "Query errors",
		}, []string{"endpoint", "code"}),

		// Ingestion
		NATSPullLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "subtensor_nats_pull_latency_seconds",
			Help:    "NATS pull request latency",
			Buckets: []float64{0.00001, 0.000025, 0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01},
		}, []string{"subject"}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}
