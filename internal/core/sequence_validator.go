package core

import (
	"fmt"
)

// SequenceValidator validates source sequences per partition.
// Not thread-safe; only accessed from the single-threaded core.
type SequenceValidator struct {
	expectedNextSeq map[string]int64 // partition -> next expected sequence

	gaps       map[string]int64
	outOfOrder map[string]int64
	blockGaps  int64
}

func NewSequenceValidator() *SequenceValidator {
	return &SequenceValidator{
		expectedNextSeq: make(map[string]int64),
		gaps:            make(map[string]int64),
		outOfOrder:      make(map[string]int64),
	}
}

// ValidateSequence checks source sequence ordering for a partition.
func (sv *SequenceValidator) ValidateSequence(
	partition string,
	sourceSequence int64,
	idempotencyKey string,
	isDuplicate bool,
) error {
	expected := sv.expectedNextSeq[partition]

	if sourceSequence < expected {
		if isDuplicate {
			// Already processed, replay is expected
			return nil
		}
		// Out-of-order delivery of a NEW command
		sv.outOfOrder[partition]++
		return fmt.Errorf("out-of-order command: partition=%s, expected=%d, got=%d",
			partition, expected, sourceSequence)
	}

	if sourceSequence == expected {
		sv.expectedNextSeq[partition] = expected + 1
		return nil
	}

	// sourceSequence > expected - gap detected
	sv.gaps[partition]++
	return fmt.Errorf("sequence gap: partition=%s, expected=%d, got=%d",
		partition, expected, sourceSequence)
}

// ValidateBlockSequence validates block-height commands. The chain feed
// may skip heights with no lifecycle activity, so gaps are tolerated;
// stale heights are silently ignored.
func (sv *SequenceValidator) ValidateBlockSequence(height int64) error {
	const partition = "blocks"

	expected := sv.expectedNextSeq[partition]

	if height <= expected {
		// Stale - silently ignore (idempotent)
		return nil
	}

	if height > expected+1 {
		sv.blockGaps++
	}

	sv.expectedNextSeq[partition] = height + 1

	return nil
}

// GetExpectedSequence returns next expected sequence for a partition.
func (sv *SequenceValidator) GetExpectedSequence(partition string) int64 {
	return sv.expectedNextSeq[partition]
}

// SetExpectedSequence initializes expected sequence (used during recovery).
func (sv *SequenceValidator) SetExpectedSequence(partition string, seq int64) {
	sv.expectedNextSeq[partition] = seq
}

// GetAllPartitions dumps validator state for snapshots.
func (sv *SequenceValidator) GetAllPartitions() map[string]int64 {
	out := make(map[string]int64, len(sv.expectedNextSeq))
	for k, v := range sv.expectedNextSeq {
		out[k] = v
	}
	return out
}

// Gaps returns the gap count for a partition.
func (sv *SequenceValidator) Gaps(partition string) int64 {
	return sv.gaps[partition]
}

// OutOfOrder returns the out-of-order count for a partition.
func (sv *SequenceValidator) OutOfOrder(partition string) int64 {
	return sv.outOfOrder[partition]
}

// BlockGaps returns the number of tolerated block-height gaps.
func (sv *SequenceValidator) BlockGaps() int64 {
	return sv.blockGaps
}
