package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// OutboundPublisher publishes applied commands to NATS for downstream
// consumers. Subjects follow the pattern:
// subtensor.lifecycle.applied.{command_type}[.{netuid}]
type OutboundPublisher struct {
	js        jetstream.JetStream
	inputChan <-chan PublishableCommand
}

// PublishableCommand is an applied command ready for outbound publishing.
type PublishableCommand struct {
	Sequence       int64       `json:"sequence"`
	CommandType    string      `json:"command_type"`
	IdempotencyKey string      `json:"idempotency_key"`
	NetUid         *uint16     `json:"netuid,omitempty"`
	Payload        interface{} `json:"payload"`
	StateHash      []byte      `json:"state_hash"`
	Timestamp      time.Time   `json:"timestamp"`
}

func NewOutboundPublisher(js jetstream.JetStream, inputChan <-chan PublishableCommand) *OutboundPublisher {
	return &OutboundPublisher{
		js:        js,
		inputChan: inputChan,
	}
}

// Run starts the outbound publisher loop.
func (op *OutboundPublisher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case cmd, ok := <-op.inputChan:
			if !ok {
				return nil
			}

			if err := op.publish(ctx, cmd); err != nil {
				log.Printf("WARN: outbound publish failed seq=%d: %v", cmd.Sequence, err)
				// Non-fatal: downstream consumers can query the command log directly
			}
		}
	}
}

func (op *OutboundPublisher) publish(ctx context.Context, cmd PublishableCommand) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	subject := fmt.Sprintf("subtensor.lifecycle.applied.%s", cmd.CommandType)
	if cmd.NetUid != nil {
		subject = fmt.Sprintf("%s.%d", subject, *cmd.NetUid)
	}

	_, err = op.js.Publish(ctx, subject, data)
	return err
}

// EnsureOutboundStream creates the outbound applied-commands stream.
func EnsureOutboundStream(ctx context.Context, js jetstream.JetStream) error {
	_, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      "SUBTENSOR_LIFECYCLE",
		Subjects:  []string{"subtensor.lifecycle.>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    72 * time.Hour,
		Replicas:  1,
	})
	if err != nil {
		return fmt.Errorf("create outbound stream: %w", err)
	}
	log.Println("INFO: ensured outbound stream SUBTENSOR_LIFECYCLE")
	return nil
}
