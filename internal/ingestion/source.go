package ingestion

import (
	"context"
	"sync"

	"github.com/0xShonen/subtensor/internal/core"
	"github.com/0xShonen/subtensor/internal/event"
)

// Request carries one lifecycle command into the core loop together
// with a reply channel, so RPC callers learn the outcome (assigned
// netuid, settlement, or rejection) synchronously.
type Request struct {
	Cmd   event.Command
	Reply chan Response
}

// Response is the core's answer to a Request.
type Response struct {
	Result *core.Result
	Err    error
}

// LifecycleSource serializes RPC-submitted lifecycle commands into one
// ordered stream. It owns the sequence numbering of that stream:
// registrations and dissolutions are stamped here so the core sees a
// contiguous sequence regardless of how many RPC callers race.
type LifecycleSource struct {
	requests chan Request

	mu      sync.Mutex
	nextSeq int64
}

// NewLifecycleSource creates a source whose next stamped sequence is
// startSeq. On restart, pass the core's expected sequence for the
// lifecycle partition.
func NewLifecycleSource(buffer int, startSeq int64) *LifecycleSource {
	return &LifecycleSource{
		requests: make(chan Request, buffer),
		nextSeq:  startSeq,
	}
}

// Requests is consumed by the core loop.
func (s *LifecycleSource) Requests() <-chan Request {
	return s.requests
}

// Submit stamps the command, queues it for the core, and blocks until
// the core replies or ctx expires.
func (s *LifecycleSource) Submit(ctx context.Context, cmd event.Command) (*core.Result, error) {
	s.stamp(cmd)

	req := Request{Cmd: cmd, Reply: make(chan Response, 1)}
	select {
	case s.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case resp := <-req.Reply:
		return resp.Result, resp.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// stamp assigns the next lifecycle sequence. Queries are read-only and
// never consume a slot.
func (s *LifecycleSource) stamp(cmd event.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch c := cmd.(type) {
	case *event.RegisterNetwork:
		c.Sequence = s.nextSeq
		s.nextSeq++
	case *event.DissolveNetwork:
		c.Sequence = s.nextSeq
		s.nextSeq++
	}
}
