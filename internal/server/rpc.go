// Package server exposes the request-reply surface over core NATS:
// lifecycle commands (register, dissolve), the prune query, and read
// queries against the projections. High-throughput chain feeds use
// JetStream subjects instead (see internal/ingestion).
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/0xShonen/subtensor/internal/core"
	"github.com/0xShonen/subtensor/internal/event"
	"github.com/0xShonen/subtensor/internal/ingestion"
	"github.com/0xShonen/subtensor/internal/observability"
	"github.com/0xShonen/subtensor/internal/query"
)

// Request-reply subjects.
const (
	SubjectRegister    = "subtensor.rpc.register"
	SubjectDissolve    = "subtensor.rpc.dissolve"
	SubjectPruneQuery  = "subtensor.rpc.prune"
	SubjectBalance     = "subtensor.rpc.query.balance"
	SubjectNetworks    = "subtensor.rpc.query.networks"
	SubjectSettlements = "subtensor.rpc.query.settlements"
	SubjectPayouts     = "subtensor.rpc.query.payouts"
	SubjectIntegrity   = "subtensor.rpc.query.integrity"
)

const rpcTimeout = 10 * time.Second

// RPCServer handles the request-reply surface.
type RPCServer struct {
	nc            *nats.Conn
	source        *ingestion.LifecycleSource
	queryService  *query.QueryService
	healthChecker *observability.HealthChecker
	httpServer    *http.Server
	subs          []*nats.Subscription
}

// ServerDeps holds the RPC server's collaborators.
type ServerDeps struct {
	NC            *nats.Conn
	Source        *ingestion.LifecycleSource
	QueryService  *query.QueryService
	HealthChecker *observability.HealthChecker
}

func NewRPCServer(deps *ServerDeps) *RPCServer {
	return &RPCServer{
		nc:            deps.NC,
		source:        deps.Source,
		queryService:  deps.QueryService,
		healthChecker: deps.HealthChecker,
	}
}

// errorReply is the uniform failure envelope.
type errorReply struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// registerReply answers a successful RegisterNetwork.
type registerReply struct {
	NetUid      uint16             `json:"netuid"`
	Evicted     *uint16            `json:"evicted,omitempty"`
	Settlements []settlementResult `json:"settlements,omitempty"`
}

// dissolveReply answers a successful DissolveNetwork.
type dissolveReply struct {
	Settlement settlementResult `json:"settlement"`
}

type settlementResult struct {
	NetUid       uint16 `json:"netuid"`
	Pot          uint64 `json:"pot"`
	LPCollateral uint64 `json:"lp_collateral"`
	OwnerRefund  uint64 `json:"owner_refund"`
	Unclaimed    uint64 `json:"unclaimed"`
	Stakers      int    `json:"stakers"`
	Payouts      int    `json:"payouts"`
}

type pruneReply struct {
	Candidate *uint16 `json:"candidate"`
}

func toSettlementResult(s *core.Settlement) settlementResult {
	return settlementResult{
		NetUid:       uint16(s.NetUid),
		Pot:          uint64(s.Pot),
		LPCollateral: uint64(s.LPCollateral),
		OwnerRefund:  uint64(s.OwnerRefund),
		Unclaimed:    uint64(s.Unclaimed),
		Stakers:      s.Stakers,
		Payouts:      len(s.Payouts),
	}
}

// Start subscribes all request-reply handlers.
func (s *RPCServer) Start() error {
	handlers := []struct {
		subject string
		handler nats.MsgHandler
	}{
		{SubjectRegister, s.handleRegister},
		{SubjectDissolve, s.handleDissolve},
		{SubjectPruneQuery, s.handlePruneQuery},
		{SubjectBalance, s.handleBalance},
		{SubjectNetworks, s.handleNetworks},
		{SubjectSettlements, s.handleSettlements},
		{SubjectPayouts, s.handlePayouts},
		{SubjectIntegrity, s.handleIntegrity},
	}

	for _, h := range handlers {
		sub, err := s.nc.Subscribe(h.subject, h.handler)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", h.subject, err)
		}
		s.subs = append(s.subs, sub)
		log.Printf("INFO: RPC handler on %s", h.subject)
	}

	return nil
}

// Stop drains all subscriptions.
func (s *RPCServer) Stop() {
	for _, sub := range s.subs {
		sub.Unsubscribe()
	}
	log.Println("INFO: RPC server stopped")
}

func (s *RPCServer) handleRegister(msg *nats.Msg) {
	cmd, err := ingestion.ParseRegisterNetwork(msg.Data)
	if err != nil {
		s.replyError(msg, err, "bad_request")
		return
	}
	if cmd.RequestID == uuid.Nil {
		s.replyError(msg, errors.New("request_id required"), "bad_request")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()

	result, err := s.source.Submit(ctx, cmd)
	if err != nil {
		s.replyError(msg, err, errorCode(err))
		return
	}
	if result == nil || result.NetUid == nil {
		// Duplicate request: already applied, nothing more to report.
		s.reply(msg, errorReply{Error: "duplicate request", Code: "duplicate"})
		return
	}

	out := registerReply{NetUid: uint16(*result.NetUid)}
	for _, st := range result.Settlements {
		n := uint16(st.NetUid)
		out.Evicted = &n
		out.Settlements = append(out.Settlements, toSettlementResult(st))
	}
	s.reply(msg, out)
}

func (s *RPCServer) handleDissolve(msg *nats.Msg) {
	cmd, err := ingestion.ParseDissolveNetwork(msg.Data)
	if err != nil {
		s.replyError(msg, err, "bad_request")
		return
	}
	if cmd.RequestID == uuid.Nil {
		s.replyError(msg, errors.New("request_id required"), "bad_request")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()

	result, err := s.source.Submit(ctx, cmd)
	if err != nil {
		s.replyError(msg, err, errorCode(err))
		return
	}
	if result == nil || len(result.Settlements) == 0 {
		s.reply(msg, errorReply{Error: "duplicate request", Code: "duplicate"})
		return
	}

	s.reply(msg, dissolveReply{Settlement: toSettlementResult(result.Settlements[0])})
}

func (s *RPCServer) handlePruneQuery(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()

	result, err := s.source.Submit(ctx, &event.PruneQuery{RequestID: uuid.New()})
	if err != nil {
		s.replyError(msg, err, "internal")
		return
	}

	var out pruneReply
	if result != nil && result.NetUid != nil {
		n := uint16(*result.NetUid)
		out.Candidate = &n
	}
	s.reply(msg, out)
}

type balanceRequest struct {
	Coldkey string `json:"coldkey"`
}

func (s *RPCServer) handleBalance(msg *nats.Msg) {
	var req balanceRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.replyError(msg, err, "bad_request")
		return
	}
	coldkey, err := uuid.Parse(req.Coldkey)
	if err != nil {
		s.replyError(msg, fmt.Errorf("parse coldkey: %w", err), "bad_request")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()

	resp, err := s.queryService.GetBalance(ctx, coldkey)
	if err != nil {
		s.replyError(msg, err, "internal")
		return
	}
	s.reply(msg, resp)
}

type networksRequest struct {
	IncludeDissolved bool `json:"include_dissolved"`
}

func (s *RPCServer) handleNetworks(msg *nats.Msg) {
	var req networksRequest
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			s.replyError(msg, err, "bad_request")
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()

	networks, err := s.queryService.ListNetworks(ctx, req.IncludeDissolved)
	if err != nil {
		s.replyError(msg, err, "internal")
		return
	}
	s.reply(msg, networks)
}

type settlementsRequest struct {
	NetUid uint16 `json:"netuid"`
	Limit  int    `json:"limit"`
}

func (s *RPCServer) handleSettlements(msg *nats.Msg) {
	var req settlementsRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.replyError(msg, err, "bad_request")
		return
	}
	if req.Limit <= 0 || req.Limit > 1000 {
		req.Limit = 100
	}

	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()

	settlements, err := s.queryService.GetSettlements(ctx, req.NetUid, req.Limit)
	if err != nil {
		s.replyError(msg, err, "internal")
		return
	}
	s.reply(msg, settlements)
}

type payoutsRequest struct {
	Coldkey        string `json:"coldkey"`
	Limit          int    `json:"limit"`
	BeforeSequence *int64 `json:"before_sequence,omitempty"`
}

func (s *RPCServer) handlePayouts(msg *nats.Msg) {
	var req payoutsRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.replyError(msg, err, "bad_request")
		return
	}
	coldkey, err := uuid.Parse(req.Coldkey)
	if err != nil {
		s.replyError(msg, fmt.Errorf("parse coldkey: %w", err), "bad_request")
		return
	}
	if req.Limit <= 0 || req.Limit > 1000 {
		req.Limit = 100
	}

	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()

	payouts, err := s.queryService.GetPayouts(ctx, coldkey, req.Limit, req.BeforeSequence)
	if err != nil {
		s.replyError(msg, err, "internal")
		return
	}
	s.reply(msg, payouts)
}

func (s *RPCServer) handleIntegrity(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), rpcTimeout)
	defer cancel()

	report, err := s.queryService.VerifyIntegrity(ctx)
	if err != nil {
		s.replyError(msg, err, "internal")
		return
	}
	s.reply(msg, report)
}

func (s *RPCServer) reply(msg *nats.Msg, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("ERROR: marshal reply: %v", err)
		return
	}
	if err := msg.Respond(data); err != nil {
		log.Printf("WARN: respond failed on %s: %v", msg.Subject, err)
	}
}

func (s *RPCServer) replyError(msg *nats.Msg, err error, code string) {
	s.reply(msg, errorReply{Error: err.Error(), Code: code})
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, core.ErrNetworkDoesNotExist):
		return "not_found"
	case errors.Is(err, core.ErrInsufficientLock):
		return "insufficient_lock"
	case errors.Is(err, core.ErrNetworkLimitReached):
		return "limit_reached"
	default:
		return "internal"
	}
}

// StartHTTP serves health and metrics endpoints (blocking).
func (s *RPCServer) StartHTTP(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	if s.healthChecker != nil {
		mux.HandleFunc("/healthz", s.healthChecker.LivenessHandler)
		mux.HandleFunc("/readyz", s.healthChecker.ReadinessHandler)
	}
	mux.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	log.Printf("INFO: HTTP server listening on %s", addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
