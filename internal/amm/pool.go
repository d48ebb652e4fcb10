// Package amm is the liquidity collaborator of the lifecycle core. It
// tracks range-bound liquidity positions per subnet and knows how to
// unwind all of them at once when a subnet is dissolved.
package amm

import (
	"sort"

	"github.com/google/uuid"

	"github.com/0xShonen/subtensor/internal/math"
	"github.com/0xShonen/subtensor/internal/nettypes"
)

// Position is one range-bound liquidity contribution on a subnet's
// market. FeesTao is the position's accrued but uncollected fee balance.
type Position struct {
	ID           uuid.UUID
	Net          nettypes.NetUid
	Owner        uuid.UUID
	TickLow      int32
	TickHigh     int32
	Liquidity    uint64
	TaoReserve   nettypes.Tao
	AlphaReserve nettypes.Alpha
	FeesTao      nettypes.Tao
}

// Pool holds every subnet's AMM bookkeeping: positions, tick bitmaps,
// fee accumulators, current liquidity, and the swap price.
type Pool struct {
	positions      map[nettypes.NetUid]map[uuid.UUID]*Position
	price          map[nettypes.NetUid]nettypes.Price
	feeGlobalTao   map[nettypes.NetUid]nettypes.Tao
	feeGlobalAlpha map[nettypes.NetUid]nettypes.Alpha
	tickBitmap     map[nettypes.NetUid]map[int32]uint64
	liquidity      map[nettypes.NetUid]uint64
	initialized    map[nettypes.NetUid]bool
	userLiquidity  map[nettypes.NetUid]bool
}

func NewPool() *Pool {
	return &Pool{
		positions:      make(map[nettypes.NetUid]map[uuid.UUID]*Position),
		price:          make(map[nettypes.NetUid]nettypes.Price),
		feeGlobalTao:   make(map[nettypes.NetUid]nettypes.Tao),
		feeGlobalAlpha: make(map[nettypes.NetUid]nettypes.Alpha),
		tickBitmap:     make(map[nettypes.NetUid]map[int32]uint64),
		liquidity:      make(map[nettypes.NetUid]uint64),
		initialized:    make(map[nettypes.NetUid]bool),
		userLiquidity:  make(map[nettypes.NetUid]bool),
	}
}

// Initialize opens the subnet's market at the given price and allows
// user liquidity.
func (p *Pool) Initialize(net nettypes.NetUid, price nettypes.Price) {
	p.initialized[net] = true
	p.userLiquidity[net] = true
	p.price[net] = price
	if p.positions[net] == nil {
		p.positions[net] = make(map[uuid.UUID]*Position)
	}
	if p.tickBitmap[net] == nil {
		p.tickBitmap[net] = make(map[int32]uint64)
	}
}

// SetPrice updates the subnet's swap price.
func (p *Pool) SetPrice(net nettypes.NetUid, price nettypes.Price) {
	p.price[net] = price
}

// CurrentPrice returns the subnet's tao-per-alpha price, zero if the
// market was never initialized.
func (p *Pool) CurrentPrice(net nettypes.NetUid) nettypes.Price {
	return p.price[net]
}

// AddPosition opens a position and returns its id. The tick bitmap words
// covering both boundary ticks are marked initialized.
func (p *Pool) AddPosition(net nettypes.NetUid, owner uuid.UUID, tickLow, tickHigh int32, liquidity uint64, tao nettypes.Tao, alpha nettypes.Alpha) uuid.UUID {
	if p.positions[net] == nil {
		p.Initialize(net, p.price[net])
	}
	pos := &Position{
		ID:           uuid.New(),
		Net:          net,
		Owner:        owner,
		TickLow:      tickLow,
		TickHigh:     tickHigh,
		Liquidity:    liquidity,
		TaoReserve:   tao,
		AlphaReserve: alpha,
	}
	p.positions[net][pos.ID] = pos
	p.liquidity[net] = math.SaturatingAdd(p.liquidity[net], liquidity)
	p.setTick(net, tickLow)
	p.setTick(net, tickHigh)
	return pos.ID
}

func (p *Pool) setTick(net nettypes.NetUid, tick int32) {
	word := tick >> 6
	bit := uint(tick & 63)
	p.tickBitmap[net][word] |= 1 << bit
}

// AccrueFees adds swap fees to a position and the subnet's global fee
// accumulators.
func (p *Pool) AccrueFees(net nettypes.NetUid, id uuid.UUID, tao nettypes.Tao, alpha nettypes.Alpha) {
	if pos, ok := p.positions[net][id]; ok {
		pos.FeesTao = nettypes.Tao(math.SaturatingAdd(uint64(pos.FeesTao), uint64(tao)))
	}
	p.feeGlobalTao[net] = nettypes.Tao(math.SaturatingAdd(uint64(p.feeGlobalTao[net]), uint64(tao)))
	p.feeGlobalAlpha[net] = nettypes.Alpha(math.SaturatingAdd(uint64(p.feeGlobalAlpha[net]), uint64(alpha)))
}

// LiquidateAll unwinds every position on net and wipes all of the
// subnet's AMM bookkeeping. Each owner is owed their tao principal,
// their alpha principal valued at the current price, and their accrued
// tao fees. The returned total equals the sum of the per-owner credits.
//
// After this call no query scoped to net returns anything: positions,
// tick bitmap words, fee accumulators, pool liquidity, and the
// initialization flags are all cleared.
func (p *Pool) LiquidateAll(net nettypes.NetUid) (nettypes.Tao, []nettypes.OwnerCredit) {
	price := p.price[net]

	byOwner := make(map[uuid.UUID]nettypes.Tao)
	for _, pos := range p.positions[net] {
		freed := uint64(pos.TaoReserve)
		freed = math.SaturatingAdd(freed, uint64(math.AlphaToTao(pos.AlphaReserve, price)))
		freed = math.SaturatingAdd(freed, uint64(pos.FeesTao))
		byOwner[pos.Owner] = nettypes.Tao(math.SaturatingAdd(uint64(byOwner[pos.Owner]), freed))
	}

	owners := make([]uuid.UUID, 0, len(byOwner))
	for owner := range byOwner {
		owners = append(owners, owner)
	}
	sort.Slice(owners, func(i, j int) bool {
		return nettypes.CompareAccounts(owners[i], owners[j]) < 0
	})

	var total nettypes.Tao
	credits := make([]nettypes.OwnerCredit, 0, len(owners))
	for _, owner := range owners {
		credits = append(credits, nettypes.OwnerCredit{Owner: owner, Amount: byOwner[owner]})
		total = nettypes.Tao(math.SaturatingAdd(uint64(total), uint64(byOwner[owner])))
	}

	delete(p.positions, net)
	delete(p.price, net)
	delete(p.feeGlobalTao, net)
	delete(p.feeGlobalAlpha, net)
	delete(p.tickBitmap, net)
	delete(p.liquidity, net)
	delete(p.initialized, net)
	delete(p.userLiquidity, net)

	return total, credits
}

// PositionCount returns the number of open positions on net.
func (p *Pool) PositionCount(net nettypes.NetUid) int {
	return len(p.positions[net])
}

// HasResidue reports whether any AMM state for net survives. Used to
// assert teardown completeness.
func (p *Pool) HasResidue(net nettypes.NetUid) bool {
	if len(p.positions[net]) > 0 || len(p.tickBitmap[net]) > 0 {
		return true
	}
	if _, ok := p.price[net]; ok {
		return true
	}
	if p.feeGlobalTao[net] != 0 || p.feeGlobalAlpha[net] != 0 {
		return true
	}
	if p.liquidity[net] != 0 {
		return true
	}
	return p.initialized[net] || p.userLiquidity[net]
}
