package amm_test

import (
	"testing"

	"github.com/google/uuid"

	"github.com/0xShonen/subtensor/internal/amm"
	"github.com/0xShonen/subtensor/internal/nettypes"
)

// ============================================================================
// Test: Pool
// ============================================================================

func TestPool_CurrentPriceDefaultsToZero(t *testing.T) {
	p := amm.NewPool()
	if got := p.CurrentPrice(1); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
}

func TestPool_InitializeSetsPrice(t *testing.T) {
	p := amm.NewPool()
	p.Initialize(1, nettypes.Price(2_000_000_000))
	if got := p.CurrentPrice(1); got != 2_000_000_000 {
		t.Errorf("got %d, want 2000000000", got)
	}
}

func TestPool_LiquidateAllValuesAlphaAtPrice(t *testing.T) {
	p := amm.NewPool()
	p.Initialize(1, nettypes.Price(nettypes.PriceScale/2)) // 0.5 tao per alpha
	owner := uuid.New()

	p.AddPosition(1, owner, -100, 100, 1000, 300, 400)

	total, credits := p.LiquidateAll(1)

	// 300 tao principal + floor(400 * 0.5) = 500.
	if total != 500 {
		t.Errorf("total freed: got %d, want 500", total)
	}
	if len(credits) != 1 || credits[0].Owner != owner || credits[0].Amount != 500 {
		t.Errorf("credits: got %+v", credits)
	}
}

func TestPool_LiquidateAllAggregatesPerOwner(t *testing.T) {
	p := amm.NewPool()
	p.Initialize(1, nettypes.Price(nettypes.PriceScale))
	a, b := uuid.New(), uuid.New()

	p.AddPosition(1, a, -10, 10, 100, 100, 0)
	p.AddPosition(1, a, -20, 20, 100, 200, 0)
	p.AddPosition(1, b, -30, 30, 100, 50, 0)

	total, credits := p.LiquidateAll(1)

	if total != 350 {
		t.Errorf("total: got %d, want 350", total)
	}
	if len(credits) != 2 {
		t.Fatalf("got %d credits, want 2", len(credits))
	}
	sum := nettypes.Tao(0)
	for _, c := range credits {
		sum += c.Amount
	}
	if sum != total {
		t.Errorf("credits sum %d != total %d", sum, total)
	}
}

func TestPool_LiquidateAllIncludesAccruedFees(t *testing.T) {
	p := amm.NewPool()
	p.Initialize(1, nettypes.Price(nettypes.PriceScale))
	owner := uuid.New()
	id := p.AddPosition(1, owner, -10, 10, 100, 1000, 0)

	p.AccrueFees(1, id, 25, 0)

	total, _ := p.LiquidateAll(1)
	if total != 1025 {
		t.Errorf("got %d, want 1025", total)
	}
}

func TestPool_LiquidateAllLeavesNoResidue(t *testing.T) {
	p := amm.NewPool()
	p.Initialize(1, nettypes.Price(nettypes.PriceScale))
	id := p.AddPosition(1, uuid.New(), -887272, 887272, 1000, 500, 500)
	p.AccrueFees(1, id, 10, 10)

	p.LiquidateAll(1)

	if p.HasResidue(1) {
		t.Fatal("subnet AMM state should be fully cleared")
	}
	if p.PositionCount(1) != 0 {
		t.Error("positions should be gone")
	}
	if p.CurrentPrice(1) != 0 {
		t.Error("price should be cleared")
	}
}

func TestPool_LiquidateAllScopedToOneSubnet(t *testing.T) {
	p := amm.NewPool()
	p.Initialize(1, nettypes.Price(nettypes.PriceScale))
	p.Initialize(2, nettypes.Price(nettypes.PriceScale))
	p.AddPosition(1, uuid.New(), -10, 10, 100, 100, 0)
	p.AddPosition(2, uuid.New(), -10, 10, 100, 999, 0)

	p.LiquidateAll(1)

	if p.PositionCount(2) != 1 {
		t.Error("subnet 2 positions should survive")
	}
	if p.HasResidue(1) {
		t.Error("subnet 1 should be clean")
	}
}

func TestPool_LiquidateAllEmptySubnet(t *testing.T) {
	p := amm.NewPool()
	total, credits := p.LiquidateAll(42)
	if total != 0 || len(credits) != 0 {
		t.Errorf("got total %d, credits %+v", total, credits)
	}
}
