package math_test

import (
	"math/rand"
	"testing"

	"github.com/0xShonen/subtensor/internal/math"
	"github.com/0xShonen/subtensor/internal/nettypes"
)

// ============================================================================
// Test: OwnerRefund
// ============================================================================

func TestOwnerRefund_PartialEmissionDeducted(t *testing.T) {
	// cut = 11796/65535 (~18%), price = 2.5 tao per alpha.
	// ownerAlpha = floor(800 * 11796 / 65535) = 143
	// ownerValue = floor(143 * 2.5)           = 357
	// refund     = 2000 - 357                 = 1643
	refund := math.OwnerRefund(2000, 800, 11796, nettypes.Price(2_500_000_000))
	if refund != 1643 {
		t.Errorf("got %d, want 1643", refund)
	}
}

func TestOwnerRefund_NoEmissionFullRefund(t *testing.T) {
	refund := math.OwnerRefund(5000, 0, 11796, nettypes.Price(nettypes.PriceScale))
	if refund != 5000 {
		t.Errorf("got %d, want 5000", refund)
	}
}

func TestOwnerRefund_EmissionExceedsLockClampsToZero(t *testing.T) {
	// 100% cut, price 1.0: owner value 5000 >= lock 2000.
	refund := math.OwnerRefund(2000, 5000, nettypes.OwnerCutDenom, nettypes.Price(nettypes.PriceScale))
	if refund != 0 {
		t.Errorf("got %d, want 0", refund)
	}
}

func TestOwnerRefund_ZeroPriceFullRefund(t *testing.T) {
	refund := math.OwnerRefund(2000, 1_000_000, nettypes.OwnerCutDenom, 0)
	if refund != 2000 {
		t.Errorf("got %d, want 2000", refund)
	}
}

func TestOwnerRefund_BoundsRandomized(t *testing.T) {
	rng := rand.New(rand.NewSource(3))

	for trial := 0; trial < 500; trial++ {
		lock := nettypes.Tao(rng.Uint64())
		emitted := nettypes.Alpha(rng.Uint64())
		cut := uint16(rng.Intn(nettypes.OwnerCutDenom + 1))
		price := nettypes.Price(rng.Uint64() % (10 * nettypes.PriceScale))

		refund := math.OwnerRefund(lock, emitted, cut, price)
		if refund > lock {
			t.Fatalf("trial %d: refund %d exceeds lock %d", trial, refund, lock)
		}
	}
}

// ============================================================================
// Test: fixed-point helpers
// ============================================================================

func TestMulDivFloor_RoundsDown(t *testing.T) {
	if got := math.MulDivFloor(7, 1, 2); got != 3 {
		t.Errorf("7*1/2: got %d, want 3", got)
	}
}

func TestMulDivFloor_ZeroDenominator(t *testing.T) {
	if got := math.MulDivFloor(7, 3, 0); got != 0 {
		t.Errorf("zero denominator should yield 0, got %d", got)
	}
}

func TestMulDivFloor_128BitIntermediate(t *testing.T) {
	// a * num overflows 64 bits but the quotient fits.
	const big = uint64(1) << 63
	if got := math.MulDivFloor(big, 4, 8); got != big/2 {
		t.Errorf("got %d, want %d", got, big/2)
	}
}

func TestSaturatingSub_Clamps(t *testing.T) {
	if got := math.SaturatingSub(3, 10); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
	if got := math.SaturatingSub(10, 3); got != 7 {
		t.Errorf("got %d, want 7", got)
	}
}

func TestAlphaToTao_ScalesByPrice(t *testing.T) {
	// 1000 alpha at 1.5 tao/alpha.
	got := math.AlphaToTao(1000, nettypes.Price(1_500_000_000))
	if got != 1500 {
		t.Errorf("got %d, want 1500", got)
	}
}
