// Package math implements the fixed-point arithmetic used by the subnet
// ledger. All balance math is integer-only with 128-bit intermediates;
// conversions between currencies round down and subtractions saturate
// at zero so no operation can mint value.
package math

import (
	"math"
	"math/big"
	"sync"

	"github.com/0xShonen/subtensor/internal/nettypes"
)

// Uint128 intermediates are pooled big.Ints.
var uint128Pool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getUint128() *big.Int {
	return uint128Pool.Get().(*big.Int)
}

func putUint128(v *big.Int) {
	v.SetInt64(0) // Clear before returning to pool
	uint128Pool.Put(v)
}

// MulUint128 performs a * b in 128-bit space to prevent overflow.
// The caller must release the result with the pool via internal helpers;
// exported callers receive plain uint64 results instead.
func MulUint128(a, b uint64) *big.Int {
	result := getUint128()
	x := getUint128().SetUint64(a)
	y := getUint128().SetUint64(b)
	result.Mul(x, y)
	putUint128(x)
	putUint128(y)
	return result
}

// MulDivFloor computes floor(a * num / den) with a 128-bit intermediate,
// saturating to the uint64 maximum. den == 0 returns 0.
func MulDivFloor(a, num, den uint64) uint64 {
	if den == 0 {
		return 0
	}
	prod := MulUint128(a, num)
	d := getUint128().SetUint64(den)
	quotient := getUint128()
	remainder := getUint128()
	quotient.DivMod(prod, d, remainder)

	var result uint64
	if quotient.IsUint64() {
		result = quotient.Uint64()
	} else {
		result = math.MaxUint64
	}

	putUint128(prod)
	putUint128(d)
	putUint128(quotient)
	putUint128(remainder)
	return result
}

// SaturatingSub returns a - b, clamped at zero.
func SaturatingSub(a, b uint64) uint64 {
	if b >= a {
		return 0
	}
	return a - b
}

// SaturatingAdd returns a + b, clamped at the uint64 maximum.
func SaturatingAdd(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

// AlphaToTao converts an alpha amount to tao at the given price,
// rounding down.
func AlphaToTao(amount nettypes.Alpha, price nettypes.Price) nettypes.Tao {
	return nettypes.Tao(MulDivFloor(uint64(amount), uint64(price), nettypes.PriceScale))
}
