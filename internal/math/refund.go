package math

import "github.com/0xShonen/subtensor/internal/nettypes"

// OwnerRefund computes the lock refund owed to a subnet owner when the
// subnet is dissolved. The owner's historical emission take is valued in
// tao at the current pool price and deducted from the locked amount:
//
//	ownerAlpha = floor(emitted * cut / 65535)
//	ownerValue = floor(ownerAlpha * price)
//	refund     = lock - ownerValue, saturating at zero
//
// Every step rounds down, so the refund never exceeds the lock and a
// heavily emitted subnet refunds nothing.
func OwnerRefund(lock nettypes.Tao, emitted nettypes.Alpha, cut uint16, price nettypes.Price) nettypes.Tao {
	ownerAlpha := MulDivFloor(uint64(emitted), uint64(cut), nettypes.OwnerCutDenom)
	ownerValue := AlphaToTao(nettypes.Alpha(ownerAlpha), price)
	return nettypes.Tao(SaturatingSub(uint64(lock), uint64(ownerValue)))
}
