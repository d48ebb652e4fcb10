package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/0xShonen/subtensor/internal/event"
	smath "github.com/0xShonen/subtensor/internal/math"
	"github.com/0xShonen/subtensor/internal/nettypes"
)

func (c *LifecycleCore) handleDissolve(cmd *event.DissolveNetwork) (*Result, error) {
	settlement, err := c.settleNetwork(cmd.NetUid)
	if err != nil {
		return nil, err
	}
	return &Result{
		NetUid:      &cmd.NetUid,
		Settlements: []*Settlement{settlement},
	}, nil
}

// settleNetwork dissolves one subnet: liquidates AMM positions into the
// pool, distributes the pooled tao to stakers pro rata, refunds the
// owner's unrecouped lock, and purges all subnet storage. Shared by the
// explicit dissolve path and eviction during registration.
func (c *LifecycleCore) settleNetwork(net nettypes.NetUid) (*Settlement, error) {
	start := time.Now()

	if !c.registry.Exists(net) {
		return nil, fmt.Errorf("dissolve subnet %d: %w", net, ErrNetworkDoesNotExist)
	}

	// Read before liquidation: LiquidateAll clears the market, which
	// zeroes the price this subnet's alpha is valued at.
	price := c.liquidity.CurrentPrice(net)
	lock := c.registry.Locked(net)
	emitted := c.registry.TotalEmission(net)
	owner := c.registry.Owner(net)

	// LP principal merges into the pool and flows back through the same
	// pro-rata distribution as everything else, not as direct credits.
	lpFreed, lpOwners := c.liquidity.LiquidateAll(net)
	c.registry.AddToPool(net, lpFreed)
	pot := c.registry.SubnetTAO(net)

	snapshot := c.stake.SnapshotNetwork(net)
	claimants := make([]smath.Claimant, len(snapshot))
	for i, entry := range snapshot {
		claimants[i] = smath.Claimant{
			Hotkey:  entry.Hotkey,
			Coldkey: entry.Coldkey,
			Weight:  uint64(entry.Amount),
		}
	}
	shares := smath.Apportion(pot, claimants)

	settlement := &Settlement{
		NetUid:       net,
		Pot:          pot,
		LPCollateral: lpFreed,
		Stakers:      len(shares),
	}

	var distributed nettypes.Tao
	for _, share := range shares {
		distributed += share.Amount
		if share.Amount == 0 {
			continue
		}
		c.balances.Credit(share.Coldkey, share.Amount)
		settlement.Payouts = append(settlement.Payouts, Payout{
			ID:      uuid.New(),
			Coldkey: share.Coldkey,
			Amount:  share.Amount,
			Kind:    PayoutKindStakeShare,
		})
	}
	if len(shares) > 0 && distributed != pot {
		panic(fmt.Sprintf("FATAL: settlement lost funds: subnet %d pot %d distributed %d",
			net, pot, distributed))
	}
	if len(shares) == 0 && pot > 0 {
		settlement.Unclaimed = pot
		c.log.Warn().
			Uint16("netuid", uint16(net)).
			Uint64("pot", uint64(pot)).
			Msg("no stakers at dissolution, pot unclaimed")
	}

	refund := smath.OwnerRefund(lock, emitted, c.registry.OwnerCut(), price)
	if refund > 0 {
		c.balances.Credit(owner, refund)
		settlement.OwnerRefund = refund
		settlement.Payouts = append(settlement.Payouts, Payout{
			ID:      uuid.New(),
			Coldkey: owner,
			Amount:  refund,
			Kind:    PayoutKindOwnerRefund,
		})
	}

	purged := c.registry.PurgeNetwork(net)
	removed := c.stake.RemoveNetwork(net)
	settlement.StoragePurged = purged

	if c.metrics != nil {
		c.metrics.NetworksDissolved.Inc()
		c.metrics.SettleDuration.Observe(time.Since(start).Seconds())
		c.metrics.SettlePayouts.Add(float64(len(settlement.Payouts)))
		c.metrics.SettlePotDistributed.Add(float64(distributed))
		c.metrics.SettleUnclaimedPot.Add(float64(settlement.Unclaimed))
		c.metrics.SettleOwnerRefunds.Add(float64(refund))
		c.metrics.StoragePurged.Add(float64(purged + removed))
	}

	c.log.Info().
		Uint16("netuid", uint16(net)).
		Uint64("pot", uint64(pot)).
		Uint64("lp_collateral", uint64(lpFreed)).
		Uint64("owner_refund", uint64(refund)).
		Int("stakers", len(shares)).
		Int("lp_owners", len(lpOwners)).
		Int("storage_purged", purged).
		Msg("subnet dissolved")

	return settlement, nil
}
