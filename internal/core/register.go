package core

import (
	"fmt"

	"github.com/0xShonen/subtensor/internal/event"
	"github.com/0xShonen/subtensor/internal/nettypes"
)

// handleRegister admits a new subnet. Funding is checked before any
// eviction so an underfunded registrant can never force a dissolution.
func (c *LifecycleCore) handleRegister(cmd *event.RegisterNetwork) (*Result, error) {
	lockCost := c.registry.LockCost()
	if cmd.Lock < lockCost {
		return nil, fmt.Errorf("lock %d below current cost %d: %w",
			cmd.Lock, lockCost, ErrInsufficientLock)
	}
	if balance := c.balances.Balance(cmd.Coldkey); balance < cmd.Lock {
		return nil, fmt.Errorf("coldkey %s holds %d, lock requires %d: %w",
			cmd.Coldkey, balance, cmd.Lock, ErrInsufficientLock)
	}

	result := &Result{}
	if c.registry.TotalNetworks() >= c.registry.SubnetLimit() {
		victim, found := c.NetworkToPrune()
		if !found {
			return nil, fmt.Errorf("all %d subnets immune: %w",
				c.registry.TotalNetworks(), ErrNetworkLimitReached)
		}
		settlement, err := c.settleNetwork(victim)
		if err != nil {
			return nil, fmt.Errorf("evicting subnet %d: %w", victim, err)
		}
		result.Settlements = append(result.Settlements, settlement)
		if c.metrics != nil {
			c.metrics.EvictionsSelected.Inc()
		}
	}

	netuid := c.registry.NextNetUid()
	if err := c.balances.Debit(cmd.Coldkey, cmd.Lock); err != nil {
		return nil, fmt.Errorf("charging lock: %w", err)
	}
	c.registry.CreateNetwork(netuid, cmd.Coldkey, cmd.Hotkey, cmd.Lock)
	c.liquidity.Initialize(netuid, nettypes.PriceScale)

	result.NetUid = &netuid
	if c.metrics != nil {
		c.metrics.NetworksRegistered.Inc()
	}
	c.log.Info().
		Uint16("netuid", uint16(netuid)).
		Str("coldkey", cmd.Coldkey.String()).
		Uint64("lock", uint64(cmd.Lock)).
		Int("evictions", len(result.Settlements)).
		Msg("subnet registered")

	return result, nil
}
