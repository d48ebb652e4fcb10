package core

import "github.com/0xShonen/subtensor/internal/nettypes"

// NetworkToPrune selects the eviction candidate: the non-immune subnet
// with the lowest cumulative emission, ties broken by earliest
// registration. Returns false when every live subnet is still inside
// its immunity window.
func (c *LifecycleCore) NetworkToPrune() (nettypes.NetUid, bool) {
	current := c.registry.CurrentBlock()
	immunity := c.registry.ImmunityPeriod()

	var (
		victim         nettypes.NetUid
		found          bool
		bestEmission   nettypes.Alpha
		bestRegistered uint64
	)
	for _, net := range c.registry.Networks() {
		registered := c.registry.RegisteredAt(net)
		var age uint64
		if current > registered {
			age = current - registered
		}
		if age < immunity {
			continue
		}
		emitted := c.registry.TotalEmission(net)
		worse := !found ||
			emitted < bestEmission ||
			(emitted == bestEmission && registered < bestRegistered)
		if worse {
			victim = net
			found = true
			bestEmission = emitted
			bestRegistered = registered
		}
	}
	return victim, found
}
