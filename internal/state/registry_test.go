package state_test

import (
	"testing"

	"github.com/google/uuid"

	"github.com/0xShonen/subtensor/internal/nettypes"
	"github.com/0xShonen/subtensor/internal/state"
)

// ============================================================================
// Test: Registry lifecycle
// ============================================================================

func TestRegistry_CreateNetworkSeedsPools(t *testing.T) {
	r := state.NewRegistry()
	cold, hot := uuid.New(), uuid.New()
	r.SetBlock(100)

	r.CreateNetwork(3, cold, hot, 5000)

	if !r.Exists(3) {
		t.Fatal("network should exist after creation")
	}
	if r.Owner(3) != cold || r.OwnerHotkey(3) != hot {
		t.Error("owner identities not recorded")
	}
	if r.RegisteredAt(3) != 100 {
		t.Errorf("registered at: got %d, want 100", r.RegisteredAt(3))
	}
	if r.SubnetTAO(3) != 5000 {
		t.Errorf("tao pool: got %d, want 5000", r.SubnetTAO(3))
	}
	if r.AlphaIn(3) != 5000 {
		t.Errorf("alpha in: got %d, want 5000", r.AlphaIn(3))
	}
	if r.Locked(3) != 5000 {
		t.Errorf("lock: got %d, want 5000", r.Locked(3))
	}
	if r.TotalNetworks() != 1 {
		t.Errorf("total networks: got %d, want 1", r.TotalNetworks())
	}
}

func TestRegistry_NextNetUidReusesReleasedIds(t *testing.T) {
	r := state.NewRegistry()
	r.CreateNetwork(1, uuid.New(), uuid.New(), 100)
	r.CreateNetwork(2, uuid.New(), uuid.New(), 100)
	r.CreateNetwork(3, uuid.New(), uuid.New(), 100)

	if got := r.NextNetUid(); got != 4 {
		t.Errorf("next uid: got %d, want 4", got)
	}

	r.PurgeNetwork(2)
	if got := r.NextNetUid(); got != 2 {
		t.Errorf("next uid after purge: got %d, want 2", got)
	}
}

func TestRegistry_PurgeRemovesSparseZeroesDense(t *testing.T) {
	r := state.NewRegistry()
	cold, hot := uuid.New(), uuid.New()
	r.CreateNetwork(7, cold, hot, 9000)
	r.RegisterMember(7, hot)
	r.RecordEmission(7, 123)
	r.RecordVolume(7, 55)

	r.PurgeNetwork(7)

	if r.Exists(7) {
		t.Fatal("network should not exist after purge")
	}
	if r.Owner(7) != (uuid.UUID{}) {
		t.Error("owner should be removed")
	}
	if r.RegisteredAt(7) != 0 {
		t.Error("registration height should be removed")
	}
	if _, ok := r.Params(7); ok {
		t.Error("params should be removed")
	}
	if r.SubnetTAO(7) != 0 {
		t.Error("tao pool should be gone")
	}
	if r.TotalEmission(7) != 0 {
		t.Error("emission record should be cleared")
	}
	if r.Volume(7) != 0 {
		t.Error("volume should be cleared")
	}
	if r.MemberCount(7) != 0 {
		t.Error("member count should be cleared")
	}
	if r.IsMember(hot, 7) {
		t.Error("membership flags should be cleared")
	}
	if r.UidVectorsFor(7) != nil {
		t.Error("uid vectors should be removed")
	}

	// Dense pool scalars stay readable as zero.
	if r.AlphaIn(7) != 0 || r.AlphaOut(7) != 0 || r.Locked(7) != 0 {
		t.Error("dense scalars should read back zero")
	}
}

func TestRegistry_PurgeDecrementsCounterOnce(t *testing.T) {
	r := state.NewRegistry()
	r.CreateNetwork(1, uuid.New(), uuid.New(), 100)
	r.CreateNetwork(2, uuid.New(), uuid.New(), 100)

	r.PurgeNetwork(1)
	if r.TotalNetworks() != 1 {
		t.Errorf("total networks: got %d, want 1", r.TotalNetworks())
	}
}

func TestRegistry_PurgeOnlyTargetsOneNetwork(t *testing.T) {
	r := state.NewRegistry()
	hot := uuid.New()
	r.CreateNetwork(1, uuid.New(), hot, 100)
	r.CreateNetwork(2, uuid.New(), hot, 200)
	r.RegisterMember(1, hot)
	r.RegisterMember(2, hot)

	r.PurgeNetwork(1)

	if !r.Exists(2) {
		t.Fatal("network 2 should survive")
	}
	if !r.IsMember(hot, 2) {
		t.Error("membership on network 2 should survive")
	}
	if r.SubnetTAO(2) != 200 {
		t.Error("network 2 pool should be untouched")
	}
}

// ============================================================================
// Test: emission and lock cost
// ============================================================================

func TestRegistry_TotalEmissionSumsRecord(t *testing.T) {
	r := state.NewRegistry()
	r.CreateNetwork(1, uuid.New(), uuid.New(), 100)
	r.RecordEmission(1, 10)
	r.RecordEmission(1, 20)
	r.RecordEmission(1, 30)

	if got := r.TotalEmission(1); got != 60 {
		t.Errorf("got %d, want 60", got)
	}
	if got := r.AlphaOut(1); got != 60 {
		t.Errorf("alpha out: got %d, want 60", got)
	}
}

func TestRegistry_LockCostRatchetsUp(t *testing.T) {
	r := state.NewRegistry()
	r.SetMinLockCost(1000)

	if got := r.LockCost(); got != 1000 {
		t.Fatalf("initial lock cost: got %d, want 1000", got)
	}

	r.CreateNetwork(1, uuid.New(), uuid.New(), 2500)
	if got := r.LockCost(); got != 2500 {
		t.Errorf("lock cost after registration: got %d, want 2500", got)
	}
}

func TestRegistry_NetworksSortedAscending(t *testing.T) {
	r := state.NewRegistry()
	r.CreateNetwork(5, uuid.New(), uuid.New(), 100)
	r.CreateNetwork(1, uuid.New(), uuid.New(), 100)
	r.CreateNetwork(3, uuid.New(), uuid.New(), 100)

	nets := r.Networks()
	want := []nettypes.NetUid{1, 3, 5}
	for i, n := range nets {
		if n != want[i] {
			t.Fatalf("got %v, want %v", nets, want)
		}
	}
}
