package core

import "fmt"

// GuardStore records which one-shot state migrations have already run.
// The durable implementation lives in persistence; tests use an
// in-memory map.
type GuardStore interface {
	HasRun(name []byte) (bool, error)
	MarkRun(name []byte) error
}

// StateMigration is a one-shot transformation of live core state,
// guarded by name so replays and restarts never apply it twice.
type StateMigration struct {
	Name string
	Run  func(c *LifecycleCore) error
}

// StateMigrations is the ordered list applied once at startup, after
// recovery brings the in-memory state current.
var StateMigrations = []StateMigration{
	{
		Name: "migrate_network_immunity_period",
		Run: func(c *LifecycleCore) error {
			c.registry.SetImmunityPeriod(864_000)
			return nil
		},
	},
}

// RunStateMigrations applies every pending migration in order and
// returns how many ran.
func (c *LifecycleCore) RunStateMigrations(guard GuardStore) (int, error) {
	ran := 0
	for _, m := range StateMigrations {
		name := []byte(m.Name)
		done, err := guard.HasRun(name)
		if err != nil {
			return ran, fmt.Errorf("checking migration %s: %w", m.Name, err)
		}
		if done {
			continue
		}
		if err := m.Run(c); err != nil {
			return ran, fmt.Errorf("running migration %s: %w", m.Name, err)
		}
		if err := guard.MarkRun(name); err != nil {
			return ran, fmt.Errorf("marking migration %s: %w", m.Name, err)
		}
		ran++
		if c.metrics != nil {
			c.metrics.MigrationsRun.Inc()
		}
		c.log.Info().Str("migration", m.Name).Msg("state migration applied")
	}
	return ran, nil
}
