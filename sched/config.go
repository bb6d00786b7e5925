package sched

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds the execution budgets and scheduling parameters for a run.
type Config struct {
	// StepBudget is the number of instructions each actor may execute
	// over its whole lifetime.
	StepBudget uint64 `toml:"step_budget"`

	// MemoryBudget caps each actor's cumulative arena allocation in
	// bytes. It is distinct from ArenaCapacity: an actor can exhaust its
	// budget before its arena is full, and vice versa.
	MemoryBudget uint64 `toml:"memory_budget"`

	// ArenaCapacity is each actor's arena size in bytes.
	ArenaCapacity uint64 `toml:"arena_capacity"`

	// Quantum is the number of instructions an actor may execute per
	// scheduling turn before control rotates.
	Quantum uint64 `toml:"quantum"`

	// Quorum is the fraction of live actors that must approve a
	// dangerous capability request.
	Quorum float64 `toml:"quorum"`

	Pools PoolsConfig `toml:"pools"`
}

// PoolsConfig sets the system-wide consumable resource pools.
type PoolsConfig struct {
	Memory uint64 `toml:"memory"`
	Time   uint64 `toml:"time"`
}

// DefaultConfig returns the budgets used when no configuration file is
// given.
func DefaultConfig() Config {
	return Config{
		StepBudget:    1_000_000,
		MemoryBudget:  1 << 20,
		ArenaCapacity: 1 << 20,
		Quantum:       1024,
		Quorum:        0.75,
		Pools: PoolsConfig{
			Memory: 16 << 20,
			Time:   10_000_000,
		},
	}
}

// LoadConfig parses a kestrel.toml file. Fields the file omits keep their
// defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations that cannot produce a meaningful run.
func (c Config) Validate() error {
	if c.StepBudget == 0 {
		return fmt.Errorf("step_budget must be positive")
	}
	if c.Quantum == 0 {
		return fmt.Errorf("quantum must be positive")
	}
	if c.ArenaCapacity == 0 {
		return fmt.Errorf("arena_capacity must be positive")
	}
	if c.Quorum <= 0 || c.Quorum > 1 {
		return fmt.Errorf("quorum must be in (0, 1], got %g", c.Quorum)
	}
	return nil
}
