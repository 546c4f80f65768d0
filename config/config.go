// Package config holds the session configuration of the debugger.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sarchlab/gbadbg/cache"
	"github.com/sarchlab/gbadbg/emu"
)

// Config holds the settings of a debugging session.
type Config struct {
	// BaseAddress is where raw images are loaded and what rbreak offsets
	// are relative to. Default: 0x08000000 (cartridge ROM).
	BaseAddress uint32 `json:"base_address"`

	// LogSteps turns per-step logging on from the start. Default: false.
	LogSteps bool `json:"log_steps"`

	// StepBudget halts a run after this many steps. 0 means no budget.
	StepBudget uint64 `json:"step_budget"`

	// StrictAlignment makes misaligned accesses fault instead of being
	// rounded down. Default: false.
	StrictAlignment bool `json:"strict_alignment"`

	// HLEBIOS services BIOS calls in Go instead of vectoring to the
	// empty BIOS region. Default: false.
	HLEBIOS bool `json:"hle_bios"`

	// DecodeCache enables the decoded-instruction cache. Default: true.
	DecodeCache bool `json:"decode_cache"`

	// CacheSets and CacheWays set the decode cache geometry.
	// Default: 256 sets, 4 ways.
	CacheSets int `json:"cache_sets"`
	CacheWays int `json:"cache_ways"`

	// LogEntries bounds the number of retained log entries. Default: 1000.
	LogEntries int `json:"log_entries"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	cc := cache.DefaultConfig()
	return &Config{
		BaseAddress: emu.ROMBase,
		DecodeCache: true,
		CacheSets:   cc.Sets,
		CacheWays:   cc.Associativity,
		LogEntries:  1000,
	}
}

// LoadConfig loads a Config from a JSON file. Fields missing from the
// file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a Config to a JSON file.
func (c *Config) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that the settings are usable.
func (c *Config) Validate() error {
	if c.BaseAddress%4 != 0 {
		return fmt.Errorf("base_address 0x%08X must be word aligned", c.BaseAddress)
	}
	if c.DecodeCache {
		if err := c.CacheConfig().Validate(); err != nil {
			return fmt.Errorf("decode cache: %w", err)
		}
	}
	if c.LogEntries <= 0 {
		return fmt.Errorf("log_entries must be > 0")
	}
	return nil
}

// Clone returns a deep copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// CacheConfig returns the decode cache geometry.
func (c *Config) CacheConfig() cache.Config {
	return cache.Config{Sets: c.CacheSets, Associativity: c.CacheWays}
}

// BusOptions returns the bus options the configuration selects.
func (c *Config) BusOptions() []emu.BusOption {
	var opts []emu.BusOption
	if c.StrictAlignment {
		opts = append(opts, emu.WithStrictAlignment())
	}
	return opts
}

// EmulatorOptions returns the emulator options the configuration selects
// for a program starting at entry.
func (c *Config) EmulatorOptions(entry uint32) []emu.EmulatorOption {
	opts := []emu.EmulatorOption{emu.WithEntryPoint(entry)}
	if c.DecodeCache {
		opts = append(opts, emu.WithDecodeCache(cache.New(c.CacheConfig())))
	}
	if c.HLEBIOS {
		opts = append(opts, emu.WithSWIHandler(emu.NewHLEBIOS()))
	}
	return opts
}
