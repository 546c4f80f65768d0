// Package cache memoizes decoded instructions using Akita cache components.
package cache

import (
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/gbadbg/insts"
)

// blockSize covers one ARM word or two THUMB half-words.
const blockSize = 4

// Config holds decode cache geometry.
type Config struct {
	// Sets is the number of sets.
	Sets int
	// Associativity is the number of ways per set.
	Associativity int
}

// DefaultConfig returns a 1024-entry, 4-way decode cache.
func DefaultConfig() Config {
	return Config{
		Sets:          256,
		Associativity: 4,
	}
}

// Validate checks the geometry.
func (c Config) Validate() error {
	if c.Sets <= 0 {
		return fmt.Errorf("sets must be positive, got %d", c.Sets)
	}
	if c.Associativity <= 0 {
		return fmt.Errorf("associativity must be positive, got %d", c.Associativity)
	}
	return nil
}

// Statistics holds decode cache statistics.
type Statistics struct {
	Lookups   uint64
	Hits      uint64
	Misses    uint64
	Evictions uint64
	// Stale counts lookups that found the address cached but with a
	// different raw word or instruction set, as after self-modifying code.
	Stale uint64
}

// HitRate returns the fraction of lookups that hit.
func (s Statistics) HitRate() float64 {
	if s.Lookups == 0 {
		return 0
	}
	return float64(s.Hits) / float64(s.Lookups)
}

// slot holds one memoized decode.
type slot struct {
	valid bool
	word  uint32
	mode  insts.Mode
	inst  insts.Instruction
}

// DecodeCache memoizes decoded instructions by fetch address. A cached
// descriptor is only reused when the raw word and instruction set match,
// so writes to code never produce stale instructions.
type DecodeCache struct {
	config Config

	// Akita cache directory for tag and LRU management
	directory *akitacache.DirectoryImpl

	// Slots indexed by (setID * associativity + wayID). ARM uses slot 0;
	// THUMB uses one slot per half-word.
	slots [][2]slot

	decoder *insts.Decoder
	stats   Statistics
}

// New creates a decode cache with the given geometry.
func New(config Config) *DecodeCache {
	return &DecodeCache{
		config: config,
		directory: akitacache.NewDirectory(
			config.Sets,
			config.Associativity,
			blockSize,
			akitacache.NewLRUVictimFinder(),
		),
		slots:   make([][2]slot, config.Sets*config.Associativity),
		decoder: insts.NewDecoder(),
	}
}

// Config returns the cache configuration.
func (c *DecodeCache) Config() Config {
	return c.config
}

// Stats returns cache statistics.
func (c *DecodeCache) Stats() Statistics {
	return c.stats
}

// blockIndex computes the index into slots for a block.
func (c *DecodeCache) blockIndex(block *akitacache.Block) int {
	return block.SetID*c.config.Associativity + block.WayID
}

// Lookup returns the decoded instruction at addr. The result is a copy the
// caller may keep.
func (c *DecodeCache) Lookup(addr, word uint32, mode insts.Mode) *insts.Instruction {
	c.stats.Lookups++

	blockAddr := uint64(addr &^ (blockSize - 1))
	index := 0
	if mode == insts.ModeThumb {
		index = int(addr>>1) & 1
	}

	block := c.directory.Lookup(0, blockAddr)
	if block != nil && block.IsValid {
		c.directory.Visit(block) // Update LRU

		s := &c.slots[c.blockIndex(block)][index]
		if s.valid && s.word == word && s.mode == mode {
			c.stats.Hits++
			inst := s.inst
			return &inst
		}
		if s.valid {
			c.stats.Stale++
		}
		c.stats.Misses++
		return c.fill(s, word, mode)
	}

	c.stats.Misses++

	victim := c.directory.FindVictim(blockAddr)
	if victim.IsValid {
		c.stats.Evictions++
	}
	victim.Tag = blockAddr
	victim.IsValid = true
	c.directory.Visit(victim)

	slots := &c.slots[c.blockIndex(victim)]
	*slots = [2]slot{}
	return c.fill(&slots[index], word, mode)
}

func (c *DecodeCache) fill(s *slot, word uint32, mode insts.Mode) *insts.Instruction {
	decoded := c.decoder.Decode(word, mode)
	*s = slot{valid: true, word: word, mode: mode, inst: *decoded}
	return decoded
}

// Invalidate drops the cached decodes of the word containing addr.
func (c *DecodeCache) Invalidate(addr uint32) {
	block := c.directory.Lookup(0, uint64(addr&^(blockSize-1)))
	if block != nil && block.IsValid {
		block.IsValid = false
		c.slots[c.blockIndex(block)] = [2]slot{}
	}
}

// Reset invalidates all entries and clears statistics.
func (c *DecodeCache) Reset() {
	c.directory.Reset()
	for i := range c.slots {
		c.slots[i] = [2]slot{}
	}
	c.stats = Statistics{}
}
