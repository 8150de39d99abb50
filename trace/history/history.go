// Package history provides a bounded scrollback cache of validated
// pipeline snapshots, built on Akita cache components.
//
// Snapshots are keyed by cycle number. The cache is set-associative with
// LRU replacement, so stepping back and forth around the current cycle
// stays resident while old cycles age out.
package history

import (
	"fmt"

	akitacache "github.com/sarchlab/akita/v4/mem/cache"

	"github.com/sarchlab/pipetrace/trace/pipeline"
)

// slotStride is the address distance between consecutive cycles in the
// directory's address space.
const slotStride = 64

// Config holds cache geometry.
type Config struct {
	// Entries is the total number of snapshots retained.
	Entries int
	// Associativity is the number of ways per set.
	Associativity int
}

// DefaultConfig returns a 4096-entry, 8-way cache.
func DefaultConfig() Config {
	return Config{
		Entries:       4096,
		Associativity: 8,
	}
}

// Validate checks that the geometry describes at least one full set.
func (c Config) Validate() error {
	if c.Associativity <= 0 {
		return fmt.Errorf("history associativity must be > 0")
	}
	if c.Entries < c.Associativity {
		return fmt.Errorf("history entries (%d) must be >= associativity (%d)",
			c.Entries, c.Associativity)
	}
	if c.Entries%c.Associativity != 0 {
		return fmt.Errorf("history entries (%d) must be a multiple of associativity (%d)",
			c.Entries, c.Associativity)
	}
	return nil
}

// Statistics holds cache usage counters.
type Statistics struct {
	Puts      uint64
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// Cache stores recent snapshots.
type Cache struct {
	config Config

	// Akita cache directory for tag/LRU management
	directory *akitacache.DirectoryImpl

	// Snapshot storage, indexed by (setID * associativity + wayID)
	slots []*pipeline.CycleSnapshot

	stats Statistics
}

// New creates a cache with the given geometry. The config must pass
// Validate.
func New(config Config) *Cache {
	numSets := config.Entries / config.Associativity

	return &Cache{
		config: config,
		directory: akitacache.NewDirectory(
			numSets,
			config.Associativity,
			slotStride,
			akitacache.NewLRUVictimFinder(),
		),
		slots: make([]*pipeline.CycleSnapshot, numSets*config.Associativity),
	}
}

// Stats returns cache statistics.
func (c *Cache) Stats() Statistics {
	return c.stats
}

func (c *Cache) slotIndex(block *akitacache.Block) int {
	return block.SetID*c.config.Associativity + block.WayID
}

func addrOf(cycle uint64) uint64 {
	return cycle * slotStride
}

// Put stores a snapshot, replacing any snapshot of the same cycle.
func (c *Cache) Put(s *pipeline.CycleSnapshot) {
	c.stats.Puts++
	addr := addrOf(s.Cycle)

	block := c.directory.Lookup(0, addr)
	if block == nil || !block.IsValid {
		block = c.directory.FindVictim(addr)
		if block == nil {
			return
		}
		if block.IsValid {
			c.stats.Evictions++
		}
		block.Tag = addr
		block.IsValid = true
	}

	c.slots[c.slotIndex(block)] = s
	c.directory.Visit(block)
}

// Get returns the snapshot of a cycle if it is still resident.
func (c *Cache) Get(cycle uint64) (*pipeline.CycleSnapshot, bool) {
	block := c.directory.Lookup(0, addrOf(cycle))
	if block == nil || !block.IsValid {
		c.stats.Misses++
		return nil, false
	}

	c.stats.Hits++
	c.directory.Visit(block)
	return c.slots[c.slotIndex(block)], true
}

// Len returns the number of resident snapshots.
func (c *Cache) Len() int {
	n := 0
	for _, set := range c.directory.GetSets() {
		for _, block := range set.Blocks {
			if block.IsValid {
				n++
			}
		}
	}
	return n
}

// Reset empties the cache and clears statistics.
func (c *Cache) Reset() {
	c.directory.Reset()
	for i := range c.slots {
		c.slots[i] = nil
	}
	c.stats = Statistics{}
}
