package symbol

import (
	"sync"

	"go.uber.org/atomic"

	"github.com/hitzhangjie/godwarf/pkg/dwarf/godwarf"
	"github.com/hitzhangjie/godwarf/pkg/dwarf/reader"
)

// abbrevKey identifies a table by the .debug_abbrev it lives in and its
// offset there.
type abbrevKey struct {
	sec *godwarf.Section
	off uint64
}

// AbbrevCache shares parsed abbreviation tables between the units that
// point at the same .debug_abbrev offset. It is safe for concurrent use,
// and may be shared by BinaryInfos of different binaries.
type AbbrevCache struct {
	mu     sync.Mutex
	tables map[abbrevKey]*reader.AbbrevTable

	hits   *atomic.Uint64
	misses *atomic.Uint64
}

// NewAbbrevCache creates an empty cache.
func NewAbbrevCache() *AbbrevCache {
	return &AbbrevCache{
		tables: make(map[abbrevKey]*reader.AbbrevTable),
		hits:   atomic.NewUint64(0),
		misses: atomic.NewUint64(0),
	}
}

// Get returns the table at offset off of d's .debug_abbrev, parsing it on
// first use. Failed parses are not cached.
func (c *AbbrevCache) Get(d *reader.Data, off uint64) (*reader.AbbrevTable, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := abbrevKey{sec: d.Abbrev, off: off}
	if t, ok := c.tables[key]; ok {
		c.hits.Inc()
		return t, nil
	}
	c.misses.Inc()

	t, err := d.AbbrevTable(off)
	if err != nil {
		return nil, err
	}
	c.tables[key] = t
	return t, nil
}

// Len returns the number of cached tables.
func (c *AbbrevCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tables)
}

// Stats returns the number of lookups served from the cache and the
// number that had to parse.
func (c *AbbrevCache) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}
