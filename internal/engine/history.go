package engine

import (
	"sync"

	"github.com/oceansentinel/threat-scoring/internal/domain"
)

// historyCache keeps a rolling window of recent readings per location so the
// anomaly and forecast branches have a baseline to work from. Locations are
// evicted least-recently-scored first once maxLocations is reached.
type historyCache struct {
	maxLocations int
	windowSize   int

	mu      sync.Mutex
	entries map[string]*historyEntry
	head    *historyEntry // most recently scored
	tail    *historyEntry // least recently scored
}

type historyEntry struct {
	key     string
	records []domain.Record
	prev    *historyEntry
	next    *historyEntry
}

func newHistoryCache(maxLocations, windowSize int) *historyCache {
	return &historyCache{
		maxLocations: maxLocations,
		windowSize:   windowSize,
		entries:      make(map[string]*historyEntry),
	}
}

// append adds the batch's records to the location's window, trimming the
// oldest readings beyond the window size.
func (c *historyCache) append(key string, records []domain.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		e = &historyEntry{key: key}
		c.entries[key] = e
		c.addToFront(e)
		if len(c.entries) > c.maxLocations {
			c.evictTail()
		}
	} else {
		c.moveToFront(e)
	}

	e.records = append(e.records, records...)
	if len(e.records) > c.windowSize {
		trimmed := make([]domain.Record, c.windowSize)
		copy(trimmed, e.records[len(e.records)-c.windowSize:])
		e.records = trimmed
	}
}

// snapshot returns a copy of the location's window, oldest first.
func (c *historyCache) snapshot(key string) []domain.Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil
	}
	c.moveToFront(e)
	out := make([]domain.Record, len(e.records))
	copy(out, e.records)
	return out
}

func (c *historyCache) moveToFront(e *historyEntry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *historyCache) addToFront(e *historyEntry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *historyCache) remove(e *historyEntry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *historyCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
