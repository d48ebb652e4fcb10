package core

import (
	"container/list"
	"fmt"
)

// CommandDeduper implements two-tier deduplication: an in-memory LRU in
// front of a Postgres lookup.
type CommandDeduper struct {
	lru *dedupLRU

	// Tier 2: Postgres (injected via interface)
	dbChecker DBDedupChecker

	duplicatesLRU map[string]int64 // command_type -> count
	duplicatesDB  map[string]int64
	tier2Errors   int64
}

// DBDedupChecker is the interface for the Postgres dedup lookup.
type DBDedupChecker interface {
	IsDuplicate(commandType string, idempotencyKey string) (bool, error)
}

func NewCommandDeduper(capacity int, dbChecker DBDedupChecker) *CommandDeduper {
	return &CommandDeduper{
		lru:           newDedupLRU(capacity),
		dbChecker:     dbChecker,
		duplicatesLRU: make(map[string]int64),
		duplicatesDB:  make(map[string]int64),
	}
}

// IsDuplicate checks whether the command was already processed. The LRU
// is the hot path; a miss falls through to Postgres.
func (d *CommandDeduper) IsDuplicate(commandType string, idempotencyKey string) bool {
	compositeKey := fmt.Sprintf("%s:%s", commandType, idempotencyKey)

	if d.lru.Contains(compositeKey) {
		d.duplicatesLRU[commandType]++
		return true
	}

	if d.dbChecker != nil {
		isDup, err := d.dbChecker.IsDuplicate(commandType, idempotencyKey)
		if err != nil {
			// Conservative: a DB error must not block processing, so
			// assume not duplicate.
			d.tier2Errors++
			return false
		}

		if isDup {
			d.duplicatesDB[commandType]++
			// Cache so the next replay of this key stays off the DB.
			d.lru.Add(compositeKey)
			return true
		}
	}

	return false
}

// MarkProcessed adds the key to the LRU after successful processing.
func (d *CommandDeduper) MarkProcessed(commandType string, idempotencyKey string) {
	compositeKey := fmt.Sprintf("%s:%s", commandType, idempotencyKey)
	d.lru.Add(compositeKey)
}

// Duplicates returns per-tier dedup counts for a command type.
func (d *CommandDeduper) Duplicates(commandType string) (lru int64, db int64) {
	return d.duplicatesLRU[commandType], d.duplicatesDB[commandType]
}

// Tier2Errors returns the number of failed Postgres lookups.
func (d *CommandDeduper) Tier2Errors() int64 {
	return d.tier2Errors
}

// --- LRU implementation ---

// dedupLRU is an LRU cache for idempotency keys.
// Not thread-safe; only accessed from the single-threaded core.
type dedupLRU struct {
	capacity int
	cache    map[string]*list.Element
	order    *list.List

	evictions int64
}

type dedupEntry struct {
	key string
}

func newDedupLRU(capacity int) *dedupLRU {
	return &dedupLRU{
		capacity: capacity,
		cache:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

// Contains checks if key exists, promoting it to most recently used.
func (lru *dedupLRU) Contains(key string) bool {
	elem, exists := lru.cache[key]
	if exists {
		lru.order.MoveToFront(elem)
		return true
	}
	return false
}

// Add inserts a key, or promotes it if already present.
func (lru *dedupLRU) Add(key string) {
	if elem, exists := lru.cache[key]; exists {
		lru.order.MoveToFront(elem)
		return
	}

	entry := &dedupEntry{key: key}
	elem := lru.order.PushFront(entry)
	lru.cache[key] = elem

	if lru.order.Len() > lru.capacity {
		lru.evictOldest()
	}
}

func (lru *dedupLRU) evictOldest() {
	elem := lru.order.Back()
	if elem != nil {
		lru.order.Remove(elem)
		entry := elem.Value.(*dedupEntry)
		delete(lru.cache, entry.key)
		lru.evictions++
	}
}

// WarmFromKeys loads a batch of composite keys, used on restart to keep
// recently processed commands off the cold DB path.
func (lru *dedupLRU) WarmFromKeys(keys []string) {
	for _, key := range keys {
		if _, exists := lru.cache[key]; exists {
			continue
		}
		entry := &dedupEntry{key: key}
		elem := lru.order.PushFront(entry)
		lru.cache[key] = elem

		if lru.order.Len() > lru.capacity {
			lru.evictOldest()
		}
	}
}

// Size returns the current number of entries.
func (lru *dedupLRU) Size() int {
	return lru.order.Len()
}

// Evictions returns total evictions.
func (lru *dedupLRU) Evictions() int64 {
	return lru.evictions
}

// Keys returns every cached composite key, newest first.
func (lru *dedupLRU) Keys() []string {
	keys := make([]string, 0, lru.order.Len())
	for elem := lru.order.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*dedupEntry).key)
	}
	return keys
}
