package service

import (
	"fmt"
	"sort"
	"sync"
)

// Coordinator serialises reconciliation runs against overrides.
//
// A run holds the exclusive lock for its whole duration. Overrides share
// that lock and additionally lock every invoice and transaction they touch,
// so overrides on disjoint records proceed in parallel.
type Coordinator struct {
	runLock sync.RWMutex

	keys      map[string]*keyLock
	keysMutex sync.Mutex
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewCoordinator creates an idle coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{keys: make(map[string]*keyLock)}
}

// Exclusive blocks until no run or override is in flight.
func (c *Coordinator) Exclusive() (unlock func()) {
	c.runLock.Lock()
	return c.runLock.Unlock
}

// Shared blocks until no run is in flight and every key is free. Keys are
// acquired in sorted order.
func (c *Coordinator) Shared(keys ...string) (unlock func()) {
	c.runLock.RLock()

	sorted := dedupe(keys)
	locks := make([]*keyLock, 0, len(sorted))
	for _, key := range sorted {
		l := c.acquire(key)
		l.mu.Lock()
		locks = append(locks, l)
	}

	return func() {
		for i := len(locks) - 1; i >= 0; i-- {
			locks[i].mu.Unlock()
			c.release(sorted[i])
		}
		c.runLock.RUnlock()
	}
}

func (c *Coordinator) acquire(key string) *keyLock {
	c.keysMutex.Lock()
	defer c.keysMutex.Unlock()

	l, exists := c.keys[key]
	if !exists {
		l = &keyLock{}
		c.keys[key] = l
	}
	l.refs++
	return l
}

func (c *Coordinator) release(key string) {
	c.keysMutex.Lock()
	defer c.keysMutex.Unlock()

	if l, exists := c.keys[key]; exists {
		l.refs--
		if l.refs == 0 {
			delete(c.keys, key)
		}
	}
}

// pending reports how many keys are currently held or awaited.
func (c *Coordinator) pending() int {
	c.keysMutex.Lock()
	defer c.keysMutex.Unlock()
	return len(c.keys)
}

func dedupe(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func invoiceKey(id int64) string {
	return fmt.Sprintf("invoice:%d", id)
}

func transactionKey(id int64) string {
	return fmt.Sprintf("transaction:%d", id)
}
