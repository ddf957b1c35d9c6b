// Package cache provides a weight budgeted LRU cache with optional entry
// expiry.
package cache

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

var ErrKeyExists = errors.New("key already exists in cache")

// Cache stores values under string keys. Each entry carries a weight, and the
// least recently used entries are evicted once the total exceeds the budget.
type Cache[V any] interface {
	GetWeight() int
	GetBudget() int
	Insert(key string, value V, weight int) error
	Upsert(key string, value V, weight int)
	Retrieve(key string) (V, bool)
	Delete(key string)
	Len() int
	Clear()
}

type node[V any] struct {
	next    *node[V]
	prev    *node[V]
	key     string
	value   V
	weight  int
	expires time.Time
}

type cache[V any] struct {
	log *logrus.Entry

	mu     sync.Mutex
	head   *node[V]
	tail   *node[V]
	lookup map[string]*node[V]
	weight int
	budget int
	ttl    time.Duration

	now func() time.Time
}

// New returns a cache with the given weight budget. Entries older than ttl are
// treated as missing. A ttl of zero disables expiry.
func New[V any](budget int, ttl time.Duration) Cache[V] {
	return &cache[V]{
		log:    logrus.StandardLogger().WithField("type", "cache"),
		lookup: make(map[string]*node[V]),
		budget: budget,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (c *cache[V]) GetWeight() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.weight
}

func (c *cache[V]) GetBudget() int {
	return c.budget
}

func (c *cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.lookup)
}

// Insert adds a new entry, failing with ErrKeyExists if a live entry is
// already present.
func (c *cache[V]) Insert(key string, value V, weight int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, found := c.lookup[key]; found {
		if !c.expired(n) {
			return ErrKeyExists
		}
		c.remove(n)
	}

	c.pushFront(key, value, weight)
	return nil
}

// Upsert adds or replaces an entry.
func (c *cache[V]) Upsert(key string, value V, weight int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, found := c.lookup[key]; found {
		c.remove(n)
	}

	c.pushFront(key, value, weight)
}

// Retrieve returns the entry for key and marks it as recently used.
func (c *cache[V]) Retrieve(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V

	n, found := c.lookup[key]
	if !found {
		return zero, false
	}
	if c.expired(n) {
		c.remove(n)
		return zero, false
	}

	if n != c.head {
		c.unlink(n)
		c.link(n)
	}

	return n.value, true
}

func (c *cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, found := c.lookup[key]; found {
		c.remove(n)
	}
}

func (c *cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.head = nil
	c.tail = nil
	c.lookup = make(map[string]*node[V])
	c.weight = 0
}

func (c *cache[V]) expired(n *node[V]) bool {
	return !n.expires.IsZero() && !c.now().Before(n.expires)
}

func (c *cache[V]) pushFront(key string, value V, weight int) {
	n := &node[V]{
		key:    key,
		value:  value,
		weight: weight,
	}
	if c.ttl > 0 {
		n.expires = c.now().Add(c.ttl)
	}

	c.link(n)
	c.lookup[key] = n
	c.weight += weight

	for c.weight > c.budget && c.tail != nil {
		evicted := c.tail
		c.remove(evicted)

		c.log.WithFields(logrus.Fields{
			"key":          evicted.key,
			"weight":       evicted.weight,
			"spare_weight": c.budget - c.weight,
		}).Trace("evicted cache entry")
	}
}

func (c *cache[V]) remove(n *node[V]) {
	c.unlink(n)
	delete(c.lookup, n.key)
	c.weight -= n.weight
}

func (c *cache[V]) link(n *node[V]) {
	n.prev = nil
	n.next = c.head
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
}

func (c *cache[V]) unlink(n *node[V]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
	n.next = nil
	n.prev = nil
}
