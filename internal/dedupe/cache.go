// ABOUTME: Size-bounded TTL set of recently seen event keys
// ABOUTME: Used by the Slack adapter to drop redelivered Socket Mode events

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// DefaultTTL is how long an event key is remembered.
const DefaultTTL = 10 * time.Minute

// DefaultMaxSize caps the number of remembered keys.
const DefaultMaxSize = 10000

type entry struct {
	key    string
	seenAt time.Time
}

// Cache remembers event keys for a TTL. Keys are kept in arrival order so
// both expiry and capacity eviction pop from the front.
type Cache struct {
	mu      sync.Mutex
	index   map[string]*list.Element
	order   *list.List
	ttl     time.Duration
	maxSize int
	now     func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a Cache and starts its background sweeper. Call Close to stop it.
func New(ttl time.Duration, maxSize int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	c := &Cache{
		index:   make(map[string]*list.Element),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	go c.sweepLoop()
	return c
}

// Key builds the dedupe key for one inbound event.
func Key(kind, channelID, ts string) string {
	return kind + ":" + channelID + ":" + ts
}

// Check reports whether key was seen within the TTL.
func (c *Cache) Check(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.index[key]
	return ok && c.fresh(elem)
}

// CheckAndMark reports whether key is a duplicate and, if it is not,
// remembers it. The check and the mark happen under one lock.
func (c *Cache) CheckAndMark(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[key]; ok {
		if c.fresh(elem) {
			return true
		}
		c.remove(elem)
	}

	for c.order.Len() >= c.maxSize {
		c.remove(c.order.Front())
	}
	c.index[key] = c.order.PushBack(&entry{key: key, seenAt: c.now()})
	return false
}

// Len returns the number of remembered keys, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Close stops the sweeper. Safe to call more than once.
func (c *Cache) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Cache) fresh(elem *list.Element) bool {
	return c.now().Sub(elem.Value.(*entry).seenAt) < c.ttl
}

// remove must be called with mu held.
func (c *Cache) remove(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.index, elem.Value.(*entry).key)
}

func (c *Cache) sweepLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.sweep()
		case <-c.stop:
			return
		}
	}
}

// sweep drops expired keys. Arrival order means it can stop at the first
// fresh entry.
func (c *Cache) sweep() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for elem := c.order.Front(); elem != nil; elem = c.order.Front() {
		if c.fresh(elem) {
			return
		}
		c.remove(elem)
	}
}
