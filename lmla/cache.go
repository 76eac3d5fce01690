package lmla

import "container/list"

// History is a cache key for a language-model context: the word history
// the look-ahead scores are conditioned on. Concrete History values must
// be comparable (a fixed-size array or small struct of word ids), since
// the cache compares them the same way a Go map compares interface keys.
type History any

// cache holds acquired ContextLookahead tables keyed by History. When a
// new table is acquired while highMark tables are already held, the
// least-recently-used tables are evicted first until lowMark remain, so
// the cache never holds more than highMark tables. Evicted tables go to a
// free list and are reused by later acquires.
type cache struct {
	tree *Tree

	highMark, lowMark int

	order   *list.List // front = most recently used
	byKey   map[History]*list.Element
	entries map[*list.Element]*ContextLookahead

	free []*ContextLookahead
}

func newCache(tree *Tree, lowMark, highMark int) *cache {
	return &cache{
		tree:     tree,
		highMark: highMark,
		lowMark:  lowMark,
		order:    list.New(),
		byKey:    make(map[History]*list.Element),
		entries:  make(map[*list.Element]*ContextLookahead),
	}
}

// Active returns the number of tables currently tracked, filled or not.
func (c *cache) Active() int { return c.order.Len() }

// get returns the table for history if present, marking it most recently
// used.
func (c *cache) get(history History) (*ContextLookahead, bool) {
	el, ok := c.byKey[history]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return c.entries[el], true
}

// acquire returns the table for history, creating (and registering) a
// fresh unfilled one if none exists yet, evicting down to lowMark first
// if the cache is over highMark.
func (c *cache) acquire(history History) (table *ContextLookahead, created bool) {
	if t, ok := c.get(history); ok {
		return t, false
	}

	if c.order.Len() >= c.highMark {
		c.evictTo(c.lowMark)
	}

	t := c.newTable()
	t.history = history
	el := c.order.PushFront(history)
	c.byKey[history] = el
	c.entries[el] = t
	return t, true
}

func (c *cache) newTable() *ContextLookahead {
	if n := len(c.free); n > 0 {
		t := c.free[n-1]
		c.free = c.free[:n-1]
		t.reset()
		return t
	}
	return newContextLookahead(c.tree)
}

// evictTo removes least-recently-used tables until at most target remain.
func (c *cache) evictTo(target int) {
	for c.order.Len() > target {
		el := c.order.Back()
		if el == nil {
			return
		}
		history := el.Value.(History)
		t := c.entries[el]
		c.order.Remove(el)
		delete(c.byKey, history)
		delete(c.entries, el)
		c.free = append(c.free, t)
	}
}
