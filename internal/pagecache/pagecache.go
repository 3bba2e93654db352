// Package pagecache provides a small bounded LRU of decoded pages,
// grounded on the teacher repo's buffer_pool concept but reduced to
// the synchronous, single-owner model spec.md §5 requires: no
// pinning, no dirty tracking, free to evict at any time since pages
// are read-only views.
package pagecache

import (
	"container/list"

	"github.com/MailG/innodb-ruby/internal/page"
)

// DefaultCapacity is used when a zero capacity is requested.
const DefaultCapacity = 256

// Cache is an LRU cache of page.Page keyed by page number. It is not
// safe for concurrent use; a Space owns one Cache per file handle
// (spec.md §5).
type Cache struct {
	capacity int
	items    map[uint32]*list.Element
	order    *list.List // front = most recently used
}

type entry struct {
	pageNo uint32
	page   page.Page
}

// New returns an empty Cache holding up to capacity pages.
func New(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Cache{
		capacity: capacity,
		items:    make(map[uint32]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached page for pageNo, if present, and marks it
// most recently used.
func (c *Cache) Get(pageNo uint32) (page.Page, bool) {
	el, ok := c.items[pageNo]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*entry).page, true
}

// Put inserts or updates pageNo's cached value, evicting the least
// recently used entry if the cache is over capacity.
func (c *Cache) Put(pageNo uint32, p page.Page) {
	if el, ok := c.items[pageNo]; ok {
		el.Value.(*entry).page = p
		c.order.MoveToFront(el)
		return
	}
	el := c.order.PushFront(&entry{pageNo: pageNo, page: p})
	c.items[pageNo] = el
	for c.order.Len() > c.capacity {
		back := c.order.Back()
		if back == nil {
			break
		}
		c.order.Remove(back)
		delete(c.items, back.Value.(*entry).pageNo)
	}
}

// Len returns the number of cached pages.
func (c *Cache) Len() int { return c.order.Len() }
