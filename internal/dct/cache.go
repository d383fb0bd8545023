package dct

import "sync"

// Cache shares DCT bases between goroutines, one per shape.
type Cache struct {
	bases sync.Map // [2]int -> *DCT
}

func NewCache() *Cache {
	return new(Cache)
}

// Get returns the cached DCT for w x h, building it on first use.
func (c *Cache) Get(w, h int) *DCT {
	key := [2]int{w, h}
	if v, ok := c.bases.Load(key); ok {
		return v.(*DCT)
	}
	actual, _ := c.bases.LoadOrStore(key, New(w, h))
	return actual.(*DCT)
}
