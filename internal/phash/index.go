package phash

import "sync"

// Index is an in-memory fingerprint catalog safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	entries []entry
}

type entry struct {
	id   string
	hash Hash
}

func NewIndex() *Index {
	return new(Index)
}

// Put adds a fingerprint. A second Put for the same id replaces the first.
func (x *Index) Put(id string, h Hash) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for i := range x.entries {
		if x.entries[i].id == id {
			x.entries[i].hash = h
			return
		}
	}
	x.entries = append(x.entries, entry{id: id, hash: h})
}

// Remove drops the fingerprint stored for id, if any.
func (x *Index) Remove(id string) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for i := range x.entries {
		if x.entries[i].id == id {
			x.entries = append(x.entries[:i], x.entries[i+1:]...)
			return
		}
	}
}

// Len returns the number of fingerprints in the index.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

// Nearest returns the id with the smallest Hamming distance to h, provided
// that distance does not exceed maxDistance. Ties go to the earliest entry.
func (x *Index) Nearest(h Hash, maxDistance int) (id string, distance int, ok bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	distance = Bits + 1
	for _, e := range x.entries {
		if d := Distance(h, e.hash); d < distance {
			id, distance = e.id, d
		}
	}
	if id == "" || distance > maxDistance {
		return "", 0, false
	}
	return id, distance, true
}
