package errhandling

import "alchemiser/src/model"

// ring is a fixed-capacity FIFO. Pushing into a full ring overwrites the
// oldest record. It is not synchronised; Handler guards it.
type ring struct {
	items []model.ErrorRecord
	start int
	size  int
}

func newRing(capacity int) *ring {
	if capacity < 1 {
		capacity = 1
	}
	return &ring{items: make([]model.ErrorRecord, capacity)}
}

// push reports whether a record was evicted to make room.
func (r *ring) push(rec model.ErrorRecord) bool {
	capacity := len(r.items)
	if r.size < capacity {
		r.items[(r.start+r.size)%capacity] = rec
		r.size++
		return false
	}
	r.items[r.start] = rec
	r.start = (r.start + 1) % capacity
	return true
}

func (r *ring) len() int { return r.size }

// each visits records oldest first.
func (r *ring) each(fn func(model.ErrorRecord)) {
	for i := 0; i < r.size; i++ {
		fn(r.items[(r.start+i)%len(r.items)])
	}
}

// snapshot deep-copies the records, oldest first.
func (r *ring) snapshot() []model.ErrorRecord {
	out := make([]model.ErrorRecord, 0, r.size)
	r.each(func(rec model.ErrorRecord) { out = append(out, rec.Clone()) })
	return out
}

func (r *ring) reset() {
	clear(r.items)
	r.start, r.size = 0, 0
}
