package coordinator

// dedupRing is a bounded seen-set: once full, the oldest key is evicted.
// One ring per session, discarded with it, so it never grows with room churn
// the way a process-wide set would.
type dedupRing struct {
	keys []string
	set  map[string]bool
	next int
}

func newDedupRing(capacity int) *dedupRing {
	return &dedupRing{
		keys: make([]string, capacity),
		set:  make(map[string]bool, capacity),
	}
}

// Seen records key and reports whether it was already present.
func (r *dedupRing) Seen(key string) bool {
	if r.set[key] {
		return true
	}
	if old := r.keys[r.next]; old != "" {
		delete(r.set, old)
	}
	r.keys[r.next] = key
	r.set[key] = true
	r.next = (r.next + 1) % len(r.keys)
	return false
}
