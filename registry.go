package invoke

import (
	"sync"
	"weak"
)

// InvocationRegistry is the process-wide mapping from call-id to live
// Invocation (§2, §3). It holds only weak back-references — "a mapping
// for routing incoming responses, not ownership" (§3 Ownership) — and
// exposes a periodic Scan used by the Monitor to drive
// NotifyInvocationTimeout/CheckBackupTimeout across every live entry
// without per-invocation timers (§9).
//
// Grounded on the teacher's registry.go: the same ring-buffer cursor lets
// Scan make deterministic forward progress over the whole table across
// repeated small batches, and the same weak.Pointer[T] mechanism means an
// Invocation whose future has already completed and been dropped by its
// owner is simply skipped rather than needing an explicit deregister
// before being garbage collected.
type InvocationRegistry struct {
	mu sync.RWMutex

	data map[uint64]weak.Pointer[Invocation]
	ring []uint64
	head int

	nextID uint64

	scavengeMu sync.Mutex
}

// NewInvocationRegistry constructs an empty registry. Call-ids start at 1
// so 0 remains the "unused" marker required by §3 invariant 6.
func NewInvocationRegistry() *InvocationRegistry {
	return &InvocationRegistry{
		data:   make(map[uint64]weak.Pointer[Invocation]),
		ring:   make([]uint64, 0, 1024),
		nextID: 1,
	}
}

// Register assigns a fresh call-id to inv and indexes it. Called exactly
// once per Invocation, from the first doInvoke attempt whose target
// resolution succeeds.
func (r *InvocationRegistry) Register(inv *Invocation) uint64 {
	wp := weak.Make(inv)

	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++

	r.data[id] = wp
	r.ring = append(r.ring, id)
	inv.callID.Store(id)

	return id
}

// Lookup returns the live Invocation for a call-id, or nil if it has
// completed and been collected, or was never registered.
func (r *InvocationRegistry) Lookup(callID uint64) *Invocation {
	r.mu.RLock()
	wp, ok := r.data[callID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}
	return wp.Value()
}

// Deregister removes a call-id eagerly, once its future has completed.
// Scan would eventually reclaim it anyway; Deregister avoids routing a
// stray late response to a call-id whose Invocation object is still
// reachable from somewhere else (e.g. a test holding a reference).
func (r *InvocationRegistry) Deregister(callID uint64) {
	r.mu.Lock()
	delete(r.data, callID)
	r.mu.Unlock()
}

// Scan performs a bounded sweep of the registry, invoking fn on every live
// Invocation encountered in this batch and retiring entries whose
// Invocation has been collected or deregistered. Called by the Monitor at
// its configured cadence (§2, §4.5); batchSize bounds how much of the
// table a single tick inspects so a very large registry is scanned over
// several ticks rather than blocking one.
func (r *InvocationRegistry) Scan(batchSize int, fn func(*Invocation)) {
	r.scavengeMu.Lock()
	defer r.scavengeMu.Unlock()

	if batchSize <= 0 {
		return
	}

	r.mu.RLock()
	ringLen := len(r.ring)
	if ringLen == 0 {
		r.mu.RUnlock()
		return
	}

	start := r.head
	end := min(start+batchSize, ringLen)

	type item struct {
		id  uint64
		idx int
	}
	items := make([]item, 0, end-start)
	for i := start; i < end; i++ {
		if id := r.ring[i]; id != 0 {
			items = append(items, item{id, i})
		}
	}

	wps := make([]weak.Pointer[Invocation], len(items))
	validItems := items[:0]
	for _, it := range items {
		if wp, ok := r.data[it.id]; ok {
			wps[len(validItems)] = wp
			validItems = append(validItems, it)
		}
	}
	wps = wps[:len(validItems)]

	nextHead := end
	if nextHead >= ringLen {
		nextHead = 0
	}
	r.mu.RUnlock()

	cycleCompleted := nextHead == 0

	var itemsToRemove []item
	for i, it := range validItems {
		inv := wps[i].Value()
		if inv == nil {
			itemsToRemove = append(itemsToRemove, it)
			continue
		}
		fn(inv)
		if inv.future.Done() {
			itemsToRemove = append(itemsToRemove, it)
		}
	}

	if len(itemsToRemove) > 0 || cycleCompleted {
		r.mu.Lock()
		for _, it := range itemsToRemove {
			delete(r.data, it.id)
			if it.idx < len(r.ring) && r.ring[it.idx] == it.id {
				r.ring[it.idx] = 0
			}
		}
		r.head = nextHead
		if cycleCompleted {
			active := len(r.data)
			capacity := len(r.ring)
			if capacity > 256 && float64(active) < float64(capacity)*0.25 {
				r.compactAndRenew()
			}
		}
		r.mu.Unlock()
	} else {
		r.mu.Lock()
		r.head = nextHead
		r.mu.Unlock()
	}
}

// compactAndRenew drops null markers from the ring and rebuilds the map,
// reclaiming the backing array Go's delete() leaves allocated. Must be
// called with mu held.
func (r *InvocationRegistry) compactAndRenew() {
	newRing := make([]uint64, 0, len(r.data))
	newData := make(map[uint64]weak.Pointer[Invocation], len(r.data))
	for _, id := range r.ring {
		if id != 0 {
			if wp, ok := r.data[id]; ok {
				newRing = append(newRing, id)
				newData[id] = wp
			}
		}
	}
	r.ring = newRing
	r.data = newData
	r.head = 0
}

// Len reports the number of entries currently indexed, including any not
// yet reclaimed by Scan. Intended for tests and diagnostics.
func (r *InvocationRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.data)
}
