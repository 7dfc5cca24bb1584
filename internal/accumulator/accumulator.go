// Package accumulator keeps the in-flight state of the module each build
// worker is currently executing.
//
// Every worker owns one insertion-ordered set. Workers never see each
// other's sets, so concurrently running modules cannot interfere. The mutex
// only guards the worker map itself; a worker's set is touched solely by the
// goroutine running that worker's module.
package accumulator

import "sync"

// Set is an insertion-ordered set whose identity is given by a key function.
// Adding a value whose key is already present keeps the original entry.
type Set[T any] struct {
	key   func(T) string
	index map[string]int
	items []T
}

// NewSet returns an empty set keyed by key.
func NewSet[T any](key func(T) string) *Set[T] {
	return &Set[T]{key: key, index: make(map[string]int)}
}

// Add inserts v unless an entry with the same key exists. It reports whether
// v was inserted.
func (s *Set[T]) Add(v T) bool {
	k := s.key(v)
	if _, ok := s.index[k]; ok {
		return false
	}
	s.index[k] = len(s.items)
	s.items = append(s.items, v)
	return true
}

// Contains reports whether an entry with v's key is present.
func (s *Set[T]) Contains(v T) bool {
	_, ok := s.index[s.key(v)]
	return ok
}

// Len returns the number of entries.
func (s *Set[T]) Len() int {
	return len(s.items)
}

// Items returns a copy of the entries in insertion order.
func (s *Set[T]) Items() []T {
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// Accumulator maps worker identifiers to their pending set.
type Accumulator[T any] struct {
	mu   sync.Mutex
	key  func(T) string
	sets map[string]*Set[T]
}

// New returns an empty accumulator whose sets are keyed by key.
func New[T any](key func(T) string) *Accumulator[T] {
	return &Accumulator[T]{
		key:  key,
		sets: make(map[string]*Set[T]),
	}
}

// GetOrCreate returns the worker's set, binding an empty one on first use.
// It never returns nil.
func (a *Accumulator[T]) GetOrCreate(worker string) *Set[T] {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.sets[worker]
	if !ok {
		s = NewSet(a.key)
		a.sets[worker] = s
	}
	return s
}

// Add inserts v into the worker's set.
func (a *Accumulator[T]) Add(worker string, v T) {
	a.GetOrCreate(worker).Add(v)
}

// AddAll inserts every value into the worker's set in order.
func (a *Accumulator[T]) AddAll(worker string, vs ...T) {
	s := a.GetOrCreate(worker)
	for _, v := range vs {
		s.Add(v)
	}
}

// Replace binds a fresh set holding vs to the worker, discarding whatever
// the worker had accumulated.
func (a *Accumulator[T]) Replace(worker string, vs []T) {
	s := NewSet(a.key)
	for _, v := range vs {
		s.Add(v)
	}

	a.mu.Lock()
	a.sets[worker] = s
	a.mu.Unlock()
}

// Clear removes the worker's binding. The next GetOrCreate starts empty.
func (a *Accumulator[T]) Clear(worker string) {
	a.mu.Lock()
	delete(a.sets, worker)
	a.mu.Unlock()
}

// Workers returns the number of workers with a bound set.
func (a *Accumulator[T]) Workers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.sets)
}
