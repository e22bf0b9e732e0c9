package state

import "sync"

// Field is one typed topic of the store. The zero value is unset and has no
// subscribers.
//
// Writes and their notifications are serialized: subscribers see updates in
// the order they were stored, and the last notification matches Get. A
// callback may Get, Subscribe or unsubscribe, but must not Set or Clear the
// field that is notifying it.
type Field[T any] struct {
	// notify is held from a write until its callbacks return.
	notify sync.Mutex
	mu     sync.Mutex
	value  T
	set    bool
	nextID uint64
	subs   []subscription[T]
}

type subscription[T any] struct {
	id uint64
	fn func(T, bool)
}

// Get returns the current value and whether it is set.
func (f *Field[T]) Get() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.set
}

// Set stores v and notifies subscribers with (v, true).
func (f *Field[T]) Set(v T) {
	f.notify.Lock()
	defer f.notify.Unlock()
	f.mu.Lock()
	f.value = v
	f.set = true
	subs := f.snapshotSubs()
	f.mu.Unlock()

	for _, s := range subs {
		s.fn(v, true)
	}
}

// Clear unsets the field and notifies subscribers with (zero, false).
func (f *Field[T]) Clear() {
	var zero T
	f.notify.Lock()
	defer f.notify.Unlock()
	f.mu.Lock()
	f.value = zero
	f.set = false
	subs := f.snapshotSubs()
	f.mu.Unlock()

	for _, s := range subs {
		s.fn(zero, false)
	}
}

// Subscribe registers fn for every later Set or Clear. Registering the same
// function twice yields two independent registrations. The returned function
// removes exactly this registration and may be called more than once.
func (f *Field[T]) Subscribe(fn func(v T, ok bool)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	f.mu.Lock()
	f.nextID++
	id := f.nextID
	f.subs = append(f.subs, subscription[T]{id: id, fn: fn})
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { f.remove(id) })
	}
}

// Subscribers reports the number of live registrations.
func (f *Field[T]) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

func (f *Field[T]) remove(id uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.subs {
		if s.id == id {
			f.subs = append(f.subs[:i:i], f.subs[i+1:]...)
			return
		}
	}
}

// snapshotSubs copies the registrations so callbacks run without the lock.
// Callers must hold f.mu.
func (f *Field[T]) snapshotSubs() []subscription[T] {
	if len(f.subs) == 0 {
		return nil
	}
	dup := make([]subscription[T], len(f.subs))
	copy(dup, f.subs)
	return dup
}
