// Package filelock implements the per-path readers-writer locks the local
// store uses to mediate concurrent access. Lock entries are reference
// counted and pruned when idle, so a long-running server does not
// accumulate one entry per path ever touched.
package filelock

import "sync"

type entry struct {
	readers     int
	writeLocked bool
	refs        int
}

// Table is a process-wide mapping from path to lock state, guarded by a
// single mutex and condition variable. A write acquirer waits until there
// are no readers and no writer; a read acquirer waits until there is no
// writer. Spurious wakeups are tolerated by re-checking the predicate in a
// loop, same as the C++ original's condition_variable usage.
type Table struct {
	mu      sync.Mutex
	cond    *sync.Cond
	entries map[string]*entry
}

// New creates an empty lock table.
func New() *Table {
	t := &Table{entries: make(map[string]*entry)}
	t.cond = sync.NewCond(&t.mu)
	return t
}

func (t *Table) ref(path string) *entry {
	e, ok := t.entries[path]
	if !ok {
		e = &entry{}
		t.entries[path] = e
	}
	e.refs++
	return e
}

func (t *Table) unref(path string, e *entry) {
	e.refs--
	if e.refs == 0 && e.readers == 0 && !e.writeLocked {
		delete(t.entries, path)
	}
}

// AcquireRead blocks until no writer holds path, then registers a reader.
func (t *Table) AcquireRead(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.ref(path)
	for e.writeLocked {
		t.cond.Wait()
	}
	e.readers++
}

// ReleaseRead releases a previously acquired read lock on path.
func (t *Table) ReleaseRead(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[path]
	if !ok {
		return
	}
	e.readers--
	t.unref(path, e)
	t.cond.Broadcast()
}

// AcquireWrite blocks until there are no readers and no writer holding
// path, then marks it write-locked.
func (t *Table) AcquireWrite(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e := t.ref(path)
	for e.readers > 0 || e.writeLocked {
		t.cond.Wait()
	}
	e.writeLocked = true
}

// ReleaseWrite releases a previously acquired write lock on path.
func (t *Table) ReleaseWrite(path string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[path]
	if !ok {
		return
	}
	e.writeLocked = false
	t.unref(path, e)
	t.cond.Broadcast()
}

// ReadGuard is a scoped read-lock handle that guarantees release on every
// exit path via defer Release().
type ReadGuard struct {
	table *Table
	path  string
}

// LockRead acquires a scoped read lock.
func (t *Table) LockRead(path string) *ReadGuard {
	t.AcquireRead(path)
	return &ReadGuard{table: t, path: path}
}

// Release releases the scoped read lock. Safe to call at most once.
func (g *ReadGuard) Release() {
	g.table.ReleaseRead(g.path)
}

// WriteGuard is a scoped write-lock handle that guarantees release on
// every exit path via defer Release().
type WriteGuard struct {
	table *Table
	path  string
}

// LockWrite acquires a scoped write lock.
func (t *Table) LockWrite(path string) *WriteGuard {
	t.AcquireWrite(path)
	return &WriteGuard{table: t, path: path}
}

// Release releases the scoped write lock. Safe to call at most once.
func (g *WriteGuard) Release() {
	g.table.ReleaseWrite(g.path)
}

// LockRename acquires the write locks for both a and b in a deterministic
// (lexicographic) order, so a concurrent rename(b, a) cannot deadlock
// against this call. The returned release function unlocks both, in the
// reverse order they were acquired.
func (t *Table) LockRename(a, b string) (release func()) {
	first, second := a, b
	if second < first {
		first, second = second, first
	}
	if first == second {
		g := t.LockWrite(first)
		return func() { g.Release() }
	}
	g1 := t.LockWrite(first)
	g2 := t.LockWrite(second)
	return func() {
		g2.Release()
		g1.Release()
	}
}
