// Package cache holds the in-memory, optimistically updated set of todos.
//
// The cache is the only owner of Todo records on the client side. Mutations are
// applied tentatively and later either reconciled with the server's record or
// rolled back to the snapshot captured just before the mutation.
package cache

import (
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"todosync/internal/logging"
	"todosync/internal/service"
)

type entry struct {
	todo service.Todo
	seq  uint64 // insertion order, kept across reconciliation
}

// Snapshot is an immutable copy of the cache at one point in time.
type Snapshot struct {
	entries  map[string]entry
	affected []string
	gen      uint64
}

// Len returns the number of records.
func (s Snapshot) Len() int {
	return len(s.entries)
}

// Get returns the record for id.
func (s Snapshot) Get(id string) (service.Todo, bool) {
	e, ok := s.entries[id]
	if !ok {
		return service.Todo{}, false
	}
	return e.todo.Clone(), true
}

// Todos returns all records in insertion order.
func (s Snapshot) Todos() []service.Todo {
	list := make([]entry, 0, len(s.entries))
	for _, e := range s.entries {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].seq < list[j].seq })
	out := make([]service.Todo, len(list))
	for i, e := range list {
		out[i] = e.todo.Clone()
	}
	return out
}

// IDs returns the set of ids in insertion order.
func (s Snapshot) IDs() []string {
	todos := s.Todos()
	ids := make([]string, len(todos))
	for i, t := range todos {
		ids[i] = t.ID
	}
	return ids
}

// Affected returns the ids the mutation that produced this snapshot touches.
func (s Snapshot) Affected() []string {
	return append([]string(nil), s.affected...)
}

// Equal reports whether both snapshots hold the same ids with the same field values.
func (s Snapshot) Equal(o Snapshot) bool {
	if len(s.entries) != len(o.entries) {
		return false
	}
	for id, e := range s.entries {
		oe, ok := o.entries[id]
		if !ok || !e.todo.Equal(oe.todo) {
			return false
		}
	}
	return true
}

// Listener receives the new snapshot after every mutating call.
type Listener func(Snapshot)

// Cache is the process-wide optimistic todo cache.
type Cache struct {
	mu        sync.Mutex
	entries   map[string]entry
	nextSeq   uint64
	gen       uint64
	gone      map[string]bool // ids the server confirmed deleted this generation
	loaded    bool
	listeners map[int]Listener
	nextSub   int
	logger    *log.Logger
}

// New creates an empty cache.
func New(logger *log.Logger) *Cache {
	return &Cache{
		entries:   make(map[string]entry),
		gone:      make(map[string]bool),
		listeners: make(map[int]Listener),
		logger:    logging.OrDiscard(logger).WithPrefix("cache"),
	}
}

// Subscribe registers fn and returns a function that removes it.
func (c *Cache) Subscribe(fn Listener) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

// Loaded reports whether the cache holds a server listing.
func (c *Cache) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Snapshot returns the current state.
func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked(nil)
}

// Get returns the record for id.
func (c *Cache) Get(id string) (service.Todo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[id]
	if !ok {
		return service.Todo{}, false
	}
	return e.todo.Clone(), true
}

// Todos returns all records in insertion order.
func (c *Cache) Todos() []service.Todo {
	return c.Snapshot().Todos()
}

// Replace swaps the whole cache content for a server listing.
func (c *Cache) Replace(todos []service.Todo) {
	c.mu.Lock()
	c.entries = make(map[string]entry, len(todos))
	for _, t := range todos {
		c.putLocked(t.Clone())
	}
	c.loaded = true
	c.logger.Debug("replaced", "count", len(todos))
	c.commit()
}

// ApplyCreate inserts a tentative record and returns the snapshot before it.
func (c *Cache) ApplyCreate(tentativeID string, todo service.Todo) Snapshot {
	c.mu.Lock()
	before := c.snapshotLocked([]string{tentativeID})
	todo = todo.Clone()
	todo.ID = tentativeID
	c.putLocked(todo)
	c.logger.Debug("apply create", "id", tentativeID)
	c.commit()
	return before
}

// ApplyUpdate merges patch into the record at id and returns the snapshot before it.
// When no record exists the snapshot is still returned together with a NotFound error.
func (c *Cache) ApplyUpdate(id string, patch service.Patch) (Snapshot, error) {
	c.mu.Lock()
	before := c.snapshotLocked([]string{id})
	e, ok := c.entries[id]
	if !ok {
		c.mu.Unlock()
		return before, &service.Error{Kind: service.KindNotFound, Op: "update", ID: id, Message: "not in cache"}
	}
	e.todo = patch.ApplyTo(e.todo)
	c.entries[id] = e
	c.logger.Debug("apply update", "id", id)
	c.commit()
	return before, nil
}

// ApplyDelete removes the record at id and returns the snapshot before it.
func (c *Cache) ApplyDelete(id string) Snapshot {
	c.mu.Lock()
	before := c.snapshotLocked([]string{id})
	delete(c.entries, id)
	c.logger.Debug("apply delete", "id", id)
	c.commit()
	return before
}

// ReconcileCreate replaces the tentative record with the server's record.
// The server record wins even if the tentative record was deleted or edited
// in the meantime. Returns false when the cache was invalidated after snap.
func (c *Cache) ReconcileCreate(snap Snapshot, tentativeID string, server service.Todo) bool {
	c.mu.Lock()
	if snap.gen != c.gen {
		c.mu.Unlock()
		return false
	}
	seq, ok := c.seqOf(tentativeID)
	delete(c.entries, tentativeID)
	if existing, found := c.entries[server.ID]; found {
		seq, ok = existing.seq, true
	}
	if ok {
		c.entries[server.ID] = entry{todo: server.Clone(), seq: seq}
	} else {
		c.putLocked(server.Clone())
	}
	c.logger.Debug("reconcile create", "tentative", tentativeID, "id", server.ID)
	c.commit()
	return true
}

// ReconcileUpdate replaces the local record for server.ID with the server's version.
// A record removed locally in the meantime stays removed.
func (c *Cache) ReconcileUpdate(snap Snapshot, server service.Todo) bool {
	c.mu.Lock()
	if snap.gen != c.gen {
		c.mu.Unlock()
		return false
	}
	e, ok := c.entries[server.ID]
	if !ok {
		c.mu.Unlock()
		c.logger.Debug("reconcile update skipped, record gone", "id", server.ID)
		return false
	}
	e.todo = server.Clone()
	c.entries[server.ID] = e
	c.logger.Debug("reconcile update", "id", server.ID)
	c.commit()
	return true
}

// ConfirmDelete records that the server removed id. Later rollbacks of
// other mutations never bring the record back.
func (c *Cache) ConfirmDelete(snap Snapshot, id string) bool {
	c.mu.Lock()
	if snap.gen != c.gen {
		c.mu.Unlock()
		return false
	}
	c.gone[id] = true
	if _, ok := c.entries[id]; !ok {
		c.mu.Unlock()
		return true
	}
	delete(c.entries, id)
	c.logger.Debug("confirm delete", "id", id)
	c.commit()
	return true
}

// Rollback restores the records touched by the mutation that produced snap
// to their state in snap. Records of other ids are left alone, and so are
// records whose deletion the server confirmed.
func (c *Cache) Rollback(snap Snapshot) bool {
	c.mu.Lock()
	if snap.gen != c.gen {
		c.mu.Unlock()
		return false
	}
	for _, id := range snap.affected {
		if c.gone[id] {
			continue
		}
		if e, ok := snap.entries[id]; ok {
			c.entries[id] = entry{todo: e.todo.Clone(), seq: e.seq}
		} else {
			delete(c.entries, id)
		}
	}
	c.logger.Debug("rollback", "ids", snap.affected)
	c.commit()
	return true
}

// Invalidate discards all state. Completions of mutations started before the
// call become no-ops and the next read refetches.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]entry)
	c.gone = make(map[string]bool)
	c.loaded = false
	c.gen++
	c.logger.Debug("invalidated", "generation", c.gen)
	c.commit()
}

func (c *Cache) seqOf(id string) (uint64, bool) {
	e, ok := c.entries[id]
	return e.seq, ok
}

func (c *Cache) putLocked(t service.Todo) {
	c.entries[t.ID] = entry{todo: t, seq: c.nextSeq}
	c.nextSeq++
}

func (c *Cache) snapshotLocked(affected []string) Snapshot {
	entries := make(map[string]entry, len(c.entries))
	for id, e := range c.entries {
		entries[id] = entry{todo: e.todo.Clone(), seq: e.seq}
	}
	return Snapshot{entries: entries, affected: affected, gen: c.gen}
}

// commit takes a snapshot, releases the lock, and notifies listeners
// synchronously. Must be called with c.mu held.
func (c *Cache) commit() {
	snap := c.snapshotLocked(nil)
	listeners := make([]Listener, 0, len(c.listeners))
	keys := make([]int, 0, len(c.listeners))
	for k := range c.listeners {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	for _, k := range keys {
		listeners = append(listeners, c.listeners[k])
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}
