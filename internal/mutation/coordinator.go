// Package mutation sequences add/update/delete intents through the optimistic
// cache and the remote API.
//
// Work is organized in lanes keyed by (operation, id). A lane runs at most one
// task at a time; later tasks queue behind it in call order. Add and Update
// calls first wait out a debounce window during which repeated calls for the
// same key collapse into one task.
package mutation

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"todosync/internal/cache"
	"todosync/internal/logging"
	"todosync/internal/service"
)

// Op names a mutation kind.
type Op string

const (
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// DefaultDebounce is the window in which repeated add/update calls collapse.
const DefaultDebounce = 300 * time.Millisecond

// ErrClosed is returned for calls made after Close.
var ErrClosed = errors.New("mutation coordinator closed")

// Key identifies a lane. Add lanes are keyed by the trimmed title.
type Key struct {
	Op Op
	ID string
}

// Outcome describes a settled mutation.
type Outcome struct {
	Op Op
	// ID is the todo id; the tentative id for a failed add.
	ID string
	// TentativeID is the local id a successful add replaced.
	TentativeID string
	// Todo is the server record (add, update) or the removed record (delete).
	Todo service.Todo
	// Patch is the (merged) patch of an update.
	Patch service.Patch
	Err   error
}

// Hooks run after the cache was reconciled or rolled back and before the
// caller's handle resolves.
type Hooks struct {
	OnSuccess func(Outcome)
	OnFailure func(Outcome)
}

// Options configures a Coordinator.
type Options struct {
	// Debounce is the collapse window for add/update. Zero disables it.
	Debounce time.Duration

	// Auth, when set, is consulted before any optimistic change so that an
	// unauthenticated call never touches the cache.
	Auth service.AuthProvider

	// NewID generates tentative ids. Defaults to "tmp-" + random UUID.
	NewID func() string

	Hooks  Hooks
	Logger *log.Logger
}

// DefaultOptions returns options with the default debounce window.
func DefaultOptions() Options {
	return Options{Debounce: DefaultDebounce}
}

// NewTentativeID returns a collision-improbable local id.
func NewTentativeID() string {
	return "tmp-" + uuid.NewString()
}

// IsTentative reports whether id was generated by NewTentativeID.
func IsTentative(id string) bool {
	return len(id) > 4 && id[:4] == "tmp-"
}

type task struct {
	key     Key
	ctx     context.Context
	title   string
	patch   service.Patch
	waiters []*Pending
	timer   *time.Timer
}

type lane struct {
	waiting *task
	queue   []*task
	running bool
}

// Coordinator runs mutations against the cache and the remote API.
type Coordinator struct {
	api    service.TodoAPI
	cache  *cache.Cache
	opts   Options
	logger *log.Logger

	mu      sync.Mutex
	lanes   map[Key]*lane
	pending map[Op]int
	closed  bool
	wg      sync.WaitGroup
}

// New creates a Coordinator.
func New(api service.TodoAPI, c *cache.Cache, opts Options) *Coordinator {
	if opts.NewID == nil {
		opts.NewID = NewTentativeID
	}
	return &Coordinator{
		api:     api,
		cache:   c,
		opts:    opts,
		logger:  logging.OrDiscard(opts.Logger).WithPrefix("mutation"),
		lanes:   make(map[Key]*lane),
		pending: make(map[Op]int),
	}
}

// Add creates a todo with the given title.
// An empty title (after trimming) fails with a validation error and has no effect.
func (c *Coordinator) Add(ctx context.Context, title string) *Pending {
	title = service.NormalizeTitle(title)
	if title == "" {
		return Resolved(OpAdd, "", service.Todo{}, service.ValidationError(string(OpAdd), "title", "is required"))
	}
	t := &task{key: Key{Op: OpAdd, ID: title}, ctx: ctx, title: title}
	return c.submit(t, true)
}

// Update applies patch to the todo at id. An empty patch is not sent and
// resolves immediately with the cached record.
func (c *Coordinator) Update(ctx context.Context, id string, patch service.Patch) *Pending {
	if id == "" {
		return Resolved(OpUpdate, id, service.Todo{}, service.ValidationError(string(OpUpdate), "id", "is required"))
	}
	if patch.Title != nil {
		title := service.NormalizeTitle(*patch.Title)
		if title == "" {
			return Resolved(OpUpdate, id, service.Todo{}, service.ValidationError(string(OpUpdate), "title", "is required"))
		}
		patch.Title = &title
	}
	if patch.IsEmpty() {
		todo, _ := c.cache.Get(id)
		return Resolved(OpUpdate, id, todo, nil)
	}
	t := &task{key: Key{Op: OpUpdate, ID: id}, ctx: ctx, patch: patch}
	return c.submit(t, true)
}

// Delete removes the todo at id. Deletes are not debounced.
func (c *Coordinator) Delete(ctx context.Context, id string) *Pending {
	if id == "" {
		return Resolved(OpDelete, id, service.Todo{}, service.ValidationError(string(OpDelete), "id", "is required"))
	}
	t := &task{key: Key{Op: OpDelete, ID: id}, ctx: ctx}
	return c.submit(t, false)
}

// IsAdding reports whether add work is waiting or in flight.
func (c *Coordinator) IsAdding() bool { return c.busy(OpAdd) }

// IsUpdating reports whether update work is waiting or in flight.
func (c *Coordinator) IsUpdating() bool { return c.busy(OpUpdate) }

// IsDeleting reports whether delete work is waiting or in flight.
func (c *Coordinator) IsDeleting() bool { return c.busy(OpDelete) }

func (c *Coordinator) busy(op Op) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[op] > 0
}

// Close stops accepting calls, runs debounced work immediately and waits
// for all lanes to drain.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.wg.Wait()
		return
	}
	c.closed = true
	for key, l := range c.lanes {
		if l.waiting != nil {
			l.waiting.timer.Stop()
			l.queue = append(l.queue, l.waiting)
			l.waiting = nil
			c.kickLocked(key, l)
		}
	}
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Coordinator) submit(t *task, debounced bool) *Pending {
	p := newPending(t.key.Op, pendingID(t.key))

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		p.resolve(service.Todo{}, ErrClosed)
		return p
	}

	l, ok := c.lanes[t.key]
	if !ok {
		l = &lane{}
		c.lanes[t.key] = l
	}

	if debounced && c.opts.Debounce > 0 {
		if w := l.waiting; w != nil {
			// Collapse into the waiting task; the latest call's fields win.
			w.patch = w.patch.Merge(t.patch)
			w.ctx = t.ctx
			w.waiters = append(w.waiters, p)
			w.timer.Reset(c.opts.Debounce)
			c.logger.Debug("collapsed", "op", t.key.Op, "key", t.key.ID, "callers", len(w.waiters))
			return p
		}
		t.waiters = []*Pending{p}
		c.pending[t.key.Op]++
		l.waiting = t
		t.timer = time.AfterFunc(c.opts.Debounce, func() { c.release(t) })
		return p
	}

	t.waiters = []*Pending{p}
	c.pending[t.key.Op]++
	l.queue = append(l.queue, t)
	c.kickLocked(t.key, l)
	return p
}

func pendingID(k Key) string {
	if k.Op == OpAdd {
		return ""
	}
	return k.ID
}

// release moves a task out of its debounce window into the lane queue.
func (c *Coordinator) release(t *task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.lanes[t.key]
	if !ok || l.waiting != t {
		return
	}
	l.waiting = nil
	l.queue = append(l.queue, t)
	c.kickLocked(t.key, l)
}

func (c *Coordinator) kickLocked(key Key, l *lane) {
	if l.running || len(l.queue) == 0 {
		return
	}
	l.running = true
	c.wg.Add(1)
	go c.drain(key, l)
}

func (c *Coordinator) drain(key Key, l *lane) {
	defer c.wg.Done()
	for {
		c.mu.Lock()
		if len(l.queue) == 0 {
			l.running = false
			if l.waiting == nil {
				delete(c.lanes, key)
			}
			c.mu.Unlock()
			return
		}
		t := l.queue[0]
		l.queue = l.queue[1:]
		c.mu.Unlock()

		todo, err := c.run(t)

		c.mu.Lock()
		c.pending[t.key.Op]--
		c.mu.Unlock()

		for _, p := range t.waiters {
			p.resolve(todo, err)
		}
	}
}

func (c *Coordinator) run(t *task) (service.Todo, error) {
	ctx := t.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	id := pendingID(t.key)
	if err := ctx.Err(); err != nil {
		return service.Todo{}, err
	}
	if c.opts.Auth != nil {
		if _, err := c.opts.Auth.CurrentUserID(ctx); err != nil {
			c.fail(Outcome{Op: t.key.Op, ID: id, Patch: t.patch, Err: err})
			return service.Todo{}, err
		}
	}

	switch t.key.Op {
	case OpAdd:
		return c.runAdd(ctx, t)
	case OpUpdate:
		return c.runUpdate(ctx, t)
	default:
		return c.runDelete(ctx, t)
	}
}

func (c *Coordinator) runAdd(ctx context.Context, t *task) (service.Todo, error) {
	draft := service.Todo{Title: t.title}
	tentative := c.opts.NewID()
	before := c.cache.ApplyCreate(tentative, draft)

	server, err := c.api.Create(ctx, draft)
	if err != nil {
		c.rollback(before)
		c.fail(Outcome{Op: OpAdd, ID: tentative, Todo: draft, Err: err})
		return service.Todo{}, err
	}
	c.cache.ReconcileCreate(before, tentative, server)
	c.logger.Debug("added", "tentative", tentative, "id", server.ID)
	c.succeed(Outcome{Op: OpAdd, ID: server.ID, TentativeID: tentative, Todo: server})
	return server, nil
}

func (c *Coordinator) runUpdate(ctx context.Context, t *task) (service.Todo, error) {
	id := t.key.ID
	before, err := c.cache.ApplyUpdate(id, t.patch)
	if err != nil {
		// Not cached; the remote call still decides.
		c.logger.Debug("update of uncached todo", "id", id)
	}

	server, err := c.api.Update(ctx, id, t.patch)
	if err != nil {
		c.rollback(before)
		c.fail(Outcome{Op: OpUpdate, ID: id, Patch: t.patch, Err: err})
		return service.Todo{}, err
	}
	c.cache.ReconcileUpdate(before, server)
	c.logger.Debug("updated", "id", id)
	c.succeed(Outcome{Op: OpUpdate, ID: id, Todo: server, Patch: t.patch})
	return server, nil
}

func (c *Coordinator) runDelete(ctx context.Context, t *task) (service.Todo, error) {
	id := t.key.ID
	removed, ok := c.cache.Get(id)
	if !ok {
		removed = service.Todo{ID: id}
	}
	before := c.cache.ApplyDelete(id)

	if _, err := c.api.Remove(ctx, id); err != nil {
		c.rollback(before)
		c.fail(Outcome{Op: OpDelete, ID: id, Todo: removed, Err: err})
		return service.Todo{}, err
	}
	c.cache.ConfirmDelete(before, id)
	c.logger.Debug("deleted", "id", id)
	c.succeed(Outcome{Op: OpDelete, ID: id, Todo: removed})
	return removed, nil
}

func (c *Coordinator) rollback(snap cache.Snapshot) {
	if !c.cache.Rollback(snap) {
		c.logger.Debug("rollback skipped, cache invalidated", "ids", snap.Affected())
	}
}

func (c *Coordinator) succeed(o Outcome) {
	if c.opts.Hooks.OnSuccess != nil {
		c.opts.Hooks.OnSuccess(o)
	}
}

func (c *Coordinator) fail(o Outcome) {
	c.logger.Debug("failed", "op", o.Op, "id", o.ID, "err", o.Err)
	if c.opts.Hooks.OnFailure != nil {
		c.opts.Hooks.OnFailure(o)
	}
}
