// Package store is the todo state container consumed by the CLI and the TUI.
//
// A Store owns the optimistic cache, the mutation coordinator, the persisted
// display order and the drag engine, and turns mutation outcomes into
// notifications and achievements.
package store

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"todosync/internal/achievement"
	"todosync/internal/cache"
	"todosync/internal/logging"
	"todosync/internal/mutation"
	"todosync/internal/order"
	"todosync/internal/reorder"
	"todosync/internal/service"
)

// taskMasterCount is the number of completed todos that earns the Task Master toast.
const taskMasterCount = 2

// Loading reports which kinds of work are waiting or in flight.
type Loading struct {
	Fetching bool
	Adding   bool
	Updating bool
	Deleting bool
}

// Any reports whether any work is pending.
func (l Loading) Any() bool {
	return l.Fetching || l.Adding || l.Updating || l.Deleting
}

// Drag is the state of the drag gesture.
type Drag struct {
	State    reorder.State
	ActiveID string
}

// View is what subscribers render.
type View struct {
	// Todos in display order.
	Todos   []service.Todo
	Loaded  bool
	Loading Loading
	Drag    Drag
	// Err is the error of the last failed fetch, cleared by the next success.
	Err error
}

// Options configures a Store.
type Options struct {
	// Debounce is the add/update collapse window.
	Debounce   time.Duration
	Auth       service.AuthProvider
	Notifier   Notifier
	Activation reorder.Activation
	Now        func() time.Time
	Logger     *log.Logger
}

// DefaultOptions returns options with the default debounce window.
func DefaultOptions() Options {
	return Options{Debounce: mutation.DefaultDebounce}
}

// Store exposes the todo list with optimistic mutations.
type Store struct {
	api      service.TodoAPI
	auth     service.AuthProvider
	cache    *cache.Cache
	coord    *mutation.Coordinator
	orders   *order.Store
	engine   *reorder.Engine
	tracker  *achievement.Tracker
	logger   *log.Logger

	group    singleflight.Group
	fetching atomic.Int32
	unsub    func()

	mu        sync.Mutex
	notifier  Notifier
	order     order.List
	lastErr   error
	listeners map[int]func(View)
	nextSub   int
}

// New creates a Store on top of api. orders persists the display order.
func New(api service.TodoAPI, orders *order.Store, opts Options) *Store {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := logging.OrDiscard(opts.Logger)

	s := &Store{
		api:       api,
		auth:      opts.Auth,
		cache:     cache.New(logger),
		orders:    orders,
		tracker:   achievement.NewTracker(opts.Now),
		notifier:  opts.Notifier,
		logger:    logger.WithPrefix("store"),
		order:     orders.Load(),
		listeners: make(map[int]func(View)),
	}
	s.coord = mutation.New(api, s.cache, mutation.Options{
		Debounce: opts.Debounce,
		Auth:     opts.Auth,
		Hooks: mutation.Hooks{
			OnSuccess: s.onSuccess,
			OnFailure: s.onFailure,
		},
		Logger: logger,
	})
	s.engine = reorder.NewEngine(orders, reorder.Options{
		Activation: opts.Activation,
		Now:        opts.Now,
		Logger:     logger,
	})
	s.unsub = s.cache.Subscribe(func(cache.Snapshot) { s.publish() })
	return s
}

// Subscribe registers fn to receive a View after every change.
func (s *Store) Subscribe(fn func(View)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.listeners[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// View returns the current view.
func (s *Store) View() View {
	state, active := s.engine.State()
	s.mu.Lock()
	list, lastErr := s.order.Clone(), s.lastErr
	s.mu.Unlock()

	return View{
		Todos:   order.Reconcile(list, s.cache.Todos()),
		Loaded:  s.cache.Loaded(),
		Loading: s.Loading(),
		Drag:    Drag{State: state, ActiveID: active},
		Err:     lastErr,
	}
}

func (s *Store) publish() {
	s.mu.Lock()
	ids := make([]int, 0, len(s.listeners))
	for id := range s.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(View), len(ids))
	for i, id := range ids {
		fns[i] = s.listeners[id]
	}
	s.mu.Unlock()
	if len(fns) == 0 {
		return
	}

	v := s.View()
	for _, fn := range fns {
		fn(v)
	}
}

// Load fetches the list unless the cache already holds one.
func (s *Store) Load(ctx context.Context) error {
	if s.cache.Loaded() {
		return nil
	}
	return s.Refresh(ctx)
}

// Refresh refetches the current user's todos and replaces the cache.
// Concurrent calls share one request.
func (s *Store) Refresh(ctx context.Context) error {
	s.fetching.Add(1)
	defer s.fetching.Add(-1)

	_, err, shared := s.group.Do("list", func() (interface{}, error) {
		filter := service.Filter{}
		if s.auth != nil {
			user, err := s.auth.CurrentUserID(ctx)
			if err != nil {
				return nil, err
			}
			filter.CreatedBy = user
		}
		todos, err := s.api.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		s.cache.Replace(todos)
		return nil, nil
	})
	s.logger.Debug("refresh", "shared", shared, "err", err)

	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	if err != nil {
		s.publish()
	}
	return err
}

// Todos returns the cached todos in display order.
func (s *Store) Todos() []service.Todo {
	s.mu.Lock()
	list := s.order.Clone()
	s.mu.Unlock()
	return order.Reconcile(list, s.cache.Todos())
}

// Get returns the cached todo for id.
func (s *Store) Get(id string) (service.Todo, bool) {
	return s.cache.Get(id)
}

// Add creates a todo.
func (s *Store) Add(ctx context.Context, title string) *mutation.Pending {
	return s.rejected(s.coord.Add(ctx, title))
}

// Update applies patch to the todo at id.
func (s *Store) Update(ctx context.Context, id string, patch service.Patch) *mutation.Pending {
	return s.rejected(s.coord.Update(ctx, id, patch))
}

// Delete removes the todo at id.
func (s *Store) Delete(ctx context.Context, id string) *mutation.Pending {
	return s.rejected(s.coord.Delete(ctx, id))
}

// ToggleComplete flips the completion flag of the cached todo at id.
func (s *Store) ToggleComplete(ctx context.Context, id string) *mutation.Pending {
	todo, ok := s.cache.Get(id)
	if !ok {
		err := &service.Error{Kind: service.KindNotFound, Op: "toggle", ID: id, Message: "todo not found"}
		s.notify(failureToast(string(mutation.OpUpdate), err))
		return mutation.Resolved(mutation.OpUpdate, id, service.Todo{}, err)
	}
	return s.Update(ctx, id, service.CompletedPatch(!todo.Completed))
}

// rejected notifies calls refused by validation. Failures past validation
// are notified by the coordinator hooks.
func (s *Store) rejected(p *mutation.Pending) *mutation.Pending {
	if _, err, ok := p.Result(); ok && errors.Is(err, service.ErrValidation) {
		s.notify(failureToast(string(p.Op()), err))
	}
	return p
}

// SetNotifier replaces the notifier. nil discards notifications.
func (s *Store) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

func (s *Store) notify(n Notification) {
	s.mu.Lock()
	notifier := s.notifier
	s.mu.Unlock()
	if notifier != nil {
		notifier.Notify(n)
	}
}

// Loading reports pending work.
func (s *Store) Loading() Loading {
	return Loading{
		Fetching: s.fetching.Load() > 0,
		Adding:   s.coord.IsAdding(),
		Updating: s.coord.IsUpdating(),
		Deleting: s.coord.IsDeleting(),
	}
}

// Achievements returns the achievements unlocked in this session.
func (s *Store) Achievements() []achievement.Achievement {
	return s.tracker.Unlocked()
}

// BeginDrag presses on the todo at id.
func (s *Store) BeginDrag(id string, input reorder.Input, at reorder.Point) reorder.State {
	state := s.engine.Start(id, input, at)
	s.publish()
	return state
}

// MoveDrag reports movement of the active gesture.
func (s *Store) MoveDrag(at reorder.Point) reorder.State {
	before, _ := s.engine.State()
	state := s.engine.Track(at)
	if state != before {
		s.publish()
	}
	return state
}

// Drop ends the gesture over target and persists the resulting order.
func (s *Store) Drop(target reorder.DropTarget) error {
	list, err := s.engine.Drop(order.IDs(s.Todos()), target)
	if err != nil {
		s.logger.Warn("failed to save order", "err", err)
		s.publish()
		return err
	}
	s.mu.Lock()
	s.order = list
	s.mu.Unlock()
	s.publish()
	return nil
}

// CancelDrag abandons the gesture.
func (s *Store) CancelDrag() {
	s.engine.Cancel()
	s.publish()
}

// Reorder moves id next to target in one step, as a keyboard drag would.
func (s *Store) Reorder(id string, target reorder.DropTarget) error {
	s.engine.Start(id, reorder.Keyboard, reorder.Point{})
	return s.Drop(target)
}

// Invalidate discards the cache. Mutations in flight settle without
// touching the fresh state.
func (s *Store) Invalidate() {
	s.cache.Invalidate()
}

// Close flushes debounced work, waits for in-flight mutations, detaches
// from the cache and closes the order store.
func (s *Store) Close() {
	s.coord.Close()
	s.unsub()
	if err := s.orders.Close(); err != nil {
		s.logger.Warn("failed to close order store", "err", err)
	}
}

func (s *Store) onSuccess(o mutation.Outcome) {
	switch o.Op {
	case mutation.OpAdd:
		s.confirmOrder(o.TentativeID, o.Todo.ID)
		s.notify(addedToast(o.Todo))
		s.notify(Notification{Kind: Confetti, Level: Success})
		s.unlock(achievement.Created)

	case mutation.OpUpdate:
		if o.Patch.Title == nil && o.Patch.Completed != nil {
			if *o.Patch.Completed {
				s.notify(completedToast(o.Todo))
				if completedCount(s.cache.Todos()) == taskMasterCount {
					s.notify(taskMasterToast())
				}
				s.unlock(achievement.Completed)
			} else {
				s.notify(reopenedToast(o.Todo))
				s.unlock(achievement.Reopened)
			}
			return
		}
		s.notify(updatedToast(o.Todo))
		s.unlock(achievement.Renamed)

	case mutation.OpDelete:
		s.removeOrder(o.ID)
		s.notify(deletedToast())
		s.unlock(achievement.Deleted)
	}
}

func (s *Store) onFailure(o mutation.Outcome) {
	if o.Op == mutation.OpAdd && s.ordered(o.ID) {
		s.removeOrder(o.ID)
	}
	s.notify(failureToast(string(o.Op), o.Err))
}

func (s *Store) ordered(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return id != "" && s.order.Contains(id)
}

// confirmOrder gives the server id the place the tentative id holds.
// A todo that was never moved while pending goes last.
func (s *Store) confirmOrder(tentative, id string) {
	if !s.ordered(tentative) {
		s.appendOrder(id)
		return
	}
	if err := s.orders.Replace(tentative, id); err != nil {
		s.logger.Warn("failed to save order", "err", err)
	}
	s.mu.Lock()
	list := make(order.List, 0, len(s.order))
	for _, other := range s.order {
		switch other {
		case tentative:
			list = append(list, id)
		case id:
		default:
			list = append(list, other)
		}
	}
	s.order = list
	s.mu.Unlock()
	s.publish()
}

func (s *Store) unlock(ev achievement.Event) {
	for _, a := range s.tracker.Record(ev, s.cache.Todos()) {
		s.logger.Debug("achievement unlocked", "title", a.Title)
		s.notify(achievementNotice(a))
	}
}

// appendOrder places id last. The displayed order is saved in full so that
// todos the stored list never named keep their place ahead of id.
func (s *Store) appendOrder(id string) {
	s.mu.Lock()
	shown := order.IDs(order.Reconcile(s.order, s.cache.Todos()))
	list := make(order.List, 0, len(shown)+1)
	covered := true
	for _, other := range shown {
		if other == id {
			continue
		}
		covered = covered && s.order.Contains(other)
		list = append(list, other)
	}
	list = append(list, id)
	s.order = list
	s.mu.Unlock()

	var err error
	if covered {
		err = s.orders.Append(id)
	} else {
		err = s.orders.Save(list)
	}
	if err != nil {
		s.logger.Warn("failed to save order", "err", err)
	}
	s.publish()
}

func (s *Store) removeOrder(id string) {
	if err := s.orders.Remove(id); err != nil {
		s.logger.Warn("failed to save order", "err", err)
	}
	s.mu.Lock()
	if i := s.order.Index(id); i >= 0 {
		s.order = append(s.order[:i:i], s.order[i+1:]...)
	}
	s.mu.Unlock()
	s.publish()
}

func completedCount(todos []service.Todo) int {
	n := 0
	for _, t := range todos {
		if t.Completed {
			n++
		}
	}
	return n
}
