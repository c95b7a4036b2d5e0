// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"todosync/internal/service"
)

// DefaultUserID is the user stamped on records created by FakeAPI.
const DefaultUserID = "user-1"

// Call records one invocation of a FakeAPI method.
type Call struct {
	Method string
	ID     string
	Title  string
	Patch  service.Patch
}

// FakeAPI is an in-memory implementation of service.TodoAPI for testing.
type FakeAPI struct {
	mu     sync.RWMutex
	todos  []service.Todo
	nextID int
	calls  []Call

	UserID string
	Now    func() time.Time

	// Error injection for testing
	ListErr   error
	CreateErr error
	UpdateErr error
	RemoveErr error

	// Hold, when non-nil, blocks every mutating call until it can receive
	// from the channel or the context is done.
	Hold chan struct{}
	// HoldOnly limits Hold to the named method ("Create", "Update", "Remove").
	HoldOnly string
}

// NewFakeAPI creates an empty FakeAPI.
func NewFakeAPI() *FakeAPI {
	return &FakeAPI{
		UserID: DefaultUserID,
		Now:    func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	}
}

// AddTodo seeds a todo.
func (f *FakeAPI) AddTodo(id, title string, completed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.todos = append(f.todos, service.Todo{
		ID:        id,
		Title:     title,
		Completed: completed,
		CreatedBy: f.UserID,
		UpdatedBy: f.UserID,
	})
}

// Todos returns a copy of the stored todos.
func (f *FakeAPI) Todos() []service.Todo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]service.Todo, len(f.todos))
	for i, t := range f.todos {
		out[i] = t.Clone()
	}
	return out
}

// Calls returns the recorded calls in order.
func (f *FakeAPI) Calls() []Call {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]Call(nil), f.calls...)
}

// CallCount returns how often method was invoked.
func (f *FakeAPI) CallCount(method string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	n := 0
	for _, c := range f.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

func (f *FakeAPI) record(c Call) {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
}

func (f *FakeAPI) wait(ctx context.Context, method string) error {
	if f.Hold == nil || (f.HoldOnly != "" && f.HoldOnly != method) {
		return nil
	}
	select {
	case <-f.Hold:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// List implements service.TodoAPI.
func (f *FakeAPI) List(ctx context.Context, filter service.Filter) ([]service.Todo, error) {
	f.record(Call{Method: "List"})
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	f.mu.RLock()
	defer f.mu.RUnlock()

	var out []service.Todo
	for _, t := range f.todos {
		if filter.CreatedBy != "" && t.CreatedBy != filter.CreatedBy {
			continue
		}
		out = append(out, t.Clone())
	}
	return out, nil
}

// Create implements service.TodoAPI.
func (f *FakeAPI) Create(ctx context.Context, todo service.Todo) (service.Todo, error) {
	f.record(Call{Method: "Create", Title: todo.Title})
	if err := f.wait(ctx, "Create"); err != nil {
		return service.Todo{}, err
	}
	if f.CreateErr != nil {
		return service.Todo{}, f.CreateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.nextID++
	now := f.Now()
	todo.ID = fmt.Sprintf("srv-%d", f.nextID)
	todo.CreatedBy = f.UserID
	todo.UpdatedBy = f.UserID
	todo.CreatedAt = &now
	todo.UpdatedAt = &now
	f.todos = append(f.todos, todo)
	return todo.Clone(), nil
}

// Update implements service.TodoAPI.
func (f *FakeAPI) Update(ctx context.Context, id string, patch service.Patch) (service.Todo, error) {
	f.record(Call{Method: "Update", ID: id, Patch: patch})
	if err := f.wait(ctx, "Update"); err != nil {
		return service.Todo{}, err
	}
	if f.UpdateErr != nil {
		return service.Todo{}, f.UpdateErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, t := range f.todos {
		if t.ID == id {
			now := f.Now()
			t = patch.ApplyTo(t)
			t.UpdatedBy = f.UserID
			t.UpdatedAt = &now
			f.todos[i] = t
			return t.Clone(), nil
		}
	}
	return service.Todo{}, service.Errorf(service.KindNotFound, "update", "todo %s not found", id)
}

// Remove implements service.TodoAPI.
func (f *FakeAPI) Remove(ctx context.Context, id string) (string, error) {
	f.record(Call{Method: "Remove", ID: id})
	if err := f.wait(ctx, "Remove"); err != nil {
		return "", err
	}
	if f.RemoveErr != nil {
		return "", f.RemoveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	for i, t := range f.todos {
		if t.ID == id {
			f.todos = append(f.todos[:i], f.todos[i+1:]...)
			return id, nil
		}
	}
	return "", service.Errorf(service.KindNotFound, "delete", "todo %s not found", id)
}
