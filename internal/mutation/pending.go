package mutation

import (
	"context"

	"todosync/internal/service"
)

// Pending is the completion handle of one Add, Update or Delete call.
// Each caller gets its own handle; handles of calls collapsed by the
// debounce window resolve with the same outcome.
type Pending struct {
	op   Op
	id   string
	done chan struct{}
	todo service.Todo
	err  error
}

func newPending(op Op, id string) *Pending {
	return &Pending{op: op, id: id, done: make(chan struct{})}
}

// Resolved returns a handle that has already settled.
func Resolved(op Op, id string, todo service.Todo, err error) *Pending {
	p := newPending(op, id)
	p.resolve(todo, err)
	return p
}

func (p *Pending) resolve(todo service.Todo, err error) {
	p.todo = todo
	p.err = err
	close(p.done)
}

// Op returns the operation the handle belongs to.
func (p *Pending) Op() Op { return p.op }

// ID returns the targeted todo id, empty for Add.
func (p *Pending) ID() string { return p.id }

// Done is closed once the mutation settled.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the mutation settled or ctx is done.
// For Add the returned todo is the server's record; for Delete it is the
// record as it was before removal.
func (p *Pending) Wait(ctx context.Context) (service.Todo, error) {
	select {
	case <-p.done:
		return p.todo, p.err
	case <-ctx.Done():
		return service.Todo{}, ctx.Err()
	}
}

// Result returns the outcome without blocking. ok is false while unsettled.
func (p *Pending) Result() (todo service.Todo, err error, ok bool) {
	select {
	case <-p.done:
		return p.todo, p.err, true
	default:
		return service.Todo{}, nil, false
	}
}
