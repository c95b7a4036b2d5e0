package commands

import (
	"context"
	"fmt"
	"io"

	"todosync/internal/exitcode"
	"todosync/internal/mutation"
	"todosync/internal/service"
	"todosync/internal/store"
)

// fail prints err and returns its exit code.
func fail(errOut io.Writer, err error) int {
	fmt.Fprintf(errOut, "error: %v\n", err)
	return exitcode.FromError(err)
}

// load fetches the list once per invocation.
func load(ctx context.Context, st *store.Store, errOut io.Writer) int {
	if err := st.Load(ctx); err != nil {
		return fail(errOut, err)
	}
	return exitcode.Success
}

// settle waits for p to resolve and reports a failure.
func settle(ctx context.Context, p *mutation.Pending, errOut io.Writer) (service.Todo, int) {
	todo, err := p.Wait(ctx)
	if err != nil {
		return service.Todo{}, fail(errOut, err)
	}
	return todo, exitcode.Success
}

// resolveRef loads the list and returns the todo referenced by args[0].
func resolveRef(ctx context.Context, st *store.Store, args []string, errOut io.Writer) (service.Todo, int) {
	num, err := ParseTaskRef(args)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return service.Todo{}, exitcode.UserError
	}
	if code := load(ctx, st, errOut); code != exitcode.Success {
		return service.Todo{}, code
	}
	todo, err := todoAt(st, num)
	if err != nil {
		return service.Todo{}, fail(errOut, err)
	}
	return todo, exitcode.Success
}
