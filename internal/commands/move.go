package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"todosync/internal/config"
	"todosync/internal/exitcode"
	"todosync/internal/reorder"
	"todosync/internal/store"
)

func init() {
	Register(&MoveCmd{})
}

// MoveCmd implements the move command.
type MoveCmd struct {
	before string
	after  string
}

func (c *MoveCmd) Name() string      { return "move" }
func (c *MoveCmd) Aliases() []string { return []string{"mv"} }
func (c *MoveCmd) Synopsis() string  { return "Reorder a todo" }
func (c *MoveCmd) Usage() string     { return "todosync move <n> --before <m> | --after <m>" }
func (c *MoveCmd) NeedsStore() bool  { return true }

func (c *MoveCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.before, "before", "", "")
	fs.StringVar(&c.after, "after", "", "")
}

func (c *MoveCmd) Run(ctx context.Context, cfg *config.Config, st *store.Store, args []string, out, errOut io.Writer) int {
	// Flags may follow the todo number.
	if len(args) > 1 {
		before, after := c.before, c.after
		fs := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		c.RegisterFlags(fs)
		if before != "" {
			c.before = before
		}
		if after != "" {
			c.after = after
		}
		if err := fs.Parse(args[1:]); err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.UserError
		}
		if fs.NArg() > 0 {
			fmt.Fprintf(errOut, "error: unexpected argument: %s\n", fs.Arg(0))
			return exitcode.UserError
		}
		args = args[:1]
	}

	if (c.before == "") == (c.after == "") {
		fmt.Fprintln(errOut, "error: exactly one of --before or --after is required")
		return exitcode.UserError
	}
	pos, ref := reorder.Before, c.before
	if c.after != "" {
		pos, ref = reorder.After, c.after
	}
	targetNum, err := parseNumber(ref)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	todo, code := resolveRef(ctx, st, args, errOut)
	if code != exitcode.Success {
		return code
	}
	target, err := todoAt(st, targetNum)
	if err != nil {
		return fail(errOut, err)
	}

	if err := st.Reorder(todo.ID, reorder.DropTarget{TargetID: target.ID, Position: pos}); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.BackendError
	}
	if !cfg.Quiet {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
